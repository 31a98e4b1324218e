package contact

import (
	"context"
	"encoding/json"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// fakeTopic starts an in-process Pub/Sub server with one topic.
func fakeTopic(t *testing.T, name string) (*pstest.Server, *pubsub.Topic) {
	t.Helper()
	ctx := context.Background()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	client, err := pubsub.NewClient(ctx, "xotten-test",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	topic, err := client.CreateTopic(ctx, name)
	require.NoError(t, err)
	t.Cleanup(topic.Stop)
	return srv, topic
}

func TestPubSubSubmitterPublishes(t *testing.T) {
	srv, topic := fakeTopic(t, "contact")
	submitter, err := NewPubSubSubmitter(topic)
	require.NoError(t, err)

	form := NewForm(submitter)
	sub, err := form.Submit(context.Background(), Input{Name: "Ada", Email: "ada@example.com", Message: "Commission enquiry"})
	require.NoError(t, err)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	var got Submission
	require.NoError(t, json.Unmarshal(msgs[0].Data, &got))
	assert.Equal(t, sub.ID, got.ID)
	assert.Equal(t, "Commission enquiry", got.Message)
	assert.Equal(t, sub.ID, msgs[0].Attributes["submissionId"])

	status, _ := form.Status()
	assert.Equal(t, StatusSent, status)
}

func TestNewPubSubSubmitterRequiresTopic(t *testing.T) {
	_, err := NewPubSubSubmitter(nil)
	assert.Error(t, err)
}
