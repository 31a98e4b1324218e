package contact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
)

// PubSubSubmitter publishes submissions as JSON messages to a Pub/Sub topic.
type PubSubSubmitter struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubSubmitter constructs a Pub/Sub backed submitter.
func NewPubSubSubmitter(topic *pubsub.Topic) (*PubSubSubmitter, error) {
	if topic == nil {
		return nil, errors.New("contact: pubsub topic is required")
	}
	return &PubSubSubmitter{topic: topic, marshal: json.Marshal}, nil
}

// Submit publishes s and waits for the server acknowledgement.
func (p *PubSubSubmitter) Submit(ctx context.Context, s Submission) error {
	data, err := p.marshal(s)
	if err != nil {
		return fmt.Errorf("contact: marshal submission: %w", err)
	}
	result := p.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"submissionId": s.ID,
			"kind":         "contact",
		},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("contact: publish submission: %w", err)
	}
	return nil
}
