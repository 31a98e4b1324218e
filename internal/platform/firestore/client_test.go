package firestore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/xotten/portfolio/internal/platform/config"
)

func TestWrapErrorClassifies(t *testing.T) {
	err := WrapError("kv.firestore.get", status.Error(codes.NotFound, "missing"))
	assert.True(t, IsNotFound(err))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "kv.firestore.get: firestore: not found: rpc error: code = NotFound desc = missing", err.Error())

	err = WrapError("kv.firestore.set", status.Error(codes.Unavailable, "down"))
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.False(t, IsNotFound(err))

	err = WrapError("kv.firestore.set", status.Error(codes.PermissionDenied, "nope"))
	assert.False(t, errors.Is(err, ErrUnavailable))
	assert.Equal(t, codes.PermissionDenied, status.Code(errors.Unwrap(err)))
}

func TestWrapErrorPassesThroughCancellation(t *testing.T) {
	assert.ErrorIs(t, WrapError("op", context.Canceled), context.Canceled)
	assert.ErrorIs(t, WrapError("op", status.Error(codes.DeadlineExceeded, "slow")), context.DeadlineExceeded)
	assert.NoError(t, WrapError("op", nil))
}

func TestProviderRequiresProject(t *testing.T) {
	t.Setenv("GOOGLE_CLOUD_PROJECT", "")
	p := NewProvider(config.FirestoreConfig{})
	_, err := p.Client(context.Background())
	assert.ErrorIs(t, err, ErrNoProject)
}

func TestProviderClosed(t *testing.T) {
	p := NewProvider(config.FirestoreConfig{ProjectID: "xotten-test"})
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	_, err := p.Client(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}
