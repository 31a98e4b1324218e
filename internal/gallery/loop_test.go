package gallery

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopRunsInOrder(t *testing.T) {
	loop := NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	var mu sync.Mutex
	var got []int
	for i := 0; i < 50; i++ {
		i := i
		require.True(t, loop.Post(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}))
	}
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 50
	}, time.Second, time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
	assert.False(t, loop.Post(func() {}), "post after shutdown is rejected")
}

func TestLoopFlush(t *testing.T) {
	loop := NewLoop()
	var order []string
	loop.Post(func() {
		order = append(order, "first")
		loop.Post(func() { order = append(order, "nested") })
	})
	loop.Post(func() { order = append(order, "second") })
	loop.Flush()
	assert.Equal(t, []string{"first", "second", "nested"}, order)

	loop.Stop()
	assert.False(t, loop.Post(func() {}))
}
