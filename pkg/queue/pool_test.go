package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRegisterAndCancelMessage(t *testing.T) {
	pool := &WorkerPool{
		activeMessages: make(map[string]context.CancelFunc),
	}

	ctx, cancel := context.WithCancel(context.Background())
	pool.RegisterMessage("message-1", cancel)

	assert.True(t, pool.CancelMessage("message-1"))
	assert.Error(t, ctx.Err())

	assert.False(t, pool.CancelMessage("unknown"))
}

func TestPoolUnregisterMessage(t *testing.T) {
	pool := &WorkerPool{
		activeMessages: make(map[string]context.CancelFunc),
	}

	_, cancel := context.WithCancel(context.Background())
	pool.RegisterMessage("message-1", cancel)

	assert.True(t, pool.CancelMessage("message-1"))

	pool.UnregisterMessage("message-1")

	assert.False(t, pool.CancelMessage("message-1"))
}

func TestPoolGetActiveMessageIDs(t *testing.T) {
	pool := &WorkerPool{
		activeMessages: make(map[string]context.CancelFunc),
	}

	ids := pool.getActiveMessageIDs()
	assert.Empty(t, ids)

	_, cancel1 := context.WithCancel(context.Background())
	defer cancel1()
	_, cancel2 := context.WithCancel(context.Background())
	defer cancel2()
	pool.RegisterMessage("message-a", cancel1)
	pool.RegisterMessage("message-b", cancel2)

	ids = pool.getActiveMessageIDs()
	require.Len(t, ids, 2)
	assert.Contains(t, ids, "message-a")
	assert.Contains(t, ids, "message-b")
}

func TestPoolStopTwiceDoesNotPanic(t *testing.T) {
	pool := &WorkerPool{
		stopCh:         make(chan struct{}),
		activeMessages: make(map[string]context.CancelFunc),
	}

	pool.Stop()

	assert.NotPanics(t, func() { pool.Stop() })
}

func TestPoolRegisterMessageConcurrency(t *testing.T) {
	pool := &WorkerPool{
		activeMessages: make(map[string]context.CancelFunc),
	}

	const numMessages = 100
	var wg sync.WaitGroup
	for i := 0; i < numMessages; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			_, cancel := context.WithCancel(context.Background())
			defer cancel()
			pool.RegisterMessage(fmt.Sprintf("message-%d", id), cancel)
		}(i)
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		pool.mu.RLock()
		defer pool.mu.RUnlock()
		return len(pool.activeMessages) == numMessages
	}, 1*time.Second, 10*time.Millisecond)
}

func TestPoolCancelNonExistentMessage(t *testing.T) {
	pool := &WorkerPool{
		activeMessages: make(map[string]context.CancelFunc),
	}

	assert.False(t, pool.CancelMessage("nonexistent-message"))
}

func TestPoolUnregisterNonExistentMessage(t *testing.T) {
	pool := &WorkerPool{
		activeMessages: make(map[string]context.CancelFunc),
	}

	assert.NotPanics(t, func() {
		pool.UnregisterMessage("nonexistent-message")
	})
}

func TestPoolMultipleMessageLifecycle(t *testing.T) {
	pool := &WorkerPool{
		activeMessages: make(map[string]context.CancelFunc),
	}

	messages := []string{"message-1", "message-2", "message-3"}

	for _, id := range messages {
		_, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.RegisterMessage(id, cancel)
	}

	ids := pool.getActiveMessageIDs()
	require.Len(t, ids, 3)

	assert.True(t, pool.CancelMessage("message-2"))
	pool.UnregisterMessage("message-2")

	ids = pool.getActiveMessageIDs()
	require.Len(t, ids, 2)
	assert.Contains(t, ids, "message-1")
	assert.Contains(t, ids, "message-3")
	assert.NotContains(t, ids, "message-2")
}

func TestPoolRegisterSameMessageTwice(t *testing.T) {
	pool := &WorkerPool{
		activeMessages: make(map[string]context.CancelFunc),
	}

	ctx1, cancel1 := context.WithCancel(context.Background())
	defer cancel1()
	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel2()

	pool.RegisterMessage("message-1", cancel1)
	pool.RegisterMessage("message-1", cancel2) // overwrites

	assert.True(t, pool.CancelMessage("message-1"))

	assert.Error(t, ctx2.Err())
	assert.NoError(t, ctx1.Err())
}

func TestPoolConcurrentCancellation(t *testing.T) {
	pool := &WorkerPool{
		activeMessages: make(map[string]context.CancelFunc),
	}

	ctx, cancel := context.WithCancel(context.Background())
	pool.RegisterMessage("message-racy", cancel)

	const numGoroutines = 10
	results := make(chan bool, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func() {
			results <- pool.CancelMessage("message-racy")
		}()
	}

	var trueCount int
	for i := 0; i < numGoroutines; i++ {
		if <-results {
			trueCount++
		}
	}

	assert.Equal(t, numGoroutines, trueCount)
	assert.Error(t, ctx.Err())
}
