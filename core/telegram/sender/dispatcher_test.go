package sender

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherRunsJob(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, QueueSize: 4})
	var ran atomic.Bool

	err := d.Enqueue(context.Background(), "send.text", "sendMessage", func() error {
		ran.Store(true)
		return nil
	})
	require.NoError(t, err)

	d.Close()
	assert.True(t, ran.Load())
	assert.Zero(t, d.ErrorCount())
}

func TestDispatcherRetriesTransientErrors(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, QueueSize: 4, MaxRetries: 2, RetryBackoff: time.Millisecond})
	var calls atomic.Int32

	err := d.Enqueue(context.Background(), "send.text", "sendMessage", func() error {
		if calls.Add(1) < 3 {
			return &net.OpError{Op: "dial", Err: errors.New("connection refused")}
		}
		return nil
	})
	require.NoError(t, err)

	d.Close()
	assert.Equal(t, int32(3), calls.Load())
	assert.Zero(t, d.ErrorCount())
}

func TestDispatcherDoesNotRetryPermanentErrors(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, QueueSize: 4, MaxRetries: 3, RetryBackoff: time.Millisecond})
	var calls atomic.Int32

	err := d.Enqueue(context.Background(), "send.text", "sendMessage", func() error {
		calls.Add(1)
		return errors.New("bad request")
	})
	require.NoError(t, err)

	d.Close()
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, uint64(1), d.ErrorCount())
}

func TestDispatcherRejectsAfterClose(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1})
	d.Close()

	err := d.Enqueue(context.Background(), "send.text", "sendMessage", func() error { return nil })
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestDispatcherQueueFull(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, QueueSize: 1})
	release := make(chan struct{})

	// occupy the single worker
	require.NoError(t, d.Enqueue(context.Background(), "a", "", func() error {
		<-release
		return nil
	}))

	// fill the queue, then overflow it
	var err error
	for i := 0; i < 3; i++ {
		err = d.Enqueue(context.Background(), "b", "", func() error { return nil })
		if err != nil {
			break
		}
	}
	assert.ErrorIs(t, err, ErrQueueFull)

	close(release)
	d.Close()
}
