package provider

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobQueueDispatch(t *testing.T) {
	q := newJobQueue(16, 4)
	defer q.stop()

	var executed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		require.NoError(t, q.dispatch(func() {
			executed.Add(1)
			wg.Done()
		}))
	}
	wg.Wait()

	assert.Equal(t, int64(16), executed.Load())
}

func TestJobQueueFull(t *testing.T) {
	// No workers: dispatched jobs pile up in the channel.
	q := newJobQueue(2, 0)
	defer q.stop()

	require.NoError(t, q.dispatch(func() {}))
	require.NoError(t, q.dispatch(func() {}))
	assert.ErrorIs(t, q.dispatch(func() {}), errJobQueueFull)
}

func TestJobQueueStop(t *testing.T) {
	q := newJobQueue(1, 2)
	q.stop() // must not hang
}
