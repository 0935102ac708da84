package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPoolRunsSubmittedTasks(t *testing.T) {
	pool := NewPool(2)

	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		pool.Submit(func(ctx context.Context) error {
			ran.Add(1)
			return nil
		})
	}

	// Shutdown drains the queue before returning.
	pool.Shutdown()
	assert.Equal(t, int32(10), ran.Load())
}

func TestPoolSubmitAfterShutdownIsDropped(t *testing.T) {
	pool := NewPool(1)
	pool.Shutdown()

	// Must not panic on the closed queue; the task is simply dropped.
	var ran atomic.Bool
	pool.Submit(func(ctx context.Context) error {
		ran.Store(true)
		return nil
	})
	assert.False(t, ran.Load())
}

func TestPoolShutdownIsIdempotent(t *testing.T) {
	pool := NewPool(1)
	pool.Shutdown()
	pool.Shutdown()
}

func TestPoolConcurrentSubmitAndShutdown(t *testing.T) {
	// Tasks racing a shutdown either run or are dropped; neither side
	// may panic on the closing queue.
	for i := 0; i < 50; i++ {
		pool := NewPool(2)
		var wg sync.WaitGroup

		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for n := 0; n < 25; n++ {
					pool.Submit(func(ctx context.Context) error { return nil })
				}
			}()
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			pool.Shutdown()
		}()

		wg.Wait()
	}
}
