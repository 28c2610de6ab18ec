package concurrency

import (
	"context"
	stderrors "errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type valueResult struct {
	SimpleResult
	value int
}

func TestSpawnDeliversResults(t *testing.T) {
	pool := NewPool(2)
	results := make(chan Result, 5)

	for i := 0; i < 5; i++ {
		v := i
		pool.Spawn(context.Background(), JobFunc(func(ctx context.Context) Result {
			return &valueResult{value: v * v}
		}), results)
	}

	sum := 0
	for i := 0; i < 5; i++ {
		r := <-results
		require.NoError(t, r.GetError())
		sum += r.(*valueResult).value
	}
	assert.Equal(t, 0+1+4+9+16, sum)
	require.Eventually(t, func() bool { return pool.Active() == 0 }, time.Second, time.Millisecond)
}

func TestSpawnBoundsConcurrency(t *testing.T) {
	pool := NewPool(2)
	results := make(chan Result, 6)

	var running, peak int32
	for i := 0; i < 6; i++ {
		pool.Spawn(context.Background(), JobFunc(func(ctx context.Context) Result {
			n := atomic.AddInt32(&running, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&running, -1)
			return nil
		}), results)
	}

	for i := 0; i < 6; i++ {
		<-results
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestSpawnRecoversPanics(t *testing.T) {
	pool := NewPool(1)
	results := make(chan Result, 1)

	pool.Spawn(context.Background(), JobFunc(func(ctx context.Context) Result {
		panic("boom")
	}), results)

	r := <-results
	var pe *PanicError
	require.True(t, stderrors.As(r.GetError(), &pe))
	assert.Equal(t, "boom", pe.Value)
}

func TestTerminateDropsResult(t *testing.T) {
	pool := NewPool(1)
	results := make(chan Result, 1)
	started := make(chan struct{})

	h := pool.Spawn(context.Background(), JobFunc(func(ctx context.Context) Result {
		close(started)
		<-ctx.Done()
		return &SimpleResult{Err: ctx.Err()}
	}), results)

	<-started
	pool.Terminate(h)

	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("terminated job did not finish")
	}
	assert.Empty(t, results)
	assert.Equal(t, 0, pool.Active())
}

func TestTerminateAllReclaimsQueuedJobs(t *testing.T) {
	pool := NewPool(1)
	results := make(chan Result, 3)
	block := make(chan struct{})
	defer close(block)

	var handles []*Handle
	for i := 0; i < 3; i++ {
		handles = append(handles, pool.Spawn(context.Background(), JobFunc(func(ctx context.Context) Result {
			select {
			case <-block:
			case <-ctx.Done():
			}
			return nil
		}), results))
	}

	assert.Equal(t, 3, pool.TerminateAll())
	for _, h := range handles {
		<-h.Done()
	}
	assert.Empty(t, results)
	assert.Equal(t, 0, pool.Active())
}

func TestDefaultSize(t *testing.T) {
	n := DefaultSize()
	assert.GreaterOrEqual(t, n, 1)
	assert.LessOrEqual(t, n, MaxDefaultWorkers)
}

func TestSemaphoreAcquireContext(t *testing.T) {
	s := NewSemaphore(1)
	s.Acquire()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, s.AcquireContext(ctx), context.DeadlineExceeded)
	s.Release()
	require.NoError(t, s.AcquireContext(context.Background()))
}
