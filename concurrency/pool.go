// Package concurrency provides the bounded worker execution service used by
// the parallel resample path.
package concurrency

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
)

// MaxDefaultWorkers caps DefaultSize.
const MaxDefaultWorkers = 4

// Job 任务接口
type Job interface {
	Execute(ctx context.Context) Result
}

// Result 结果接口
type Result interface {
	GetError() error
}

// JobFunc 函数式任务
type JobFunc func(ctx context.Context) Result

// Execute 执行函数
func (f JobFunc) Execute(ctx context.Context) Result {
	return f(ctx)
}

// SimpleResult 简单结果
type SimpleResult struct {
	Err error
}

// GetError 获取错误
func (r *SimpleResult) GetError() error {
	return r.Err
}

// PanicError is reported when a job panics.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("job panicked: %v", e.Value)
}

// DefaultSize returns min(GOMAXPROCS, MaxDefaultWorkers).
func DefaultSize() int {
	n := runtime.GOMAXPROCS(0)
	if n > MaxDefaultWorkers {
		return MaxDefaultWorkers
	}
	if n < 1 {
		return 1
	}
	return n
}

// Handle 任务句柄
type Handle struct {
	id     uint64
	cancel context.CancelFunc
	done   chan struct{}
}

// ID returns the handle's pool-unique id.
func (h *Handle) ID() uint64 {
	return h.id
}

// Done is closed once the job has returned or was terminated before running.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Pool Worker 池
//
// Spawn runs each job on its own goroutine once a slot is free, so at most
// Size jobs execute at a time. Results are delivered on the channel passed to
// Spawn unless the job's handle is terminated first. A Pool may be reused
// across sequential calls.
type Pool struct {
	size int
	sem  *Semaphore

	mu      sync.Mutex
	nextID  uint64
	handles map[uint64]*Handle
}

// NewPool 创建 Worker 池
func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		size:    size,
		sem:     NewSemaphore(size),
		handles: make(map[uint64]*Handle),
	}
}

// Size returns the maximum number of concurrently executing jobs.
func (p *Pool) Size() int {
	return p.size
}

// Spawn 提交任务
//
// The job's context is derived from ctx and is cancelled by Terminate.
// results should be buffered for every job sharing it; a terminated job never
// sends.
func (p *Pool) Spawn(ctx context.Context, job Job, results chan<- Result) *Handle {
	jobCtx, cancel := context.WithCancel(ctx)

	p.mu.Lock()
	p.nextID++
	h := &Handle{id: p.nextID, cancel: cancel, done: make(chan struct{})}
	p.handles[h.id] = h
	p.mu.Unlock()

	go func() {
		defer close(h.done)
		defer p.release(h)

		if err := p.sem.AcquireContext(jobCtx); err != nil {
			return
		}
		result := p.run(jobCtx, job)
		p.sem.Release()

		if jobCtx.Err() != nil {
			return
		}
		select {
		case results <- result:
		case <-jobCtx.Done():
		}
	}()

	return h
}

// Terminate 取消任务
func (p *Pool) Terminate(h *Handle) {
	if h == nil {
		return
	}
	h.cancel()
	p.release(h)
}

// TerminateAll cancels every job still tracked by the pool and returns how
// many were reclaimed.
func (p *Pool) TerminateAll() int {
	p.mu.Lock()
	handles := make([]*Handle, 0, len(p.handles))
	for _, h := range p.handles {
		handles = append(handles, h)
	}
	p.handles = make(map[uint64]*Handle)
	p.mu.Unlock()

	for _, h := range handles {
		h.cancel()
	}
	return len(handles)
}

// Active returns the number of spawned jobs that have not finished or been
// terminated.
func (p *Pool) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.handles)
}

func (p *Pool) release(h *Handle) {
	p.mu.Lock()
	delete(p.handles, h.id)
	p.mu.Unlock()
	h.cancel()
}

// run 执行任务
func (p *Pool) run(ctx context.Context, job Job) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = &SimpleResult{Err: &PanicError{Value: r, Stack: debug.Stack()}}
		}
	}()
	result = job.Execute(ctx)
	if result == nil {
		result = &SimpleResult{}
	}
	return result
}

// Semaphore 信号量
type Semaphore struct {
	capacity int
	tickets  chan struct{}
}

// NewSemaphore 创建信号量
func NewSemaphore(capacity int) *Semaphore {
	return &Semaphore{
		capacity: capacity,
		tickets:  make(chan struct{}, capacity),
	}
}

// Acquire 获取信号量
func (s *Semaphore) Acquire() {
	s.tickets <- struct{}{}
}

// AcquireContext 获取信号量 (支持上下文)
func (s *Semaphore) AcquireContext(ctx context.Context) error {
	select {
	case s.tickets <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release 释放信号量
func (s *Semaphore) Release() {
	<-s.tickets
}

// WithSemaphore 在信号量控制下执行
func (s *Semaphore) WithSemaphore(fn func()) {
	s.Acquire()
	defer s.Release()
	fn()
}
