// Package pool wraps an ants goroutine pool with task statistics and a
// fan-out helper used for parallel subsystem bootstrap.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kart-io/logger"
	"github.com/panjf2000/ants/v2"
)

var (
	// ErrPoolClosed 池已关闭
	ErrPoolClosed = errors.New("pool is closed")

	// ErrPoolOverload 池已满
	ErrPoolOverload = errors.New("pool is overloaded")
)

// Config defines the configuration for the worker pool.
type Config struct {
	// Capacity 池容量（最大并发 goroutine 数）
	Capacity int
	// ExpiryDuration goroutine 空闲过期时间
	ExpiryDuration time.Duration
	// PreAlloc 是否预分配内存
	PreAlloc bool
	// Nonblocking 提交任务是否非阻塞（若池满则返回错误）
	Nonblocking bool
	// MaxBlockingTasks 当 Nonblocking=false 时，最大等待任务数（0 表示无限制）
	MaxBlockingTasks int
	// PanicHandler 恐慌处理函数
	PanicHandler func(any)
}

// DefaultConfig returns a blocking pool sized for a handful of subsystems.
func DefaultConfig() *Config {
	return &Config{
		Capacity:       8,
		ExpiryDuration: 10 * time.Second,
	}
}

// Stats contains statistics about the worker pool.
type Stats struct {
	Submitted int64 `json:"submitted"`
	Completed int64 `json:"completed"`
	Rejected  int64 `json:"rejected"`
	Panics    int64 `json:"panics"`
}

// Pool represents a worker pool.
type Pool struct {
	name    string
	pool    *ants.Pool
	onPanic func(any)

	closeOnce sync.Once
	closed    atomic.Bool

	submitted atomic.Int64
	completed atomic.Int64
	rejected  atomic.Int64
	panics    atomic.Int64
}

// New creates a new worker pool with the given configuration.
func New(name string, cfg *Config) (*Pool, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Capacity <= 0 {
		return nil, fmt.Errorf("pool %s: capacity must be positive, got %d", name, cfg.Capacity)
	}

	p := &Pool{name: name, onPanic: cfg.PanicHandler}
	if p.onPanic == nil {
		p.onPanic = func(v any) {
			logger.Errorw("Worker panic recovered", "pool", name, "panic", v)
		}
	}

	ap, err := ants.NewPool(cfg.Capacity,
		ants.WithExpiryDuration(cfg.ExpiryDuration),
		ants.WithPreAlloc(cfg.PreAlloc),
		ants.WithNonblocking(cfg.Nonblocking),
		ants.WithMaxBlockingTasks(cfg.MaxBlockingTasks),
		ants.WithPanicHandler(p.onPanic),
	)
	if err != nil {
		return nil, fmt.Errorf("create ants pool %s: %w", name, err)
	}
	p.pool = ap

	logger.Debugw("Worker pool created", "name", name, "capacity", cfg.Capacity)
	return p, nil
}

// Name returns the pool name.
func (p *Pool) Name() string { return p.name }

// Cap returns the pool capacity.
func (p *Pool) Cap() int { return p.pool.Cap() }

// Running returns the number of busy workers.
func (p *Pool) Running() int { return p.pool.Running() }

// Submit 提交任务到池中执行
func (p *Pool) Submit(task func()) error {
	return p.submit(task, nil)
}

// submit runs task on the pool; done, when set, runs after the task has
// returned or its panic has been handled.
func (p *Pool) submit(task func(), done func()) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}

	p.submitted.Add(1)
	err := p.pool.Submit(func() {
		defer func() {
			if r := recover(); r != nil {
				p.panics.Add(1)
				p.onPanic(r)
			} else {
				p.completed.Add(1)
			}
			if done != nil {
				done()
			}
		}()
		task()
	})
	if err != nil {
		p.rejected.Add(1)
		if errors.Is(err, ants.ErrPoolOverload) {
			return ErrPoolOverload
		}
		if errors.Is(err, ants.ErrPoolClosed) {
			return ErrPoolClosed
		}
		return err
	}
	return nil
}

// Go runs every task on the pool and waits for all of them. Tasks that could
// not be submitted, or that were reached after ctx was cancelled, are
// reported through onSkip with the submission error.
func (p *Pool) Go(ctx context.Context, tasks []func(), onSkip func(i int, err error)) {
	var wg sync.WaitGroup
	for i, task := range tasks {
		if err := ctx.Err(); err != nil {
			onSkip(i, err)
			continue
		}
		wg.Add(1)
		if err := p.submit(task, wg.Done); err != nil {
			wg.Done()
			onSkip(i, err)
		}
	}
	wg.Wait()
}

// Release 关闭池并释放资源
func (p *Pool) Release() {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		if err := p.pool.ReleaseTimeout(5 * time.Second); err != nil {
			logger.Warnw("Worker pool release timed out", "name", p.name, "error", err)
			return
		}
		logger.Debugw("Worker pool released", "name", p.name)
	})
}

// Stats returns a snapshot of the task counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Rejected:  p.rejected.Load(),
		Panics:    p.panics.Load(),
	}
}
