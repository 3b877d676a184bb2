package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	appErr "judger/pkg/errors"
	"judger/pkg/utils/logger"
)

// Pool runs tasks on a fixed number of workers. Submit never blocks: tasks
// wait in an unbounded FIFO queue until a worker is free.
type Pool struct {
	name    string
	workers *ants.Pool

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool

	inflight sync.WaitGroup
	done     chan struct{}
}

// NewPool creates a pool with size workers.
func NewPool(name string, size int) (*Pool, error) {
	if size <= 0 {
		return nil, appErr.ValidationError("pool_size", "must be positive")
	}
	p := &Pool{name: name, done: make(chan struct{})}
	p.cond = sync.NewCond(&p.mu)
	workers, err := ants.NewPool(size, ants.WithPanicHandler(func(rec interface{}) {
		logger.Error(context.Background(), "pool task panicked",
			zap.String("pool", name),
			zap.String("panic", fmt.Sprint(rec)),
			zap.Stack("stack"),
		)
	}))
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.InternalServerError, "create %s pool failed", name)
	}
	p.workers = workers
	go p.dispatch()
	return p, nil
}

// Submit enqueues a task. It fails only after Shutdown.
func (p *Pool) Submit(task func()) error {
	if task == nil {
		return appErr.ValidationError("task", "required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return appErr.Newf(appErr.JudgeQueueClosed, "%s pool is shut down", p.name)
	}
	p.inflight.Add(1)
	p.queue = append(p.queue, task)
	p.cond.Signal()
	return nil
}

// Queued returns the number of tasks waiting for a worker.
func (p *Pool) Queued() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Running returns the number of busy workers.
func (p *Pool) Running() int {
	return p.workers.Running()
}

// Cap returns the number of workers.
func (p *Pool) Cap() int {
	return p.workers.Cap()
}

// Shutdown stops intake and waits until queued and running tasks finish or
// ctx ends, whichever comes first.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		p.inflight.Wait()
		<-p.done
		close(drained)
	}()
	select {
	case <-drained:
		p.workers.Release()
		return nil
	case <-ctx.Done():
		logger.Warn(ctx, "pool shutdown deadline reached",
			zap.String("pool", p.name),
			zap.Int("queued", p.Queued()),
			zap.Int("running", p.Running()),
		)
		return ctx.Err()
	}
}

func (p *Pool) dispatch() {
	defer close(p.done)
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		task := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		p.mu.Unlock()

		// ants blocks here while every worker is busy.
		if err := p.workers.Submit(func() {
			defer p.inflight.Done()
			task()
		}); err != nil {
			logger.Error(context.Background(), "dispatch task failed", zap.String("pool", p.name), zap.Error(err))
			p.inflight.Done()
		}
	}
}
