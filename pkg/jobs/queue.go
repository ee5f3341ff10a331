package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrStopped is returned when enqueueing onto a queue that is not running.
var ErrStopped = errors.New("queue not running")

// Task is one unit of background work carrying a typed payload.
type Task[T any] struct {
	ID       string
	Payload  T
	Attempt  int
	Enqueued time.Time
}

// Handler processes a task.
type Handler[T any] func(context.Context, Task[T]) error

// Config configures worker pool behaviour.
type Config struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// Queue is an in-memory task dispatcher backed by goroutines. Stop drains tasks that were
// already accepted before workers exit.
type Queue[T any] struct {
	name    string
	handler Handler[T]
	cfg     Config
	logger  *zap.Logger

	tasks   chan Task[T]
	ctx     context.Context
	cancel  context.CancelFunc
	workers sync.WaitGroup
	mu      sync.RWMutex
	running bool
	stopped bool
}

// New builds a queue with the provided handler.
func New[T any](name string, handler Handler[T], cfg Config) *Queue[T] {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 4
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Queue[T]{
		name:    name,
		handler: handler,
		cfg:     cfg,
		logger:  cfg.Logger,
		tasks:   make(chan Task[T], cfg.BufferSize),
	}
}

// Start launches the workers. A queue runs at most once; later calls are no-ops.
func (q *Queue[T]) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running || q.stopped {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.cfg.Workers; i++ {
		q.workers.Add(1)
		go q.work()
	}
	q.running = true
	q.logger.Info("queue started", zap.String("queue", q.name), zap.Int("workers", q.cfg.Workers))
}

// Stop refuses new tasks and waits until the buffered ones are handled.
func (q *Queue[T]) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	q.stopped = true
	q.mu.Unlock()

	close(q.tasks)
	q.workers.Wait()
	q.cancel()
	q.logger.Info("queue stopped", zap.String("queue", q.name))
}

// Enqueue hands a task to the workers. It blocks while the buffer is full.
func (q *Queue[T]) Enqueue(task Task[T]) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if !q.running {
		return fmt.Errorf("%s: %w", q.name, ErrStopped)
	}
	if task.Enqueued.IsZero() {
		task.Enqueued = time.Now().UTC()
	}
	q.tasks <- task
	return nil
}

func (q *Queue[T]) work() {
	defer q.workers.Done()
	for task := range q.tasks {
		q.run(task)
	}
}

// run retries a failing task inline so a draining Stop never races a delayed requeue.
func (q *Queue[T]) run(task Task[T]) {
	for {
		err := q.handler(q.ctx, task)
		if err == nil {
			return
		}
		task.Attempt++
		if task.Attempt > q.cfg.MaxRetries {
			q.logger.Error("task exceeded retries",
				zap.String("queue", q.name),
				zap.String("task_id", task.ID),
				zap.Int("attempts", task.Attempt),
				zap.Error(err),
			)
			return
		}
		q.logger.Warn("task failed, retrying",
			zap.String("queue", q.name),
			zap.String("task_id", task.ID),
			zap.Int("attempt", task.Attempt),
			zap.Error(err),
		)
		time.Sleep(q.cfg.RetryDelay)
	}
}
