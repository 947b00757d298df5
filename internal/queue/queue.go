// Package queue provides an in-process priority job queue with a bounded
// worker pool. It supports two distinct retry mechanisms: automatic
// exponential backoff for handler errors (bounded by MaxAttempts) and
// explicit fixed-delay requeues via RetryAfter, which are unbounded at the
// queue level and budgeted by the handler itself.
package queue

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rxtech-lab/launchpad-deployer/internal/metrics"
	"go.uber.org/zap"
)

var (
	// ErrDuplicateJob is returned when a job with the same dedup key is
	// already queued or running.
	ErrDuplicateJob = errors.New("queue: job with this key is already live")
	// ErrQueueClosed is returned for jobs that could not run because the
	// queue shut down.
	ErrQueueClosed = errors.New("queue: closed")
)

// RetryAfter tells the queue to run the same job again after a fixed delay.
// The reschedule does not count against MaxAttempts and keeps the dedup key
// live.
func RetryAfter(delay time.Duration) error {
	return &retryAfterError{delay: delay}
}

type retryAfterError struct {
	delay time.Duration
}

func (e *retryAfterError) Error() string {
	return fmt.Sprintf("queue: retry after %s", e.delay)
}

// Permanent wraps err so the job fails immediately without automatic retry.
func Permanent(err error) error {
	return &permanentError{err: err}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Handler executes one job. Returning nil completes the job; RetryAfter
// reschedules it; Permanent fails it without retry; any other error triggers
// automatic retry with exponential backoff until MaxAttempts is reached.
type Handler[T any] func(ctx context.Context, job *Job[T]) error

// Job is one unit of queued work.
type Job[T any] struct {
	Payload T

	key         string
	priority    int
	runAt       time.Time
	seq         uint64
	requeues    int
	failures    int
	maxAttempts int
	handle      *Handle
}

// Key returns the dedup key, empty if none was set.
func (j *Job[T]) Key() string { return j.key }

// Priority returns the scheduling priority. Larger runs first.
func (j *Job[T]) Priority() int { return j.priority }

// Requeues returns how many times the job was rescheduled via RetryAfter.
func (j *Job[T]) Requeues() int { return j.requeues }

// Attempt returns how many previous executions failed with a retryable error.
func (j *Job[T]) Attempt() int { return j.failures }

// FinalAttempt reports whether a retryable failure of the current execution
// would exhaust MaxAttempts.
func (j *Job[T]) FinalAttempt() bool { return j.failures >= j.maxAttempts-1 }

// Handle is the async result of an enqueued job.
type Handle struct {
	once sync.Once
	done chan struct{}
	err  error
}

func newHandle() *Handle {
	return &Handle{done: make(chan struct{})}
}

func (h *Handle) complete(err error) {
	h.once.Do(func() {
		h.err = err
		close(h.done)
	})
}

// Done is closed once the job reached a terminal outcome.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Err returns the terminal error, nil on success or while still running.
func (h *Handle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

// Wait blocks until the job finishes or ctx is cancelled.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Option configures a queue.
type Option func(*options)

type options struct {
	workers     int
	maxAttempts int
	backoff     time.Duration
	logger      *zap.Logger
}

// WithWorkers sets the worker pool size.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithMaxAttempts bounds automatic retries; a job fails after n executions
// ended in a retryable error.
func WithMaxAttempts(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

// WithBackoff sets the base delay for automatic retries; attempt k waits
// base << (k-1).
func WithBackoff(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.backoff = d
		}
	}
}

// WithLogger sets the queue logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// EnqueueOption configures a single job.
type EnqueueOption func(*enqueueOptions)

type enqueueOptions struct {
	priority int
	delay    time.Duration
	key      string
}

// WithPriority sets the job priority. Larger values dequeue first; equal
// priorities run in arrival order.
func WithPriority(p int) EnqueueOption {
	return func(o *enqueueOptions) { o.priority = p }
}

// WithDelay schedules the first execution after the given delay.
func WithDelay(d time.Duration) EnqueueOption {
	return func(o *enqueueOptions) { o.delay = d }
}

// WithKey sets a dedup key; at most one live job per key is admitted.
func WithKey(k string) EnqueueOption {
	return func(o *enqueueOptions) { o.key = k }
}

// Queue schedules jobs onto a bounded worker pool.
type Queue[T any] struct {
	name        string
	handler     Handler[T]
	maxAttempts int
	backoff     time.Duration
	logger      *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	delayed delayHeap[T]
	ready   readyHeap[T]
	keys    map[string]struct{}
	seq     uint64
	closed  bool

	wake    chan struct{}
	readyCh chan *Job[T]

	dispatcherWG sync.WaitGroup
	workerWG     sync.WaitGroup
}

// New creates and starts a queue named name with the given handler.
func New[T any](name string, handler Handler[T], opts ...Option) *Queue[T] {
	o := options{
		workers:     4,
		maxAttempts: 3,
		backoff:     2 * time.Second,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue[T]{
		name:        name,
		handler:     handler,
		maxAttempts: o.maxAttempts,
		backoff:     o.backoff,
		logger:      o.logger.With(zap.String("queue", name)),
		ctx:         ctx,
		cancel:      cancel,
		keys:        make(map[string]struct{}),
		wake:        make(chan struct{}, 1),
		readyCh:     make(chan *Job[T]),
	}

	q.dispatcherWG.Add(1)
	go q.dispatch()

	q.workerWG.Add(o.workers)
	for i := 0; i < o.workers; i++ {
		go q.worker()
	}

	return q
}

// Enqueue admits a job and returns its async handle.
func (q *Queue[T]) Enqueue(payload T, opts ...EnqueueOption) (*Handle, error) {
	var o enqueueOptions
	for _, opt := range opts {
		opt(&o)
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, ErrQueueClosed
	}
	if o.key != "" {
		if _, live := q.keys[o.key]; live {
			q.mu.Unlock()
			return nil, ErrDuplicateJob
		}
		q.keys[o.key] = struct{}{}
	}

	q.seq++
	job := &Job[T]{
		Payload:     payload,
		key:         o.key,
		priority:    o.priority,
		runAt:       time.Now().Add(o.delay),
		seq:         q.seq,
		maxAttempts: q.maxAttempts,
		handle:      newHandle(),
	}
	if o.delay > 0 {
		heap.Push(&q.delayed, job)
	} else {
		heap.Push(&q.ready, job)
	}
	q.mu.Unlock()

	metrics.QueueDepth.WithLabelValues(q.name).Inc()
	q.notify()
	return job.handle, nil
}

// Close stops the queue. Running jobs observe context cancellation; jobs that
// never ran fail with ErrQueueClosed.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	q.cancel()
	q.dispatcherWG.Wait()
	close(q.readyCh)
	q.workerWG.Wait()

	q.mu.Lock()
	pending := make([]*Job[T], 0, len(q.ready)+len(q.delayed))
	pending = append(pending, q.ready...)
	pending = append(pending, q.delayed...)
	q.ready = nil
	q.delayed = nil
	q.keys = make(map[string]struct{})
	q.mu.Unlock()

	for _, job := range pending {
		job.handle.complete(ErrQueueClosed)
		metrics.QueueDepth.WithLabelValues(q.name).Dec()
	}
}

func (q *Queue[T]) notify() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// dispatch moves due jobs to workers in priority order.
func (q *Queue[T]) dispatch() {
	defer q.dispatcherWG.Done()

	for {
		q.mu.Lock()
		now := time.Now()
		for q.delayed.Len() > 0 && !q.delayed[0].runAt.After(now) {
			heap.Push(&q.ready, heap.Pop(&q.delayed).(*Job[T]))
		}

		var job *Job[T]
		var wait time.Duration
		if q.ready.Len() > 0 {
			job = heap.Pop(&q.ready).(*Job[T])
		} else if q.delayed.Len() > 0 {
			wait = q.delayed[0].runAt.Sub(now)
		}
		q.mu.Unlock()

		if job != nil {
			select {
			case q.readyCh <- job:
			case <-q.ctx.Done():
				job.handle.complete(ErrQueueClosed)
				metrics.QueueDepth.WithLabelValues(q.name).Dec()
				return
			}
			continue
		}

		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-q.wake:
				timer.Stop()
			case <-q.ctx.Done():
				timer.Stop()
				return
			}
			continue
		}

		select {
		case <-q.wake:
		case <-q.ctx.Done():
			return
		}
	}
}

func (q *Queue[T]) worker() {
	defer q.workerWG.Done()
	for job := range q.readyCh {
		q.run(job)
	}
}

func (q *Queue[T]) run(job *Job[T]) {
	err := q.invoke(job)

	var retryAfter *retryAfterError
	var permanent *permanentError

	switch {
	case err == nil:
		q.finish(job, nil)

	case errors.As(err, &retryAfter):
		job.requeues++
		metrics.JobRetriesTotal.WithLabelValues(q.name, "requeue").Inc()
		q.reschedule(job, retryAfter.delay)

	case errors.As(err, &permanent):
		q.logger.Warn("job failed permanently",
			zap.String("key", job.key),
			zap.Int("attempt", job.failures+1),
			zap.Error(permanent.err))
		job.failures++
		q.finish(job, permanent.err)

	case job.failures+1 >= job.maxAttempts:
		q.logger.Warn("job failed, attempts exhausted",
			zap.String("key", job.key),
			zap.Int("attempts", job.failures+1),
			zap.Error(err))
		job.failures++
		q.finish(job, err)

	default:
		job.failures++
		delay := q.backoff << (job.failures - 1)
		q.logger.Info("job failed, retrying",
			zap.String("key", job.key),
			zap.Int("attempt", job.failures),
			zap.Duration("delay", delay),
			zap.Error(err))
		metrics.JobRetriesTotal.WithLabelValues(q.name, "retry").Inc()
		q.reschedule(job, delay)
	}
}

func (q *Queue[T]) invoke(job *Job[T]) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = Permanent(fmt.Errorf("queue: handler panic: %v", r))
		}
	}()
	return q.handler(q.ctx, job)
}

func (q *Queue[T]) reschedule(job *Job[T], delay time.Duration) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.finish(job, ErrQueueClosed)
		return
	}
	job.runAt = time.Now().Add(delay)
	heap.Push(&q.delayed, job)
	q.mu.Unlock()
	q.notify()
}

func (q *Queue[T]) finish(job *Job[T], err error) {
	if job.key != "" {
		q.mu.Lock()
		delete(q.keys, job.key)
		q.mu.Unlock()
	}

	result := "success"
	if err != nil {
		result = "failed"
	}
	metrics.JobsTotal.WithLabelValues(q.name, result).Inc()
	metrics.QueueDepth.WithLabelValues(q.name).Dec()

	job.handle.complete(err)
}
