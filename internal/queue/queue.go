// Package queue provides the FIFO work queue that serializes conversion jobs.
//
// The queue is deliberately minimal: producers enqueue from any goroutine, a
// single worker consumes in strict arrival order, and jobs never run
// concurrently. There is no priority, no cancellation, and no deduplication —
// the orchestrator owns those decisions. The only feedback producers get is
// the advisory position at enqueue time and the current depth.
//
// A job that panics is recovered, logged, and counted as failed; the worker
// loop always proceeds to the next job.
package queue

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

var (
	// queueDepth gauges pending jobs plus the in-flight one.
	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "vinyl_queue_depth",
			Help: "Number of queued conversion jobs, including the in-flight one.",
		},
	)

	// jobsTotal counts finished jobs by outcome.
	jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vinyl_queue_jobs_total",
			Help: "Total conversion jobs processed, by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(queueDepth, jobsTotal)
}

// Job is one unit of queued work. Run executes to completion exactly once on
// the worker goroutine; returning an error marks the job failed but has no
// further effect on the queue.
type Job struct {
	// ID identifies the job in logs.
	ID string
	// Run performs the work. The context carries values from the process
	// context but is never canceled mid-job: once started, a job finishes.
	Run func(ctx context.Context) error
}

// Queue is a FIFO job queue consumed by exactly one worker goroutine.
// It is safe for concurrent producers.
type Queue struct {
	log zerolog.Logger

	mu       sync.Mutex
	pending  []Job
	inflight bool

	wake chan struct{}
	done chan struct{}
	once sync.Once
}

// New constructs an idle Queue. Call Start to launch the worker.
func New(log zerolog.Logger) *Queue {
	return &Queue{
		log:  log.With().Str("component", "queue").Logger(),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Enqueue appends job and returns its 1-based position: the count of jobs at
// or ahead of it (including the in-flight one) at enqueue time. The position
// is informational and may be stale by the time the job runs.
func (q *Queue) Enqueue(job Job) int {
	q.mu.Lock()
	q.pending = append(q.pending, job)
	pos := len(q.pending)
	if q.inflight {
		pos++
	}
	queueDepth.Set(float64(q.depthLocked()))
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return pos
}

// Size returns the current depth, including the in-flight job.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.depthLocked()
}

func (q *Queue) depthLocked() int {
	n := len(q.pending)
	if q.inflight {
		n++
	}
	return n
}

// Start launches the worker goroutine. It is safe to call more than once;
// only the first call has effect. The worker drains jobs in FIFO order until
// ctx is canceled, finishing the in-flight job before exiting.
func (q *Queue) Start(ctx context.Context) {
	q.once.Do(func() {
		go q.run(ctx)
	})
}

// Wait blocks until the worker goroutine has exited. Useful for graceful
// shutdown after canceling the Start context.
func (q *Queue) Wait() {
	<-q.done
}

func (q *Queue) run(ctx context.Context) {
	defer close(q.done)
	// Jobs keep the process context's values (trace metadata and the like)
	// but must never be canceled mid-run.
	jobCtx := context.WithoutCancel(ctx)

	for {
		select {
		case <-ctx.Done():
			// Pending jobs are dropped at shutdown; only the in-flight job
			// was guaranteed to finish.
			return
		default:
		}

		job, ok := q.take()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-q.wake:
				continue
			}
		}

		q.execute(jobCtx, job)

		q.mu.Lock()
		q.inflight = false
		queueDepth.Set(float64(q.depthLocked()))
		q.mu.Unlock()
	}
}

// take pops the head job and marks the queue busy. It returns false when no
// work is pending.
func (q *Queue) take() (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return Job{}, false
	}
	job := q.pending[0]
	q.pending = q.pending[1:]
	q.inflight = true
	return job, true
}

// execute runs one job, converting panics into failures so the loop survives.
func (q *Queue) execute(ctx context.Context, job Job) {
	defer func() {
		if r := recover(); r != nil {
			jobsTotal.WithLabelValues("panic").Inc()
			q.log.Error().
				Str("job_id", job.ID).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("job panicked")
		}
	}()

	if err := job.Run(ctx); err != nil {
		jobsTotal.WithLabelValues("error").Inc()
		q.log.Warn().Str("job_id", job.ID).Err(err).Msg("job failed")
		return
	}
	jobsTotal.WithLabelValues("ok").Inc()
	q.log.Debug().Str("job_id", job.ID).Msg("job done")
}
