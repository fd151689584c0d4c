package executor

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/dkvs/rpc/common"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"golang.org/x/sync/semaphore"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

var Logger = logger.GetLogger("executor")

// DefaultKeepAlive is how long a worker above the core count waits for work before it exits
const DefaultKeepAlive = 10 * time.Second

// Task is a unit of work submitted to the executor
type Task func() error

// --------------------------------------------------------------------------
// Future
// --------------------------------------------------------------------------

// Future is the pending result of a submitted task
type Future struct {
	done chan struct{}
	err  error
}

// Done is closed once the task has finished
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Err returns the task error. It must only be called after Done is closed.
func (f *Future) Err() error {
	return f.err
}

// Wait blocks until the task has finished or ctx is done
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// job couples a task with its future
type job struct {
	task   Task
	future *Future
}

// run executes the task and completes the future. Panics are reported as errors.
func (j *job) run() {
	defer close(j.future.done)
	defer func() {
		if r := recover(); r != nil {
			j.future.err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	j.future.err = j.task()
}

// --------------------------------------------------------------------------
// Executor
// --------------------------------------------------------------------------

// Executor runs tasks on a bounded set of workers fed by a bounded backlog.
//
// Core workers live until Shutdown. When the backlog is full, additional
// workers are started up to maxThreads; they exit after keepAlive without work.
// When the backlog is full and maxThreads workers exist, the submitting
// goroutine runs the task itself (caller-runs).
type Executor struct {
	coreThreads int
	maxThreads  int
	maxQueued   int
	keepAlive   time.Duration

	queue chan *job
	burst *semaphore.Weighted // admits workers above the core count

	mu       sync.RWMutex // Submit holds it shared while sending on queue, Shutdown exclusively to close it
	shutdown bool
	workers  sync.WaitGroup

	running atomic.Int64
	alive   atomic.Int64

	metrics    *metrics.Set
	submitted  *metrics.Counter
	callerRuns *metrics.Counter
	failed     *metrics.Counter
}

// NewExecutor creates an executor and starts its core workers
func NewExecutor(coreThreads, maxThreads, maxQueued int, keepAlive time.Duration) (*Executor, error) {
	switch {
	case coreThreads <= 0:
		return nil, &common.ConfigurationError{Field: "CoreThreads", Msg: "must be greater than 0"}
	case maxThreads < coreThreads:
		return nil, &common.ConfigurationError{Field: "MaxThreads", Msg: fmt.Sprintf(
			"must not be less than CoreThreads (%d < %d)", maxThreads, coreThreads)}
	case maxQueued <= 0:
		return nil, &common.ConfigurationError{Field: "MaxQueuedRequests", Msg: "must be greater than 0"}
	case keepAlive <= 0:
		return nil, &common.ConfigurationError{Field: "KeepAlive", Msg: "must be greater than 0"}
	}

	e := &Executor{
		coreThreads: coreThreads,
		maxThreads:  maxThreads,
		maxQueued:   maxQueued,
		keepAlive:   keepAlive,
		queue:       make(chan *job, maxQueued),
		burst:       semaphore.NewWeighted(int64(maxThreads - coreThreads)),
		metrics:     metrics.NewSet(),
	}

	e.submitted = e.metrics.NewCounter(`dkvs_executor_tasks_submitted_total`)
	e.callerRuns = e.metrics.NewCounter(`dkvs_executor_caller_runs_total`)
	e.failed = e.metrics.NewCounter(`dkvs_executor_tasks_failed_total`)
	e.metrics.NewGauge(`dkvs_executor_tasks_running`, func() float64 { return float64(e.running.Load()) })
	e.metrics.NewGauge(`dkvs_executor_tasks_queued`, func() float64 { return float64(len(e.queue)) })
	e.metrics.NewGauge(`dkvs_executor_workers`, func() float64 { return float64(e.alive.Load()) })

	for i := 0; i < coreThreads; i++ {
		e.startWorker(nil, false)
	}

	return e, nil
}

// Submit schedules a task. It never blocks longer than the run time of task
// itself: if the backlog and all workers are busy the task runs synchronously
// on the calling goroutine before Submit returns.
func (e *Executor) Submit(task Task) (*Future, error) {
	if task == nil {
		return nil, &common.InvalidArgumentError{Arg: "task", Msg: "must not be nil"}
	}

	j := &job{task: task, future: &Future{done: make(chan struct{})}}

	e.mu.RLock()
	if e.shutdown {
		e.mu.RUnlock()
		return nil, common.ErrExecutorShutdown
	}
	e.submitted.Inc()

	select {
	case e.queue <- j:
		e.mu.RUnlock()
		return j.future, nil
	default:
	}

	// backlog full, grow above the core count if allowed
	if e.burst.TryAcquire(1) {
		e.startWorker(j, true)
		e.mu.RUnlock()
		return j.future, nil
	}
	e.mu.RUnlock()

	// caller runs
	e.callerRuns.Inc()
	Logger.Debugf("Backlog of %d tasks full, running task on caller", e.maxQueued)
	e.execute(j)
	return j.future, nil
}

// Shutdown stops accepting tasks, lets queued and running tasks finish and
// waits for all workers to exit. It is safe to call more than once.
func (e *Executor) Shutdown() {
	e.mu.Lock()
	if !e.shutdown {
		e.shutdown = true
		close(e.queue)
		Logger.Infof("Shutting down executor, %d tasks queued", len(e.queue))
	}
	e.mu.Unlock()

	e.workers.Wait()
}

// Stats is a snapshot of the executor state
type Stats struct {
	Workers    int
	Running    int
	Queued     int
	CallerRuns uint64
}

// Stats returns a snapshot of the executor state
func (e *Executor) Stats() Stats {
	return Stats{
		Workers:    int(e.alive.Load()),
		Running:    int(e.running.Load()),
		Queued:     len(e.queue),
		CallerRuns: e.callerRuns.Get(),
	}
}

// WritePrometheus writes the executor metrics in Prometheus text format
func (e *Executor) WritePrometheus(w io.Writer) {
	e.metrics.WritePrometheus(w)
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// startWorker starts a worker. Burst workers run first (if any) and retire
// after keepAlive without work. Must be called with mu held (shared is enough).
func (e *Executor) startWorker(first *job, burst bool) {
	e.workers.Add(1)
	e.alive.Add(1)

	go func() {
		defer e.workers.Done()
		defer e.alive.Add(-1)

		if first != nil {
			e.execute(first)
		}

		if !burst {
			for j := range e.queue {
				e.execute(j)
			}
			return
		}

		defer e.burst.Release(1)
		for {
			idle := time.NewTimer(e.keepAlive)
			select {
			case j, ok := <-e.queue:
				idle.Stop()
				if !ok {
					return
				}
				e.execute(j)
			case <-idle.C:
				return
			}
		}
	}()
}

// execute runs a job and keeps the counters up to date
func (e *Executor) execute(j *job) {
	e.running.Add(1)
	j.run()
	e.running.Add(-1)
	if j.future.err != nil {
		e.failed.Inc()
	}
}
