package scheduler

import (
	"context"
	"fmt"
	stdruntime "runtime"
	"sync"

	"log/slog"

	"github.com/cespare/xxhash/v2"
	"github.com/dfcore/lemon/internal/diagnostic"
)

const inlineNameLimit = 32

// debugTag shortens long task-name debug labels to a stable, bounded-size
// tag for log lines, hashing the full name with xxhash rather than
// truncating it silently.
func debugTag(name string) string {
	if len(name) <= inlineNameLimit {
		return name
	}
	return fmt.Sprintf("%s~%016x", name[:inlineNameLimit], xxhash.Sum64String(name))
}

// Config configures a Scheduler. The zero value picks CPU count - 1
// workers (minimum 1) and slog.Default().
type Config struct {
	Logger *slog.Logger
	// Workers is the fixed worker pool size. 0 picks runtime.NumCPU()-1,
	// clamped to a minimum of 1.
	Workers int

	// OnWorkerStart/OnWorkerStop are invoked once per worker goroutine, at
	// the start and end of its loop, receiving its worker context and
	// index. OnTaskStart/OnTaskStop are invoked around every task
	// execution (by a worker or by a helping WaitTask caller), receiving
	// the worker index (-1 if the caller is not a registered worker) and
	// the task's name.
	OnWorkerStart func(ctx context.Context, workerIndex int)
	OnWorkerStop  func(ctx context.Context, workerIndex int)
	OnTaskStart   func(workerIndex int, name string)
	OnTaskStop    func(workerIndex int, name string)
}

// Scheduler is a fixed pool of worker goroutines draining a single FIFO
// queue of runnable TaskHandles, backed by a mutex-protected recyclable
// task pool (taskTable) and atomic per-task job counters.
type Scheduler struct {
	log     *slog.Logger
	cfg     Config
	table   *taskTable
	mainCtx context.Context

	mu    sync.Mutex
	cond  *sync.Cond
	queue []TaskHandle
	stop  bool
	wg    sync.WaitGroup
}

// New constructs a Scheduler and starts its worker pool. The goroutine
// calling New is designated "main" (worker index 0), matching the
// original's convention that the thread calling initialize is main.
func New(cfg Config) *Scheduler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("subsystem", "scheduler.Scheduler")

	workers := cfg.Workers
	if workers <= 0 {
		workers = stdruntime.NumCPU() - 1
		if workers < 1 {
			workers = 1
		}
	}

	s := &Scheduler{
		log:     log,
		cfg:     cfg,
		table:   newTaskTable(),
		mainCtx: withWorkerIndex(context.Background(), 0),
	}
	s.cond = sync.NewCond(&s.mu)

	for i := 1; i <= workers; i++ {
		s.wg.Add(1)
		go s.workerLoop(i)
	}
	log.Info("scheduler started", "workers", workers)
	return s
}

// MainContext returns the context stamped with worker index 0, for use by
// the goroutine that constructed the Scheduler when calling WaitTask.
func (s *Scheduler) MainContext() context.Context { return s.mainCtx }

// CreateTask acquires a task slot, sets jobs=1, and stores closure. The
// task is not yet scheduled; call RunTask to make it runnable.
func (s *Scheduler) CreateTask(name string, closure func(context.Context)) TaskHandle {
	return s.table.create(name, closure, InvalidTask)
}

// CreateTaskAsChild is CreateTask but additionally atomically increments
// parent's jobs counter before recording parent on the child. If parent's
// jobs counter was already 0 (the parent already completed, or parent is a
// stale handle), the child becomes an orphan: no parent is recorded and
// the increment, if it happened, is rolled back. This is the sole
// acceptable race window (Invariant S1).
func (s *Scheduler) CreateTaskAsChild(parent TaskHandle, name string, closure func(context.Context)) TaskHandle {
	orphan := InvalidTask
	if parent.IsValid() {
		if newJobs, ok := s.table.incrementJobs(parent, 1); ok {
			if newJobs == 1 {
				// jobs was 0 before our increment: parent already
				// completed. Roll back and orphan the child.
				s.table.incrementJobs(parent, -1)
			} else {
				orphan = parent
			}
		}
	}
	return s.table.create(name, closure, orphan)
}

// RunTask pushes h onto the runnable queue and wakes one worker. Fatal if
// h is InvalidTask. If the scheduler is shutting down, the task is
// silently dropped (spec.md §7's scheduler-shutdown-in-flight behavior).
func (s *Scheduler) RunTask(h TaskHandle) {
	if !h.IsValid() {
		diagnostic.Fatalf(s.log, "scheduler: RunTask called with an invalid TaskHandle")
	}
	s.mu.Lock()
	if s.stop {
		s.mu.Unlock()
		s.log.Warn("task dropped: scheduler is shutting down", "task", h)
		return
	}
	s.queue = append(s.queue, h)
	s.mu.Unlock()
	s.cond.Signal()
}

// IsComplete reports whether h's jobs counter has reached 0. A stale
// handle (version mismatch, or never-reused index) reports complete, not
// incomplete (Invariant T1).
func (s *Scheduler) IsComplete(h TaskHandle) bool {
	t, ok := s.table.get(h)
	if !ok {
		return true
	}
	return t.jobs.Load() == 0
}

// WaitTask blocks the calling goroutine until h is complete or the
// scheduler is shutting down. While waiting, the caller helps: it pops and
// runs one ready task from the queue if one is available, or yields.
// Safe to call from any goroutine, including recursively — a task's
// closure may WaitTask on its own children.
func (s *Scheduler) WaitTask(ctx context.Context, h TaskHandle) {
	for !s.IsComplete(h) {
		if s.isStopped() {
			return
		}
		if !s.tryExecuteOne(ctx) {
			stdruntime.Gosched()
		}
	}
}

// Dispose signals all workers to stop, lets in-flight tasks complete, and
// waits for every worker goroutine to exit. After Dispose returns,
// RunTask silently drops further tasks.
func (s *Scheduler) Dispose() {
	s.mu.Lock()
	s.stop = true
	s.mu.Unlock()
	s.cond.Broadcast()
	s.wg.Wait()
	s.log.Info("scheduler disposed")
}

func (s *Scheduler) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stop
}

// popBlocking waits on the queue condition for a ready task or shutdown.
// Returns (handle, true) if a task was popped, or (_, false) if the
// scheduler stopped with an empty queue.
func (s *Scheduler) popBlocking() (TaskHandle, bool) {
	s.mu.Lock()
	for len(s.queue) == 0 && !s.stop {
		s.cond.Wait()
	}
	if len(s.queue) == 0 {
		s.mu.Unlock()
		return InvalidTask, false
	}
	h := s.queue[0]
	s.queue = s.queue[1:]
	s.mu.Unlock()
	return h, true
}

// tryExecuteOne pops and runs one ready task without blocking. Returns
// false if the queue was empty.
func (s *Scheduler) tryExecuteOne(ctx context.Context) bool {
	s.mu.Lock()
	if len(s.queue) == 0 {
		s.mu.Unlock()
		return false
	}
	h := s.queue[0]
	s.queue = s.queue[1:]
	s.mu.Unlock()

	idx, ok := WorkerIndex(ctx)
	if !ok {
		idx = -1
	}
	s.execute(ctx, idx, h)
	return true
}

func (s *Scheduler) workerLoop(index int) {
	defer s.wg.Done()
	ctx := withWorkerIndex(context.Background(), index)
	if s.cfg.OnWorkerStart != nil {
		s.cfg.OnWorkerStart(ctx, index)
	}
	for {
		h, ok := s.popBlocking()
		if !ok {
			break
		}
		s.execute(ctx, index, h)
	}
	if s.cfg.OnWorkerStop != nil {
		s.cfg.OnWorkerStop(ctx, index)
	}
}

// execute runs h's closure and drives completion. Looks up the task
// first; a stale handle (version mismatch) is silently skipped, matching
// the original's "if the version does not match, skip" step.
func (s *Scheduler) execute(ctx context.Context, workerIndex int, h TaskHandle) {
	t, ok := s.table.get(h)
	if !ok {
		return
	}
	name := t.name // captured before finish() may clear it
	if s.cfg.OnTaskStart != nil {
		s.cfg.OnTaskStart(workerIndex, name)
	}
	s.log.Debug("task start", "worker", workerIndex, "task", debugTag(name))
	t.closure(ctx)
	s.finish(h)
	s.log.Debug("task stop", "worker", workerIndex, "task", debugTag(name))
	if s.cfg.OnTaskStop != nil {
		s.cfg.OnTaskStop(workerIndex, name)
	}
}

// finish atomically decrements h's jobs counter. If it reaches 0, the
// record is invalidated and returned to the free pool, and the parent (if
// any) is recursively finished — this is how a parent's jobs counter ever
// reaches 0 once every child has completed.
func (s *Scheduler) finish(h TaskHandle) {
	t, ok := s.table.get(h)
	if !ok {
		return
	}
	if t.jobs.Add(-1) != 0 {
		return
	}
	parent := t.parent
	s.table.finishRelease(h)
	if parent.IsValid() {
		s.finish(parent)
	}
}
