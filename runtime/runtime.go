// Package runtime wires together the ecs, scheduler, and registry packages
// into the single explicit, host-owned value spec.md §6 calls "the core":
// a Runtime is constructed by the embedding application, not reached via a
// process-global singleton (spec.md §9's note on process-global mutable
// singletons), though nothing prevents an application from keeping one
// Runtime in a package-level variable if it wants process-wide ergonomics.
package runtime

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/dfcore/lemon/ecs"
	"github.com/dfcore/lemon/registry"
	"github.com/dfcore/lemon/scheduler"
)

// Status is the Runtime lifecycle state of spec.md §6.
type Status int32

const (
	StatusIdle Status = iota
	StatusRunning
	StatusDisposed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusRunning:
		return "running"
	case StatusDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// Config configures a Runtime. The zero value picks the scheduler's
// default worker count and slog.Default().
type Config struct {
	Logger  *slog.Logger
	Workers int

	OnWorkerStart func(ctx context.Context, workerIndex int)
	OnWorkerStop  func(ctx context.Context, workerIndex int)
	OnTaskStart   func(workerIndex int, name string)
	OnTaskStop    func(workerIndex int, name string)
}

// Runtime is the explicit, host-owned value wiring an ECS World, a task
// Scheduler, and a subsystem registry with event bus.
type Runtime struct {
	id     uuid.UUID
	log    *slog.Logger
	status atomic.Int32

	World      *ecs.World
	Scheduler  *scheduler.Scheduler
	Subsystems *registry.Subsystems
	Events     *registry.EventBus
}

// New constructs a Runtime in the Running state.
func New(cfg Config) *Runtime {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	id := uuid.New()
	log = log.With("runtime", id)

	r := &Runtime{
		id:  id,
		log: log,
		World: ecs.NewWorld(ecs.WorldConfig{
			Logger: log,
		}),
		Scheduler: scheduler.New(scheduler.Config{
			Logger:        log,
			Workers:       cfg.Workers,
			OnWorkerStart: cfg.OnWorkerStart,
			OnWorkerStop:  cfg.OnWorkerStop,
			OnTaskStart:   cfg.OnTaskStart,
			OnTaskStop:    cfg.OnTaskStop,
		}),
		Subsystems: registry.NewSubsystems(registry.SubsystemsConfig{Logger: log}),
		Events:     registry.NewEventBus(registry.EventBusConfig{Logger: log}),
	}
	r.status.Store(int32(StatusRunning))
	log.Info("runtime initialized")
	return r
}

// ID returns the Runtime's instance id, included in every log line it
// produces.
func (r *Runtime) ID() uuid.UUID { return r.id }

// Status reports the current lifecycle state.
func (r *Runtime) Status() Status { return Status(r.status.Load()) }

// MainContext returns the context stamped with worker index 0 — the
// context a caller on the goroutine that constructed the Runtime should
// pass to Scheduler.WaitTask.
func (r *Runtime) MainContext() context.Context { return r.Scheduler.MainContext() }

// Dispose tears down the scheduler's worker pool and marks the Runtime
// Disposed. The World and registries are left as-is for inspection; call
// World.Reset explicitly if a clean ECS state is also needed.
func (r *Runtime) Dispose() {
	r.status.Store(int32(StatusDisposed))
	r.Scheduler.Dispose()
	r.log.Info("runtime disposed")
}
