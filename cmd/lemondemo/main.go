// Command lemondemo wires a Runtime together the way example/main.cpp wires
// an Application: register subsystems, spawn entities, subscribe to an
// update event, then drive a few simulated frames, fanning work for each
// frame out across the task scheduler and waiting for it with errgroup.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/dfcore/lemon/ecs"
	"github.com/dfcore/lemon/registry"
	"github.com/dfcore/lemon/runtime"
)

type position struct{ x, y float32 }
type velocity struct{ dx, dy float32 }

// frameEvent is emitted once per simulated frame, after all movement
// tasks for that frame have completed.
type frameEvent struct {
	index int
}

// statsSubsystem counts frames as they complete. It depends on nothing
// else and never fails Initialize.
type statsSubsystem struct {
	log    *slog.Logger
	events *registry.EventBus
	frames int
}

func (s *statsSubsystem) Initialize() bool {
	registry.Subscribe[frameEvent](s.events, s, func(e frameEvent) {
		s.frames++
		s.log.Info("frame observed", "frame", e.index, "total", s.frames)
	})
	return true
}

func (s *statsSubsystem) Dispose() {
	registry.Unsubscribe[frameEvent](s.events, s)
}

func main() {
	frames := flag.Int("frames", 5, "number of simulated frames to run")
	entities := flag.Int("entities", 200, "number of moving entities to spawn")
	workers := flag.Int("workers", 0, "scheduler worker count (0 picks CPU count - 1)")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, nil))

	rt := runtime.New(runtime.Config{
		Logger:  log,
		Workers: *workers,
		OnTaskStart: func(workerIndex int, name string) {
			log.Debug("task start", "worker", workerIndex, "task", name)
		},
	})
	defer rt.Dispose()

	stats, err := registry.Add[*statsSubsystem](rt.Subsystems, &statsSubsystem{log: log, events: rt.Events})
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to register stats subsystem:", err)
		os.Exit(1)
	}

	posType := ecs.RegisterComponent[position](rt.World, ecs.ComponentConfig[position]{})
	velType := ecs.RegisterComponent[velocity](rt.World, ecs.ComponentConfig[velocity]{})

	for i := 0; i < *entities; i++ {
		e := rt.World.Spawn()
		ecs.AddComponent(rt.World, e, posType, position{})
		ecs.AddComponent(rt.World, e, velType, velocity{dx: 1, dy: float32(i%3) - 1})
	}

	ctx := rt.MainContext()
	for frame := 0; frame < *frames; frame++ {
		if err := runFrame(ctx, rt, posType, velType, frame); err != nil {
			fmt.Fprintln(os.Stderr, "frame failed:", err)
			os.Exit(1)
		}
		registry.Emit(rt.Events, frameEvent{index: frame})
	}

	log.Info("demo finished", "moving entities", ecs.Count1(rt.World, posType), "frames observed", stats.frames)
}

// runFrame splits the live-entity population into four root tasks (a fixed
// count, independent of the scheduler's worker count), each integrating a
// slice of entities, and waits for all of them through an errgroup.
func runFrame(ctx context.Context, rt *runtime.Runtime, posType ecs.ComponentType[position], velType ecs.ComponentType[velocity], frame int) error {
	const chunks = 4

	all := rt.World.Entities()
	g, _ := errgroup.WithContext(ctx)

	for c := 0; c < chunks; c++ {
		lo := c * len(all) / chunks
		hi := (c + 1) * len(all) / chunks
		slice := all[lo:hi]

		task := rt.Scheduler.CreateTask(fmt.Sprintf("integrate-frame-%d-chunk-%d", frame, c), func(taskCtx context.Context) {
			for _, e := range slice {
				p := ecs.GetComponent(rt.World, e, posType)
				v := ecs.GetComponent(rt.World, e, velType)
				if p == nil || v == nil {
					continue
				}
				p.x += v.dx
				p.y += v.dy
			}
		})
		rt.Scheduler.RunTask(task)

		g.Go(func() error {
			rt.Scheduler.WaitTask(ctx, task)
			return nil
		})
	}

	return g.Wait()
}
