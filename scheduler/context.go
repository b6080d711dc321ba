package scheduler

import "context"

type workerIndexKey struct{}

// withWorkerIndex returns a context carrying idx as the calling goroutine's
// worker index. Go has no portable thread/goroutine identity (unlike the
// original's std::thread::id-keyed map), so worker-index lookup is
// redesigned around explicit context propagation: the worker loop stamps
// its own index once, and every task closure it runs receives that
// context.
func withWorkerIndex(parent context.Context, idx int) context.Context {
	return context.WithValue(parent, workerIndexKey{}, idx)
}

// WorkerIndex reports the worker index stamped on ctx, if any. A context
// not derived from a Scheduler's worker loop or MainContext carries none.
func WorkerIndex(ctx context.Context) (int, bool) {
	idx, ok := ctx.Value(workerIndexKey{}).(int)
	return idx, ok
}

// IsMainThread reports whether ctx is (derived from) the context of the
// goroutine that constructed the Scheduler, index 0 by convention.
func IsMainThread(ctx context.Context) bool {
	idx, ok := WorkerIndex(ctx)
	return ok && idx == 0
}
