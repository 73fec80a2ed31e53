package service

import "context"

// Dispatcher hands side-effect work off the response path. Tasks run
// independently; a failing task is logged by the runner and never
// propagated to the caller.
type Dispatcher interface {
	Enqueue(name string, fn func(ctx context.Context) error)
}

// SyncDispatcher runs tasks inline, ignoring errors. Used in tests and
// as a degraded fallback when no background runner is wired.
type SyncDispatcher struct{}

func (SyncDispatcher) Enqueue(_ string, fn func(ctx context.Context) error) {
	_ = fn(context.Background())
}
