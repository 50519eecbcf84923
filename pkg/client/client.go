// Package client defines the narrow contract the harness consumes to turn a
// logical workload.Request into a concrete call against the system under
// test. Concrete adapters (HTTP, a DB driver, …) are external collaborators;
// this package only fixes the shape of the seam.
package client

import (
	"context"

	"github.com/lobsters-bench/harness/pkg/workload"
)

// Instance is a per-issuer client bound to that issuer for the lifetime of
// the run: client instances are created once per issuer thread and owned by
// that thread for the duration of the run.
//
// The issuer dispatches onto this interface from its own goroutine, so
// Handle is an ordinary blocking call rather than a future — one goroutine
// per in-flight request, bounded by the issuer's admission cap, with sojourn
// time measured from channel-enqueue regardless of how long Handle blocks.
type Instance interface {
	// Handle dispatches one request and blocks until it completes.
	// Completion is signaled by return (nil or non-nil error) regardless of
	// whether the backend considered the request successful; the failure
	// mode is opaque to the issuer and is never retried.
	Handle(ctx context.Context, req workload.Request) error
}

// Factory constructs Instances and performs one-time schema setup. It is
// shared across issuer-thread construction guarded by mutual exclusion (the
// harness does this), but touched only during spawn — never promoted to
// long-lived shared state.
type Factory interface {
	// Setup performs idempotent schema bootstrap. Called once before any
	// traffic, and only when priming.
	Setup(ctx context.Context) error

	// Spawn creates a per-issuer client instance.
	Spawn(ctx context.Context) (Instance, error)
}
