// Package issuer implements the per-thread request executor: it drains the
// shared work channel, dispatches each request to a client.Instance, times
// its completion, and records sojourn latency into per-kind warmup or
// measurement histograms.
//
// The in-flight admission window is a buffered channel of tokens, pre-filled
// to the cap, acquired before an item is taken off the channel and released
// on completion (or at once, for an item that is not dispatched). Ordering
// across issuers is intentionally left unconstrained.
package issuer

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/lobsters-bench/harness/pkg/client"
	"github.com/lobsters-bench/harness/pkg/logging"
	"github.com/lobsters-bench/harness/pkg/stats"
	"github.com/lobsters-bench/harness/pkg/telemetry"
	"github.com/lobsters-bench/harness/pkg/workload"
)

// Config configures a single Issuer.
type Config struct {
	ID        int
	Warmup    time.Duration
	Runtime   time.Duration
	InFlight  int // max concurrent dispatches; must be >= 1
	Instance  client.Instance
	In        <-chan workload.WorkerCommand
	Logger    *logging.Logger
	Metrics   *telemetry.Metrics
}

// Result is what an Issuer reports on termination.
type Result struct {
	OpsPerSecond float64
	Warmup       stats.ByKind
	Measurement  stats.ByKind
	// Service is a secondary breakdown of dispatch-to-completion time
	// (excludes queueing), kept alongside the primary sojourn histograms.
	Service stats.ByKind
}

// Issuer is a single per-thread request executor.
type Issuer struct {
	cfg    Config
	tokens chan struct{}

	// start is nil until the first Start barrier, then holds the steady-state
	// clock origin. Written by the accept loop, read by the drainer goroutine
	// in record(); atomic.Pointer gives that cross-goroutine handoff a proper
	// happens-before edge.
	start atomic.Pointer[time.Time]

	warmup      stats.ByKind
	measurement stats.ByKind
	service     stats.ByKind

	completions chan completion
}

type completion struct {
	kind       workload.Kind
	enqueuedAt time.Time
	dispatched time.Time
	completed  time.Time
}

// New constructs an Issuer. InFlight must be >= 1.
func New(cfg Config) (*Issuer, error) {
	if cfg.InFlight < 1 {
		return nil, fmt.Errorf("issuer: in_flight cap must be >= 1, got %d", cfg.InFlight)
	}
	if cfg.Instance == nil {
		return nil, fmt.Errorf("issuer: client instance is required")
	}
	tokens := make(chan struct{}, cfg.InFlight)
	for i := 0; i < cfg.InFlight; i++ {
		tokens <- struct{}{}
	}
	return &Issuer{
		cfg:         cfg,
		tokens:      tokens,
		warmup:      stats.NewByKind(),
		measurement: stats.NewByKind(),
		service:     stats.NewByKind(),
		completions: make(chan completion, cfg.InFlight),
	}, nil
}

// Run drains cfg.In until it closes, dispatching requests to cfg.Instance
// and recording their sojourn latency, and returns the observed throughput
// plus warmup/measurement histograms. It blocks until the channel closes and
// every outstanding operation has completed (or the measurement window has
// elapsed and outstanding operations have drained).
func (iss *Issuer) Run(ctx context.Context) (Result, error) {
	var issued int64
	runStart := time.Now()

	// drainer pulls completions off the buffered completions channel and
	// folds them into the right histogram; it runs concurrently with the
	// accept loop below so a slow completion never blocks acceptance of the
	// *next* item once a token frees up.
	drainerDone := make(chan struct{})
	go func() {
		defer close(drainerDone)
		for c := range iss.completions {
			iss.record(c)
		}
	}()

acceptLoop:
	for {
		// Take a token before receiving, so an issuer at the in-flight cap
		// leaves the next item in the channel instead of holding it.
		<-iss.tokens
		cmd, ok := <-iss.cfg.In
		if !ok || cmd.Req == nil {
			iss.tokens <- struct{}{}
		}
		if !ok {
			break
		}
		switch {
		case cmd.Wait != nil:
			iss.drainOutstanding()
			cmd.Wait.Arrive()

		case cmd.Start != nil:
			now := time.Now()
			iss.start.Store(&now)
			if iss.cfg.Logger != nil {
				iss.cfg.Logger.Info("issuer entering steady state", "issuer", iss.cfg.ID)
			}
			cmd.Start.Arrive()

		case cmd.Req != nil:
			if start := iss.start.Load(); start != nil {
				measureEnd := start.Add(iss.cfg.Warmup).Add(iss.cfg.Runtime)
				if !cmd.Req.EnqueuedAt.Before(measureEnd) {
					// Past the measurement window: stop accepting new work
					// but still drain what's outstanding.
					iss.tokens <- struct{}{}
					break acceptLoop
				}
			}

			if iss.cfg.Metrics != nil {
				iss.cfg.Metrics.InFlightInc(iss.cfg.ID)
			}
			issued++
			req := *cmd.Req
			go iss.dispatch(ctx, req)
		}
	}

	iss.drainOutstanding()
	close(iss.completions)
	<-drainerDone

	elapsed := time.Since(runStart).Seconds()
	var ops float64
	if elapsed > 0 {
		ops = float64(issued) / elapsed
	}

	return Result{
		OpsPerSecond: ops,
		Warmup:       iss.warmup,
		Measurement:  iss.measurement,
		Service:      iss.service,
	}, nil
}

// dispatch calls the client and pushes the completion for the drainer
// goroutine to record, then releases its token. It runs in its own
// goroutine so multiple requests can be outstanding at once, bounded by
// cfg.InFlight.
func (iss *Issuer) dispatch(ctx context.Context, req workload.TimedRequest) {
	defer func() {
		iss.tokens <- struct{}{}
		if iss.cfg.Metrics != nil {
			iss.cfg.Metrics.InFlightDec(iss.cfg.ID)
		}
	}()

	dispatched := time.Now()
	err := iss.cfg.Instance.Handle(ctx, req.Request)
	completed := time.Now()

	if err != nil && iss.cfg.Logger != nil {
		iss.cfg.Logger.Debug("request failed", "kind", req.Request.Kind.String(), "err", err.Error())
	}
	if iss.cfg.Metrics != nil {
		iss.cfg.Metrics.RequestIssued(req.Request.Kind.String(), err == nil)
	}

	iss.completions <- completion{
		kind:       req.Request.Kind,
		enqueuedAt: req.EnqueuedAt,
		dispatched: dispatched,
		completed:  completed,
	}
}

// record buckets one completed request's sojourn time into the warmup or
// measurement histogram for its kind. Completions recorded before iss.start
// has been set by a Start barrier (pure priming traffic) are dropped, not
// measured.
func (iss *Issuer) record(c completion) {
	start := iss.start.Load()
	if start == nil {
		return
	}
	sojournUs := c.completed.Sub(c.enqueuedAt).Microseconds()
	serviceUs := c.completed.Sub(c.dispatched).Microseconds()

	warmupEnd := start.Add(iss.cfg.Warmup)
	if c.enqueuedAt.Before(warmupEnd) {
		iss.warmup[c.kind].Record(sojournUs)
		iss.service[c.kind].Record(serviceUs)
		return
	}
	iss.measurement[c.kind].Record(sojournUs)
	iss.service[c.kind].Record(serviceUs)
}

// drainOutstanding blocks until every outstanding dispatch has returned its
// token, then refills the token pool so subsequent work can proceed. This
// implements the "finish all currently-outstanding operations" half of a
// Wait barrier, and the final drain on channel close.
func (iss *Issuer) drainOutstanding() {
	for i := 0; i < iss.cfg.InFlight; i++ {
		<-iss.tokens
	}
	for i := 0; i < iss.cfg.InFlight; i++ {
		iss.tokens <- struct{}{}
	}
}
