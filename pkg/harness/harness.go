// Package harness is the orchestrator: it builds the sampler, wires
// generators and issuers around a shared work channel, drives the priming
// protocol and its ordering barriers, switches to steady state, joins
// everything, and returns aggregate statistics for one run.
package harness

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/lobsters-bench/harness/pkg/client"
	"github.com/lobsters-bench/harness/pkg/config"
	"github.com/lobsters-bench/harness/pkg/generator"
	"github.com/lobsters-bench/harness/pkg/issuer"
	"github.com/lobsters-bench/harness/pkg/logging"
	"github.com/lobsters-bench/harness/pkg/sampler"
	"github.com/lobsters-bench/harness/pkg/stats"
	"github.com/lobsters-bench/harness/pkg/telemetry"
	"github.com/lobsters-bench/harness/pkg/workload"
)

// generatorRPSCeiling bounds how much arrival rate a single generator
// goroutine is asked to produce before the harness spawns another one
// alongside it; pacing accuracy degrades well before a real process could
// issue more than this many sends/sec down one channel.
const generatorRPSCeiling = 100_000

// Config wires everything Run needs for one harness invocation.
type Config struct {
	Factory  client.Factory
	Workload *config.Config

	// ChannelBuffer bounds the shared work channel. The harness uses a
	// bounded channel rather than the unbounded one an open-loop generator
	// would ideally have, trading "generators never stall" for bounded
	// memory under sustained overload; pick a buffer comfortably larger than
	// priming volume plus one second of steady-state arrivals.
	ChannelBuffer int

	Seed int64 // drives priming's user/parent selection, reproducibly

	Logger  *logging.Logger
	Metrics *telemetry.Metrics
}

// Result is the aggregate outcome of one harness run.
type Result struct {
	AchievedRPS float64
	Warmup      stats.ByKind
	Measurement stats.ByKind
	Service     stats.ByKind
	Dropped     int
}

// Harness runs the full priming-then-steady-state protocol once.
type Harness struct {
	cfg     Config
	sampler sampler.Sampler
}

// New builds the Harness's sampler from cfg.Workload and validates wiring.
func New(cfg Config) (*Harness, error) {
	if cfg.Factory == nil {
		return nil, fmt.Errorf("harness: client factory is required")
	}
	if cfg.Workload == nil {
		return nil, fmt.Errorf("harness: workload config is required")
	}
	if cfg.ChannelBuffer <= 0 {
		cfg.ChannelBuffer = 4096
	}

	s, err := buildSampler(cfg.Workload)
	if err != nil {
		return nil, err
	}

	return &Harness{cfg: cfg, sampler: s}, nil
}

func buildSampler(wc *config.Config) (sampler.Sampler, error) {
	tables := wc.BuildTables()
	switch wc.SamplerKind {
	case "", "histogram":
		return sampler.NewHistogramSampler(tables, wc.MemScale)
	case "uniform":
		return sampler.NewUniformSampler(tables, wc.MemScale)
	default:
		return nil, fmt.Errorf("harness: unknown sampler kind %q", wc.SamplerKind)
	}
}

// Run executes one priming-then-steady-state pass and returns the aggregate
// result. It blocks until both priming and the steady-state window (plus
// grace) have completed and every issuer has joined.
func (h *Harness) Run(ctx context.Context) (Result, error) {
	wc := h.cfg.Workload
	nthreads := wc.Threads

	if wc.ShouldPrime() {
		if err := h.cfg.Factory.Setup(ctx); err != nil {
			return Result{}, fmt.Errorf("harness: setup: %w", err)
		}
	}

	ch := make(chan workload.WorkerCommand, h.cfg.ChannelBuffer)

	issuers := make([]*issuer.Issuer, nthreads)
	for i := 0; i < nthreads; i++ {
		inst, err := h.cfg.Factory.Spawn(ctx)
		if err != nil {
			return Result{}, fmt.Errorf("harness: spawn issuer %d: %w", i, err)
		}
		var logger *logging.Logger
		if h.cfg.Logger != nil {
			logger = h.cfg.Logger.WithField("issuer", i)
		}
		iss, err := issuer.New(issuer.Config{
			ID:       i,
			Warmup:   wc.Warmup,
			Runtime:  wc.Runtime,
			InFlight: wc.InFlight,
			Instance: inst,
			In:       ch,
			Logger:   logger,
			Metrics:  h.cfg.Metrics,
		})
		if err != nil {
			return Result{}, fmt.Errorf("harness: build issuer %d: %w", i, err)
		}
		issuers[i] = iss
	}

	type issuerOutcome struct {
		res issuer.Result
		err error
	}
	outcomes := make(chan issuerOutcome, nthreads)
	var issuerWG sync.WaitGroup
	for _, iss := range issuers {
		issuerWG.Add(1)
		go func(iss *issuer.Issuer) {
			defer issuerWG.Done()
			defer func() {
				if r := recover(); r != nil {
					outcomes <- issuerOutcome{err: fmt.Errorf("harness: issuer panic: %v", r)}
				}
			}()
			res, err := iss.Run(ctx)
			outcomes <- issuerOutcome{res: res, err: err}
		}(iss)
	}

	rng := rand.New(rand.NewSource(h.cfg.Seed))
	if wc.ShouldPrime() {
		if h.cfg.Logger != nil {
			h.cfg.Logger.Info("priming database")
		}
		if err := h.prime(ch, nthreads, rng); err != nil {
			return Result{}, fmt.Errorf("harness: priming: %w", err)
		}
		if h.cfg.Logger != nil {
			h.cfg.Logger.Info("finished priming database")
		}
	} else {
		// Still log every user in, mirroring the unconditional login loop
		// the priming protocol otherwise opens with.
		if err := h.loginAll(ch); err != nil {
			return Result{}, fmt.Errorf("harness: login: %w", err)
		}
	}

	startBarrier := workload.NewBarrier(nthreads + 1)
	for i := 0; i < nthreads; i++ {
		ch <- workload.WorkerCommand{Start: startBarrier}
	}
	startBarrier.Arrive()
	start := time.Now()
	if h.cfg.Logger != nil {
		h.cfg.Logger.Info("entering steady state", "warmup", wc.Warmup.String(), "runtime", wc.Runtime.String())
	}

	fresh := generator.NewFreshIDs(h.sampler)
	targetRPS := wc.TargetRPS()
	numGenerators := int(math.Ceil(targetRPS / generatorRPSCeiling))
	if numGenerators < 1 {
		numGenerators = 1
	}
	perGeneratorRPS := targetRPS / float64(numGenerators)

	mix := wc.Mix
	genMix := generator.Mix{}
	if len(mix) == 0 {
		genMix = generator.DefaultMix()
	} else {
		for name, w := range mix {
			k, err := kindByName(name)
			if err != nil {
				return Result{}, fmt.Errorf("harness: %w", err)
			}
			genMix[k] = w
		}
	}

	var genWG sync.WaitGroup
	genErrs := make(chan error, numGenerators)
	for i := 0; i < numGenerators; i++ {
		gen, err := generator.New(generator.Config{
			ID:         i,
			TargetRPS:  perGeneratorRPS,
			Sampler:    h.sampler,
			Mix:        genMix,
			Out:        ch,
			Start:      start,
			Warmup:     wc.Warmup,
			Runtime:    wc.Runtime,
			Grace:      wc.Grace,
			Fresh:      fresh,
			RandSource: h.cfg.Seed + int64(i) + 1,
			Logger:     h.cfg.Logger,
			Metrics:    h.cfg.Metrics,
		})
		if err != nil {
			return Result{}, fmt.Errorf("harness: build generator %d: %w", i, err)
		}
		genWG.Add(1)
		go func(gen *generator.Generator) {
			defer genWG.Done()
			if _, err := gen.Run(ctx); err != nil && err != context.Canceled {
				genErrs <- err
			}
		}(gen)
	}

	genWG.Wait()
	close(ch)

	issuerWG.Wait()
	close(outcomes)

	dropped := len(ch)
	if h.cfg.Metrics != nil {
		h.cfg.Metrics.DroppedAtEnd(dropped)
	}

	result := Result{
		Warmup:      stats.NewByKind(),
		Measurement: stats.NewByKind(),
		Service:     stats.NewByKind(),
		Dropped:     dropped,
	}
	var totalRPS float64
	for oc := range outcomes {
		if oc.err != nil {
			return Result{}, fmt.Errorf("harness: issuer failed: %w", oc.err)
		}
		result.Warmup.Merge(oc.res.Warmup)
		result.Measurement.Merge(oc.res.Measurement)
		result.Service.Merge(oc.res.Service)
		totalRPS += oc.res.OpsPerSecond
	}
	result.AchievedRPS = totalRPS

	select {
	case err := <-genErrs:
		return result, fmt.Errorf("harness: generator failed: %w", err)
	default:
	}

	return result, nil
}

// loginAll enqueues a Login for every user the sampler knows about. This
// runs unconditionally, whether or not the rest of priming executes.
func (h *Harness) loginAll(ch chan<- workload.WorkerCommand) error {
	nusers := h.sampler.NUsers()
	now := time.Now()
	for u := int64(0); u < nusers; u++ {
		uid := workload.UserId(u)
		ch <- workload.WorkerCommand{Req: &workload.TimedRequest{
			EnqueuedAt: now,
			User:       &uid,
			Request:    workload.Request{Kind: workload.Login, User: uid},
		}}
	}
	return nil
}

// prime runs the priming protocol: log every user in, then Barrier A, submit
// base stories, comment rounds interleaved with per-round barriers, and
// Barrier B.
func (h *Harness) prime(ch chan<- workload.WorkerCommand, nthreads int, rng *rand.Rand) error {
	if err := h.loginAll(ch); err != nil {
		return err
	}
	nstories := h.sampler.NStories()
	ncomments := h.sampler.NComments()

	barrierA := workload.NewBarrier(nthreads + 1)
	for i := 0; i < nthreads; i++ {
		ch <- workload.WorkerCommand{Wait: barrierA}
	}
	barrierA.Arrive()

	if nstories <= 0 {
		return fmt.Errorf("nstories must be >= 1")
	}
	for id := int64(0); id < nstories; id++ {
		user, err := h.sampler.User(rng)
		if err != nil {
			return err
		}
		storyID := workload.StoryId(id)
		ch <- workload.WorkerCommand{Req: &workload.TimedRequest{
			EnqueuedAt: time.Now(),
			Request: workload.Request{
				Kind: workload.Submit, User: user, Story: storyID,
				Title: fmt.Sprintf("Base article %d", storyID),
			},
		}}
	}

	commentsByStory := make(map[int64][]workload.CommentId)
	for id := int64(0); id < ncomments; id++ {
		story := id % nstories
		if story == 0 {
			b := workload.NewBarrier(nthreads + 1)
			for i := 0; i < nthreads; i++ {
				ch <- workload.WorkerCommand{Wait: b}
			}
			b.Arrive()
		}

		user, err := h.sampler.User(rng)
		if err != nil {
			return err
		}
		commentID := workload.CommentId(id)
		req := workload.Request{Kind: workload.Comment, User: user, Story: workload.StoryId(story), Comment: commentID}
		if rng.Intn(2) == 0 {
			if candidates := commentsByStory[story]; len(candidates) > 0 {
				req.Parent = candidates[rng.Intn(len(candidates))]
				req.HasParent = true
			}
		}
		commentsByStory[story] = append(commentsByStory[story], commentID)

		ch <- workload.WorkerCommand{Req: &workload.TimedRequest{
			EnqueuedAt: time.Now(),
			Request:    req,
		}}
	}

	barrierB := workload.NewBarrier(nthreads + 1)
	for i := 0; i < nthreads; i++ {
		ch <- workload.WorkerCommand{Wait: barrierB}
	}
	barrierB.Arrive()

	return nil
}

func kindByName(name string) (workload.Kind, error) {
	for _, k := range workload.AllKinds() {
		if k.String() == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown request kind %q in mix", name)
}
