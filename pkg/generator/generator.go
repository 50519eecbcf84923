// Package generator produces workload.Request traffic at a target arrival
// rate and pushes it onto the shared work channel. Pacing targets a
// deterministic next-emit deadline that advances by 1/target_rps each
// iteration, rather than a free-running loop or an admission token.
package generator

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/lobsters-bench/harness/pkg/logging"
	"github.com/lobsters-bench/harness/pkg/sampler"
	"github.com/lobsters-bench/harness/pkg/telemetry"
	"github.com/lobsters-bench/harness/pkg/workload"
)

// Mix is the categorical distribution over request-kind discriminants a
// Generator rolls each iteration. Weights need not sum to 1; they are
// normalized internally.
type Mix map[workload.Kind]float64

// DefaultMix is a representative Lobsters-like mix: mostly reads
// (Frontpage/Story), a meaningful slice of voting, and submission/comment
// traffic as the long tail.
func DefaultMix() Mix {
	return Mix{
		workload.Frontpage:   0.55,
		workload.Story:       0.15,
		workload.StoryVote:   0.10,
		workload.CommentVote: 0.08,
		workload.Comment:     0.07,
		workload.Login:       0.025,
		workload.Logout:      0.02,
		workload.Submit:      0.005,
	}
}

// categorical is a normalized, cumulative-weight draw table built once from
// a Mix so each Generator iteration is a single scan of it, mirroring how
// pkg/sampler.Histogram turns bins into a cumulative draw table.
type categorical struct {
	kinds []workload.Kind
	cum   []float64 // cumulative, ends at 1.0
}

func newCategorical(mix Mix) (*categorical, error) {
	if len(mix) == 0 {
		return nil, fmt.Errorf("generator: request-kind mix must not be empty")
	}
	var total float64
	for _, w := range mix {
		if w < 0 {
			return nil, fmt.Errorf("generator: negative mix weight")
		}
		total += w
	}
	if total <= 0 {
		return nil, fmt.Errorf("generator: mix weights must sum to > 0")
	}
	c := &categorical{}
	var running float64
	for k, w := range mix {
		running += w / total
		c.kinds = append(c.kinds, k)
		c.cum = append(c.cum, running)
	}
	return c, nil
}

func (c *categorical) draw(rng *rand.Rand) workload.Kind {
	r := rng.Float64()
	for i, cum := range c.cum {
		if r <= cum {
			return c.kinds[i]
		}
	}
	return c.kinds[len(c.kinds)-1]
}

// FreshIDs tracks the monotonic counters a Generator needs to mint new
// story/comment IDs during steady state (priming assigns its own IDs starting
// at 0): fresh story id =
// base nstories + monotonic counter, and likewise for comments. It is shared
// across all Generator threads via atomics so concurrent generators never
// collide on an ID.
type FreshIDs struct {
	baseStories  int64
	baseComments int64
	nextStory    int64
	nextComment  int64

	// commentsByStory records, per story, the comment IDs already submitted
	// to it so Comment requests can pick a same-story parent. Guarded by mu
	// since multiple generator goroutines append to it concurrently.
	mu             chanMutex
	commentsByStory map[workload.StoryId][]workload.CommentId
}

// chanMutex is a 1-buffered channel used as a mutex: acquire by receive,
// release by send.
type chanMutex chan struct{}

func newChanMutex() chanMutex {
	m := make(chanMutex, 1)
	m <- struct{}{}
	return m
}
func (m chanMutex) Lock()   { <-m }
func (m chanMutex) Unlock() { m <- struct{}{} }

// NewFreshIDs seeds the counters from the sampler's base cardinalities.
func NewFreshIDs(s sampler.Sampler) *FreshIDs {
	return &FreshIDs{
		baseStories:     s.NStories(),
		baseComments:    s.NComments(),
		mu:              newChanMutex(),
		commentsByStory: make(map[workload.StoryId][]workload.CommentId),
	}
}

func (f *FreshIDs) nextStoryID() workload.StoryId {
	n := atomic.AddInt64(&f.nextStory, 1) - 1
	return workload.StoryId(f.baseStories + n)
}

func (f *FreshIDs) nextCommentID() workload.CommentId {
	n := atomic.AddInt64(&f.nextComment, 1) - 1
	return workload.CommentId(f.baseComments + n)
}

// recordComment tracks a just-submitted comment against its story so a
// later Comment request can pick it as a parent.
func (f *FreshIDs) recordComment(story workload.StoryId, comment workload.CommentId) {
	f.mu.Lock()
	f.commentsByStory[story] = append(f.commentsByStory[story], comment)
	f.mu.Unlock()
}

// parentFor returns a uniformly-chosen prior comment on story, if any, with
// 50% probability.
func (f *FreshIDs) parentFor(story workload.StoryId, rng *rand.Rand) (workload.CommentId, bool) {
	if rng.Intn(2) != 0 {
		return 0, false
	}
	f.mu.Lock()
	candidates := f.commentsByStory[story]
	f.mu.Unlock()
	if len(candidates) == 0 {
		return 0, false
	}
	return candidates[rng.Intn(len(candidates))], true
}

// Config configures a single Generator thread.
type Config struct {
	ID         int
	TargetRPS  float64 // arrival rate for this generator alone
	Sampler    sampler.Sampler
	Mix        Mix
	Out        chan<- workload.WorkerCommand
	Start      time.Time
	Warmup     time.Duration
	Runtime    time.Duration
	Grace      time.Duration // extra tail beyond warmup+runtime before the generator stops
	Fresh      *FreshIDs
	RandSource int64
	Logger     *logging.Logger
	Metrics    *telemetry.Metrics
}

// Generator produces requests at cfg.TargetRPS until now >=
// start+warmup+runtime+grace, pushing Request(now, user, req) onto cfg.Out.
type Generator struct {
	cfg  Config
	mix  *categorical
	rng  *rand.Rand
}

// New builds a Generator. TargetRPS must be > 0.
func New(cfg Config) (*Generator, error) {
	if cfg.TargetRPS <= 0 {
		return nil, fmt.Errorf("generator: target rps must be > 0, got %f", cfg.TargetRPS)
	}
	if cfg.Grace <= 0 {
		cfg.Grace = time.Second
	}
	mix, err := newCategorical(cfg.Mix)
	if err != nil {
		return nil, err
	}
	return &Generator{
		cfg: cfg,
		mix: mix,
		rng: rand.New(rand.NewSource(cfg.RandSource)),
	}, nil
}

// Run paces requests at cfg.TargetRPS onto cfg.Out until the deadline
// (start+warmup+runtime+grace) passes, returning the number of requests it
// emitted. It honors ctx cancellation for early shutdown.
func (g *Generator) Run(ctx context.Context) (int64, error) {
	deadline := g.cfg.Start.Add(g.cfg.Warmup).Add(g.cfg.Runtime).Add(g.cfg.Grace)
	interval := time.Duration(float64(time.Second) / g.cfg.TargetRPS)

	var emitted int64
	tNext := time.Now()

	for {
		now := time.Now()
		if !now.Before(deadline) {
			return emitted, nil
		}
		if tNext.After(now) {
			t := time.NewTimer(tNext.Sub(now))
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				return emitted, ctx.Err()
			}
		}

		req, err := g.next()
		if err != nil {
			return emitted, err
		}

		cmd := workload.WorkerCommand{Req: &workload.TimedRequest{
			EnqueuedAt: time.Now(),
			Request:    req,
		}}
		if req.Kind == workload.Login || req.Kind == workload.Logout || req.Kind == workload.StoryVote || req.Kind == workload.CommentVote || req.Kind == workload.Submit || req.Kind == workload.Comment {
			u := req.User
			cmd.Req.User = &u
		}

		select {
		case g.cfg.Out <- cmd:
			emitted++
			if g.cfg.Metrics != nil {
				g.cfg.Metrics.RequestGenerated(req.Kind.String())
			}
		case <-ctx.Done():
			return emitted, ctx.Err()
		}

		tNext = tNext.Add(interval)
		if tNext.Before(now) {
			// We've fallen behind (e.g. a slow iteration); resync to "now"
			// rather than bursting to catch up indefinitely.
			tNext = now
		}
	}
}

// next rolls the mix and draws whatever IDs the chosen kind needs.
func (g *Generator) next() (workload.Request, error) {
	kind := g.mix.draw(g.rng)
	switch kind {
	case workload.Frontpage:
		return workload.Request{Kind: workload.Frontpage}, nil

	case workload.Story:
		story, err := g.cfg.Sampler.StoryForVote(g.rng)
		if err != nil {
			return workload.Request{}, err
		}
		return workload.Request{Kind: workload.Story, Story: story}, nil

	case workload.Login:
		u, err := g.cfg.Sampler.User(g.rng)
		if err != nil {
			return workload.Request{}, err
		}
		return workload.Request{Kind: workload.Login, User: u}, nil

	case workload.Logout:
		u, err := g.cfg.Sampler.User(g.rng)
		if err != nil {
			return workload.Request{}, err
		}
		return workload.Request{Kind: workload.Logout, User: u}, nil

	case workload.StoryVote:
		u, err := g.cfg.Sampler.User(g.rng)
		if err != nil {
			return workload.Request{}, err
		}
		story, err := g.cfg.Sampler.StoryForVote(g.rng)
		if err != nil {
			return workload.Request{}, err
		}
		return workload.Request{Kind: workload.StoryVote, User: u, Story: story, VoteDir: voteDir(g.rng)}, nil

	case workload.CommentVote:
		u, err := g.cfg.Sampler.User(g.rng)
		if err != nil {
			return workload.Request{}, err
		}
		comment, err := g.cfg.Sampler.CommentForVote(g.rng)
		if err != nil {
			return workload.Request{}, err
		}
		return workload.Request{Kind: workload.CommentVote, User: u, Comment: comment, VoteDir: voteDir(g.rng)}, nil

	case workload.Submit:
		u, err := g.cfg.Sampler.User(g.rng)
		if err != nil {
			return workload.Request{}, err
		}
		id := g.cfg.Fresh.nextStoryID()
		return workload.Request{
			Kind: workload.Submit, User: u, Story: id,
			Title: fmt.Sprintf("Story %d", id),
		}, nil

	case workload.Comment:
		u, err := g.cfg.Sampler.User(g.rng)
		if err != nil {
			return workload.Request{}, err
		}
		story, err := g.cfg.Sampler.StoryForComment(g.rng)
		if err != nil {
			return workload.Request{}, err
		}
		id := g.cfg.Fresh.nextCommentID()
		req := workload.Request{Kind: workload.Comment, User: u, Story: story, Comment: id}
		if parent, ok := g.cfg.Fresh.parentFor(story, g.rng); ok {
			req.Parent = parent
			req.HasParent = true
		}
		g.cfg.Fresh.recordComment(story, id)
		return req, nil

	default:
		return workload.Request{}, fmt.Errorf("generator: unhandled kind %v", kind)
	}
}

func voteDir(rng *rand.Rand) workload.Vote {
	if rng.Intn(2) == 0 {
		return workload.Up
	}
	return workload.Down
}
