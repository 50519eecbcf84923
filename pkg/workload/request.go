// Package workload defines the request model the harness drives against a
// Lobsters-style backend: the tagged LobstersRequest variant, the channel
// payload (WorkerCommand) that carries it between generators and issuers, and
// the discriminant used to key per-kind latency histograms.
package workload

import (
	"sync"
	"time"
)

// UserId, StoryId, CommentId are independent 32-bit ID spaces.
type (
	UserId    = uint32
	StoryId   = uint32
	CommentId = uint32
)

// Vote is the direction of a vote cast on a story or comment.
type Vote int

const (
	Up Vote = iota
	Down
)

func (v Vote) String() string {
	if v == Up {
		return "up"
	}
	return "down"
}

// Kind is the tagged-variant discriminant of a LobstersRequest. It is the
// histogram key: an explicit enum, not a reflection-derived identity.
type Kind int

const (
	Frontpage Kind = iota
	Story
	Login
	Logout
	StoryVote
	CommentVote
	Submit
	Comment
	numKinds // sentinel, not a real kind
)

var kindNames = [numKinds]string{
	Frontpage:  "frontpage",
	Story:      "story",
	Login:      "login",
	Logout:     "logout",
	StoryVote:  "story_vote",
	CommentVote: "comment_vote",
	Submit:     "submit",
	Comment:    "comment",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// NumKinds is the number of distinct request-kind discriminants.
func NumKinds() int { return int(numKinds) }

// AllKinds enumerates every request-kind discriminant, for pre-allocating
// per-kind histogram tables.
func AllKinds() []Kind {
	out := make([]Kind, numKinds)
	for i := range out {
		out[i] = Kind(i)
	}
	return out
}

// Request is a tagged union over the Lobsters request kinds. Only the fields
// relevant to Kind are populated; callers are expected to check Kind before
// reading payload fields, as with any hand-rolled variant in Go.
type Request struct {
	Kind Kind

	// Story, Login/Logout, StoryVote, CommentVote, Submit, Comment all carry
	// a subset of these.
	User    UserId
	Story   StoryId
	Comment CommentId
	Parent  CommentId
	HasParent bool
	VoteDir Vote
	Title   string
}

// WorkerCommand is the work-channel payload: either a timed request to
// dispatch, or one of the two barrier primitives the priming protocol relies
// on.
type WorkerCommand struct {
	// exactly one of Req, Wait, Start is set; the zero value (all nil) is
	// not a valid command.
	Req   *TimedRequest
	Wait  *Barrier
	Start *Barrier
}

// TimedRequest pairs a request with the channel-enqueue instant that is the
// clock origin for sojourn-time measurement, and the acting user (if any).
type TimedRequest struct {
	EnqueuedAt time.Time
	User       *UserId
	Request    Request
}

// Barrier is a one-shot rendezvous point: NewBarrier(n) expects n parties to
// each call Arrive, and every Arrive call blocks until all n have called it.
// Pushed through the work channel like any other command, once per issuer,
// and sized for every issuer plus the harness itself, so every issuer is guaranteed
// to have drained its outstanding work (Wait) or set its steady-state clock
// (Start) before any of them — or the harness — proceeds past the barrier.
type Barrier struct {
	wg *sync.WaitGroup
}

// NewBarrier returns a Barrier that releases once n parties have called
// Arrive.
func NewBarrier(n int) *Barrier {
	wg := &sync.WaitGroup{}
	wg.Add(n)
	return &Barrier{wg: wg}
}

// Arrive signals this party's arrival and blocks until every party has
// arrived.
func (b *Barrier) Arrive() {
	b.wg.Done()
	b.wg.Wait()
}
