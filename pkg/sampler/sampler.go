package sampler

import (
	"fmt"
	"math/rand"

	"github.com/lobsters-bench/harness/pkg/workload"
)

// Sampler decides which entity IDs a generated request addresses. It bundles
// four empirical draws (user, story-for-vote, comment-for-vote,
// story-for-comment) plus the cardinalities those draws imply, all pure
// given an *rand.Rand — no Sampler implementation may carry mutable state
// across calls.
type Sampler interface {
	User(rng *rand.Rand) (workload.UserId, error)
	NUsers() int64

	StoryForVote(rng *rand.Rand) (workload.StoryId, error)
	NStories() int64

	CommentForVote(rng *rand.Rand) (workload.CommentId, error)
	NComments() int64

	StoryForComment(rng *rand.Rand) (workload.StoryId, error)
}

// Tables bundles the four static empirical histograms the harness takes as
// configuration inputs, plus the bin-width hint used when expanding a bin
// into point masses (see Histogram.IndSample).
type Tables struct {
	VotesPerUser     []Bin
	VotesPerStory    []Bin
	VotesPerComment  []Bin
	CommentsPerStory []Bin

	VotesPerUserWidth    int
	VotesPerStoryWidth   int
	VotesPerCommentWidth int
	CommentsPerStoryWidth int
}

// histogramSampler is the default Sampler: each of the four draws is histogram-
// shaped, so sampling a user "by votes-per-user" naturally gives a
// heavier-tailed draw (active users appear more often), matching the
// observation that users who vote a lot also submit a lot.
type histogramSampler struct {
	votesPerUser     *Histogram
	votesPerStory    *Histogram
	votesPerComment  *Histogram
	commentsPerStory *Histogram
}

var _ Sampler = (*histogramSampler)(nil)

// NewHistogramSampler scales the four tables by memScale and builds the
// prefix-sum draw tables. It enforces the sampler invariants:
// nusers()>=1, nstories()>=1, ncomments()>=0.
func NewHistogramSampler(t Tables, memScale float64) (Sampler, error) {
	if memScale <= 0 {
		return nil, fmt.Errorf("sampler: mem_scale must be > 0, got %f", memScale)
	}

	votesPerUser, err := NewHistogramFromEmpirical(t.VotesPerUser, memScale, widthOr(t.VotesPerUserWidth, 100))
	if err != nil {
		return nil, fmt.Errorf("sampler: votes_per_user: %w", err)
	}
	votesPerStory, err := NewHistogramFromEmpirical(t.VotesPerStory, memScale, widthOr(t.VotesPerStoryWidth, 10))
	if err != nil {
		return nil, fmt.Errorf("sampler: votes_per_story: %w", err)
	}
	votesPerComment, err := NewHistogramFromEmpirical(t.VotesPerComment, memScale, widthOr(t.VotesPerCommentWidth, 10))
	if err != nil {
		return nil, fmt.Errorf("sampler: votes_per_comment: %w", err)
	}
	commentsPerStory, err := NewHistogramFromEmpirical(t.CommentsPerStory, memScale, widthOr(t.CommentsPerStoryWidth, 10))
	if err != nil {
		return nil, fmt.Errorf("sampler: comments_per_story: %w", err)
	}

	if votesPerUser.NValues() < 1 {
		return nil, fmt.Errorf("sampler: nusers() must be >= 1, got %d", votesPerUser.NValues())
	}
	if votesPerStory.NValues() < 1 {
		return nil, fmt.Errorf("sampler: nstories() must be >= 1, got %d", votesPerStory.NValues())
	}
	if votesPerComment.NValues() < 0 {
		return nil, fmt.Errorf("sampler: ncomments() must be >= 0, got %d", votesPerComment.NValues())
	}
	return &histogramSampler{
		votesPerUser:     votesPerUser,
		votesPerStory:    votesPerStory,
		votesPerComment:  votesPerComment,
		commentsPerStory: commentsPerStory,
	}, nil
}

func widthOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func (s *histogramSampler) User(rng *rand.Rand) (workload.UserId, error) {
	v, err := s.votesPerUser.IndSample(rng)
	return workload.UserId(v), err
}
func (s *histogramSampler) NUsers() int64 { return s.votesPerUser.NValues() }

func (s *histogramSampler) StoryForVote(rng *rand.Rand) (workload.StoryId, error) {
	v, err := s.votesPerStory.IndSample(rng)
	return workload.StoryId(v), err
}
func (s *histogramSampler) NStories() int64 { return s.votesPerStory.NValues() }

func (s *histogramSampler) CommentForVote(rng *rand.Rand) (workload.CommentId, error) {
	v, err := s.votesPerComment.IndSample(rng)
	return workload.CommentId(v), err
}
func (s *histogramSampler) NComments() int64 { return s.votesPerComment.NValues() }

// StoryForComment draws the story a new comment attaches to from the
// comments-per-story table, so stories that already attract comments keep
// attracting them.
func (s *histogramSampler) StoryForComment(rng *rand.Rand) (workload.StoryId, error) {
	v, err := s.commentsPerStory.IndSample(rng)
	return workload.StoryId(v), err
}

// uniformSampler draws every ID uniformly over the declared cardinality, an
// escape hatch for synthetic/testing runs where histogram skew isn't wanted.
type uniformSampler struct {
	nusers, nstories, ncomments int64
}

var _ Sampler = (*uniformSampler)(nil)

// NewUniformSampler builds cardinalities the same way NewHistogramSampler
// does (scaled sums of the votes-per-user, votes-per-story and
// votes-per-comment tables) but draws uniformly within them.
func NewUniformSampler(t Tables, memScale float64) (Sampler, error) {
	if memScale <= 0 {
		return nil, fmt.Errorf("sampler: mem_scale must be > 0, got %f", memScale)
	}
	sum := func(bins []Bin) int64 {
		var total int64
		for _, b := range bins {
			total += int64(memScale*float64(b.Count) + 0.5)
		}
		return total
	}
	u := &uniformSampler{
		nusers:    sum(t.VotesPerUser),
		nstories:  sum(t.VotesPerStory),
		ncomments: sum(t.VotesPerComment),
	}
	if u.nusers < 1 {
		return nil, fmt.Errorf("sampler: nusers() must be >= 1, got %d", u.nusers)
	}
	if u.nstories < 1 {
		return nil, fmt.Errorf("sampler: nstories() must be >= 1, got %d", u.nstories)
	}
	return u, nil
}

func (u *uniformSampler) User(rng *rand.Rand) (workload.UserId, error) {
	return workload.UserId(rng.Int63n(u.nusers)), nil
}
func (u *uniformSampler) NUsers() int64 { return u.nusers }

func (u *uniformSampler) StoryForVote(rng *rand.Rand) (workload.StoryId, error) {
	return workload.StoryId(rng.Int63n(u.nstories)), nil
}
func (u *uniformSampler) NStories() int64 { return u.nstories }

func (u *uniformSampler) CommentForVote(rng *rand.Rand) (workload.CommentId, error) {
	if u.ncomments <= 0 {
		return 0, fmt.Errorf("sampler: no comments to draw from")
	}
	return workload.CommentId(rng.Int63n(u.ncomments)), nil
}
func (u *uniformSampler) NComments() int64 { return u.ncomments }

func (u *uniformSampler) StoryForComment(rng *rand.Rand) (workload.StoryId, error) {
	return workload.StoryId(rng.Int63n(u.nstories)), nil
}
