package generator

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/lobsters-bench/harness/pkg/sampler"
	"github.com/lobsters-bench/harness/pkg/workload"
)

func tinySampler(t *testing.T) sampler.Sampler {
	t.Helper()
	s, err := sampler.NewUniformSampler(sampler.Tables{
		VotesPerUser:  []sampler.Bin{{Value: 0, Count: 5}},
		VotesPerStory: []sampler.Bin{{Value: 0, Count: 3}},
	}, 1)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestNewCategoricalRejectsEmptyMix(t *testing.T) {
	if _, err := newCategorical(Mix{}); err == nil {
		t.Fatal("expected an error for an empty mix")
	}
}

func TestNewCategoricalRejectsNonPositiveTotal(t *testing.T) {
	if _, err := newCategorical(Mix{workload.Frontpage: 0}); err == nil {
		t.Fatal("expected an error for a zero-weight mix")
	}
}

func TestCategoricalDrawStaysWithinMix(t *testing.T) {
	mix := Mix{workload.Frontpage: 1, workload.Story: 3}
	c, err := newCategorical(mix)
	if err != nil {
		t.Fatal(err)
	}
	rng := rand.New(rand.NewSource(1))
	seen := map[workload.Kind]int{}
	for i := 0; i < 1000; i++ {
		seen[c.draw(rng)]++
	}
	if len(seen) != 2 {
		t.Errorf("draws touched %d kinds, want 2", len(seen))
	}
	if seen[workload.Story] < seen[workload.Frontpage] {
		t.Errorf("story weighted 3x frontpage should be drawn more often: %+v", seen)
	}
}

func TestFreshIDsMonotonic(t *testing.T) {
	fresh := NewFreshIDs(tinySampler(t))
	first := fresh.nextStoryID()
	second := fresh.nextStoryID()
	if second <= first {
		t.Errorf("fresh story ids not monotonic: %d then %d", first, second)
	}
	if first < 3 {
		t.Errorf("fresh story id %d should start past the base cardinality 3", first)
	}
}

func TestFreshIDsParentSelection(t *testing.T) {
	fresh := NewFreshIDs(tinySampler(t))
	story := workload.StoryId(0)
	if _, ok := fresh.parentFor(story, rand.New(rand.NewSource(1))); ok {
		t.Fatal("expected no parent candidate before any comment is recorded")
	}
	fresh.recordComment(story, 7)
	found := false
	for i := int64(0); i < 50 && !found; i++ {
		if parent, ok := fresh.parentFor(story, rand.New(rand.NewSource(i))); ok {
			if parent != 7 {
				t.Fatalf("parent = %d, want 7", parent)
			}
			found = true
		}
	}
	if !found {
		t.Fatal("parentFor never returned the recorded comment across 50 draws")
	}
}

func TestGeneratorRunPacesToDeadlineAndStops(t *testing.T) {
	out := make(chan workload.WorkerCommand, 1024)
	g, err := New(Config{
		ID:        0,
		TargetRPS: 200,
		Sampler:   tinySampler(t),
		Mix:       Mix{workload.Frontpage: 1},
		Out:       out,
		Start:     time.Now(),
		Warmup:    20 * time.Millisecond,
		Runtime:   30 * time.Millisecond,
		Grace:     10 * time.Millisecond,
		Fresh:     NewFreshIDs(tinySampler(t)),
	})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	emitted, err := g.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if emitted == 0 {
		t.Error("expected at least one request to be emitted")
	}
	if int(emitted) != len(out) {
		t.Errorf("reported emitted=%d but channel holds %d", emitted, len(out))
	}
}

func TestNewRejectsNonPositiveTargetRPS(t *testing.T) {
	_, err := New(Config{TargetRPS: 0, Mix: Mix{workload.Frontpage: 1}})
	if err == nil {
		t.Fatal("expected an error for a non-positive target rps")
	}
}
