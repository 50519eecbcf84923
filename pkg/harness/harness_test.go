package harness

import (
	"context"
	"testing"
	"time"

	"github.com/lobsters-bench/harness/pkg/client"
	"github.com/lobsters-bench/harness/pkg/config"
	"github.com/lobsters-bench/harness/pkg/sampler"
	"github.com/lobsters-bench/harness/pkg/workload"
)

type fakeInstance struct{}

func (fakeInstance) Handle(ctx context.Context, req workload.Request) error { return nil }

type fakeFactory struct{}

func (fakeFactory) Setup(ctx context.Context) error                  { return nil }
func (fakeFactory) Spawn(ctx context.Context) (client.Instance, error) { return fakeInstance{}, nil }

func tinyWorkload() *config.Config {
	return &config.Config{
		Target:      "http://example.invalid",
		Threads:     2,
		InFlight:    4,
		ReqScale:    2.5, // TargetRPS() = 1200*2.5/60 = 50 req/s
		MemScale:    1,
		Warmup:      50 * time.Millisecond,
		Runtime:     100 * time.Millisecond,
		Grace:       200 * time.Millisecond,
		SamplerKind: "uniform",
		Tables: config.TablesConfig{
			VotesPerUser:  []config.BinConfig{{Value: 0, Count: 5}},
			VotesPerStory: []config.BinConfig{{Value: 0, Count: 3}},
		},
	}
}

func TestRunCompletesAndReturnsStats(t *testing.T) {
	h, err := New(Config{
		Factory:  fakeFactory{},
		Workload: tinyWorkload(),
		Seed:     1,
	})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res, err := h.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Dropped < 0 {
		t.Errorf("dropped = %d, want >= 0", res.Dropped)
	}
	if res.Measurement.TotalCount() == 0 && res.Warmup.TotalCount() == 0 {
		t.Error("expected some priming or steady-state traffic to be measured")
	}
}

func TestBuildSamplerRejectsUnknownKind(t *testing.T) {
	wc := tinyWorkload()
	wc.SamplerKind = "bogus"
	if _, err := buildSampler(wc); err == nil {
		t.Fatal("expected an error for an unknown sampler kind")
	}
}

func TestBuildSamplerHistogramDefault(t *testing.T) {
	wc := tinyWorkload()
	wc.SamplerKind = ""
	s, err := buildSampler(wc)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(interface{ NUsers() int64 }); !ok {
		t.Fatal("expected a Sampler")
	}
	var _ sampler.Sampler = s
}
