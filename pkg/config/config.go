// Package config loads the YAML workload configuration a harness run reads
// its sampler tables, mix, and timing knobs from, plus the ambient runtime
// settings read from the environment.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lobsters-bench/harness/pkg/sampler"
)

// Config is the top-level workload configuration for a harness run. It also
// doubles as the wire payload a Dispatcher posts to an Agent, so its fields
// carry both yaml and json tags.
type Config struct {
	Target string `yaml:"target" json:"target"` // base URL of the backend under test

	Threads  int     `yaml:"threads" json:"threads"`     // number of issuers; the generator count follows from TargetRPS
	InFlight int     `yaml:"in_flight" json:"in_flight"` // per-issuer admission cap
	ReqScale float64 `yaml:"req_scale" json:"req_scale"` // arrival-rate multiplier applied to BaseOpsPerMin
	MemScale float64 `yaml:"mem_scale" json:"mem_scale"` // sampler cardinality scale factor

	// Prime controls whether Run executes the login/submit/comment priming
	// protocol before entering steady state. Defaults to true; set false to
	// skip straight to steady state against an already-populated backend.
	Prime *bool `yaml:"prime,omitempty" json:"prime,omitempty"`

	Warmup  time.Duration `yaml:"warmup" json:"warmup"`
	Runtime time.Duration `yaml:"runtime" json:"runtime"`
	Grace   time.Duration `yaml:"grace" json:"grace"`

	SamplerKind string `yaml:"sampler" json:"sampler"` // "histogram" (default) or "uniform"

	Tables TablesConfig `yaml:"tables" json:"tables"`

	Mix map[string]float64 `yaml:"mix,omitempty" json:"mix,omitempty"`
}

// TablesConfig mirrors sampler.Tables in a YAML/JSON-friendly shape.
type TablesConfig struct {
	VotesPerUser     []BinConfig `yaml:"votes_per_user" json:"votes_per_user"`
	VotesPerStory    []BinConfig `yaml:"votes_per_story" json:"votes_per_story"`
	VotesPerComment  []BinConfig `yaml:"votes_per_comment" json:"votes_per_comment"`
	CommentsPerStory []BinConfig `yaml:"comments_per_story" json:"comments_per_story"`

	VotesPerUserWidth     int `yaml:"votes_per_user_width,omitempty" json:"votes_per_user_width,omitempty"`
	VotesPerStoryWidth    int `yaml:"votes_per_story_width,omitempty" json:"votes_per_story_width,omitempty"`
	VotesPerCommentWidth  int `yaml:"votes_per_comment_width,omitempty" json:"votes_per_comment_width,omitempty"`
	CommentsPerStoryWidth int `yaml:"comments_per_story_width,omitempty" json:"comments_per_story_width,omitempty"`
}

// BinConfig is one (value, count) pair in a histogram table.
type BinConfig struct {
	Value int `yaml:"value" json:"value"`
	Count int `yaml:"count" json:"count"`
}

// Load reads and validates a workload Config from path, applying the
// harness's defaults for any timing knob left unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if cfg.Threads <= 0 {
		cfg.Threads = 1
	}
	if cfg.InFlight <= 0 {
		cfg.InFlight = 1
	}
	if cfg.ReqScale <= 0 {
		cfg.ReqScale = 1
	}
	if cfg.MemScale <= 0 {
		cfg.MemScale = 1
	}
	if cfg.Warmup == 0 {
		cfg.Warmup = 10 * time.Second
	}
	if cfg.Runtime == 0 {
		cfg.Runtime = 30 * time.Second
	}
	if cfg.Grace == 0 {
		cfg.Grace = 2 * time.Second
	}
	if cfg.SamplerKind == "" {
		cfg.SamplerKind = "histogram"
	}
	if cfg.Target == "" {
		return nil, fmt.Errorf("config: target is required")
	}
	if cfg.Prime == nil {
		t := true
		cfg.Prime = &t
	}

	return &cfg, nil
}

// ShouldPrime reports whether this run should execute the priming protocol.
func (c *Config) ShouldPrime() bool {
	return c.Prime == nil || *c.Prime
}

// BaseOpsPerMin is the reference arrival rate req_scale=1.0 represents.
// TargetRPS scales it by ReqScale/60 to get a target requests-per-second
// figure.
const BaseOpsPerMin = 1200.0

// TargetRPS is the aggregate steady-state arrival rate this config implies.
func (c *Config) TargetRPS() float64 {
	return BaseOpsPerMin * c.ReqScale / 60.0
}

// BuildTables converts the YAML tables into sampler.Tables, falling back to
// sampler.DefaultTables when the config declares no tables of its own (a
// usable default for local experimentation).
func (c *Config) BuildTables() sampler.Tables {
	if len(c.Tables.VotesPerUser) == 0 && len(c.Tables.VotesPerStory) == 0 {
		return sampler.DefaultTables()
	}
	conv := func(bins []BinConfig) []sampler.Bin {
		out := make([]sampler.Bin, len(bins))
		for i, b := range bins {
			out[i] = sampler.Bin{Value: b.Value, Count: b.Count}
		}
		return out
	}
	return sampler.Tables{
		VotesPerUser:          conv(c.Tables.VotesPerUser),
		VotesPerStory:         conv(c.Tables.VotesPerStory),
		VotesPerComment:       conv(c.Tables.VotesPerComment),
		CommentsPerStory:      conv(c.Tables.CommentsPerStory),
		VotesPerUserWidth:     c.Tables.VotesPerUserWidth,
		VotesPerStoryWidth:    c.Tables.VotesPerStoryWidth,
		VotesPerCommentWidth:  c.Tables.VotesPerCommentWidth,
		CommentsPerStoryWidth: c.Tables.CommentsPerStoryWidth,
	}
}
