package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "workload.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeTemp(t, "target: http://localhost:8080\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Threads != 1 || cfg.InFlight != 1 {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.Warmup != 10*time.Second || cfg.Runtime != 30*time.Second {
		t.Errorf("timing defaults = %+v", cfg)
	}
	if cfg.SamplerKind != "histogram" {
		t.Errorf("sampler kind default = %q", cfg.SamplerKind)
	}
}

func TestLoadRequiresTarget(t *testing.T) {
	path := writeTemp(t, "threads: 4\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for a missing target")
	}
}

func TestLoadParsesTables(t *testing.T) {
	path := writeTemp(t, `
target: http://localhost:8080
tables:
  votes_per_user:
    - {value: 0, count: 10}
    - {value: 5, count: 2}
  votes_per_story:
    - {value: 0, count: 4}
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	tbl := cfg.BuildTables()
	if len(tbl.VotesPerUser) != 2 || tbl.VotesPerUser[1].Value != 5 {
		t.Errorf("votes_per_user = %+v", tbl.VotesPerUser)
	}
}

func TestBuildTablesFallsBackToDefault(t *testing.T) {
	path := writeTemp(t, "target: http://localhost:8080\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	tbl := cfg.BuildTables()
	if len(tbl.VotesPerUser) == 0 {
		t.Error("expected default tables when none are configured")
	}
}

func TestTargetRPSScaling(t *testing.T) {
	cfg := &Config{ReqScale: 1}
	if got := cfg.TargetRPS(); got != 20 {
		t.Errorf("TargetRPS() = %v, want 20", got)
	}
}

func TestShouldPrimeDefaultsTrue(t *testing.T) {
	path := writeTemp(t, "target: http://localhost:8080\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.ShouldPrime() {
		t.Error("expected priming to default to true")
	}
}

func TestShouldPrimeRespectsFalse(t *testing.T) {
	path := writeTemp(t, "target: http://localhost:8080\nprime: false\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ShouldPrime() {
		t.Error("expected priming to be disabled")
	}
}

func TestLoadEnvDefaults(t *testing.T) {
	os.Unsetenv("HARNESS_LOG_LEVEL")
	e, err := LoadEnv()
	if err != nil {
		t.Fatal(err)
	}
	if e.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", e.LogLevel)
	}
}
