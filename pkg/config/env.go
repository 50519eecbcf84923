package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Env is the ambient runtime configuration pulled from the process
// environment, separate from the per-run workload Config loaded from YAML.
type Env struct {
	LogLevel  string `env:"HARNESS_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"HARNESS_LOG_FORMAT" envDefault:"json"`

	MetricsAddr string `env:"HARNESS_METRICS_ADDR" envDefault:":9090"`

	AgentAddr string `env:"HARNESS_AGENT_ADDR" envDefault:":7700"`
}

// LoadEnv parses ambient settings from the environment, applying the
// envDefault tags above for anything unset.
func LoadEnv() (*Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return nil, fmt.Errorf("config: env: %w", err)
	}
	return &e, nil
}
