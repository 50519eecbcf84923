package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lobsters-bench/harness/pkg/client"
	"github.com/lobsters-bench/harness/pkg/client/httpclient"
	"github.com/lobsters-bench/harness/pkg/config"
	"github.com/lobsters-bench/harness/pkg/harness"
	"github.com/lobsters-bench/harness/pkg/logging"
	"github.com/lobsters-bench/harness/pkg/remote"
	"github.com/lobsters-bench/harness/pkg/telemetry"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "agent":
			runAgentCmd()
			return
		case "remote":
			runRemoteCmd()
			return
		}
	}
	runLocalCmd()
}

// runLocalCmd handles "harness [flags]": a single-process priming + steady
// state run against the configured target.
func runLocalCmd() {
	fs := flag.NewFlagSet("harness", flag.ExitOnError)
	configFile := fs.String("config", "", "path to workload YAML config (required)")
	_ = fs.Parse(os.Args[1:])

	if *configFile == "" {
		fmt.Fprintln(os.Stderr, "usage: harness -config workload.yaml")
		os.Exit(2)
	}

	env, err := config.LoadEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := logging.NewLogger(logging.Config{
		Level:  logging.Level(env.LogLevel),
		Format: logging.Format(env.LogFormat),
	})

	wc, err := config.Load(*configFile)
	if err != nil {
		logger.Fatal("failed to load workload config", "err", err.Error())
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	metrics := telemetry.New(reg)
	metricsSrv := telemetry.ServeMetrics(env.MetricsAddr, reg)
	defer metricsSrv.Close()

	factory := httpclient.NewFactory(httpclient.Config{BaseURL: wc.Target, Timeout: 5 * time.Second})

	h, err := harness.New(harness.Config{
		Factory:  factory,
		Workload: wc,
		Seed:     time.Now().UnixNano(),
		Logger:   logger,
		Metrics:  metrics,
	})
	if err != nil {
		logger.Fatal("failed to build harness", "err", err.Error())
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	res, err := h.Run(ctx)
	if err != nil {
		logger.Fatal("run failed", "err", err.Error())
		os.Exit(1)
	}

	logger.Info("run complete",
		"achieved_rps", res.AchievedRPS,
		"dropped", res.Dropped,
		"measurement_count", res.Measurement.TotalCount(),
		"warmup_count", res.Warmup.TotalCount(),
	)
}

// runAgentCmd handles "harness agent [flags]": serve harness runs over HTTP
// on behalf of a remote Dispatcher.
func runAgentCmd() {
	fs := flag.NewFlagSet("harness agent", flag.ExitOnError)
	_ = fs.Parse(os.Args[2:])

	env, err := config.LoadEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := logging.NewLogger(logging.Config{
		Level:  logging.Level(env.LogLevel),
		Format: logging.Format(env.LogFormat),
	})

	agent := &remote.Agent{
		Logger: logger,
		NewFactory: func(target string) client.Factory {
			return httpclient.NewFactory(httpclient.Config{BaseURL: target, Timeout: 5 * time.Second})
		},
	}

	logger.Info("agent listening", "addr", env.AgentAddr)
	if err := http.ListenAndServe(env.AgentAddr, agent.Routes()); err != nil {
		logger.Fatal("agent server exited", "err", err.Error())
		os.Exit(1)
	}
}

// runRemoteCmd handles "harness remote -nodes host1,host2 -config workload.yaml".
func runRemoteCmd() {
	fs := flag.NewFlagSet("harness remote", flag.ExitOnError)
	configFile := fs.String("config", "", "path to workload YAML config (required)")
	nodes := fs.String("nodes", "", "comma-separated agent host:port list (required)")
	_ = fs.Parse(os.Args[2:])

	if *configFile == "" || *nodes == "" {
		fmt.Fprintln(os.Stderr, "usage: harness remote -config workload.yaml -nodes host1:7700,host2:7700")
		os.Exit(2)
	}

	wc, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	d := remote.NewDispatcher(strings.Split(*nodes, ","))
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	res, err := d.Run(ctx, *wc)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Printf("run %s: achieved_rps=%.1f dropped=%d\n", res.RunID, res.AchievedRPS, res.Dropped)
}
