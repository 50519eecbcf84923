// Package remote lets a harness run be distributed across machines: an
// Agent exposes one node's local harness.Run over HTTP, and a Dispatcher
// fans a run out across a set of agents and merges their results.
//
// An Agent serves health and run requests over go-chi/chi, decoding a
// config.Config run request from the POST body and tagging every run
// with a google/uuid correlation id so a dispatcher can match responses
// back to requests.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/lobsters-bench/harness/pkg/client"
	"github.com/lobsters-bench/harness/pkg/config"
	"github.com/lobsters-bench/harness/pkg/harness"
	"github.com/lobsters-bench/harness/pkg/logging"
)

// RunRequest is the JSON body a Dispatcher posts to an Agent's /run.
type RunRequest struct {
	RunID    string        `json:"run_id"`
	Workload config.Config `json:"workload"`
}

// RunResponse is what an Agent returns from /run: one node's share of the
// aggregate result, in the same shape a local harness.Result takes.
type RunResponse struct {
	RunID       string          `json:"run_id"`
	AchievedRPS float64         `json:"achieved_rps"`
	Dropped     int             `json:"dropped"`
	Warmup      map[string]Kind `json:"warmup"`
	Measurement map[string]Kind `json:"measurement"`
}

// Kind is one request kind's summary stats, the wire-friendly projection of
// a stats.Histogram this package ships across the network instead of the
// full histogram. Merging raw HdrHistograms across a network hop would need
// the full histogram shipped, not just its summary, so nodes merge these
// summaries instead.
type Kind struct {
	Count int64   `json:"count"`
	P50Us int64   `json:"p50_us"`
	P99Us int64   `json:"p99_us"`
	MeanUs float64 `json:"mean_us"`
}

// Agent runs harness.Harness instances on behalf of a remote Dispatcher. A
// new client.Factory is built per request via NewFactory so each run gets
// its own client pool, kept stateless between requests.
type Agent struct {
	NewFactory func(workloadTarget string) client.Factory
	Logger     *logging.Logger
}

// Routes builds the chi router the agent serves: GET /health, POST /run.
func (a *Agent) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", a.handleHealth)
	r.Post("/run", a.handleRun)
	return r
}

func (a *Agent) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (a *Agent) handleRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid body: %v", err), http.StatusBadRequest)
		return
	}
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}

	factory := a.NewFactory(req.Workload.Target)
	h, err := harness.New(harness.Config{
		Factory:  factory,
		Workload: &req.Workload,
		Logger:   a.Logger,
	})
	if err != nil {
		http.Error(w, fmt.Sprintf("harness setup: %v", err), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), req.Workload.Warmup+req.Workload.Runtime+req.Workload.Grace+30*time.Second)
	defer cancel()

	res, err := h.Run(ctx)
	if err != nil {
		http.Error(w, fmt.Sprintf("run failed: %v", err), http.StatusInternalServerError)
		return
	}

	resp := RunResponse{
		RunID:       req.RunID,
		AchievedRPS: res.AchievedRPS,
		Dropped:     res.Dropped,
		Warmup:      summarize(res.Warmup),
		Measurement: summarize(res.Measurement),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil && a.Logger != nil {
		a.Logger.Error("failed to encode run response", "err", err.Error())
	}
}
