package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lobsters-bench/harness/pkg/config"
)

// Dispatcher fans one workload config out across a set of agent hosts,
// dividing req_scale and threads evenly, and merges the per-node responses.
// Each node runs in its own goroutine over net/http; any node failure fails
// the whole run. Per-kind histograms are merged by weighted combination of
// wire-summary stats rather than a raw HdrHistogram merge, since a raw
// histogram doesn't cross a JSON boundary without shipping its full state.
type Dispatcher struct {
	Nodes      []string
	HTTPClient *http.Client
}

// NewDispatcher builds a Dispatcher with a client whose timeout comfortably
// exceeds the longest possible run.
func NewDispatcher(nodes []string) *Dispatcher {
	return &Dispatcher{Nodes: nodes, HTTPClient: &http.Client{}}
}

// AggregateResult is the Dispatcher's merged view across every node's
// RunResponse.
type AggregateResult struct {
	RunID       string
	AchievedRPS float64
	Dropped     int
	Warmup      map[string]Kind
	Measurement map[string]Kind
}

// Run posts an even split of wc across d.Nodes and merges their responses.
func (d *Dispatcher) Run(ctx context.Context, wc config.Config) (AggregateResult, error) {
	if len(d.Nodes) == 0 {
		return AggregateResult{}, fmt.Errorf("remote: no agent nodes configured")
	}
	runID := uuid.NewString()

	n := len(d.Nodes)
	responses := make([]*RunResponse, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i, node := range d.Nodes {
		nodeWC := wc
		nodeWC.Threads = splitEven(wc.Threads, n, i)
		nodeWC.ReqScale = wc.ReqScale / float64(n)
		if nodeWC.Threads == 0 {
			continue
		}

		wg.Add(1)
		go func(idx int, host string, nodeWC config.Config) {
			defer wg.Done()
			resp, err := d.runRemote(ctx, host, RunRequest{RunID: runID, Workload: nodeWC})
			responses[idx] = resp
			errs[idx] = err
		}(i, node, nodeWC)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return AggregateResult{}, fmt.Errorf("remote: node %s: %w", d.Nodes[i], err)
		}
	}

	return aggregate(runID, responses), nil
}

func splitEven(total, n, i int) int {
	base := total / n
	rem := total % n
	if i < rem {
		return base + 1
	}
	return base
}

func (d *Dispatcher) runRemote(ctx context.Context, host string, req RunRequest) (*RunResponse, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	timeout := req.Workload.Warmup + req.Workload.Runtime + req.Workload.Grace + 30*time.Second
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://"+host+"/run", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	cli := d.HTTPClient
	if cli == nil {
		cli = &http.Client{}
	}
	cli.Timeout = timeout

	resp, err := cli.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("agent %s returned %s: %s", host, resp.Status, bytes.TrimSpace(body))
	}

	var out RunResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

func aggregate(runID string, responses []*RunResponse) AggregateResult {
	agg := AggregateResult{
		RunID:       runID,
		Warmup:      make(map[string]Kind),
		Measurement: make(map[string]Kind),
	}
	for _, r := range responses {
		if r == nil {
			continue
		}
		agg.AchievedRPS += r.AchievedRPS
		agg.Dropped += r.Dropped
		mergeKindMap(agg.Warmup, r.Warmup)
		mergeKindMap(agg.Measurement, r.Measurement)
	}
	return agg
}

// mergeKindMap folds src into dst, weighting mean/percentile carry-over by
// sample count since that's all the wire summary retains.
func mergeKindMap(dst, src map[string]Kind) {
	for name, k := range src {
		existing, ok := dst[name]
		if !ok {
			dst[name] = k
			continue
		}
		totalCount := existing.Count + k.Count
		if totalCount == 0 {
			continue
		}
		dst[name] = Kind{
			Count:  totalCount,
			P50Us:  weightedMax(existing.P50Us, existing.Count, k.P50Us, k.Count),
			P99Us:  weightedMax(existing.P99Us, existing.Count, k.P99Us, k.Count),
			MeanUs: (existing.MeanUs*float64(existing.Count) + k.MeanUs*float64(k.Count)) / float64(totalCount),
		}
	}
}

// weightedMax picks the percentile from whichever side has more samples, a
// coarse but conservative way to combine two already-reduced percentile
// estimates without the raw histograms to remerge.
func weightedMax(a int64, aCount int64, b int64, bCount int64) int64 {
	if aCount >= bCount {
		return a
	}
	return b
}
