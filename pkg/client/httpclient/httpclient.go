// Package httpclient is a reference client.Factory/client.Instance adapter
// that drives a Lobsters-style REST backend over HTTP: json.Marshal +
// http.NewRequest + http.Client.Do + a status-code check.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/lobsters-bench/harness/pkg/client"
	"github.com/lobsters-bench/harness/pkg/slug"
	"github.com/lobsters-bench/harness/pkg/workload"
)

var (
	_ client.Factory  = (*Factory)(nil)
	_ client.Instance = (*Instance)(nil)
)

// Config configures the HTTP adapter.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Factory builds one *Instance per issuer, each owning its own http.Client
// (with the configured timeout) for the run. The clients use the default
// transport, so they share its connection pool, and carry no cookie jar.
type Factory struct {
	cfg Config
}

func NewFactory(cfg Config) *Factory {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Factory{cfg: cfg}
}

// Setup is idempotent schema bootstrap; a REST frontend has no migration
// step the load generator is responsible for, so this is a reachability
// check only — failing fast here surfaces a misconfigured BaseURL at
// construction instead of mid-run.
func (f *Factory) Setup(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.cfg.BaseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("httpclient: setup: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("httpclient: setup: backend unreachable at %s: %w", f.cfg.BaseURL, err)
	}
	resp.Body.Close()
	return nil
}

// Spawn creates a per-issuer Instance with its own *http.Client.
func (f *Factory) Spawn(ctx context.Context) (client.Instance, error) {
	return &Instance{
		baseURL: f.cfg.BaseURL,
		http:    &http.Client{Timeout: f.cfg.Timeout},
	}, nil
}

// Instance is a per-issuer HTTP client bound to the backend under test.
type Instance struct {
	baseURL string
	http    *http.Client
}

// Handle translates one workload.Request into a concrete HTTP call. Slugs
// are rendered via pkg/slug. Completion (success or failure) is signaled
// purely by the returned error; the issuer does not inspect it further.
func (c *Instance) Handle(ctx context.Context, req workload.Request) error {
	switch req.Kind {
	case workload.Frontpage:
		return c.get(ctx, "/")
	case workload.Story:
		return c.get(ctx, "/s/"+slug.Encode(req.Story).String())
	case workload.Login:
		return c.post(ctx, "/login", map[string]any{"user": req.User})
	case workload.Logout:
		return c.post(ctx, "/logout", map[string]any{"user": req.User})
	case workload.StoryVote:
		return c.post(ctx, "/s/"+slug.Encode(req.Story).String()+"/vote", map[string]any{
			"user": req.User, "direction": req.VoteDir.String(),
		})
	case workload.CommentVote:
		return c.post(ctx, "/comments/"+slug.Encode(req.Comment).String()+"/vote", map[string]any{
			"user": req.User, "direction": req.VoteDir.String(),
		})
	case workload.Submit:
		return c.post(ctx, "/stories", map[string]any{
			"id": slug.Encode(req.Story).String(), "user": req.User, "title": req.Title,
		})
	case workload.Comment:
		body := map[string]any{
			"id": slug.Encode(req.Comment).String(), "user": req.User,
			"story": slug.Encode(req.Story).String(),
		}
		if req.HasParent {
			body["parent"] = slug.Encode(req.Parent).String()
		}
		return c.post(ctx, "/comments", body)
	default:
		return fmt.Errorf("httpclient: unknown request kind %v", req.Kind)
	}
}

func (c *Instance) get(ctx context.Context, path string) error {
	r, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(r)
}

func (c *Instance) post(ctx context.Context, path string, body map[string]any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	r, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	r.Header.Set("Content-Type", "application/json")
	return c.do(r)
}

func (c *Instance) do(r *http.Request) error {
	resp, err := c.http.Do(r)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("httpclient: %s %s: %s", r.Method, r.URL.Path, resp.Status)
	}
	return nil
}
