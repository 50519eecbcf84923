package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lobsters-bench/harness/pkg/workload"
)

func TestHandleRoutesEveryKind(t *testing.T) {
	var gotPath, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := NewFactory(Config{BaseURL: srv.URL})
	inst, err := f.Spawn(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		req            workload.Request
		method, prefix string
	}{
		{workload.Request{Kind: workload.Frontpage}, "GET", "/"},
		{workload.Request{Kind: workload.Story, Story: 1}, "GET", "/s/"},
		{workload.Request{Kind: workload.Login, User: 1}, "POST", "/login"},
		{workload.Request{Kind: workload.Logout, User: 1}, "POST", "/logout"},
		{workload.Request{Kind: workload.StoryVote, User: 1, Story: 1}, "POST", "/s/"},
		{workload.Request{Kind: workload.CommentVote, User: 1, Comment: 3}, "POST", "/comments/"},
		{workload.Request{Kind: workload.Submit, Story: 2, Title: "t"}, "POST", "/stories"},
		{workload.Request{Kind: workload.Comment, Story: 2, Comment: 3}, "POST", "/comments"},
	}
	for _, c := range cases {
		if err := inst.Handle(context.Background(), c.req); err != nil {
			t.Errorf("Handle(%v) = %v", c.req.Kind, err)
		}
		if gotMethod != c.method {
			t.Errorf("kind %v: method = %q, want %q", c.req.Kind, gotMethod, c.method)
		}
		if !strings.HasPrefix(gotPath, c.prefix) {
			t.Errorf("kind %v: path = %q, want prefix %q", c.req.Kind, gotPath, c.prefix)
		}
	}
}

func TestHandleSurfacesServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := NewFactory(Config{BaseURL: srv.URL})
	inst, err := f.Spawn(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if err := inst.Handle(context.Background(), workload.Request{Kind: workload.Frontpage}); err == nil {
		t.Fatal("expected a 500 response to surface as an error")
	}
}

func TestSetupFailsOnUnreachableBackend(t *testing.T) {
	f := NewFactory(Config{BaseURL: "http://127.0.0.1:1"})
	if err := f.Setup(context.Background()); err == nil {
		t.Fatal("expected Setup to fail against an unreachable backend")
	}
}
