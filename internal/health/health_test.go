package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func serve(t *testing.T, h *Handler, path string) (int, result) {
	t.Helper()
	mux := http.NewServeMux()
	h.Register(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return rec.Code, body
}

func ok(context.Context) error { return nil }

func TestHealthz_AlwaysOK(t *testing.T) {
	t.Parallel()
	h := New(Checker{Name: "db", Check: func(context.Context) error { return errors.New("down") }})
	code, body := serve(t, h, "/healthz")
	if code != http.StatusOK || body.Status != "ok" {
		t.Errorf("got %d %+v", code, body)
	}
}

func TestReadyz(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		ready    bool
		checkers []Checker
		wantCode int
		wantFail string
	}{
		{
			name:     "not started",
			checkers: []Checker{{Name: "history", Check: ok}},
			wantCode: http.StatusServiceUnavailable,
			wantFail: "startup",
		},
		{
			name:     "all pass",
			ready:    true,
			checkers: []Checker{{Name: "history", Check: ok}, {Name: "embeddings", Check: ok}},
			wantCode: http.StatusOK,
		},
		{
			name:  "one fails",
			ready: true,
			checkers: []Checker{
				{Name: "history", Check: ok},
				{Name: "embeddings", Check: func(context.Context) error { return errors.New("circuit open") }},
			},
			wantCode: http.StatusServiceUnavailable,
			wantFail: "embeddings",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := New(tt.checkers...)
			h.SetReady(tt.ready)

			code, body := serve(t, h, "/readyz")
			if code != tt.wantCode {
				t.Errorf("status = %d, want %d", code, tt.wantCode)
			}
			if len(body.Checks) != len(tt.checkers)+1 {
				t.Errorf("checks = %v", body.Checks)
			}
			if tt.wantFail != "" {
				if body.Status != "fail" || body.Checks[tt.wantFail] == "ok" {
					t.Errorf("body = %+v, want %s failing", body, tt.wantFail)
				}
			} else if body.Status != "ok" {
				t.Errorf("status = %q", body.Status)
			}
		})
	}
}

func TestReadyz_CheckGetsDeadline(t *testing.T) {
	t.Parallel()
	var deadline time.Time
	h := New(Checker{Name: "db", Check: func(ctx context.Context) error {
		deadline, _ = ctx.Deadline()
		return nil
	}})
	h.SetReady(true)
	serve(t, h, "/readyz")
	if deadline.IsZero() {
		t.Error("check context has no deadline")
	}
}
