package solver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/exomass/masschecker-go/internal/types"
)

func newTestPrimary(t *testing.T, handler http.Handler) (*PrimaryClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewPrimaryClient(srv.URL, 5*time.Second)
	c.pollInterval = 10 * time.Millisecond
	return c, srv
}

func TestPrimarySolveSuccess(t *testing.T) {
	var polls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/turnstile", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("sitekey"); got != "0x4AAAAAAADnPID" {
			t.Errorf("sitekey = %q", got)
		}
		if got := r.URL.Query().Get("action"); got != "login" {
			t.Errorf("action = %q", got)
		}
		w.WriteHeader(http.StatusAccepted)
		fmt.Fprint(w, `{"task_id": "task-1"}`)
	})
	mux.HandleFunc("/result", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("id"); got != "task-1" {
			t.Errorf("id = %q", got)
		}
		if polls.Add(1) < 3 {
			fmt.Fprint(w, "CAPTCHA_NOT_READY")
			return
		}
		fmt.Fprint(w, `{"value": "token-abc", "elapsed_time": 4.2}`)
	})

	c, _ := newTestPrimary(t, mux)

	token, err := c.Solve(context.Background(), &Request{
		URL:     "https://example.com/login",
		Sitekey: "0x4AAAAAAADnPID",
		Action:  "login",
	})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if token != "token-abc" {
		t.Errorf("token = %q", token)
	}
	if polls.Load() < 3 {
		t.Errorf("expected at least 3 polls, got %d", polls.Load())
	}
}

func TestPrimarySolveCaptchaFail(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/turnstile", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		fmt.Fprint(w, `{"task_id": "task-2"}`)
	})
	mux.HandleFunc("/result", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "CAPTCHA_FAIL")
	})

	c, _ := newTestPrimary(t, mux)

	_, err := c.Solve(context.Background(), &Request{URL: "https://example.com", Sitekey: "0xKEY1234567"})
	if !errors.Is(err, types.ErrTurnstileFailed) {
		t.Errorf("err = %v, want ErrTurnstileFailed", err)
	}
}

func TestPrimarySubmitRejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/turnstile", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, "missing sitekey")
	})

	c, _ := newTestPrimary(t, mux)

	_, err := c.Solve(context.Background(), &Request{URL: "https://example.com"})
	if !errors.Is(err, types.ErrSolverRejected) {
		t.Errorf("err = %v, want ErrSolverRejected", err)
	}
	var solverErr *types.SolverError
	if !errors.As(err, &solverErr) {
		t.Fatal("expected a SolverError")
	}
	if solverErr.Tier != "primary" || solverErr.Code != "422" {
		t.Errorf("tier=%q code=%q", solverErr.Tier, solverErr.Code)
	}
}

func TestPrimaryResultInvalidID(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/turnstile", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		fmt.Fprint(w, `{"task_id": "task-3"}`)
	})
	mux.HandleFunc("/result", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	c, _ := newTestPrimary(t, mux)

	_, err := c.Solve(context.Background(), &Request{URL: "https://example.com", Sitekey: "0xKEY1234567"})
	if !errors.Is(err, types.ErrSolverRejected) {
		t.Errorf("err = %v, want ErrSolverRejected", err)
	}
}

func TestPrimaryPollTimeout(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/turnstile", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		fmt.Fprint(w, `{"task_id": "task-4"}`)
	})
	mux.HandleFunc("/result", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "CAPTCHA_NOT_READY")
	})

	c, _ := newTestPrimary(t, mux)
	c.timeout = 50 * time.Millisecond

	_, err := c.Solve(context.Background(), &Request{URL: "https://example.com", Sitekey: "0xKEY1234567"})
	if !errors.Is(err, types.ErrSolverTimeout) {
		t.Errorf("err = %v, want ErrSolverTimeout", err)
	}
}

func TestPrimaryServiceDown(t *testing.T) {
	c := NewPrimaryClient("http://127.0.0.1:1", time.Second)
	c.pollInterval = 10 * time.Millisecond

	_, err := c.Solve(context.Background(), &Request{URL: "https://example.com", Sitekey: "0xKEY1234567"})
	if !errors.Is(err, types.ErrSolverUnavailable) {
		t.Errorf("err = %v, want ErrSolverUnavailable", err)
	}
}

func TestPrimaryBareTokenBody(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/turnstile", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		fmt.Fprint(w, `{"task_id": "task-5"}`)
	})
	mux.HandleFunc("/result", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "raw-token-value")
	})

	c, _ := newTestPrimary(t, mux)

	token, err := c.Solve(context.Background(), &Request{URL: "https://example.com", Sitekey: "0xKEY1234567"})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if token != "raw-token-value" {
		t.Errorf("token = %q", token)
	}
}
