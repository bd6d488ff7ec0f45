package solver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/exomass/masschecker-go/internal/types"
)

func TestSecondarySolveSuccess(t *testing.T) {
	var polls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/createTask", func(w http.ResponseWriter, r *http.Request) {
		var req secondaryCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.ClientKey != "key-123" {
			t.Errorf("clientKey = %q", req.ClientKey)
		}
		if req.Task.Type != "TurnstileTaskProxyless" {
			t.Errorf("task type = %q", req.Task.Type)
		}
		fmt.Fprint(w, `{"errorId": 0, "taskId": 42}`)
	})
	mux.HandleFunc("/getTaskResult", func(w http.ResponseWriter, r *http.Request) {
		if polls.Add(1) < 2 {
			fmt.Fprint(w, `{"errorId": 0, "status": "processing"}`)
			return
		}
		fmt.Fprint(w, `{"errorId": 0, "status": "ready", "solution": {"token": "sec-token"}}`)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewSecondaryClient(SecondaryConfig{BaseURL: srv.URL, APIKey: "key-123", Timeout: 5 * time.Second})
	c.pollInterval = 10 * time.Millisecond

	token, err := c.Solve(context.Background(), &Request{URL: "https://example.com", Sitekey: "0xKEY1234567"})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if token != "sec-token" {
		t.Errorf("token = %q", token)
	}
}

func TestSecondaryErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantErr error
	}{
		{"zero balance", "ERROR_ZERO_BALANCE", types.ErrSolverBalance},
		{"bad sitekey", "ERROR_WRONG_SITEKEY", types.ErrSolverRejected},
		{"unsolvable", "ERROR_CAPTCHA_UNSOLVABLE", types.ErrSolverRejected},
		{"bad key", "ERROR_KEY_DOES_NOT_EXIST", types.ErrSolverRejected},
		{"unknown code", "ERROR_SOMETHING_ELSE", types.ErrSolverRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/createTask", func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprintf(w, `{"errorId": 1, "errorCode": %q}`, tt.code)
			})
			srv := httptest.NewServer(mux)
			defer srv.Close()

			c := NewSecondaryClient(SecondaryConfig{BaseURL: srv.URL, APIKey: "key", Timeout: time.Second})
			_, err := c.Solve(context.Background(), &Request{URL: "https://example.com", Sitekey: "0xKEY1234567"})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSecondaryWithoutKey(t *testing.T) {
	c := NewSecondaryClient(SecondaryConfig{BaseURL: "http://127.0.0.1:1"})
	_, err := c.Solve(context.Background(), &Request{URL: "https://example.com", Sitekey: "0xKEY1234567"})
	if !errors.Is(err, types.ErrSolverRejected) {
		t.Errorf("err = %v, want ErrSolverRejected", err)
	}
}

func TestIsTerminal(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rejected", types.NewSolverRejectedError("primary", "422", "bad"), true},
		{"balance", types.NewSolverBalanceError("secondary"), true},
		{"timeout", types.NewSolverTimeoutError("primary", "t1"), false},
		{"unavailable", types.NewSolverUnavailableError("primary", errors.New("dial")), false},
		{"turnstile fail", types.ErrTurnstileFailed, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isTerminal(tt.err); got != tt.want {
				t.Errorf("isTerminal = %v, want %v", got, tt.want)
			}
		})
	}
}
