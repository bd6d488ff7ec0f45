package solver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/exomass/masschecker-go/internal/types"
)

const (
	primaryPollInterval   = time.Second
	primaryDefaultTimeout = 120 * time.Second

	// Plain-text poll sentinels returned by the service.
	sentinelNotReady = "CAPTCHA_NOT_READY"
	sentinelFailed   = "CAPTCHA_FAIL"
)

// PrimaryClient talks to the local Turnstile solver service.
//
// Protocol: GET /turnstile?url=&sitekey=[&action=&cdata=&pagedata=]
// answers 202 with {"task_id": "..."}. GET /result?id= is polled until it
// returns either a sentinel string or {"value": "...", "elapsed_time": n}.
// 422 means the service rejected the task outright.
type PrimaryClient struct {
	baseURL      string
	httpClient   *http.Client
	timeout      time.Duration
	pollInterval time.Duration
}

// NewPrimaryClient creates a client for the solver service at baseURL.
func NewPrimaryClient(baseURL string, timeout time.Duration) *PrimaryClient {
	if timeout <= 0 {
		timeout = primaryDefaultTimeout
	}
	return &PrimaryClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		timeout:      timeout,
		pollInterval: primaryPollInterval,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Name returns the tier name.
func (c *PrimaryClient) Name() string {
	return "primary"
}

// Solve submits the challenge and polls until a token is produced or the
// solve window closes.
func (c *PrimaryClient) Solve(ctx context.Context, req *Request) (string, error) {
	taskID, err := c.submit(ctx, req)
	if err != nil {
		return "", err
	}

	log.Debug().
		Str("task_id", taskID).
		Str("sitekey", truncateKey(req.Sitekey)).
		Msg("Solver task created")

	return c.poll(ctx, taskID)
}

// submit creates a solve task and returns its id.
func (c *PrimaryClient) submit(ctx context.Context, req *Request) (string, error) {
	q := url.Values{}
	q.Set("url", req.URL)
	q.Set("sitekey", req.Sitekey)
	if req.Action != "" {
		q.Set("action", req.Action)
	}
	if req.CData != "" {
		q.Set("cdata", req.CData)
	}
	if req.PageData != "" {
		q.Set("pagedata", req.PageData)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/turnstile?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", types.NewSolverUnavailableError(c.Name(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusAccepted:
	case http.StatusUnprocessableEntity:
		return "", types.NewSolverRejectedError(c.Name(), "422", strings.TrimSpace(string(body)))
	default:
		return "", types.NewSolverUnavailableError(c.Name(),
			fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var created struct {
		TaskID string `json:"task_id"`
	}
	if err := json.Unmarshal(body, &created); err != nil || created.TaskID == "" {
		return "", fmt.Errorf("malformed task response %q", strings.TrimSpace(string(body)))
	}
	return created.TaskID, nil
}

// poll fetches the task result until it is ready, failed, or timed out.
func (c *PrimaryClient) poll(ctx context.Context, taskID string) (string, error) {
	pollCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-pollCtx.Done():
			return "", types.NewSolverTimeoutError(c.Name(), taskID)
		case <-ticker.C:
		}

		token, done, err := c.fetchResult(pollCtx, taskID)
		if err != nil {
			return "", err
		}
		if done {
			return token, nil
		}
	}
}

// fetchResult performs one /result request. done=false means keep polling.
func (c *PrimaryClient) fetchResult(ctx context.Context, taskID string) (string, bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/result?id="+url.QueryEscape(taskID), nil)
	if err != nil {
		return "", false, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", false, types.NewSolverUnavailableError(c.Name(), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", false, fmt.Errorf("failed to read response: %w", err)
	}
	body := strings.TrimSpace(string(raw))

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusBadRequest:
		return "", false, types.NewSolverRejectedError(c.Name(), "400", "invalid task id")
	case http.StatusUnprocessableEntity:
		return "", false, types.NewSolverRejectedError(c.Name(), "422", body)
	default:
		return "", false, types.NewSolverUnavailableError(c.Name(),
			fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body))
	}

	switch body {
	case sentinelNotReady:
		return "", false, nil
	case sentinelFailed:
		return "", false, fmt.Errorf("%w: task %s", types.ErrTurnstileFailed, taskID)
	}

	var result struct {
		Value       string  `json:"value"`
		ElapsedTime float64 `json:"elapsed_time"`
	}
	if err := json.Unmarshal(raw, &result); err == nil && result.Value != "" {
		log.Debug().
			Str("task_id", taskID).
			Float64("solver_elapsed", result.ElapsedTime).
			Msg("Solver produced token")
		return result.Value, true, nil
	}

	// Some builds return the bare token without JSON wrapping.
	if body != "" && !strings.HasPrefix(body, "{") {
		return body, true, nil
	}
	return "", false, fmt.Errorf("malformed result response %q", body)
}

func truncateKey(key string) string {
	if len(key) <= 10 {
		return key
	}
	return key[:10] + "..."
}
