package solver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/exomass/masschecker-go/internal/types"
)

const (
	secondaryPollInterval   = 5 * time.Second
	secondaryDefaultTimeout = 120 * time.Second
)

// SecondaryClient is the paid fallback solver, speaking the
// createTask/getTaskResult JSON protocol common to commercial services.
// Disabled by default; it only runs when the primary tier gives up.
type SecondaryClient struct {
	apiKey       string
	baseURL      string
	timeout      time.Duration
	pollInterval time.Duration
	httpClient   *http.Client
}

// SecondaryConfig configures the secondary solver client.
type SecondaryConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// NewSecondaryClient creates a secondary solver client.
func NewSecondaryClient(cfg SecondaryConfig) *SecondaryClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = secondaryDefaultTimeout
	}
	return &SecondaryClient{
		apiKey:       cfg.APIKey,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		timeout:      timeout,
		pollInterval: secondaryPollInterval,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Name returns the tier name.
func (c *SecondaryClient) Name() string {
	return "secondary"
}

type secondaryTask struct {
	Type       string `json:"type"`
	WebsiteURL string `json:"websiteURL"`
	WebsiteKey string `json:"websiteKey"`
	Action     string `json:"action,omitempty"`
	Data       string `json:"data,omitempty"`
}

type secondaryCreateRequest struct {
	ClientKey string        `json:"clientKey"`
	Task      secondaryTask `json:"task"`
}

type secondaryCreateResponse struct {
	ErrorID          int    `json:"errorId"`
	ErrorCode        string `json:"errorCode,omitempty"`
	ErrorDescription string `json:"errorDescription,omitempty"`
	TaskID           int64  `json:"taskId,omitempty"`
}

type secondaryResultRequest struct {
	ClientKey string `json:"clientKey"`
	TaskID    int64  `json:"taskId"`
}

type secondaryResultResponse struct {
	ErrorID          int    `json:"errorId"`
	ErrorCode        string `json:"errorCode,omitempty"`
	ErrorDescription string `json:"errorDescription,omitempty"`
	Status           string `json:"status"`
	Solution         *struct {
		Token string `json:"token"`
	} `json:"solution,omitempty"`
}

// Solve submits a task and polls until the service solves it.
func (c *SecondaryClient) Solve(ctx context.Context, req *Request) (string, error) {
	if c.apiKey == "" {
		return "", types.NewSolverRejectedError(c.Name(), "no_key", "API key not configured")
	}

	taskID, err := c.createTask(ctx, req)
	if err != nil {
		return "", err
	}

	log.Debug().
		Int64("task_id", taskID).
		Str("sitekey", truncateKey(req.Sitekey)).
		Msg("Secondary solver task created")

	return c.pollResult(ctx, taskID)
}

func (c *SecondaryClient) createTask(ctx context.Context, req *Request) (int64, error) {
	payload := secondaryCreateRequest{
		ClientKey: c.apiKey,
		Task: secondaryTask{
			Type:       "TurnstileTaskProxyless",
			WebsiteURL: req.URL,
			WebsiteKey: req.Sitekey,
			Action:     req.Action,
			Data:       req.CData,
		},
	}

	var created secondaryCreateResponse
	if err := c.post(ctx, "/createTask", payload, &created); err != nil {
		return 0, err
	}
	if created.ErrorID != 0 {
		return 0, c.mapError(created.ErrorCode, created.ErrorDescription)
	}
	return created.TaskID, nil
}

func (c *SecondaryClient) pollResult(ctx context.Context, taskID int64) (string, error) {
	pollCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-pollCtx.Done():
			return "", types.NewSolverTimeoutError(c.Name(), fmt.Sprintf("%d", taskID))
		case <-ticker.C:
		}

		var result secondaryResultResponse
		err := c.post(pollCtx, "/getTaskResult", secondaryResultRequest{ClientKey: c.apiKey, TaskID: taskID}, &result)
		if err != nil {
			return "", err
		}
		if result.ErrorID != 0 {
			return "", c.mapError(result.ErrorCode, result.ErrorDescription)
		}

		switch result.Status {
		case "ready":
			if result.Solution == nil || result.Solution.Token == "" {
				return "", fmt.Errorf("ready status without token")
			}
			return result.Solution.Token, nil
		case "idle", "processing":
			log.Debug().Int64("task_id", taskID).Str("status", result.Status).Msg("Secondary task still processing")
		case "error":
			return "", types.NewSolverRejectedError(c.Name(), "error", "task reported error status")
		default:
			return "", fmt.Errorf("unknown task status %q", result.Status)
		}
	}
}

func (c *SecondaryClient) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return types.NewSolverUnavailableError(c.Name(), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// mapError converts service error codes into the solver error taxonomy.
func (c *SecondaryClient) mapError(code, description string) error {
	switch code {
	case "ERROR_ZERO_BALANCE":
		return types.NewSolverBalanceError(c.Name())
	case "ERROR_WRONG_SITEKEY", "ERROR_WRONG_GOOGLEKEY":
		return types.NewSolverRejectedError(c.Name(), code, "invalid sitekey")
	case "ERROR_CAPTCHA_UNSOLVABLE":
		return types.NewSolverRejectedError(c.Name(), code, "captcha could not be solved")
	case "ERROR_KEY_DOES_NOT_EXIST", "ERROR_WRONG_USER_KEY":
		return types.NewSolverRejectedError(c.Name(), code, "invalid API key")
	default:
		msg := description
		if msg == "" {
			msg = code
		}
		return types.NewSolverRejectedError(c.Name(), code, msg)
	}
}
