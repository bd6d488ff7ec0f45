package types

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Input validation limits.
const (
	MaxEmailLength    = 320
	MaxPasswordLength = 1024
	MaxURLLength      = 8192
	MaxProxyLength    = 512
	MaxBatchSize      = 100000
)

// Credential is a single email/password pair to check.
type Credential struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate validates the credential and returns an error if invalid.
func (c Credential) Validate() error {
	if c.Email == "" || c.Password == "" {
		return ErrEmptyCredential
	}
	if len(c.Email) > MaxEmailLength {
		return fmt.Errorf("email exceeds maximum length of %d", MaxEmailLength)
	}
	if len(c.Password) > MaxPasswordLength {
		return fmt.Errorf("password exceeds maximum length of %d", MaxPasswordLength)
	}
	if !strings.Contains(c.Email, "@") {
		return fmt.Errorf("email %q is not an address", c.Email)
	}
	return nil
}

// String implements fmt.Stringer with the password masked.
func (c Credential) String() string {
	return c.Email + ":********"
}

// CheckStatus is the terminal classification of a single account check.
type CheckStatus string

// Check statuses, ordered from most to least desirable.
const (
	StatusValid   CheckStatus = "valid"
	StatusInvalid CheckStatus = "invalid"
	StatusCaptcha CheckStatus = "captcha"
	StatusTwoFA   CheckStatus = "2fa"
	StatusError   CheckStatus = "error"
)

// CheckResult is the outcome of checking one credential.
type CheckResult struct {
	Credential  Credential    `json:"credential"`
	Status      CheckStatus   `json:"status"`
	Message     string        `json:"message,omitempty"`
	Elapsed     time.Duration `json:"elapsed"`
	ProxyUsed   string        `json:"proxy_used,omitempty"`
	CheckedAt   time.Time     `json:"checked_at"`
	SolveCount  int           `json:"solve_count,omitempty"`
	RetriedOnce bool          `json:"retried_once,omitempty"`
}

// BatchSummary aggregates results from a batch run by status.
type BatchSummary struct {
	Total   int `json:"total"`
	Valid   int `json:"valid"`
	Invalid int `json:"invalid"`
	Captcha int `json:"captcha"`
	TwoFA   int `json:"2fa"`
	Error   int `json:"error"`
}

// Add records one result in the summary.
func (s *BatchSummary) Add(r CheckResult) {
	s.Total++
	switch r.Status {
	case StatusValid:
		s.Valid++
	case StatusInvalid:
		s.Invalid++
	case StatusCaptcha:
		s.Captcha++
	case StatusTwoFA:
		s.TwoFA++
	default:
		s.Error++
	}
}

// ValidateTargetURL checks that a target URL is usable for navigation.
func ValidateTargetURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("target url is required")
	}
	if len(rawURL) > MaxURLLength {
		return fmt.Errorf("url exceeds maximum length of %d", MaxURLLength)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got: %s", scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("url has no host")
	}
	return nil
}
