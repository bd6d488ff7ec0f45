package types

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestCredentialValidate(t *testing.T) {
	tests := []struct {
		name    string
		cred    Credential
		wantErr bool
	}{
		{"valid", Credential{Email: "user@example.com", Password: "hunter2"}, false},
		{"empty email", Credential{Password: "hunter2"}, true},
		{"empty password", Credential{Email: "user@example.com"}, true},
		{"no at sign", Credential{Email: "userexample.com", Password: "hunter2"}, true},
		{"oversized email", Credential{Email: strings.Repeat("a", MaxEmailLength) + "@x.com", Password: "p"}, true},
		{"oversized password", Credential{Email: "user@example.com", Password: strings.Repeat("p", MaxPasswordLength+1)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cred.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCredentialValidateEmptySentinel(t *testing.T) {
	err := Credential{}.Validate()
	if !errors.Is(err, ErrEmptyCredential) {
		t.Errorf("expected ErrEmptyCredential, got %v", err)
	}
}

func TestCredentialStringMasksPassword(t *testing.T) {
	c := Credential{Email: "user@example.com", Password: "supersecret"}
	s := c.String()
	if strings.Contains(s, "supersecret") {
		t.Errorf("String() leaked password: %s", s)
	}
	if !strings.Contains(s, "user@example.com") {
		t.Errorf("String() should keep email: %s", s)
	}
}

func TestBatchSummaryAdd(t *testing.T) {
	var s BatchSummary
	statuses := []CheckStatus{
		StatusValid, StatusValid, StatusInvalid, StatusCaptcha,
		StatusTwoFA, StatusError, CheckStatus("unknown"),
	}
	for _, st := range statuses {
		s.Add(CheckResult{Status: st, Elapsed: time.Second})
	}

	if s.Total != 7 {
		t.Errorf("Total = %d, want 7", s.Total)
	}
	if s.Valid != 2 {
		t.Errorf("Valid = %d, want 2", s.Valid)
	}
	if s.Invalid != 1 {
		t.Errorf("Invalid = %d, want 1", s.Invalid)
	}
	if s.Captcha != 1 {
		t.Errorf("Captcha = %d, want 1", s.Captcha)
	}
	if s.TwoFA != 1 {
		t.Errorf("TwoFA = %d, want 1", s.TwoFA)
	}
	// Unknown statuses count as errors.
	if s.Error != 2 {
		t.Errorf("Error = %d, want 2", s.Error)
	}
}

func TestValidateTargetURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"https", "https://www.example.com/signin", false},
		{"http", "http://example.com", false},
		{"empty", "", true},
		{"no scheme", "example.com/signin", true},
		{"ftp scheme", "ftp://example.com", true},
		{"no host", "https://", true},
		{"oversized", "https://example.com/" + strings.Repeat("a", MaxURLLength), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTargetURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTargetURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestErrorUnwrapping(t *testing.T) {
	poolErr := NewPoolAcquireError("proxy1_chromium", "timeout", ErrBrowserPoolTimeout)
	if !errors.Is(poolErr, ErrBrowserPoolTimeout) {
		t.Error("PoolError should unwrap to ErrBrowserPoolTimeout")
	}
	if poolErr.ProxyKey != "proxy1_chromium" {
		t.Errorf("ProxyKey = %q", poolErr.ProxyKey)
	}

	chErr := NewChallengeTimeoutError("https://example.com")
	if !errors.Is(chErr, ErrChallengeTimeout) {
		t.Error("ChallengeError should unwrap to ErrChallengeTimeout")
	}

	solErr := NewSolverRejectedError("primary", "422", "invalid sitekey")
	if !errors.Is(solErr, ErrSolverRejected) {
		t.Error("SolverError should unwrap to ErrSolverRejected")
	}
	if solErr.Tier != "primary" {
		t.Errorf("Tier = %q", solErr.Tier)
	}

	unavail := NewSolverUnavailableError("secondary", errors.New("connection refused"))
	if !errors.Is(unavail, ErrSolverUnavailable) {
		t.Error("unavailable error should unwrap to ErrSolverUnavailable")
	}
}
