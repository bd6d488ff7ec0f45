// Package types provides shared types, interfaces, and errors for the application.
package types

import "errors"

// Sentinel errors for consistent error handling across the application.
// These errors can be checked with errors.Is() for type-safe error handling.
var (
	// Browser pool errors
	ErrBrowserPoolExhausted = errors.New("browser pool exhausted: no browsers available")
	ErrBrowserPoolClosed    = errors.New("browser pool is closed")
	ErrBrowserPoolTimeout   = errors.New("timeout waiting for browser from pool")
	ErrBrowserUnhealthy     = errors.New("browser is unhealthy")
	ErrBrowserCrashed       = errors.New("browser process crashed")
	ErrVisibleBudgetFull    = errors.New("visible browser budget exhausted")

	// Context pool errors
	ErrContextPoolClosed = errors.New("context pool is closed")
	ErrContextEvicted    = errors.New("browser context was evicted")
	ErrContextExhausted  = errors.New("context reuse budget exhausted")

	// Challenge errors
	ErrAccessDenied        = errors.New("access denied by target site")
	ErrChallengeTimeout    = errors.New("challenge resolution timed out")
	ErrChallengeUnsolvable = errors.New("challenge could not be solved")
	ErrTurnstileFailed     = errors.New("turnstile verification failed")

	// Context errors
	ErrContextCanceled = errors.New("operation canceled")

	// Solver errors
	ErrSolverTimeout           = errors.New("solver timed out")
	ErrSolverRejected          = errors.New("solver task was rejected")
	ErrSolverUnavailable       = errors.New("solver service unavailable")
	ErrSolverBalance           = errors.New("insufficient solver balance")
	ErrSitekeyNotFound         = errors.New("turnstile sitekey not found")
	ErrTokenInjection          = errors.New("failed to inject turnstile token")
	ErrNoSolverTiers           = errors.New("no solver tiers enabled")
	ErrSolveNotVerified        = errors.New("challenge still present after solve")
	ErrRefreshRetriesExhausted = errors.New("challenge refresh retries exhausted")

	// Account check errors
	ErrLoginFormNotFound = errors.New("login form not found on page")
	ErrCheckAborted      = errors.New("account check aborted")
	ErrEmptyCredential   = errors.New("credential has empty email or password")
)

// ChallengeError provides detailed information about challenge failures.
// It implements the error interface and supports error unwrapping.
type ChallengeError struct {
	Type    string // Error type: "access_denied", "timeout", "unsolvable"
	URL     string // The URL where the error occurred
	Message string // Human-readable error message
	Err     error  // Underlying error (for unwrapping)
}

// Error implements the error interface.
func (e *ChallengeError) Error() string {
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ChallengeError) Unwrap() error {
	return e.Err
}

// NewAccessDeniedError creates an error for access denied situations.
func NewAccessDeniedError(url string) *ChallengeError {
	return &ChallengeError{
		Type:    "access_denied",
		URL:     url,
		Message: "Access denied. The target site has blocked this request. Your IP may be banned or the site requires specific conditions.",
		Err:     ErrAccessDenied,
	}
}

// NewChallengeTimeoutError creates an error for challenge timeout.
func NewChallengeTimeoutError(url string) *ChallengeError {
	return &ChallengeError{
		Type:    "timeout",
		URL:     url,
		Message: "Challenge resolution timed out. The challenge could not be solved within the allowed time.",
		Err:     ErrChallengeTimeout,
	}
}

// NewUnsolvableChallengeError creates an error for unsolvable challenges.
func NewUnsolvableChallengeError(url string, reason string) *ChallengeError {
	return &ChallengeError{
		Type:    "unsolvable",
		URL:     url,
		Message: "Challenge could not be solved: " + reason,
		Err:     ErrChallengeUnsolvable,
	}
}

// PoolError provides detailed information about browser pool failures.
type PoolError struct {
	Operation string // The operation that failed
	ProxyKey  string // Pool bucket the operation targeted
	Message   string // Human-readable error message
	Err       error  // Underlying error
}

// Error implements the error interface.
func (e *PoolError) Error() string {
	return e.Message
}

// Unwrap returns the underlying error.
func (e *PoolError) Unwrap() error {
	return e.Err
}

// NewPoolAcquireError creates an error for pool acquire failures.
func NewPoolAcquireError(proxyKey, reason string, err error) *PoolError {
	return &PoolError{
		Operation: "acquire",
		ProxyKey:  proxyKey,
		Message:   "Failed to acquire browser from pool: " + reason,
		Err:       err,
	}
}

// NewContextAcquireError creates an error for context acquire failures.
func NewContextAcquireError(proxyKey, reason string, err error) *PoolError {
	return &PoolError{
		Operation: "acquire_context",
		ProxyKey:  proxyKey,
		Message:   "Failed to acquire browser context: " + reason,
		Err:       err,
	}
}

// SolverError provides detailed information about turnstile solving failures.
// It implements the error interface and supports error unwrapping.
type SolverError struct {
	Tier    string // Tier name: "primary", "secondary", "manual"
	TaskID  string // Task ID from the service (for debugging)
	Code    string // Error code from the service
	Message string // Human-readable error message
	Err     error  // Underlying error (for unwrapping)
}

// Error implements the error interface.
func (e *SolverError) Error() string {
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *SolverError) Unwrap() error {
	return e.Err
}

// NewSolverTimeoutError creates an error for a solve that ran out of time.
func NewSolverTimeoutError(tier, taskID string) *SolverError {
	return &SolverError{
		Tier:    tier,
		TaskID:  taskID,
		Code:    "timeout",
		Message: "Turnstile solving timed out waiting for solution from " + tier + " tier",
		Err:     ErrSolverTimeout,
	}
}

// NewSolverRejectedError creates an error when the service rejects a task.
func NewSolverRejectedError(tier, code, reason string) *SolverError {
	return &SolverError{
		Tier:    tier,
		Code:    code,
		Message: "Turnstile task rejected by " + tier + " tier: " + reason,
		Err:     ErrSolverRejected,
	}
}

// NewSolverUnavailableError creates an error when the service cannot be reached.
func NewSolverUnavailableError(tier string, err error) *SolverError {
	return &SolverError{
		Tier:    tier,
		Code:    "unavailable",
		Message: "Turnstile service unreachable for " + tier + " tier",
		Err:     errors.Join(ErrSolverUnavailable, err),
	}
}

// NewSolverBalanceError creates an error for insufficient balance.
func NewSolverBalanceError(tier string) *SolverError {
	return &SolverError{
		Tier:    tier,
		Code:    "insufficient_balance",
		Message: "Insufficient balance for " + tier + " tier",
		Err:     ErrSolverBalance,
	}
}
