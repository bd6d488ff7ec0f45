// Package solver turns a detected challenge into a solved one. A tiered
// chain runs until one tier produces a verified solve: the primary HTTP
// solver service, an optional secondary paid API, direct widget
// interaction, and finally a headed browser on a real display. A reported
// token that does not make the challenge evidence disappear is not a solve.
package solver

import (
	"context"
	"errors"
	"time"

	"github.com/go-rod/rod"
	"github.com/rs/zerolog/log"

	"github.com/exomass/masschecker-go/internal/browser"
	"github.com/exomass/masschecker-go/internal/config"
	"github.com/exomass/masschecker-go/internal/detect"
	"github.com/exomass/masschecker-go/internal/types"
)

const (
	// How long to wait for DOM evidence to disappear after a tier
	// reports success.
	verifyWindow = 15 * time.Second

	// Detection wait before concluding a page is clean.
	detectWait = 5 * time.Second
)

// Result reports the outcome of a resolve pass.
type Result struct {
	// Challenged is false when no challenge was ever present. A clean
	// page is success, but not a solve.
	Challenged bool
	Solved     bool
	Token      string
	Method     string
	Attempts   int
	Elapsed    time.Duration
}

// TokenSolver is an external service that exchanges challenge parameters
// for a response token.
type TokenSolver interface {
	Name() string
	Solve(ctx context.Context, req *Request) (string, error)
}

// Request carries the parameters an external solver needs.
type Request struct {
	URL      string
	Sitekey  string
	Action   string
	CData    string
	PageData string
}

// challengeDetector is the slice of detect.Detector the solve chain
// needs. Narrowed so the chain can be exercised against canned page
// states.
type challengeDetector interface {
	Detect(ctx context.Context, page *rod.Page, maxWait time.Duration) (*detect.Challenge, error)
	Present(page *rod.Page) (string, bool)
	VerifyGone(ctx context.Context, page *rod.Page, maxWait time.Duration) error
	Extract(page *rod.Page, ch *detect.Challenge) error
	ClassifyPage(page *rod.Page) detect.PageType
}

// Orchestrator drives the tiered solve chain.
type Orchestrator struct {
	cfg      *config.Config
	detector challengeDetector
	pool     *browser.Pool

	primary   TokenSolver
	secondary TokenSolver // nil unless enabled

	deliver func(ctx context.Context, page *rod.Page, token string) error
	reload  func(ctx context.Context, page *rod.Page) error
}

// New builds an orchestrator from configuration. The secondary tier is
// only wired when enabled and configured.
func New(cfg *config.Config, pool *browser.Pool, detector *detect.Detector) *Orchestrator {
	o := &Orchestrator{
		cfg:      cfg,
		detector: detector,
		pool:     pool,
		primary:  NewPrimaryClient(cfg.PrimarySolverURL, cfg.SolveTimeout),
	}
	o.deliver = DeliverToken
	o.reload = o.refresh
	if cfg.SecondaryEnabled && cfg.SecondarySolverKey != "" {
		o.secondary = NewSecondaryClient(SecondaryConfig{
			BaseURL: cfg.SecondarySolverURL,
			APIKey:  cfg.SecondarySolverKey,
			Timeout: cfg.SolveTimeout,
		})
	}
	return o
}

// Resolve detects and clears any challenge on the page. proxyURL is the
// proxy the page's browser runs behind, needed when escalating to a
// visible browser. A non-nil Result means the page is clear; a nil Result
// with an error means the challenge could not be cleared and the check
// should stop.
func (o *Orchestrator) Resolve(ctx context.Context, page *rod.Page, proxyURL string) (*Result, error) {
	started := time.Now()

	ch, err := o.detector.Detect(ctx, page, detectWait)
	if err != nil {
		return nil, err
	}
	if !ch.Detected {
		return &Result{Challenged: false, Elapsed: time.Since(started)}, nil
	}
	if ch.AutoResolved {
		if err := o.detector.VerifyGone(ctx, page, verifyWindow); err == nil {
			return &Result{Challenged: true, Solved: true, Method: "auto", Elapsed: time.Since(started)}, nil
		}
		// Fall through: the token is there but the gate did not open.
	}

	result, err := o.solveWithRefresh(ctx, page, ch)
	if err == nil {
		result.Elapsed = time.Since(started)
		return result, nil
	}
	// A canceled check is not an unsolvable challenge; let the caller
	// see the cancellation itself.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}
	log.Debug().Err(err).Msg("API solve tiers exhausted")

	if o.cfg.ManualFallback {
		if result, merr := o.solveManually(ctx, page); merr == nil {
			result.Elapsed = time.Since(started)
			return result, nil
		}
	}

	if o.cfg.VisibleFallback {
		if result, verr := o.solveVisible(ctx, page, proxyURL); verr == nil {
			result.Elapsed = time.Since(started)
			return result, nil
		}
	}

	return nil, types.NewUnsolvableChallengeError(ch.URL, err.Error())
}

// solveWithRefresh runs the extract → solve → deliver → verify cycle,
// refreshing the page between failed attempts. A refresh can land past
// the challenge entirely, so the page type is re-checked each round.
func (o *Orchestrator) solveWithRefresh(ctx context.Context, page *rod.Page, ch *detect.Challenge) (*Result, error) {
	retries := o.cfg.SolveRefreshRetries
	if retries < 1 {
		retries = 1
	}
	// Attempt 1 works on the page as-is; each retry is preceded by a
	// refresh, so the retry budget counts refreshes.
	maxAttempts := retries + 1

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if attempt > 1 {
			if err := o.reload(ctx, page); err != nil {
				lastErr = err
				continue
			}
			// The reload may have landed past the challenge entirely.
			switch o.detector.ClassifyPage(page) {
			case detect.PageLogin, detect.PageAccount:
				log.Info().Int("attempt", attempt).Msg("Refresh landed past the challenge")
				return &Result{Challenged: true, Solved: true, Method: "refresh", Attempts: attempt}, nil
			}
			if _, present := o.detector.Present(page); !present {
				log.Info().Int("attempt", attempt).Msg("Challenge gone after refresh")
				return &Result{Challenged: true, Solved: true, Method: "refresh", Attempts: attempt}, nil
			}
			fresh, err := o.detector.Detect(ctx, page, detectWait)
			if err != nil {
				return nil, err
			}
			ch = fresh
		}

		if ch.Sitekey == "" {
			if err := o.detector.Extract(page, ch); err != nil {
				lastErr = err
				log.Warn().Err(err).Int("attempt", attempt).Msg("Parameter extraction failed")
				continue
			}
		}

		token, method, err := o.solveViaAPI(ctx, ch)
		if err != nil {
			lastErr = err
			if isTerminal(err) {
				return nil, err
			}
			// CAPTCHA_FAIL and timeouts retry with a fresh page state,
			// and the stale sitekey is dropped with it.
			ch.Sitekey = ""
			continue
		}

		if err := o.deliver(ctx, page, token); err != nil {
			lastErr = err
			continue
		}
		if err := o.detector.VerifyGone(ctx, page, verifyWindow); err != nil {
			lastErr = err
			log.Warn().Int("attempt", attempt).Msg("Token delivered but challenge evidence remains")
			ch.Sitekey = ""
			continue
		}

		return &Result{Challenged: true, Solved: true, Token: token, Method: method, Attempts: attempt}, nil
	}

	if lastErr == nil {
		lastErr = types.ErrRefreshRetriesExhausted
	}
	return nil, errors.Join(types.ErrRefreshRetriesExhausted, lastErr)
}

// solveViaAPI tries the primary solver, then the secondary when wired.
func (o *Orchestrator) solveViaAPI(ctx context.Context, ch *detect.Challenge) (string, string, error) {
	req := &Request{
		URL:      ch.URL,
		Sitekey:  ch.Sitekey,
		Action:   ch.Action,
		CData:    ch.CData,
		PageData: ch.PageData,
	}

	token, err := o.primary.Solve(ctx, req)
	if err == nil {
		return token, o.primary.Name(), nil
	}
	if o.secondary == nil || isTerminal(err) {
		return "", "", err
	}

	log.Info().Err(err).Msg("Primary solver failed, trying secondary")
	token, serr := o.secondary.Solve(ctx, req)
	if serr != nil {
		return "", "", errors.Join(err, serr)
	}
	return token, o.secondary.Name(), nil
}

// refresh reloads the page and waits for it to settle.
func (o *Orchestrator) refresh(ctx context.Context, page *rod.Page) error {
	if err := page.Context(ctx).Reload(); err != nil {
		return err
	}
	if err := page.Context(ctx).WaitLoad(); err != nil {
		log.Debug().Err(err).Msg("WaitLoad after refresh failed")
	}
	return nil
}

// isTerminal reports whether retrying the solve cannot help.
func isTerminal(err error) bool {
	return errors.Is(err, types.ErrSolverRejected) ||
		errors.Is(err, types.ErrSolverBalance) ||
		errors.Is(err, context.Canceled)
}
