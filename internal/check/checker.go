// Package check runs individual account checks and batches of them. Each
// check drives a pooled browser context through the target's login flow,
// clearing challenges wherever they appear, and classifies the outcome.
package check

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/rs/zerolog/log"

	"github.com/exomass/masschecker-go/internal/browser"
	"github.com/exomass/masschecker-go/internal/config"
	"github.com/exomass/masschecker-go/internal/detect"
	"github.com/exomass/masschecker-go/internal/selectors"
	"github.com/exomass/masschecker-go/internal/solver"
	"github.com/exomass/masschecker-go/internal/stats"
	"github.com/exomass/masschecker-go/internal/storage"
	"github.com/exomass/masschecker-go/internal/types"
)

// Checker performs account checks against the configured target.
type Checker struct {
	cfg      *config.Config
	pool     *browser.Pool
	detector *detect.Detector
	solver   *solver.Orchestrator
	stats    *stats.Manager
	sel      *selectors.Selectors
	uploader storage.Uploader // nil when no artifact sink is configured
}

// New wires a checker from its collaborators. uploader may be nil.
func New(cfg *config.Config, pool *browser.Pool, det *detect.Detector, orch *solver.Orchestrator, st *stats.Manager, uploader storage.Uploader) *Checker {
	return &Checker{
		cfg:      cfg,
		pool:     pool,
		detector: det,
		solver:   orch,
		stats:    st,
		sel:      selectors.Get(),
		uploader: uploader,
	}
}

// Check runs one credential through the login flow. It never panics and
// never returns an error: every failure mode is folded into the result's
// status. The caller decides what to do with Captcha and Error outcomes.
func (c *Checker) Check(ctx context.Context, cred types.Credential, proxyURL string) (result types.CheckResult) {
	started := time.Now()
	result = types.CheckResult{
		Credential: cred,
		ProxyUsed:  proxyURL,
		CheckedAt:  started,
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("email", cred.Email).Msg("Check panicked")
			result.Status = types.StatusError
			result.Message = fmt.Sprintf("internal error: %v", r)
			c.pool.Cleanup("panic")
		}
		result.Elapsed = time.Since(started)
		c.recordResult(&result)
	}()

	if err := cred.Validate(); err != nil {
		result.Status = types.StatusError
		result.Message = err.Error()
		return result
	}

	state := &checkState{proxyURL: proxyURL}
	status, message := c.run(ctx, cred, state)

	result.Status = status
	result.Message = message
	result.SolveCount = state.solves
	result.RetriedOnce = state.retried
	return result
}

// checkState carries per-check bookkeeping across flow steps.
type checkState struct {
	proxyURL   string
	challenged bool
	solves     int
	retried    bool
}

// run is the state machine body: navigate, fill, submit, classify, with a
// challenge gate after every step that can surface one.
func (c *Checker) run(ctx context.Context, cred types.Credential, state *checkState) (status types.CheckStatus, msg string) {
	bc, err := c.pool.AcquireContext(ctx, state.proxyURL)
	if err != nil {
		return c.failWith(err, "browser acquisition failed")
	}
	defer c.pool.ReleaseContext(bc)

	pageCtx, cancel := context.WithTimeout(ctx, c.cfg.LoginTimeout)
	defer cancel()

	page, err := bc.NewPage(pageCtx, detect.InterceptScript)
	if err != nil {
		return c.failWith(err, "page creation failed")
	}
	defer func() {
		// Ship the final page state for failed checks before the page
		// goes away; screenshots are the only way to debug a remote run.
		if status == types.StatusCaptcha || status == types.StatusError {
			c.captureFailureShot(page, cred)
		}
		if err := page.Close(); err != nil {
			log.Debug().Err(err).Msg("Page close failed")
		}
	}()

	cleanup, err := browser.BlockResources(pageCtx, page, c.cfg.BlockResourceTypes)
	if err != nil {
		log.Debug().Err(err).Msg("Resource blocking unavailable")
	}
	defer cleanup()

	if err := c.navigate(pageCtx, page); err != nil {
		return c.failWith(err, "navigation failed")
	}

	if status, msg, ok := c.challengeGate(pageCtx, page, state, "post-navigation"); !ok {
		return status, msg
	}

	if err := c.login(pageCtx, page, cred, state); err != nil {
		var term *terminalError
		if errors.As(err, &term) {
			return term.status, term.msg
		}
		if status, msg, ok := c.challengeGate(pageCtx, page, state, "login-failure"); !ok {
			return status, msg
		}
		// One retry of the failed flow after a cleared challenge.
		if state.retried {
			return c.failWith(err, "login flow failed")
		}
		state.retried = true
		if rerr := c.login(pageCtx, page, cred, state); rerr != nil {
			if errors.As(rerr, &term) {
				return term.status, term.msg
			}
			return c.failWith(rerr, "login flow failed after retry")
		}
	}

	if status, msg, ok := c.challengeGate(pageCtx, page, state, "post-submit"); !ok {
		return status, msg
	}

	return c.classifyOutcome(page)
}

// navigate loads the target URL, retrying once on timeout.
func (c *Checker) navigate(ctx context.Context, page *rod.Page) error {
	for attempt := 0; attempt < 2; attempt++ {
		navCtx, cancel := context.WithTimeout(ctx, c.cfg.NavigationTimeout)
		err := page.Context(navCtx).Navigate(c.cfg.TargetURL)
		if err == nil {
			err = page.Context(navCtx).WaitLoad()
		}
		cancel()

		if err == nil {
			return nil
		}
		if attempt == 0 && (errors.Is(err, context.DeadlineExceeded) || isTimeoutText(err)) {
			log.Warn().Err(err).Msg("Navigation timed out, retrying once")
			continue
		}
		return err
	}
	return fmt.Errorf("navigation retries exhausted")
}

// challengeGate detects and resolves a challenge at a flow step. ok=false
// means the check terminates with the returned status.
func (c *Checker) challengeGate(ctx context.Context, page *rod.Page, state *checkState, step string) (types.CheckStatus, string, bool) {
	result, err := c.solver.Resolve(ctx, page, state.proxyURL)
	if err != nil {
		state.challenged = true
		log.Warn().Err(err).Str("step", step).Msg("Challenge could not be cleared")
		return gateStatus(err), fmt.Sprintf("unsolved challenge at %s: %v", step, err), false
	}
	if result.Challenged {
		state.challenged = true
		if result.Solved {
			state.solves++
			log.Info().
				Str("step", step).
				Str("method", result.Method).
				Dur("elapsed", result.Elapsed).
				Msg("Challenge cleared")
		}
	}
	return "", "", true
}

// gateStatus maps a resolve failure to a terminal status. Only a
// challenge that stayed unsolved is a Captcha outcome; cancellation,
// timeouts and hard site blocks are operational errors, not evidence
// the credential hit an unsolvable wall.
func gateStatus(err error) types.CheckStatus {
	switch {
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, types.ErrContextCanceled),
		errors.Is(err, types.ErrAccessDenied),
		errors.Is(err, types.ErrBrowserPoolClosed):
		return types.StatusError
	}
	return types.StatusCaptcha
}

// failWith maps an internal failure to a terminal status, forcing a pool
// cleanup when the message smells like resource exhaustion.
func (c *Checker) failWith(err error, context string) (types.CheckStatus, string) {
	if isExhaustion(err) {
		log.Warn().Err(err).Msg("Resource exhaustion suspected, forcing pool cleanup")
		c.pool.Cleanup("exhaustion")
		time.Sleep(exhaustionCooldown)
	}
	return types.StatusError, fmt.Sprintf("%s: %v", context, err)
}

// captureFailureShot screenshots the page and ships it to the artifact
// sink. Best effort: a failed capture never affects the check outcome.
func (c *Checker) captureFailureShot(page *rod.Page, cred types.Credential) {
	if c.uploader == nil {
		return
	}
	shot, err := page.Screenshot(false, nil)
	if err != nil {
		log.Debug().Err(err).Msg("Failure screenshot capture failed")
		return
	}
	storage.UploadAsync(c.uploader, artifactName(cred.Email, time.Now()), shot)
}

// artifactName builds a collision-free upload path for a failure
// screenshot, with the email sanitized down to a safe charset.
func artifactName(email string, at time.Time) string {
	sanitized := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, email)
	return fmt.Sprintf("shots/%s_%d.png", sanitized, at.UnixNano())
}

func (c *Checker) recordResult(result *types.CheckResult) {
	total := c.pool.NoteCheckDone()
	if ran, reason := c.pool.MaybeCleanup(); ran {
		log.Debug().Str("reason", reason).Int64("checks", total).Msg("Post-check cleanup ran")
	}
	c.stats.RecordCheck(result.ProxyUsed, result.Status, result.Elapsed,
		result.SolveCount > 0 || result.Status == types.StatusCaptcha, result.SolveCount > 0)
}

// exhaustionCooldown gives the fleet a moment to settle after a forced
// cleanup before the worker takes its next credential.
const exhaustionCooldown = 2 * time.Second

// exhaustionKeywords mark errors that usually mean the browser fleet, not
// the credential, is the problem.
var exhaustionKeywords = []string{"memory", "resource", "timeout", "connection", "browser"}

func isExhaustion(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, kw := range exhaustionKeywords {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}

func isTimeoutText(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "timeout")
}
