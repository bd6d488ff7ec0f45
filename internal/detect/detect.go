// Package detect finds anti-bot challenges on a page and extracts the
// parameters an external solver needs. Detection is phased: a cheap
// immediate scan, then polling with progressively looser selectors, then a
// final check for evidence that the challenge already resolved itself.
package detect

import (
	"context"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/rs/zerolog/log"

	"github.com/exomass/masschecker-go/internal/selectors"
	"github.com/exomass/masschecker-go/internal/types"
)

// Kind identifies the challenge family on a page.
type Kind string

const (
	KindNone         Kind = "none"
	KindTurnstile    Kind = "turnstile"
	KindJavaScript   Kind = "javascript"
	KindAccessDenied Kind = "access_denied"
)

// Challenge describes a detected challenge and its solver parameters.
// Descriptors are transient: they are valid for the page state they were
// extracted from and must be re-extracted after any reload.
type Challenge struct {
	Detected bool
	Kind     Kind
	URL      string

	Sitekey  string
	Action   string
	CData    string
	PageData string

	// Locator is the selector that matched during detection.
	Locator string

	// AutoResolved means the challenge completed on its own: a response
	// token is already present and no solving is needed.
	AutoResolved bool
}

// Detector scans pages for challenges using configured selector patterns.
type Detector struct {
	sel *selectors.Selectors

	pollInterval time.Duration
	// extendedAfter is how long to wait before the low-confidence selector
	// set joins the scan. Early on it would produce false positives.
	extendedAfter time.Duration
}

// New creates a detector using the active selector configuration.
func New() *Detector {
	return &Detector{
		sel:           selectors.Get(),
		pollInterval:  time.Second,
		extendedAfter: 10 * time.Second,
	}
}

// NewWithSelectors creates a detector with explicit selector configuration.
func NewWithSelectors(sel *selectors.Selectors) *Detector {
	d := New()
	d.sel = sel
	return d
}

// extendedThreshold is how far into a scan of the given length the
// low-confidence selectors join. Short windows scale it down to half the
// window so the extended set still gets a turn before the deadline.
func (d *Detector) extendedThreshold(maxWait time.Duration) time.Duration {
	if maxWait <= d.extendedAfter {
		return maxWait / 2
	}
	return d.extendedAfter
}

// extendedSelectors are low-confidence challenge indicators. They match
// wrappers that exist on some pages without an active challenge, so they
// only join the scan once the high-confidence set has come up empty for a
// while.
var extendedSelectors = []string{
	"#cf-wrapper",
	"#challenge-form",
	"iframe[src*='challenges.cloudflare.com']",
	"[class*='turnstile']",
	"[id*='turnstile']",
}

// Detect scans the page for a challenge, waiting up to maxWait for one to
// appear. A nil error with Detected=false means the page is clean.
func (d *Detector) Detect(ctx context.Context, page *rod.Page, maxWait time.Duration) (*Challenge, error) {
	deadline := time.Now().Add(maxWait)
	started := time.Now()
	extendAt := d.extendedThreshold(maxWait)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		ch := d.scanOnce(page, time.Since(started) > extendAt)
		if ch != nil {
			if ch.Kind == KindAccessDenied {
				return ch, types.NewAccessDeniedError(ch.URL)
			}
			log.Debug().
				Str("kind", string(ch.Kind)).
				Str("locator", ch.Locator).
				Msg("Challenge detected")
			return ch, nil
		}

		if time.Now().After(deadline) {
			break
		}
		if !sleepWithContext(ctx, d.pollInterval) {
			return nil, ctx.Err()
		}
	}

	// Final phase: the widget may have run and resolved before we ever saw
	// it. A populated response input is the evidence.
	if token := d.responseToken(page); token != "" {
		info, _ := page.Info()
		ch := &Challenge{
			Detected:     true,
			Kind:         KindTurnstile,
			AutoResolved: true,
		}
		if info != nil {
			ch.URL = info.URL
		}
		log.Debug().Msg("Challenge auto-resolved before detection")
		return ch, nil
	}

	return &Challenge{Detected: false, Kind: KindNone}, nil
}

// Present does a single cheap scan and reports whether challenge evidence
// is currently on the page. Used by solve verification.
func (d *Detector) Present(page *rod.Page) (string, bool) {
	ch := d.scanOnce(page, true)
	if ch == nil || ch.Kind == KindNone {
		return "", false
	}
	return ch.Locator, true
}

// VerifyGone polls until the challenge evidence disappears from the page
// or the timeout expires. A solver success that does not verify is not a
// success.
func (d *Detector) VerifyGone(ctx context.Context, page *rod.Page, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		locator, present := d.Present(page)
		if !present {
			return nil
		}
		if time.Now().After(deadline) {
			log.Debug().Str("locator", locator).Msg("Challenge evidence still present after verification window")
			return types.ErrSolveNotVerified
		}
		if !sleepWithContext(ctx, d.pollInterval) {
			return ctx.Err()
		}
	}
}

// scanOnce runs one detection pass. Returns nil when nothing matched.
func (d *Detector) scanOnce(page *rod.Page, extended bool) *Challenge {
	info, err := page.Info()
	var pageURL, title string
	if err == nil && info != nil {
		pageURL = info.URL
		title = strings.ToLower(info.Title)
	}

	// Selector scan with a visibility gate: hidden or zero-sized matches
	// are leftovers, not an active challenge.
	selSet := d.sel.TurnstileSelectors
	if extended {
		selSet = append(append([]string{}, selSet...), extendedSelectors...)
	}
	for _, sel := range selSet {
		if d.visibleMatch(page, sel) {
			return &Challenge{
				Detected: true,
				Kind:     KindTurnstile,
				URL:      pageURL,
				Locator:  sel,
			}
		}
	}

	// Title and HTML classification catch interstitials with no widget yet.
	challengeTitle := false
	for _, marker := range d.sel.ChallengeMarkers {
		if title != "" && strings.Contains(title, marker) {
			challengeTitle = true
			break
		}
	}

	html, err := page.HTML()
	if err != nil {
		if challengeTitle {
			return &Challenge{Detected: true, Kind: KindJavaScript, URL: pageURL, Locator: "title"}
		}
		return nil
	}

	switch kind := d.ClassifyHTML(html); kind {
	case KindAccessDenied:
		return &Challenge{Detected: true, Kind: KindAccessDenied, URL: pageURL}
	case KindTurnstile:
		return &Challenge{Detected: true, Kind: KindTurnstile, URL: pageURL, Locator: "html"}
	case KindJavaScript:
		return &Challenge{Detected: true, Kind: KindJavaScript, URL: pageURL, Locator: "html"}
	}

	if challengeTitle {
		return &Challenge{Detected: true, Kind: KindJavaScript, URL: pageURL, Locator: "title"}
	}
	return nil
}

// visibleMatch reports whether the selector matches a visible element with
// a non-zero box.
func (d *Detector) visibleMatch(page *rod.Page, sel string) bool {
	has, el, err := page.Has(sel)
	if err != nil || !has || el == nil {
		return false
	}
	defer func() {
		if err := el.Release(); err != nil {
			log.Debug().Err(err).Msg("Failed to release element")
		}
	}()

	visible, err := el.Visible()
	if err != nil || !visible {
		return false
	}
	shape, err := el.Shape()
	if err != nil || shape == nil {
		return false
	}
	box := shape.Box()
	return box != nil && box.Width > 0 && box.Height > 0
}

// ClassifyHTML determines the challenge family from raw page HTML.
func (d *Detector) ClassifyHTML(html string) Kind {
	htmlLower := strings.ToLower(html)

	for _, pattern := range d.sel.AccessDenied {
		if strings.Contains(htmlLower, pattern) && strings.Contains(htmlLower, "cloudflare") {
			return KindAccessDenied
		}
	}
	for _, pattern := range d.sel.Turnstile {
		if strings.Contains(htmlLower, pattern) {
			return KindTurnstile
		}
	}
	for _, pattern := range d.sel.JavaScript {
		if strings.Contains(htmlLower, pattern) {
			return KindJavaScript
		}
	}
	return KindNone
}

// responseToken returns the value of the challenge response input, or ""
// when absent or empty.
func (d *Detector) responseToken(page *rod.Page) string {
	res, err := page.Eval(`() => {
		var el = document.querySelector('input[name="cf-turnstile-response"]');
		return el ? (el.value || '') : '';
	}`)
	if err != nil || res == nil {
		return ""
	}
	return res.Value.Str()
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
