package solver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog/log"

	"github.com/exomass/masschecker-go/internal/humanize"
	"github.com/exomass/masschecker-go/internal/selectors"
	"github.com/exomass/masschecker-go/internal/types"
)

// solveManually interacts with the widget directly: find the checkbox
// (through shadow roots and challenge iframes), click it with human-like
// mouse movement, fall back to keyboard navigation, then verify.
func (o *Orchestrator) solveManually(ctx context.Context, page *rod.Page) (*Result, error) {
	log.Debug().Msg("Attempting manual widget interaction")

	if err := o.clickWidget(ctx, page); err != nil {
		log.Debug().Err(err).Msg("Widget click failed, trying keyboard navigation")
		if kerr := o.keyboardSolve(ctx, page); kerr != nil {
			return nil, fmt.Errorf("manual interaction failed: %w", kerr)
		}
	}

	if err := o.detector.VerifyGone(ctx, page, verifyWindow); err != nil {
		return nil, err
	}
	return &Result{Challenged: true, Solved: true, Method: "manual"}, nil
}

// clickWidget locates the widget checkbox and clicks it. Turnstile hides
// the checkbox behind a closed shadow root inside a cross-origin iframe,
// so location goes through CDP rather than page JS.
func (o *Orchestrator) clickWidget(ctx context.Context, page *rod.Page) error {
	el, err := findWidgetCheckbox(ctx, page, o.cfg.NavigationTimeout)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := el.Release(); rerr != nil {
			log.Debug().Err(rerr).Msg("Failed to release checkbox element")
		}
	}()

	// Bring the widget into the viewport before reading its geometry; a
	// click computed from an off-screen box lands nowhere.
	scroller := humanize.NewScroller(page)
	if _, serr := scroller.EnsureElementVisible(ctx, el); serr != nil {
		log.Debug().Err(serr).Msg("Scroll to widget failed")
	}

	// Move the cursor over on a curve before clicking; a teleporting
	// cursor is its own detection signal.
	shape, err := el.Shape()
	if err == nil && shape != nil {
		if box := shape.Box(); box != nil {
			mouse := humanize.NewMouse(page)
			if merr := mouse.ClickWithinBounds(ctx, box); merr == nil {
				return nil
			}
		}
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

// keyboardSolve tabs to the widget and presses space, then looks for a
// verify button to click.
func (o *Orchestrator) keyboardSolve(ctx context.Context, page *rod.Page) error {
	if !sleepWithContext(ctx, 2*time.Second) {
		return ctx.Err()
	}

	keyboard := page.Keyboard
	for i := 0; i < 10; i++ {
		if err := keyboard.Press(input.Tab); err != nil {
			log.Debug().Err(err).Int("tab", i).Msg("Tab press failed")
			continue
		}
		if !sleepWithContext(ctx, 200*time.Millisecond) {
			return ctx.Err()
		}
	}
	if err := keyboard.Press(input.Space); err != nil {
		return err
	}

	if !sleepWithContext(ctx, time.Second) {
		return ctx.Err()
	}

	if btn, err := page.Element("//button[contains(text(),'Verify')]"); err == nil {
		if clickErr := btn.Click(proto.InputMouseButtonLeft, 1); clickErr == nil {
			log.Debug().Msg("Clicked verify button")
		}
		_ = btn.Release()
	}
	return nil
}

// findWidgetCheckbox searches widget hosts' shadow roots and challenge
// iframes for the clickable checkbox.
func findWidgetCheckbox(ctx context.Context, page *rod.Page, timeout time.Duration) (*rod.Element, error) {
	sel := selectors.Get()

	hostSelectors := []string{".cf-turnstile", "[data-sitekey]", "#turnstile-wrapper"}
	innerSelectors := []string{`input[type="checkbox"]`, "#challenge-stage input", "label input"}

	for _, host := range hostSelectors {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if el := checkboxViaHost(page, host, innerSelectors, timeout); el != nil {
			return el, nil
		}
	}

	return checkboxInFrames(ctx, page, sel.TurnstileFramePattern, innerSelectors, timeout)
}

// checkboxViaHost descends through one widget host's shadow root.
// Rod's ShadowRoot goes through DOM.describeNode, which sees closed roots.
func checkboxViaHost(page *rod.Page, hostSelector string, inner []string, timeout time.Duration) *rod.Element {
	has, _, _ := page.Has(hostSelector)
	if !has {
		return nil
	}
	host, err := page.Timeout(timeout).Element(hostSelector)
	if err != nil {
		return nil
	}
	defer func() {
		_ = host.Release()
	}()

	shadow, err := host.ShadowRoot()
	if err != nil || shadow == nil {
		return nil
	}

	for _, sel := range inner {
		if el, err := shadow.Element(sel); err == nil && el != nil {
			return el
		}
	}

	// The root may only host the widget iframe.
	iframe, err := shadow.Element("iframe")
	if err != nil || iframe == nil {
		return nil
	}
	defer func() {
		_ = iframe.Release()
	}()
	frame, err := iframe.Frame()
	if err != nil || frame == nil {
		return nil
	}
	for _, sel := range inner {
		if el, err := frame.Timeout(timeout).Element(sel); err == nil && el != nil {
			return el
		}
	}
	return nil
}

// checkboxInFrames scans page iframes whose src matches the challenge
// platform and searches each for the checkbox.
func checkboxInFrames(ctx context.Context, page *rod.Page, framePattern string, inner []string, timeout time.Duration) (*rod.Element, error) {
	const maxFrames = 20

	iframes, err := page.Elements("iframe")
	if err != nil {
		return nil, err
	}
	defer func() {
		for _, f := range iframes {
			_ = f.Release()
		}
	}()

	checked := 0
	for _, iframe := range iframes {
		if checked >= maxFrames {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		src, err := iframe.Attribute("src")
		if err != nil || src == nil || !strings.Contains(*src, framePattern) {
			continue
		}
		checked++

		frame, err := iframe.Frame()
		if err != nil {
			continue
		}
		for _, sel := range inner {
			if el, err := frame.Timeout(timeout).Element(sel); err == nil && el != nil {
				return el, nil
			}
		}
	}

	return nil, types.ErrTurnstileFailed
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
