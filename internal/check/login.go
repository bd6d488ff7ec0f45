package check

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog/log"

	"github.com/exomass/masschecker-go/internal/humanize"
	"github.com/exomass/masschecker-go/internal/types"
)

const elementWait = 10 * time.Second

// terminalError carries a check status that must be reported as-is
// instead of being folded into the generic error path.
type terminalError struct {
	status types.CheckStatus
	msg    string
}

func (e *terminalError) Error() string { return e.msg }

// login drives the email/continue/password/submit sequence. Sites differ
// in whether the password field appears on the first screen or only after
// the email is confirmed, so both shapes are handled.
func (c *Checker) login(ctx context.Context, page *rod.Page, cred types.Credential, state *checkState) error {
	typer := humanize.NewTyper(page)
	scroller := humanize.NewScroller(page)

	emailEl, err := c.findField(ctx, page, c.sel.Login.EmailFields)
	if err != nil {
		if status, msg, ok := c.challengeGate(ctx, page, state, "email-field"); !ok {
			return &terminalError{status: status, msg: msg}
		}
		emailEl, err = c.findField(ctx, page, c.sel.Login.EmailFields)
		if err != nil {
			return fmt.Errorf("email field not found: %w", err)
		}
	}
	// Scroll fields into view before touching them. Typing into an
	// off-screen input is a bot tell, and some frameworks ignore events
	// on elements outside the viewport.
	if _, serr := scroller.EnsureElementVisible(ctx, emailEl); serr != nil {
		log.Debug().Err(serr).Msg("Scroll to email field failed")
	}
	if err := typer.FillField(ctx, emailEl, cred.Email); err != nil {
		return fmt.Errorf("typing email: %w", err)
	}

	// Two-step flows need a Continue press before the password appears.
	if _, ferr := c.findFieldQuick(page, c.sel.Login.PasswordFields); ferr != nil {
		if err := c.pressContinue(ctx, page, emailEl); err != nil {
			return fmt.Errorf("advancing past email step: %w", err)
		}
		if status, msg, ok := c.challengeGate(ctx, page, state, "post-continue"); !ok {
			return &terminalError{status: status, msg: msg}
		}
	}

	passEl, err := c.findField(ctx, page, c.sel.Login.PasswordFields)
	if err != nil {
		return fmt.Errorf("password field not found: %w", err)
	}
	if _, serr := scroller.EnsureElementVisible(ctx, passEl); serr != nil {
		log.Debug().Err(serr).Msg("Scroll to password field failed")
	}
	if err := typer.FillField(ctx, passEl, cred.Password); err != nil {
		return fmt.Errorf("typing password: %w", err)
	}

	if err := c.pressSignIn(ctx, page, passEl); err != nil {
		return fmt.Errorf("submitting login: %w", err)
	}

	if err := page.Context(ctx).WaitLoad(); err != nil {
		log.Debug().Err(err).Msg("Post-submit load wait failed")
	}
	// Give single-page flows time to settle before classification.
	if err := sleepCtx(ctx, 2*time.Second); err != nil {
		return err
	}
	return nil
}

// findField tries each selector in order, waiting up to elementWait total.
func (c *Checker) findField(ctx context.Context, page *rod.Page, sels []string) (*rod.Element, error) {
	deadline := time.Now().Add(elementWait)
	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if el, err := c.findFieldQuick(page, sels); err == nil {
			return el, nil
		}
		if err := sleepCtx(ctx, 500*time.Millisecond); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("no visible element for %d selectors", len(sels))
}

func (c *Checker) findFieldQuick(page *rod.Page, sels []string) (*rod.Element, error) {
	for _, sel := range sels {
		el, err := page.Timeout(time.Second).Element(sel)
		if err != nil {
			continue
		}
		if visible, _ := el.Visible(); visible {
			return el, nil
		}
	}
	return nil, fmt.Errorf("not found")
}

// pressContinue clicks a Continue/Next button, falling back to text match
// and finally Enter on the focused field.
func (c *Checker) pressContinue(ctx context.Context, page *rod.Page, field *rod.Element) error {
	if btn, err := c.findFieldQuick(page, c.sel.Login.ContinueButtons); err == nil {
		if err := btn.Context(ctx).Click(proto.InputMouseButtonLeft, 1); err == nil {
			return nil
		}
	}
	if btn, err := page.Timeout(2 * time.Second).ElementR("button", c.sel.Login.ContinueText); err == nil {
		if err := btn.Context(ctx).Click(proto.InputMouseButtonLeft, 1); err == nil {
			return nil
		}
	}
	log.Debug().Msg("No continue button, pressing Enter")
	return field.Context(ctx).Type(input.Enter)
}

// pressSignIn clicks the submit button with text and keyboard fallbacks.
func (c *Checker) pressSignIn(ctx context.Context, page *rod.Page, field *rod.Element) error {
	if btn, err := c.findFieldQuick(page, c.sel.Login.SubmitButtons); err == nil {
		if err := btn.Context(ctx).Click(proto.InputMouseButtonLeft, 1); err == nil {
			return nil
		}
	}
	if btn, err := page.Timeout(2 * time.Second).ElementR("button", c.sel.Login.SignInText); err == nil {
		if err := btn.Context(ctx).Click(proto.InputMouseButtonLeft, 1); err == nil {
			return nil
		}
	}
	if err := field.Context(ctx).Type(input.Enter); err == nil {
		return nil
	}
	// Last resort: tab to whatever follows the password field and activate it.
	kb := page.Context(ctx).Keyboard
	if err := kb.Press(input.Tab); err != nil {
		return err
	}
	return kb.Press(input.Enter)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
