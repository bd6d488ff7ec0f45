package humanize

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/rs/zerolog/log"
)

// Typer fills form fields with human-like keystroke timing.
type Typer struct {
	page   *rod.Page
	timing *Timing
}

// NewTyper creates a typing helper for the given page.
func NewTyper(page *rod.Page) *Typer {
	return &Typer{
		page:   page,
		timing: NewTiming(),
	}
}

// TypeInto focuses the element and types text one rune at a time with
// randomized per-keystroke delays.
func (t *Typer) TypeInto(ctx context.Context, element *rod.Element, text string) error {
	if err := element.Focus(); err != nil {
		return fmt.Errorf("focus field: %w", err)
	}

	if !sleepWithContext(ctx, t.timing.PreActionDelay()) {
		return ctx.Err()
	}

	for _, r := range text {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := t.page.InsertText(string(r)); err != nil {
			return fmt.Errorf("insert text: %w", err)
		}
		if !sleepWithContext(ctx, t.timing.TypingDelay()) {
			return ctx.Err()
		}
	}

	if !sleepWithContext(ctx, t.timing.PostActionDelay()) {
		return ctx.Err()
	}
	return nil
}

// fillScript sets a field value directly and fires the framework events
// a real keystroke would, so reactive forms pick the value up.
const fillScript = `(el, value) => {
	el.focus();
	el.value = value;
	el.dispatchEvent(new Event('input', { bubbles: true }));
	el.dispatchEvent(new Event('change', { bubbles: true }));
	el.blur();
}`

// FillField types into the element, falling back to direct JS value
// assignment when simulated keystrokes fail. Some login forms swallow
// synthetic key events, the JS path still fires input/change.
func (t *Typer) FillField(ctx context.Context, element *rod.Element, value string) error {
	if err := t.TypeInto(ctx, element, value); err == nil {
		return nil
	} else if ctx.Err() != nil {
		return err
	} else {
		log.Debug().Err(err).Msg("Keystroke fill failed, using JS fallback")
	}

	if _, err := element.Eval(fillScript, value); err != nil {
		return fmt.Errorf("js fill: %w", err)
	}
	return sleepAfterFill(ctx, t.timing)
}

func sleepAfterFill(ctx context.Context, timing *Timing) error {
	if !sleepWithContext(ctx, timing.PostActionDelay()) {
		return ctx.Err()
	}
	return nil
}
