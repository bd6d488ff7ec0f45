package solver

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog/log"
)

// solveVisible re-runs the challenge in a headed browser. Headless
// fingerprints are the main reason interactive solving fails; a real
// window on a display clears challenges the headless tier cannot. Once
// the visible browser passes, its clearance cookies are copied back into
// the original page's context and the page is reloaded through them.
func (o *Orchestrator) solveVisible(ctx context.Context, page *rod.Page, proxyURL string) (*Result, error) {
	info, err := page.Info()
	if err != nil || info == nil {
		return nil, fmt.Errorf("cannot determine page URL: %w", err)
	}
	targetURL := info.URL

	// The visible browser must share the headless one's exit IP:
	// clearance cookies are bound to the IP that earned them.
	visible, release, err := o.pool.AcquireVisible(ctx, proxyURL)
	if err != nil {
		return nil, err
	}
	defer release()

	vpage, err := visible.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("failed to open visible page: %w", err)
	}
	vpage = vpage.Context(ctx)

	// The headed window renders desktop layouts; a mobile agent from the
	// rotation would contradict the viewport and look synthetic.
	ua := o.pool.UserAgents().Desktop()
	if err := vpage.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: ua}); err != nil {
		log.Debug().Err(err).Msg("User agent override in visible browser failed")
	}

	if err := vpage.Navigate(targetURL); err != nil {
		return nil, fmt.Errorf("visible navigation failed: %w", err)
	}
	if err := vpage.WaitLoad(); err != nil {
		log.Debug().Err(err).Msg("WaitLoad in visible browser failed")
	}

	// The widget usually passes on its own in a headed browser. Give it
	// the interaction tier as a nudge if not.
	if err := o.detector.VerifyGone(ctx, vpage, verifyWindow); err != nil {
		if _, merr := o.solveManually(ctx, vpage); merr != nil {
			return nil, fmt.Errorf("visible solve failed: %w", merr)
		}
	}

	if err := o.transferCookies(vpage, page); err != nil {
		log.Warn().Err(err).Msg("Cookie transfer from visible browser failed")
	}

	if err := o.refresh(ctx, page); err != nil {
		return nil, err
	}
	if err := o.detector.VerifyGone(ctx, page, verifyWindow); err != nil {
		return nil, err
	}

	return &Result{Challenged: true, Solved: true, Method: "visible"}, nil
}

// transferCookies copies the solved session's cookies into the original
// page's context.
func (o *Orchestrator) transferCookies(from, to *rod.Page) error {
	cookies, err := from.Cookies(nil)
	if err != nil {
		return err
	}
	if len(cookies) == 0 {
		return nil
	}

	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		params = append(params, &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			SameSite: c.SameSite,
			Expires:  c.Expires,
		})
	}
	return to.SetCookies(params)
}
