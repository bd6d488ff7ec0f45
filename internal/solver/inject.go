package solver

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/rs/zerolog/log"

	"github.com/exomass/masschecker-go/internal/detect"
	"github.com/exomass/masschecker-go/internal/types"
)

// DeliverToken pushes a solved token into the page through every delivery
// path at once: the captured render callback, the hidden response input
// (created when the page has none), and any conventional window callbacks.
// The page decides which one it listens to.
func DeliverToken(ctx context.Context, page *rod.Page, token string) error {
	if token == "" {
		return fmt.Errorf("%w: empty token", types.ErrTokenInjection)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	log.Debug().
		Str("token_prefix", truncateKey(token)).
		Msg("Delivering solver token to page")

	res, err := page.Context(ctx).Eval(detect.ResolveScript, token)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrTokenInjection, err)
	}

	delivered := res.Value.Str()
	if delivered == "" {
		return types.ErrTokenInjection
	}
	log.Info().Str("paths", delivered).Msg("Token delivered")
	return nil
}
