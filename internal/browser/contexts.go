package browser

import (
	"context"
	"fmt"
	"math/rand"
	"net/url"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/rs/zerolog/log"

	"github.com/exomass/masschecker-go/internal/types"
)

// BrowserContext is an isolated incognito context carved out of a pooled
// browser. A context is cheap to create and destroy compared to a browser,
// so contexts are the unit handed to individual account checks.
type BrowserContext struct {
	browser   *rod.Browser // incognito context, behaves as a browser handle
	parent    *browserEntry
	pool      *Pool
	userAgent string
	createdAt time.Time
	uses      int
	evicted   bool
}

// Browser returns the underlying incognito handle for opening pages.
func (c *BrowserContext) Browser() *rod.Browser {
	return c.browser
}

// UserAgent returns the user agent assigned to this context. Every page
// opened inside the context should carry the same one, mixing agents within
// a session is a detection signal.
func (c *BrowserContext) UserAgent() string {
	return c.userAgent
}

// NewPage opens a page in the context with the context's user agent, a
// randomized desktop viewport, and stealth patches applied before any
// navigation. Extra initScripts are installed to run on every new document,
// which is how the challenge interception hook gets in before the page's
// own scripts.
func (c *BrowserContext) NewPage(ctx context.Context, initScripts ...string) (*rod.Page, error) {
	if c.evicted {
		return nil, types.ErrContextEvicted
	}
	page, err := c.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	page = page.Context(ctx)

	if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
		log.Debug().Err(err).Msg("Failed to install stealth script")
	}
	for _, script := range initScripts {
		if _, err := page.EvalOnNewDocument(script); err != nil {
			log.Debug().Err(err).Msg("Failed to install init script")
		}
	}
	if err := ApplyStealthToPage(page); err != nil {
		log.Warn().Err(err).Msg("Stealth patch failed")
	}

	if c.userAgent != "" {
		override := &proto.NetworkSetUserAgentOverride{
			UserAgent:      c.userAgent,
			AcceptLanguage: "en-US,en;q=0.9",
		}
		if err := page.SetUserAgent(override); err != nil {
			log.Debug().Err(err).Msg("Failed to override user agent")
		}
	}

	w, h := randomViewport()
	if err := SetViewport(page, w, h); err != nil {
		log.Debug().Err(err).Msg("Failed to set viewport")
	}

	return page, nil
}

// Common desktop resolutions, slightly jittered per page so a fleet of
// contexts does not share one pixel-identical viewport.
var baseViewports = [][2]int{
	{1920, 1080},
	{1680, 1050},
	{1600, 900},
	{1440, 900},
	{1366, 768},
}

func randomViewport() (int, int) {
	base := baseViewports[rand.Intn(len(baseViewports))]
	return base[0] - rand.Intn(16), base[1] - rand.Intn(16)
}

// clearSession wipes cookies and site storage so the next check starts from
// a clean session without paying for a new context.
func (c *BrowserContext) clearSession(origin string) error {
	if err := (proto.StorageClearCookies{}).Call(c.browser); err != nil {
		return fmt.Errorf("failed to clear cookies: %w", err)
	}
	if origin != "" {
		err := proto.StorageClearDataForOrigin{
			Origin:       origin,
			StorageTypes: "all",
		}.Call(c.browser)
		if err != nil {
			log.Debug().Err(err).Str("origin", origin).Msg("Failed to clear origin storage")
		}
	}
	return nil
}

// close tears the incognito context down. Pages die with it.
func (c *BrowserContext) close() {
	c.evicted = true
	if c.browser == nil {
		return
	}
	if err := c.browser.Close(); err != nil {
		log.Debug().Err(err).Msg("Error closing browser context")
	}
}

// AcquireContext returns a context for one account check, reusing a pooled
// one when its budget allows or creating a fresh one otherwise. The caller
// must return it with ReleaseContext.
func (p *Pool) AcquireContext(ctx context.Context, proxyURL string) (*BrowserContext, error) {
	entry, err := p.acquireEntry(ctx, proxyURL)
	if err != nil {
		return nil, err
	}

	entry.ctxMu.Lock()

	// Prefer a pooled context with budget left.
	for i, bc := range entry.contexts {
		if bc.uses < p.config.ContextReuseCount {
			entry.contexts = append(entry.contexts[:i], entry.contexts[i+1:]...)
			entry.ctxMu.Unlock()

			if err := bc.clearSession(originOf(p.config.TargetURL)); err != nil {
				log.Warn().Err(err).Msg("Session clear failed, discarding context")
				bc.close()
				p.stats.ContextsEvicted.Add(1)
				return p.createContext(entry)
			}
			bc.uses++
			p.stats.ContextsReused.Add(1)
			log.Debug().
				Str("bucket", entry.key).
				Int("uses", bc.uses).
				Msg("Reusing browser context")
			return bc, nil
		}
	}
	entry.ctxMu.Unlock()

	return p.createContext(entry)
}

// createContext makes a fresh incognito context on the entry's browser.
func (p *Pool) createContext(entry *browserEntry) (*BrowserContext, error) {
	incognito, err := entry.browser.Incognito()
	if err != nil {
		p.stats.Errors.Add(1)
		return nil, types.NewContextAcquireError(entry.key, "incognito context failed", err)
	}

	bc := &BrowserContext{
		browser:   incognito,
		parent:    entry,
		pool:      p,
		userAgent: p.ua.Next(),
		createdAt: time.Now(),
		uses:      1,
	}
	p.stats.ContextsCreated.Add(1)
	return bc, nil
}

// ReleaseContext returns a context to its parent's sub-pool. Contexts past
// their reuse budget are closed. When the sub-pool is full the oldest
// pooled context is evicted to make room, keeping recently used sessions
// warm.
func (p *Pool) ReleaseContext(bc *BrowserContext) {
	if bc == nil || bc.evicted {
		return
	}
	if p.closed.Load() {
		bc.close()
		return
	}

	if bc.uses >= p.config.ContextReuseCount {
		log.Debug().
			Str("bucket", bc.parent.key).
			Int("uses", bc.uses).
			Msg("Context reuse budget spent, closing")
		bc.close()
		p.stats.ContextsEvicted.Add(1)
		return
	}

	entry := bc.parent
	entry.ctxMu.Lock()
	if len(entry.contexts) >= p.config.MaxContextsPerBrowser {
		oldest := entry.contexts[0]
		entry.contexts = entry.contexts[1:]
		entry.ctxMu.Unlock()
		oldest.close()
		p.stats.ContextsEvicted.Add(1)
		entry.ctxMu.Lock()
	}
	entry.contexts = append(entry.contexts, bc)
	entry.ctxMu.Unlock()
}

// closeAllContexts closes every pooled context on the entry and reports how
// many were closed.
func (e *browserEntry) closeAllContexts(stats *PoolStats) int {
	e.ctxMu.Lock()
	contexts := e.contexts
	e.contexts = nil
	e.ctxMu.Unlock()

	for _, bc := range contexts {
		bc.close()
		stats.ContextsEvicted.Add(1)
	}
	return len(contexts)
}

// pruneContexts closes pooled contexts beyond max, oldest first, and
// reports how many were closed. Contexts within the cap stay warm.
func (e *browserEntry) pruneContexts(max int, stats *PoolStats) int {
	if max < 1 {
		max = 1
	}

	e.ctxMu.Lock()
	excess := len(e.contexts) - max
	if excess <= 0 {
		e.ctxMu.Unlock()
		return 0
	}
	oldest := e.contexts[:excess]
	e.contexts = e.contexts[excess:]
	e.ctxMu.Unlock()

	for _, bc := range oldest {
		bc.close()
		stats.ContextsEvicted.Add(1)
	}
	return len(oldest)
}

// originOf reduces a URL to its scheme://host origin for storage clearing.
func originOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
