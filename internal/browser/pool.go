// Package browser provides proxy-keyed browser and context pooling.
// Browsers are launched on demand, one per proxy/browser-type pairing, and
// reused across account checks. Reuse keeps memory bounded: a fresh Chrome
// per credential costs hundreds of MB, a pooled context costs almost nothing.
package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/exomass/masschecker-go/internal/config"
	"github.com/exomass/masschecker-go/internal/security"
	"github.com/exomass/masschecker-go/internal/types"
)

// Pool manages browser instances keyed by proxy.
//
// Lock ordering: mu must be acquired before any browser entry locks.
// Never hold mu while performing slow I/O operations (launch, close,
// navigation).
type Pool struct {
	mu      sync.Mutex
	buckets map[string]*browserEntry
	config  *config.Config
	policy  ThresholdPolicy
	ua      *UserAgentManager
	closed  atomic.Bool

	// Stop channel for graceful shutdown of background goroutines
	stopCh chan struct{}

	// WaitGroup to track background goroutines for clean shutdown
	wg sync.WaitGroup

	// Tracks browser-close goroutines that outlived their timeout
	leakedGoroutines atomic.Int32

	// WaitGroup for in-flight close goroutines
	closeWg sync.WaitGroup

	// Visible browsers are a separately budgeted resource class: each one
	// holds a real window on the display, so the cap is independent of the
	// headless bucket count.
	visibleSem chan struct{}

	checksDone  atomic.Int64
	lastCleanup atomic.Int64 // unix nano of the last forced cleanup

	stats PoolStats
}

// browserEntry tracks one launched browser and its context sub-pool.
type browserEntry struct {
	browser   *rod.Browser
	key       string
	proxy     *ProxyConfig
	ext       *ProxyExtension // auth helper extension, nil without credentials
	visible   bool
	createdAt time.Time
	useCount  atomic.Int64

	ctxMu    sync.Mutex
	contexts []*BrowserContext
}

// PoolStats provides statistics about pool usage.
type PoolStats struct {
	BrowsersSpawned  atomic.Int64
	BrowsersRecycled atomic.Int64
	ContextsCreated  atomic.Int64
	ContextsReused   atomic.Int64
	ContextsEvicted  atomic.Int64
	ForcedCleanups   atomic.Int64
	Errors           atomic.Int64
}

// NewPool creates a new browser pool with the specified configuration.
// Browsers are not pre-warmed: each proxy bucket is launched on first use,
// since the proxy list is not known to be fully exercised.
func NewPool(cfg *config.Config) *Pool {
	pool := &Pool{
		config:     cfg,
		policy:     PolicyFromConfig(cfg),
		ua:         NewUserAgentManager(),
		buckets:    make(map[string]*browserEntry),
		stopCh:     make(chan struct{}),
		visibleSem: make(chan struct{}, cfg.VisibleBrowserBudget),
	}
	pool.lastCleanup.Store(time.Now().UnixNano())

	pool.wg.Add(1)
	go func() {
		defer pool.wg.Done()
		pool.monitorResources()
	}()

	log.Info().
		Bool("headless", cfg.Headless).
		Int("visible_budget", cfg.VisibleBrowserBudget).
		Int("contexts_per_browser", cfg.MaxContextsPerBrowser).
		Int("context_reuse", cfg.ContextReuseCount).
		Msg("Browser pool initialized")

	return pool
}

// Policy returns the cleanup threshold policy in effect.
func (p *Pool) Policy() ThresholdPolicy {
	return p.policy
}

// UserAgents returns the pool's user agent rotation.
func (p *Pool) UserAgents() *UserAgentManager {
	return p.ua
}

// createLauncher creates a configured Rod launcher.
// The flags are tuned for anti-detection: no automation-controlled blink
// features, SwiftShader WebGL so the GPU fingerprint is populated, WebRTC
// clamped so the real exit IP never leaks past the proxy.
func (p *Pool) createLauncher(proxy *ProxyConfig, ext *ProxyExtension, visible bool, browserType string) *launcher.Launcher {
	l := launcher.New()

	if bin := p.browserBin(browserType); bin != "" {
		l = l.Bin(bin)
	}

	// Display mode. A headed browser under Xvfb is the strongest option:
	// no "HeadlessChrome" anywhere in the fingerprint. --headless=new is
	// the fallback when no display is available.
	if visible || !p.config.Headless {
		// Rod enables headless by default; it must be explicitly disabled
		// or Chrome still runs headless and challenge pages notice.
		l = l.Headless(false)
	} else {
		l = l.Set("headless", "new")
	}

	// Container flags
	l = l.Set("no-sandbox").
		Set("disable-setuid-sandbox").
		Set("disable-dev-shm-usage")

	if proxy != nil && proxy.URL != "" {
		l = l.Set("proxy-server", proxy.URL)
		log.Debug().Str("proxy", security.RedactProxyURL(proxy.URL)).Msg("Browser proxy configured")
	}
	if ext != nil {
		l = l.Set("load-extension", ext.Dir())
	}

	// Always clamp WebRTC, not just behind a proxy. ICE candidates can
	// reveal the host's real public IP and local topology.
	l = l.Set("force-webrtc-ip-handling-policy", "disable_non_proxied_udp")

	// Anti-detection flags. disable-blink-features=AutomationControlled
	// keeps navigator.webdriver false, which is the first thing checked.
	l = l.Set("disable-blink-features", "AutomationControlled")
	l = l.Delete("enable-automation")
	l = l.Set("disable-features", "Translate,TranslateUI,BlinkGenPropertyTrees,WebRtcHideLocalIpsWithMdns")
	l = l.Set("enable-features", "NetworkService,NetworkServiceInProcess")

	// SwiftShader gives software WebGL on every platform. Empty WebGL
	// values are a detection signal.
	l = l.Set("use-gl", "swiftshader").
		Set("use-angle", "swiftshader").
		Set("enable-unsafe-swiftshader").
		Set("enable-webgl").
		Set("enable-webgl2")

	// Realistic browser behavior
	l = l.Set("accept-lang", "en-US,en;q=0.9")
	l = l.Set("no-first-run").
		Set("no-default-browser-check").
		Set("disable-infobars").
		Set("disable-search-engine-choice-screen")
	l = l.Set("window-size", "1920,1080")

	// Performance and stability
	l = l.Set("disable-background-networking").
		Set("disable-default-apps").
		Set("disable-extensions-except", extOrEmpty(ext)).
		Set("disable-sync").
		Set("mute-audio").
		Set("no-zygote").
		Set("safebrowsing-disable-auto-update")
	if ext == nil {
		l = l.Set("disable-extensions")
	}

	l = l.Set("js-flags", "--max-old-space-size=256").
		Set("disable-ipc-flooding-protection").
		Set("disable-renderer-backgrounding")

	l = l.Set("disable-gpu-sandbox")

	// Do NOT use --disable-gpu on ARM, it breaks SwiftShader WebGL.
	if isARM() {
		l = l.Set("disable-gpu-compositing")
		log.Debug().Msg("ARM detected: using software compositing with SwiftShader WebGL")
	}

	return l
}

func extOrEmpty(ext *ProxyExtension) string {
	if ext == nil {
		return ""
	}
	return ext.Dir()
}

// browserBin resolves the binary for a browser type. An explicit
// BrowserPath always wins; "chrome" looks for an installed Chrome and
// falls back to rod's managed Chromium when none is found.
func (p *Pool) browserBin(browserType string) string {
	if p.config.BrowserPath != "" {
		return p.config.BrowserPath
	}
	if browserType != "chrome" {
		return ""
	}
	for _, name := range []string{"google-chrome-stable", "google-chrome", "chrome"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}

// alternateBrowserType is the engine to try when the configured one
// fails to launch.
func alternateBrowserType(browserType string) string {
	if browserType == "chrome" {
		return "chromium"
	}
	return "chrome"
}

// spawnEntry launches a browser for the given proxy and wraps it in an entry.
// Launchers are single-use, so a fresh one is created per spawn.
func (p *Pool) spawnEntry(ctx context.Context, proxy *ProxyConfig, visible bool, browserType string) (*browserEntry, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var ext *ProxyExtension
	if proxy != nil && proxy.Username != "" {
		host, port := splitHostPort(proxy.URL)
		e, err := NewProxyExtension(host, port, proxy.Username, proxy.Password)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to build proxy auth extension, relying on CDP auth")
		} else {
			ext = e
		}
	}

	l := p.createLauncher(proxy, ext, visible, browserType)

	controlURL, err := l.Launch()
	if err != nil {
		if ext != nil {
			ext.Cleanup()
		}
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		if ext != nil {
			ext.Cleanup()
		}
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	p.stats.BrowsersSpawned.Add(1)

	entry := &browserEntry{
		browser:   browser,
		key:       proxyKey(proxy, browserType),
		proxy:     proxy,
		ext:       ext,
		visible:   visible,
		createdAt: time.Now(),
	}

	log.Debug().
		Str("bucket", entry.key).
		Bool("visible", visible).
		Msg("Browser spawned")

	return entry, nil
}

// splitHostPort splits "scheme://host:port" into host and port.
func splitHostPort(proxyURL string) (string, string) {
	u, err := url.Parse(proxyURL)
	if err != nil {
		return proxyURL, ""
	}
	return u.Hostname(), u.Port()
}

// acquireEntry returns the pooled browser for the proxy, launching or
// recycling as needed. The entry's useCount is incremented.
func (p *Pool) acquireEntry(ctx context.Context, proxyURL string) (*browserEntry, error) {
	if p.closed.Load() {
		return nil, types.ErrBrowserPoolClosed
	}

	proxy, err := ParseProxy(proxyURL)
	if err != nil {
		return nil, types.NewPoolAcquireError("", err.Error(), err)
	}
	key := proxyKey(proxy, p.config.BrowserType)
	altKey := proxyKey(proxy, alternateBrowserType(p.config.BrowserType))

	const maxRetries = 3

	for retry := 0; retry < maxRetries; retry++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", types.ErrContextCanceled, ctx.Err())
		default:
		}

		p.mu.Lock()
		entry := p.buckets[key]
		if entry == nil {
			// A prior launch failure may have left this proxy on the
			// alternate engine.
			entry = p.buckets[altKey]
		}
		p.mu.Unlock()

		if entry == nil {
			fresh, err := p.spawnFallback(ctx, proxy)
			if err != nil {
				p.stats.Errors.Add(1)
				return nil, types.NewPoolAcquireError(key, "spawn failed", err)
			}

			p.mu.Lock()
			if p.closed.Load() {
				p.mu.Unlock()
				p.destroyEntry(fresh)
				return nil, types.ErrBrowserPoolClosed
			}
			if existing := p.buckets[fresh.key]; existing != nil {
				// Lost the race against a concurrent spawn, keep the winner.
				p.mu.Unlock()
				p.destroyEntry(fresh)
				entry = existing
			} else {
				p.buckets[fresh.key] = fresh
				p.mu.Unlock()
				entry = fresh
			}
		}

		// Age eviction happens at acquire so no check ever starts on a
		// browser past its lifetime.
		if time.Since(entry.createdAt) > p.policy.MaxBrowserAge {
			log.Info().
				Str("bucket", key).
				Dur("age", time.Since(entry.createdAt)).
				Msg("Browser past max age, recycling")
			p.recycleEntry(entry)
			continue
		}

		if !p.isHealthy(entry.browser) {
			log.Warn().Str("bucket", key).Int("retry", retry).Msg("Pooled browser unhealthy, recycling")
			p.stats.Errors.Add(1)
			p.recycleEntry(entry)
			continue
		}

		entry.useCount.Add(1)
		return entry, nil
	}

	p.stats.Errors.Add(1)
	return nil, fmt.Errorf("%w: bucket %s unhealthy after %d retries", types.ErrBrowserUnhealthy, key, maxRetries)
}

// spawnFallback launches a headless browser with the configured engine,
// retrying once on the alternate engine when the launch itself fails. A
// broken or missing binary should cost one retry, not the whole run.
func (p *Pool) spawnFallback(ctx context.Context, proxy *ProxyConfig) (*browserEntry, error) {
	fresh, err := p.spawnEntry(ctx, proxy, false, p.config.BrowserType)
	if err == nil || ctx.Err() != nil {
		return fresh, err
	}

	alt := alternateBrowserType(p.config.BrowserType)
	log.Warn().
		Err(err).
		Str("type", p.config.BrowserType).
		Str("fallback", alt).
		Msg("Browser launch failed, trying alternate engine")
	fresh, altErr := p.spawnEntry(ctx, proxy, false, alt)
	if altErr != nil {
		return nil, errors.Join(err, altErr)
	}
	return fresh, nil
}

// AcquireVisible launches (or waits for budget to launch) a headed browser
// for manual challenge interaction. The returned release func closes the
// browser and frees the budget slot.
func (p *Pool) AcquireVisible(ctx context.Context, proxyURL string) (*rod.Browser, func(), error) {
	if p.closed.Load() {
		return nil, nil, types.ErrBrowserPoolClosed
	}
	if cap(p.visibleSem) == 0 {
		return nil, nil, types.ErrVisibleBudgetFull
	}
	stopDisplay, err := EnsureDisplay()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", types.ErrVisibleBudgetFull, err)
	}

	select {
	case p.visibleSem <- struct{}{}:
	case <-ctx.Done():
		stopDisplay()
		return nil, nil, fmt.Errorf("%w: %v", types.ErrContextCanceled, ctx.Err())
	case <-p.stopCh:
		stopDisplay()
		return nil, nil, types.ErrBrowserPoolClosed
	}

	proxy, err := ParseProxy(proxyURL)
	if err != nil {
		<-p.visibleSem
		stopDisplay()
		return nil, nil, err
	}

	entry, err := p.spawnEntry(ctx, proxy, true, p.config.BrowserType)
	if err != nil {
		<-p.visibleSem
		stopDisplay()
		return nil, nil, err
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			p.closeBrowserWithTimeout(entry.browser, 10*time.Second)
			if entry.ext != nil {
				entry.ext.Cleanup()
			}
			<-p.visibleSem
			stopDisplay()
		})
	}
	return entry.browser, release, nil
}

// isHealthy checks if a browser is responsive and usable.
func (p *Pool) isHealthy(browser *rod.Browser) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		log.Debug().Err(err).Msg("Browser health check failed: cannot create page")
		return false
	}
	defer page.Close()

	if err := page.Context(ctx).Navigate("about:blank"); err != nil {
		log.Debug().Err(err).Msg("Browser health check failed: cannot navigate")
		return false
	}

	return true
}

// recycleEntry removes a browser from its bucket and closes it.
// The next acquire for that proxy spawns a replacement.
// Must NEVER be called while holding p.mu.
func (p *Pool) recycleEntry(entry *browserEntry) {
	if p.closed.Load() {
		log.Debug().Msg("Skipping browser recycle - pool is closed")
		return
	}

	p.mu.Lock()
	if p.buckets[entry.key] == entry {
		delete(p.buckets, entry.key)
	}
	p.mu.Unlock()

	p.stats.BrowsersRecycled.Add(1)
	log.Info().
		Str("bucket", entry.key).
		Int64("total_recycled", p.stats.BrowsersRecycled.Load()).
		Msg("Recycling browser")

	p.destroyEntry(entry)
}

// destroyEntry closes an entry's contexts, browser, and auth extension.
func (p *Pool) destroyEntry(entry *browserEntry) {
	entry.closeAllContexts(&p.stats)
	p.closeBrowserWithTimeout(entry.browser, 10*time.Second)
	if entry.ext != nil {
		entry.ext.Cleanup()
	}
}

// closeBrowserWithTimeout closes a browser with a timeout.
// If the close times out, the goroutine is tracked as leaked but we proceed.
func (p *Pool) closeBrowserWithTimeout(browser *rod.Browser, timeout time.Duration) bool {
	closeDone := make(chan struct{})
	closeStarted := time.Now()

	p.closeWg.Add(1)
	go func() {
		defer p.closeWg.Done()
		defer close(closeDone)
		if err := browser.Close(); err != nil {
			log.Warn().Err(err).Msg("Error closing browser")
		}
	}()

	select {
	case <-closeDone:
		log.Debug().
			Dur("duration", time.Since(closeStarted)).
			Msg("Browser closed")
		return true
	case <-p.stopCh:
		log.Warn().
			Dur("elapsed", time.Since(closeStarted)).
			Msg("Browser close wait abandoned during pool shutdown")
		return false
	case <-time.After(timeout):
		leaked := p.leakedGoroutines.Add(1)
		log.Warn().
			Dur("elapsed", time.Since(closeStarted)).
			Int32("leaked_count", leaked).
			Msg("Browser close timed out - goroutine leaked")
		p.stats.Errors.Add(1)
		return false
	}
}

// NoteCheckDone records a finished account check and returns the running
// total. The total feeds the every-N-checks cleanup trigger, and every
// ResourceCheckInterval checks a resource snapshot is logged.
func (p *Pool) NoteCheckDone() int64 {
	total := p.checksDone.Add(1)
	if n := int64(p.config.ResourceCheckInterval); n > 0 && total%n == 0 {
		snap := p.Snapshot()
		log.Info().
			Int64("checks", total).
			Uint64("alloc_mb", snap.AllocMB).
			Uint64("rss_mb", snap.RSSMB).
			Int("browsers", snap.Browsers).
			Int("contexts", snap.Contexts).
			Msg("Resource usage")
	}
	return total
}

// MaybeCleanup consults the threshold policy and runs a forced cleanup when
// any trigger fires. Returns the reason string when a cleanup ran.
func (p *Pool) MaybeCleanup() (bool, string) {
	snap := p.Snapshot()
	sinceLast := time.Since(time.Unix(0, p.lastCleanup.Load()))

	force, reason := p.policy.ShouldForceCleanup(snap, sinceLast)
	if !force {
		return false, ""
	}
	p.Cleanup(reason)
	return true, reason
}

// Cleanup reclaims pooled state and recycles browsers past their age
// limit. Memory pressure and resource exhaustion drop every pooled
// context and force a GC; routine cleanups only prune contexts beyond
// the per-browser cap, oldest first, keeping warm state for reuse.
func (p *Pool) Cleanup(reason string) {
	p.stats.ForcedCleanups.Add(1)
	p.lastCleanup.Store(time.Now().UnixNano())

	closeAll := reason == "memory_pressure" || reason == "exhaustion"

	p.mu.Lock()
	entries := make([]*browserEntry, 0, len(p.buckets))
	for _, e := range p.buckets {
		entries = append(entries, e)
	}
	p.mu.Unlock()

	var contexts int
	var aged []*browserEntry
	for _, e := range entries {
		if closeAll {
			contexts += e.closeAllContexts(&p.stats)
		} else {
			contexts += e.pruneContexts(p.config.MaxContextsPerBrowser, &p.stats)
		}
		if time.Since(e.createdAt) > p.policy.MaxBrowserAge {
			aged = append(aged, e)
		}
	}
	for _, e := range aged {
		p.recycleEntry(e)
	}

	if closeAll {
		runtime.GC()
		debug.FreeOSMemory()
	}

	log.Info().
		Str("reason", reason).
		Int("contexts_closed", contexts).
		Int("browsers_recycled", len(aged)).
		Msg("Forced cleanup completed")
}

// monitorResources periodically samples memory and enforces the policy.
func (p *Pool) monitorResources() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			log.Debug().Msg("Resource monitor stopping")
			return
		case <-ticker.C:
			if p.closed.Load() {
				return
			}

			snap := p.Snapshot()
			log.Debug().
				Uint64("alloc_mb", snap.AllocMB).
				Uint64("rss_mb", snap.RSSMB).
				Uint64("sys_mb", snap.SysMB).
				Int("browsers", snap.Browsers).
				Int("contexts", snap.Contexts).
				Msg("Resource snapshot")

			if snap.MemoryMB() > uint64(p.policy.MemoryThresholdMB) {
				log.Warn().
					Uint64("current_mb", snap.MemoryMB()).
					Int("threshold_mb", p.policy.MemoryThresholdMB).
					Msg("Memory threshold exceeded, forcing cleanup")
				p.Cleanup("memory_pressure")
				continue
			}

			// Age sweep so idle buckets do not outlive the limit between
			// acquires.
			p.mu.Lock()
			var aged []*browserEntry
			for _, e := range p.buckets {
				if time.Since(e.createdAt) > p.policy.MaxBrowserAge {
					aged = append(aged, e)
				}
			}
			p.mu.Unlock()
			for _, e := range aged {
				p.recycleEntry(e)
			}
		}
	}
}

// Buckets returns the number of live browser buckets.
func (p *Pool) Buckets() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buckets)
}

// PoolStatsSnapshot holds a point-in-time snapshot of pool statistics.
type PoolStatsSnapshot struct {
	BrowsersSpawned  int64
	BrowsersRecycled int64
	ContextsCreated  int64
	ContextsReused   int64
	ContextsEvicted  int64
	ForcedCleanups   int64
	Errors           int64
	LeakedGoroutines int32
}

// Stats returns a snapshot of the current pool statistics.
func (p *Pool) Stats() PoolStatsSnapshot {
	return PoolStatsSnapshot{
		BrowsersSpawned:  p.stats.BrowsersSpawned.Load(),
		BrowsersRecycled: p.stats.BrowsersRecycled.Load(),
		ContextsCreated:  p.stats.ContextsCreated.Load(),
		ContextsReused:   p.stats.ContextsReused.Load(),
		ContextsEvicted:  p.stats.ContextsEvicted.Load(),
		ForcedCleanups:   p.stats.ForcedCleanups.Load(),
		Errors:           p.stats.Errors.Load(),
		LeakedGoroutines: p.leakedGoroutines.Load(),
	}
}

// Close shuts down the pool and releases all resources.
// After Close is called, acquires return ErrBrowserPoolClosed.
// Close is safe to call multiple times.
func (p *Pool) Close() error {
	if p.closed.Swap(true) {
		return nil
	}

	log.Info().Msg("Closing browser pool")

	close(p.stopCh)

	// Wait for background goroutines with a deadline
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Debug().Msg("Background goroutines stopped")
	case <-time.After(30 * time.Second):
		log.Warn().Msg("Timeout waiting for background goroutines to stop")
	}

	closeWgDone := make(chan struct{})
	go func() {
		p.closeWg.Wait()
		close(closeWgDone)
	}()
	select {
	case <-closeWgDone:
	case <-time.After(15 * time.Second):
		log.Warn().Msg("Timeout waiting for browser close goroutines")
	}

	p.mu.Lock()
	entries := make([]*browserEntry, 0, len(p.buckets))
	for _, e := range p.buckets {
		entries = append(entries, e)
	}
	p.buckets = nil
	p.mu.Unlock()

	// Close all browsers in parallel, bounded so shutdown does not spike
	eg := new(errgroup.Group)
	eg.SetLimit(4)

	for _, entry := range entries {
		entry := entry
		eg.Go(func() error {
			entry.closeAllContexts(&p.stats)
			if err := entry.browser.Close(); err != nil {
				log.Warn().Err(err).Str("bucket", entry.key).Msg("Error closing browser during pool shutdown")
				return err
			}
			if entry.ext != nil {
				entry.ext.Cleanup()
			}
			return nil
		})
	}
	closeErr := eg.Wait()

	log.Info().
		Int64("browsers_spawned", p.stats.BrowsersSpawned.Load()).
		Int64("browsers_recycled", p.stats.BrowsersRecycled.Load()).
		Int64("contexts_created", p.stats.ContextsCreated.Load()).
		Msg("Browser pool closed")

	return closeErr
}
