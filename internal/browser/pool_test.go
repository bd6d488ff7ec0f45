package browser

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/exomass/masschecker-go/internal/config"
	"github.com/exomass/masschecker-go/internal/types"
)

func testConfig() *config.Config {
	return &config.Config{
		TargetURL:             "https://example.com/login",
		Headless:              true,
		BrowserType:           "chromium",
		MaxConcurrentChecks:   2,
		MaxContextsPerBrowser: 1,
		ContextReuseCount:     1,
		MaxBrowserAge:         300 * time.Second,
		VisibleBrowserBudget:  0,
		CleanupInterval:       5,
		MemoryThresholdMB:     1024,
		CleanupMaxIdle:        60 * time.Second,
	}
}

func TestPoolCloseIdempotent(t *testing.T) {
	pool := NewPool(testConfig())

	if err := pool.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := pool.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestPoolAcquireAfterClose(t *testing.T) {
	pool := NewPool(testConfig())
	if err := pool.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	_, err := pool.AcquireContext(context.Background(), "")
	if !errors.Is(err, types.ErrBrowserPoolClosed) {
		t.Errorf("AcquireContext after close = %v, want ErrBrowserPoolClosed", err)
	}

	_, _, err = pool.AcquireVisible(context.Background(), "")
	if !errors.Is(err, types.ErrBrowserPoolClosed) {
		t.Errorf("AcquireVisible after close = %v, want ErrBrowserPoolClosed", err)
	}
}

func TestPoolAcquireVisibleZeroBudget(t *testing.T) {
	pool := NewPool(testConfig())
	defer pool.Close()

	_, _, err := pool.AcquireVisible(context.Background(), "")
	if !errors.Is(err, types.ErrVisibleBudgetFull) {
		t.Errorf("AcquireVisible with zero budget = %v, want ErrVisibleBudgetFull", err)
	}
}

func TestPoolAcquireInvalidProxy(t *testing.T) {
	pool := NewPool(testConfig())
	defer pool.Close()

	_, err := pool.AcquireContext(context.Background(), "http://")
	if err == nil {
		t.Fatal("expected error for invalid proxy")
	}
}

func TestPoolNoteCheckDone(t *testing.T) {
	pool := NewPool(testConfig())
	defer pool.Close()

	for i := 1; i <= 3; i++ {
		if got := pool.NoteCheckDone(); got != int64(i) {
			t.Errorf("NoteCheckDone = %d, want %d", got, i)
		}
	}
}

func TestNoteCheckDoneLogsResourceUsage(t *testing.T) {
	var buf bytes.Buffer
	orig := log.Logger
	log.Logger = zerolog.New(&buf)
	defer func() { log.Logger = orig }()

	cfg := testConfig()
	cfg.ResourceCheckInterval = 2
	pool := NewPool(cfg)
	defer pool.Close()

	pool.NoteCheckDone()
	if strings.Contains(buf.String(), "Resource usage") {
		t.Error("resource usage logged after 1 check with interval 2")
	}
	pool.NoteCheckDone()
	if !strings.Contains(buf.String(), "Resource usage") {
		t.Error("no resource usage line after hitting the interval")
	}
}

func TestPoolMaybeCleanupCheckInterval(t *testing.T) {
	cfg := testConfig()
	cfg.CleanupInterval = 2
	cfg.MemoryThresholdMB = 1 << 20 // never trips
	cfg.CleanupMaxIdle = time.Hour
	pool := NewPool(cfg)
	defer pool.Close()

	pool.NoteCheckDone()
	if ran, _ := pool.MaybeCleanup(); ran {
		t.Error("cleanup ran after 1 check with interval 2")
	}

	pool.NoteCheckDone()
	ran, reason := pool.MaybeCleanup()
	if !ran {
		t.Fatal("cleanup did not run after 2 checks with interval 2")
	}
	if reason != "check_interval" {
		t.Errorf("reason = %q, want check_interval", reason)
	}
	if pool.Stats().ForcedCleanups != 1 {
		t.Errorf("ForcedCleanups = %d, want 1", pool.Stats().ForcedCleanups)
	}
}

func TestPoolStatsSnapshotStartsZero(t *testing.T) {
	pool := NewPool(testConfig())
	defer pool.Close()

	s := pool.Stats()
	if s.BrowsersSpawned != 0 || s.ContextsCreated != 0 || s.Errors != 0 {
		t.Errorf("fresh pool stats not zero: %+v", s)
	}
	if pool.Buckets() != 0 {
		t.Errorf("fresh pool has %d buckets", pool.Buckets())
	}
}

func TestAlternateBrowserType(t *testing.T) {
	cases := map[string]string{
		"chromium": "chrome",
		"chrome":   "chromium",
		"":         "chrome",
	}
	for in, want := range cases {
		if got := alternateBrowserType(in); got != want {
			t.Errorf("alternateBrowserType(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBrowserBinExplicitPathWins(t *testing.T) {
	cfg := testConfig()
	cfg.BrowserPath = "/opt/custom/chrome"
	pool := NewPool(cfg)
	defer pool.Close()

	for _, bt := range []string{"chromium", "chrome"} {
		if got := pool.browserBin(bt); got != "/opt/custom/chrome" {
			t.Errorf("browserBin(%q) = %q, want the configured path", bt, got)
		}
	}
}

func TestBrowserBinChromiumUsesManaged(t *testing.T) {
	pool := NewPool(testConfig())
	defer pool.Close()

	if got := pool.browserBin("chromium"); got != "" {
		t.Errorf("browserBin(chromium) = %q, want managed default", got)
	}
}

func TestCleanupPrunesUnlessMemoryPressure(t *testing.T) {
	cfg := testConfig()
	cfg.MaxContextsPerBrowser = 1
	pool := NewPool(cfg)

	entry := &browserEntry{key: proxyKey(nil, cfg.BrowserType), createdAt: time.Now()}
	oldest := &BrowserContext{parent: entry}
	middle := &BrowserContext{parent: entry}
	newest := &BrowserContext{parent: entry}
	entry.contexts = []*BrowserContext{oldest, middle, newest}
	pool.mu.Lock()
	pool.buckets[entry.key] = entry
	pool.mu.Unlock()

	// A routine trigger prunes down to the per-browser cap, oldest first,
	// keeping the newest context warm.
	pool.Cleanup("check_interval")
	if !oldest.evicted || !middle.evicted {
		t.Error("routine cleanup should evict contexts beyond the cap, oldest first")
	}
	if newest.evicted {
		t.Error("routine cleanup must keep contexts within the cap")
	}
	entry.ctxMu.Lock()
	remaining := len(entry.contexts)
	entry.ctxMu.Unlock()
	if remaining != 1 {
		t.Fatalf("contexts after prune = %d, want 1", remaining)
	}

	// Memory pressure drops everything.
	pool.Cleanup("memory_pressure")
	if !newest.evicted {
		t.Error("memory pressure cleanup should close all contexts")
	}
	entry.ctxMu.Lock()
	remaining = len(entry.contexts)
	entry.ctxMu.Unlock()
	if remaining != 0 {
		t.Fatalf("contexts after memory pressure = %d, want 0", remaining)
	}

	pool.mu.Lock()
	delete(pool.buckets, entry.key)
	pool.mu.Unlock()
	pool.Close()
}

func TestSplitHostPort(t *testing.T) {
	host, port := splitHostPort("http://proxy.example.com:8080")
	if host != "proxy.example.com" || port != "8080" {
		t.Errorf("got %q %q", host, port)
	}
}
