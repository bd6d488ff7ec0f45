package browser

import (
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestShouldForceCleanup(t *testing.T) {
	policy := ThresholdPolicy{
		MaxBrowserAge:     5 * time.Minute,
		CleanupEveryN:     5,
		MemoryThresholdMB: 1024,
		MaxIdle:           60 * time.Second,
	}

	tests := []struct {
		name       string
		snap       ResourceSnapshot
		sinceLast  time.Duration
		wantForce  bool
		wantReason string
	}{
		{
			name:      "nothing trips",
			snap:      ResourceSnapshot{AllocMB: 100, ChecksDone: 3},
			sinceLast: 10 * time.Second,
			wantForce: false,
		},
		{
			name:       "memory pressure wins",
			snap:       ResourceSnapshot{AllocMB: 2048, ChecksDone: 5},
			sinceLast:  10 * time.Second,
			wantForce:  true,
			wantReason: "memory_pressure",
		},
		{
			name:       "check interval",
			snap:       ResourceSnapshot{AllocMB: 100, ChecksDone: 10},
			sinceLast:  10 * time.Second,
			wantForce:  true,
			wantReason: "check_interval",
		},
		{
			name:       "idle too long",
			snap:       ResourceSnapshot{AllocMB: 100, ChecksDone: 3},
			sinceLast:  2 * time.Minute,
			wantForce:  true,
			wantReason: "idle",
		},
		{
			name:      "zero checks never trips interval",
			snap:      ResourceSnapshot{AllocMB: 100, ChecksDone: 0},
			sinceLast: 10 * time.Second,
			wantForce: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			force, reason := policy.ShouldForceCleanup(tt.snap, tt.sinceLast)
			if force != tt.wantForce {
				t.Errorf("force = %v, want %v", force, tt.wantForce)
			}
			if force && reason != tt.wantReason {
				t.Errorf("reason = %q, want %q", reason, tt.wantReason)
			}
		})
	}
}

func TestShouldForceCleanupDisabledTriggers(t *testing.T) {
	policy := ThresholdPolicy{}
	snap := ResourceSnapshot{AllocMB: 1 << 40, ChecksDone: 100}
	if force, _ := policy.ShouldForceCleanup(snap, time.Hour); force {
		t.Error("zero-valued policy should never force cleanup")
	}
}

func TestMemoryMBPrefersRSS(t *testing.T) {
	// Go heap numbers miss the CDP transport's C-side memory; the OS
	// resident set is the authoritative figure when available.
	snap := ResourceSnapshot{AllocMB: 100, RSSMB: 900}
	if got := snap.MemoryMB(); got != 900 {
		t.Errorf("MemoryMB = %d, want the RSS figure", got)
	}

	snap = ResourceSnapshot{AllocMB: 100}
	if got := snap.MemoryMB(); got != 100 {
		t.Errorf("MemoryMB without RSS = %d, want the heap figure", got)
	}
}

func TestShouldForceCleanupTripsOnRSS(t *testing.T) {
	policy := ThresholdPolicy{MemoryThresholdMB: 512}
	snap := ResourceSnapshot{AllocMB: 64, RSSMB: 1024}

	force, reason := policy.ShouldForceCleanup(snap, time.Second)
	if !force || reason != "memory_pressure" {
		t.Errorf("force=%v reason=%q, want memory_pressure on high RSS", force, reason)
	}
}

func TestRSSFromStatus(t *testing.T) {
	status := strings.NewReader(
		"Name:\tmasschecker\nVmPeak:\t  500000 kB\nVmRSS:\t  204800 kB\nThreads:\t12\n")
	if got := rssFromStatus(status); got != 200 {
		t.Errorf("rssFromStatus = %d MB, want 200", got)
	}

	if got := rssFromStatus(strings.NewReader("Name:\tx\n")); got != 0 {
		t.Errorf("rssFromStatus without VmRSS = %d, want 0", got)
	}
	if got := rssFromStatus(strings.NewReader("VmRSS:\tgarbage kB\n")); got != 0 {
		t.Errorf("rssFromStatus with malformed value = %d, want 0", got)
	}
}

func TestProcessRSSMBOnLinux(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("procfs only")
	}
	if processRSSMB() == 0 {
		t.Error("expected a non-zero resident set on linux")
	}
}

func TestPolicyFromConfig(t *testing.T) {
	cfg := testConfig()
	policy := PolicyFromConfig(cfg)

	if policy.MaxBrowserAge != cfg.MaxBrowserAge {
		t.Errorf("MaxBrowserAge = %v", policy.MaxBrowserAge)
	}
	if policy.CleanupEveryN != cfg.CleanupInterval {
		t.Errorf("CleanupEveryN = %d", policy.CleanupEveryN)
	}
	if policy.MemoryThresholdMB != cfg.MemoryThresholdMB {
		t.Errorf("MemoryThresholdMB = %d", policy.MemoryThresholdMB)
	}
	if policy.MaxIdle != cfg.CleanupMaxIdle {
		t.Errorf("MaxIdle = %v", policy.MaxIdle)
	}
}

func TestSnapshotPopulated(t *testing.T) {
	pool := NewPool(testConfig())
	defer pool.Close()

	snap := pool.Snapshot()
	if snap.SysMB == 0 {
		t.Error("SysMB should be non-zero for a running process")
	}
	if snap.NumGoroutine == 0 {
		t.Error("NumGoroutine should be non-zero")
	}
	if snap.TakenAt.IsZero() {
		t.Error("TakenAt not set")
	}
}
