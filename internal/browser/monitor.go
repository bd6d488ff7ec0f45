package browser

import (
	"bufio"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/exomass/masschecker-go/internal/config"
)

// ResourceSnapshot is a point-in-time view of process and pool resource
// usage, used both for cleanup decisions and periodic logging.
type ResourceSnapshot struct {
	AllocMB      uint64
	SysMB        uint64
	RSSMB        uint64 // process resident set from /proc, 0 when unavailable
	NumGoroutine int
	Browsers     int
	Contexts     int
	ChecksDone   int64
	TakenAt      time.Time
}

// MemoryMB is the figure cleanup thresholds compare against: the OS
// resident set when the platform exposes it, heap alloc otherwise. Go
// heap numbers miss the C-side memory the CDP transport holds.
func (s ResourceSnapshot) MemoryMB() uint64 {
	if s.RSSMB > 0 {
		return s.RSSMB
	}
	return s.AllocMB
}

// ThresholdPolicy decides when the pool should force a cleanup pass.
type ThresholdPolicy struct {
	// MaxBrowserAge is how long a browser may live before being recycled.
	MaxBrowserAge time.Duration

	// CleanupEveryN forces a cleanup after every N completed checks.
	CleanupEveryN int

	// MemoryThresholdMB forces a cleanup when process memory crosses it.
	MemoryThresholdMB int

	// MaxIdle forces a cleanup when the pool has been quiet this long.
	MaxIdle time.Duration
}

// PolicyFromConfig builds the cleanup policy from loaded configuration.
func PolicyFromConfig(cfg *config.Config) ThresholdPolicy {
	return ThresholdPolicy{
		MaxBrowserAge:     cfg.MaxBrowserAge,
		CleanupEveryN:     cfg.CleanupInterval,
		MemoryThresholdMB: cfg.MemoryThresholdMB,
		MaxIdle:           cfg.CleanupMaxIdle,
	}
}

// ShouldForceCleanup reports whether any cleanup trigger fires and names
// the trigger. sinceLast is the time elapsed since the previous cleanup.
func (tp ThresholdPolicy) ShouldForceCleanup(snap ResourceSnapshot, sinceLast time.Duration) (bool, string) {
	if tp.MemoryThresholdMB > 0 && snap.MemoryMB() > uint64(tp.MemoryThresholdMB) {
		return true, "memory_pressure"
	}
	if tp.CleanupEveryN > 0 && snap.ChecksDone > 0 && snap.ChecksDone%int64(tp.CleanupEveryN) == 0 {
		return true, "check_interval"
	}
	if tp.MaxIdle > 0 && sinceLast > tp.MaxIdle {
		return true, "idle"
	}
	return false, ""
}

// Snapshot samples current process memory and pool occupancy.
func (p *Pool) Snapshot() ResourceSnapshot {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	p.mu.Lock()
	browsers := len(p.buckets)
	contexts := 0
	for _, e := range p.buckets {
		e.ctxMu.Lock()
		contexts += len(e.contexts)
		e.ctxMu.Unlock()
	}
	p.mu.Unlock()

	return ResourceSnapshot{
		AllocMB:      m.Alloc / 1024 / 1024,
		SysMB:        m.Sys / 1024 / 1024,
		RSSMB:        processRSSMB(),
		NumGoroutine: runtime.NumGoroutine(),
		Browsers:     browsers,
		Contexts:     contexts,
		ChecksDone:   p.checksDone.Load(),
		TakenAt:      time.Now(),
	}
}

// processRSSMB reads the resident set size from /proc/self/status.
// Returns 0 on platforms without procfs.
func processRSSMB() uint64 {
	f, err := os.Open("/proc/self/status")
	if err != nil {
		return 0
	}
	defer f.Close()
	return rssFromStatus(f)
}

func rssFromStatus(r io.Reader) uint64 {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "VmRSS:") {
			continue
		}
		// "VmRSS:    123456 kB"
		fields := strings.Fields(strings.TrimPrefix(line, "VmRSS:"))
		if len(fields) < 1 {
			return 0
		}
		kb, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			return 0
		}
		return kb / 1024
	}
	return 0
}
