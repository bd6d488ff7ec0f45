// Package stats tracks per-proxy check statistics: outcome counts,
// challenge solve rates, and timing. The numbers feed the end-of-batch
// summary and help spot proxies that burn credentials on challenges.
package stats

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/exomass/masschecker-go/internal/types"
)

// ProxyStats accumulates counters for one proxy.
type ProxyStats struct {
	mu sync.RWMutex

	Checks  int64 `json:"checks"`
	Valid   int64 `json:"valid"`
	Invalid int64 `json:"invalid"`
	Captcha int64 `json:"captcha"`
	TwoFA   int64 `json:"twofa"`
	Errors  int64 `json:"errors"`

	ChallengesSeen   int64 `json:"challengesSeen"`
	ChallengesSolved int64 `json:"challengesSolved"`

	totalDuration time.Duration

	LastUsed time.Time `json:"lastUsed,omitempty"`
}

// Snapshot is a point-in-time copy of one proxy's counters.
type Snapshot struct {
	Checks           int64         `json:"checks"`
	Valid            int64         `json:"valid"`
	Invalid          int64         `json:"invalid"`
	Captcha          int64         `json:"captcha"`
	TwoFA            int64         `json:"twofa"`
	Errors           int64         `json:"errors"`
	ChallengesSeen   int64         `json:"challengesSeen"`
	ChallengesSolved int64         `json:"challengesSolved"`
	SolveRate        float64       `json:"solveRate"`
	AvgDuration      time.Duration `json:"avgDuration"`
}

func (p *ProxyStats) snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := Snapshot{
		Checks:           p.Checks,
		Valid:            p.Valid,
		Invalid:          p.Invalid,
		Captcha:          p.Captcha,
		TwoFA:            p.TwoFA,
		Errors:           p.Errors,
		ChallengesSeen:   p.ChallengesSeen,
		ChallengesSolved: p.ChallengesSolved,
	}
	if p.ChallengesSeen > 0 {
		s.SolveRate = float64(p.ChallengesSolved) / float64(p.ChallengesSeen)
	}
	if p.Checks > 0 {
		s.AvgDuration = p.totalDuration / time.Duration(p.Checks)
	}
	return s
}

// Manager holds stats for all proxies seen during a run.
type Manager struct {
	mu      sync.RWMutex
	proxies map[string]*ProxyStats

	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NoProxyKey labels checks that ran without a proxy.
const NoProxyKey = "direct"

// NewManager creates a stats manager with background eviction of proxies
// that have been idle for a long time.
func NewManager() *Manager {
	m := &Manager{
		proxies: make(map[string]*ProxyStats),
		stopCh:  make(chan struct{}),
	}
	m.wg.Add(1)
	go m.cleanupRoutine()
	return m
}

func (m *Manager) cleanupRoutine() {
	defer m.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanupStale(30 * time.Minute)
		case <-m.stopCh:
			return
		}
	}
}

func (m *Manager) cleanupStale(maxAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var removed int
	for key, p := range m.proxies {
		p.mu.RLock()
		stale := now.Sub(p.LastUsed) > maxAge
		p.mu.RUnlock()
		if stale {
			delete(m.proxies, key)
			removed++
		}
	}
	if removed > 0 {
		log.Debug().Int("removed", removed).Msg("Evicted stale proxy stats")
	}
}

// Close stops the background cleanup routine.
func (m *Manager) Close() {
	m.once.Do(func() {
		close(m.stopCh)
	})
	m.wg.Wait()
}

func (m *Manager) getOrCreate(key string) *ProxyStats {
	if key == "" {
		key = NoProxyKey
	}

	m.mu.RLock()
	p, ok := m.proxies[key]
	m.mu.RUnlock()
	if ok {
		return p
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.proxies[key]; ok {
		return p
	}
	p = &ProxyStats{}
	m.proxies[key] = p
	return p
}

// RecordCheck records a completed account check.
func (m *Manager) RecordCheck(proxyKey string, status types.CheckStatus, elapsed time.Duration, challenged, solved bool) {
	p := m.getOrCreate(proxyKey)

	p.mu.Lock()
	defer p.mu.Unlock()

	p.Checks++
	p.totalDuration += elapsed
	p.LastUsed = time.Now()

	switch status {
	case types.StatusValid:
		p.Valid++
	case types.StatusInvalid:
		p.Invalid++
	case types.StatusCaptcha:
		p.Captcha++
	case types.StatusTwoFA:
		p.TwoFA++
	default:
		p.Errors++
	}

	if challenged {
		p.ChallengesSeen++
		if solved {
			p.ChallengesSolved++
		}
	}
}

// SolveRate returns the challenge solve rate for a proxy, or 1.0 when the
// proxy has never hit a challenge.
func (m *Manager) SolveRate(proxyKey string) float64 {
	s := m.getOrCreate(proxyKey).snapshot()
	if s.ChallengesSeen == 0 {
		return 1.0
	}
	return s.SolveRate
}

// All returns snapshots for every tracked proxy.
func (m *Manager) All() map[string]Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]Snapshot, len(m.proxies))
	for key, p := range m.proxies {
		out[key] = p.snapshot()
	}
	return out
}
