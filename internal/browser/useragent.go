package browser

import "sync/atomic"

// Desktop and mobile Chrome user agents rotated across checks. Alternating
// form factors spreads the traffic profile; within one check the agent
// stays fixed.
var desktopUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
}

var mobileUserAgents = []string{
	"Mozilla/5.0 (Linux; Android 13; Pixel 7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36",
	"Mozilla/5.0 (Linux; Android 12; SM-G991B) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Mobile Safari/537.36",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) CriOS/120.0.6099.119 Mobile/15E148 Safari/604.1",
}

// UserAgentManager hands out user agents round-robin, alternating between
// desktop and mobile pools.
type UserAgentManager struct {
	counter atomic.Uint64
}

// NewUserAgentManager creates a user agent rotation.
func NewUserAgentManager() *UserAgentManager {
	return &UserAgentManager{}
}

// Next returns the next user agent in rotation.
func (m *UserAgentManager) Next() string {
	n := m.counter.Add(1) - 1
	if n%2 == 0 {
		return desktopUserAgents[(n/2)%uint64(len(desktopUserAgents))]
	}
	return mobileUserAgents[(n/2)%uint64(len(mobileUserAgents))]
}

// Desktop returns the next desktop user agent, skipping the mobile pool.
// Login flows that depend on desktop layouts use this.
func (m *UserAgentManager) Desktop() string {
	n := m.counter.Add(1) - 1
	return desktopUserAgents[n%uint64(len(desktopUserAgents))]
}
