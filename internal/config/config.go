// Package config provides application configuration management.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Configuration upper bounds to prevent resource exhaustion.
const (
	maxConcurrentChecks   = 50
	maxContextsPerBrowser = 20
	maxContextReuse       = 100
	maxMemoryThresholdMB  = 16384
	maxBrowserAge         = 1 * time.Hour
	maxSolveTimeout       = 10 * time.Minute
	maxVisibleBrowsers    = 5
)

// Config holds all application configuration.
// Configuration is loaded from environment variables at startup.
type Config struct {
	// Target settings
	TargetURL string

	// Input/output files
	CombosPath  string
	ResultsPath string
	ProxiesPath string

	// Browser settings
	Headless    bool
	BrowserPath string
	BrowserType string // "chromium" or "chrome"

	// Concurrency
	MaxConcurrentChecks int

	// Context pool settings - CRITICAL for memory efficiency
	MaxContextsPerBrowser int
	ContextReuseCount     int
	MaxBrowserAge         time.Duration
	VisibleBrowserBudget  int

	// Cleanup policy
	CleanupInterval       int // checks between forced cleanups
	MemoryThresholdMB     int
	ResourceCheckInterval int // checks between resource-usage log lines
	CleanupMaxIdle        time.Duration

	// Timeouts
	NavigationTimeout time.Duration
	LoginTimeout      time.Duration
	SolveTimeout      time.Duration

	// Inter-check delays, randomized within [Min, Max]
	SingleProxyDelayMin time.Duration
	SingleProxyDelayMax time.Duration
	MultiProxyDelayMin  time.Duration
	MultiProxyDelayMax  time.Duration

	// Proxies
	Proxies []string

	// Turnstile solver tiers
	PrimarySolverURL    string
	SecondarySolverURL  string
	SecondarySolverKey  string
	SecondaryEnabled    bool
	ManualFallback      bool
	VisibleFallback     bool
	SolveRefreshRetries int

	// Resource blocking
	BlockResourceTypes []string

	// Logging
	LogLevel string

	// Interactive progress display. When on, log lines go to LogFile so
	// they do not tear the terminal UI.
	TUIEnabled bool
	LogFile    string

	// Optional artifact sink. When set, failure screenshots and the
	// results file are shipped there after a run.
	ArtifactUploadURL string

	// Selectors settings
	SelectorsPath      string // Path to external selectors.yaml override file
	SelectorsHotReload bool   // Enable file watching for hot-reload of selectors
}

// Load loads configuration from environment variables.
// Returns a Config with values from environment or sensible defaults.
func Load() *Config {
	return &Config{
		TargetURL: getEnvString("TARGET_URL", ""),

		CombosPath:  getEnvString("COMBOS_PATH", "combos.txt"),
		ResultsPath: getEnvString("RESULTS_PATH", "results.json"),
		ProxiesPath: getEnvString("PROXIES_PATH", ""),

		Headless:    getEnvBool("HEADLESS", true),
		BrowserPath: getEnvString("BROWSER_PATH", ""),
		BrowserType: getEnvString("BROWSER_TYPE", "chromium"),

		MaxConcurrentChecks: getEnvInt("MAX_CONCURRENT_CHECKS", 2),

		MaxContextsPerBrowser: getEnvInt("MAX_CONTEXTS_PER_BROWSER", 1),
		ContextReuseCount:     getEnvInt("CONTEXT_REUSE_COUNT", 1),
		MaxBrowserAge:         getEnvDuration("MAX_BROWSER_AGE", 300*time.Second),
		VisibleBrowserBudget:  getEnvInt("VISIBLE_BROWSER_BUDGET", 1),

		CleanupInterval:       getEnvInt("CLEANUP_INTERVAL", 5),
		MemoryThresholdMB:     getEnvInt("MEMORY_THRESHOLD_MB", 1024),
		ResourceCheckInterval: getEnvInt("RESOURCE_CHECK_INTERVAL", 10),
		CleanupMaxIdle:        getEnvDuration("CLEANUP_MAX_IDLE", 60*time.Second),

		NavigationTimeout: getEnvDuration("NAVIGATION_TIMEOUT", 30*time.Second),
		LoginTimeout:      getEnvDuration("LOGIN_TIMEOUT", 90*time.Second),
		SolveTimeout:      getEnvDuration("SOLVE_TIMEOUT", 120*time.Second),

		SingleProxyDelayMin: getEnvDuration("SINGLE_PROXY_DELAY_MIN", 3*time.Second),
		SingleProxyDelayMax: getEnvDuration("SINGLE_PROXY_DELAY_MAX", 8*time.Second),
		MultiProxyDelayMin:  getEnvDuration("MULTI_PROXY_DELAY_MIN", 2*time.Second),
		MultiProxyDelayMax:  getEnvDuration("MULTI_PROXY_DELAY_MAX", 5*time.Second),

		Proxies: getEnvStringSlice("PROXIES", nil),

		PrimarySolverURL:    getEnvString("TURNSTILE_SERVICE_URL", "http://127.0.0.1:5000"),
		SecondarySolverURL:  getEnvString("SECONDARY_SOLVER_URL", "http://127.0.0.1:5033"),
		SecondarySolverKey:  getEnvString("SECONDARY_SOLVER_KEY", ""),
		SecondaryEnabled:    getEnvBool("SECONDARY_SOLVER_ENABLED", false),
		ManualFallback:      getEnvBool("MANUAL_FALLBACK_ENABLED", false),
		VisibleFallback:     getEnvBool("VISIBLE_FALLBACK_ENABLED", false),
		SolveRefreshRetries: getEnvInt("SOLVE_REFRESH_RETRIES", 3),

		BlockResourceTypes: getEnvStringSlice("BLOCK_RESOURCE_TYPES", []string{"image", "font", "media"}),

		LogLevel: getEnvString("LOG_LEVEL", "info"),

		TUIEnabled: getEnvBool("TUI_ENABLED", true),
		LogFile:    getEnvString("LOG_FILE", "masschecker.log"),

		ArtifactUploadURL: getEnvString("ARTIFACT_UPLOAD_URL", ""),

		SelectorsPath:      getEnvString("SELECTORS_PATH", ""),
		SelectorsHotReload: getEnvBool("SELECTORS_HOT_RELOAD", false),
	}
}

// HasProxies returns true if at least one upstream proxy is configured.
func (c *Config) HasProxies() bool {
	return len(c.Proxies) > 0
}

// DelayRange returns the inter-check delay bounds for the current proxy setup.
// A single shared exit gets longer delays than a rotating proxy list.
func (c *Config) DelayRange() (time.Duration, time.Duration) {
	if len(c.Proxies) > 1 {
		return c.MultiProxyDelayMin, c.MultiProxyDelayMax
	}
	return c.SingleProxyDelayMin, c.SingleProxyDelayMax
}

// Validate checks configuration values and logs warnings for invalid values.
// Invalid values are corrected to sensible defaults.
func (c *Config) Validate() {
	// BrowserPath validation - prevent path traversal attacks
	if c.BrowserPath != "" {
		if strings.Contains(c.BrowserPath, "..") {
			log.Error().
				Str("path", c.BrowserPath).
				Msg("BrowserPath contains path traversal sequence (..), ignoring")
			c.BrowserPath = ""
		} else if !strings.HasPrefix(c.BrowserPath, "/") && !strings.HasPrefix(c.BrowserPath, "C:") && !strings.HasPrefix(c.BrowserPath, "c:") {
			log.Warn().
				Str("path", c.BrowserPath).
				Msg("BrowserPath should be an absolute path")
		}
	}

	if c.BrowserType != "chromium" && c.BrowserType != "chrome" {
		log.Warn().Str("type", c.BrowserType).Msg("Invalid browser type, using 'chromium'")
		c.BrowserType = "chromium"
	}

	// Concurrency validation with upper bound
	if c.MaxConcurrentChecks < 1 {
		log.Warn().Int("checks", c.MaxConcurrentChecks).Msg("Invalid concurrency, using default 2")
		c.MaxConcurrentChecks = 2
	} else if c.MaxConcurrentChecks > maxConcurrentChecks {
		log.Warn().
			Int("checks", c.MaxConcurrentChecks).
			Int("max", maxConcurrentChecks).
			Msg("Concurrency too large, capping to maximum")
		c.MaxConcurrentChecks = maxConcurrentChecks
	}

	// Context pool validation
	if c.MaxContextsPerBrowser < 1 {
		log.Warn().Int("contexts", c.MaxContextsPerBrowser).Msg("Invalid context cap, using 1")
		c.MaxContextsPerBrowser = 1
	} else if c.MaxContextsPerBrowser > maxContextsPerBrowser {
		log.Warn().
			Int("contexts", c.MaxContextsPerBrowser).
			Int("max", maxContextsPerBrowser).
			Msg("Context cap too large, capping to maximum")
		c.MaxContextsPerBrowser = maxContextsPerBrowser
	}
	if c.ContextReuseCount < 1 {
		log.Warn().Int("reuse", c.ContextReuseCount).Msg("Invalid context reuse count, using 1")
		c.ContextReuseCount = 1
	} else if c.ContextReuseCount > maxContextReuse {
		log.Warn().
			Int("reuse", c.ContextReuseCount).
			Int("max", maxContextReuse).
			Msg("Context reuse count too large, capping to maximum")
		c.ContextReuseCount = maxContextReuse
	}

	// Browser age validation (minimum 30 seconds)
	const minBrowserAge = 30 * time.Second
	if c.MaxBrowserAge < minBrowserAge {
		log.Warn().
			Dur("age", c.MaxBrowserAge).
			Dur("min", minBrowserAge).
			Msg("Browser age limit too short, using minimum")
		c.MaxBrowserAge = minBrowserAge
	} else if c.MaxBrowserAge > maxBrowserAge {
		log.Warn().
			Dur("age", c.MaxBrowserAge).
			Dur("max", maxBrowserAge).
			Msg("Browser age limit too long, using maximum")
		c.MaxBrowserAge = maxBrowserAge
	}

	if c.VisibleBrowserBudget < 0 {
		log.Warn().Int("budget", c.VisibleBrowserBudget).Msg("Invalid visible browser budget, using 1")
		c.VisibleBrowserBudget = 1
	} else if c.VisibleBrowserBudget > maxVisibleBrowsers {
		log.Warn().
			Int("budget", c.VisibleBrowserBudget).
			Int("max", maxVisibleBrowsers).
			Msg("Visible browser budget too large, capping to maximum")
		c.VisibleBrowserBudget = maxVisibleBrowsers
	}

	// Cleanup policy validation
	if c.CleanupInterval < 1 {
		log.Warn().Int("interval", c.CleanupInterval).Msg("Invalid cleanup interval, using 5")
		c.CleanupInterval = 5
	}
	if c.ResourceCheckInterval < 1 {
		log.Warn().Int("interval", c.ResourceCheckInterval).Msg("Invalid resource check interval, using 10")
		c.ResourceCheckInterval = 10
	}
	if c.MemoryThresholdMB < 256 {
		log.Warn().Int("mb", c.MemoryThresholdMB).Msg("Memory threshold too low, using default 1024")
		c.MemoryThresholdMB = 1024
	} else if c.MemoryThresholdMB > maxMemoryThresholdMB {
		log.Warn().
			Int("mb", c.MemoryThresholdMB).
			Int("max", maxMemoryThresholdMB).
			Msg("Memory threshold too high, capping to maximum")
		c.MemoryThresholdMB = maxMemoryThresholdMB
	}

	// Timeout validation
	if c.NavigationTimeout < time.Second {
		log.Warn().Dur("timeout", c.NavigationTimeout).Msg("Navigation timeout too short, using 30s")
		c.NavigationTimeout = 30 * time.Second
	}
	if c.LoginTimeout < c.NavigationTimeout {
		log.Warn().
			Dur("login", c.LoginTimeout).
			Dur("navigation", c.NavigationTimeout).
			Msg("Login timeout below navigation timeout, adjusting")
		c.LoginTimeout = c.NavigationTimeout
	}
	if c.SolveTimeout < 30*time.Second {
		log.Warn().Dur("timeout", c.SolveTimeout).Msg("Solve timeout too short, using 30s minimum")
		c.SolveTimeout = 30 * time.Second
	} else if c.SolveTimeout > maxSolveTimeout {
		log.Warn().
			Dur("timeout", c.SolveTimeout).
			Dur("max", maxSolveTimeout).
			Msg("Solve timeout too long, capping to maximum")
		c.SolveTimeout = maxSolveTimeout
	}

	c.validateDelays()
	c.validateProxies()
	c.validateSolvers()

	// Log level validation
	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true,
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		log.Warn().Str("level", c.LogLevel).Msg("Invalid log level, using 'info'")
		c.LogLevel = "info"
	}
}

// validateDelays ensures each delay range has min <= max and positive bounds.
func (c *Config) validateDelays() {
	fix := func(name string, min, max *time.Duration, defMin, defMax time.Duration) {
		if *min <= 0 {
			*min = defMin
		}
		if *max <= 0 {
			*max = defMax
		}
		if *min > *max {
			log.Warn().
				Str("range", name).
				Dur("min", *min).
				Dur("max", *max).
				Msg("Delay range inverted, swapping bounds")
			*min, *max = *max, *min
		}
	}
	fix("single_proxy", &c.SingleProxyDelayMin, &c.SingleProxyDelayMax, 3*time.Second, 8*time.Second)
	fix("multi_proxy", &c.MultiProxyDelayMin, &c.MultiProxyDelayMax, 2*time.Second, 5*time.Second)
}

// validateProxies drops proxy entries with unsupported schemes.
func (c *Config) validateProxies() {
	if len(c.Proxies) == 0 {
		return
	}
	valid := make([]string, 0, len(c.Proxies))
	for _, p := range c.Proxies {
		if !strings.Contains(p, "://") {
			// Bare host:port entries default to http at parse time.
			valid = append(valid, p)
			continue
		}
		scheme := strings.ToLower(strings.Split(p, "://")[0])
		switch scheme {
		case "http", "https", "socks4", "socks5":
			valid = append(valid, p)
		default:
			log.Error().
				Str("scheme", scheme).
				Msg("Unsupported proxy scheme, dropping entry (should be http://, https://, socks4://, or socks5://)")
		}
	}
	c.Proxies = valid
}

// validateSolvers checks the turnstile tier configuration.
func (c *Config) validateSolvers() {
	if c.PrimarySolverURL != "" && !strings.Contains(c.PrimarySolverURL, "://") {
		log.Warn().
			Str("url", c.PrimarySolverURL).
			Msg("Primary solver URL missing scheme, assuming http")
		c.PrimarySolverURL = "http://" + c.PrimarySolverURL
	}
	if c.SecondaryEnabled {
		if c.SecondarySolverURL == "" {
			log.Warn().Msg("SECONDARY_SOLVER_ENABLED is true but SECONDARY_SOLVER_URL is empty, disabling tier")
			c.SecondaryEnabled = false
		} else if !strings.Contains(c.SecondarySolverURL, "://") {
			c.SecondarySolverURL = "http://" + c.SecondarySolverURL
		}
	}
	if c.SolveRefreshRetries < 1 {
		log.Warn().Int("retries", c.SolveRefreshRetries).Msg("Invalid refresh retry count, using 3")
		c.SolveRefreshRetries = 3
	} else if c.SolveRefreshRetries > 10 {
		log.Warn().Int("retries", c.SolveRefreshRetries).Msg("Refresh retry count too high, capping at 10")
		c.SolveRefreshRetries = 10
	}
	if c.VisibleFallback && c.Headless {
		log.Info().Msg("Visible fallback enabled; challenges escalate to a headed browser when API tiers fail")
	}
}

// Environment variable helpers.

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		intValue, err := strconv.ParseInt(value, 10, 32)
		if err == nil {
			return int(intValue)
		}
		log.Warn().
			Str("key", key).
			Str("value", value).
			Err(err).
			Int("default", defaultValue).
			Msg("Invalid integer in environment variable, using default")
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		boolValue, err := strconv.ParseBool(value)
		if err == nil {
			return boolValue
		}
		log.Warn().
			Str("key", key).
			Str("value", value).
			Err(err).
			Bool("default", defaultValue).
			Msg("Invalid boolean in environment variable, using default")
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err == nil {
			if duration > 0 {
				return duration
			}
			log.Warn().
				Str("key", key).
				Str("value", value).
				Dur("default", defaultValue).
				Msg("Duration must be positive, using default")
			return defaultValue
		}
		log.Warn().
			Str("key", key).
			Str("value", value).
			Err(err).
			Dur("default", defaultValue).
			Msg("Invalid duration in environment variable, using default")
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}
