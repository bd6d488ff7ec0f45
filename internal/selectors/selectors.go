// Package selectors provides detection pattern and login selector loading.
package selectors

import (
	"embed"
	"sync"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

//go:embed selectors.yaml
var defaultSelectorsFS embed.FS

// LoginSelectors contains the DOM selectors for a target's login flow.
// CSS selectors are tried in order; the *Text fields are regexes matched
// against button text when no CSS selector hits.
type LoginSelectors struct {
	EmailFields     []string `yaml:"email_fields"`
	PasswordFields  []string `yaml:"password_fields"`
	ContinueButtons []string `yaml:"continue_buttons"`
	SubmitButtons   []string `yaml:"submit_buttons"`
	TwoFAFields     []string `yaml:"twofa_fields"`
	ContinueText    string   `yaml:"continue_text"`
	SignInText      string   `yaml:"signin_text"`
}

// Selectors contains all challenge detection patterns and login selectors.
type Selectors struct {
	AccessDenied          []string       `yaml:"access_denied"`
	Turnstile             []string       `yaml:"turnstile"`
	JavaScript            []string       `yaml:"javascript"`
	TurnstileSelectors    []string       `yaml:"turnstile_selectors"`
	TurnstileFramePattern string         `yaml:"turnstile_frame_pattern"`
	Login                 LoginSelectors `yaml:"login"`
	SuccessMarkers        []string       `yaml:"success_markers"`
	ChallengeMarkers      []string       `yaml:"challenge_markers"`
	FailureMarkers        []string       `yaml:"failure_markers"`
	TwoFAMarkers          []string       `yaml:"twofa_markers"`
}

var (
	instance *Selectors
	once     sync.Once
	loadErr  error
)

// Get returns the singleton Selectors instance.
// Patterns are loaded from the embedded selectors.yaml file.
func Get() *Selectors {
	once.Do(func() {
		instance, loadErr = load()
		if loadErr != nil {
			log.Error().Err(loadErr).Msg("Failed to load selectors, using defaults")
			instance = defaultSelectors()
		}
	})
	return instance
}

// load reads selectors from the embedded YAML file.
func load() (*Selectors, error) {
	data, err := defaultSelectorsFS.ReadFile("selectors.yaml")
	if err != nil {
		return nil, err
	}

	var s Selectors
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, err
	}

	log.Debug().
		Int("access_denied_patterns", len(s.AccessDenied)).
		Int("turnstile_patterns", len(s.Turnstile)).
		Int("javascript_patterns", len(s.JavaScript)).
		Int("email_selectors", len(s.Login.EmailFields)).
		Msg("Selectors loaded")

	return &s, nil
}

// defaultSelectors returns hardcoded fallback patterns.
func defaultSelectors() *Selectors {
	return &Selectors{
		AccessDenied: []string{
			"access denied",
			"error 1015",
			"error 1012",
			"error 1020",
			"you have been blocked",
			"ray id:",
		},
		Turnstile: []string{
			"cf-turnstile",
			"challenges.cloudflare.com/turnstile",
			"turnstile-wrapper",
		},
		JavaScript: []string{
			"just a moment",
			"checking your browser",
			"please wait",
			"ddos-guard",
			"__cf_chl_opt",
			"_cf_chl_opt",
			"cf-challenge",
			"cf_chl_prog",
		},
		TurnstileSelectors: []string{
			".cf-turnstile",
			"[data-sitekey]",
			"#turnstile-wrapper",
			".cf-turnstile-response",
			"#cf-turnstile-response",
		},
		TurnstileFramePattern: "challenges.cloudflare.com",
		Login: LoginSelectors{
			EmailFields: []string{
				"input[type='email']",
				"input[name='email']",
				"input[autocomplete='username']",
				"input[name='username']",
			},
			PasswordFields: []string{
				"input[type='password']",
			},
			ContinueButtons: []string{
				"button[type='submit']",
				"input[type='submit']",
			},
			SubmitButtons: []string{
				"button[type='submit']",
				"input[type='submit']",
			},
			TwoFAFields: []string{
				"input[name='otc']",
				"input[autocomplete='one-time-code']",
				"input[name='code']",
			},
			ContinueText: `(?i)continue|next`,
			SignInText:   `(?i)sign in|log in`,
		},
		SuccessMarkers: []string{
			"welcome",
			"dashboard",
			"profile",
			"library",
			"account settings",
		},
		ChallengeMarkers: []string{
			"checking your browser",
			"please wait",
			"verifying",
			"just a moment",
		},
		FailureMarkers: []string{
			"invalid",
			"incorrect",
			"wrong password",
			"login failed",
		},
		TwoFAMarkers: []string{
			"two-factor",
			"2-step",
			"verification code",
			"authenticator",
		},
	}
}
