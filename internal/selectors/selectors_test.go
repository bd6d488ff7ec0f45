package selectors

import (
	"regexp"
	"strings"
	"testing"
)

func TestGetReturnsSingleton(t *testing.T) {
	s1 := Get()
	s2 := Get()

	if s1 == nil {
		t.Fatal("Get() returned nil")
	}
	if s1 != s2 {
		t.Error("Get() should return the same instance")
	}
}

func TestEmbeddedSelectorsComplete(t *testing.T) {
	s := Get()

	if len(s.AccessDenied) == 0 {
		t.Error("AccessDenied patterns missing")
	}
	if len(s.Turnstile) == 0 {
		t.Error("Turnstile patterns missing")
	}
	if len(s.JavaScript) == 0 {
		t.Error("JavaScript patterns missing")
	}
	if len(s.TurnstileSelectors) == 0 {
		t.Error("TurnstileSelectors missing")
	}
	if s.TurnstileFramePattern == "" {
		t.Error("TurnstileFramePattern missing")
	}
	if len(s.Login.EmailFields) == 0 {
		t.Error("Login.EmailFields missing")
	}
	if len(s.Login.PasswordFields) == 0 {
		t.Error("Login.PasswordFields missing")
	}
	if len(s.SuccessMarkers) == 0 {
		t.Error("SuccessMarkers missing")
	}
	if len(s.ChallengeMarkers) == 0 {
		t.Error("ChallengeMarkers missing")
	}
	if len(s.FailureMarkers) == 0 {
		t.Error("FailureMarkers missing")
	}
	if len(s.TwoFAMarkers) == 0 {
		t.Error("TwoFAMarkers missing")
	}
}

func TestEmbeddedMatchesDefaults(t *testing.T) {
	// The embedded YAML and the hardcoded fallback must agree on the
	// critical detection patterns.
	embedded := Get()
	fallback := defaultSelectors()

	if embedded.TurnstileFramePattern != fallback.TurnstileFramePattern {
		t.Errorf("frame pattern mismatch: %q vs %q",
			embedded.TurnstileFramePattern, fallback.TurnstileFramePattern)
	}
	if len(embedded.AccessDenied) != len(fallback.AccessDenied) {
		t.Errorf("access_denied count mismatch: %d vs %d",
			len(embedded.AccessDenied), len(fallback.AccessDenied))
	}
	if len(embedded.JavaScript) != len(fallback.JavaScript) {
		t.Errorf("javascript count mismatch: %d vs %d",
			len(embedded.JavaScript), len(fallback.JavaScript))
	}
}

func TestButtonTextPatternsCompile(t *testing.T) {
	s := Get()

	for name, pattern := range map[string]string{
		"continue_text": s.Login.ContinueText,
		"signin_text":   s.Login.SignInText,
	} {
		if pattern == "" {
			t.Errorf("%s is empty", name)
			continue
		}
		if _, err := regexp.Compile(pattern); err != nil {
			t.Errorf("%s does not compile: %v", name, err)
		}
	}
}

func TestDetectionPatternsAreLowercase(t *testing.T) {
	// Page text is lowercased before matching, so patterns must be too.
	s := Get()
	for _, group := range [][]string{
		s.AccessDenied, s.JavaScript,
		s.SuccessMarkers, s.ChallengeMarkers, s.FailureMarkers, s.TwoFAMarkers,
	} {
		for _, p := range group {
			if p != strings.ToLower(p) {
				t.Errorf("pattern %q is not lowercase", p)
			}
		}
	}
}
