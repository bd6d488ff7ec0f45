package detect

import (
	"strings"
	"testing"
	"time"

	"github.com/exomass/masschecker-go/internal/selectors"
)

func testDetector() *Detector {
	return NewWithSelectors(selectors.Get())
}

func TestExtendedThresholdScalesToWindow(t *testing.T) {
	d := testDetector()

	// Long scans keep the fixed threshold.
	if got := d.extendedThreshold(30 * time.Second); got != d.extendedAfter {
		t.Errorf("threshold for 30s window = %v, want %v", got, d.extendedAfter)
	}
	// Short scans must still reach the low-confidence set before the
	// deadline, so the threshold shrinks with the window.
	if got := d.extendedThreshold(5 * time.Second); got >= 5*time.Second {
		t.Errorf("threshold for 5s window = %v, want under the window", got)
	}
	if got := d.extendedThreshold(4 * time.Second); got != 2*time.Second {
		t.Errorf("threshold for 4s window = %v, want 2s", got)
	}
}

func TestClassifyHTML(t *testing.T) {
	d := testDetector()

	tests := []struct {
		name string
		html string
		want Kind
	}{
		{
			name: "turnstile widget",
			html: `<div class="cf-turnstile" data-sitekey="0x4AAA"></div>`,
			want: KindTurnstile,
		},
		{
			name: "javascript challenge",
			html: `<div id="challenge-running">Checking your browser</div>`,
			want: KindJavaScript,
		},
		{
			name: "access denied needs cloudflare context",
			html: `<h1>Access denied</h1><p>cloudflare ray id 12345</p>`,
			want: KindAccessDenied,
		},
		{
			name: "access denied without cloudflare is not a block page",
			html: `<h1>Access denied</h1><p>You need to sign in.</p>`,
			want: KindNone,
		},
		{
			name: "clean page",
			html: `<html><body><h1>Welcome</h1></body></html>`,
			want: KindNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.ClassifyHTML(tt.html); got != tt.want {
				t.Errorf("ClassifyHTML = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClassifyPageType(t *testing.T) {
	d := testDetector()

	tests := []struct {
		name  string
		title string
		html  string
		want  PageType
	}{
		{
			name:  "interstitial title",
			title: "Just a moment...",
			html:  `<html></html>`,
			want:  PageChallenge,
		},
		{
			name:  "challenge beats login form",
			title: "Just a moment...",
			html:  `<input type="password" name="pw">`,
			want:  PageChallenge,
		},
		{
			name: "password field means login",
			html: `<form><input type="password" name="pw"></form>`,
			want: PageLogin,
		},
		{
			name: "dashboard content means account",
			html: `<html><body><a href="/dashboard">Dashboard</a></body></html>`,
			want: PageAccount,
		},
		{
			name: "nothing recognizable",
			html: `<html><body><p>hello</p></body></html>`,
			want: PageUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.Classify(tt.title, tt.html); got != tt.want {
				t.Errorf("Classify = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestInterceptScriptReferencesGlobals(t *testing.T) {
	if !strings.Contains(InterceptScript, registryGlobal) {
		t.Error("intercept script does not use the registry global")
	}
	if !strings.Contains(InterceptScript, CallbackName) {
		t.Error("intercept script does not capture the callback")
	}
	if !strings.Contains(ResolveScript, "cf-turnstile-response") {
		t.Error("resolve script does not target the response input")
	}
}

func TestChallengeDescriptorDefaults(t *testing.T) {
	ch := &Challenge{Detected: false, Kind: KindNone}
	if ch.AutoResolved || ch.Sitekey != "" {
		t.Error("zero descriptor should carry no solve state")
	}
}
