package check

import (
	"errors"
	"testing"

	"github.com/exomass/masschecker-go/internal/selectors"
	"github.com/exomass/masschecker-go/internal/types"
)

func TestClassifyOutcome(t *testing.T) {
	sel := selectors.Get()

	tests := []struct {
		name         string
		html         string
		url          string
		twoFAVisible bool
		loginVisible bool
		want         types.CheckStatus
	}{
		{
			name: "success url wins over content",
			html: `<html><body>Enter the verification code</body></html>`,
			url:  "https://example.com/dashboard",
			want: types.StatusValid,
		},
		{
			name: "success marker",
			html: `<html><body><h1>Welcome back</h1><a href="/dashboard">Dashboard</a></body></html>`,
			want: types.StatusValid,
		},
		{
			name: "failure marker",
			html: `<html><body><p class="error">Incorrect email or password.</p></body></html>`,
			want: types.StatusInvalid,
		},
		{
			name:         "visible twofa field wins",
			html:         `<html><body>Welcome</body></html>`,
			twoFAVisible: true,
			want:         types.StatusTwoFA,
		},
		{
			name: "twofa marker in html",
			html: `<html><body>Enter the verification code we sent you.</body></html>`,
			want: types.StatusTwoFA,
		},
		{
			name: "twofa marker beats failure marker",
			html: `<html><body>Invalid code. Open your authenticator app.</body></html>`,
			want: types.StatusTwoFA,
		},
		{
			name: "failure marker beats success marker",
			html: `<html><body>Login failed. Return to your dashboard.</body></html>`,
			want: types.StatusInvalid,
		},
		{
			name:         "silent rejection leaves login form",
			html:         `<html><body><form><input type="password"></form></body></html>`,
			loginVisible: true,
			want:         types.StatusInvalid,
		},
		{
			name: "unrecognized page",
			html: `<html><body><p>Loading...</p></body></html>`,
			want: types.StatusError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url := tt.url
			if url == "" {
				url = "https://example.com/login"
			}
			got, msg := ClassifyOutcome(sel, tt.html, url, tt.twoFAVisible, tt.loginVisible)
			if got != tt.want {
				t.Errorf("ClassifyOutcome() = %q (%s), want %q", got, msg, tt.want)
			}
		})
	}
}

func TestIsExhaustion(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("cannot allocate memory"), true},
		{errors.New("browser crashed"), true},
		{errors.New("connection refused"), true},
		{errors.New("navigation timeout exceeded"), true},
		{errors.New("element not found"), false},
	}
	for _, tt := range tests {
		if got := isExhaustion(tt.err); got != tt.want {
			t.Errorf("isExhaustion(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestTerminalError(t *testing.T) {
	var term *terminalError
	err := error(&terminalError{status: types.StatusCaptcha, msg: "unsolved"})
	if !errors.As(err, &term) {
		t.Fatal("errors.As failed to unwrap terminalError")
	}
	if term.status != types.StatusCaptcha || term.msg != "unsolved" {
		t.Errorf("terminalError = %+v", term)
	}
}

func TestFirstMatch(t *testing.T) {
	markers := []string{"", "wrong password", "login failed"}
	if got := firstMatch("your login failed today", markers); got != "login failed" {
		t.Errorf("firstMatch = %q", got)
	}
	if got := firstMatch("all good", markers); got != "" {
		t.Errorf("firstMatch = %q, want empty", got)
	}
}
