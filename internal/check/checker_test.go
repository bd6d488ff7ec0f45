package check

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/exomass/masschecker-go/internal/types"
)

func TestGateStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want types.CheckStatus
	}{
		{"unsolvable challenge", types.NewUnsolvableChallengeError("https://x.test", "retries exhausted"), types.StatusCaptcha},
		{"refresh retries exhausted", types.ErrRefreshRetriesExhausted, types.StatusCaptcha},
		{"context canceled", context.Canceled, types.StatusError},
		{"deadline exceeded", fmt.Errorf("resolve: %w", context.DeadlineExceeded), types.StatusError},
		{"wrapped cancellation", fmt.Errorf("%w: interrupted", types.ErrContextCanceled), types.StatusError},
		{"access denied", types.NewAccessDeniedError("https://x.test"), types.StatusError},
		{"pool closed", types.ErrBrowserPoolClosed, types.StatusError},
		{"plain failure", errors.New("boom"), types.StatusCaptcha},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := gateStatus(tt.err); got != tt.want {
				t.Errorf("gateStatus(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestArtifactName(t *testing.T) {
	at := time.Unix(0, 1700000000000000000)
	name := artifactName("user+test@example.com", at)

	if !strings.HasPrefix(name, "shots/") || !strings.HasSuffix(name, ".png") {
		t.Fatalf("artifactName = %q, want shots/*.png", name)
	}
	if strings.ContainsAny(name, "@+") {
		t.Errorf("artifactName = %q, email not sanitized", name)
	}
	if name != artifactName("user+test@example.com", at) {
		t.Error("same inputs should produce the same name")
	}
	if name == artifactName("user+test@example.com", at.Add(time.Nanosecond)) {
		t.Error("different capture times should not collide")
	}
}

func TestCaptureFailureShotWithoutSink(t *testing.T) {
	c := &Checker{}
	// No uploader configured: must be a no-op even with no page.
	c.captureFailureShot(nil, types.Credential{Email: "a@b.c", Password: "x"})
}
