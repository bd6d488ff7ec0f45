package browser

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/rs/zerolog/log"
)

// DisplayAvailable reports whether a display server is reachable, either a
// real X server or Xvfb. Headed browsers need one; without it the visible
// solve tier is unavailable.
func DisplayAvailable() bool {
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		return true
	}
	return os.Getenv("DISPLAY") != "" || os.Getenv("WAYLAND_DISPLAY") != ""
}

// virtualDisplayNum is the X display Xvfb claims when we start one.
const virtualDisplayNum = 99

// EnsureDisplay makes a display available for headed browsers, starting
// Xvfb when none is reachable and the binary exists. The returned stop
// function kills a started Xvfb; it is a no-op when a display already
// existed. Returns an error when no display can be provided.
func EnsureDisplay() (stop func(), err error) {
	if DisplayAvailable() {
		return func() {}, nil
	}
	if runtime.GOOS != "linux" {
		return nil, fmt.Errorf("no display server available")
	}

	xvfb, err := exec.LookPath("Xvfb")
	if err != nil {
		return nil, fmt.Errorf("no display and Xvfb not installed: %w", err)
	}

	display := fmt.Sprintf(":%d", virtualDisplayNum)
	cmd := exec.Command(xvfb, display, "-screen", "0", "1920x1080x24", "-nolisten", "tcp")
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting Xvfb: %w", err)
	}
	// Xvfb needs a moment to create its socket before Chrome connects.
	time.Sleep(500 * time.Millisecond)

	os.Setenv("DISPLAY", display)
	log.Info().Str("display", display).Msg("Started Xvfb virtual display")

	return func() {
		if err := cmd.Process.Kill(); err != nil {
			log.Debug().Err(err).Msg("Xvfb kill failed")
		}
		_ = cmd.Wait()
	}, nil
}

// isARM reports whether we run on an ARM CPU. GPU flag handling differs
// there: --disable-gpu breaks SwiftShader WebGL on ARM builds of Chrome.
func isARM() bool {
	return runtime.GOARCH == "arm64" || runtime.GOARCH == "arm"
}
