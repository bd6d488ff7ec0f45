// Package storage reads credential and proxy input files and persists
// batch results.
package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/exomass/masschecker-go/internal/security"
	"github.com/exomass/masschecker-go/internal/types"
)

// ReadAccounts loads email:password pairs from a combo file, one per
// line. Blank lines and lines starting with # are skipped; malformed
// lines are logged and dropped rather than failing the whole file.
func ReadAccounts(path string) ([]types.Credential, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening combo file: %w", err)
	}
	defer f.Close()

	var (
		creds   []types.Credential
		lineNo  int
		skipped int
	)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 64*1024)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		cred, err := ParseCombo(line)
		if err != nil {
			skipped++
			log.Warn().Int("line", lineNo).Err(err).Msg("Skipping malformed combo line")
			continue
		}
		creds = append(creds, cred)
		if len(creds) >= types.MaxBatchSize {
			log.Warn().Int("max", types.MaxBatchSize).Msg("Combo file truncated at batch limit")
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading combo file: %w", err)
	}
	if skipped > 0 {
		log.Info().Int("skipped", skipped).Int("loaded", len(creds)).Msg("Combo file loaded")
	}
	return creds, nil
}

// ParseCombo splits an email:password line. The password may itself
// contain colons; only the first separator counts.
func ParseCombo(line string) (types.Credential, error) {
	email, password, found := strings.Cut(line, ":")
	if !found {
		return types.Credential{}, fmt.Errorf("no separator in %q", line)
	}
	cred := types.Credential{
		Email:    strings.TrimSpace(email),
		Password: password,
	}
	if err := cred.Validate(); err != nil {
		return types.Credential{}, err
	}
	return cred, nil
}

// ReadProxies loads one proxy URL per line. Empty path means direct
// connections; the result is nil, not an error.
func ReadProxies(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening proxy file: %w", err)
	}
	defer f.Close()

	var proxies []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if len(line) > types.MaxProxyLength {
			log.Warn().Msg("Skipping oversized proxy line")
			continue
		}
		// Bare host:port lines default to http, matching the browser layer.
		candidate := line
		if !strings.Contains(candidate, "://") {
			candidate = "http://" + candidate
		}
		if err := security.ValidateProxyURL(candidate, true); err != nil {
			log.Warn().Err(err).Str("proxy", security.RedactProxyURL(line)).Msg("Skipping invalid proxy line")
			continue
		}
		proxies = append(proxies, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading proxy file: %w", err)
	}
	return proxies, nil
}

// SaveOutcomes writes the full result set as JSON to resultsPath and
// per-status combo files (valid.txt, invalid.txt, ...) next to it.
// Statuses with no results get no file.
func SaveOutcomes(resultsPath string, summary types.BatchSummary, results []types.CheckResult) error {
	dir := filepath.Dir(resultsPath)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating results dir: %w", err)
		}
	}

	payload := struct {
		Summary types.BatchSummary  `json:"summary"`
		Results []types.CheckResult `json:"results"`
	}{Summary: summary, Results: results}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding results: %w", err)
	}
	if err := os.WriteFile(resultsPath, data, 0o600); err != nil {
		return fmt.Errorf("writing results: %w", err)
	}

	byStatus := make(map[types.CheckStatus][]string)
	for _, r := range results {
		byStatus[r.Status] = append(byStatus[r.Status],
			r.Credential.Email+":"+r.Credential.Password)
	}
	for status, lines := range byStatus {
		if status == "" {
			continue
		}
		name := filepath.Join(dir, categoryFileName(status))
		content := strings.Join(lines, "\n") + "\n"
		if err := os.WriteFile(name, []byte(content), 0o600); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
	}

	log.Info().Str("path", resultsPath).Int("results", len(results)).Msg("Results saved")
	return nil
}

func categoryFileName(status types.CheckStatus) string {
	return string(status) + ".txt"
}
