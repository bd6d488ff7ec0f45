package check

import (
	"strings"

	"github.com/go-rod/rod"
	"github.com/rs/zerolog/log"

	"github.com/exomass/masschecker-go/internal/selectors"
	"github.com/exomass/masschecker-go/internal/types"
)

// classifyOutcome inspects the post-submit page and maps it to a status.
func (c *Checker) classifyOutcome(page *rod.Page) (types.CheckStatus, string) {
	html, err := page.HTML()
	if err != nil {
		return types.StatusError, "could not read page after submit: " + err.Error()
	}
	info, err := page.Info()
	currentURL := ""
	if err == nil {
		currentURL = info.URL
	}

	status, msg := ClassifyOutcome(c.sel, html, currentURL, c.hasTwoFAField(page), c.hasLoginForm(page))
	log.Debug().
		Str("status", string(status)).
		Str("url", currentURL).
		Msg("Outcome classified")
	return status, msg
}

// ClassifyOutcome maps the post-submit URL and page content to a check
// status. A redirect to a success URL wins outright; then two-factor
// prompts beat failure text, which beats success text; a still-present
// login form means the credentials were rejected silently.
func ClassifyOutcome(sel *selectors.Selectors, html, currentURL string, twoFAVisible, loginVisible bool) (types.CheckStatus, string) {
	lower := strings.ToLower(html)

	if marker := firstMatch(strings.ToLower(currentURL), sel.SuccessMarkers); marker != "" {
		return types.StatusValid, "success URL: " + marker
	}
	if twoFAVisible || matchAny(lower, sel.TwoFAMarkers) {
		return types.StatusTwoFA, "two-factor prompt after login"
	}
	if marker := firstMatch(lower, sel.FailureMarkers); marker != "" {
		return types.StatusInvalid, "rejection marker: " + marker
	}
	if marker := firstMatch(lower, sel.SuccessMarkers); marker != "" {
		return types.StatusValid, "success marker: " + marker
	}
	if loginVisible {
		return types.StatusInvalid, "login form still present after submit"
	}
	return types.StatusError, "page state unrecognized at " + currentURL
}

func (c *Checker) hasTwoFAField(page *rod.Page) bool {
	_, err := c.findFieldQuick(page, c.sel.Login.TwoFAFields)
	return err == nil
}

func (c *Checker) hasLoginForm(page *rod.Page) bool {
	if _, err := c.findFieldQuick(page, c.sel.Login.PasswordFields); err == nil {
		return true
	}
	_, err := c.findFieldQuick(page, c.sel.Login.EmailFields)
	return err == nil
}

func matchAny(lowerHTML string, markers []string) bool {
	return firstMatch(lowerHTML, markers) != ""
}

func firstMatch(lowerHTML string, markers []string) string {
	for _, m := range markers {
		if m == "" {
			continue
		}
		if strings.Contains(lowerHTML, strings.ToLower(m)) {
			return m
		}
	}
	return ""
}
