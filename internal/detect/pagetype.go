package detect

import (
	"strings"

	"github.com/go-rod/rod"
)

// PageType classifies what kind of page the browser landed on. A refresh
// during solving can skip straight past the challenge, so flows re-check
// the page type instead of assuming the challenge is still there.
type PageType string

const (
	PageChallenge PageType = "challenge"
	PageLogin     PageType = "login"
	PageAccount   PageType = "account"
	PageUnknown   PageType = "unknown"
)

// ClassifyPage determines the page type from the live page.
func (d *Detector) ClassifyPage(page *rod.Page) PageType {
	info, err := page.Info()
	title := ""
	if err == nil && info != nil {
		title = info.Title
	}
	html, err := page.HTML()
	if err != nil {
		html = ""
	}
	return d.Classify(title, html)
}

// Classify determines the page type from a title and HTML snapshot.
// Challenge beats login beats account: an interstitial in front of a login
// form is still a challenge page.
func (d *Detector) Classify(title, html string) PageType {
	titleLower := strings.ToLower(title)
	htmlLower := strings.ToLower(html)

	for _, marker := range d.sel.ChallengeMarkers {
		if strings.Contains(titleLower, marker) {
			return PageChallenge
		}
	}
	if kind := d.ClassifyHTML(html); kind == KindTurnstile || kind == KindJavaScript {
		return PageChallenge
	}

	if strings.Contains(htmlLower, `type="password"`) ||
		strings.Contains(htmlLower, `type='password'`) {
		return PageLogin
	}
	for _, sel := range d.sel.Login.EmailFields {
		// Attribute selectors double as literal markers in the raw HTML.
		if attr := selectorAttrHint(sel); attr != "" && strings.Contains(htmlLower, attr) {
			return PageLogin
		}
	}

	for _, marker := range d.sel.SuccessMarkers {
		if strings.Contains(htmlLower, marker) {
			return PageAccount
		}
	}

	return PageUnknown
}

// selectorAttrHint converts a simple attribute selector like
// `input[name="email"]` into the raw substring `name="email"`.
func selectorAttrHint(sel string) string {
	open := strings.Index(sel, "[")
	end := strings.Index(sel, "]")
	if open < 0 || end <= open {
		return ""
	}
	inner := sel[open+1 : end]
	if !strings.Contains(inner, "=") {
		return ""
	}
	return strings.ToLower(inner)
}
