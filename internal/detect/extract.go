package detect

import (
	"regexp"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/rs/zerolog/log"
	"github.com/ysmood/gson"

	"github.com/exomass/masschecker-go/internal/types"
)

// Extract fills the challenge descriptor with solver parameters, trying
// strategies in decreasing order of reliability. The first strategy that
// produces a sitekey wins; action, cdata and pagedata are best-effort.
func (d *Detector) Extract(page *rod.Page, ch *Challenge) error {
	strategies := []struct {
		name string
		fn   func(page *rod.Page, ch *Challenge) bool
	}{
		{"intercepted", d.extractFromRegistry},
		{"attributes", d.extractFromAttributes},
		{"js_scan", d.extractFromJS},
		{"page_source", d.extractFromSource},
		{"delayed_rescan", d.extractDelayed},
		{"challenge_page", d.extractFromChallengePage},
	}

	for _, s := range strategies {
		if s.fn(page, ch) && ch.Sitekey != "" {
			log.Debug().
				Str("strategy", s.name).
				Str("sitekey", ch.Sitekey).
				Msg("Extracted challenge parameters")
			return nil
		}
	}

	return types.ErrSitekeyNotFound
}

// extractFromRegistry reads the parameters captured by the render
// interception hook. This is the richest source: it sees exactly what the
// page passed to the widget, including the callback.
func (d *Detector) extractFromRegistry(page *rod.Page, ch *Challenge) bool {
	res, err := page.Eval(`() => {
		var reg = window.` + registryGlobal + `;
		if (!reg || !reg.params) return '';
		return JSON.stringify(reg.params);
	}`)
	if err != nil || res == nil {
		return false
	}
	raw := res.Value.Str()
	if raw == "" {
		return false
	}

	params := gson.NewFrom(raw)
	if sitekey := params.Get("sitekey").Str(); plausibleSitekey(sitekey) {
		ch.Sitekey = sitekey
		ch.Action = params.Get("action").Str()
		ch.CData = params.Get("cData").Str()
		ch.PageData = params.Get("chlPageData").Str()
		return true
	}
	return false
}

// extractFromAttributes queries widget elements for data attributes.
func (d *Detector) extractFromAttributes(page *rod.Page, ch *Challenge) bool {
	attrSelectors := []string{
		".cf-turnstile",
		"[data-sitekey]",
		"#turnstile-wrapper",
		".turnstile-widget",
	}

	for _, sel := range attrSelectors {
		has, el, err := page.Has(sel)
		if err != nil || !has || el == nil {
			continue
		}

		sitekey, err := el.Attribute("data-sitekey")
		if err == nil && sitekey != nil && plausibleSitekey(*sitekey) {
			ch.Sitekey = *sitekey
			if v, err := el.Attribute("data-action"); err == nil && v != nil {
				ch.Action = *v
			}
			if v, err := el.Attribute("data-cdata"); err == nil && v != nil {
				ch.CData = *v
			}
			releaseElement(el)
			return true
		}
		releaseElement(el)
	}
	return false
}

// extractFromJS scans the live DOM and window globals in one evaluation.
func (d *Detector) extractFromJS(page *rod.Page, ch *Challenge) bool {
	res, err := page.Eval(`() => {
		var out = {sitekey: '', action: '', cdata: ''};

		var els = document.querySelectorAll('[data-sitekey]');
		for (var i = 0; i < els.length; i++) {
			var key = els[i].getAttribute('data-sitekey');
			if (key && key.length > 10) {
				out.sitekey = key;
				out.action = els[i].getAttribute('data-action') || '';
				out.cdata = els[i].getAttribute('data-cdata') || '';
				return JSON.stringify(out);
			}
		}

		var scripts = document.querySelectorAll('script');
		for (var i = 0; i < scripts.length; i++) {
			var text = scripts[i].textContent || '';
			var m = text.match(/sitekey['":\s]+['"]([0-9a-zA-Z_-]+)['"]/);
			if (m && m[1] && m[1].length > 10) {
				out.sitekey = m[1];
				return JSON.stringify(out);
			}
		}

		if (window._cf_chl_opt && window._cf_chl_opt.chlApiSitekey) {
			out.sitekey = window._cf_chl_opt.chlApiSitekey;
			return JSON.stringify(out);
		}
		if (window.__TURNSTILE_SITE_KEY__) {
			out.sitekey = window.__TURNSTILE_SITE_KEY__;
			return JSON.stringify(out);
		}
		return '';
	}`)
	if err != nil || res == nil {
		return false
	}
	raw := res.Value.Str()
	if raw == "" {
		return false
	}

	parsed := gson.NewFrom(raw)
	if sitekey := parsed.Get("sitekey").Str(); plausibleSitekey(sitekey) {
		ch.Sitekey = sitekey
		if ch.Action == "" {
			ch.Action = parsed.Get("action").Str()
		}
		if ch.CData == "" {
			ch.CData = parsed.Get("cdata").Str()
		}
		return true
	}
	return false
}

// extractFromSource parses the raw page HTML: attribute and JSON style
// regexes plus iframe src parameters.
func (d *Detector) extractFromSource(page *rod.Page, ch *Challenge) bool {
	html, err := page.HTML()
	if err != nil || html == "" {
		return false
	}

	params := ExtractFromHTML(html)
	if !plausibleSitekey(params.Sitekey) {
		return false
	}
	ch.Sitekey = params.Sitekey
	if ch.Action == "" {
		ch.Action = params.Action
	}
	if ch.CData == "" {
		ch.CData = params.CData
	}
	if ch.PageData == "" {
		ch.PageData = params.PageData
	}
	return true
}

// extractDelayed waits briefly and rescans. Widgets injected by deferred
// scripts miss the earlier passes.
func (d *Detector) extractDelayed(page *rod.Page, ch *Challenge) bool {
	time.Sleep(2 * time.Second)
	if d.extractFromRegistry(page, ch) {
		return true
	}
	if d.extractFromAttributes(page, ch) {
		return true
	}
	return d.extractFromJS(page, ch)
}

// extractFromChallengePage handles Cloudflare interstitial pages, which
// carry the sitekey in the URL or as a bare 0x token in scripts.
func (d *Detector) extractFromChallengePage(page *rod.Page, ch *Challenge) bool {
	info, err := page.Info()
	if err != nil || info == nil {
		return false
	}

	// URL query parameters used by challenge redirects
	if key := sitekeyFromURL(info.URL); plausibleSitekey(key) {
		ch.Sitekey = key
		return true
	}

	// Only scan for bare tokens on pages that look like an interstitial,
	// anywhere else a 0x hit is more likely noise.
	title := strings.ToLower(info.Title)
	isInterstitial := false
	for _, marker := range d.sel.ChallengeMarkers {
		if strings.Contains(title, marker) {
			isInterstitial = true
			break
		}
	}
	if !isInterstitial {
		return false
	}

	html, err := page.HTML()
	if err != nil {
		return false
	}
	if key := scanBareSitekey(html); key != "" {
		ch.Sitekey = key
		return true
	}
	return false
}

var urlSitekeyParams = []string{"sitekey", "k", "site-key"}

// sitekeyFromURL pulls a sitekey out of URL query parameters or a
// /sitekey/ path segment.
func sitekeyFromURL(rawURL string) string {
	for _, param := range urlSitekeyParams {
		re := regexp.MustCompile(`[?&]` + regexp.QuoteMeta(param) + `=([0-9a-zA-Z_-]+)`)
		if m := re.FindStringSubmatch(rawURL); m != nil {
			return m[1]
		}
	}
	if idx := strings.Index(rawURL, "/sitekey/"); idx >= 0 {
		rest := rawURL[idx+len("/sitekey/"):]
		end := strings.IndexAny(rest, "/?&#")
		if end < 0 {
			end = len(rest)
		}
		if end > 0 {
			return rest[:end]
		}
	}
	return ""
}

// bareSitekeyRe matches 0x-prefixed Turnstile sitekeys.
var bareSitekeyRe = regexp.MustCompile(`0x[0-9A-Za-z_-]{18,98}`)

// Contexts in which a 0x token is almost certainly not a sitekey.
var bareSitekeyNoise = []string{"svg", "path", "font", "css", "style"}

// scanBareSitekey looks for a 0x token in HTML, skipping hits inside
// markup that commonly contains hex-like identifiers.
func scanBareSitekey(html string) string {
	for _, loc := range bareSitekeyRe.FindAllStringIndex(html, 20) {
		start := loc[0] - 80
		if start < 0 {
			start = 0
		}
		context := strings.ToLower(html[start:loc[0]])
		noisy := false
		for _, n := range bareSitekeyNoise {
			if strings.Contains(context, n) {
				noisy = true
				break
			}
		}
		if !noisy {
			return html[loc[0]:loc[1]]
		}
	}
	return ""
}

// plausibleSitekey filters out empty and truncated keys.
func plausibleSitekey(key string) bool {
	return len(key) > 10
}

func releaseElement(el *rod.Element) {
	if err := el.Release(); err != nil {
		log.Debug().Err(err).Msg("Failed to release element")
	}
}
