package detect

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// Params are challenge parameters recovered from raw page HTML.
type Params struct {
	Sitekey  string
	Action   string
	CData    string
	PageData string
}

// Attribute-style patterns: data-sitekey="..." in markup.
var (
	attrSitekeyRe  = regexp.MustCompile(`data-sitekey=["']([0-9a-zA-Z_-]+)["']`)
	attrActionRe   = regexp.MustCompile(`data-action=["']([^"']+)["']`)
	attrCDataRe    = regexp.MustCompile(`data-cdata=["']([^"']+)["']`)
	jsonSitekeyRe  = regexp.MustCompile(`["']?sitekey["']?\s*[:=]\s*["']([0-9a-zA-Z_-]{11,})["']`)
	jsonActionRe   = regexp.MustCompile(`["']?action["']?\s*[:=]\s*["']([^"']+)["']`)
	jsonPageDataRe = regexp.MustCompile(`["']?chlPageData["']?\s*[:=]\s*["']([^"']+)["']`)
)

// ExtractFromHTML recovers challenge parameters from raw HTML, combining
// regex scans with a structural parse for widget iframes. Pure function,
// works on stored page source as well as live snapshots.
func ExtractFromHTML(source string) Params {
	var p Params

	if m := attrSitekeyRe.FindStringSubmatch(source); m != nil {
		p.Sitekey = m[1]
	}
	if m := attrActionRe.FindStringSubmatch(source); m != nil {
		p.Action = m[1]
	}
	if m := attrCDataRe.FindStringSubmatch(source); m != nil {
		p.CData = m[1]
	}

	if p.Sitekey == "" {
		if m := jsonSitekeyRe.FindStringSubmatch(source); m != nil {
			p.Sitekey = m[1]
		}
	}
	if p.Action == "" {
		if m := jsonActionRe.FindStringSubmatch(source); m != nil {
			p.Action = m[1]
		}
	}
	if m := jsonPageDataRe.FindStringSubmatch(source); m != nil {
		p.PageData = m[1]
	}

	if p.Sitekey == "" {
		p.Sitekey = sitekeyFromIframes(source)
	}

	return p
}

// sitekeyFromIframes walks the document tree for challenge iframes and
// pulls the sitekey out of their src URLs.
func sitekeyFromIframes(source string) string {
	doc, err := html.Parse(strings.NewReader(source))
	if err != nil {
		return ""
	}

	var found string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if found != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "iframe" {
			for _, attr := range n.Attr {
				if attr.Key != "src" {
					continue
				}
				if !strings.Contains(attr.Val, "challenges.cloudflare.com") &&
					!strings.Contains(attr.Val, "turnstile") {
					continue
				}
				if key := sitekeyFromIframeSrc(attr.Val); key != "" {
					found = key
					return
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return found
}

// sitekeyFromIframeSrc extracts the sitekey from a widget iframe URL,
// checking query parameters first and path segments second.
func sitekeyFromIframeSrc(src string) string {
	if u, err := url.Parse(src); err == nil {
		for _, param := range urlSitekeyParams {
			if v := u.Query().Get(param); plausibleSitekey(v) {
				return v
			}
		}
	}
	if key := sitekeyFromURL(src); plausibleSitekey(key) {
		return key
	}
	// Widget iframe paths embed the sitekey as a bare path segment:
	// .../turnstile/if/ov2/av0/0x4AAAAAAA.../light/normal
	for _, seg := range strings.Split(src, "/") {
		if strings.HasPrefix(seg, "0x") && plausibleSitekey(seg) {
			return seg
		}
	}
	return ""
}
