// Package security provides input validation and log redaction helpers.
package security

import (
	"errors"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Proxy validation errors.
var (
	ErrInvalidProxyURL    = errors.New("invalid proxy URL")
	ErrBlockedProxyScheme = errors.New("proxy URL scheme not allowed (must be http, https, socks4, or socks5)")
	ErrLocalhostBlocked   = errors.New("localhost proxies are not allowed")
	ErrPrivateIPBlocked   = errors.New("private/internal IP addresses are not allowed")
	ErrMetadataBlocked    = errors.New("cloud metadata addresses are not allowed")
)

// AllowedProxySchemes defines the permitted schemes for proxy URLs.
var AllowedProxySchemes = map[string]bool{
	"http":   true,
	"https":  true,
	"socks4": true,
	"socks5": true,
}

// blockedHosts are hostnames a proxy line must never point at.
var blockedHosts = map[string]bool{
	"localhost":                true,
	"metadata.google.internal": true,
	"metadata":                 true,
	"instance-data":            true,
}

// cloudMetadataIPs are cloud provider metadata service addresses. A proxy
// list entry pointing at one of these is never legitimate.
var cloudMetadataIPs = []net.IP{
	net.ParseIP("169.254.169.254"),
	net.ParseIP("169.254.170.2"),
	net.ParseIP("100.100.100.200"),
	net.ParseIP("192.0.0.192"),
	net.ParseIP("fd00:ec2::254"),
	net.ParseIP("fc00:ec2::254"),
}

// ValidateProxyURL validates one proxy list entry. Empty input is valid
// and means a direct connection. With allowPrivateIPs set, localhost and
// RFC 1918 hosts pass, which is the normal case for local proxy chains.
// IP encoding tricks (decimal, octal, hex, IPv4-mapped IPv6) are
// normalized before the checks.
func ValidateProxyURL(proxyURL string, allowPrivateIPs bool) error {
	if proxyURL == "" {
		return nil
	}

	parsed, err := url.Parse(proxyURL)
	if err != nil {
		return ErrInvalidProxyURL
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !AllowedProxySchemes[scheme] {
		return ErrBlockedProxyScheme
	}
	if parsed.Host == "" {
		return ErrInvalidProxyURL
	}

	if allowPrivateIPs {
		return nil
	}

	hostname := strings.ToLower(parsed.Hostname())
	if blockedHosts[hostname] || isLocalhostHostname(hostname) {
		return ErrLocalhostBlocked
	}

	if ip := parseIPWithNormalization(hostname); ip != nil {
		return validateIP(normalizeIPv4Mapped(ip))
	}
	// Hostnames are not resolved here; the browser resolves them through
	// the proxy itself.
	return nil
}

// parseIPWithNormalization parses an IP address in any of the encodings
// that survive in real proxy lists: dotted decimal, a single decimal
// number, octal or hex octets, and shortened forms like 127.1.
func parseIPWithNormalization(hostname string) net.IP {
	if ip := net.ParseIP(hostname); ip != nil {
		return ip
	}

	if num, err := strconv.ParseUint(hostname, 10, 32); err == nil {
		return net.IPv4(byte(num>>24), byte(num>>16), byte(num>>8), byte(num))
	}

	parts := strings.Split(hostname, ".")
	if len(parts) == 4 {
		var octets [4]byte
		for i, part := range parts {
			val, err := parseIntWithBase(part)
			if err != nil || val > 255 {
				return nil
			}
			octets[i] = byte(val)
		}
		return net.IPv4(octets[0], octets[1], octets[2], octets[3])
	}

	if len(parts) == 2 {
		first, err1 := parseIntWithBase(parts[0])
		second, err2 := parseIntWithBase(parts[1])
		if err1 == nil && err2 == nil && first <= 255 && second <= 0xFFFFFF {
			return net.IPv4(byte(first), byte(second>>16), byte(second>>8), byte(second))
		}
	}

	return nil
}

func parseIntWithBase(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty string")
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return strconv.ParseUint(s[2:], 16, 64)
	}
	if strings.HasPrefix(s, "0") && len(s) > 1 && s[1] != 'x' && s[1] != 'X' {
		return strconv.ParseUint(s[1:], 8, 64)
	}
	return strconv.ParseUint(s, 10, 64)
}

func normalizeIPv4Mapped(ip net.IP) net.IP {
	if ip4 := ip.To4(); ip4 != nil {
		return ip4
	}
	return ip
}

func isLocalhostHostname(hostname string) bool {
	switch hostname {
	case "localhost", "localhost.localdomain", "local", "ip6-localhost", "ip6-loopback":
		return true
	}
	return strings.HasSuffix(hostname, ".localhost") || strings.HasPrefix(hostname, "localhost.")
}

// isLoopbackIP covers the whole 127.0.0.0/8 range, not just 127.0.0.1.
func isLoopbackIP(ip net.IP) bool {
	if ip4 := ip.To4(); ip4 != nil {
		return ip4[0] == 127
	}
	return ip.Equal(net.IPv6loopback)
}

func validateIP(ip net.IP) error {
	if isLoopbackIP(ip) {
		return ErrLocalhostBlocked
	}
	// Metadata check first: those addresses are link-local and would
	// otherwise report the less specific error.
	for _, metadataIP := range cloudMetadataIPs {
		if ip.Equal(metadataIP) {
			return ErrMetadataBlocked
		}
	}
	if ip.IsPrivate() {
		return ErrPrivateIPBlocked
	}
	if ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return ErrPrivateIPBlocked
	}
	if ip.IsUnspecified() {
		return ErrPrivateIPBlocked
	}
	return nil
}
