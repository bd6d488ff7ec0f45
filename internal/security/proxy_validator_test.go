package security

import (
	"errors"
	"testing"
)

func TestValidateProxyURL(t *testing.T) {
	tests := []struct {
		name         string
		proxyURL     string
		allowPrivate bool
		wantErr      error
	}{
		{name: "empty is direct", proxyURL: ""},
		{name: "http proxy", proxyURL: "http://proxy.example.com:8080"},
		{name: "socks5 proxy", proxyURL: "socks5://proxy.example.com:1080"},
		{name: "socks4 proxy", proxyURL: "socks4://proxy.example.com:1080"},
		{name: "ftp scheme blocked", proxyURL: "ftp://proxy.example.com:21", wantErr: ErrBlockedProxyScheme},
		{name: "file scheme blocked", proxyURL: "file:///etc/passwd", wantErr: ErrBlockedProxyScheme},
		{name: "no host", proxyURL: "http://", wantErr: ErrInvalidProxyURL},
		{name: "localhost blocked", proxyURL: "http://localhost:8080", wantErr: ErrLocalhostBlocked},
		{name: "localhost allowed when private ok", proxyURL: "http://localhost:8080", allowPrivate: true},
		{name: "loopback blocked", proxyURL: "http://127.0.0.1:8080", wantErr: ErrLocalhostBlocked},
		{name: "loopback range blocked", proxyURL: "http://127.8.8.8:8080", wantErr: ErrLocalhostBlocked},
		{name: "decimal encoded loopback", proxyURL: "http://2130706433:8080", wantErr: ErrLocalhostBlocked},
		{name: "octal encoded loopback", proxyURL: "http://0177.0.0.1:8080", wantErr: ErrLocalhostBlocked},
		{name: "hex encoded loopback", proxyURL: "http://0x7f.0.0.1:8080", wantErr: ErrLocalhostBlocked},
		{name: "shortened loopback", proxyURL: "http://127.1:8080", wantErr: ErrLocalhostBlocked},
		{name: "private ip blocked", proxyURL: "http://192.168.1.5:8080", wantErr: ErrPrivateIPBlocked},
		{name: "private ip allowed when private ok", proxyURL: "http://192.168.1.5:8080", allowPrivate: true},
		{name: "metadata ip blocked", proxyURL: "http://169.254.169.254:80", wantErr: ErrMetadataBlocked},
		{name: "unspecified blocked", proxyURL: "http://0.0.0.0:8080", wantErr: ErrPrivateIPBlocked},
		{name: "public ip ok", proxyURL: "http://203.0.113.5:8080"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateProxyURL(tt.proxyURL, tt.allowPrivate)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateProxyURL(%q, %v) = %v, want %v", tt.proxyURL, tt.allowPrivate, err, tt.wantErr)
			}
		})
	}
}

func TestParseIPWithNormalization(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"192.168.1.1", "192.168.1.1"},
		{"2130706433", "127.0.0.1"},
		{"0300.0250.01.01", "192.168.1.1"},
		{"0xC0.0xA8.0x01.0x01", "192.168.1.1"},
		{"127.1", "127.0.0.1"},
		{"not-an-ip", ""},
	}
	for _, tt := range tests {
		got := parseIPWithNormalization(tt.in)
		if tt.want == "" {
			if got != nil {
				t.Errorf("parseIPWithNormalization(%q) = %v, want nil", tt.in, got)
			}
			continue
		}
		if got == nil || normalizeIPv4Mapped(got).String() != tt.want {
			t.Errorf("parseIPWithNormalization(%q) = %v, want %s", tt.in, got, tt.want)
		}
	}
}
