package browser

import (
	"testing"

	"github.com/go-rod/rod/lib/proto"
)

func TestBuildBlockPatterns(t *testing.T) {
	tests := []struct {
		name  string
		types []string
		want  int
	}{
		{"empty", nil, 0},
		{"images only", []string{"image"}, 8},
		{"css only", []string{"stylesheet"}, 1},
		{"default blocking set", []string{"image", "font", "media"}, 18},
		{"unknown skipped", []string{"websocket"}, 0},
		{"aliases and whitespace", []string{" images ", "css", "fonts"}, 14},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildBlockPatterns(tt.types)
			if len(got) != tt.want {
				t.Errorf("pattern count = %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestBuildBlockPatternsResourceTypes(t *testing.T) {
	patterns := buildBlockPatterns([]string{"media"})
	for _, p := range patterns {
		if p.ResourceType != proto.NetworkResourceTypeMedia {
			t.Errorf("pattern %q has type %q", p.URLPattern, p.ResourceType)
		}
	}
}

func TestOriginOf(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://example.com/login?next=/home", "https://example.com"},
		{"http://example.com:8080/path", "http://example.com:8080"},
		{"not a url", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := originOf(tt.in); got != tt.want {
			t.Errorf("originOf(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
