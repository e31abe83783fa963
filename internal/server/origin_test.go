package server

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNormalizeOrigin(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{in: "http://localhost:8080", want: "http://localhost:8080", ok: true},
		{in: "HTTPS://Chat.Example.COM", want: "https://chat.example.com", ok: true},
		{in: "https://example.com/path?q=1", want: "https://example.com", ok: true},
		{in: "example.com", ok: false},
		{in: "http://", ok: false},
		{in: "://nope", ok: false},
	}

	for _, tt := range tests {
		got, ok := normalizeOrigin(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("normalizeOrigin(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestNormalizeOriginsSkipsInvalidAndDetectsWildcard(t *testing.T) {
	origins, allowAll := normalizeOrigins([]string{" http://A.example ", "", "bogus", "*"}, discardLogger())

	if !allowAll {
		t.Error("expected wildcard to be detected")
	}
	if len(origins) != 1 || origins[0] != "http://a.example" {
		t.Errorf("origins = %v", origins)
	}
}

func TestOriginPolicyAllows(t *testing.T) {
	policy := newOriginPolicy([]string{"http://localhost:8080", "https://chat.example.com"}, discardLogger())

	tests := []struct {
		name   string
		origin string
		want   bool
	}{
		{name: "exact", origin: "http://localhost:8080", want: true},
		{name: "case-insensitive", origin: "HTTPS://CHAT.EXAMPLE.COM", want: true},
		{name: "other port", origin: "http://localhost:3000", want: false},
		{name: "other scheme", origin: "https://localhost:8080", want: false},
		{name: "missing", origin: "", want: false},
		{name: "garbage", origin: "not a url", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/ws", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if got := policy.checkOrigin(req); got != tt.want {
				t.Errorf("checkOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}
}

func TestOriginPolicyWildcard(t *testing.T) {
	policy := newOriginPolicy([]string{"*"}, discardLogger())

	req := httptest.NewRequest("GET", "/ws", nil)
	if !policy.allows(req) {
		t.Error("wildcard should allow requests without an Origin header")
	}

	req.Header.Set("Origin", "https://anything.example")
	if !policy.allows(req) {
		t.Error("wildcard should allow any origin")
	}
}

func TestOriginPolicyEmpty(t *testing.T) {
	policy := newOriginPolicy(nil, discardLogger())

	req := httptest.NewRequest("GET", "/ws", nil)
	req.Header.Set("Origin", "http://localhost:8080")
	if policy.allows(req) {
		t.Error("an empty policy should allow nothing")
	}
}
