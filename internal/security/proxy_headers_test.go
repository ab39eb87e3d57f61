package security

import (
	"net/http/httptest"
	"net/netip"
	"testing"
)

func TestDeriveBaseURLFromRequest_IgnoresForwardedWhenUntrusted(t *testing.T) {
	r := httptest.NewRequest("GET", "http://example.com/wp-admin/", nil)
	r.RemoteAddr = "203.0.113.10:1234"
	r.Header.Set("X-Forwarded-Proto", "https")
	r.Header.Set("X-Forwarded-Host", "evil.example.com")

	if got := DeriveBaseURLFromRequest(r, true, nil); got != "http://example.com" {
		t.Fatalf("expected base url to ignore forwarded headers, got %q", got)
	}
}

func TestDeriveBaseURLFromRequest_UsesForwardedWhenTrusted(t *testing.T) {
	r := httptest.NewRequest("GET", "http://internal.local/", nil)
	r.RemoteAddr = "10.1.2.3:1234"
	r.Header.Set("X-Forwarded-Proto", "https, http")
	r.Header.Set("X-Forwarded-Host", "blog.example.com, internal.local")

	trusted := []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}
	if got := DeriveBaseURLFromRequest(r, true, trusted); got != "https://blog.example.com" {
		t.Fatalf("expected base url to use forwarded headers, got %q", got)
	}
}

func TestDeriveBaseURLFromRequest_RejectsInvalidForwardedValues(t *testing.T) {
	r := httptest.NewRequest("GET", "http://example.com/", nil)
	r.RemoteAddr = "10.1.2.3:1234"
	r.Header.Set("X-Forwarded-Proto", "ftp")
	r.Header.Set("X-Forwarded-Host", "evil.example.com/path")

	trusted := []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}
	if got := DeriveBaseURLFromRequest(r, true, trusted); got != "http://example.com" {
		t.Fatalf("expected invalid forwarded values to be ignored, got %q", got)
	}
}

func TestBaseURLResolver_PrefersPublicBaseURL(t *testing.T) {
	r := httptest.NewRequest("GET", "http://internal.local/", nil)

	b := BaseURLResolver{PublicBaseURL: "https://www.example.com/"}
	if got := b.Resolve(r); got != "https://www.example.com" {
		t.Fatalf("Resolve = %q", got)
	}
	if got := (BaseURLResolver{}).Resolve(r); got != "http://internal.local" {
		t.Fatalf("Resolve without public base = %q", got)
	}
}

func TestSafeRedirectPath(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{in: "/wp-admin/", want: "/wp-admin/"},
		{in: " /wp-admin/options.php?page=x ", want: "/wp-admin/options.php?page=x"},
		{in: "", want: "/fallback"},
		{in: "wp-admin", want: "/fallback"},
		{in: "//evil.example.com/", want: "/fallback"},
		{in: "/\\evil.example.com", want: "/fallback"},
		{in: "https://evil.example.com/", want: "/fallback"},
		{in: "/a\r\nSet-Cookie: x", want: "/fallback"},
	}
	for _, tc := range cases {
		if got := SafeRedirectPath(tc.in, "/fallback"); got != tc.want {
			t.Fatalf("SafeRedirectPath(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
