// Package security 负责对外 base URL 的推断与站内跳转目标的校验。
package security

import (
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
)

// BaseURLResolver 为登录链接、/404 跳转等生成对外 base URL。
//
// PublicBaseURL 非空时总是优先；否则按请求推断，且仅当 TrustProxyHeaders=true
// 且请求来源命中 TrustedProxies 时才信任 X-Forwarded-*。
type BaseURLResolver struct {
	PublicBaseURL     string
	TrustProxyHeaders bool
	TrustedProxies    []netip.Prefix
}

func (b BaseURLResolver) Resolve(r *http.Request) string {
	if v := strings.TrimRight(strings.TrimSpace(b.PublicBaseURL), "/"); v != "" {
		return v
	}
	return DeriveBaseURLFromRequest(r, b.TrustProxyHeaders, b.TrustedProxies)
}

// DeriveBaseURLFromRequest 基于请求推断 scheme://host。
// X-Forwarded-Proto 仅允许 http/https；X-Forwarded-Host 仅允许纯 host[:port]。
func DeriveBaseURLFromRequest(r *http.Request, trustProxyHeaders bool, trustedProxies []netip.Prefix) string {
	if r == nil {
		return ""
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	host := strings.TrimSpace(r.Host)
	if host == "" && r.URL != nil {
		host = strings.TrimSpace(r.URL.Host)
	}

	if trustProxyHeaders && isTrustedProxyRequest(r, trustedProxies) {
		if proto, ok := forwardedProto(r.Header.Get("X-Forwarded-Proto")); ok {
			scheme = proto
		}
		if h, ok := forwardedHost(r.Header.Get("X-Forwarded-Host")); ok {
			host = h
		}
	}

	if host == "" {
		return ""
	}
	return scheme + "://" + host
}

// SafeRedirectPath 仅接受站内相对路径（/ 开头，非 // 或 /\），用于 redirect_to；
// 不合法时返回 fallback。
func SafeRedirectPath(raw string, fallback string) string {
	v := strings.TrimSpace(raw)
	if v == "" || !strings.HasPrefix(v, "/") {
		return fallback
	}
	if strings.HasPrefix(v, "//") || strings.HasPrefix(v, "/\\") {
		return fallback
	}
	if strings.ContainsAny(v, "\r\n\t") {
		return fallback
	}
	u, err := url.Parse(v)
	if err != nil || u.Scheme != "" || u.Host != "" || u.User != nil {
		return fallback
	}
	return v
}

func isTrustedProxyRequest(r *http.Request, trustedProxies []netip.Prefix) bool {
	if len(trustedProxies) == 0 {
		return false
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		host = strings.TrimSpace(r.RemoteAddr)
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	for _, pfx := range trustedProxies {
		if pfx.Contains(ip) {
			return true
		}
	}
	return false
}

func forwardedProto(raw string) (string, bool) {
	switch v := strings.ToLower(firstForwardedToken(raw)); v {
	case "http", "https":
		return v, true
	default:
		return "", false
	}
}

func forwardedHost(raw string) (string, bool) {
	v := firstForwardedToken(raw)
	if v == "" || strings.ContainsAny(v, " \t\r\n/\\") {
		return "", false
	}
	u, err := url.Parse("http://" + v)
	if err != nil {
		return "", false
	}
	if u.Host == "" || u.User != nil || u.Path != "" || u.RawQuery != "" || u.Fragment != "" {
		return "", false
	}
	if !strings.EqualFold(u.Host, v) {
		return "", false
	}
	return v, true
}

func firstForwardedToken(raw string) string {
	v := strings.TrimSpace(raw)
	if idx := strings.IndexByte(v, ','); idx >= 0 {
		v = v[:idx]
	}
	return strings.TrimSpace(v)
}
