package router

import (
	"expvar"
	"net/http"
	"net/netip"
	"strings"

	"github.com/gin-gonic/gin"

	"hideadmin/internal/auth"
)

func setSystemRoutes(r *gin.Engine, opts Options) {
	r.GET("/healthz", wrapHTTPFunc(opts.Healthz))

	r.GET("/favicon.ico", redirectFavicon)
	r.HEAD("/favicon.ico", redirectFavicon)

	if opts.Debug.Enabled {
		r.GET("/debug/vars", debugGuard(opts.Debug), wrapHTTP(expvar.Handler()))
	}
}

func redirectFavicon(c *gin.Context) {
	c.Redirect(http.StatusMovedPermanently, "/assets/favicon.svg")
}

// debugGuard 仅放行本机、白名单网段或携带正确 X-Debug-Token 的请求。
// 来源 IP 使用 TCP 对端地址，不读取任何转发头。
func debugGuard(d DebugRoutes) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d.Token != "" {
			if got := strings.TrimSpace(c.GetHeader("X-Debug-Token")); got != "" && auth.TokenEqual(got, d.Token) {
				c.Next()
				return
			}
		}
		if ip, err := netip.ParseAddr(c.RemoteIP()); err == nil {
			ip = ip.Unmap()
			if ip.IsLoopback() {
				c.Next()
				return
			}
			for _, p := range d.AllowCIDRs {
				if p.Contains(ip) {
					c.Next()
					return
				}
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "message": "禁止访问"})
	}
}
