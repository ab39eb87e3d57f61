package router

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"hideadmin/internal/hideadmin"
)

func wrapHTTP(h http.Handler) gin.HandlerFunc {
	if h == nil {
		return func(c *gin.Context) {
			c.Status(http.StatusNotFound)
		}
	}

	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

func wrapHTTPFunc(f http.HandlerFunc) gin.HandlerFunc {
	if f == nil {
		return wrapHTTP(nil)
	}
	return wrapHTTP(f)
}

// loginURL 返回对外登录地址；没有网关时退回宿主默认登录页。
func loginURL(c *gin.Context, opts Options, redirectTo string, reauth bool) string {
	if opts.Gate != nil {
		return opts.Gate.LoginURLFor(c.Request, redirectTo, reauth)
	}
	u := "/" + hideadmin.LoginPath
	q := url.Values{}
	if redirectTo != "" {
		q.Set("redirect_to", redirectTo)
	}
	if reauth {
		q.Set("reauth", "1")
	}
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

// withQuery 在 u 上设置一个查询参数，保留其它参数。
func withQuery(u string, key string, value string) string {
	parsed, err := url.Parse(u)
	if err != nil {
		return u
	}
	q := parsed.Query()
	q.Set(key, value)
	parsed.RawQuery = q.Encode()
	return parsed.String()
}

func renderError(c *gin.Context, status int, message string) {
	c.HTML(status, "error.html", gin.H{
		"Title":   http.StatusText(status),
		"Status":  status,
		"Message": message,
	})
}

func renderNotFound(c *gin.Context) {
	c.HTML(http.StatusNotFound, "notfound.html", gin.H{"Title": "404"})
}
