package hideadmin

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"hideadmin/internal/middleware"
	"hideadmin/internal/obs"
	"hideadmin/internal/security"
)

// Gate 在路由之前对每个请求做一次判定。
type Gate struct {
	store        *ConfigStore
	routes       *LoginRoutes
	base         security.BaseURLResolver
	notFoundPath string
}

func NewGate(store *ConfigStore, routes *LoginRoutes, base security.BaseURLResolver, notFoundPath string) *Gate {
	if strings.TrimSpace(notFoundPath) == "" {
		notFoundPath = "/404"
	}
	return &Gate{
		store:        store,
		routes:       routes,
		base:         base,
		notFoundPath: notFoundPath,
	}
}

func (g *Gate) Store() *ConfigStore {
	return g.store
}

// BaseURL 返回对外 base URL（配置优先，其次按请求推断）。
func (g *Gate) BaseURL(r *http.Request) string {
	return g.base.Resolve(r)
}

// NotFoundURL 为 404 跳转目标：base + not_found_path。
func (g *Gate) NotFoundURL(r *http.Request) string {
	return g.BaseURL(r) + g.notFoundPath
}

// Evaluate 计算请求的判定结果，不产生任何副作用。
func (g *Gate) Evaluate(r *http.Request, loggedIn bool) Decision {
	p := NormalizePath(r.URL.Path)
	return Decide(Input{
		Options:     g.store.Get(r.Context()),
		Path:        p,
		LoggedIn:    loggedIn,
		LoginRoute:  g.routes.Match(p),
		NotFoundURL: g.NotFoundURL(r),
	})
}

// Middleware 返回 gin 中间件：重定向与渲染登录页都会终止后续处理。
// loggedIn 为空或返回 false 时一律视为未登录。
func (g *Gate) Middleware(loggedIn func(*gin.Context) bool, renderLogin gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		authed := false
		if loggedIn != nil {
			authed = loggedIn(c)
		}
		d := g.Evaluate(c.Request, authed)
		obs.RecordGateDecision(string(d.Action))

		switch d.Action {
		case ActionPassThrough:
			c.Next()
			return
		case ActionRenderLogin:
			g.logDecision(c, d)
			if renderLogin == nil {
				c.AbortWithStatus(http.StatusNotFound)
				return
			}
			renderLogin(c)
			c.Abort()
		default:
			g.logDecision(c, d)
			c.Redirect(http.StatusFound, d.Location)
			c.Abort()
		}
	}
}

func (g *Gate) logDecision(c *gin.Context, d Decision) {
	slog.Debug("hideadmin 拦截请求",
		"request_id", middleware.GetRequestID(c.Request.Context()),
		"path", c.Request.URL.Path,
		"action", string(d.Action),
		"location", d.Location,
	)
}

// EffectiveLoginURL 返回隐藏登录入口：base + "/" + slug + "/"。
func (g *Gate) EffectiveLoginURL(ctx context.Context, base string) string {
	return strings.TrimRight(base, "/") + "/" + g.store.Get(ctx).LoginSlug + "/"
}

// DefaultLoginURL 返回宿主原本的登录地址。
func DefaultLoginURL(base string) string {
	return strings.TrimRight(base, "/") + "/" + LoginPath
}

// LoginURL 为宿主生成对外登录链接：启用时改写为隐藏入口，关闭时保持默认登录地址。
// redirectTo 非空时附带 redirect_to（RFC 3986 编码），reauth 时附带 reauth=1。
func (g *Gate) LoginURL(ctx context.Context, base string, redirectTo string, reauth bool) string {
	u := DefaultLoginURL(base)
	if g.store.Get(ctx).FeatureEnabled {
		u = g.EffectiveLoginURL(ctx, base)
	}
	if redirectTo != "" {
		u = addQueryArg(u, "redirect_to", rawURLEncode(redirectTo))
	}
	if reauth {
		u = addQueryArg(u, "reauth", "1")
	}
	return u
}

// LoginURLFor 为 LoginURL 的请求版本（base 从请求推断）。
func (g *Gate) LoginURLFor(r *http.Request, redirectTo string, reauth bool) string {
	return g.LoginURL(r.Context(), g.BaseURL(r), redirectTo, reauth)
}

func addQueryArg(u string, key string, encodedValue string) string {
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return u + sep + key + "=" + encodedValue
}

// rawURLEncode 对齐 RFC 3986：仅保留 A-Za-z0-9-_.~，空格编码为 %20。
func rawURLEncode(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
