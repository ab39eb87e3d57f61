package router

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"hideadmin/internal/auth"
	"hideadmin/internal/hideadmin"
	"hideadmin/internal/obs"
	"hideadmin/internal/security"
	"hideadmin/internal/store"
)

const defaultAfterLogin = "/wp-admin/"

type loginPage struct {
	Title      string
	Action     string
	Username   string
	Error      string
	Message    string
	RedirectTo string
}

func setLoginRoutes(r *gin.Engine, opts Options) {
	// 默认登录页：网关关闭时对所有人可见；启用时只有已登录用户能到达这里。
	r.Any("/"+hideadmin.LoginPath, loginHandler(opts))
}

// loginHandler 同时服务默认登录页与隐藏 slug（由网关 render_login 直接调用）。
func loginHandler(opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead:
			handleLoginGet(c, opts)
		case http.MethodPost:
			handleLoginPost(c, opts)
		default:
			c.Status(http.StatusMethodNotAllowed)
		}
	}
}

func handleLoginGet(c *gin.Context, opts Options) {
	if c.Query("action") == "logout" {
		handleLogout(c, opts)
		return
	}

	redirectTo := c.Query("redirect_to")
	if c.Query("reauth") == "1" {
		clearSession(c)
	} else if isLoggedIn(c) {
		c.Redirect(http.StatusFound, security.SafeRedirectPath(redirectTo, defaultAfterLogin))
		return
	}

	page := loginPage{RedirectTo: redirectTo}
	if c.Query("loggedout") == "true" {
		page.Message = "您已退出登录。"
	}
	renderLogin(c, http.StatusOK, page)
}

func handleLoginPost(c *gin.Context, opts Options) {
	if err := c.Request.ParseForm(); err != nil {
		renderLogin(c, http.StatusBadRequest, loginPage{Error: "请求格式不正确"})
		return
	}
	username := strings.TrimSpace(c.Request.PostForm.Get("log"))
	password := c.Request.PostForm.Get("pwd")
	redirectTo := c.Request.PostForm.Get("redirect_to")
	page := loginPage{Username: username, RedirectTo: redirectTo}

	if username == "" || password == "" {
		page.Error = "请输入用户名和密码"
		renderLogin(c, http.StatusOK, page)
		return
	}
	if opts.Store == nil {
		page.Error = "登录暂不可用"
		renderLogin(c, http.StatusServiceUnavailable, page)
		return
	}

	clientKey := c.ClientIP()
	if remaining, locked := opts.LoginFailures.Locked(clientKey); locked {
		page.Error = fmt.Sprintf("登录失败次数过多，请 %d 分钟后再试", int(math.Ceil(remaining.Minutes())))
		renderLogin(c, http.StatusTooManyRequests, page)
		return
	}
	if !opts.LoginInflight.Acquire(clientKey) {
		page.Error = "登录请求过于频繁，请稍后再试"
		renderLogin(c, http.StatusTooManyRequests, page)
		return
	}
	defer opts.LoginInflight.Release(clientKey)

	u, err := opts.Store.GetUserByUsername(c.Request.Context(), username)
	if err != nil {
		if !errors.Is(err, store.ErrUserNotFound) {
			slog.Error("登录查询用户失败", "err", err)
			page.Error = "登录暂不可用"
			renderLogin(c, http.StatusServiceUnavailable, page)
			return
		}
		auth.BurnPasswordCheck(password)
		loginFailed(c, opts, clientKey, page)
		return
	}
	if !auth.CheckPassword(u.PasswordHash, password) || u.Status != 1 {
		loginFailed(c, opts, clientKey, page)
		return
	}
	opts.LoginFailures.Reset(clientKey)

	csrf, err := auth.NewRandomToken("csrf_", 32)
	if err != nil {
		slog.Error("生成 csrf token 失败", "err", err)
		page.Error = "登录暂不可用"
		renderLogin(c, http.StatusInternalServerError, page)
		return
	}
	if err := startSession(c, u, csrf); err != nil {
		slog.Error("保存会话失败", "err", err)
		page.Error = "登录暂不可用"
		renderLogin(c, http.StatusInternalServerError, page)
		return
	}

	slog.Info("用户登录", "user_id", u.ID, "path", c.Request.URL.Path)
	c.Redirect(http.StatusFound, security.SafeRedirectPath(redirectTo, defaultAfterLogin))
}

func loginFailed(c *gin.Context, opts Options, clientKey string, page loginPage) {
	if opts.LoginFailures.Fail(clientKey) {
		obs.RecordLoginLockout()
		slog.Warn("登录失败次数达到上限，已临时锁定", "client_ip", clientKey)
	}
	page.Error = "用户名或密码错误"
	renderLogin(c, http.StatusOK, page)
}

// handleLogout 清空会话后回到登录页；已登录用户必须携带会话 csrf，避免被第三方页面强制登出。
func handleLogout(c *gin.Context, opts Options) {
	if p, ok := principal(c); ok {
		if !formCSRFValid(c, c.Query("_csrf")) {
			renderError(c, http.StatusForbidden, "退出链接已失效，请从后台重新点击退出。")
			return
		}
		clearSession(c)
		slog.Info("用户退出", "user_id", p.UserID)
	}
	c.Redirect(http.StatusFound, withQuery(loginURL(c, opts, "", false), "loggedout", "true"))
}

func renderLogin(c *gin.Context, status int, page loginPage) {
	page.Title = "登录"
	page.Action = c.Request.URL.Path
	c.Header("Cache-Control", "no-store")
	c.HTML(status, "login.html", page)
}
