// Package server 组装 HTTP 路由、依赖与中间件，使 main 保持简单可读。
package server

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"hideadmin/internal/assets"
	"hideadmin/internal/auth"
	"hideadmin/internal/config"
	"hideadmin/internal/hideadmin"
	"hideadmin/internal/limits"
	"hideadmin/internal/middleware"
	"hideadmin/internal/security"
	"hideadmin/internal/store"
	"hideadmin/internal/version"
	"hideadmin/router"
)

// maxRequestBodyBytes 覆盖登录与设置表单；更大的请求体直接拒绝。
const maxRequestBodyBytes = 1 << 20

type AppOptions struct {
	Config  config.Config
	DB      *sql.DB
	Version version.BuildInfo
}

type App struct {
	cfg     config.Config
	db      *sql.DB
	store   *store.Store
	options *hideadmin.ConfigStore
	routes  *hideadmin.LoginRoutes
	gate    *hideadmin.Gate
	version version.BuildInfo
	engine  *gin.Engine
}

func NewApp(opts AppOptions) (*App, error) {
	if opts.DB == nil {
		return nil, errors.New("db 为空")
	}
	cfg := opts.Config

	st := store.New(opts.DB)
	st.SetDialect(store.Dialect(cfg.DB.Driver))

	trusted, err := config.ParseTrustedProxyCIDRs(cfg.Security.TrustedProxyCIDRs)
	if err != nil {
		return nil, err
	}
	debugCIDRs, err := config.ParseTrustedProxyCIDRs(cfg.Debug.AllowCIDRs)
	if err != nil {
		return nil, err
	}

	routes := hideadmin.NewLoginRoutes()
	options := hideadmin.NewConfigStore(st, routes, hideadmin.Defaults{
		FeatureEnabled: cfg.HideAdmin.FeatureEnabled,
		LoginSlug:      cfg.HideAdmin.LoginSlug,
		NotFoundURL:    cfg.Server.PublicBaseURL + cfg.HideAdmin.NotFoundPath,
		ReservedPaths:  config.ReservedPaths(),
	})
	gate := hideadmin.NewGate(options, routes, security.BaseURLResolver{
		PublicBaseURL:     cfg.Server.PublicBaseURL,
		TrustProxyHeaders: cfg.Security.TrustProxyHeaders,
		TrustedProxies:    trusted,
	}, cfg.HideAdmin.NotFoundPath)

	app := &App{
		cfg:     cfg,
		db:      opts.DB,
		store:   st,
		options: options,
		routes:  routes,
		gate:    gate,
		version: opts.Version,
	}
	if err := app.bootstrap(); err != nil {
		return nil, err
	}

	tmpl, err := assets.Templates()
	if err != nil {
		return nil, fmt.Errorf("解析页面模板失败: %w", err)
	}

	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	// 隐藏 slug 的 "/slug" 与 "/slug/" 都由网关直接渲染，不做尾斜杠跳转。
	engine.RedirectTrailingSlash = false
	// ClientIP 只在请求来自受信代理时才采信 X-Forwarded-For，登录失败锁定按它计数。
	var proxies []string
	if cfg.Security.TrustProxyHeaders {
		proxies = cfg.Security.TrustedProxyCIDRs
	}
	if err := engine.SetTrustedProxies(proxies); err != nil {
		return nil, fmt.Errorf("设置受信代理失败: %w", err)
	}
	engine.Use(gin.Recovery())

	sessionSecret := cfg.Security.SessionSecret
	if sessionSecret == "" {
		slog.Warn("未配置 session secret，使用随机值（重启后所有会话失效）")
		sessionSecret = randomSecret(32)
	}
	sessionStore := cookie.NewStore([]byte(sessionSecret))
	sessionStore.Options(sessionOptions(cfg))
	engine.Use(sessions.Sessions(SessionCookieName, sessionStore))

	router.SetRouter(engine, router.Options{
		Store:        st,
		Gate:         gate,
		SiteName:     "hideadmin",
		NotFoundPath: cfg.HideAdmin.NotFoundPath,
		Templates:    tmpl,
		Assets:       assets.StaticFS(),

		LoginFailures: limits.NewFailureLimits(cfg.Security.LoginMaxFailures, cfg.Security.LoginLockout),
		LoginInflight: limits.NewInflightLimits(2),

		Healthz: app.handleHealthz,
		Debug: router.DebugRoutes{
			Enabled:    cfg.Debug.Routes,
			AllowCIDRs: debugCIDRs,
			Token:      cfg.Debug.Token,
		},
	})
	app.engine = engine
	return app, nil
}

func randomSecret(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 10)
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

// Handler 返回完整处理链：request id 与访问日志包在 gin 引擎之外，网关拦截的请求同样会被记录。
func (a *App) Handler() http.Handler {
	return middleware.Chain(a.engine,
		middleware.RequestID,
		middleware.AccessLog,
		middleware.MaxBytes(maxRequestBodyBytes),
	)
}

// Options 暴露选项存储，供进程内的宿主代码读取有效配置或生成登录链接。
func (a *App) Options() *hideadmin.ConfigStore {
	return a.options
}

func (a *App) Gate() *hideadmin.Gate {
	return a.gate
}

// Start 启动后台任务（跨实例失效轮询），随 ctx 取消而退出。
func (a *App) Start(ctx context.Context) {
	a.options.StartInvalidationPoller(ctx, a.cfg.HideAdmin.InvalidationPoll)
}

func (a *App) handleHealthz(w http.ResponseWriter, r *http.Request) {
	type resp struct {
		OK      bool   `json:"ok"`
		Env     string `json:"env"`
		Version string `json:"version"`
		Date    string `json:"date"`

		DBOK bool `json:"db_ok"`

		// 只暴露是否启用，不暴露 slug。
		HideAdminEnabled bool `json:"hide_admin_enabled"`
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	dbOK := a.db.PingContext(ctx) == nil

	out := resp{
		OK:               true,
		Env:              a.cfg.Env,
		Version:          a.version.Version,
		Date:             a.version.Date,
		DBOK:             dbOK,
		HideAdminEnabled: a.options.IsEnabled(ctx),
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_ = json.NewEncoder(w).Encode(out)
}

// bootstrap 完成首次激活（写入默认选项并构建登录路由），并在 users 表为空时创建初始管理员。
func (a *App) bootstrap() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.options.Activate(ctx); err != nil {
		return err
	}
	return a.seedAdmin(ctx)
}

func (a *App) seedAdmin(ctx context.Context) error {
	username := a.cfg.Bootstrap.AdminUsername
	if username == "" {
		return nil
	}
	n, err := a.store.CountUsers(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	hash, err := auth.HashPassword(a.cfg.Bootstrap.AdminPassword)
	if err != nil {
		return fmt.Errorf("bootstrap 管理员密码不合法: %w", err)
	}
	id, err := a.store.CreateUser(ctx, username, hash, store.UserRoleRoot)
	if err != nil {
		return fmt.Errorf("创建 bootstrap 管理员失败: %w", err)
	}
	slog.Info("已创建初始管理员", "user_id", id, "username", username)
	return nil
}
