package router

import (
	"html/template"
	"io/fs"
	"net/http"
	"net/netip"

	"hideadmin/internal/hideadmin"
	"hideadmin/internal/limits"
	"hideadmin/internal/store"
)

type Options struct {
	Store *store.Store
	Gate  *hideadmin.Gate

	// SiteName 用作首页与后台页面标题。
	SiteName string
	// NotFoundPath 为本服务自己的 404 页面路径（与 Gate 的 404 跳转目标一致）。
	NotFoundPath string

	// Templates 为页面模板；为空时不设置 HTML 渲染器。
	Templates *template.Template
	// Assets 挂载在 /assets 下；为空时不提供静态资源。
	Assets fs.FS

	// LoginFailures 为空时不做失败锁定；LoginInflight 为空时不限制并发登录。
	LoginFailures *limits.FailureLimits
	LoginInflight *limits.InflightLimits

	// system
	Healthz http.HandlerFunc
	Debug   DebugRoutes
}

// DebugRoutes 控制 /debug/vars 的挂载与访问范围。
type DebugRoutes struct {
	Enabled    bool
	AllowCIDRs []netip.Prefix
	Token      string
}

func (o Options) notFoundPath() string {
	if o.NotFoundPath == "" {
		return "/404"
	}
	return o.NotFoundPath
}

func (o Options) siteName() string {
	if o.SiteName == "" {
		return "hideadmin"
	}
	return o.SiteName
}
