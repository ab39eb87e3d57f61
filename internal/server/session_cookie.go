package server

import (
	"net/http"

	"github.com/gin-contrib/sessions"

	"hideadmin/internal/config"
)

const SessionCookieName = "hideadmin_session"

// sessionOptions 返回会话 cookie 属性：非 dev 环境默认 Secure（可通过 disable_secure_cookies 关闭，
// 用于纯 http 的内网部署）。SameSite=Strict 使跨站表单无法携带会话。
func sessionOptions(cfg config.Config) sessions.Options {
	return sessions.Options{
		Path:     "/",
		MaxAge:   2592000, // 30 days
		HttpOnly: true,
		Secure:   cfg.Env != "dev" && !cfg.Security.DisableSecureCookies,
		SameSite: http.SameSiteStrictMode,
	}
}
