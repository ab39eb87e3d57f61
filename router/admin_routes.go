package router

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"hideadmin/internal/hideadmin"
)

const settingsPagePath = "/wp-admin/options-general.php"

func setAdminRoutes(r *gin.Engine, opts Options) {
	admin := r.Group("/" + hideadmin.AdminPath)

	// 机器回调端点：网关对匿名请求也放行，这里不要求登录。
	admin.Any("/admin-ajax.php", handleAdminCallback(true))
	admin.Any("/admin-post.php", handleAdminCallback(false))

	if opts.Gate == nil {
		return
	}

	pages := admin.Group("", requireRootPage(opts))
	pages.GET("", adminDashboardHandler(opts))
	pages.GET("/", adminDashboardHandler(opts))
	pages.GET("/index.php", adminDashboardHandler(opts))
	pages.GET("/options-general.php", adminSettingsPageHandler(opts))
	pages.POST("/options.php", adminSettingsSaveHandler(opts))
}

// handleAdminCallback 没有注册任何动作：与宿主一致，未知动作返回 "0"。
// admin-ajax 额外支持 heartbeat，用于后台页面探测登录状态。
func handleAdminCallback(ajax bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		action := strings.TrimSpace(c.Request.FormValue("action"))
		if ajax && action == "heartbeat" {
			c.JSON(http.StatusOK, gin.H{
				"wp-auth-check": isLoggedIn(c),
				"server_time":   time.Now().Unix(),
			})
			return
		}
		c.String(http.StatusBadRequest, "0")
	}
}

func adminDashboardHandler(opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, _ := principal(c)
		ctx := c.Request.Context()
		logoutURL := loginURL(c, opts, "", false)
		logoutURL = withQuery(logoutURL, "action", "logout")
		logoutURL = withQuery(logoutURL, "_csrf", p.CSRFToken)

		c.Header("Cache-Control", "no-store")
		c.HTML(http.StatusOK, "dashboard.html", gin.H{
			"Title":     "仪表盘 - " + opts.siteName(),
			"Username":  p.Username,
			"LoginURL":  loginURL(c, opts, "", false),
			"LogoutURL": logoutURL,
			"Enabled":   opts.Gate.Store().IsEnabled(ctx),
		})
	}
}

func adminSettingsPageHandler(opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Query("page") != "hideadmin" {
			renderNotFound(c)
			return
		}
		renderSettings(c, opts, http.StatusOK, c.Query("settings-updated") == "true", "")
	}
}

// adminSettingsSaveHandler 处理设置表单：校验 csrf 后整体保存（未勾选的复选框视为关闭），
// 成功后 303 回到设置页。
func adminSettingsSaveHandler(opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := c.Request.ParseForm(); err != nil {
			renderError(c, http.StatusBadRequest, "请求格式不正确")
			return
		}
		if !formCSRFValid(c, c.Request.PostForm.Get("_csrf")) {
			renderError(c, http.StatusForbidden, "csrf 校验失败，请刷新页面后重试")
			return
		}

		raw := hideadmin.RawInputFromForm(c.Request.PostForm)
		if _, err := opts.Gate.Store().Save(c.Request.Context(), raw); err != nil {
			slog.Error("保存隐藏后台设置失败", "err", err)
			renderSettings(c, opts, http.StatusInternalServerError, false, "保存失败，请稍后重试")
			return
		}
		c.Redirect(http.StatusSeeOther, settingsPagePath+"?page=hideadmin&settings-updated=true")
	}
}

func renderSettings(c *gin.Context, opts Options, status int, updated bool, errMsg string) {
	p, _ := principal(c)
	ctx := c.Request.Context()
	base := opts.Gate.BaseURL(c.Request)

	c.Header("Cache-Control", "no-store")
	c.HTML(status, "settings.html", gin.H{
		"Title":             "隐藏后台设置 - " + opts.siteName(),
		"Options":           opts.Gate.Store().Get(ctx),
		"EffectiveLoginURL": opts.Gate.EffectiveLoginURL(ctx, base),
		"CSRF":              p.CSRFToken,
		"Updated":           updated,
		"Error":             errMsg,
	})
}
