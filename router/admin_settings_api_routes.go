package router

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"hideadmin/internal/hideadmin"
)

type hideAdminSettingsView struct {
	FeatureEnabled    bool   `json:"feature_enabled"`
	LoginSlug         string `json:"login_slug"`
	RedirectMode      string `json:"admin_redirect_mode"`
	RedirectURL       string `json:"admin_redirect_url"`
	EffectiveLoginURL string `json:"effective_login_url"`
	DefaultLoginURL   string `json:"default_login_url"`
	CSRFToken         string `json:"csrf_token"`
}

// settingsInputKeys 为 API 允许修改的字段；其它字段忽略。
var settingsInputKeys = []string{"feature_enabled", "login_slug", "admin_redirect_mode", "admin_redirect_url"}

func setAdminSettingsAPIRoutes(r *gin.RouterGroup, opts Options) {
	if opts.Gate == nil {
		return
	}
	g := r.Group("/hideadmin", requireRootSession(), requireCSRF())
	g.GET("/settings", getHideAdminSettingsHandler(opts))
	g.PUT("/settings", updateHideAdminSettingsHandler(opts))
}

func getHideAdminSettingsHandler(opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		o := opts.Gate.Store().Get(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "", "data": settingsView(c, opts, o)})
	}
}

// updateHideAdminSettingsHandler 支持部分更新：请求体中的字段覆盖当前有效值后整体保存。
func updateHideAdminSettingsHandler(opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body map[string]any
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusOK, gin.H{"success": false, "message": "参数错误"})
			return
		}

		cs := opts.Gate.Store()
		raw := cs.Get(c.Request.Context()).Raw()
		for _, k := range settingsInputKeys {
			if v, ok := body[k]; ok && v != nil {
				raw[k] = v
			}
		}

		o, err := cs.Save(c.Request.Context(), raw)
		if err != nil {
			slog.Error("保存隐藏后台设置失败", "err", err)
			c.JSON(http.StatusOK, gin.H{"success": false, "message": "保存失败"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "", "data": settingsView(c, opts, o)})
	}
}

func settingsView(c *gin.Context, opts Options, o hideadmin.Options) hideAdminSettingsView {
	base := opts.Gate.BaseURL(c.Request)
	csrf, _ := sessionCSRFToken(c)
	return hideAdminSettingsView{
		FeatureEnabled:    o.FeatureEnabled,
		LoginSlug:         o.LoginSlug,
		RedirectMode:      string(o.RedirectMode),
		RedirectURL:       o.RedirectURL,
		EffectiveLoginURL: opts.Gate.EffectiveLoginURL(c.Request.Context(), base),
		DefaultLoginURL:   hideadmin.DefaultLoginURL(base),
		CSRFToken:         csrf,
	}
}
