package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"hideadmin/internal/store"
)

// requireRootPage 保护后台 HTML 页面：未登录跳转到（当前有效的）登录地址并带上 reauth，
// 非 root 用户返回 403 页面。
func requireRootPage(opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := principal(c)
		if !ok {
			c.Redirect(http.StatusFound, loginURL(c, opts, c.Request.URL.RequestURI(), true))
			c.Abort()
			return
		}
		if p.Role != store.UserRoleRoot {
			renderError(c, http.StatusForbidden, "权限不足")
			c.Abort()
			return
		}
		c.Next()
	}
}

// requireRootSession 为 JSON API 的会话守卫。
func requireRootSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := principal(c)
		if !ok {
			c.JSON(http.StatusOK, gin.H{"success": false, "message": "未登录"})
			c.Abort()
			return
		}
		if p.Role != store.UserRoleRoot {
			c.JSON(http.StatusOK, gin.H{"success": false, "message": "权限不足"})
			c.Abort()
			return
		}
		c.Next()
	}
}
