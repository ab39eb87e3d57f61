package router

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"hideadmin/internal/auth"
)

func requireCSRF() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		want, ok := sessionCSRFToken(c)
		if !ok {
			c.JSON(http.StatusOK, gin.H{"success": false, "message": "csrf token 缺失，请重新登录"})
			c.Abort()
			return
		}

		got := strings.TrimSpace(c.GetHeader("X-CSRF-Token"))
		if got == "" || !auth.TokenEqual(got, want) {
			c.JSON(http.StatusOK, gin.H{"success": false, "message": "csrf token 不正确"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// formCSRFValid 校验 HTML 表单或链接携带的 _csrf。
func formCSRFValid(c *gin.Context, got string) bool {
	want, ok := sessionCSRFToken(c)
	if !ok {
		return false
	}
	return auth.TokenEqual(strings.TrimSpace(got), want)
}
