package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func setPublicRoutes(r *gin.Engine, opts Options) {
	home := func(c *gin.Context) {
		c.HTML(http.StatusOK, "home.html", gin.H{"Title": opts.siteName()})
	}
	r.GET("/", home)
	r.HEAD("/", home)

	// 网关 404 跳转的落地页；状态码保持 404，避免被当作正常页面收录。
	if p := opts.notFoundPath(); p != "/" {
		r.GET(p, renderNotFound)
		r.HEAD(p, renderNotFound)
	}
	r.NoRoute(renderNotFound)
}
