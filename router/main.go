// Package router 注册全部 gin 路由：会话主体加载、隐藏后台网关、登录页、后台页面与设置 API。
//
// 中间件必须在任何路由注册之前挂载：gin 在注册路由时就把已有中间件拷进处理链，
// NoRoute 同样继承引擎级中间件，因此隐藏 slug 这类没有显式路由的路径也会经过网关。
package router

import (
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
)

func SetRouter(r *gin.Engine, opts Options) {
	if opts.Templates != nil {
		r.SetHTMLTemplate(opts.Templates)
	}

	r.Use(loadSessionPrincipal(opts))
	if opts.Gate != nil {
		r.Use(opts.Gate.Middleware(isLoggedIn, loginHandler(opts)))
	}

	setSystemRoutes(r, opts)
	setStaticRoutes(r, opts)
	setLoginRoutes(r, opts)
	setAdminRoutes(r, opts)

	api := r.Group("/api")
	api.Use(gzip.Gzip(gzip.DefaultCompression))
	setAdminSettingsAPIRoutes(api, opts)

	setPublicRoutes(r, opts)
}
