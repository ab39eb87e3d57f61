// Package middleware 提供 net/http 层的通用中间件：request id、访问日志与请求体大小限制。
// gin 之外的这一层包住整个引擎，保证网关拦截的请求同样有 request id 与访问日志。
package middleware

import "net/http"

type Middleware func(http.Handler) http.Handler

// Chain 按书写顺序由外到内包装 h；nil 中间件会被跳过。
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] == nil {
			continue
		}
		h = mws[i](h)
	}
	return h
}

// MaxBytes 限制请求体大小（登录与设置表单都很小）；n<=0 表示不限制。
func MaxBytes(n int64) Middleware {
	return func(next http.Handler) http.Handler {
		if n <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, n)
			}
			next.ServeHTTP(w, r)
		})
	}
}
