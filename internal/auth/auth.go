// Package auth 提供会话主体（Principal）在请求上下文中的传递。
//
// 本服务只负责“谁已登录”的判定与登录表单本身；Principal 由会话中间件写入，
// 网关据此决定已登录用户直接放行。
package auth

import (
	"context"
)

type Principal struct {
	UserID   int64
	Username string
	Role     string
	// CSRFToken 绑定在会话上，设置页表单与 JSON API 的写操作都需要校验。
	CSRFToken string
}

type ctxKey int

const principalKey ctxKey = 1

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(principalKey).(Principal)
	if !ok || p.UserID <= 0 {
		return Principal{}, false
	}
	return p, true
}

// IsLoggedIn 为网关的“认证状态提供者”：上下文中没有有效主体即视为未登录。
func IsLoggedIn(ctx context.Context) bool {
	_, ok := PrincipalFromContext(ctx)
	return ok
}
