package hideadmin

import "strings"

type Action string

const (
	ActionPassThrough      Action = "pass_through"
	ActionRenderLogin      Action = "render_login"
	ActionRedirectNotFound Action = "redirect_not_found"
	ActionRedirectCustom   Action = "redirect_custom"
)

// Decision 为单个请求的判定结果；Location 仅在两种重定向动作下非空。
type Decision struct {
	Action   Action
	Location string
}

func (d Decision) Terminal() bool {
	return d.Action != ActionPassThrough
}

// Input 为一次判定所需的全部数据。
type Input struct {
	Options Options
	// Path 为 NormalizePath 之后的请求路径。
	Path     string
	LoggedIn bool
	// LoginRoute 表示 Path 命中了当前登录路由表。
	LoginRoute  bool
	NotFoundURL string
}

// Decide 按固定顺序判定：
//  1. 功能关闭 -> 放行
//  2. 命中隐藏 slug -> 渲染登录页（无论是否已登录）
//  3. 已登录 -> 放行
//  4. 默认登录页 -> 跳 404
//  5. 后台前缀：回调白名单放行；否则 custom 跳自定义地址，其余跳 404
//  6. 其他路径 -> 放行
func Decide(in Input) Decision {
	o := in.Options
	if !o.FeatureEnabled {
		return Decision{Action: ActionPassThrough}
	}
	if in.LoginRoute {
		return Decision{Action: ActionRenderLogin}
	}
	if in.LoggedIn {
		return Decision{Action: ActionPassThrough}
	}

	p := in.Path
	if p == LoginPath {
		return notFound(in.NotFoundURL)
	}
	if strings.HasPrefix(p, AdminPath) {
		if _, ok := callbackPaths[p]; ok {
			return Decision{Action: ActionPassThrough}
		}
		if o.RedirectMode == RedirectCustom {
			if target := SanitizeRedirectURL(o.RedirectURL); target != "" {
				return Decision{Action: ActionRedirectCustom, Location: target}
			}
		}
		return notFound(in.NotFoundURL)
	}
	return Decision{Action: ActionPassThrough}
}

func notFound(target string) Decision {
	if target == "" {
		target = "/404"
	}
	return Decision{Action: ActionRedirectNotFound, Location: target}
}
