// Package hideadmin 把后台登录入口迁移到可配置的隐藏 slug，并拦截对默认后台/登录路径的匿名访问。
//
// 两个核心组件：
//   - ConfigStore：持有选项（开关、登录 slug、重定向模式与目标），读写两侧都做校验与兜底；
//   - Gate：每个请求调用一次 Decide，得出放行、渲染登录页或 302 跳走。
package hideadmin

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"hideadmin/internal/store"
)

const (
	// OptionsKey 为选项 JSON blob 在 app_settings 中的唯一键。
	OptionsKey = store.SettingHideAdminOptions

	DefaultLoginSlug = "inibukanlogin"

	// AdminPath / LoginPath 为宿主默认的后台目录与登录页（去掉首尾斜杠后的形式）。
	AdminPath = "wp-admin"
	LoginPath = "wp-login.php"
)

// callbackPaths 位于后台前缀下、必须对匿名调用保持可达的机器回调端点。
var callbackPaths = map[string]struct{}{
	AdminPath + "/admin-ajax.php": {},
	AdminPath + "/admin-post.php": {},
}

type RedirectMode string

const (
	RedirectNotFound RedirectMode = "404"
	RedirectCustom   RedirectMode = "custom"
)

// Options 为对外可见的有效选项；任何途径拿到的 Options 都已归一化：
// LoginSlug 非空且不是保留名，RedirectMode=custom 时 RedirectURL 一定是合法绝对地址。
type Options struct {
	FeatureEnabled bool         `json:"feature_enabled"`
	LoginSlug      string       `json:"login_slug"`
	RedirectMode   RedirectMode `json:"admin_redirect_mode"`
	RedirectURL    string       `json:"admin_redirect_url"`
}

// Defaults 为宿主提供的默认值（首次激活写入，以及读写时的兜底）。
type Defaults struct {
	FeatureEnabled bool
	LoginSlug      string
	// NotFoundURL 为非 custom 模式下 RedirectURL 的取值（通常是 base + /404）。
	NotFoundURL string
	// ReservedPaths 为宿主自身占用的路径（如 /assets、/healthz），不能用作登录 slug。
	// NotFoundURL 的路径总是保留，否则 404 跳转会落到登录页上。
	ReservedPaths []string
}

func (d Defaults) normalized() Defaults {
	if strings.TrimSpace(d.NotFoundURL) == "" {
		d.NotFoundURL = "/404"
	}
	slug := SanitizeSlug(d.LoginSlug)
	if slug == "" || isReservedSlug(d.LoginSlug, slug, d.reservedSlugs()) {
		slug = DefaultLoginSlug
	}
	d.LoginSlug = slug
	return d
}

// reservedSlugs 返回不能作为登录 slug 的路径（已归一化）：默认后台目录、默认登录页、
// 404 落地页与 ReservedPaths。
func (d Defaults) reservedSlugs() []string {
	out := []string{AdminPath, LoginPath}
	if u, err := url.Parse(strings.TrimSpace(d.NotFoundURL)); err == nil {
		if p := strings.ToLower(NormalizePath(u.Path)); p != "" {
			out = append(out, p)
		}
	}
	for _, p := range d.ReservedPaths {
		if p = strings.ToLower(NormalizePath(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Options 返回默认选项（已归一化）。
func (d Defaults) Options() Options {
	d = d.normalized()
	return Options{
		FeatureEnabled: d.FeatureEnabled,
		LoginSlug:      d.LoginSlug,
		RedirectMode:   RedirectNotFound,
		RedirectURL:    d.NotFoundURL,
	}
}

// Raw 把选项转换回设置输入；用于在当前值之上做部分更新。
func (o Options) Raw() RawInput {
	return RawInput{
		"feature_enabled":     o.FeatureEnabled,
		"login_slug":          o.LoginSlug,
		"admin_redirect_mode": string(o.RedirectMode),
		"admin_redirect_url":  o.RedirectURL,
	}
}

// normalize 在读取侧再校验一次，兼容旧版本或外部写入的脏数据。
func (o Options) normalize(d Defaults) Options {
	d = d.normalized()
	o.LoginSlug = normalizeSlug(o.LoginSlug, d)

	switch o.RedirectMode {
	case RedirectCustom:
		o.RedirectURL = SanitizeRedirectURL(o.RedirectURL)
		if o.RedirectURL == "" {
			// custom 但目标为空：退回 404，避免产生空跳转。
			o.RedirectMode = RedirectNotFound
			o.RedirectURL = d.NotFoundURL
		}
	default:
		o.RedirectMode = RedirectNotFound
		o.RedirectURL = d.NotFoundURL
	}
	return o
}

// RawInput 为设置表单/API 提交的未校验输入；值可以是 string、bool 或数字。
type RawInput map[string]any

// RawInputFromForm 把表单字段转换为 RawInput；复选框未勾选时浏览器不会提交该字段。
func RawInputFromForm(form url.Values) RawInput {
	raw := RawInput{}
	for _, k := range []string{"feature_enabled", "login_slug", "admin_redirect_mode", "admin_redirect_url"} {
		if vs, ok := form[k]; ok && len(vs) > 0 {
			raw[k] = vs[0]
		}
	}
	return raw
}

// sanitizeInput 对应设置保存路径：缺失的 feature_enabled 视为关闭，缺失的 slug 取默认值，
// 保留名静默替换为默认 slug。
func sanitizeInput(raw RawInput, d Defaults) Options {
	d = d.normalized()
	o := Options{
		FeatureEnabled: truthy(raw["feature_enabled"]),
		LoginSlug:      d.LoginSlug,
		RedirectMode:   RedirectNotFound,
		RedirectURL:    d.NotFoundURL,
	}
	if v, ok := raw["login_slug"]; ok {
		o.LoginSlug = normalizeSlug(stringOf(v), d)
	}
	if RedirectMode(strings.TrimSpace(stringOf(raw["admin_redirect_mode"]))) == RedirectCustom {
		o.RedirectMode = RedirectCustom
		o.RedirectURL = stringOf(raw["admin_redirect_url"])
	}
	return o.normalize(d)
}

// decodeOptions 宽松解析存储的 JSON blob：缺失字段取默认值（wp_parse_args 语义），
// feature_enabled 兼容 "1"/1/true/"on" 等写法。
func decodeOptions(blob string, d Defaults) Options {
	o := d.Options()
	if !gjson.Valid(blob) {
		return o
	}
	res := gjson.GetMany(blob, "feature_enabled", "login_slug", "admin_redirect_mode", "admin_redirect_url")
	if res[0].Exists() {
		o.FeatureEnabled = truthyResult(res[0])
	}
	if res[1].Exists() {
		o.LoginSlug = res[1].String()
	}
	if res[2].Exists() {
		o.RedirectMode = RedirectMode(strings.TrimSpace(res[2].String()))
	}
	if res[3].Exists() {
		o.RedirectURL = res[3].String()
	}
	return o.normalize(d)
}

func encodeOptions(o Options) (string, error) {
	blob := "{}"
	var err error
	enabled := "0"
	if o.FeatureEnabled {
		enabled = "1"
	}
	for _, kv := range [][2]string{
		{"feature_enabled", enabled},
		{"login_slug", o.LoginSlug},
		{"admin_redirect_mode", string(o.RedirectMode)},
		{"admin_redirect_url", o.RedirectURL},
	} {
		blob, err = sjson.Set(blob, kv[0], kv[1])
		if err != nil {
			return "", err
		}
	}
	return blob, nil
}

// SanitizeSlug 把任意输入转换为 URL 安全的 slug：去掉重音符号、转小写，
// 空白与下划线变为 "-"，丢弃 [a-z0-9-] 以外的字符，合并并裁剪连续的 "-"。
func SanitizeSlug(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	// transform.Chain 带内部状态，不能跨 goroutine 共享，每次调用单独构造。
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if out, _, err := transform.String(stripMarks, s); err == nil {
		s = out
	}
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	lastDash := true
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case r == '-' || r == '_' || unicode.IsSpace(r):
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

func isReservedSlug(raw string, slug string, reserved []string) bool {
	lowered := strings.Trim(strings.ToLower(strings.TrimSpace(raw)), "/")
	for _, r := range reserved {
		if lowered == r || slug == r {
			return true
		}
	}
	return false
}

// normalizeSlug 要求 d 已归一化：非法或保留的 slug 退回 d.LoginSlug。
func normalizeSlug(raw string, d Defaults) string {
	slug := SanitizeSlug(raw)
	if slug == "" || isReservedSlug(raw, slug, d.reservedSlugs()) {
		return d.LoginSlug
	}
	return slug
}

// SanitizeRedirectURL 仅保留带 host 的 http/https 绝对地址；其他输入返回空串。
func SanitizeRedirectURL(raw string) string {
	v := strings.TrimSpace(raw)
	if v == "" || strings.ContainsAny(v, " \t\r\n\x00") {
		return ""
	}
	u, err := url.Parse(v)
	if err != nil {
		return ""
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return ""
	}
	if u.Host == "" || u.User != nil {
		return ""
	}
	u.Scheme = scheme
	return u.String()
}

func stringOf(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case nil:
		return ""
	case bool:
		if x {
			return "1"
		}
		return "0"
	default:
		return fmt.Sprint(x)
	}
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case int:
		return x != 0
	case int64:
		return x != 0
	case float64:
		return x != 0
	default:
		return truthyString(stringOf(x))
	}
}

func truthyResult(r gjson.Result) bool {
	switch r.Type {
	case gjson.True:
		return true
	case gjson.Number:
		return r.Num != 0
	case gjson.String:
		return truthyString(r.Str)
	default:
		return false
	}
}

func truthyString(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "on", "yes":
		return true
	default:
		return false
	}
}
