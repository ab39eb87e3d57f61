// Package config 负责读取并校验进程级配置（仅环境变量），避免在业务代码里散落解析逻辑。
//
// 注意：hideadmin 的运行期选项（是否启用、登录 slug、重定向模式）不在这里，
// 它们保存在数据库 app_settings 中，由 internal/hideadmin.ConfigStore 管理；
// 这里的 HideAdmin 段只提供首次激活时写入的默认值。
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env       string          `yaml:"env"`
	Server    ServerConfig    `yaml:"server"`
	DB        DBConfig        `yaml:"db"`
	Security  SecurityConfig  `yaml:"security"`
	HideAdmin HideAdminConfig `yaml:"hide_admin"`
	Bootstrap BootstrapConfig `yaml:"bootstrap"`
	Debug     DebugConfig     `yaml:"debug"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
	// PublicBaseURL 为对外站点地址（形如 https://example.com），用于生成登录链接与 /404 跳转。
	// 为空时按请求推断（受 security.trust_proxy_headers 约束）。
	PublicBaseURL string `yaml:"public_base_url"`

	ReadHeaderTimeoutSeconds int `yaml:"read_header_timeout_seconds"`
	ReadTimeoutSeconds       int `yaml:"read_timeout_seconds"`
	IdleTimeoutSeconds       int `yaml:"idle_timeout_seconds"`
	MaxHeaderBytes           int `yaml:"max_header_bytes"`
}

type DBConfig struct {
	// Driver 支持 mysql/sqlite；为空时：dsn 非空推断为 mysql，否则 sqlite。
	Driver     string `yaml:"driver"`
	DSN        string `yaml:"dsn"`
	SQLitePath string `yaml:"sqlite_path"`
}

type SecurityConfig struct {
	// SessionSecret 为空时每次启动随机生成（重启后所有会话失效）。
	SessionSecret        string `yaml:"session_secret"`
	DisableSecureCookies bool   `yaml:"disable_secure_cookies"`

	TrustProxyHeaders bool     `yaml:"trust_proxy_headers"`
	TrustedProxyCIDRs []string `yaml:"trusted_proxy_cidrs"`

	// LoginMaxFailures 为同一客户端在 LoginLockout 窗口内允许的登录失败次数；0 表示不限制。
	LoginMaxFailures int           `yaml:"login_max_failures"`
	LoginLockout     time.Duration `yaml:"login_lockout"`
}

type HideAdminConfig struct {
	FeatureEnabled bool   `yaml:"feature_enabled"`
	LoginSlug      string `yaml:"login_slug"`
	NotFoundPath   string `yaml:"not_found_path"`

	// InvalidationPoll 为多实例部署时轮询 cache_invalidation 的间隔；0 表示关闭。
	InvalidationPoll time.Duration `yaml:"invalidation_poll"`
}

type BootstrapConfig struct {
	// 仅当 users 表为空时生效。
	AdminUsername string `yaml:"admin_username"`
	AdminPassword string `yaml:"admin_password"`
}

// DebugConfig 控制 /debug/vars（expvar）是否挂载；挂载后仅允许本机、白名单网段或携带 token 的请求。
type DebugConfig struct {
	Routes     bool     `yaml:"routes"`
	AllowCIDRs []string `yaml:"allow_cidrs"`
	Token      string   `yaml:"token"`
}

// reservedPathPrefixes 为服务自身注册的路由前缀，404 落地页不能与之重叠。
var reservedPathPrefixes = []string{"/", "/wp-admin", "/wp-login.php", "/assets", "/api", "/healthz", "/debug", "/favicon.ico"}

// ReservedPaths 返回服务自身注册的路由前缀（副本）；登录 slug 同样不能占用它们。
func ReservedPaths() []string {
	return append([]string(nil), reservedPathPrefixes...)
}

// LoadFromEnv 仅从环境变量加载配置（不读取任何配置文件）。
func LoadFromEnv() (Config, error) {
	cfg := defaultConfig()
	applyEnvOverrides(&cfg)
	return normalizeAndValidate(cfg)
}

func defaultConfig() Config {
	return Config{
		Env: "dev",
		Server: ServerConfig{
			Addr: ":8080",

			ReadHeaderTimeoutSeconds: 5,
			ReadTimeoutSeconds:       30,
			IdleTimeoutSeconds:       120,
			MaxHeaderBytes:           1 << 20,
		},
		Security: SecurityConfig{
			LoginMaxFailures: 5,
			LoginLockout:     15 * time.Minute,
		},
		DB: DBConfig{
			SQLitePath: "./data/hideadmin.db?_busy_timeout=30000",
		},
		HideAdmin: HideAdminConfig{
			FeatureEnabled:   true,
			LoginSlug:        "inibukanlogin",
			NotFoundPath:     "/404",
			InvalidationPoll: 5 * time.Second,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HIDEADMIN_ENV"); v != "" {
		cfg.Env = v
	}
	if v := os.Getenv("HIDEADMIN_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("HIDEADMIN_PUBLIC_BASE_URL"); v != "" {
		cfg.Server.PublicBaseURL = v
	}
	if v := os.Getenv("HIDEADMIN_SERVER_READ_HEADER_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Server.ReadHeaderTimeoutSeconds = n
		}
	}
	if v := os.Getenv("HIDEADMIN_SERVER_READ_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Server.ReadTimeoutSeconds = n
		}
	}
	if v := os.Getenv("HIDEADMIN_SERVER_IDLE_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Server.IdleTimeoutSeconds = n
		}
	}
	if v := os.Getenv("HIDEADMIN_SERVER_MAX_HEADER_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Server.MaxHeaderBytes = n
		}
	}

	if v := os.Getenv("HIDEADMIN_DB_DRIVER"); v != "" {
		cfg.DB.Driver = v
	}
	if v := os.Getenv("HIDEADMIN_DB_DSN"); v != "" {
		cfg.DB.DSN = v
	}
	if v := os.Getenv("HIDEADMIN_SQLITE_PATH"); v != "" {
		cfg.DB.SQLitePath = v
	}

	if v := os.Getenv("SESSION_SECRET"); v != "" {
		cfg.Security.SessionSecret = v
	}
	if v := os.Getenv("HIDEADMIN_DISABLE_SECURE_COOKIES"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Security.DisableSecureCookies = b
		}
	}
	if v := os.Getenv("HIDEADMIN_TRUST_PROXY_HEADERS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Security.TrustProxyHeaders = b
		}
	}
	if v := os.Getenv("HIDEADMIN_TRUSTED_PROXY_CIDRS"); v != "" {
		cfg.Security.TrustedProxyCIDRs = splitCSV(v)
	}
	if v := os.Getenv("HIDEADMIN_LOGIN_MAX_FAILURES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Security.LoginMaxFailures = n
		}
	}
	if v := os.Getenv("HIDEADMIN_LOGIN_LOCKOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Security.LoginLockout = d
		}
	}

	if v := os.Getenv("HIDEADMIN_FEATURE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.HideAdmin.FeatureEnabled = b
		}
	}
	if v := os.Getenv("HIDEADMIN_LOGIN_SLUG"); v != "" {
		cfg.HideAdmin.LoginSlug = v
	}
	if v := os.Getenv("HIDEADMIN_NOT_FOUND_PATH"); v != "" {
		cfg.HideAdmin.NotFoundPath = v
	}
	if v := os.Getenv("HIDEADMIN_INVALIDATION_POLL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			cfg.HideAdmin.InvalidationPoll = d
		}
	}

	if v := os.Getenv("HIDEADMIN_DEBUG_ROUTES"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Debug.Routes = b
		}
	}
	if v := os.Getenv("HIDEADMIN_DEBUG_ROUTES_ALLOW_CIDRS"); v != "" {
		cfg.Debug.AllowCIDRs = splitCSV(v)
	}
	if v := os.Getenv("HIDEADMIN_DEBUG_ROUTES_TOKEN"); v != "" {
		cfg.Debug.Token = v
	}

	if v := os.Getenv("HIDEADMIN_BOOTSTRAP_ADMIN_USERNAME"); v != "" {
		cfg.Bootstrap.AdminUsername = v
	}
	if v := os.Getenv("HIDEADMIN_BOOTSTRAP_ADMIN_PASSWORD"); v != "" {
		cfg.Bootstrap.AdminPassword = v
	}
}

func normalizeAndValidate(cfg Config) (Config, error) {
	cfg.Env = strings.ToLower(strings.TrimSpace(cfg.Env))
	if cfg.Env == "" {
		cfg.Env = "dev"
	}

	publicBaseURL, err := NormalizeHTTPBaseURL(cfg.Server.PublicBaseURL, "server.public_base_url")
	if err != nil {
		return Config{}, err
	}
	cfg.Server.PublicBaseURL = publicBaseURL
	cfg.Server.Addr = strings.TrimSpace(cfg.Server.Addr)
	if cfg.Server.Addr == "" {
		return Config{}, errors.New("server.addr 不能为空")
	}

	cfg.DB.Driver = strings.ToLower(strings.TrimSpace(cfg.DB.Driver))
	cfg.DB.DSN = strings.TrimSpace(cfg.DB.DSN)
	cfg.DB.SQLitePath = strings.TrimSpace(cfg.DB.SQLitePath)
	if cfg.DB.Driver == "" {
		if cfg.DB.DSN != "" {
			cfg.DB.Driver = "mysql"
		} else {
			cfg.DB.Driver = "sqlite"
		}
	}
	switch cfg.DB.Driver {
	case "sqlite":
		if cfg.DB.SQLitePath == "" {
			cfg.DB.SQLitePath = "./data/hideadmin.db?_busy_timeout=30000"
		}
	case "mysql":
		if cfg.DB.DSN == "" {
			return Config{}, errors.New("db.dsn 不能为空（db.driver=mysql）")
		}
	default:
		return Config{}, fmt.Errorf("db.driver 不支持：%s（仅支持 mysql/sqlite）", cfg.DB.Driver)
	}

	cfg.Security.SessionSecret = strings.TrimSpace(cfg.Security.SessionSecret)
	if _, err := ParseTrustedProxyCIDRs(cfg.Security.TrustedProxyCIDRs); err != nil {
		return Config{}, err
	}
	if cfg.Security.LoginLockout <= 0 {
		cfg.Security.LoginLockout = 15 * time.Minute
	}

	cfg.HideAdmin.LoginSlug = strings.TrimSpace(cfg.HideAdmin.LoginSlug)
	notFound := strings.TrimSpace(cfg.HideAdmin.NotFoundPath)
	if notFound == "" {
		notFound = "/404"
	}
	if !strings.HasPrefix(notFound, "/") || strings.HasPrefix(notFound, "//") {
		return Config{}, fmt.Errorf("hide_admin.not_found_path 必须是站内绝对路径：%q", notFound)
	}
	for _, reserved := range reservedPathPrefixes {
		if notFound == reserved || strings.HasPrefix(notFound, reserved+"/") || strings.HasPrefix(notFound, "/wp-admin") {
			return Config{}, fmt.Errorf("hide_admin.not_found_path 不能占用内置路径：%q", notFound)
		}
	}
	cfg.HideAdmin.NotFoundPath = notFound

	cfg.Debug.Token = strings.TrimSpace(cfg.Debug.Token)
	if _, err := ParseTrustedProxyCIDRs(cfg.Debug.AllowCIDRs); err != nil {
		return Config{}, fmt.Errorf("debug.allow_cidrs: %w", err)
	}

	cfg.Bootstrap.AdminUsername = strings.TrimSpace(cfg.Bootstrap.AdminUsername)
	if cfg.Bootstrap.AdminUsername != "" && len(cfg.Bootstrap.AdminPassword) < 8 {
		return Config{}, errors.New("bootstrap.admin_password 长度至少 8 位")
	}

	return cfg, nil
}

func NormalizeHTTPBaseURL(raw string, label string) (string, error) {
	v := strings.TrimRight(strings.TrimSpace(raw), "/")
	if v == "" {
		return "", nil
	}
	if strings.TrimSpace(label) == "" {
		label = "base_url"
	}
	u, err := url.Parse(v)
	if err != nil {
		return "", fmt.Errorf("解析 %s 失败: %w", label, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%s 仅支持 http/https", label)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%s host 不能为空", label)
	}
	return v, nil
}

// ParseTrustedProxyCIDRs 解析受信代理列表；兼容单个 IP（不带 /32 或 /128）。
func ParseTrustedProxyCIDRs(raw []string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, item := range raw {
		s := strings.TrimSpace(item)
		if s == "" {
			continue
		}
		pfx, err := netip.ParsePrefix(s)
		if err != nil {
			addr, err2 := netip.ParseAddr(s)
			if err2 != nil {
				return nil, fmt.Errorf("解析 trusted_proxy_cidrs[%q] 失败: %w", s, err2)
			}
			pfx = netip.PrefixFrom(addr, addr.BitLen())
		}
		out = append(out, pfx)
	}
	return out, nil
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}
