package hideadmin

import (
	"net/url"
	"sync"
	"testing"

	"github.com/tidwall/gjson"
)

func TestSanitizeSlug(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{in: "masuk", want: "masuk"},
		{in: "  Rahasia Login  ", want: "rahasia-login"},
		{in: "Crème_Brûlée", want: "creme-brulee"},
		{in: "wp-login.php", want: "wp-loginphp"},
		{in: "--a---b--", want: "a-b"},
		{in: "/secret/", want: "secret"},
		{in: "日本", want: ""},
		{in: "", want: ""},
	}
	for _, tc := range cases {
		if got := SanitizeSlug(tc.in); got != tc.want {
			t.Fatalf("SanitizeSlug(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSanitizeInput_ReservedSlugFallsBackToDefault(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"wp-admin", "wp-login.php", "WP-Admin", " /wp-admin/ ", "", "%%%"} {
		o := sanitizeInput(RawInput{"feature_enabled": "1", "login_slug": in}, testDefaults)
		if o.LoginSlug != DefaultLoginSlug {
			t.Fatalf("login_slug %q => %q, want %q", in, o.LoginSlug, DefaultLoginSlug)
		}
	}
}

func TestSanitizeInput_CustomWithEmptyURLCollapsesToNotFound(t *testing.T) {
	t.Parallel()

	for _, target := range []string{"", "   ", "javascript:alert(1)", "/relative", "ftp://example.com/"} {
		o := sanitizeInput(RawInput{
			"feature_enabled":     true,
			"admin_redirect_mode": "custom",
			"admin_redirect_url":  target,
		}, testDefaults)
		if o.RedirectMode != RedirectNotFound {
			t.Fatalf("url %q: mode = %q, want 404", target, o.RedirectMode)
		}
		if o.RedirectURL != testDefaults.NotFoundURL {
			t.Fatalf("url %q: redirect url = %q", target, o.RedirectURL)
		}
	}
}

func TestSanitizeInput_Fields(t *testing.T) {
	t.Parallel()

	o := sanitizeInput(RawInput{
		"feature_enabled":     "on",
		"login_slug":          "Pintu Rahasia",
		"admin_redirect_mode": "custom",
		"admin_redirect_url":  " https://example.org/away ",
	}, testDefaults)
	want := Options{
		FeatureEnabled: true,
		LoginSlug:      "pintu-rahasia",
		RedirectMode:   RedirectCustom,
		RedirectURL:    "https://example.org/away",
	}
	if o != want {
		t.Fatalf("sanitizeInput = %+v, want %+v", o, want)
	}

	// 复选框未提交 -> 关闭；slug 缺失 -> 默认值；模式非 custom -> 404 且地址被重置。
	o = sanitizeInput(RawInput{"admin_redirect_mode": "weird", "admin_redirect_url": "https://example.org/"}, testDefaults)
	if o.FeatureEnabled {
		t.Fatalf("expected feature disabled when field absent")
	}
	if o.LoginSlug != DefaultLoginSlug || o.RedirectMode != RedirectNotFound || o.RedirectURL != testDefaults.NotFoundURL {
		t.Fatalf("unexpected options: %+v", o)
	}
}

func TestDecodeOptions_Lenient(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		blob    string
		enabled bool
		slug    string
		mode    RedirectMode
	}{
		{name: "string one", blob: `{"feature_enabled":"1","login_slug":"masuk"}`, enabled: true, slug: "masuk", mode: RedirectNotFound},
		{name: "number", blob: `{"feature_enabled":1}`, enabled: true, slug: DefaultLoginSlug, mode: RedirectNotFound},
		{name: "bool false", blob: `{"feature_enabled":false}`, enabled: false, slug: DefaultLoginSlug, mode: RedirectNotFound},
		{name: "string zero", blob: `{"feature_enabled":"0"}`, enabled: false, slug: DefaultLoginSlug, mode: RedirectNotFound},
		{name: "missing uses default", blob: `{}`, enabled: true, slug: DefaultLoginSlug, mode: RedirectNotFound},
		{name: "invalid json", blob: `not json`, enabled: true, slug: DefaultLoginSlug, mode: RedirectNotFound},
		{name: "reserved slug written externally", blob: `{"login_slug":"wp-admin"}`, enabled: true, slug: DefaultLoginSlug, mode: RedirectNotFound},
		{name: "unknown mode", blob: `{"admin_redirect_mode":"teleport","admin_redirect_url":"https://x.example/"}`, enabled: true, slug: DefaultLoginSlug, mode: RedirectNotFound},
		{name: "custom", blob: `{"admin_redirect_mode":"custom","admin_redirect_url":"https://x.example/"}`, enabled: true, slug: DefaultLoginSlug, mode: RedirectCustom},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			o := decodeOptions(tc.blob, testDefaults)
			if o.FeatureEnabled != tc.enabled || o.LoginSlug != tc.slug || o.RedirectMode != tc.mode {
				t.Fatalf("decodeOptions(%s) = %+v", tc.blob, o)
			}
			if o.RedirectMode != RedirectCustom && o.RedirectURL != testDefaults.NotFoundURL {
				t.Fatalf("non-custom mode must carry the not-found url, got %q", o.RedirectURL)
			}
		})
	}
}

func TestEncodeOptions_WritesStoredShape(t *testing.T) {
	t.Parallel()

	in := Options{FeatureEnabled: true, LoginSlug: "masuk", RedirectMode: RedirectCustom, RedirectURL: "https://x.example/a?b=c"}
	blob, err := encodeOptions(in)
	if err != nil {
		t.Fatalf("encodeOptions: %v", err)
	}
	if got := gjson.Get(blob, "feature_enabled").String(); got != "1" {
		t.Fatalf("feature_enabled = %q, want \"1\"", got)
	}
	if out := decodeOptions(blob, testDefaults); out != in {
		t.Fatalf("decode(encode(x)) = %+v, want %+v", out, in)
	}
}

func TestSanitizeRedirectURL(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"https://example.org/x":    "https://example.org/x",
		"HTTP://example.org":       "http://example.org",
		"https://user@example.org": "",
		"//example.org/":           "",
		"mailto:a@example.org":     "",
		"https://exa mple.org/":    "",
	}
	for in, want := range cases {
		if got := SanitizeRedirectURL(in); got != want {
			t.Fatalf("SanitizeRedirectURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRawInputFromForm(t *testing.T) {
	t.Parallel()

	raw := RawInputFromForm(url.Values{
		"login_slug":          {"masuk"},
		"admin_redirect_mode": {"404"},
		"unrelated":           {"x"},
	})
	if _, ok := raw["feature_enabled"]; ok {
		t.Fatalf("unchecked checkbox must stay absent")
	}
	if raw["login_slug"] != "masuk" {
		t.Fatalf("login_slug = %v", raw["login_slug"])
	}
	if _, ok := raw["unrelated"]; ok {
		t.Fatalf("unexpected field copied")
	}
}

func TestDefaults_ReservedDefaultSlugUsesBuiltIn(t *testing.T) {
	t.Parallel()

	o := Defaults{LoginSlug: "wp-login.php"}.Options()
	if o.LoginSlug != DefaultLoginSlug {
		t.Fatalf("default slug = %q", o.LoginSlug)
	}
	if o.RedirectURL != "/404" {
		t.Fatalf("default not found url = %q", o.RedirectURL)
	}
}

func TestSanitizeSlug_ConcurrentNonASCII(t *testing.T) {
	t.Parallel()

	const in = "Pàgína Sécrète Ünïcödé"
	const want = "pagina-secrete-unicode"

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				if got := SanitizeSlug(in); got != want {
					t.Errorf("SanitizeSlug(%q) = %q, want %q", in, got, want)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestSanitizeInput_HostPathsAreReserved(t *testing.T) {
	t.Parallel()

	d := testDefaults
	d.ReservedPaths = []string{"/", "/assets", "/healthz", "/favicon.ico"}
	for _, in := range []string{"404", "/404/", "assets", "Healthz", "favicon.ico"} {
		o := sanitizeInput(RawInput{"feature_enabled": "1", "login_slug": in}, d)
		if o.LoginSlug != DefaultLoginSlug {
			t.Fatalf("login_slug %q => %q, want %q", in, o.LoginSlug, DefaultLoginSlug)
		}
	}

	// 只有完整路径冲突才算保留。
	o := sanitizeInput(RawInput{"login_slug": "assets-lama"}, d)
	if o.LoginSlug != "assets-lama" {
		t.Fatalf("unexpected slug %q", o.LoginSlug)
	}

	// 存储中被外部写入的冲突 slug 在读取时同样被替换。
	if got := decodeOptions(`{"login_slug":"404"}`, d).LoginSlug; got != DefaultLoginSlug {
		t.Fatalf("decoded slug = %q", got)
	}
}
