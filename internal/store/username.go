package store

import (
	"fmt"
	"regexp"
	"strings"
)

var usernameRE = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// NormalizeUsername 校验登录名：字母/数字开头，可含 . _ -，区分大小写。
func NormalizeUsername(raw string) (string, error) {
	u := strings.TrimSpace(raw)
	if u == "" {
		return "", fmt.Errorf("账号名不能为空")
	}

	if len(u) > 64 {
		return "", fmt.Errorf("账号名长度不能超过 64 位")
	}
	if !usernameRE.MatchString(u) {
		return "", fmt.Errorf("账号名仅支持字母/数字及 . _ -（区分大小写），且必须以字母或数字开头")
	}
	return u, nil
}
