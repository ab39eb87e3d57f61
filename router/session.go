package router

import (
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"hideadmin/internal/auth"
	"hideadmin/internal/store"
)

const (
	sessionUserIDKey        = "id"
	sessionUsernameKey      = "username"
	sessionRoleKey          = "role"
	sessionCSRFKey          = "csrf"
	sessionUserUpdatedAtKey = "user_updated_at_unix"
)

func sessionUserID(c *gin.Context) (int64, bool) {
	return sessionInt64(c, sessionUserIDKey)
}

func sessionCSRFToken(c *gin.Context) (string, bool) {
	return sessionString(c, sessionCSRFKey)
}

func sessionString(c *gin.Context, key string) (string, bool) {
	if c == nil {
		return "", false
	}
	s, ok := sessions.Default(c).Get(key).(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

func sessionInt64(c *gin.Context, key string) (int64, bool) {
	if c == nil {
		return 0, false
	}
	v := sessions.Default(c).Get(key)
	switch x := v.(type) {
	case int64:
		if x <= 0 {
			return 0, false
		}
		return x, true
	case int:
		if x <= 0 {
			return 0, false
		}
		return int64(x), true
	case float64:
		if x <= 0 {
			return 0, false
		}
		return int64(x), true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil || n <= 0 {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// startSession 在登录成功后重建会话：先清空旧数据，避免会话固定。
func startSession(c *gin.Context, u store.User, csrf string) error {
	sess := sessions.Default(c)
	sess.Clear()
	sess.Set(sessionUserIDKey, u.ID)
	sess.Set(sessionUsernameKey, u.Username)
	sess.Set(sessionRoleKey, strings.TrimSpace(u.Role))
	sess.Set(sessionCSRFKey, csrf)
	sess.Set(sessionUserUpdatedAtKey, u.UpdatedAt.UTC().Unix())
	return sess.Save()
}

func clearSession(c *gin.Context) {
	if c == nil {
		return
	}
	sess := sessions.Default(c)
	sess.Clear()
	_ = sess.Save()
}

func staleSession(c *gin.Context, u store.User) bool {
	if c == nil || u.ID <= 0 {
		return true
	}
	unix, ok := sessionInt64(c, sessionUserUpdatedAtKey)
	if !ok {
		return true
	}
	// 用户密码/状态更新后，旧会话一律失效。
	return u.UpdatedAt.UTC().Unix() > unix
}

// loadSessionPrincipal 把会话中的用户解析为 auth.Principal 写入请求上下文，
// 作为网关的认证状态来源。失效会话会被清空；数据库暂时不可用时按未登录处理但保留会话。
func loadSessionPrincipal(opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := sessionUserID(c)
		if !ok || opts.Store == nil {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		u, err := opts.Store.GetUserByID(ctx, userID)
		if err != nil {
			if errors.Is(err, store.ErrUserNotFound) {
				clearSession(c)
			} else {
				slog.Warn("读取会话用户失败", "user_id", userID, "err", err)
			}
			c.Next()
			return
		}
		if u.Status != 1 || staleSession(c, u) {
			clearSession(c)
			c.Next()
			return
		}

		csrf, _ := sessionCSRFToken(c)
		p := auth.Principal{
			UserID:    u.ID,
			Username:  u.Username,
			Role:      strings.TrimSpace(u.Role),
			CSRFToken: csrf,
		}
		c.Request = c.Request.WithContext(auth.WithPrincipal(ctx, p))
		c.Next()
	}
}

func isLoggedIn(c *gin.Context) bool {
	return auth.IsLoggedIn(c.Request.Context())
}

func principal(c *gin.Context) (auth.Principal, bool) {
	return auth.PrincipalFromContext(c.Request.Context())
}
