package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	UserRoleRoot = "root"
	UserRoleUser = "user"
)

type User struct {
	ID           int64
	Username     string
	PasswordHash []byte
	Role         string
	Status       int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	if s == nil || s.db == nil {
		return 0, ErrNilDB
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("统计用户失败: %w", err)
	}
	return n, nil
}

func (s *Store) CreateUser(ctx context.Context, username string, passwordHash []byte, role string) (int64, error) {
	if s == nil || s.db == nil {
		return 0, ErrNilDB
	}
	username, err := NormalizeUsername(username)
	if err != nil {
		return 0, err
	}
	if role == "" {
		role = UserRoleUser
	}
	res, err := s.db.ExecContext(ctx, `
	INSERT INTO users(username, password_hash, role, status, created_at, updated_at)
	VALUES(?, ?, ?, 1, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	`, username, passwordHash, role)
	if err != nil {
		if isDuplicateErr(err) {
			return 0, ErrUserExists
		}
		return 0, fmt.Errorf("创建用户失败: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("获取用户 id 失败: %w", err)
	}
	return id, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (User, error) {
	return s.getUser(ctx, `WHERE username=?`, strings.TrimSpace(username))
}

func (s *Store) GetUserByID(ctx context.Context, userID int64) (User, error) {
	return s.getUser(ctx, `WHERE id=?`, userID)
}

func (s *Store) getUser(ctx context.Context, where string, arg any) (User, error) {
	if s == nil || s.db == nil {
		return User{}, ErrNilDB
	}
	var u User
	err := s.db.QueryRowContext(ctx, `
	SELECT id, username, password_hash, role, status, created_at, updated_at
	FROM users
	`+where, arg).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.Status, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("查询用户失败: %w", err)
	}
	return u, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, userID int64, passwordHash []byte) error {
	if s == nil || s.db == nil {
		return ErrNilDB
	}
	res, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash=?, updated_at=CURRENT_TIMESTAMP WHERE id=?`, passwordHash, userID)
	if err != nil {
		return fmt.Errorf("更新密码失败: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetUserStatus 启用（1）或禁用（0）用户；同时刷新 updated_at 使已有会话失效。
func (s *Store) SetUserStatus(ctx context.Context, userID int64, status int) error {
	if s == nil || s.db == nil {
		return ErrNilDB
	}
	res, err := s.db.ExecContext(ctx, `
UPDATE users
SET status=?, updated_at=CURRENT_TIMESTAMP
WHERE id=?
`, status, userID)
	if err != nil {
		return fmt.Errorf("更新用户状态失败: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}
