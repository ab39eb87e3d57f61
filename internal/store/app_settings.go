package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// SettingHideAdminOptions 是 hideadmin 全部选项（JSON blob）的唯一存储键。
const SettingHideAdminOptions = "hideadmin_options"

// GetAppSetting 返回 (value, ok, err)；键不存在时 ok=false。
func (s *Store) GetAppSetting(ctx context.Context, key string) (string, bool, error) {
	if s == nil || s.db == nil {
		return "", false, nil
	}
	var v string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM app_settings WHERE `key`=?", key).Scan(&v)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("查询 app_settings 失败: %w", err)
	}
	return v, true, nil
}

func (s *Store) UpsertAppSetting(ctx context.Context, key string, value string) error {
	if s == nil || s.db == nil {
		return ErrNilDB
	}
	if strings.TrimSpace(key) == "" {
		return errors.New("app_settings key 不能为空")
	}
	q := "INSERT INTO app_settings(`key`, value, created_at, updated_at)\n" +
		"VALUES(?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)\n" +
		upsertClause(s.dialect, "`key`", "value", "updated_at")
	if _, err := s.db.ExecContext(ctx, q, key, value); err != nil {
		return fmt.Errorf("写入 app_settings 失败: %w", err)
	}
	return nil
}

func (s *Store) DeleteAppSetting(ctx context.Context, key string) error {
	if s == nil || s.db == nil {
		return ErrNilDB
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM app_settings WHERE `key`=?", key); err != nil {
		return fmt.Errorf("删除 app_settings 失败: %w", err)
	}
	return nil
}
