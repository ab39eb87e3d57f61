package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
)

//go:embed schema_sqlite.sql
var sqliteSchema string

// EnsureSQLiteSchema 幂等地创建 SQLite 表结构（全部语句均为 IF NOT EXISTS）。
func EnsureSQLiteSchema(db *sql.DB) error {
	if db == nil {
		return ErrNilDB
	}
	ctx := context.Background()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开始 SQLite schema 事务失败: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, stmt := range splitSQLStatements(sqliteSchema) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("初始化 SQLite schema（stmt %d）失败: %w", i+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("提交 SQLite schema 事务失败: %w", err)
	}
	return nil
}
