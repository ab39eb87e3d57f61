package store

import "strings"

// Dialect 表示数据库方言，用于处理 MySQL/SQLite 的 SQL 语法差异。
type Dialect string

const (
	DialectMySQL  Dialect = "mysql"
	DialectSQLite Dialect = "sqlite"
)

// upsertClause 返回 "INSERT ... VALUES(...)" 之后的冲突更新子句。
// conflictCol 仅 SQLite 使用（MySQL 依赖主键/唯一索引）。
func upsertClause(d Dialect, conflictCol string, cols ...string) string {
	sets := make([]string, 0, len(cols))
	if d == DialectSQLite {
		for _, c := range cols {
			sets = append(sets, c+"=excluded."+c)
		}
		return "ON CONFLICT(" + conflictCol + ") DO UPDATE SET " + strings.Join(sets, ", ")
	}
	for _, c := range cols {
		sets = append(sets, c+"=VALUES("+c+")")
	}
	return "ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
}
