package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

func OpenDB(env string, driver string, mysqlDSN string, sqlitePath string) (*sql.DB, Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite":
		db, err := OpenSQLite(sqlitePath)
		if err != nil {
			return nil, "", err
		}
		return db, DialectSQLite, nil
	case "mysql":
		db, err := OpenMySQL(env, mysqlDSN)
		if err != nil {
			return nil, "", err
		}
		return db, DialectMySQL, nil
	default:
		return nil, "", fmt.Errorf("不支持的 db.driver：%s", driver)
	}
}

// EnsureSchema 按方言初始化表结构：MySQL 走内置迁移，SQLite 走内置 schema。
func EnsureSchema(db *sql.DB, d Dialect) error {
	switch d {
	case DialectMySQL:
		return ApplyMigrations(db)
	case DialectSQLite:
		return EnsureSQLiteSchema(db)
	default:
		return fmt.Errorf("未知数据库方言: %s", d)
	}
}

func OpenSQLite(path string) (*sql.DB, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("sqlite_path 不能为空")
	}

	// path 可携带 driver 参数（如 ?_busy_timeout=30000），建目录前先剥离。
	filePath, _, _ := strings.Cut(path, "?")
	if filePath != "" && filePath != ":memory:" && !strings.HasPrefix(filePath, "file::memory:") {
		if dir := filepath.Dir(filePath); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("创建 sqlite 数据目录失败: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sql.Open(sqlite): %w", err)
	}
	// 单机 SQLite 收敛为单连接，避免写锁竞争。
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := pingOnce(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db.Ping(sqlite): %w", err)
	}
	_, _ = db.Exec(`PRAGMA journal_mode=WAL`)
	return db, nil
}

func OpenMySQL(env string, dsn string) (*sql.DB, error) {
	normalized, err := normalizeMySQLDSN(dsn)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", normalized)
	if err != nil {
		return nil, fmt.Errorf("sql.Open(mysql): %w", err)
	}
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)

	if env != "dev" {
		if err := pingOnce(db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("db.Ping(mysql): %w", err)
		}
		return db, nil
	}
	if err := waitMySQLInDev(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// normalizeMySQLDSN 统一按 UTC 读写时间：users.created_at 等列需要扫描为 time.Time。
func normalizeMySQLDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(strings.TrimSpace(dsn))
	if err != nil {
		return "", fmt.Errorf("mysql.ParseDSN: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	if cfg.Params == nil {
		cfg.Params = map[string]string{}
	}
	cfg.Params["time_zone"] = "'+00:00'"
	return cfg.FormatDSN(), nil
}

func pingOnce(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// waitMySQLInDev 在开发环境等待 MySQL 容器就绪；鉴权类错误直接返回，不做无意义重试。
func waitMySQLInDev(db *sql.DB) error {
	const (
		maxWait    = 30 * time.Second
		maxBackoff = 2 * time.Second
	)
	deadline := time.Now().Add(maxWait)
	backoff := 200 * time.Millisecond
	logged := false

	var lastErr error
	for time.Now().Before(deadline) {
		err := pingOnce(db)
		if err == nil {
			return nil
		}
		lastErr = err
		if n, ok := mysqlErrNumber(err); ok && (n == 1044 || n == 1045 || n == 1049) {
			return fmt.Errorf("db.Ping(mysql): %w", err)
		}
		if !logged {
			slog.Info("等待 MySQL 就绪（dev）", "timeout", maxWait.String())
			logged = true
		}
		time.Sleep(backoff)
		backoff = min(backoff*2, maxBackoff)
	}
	return fmt.Errorf("db.Ping(mysql): %w", lastErr)
}
