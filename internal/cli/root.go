// Package cli 实现 hideadmin-ctl 的命令树。
//
// 命令直接读写数据库：修改选项走与后台设置页相同的保存路径（校验、持久化、递增失效版本），
// 运行中的服务实例会在下一次失效轮询时刷新缓存与登录路由。
package cli

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"hideadmin/internal/config"
	"hideadmin/internal/hideadmin"
	"hideadmin/internal/security"
	"hideadmin/internal/store"
)

type dbFlags struct {
	driver     string
	dsn        string
	sqlitePath string
}

type rootState struct {
	db dbFlags
}

// conn 为一次命令执行打开的数据库与选项存储。
type conn struct {
	cfg     config.Config
	db      *sql.DB
	store   *store.Store
	options *hideadmin.ConfigStore
	gate    *hideadmin.Gate
}

func (c *conn) Close() error {
	return c.db.Close()
}

func NewRootCmd() *cobra.Command {
	state := &rootState{}
	root := &cobra.Command{
		Use:          "hideadmin-ctl",
		Short:        "hideadmin 运维命令行",
		Long:         "hideadmin-ctl 直接读写 hideadmin 数据库：查看/修改隐藏登录选项，管理后台账号。\n数据库连接默认读取与服务相同的 HIDEADMIN_* 环境变量（支持 .env）。",
		SilenceUsage: true,
	}
	addDBFlags(root.PersistentFlags(), &state.db)

	root.AddCommand(
		newOptionsCmd(state),
		newUserCmd(state),
		newVersionCmd(),
	)
	return root
}

func addDBFlags(fs *pflag.FlagSet, f *dbFlags) {
	fs.StringVar(&f.driver, "db-driver", "", "数据库驱动 mysql/sqlite（默认取 HIDEADMIN_DB_DRIVER）")
	fs.StringVar(&f.dsn, "db-dsn", "", "MySQL DSN（默认取 HIDEADMIN_DB_DSN）")
	fs.StringVar(&f.sqlitePath, "sqlite-path", "", "SQLite 文件路径（默认取 HIDEADMIN_SQLITE_PATH）")
}

// open 合并环境配置与命令行参数后连接数据库；命令行参数优先。
func (s *rootState) open() (*conn, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}

	driver, dsn, sqlitePath := cfg.DB.Driver, cfg.DB.DSN, cfg.DB.SQLitePath
	if s.db.dsn != "" {
		dsn = s.db.dsn
		driver = "mysql"
	}
	if s.db.sqlitePath != "" {
		sqlitePath = s.db.sqlitePath
		driver = "sqlite"
	}
	if s.db.driver != "" {
		driver = s.db.driver
	}

	db, dialect, err := store.OpenDB(cfg.Env, driver, dsn, sqlitePath)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureSchema(db, dialect); err != nil {
		_ = db.Close()
		return nil, err
	}

	st := store.New(db)
	st.SetDialect(dialect)
	routes := hideadmin.NewLoginRoutes()
	options := hideadmin.NewConfigStore(st, routes, hideadmin.Defaults{
		FeatureEnabled: cfg.HideAdmin.FeatureEnabled,
		LoginSlug:      cfg.HideAdmin.LoginSlug,
		NotFoundURL:    cfg.Server.PublicBaseURL + cfg.HideAdmin.NotFoundPath,
		ReservedPaths:  config.ReservedPaths(),
	})
	gate := hideadmin.NewGate(options, routes, security.BaseURLResolver{PublicBaseURL: cfg.Server.PublicBaseURL}, cfg.HideAdmin.NotFoundPath)

	return &conn{cfg: cfg, db: db, store: st, options: options, gate: gate}, nil
}
