// hideadmin-ctl 为运维命令行：在忘记登录 slug 或需要脚本化修改时直接读写数据库中的选项与账号。
package main

import (
	"os"

	"github.com/joho/godotenv"

	"hideadmin/internal/cli"
)

func main() {
	_ = godotenv.Load()
	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
