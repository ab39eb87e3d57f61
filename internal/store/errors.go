package store

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

var (
	ErrNilDB        = errors.New("db 为空")
	ErrUserExists   = errors.New("账号名已存在")
	ErrUserNotFound = errors.New("用户不存在")
)

func mysqlErrNumber(err error) (uint16, bool) {
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) {
		return 0, false
	}
	return myErr.Number, true
}

func isMissingTableErr(err error) bool {
	if err == nil {
		return false
	}
	if strings.Contains(err.Error(), "no such table") {
		return true
	}
	// ER_NO_SUCH_TABLE
	n, ok := mysqlErrNumber(err)
	return ok && n == 1146
}

func isDuplicateErr(err error) bool {
	if err == nil {
		return false
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return true
	}
	// ER_DUP_ENTRY
	n, ok := mysqlErrNumber(err)
	return ok && n == 1062
}
