package retry

import (
	"errors"
	"strings"

	"github.com/BaSui01/dbsession/types"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL SQLSTATE codes of transient conflicts.
const (
	SQLStateSerializationFailure = "40001"
	SQLStateDeadlockDetected     = "40P01"
)

// MySQL server error numbers of transient conflicts.
const (
	mysqlLockWaitTimeout uint16 = 1205
	mysqlDeadlock        uint16 = 1213
)

var conflictMessages = []string{
	"deadlock detected",
	"could not serialize access",
	"deadlock found",
	"database is locked",
}

// IsConflict reports whether err is a serialization failure or deadlock.
func IsConflict(err error) bool {
	if err == nil {
		return false
	}

	if types.HasCode(err, types.ErrTransientConflict) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == SQLStateSerializationFailure || pgErr.Code == SQLStateDeadlockDetected
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDeadlock || myErr.Number == mysqlLockWaitTimeout
	}

	// 驱动未提供结构化错误时退回到消息匹配
	msg := strings.ToLower(err.Error())
	for _, m := range conflictMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// SQLState extracts the SQLSTATE reported by the driver, or "".
func SQLState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.SQLState != [5]byte{} {
		return string(myErr.SQLState[:])
	}

	if e, ok := types.AsError(err); ok {
		return e.SQLState
	}
	return ""
}
