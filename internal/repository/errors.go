// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// services and handlers to distinguish between different failure
// scenarios without depending on MySQL error numbers.
package repository

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a lookup by key matches no row.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert or update violates a unique key,
// e.g. a second live reservation for the same passenger and ride.
var ErrDuplicate = errors.New("duplicate")

// ErrTransient marks lock wait timeouts, deadlocks and dropped connections.
// The whole unit of work may be retried.
var ErrTransient = errors.New("transient store error")

// MySQL server error numbers the store reacts to.
const (
	mysqlDuplicateEntry  = 1062
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
)

// classify maps driver errors onto the sentinels above.  Errors that do not
// match any sentinel are returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case mysqlDuplicateEntry:
			return fmt.Errorf("%w: %s", ErrDuplicate, me.Message)
		case mysqlLockWaitTimeout, mysqlDeadlock:
			return fmt.Errorf("%w: %s", ErrTransient, me.Message)
		}
	}
	return err
}
