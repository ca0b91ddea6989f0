package db

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

// Common errors
var (
	ErrInvalidInput       = fmt.Errorf("invalid input")
	ErrIssueNotFound      = fmt.Errorf("issue not found")
	ErrDatabaseConnection = fmt.Errorf("database connection error")
	ErrTransactionFailed  = fmt.Errorf("transaction failed")
)

const (
	pqUniqueViolation    = "23505"
	mysqlDuplicateEntry  = 1062
	mysqlDuplicateUnique = 1586
)

// isUniqueViolation reports whether err is a primary key or unique
// constraint violation from either supported driver.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqUniqueViolation
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry || myErr.Number == mysqlDuplicateUnique
	}

	return false
}
