package store

// errors.go turns database failures into coded messages for the run log.
//
//	DB001 duplicate key       DB004 connection refused
//	DB002 unique constraint   DB005 connection reset
//	DB003 foreign key         DB006 timeout
//	DB007 deadlock            DB008 check constraint
//	DB009 not-null violation  ERR000 anything else
//
// PostgreSQL errors are classified by SQLSTATE first; other errors fall back
// to case-insensitive substring patterns.

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// Description is an operator-facing explanation of a database error.
type Description struct {
	Message string
	Action  string
	Code    string
}

// String formats d as "Message (Code: XXX). Action".
func (d Description) String() string {
	if d.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", d.Message, d.Code, d.Action)
}

var (
	descDuplicate = Description{
		Message: "A record with this key already exists",
		Action:  "Run with --recreate-schema or remove the duplicate source rows",
		Code:    "DB001",
	}
	descUnique = Description{
		Message: "This value must be unique but already exists",
		Action:  "Check the source resource for duplicate codes",
		Code:    "DB002",
	}
	descForeignKey = Description{
		Message: "Referenced record does not exist",
		Action:  "Ensure reference themes ran before fact themes",
		Code:    "DB003",
	}
	descCheck = Description{
		Message: "A row failed a table check",
		Action:  "Inspect the reference period and numeric columns of the source",
		Code:    "DB008",
	}
	descNotNull = Description{
		Message: "A required column is empty",
		Action:  "Check the mapping for the theme that wrote this row",
		Code:    "DB009",
	}
	defaultDescription = Description{
		Message: "An unexpected database error occurred",
		Action:  "Check the run log for the underlying error",
		Code:    "ERR000",
	}
)

var sqlStates = map[string]Description{
	"23505": descDuplicate,
	"23503": descForeignKey,
	"23514": descCheck,
	"23502": descNotNull,
	"40P01": {
		Message: "Database was busy with conflicting operations",
		Action:  "Retry the run",
		Code:    "DB007",
	},
}

type errorPattern struct {
	pattern string
	desc    Description
}

// Order matters: the first matching pattern wins.
var errorPatterns = []errorPattern{
	{pattern: "duplicate key", desc: descDuplicate},
	{pattern: "unique constraint", desc: descUnique},
	{pattern: "violates unique", desc: descUnique},
	{pattern: "foreign key constraint", desc: descForeignKey},
	{pattern: "violates foreign key", desc: descForeignKey},
	{pattern: "connection refused", desc: Description{
		Message: "Unable to connect to database",
		Action:  "Check DATABASE_URL and that the server is running",
		Code:    "DB004",
	}},
	{pattern: "connection reset", desc: Description{
		Message: "Database connection was interrupted",
		Action:  "Retry the run",
		Code:    "DB005",
	}},
	{pattern: "timeout", desc: Description{
		Message: "Operation timed out",
		Action:  "Lower BATCH_SIZE or retry later",
		Code:    "DB006",
	}},
	{pattern: "deadlock", desc: sqlStates["40P01"]},
}

// Describe classifies err. A nil error yields the zero Description.
func Describe(err error) Description {
	if err == nil {
		return Description{}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if d, ok := sqlStates[pgErr.Code]; ok {
			return d
		}
	}

	msg := strings.ToLower(err.Error())
	for _, p := range errorPatterns {
		if strings.Contains(msg, p.pattern) {
			return p.desc
		}
	}
	return defaultDescription
}

// IsKnown reports whether err maps to a specific code rather than ERR000.
func IsKnown(err error) bool {
	if err == nil {
		return false
	}
	return Describe(err).Code != defaultDescription.Code
}
