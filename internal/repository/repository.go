package repository

import (
	"fmt"
	"strings"
	"time"
)

// isUniqueViolation matches duplicate-key errors from both SQLite and PostgreSQL.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") || strings.Contains(errStr, "duplicate key value")
}

// placeholders returns "$start, $start+1, ..." for n arguments.
func placeholders(n, start int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(parts, ", ")
}

// now returns the current time in UTC without a monotonic reading so stored
// timestamps compare consistently across drivers.
func now() time.Time {
	return time.Now().UTC()
}

func offset(page, pageSize int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * pageSize
}
