// Package schema tolerates the two column names a deployed schema may use for
// the boost expiry, boost_until and boost_expires_at, by recognising the
// backend's "missing column" errors.
package schema

import (
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// Tracked columns
const (
	BoostUntil     = "boost_until"
	BoostExpiresAt = "boost_expires_at"
	StartedAt      = "started_at"
)

// Error codes that always mean the column is unknown to the backend.
const (
	CodeSchemaCacheMiss = "PGRST204" // PostgREST: column not in schema cache
	CodeUndefinedColumn = "42703"    // Postgres undefined_column
)

// BoostColumns are the alternate names of the boost expiry column.
var BoostColumns = []string{BoostUntil, BoostExpiresAt}

var columnDoesNotExist = regexp.MustCompile(`(?i)\bcolumn\s+\S+.*\bdoes not exist`)

var missingPhrases = []string{
	"does not exist",
	"could not find",
	"schema cache",
	"unknown column",
	"no such column",
}

// BackendError is an error carrying only a message and an optional code, the
// shape the record store reports errors in.
type BackendError struct {
	Message string
	Code    string
}

func (e *BackendError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return e.Code + ": " + e.Message
}

// Alternate returns the other boost expiry column name.
func Alternate(column string) string {
	if column == BoostExpiresAt {
		return BoostUntil
	}
	return BoostExpiresAt
}

// IsBoostColumn reports whether column is one of the known boost expiry names.
func IsBoostColumn(column string) bool {
	return column == BoostUntil || column == BoostExpiresAt
}

// Fields extracts the message and code of a backend error. Errors that carry
// no code are reported with their Error() text and an empty code.
func Fields(err error) (message, code string) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Message, pgErr.Code
	}
	var be *BackendError
	if errors.As(err, &be) {
		return be.Message, be.Code
	}
	return err.Error(), ""
}

// IsMissingColumnErrorFor reports whether err says that one of columns is
// missing from the schema (or its cache), that some column does not exist, or
// carries a schema-cache miss code. Anything else is left to the caller.
func IsMissingColumnErrorFor(columns []string, err error) bool {
	if err == nil {
		return false
	}
	message, code := Fields(err)
	if code == CodeSchemaCacheMiss || code == CodeUndefinedColumn {
		return true
	}
	if columnDoesNotExist.MatchString(message) {
		return true
	}
	lower := strings.ToLower(message)
	for _, column := range columns {
		if column != "" && strings.Contains(lower, strings.ToLower(column)) && hasMissingPhrase(lower) {
			return true
		}
	}
	return false
}

// IsMissingColumn is the strict form used for optional columns: the error
// must be a missing-column error and must name column.
func IsMissingColumn(column string, err error) bool {
	if !IsMissingColumnErrorFor([]string{column}, err) {
		return false
	}
	message, _ := Fields(err)
	return strings.Contains(strings.ToLower(message), strings.ToLower(column))
}

func hasMissingPhrase(lower string) bool {
	for _, phrase := range missingPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
