package schema

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsMissingColumnErrorFor(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{
			name:     "postgrest schema cache code",
			err:      &BackendError{Code: "PGRST204", Message: "Could not find the 'boost_until' column"},
			expected: true,
		},
		{
			name:     "schema cache message without code",
			err:      &BackendError{Message: "Could not find the 'boost_expires_at' column of 'listings' in the schema cache"},
			expected: true,
		},
		{
			name:     "postgres undefined column",
			err:      &pgconn.PgError{Code: "42703", Message: `column "boost_until" does not exist`},
			expected: true,
		},
		{
			name:     "generic column does not exist",
			err:      errors.New(`ERROR: column listings.sponsor_end does not exist`),
			expected: true,
		},
		{
			name:     "mixed case message",
			err:      errors.New("COLUMN BOOST_UNTIL DOES NOT EXIST"),
			expected: true,
		},
		{
			name:     "wrapped pg error",
			err:      fmt.Errorf("phase 1: %w", &pgconn.PgError{Code: "42703", Message: `column "boost_expires_at" does not exist`}),
			expected: true,
		},
		{"network timeout", &BackendError{Message: "network timeout"}, false},
		{"plain network error", errors.New("dial tcp 10.0.0.1:5432: i/o timeout"), false},
		{
			name:     "relation missing is not a column error",
			err:      &pgconn.PgError{Code: "42P01", Message: `relation "listings" does not exist`},
			expected: false,
		},
		{
			name:     "column named without missing phrase",
			err:      &BackendError{Message: "permission denied for column boost_until", Code: "42501"},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsMissingColumnErrorFor(BoostColumns, tt.err)
			if result != tt.expected {
				t.Errorf("IsMissingColumnErrorFor(%v) = %v, want %v", tt.err, result, tt.expected)
			}
		})
	}
}

func TestIsMissingColumn(t *testing.T) {
	startedAt := &pgconn.PgError{Code: "42703", Message: `column "started_at" of relation "boosts" does not exist`}
	other := &pgconn.PgError{Code: "42703", Message: `column "ends_at" of relation "boosts" does not exist`}

	if !IsMissingColumn(StartedAt, startedAt) {
		t.Error("expected started_at error to be classified as missing started_at")
	}
	if IsMissingColumn(StartedAt, other) {
		t.Error("an error about another column must not be attributed to started_at")
	}
}

func TestAlternate(t *testing.T) {
	if Alternate(BoostUntil) != BoostExpiresAt {
		t.Errorf("Alternate(%s) = %s", BoostUntil, Alternate(BoostUntil))
	}
	if Alternate(BoostExpiresAt) != BoostUntil {
		t.Errorf("Alternate(%s) = %s", BoostExpiresAt, Alternate(BoostExpiresAt))
	}
	if !IsBoostColumn(BoostUntil) || IsBoostColumn("boost_until; DROP TABLE listings") {
		t.Error("IsBoostColumn must accept only the known column names")
	}
}

func TestFields(t *testing.T) {
	msg, code := Fields(&BackendError{Message: "m", Code: "c"})
	if msg != "m" || code != "c" {
		t.Errorf("Fields(BackendError) = %q, %q", msg, code)
	}
	msg, code = Fields(errors.New("plain"))
	if msg != "plain" || code != "" {
		t.Errorf("Fields(plain) = %q, %q", msg, code)
	}
}
