package dbx

import "github.com/google/uuid"

// ValidID reports whether s can be compared against a UUID column. Postgres
// rejects malformed values with a cast error instead of matching no rows.
func ValidID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
