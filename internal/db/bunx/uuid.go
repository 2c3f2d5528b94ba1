package bunx

import "github.com/google/uuid"

// NewUUIDv7 generates a time-ordered UUIDv7 string for database primary keys.
//
// Ids are generated in the application so inserts behave the same on
// PostgreSQL and SQLite. Panics only if the entropy source fails.
func NewUUIDv7() string {
	return uuid.Must(uuid.NewV7()).String()
}

// IsUUID reports whether s parses as a UUID. Handlers use it to answer
// malformed path ids with 404 before touching the store.
func IsUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
