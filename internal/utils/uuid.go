package utils

import "github.com/google/uuid"

// IsUUID reports whether s parses as a UUID. Path params are validated before
// any store access so malformed ids never reach the database.

func IsUUID(s string) bool {
	_, err := uuid.Parse(s)

	return err == nil
}
