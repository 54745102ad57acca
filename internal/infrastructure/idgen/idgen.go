// Package idgen produces the public identifiers of records, unlocks and
// requests.
package idgen

import (
	"strings"

	"github.com/google/uuid"
)

// UUID generates prefixed identifiers from random UUIDs.
type UUID struct{}

// ProgressID returns "progress_" followed by 12 hex characters.
func (UUID) ProgressID() string {
	return "progress_" + hex12()
}

// UnlockID returns "ua_" followed by 12 hex characters.
func (UUID) UnlockID() string {
	return "ua_" + hex12()
}

// RequestID returns a full UUID string.
func (UUID) RequestID() string {
	return uuid.NewString()
}

func hex12() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
