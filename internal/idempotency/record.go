package idempotency

import (
	"errors"
	"time"
)

// Record is one cached outcome for a client-supplied idempotency key. At most
// one live (non-expired) record exists per (scope, key). Records are written
// once and never mutated; expiry frees the key for reuse.
type Record struct {
	Key            string    `json:"key"`
	Scope          string    `json:"scope"`
	RequestHash    string    `json:"requestHash"`
	ResponseStatus int       `json:"responseStatus"`
	ResponseBody   []byte    `json:"responseBody"`
	CreatedAt      time.Time `json:"createdAt"`
	ExpiresAt      time.Time `json:"expiresAt"`
}

// the same key was presented with a materially different request body
var ErrKeyConflict = errors.New("idempotency key reused with different payload")

var ErrNotFound = errors.New("idempotency record not found")

// New builds a record expiring ttl from now.

func New(scope, key, requestHash string, status int, body []byte, ttl time.Duration) Record {
	now := time.Now().UTC()

	return Record{
		Key:            key,
		Scope:          scope,
		RequestHash:    requestHash,
		ResponseStatus: status,
		ResponseBody:   body,
		CreatedAt:      now,
		ExpiresAt:      now.Add(ttl),
	}
}

// Expired reports whether the record is past its expiry at the given instant.

func (r Record) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}
