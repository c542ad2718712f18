// Package store provides the session store: an explicit in-memory table
// keyed by session id with a create-on-connect / evict-on-timeout lifecycle.
// Sessions are exclusively owned by one conversation and carry no
// persistence guarantee beyond their lifetime.
package store

import (
	"time"

	"github.com/modubank/counselbot/internal/models"
)

// Store is the session table consumed by the dialogue orchestrator.
type Store interface {
	// Create registers a new session. Creating an existing id is an error.
	Create(session *models.SessionState) error

	// Get returns the session for an id, or models.ErrSessionNotFound for an
	// unknown or already-evicted id. The store never fabricates a fresh
	// session under an old id.
	Get(sessionID string) (*models.SessionState, error)

	// Save replaces the stored session state and refreshes its activity
	// timestamp. Saving an unknown id is models.ErrSessionNotFound.
	Save(session *models.SessionState) error

	// Delete removes a session. Deleting an unknown id is a no-op.
	Delete(sessionID string)

	// EvictIdle removes sessions idle longer than ttl and reports how many
	// were evicted.
	EvictIdle(ttl time.Duration) int
}
