package models

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced across package boundaries.
var (
	// ErrSessionNotFound means a turn arrived for an unknown or expired
	// session. The caller must re-initialize; the core never fabricates a
	// fresh session under an old id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrScenarioNotFound means the requested scenario id is not registered.
	ErrScenarioNotFound = errors.New("scenario not found")

	// ErrExtractionFailed means the external classification call errored or
	// returned unusable data. Always recovered locally, never user-facing.
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrTemplateKey means a prompt template referenced a field key that is
	// not resolvable from collected info.
	ErrTemplateKey = errors.New("unresolvable template key")
)

// ScenarioConfigError reports a malformed scenario document. It is fatal at
// load time and blocks the scenario from being offered.
type ScenarioConfigError struct {
	ScenarioID string
	Detail     string
	Err        error
}

func (e *ScenarioConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("scenario %q: %s: %v", e.ScenarioID, e.Detail, e.Err)
	}
	return fmt.Sprintf("scenario %q: %s", e.ScenarioID, e.Detail)
}

func (e *ScenarioConfigError) Unwrap() error {
	return e.Err
}
