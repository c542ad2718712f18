package models

import (
	"maps"
	"time"
)

// CollectedInfo is the per-session mapping of field key to collected value.
// Values are stored JSON-native: string, float64, or bool.
type CollectedInfo map[string]any

// NewCollectedInfo returns an empty collected-info map.
func NewCollectedInfo() CollectedInfo {
	return make(CollectedInfo)
}

// Get returns the stored value for a key.
func (c CollectedInfo) Get(key string) (any, bool) {
	v, ok := c[key]
	return v, ok
}

// Has reports whether a non-nil value is stored for the key.
func (c CollectedInfo) Has(key string) bool {
	v, ok := c[key]
	return ok && v != nil
}

// Set stores a value for the key, overwriting any prior value.
func (c CollectedInfo) Set(key string, value any) {
	c[key] = value
}

// Delete removes the key entirely.
func (c CollectedInfo) Delete(key string) {
	delete(c, key)
}

// Bool returns the value as a boolean.
func (c CollectedInfo) Bool(key string) (bool, bool) {
	v, ok := c[key].(bool)
	return v, ok
}

// Number returns the value as a float64, converting stored integer types.
func (c CollectedInfo) Number(key string) (float64, bool) {
	switch v := c[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// String returns the value as a string.
func (c CollectedInfo) String(key string) (string, bool) {
	v, ok := c[key].(string)
	return v, ok
}

// Clone returns a shallow copy. Stored values are scalars, so a shallow copy
// is a full copy.
func (c CollectedInfo) Clone() CollectedInfo {
	out := make(CollectedInfo, len(c))
	maps.Copy(out, c)
	return out
}

// Message is one turn of conversation history.
type Message struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// CorrectionContext marks a field awaiting a corrected value after a
// clarifying question.
type CorrectionContext struct {
	FieldKey string    `json:"field_key"`
	AskedAt  time.Time `json:"asked_at"`
}

// SessionState is the per-conversation aggregate. It is owned exclusively by
// one session; the orchestrator clones it per turn and commits the clone only
// when the turn fully succeeds.
type SessionState struct {
	SessionID                 string             `json:"session_id"`
	ActiveScenarioID          string             `json:"active_scenario_id,omitempty"`
	CurrentStageID            string             `json:"current_stage_id,omitempty"`
	Collected                 CollectedInfo      `json:"collected_info"`
	PendingConfirmationFields []string           `json:"pending_confirmation_fields,omitempty"`
	CorrectionContext         *CorrectionContext `json:"correction_context,omitempty"`
	StageVisitCount           map[string]int     `json:"stage_visit_count"`
	VisitedStages             []string           `json:"visited_stages"`
	History                   []Message          `json:"history"`
	CreatedAt                 time.Time          `json:"created_at"`
	UpdatedAt                 time.Time          `json:"updated_at"`
}

// NewSessionState creates a fresh session with no active scenario.
func NewSessionState(sessionID string) *SessionState {
	now := time.Now()
	return &SessionState{
		SessionID:       sessionID,
		Collected:       NewCollectedInfo(),
		StageVisitCount: make(map[string]int),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// InScenario reports whether a scenario is active and not yet terminal.
func (s *SessionState) InScenario() bool {
	return s.ActiveScenarioID != "" && s.CurrentStageID != "" &&
		s.CurrentStageID != StateComplete && s.CurrentStageID != StateAborted
}

// HasVisited reports whether the session has already passed through a stage.
func (s *SessionState) HasVisited(stageID string) bool {
	for _, id := range s.VisitedStages {
		if id == stageID {
			return true
		}
	}
	return false
}

// MarkVisited records that the session entered a stage, without counting a
// processed turn there.
func (s *SessionState) MarkVisited(stageID string) {
	if !s.HasVisited(stageID) {
		s.VisitedStages = append(s.VisitedStages, stageID)
	}
}

// BumpVisit counts one fully processed turn at a stage and returns the new
// count. The loop guard compares this against the configured maximum.
func (s *SessionState) BumpVisit(stageID string) int {
	s.MarkVisited(stageID)
	s.StageVisitCount[stageID]++
	return s.StageVisitCount[stageID]
}

// AppendHistory adds a message, keeping only the most recent limit entries.
// A non-positive limit keeps everything.
func (s *SessionState) AppendHistory(role, content string, limit int) {
	s.History = append(s.History, Message{Role: role, Content: content, Timestamp: time.Now()})
	if limit > 0 && len(s.History) > limit {
		s.History = s.History[len(s.History)-limit:]
	}
}

// Clone returns a deep copy used for atomic per-turn mutation.
func (s *SessionState) Clone() *SessionState {
	out := *s
	out.Collected = s.Collected.Clone()
	out.StageVisitCount = make(map[string]int, len(s.StageVisitCount))
	maps.Copy(out.StageVisitCount, s.StageVisitCount)
	out.VisitedStages = append([]string(nil), s.VisitedStages...)
	out.PendingConfirmationFields = append([]string(nil), s.PendingConfirmationFields...)
	out.History = append([]Message(nil), s.History...)
	if s.CorrectionContext != nil {
		cc := *s.CorrectionContext
		out.CorrectionContext = &cc
	}
	return &out
}
