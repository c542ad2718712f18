// Package models defines the domain types shared across the counselbot core:
// scenario definitions, per-session dialogue state, slot-filling snapshots,
// and the error taxonomy.
package models

import "strings"

// FieldType enumerates the value types a collectible field may hold.
type FieldType string

// Field type constants.
const (
	FieldTypeText    FieldType = "text"
	FieldTypeNumber  FieldType = "number"
	FieldTypeBoolean FieldType = "boolean"
	FieldTypeChoice  FieldType = "choice"
)

// ResponseType describes how a stage's response should be rendered by the caller.
type ResponseType string

// Response type constants.
const (
	ResponseTypeNarrative     ResponseType = "narrative"
	ResponseTypeBullet        ResponseType = "bullet"
	ResponseTypeBoolean       ResponseType = "boolean"
	ResponseTypeGroupedBullet ResponseType = "grouped-bullet"
	ResponseTypeCardList      ResponseType = "card-list"
)

// Terminal stage sentinels. A stage whose next stage id starts with one of
// these prefixes ends the scenario; the prefix family determines the outcome.
const (
	TerminalCompletePrefix = "END_SCENARIO_COMPLETE"
	TerminalAbortPrefix    = "END_SCENARIO_ABORT"

	// Engine-level terminal states.
	StateComplete = "COMPLETE"
	StateAborted  = "ABORTED"
)

// IsTerminalStageID reports whether a stage id is a terminal sentinel rather
// than a real stage.
func IsTerminalStageID(id string) bool {
	return id == StateComplete || id == StateAborted ||
		strings.HasPrefix(id, TerminalCompletePrefix) ||
		strings.HasPrefix(id, TerminalAbortPrefix)
}

// TerminalState maps a terminal sentinel to the engine state it represents
// (COMPLETE or ABORTED). Non-terminal ids map to the empty string.
func TerminalState(id string) string {
	switch {
	case id == StateComplete || strings.HasPrefix(id, TerminalCompletePrefix):
		return StateComplete
	case id == StateAborted || strings.HasPrefix(id, TerminalAbortPrefix):
		return StateAborted
	}
	return ""
}

// Choice is one selectable option of a choice field or stage.
type Choice struct {
	Value    string            `json:"value"`
	Label    string            `json:"label"`
	Default  bool              `json:"default,omitempty"`
	Keywords []string          `json:"keywords,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"` // e.g. fee or limit annotations shown when enumerating
}

// ChoiceGroup is a named cluster of choices presented together
// (e.g. OTP options grouped by issuing bank).
type ChoiceGroup struct {
	Name    string   `json:"name"`
	Choices []Choice `json:"choices"`
}

// Transition is one candidate outgoing edge of a stage. When is an optional
// structured expression over collected fields, resolved deterministically
// without any external call. Condition is the natural-language description
// (with Examples) used only when branch selection genuinely needs the
// classification capability.
type Transition struct {
	TargetStageID string   `json:"target_stage_id"`
	When          string   `json:"when,omitempty"`
	Condition     string   `json:"condition"`
	Examples      []string `json:"examples,omitempty"`
}

// StageDefinition is one step of a scenario.
type StageDefinition struct {
	ID                 string        `json:"id"`
	Prompt             string        `json:"prompt"`
	ResponseType       ResponseType  `json:"response_type,omitempty"`
	Choices            []Choice      `json:"choices,omitempty"`
	ChoiceGroups       []ChoiceGroup `json:"choice_groups,omitempty"`
	FieldsToCollect    []string      `json:"fields_to_collect,omitempty"`
	FieldGroups        []string      `json:"field_groups,omitempty"`
	Transitions        []Transition  `json:"transitions,omitempty"`
	DefaultNextStageID string        `json:"default_next_stage_id,omitempty"`
	Skippable          bool          `json:"skippable,omitempty"`
	ModifiableFields   []string      `json:"modifiable_fields,omitempty"`
	FallbackMessage    string        `json:"fallback_message,omitempty"`
}

// AllChoices returns the stage's flat and grouped choices as one list,
// preserving declaration order.
func (s *StageDefinition) AllChoices() []Choice {
	if len(s.ChoiceGroups) == 0 {
		return s.Choices
	}
	out := make([]Choice, 0, len(s.Choices))
	out = append(out, s.Choices...)
	for _, g := range s.ChoiceGroups {
		out = append(out, g.Choices...)
	}
	return out
}

// DefaultChoice returns the stage's declared default choice, if any.
func (s *StageDefinition) DefaultChoice() (Choice, bool) {
	for _, c := range s.AllChoices() {
		if c.Default {
			return c, true
		}
	}
	return Choice{}, false
}

// FieldDefinition describes one collectible field of a scenario.
type FieldDefinition struct {
	Key              string    `json:"key"`
	DisplayName      string    `json:"display_name"`
	Type             FieldType `json:"type"`
	Required         bool      `json:"required,omitempty"`
	Default          any       `json:"default,omitempty"`
	Unit             string    `json:"unit,omitempty"`
	Choices          []Choice  `json:"choices,omitempty"`
	ShowWhen         string    `json:"show_when,omitempty"`
	ParentField      string    `json:"parent_field,omitempty"` // display hierarchy only, not ownership
	ExtractionPrompt string    `json:"extraction_prompt,omitempty"`
	Keywords         []string  `json:"keywords,omitempty"` // utterance markers that anchor this field's value
	Group            string    `json:"group,omitempty"`
	Min              *float64  `json:"min,omitempty"`
	Max              *float64  `json:"max,omitempty"`
	Pattern          string    `json:"pattern,omitempty"` // named text shape, e.g. "phone"
}

// FieldGroup names a display grouping referenced by FieldDefinition.Group
// and StageDefinition.FieldGroups.
type FieldGroup struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
}

// ScenarioDefinition is a named multi-stage structured form. It is immutable
// after load and safely shared across sessions.
type ScenarioDefinition struct {
	ID                string                      `json:"id"`
	ProductType       string                      `json:"product_type"`
	DisplayName       string                      `json:"display_name"`
	InitialStageID    string                      `json:"initial_stage_id"`
	Stages            map[string]*StageDefinition `json:"stages"`
	FieldRegistry     []*FieldDefinition          `json:"field_registry"`
	FieldGroups       []FieldGroup                `json:"field_groups,omitempty"`
	Keywords          []string                    `json:"keywords,omitempty"` // utterance keywords that start this scenario
	FallbackMessage   string                      `json:"fallback_message,omitempty"`
	CompletionMessage string                      `json:"completion_message,omitempty"`
	AbortMessage      string                      `json:"abort_message,omitempty"`
}

// Field returns the field definition for a key, if declared.
func (sc *ScenarioDefinition) Field(key string) (*FieldDefinition, bool) {
	for _, f := range sc.FieldRegistry {
		if f.Key == key {
			return f, true
		}
	}
	return nil, false
}

// Stage returns the stage definition for an id, if declared.
func (sc *ScenarioDefinition) Stage(id string) (*StageDefinition, bool) {
	st, ok := sc.Stages[id]
	return st, ok
}
