package models

// SnapshotField is one required field's entry in a slot-filling snapshot.
type SnapshotField struct {
	Key         string `json:"key"`
	DisplayName string `json:"display_name"`
	Collected   bool   `json:"collected"`
	Depth       int    `json:"depth"`
	Value       any    `json:"value,omitempty"`
	Group       string `json:"group,omitempty"`
}

// SnapshotGroup is a display grouping with the visible field keys it holds.
type SnapshotGroup struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name"`
	FieldKeys   []string `json:"field_keys"`
}

// SlotSnapshot is the serializable slot-filling projection consumed by the
// UI collaborator. It is a pure function of session state and may be
// recomputed and re-sent at any time.
type SlotSnapshot struct {
	ProductType    string          `json:"product_type"`
	CurrentStage   string          `json:"current_stage"`
	CollectedInfo  map[string]any  `json:"collected_info"`
	RequiredFields []SnapshotField `json:"required_fields"`
	FieldGroups    []SnapshotGroup `json:"field_groups,omitempty"`
	CompletionRate float64         `json:"completion_rate"` // 0-100, one decimal
}

// RouteType labels how the orchestrator handled a turn.
type RouteType string

// Route constants.
const (
	RouteScenario  RouteType = "scenario"
	RouteQA        RouteType = "qa"
	RouteWebSearch RouteType = "web_search"
	RouteChitChat  RouteType = "chit_chat"
)

// TurnRequest is one inbound utterance for a session.
type TurnRequest struct {
	SessionID     string `json:"session_id"`
	UtteranceText string `json:"utterance_text"`
}

// TurnResponse is the per-turn reply packaged for the transport layer.
type TurnResponse struct {
	PromptText   string        `json:"prompt_text"`
	ResponseType ResponseType  `json:"response_type"`
	Choices      []Choice      `json:"choices,omitempty"`
	ChoiceGroups []ChoiceGroup `json:"choice_groups,omitempty"`
	SlotSnapshot *SlotSnapshot `json:"slot_snapshot,omitempty"`
	Route        RouteType     `json:"route"`
	Terminal     string        `json:"terminal,omitempty"` // COMPLETE or ABORTED when a scenario just ended
}
