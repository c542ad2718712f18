package scenario

import (
	"errors"
	"testing"

	"github.com/modubank/counselbot/internal/models"
)

// validDef returns a minimal well-formed definition the mutation tests start
// from.
func validDef() *models.ScenarioDefinition {
	return &models.ScenarioDefinition{
		ID:             "test_scenario",
		ProductType:    "테스트",
		DisplayName:    "테스트 상담",
		InitialStageID: "start",
		FieldGroups:    []models.FieldGroup{{Name: "basic", DisplayName: "기본 정보"}},
		FieldRegistry: []*models.FieldDefinition{
			{Key: "agree", DisplayName: "동의", Type: models.FieldTypeBoolean, Required: true, Group: "basic"},
			{Key: "method", DisplayName: "방법", Type: models.FieldTypeChoice, Required: true,
				ShowWhen: "agree == true", ParentField: "agree",
				Choices: []models.Choice{{Value: "a", Label: "가"}, {Value: "b", Label: "나"}}},
		},
		Stages: map[string]*models.StageDefinition{
			"start": {
				ID:              "start",
				Prompt:          "동의하시나요?",
				FieldsToCollect: []string{"agree"},
				Transitions: []models.Transition{
					{TargetStageID: "pick", When: "agree == true", Condition: "동의함"},
					{TargetStageID: "END_SCENARIO_ABORT", When: "agree == false", Condition: "동의하지 않음"},
				},
			},
			"pick": {
				ID:                 "pick",
				Prompt:             "방법을 골라주세요.",
				FieldsToCollect:    []string{"method"},
				DefaultNextStageID: "END_SCENARIO_COMPLETE",
			},
		},
	}
}

func TestNewRegistryAcceptsValidDefinition(t *testing.T) {
	reg, err := NewRegistry(validDef())
	if err != nil {
		t.Fatalf("NewRegistry error: %v", err)
	}
	sc, ok := reg.Get("test_scenario")
	if !ok {
		t.Fatal("registered scenario not found")
	}
	if sc.FieldVisible("method", models.CollectedInfo{}) {
		t.Error("method should be hidden before agree is collected")
	}
	if !sc.FieldVisible("method", models.CollectedInfo{"agree": true}) {
		t.Error("method should be visible once agree is true")
	}
	if d := sc.FieldDepth("method"); d != 1 {
		t.Errorf("FieldDepth(method) = %d, want 1", d)
	}
	if sc.TransitionWhen("start", 0) == nil {
		t.Error("start transition 0 should have a compiled when")
	}
	if sc.TransitionWhen("pick", 0) != nil {
		t.Error("pick has no transitions, TransitionWhen must be nil")
	}
}

func TestNewRegistryRejectsBrokenDefinitions(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.ScenarioDefinition)
	}{
		{"missing initial stage", func(d *models.ScenarioDefinition) { d.InitialStageID = "nowhere" }},
		{"duplicate field key", func(d *models.ScenarioDefinition) {
			d.FieldRegistry = append(d.FieldRegistry, &models.FieldDefinition{Key: "agree", DisplayName: "중복", Type: models.FieldTypeText})
		}},
		{"unknown field type", func(d *models.ScenarioDefinition) { d.FieldRegistry[0].Type = "date" }},
		{"choice field without choices", func(d *models.ScenarioDefinition) { d.FieldRegistry[1].Choices = nil }},
		{"unknown group", func(d *models.ScenarioDefinition) { d.FieldRegistry[0].Group = "ghost" }},
		{"unknown parent", func(d *models.ScenarioDefinition) { d.FieldRegistry[1].ParentField = "ghost" }},
		{"parent cycle", func(d *models.ScenarioDefinition) {
			d.FieldRegistry[0].ParentField = "method"
		}},
		{"invalid show_when", func(d *models.ScenarioDefinition) { d.FieldRegistry[1].ShowWhen = "agree >" }},
		{"show_when unknown field", func(d *models.ScenarioDefinition) { d.FieldRegistry[1].ShowWhen = "ghost == true" }},
		{"dangling transition target", func(d *models.ScenarioDefinition) {
			d.Stages["start"].Transitions[0].TargetStageID = "ghost"
		}},
		{"invalid transition when", func(d *models.ScenarioDefinition) {
			d.Stages["start"].Transitions[0].When = "agree >= true"
		}},
		{"transition when unknown field", func(d *models.ScenarioDefinition) {
			d.Stages["start"].Transitions[0].When = "ghost == true"
		}},
		{"collects unknown field", func(d *models.ScenarioDefinition) {
			d.Stages["pick"].FieldsToCollect = []string{"ghost"}
		}},
		{"dead-end stage", func(d *models.ScenarioDefinition) {
			d.Stages["pick"].Transitions = nil
			d.Stages["pick"].DefaultNextStageID = ""
		}},
		{"stage id mismatch", func(d *models.ScenarioDefinition) { d.Stages["pick"].ID = "other" }},
		{"dangling default next", func(d *models.ScenarioDefinition) { d.Stages["pick"].DefaultNextStageID = "ghost" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := validDef()
			tt.mutate(def)
			_, err := NewRegistry(def)
			if err == nil {
				t.Fatal("NewRegistry succeeded, want configuration error")
			}
			var cfgErr *models.ScenarioConfigError
			if !errors.As(err, &cfgErr) {
				t.Errorf("error = %v, want *models.ScenarioConfigError", err)
			}
		})
	}
}

func TestRegistryMatchKeywords(t *testing.T) {
	def := validDef()
	def.Keywords = []string{"대출", "빌리"}
	reg, err := NewRegistry(def)
	if err != nil {
		t.Fatalf("NewRegistry error: %v", err)
	}

	if sc, ok := reg.MatchKeywords("대출 상담 받고 싶어요"); !ok || sc.ID() != "test_scenario" {
		t.Errorf("MatchKeywords = %v, %v", sc, ok)
	}
	if _, ok := reg.MatchKeywords("오늘 날씨 어때요"); ok {
		t.Error("MatchKeywords matched an unrelated utterance")
	}
}

func TestScenarioFallbackMessage(t *testing.T) {
	def := validDef()
	def.FallbackMessage = "시나리오 폴백"
	def.Stages["pick"].FallbackMessage = "스테이지 폴백"
	reg, err := NewRegistry(def)
	if err != nil {
		t.Fatalf("NewRegistry error: %v", err)
	}
	sc, _ := reg.Get("test_scenario")

	pick, _ := sc.Stage("pick")
	if got := sc.FallbackMessage(pick); got != "스테이지 폴백" {
		t.Errorf("stage fallback = %q", got)
	}
	start, _ := sc.Stage("start")
	if got := sc.FallbackMessage(start); got != "시나리오 폴백" {
		t.Errorf("scenario fallback = %q", got)
	}
}
