package flow

import (
	"fmt"
	"sort"
	"strings"

	"github.com/modubank/counselbot/internal/models"
	"github.com/modubank/counselbot/internal/scenario"
)

// ComposeReprompt builds the single response for a turn that stays at the
// current stage: terse confirmation of just-collected fields, each rejected
// field's specific problem, and one combined ask for everything still
// missing. Fields validly collected this turn are never re-asked.
func ComposeReprompt(sc *scenario.Scenario, stage *models.StageDefinition, collected models.CollectedInfo, valid []*models.FieldDefinition, invalid map[string]string, missing []*models.FieldDefinition) string {
	var parts []string

	if len(valid) > 0 {
		names := make([]string, 0, len(valid))
		for _, f := range valid {
			if v, ok := collected.Get(f.Key); ok {
				names = append(names, fmt.Sprintf("%s %s", f.DisplayName, scenario.FormatValue(v)))
			} else {
				names = append(names, f.DisplayName)
			}
		}
		parts = append(parts, fmt.Sprintf("%s 확인했습니다.", strings.Join(names, ", ")))
	}

	// Keep document order for deterministic messages.
	for _, key := range stage.FieldsToCollect {
		if msg, ok := invalid[key]; ok {
			parts = append(parts, msg)
		}
	}

	if len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for _, f := range missing {
			names = append(names, f.DisplayName)
		}
		parts = append(parts, fmt.Sprintf("%s을(를) 말씀해 주세요.", strings.Join(names, ", ")))
	}

	if len(parts) == 0 {
		// Nothing new, nothing wrong, nothing missing: restate the stage.
		if rendered, err := scenario.RenderPrompt(stage.Prompt, collected, stage); err == nil {
			return rendered
		}
		return stage.Prompt
	}
	return strings.Join(parts, " ")
}

// SteeringResponse restates the pending question after an off-topic
// digression, optionally prefixed by a collaborator's answer. Required-field
// stages never silently advance on irrelevant input.
func SteeringResponse(sc *scenario.Scenario, stage *models.StageDefinition, collected models.CollectedInfo, prefix string, missing []*models.FieldDefinition) string {
	reprompt := ComposeReprompt(sc, stage, collected, nil, nil, missing)
	if prefix == "" {
		return fmt.Sprintf("상담을 계속 진행할게요. %s", reprompt)
	}
	return fmt.Sprintf("%s\n\n진행 중이던 상담으로 돌아갈게요. %s", prefix, reprompt)
}

// EnumerateChoices renders the current stage's choices, grouped where groups
// are declared and annotated with any metadata (fees, limits), for
// clarification responses that must not guess.
func EnumerateChoices(stage *models.StageDefinition) string {
	var b strings.Builder
	b.WriteString("다음 중에서 선택해 주세요.\n")
	writeChoice := func(c models.Choice) {
		b.WriteString("- " + c.Label)
		if len(c.Metadata) > 0 {
			var notes []string
			for _, k := range sortedKeys(c.Metadata) {
				notes = append(notes, fmt.Sprintf("%s %s", k, c.Metadata[k]))
			}
			b.WriteString(" (" + strings.Join(notes, ", ") + ")")
		}
		b.WriteString("\n")
	}
	if len(stage.ChoiceGroups) > 0 {
		for _, g := range stage.ChoiceGroups {
			fmt.Fprintf(&b, "[%s]\n", g.Name)
			for _, c := range g.Choices {
				writeChoice(c)
			}
		}
	}
	for _, c := range stage.Choices {
		writeChoice(c)
	}
	return strings.TrimRight(b.String(), "\n")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
