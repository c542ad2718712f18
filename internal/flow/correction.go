package flow

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/modubank/counselbot/internal/extract"
	"github.com/modubank/counselbot/internal/models"
	"github.com/modubank/counselbot/internal/scenario"
)

// CorrectionHandler detects vague-referent clarification requests and
// explicit corrections of previously collected fields. It runs before normal
// stage processing once the scenario is past its first stage, and never
// moves the stage pointer: a corrected value is overwritten, re-validated,
// and reflected in the next slot snapshot only.
type CorrectionHandler struct{}

// NewCorrectionHandler creates a correction handler.
func NewCorrectionHandler() *CorrectionHandler {
	return &CorrectionHandler{}
}

// Vague-referent expressions with no named entity.
var vagueReferentForms = []string{
	"그걸로", "그거로", "그것으로", "저걸로", "저거로", "이걸로",
	"아까 그거", "아까그거", "아까 말한 거", "방금 그거",
}

var contrastiveMarker = regexp.MustCompile(`(?:이|가)?\s*(아니라|말고)\s*`)

var changeVerbForms = []string{"바꿔", "바꾸", "변경", "수정", "고쳐"}

// Handle inspects the utterance for the two correction triggers. The second
// return value reports whether the turn was fully handled here.
func (h *CorrectionHandler) Handle(sc *scenario.Scenario, session *models.SessionState, utterance string) (*models.TurnResponse, bool) {
	if !session.InScenario() {
		return nil, false
	}
	stage, ok := sc.Stage(session.CurrentStageID)
	if !ok {
		return nil, false
	}
	pastFirstStage := session.CurrentStageID != sc.Def.InitialStageID || len(session.VisitedStages) > 1
	if !pastFirstStage {
		return nil, false
	}

	// A clarifying question from a previous turn takes precedence: the
	// utterance is the corrected value itself.
	if session.CorrectionContext != nil {
		return h.resolvePendingCorrection(sc, session, stage, utterance)
	}

	if resp, ok := h.handleVagueReferent(stage, utterance); ok {
		return resp, true
	}
	return h.handleExplicitCorrection(sc, session, stage, utterance)
}

// handleVagueReferent answers "that one" style picks by enumerating the
// current stage's choices with their group and metadata annotations. It must
// not guess, so nothing is collected.
func (h *CorrectionHandler) handleVagueReferent(stage *models.StageDefinition, utterance string) (*models.TurnResponse, bool) {
	choices := stage.AllChoices()
	if len(choices) == 0 {
		return nil, false
	}
	vague := false
	for _, form := range vagueReferentForms {
		if strings.Contains(utterance, form) {
			vague = true
			break
		}
	}
	if !vague {
		return nil, false
	}
	// A concrete pick alongside the referent ("그럼 보안카드 그걸로") still
	// names an entity; let normal stage processing take it.
	if _, matched := extract.MatchChoice(utterance, choices); matched {
		return nil, false
	}

	rt := models.ResponseTypeBullet
	if len(stage.ChoiceGroups) > 0 {
		rt = models.ResponseTypeGroupedBullet
	}
	return &models.TurnResponse{
		PromptText:   "어떤 것을 말씀하시는지 정확히 확인하고 싶어요. " + EnumerateChoices(stage),
		ResponseType: rt,
		Choices:      stage.Choices,
		ChoiceGroups: stage.ChoiceGroups,
		Route:        models.RouteScenario,
	}, true
}

// handleExplicitCorrection finds a previously collected field the utterance
// names (directly or in the contrastive "X가 아니라 Y" form) and overwrites it
// with the re-validated new value.
func (h *CorrectionHandler) handleExplicitCorrection(sc *scenario.Scenario, session *models.SessionState, stage *models.StageDefinition, utterance string) (*models.TurnResponse, bool) {
	field := h.findNamedCollectedField(sc, session, stage, utterance)
	if field == nil {
		return nil, false
	}

	markerLoc := contrastiveMarker.FindStringIndex(utterance)
	hasChangeVerb := false
	for _, v := range changeVerbForms {
		if strings.Contains(utterance, v) {
			hasChangeVerb = true
			break
		}
	}

	newPart := utterance
	if markerLoc != nil {
		newPart = utterance[markerLoc[1]:]
	}
	value, found := h.extractNewValue(field, session, utterance, newPart)

	// A named field with no parseable new value is only a correction when
	// the user signalled change intent; otherwise it is ordinary input.
	if !found {
		if markerLoc == nil && !hasChangeVerb {
			return nil, false
		}
		session.CorrectionContext = &models.CorrectionContext{FieldKey: field.Key, AskedAt: time.Now()}
		return &models.TurnResponse{
			PromptText:   fmt.Sprintf("%s을(를) 어떤 값으로 변경할까요?", field.DisplayName),
			ResponseType: models.ResponseTypeNarrative,
			Route:        models.RouteScenario,
		}, true
	}

	if current, ok := session.Collected.Get(field.Key); ok && scenario.FormatValue(current) == scenario.FormatValue(value) && markerLoc == nil && !hasChangeVerb {
		// Restating the already-stored value is not a correction.
		return nil, false
	}

	if valid, msg := extract.ValidateField(value, field); !valid {
		return &models.TurnResponse{
			PromptText:   msg,
			ResponseType: models.ResponseTypeNarrative,
			Route:        models.RouteScenario,
		}, true
	}

	session.Collected.Set(field.Key, value)
	slog.Info("Correction applied",
		"sessionID", session.SessionID, "field", field.Key, "stage", session.CurrentStageID)
	return &models.TurnResponse{
		PromptText:   fmt.Sprintf("네, %s을(를) %s(으)로 변경했습니다.", field.DisplayName, scenario.FormatValue(value)),
		ResponseType: models.ResponseTypeNarrative,
		Route:        models.RouteScenario,
	}, true
}

// resolvePendingCorrection consumes the answer to an earlier clarifying
// question about which value a field should take.
func (h *CorrectionHandler) resolvePendingCorrection(sc *scenario.Scenario, session *models.SessionState, stage *models.StageDefinition, utterance string) (*models.TurnResponse, bool) {
	key := session.CorrectionContext.FieldKey
	field, ok := sc.Field(key)
	if !ok {
		session.CorrectionContext = nil
		return nil, false
	}
	value, found := h.extractNewValue(field, session, utterance, utterance)
	if !found {
		return &models.TurnResponse{
			PromptText:   fmt.Sprintf("%s의 새로운 값을 다시 말씀해 주세요.", field.DisplayName),
			ResponseType: models.ResponseTypeNarrative,
			Route:        models.RouteScenario,
		}, true
	}
	if valid, msg := extract.ValidateField(value, field); !valid {
		return &models.TurnResponse{
			PromptText:   msg,
			ResponseType: models.ResponseTypeNarrative,
			Route:        models.RouteScenario,
		}, true
	}
	session.CorrectionContext = nil
	session.Collected.Set(key, value)
	slog.Info("Pending correction resolved", "sessionID", session.SessionID, "field", key)
	return &models.TurnResponse{
		PromptText:   fmt.Sprintf("네, %s을(를) %s(으)로 변경했습니다.", field.DisplayName, scenario.FormatValue(value)),
		ResponseType: models.ResponseTypeNarrative,
		Route:        models.RouteScenario,
	}, true
}

// findNamedCollectedField returns the collected field the utterance refers
// to by display name, keyword, or current value. Fields the current stage is
// actively collecting are excluded: overwriting those is ordinary stage
// processing, not a correction.
func (h *CorrectionHandler) findNamedCollectedField(sc *scenario.Scenario, session *models.SessionState, stage *models.StageDefinition, utterance string) *models.FieldDefinition {
	activelyCollected := make(map[string]bool, len(stage.FieldsToCollect))
	for _, k := range stage.FieldsToCollect {
		activelyCollected[k] = true
	}

	for _, f := range sc.Def.FieldRegistry {
		if !session.Collected.Has(f.Key) || activelyCollected[f.Key] {
			continue
		}
		if f.DisplayName != "" && strings.Contains(utterance, f.DisplayName) {
			return f
		}
		for _, kw := range f.Keywords {
			if kw != "" && strings.Contains(utterance, kw) {
				return f
			}
		}
		// Contrastive form naming the old value: "보안카드가 아니라 ...".
		if f.Type == models.FieldTypeChoice {
			if cur, ok := session.Collected.String(f.Key); ok {
				for _, c := range f.Choices {
					if c.Value == cur && strings.Contains(utterance, c.Label) {
						return f
					}
				}
			}
		}
		if cur, ok := session.Collected.String(f.Key); ok && cur != "" && strings.Contains(utterance, cur) {
			return f
		}
	}
	return nil
}

// extractNewValue reads the replacement value for a field, preferring the
// text after a contrastive marker.
func (h *CorrectionHandler) extractNewValue(field *models.FieldDefinition, session *models.SessionState, utterance, newPart string) (any, bool) {
	switch field.Type {
	case models.FieldTypeText:
		if field.Pattern == "phone" {
			current, _ := session.Collected.String(field.Key)
			phones := extract.ParsePhoneAll(utterance)
			for i := len(phones) - 1; i >= 0; i-- {
				if phones[i] != current {
					return phones[i], true
				}
			}
			return nil, false
		}
		return firstOK(extract.ParseShortText(newPart))

	case models.FieldTypeChoice:
		if v, ok := extract.MatchChoice(newPart, field.Choices); ok {
			return v, true
		}
		return nil, false

	case models.FieldTypeNumber:
		amounts := extract.ParseAmounts(newPart)
		if len(amounts) == 0 {
			return nil, false
		}
		a := amounts[len(amounts)-1]
		if strings.Contains(field.Unit, "원") && a.Monetary {
			switch field.Unit {
			case "만원":
				return a.Won / 1e4, true
			case "억원":
				return a.Won / 1e8, true
			}
		}
		return a.Won, true

	case models.FieldTypeBoolean:
		if v, ok := extract.ParsePolarity(newPart); ok {
			return v, true
		}
		return nil, false
	}
	return nil, false
}

func firstOK(s string, ok bool) (any, bool) {
	if !ok {
		return nil, false
	}
	return s, true
}
