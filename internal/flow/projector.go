// Package flow implements the dialogue core: the slot-filling projector, the
// stage transition engine, the correction/clarification handler, re-prompt
// composition, and the per-turn orchestrator that ties them together.
package flow

import (
	"math"

	"github.com/modubank/counselbot/internal/models"
	"github.com/modubank/counselbot/internal/scenario"
)

// Projector derives the visible-field view of a session: which fields should
// be displayed and collected right now, their hierarchy depth, the completion
// rate, and the serializable slot snapshot. It is a pure function of scenario
// and session state; identical inputs yield identical snapshots.
type Projector struct{}

// NewProjector creates a projector.
func NewProjector() *Projector {
	return &Projector{}
}

// candidateFields returns, in registry order, the fields reachable from the
// session's visited stages: named in fields_to_collect or belonging to a
// field group those stages declare.
func (p *Projector) candidateFields(sc *scenario.Scenario, session *models.SessionState) []*models.FieldDefinition {
	keys := make(map[string]bool)
	groups := make(map[string]bool)
	consider := func(stageID string) {
		st, ok := sc.Stage(stageID)
		if !ok {
			return
		}
		for _, k := range st.FieldsToCollect {
			keys[k] = true
		}
		for _, g := range st.FieldGroups {
			groups[g] = true
		}
	}
	for _, id := range session.VisitedStages {
		consider(id)
	}
	consider(session.CurrentStageID)

	var out []*models.FieldDefinition
	for _, f := range sc.Def.FieldRegistry {
		if keys[f.Key] || (f.Group != "" && groups[f.Group]) {
			out = append(out, f)
		}
	}
	return out
}

// VisibleFields returns the ordered candidate fields whose show_when passes
// against the current collected info. Visibility is recomputed on every call;
// nothing is cached across CollectedInfo mutations.
func (p *Projector) VisibleFields(sc *scenario.Scenario, session *models.SessionState) []*models.FieldDefinition {
	var out []*models.FieldDefinition
	for _, f := range p.candidateFields(sc, session) {
		if sc.FieldVisible(f.Key, session.Collected) {
			out = append(out, f)
		}
	}
	return out
}

// ApplyDefaults writes declared defaults into newly visible fields that have
// no collected value yet, marking them completed without user input. It
// iterates until stable because a default can toggle another field visible.
// Returns the keys it filled.
func (p *Projector) ApplyDefaults(sc *scenario.Scenario, session *models.SessionState) []string {
	var applied []string
	for range sc.Def.FieldRegistry {
		changed := false
		for _, f := range p.VisibleFields(sc, session) {
			if f.Default == nil || session.Collected.Has(f.Key) {
				continue
			}
			session.Collected.Set(f.Key, f.Default)
			applied = append(applied, f.Key)
			changed = true
		}
		if !changed {
			break
		}
	}
	return applied
}

// CompletionRate reports collected visible required fields over all visible
// required fields as a 0-100 percentage rounded to one decimal. Invisible
// fields' stale values count neither way; zero visible required fields is
// 100% complete.
func (p *Projector) CompletionRate(sc *scenario.Scenario, session *models.SessionState) float64 {
	required, collected := 0, 0
	for _, f := range p.VisibleFields(sc, session) {
		if !f.Required {
			continue
		}
		required++
		if session.Collected.Has(f.Key) {
			collected++
		}
	}
	if required == 0 {
		return 100
	}
	return math.Round(float64(collected)/float64(required)*1000) / 10
}

// Snapshot builds the slot-filling snapshot consumed by the UI collaborator.
// It is safe to recompute and re-send at any time.
func (p *Projector) Snapshot(sc *scenario.Scenario, session *models.SessionState) *models.SlotSnapshot {
	visible := p.VisibleFields(sc, session)

	collectedInfo := make(map[string]any, len(visible))
	var required []models.SnapshotField
	groupKeys := make(map[string][]string)
	for _, f := range visible {
		if v, ok := session.Collected.Get(f.Key); ok && v != nil {
			collectedInfo[f.Key] = v
		}
		if f.Group != "" {
			groupKeys[f.Group] = append(groupKeys[f.Group], f.Key)
		}
		if !f.Required {
			continue
		}
		value, _ := session.Collected.Get(f.Key)
		required = append(required, models.SnapshotField{
			Key:         f.Key,
			DisplayName: f.DisplayName,
			Collected:   session.Collected.Has(f.Key),
			Depth:       sc.FieldDepth(f.Key),
			Value:       value,
			Group:       f.Group,
		})
	}

	var groups []models.SnapshotGroup
	for _, g := range sc.Def.FieldGroups {
		keys, ok := groupKeys[g.Name]
		if !ok {
			continue
		}
		groups = append(groups, models.SnapshotGroup{
			Name:        g.Name,
			DisplayName: g.DisplayName,
			FieldKeys:   keys,
		})
	}

	return &models.SlotSnapshot{
		ProductType:    sc.Def.ProductType,
		CurrentStage:   session.CurrentStageID,
		CollectedInfo:  collectedInfo,
		RequiredFields: required,
		FieldGroups:    groups,
		CompletionRate: p.CompletionRate(sc, session),
	}
}

// MissingRequired returns the current stage's required, visible, uncollected
// fields in declaration order.
func (p *Projector) MissingRequired(sc *scenario.Scenario, session *models.SessionState, stage *models.StageDefinition) []*models.FieldDefinition {
	var out []*models.FieldDefinition
	for _, key := range stage.FieldsToCollect {
		f, ok := sc.Field(key)
		if !ok || !f.Required {
			continue
		}
		if !sc.FieldVisible(f.Key, session.Collected) {
			continue
		}
		if !session.Collected.Has(f.Key) {
			out = append(out, f)
		}
	}
	return out
}

// ExpectedFields returns the current stage's visible collectible fields, the
// set the extractor should attempt against an utterance.
func (p *Projector) ExpectedFields(sc *scenario.Scenario, session *models.SessionState, stage *models.StageDefinition) []*models.FieldDefinition {
	var out []*models.FieldDefinition
	for _, key := range stage.FieldsToCollect {
		f, ok := sc.Field(key)
		if !ok {
			continue
		}
		if !sc.FieldVisible(f.Key, session.Collected) {
			continue
		}
		out = append(out, f)
	}
	return out
}
