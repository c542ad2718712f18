package scenario

import (
	"fmt"
	"sort"
	"strings"

	"github.com/modubank/counselbot/internal/models"
)

// Scenario is the compiled, immutable form of a scenario definition:
// show_when conditions parsed once, field hierarchy depths precomputed.
// Safe for concurrent use by any number of sessions.
type Scenario struct {
	Def        *models.ScenarioDefinition
	conditions map[string]Condition
	transWhen  map[string][]Condition // stage id -> per-transition when, nil when unset
	depths     map[string]int
}

// ID returns the scenario id.
func (s *Scenario) ID() string { return s.Def.ID }

// Field returns the field definition for a key.
func (s *Scenario) Field(key string) (*models.FieldDefinition, bool) {
	return s.Def.Field(key)
}

// Stage returns the stage definition for an id.
func (s *Scenario) Stage(id string) (*models.StageDefinition, bool) {
	return s.Def.Stage(id)
}

// FieldVisible reports whether a field passes its show_when condition against
// the current collected info. Fields without a condition are always visible.
func (s *Scenario) FieldVisible(key string, info models.CollectedInfo) bool {
	cond, ok := s.conditions[key]
	if !ok {
		return true
	}
	return cond.Eval(info)
}

// FieldDepth returns the display hierarchy depth of a field (hops to the
// root of its parent_field chain).
func (s *Scenario) FieldDepth(key string) int {
	return s.depths[key]
}

// TransitionWhen returns the compiled structured condition of a stage's i-th
// transition, or nil when the transition only has a natural-language
// condition and needs the classification capability.
func (s *Scenario) TransitionWhen(stageID string, i int) Condition {
	conds, ok := s.transWhen[stageID]
	if !ok || i >= len(conds) {
		return nil
	}
	return conds[i]
}

// FallbackMessage returns the stage's fallback message if declared, else the
// scenario-wide one, else a generic Korean apology.
func (s *Scenario) FallbackMessage(stage *models.StageDefinition) string {
	if stage != nil && stage.FallbackMessage != "" {
		return stage.FallbackMessage
	}
	if s.Def.FallbackMessage != "" {
		return s.Def.FallbackMessage
	}
	return "죄송합니다. 잠시 문제가 발생했습니다. 다시 한 번 말씀해 주시겠어요?"
}

// Registry is the immutable catalog of compiled scenarios, shared read-only
// across all sessions.
type Registry struct {
	scenarios map[string]*Scenario
	order     []string
}

// NewRegistry compiles and validates scenario definitions. Any structural
// error is a *models.ScenarioConfigError and rejects the whole registry:
// malformed scenarios are fatal at load time, not at runtime.
func NewRegistry(defs ...*models.ScenarioDefinition) (*Registry, error) {
	r := &Registry{scenarios: make(map[string]*Scenario, len(defs))}
	for _, def := range defs {
		sc, err := compile(def)
		if err != nil {
			return nil, err
		}
		if _, dup := r.scenarios[def.ID]; dup {
			return nil, &models.ScenarioConfigError{ScenarioID: def.ID, Detail: "duplicate scenario id"}
		}
		r.scenarios[def.ID] = sc
		r.order = append(r.order, def.ID)
	}
	sort.Strings(r.order)
	return r, nil
}

// Get returns the compiled scenario for an id.
func (r *Registry) Get(id string) (*Scenario, bool) {
	sc, ok := r.scenarios[id]
	return sc, ok
}

// IDs returns all registered scenario ids, sorted.
func (r *Registry) IDs() []string {
	return append([]string(nil), r.order...)
}

// All returns all compiled scenarios in id order.
func (r *Registry) All() []*Scenario {
	out := make([]*Scenario, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.scenarios[id])
	}
	return out
}

// MatchKeywords returns the first scenario whose declared keywords appear in
// the utterance. Used as the no-LLM tier of scenario-start routing.
func (r *Registry) MatchKeywords(utterance string) (*Scenario, bool) {
	norm := strings.ToLower(strings.TrimSpace(utterance))
	for _, id := range r.order {
		sc := r.scenarios[id]
		for _, kw := range sc.Def.Keywords {
			if kw != "" && strings.Contains(norm, strings.ToLower(kw)) {
				return sc, true
			}
		}
	}
	return nil, false
}

func configErr(id, format string, args ...any) *models.ScenarioConfigError {
	return &models.ScenarioConfigError{ScenarioID: id, Detail: fmt.Sprintf(format, args...)}
}

// compile validates one definition and parses its conditions and hierarchy.
func compile(def *models.ScenarioDefinition) (*Scenario, error) {
	if def.ID == "" {
		return nil, configErr("", "missing scenario id")
	}
	if def.InitialStageID == "" {
		return nil, configErr(def.ID, "missing initial_stage_id")
	}
	if _, ok := def.Stages[def.InitialStageID]; !ok {
		return nil, configErr(def.ID, "initial stage %q not defined", def.InitialStageID)
	}

	fieldsByKey := make(map[string]*models.FieldDefinition, len(def.FieldRegistry))
	for _, f := range def.FieldRegistry {
		if f.Key == "" {
			return nil, configErr(def.ID, "field with empty key")
		}
		if _, dup := fieldsByKey[f.Key]; dup {
			return nil, configErr(def.ID, "duplicate field key %q", f.Key)
		}
		switch f.Type {
		case models.FieldTypeText, models.FieldTypeNumber, models.FieldTypeBoolean, models.FieldTypeChoice:
		default:
			return nil, configErr(def.ID, "field %q has unknown type %q", f.Key, f.Type)
		}
		if f.Type == models.FieldTypeChoice && len(f.Choices) == 0 {
			return nil, configErr(def.ID, "choice field %q declares no choices", f.Key)
		}
		fieldsByKey[f.Key] = f
	}

	groups := make(map[string]bool, len(def.FieldGroups))
	for _, g := range def.FieldGroups {
		groups[g.Name] = true
	}
	for _, f := range def.FieldRegistry {
		if f.Group != "" && !groups[f.Group] {
			return nil, configErr(def.ID, "field %q references unknown group %q", f.Key, f.Group)
		}
		if f.ParentField != "" {
			if _, ok := fieldsByKey[f.ParentField]; !ok {
				return nil, configErr(def.ID, "field %q references unknown parent %q", f.Key, f.ParentField)
			}
		}
	}

	// Parse show_when expressions once and check their field references.
	conditions := make(map[string]Condition)
	for _, f := range def.FieldRegistry {
		if f.ShowWhen == "" {
			continue
		}
		cond, err := ParseCondition(f.ShowWhen)
		if err != nil {
			return nil, &models.ScenarioConfigError{
				ScenarioID: def.ID,
				Detail:     fmt.Sprintf("field %q has invalid show_when %q", f.Key, f.ShowWhen),
				Err:        err,
			}
		}
		for _, ref := range conditionFieldRefs(cond) {
			if _, ok := fieldsByKey[ref]; !ok {
				return nil, configErr(def.ID, "field %q show_when references unknown field %q", f.Key, ref)
			}
		}
		conditions[f.Key] = cond
	}

	// Hierarchy depths, rejecting parent cycles.
	depths := make(map[string]int, len(def.FieldRegistry))
	for _, f := range def.FieldRegistry {
		depth := 0
		seen := map[string]bool{f.Key: true}
		cur := f
		for cur.ParentField != "" {
			if seen[cur.ParentField] {
				return nil, configErr(def.ID, "field %q has a parent_field cycle", f.Key)
			}
			seen[cur.ParentField] = true
			cur = fieldsByKey[cur.ParentField]
			depth++
		}
		depths[f.Key] = depth
	}

	// Stage graph checks: every reachable target must be a stage or terminal,
	// every referenced field must be declared, every stage must be exitable.
	transWhen := make(map[string][]Condition)
	for id, st := range def.Stages {
		if st.ID == "" {
			st.ID = id
		} else if st.ID != id {
			return nil, configErr(def.ID, "stage map key %q does not match stage id %q", id, st.ID)
		}
		if len(st.Transitions) == 0 && st.DefaultNextStageID == "" {
			return nil, configErr(def.ID, "stage %q has no transitions and no default_next_stage_id", id)
		}
		whens := make([]Condition, len(st.Transitions))
		for i, tr := range st.Transitions {
			if err := checkTarget(def, tr.TargetStageID); err != nil {
				return nil, configErr(def.ID, "stage %q transition: %v", id, err)
			}
			if tr.When == "" {
				continue
			}
			cond, err := ParseCondition(tr.When)
			if err != nil {
				return nil, &models.ScenarioConfigError{
					ScenarioID: def.ID,
					Detail:     fmt.Sprintf("stage %q transition %d has invalid when %q", id, i, tr.When),
					Err:        err,
				}
			}
			for _, ref := range conditionFieldRefs(cond) {
				if _, ok := fieldsByKey[ref]; !ok {
					return nil, configErr(def.ID, "stage %q transition when references unknown field %q", id, ref)
				}
			}
			whens[i] = cond
		}
		transWhen[id] = whens
		if st.DefaultNextStageID != "" {
			if err := checkTarget(def, st.DefaultNextStageID); err != nil {
				return nil, configErr(def.ID, "stage %q default next: %v", id, err)
			}
		}
		for _, key := range st.FieldsToCollect {
			if _, ok := fieldsByKey[key]; !ok {
				return nil, configErr(def.ID, "stage %q collects unknown field %q", id, key)
			}
		}
		for _, key := range st.ModifiableFields {
			if _, ok := fieldsByKey[key]; !ok {
				return nil, configErr(def.ID, "stage %q modifies unknown field %q", id, key)
			}
		}
		for _, g := range st.FieldGroups {
			if !groups[g] {
				return nil, configErr(def.ID, "stage %q references unknown field group %q", id, g)
			}
		}
	}

	return &Scenario{Def: def, conditions: conditions, transWhen: transWhen, depths: depths}, nil
}

func checkTarget(def *models.ScenarioDefinition, target string) error {
	if target == "" {
		return fmt.Errorf("empty target stage id")
	}
	if models.IsTerminalStageID(target) {
		return nil
	}
	if _, ok := def.Stages[target]; !ok {
		return fmt.Errorf("dangling target stage %q", target)
	}
	return nil
}

// conditionFieldRefs walks a parsed condition and returns the field keys it
// references.
func conditionFieldRefs(c Condition) []string {
	var out []string
	var walkCond func(Condition)
	var walkOp func(condOperand)
	walkOp = func(op condOperand) {
		switch o := op.(type) {
		case *fieldRef:
			out = append(out, o.key)
		case *groupExpr:
			walkCond(o.inner)
		}
	}
	walkCond = func(c Condition) {
		switch n := c.(type) {
		case *andExpr:
			walkCond(n.left)
			walkCond(n.right)
		case *orExpr:
			walkCond(n.left)
			walkCond(n.right)
		case *cmpExpr:
			walkOp(n.left)
			walkOp(n.right)
		case *truthyExpr:
			out = append(out, n.field.key)
		}
	}
	walkCond(c)
	return out
}
