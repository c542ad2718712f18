package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/modubank/counselbot/internal/extract"
	"github.com/modubank/counselbot/internal/genai"
	"github.com/modubank/counselbot/internal/models"
	"github.com/modubank/counselbot/internal/scenario"
)

// DefaultMaxStageVisits is the loop-guard ceiling used when none is
// configured.
const DefaultMaxStageVisits = 3

// Engine is the per-scenario stage transition state machine. States are the
// scenario's stage ids plus the COMPLETE and ABORTED terminals.
type Engine struct {
	client         genai.ClientInterface
	extractor      *extract.Extractor
	projector      *Projector
	maxStageVisits int
}

// NewEngine creates a transition engine. maxStageVisits <= 0 selects the
// default loop-guard ceiling.
func NewEngine(client genai.ClientInterface, extractor *extract.Extractor, projector *Projector, maxStageVisits int) *Engine {
	if maxStageVisits <= 0 {
		maxStageVisits = DefaultMaxStageVisits
	}
	return &Engine{
		client:         client,
		extractor:      extractor,
		projector:      projector,
		maxStageVisits: maxStageVisits,
	}
}

// NeedsClassification is the explicit boundary between the deterministic and
// LLM-assisted transition tiers: a stage needs the classification capability
// only when it declares a transition without a structured when expression.
func NeedsClassification(sc *scenario.Scenario, stage *models.StageDefinition) bool {
	for i := range stage.Transitions {
		if sc.TransitionWhen(stage.ID, i) == nil {
			return true
		}
	}
	return false
}

// ProcessTurn runs one utterance through extraction, validation, and
// transition resolution for an in-scenario session. It mutates session
// (the orchestrator hands it a clone and commits on success) and always
// returns a coherent user-facing response.
func (e *Engine) ProcessTurn(ctx context.Context, sc *scenario.Scenario, session *models.SessionState, utterance string) *models.TurnResponse {
	stage, ok := sc.Stage(session.CurrentStageID)
	if !ok {
		slog.Error("Engine at unknown stage", "sessionID", session.SessionID, "stage", session.CurrentStageID)
		return &models.TurnResponse{
			PromptText:   sc.FallbackMessage(nil),
			ResponseType: models.ResponseTypeNarrative,
			Route:        models.RouteScenario,
		}
	}

	visits := session.BumpVisit(stage.ID)

	expected := e.projector.ExpectedFields(sc, session, stage)
	result := e.extractor.Extract(ctx, utterance, expected, session.Collected)

	var validFields []*models.FieldDefinition
	for _, f := range expected {
		if v, ok := result.Found[f.Key]; ok {
			session.Collected.Set(f.Key, v)
			validFields = append(validFields, f)
		}
	}
	e.projector.ApplyDefaults(sc, session)
	missing := e.projector.MissingRequired(sc, session, stage)

	slog.Debug("Engine processed extraction",
		"sessionID", session.SessionID, "stage", stage.ID, "visits", visits,
		"found", len(result.Found), "invalid", len(result.Invalid), "missing", len(missing))

	// Loop guard: force a deterministic forward transition regardless of the
	// normal resolution order so the scenario always terminates.
	if visits > e.maxStageVisits {
		target := stage.DefaultNextStageID
		if target == "" {
			target = models.StateAborted
		}
		slog.Warn("Engine loop guard triggered",
			"sessionID", session.SessionID, "stage", stage.ID, "visits", visits, "forcedTarget", target)
		return e.advance(sc, session, target)
	}

	// 1. Explicit transitions, first match in declaration order. A rejected
	// value blocks any advance: the customer hears what was wrong first.
	if len(stage.Transitions) > 0 && len(result.Invalid) == 0 {
		if target, ok := e.resolveTransition(ctx, sc, stage, session, utterance); ok {
			return e.advance(sc, session, target)
		}
	}

	// Skippable stages advance on an explicit skip request.
	if stage.Skippable && isSkipRequest(utterance) && stage.DefaultNextStageID != "" {
		return e.advance(sc, session, stage.DefaultNextStageID)
	}

	// 2. Every required visible field collected: take the default edge.
	if len(missing) == 0 && len(result.Invalid) == 0 && stage.DefaultNextStageID != "" {
		return e.advance(sc, session, stage.DefaultNextStageID)
	}

	// 3. Stay and re-prompt, limited to what is rejected or still missing.
	msg := ComposeReprompt(sc, stage, session.Collected, validFields, result.Invalid, missing)
	return e.stageResponse(stage, msg)
}

// resolveTransition evaluates the two-tier transition strategy. Structured
// when expressions are checked first and never require an external call; the
// classification capability is consulted only for genuinely branching
// decisions, and any failure there simply leaves the transition unresolved.
func (e *Engine) resolveTransition(ctx context.Context, sc *scenario.Scenario, stage *models.StageDefinition, session *models.SessionState, utterance string) (string, bool) {
	for i, tr := range stage.Transitions {
		if cond := sc.TransitionWhen(stage.ID, i); cond != nil && cond.Eval(session.Collected) {
			slog.Debug("Engine transition matched deterministically",
				"stage", stage.ID, "target", tr.TargetStageID, "when", tr.When)
			return tr.TargetStageID, true
		}
	}

	if !NeedsClassification(sc, stage) || e.client == nil || strings.TrimSpace(utterance) == "" {
		return "", false
	}

	idx, err := e.classifyTransition(ctx, stage, utterance)
	if err != nil {
		slog.Warn("Engine transition classification failed", "stage", stage.ID, "error", err)
		return "", false
	}
	if idx < 0 || idx >= len(stage.Transitions) {
		return "", false
	}
	// The classifier only arbitrates branches that lack a structured
	// expression; expression-bearing branches already had their say.
	if sc.TransitionWhen(stage.ID, idx) != nil {
		return "", false
	}
	slog.Debug("Engine transition classified", "stage", stage.ID, "target", stage.Transitions[idx].TargetStageID)
	return stage.Transitions[idx].TargetStageID, true
}

const transitionSystemPrompt = `당신은 은행 상담 시나리오의 분기 판단 어시스턴트입니다.
고객 발화가 아래 분기 조건들 중 어디에 해당하는지 판단하세요.
해당하는 분기가 있으면 {"transition": 분기번호}, 없으면 {"transition": -1} 형태의 JSON으로만 답하세요.`

func (e *Engine) classifyTransition(ctx context.Context, stage *models.StageDefinition, utterance string) (int, error) {
	var b strings.Builder
	b.WriteString("분기 목록:\n")
	for i, tr := range stage.Transitions {
		fmt.Fprintf(&b, "%d. %s", i, tr.Condition)
		if len(tr.Examples) > 0 {
			fmt.Fprintf(&b, " (예: %s)", strings.Join(tr.Examples, " / "))
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\n고객 발화: %s\n", utterance)

	var out struct {
		Transition *int `json:"transition"`
	}
	if err := genai.ClassifyJSON(ctx, e.client, transitionSystemPrompt, b.String(), &out); err != nil {
		return -1, err
	}
	if out.Transition == nil {
		return -1, nil
	}
	return *out.Transition, nil
}

// advance moves the session to the target stage or terminal and produces the
// next response.
func (e *Engine) advance(sc *scenario.Scenario, session *models.SessionState, target string) *models.TurnResponse {
	if models.IsTerminalStageID(target) {
		terminal := models.TerminalState(target)
		session.CurrentStageID = terminal
		msg := sc.Def.AbortMessage
		if terminal == models.StateComplete {
			msg = sc.Def.CompletionMessage
		}
		if msg == "" {
			if terminal == models.StateComplete {
				msg = "신청이 완료되었습니다. 이용해 주셔서 감사합니다."
			} else {
				msg = "상담을 종료할게요. 더 필요하신 것이 있으면 말씀해 주세요."
			}
		}
		if rendered, err := scenario.RenderPrompt(msg, session.Collected, nil); err == nil {
			msg = rendered
		}
		slog.Info("Engine scenario reached terminal",
			"sessionID", session.SessionID, "scenario", sc.ID(), "terminal", terminal)
		return &models.TurnResponse{
			PromptText:   msg,
			ResponseType: models.ResponseTypeNarrative,
			Route:        models.RouteScenario,
			Terminal:     terminal,
		}
	}

	session.CurrentStageID = target
	session.MarkVisited(target)
	next, ok := sc.Stage(target)
	if !ok {
		// Load-time validation makes this unreachable; fail soft anyway.
		slog.Error("Engine advanced to unknown stage", "sessionID", session.SessionID, "target", target)
		return &models.TurnResponse{
			PromptText:   sc.FallbackMessage(nil),
			ResponseType: models.ResponseTypeNarrative,
			Route:        models.RouteScenario,
		}
	}
	e.projector.ApplyDefaults(sc, session)

	prompt, err := scenario.RenderPrompt(next.Prompt, session.Collected, next)
	if err != nil {
		slog.Error("Engine prompt rendering failed", "stage", next.ID, "error", err)
		prompt = sc.FallbackMessage(next)
	}
	return e.stageResponse(next, prompt)
}

func (e *Engine) stageResponse(stage *models.StageDefinition, text string) *models.TurnResponse {
	rt := stage.ResponseType
	if rt == "" {
		rt = models.ResponseTypeNarrative
	}
	return &models.TurnResponse{
		PromptText:   text,
		ResponseType: rt,
		Choices:      stage.Choices,
		ChoiceGroups: stage.ChoiceGroups,
		Route:        models.RouteScenario,
	}
}

var skipForms = []string{"건너뛰", "스킵", "넘어가", "다음으로", "생략"}

func isSkipRequest(utterance string) bool {
	for _, f := range skipForms {
		if strings.Contains(utterance, f) {
			return true
		}
	}
	return false
}
