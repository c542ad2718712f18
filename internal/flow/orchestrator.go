package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/modubank/counselbot/internal/extract"
	"github.com/modubank/counselbot/internal/genai"
	"github.com/modubank/counselbot/internal/models"
	"github.com/modubank/counselbot/internal/scenario"
	"github.com/modubank/counselbot/internal/store"
)

// QAService answers banking product/policy questions. Provided by the
// retrieval-augmented-QA collaborator, outside the core.
type QAService interface {
	Answer(ctx context.Context, question string) (string, error)
}

// SearchService answers questions needing fresh external information.
// Provided by the web-search collaborator, outside the core.
type SearchService interface {
	Search(ctx context.Context, query string) (string, error)
}

// DefaultHistoryLimit bounds per-session message history.
const DefaultHistoryLimit = 20

// Config wires an Orchestrator.
type Config struct {
	Registry       *scenario.Registry
	Store          store.Store
	Client         genai.ClientInterface // nil disables every LLM tier
	QA             QAService             // optional
	Search         SearchService         // optional
	MaxStageVisits int
	HistoryLimit   int
	WelcomeMessage string
}

// Orchestrator is the top-level per-turn loop: it routes each utterance to
// scenario continuation, QA, web search, or chit-chat, and packages the
// response together with the slot-filling snapshot. Turns of one session are
// serialized; turn mutations are applied to a clone and committed only when
// the whole turn succeeds.
type Orchestrator struct {
	registry     *scenario.Registry
	store        store.Store
	client       genai.ClientInterface
	qa           QAService
	search       SearchService
	projector    *Projector
	engine       *Engine
	correction   *CorrectionHandler
	router       *Router
	historyLimit int
	welcome      string

	locks sync.Map // session id -> *sync.Mutex
}

// NewOrchestrator builds the orchestrator and its internal components.
func NewOrchestrator(cfg Config) *Orchestrator {
	projector := NewProjector()
	extractor := extract.New(cfg.Client)
	historyLimit := cfg.HistoryLimit
	if historyLimit == 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Orchestrator{
		registry:     cfg.Registry,
		store:        cfg.Store,
		client:       cfg.Client,
		qa:           cfg.QA,
		search:       cfg.Search,
		projector:    projector,
		engine:       NewEngine(cfg.Client, extractor, projector, cfg.MaxStageVisits),
		correction:   NewCorrectionHandler(),
		router:       NewRouter(cfg.Registry, cfg.Client),
		historyLimit: historyLimit,
		welcome:      cfg.WelcomeMessage,
	}
}

// StartSession creates a fresh session and returns its greeting.
func (o *Orchestrator) StartSession(ctx context.Context) (*models.SessionState, *models.TurnResponse, error) {
	session := models.NewSessionState(uuid.NewString())
	if err := o.store.Create(session); err != nil {
		return nil, nil, fmt.Errorf("start session: %w", err)
	}
	greeting := o.welcome
	if greeting == "" {
		var names []string
		for _, sc := range o.registry.All() {
			names = append(names, sc.Def.DisplayName)
		}
		greeting = fmt.Sprintf("안녕하세요, 무엇을 도와드릴까요? %s 상담을 도와드릴 수 있어요.", strings.Join(names, ", "))
	}
	session.AppendHistory("assistant", greeting, o.historyLimit)
	slog.Info("Session started", "sessionID", session.SessionID)
	return session, &models.TurnResponse{
		PromptText:   greeting,
		ResponseType: models.ResponseTypeNarrative,
		Route:        models.RouteChitChat,
	}, nil
}

// EndSession discards a session.
func (o *Orchestrator) EndSession(sessionID string) {
	o.store.Delete(sessionID)
	o.locks.Delete(sessionID)
	slog.Info("Session ended", "sessionID", sessionID)
}

// Snapshot recomputes the slot-filling snapshot for a session. It is a pure
// projection and safe to call at any time.
func (o *Orchestrator) Snapshot(sessionID string) (*models.SlotSnapshot, error) {
	session, err := o.store.Get(sessionID)
	if err != nil {
		return nil, err
	}
	sc, ok := o.registry.Get(session.ActiveScenarioID)
	if !ok {
		return nil, fmt.Errorf("session %q has no active scenario: %w", sessionID, models.ErrScenarioNotFound)
	}
	return o.projector.Snapshot(sc, session), nil
}

func (o *Orchestrator) sessionLock(sessionID string) *sync.Mutex {
	mu, _ := o.locks.LoadOrStore(sessionID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// HandleTurn processes one utterance to completion. Within a session turns
// run strictly in arrival order; an error return leaves the stored session
// state untouched.
func (o *Orchestrator) HandleTurn(ctx context.Context, sessionID, utterance string) (*models.TurnResponse, error) {
	mu := o.sessionLock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	current, err := o.store.Get(sessionID)
	if err != nil {
		return nil, err
	}

	work := current.Clone()
	work.AppendHistory("user", utterance, o.historyLimit)

	resp := o.processTurn(ctx, work, utterance)

	work.AppendHistory("assistant", resp.PromptText, o.historyLimit)
	if err := o.store.Save(work); err != nil {
		return nil, fmt.Errorf("commit turn: %w", err)
	}
	return resp, nil
}

// processTurn never fails: every internal error degrades to a coherent
// natural-language response.
func (o *Orchestrator) processTurn(ctx context.Context, work *models.SessionState, utterance string) *models.TurnResponse {
	if work.InScenario() {
		return o.continueScenario(ctx, work, utterance)
	}
	return o.routeOpenTurn(ctx, work, utterance)
}

func (o *Orchestrator) continueScenario(ctx context.Context, work *models.SessionState, utterance string) *models.TurnResponse {
	sc, ok := o.registry.Get(work.ActiveScenarioID)
	if !ok {
		slog.Error("Active scenario missing from registry", "sessionID", work.SessionID, "scenario", work.ActiveScenarioID)
		work.ActiveScenarioID = ""
		work.CurrentStageID = ""
		return &models.TurnResponse{
			PromptText:   "죄송합니다. 진행 중이던 상담을 이어갈 수 없어 처음으로 돌아갈게요. 무엇을 도와드릴까요?",
			ResponseType: models.ResponseTypeNarrative,
			Route:        models.RouteChitChat,
		}
	}

	if resp, handled := o.correction.Handle(sc, work, utterance); handled {
		o.attachSnapshot(sc, work, resp)
		return resp
	}

	// Off-scenario digression at a required-field stage: answer (when a QA
	// collaborator exists) and steer back without moving the stage pointer.
	if stage, ok := sc.Stage(work.CurrentStageID); ok {
		missing := o.projector.MissingRequired(sc, work, stage)
		if len(missing) > 0 && LooksLikeQuestion(utterance) {
			resp := o.answerDigression(ctx, sc, work, stage, utterance, missing)
			o.attachSnapshot(sc, work, resp)
			return resp
		}
	}

	resp := o.engine.ProcessTurn(ctx, sc, work, utterance)
	o.attachSnapshot(sc, work, resp)
	return resp
}

func (o *Orchestrator) answerDigression(ctx context.Context, sc *scenario.Scenario, work *models.SessionState, stage *models.StageDefinition, utterance string, missing []*models.FieldDefinition) *models.TurnResponse {
	answer := ""
	route := models.RouteScenario
	if o.qa != nil {
		a, err := o.qa.Answer(ctx, utterance)
		if err != nil {
			slog.Warn("QA collaborator failed during digression", "sessionID", work.SessionID, "error", err)
		} else {
			answer = a
			route = models.RouteQA
		}
	}
	return &models.TurnResponse{
		PromptText:   SteeringResponse(sc, stage, work.Collected, answer, missing),
		ResponseType: models.ResponseTypeNarrative,
		Choices:      stage.Choices,
		ChoiceGroups: stage.ChoiceGroups,
		Route:        route,
	}
}

func (o *Orchestrator) routeOpenTurn(ctx context.Context, work *models.SessionState, utterance string) *models.TurnResponse {
	decision := o.router.Route(ctx, utterance)
	slog.Debug("Orchestrator routed open turn", "sessionID", work.SessionID, "route", decision.Route, "scenario", decision.ScenarioID)

	switch decision.Route {
	case models.RouteScenario:
		sc, ok := o.registry.Get(decision.ScenarioID)
		if !ok {
			break
		}
		return o.startScenario(sc, work)

	case models.RouteQA:
		if o.qa != nil {
			if answer, err := o.qa.Answer(ctx, utterance); err == nil {
				return &models.TurnResponse{PromptText: answer, ResponseType: models.ResponseTypeNarrative, Route: models.RouteQA}
			} else {
				slog.Warn("QA collaborator failed", "sessionID", work.SessionID, "error", err)
			}
		}

	case models.RouteWebSearch:
		if o.search != nil {
			if answer, err := o.search.Search(ctx, utterance); err == nil {
				return &models.TurnResponse{PromptText: answer, ResponseType: models.ResponseTypeNarrative, Route: models.RouteWebSearch}
			} else {
				slog.Warn("Search collaborator failed", "sessionID", work.SessionID, "error", err)
			}
		}

	case models.RouteChitChat:
		if reply, err := o.chitChat(ctx, utterance); err == nil {
			return &models.TurnResponse{PromptText: reply, ResponseType: models.ResponseTypeNarrative, Route: models.RouteChitChat}
		}
	}

	return &models.TurnResponse{
		PromptText:   "죄송합니다, 그 부분은 지금 바로 답변드리기 어려워요. 대출 신청이나 계좌 개설 상담을 도와드릴까요?",
		ResponseType: models.ResponseTypeNarrative,
		Route:        models.RouteChitChat,
	}
}

// startScenario activates a scenario at its initial stage and renders the
// opening prompt.
func (o *Orchestrator) startScenario(sc *scenario.Scenario, work *models.SessionState) *models.TurnResponse {
	work.ActiveScenarioID = sc.ID()
	work.CurrentStageID = sc.Def.InitialStageID
	work.MarkVisited(sc.Def.InitialStageID)
	o.projector.ApplyDefaults(sc, work)

	stage, _ := sc.Stage(sc.Def.InitialStageID)
	prompt, err := scenario.RenderPrompt(stage.Prompt, work.Collected, stage)
	if err != nil {
		slog.Error("Initial prompt rendering failed", "scenario", sc.ID(), "error", err)
		prompt = sc.FallbackMessage(stage)
	}
	slog.Info("Scenario started", "sessionID", work.SessionID, "scenario", sc.ID())

	rt := stage.ResponseType
	if rt == "" {
		rt = models.ResponseTypeNarrative
	}
	resp := &models.TurnResponse{
		PromptText:   prompt,
		ResponseType: rt,
		Choices:      stage.Choices,
		ChoiceGroups: stage.ChoiceGroups,
		Route:        models.RouteScenario,
	}
	o.attachSnapshot(sc, work, resp)
	return resp
}

const chitChatSystemPrompt = `당신은 한국 은행의 친절한 상담원입니다. 고객의 인사나 가벼운 대화에 짧고 자연스럽게 한국어로 답하세요.
은행 업무와 무관한 주제는 정중히 상담 주제로 유도하세요. 답변은 두 문장 이내로 하세요.`

func (o *Orchestrator) chitChat(ctx context.Context, utterance string) (string, error) {
	if o.client == nil {
		return "", fmt.Errorf("no chat capability configured")
	}
	return o.client.Classify(ctx, chitChatSystemPrompt, utterance)
}

func (o *Orchestrator) attachSnapshot(sc *scenario.Scenario, work *models.SessionState, resp *models.TurnResponse) {
	resp.SlotSnapshot = o.projector.Snapshot(sc, work)
}
