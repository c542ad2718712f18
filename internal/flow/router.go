package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/modubank/counselbot/internal/genai"
	"github.com/modubank/counselbot/internal/models"
	"github.com/modubank/counselbot/internal/scenario"
)

// Router decides how an utterance with no active scenario is handled:
// starting a scenario, answering from the QA collaborator, delegating to web
// search, or plain chit-chat. Keyword matching runs first; the classification
// capability is consulted only when keywords are silent.
type Router struct {
	registry *scenario.Registry
	client   genai.ClientInterface
}

// NewRouter creates a router.
func NewRouter(registry *scenario.Registry, client genai.ClientInterface) *Router {
	return &Router{registry: registry, client: client}
}

// Decision is the outcome of routing one utterance.
type Decision struct {
	Route      models.RouteType
	ScenarioID string // set when Route is RouteScenario
}

const routerSystemPrompt = `당신은 은행 상담 챗봇의 의도 분류기입니다.
고객 발화를 아래 중 하나로 분류해 JSON 으로만 답하세요.
- 상담 시나리오 시작: {"intent": "scenario", "scenario_id": "<시나리오 id>"}
- 은행 상품/제도에 대한 질문: {"intent": "qa"}
- 최신 정보가 필요한 질문 (환율, 시세 등): {"intent": "web_search"}
- 인사말이나 잡담: {"intent": "chit_chat"}`

// Route classifies an utterance. It never fails: classification errors fall
// back to a question-shape heuristic.
func (r *Router) Route(ctx context.Context, utterance string) Decision {
	if sc, ok := r.registry.MatchKeywords(utterance); ok {
		slog.Debug("Router matched scenario by keyword", "scenario", sc.ID())
		return Decision{Route: models.RouteScenario, ScenarioID: sc.ID()}
	}

	if r.client != nil {
		if d, err := r.classify(ctx, utterance); err == nil {
			return d
		} else {
			slog.Warn("Router classification failed, using heuristic", "error", err)
		}
	}

	if LooksLikeQuestion(utterance) {
		return Decision{Route: models.RouteQA}
	}
	return Decision{Route: models.RouteChitChat}
}

func (r *Router) classify(ctx context.Context, utterance string) (Decision, error) {
	var b strings.Builder
	b.WriteString("시작 가능한 시나리오 목록:\n")
	for _, sc := range r.registry.All() {
		fmt.Fprintf(&b, "- %s: %s", sc.ID(), sc.Def.DisplayName)
		if len(sc.Def.Keywords) > 0 {
			fmt.Fprintf(&b, " (관련어: %s)", strings.Join(sc.Def.Keywords, ", "))
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\n고객 발화: %s\n", utterance)

	var out struct {
		Intent     string `json:"intent"`
		ScenarioID string `json:"scenario_id"`
	}
	if err := genai.ClassifyJSON(ctx, r.client, routerSystemPrompt, b.String(), &out); err != nil {
		return Decision{}, err
	}

	switch out.Intent {
	case "scenario":
		if _, ok := r.registry.Get(out.ScenarioID); ok {
			return Decision{Route: models.RouteScenario, ScenarioID: out.ScenarioID}, nil
		}
		return Decision{}, fmt.Errorf("classifier picked unknown scenario %q", out.ScenarioID)
	case "qa":
		return Decision{Route: models.RouteQA}, nil
	case "web_search":
		return Decision{Route: models.RouteWebSearch}, nil
	case "chit_chat":
		return Decision{Route: models.RouteChitChat}, nil
	}
	return Decision{}, fmt.Errorf("classifier returned unknown intent %q", out.Intent)
}

var questionForms = []string{
	"?", "뭐에요", "뭐예요", "무엇", "어떻게", "얼마나", "알려줘", "알려주세요",
	"궁금", "인가요", "일까요", "있나요", "되나요", "가능한가요",
}

// LooksLikeQuestion is a cheap shape heuristic used for digression detection
// and as the no-LLM routing fallback.
func LooksLikeQuestion(utterance string) bool {
	for _, f := range questionForms {
		if strings.Contains(utterance, f) {
			return true
		}
	}
	return false
}
