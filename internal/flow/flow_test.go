package flow

import (
	"context"
	"testing"

	"github.com/modubank/counselbot/internal/models"
	"github.com/modubank/counselbot/internal/scenario"
)

// scriptedClient replays canned classification replies in order.
type scriptedClient struct {
	replies []string
	err     error
	calls   int
}

func (c *scriptedClient) Classify(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	if len(c.replies) == 0 {
		return "{}", nil
	}
	reply := c.replies[0]
	if len(c.replies) > 1 {
		c.replies = c.replies[1:]
	}
	return reply, nil
}

func floatPtr(v float64) *float64 { return &v }

// greetingDef is the smallest full scenario: a confirmation gate and a name
// question. Both branches resolve without any external call.
func greetingDef() *models.ScenarioDefinition {
	return &models.ScenarioDefinition{
		ID:             "greeting_flow",
		ProductType:    "상담",
		DisplayName:    "기본 상담",
		InitialStageID: "greeting",
		Keywords:       []string{"상담"},
		FieldRegistry: []*models.FieldDefinition{
			{Key: "confirm", DisplayName: "진행 여부", Type: models.FieldTypeBoolean, Required: true},
			{Key: "customer_name", DisplayName: "성함", Type: models.FieldTypeText, Required: true},
		},
		Stages: map[string]*models.StageDefinition{
			"greeting": {
				ID:              "greeting",
				Prompt:          "상담을 시작할까요?",
				ResponseType:    models.ResponseTypeBoolean,
				FieldsToCollect: []string{"confirm"},
				Transitions: []models.Transition{
					{TargetStageID: "ask_name", When: "confirm == true", Condition: "고객이 상담 진행에 동의함"},
					{TargetStageID: "END_SCENARIO_ABORT", When: "confirm == false", Condition: "고객이 상담을 원하지 않음"},
				},
			},
			"ask_name": {
				ID:                 "ask_name",
				Prompt:             "성함을 알려주세요.",
				FieldsToCollect:    []string{"customer_name"},
				DefaultNextStageID: "END_SCENARIO_COMPLETE",
			},
		},
	}
}

// bankingDef exercises conditional visibility, choice groups with metadata,
// keyword-anchored number fields, and phone validation.
func bankingDef() *models.ScenarioDefinition {
	otpChoices := []models.Choice{
		{Value: "security_card", Label: "보안카드", Default: true, Metadata: map[string]string{"수수료": "무료"}},
		{Value: "shinhan_otp", Label: "신한 OTP", Metadata: map[string]string{"수수료": "5,000원"}},
		{Value: "other_otp", Label: "타행 OTP", Metadata: map[string]string{"수수료": "무료"}},
	}
	return &models.ScenarioDefinition{
		ID:             "banking_flow",
		ProductType:    "입출금통장",
		DisplayName:    "계좌 개설",
		InitialStageID: "contact",
		Keywords:       []string{"계좌"},
		FieldGroups: []models.FieldGroup{
			{Name: "customer", DisplayName: "고객 정보"},
			{Name: "limits", DisplayName: "이체 한도"},
		},
		FieldRegistry: []*models.FieldDefinition{
			{Key: "customer_name", DisplayName: "성함", Type: models.FieldTypeText, Required: true, Group: "customer"},
			{Key: "phone_number", DisplayName: "연락처", Type: models.FieldTypeText, Required: true, Group: "customer", Pattern: "phone"},
			{Key: "use_internet_banking", DisplayName: "인터넷뱅킹 가입", Type: models.FieldTypeBoolean, Required: true},
			{Key: "otp_type", DisplayName: "OTP 종류", Type: models.FieldTypeChoice, Required: true,
				ParentField: "use_internet_banking", ShowWhen: "use_internet_banking == true", Choices: otpChoices},
			{Key: "limit_once", DisplayName: "1회 이체 한도", Type: models.FieldTypeNumber, Required: true,
				Group: "limits", Unit: "원", Keywords: []string{"1회", "회당"}, Max: floatPtr(1e8),
				ParentField: "use_internet_banking", ShowWhen: "use_internet_banking == true"},
			{Key: "limit_daily", DisplayName: "1일 이체 한도", Type: models.FieldTypeNumber, Required: true,
				Group: "limits", Unit: "원", Keywords: []string{"1일", "하루"}, Max: floatPtr(5e8),
				ParentField: "use_internet_banking", ShowWhen: "use_internet_banking == true"},
		},
		Stages: map[string]*models.StageDefinition{
			"contact": {
				ID:                 "contact",
				Prompt:             "성함과 연락처를 말씀해 주세요.",
				FieldsToCollect:    []string{"customer_name", "phone_number"},
				FieldGroups:        []string{"customer"},
				DefaultNextStageID: "banking",
			},
			"banking": {
				ID:              "banking",
				Prompt:          "인터넷뱅킹도 가입하시겠어요?",
				ResponseType:    models.ResponseTypeBoolean,
				FieldsToCollect: []string{"use_internet_banking"},
				Transitions: []models.Transition{
					{TargetStageID: "otp", When: "use_internet_banking == true", Condition: "인터넷뱅킹 가입을 원함"},
					{TargetStageID: "END_SCENARIO_COMPLETE", When: "use_internet_banking == false", Condition: "인터넷뱅킹 가입을 원하지 않음"},
				},
			},
			"otp": {
				ID:              "otp",
				Prompt:          "보안 매체를 선택해 주세요.",
				ResponseType:    models.ResponseTypeGroupedBullet,
				FieldsToCollect: []string{"otp_type"},
				ChoiceGroups: []models.ChoiceGroup{
					{Name: "당행 매체", Choices: otpChoices[:2]},
					{Name: "타행 매체", Choices: otpChoices[2:]},
				},
				Skippable:          true,
				DefaultNextStageID: "limits",
			},
			"limits": {
				ID:                 "limits",
				Prompt:             "1회 한도와 1일 한도를 말씀해 주세요.",
				FieldsToCollect:    []string{"limit_once", "limit_daily"},
				FieldGroups:        []string{"limits"},
				ModifiableFields:   []string{"otp_type", "phone_number"},
				DefaultNextStageID: "END_SCENARIO_COMPLETE",
			},
		},
	}
}

func mustRegistry(t *testing.T, defs ...*models.ScenarioDefinition) *scenario.Registry {
	t.Helper()
	reg, err := scenario.NewRegistry(defs...)
	if err != nil {
		t.Fatalf("NewRegistry error: %v", err)
	}
	return reg
}

func mustScenario(t *testing.T, reg *scenario.Registry, id string) *scenario.Scenario {
	t.Helper()
	sc, ok := reg.Get(id)
	if !ok {
		t.Fatalf("scenario %q not registered", id)
	}
	return sc
}

// newScenarioSession builds a session positioned at a stage with the given
// stages already visited.
func newScenarioSession(scenarioID, stageID string, visited ...string) *models.SessionState {
	s := models.NewSessionState("test-session")
	s.ActiveScenarioID = scenarioID
	for _, v := range visited {
		s.MarkVisited(v)
	}
	s.CurrentStageID = stageID
	s.MarkVisited(stageID)
	return s
}
