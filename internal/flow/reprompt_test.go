package flow

import (
	"strings"
	"testing"

	"github.com/modubank/counselbot/internal/models"
)

func TestComposeReprompt(t *testing.T) {
	reg := mustRegistry(t, bankingDef())
	sc := mustScenario(t, reg, "banking_flow")
	stage, _ := sc.Stage("limits")

	once, _ := sc.Field("limit_once")
	daily, _ := sc.Field("limit_daily")
	collected := models.CollectedInfo{"limit_once": 5000000.0}

	msg := ComposeReprompt(sc, stage, collected,
		[]*models.FieldDefinition{once},
		map[string]string{"limit_daily": "1일 이체 한도은(는) 최대 500000000원까지 가능합니다. 다시 말씀해 주세요."},
		[]*models.FieldDefinition{daily})

	confirmIdx := strings.Index(msg, "확인했습니다")
	invalidIdx := strings.Index(msg, "최대")
	if confirmIdx < 0 || invalidIdx < 0 || confirmIdx > invalidIdx {
		t.Errorf("reprompt ordering wrong: %q", msg)
	}
	if !strings.Contains(msg, "5000000") {
		t.Errorf("reprompt %q missing the confirmed value", msg)
	}
}

func TestComposeRepromptEmptyRestatesStage(t *testing.T) {
	reg := mustRegistry(t, bankingDef())
	sc := mustScenario(t, reg, "banking_flow")
	stage, _ := sc.Stage("banking")

	msg := ComposeReprompt(sc, stage, models.CollectedInfo{}, nil, nil, nil)
	if msg != stage.Prompt {
		t.Errorf("empty reprompt = %q, want the stage prompt", msg)
	}
}

func TestSteeringResponse(t *testing.T) {
	reg := mustRegistry(t, bankingDef())
	sc := mustScenario(t, reg, "banking_flow")
	stage, _ := sc.Stage("banking")
	field, _ := sc.Field("use_internet_banking")

	msg := SteeringResponse(sc, stage, models.CollectedInfo{}, "수수료는 무료입니다.", []*models.FieldDefinition{field})
	if !strings.Contains(msg, "수수료는 무료입니다.") {
		t.Errorf("steering %q missing the answer", msg)
	}
	if !strings.Contains(msg, "돌아갈게요") {
		t.Errorf("steering %q missing the return phrase", msg)
	}
	if !strings.Contains(msg, "인터넷뱅킹 가입") {
		t.Errorf("steering %q missing the pending ask", msg)
	}

	bare := SteeringResponse(sc, stage, models.CollectedInfo{}, "", []*models.FieldDefinition{field})
	if !strings.Contains(bare, "계속 진행할게요") {
		t.Errorf("steering without answer = %q", bare)
	}
}

func TestEnumerateChoicesGroupsAndMetadata(t *testing.T) {
	reg := mustRegistry(t, bankingDef())
	sc := mustScenario(t, reg, "banking_flow")
	stage, _ := sc.Stage("otp")

	out := EnumerateChoices(stage)
	for _, want := range []string{"[당행 매체]", "[타행 매체]", "- 보안카드 (수수료 무료)", "- 신한 OTP (수수료 5,000원)"} {
		if !strings.Contains(out, want) {
			t.Errorf("EnumerateChoices missing %q:\n%s", want, out)
		}
	}
}
