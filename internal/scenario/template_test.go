package scenario

import (
	"errors"
	"testing"

	"github.com/modubank/counselbot/internal/models"
)

func TestRenderPrompt(t *testing.T) {
	info := models.CollectedInfo{
		"customer_name": "김철수",
		"loan_amount":   50000000.0,
		"confirm":       true,
	}

	tests := []struct {
		template string
		want     string
	}{
		{"%{customer_name}%님, 안녕하세요.", "김철수님, 안녕하세요."},
		{"%{loan_amount}%원을 신청합니다.", "50000000원을 신청합니다."},
		{"동의 여부: %{confirm}%", "동의 여부: 예"},
		{"치환할 것이 없는 문장.", "치환할 것이 없는 문장."},
	}
	for _, tt := range tests {
		got, err := RenderPrompt(tt.template, info, nil)
		if err != nil {
			t.Fatalf("RenderPrompt(%q) error: %v", tt.template, err)
		}
		if got != tt.want {
			t.Errorf("RenderPrompt(%q) = %q, want %q", tt.template, got, tt.want)
		}
	}
}

func TestRenderPromptMissingKeyFailsLoudly(t *testing.T) {
	_, err := RenderPrompt("%{customer_name}%님 반가워요.", models.CollectedInfo{}, nil)
	if err == nil {
		t.Fatal("RenderPrompt with missing key succeeded, want error")
	}
	if !errors.Is(err, models.ErrTemplateKey) {
		t.Errorf("error = %v, want ErrTemplateKey", err)
	}
}

func TestRenderPromptDefaultChoice(t *testing.T) {
	stage := &models.StageDefinition{
		ID: "s",
		Choices: []models.Choice{
			{Value: "a", Label: "첫째 옵션"},
			{Value: "b", Label: "보안카드", Default: true},
		},
	}
	got, err := RenderPrompt("기본은 {default_choice}입니다.", models.CollectedInfo{}, stage)
	if err != nil {
		t.Fatalf("RenderPrompt error: %v", err)
	}
	if got != "기본은 보안카드입니다." {
		t.Errorf("RenderPrompt = %q", got)
	}

	noDefault := &models.StageDefinition{ID: "n", Choices: []models.Choice{{Value: "a", Label: "옵션"}}}
	if _, err := RenderPrompt("{default_choice}", models.CollectedInfo{}, noDefault); err == nil {
		t.Error("RenderPrompt with no default choice succeeded, want error")
	}
	if _, err := RenderPrompt("{default_choice}", models.CollectedInfo{}, nil); err == nil {
		t.Error("RenderPrompt with nil stage succeeded, want error")
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{"문자", "문자"},
		{true, "예"},
		{false, "아니요"},
		{10000000.0, "10000000"},
		{12.5, "12.5"},
		{36, "36"},
	}
	for _, tt := range tests {
		if got := FormatValue(tt.in); got != tt.want {
			t.Errorf("FormatValue(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
