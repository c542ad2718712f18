package genai

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/modubank/counselbot/internal/models"
)

func TestDecodeJSON(t *testing.T) {
	type out struct {
		Intent string `json:"intent"`
	}

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain", `{"intent": "qa"}`, "qa"},
		{"code fence", "```json\n{\"intent\": \"qa\"}\n```", "qa"},
		{"bare fence", "```\n{\"intent\": \"qa\"}\n```", "qa"},
		{"repairable trailing comma", `{"intent": "qa",}`, "qa"},
		{"repairable single quotes", `{'intent': 'qa'}`, "qa"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var o out
			if err := DecodeJSON(tt.raw, &o); err != nil {
				t.Fatalf("DecodeJSON error: %v", err)
			}
			if o.Intent != tt.want {
				t.Errorf("Intent = %q, want %q", o.Intent, tt.want)
			}
		})
	}
}

func TestDecodeJSONRejectsGarbage(t *testing.T) {
	var o map[string]any
	if err := DecodeJSON("", &o); err == nil {
		t.Error("empty output accepted")
	}
}

type scriptedClient struct {
	reply string
	err   error
}

func (c *scriptedClient) Classify(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.reply, c.err
}

func TestClassifyJSONWrapsFailures(t *testing.T) {
	var out struct {
		Transition int `json:"transition"`
	}

	err := ClassifyJSON(context.Background(), &scriptedClient{err: fmt.Errorf("boom")}, "s", "u", &out)
	if !errors.Is(err, models.ErrExtractionFailed) {
		t.Errorf("call failure = %v, want ErrExtractionFailed", err)
	}

	err = ClassifyJSON(context.Background(), &scriptedClient{reply: "not json at all }{"}, "s", "u", &out)
	if !errors.Is(err, models.ErrExtractionFailed) {
		t.Errorf("decode failure = %v, want ErrExtractionFailed", err)
	}

	if err := ClassifyJSON(context.Background(), &scriptedClient{reply: `{"transition": 1}`}, "s", "u", &out); err != nil {
		t.Fatalf("ClassifyJSON error: %v", err)
	}
	if out.Transition != 1 {
		t.Errorf("Transition = %d, want 1", out.Transition)
	}
}
