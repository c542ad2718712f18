package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/modubank/counselbot/internal/models"
)

// ClassifyJSON runs a classification call and decodes the model output into
// out. Any failure (call error, undecodable output) is reported as
// models.ErrExtractionFailed so callers take the pattern-only fallback path.
func ClassifyJSON(ctx context.Context, client ClientInterface, systemPrompt, userPrompt string, out any) error {
	raw, err := client.Classify(ctx, systemPrompt, userPrompt)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrExtractionFailed, err)
	}
	if err := DecodeJSON(raw, out); err != nil {
		return fmt.Errorf("%w: %v", models.ErrExtractionFailed, err)
	}
	return nil
}

// DecodeJSON unmarshals model output, tolerating markdown code fences and
// attempting jsonrepair before giving up on malformed payloads.
func DecodeJSON(raw string, out any) error {
	cleaned := stripCodeFence(raw)
	if cleaned == "" {
		return fmt.Errorf("empty model output")
	}
	if err := json.Unmarshal([]byte(cleaned), out); err == nil {
		return nil
	}
	fixed, err := jsonrepair.JSONRepair(cleaned)
	if err != nil {
		return fmt.Errorf("unrepairable model output: %w", err)
	}
	if err := json.Unmarshal([]byte(fixed), out); err != nil {
		return fmt.Errorf("decode repaired model output: %w", err)
	}
	return nil
}

// stripCodeFence removes a surrounding ```json ... ``` block if present.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
