package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/modubank/counselbot/internal/genai"
	"github.com/modubank/counselbot/internal/models"
)

const extractionSystemPrompt = `당신은 은행 상담 대화에서 고객 발화로부터 정보를 추출하는 어시스턴트입니다.
아래에 나열된 필드들에 대해, 고객 발화에서 명확하게 확인되는 값만 JSON 객체로 반환하세요.

규칙:
- 발화에 명확히 나타난 필드만 포함하세요. 추측하거나 기본값을 넣지 마세요.
- boolean 필드는 true 또는 false 로만 답하세요. 애매하면 생략하세요.
- number 필드는 지정된 단위 기준의 숫자만 답하세요.
- choice 필드는 반드시 제시된 선택지의 value 값으로 답하세요. label 이 아닙니다.
- 결과는 {"필드키": 값} 형태의 JSON 객체 하나로만 답하세요. 설명을 붙이지 마세요.
- 아무 필드도 확인되지 않으면 {} 를 반환하세요.`

// llmExtract hands the still-missing fields to the classification capability
// in a single combined call and folds validated values into res.
func (e *Extractor) llmExtract(ctx context.Context, utterance string, fields []*models.FieldDefinition, collected models.CollectedInfo, res *Result) error {
	var raw map[string]any
	system := extractionSystemPrompt + "\n\n" + describeFields(fields)
	user := buildExtractionUserPrompt(utterance, collected)
	if err := genai.ClassifyJSON(ctx, e.client, system, user, &raw); err != nil {
		return err
	}

	for _, f := range fields {
		v, ok := raw[f.Key]
		if !ok || v == nil {
			continue
		}
		value, ok := normalizeLLMValue(v, f)
		if !ok {
			continue
		}
		if valid, msg := ValidateField(value, f); valid {
			res.Found[f.Key] = value
		} else {
			res.Invalid[f.Key] = msg
		}
	}
	return nil
}

// describeFields renders the expected-field catalog for the system prompt.
func describeFields(fields []*models.FieldDefinition) string {
	var b strings.Builder
	b.WriteString("추출 대상 필드:\n")
	for _, f := range fields {
		fmt.Fprintf(&b, "- %s (%s", f.Key, f.Type)
		if f.Unit != "" {
			fmt.Fprintf(&b, ", 단위: %s", f.Unit)
		}
		fmt.Fprintf(&b, "): %s", f.DisplayName)
		if f.ExtractionPrompt != "" {
			fmt.Fprintf(&b, " (%s)", f.ExtractionPrompt)
		}
		if f.Type == models.FieldTypeChoice {
			var opts []string
			for _, c := range f.Choices {
				opts = append(opts, fmt.Sprintf("%s(%s)", c.Value, c.Label))
			}
			fmt.Fprintf(&b, " / 선택지: %s", strings.Join(opts, ", "))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func buildExtractionUserPrompt(utterance string, collected models.CollectedInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "고객 발화: %s\n", utterance)
	if len(collected) > 0 {
		b.WriteString("이미 수집된 정보 (참고용, 다시 추출하지 마세요):\n")
		for k, v := range collected {
			fmt.Fprintf(&b, "- %s: %v\n", k, v)
		}
	}
	return b.String()
}

// normalizeLLMValue coerces a JSON-decoded model value into the field's
// canonical representation, rejecting shapes it cannot coerce.
func normalizeLLMValue(v any, f *models.FieldDefinition) (any, bool) {
	switch f.Type {
	case models.FieldTypeBoolean:
		switch b := v.(type) {
		case bool:
			return b, true
		case string:
			switch strings.ToLower(strings.TrimSpace(b)) {
			case "true":
				return true, true
			case "false":
				return false, true
			}
		}
		return nil, false

	case models.FieldTypeNumber:
		n, ok := asNumber(v)
		if !ok {
			return nil, false
		}
		return n, true

	case models.FieldTypeChoice:
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		s = strings.TrimSpace(s)
		for _, c := range f.Choices {
			if c.Value == s {
				return c.Value, true
			}
		}
		// Models sometimes echo the label; map it back to the value.
		for _, c := range f.Choices {
			if normalizeChoiceText(c.Label) == normalizeChoiceText(s) {
				return c.Value, true
			}
		}
		return nil, false

	case models.FieldTypeText:
		s, ok := v.(string)
		if !ok || strings.TrimSpace(s) == "" {
			return nil, false
		}
		s = strings.TrimSpace(s)
		if f.Pattern == "phone" {
			if p, ok := ParsePhone(s); ok {
				return p, true
			}
			return s, true // let the validator produce the format message
		}
		return s, true
	}
	return nil, false
}
