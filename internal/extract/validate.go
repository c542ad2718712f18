package extract

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/modubank/counselbot/internal/models"
)

// ValidateField checks a candidate value against a field definition. It is a
// pure function; the message (Korean, user-facing) is non-empty exactly when
// the value is rejected.
func ValidateField(value any, field *models.FieldDefinition) (bool, string) {
	switch field.Type {
	case models.FieldTypeBoolean:
		if _, ok := value.(bool); !ok {
			return false, fmt.Sprintf("%s은(는) 예/아니요로 답해 주세요.", field.DisplayName)
		}
		return true, ""

	case models.FieldTypeNumber:
		n, ok := asNumber(value)
		if !ok {
			return false, fmt.Sprintf("%s은(는) 숫자로 말씀해 주세요.", field.DisplayName)
		}
		if field.Max != nil && n > *field.Max {
			return false, fmt.Sprintf("%s은(는) 최대 %s%s까지 가능합니다. 다시 말씀해 주세요.",
				field.DisplayName, formatNumber(*field.Max), field.Unit)
		}
		if field.Min != nil && n < *field.Min {
			return false, fmt.Sprintf("%s은(는) 최소 %s%s부터 가능합니다. 다시 말씀해 주세요.",
				field.DisplayName, formatNumber(*field.Min), field.Unit)
		}
		return true, ""

	case models.FieldTypeChoice:
		s, ok := value.(string)
		if !ok {
			return false, fmt.Sprintf("%s 중에서 선택해 주세요.", choiceLabels(field))
		}
		for _, c := range field.Choices {
			if c.Value == s {
				return true, ""
			}
		}
		return false, fmt.Sprintf("%s은(는) %s 중에서 선택하실 수 있습니다.", field.DisplayName, choiceLabels(field))

	case models.FieldTypeText:
		s, ok := value.(string)
		if !ok || strings.TrimSpace(s) == "" {
			return false, fmt.Sprintf("%s을(를) 다시 말씀해 주세요.", field.DisplayName)
		}
		if field.Pattern == "phone" {
			if _, ok := ParsePhone(s); !ok {
				return false, fmt.Sprintf("%s은(는) 010-1234-5678 형식으로 말씀해 주세요.", field.DisplayName)
			}
		}
		return true, ""
	}
	return false, fmt.Sprintf("%s 값을 확인할 수 없습니다.", field.DisplayName)
}

func asNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		n, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(v), ",", ""), 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

func choiceLabels(field *models.FieldDefinition) string {
	labels := make([]string, 0, len(field.Choices))
	for _, c := range field.Choices {
		labels = append(labels, c.Label)
	}
	return strings.Join(labels, ", ")
}
