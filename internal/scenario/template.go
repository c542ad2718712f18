package scenario

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/modubank/counselbot/internal/models"
)

var placeholderPattern = regexp.MustCompile(`%\{([^{}%]+)\}%`)

const defaultChoicePlaceholder = "{default_choice}"

// RenderPrompt interpolates a stage prompt template against collected info.
// %{field_key}% placeholders resolve to the collected value; {default_choice}
// resolves to the stage's declared default choice label. An unresolvable
// placeholder is an error, never left in the output.
func RenderPrompt(template string, info models.CollectedInfo, stage *models.StageDefinition) (string, error) {
	out := template
	if strings.Contains(out, defaultChoicePlaceholder) {
		if stage == nil {
			return "", fmt.Errorf("%w: default_choice used outside a stage", models.ErrTemplateKey)
		}
		dc, ok := stage.DefaultChoice()
		if !ok {
			return "", fmt.Errorf("%w: stage %q has no default choice", models.ErrTemplateKey, stage.ID)
		}
		out = strings.ReplaceAll(out, defaultChoicePlaceholder, dc.Label)
	}

	var missing []string
	out = placeholderPattern.ReplaceAllStringFunc(out, func(m string) string {
		key := placeholderPattern.FindStringSubmatch(m)[1]
		v, ok := info[key]
		if !ok || v == nil {
			missing = append(missing, key)
			return m
		}
		return FormatValue(v)
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s", models.ErrTemplateKey, strings.Join(missing, ", "))
	}
	return out, nil
}

// FormatValue renders a collected value for user-facing text.
func FormatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		if val {
			return "예"
		}
		return "아니요"
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	}
	return fmt.Sprintf("%v", v)
}
