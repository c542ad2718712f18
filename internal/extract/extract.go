// Package extract turns one free-text Korean utterance into field values.
// A pattern tier (polarity lexicons, magnitude-aware number parsing, choice
// and phone matching) runs first and doubles as the fallback when the LLM
// tier errors or times out. The extractor never guesses: a field it cannot
// read from the utterance is simply absent from the result.
package extract

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/modubank/counselbot/internal/genai"
	"github.com/modubank/counselbot/internal/models"
)

// Result is the outcome of extraction over one utterance. Found holds
// canonical values that passed validation; Invalid holds user-facing
// rejection messages for values that were recognized but failed their
// field's constraint.
type Result struct {
	Found   map[string]any
	Invalid map[string]string
}

// NewResult returns an empty extraction result.
func NewResult() *Result {
	return &Result{Found: make(map[string]any), Invalid: make(map[string]string)}
}

// Extractor extracts field values from utterances, optionally backed by an
// LLM classification client for fields the pattern tier cannot read.
type Extractor struct {
	client genai.ClientInterface
}

// New creates an extractor. A nil client disables the LLM tier.
func New(client genai.ClientInterface) *Extractor {
	return &Extractor{client: client}
}

// Extract attempts every expected field independently against the same
// utterance; a single turn may satisfy several fields at once. Fields the
// pattern tier misses are handed to the LLM tier in one combined call.
// LLM failure degrades silently to the pattern-only result.
func (e *Extractor) Extract(ctx context.Context, utterance string, expected []*models.FieldDefinition, collected models.CollectedInfo) *Result {
	res := NewResult()
	var remaining []*models.FieldDefinition
	for _, f := range expected {
		value, ok := e.patternExtract(utterance, f, expected)
		if !ok {
			remaining = append(remaining, f)
			continue
		}
		if valid, msg := ValidateField(value, f); valid {
			res.Found[f.Key] = value
		} else {
			res.Invalid[f.Key] = msg
		}
	}

	if len(remaining) > 0 && e.client != nil {
		if err := e.llmExtract(ctx, utterance, remaining, collected, res); err != nil {
			slog.Warn("Extractor LLM tier failed, keeping pattern-only result",
				"error", err, "remaining", len(remaining))
		}
	}

	slog.Debug("Extractor finished", "found", len(res.Found), "invalid", len(res.Invalid), "expected", len(expected))
	return res
}

// patternExtract is the no-I/O tier.
func (e *Extractor) patternExtract(utterance string, f *models.FieldDefinition, expected []*models.FieldDefinition) (any, bool) {
	switch f.Type {
	case models.FieldTypeBoolean:
		v, ok := ParsePolarity(utterance)
		if !ok {
			return nil, false
		}
		return v, true

	case models.FieldTypeNumber:
		return extractNumber(utterance, f, expected)

	case models.FieldTypeChoice:
		v, ok := MatchChoice(utterance, f.Choices)
		if !ok {
			return nil, false
		}
		return v, true

	case models.FieldTypeText:
		if f.Pattern == "phone" {
			v, ok := ParsePhone(utterance)
			if !ok {
				return nil, false
			}
			return v, true
		}
		v, ok := ParseShortText(utterance)
		if !ok {
			return nil, false
		}
		return v, true
	}
	return nil, false
}

// unitFactor converts a declared monetary unit to won.
func unitFactor(unit string) float64 {
	switch unit {
	case "원":
		return 1
	case "만원":
		return 1e4
	case "억원":
		return 1e8
	}
	return 1
}

func isMonetaryUnit(unit string) bool {
	return strings.Contains(unit, "원")
}

// extractNumber reads one numeric value for a field. When several number
// fields are expected from the same utterance, each field's declared
// keywords anchor its value ("1회 500만원, 1일 1000만원"); without an anchor
// a value is only taken when it is unambiguous.
func extractNumber(utterance string, f *models.FieldDefinition, expected []*models.FieldDefinition) (any, bool) {
	if f.Unit != "" && !isMonetaryUnit(f.Unit) {
		// Non-monetary units (개월, 세, ...) bind by direct adjacency.
		p, err := regexp.Compile(`([0-9][0-9,]*(?:\.[0-9]+)?)\s*` + regexp.QuoteMeta(f.Unit))
		if err == nil {
			if m := p.FindStringSubmatch(utterance); m != nil {
				if n, ok := asNumber(m[1]); ok {
					return n, true
				}
			}
		}
	}

	amounts := ParseAmounts(utterance)
	if len(amounts) == 0 {
		return nil, false
	}
	monetary := isMonetaryUnit(f.Unit)

	convert := func(a Amount) float64 {
		if monetary && a.Monetary {
			return a.Won / unitFactor(f.Unit)
		}
		return a.Won // bare numbers are taken in the field's own unit
	}

	// Keyword-anchored pick: the nearest amount after the marker.
	if len(f.Keywords) > 0 {
		for _, kw := range f.Keywords {
			byteIdx := strings.Index(utterance, kw)
			if byteIdx < 0 {
				continue
			}
			kwEnd := len([]rune(utterance[:byteIdx+len(kw)]))
			for _, a := range amounts {
				if a.Start >= kwEnd && a.Start-kwEnd <= 10 && (!monetary || a.Monetary) {
					return convert(a), true
				}
			}
		}
		return nil, false
	}

	// Unanchored: only safe when this is the sole number field expected, or
	// there is exactly one candidate amount.
	numberFields := 0
	for _, other := range expected {
		if other.Type == models.FieldTypeNumber {
			numberFields++
		}
	}
	var candidates []Amount
	for _, a := range amounts {
		if monetary && !a.Monetary && len(amounts) > 1 {
			continue // prefer explicit monetary segments when mixed
		}
		candidates = append(candidates, a)
	}
	if len(candidates) == 0 {
		return nil, false
	}
	if numberFields > 1 && len(candidates) > 1 {
		return nil, false
	}
	return convert(candidates[0]), true
}

func normalizeChoiceText(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, s)
}

// MatchChoice matches an utterance against a choice set and returns the
// canonical value, never the raw label. The longest matching label/keyword
// wins; an exact-length tie between different choices is ambiguous and
// yields no match. Ordinal picks resolve by declaration order.
func MatchChoice(utterance string, choices []models.Choice) (string, bool) {
	norm := normalizeChoiceText(utterance)
	if norm == "" || len(choices) == 0 {
		return "", false
	}

	best := ""
	bestLen := 0
	ambiguous := false
	for _, c := range choices {
		cands := append([]string{c.Label, c.Value}, c.Keywords...)
		for _, cand := range cands {
			nc := normalizeChoiceText(cand)
			if nc == "" || !strings.Contains(norm, nc) {
				continue
			}
			switch {
			case len(nc) > bestLen:
				best, bestLen, ambiguous = c.Value, len(nc), false
			case len(nc) == bestLen && best != c.Value:
				ambiguous = true
			}
		}
	}
	if bestLen > 0 && !ambiguous {
		return best, true
	}

	if idx, ok := ParseOrdinal(utterance); ok && idx < len(choices) {
		return choices[idx].Value, true
	}
	return "", false
}
