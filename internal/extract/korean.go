package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// Korean magnitude multipliers. A magnitude run multiplies out, so
// "천만" = 1e3 * 1e4 = 1e7.
var magnitudes = map[rune]float64{
	'조': 1e12,
	'억': 1e8,
	'만': 1e4,
	'천': 1e3,
	'백': 1e2,
	'십': 1e1,
}

// amountPattern matches one numeric segment: digits, an optional magnitude
// run, and an optional 원 suffix.
var amountPattern = regexp.MustCompile(`([0-9][0-9,]*(?:\.[0-9]+)?)\s*((?:조|억|만|천|백|십)*)\s*(원)?`)

// Amount is one monetary/numeric quantity found in an utterance.
type Amount struct {
	Won      float64 // value in won when Monetary, else the raw number
	Monetary bool    // carried a magnitude or 원 suffix
	Start    int     // rune offset in the utterance
	End      int
}

// ParseAmounts finds Korean numeric expressions in an utterance. Adjacent
// segments with strictly descending magnitudes are combined, so
// "1억 2천만원" yields a single 120,000,000 amount.
func ParseAmounts(text string) []Amount {
	idx := amountPattern.FindAllStringSubmatchIndex(text, -1)
	if idx == nil {
		return nil
	}

	runeOffset := func(byteOff int) int { return len([]rune(text[:byteOff])) }

	type segment struct {
		value      float64
		magnitude  float64
		monetary   bool
		start, end int // byte offsets
	}
	var segs []segment
	for _, m := range idx {
		digits := strings.ReplaceAll(text[m[2]:m[3]], ",", "")
		n, err := strconv.ParseFloat(digits, 64)
		if err != nil {
			continue
		}
		mag := 1.0
		hasMag := false
		if m[4] >= 0 {
			for _, r := range text[m[4]:m[5]] {
				if f, ok := magnitudes[r]; ok {
					mag *= f
					hasMag = true
				}
			}
		}
		hasWon := m[6] >= 0
		segs = append(segs, segment{
			value:     n * mag,
			magnitude: mag,
			monetary:  hasMag || hasWon,
			start:     m[0],
			end:       m[1],
		})
	}

	var out []Amount
	for i := 0; i < len(segs); {
		cur := segs[i]
		j := i + 1
		// Fold in descending-magnitude neighbours separated only by spaces.
		for j < len(segs) && cur.monetary && segs[j].monetary &&
			segs[j].magnitude < segs[j-1].magnitude &&
			strings.TrimSpace(text[segs[j-1].end:segs[j].start]) == "" {
			cur.value += segs[j].value
			cur.end = segs[j].end
			j++
		}
		out = append(out, Amount{
			Won:      cur.value,
			Monetary: cur.monetary,
			Start:    runeOffset(cur.start),
			End:      runeOffset(cur.end),
		})
		i = j
	}
	return out
}

// Polarity lexicons for boolean extraction. Single-syllable affirmatives are
// matched only as whole tokens to avoid firing inside unrelated words
// (인터넷 contains 네).
var (
	affirmativeTokens  = []string{"네", "예", "응", "어", "넵", "넹", "그래", "그럼"}
	affirmativePhrases = []string{
		"네 ", "예 ", "좋아요", "좋습니다", "맞아요", "맞습니다", "그렇습니다", "그럼요",
		"할게요", "할래요", "해주세요", "해 주세요", "신청할게요", "신청합니다", "부탁합니다",
		"부탁드립니다", "동의합니다", "원해요", "원합니다", "필요해요", "필요합니다", "맞어",
	}
	negativePhrases = []string{
		"아니요", "아니오", "아뇨", "아닙니다", "아니에요", "아니야", "아녀",
		"안 할", "안할", "안 해", "안해", "싫어", "싫습니다", "됐어요", "됐습니다",
		"필요 없", "필요없", "안 필요", "원하지 않", "안 원해", "하지 않을", "취소할",
	}
)

// ParsePolarity maps a Korean utterance onto true/false. Ambiguous or
// unrecognized utterances return no value rather than a guessed default.
func ParsePolarity(utterance string) (bool, bool) {
	norm := strings.TrimSpace(utterance)
	if norm == "" {
		return false, false
	}
	neg := containsAnyPhrase(norm, negativePhrases)
	pos := containsAnyPhrase(norm, affirmativePhrases) || matchesAnyToken(norm, affirmativeTokens)
	// 아니 as a discourse opener followed by a clear affirmative still counts
	// as ambiguous here; the field simply stays uncollected.
	if pos == neg {
		return false, false
	}
	return pos, true
}

func containsAnyPhrase(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func matchesAnyToken(s string, tokens []string) bool {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == ',' || r == '.' || r == '!' || r == '?' || r == '~'
	})
	for _, f := range fields {
		for _, t := range tokens {
			if f == t {
				return true
			}
		}
	}
	return false
}

// Ordinal expressions resolving to a 0-based choice index.
var ordinalForms = map[string]int{
	"첫번째": 0, "첫 번째": 0, "첫번": 0, "1번": 0, "일번": 0, "첫째": 0,
	"두번째": 1, "두 번째": 1, "2번": 1, "이번째": 1, "둘째": 1,
	"세번째": 2, "세 번째": 2, "3번": 2, "셋째": 2,
	"네번째": 3, "네 번째": 3, "4번": 3, "넷째": 3,
	"다섯번째": 4, "다섯 번째": 4, "5번": 4,
}

// ParseOrdinal finds an ordinal pick ("두번째", "2번") in the utterance.
// Longer forms are checked first so "두 번째" wins over "2번" never matching.
func ParseOrdinal(utterance string) (int, bool) {
	best := -1
	bestLen := 0
	for form, idx := range ordinalForms {
		if strings.Contains(utterance, form) && len(form) > bestLen {
			best = idx
			bestLen = len(form)
		}
	}
	if best < 0 {
		return 0, false
	}
	return best, true
}

var phonePattern = regexp.MustCompile(`(01[016789])[-.\s]?(\d{3,4})[-.\s]?(\d{4})`)

// ParsePhone finds a Korean mobile number and normalizes it to
// 010-1234-5678 form.
func ParsePhone(utterance string) (string, bool) {
	m := phonePattern.FindStringSubmatch(utterance)
	if m == nil {
		return "", false
	}
	return m[1] + "-" + m[2] + "-" + m[3], true
}

// ParsePhoneAll returns every phone number in the utterance in order of
// appearance. Correction utterances carry both the old and the new number.
func ParsePhoneAll(utterance string) []string {
	ms := phonePattern.FindAllStringSubmatch(utterance, -1)
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		out = append(out, m[1]+"-"+m[2]+"-"+m[3])
	}
	return out
}

// Polite sentence frames wrapping a short text answer.
var textFramePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:제\s*)?이름은\s*(.+?)(?:입니다|이에요|예요|에요)?$`),
	regexp.MustCompile(`^(.+?)(?:라고\s*합니다|라고\s*해요|라고\s*불러\s*주세요)$`),
	regexp.MustCompile(`^(.+?)(?:입니다|이에요|예요)$`),
}

// ParseShortText strips polite sentence frames from a short free-text answer
// ("김철수입니다" -> "김철수"). Long or multi-clause utterances do not
// pattern-match and are left to the LLM tier.
func ParseShortText(utterance string) (string, bool) {
	norm := strings.TrimRight(strings.TrimSpace(utterance), ".!?~ ")
	if norm == "" || len([]rune(norm)) > 20 || strings.ContainsAny(norm, ",?") {
		return "", false
	}
	for _, p := range textFramePatterns {
		if m := p.FindStringSubmatch(norm); m != nil {
			v := strings.TrimSpace(m[1])
			if v != "" {
				return v, true
			}
		}
	}
	if !strings.Contains(norm, " ") {
		return norm, true
	}
	return "", false
}
