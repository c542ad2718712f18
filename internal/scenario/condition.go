// Package scenario loads and validates scenario documents, and provides the
// compiled form the dialogue core works with: parsed show_when conditions,
// precomputed field hierarchy depths, and prompt template rendering.
package scenario

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/modubank/counselbot/internal/models"
)

// Condition is a compiled show_when expression. Evaluation is pure and never
// errors: an unknown field simply resolves to null.
type Condition interface {
	Eval(info models.CollectedInfo) bool
	String() string
}

// ParseCondition compiles a show_when expression string into a typed boolean
// expression tree. Supported operators: ==, !=, &&, || and parentheses.
// Operands are field references, quoted strings, numbers, true/false, null.
// Anything else is a parse error; there is no silent "default to visible".
func ParseCondition(expr string) (Condition, error) {
	toks, err := lexCondition(expr)
	if err != nil {
		return nil, err
	}
	p := &condParser{tokens: toks}
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.atEnd() {
		return nil, fmt.Errorf("unexpected token %q in condition %q", p.peek().text, expr)
	}
	return node, nil
}

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokString
	tokNumber
	tokBool
	tokNull
	tokEq
	tokNeq
	tokAnd
	tokOr
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
}

func lexCondition(expr string) ([]token, error) {
	var toks []token
	runes := []rune(expr)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			toks = append(toks, token{tokLParen, "("})
			i++
		case r == ')':
			toks = append(toks, token{tokRParen, ")"})
			i++
		case r == '=' || r == '!':
			if i+1 >= len(runes) || runes[i+1] != '=' {
				return nil, fmt.Errorf("unknown operator %q in condition %q", string(r), expr)
			}
			if r == '=' {
				toks = append(toks, token{tokEq, "=="})
			} else {
				toks = append(toks, token{tokNeq, "!="})
			}
			i += 2
		case r == '&' || r == '|':
			if i+1 >= len(runes) || runes[i+1] != r {
				return nil, fmt.Errorf("unknown operator %q in condition %q", string(r), expr)
			}
			if r == '&' {
				toks = append(toks, token{tokAnd, "&&"})
			} else {
				toks = append(toks, token{tokOr, "||"})
			}
			i += 2
		case r == '\'' || r == '"':
			quote := r
			j := i + 1
			for j < len(runes) && runes[j] != quote {
				j++
			}
			if j >= len(runes) {
				return nil, fmt.Errorf("unterminated string in condition %q", expr)
			}
			toks = append(toks, token{tokString, string(runes[i+1 : j])})
			i = j + 1
		case unicode.IsDigit(r) || (r == '-' && i+1 < len(runes) && unicode.IsDigit(runes[i+1])):
			j := i + 1
			for j < len(runes) && (unicode.IsDigit(runes[j]) || runes[j] == '.') {
				j++
			}
			toks = append(toks, token{tokNumber, string(runes[i:j])})
			i = j
		case unicode.IsLetter(r) || r == '_':
			j := i
			for j < len(runes) && (unicode.IsLetter(runes[j]) || unicode.IsDigit(runes[j]) || runes[j] == '_') {
				j++
			}
			word := string(runes[i:j])
			switch word {
			case "true", "false":
				toks = append(toks, token{tokBool, word})
			case "null":
				toks = append(toks, token{tokNull, word})
			default:
				toks = append(toks, token{tokIdent, word})
			}
			i = j
		default:
			return nil, fmt.Errorf("unexpected character %q in condition %q", string(r), expr)
		}
	}
	return toks, nil
}

type condParser struct {
	tokens []token
	pos    int
}

func (p *condParser) atEnd() bool { return p.pos >= len(p.tokens) }

func (p *condParser) peek() token {
	if p.atEnd() {
		return token{}
	}
	return p.tokens[p.pos]
}

func (p *condParser) next() token {
	t := p.peek()
	p.pos++
	return t
}

func (p *condParser) parseOr() (Condition, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for !p.atEnd() && p.peek().kind == tokOr {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &orExpr{left: left, right: right}
	}
	return left, nil
}

func (p *condParser) parseAnd() (Condition, error) {
	left, err := p.parseCmp()
	if err != nil {
		return nil, err
	}
	for !p.atEnd() && p.peek().kind == tokAnd {
		p.next()
		right, err := p.parseCmp()
		if err != nil {
			return nil, err
		}
		left = &andExpr{left: left, right: right}
	}
	return left, nil
}

func (p *condParser) parseCmp() (Condition, error) {
	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	if !p.atEnd() && (p.peek().kind == tokEq || p.peek().kind == tokNeq) {
		op := p.next()
		right, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		return &cmpExpr{negate: op.kind == tokNeq, left: left, right: right}, nil
	}
	switch l := left.(type) {
	case *groupExpr:
		return l.inner, nil
	case *fieldRef:
		// Bare field reference: truthy check.
		return &truthyExpr{field: l}, nil
	case *literal:
		if b, ok := l.val.(bool); ok {
			return &constExpr{val: b, str: l.str}, nil
		}
	}
	return nil, fmt.Errorf("literal used outside a comparison")
}

// parseOperand returns either a comparable operand (fieldRef/literal) or a
// parenthesized sub-expression wrapped in groupExpr.
func (p *condParser) parseOperand() (condOperand, error) {
	if p.atEnd() {
		return nil, fmt.Errorf("unexpected end of condition")
	}
	t := p.next()
	switch t.kind {
	case tokLParen:
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.atEnd() || p.peek().kind != tokRParen {
			return nil, fmt.Errorf("missing closing parenthesis")
		}
		p.next()
		return &groupExpr{inner: inner}, nil
	case tokIdent:
		return &fieldRef{key: t.text}, nil
	case tokString:
		return &literal{val: t.text, str: fmt.Sprintf("'%s'", t.text)}, nil
	case tokBool:
		return &literal{val: t.text == "true", str: t.text}, nil
	case tokNull:
		return &literal{val: nil, str: "null"}, nil
	case tokNumber:
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q: %w", t.text, err)
		}
		return &literal{val: f, str: t.text}, nil
	}
	return nil, fmt.Errorf("unexpected token %q", t.text)
}

// condOperand is a value-producing node of a comparison.
type condOperand interface {
	resolve(info models.CollectedInfo) any
	String() string
}

type fieldRef struct{ key string }

func (f *fieldRef) resolve(info models.CollectedInfo) any {
	v, ok := info[f.key]
	if !ok {
		return nil
	}
	return v
}

func (f *fieldRef) String() string { return f.key }

type literal struct {
	val any
	str string
}

func (l *literal) resolve(models.CollectedInfo) any { return l.val }
func (l *literal) String() string                   { return l.str }

// groupExpr adapts a parenthesized boolean sub-expression to the operand
// position so "(a == b) && c == d" parses naturally.
type groupExpr struct{ inner Condition }

func (g *groupExpr) resolve(info models.CollectedInfo) any { return g.inner.Eval(info) }
func (g *groupExpr) String() string                        { return "(" + g.inner.String() + ")" }

type cmpExpr struct {
	negate      bool
	left, right condOperand
}

func (c *cmpExpr) Eval(info models.CollectedInfo) bool {
	eq := looseEqual(c.left.resolve(info), c.right.resolve(info))
	if c.negate {
		return !eq
	}
	return eq
}

func (c *cmpExpr) String() string {
	op := "=="
	if c.negate {
		op = "!="
	}
	return fmt.Sprintf("%s %s %s", c.left, op, c.right)
}

type andExpr struct{ left, right Condition }

func (a *andExpr) Eval(info models.CollectedInfo) bool {
	return a.left.Eval(info) && a.right.Eval(info)
}

func (a *andExpr) String() string {
	return fmt.Sprintf("%s && %s", a.left, a.right)
}

type orExpr struct{ left, right Condition }

func (o *orExpr) Eval(info models.CollectedInfo) bool {
	return o.left.Eval(info) || o.right.Eval(info)
}

func (o *orExpr) String() string {
	return fmt.Sprintf("%s || %s", o.left, o.right)
}

type truthyExpr struct{ field *fieldRef }

func (t *truthyExpr) Eval(info models.CollectedInfo) bool {
	switch v := t.field.resolve(info).(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case float64:
		return v != 0
	}
	return true
}

func (t *truthyExpr) String() string { return t.field.String() }

type constExpr struct {
	val bool
	str string
}

func (c *constExpr) Eval(models.CollectedInfo) bool { return c.val }
func (c *constExpr) String() string                 { return c.str }

// looseEqual compares collected values against condition literals: numbers
// numerically, strings and booleans by value, null against absence.
func looseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
		return false
	}
	switch av := a.(type) {
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && strings.TrimSpace(av) == strings.TrimSpace(bv)
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
