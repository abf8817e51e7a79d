package pricing

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ErrDivisionByZero is returned when a formula divides by zero at evaluation time.
var ErrDivisionByZero = errors.New("pricing: division by zero")

// Formula is a compiled price expression. The only free variable is cost;
// named constants are folded in at compile time.
//
// Grammar:
//
//	expr    = term { ("+" | "-") term }
//	term    = unary { ("*" | "/") unary }
//	unary   = "-" unary | primary
//	primary = number | "cost" | constant | func "(" args ")" | "(" expr ")"
//	func    = "min" | "max" | "round" | "ceil" | "floor"
type Formula struct {
	source string
	root   node
}

// String returns the formula source.
func (f *Formula) String() string {
	if f == nil {
		return ""
	}
	return f.source
}

// Eval evaluates the formula for cost.
func (f *Formula) Eval(cost decimal.Decimal) (decimal.Decimal, error) {
	if f == nil || f.root == nil {
		return decimal.Zero, ErrInvalidFormula
	}
	return f.root.eval(cost)
}

// CompileFormula parses src against the whitelisted grammar.
func CompileFormula(src string, constants map[string]decimal.Decimal) (*Formula, error) {
	if strings.TrimSpace(src) == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrInvalidFormula)
	}
	tokens, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens, constants: constants}
	root, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if !p.done() {
		return nil, fmt.Errorf("%w: unexpected %q", ErrInvalidFormula, p.peek().text)
	}
	return &Formula{source: src, root: root}, nil
}

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokIdent
	tokOp
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokenKind
	text string
}

func tokenize(src string) ([]token, error) {
	var tokens []token
	runes := []rune(src)
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case unicode.IsDigit(r) || r == '.':
			start := i
			for i < len(runes) && (unicode.IsDigit(runes[i]) || runes[i] == '.') {
				i++
			}
			tokens = append(tokens, token{kind: tokNumber, text: string(runes[start:i])})
		case unicode.IsLetter(r) || r == '_':
			start := i
			for i < len(runes) && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]) || runes[i] == '_') {
				i++
			}
			tokens = append(tokens, token{kind: tokIdent, text: string(runes[start:i])})
		case strings.ContainsRune("+-*/", r):
			tokens = append(tokens, token{kind: tokOp, text: string(r)})
			i++
		case r == '(':
			tokens = append(tokens, token{kind: tokLParen, text: "("})
			i++
		case r == ')':
			tokens = append(tokens, token{kind: tokRParen, text: ")"})
			i++
		case r == ',':
			tokens = append(tokens, token{kind: tokComma, text: ","})
			i++
		default:
			return nil, fmt.Errorf("%w: illegal character %q", ErrInvalidFormula, r)
		}
	}
	return tokens, nil
}

type parser struct {
	tokens    []token
	pos       int
	constants map[string]decimal.Decimal
}

func (p *parser) done() bool { return p.pos >= len(p.tokens) }

func (p *parser) peek() token {
	if p.done() {
		return token{kind: -1, text: "end of expression"}
	}
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	t := p.peek()
	p.pos++
	return t
}

func (p *parser) expect(kind tokenKind, text string) error {
	if t := p.next(); t.kind != kind {
		return fmt.Errorf("%w: expected %s, got %q", ErrInvalidFormula, text, t.text)
	}
	return nil
}

func (p *parser) parseExpr() (node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for !p.done() && p.peek().kind == tokOp && (p.peek().text == "+" || p.peek().text == "-") {
		op := p.next().text
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseTerm() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for !p.done() && p.peek().kind == tokOp && (p.peek().text == "*" || p.peek().text == "/") {
		op := p.next().text
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (node, error) {
	if t := p.peek(); t.kind == tokOp && t.text == "-" {
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return negNode{operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		v, err := decimal.NewFromString(t.text)
		if err != nil {
			return nil, fmt.Errorf("%w: bad number %q", ErrInvalidFormula, t.text)
		}
		return constNode{value: v}, nil
	case tokLParen:
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokRParen, ")"); err != nil {
			return nil, err
		}
		return inner, nil
	case tokIdent:
		name := strings.ToLower(t.text)
		if arity, ok := funcArity[name]; ok {
			return p.parseCall(name, arity)
		}
		if name == "cost" {
			return costNode{}, nil
		}
		if v, ok := p.constants[t.text]; ok {
			return constNode{value: v}, nil
		}
		return nil, fmt.Errorf("%w: unknown name %q", ErrInvalidFormula, t.text)
	default:
		return nil, fmt.Errorf("%w: unexpected %q", ErrInvalidFormula, t.text)
	}
}

var funcArity = map[string]int{
	"min":   2,
	"max":   2,
	"round": 1,
	"ceil":  1,
	"floor": 1,
}

func (p *parser) parseCall(name string, arity int) (node, error) {
	if err := p.expect(tokLParen, "("); err != nil {
		return nil, err
	}
	args := make([]node, 0, arity)
	for {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if p.peek().kind != tokComma {
			break
		}
		p.next()
	}
	if err := p.expect(tokRParen, ")"); err != nil {
		return nil, err
	}
	if len(args) != arity {
		return nil, fmt.Errorf("%w: %s takes %d argument(s), got %d", ErrInvalidFormula, name, arity, len(args))
	}
	return callNode{name: name, args: args}, nil
}

type node interface {
	eval(cost decimal.Decimal) (decimal.Decimal, error)
}

type constNode struct{ value decimal.Decimal }

func (n constNode) eval(decimal.Decimal) (decimal.Decimal, error) { return n.value, nil }

type costNode struct{}

func (costNode) eval(cost decimal.Decimal) (decimal.Decimal, error) { return cost, nil }

type negNode struct{ operand node }

func (n negNode) eval(cost decimal.Decimal) (decimal.Decimal, error) {
	v, err := n.operand.eval(cost)
	if err != nil {
		return decimal.Zero, err
	}
	return v.Neg(), nil
}

type binaryNode struct {
	op          string
	left, right node
}

func (n binaryNode) eval(cost decimal.Decimal) (decimal.Decimal, error) {
	l, err := n.left.eval(cost)
	if err != nil {
		return decimal.Zero, err
	}
	r, err := n.right.eval(cost)
	if err != nil {
		return decimal.Zero, err
	}
	switch n.op {
	case "+":
		return l.Add(r), nil
	case "-":
		return l.Sub(r), nil
	case "*":
		return l.Mul(r), nil
	default:
		if r.IsZero() {
			return decimal.Zero, ErrDivisionByZero
		}
		return l.Div(r), nil
	}
}

type callNode struct {
	name string
	args []node
}

func (n callNode) eval(cost decimal.Decimal) (decimal.Decimal, error) {
	vals := make([]decimal.Decimal, len(n.args))
	for i, arg := range n.args {
		v, err := arg.eval(cost)
		if err != nil {
			return decimal.Zero, err
		}
		vals[i] = v
	}
	switch n.name {
	case "min":
		return decimal.Min(vals[0], vals[1]), nil
	case "max":
		return decimal.Max(vals[0], vals[1]), nil
	case "round":
		return vals[0].Round(0), nil
	case "ceil":
		return vals[0].Ceil(), nil
	default:
		return vals[0].Floor(), nil
	}
}
