package nlu

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var ErrMalformed = errors.New("malformed expression")

// allowedChars is the only input the evaluator ever sees. Filtering happens
// before evaluation so spoken garbage can never reach the parser.
const allowedChars = "0123456789.+-*/ "

var arithmeticTriggers = []string{"calculate", "what is", "what's", "how much is"}

// operator words are replaced in this order; "x" goes right after "times"
var operatorWords = []struct{ word, symbol string }{
	{"times", "*"},
	{"x", "*"},
	{"divided by", "/"},
	{"plus", "+"},
	{"minus", "-"},
}

func Filter(s string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(allowedChars, r) {
			return r
		}
		return -1
	}, s)
}

// SpokenExpression turns "what is 12 times 3" into "12 * 3".
func SpokenExpression(cmd Command) string {
	expr := string(cmd)
	for _, t := range arithmeticTriggers {
		expr = strings.ReplaceAll(expr, t, "")
	}
	for _, op := range operatorWords {
		expr = strings.ReplaceAll(expr, op.word, op.symbol)
	}
	return strings.TrimSpace(Filter(expr))
}

// Number keeps track of whether a value is still integral, so results read
// "36" for 12 * 3 and "2.5" or "5.0" once a division is involved.
type Number struct {
	Value float64
	Float bool
}

func (n Number) String() string {
	s := strconv.FormatFloat(n.Value, 'f', -1, 64)
	if n.Float && !strings.ContainsAny(s, ".eEIN") {
		s += ".0"
	}
	return s
}

// Eval evaluates an expression made of numbers and + - * / // ** with the
// usual precedence. Operators dangling at the end are ignored.
func Eval(expr string) (Number, error) {
	toks, err := tokenize(Filter(expr))
	if err != nil {
		return Number{}, err
	}

	for len(toks) > 0 && toks[len(toks)-1].op != "" {
		toks = toks[:len(toks)-1]
	}
	if len(toks) == 0 {
		return Number{}, fmt.Errorf("%w: empty", ErrMalformed)
	}

	p := &parser{toks: toks}
	n, err := p.expr()
	if err != nil {
		return Number{}, err
	}
	if p.pos != len(p.toks) {
		return Number{}, fmt.Errorf("%w: unexpected %s", ErrMalformed, p.toks[p.pos])
	}
	if math.IsNaN(n.Value) || math.IsInf(n.Value, 0) {
		return Number{}, fmt.Errorf("%w: result out of range", ErrMalformed)
	}

	return n, nil
}

type token struct {
	op  string
	num Number
}

func (t token) String() string {
	if t.op != "" {
		return strconv.Quote(t.op)
	}
	return t.num.String()
}

func tokenize(s string) ([]token, error) {
	var toks []token

	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == ' ':
			i++

		case c == '.' || (c >= '0' && c <= '9'):
			j := i
			for j < len(s) && (s[j] == '.' || (s[j] >= '0' && s[j] <= '9')) {
				j++
			}
			lit := s[i:j]
			v, err := strconv.ParseFloat(lit, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: bad number %q", ErrMalformed, lit)
			}
			toks = append(toks, token{num: Number{Value: v, Float: strings.Contains(lit, ".")}})
			i = j

		case c == '*' || c == '/':
			if i+1 < len(s) && s[i+1] == c {
				toks = append(toks, token{op: string([]byte{c, c})})
				i += 2
				continue
			}
			toks = append(toks, token{op: string(c)})
			i++

		case c == '+' || c == '-':
			toks = append(toks, token{op: string(c)})
			i++

		default:
			return nil, fmt.Errorf("%w: unexpected %q", ErrMalformed, c)
		}
	}

	return toks, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() string {
	if p.pos < len(p.toks) {
		return p.toks[p.pos].op
	}
	return ""
}

func (p *parser) expr() (Number, error) {
	left, err := p.term()
	if err != nil {
		return Number{}, err
	}

	for op := p.peek(); op == "+" || op == "-"; op = p.peek() {
		p.pos++
		right, err := p.term()
		if err != nil {
			return Number{}, err
		}
		if op == "+" {
			left = Number{left.Value + right.Value, left.Float || right.Float}
		} else {
			left = Number{left.Value - right.Value, left.Float || right.Float}
		}
	}

	return left, nil
}

func (p *parser) term() (Number, error) {
	left, err := p.unary()
	if err != nil {
		return Number{}, err
	}

	for op := p.peek(); op == "*" || op == "/" || op == "//"; op = p.peek() {
		p.pos++
		right, err := p.unary()
		if err != nil {
			return Number{}, err
		}

		switch op {
		case "*":
			left = Number{left.Value * right.Value, left.Float || right.Float}
		case "/":
			if right.Value == 0 {
				return Number{}, fmt.Errorf("%w: division by zero", ErrMalformed)
			}
			left = Number{left.Value / right.Value, true}
		case "//":
			if right.Value == 0 {
				return Number{}, fmt.Errorf("%w: division by zero", ErrMalformed)
			}
			left = Number{math.Floor(left.Value / right.Value), left.Float || right.Float}
		}
	}

	return left, nil
}

func (p *parser) unary() (Number, error) {
	switch p.peek() {
	case "+":
		p.pos++
		return p.unary()
	case "-":
		p.pos++
		n, err := p.unary()
		n.Value = -n.Value
		return n, err
	}
	return p.power()
}

func (p *parser) power() (Number, error) {
	base, err := p.atom()
	if err != nil {
		return Number{}, err
	}
	if p.peek() != "**" {
		return base, nil
	}

	p.pos++
	exp, err := p.unary()
	if err != nil {
		return Number{}, err
	}
	if base.Value == 0 && exp.Value < 0 {
		return Number{}, fmt.Errorf("%w: division by zero", ErrMalformed)
	}

	return Number{
		Value: math.Pow(base.Value, exp.Value),
		Float: base.Float || exp.Float || exp.Value < 0,
	}, nil
}

func (p *parser) atom() (Number, error) {
	if p.pos >= len(p.toks) {
		return Number{}, fmt.Errorf("%w: unexpected end", ErrMalformed)
	}
	t := p.toks[p.pos]
	if t.op != "" {
		return Number{}, fmt.Errorf("%w: unexpected %s", ErrMalformed, t)
	}
	p.pos++
	return t.num, nil
}
