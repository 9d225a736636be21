package expr

import (
	"fmt"
	"sort"
	"strings"

	"smartcollections/internal/criteria"
)

// ParseError is one problem found in an expression. Pos is the byte offset
// in the input.
type ParseError struct {
	Pos     int    `json:"pos"`
	Message string `json:"message"`
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("position %d: %s", e.Pos, e.Message)
}

func newError(pos int, msg string) *ParseError {
	return &ParseError{Pos: pos, Message: msg}
}

// ErrorList joins parse errors into one error value for callers that want
// an error.
type ErrorList []*ParseError

func (l ErrorList) Error() string {
	msgs := make([]string, len(l))
	for i, e := range l {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Parse parses input. On any problem it returns a nil tree and every error
// found, ordered by position. Parse keeps no state between calls.
func Parse(input string) (Node, []*ParseError) {
	tokens, errs := tokenize(input)
	p := &parser{tokens: tokens, errs: errs}

	if p.peek().kind == tokEOF {
		if len(p.errs) == 0 {
			p.errorf(0, "expression is empty")
		}
		return nil, p.errs
	}

	root := p.parseExpr()
	for p.peek().kind != tokEOF {
		t := p.peek()
		if t.kind == tokRParen {
			p.errorf(t.pos, "unbalanced ')'")
			p.next()
			continue
		}
		p.errorf(t.pos, "expected AND or OR before %s", t.describe())
		p.parseExpr()
	}

	if len(p.errs) > 0 {
		sort.SliceStable(p.errs, func(i, j int) bool { return p.errs[i].Pos < p.errs[j].Pos })
		return nil, p.errs
	}
	return root, nil
}

// MustParse is Parse for expressions known to be valid, such as test
// fixtures. It panics on error.
func MustParse(input string) Node {
	n, errs := Parse(input)
	if len(errs) > 0 {
		panic(ErrorList(errs))
	}
	return n
}

type parser struct {
	tokens []token
	pos    int
	errs   []*ParseError
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorf(pos int, format string, args ...any) {
	p.errs = append(p.errs, newError(pos, fmt.Sprintf(format, args...)))
}

// expr := term (OR term)*
func (p *parser) parseExpr() Node {
	left := p.parseTerm()
	for p.peek().kind == tokOr {
		p.next()
		right := p.parseTerm()
		left = &Or{Left: left, Right: right}
	}
	return left
}

// term := factor (AND factor)*
func (p *parser) parseTerm() Node {
	left := p.parseFactor()
	for p.peek().kind == tokAnd {
		p.next()
		right := p.parseFactor()
		left = &And{Left: left, Right: right}
	}
	return left
}

// factor := NOT factor | '(' expr ')' | CRITERION value? | STATE
func (p *parser) parseFactor() Node {
	t := p.peek()

	switch t.kind {
	case tokNot:
		p.next()
		return &Not{Child: p.parseFactor()}

	case tokLParen:
		p.next()
		if p.peek().kind == tokRParen {
			p.errorf(t.pos, "empty parentheses")
			p.next()
			return nil
		}
		inner := p.parseExpr()
		if p.peek().kind == tokRParen {
			p.next()
		} else {
			p.errorf(t.pos, "missing ')' for '(' at position %d", t.pos)
		}
		return &Group{Child: inner}

	case tokCriterion:
		p.next()
		return p.parseCriterion(t)

	case tokAnd, tokOr:
		p.errorf(t.pos, "missing operand before %s", t.describe())
		p.next()
		return p.parseFactor()

	case tokString:
		p.errorf(t.pos, "%s is not preceded by a criterion", t.describe())
		p.next()
		return nil

	case tokRParen:
		p.errorf(t.pos, "missing operand before ')'")
		return nil

	default:
		p.errorf(t.pos, "unexpected end of expression")
		return nil
	}
}

func (p *parser) parseCriterion(t token) Node {
	kind := t.crit
	c := criteria.Criterion{Kind: kind}

	if kind.TakesValue() {
		if p.peek().kind != tokString {
			p.errorf(t.pos, "%s requires a quoted value", kind)
			return nil
		}
		c.Value = p.next().value
		return &Leaf{Criterion: c}
	}

	if v := p.peek(); v.kind == tokString {
		p.errorf(v.pos, "%s does not take a value", kind)
		p.next()
		return nil
	}
	return &Leaf{Criterion: c}
}
