package query

import (
	"fmt"
	"strings"
	"unicode"
)

// Parse reads a query expression such as
//
//	Filename == 'a.txt' OR (Filename == 'b.txt' AND ProductName != 'X')
//
// Supported comparisons are ==, !=, <, <=, >, >= and LIKE. AND, OR and NOT
// combine them (&& and || are accepted too) and parentheses group. A top
// level AND is flattened into separate query criteria. An empty expression
// yields an empty query.
func Parse(expr string) (*Query, error) {
	toks, err := lex(expr)
	if err != nil {
		return nil, err
	}
	if len(toks) == 0 {
		return New(), nil
	}
	p := &parser{toks: toks}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.done() {
		return nil, fmt.Errorf("unexpected %q at offset %d", p.peek().text, p.peek().pos)
	}
	q := New()
	if b, ok := root.(Boolean); ok && b.Op == And {
		q.Criteria = append(q.Criteria, b.Children...)
	} else {
		q.Add(root)
	}
	return q, q.Validate()
}

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokString
	tokOp
	tokLParen
	tokRParen
	tokAnd
	tokOr
	tokNot
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func lex(input string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(input) {
		c := rune(input[i])
		switch {
		case unicode.IsSpace(c):
			i++
		case c == '(':
			toks = append(toks, token{kind: tokLParen, text: "(", pos: i})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokRParen, text: ")", pos: i})
			i++
		case c == '\'' || c == '"':
			start := i
			i++
			var sb strings.Builder
			closed := false
			for i < len(input) {
				if input[i] == '\\' && i+1 < len(input) {
					sb.WriteByte(input[i+1])
					i += 2
					continue
				}
				if rune(input[i]) == c {
					closed = true
					i++
					break
				}
				sb.WriteByte(input[i])
				i++
			}
			if !closed {
				return nil, fmt.Errorf("unterminated string at offset %d", start)
			}
			toks = append(toks, token{kind: tokString, text: sb.String(), pos: start})
		case strings.ContainsRune("=!<>", c):
			start := i
			op := string(c)
			if i+1 < len(input) && input[i+1] == '=' {
				op += "="
			}
			switch op {
			case "==", "!=", "<", "<=", ">", ">=":
			case "!":
				toks = append(toks, token{kind: tokNot, text: op, pos: start})
				i++
				continue
			default:
				return nil, fmt.Errorf("unknown operator %q at offset %d", op, start)
			}
			toks = append(toks, token{kind: tokOp, text: op, pos: start})
			i += len(op)
		case c == '&' || c == '|':
			if i+1 >= len(input) || input[i+1] != input[i] {
				return nil, fmt.Errorf("unknown operator %q at offset %d", string(c), i)
			}
			kind := tokAnd
			if c == '|' {
				kind = tokOr
			}
			toks = append(toks, token{kind: kind, text: input[i : i+2], pos: i})
			i += 2
		case isWordChar(c):
			start := i
			for i < len(input) && isWordChar(rune(input[i])) {
				i++
			}
			word := input[start:i]
			switch strings.ToUpper(word) {
			case "AND":
				toks = append(toks, token{kind: tokAnd, text: word, pos: start})
			case "OR":
				toks = append(toks, token{kind: tokOr, text: word, pos: start})
			case "NOT":
				toks = append(toks, token{kind: tokNot, text: word, pos: start})
			case "LIKE":
				toks = append(toks, token{kind: tokOp, text: "LIKE", pos: start})
			default:
				toks = append(toks, token{kind: tokIdent, text: word, pos: start})
			}
		default:
			return nil, fmt.Errorf("unexpected character %q at offset %d", c, i)
		}
	}
	return toks, nil
}

func isWordChar(c rune) bool {
	return unicode.IsLetter(c) || unicode.IsDigit(c) || c == '_' || c == '.' || c == '-' || c == ':' || c == '/'
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) done() bool { return p.pos >= len(p.toks) }

func (p *parser) peek() token {
	if p.done() {
		return token{kind: -1, text: "end of input", pos: -1}
	}
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.peek()
	p.pos++
	return t
}

func (p *parser) parseOr() (Criterion, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	children := []Criterion{left}
	for !p.done() && p.peek().kind == tokOr {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		children = append(children, right)
	}
	if len(children) == 1 {
		return left, nil
	}
	return NewOr(children...), nil
}

func (p *parser) parseAnd() (Criterion, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	children := []Criterion{left}
	for !p.done() && p.peek().kind == tokAnd {
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		children = append(children, right)
	}
	if len(children) == 1 {
		return left, nil
	}
	return NewAnd(children...), nil
}

func (p *parser) parseUnary() (Criterion, error) {
	switch p.peek().kind {
	case tokNot:
		p.next()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return NewNot(inner), nil
	case tokLParen:
		p.next()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if t := p.next(); t.kind != tokRParen {
			return nil, fmt.Errorf("expected ) but found %q", t.text)
		}
		return inner, nil
	default:
		return p.parseComparison()
	}
}

func (p *parser) parseComparison() (Criterion, error) {
	elem := p.next()
	if elem.kind != tokIdent {
		return nil, fmt.Errorf("expected element name but found %q", elem.text)
	}
	op := p.next()
	if op.kind != tokOp {
		return nil, fmt.Errorf("expected comparison after %s but found %q", elem.text, op.text)
	}
	val := p.next()
	if val.kind != tokString && val.kind != tokIdent {
		return nil, fmt.Errorf("expected value after %s %s but found %q", elem.text, op.text, val.text)
	}
	name, value := elem.text, val.text
	switch op.text {
	case "==":
		return Term{Element: name, Value: value, Exact: true}, nil
	case "!=":
		return NewNot(Term{Element: name, Value: value, Exact: true}), nil
	case "LIKE":
		return Term{Element: name, Value: value}, nil
	case "<":
		return Range{Element: name, End: value}, nil
	case "<=":
		return Range{Element: name, End: value, Inclusive: true}, nil
	case ">":
		return Range{Element: name, Start: value}, nil
	default:
		return Range{Element: name, Start: value, Inclusive: true}, nil
	}
}
