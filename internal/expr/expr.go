// Package expr evaluates arithmetic expressions of the shape left behind
// after variable substitution in option formulas: numeric literals combined
// with + - * / and parentheses. Anything else is rejected so the evaluator
// can never be driven into executing arbitrary code.
package expr

import (
	"fmt"
)

// Eval parses and evaluates a fully substituted arithmetic expression.
func Eval(input string) (float64, error) {
	p := &parser{src: input}
	p.skipSpaces()
	if p.eof() {
		return 0, &SyntaxError{Input: input, Pos: p.pos, Msg: "empty expression"}
	}
	v, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	p.skipSpaces()
	if !p.eof() {
		return 0, &SyntaxError{Input: input, Pos: p.pos, Msg: fmt.Sprintf("unexpected %q", p.src[p.pos])}
	}
	return v, nil
}

// SyntaxError reports a malformed or out-of-grammar expression.
type SyntaxError struct {
	Input string
	Pos   int
	Msg   string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("expression %q: %s at offset %d", e.Input, e.Msg, e.Pos)
}

// DivisionError reports division by zero during evaluation.
type DivisionError struct {
	Input string
}

func (e *DivisionError) Error() string {
	return fmt.Sprintf("expression %q: division by zero", e.Input)
}

// parser is a recursive-descent evaluator over the grammar:
//
//	expr    = term   { ("+" | "-") term }
//	term    = unary  { ("*" | "/") unary }
//	unary   = "-" unary | primary
//	primary = number | "(" expr ")"
type parser struct {
	src string
	pos int
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) skipSpaces() {
	for !p.eof() && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) parseExpr() (float64, error) {
	left, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpaces()
		switch p.peek() {
		case '+':
			p.pos++
			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			left += right
		case '-':
			p.pos++
			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			left -= right
		default:
			return left, nil
		}
	}
}

func (p *parser) parseTerm() (float64, error) {
	left, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpaces()
		switch p.peek() {
		case '*':
			p.pos++
			right, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			left *= right
		case '/':
			p.pos++
			right, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			if right == 0 {
				return 0, &DivisionError{Input: p.src}
			}
			left /= right
		default:
			return left, nil
		}
	}
}

func (p *parser) parseUnary() (float64, error) {
	p.skipSpaces()
	if p.peek() == '-' {
		p.pos++
		v, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		return -v, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (float64, error) {
	p.skipSpaces()
	if p.eof() {
		return 0, &SyntaxError{Input: p.src, Pos: p.pos, Msg: "unexpected end of expression"}
	}
	if p.peek() == '(' {
		p.pos++
		v, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		p.skipSpaces()
		if p.peek() != ')' {
			return 0, &SyntaxError{Input: p.src, Pos: p.pos, Msg: "missing closing parenthesis"}
		}
		p.pos++
		return v, nil
	}
	return p.parseNumber()
}

func (p *parser) parseNumber() (float64, error) {
	start := p.pos
	for !p.eof() && isDigit(p.src[p.pos]) {
		p.pos++
	}
	if !p.eof() && p.src[p.pos] == '.' {
		p.pos++
		for !p.eof() && isDigit(p.src[p.pos]) {
			p.pos++
		}
	}
	lit := p.src[start:p.pos]
	if lit == "" || lit == "." {
		return 0, &SyntaxError{Input: p.src, Pos: start, Msg: fmt.Sprintf("expected number, found %q", rest(p.src, start))}
	}
	var v float64
	if _, err := fmt.Sscanf(lit, "%g", &v); err != nil {
		return 0, &SyntaxError{Input: p.src, Pos: start, Msg: fmt.Sprintf("bad numeric literal %q", lit)}
	}
	return v, nil
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func rest(s string, pos int) string {
	if pos >= len(s) {
		return ""
	}
	if len(s)-pos > 8 {
		return s[pos:pos+8] + "..."
	}
	return s[pos:]
}
