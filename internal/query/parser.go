package query

import (
	"fmt"

	"trender/internal/types"
)

// parser is the second pass: recursive descent over the lexed tokens.
//
//	expr    := andExpr { "OR" andExpr }
//	andExpr := operand { ["AND"] operand }
//	operand := PHRASE | TERM [ NEAR TERM ]
type parser struct {
	query  string
	tokens []token
	pos    int
}

func (p *parser) peek() (token, bool) {
	if p.pos >= len(p.tokens) {
		return token{}, false
	}
	return p.tokens[p.pos], true
}

func (p *parser) next() (token, bool) {
	tok, ok := p.peek()
	if ok {
		p.pos++
	}
	return tok, ok
}

func (p *parser) errorf(pos int, format string, args ...interface{}) error {
	return types.NewCompileError(p.query, pos, fmt.Sprintf(format, args...))
}

func (p *parser) endPos() int {
	return len(p.query)
}

func (p *parser) parse() (Node, error) {
	if len(p.tokens) == 0 {
		return nil, p.errorf(0, "empty query")
	}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok, ok := p.peek(); ok {
		return nil, p.errorf(tok.pos, "unexpected %s", tok.kind)
	}
	return root, nil
}

func (p *parser) parseOr() (Node, error) {
	left, err := p.parseAnd("")
	if err != nil {
		return nil, err
	}
	for {
		tok, ok := p.peek()
		if !ok || tok.kind != tokOr {
			return left, nil
		}
		p.pos++
		right, err := p.parseAnd("OR")
		if err != nil {
			return nil, err
		}
		left = &Or{Left: left, Right: right}
	}
}

func (p *parser) parseAnd(after string) (Node, error) {
	left, err := p.parseOperand(after)
	if err != nil {
		return nil, err
	}
	for {
		tok, ok := p.peek()
		if !ok {
			return left, nil
		}

		var right Node
		switch {
		case tok.kind == tokAnd:
			p.pos++
			right, err = p.parseOperand("AND")
		case tok.isOperand():
			right, err = p.parseOperand("")
		default:
			return left, nil
		}
		if err != nil {
			return nil, err
		}
		left = &And{Left: left, Right: right}
	}
}

func (p *parser) parseOperand(after string) (Node, error) {
	tok, ok := p.next()
	if !ok {
		if after == "" {
			return nil, p.errorf(p.endPos(), "missing operand")
		}
		return nil, p.errorf(p.endPos(), "%s missing right operand", after)
	}

	switch tok.kind {
	case tokAnd, tokOr:
		if after != "" {
			return nil, p.errorf(tok.pos, "%s missing right operand", after)
		}
		return nil, p.errorf(tok.pos, "%s missing left operand", tok.kind)
	case tokNear:
		return nil, p.errorf(tok.pos, "NEAR missing left operand")
	case tokPhrase:
		if nt, ok := p.peek(); ok && nt.kind == tokNear {
			return nil, p.errorf(tok.pos, "NEAR operands must be single words, got phrase %q", tok.text)
		}
		return &Phrase{Terms: tok.terms}, nil
	}

	nt, ok := p.peek()
	if !ok || nt.kind != tokNear {
		if len(tok.terms) == 1 {
			return &Word{Term: tok.terms[0]}, nil
		}
		return &Phrase{Terms: tok.terms}, nil
	}
	p.pos++
	return p.parseProximity(tok, nt)
}

func (p *parser) parseProximity(left, near token) (Node, error) {
	if len(left.terms) != 1 {
		return nil, p.errorf(left.pos, "NEAR operands must be single words, got %q", left.text)
	}

	right, ok := p.next()
	if !ok {
		return nil, p.errorf(p.endPos(), "NEAR missing right operand")
	}
	if right.kind != tokWord {
		return nil, p.errorf(right.pos, "NEAR right operand must be a single word, got %s", right.kind)
	}
	if len(right.terms) != 1 {
		return nil, p.errorf(right.pos, "NEAR operands must be single words, got %q", right.text)
	}
	if nt, ok := p.peek(); ok && nt.kind == tokNear {
		return nil, p.errorf(nt.pos, "chained NEAR is not supported")
	}

	return &Proximity{
		Left:     left.terms[0],
		Right:    right.terms[0],
		Distance: near.dist,
	}, nil
}
