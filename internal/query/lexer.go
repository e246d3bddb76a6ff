package query

import (
	"fmt"
	"strconv"
	"strings"

	"trender/internal/types"
)

// MaxNearDistance bounds the n in NEAR/n.
const MaxNearDistance = 1000

type tokenKind int

const (
	tokWord tokenKind = iota
	tokPhrase
	tokAnd
	tokOr
	tokNear
)

func (k tokenKind) String() string {
	switch k {
	case tokWord:
		return "term"
	case tokPhrase:
		return "phrase"
	case tokAnd:
		return "AND"
	case tokOr:
		return "OR"
	case tokNear:
		return "NEAR"
	}
	return "unknown"
}

type token struct {
	kind  tokenKind
	text  string
	terms []string
	dist  int
	pos   int
}

func (t token) isOperand() bool {
	return t.kind == tokWord || t.kind == tokPhrase
}

// lex is the first pass: it pulls quoted phrases and NEAR/n markers out of the raw
// query and classifies the remaining whitespace separated words.
func lex(q string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(q) {
		if isSpaceAt(q, i) {
			i++
			continue
		}

		if q[i] == '"' {
			end := strings.IndexByte(q[i+1:], '"')
			if end < 0 {
				return nil, types.NewCompileError(q, i, "unbalanced quote")
			}
			body := q[i+1 : i+1+end]
			terms := Tokenize(body)
			if len(terms) == 0 {
				return nil, types.NewCompileError(q, i, "empty phrase")
			}
			tokens = append(tokens, token{kind: tokPhrase, text: body, terms: terms, pos: i})
			i += end + 2
			continue
		}

		start := i
		for i < len(q) && q[i] != '"' && !isSpaceAt(q, i) {
			i++
		}
		word := q[start:i]

		tok, err := classify(q, word, start)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
	}
	return tokens, nil
}

func classify(q, word string, pos int) (token, error) {
	switch {
	case word == "AND":
		return token{kind: tokAnd, text: word, pos: pos}, nil
	case word == "OR":
		return token{kind: tokOr, text: word, pos: pos}, nil
	case strings.HasPrefix(word, "NEAR/"):
		raw := word[len("NEAR/"):]
		if raw == "" {
			return token{}, types.NewCompileError(q, pos, "missing NEAR distance")
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return token{}, types.NewCompileError(q, pos, fmt.Sprintf("non-numeric NEAR distance %q", raw))
		}
		if n < 0 || n > MaxNearDistance {
			return token{}, types.NewCompileError(q, pos, fmt.Sprintf("NEAR distance %d out of range [0, %d]", n, MaxNearDistance)).
				WithDetail("distance", n)
		}
		return token{kind: tokNear, text: word, dist: n, pos: pos}, nil
	}

	terms := Tokenize(word)
	if len(terms) == 0 {
		return token{}, types.NewCompileError(q, pos, fmt.Sprintf("term %q has no letters or digits", word))
	}
	return token{kind: tokWord, text: word, terms: terms, pos: pos}, nil
}

func isSpaceAt(q string, i int) bool {
	c := q[i]
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}
