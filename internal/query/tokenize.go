package query

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// Tokenize case-folds text and splits it on every rune that is not a letter or a digit.
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}
	// Casers carry state, so each call gets its own.
	folded := cases.Fold().String(text)
	return strings.FieldsFunc(folded, isSeparator)
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

// Document is a token sequence indexed by term for repeated evaluation.
type Document struct {
	tokens    []string
	positions map[string][]int
}

// NewDocument case-folds tokens before indexing so they compare equal to query terms.
func NewDocument(tokens []string) *Document {
	folded := make([]string, len(tokens))
	caser := cases.Fold()
	for i, tok := range tokens {
		folded[i] = caser.String(tok)
	}
	return newFoldedDocument(folded)
}

func NewDocumentFromText(text string) *Document {
	return newFoldedDocument(Tokenize(text))
}

func newFoldedDocument(tokens []string) *Document {
	positions := make(map[string][]int, len(tokens))
	for i, tok := range tokens {
		positions[tok] = append(positions[tok], i)
	}
	return &Document{tokens: tokens, positions: positions}
}

func (d *Document) Len() int {
	return len(d.tokens)
}

func (d *Document) has(term string) bool {
	return len(d.positions[term]) > 0
}

func (d *Document) hasSequence(terms []string) bool {
	if len(terms) == 0 {
		return false
	}
	for _, start := range d.positions[terms[0]] {
		if start+len(terms) > len(d.tokens) {
			break
		}
		ok := true
		for k := 1; k < len(terms); k++ {
			if d.tokens[start+k] != terms[k] {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

// within reports whether some occurrence of a and some occurrence of b are at most n
// positions apart. When a and b are the same term the two occurrences must differ.
func (d *Document) within(a, b string, n int) bool {
	pa, pb := d.positions[a], d.positions[b]
	if len(pa) == 0 || len(pb) == 0 {
		return false
	}
	same := a == b
	i, j := 0, 0
	for i < len(pa) && j < len(pb) {
		x, y := pa[i], pb[j]
		if !(same && x == y) && abs(x-y) <= n {
			return true
		}
		if x <= y {
			i++
		} else {
			j++
		}
	}
	return false
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
