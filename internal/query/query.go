// Package query compiles topic query strings into predicate trees and evaluates them
// against tokenized text.
package query

// Query is a compiled query string.
type Query struct {
	source string
	root   Node
}

// Compile parses q. Malformed input yields a *types.CompileError.
func Compile(q string) (*Query, error) {
	tokens, err := lex(q)
	if err != nil {
		return nil, err
	}

	p := &parser{query: q, tokens: tokens}
	root, err := p.parse()
	if err != nil {
		return nil, err
	}

	return &Query{source: q, root: root}, nil
}

// MustCompile is like Compile but panics on error. Intended for tests and literals.
func MustCompile(q string) *Query {
	compiled, err := Compile(q)
	if err != nil {
		panic(err)
	}
	return compiled
}

func (q *Query) Matches(tokens []string) bool {
	return q.MatchDocument(NewDocument(tokens))
}

func (q *Query) MatchDocument(doc *Document) bool {
	return q.root.eval(doc)
}

func (q *Query) MatchText(text string) bool {
	return q.MatchDocument(NewDocumentFromText(text))
}

func (q *Query) Source() string {
	return q.source
}

func (q *Query) Root() Node {
	return q.root
}

func (q *Query) String() string {
	return q.root.String()
}
