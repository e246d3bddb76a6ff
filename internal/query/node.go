package query

import (
	"fmt"
	"strings"
)

// Node is one predicate in a compiled query tree. The set of implementations is closed:
// Word, Phrase, Proximity, And and Or.
type Node interface {
	eval(doc *Document) bool
	String() string
}

type Word struct {
	Term string
}

func (n *Word) eval(doc *Document) bool {
	return doc.has(n.Term)
}

func (n *Word) String() string {
	return n.Term
}

// Phrase matches a contiguous run of terms.
type Phrase struct {
	Terms []string
}

func (n *Phrase) eval(doc *Document) bool {
	return doc.hasSequence(n.Terms)
}

func (n *Phrase) String() string {
	return fmt.Sprintf("%q", strings.Join(n.Terms, " "))
}

type Proximity struct {
	Left     string
	Right    string
	Distance int
}

func (n *Proximity) eval(doc *Document) bool {
	return doc.within(n.Left, n.Right, n.Distance)
}

func (n *Proximity) String() string {
	return fmt.Sprintf("%s NEAR/%d %s", n.Left, n.Distance, n.Right)
}

type And struct {
	Left  Node
	Right Node
}

func (n *And) eval(doc *Document) bool {
	return n.Left.eval(doc) && n.Right.eval(doc)
}

func (n *And) String() string {
	return fmt.Sprintf("(%s AND %s)", n.Left, n.Right)
}

type Or struct {
	Left  Node
	Right Node
}

func (n *Or) eval(doc *Document) bool {
	return n.Left.eval(doc) || n.Right.eval(doc)
}

func (n *Or) String() string {
	return fmt.Sprintf("(%s OR %s)", n.Left, n.Right)
}
