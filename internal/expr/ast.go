// Package expr parses and evaluates boolean criteria expressions such as
//
//	GENRE "Horror" AND NOT (TAG "kids" OR PARENTAL "G")
//
// Keywords are case-insensitive. NOT binds tighter than AND, which binds
// tighter than OR.
package expr

import "smartcollections/internal/criteria"

// Node is an immutable expression tree node. String renders the canonical
// text form, which parses back to an equal tree.
type Node interface {
	String() string
	node()
}

type Leaf struct {
	Criterion criteria.Criterion
}

type And struct {
	Left, Right Node
}

type Or struct {
	Left, Right Node
}

type Not struct {
	Child Node
}

// Group is an explicit pair of parentheses.
type Group struct {
	Child Node
}

func (*Leaf) node()  {}
func (*And) node()   {}
func (*Or) node()    {}
func (*Not) node()   {}
func (*Group) node() {}

func (n *Leaf) String() string { return n.Criterion.String() }

func (n *And) String() string {
	return wrapOr(n.Left) + " AND " + wrapOr(n.Right)
}

func (n *Or) String() string {
	return n.Left.String() + " OR " + n.Right.String()
}

func (n *Not) String() string {
	switch n.Child.(type) {
	case *And, *Or:
		return "NOT (" + n.Child.String() + ")"
	}
	return "NOT " + n.Child.String()
}

func (n *Group) String() string { return "(" + n.Child.String() + ")" }

// wrapOr keeps hand-built trees printable: an OR directly under an AND
// needs parentheses to keep its meaning.
func wrapOr(n Node) string {
	if _, ok := n.(*Or); ok {
		return "(" + n.String() + ")"
	}
	return n.String()
}

// Criteria lists the leaves of n from left to right.
func Criteria(n Node) []criteria.Criterion {
	var out []criteria.Criterion
	walk(n, func(c criteria.Criterion) { out = append(out, c) })
	return out
}

// References reports whether any leaf of n uses one of kinds.
func References(n Node, kinds ...criteria.Kind) bool {
	found := false
	walk(n, func(c criteria.Criterion) {
		for _, k := range kinds {
			if c.Kind == k {
				found = true
			}
		}
	})
	return found
}

func walk(n Node, fn func(criteria.Criterion)) {
	switch v := n.(type) {
	case *Leaf:
		fn(v.Criterion)
	case *And:
		walk(v.Left, fn)
		walk(v.Right, fn)
	case *Or:
		walk(v.Left, fn)
		walk(v.Right, fn)
	case *Not:
		walk(v.Child, fn)
	case *Group:
		walk(v.Child, fn)
	}
}
