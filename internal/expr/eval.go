package expr

import "smartcollections/internal/criteria"

// Predicate answers a single criterion for the entity being evaluated.
type Predicate func(criteria.Criterion) bool

// Evaluate walks n with short-circuit AND/OR, left to right. A nil tree, a
// nil predicate or an unknown node type evaluates to false.
func Evaluate(n Node, pred Predicate) bool {
	if pred == nil {
		return false
	}
	return eval(n, pred)
}

func eval(n Node, pred Predicate) bool {
	switch v := n.(type) {
	case *Leaf:
		if v == nil {
			return false
		}
		return pred(v.Criterion)
	case *And:
		return eval(v.Left, pred) && eval(v.Right, pred)
	case *Or:
		return eval(v.Left, pred) || eval(v.Right, pred)
	case *Not:
		return !eval(v.Child, pred)
	case *Group:
		return eval(v.Child, pred)
	}
	return false
}
