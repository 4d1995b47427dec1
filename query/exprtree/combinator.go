package exprtree

import (
	"github.com/INLOpen/skiplist"
)

// costKey orders a combinator's children by estimated evaluation cost, with
// insertion order as a tiebreak so two equally cheap children keep the
// order the predicate compiler produced them in.
type costKey struct {
	cost int
	seq  int
}

func costComparator(a, b costKey) int {
	if a.cost != b.cost {
		return a.cost - b.cost
	}
	return a.seq - b.seq
}

// estimateCost is a rough per-node evaluation cost used only to order
// And/Or children so cheap predicates short-circuit first. It does not need
// to be exact, only monotonic with subtree size and node kind.
func estimateCost(n Node) int {
	switch v := n.(type) {
	case Tautology:
		return 0
	case ColumnValue, ConstValue:
		return 0
	case Specialized:
		return 1
	case Compare:
		return 2 + estimateCost(v.Left) + estimateCost(v.Right)
	case Not:
		return 1 + estimateCost(v.Child)
	case Aggregate:
		return 5
	case And:
		return sumCost(v.Children) + 1
	case Or:
		return sumCost(v.Children) + 1
	default:
		return 3
	}
}

func sumCost(children []Node) int {
	total := 0
	for _, c := range children {
		total += estimateCost(c)
	}
	return total
}

// orderByCost sorts children cheapest-first using a skiplist keyed by
// estimated cost, the same ordered-structure idiom the allocator's teacher
// package uses for its in-memory sorted index.
func orderByCost(children []Node) []Node {
	if len(children) < 2 {
		return children
	}
	list := skiplist.NewWithComparator[costKey, Node](costComparator)
	for i, c := range children {
		list.Insert(costKey{cost: estimateCost(c), seq: i}, c)
	}
	ordered := make([]Node, 0, len(children))
	iter := list.NewIterator()
	for iter.Next() {
		ordered = append(ordered, iter.Value())
	}
	return ordered
}

// NewAnd builds an And node with its children ordered cheapest-first
// (spec.md §4.2 Boolean combinators).
func NewAnd(children []Node) And {
	return And{Children: orderByCost(children)}
}

// NewOr builds an Or node with its children ordered cheapest-first.
func NewOr(children []Node) Or {
	return Or{Children: orderByCost(children)}
}
