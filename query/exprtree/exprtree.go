// Package exprtree implements the query compiler's generic "slow path"
// expression tree (spec.md §4.2 item 2): the Compare<Op> node family used
// whenever a predicate cannot be lowered to a column-specialized primitive.
// Nodes own their children as plain Go values; no raw pointers escape
// (spec.md §9's replacement for the source's owning-pointer AST).
package exprtree

import (
	"github.com/nexuscore/tdbcore/query/predast"
	"github.com/nexuscore/tdbcore/query/schema"
)

// Node is the closed sum type for the generic expression tree.
type Node interface {
	isExprNode()
}

// CompareOp names a comparison, including its case-insensitive ("Ins")
// variant (spec.md §4.2: "Compare<Op>... and their case-insensitive
// variants (…Ins)").
type CompareOp int

const (
	Equal CompareOp = iota
	NotEqual
	Less
	Greater
	LessEqual
	GreaterEqual
	BeginsWith
	EndsWith
	Contains
	Like
	EqualIns
	NotEqualIns
	LessIns
	GreaterIns
	LessEqualIns
	GreaterEqualIns
	BeginsWithIns
	EndsWithIns
	ContainsIns
	LikeIns
)

// insVariant maps a case-sensitive op to its Ins counterpart.
var insVariant = map[CompareOp]CompareOp{
	Equal: EqualIns, NotEqual: NotEqualIns,
	Less: LessIns, Greater: GreaterIns,
	LessEqual: LessEqualIns, GreaterEqual: GreaterEqualIns,
	BeginsWith: BeginsWithIns, EndsWith: EndsWithIns,
	Contains: ContainsIns, Like: LikeIns,
}

// Compare is a generic binary comparison. Left/Right already reflect the
// operand swap spec.md §4.2 calls for: "x > y is emitted as Less(y, x) so
// that the internal comparator's left-vs-right convention is maintained."
type Compare struct {
	Op          CompareOp
	Left, Right Node
}

func (Compare) isExprNode() {}

// NewCompare builds a Compare node, substituting the case-insensitive
// variant of op when caseInsensitive is set.
func NewCompare(op CompareOp, caseInsensitive bool, left, right Node) Compare {
	if caseInsensitive {
		if ins, ok := insVariant[op]; ok {
			op = ins
		}
	}
	return Compare{Op: op, Left: left, Right: right}
}

// ColumnValue is a leaf referencing a resolved column, optionally reached
// through a chain of traversed link columns and/or suffixed with a PostOp
// (.@count / .@size).
type ColumnValue struct {
	Column schema.Column
	Chain  []schema.Column
	Post   predast.PostOp
}

func (ColumnValue) isExprNode() {}

// Aggregate is the compiled form of a LinkAggregate/ListAggregate AST node:
// apply Op to the sub-column reached through Chain (and, for a
// LinkAggregate, the final link column's list of Column values).
type Aggregate struct {
	Chain  []schema.Column
	Column schema.Column
	Op     predast.AggrOp
}

func (Aggregate) isExprNode() {}

// ConstValue is a leaf holding a fully-typed compiled constant.
type ConstValue struct {
	Type  schema.ColType
	Value interface{}
	IsNull bool
}

func (ConstValue) isExprNode() {}

// And/Or are n-ary boolean combinators; And/Or compilation collapses a
// single child to that child directly rather than wrapping it (spec.md
// §4.2 "Boolean combinators").
type And struct{ Children []Node }
type Or struct{ Children []Node }

func (And) isExprNode() {}
func (Or) isExprNode()  {}

// Not negates its child.
type Not struct{ Child Node }

func (Not) isExprNode() {}

// Tautology is the compiled form of a TrueOrFalse AST node: an expression
// that always evaluates to Value.
type Tautology struct{ Value bool }

func (Tautology) isExprNode() {}

// SpecializedKind discriminates the column-specialized predicate primitives
// the fast path emits (spec.md §4.2 item 1).
type SpecializedKind int

const (
	SpecEquality SpecializedKind = iota
	SpecRelational
	SpecStringOp
	SpecColumnVsNull
)

// Specialized is a type-specific primitive comparing a single column against
// a constant without building a general Compare tree: "the compiler emits a
// type-specific primitive: integer/bool/string/binary/timestamp/float/
// double/decimal/UUID equality or inequality, or a string/binary
// begins_with/ends_with/contains/like with case-sensitivity flag" (spec.md
// §4.2). A nil Value with Kind SpecColumnVsNull is the column-vs-null form.
type Specialized struct {
	Kind          SpecializedKind
	Column        schema.Column
	Chain         []schema.Column
	EqOp          predast.EqOp
	RelOp         predast.RelOp
	StrOp         predast.StringOp
	CaseSensitive bool
	Value         interface{}
}

func (Specialized) isExprNode() {}
