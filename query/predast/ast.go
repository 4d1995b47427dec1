// Package predast defines the predicate AST variant tree consumed by the
// query compiler (spec.md §3). It is produced by an external parser — this
// package has no lexer/grammar of its own, only the node shapes the parser
// must emit and the small visitor contract a generated parser would use to
// build them (see visitor.go).
package predast

// Node is the closed sum type every predicate AST node implements. The
// concrete cases below replace the source's templated/dynamic_cast node
// hierarchy (spec.md §9) with a sealed interface and type switch.
type Node interface {
	isNode()
}

// --- Logical nodes ---

type Not struct{ Child Node }
type Parens struct{ Child Node }
type And struct{ Children []Node }
type Or struct{ Children []Node }

func (Not) isNode()    {}
func (Parens) isNode() {}
func (And) isNode()    {}
func (Or) isNode()     {}

// --- Leaf predicates ---

type EqOp int

const (
	EQ EqOp = iota
	NEQ
)

type RelOp int

const (
	GT RelOp = iota
	LT
	GE
	LE
)

type StringOp int

const (
	BEGINS StringOp = iota
	ENDS
	CONTAINS
	LIKE
)

type Equality struct {
	L, R          Node
	Op            EqOp
	CaseSensitive bool
}

type Relational struct {
	L, R Node
	Op   RelOp
}

type StringOps struct {
	L, R          Node
	Op            StringOp
	CaseSensitive bool
}

type TrueOrFalse struct{ Value bool }

func (Equality) isNode()    {}
func (Relational) isNode() {}
func (StringOps) isNode()  {}
func (TrueOrFalse) isNode() {}

// --- Value nodes ---

// PostOp is a terminal suffix applied to a resolved path.
type PostOp int

const (
	PostOpNone PostOp = iota
	PostOpCount
	PostOpSize
)

// AggrOp names a list/link aggregate function.
type AggrOp int

const (
	AggMax AggrOp = iota
	AggMin
	AggSum
	AggAvg
)

// ConstType enumerates the literal forms spec.md §6 recognizes.
type ConstType int

const (
	CNumber ConstType = iota
	CFloat
	CInfinity
	CNaN
	CString
	CBase64
	CTimestamp
	CUUID
	COid
	CNull
	CTrue
	CFalse
	CArg
)

// Property is a path to a column, optionally suffixed with a PostOp
// (.@count / .@size), plus the comparison type hint the surrounding
// comparison supplies (e.g. for constant-compilation hinting).
type Property struct {
	Path          []string
	Identifier    string
	Post          PostOp
	ComparisonHint string
}

// Constant is a literal value in its original textual form; the compiler
// parses Text according to Type and, for ConstType CArg, treats Text as the
// "$N" argument index.
type Constant struct {
	Type ConstType
	Text string
}

// LinkAggregate applies an aggregate across a link-list reached by Path,
// selecting sub-column Prop on the far side.
type LinkAggregate struct {
	Path []string
	Link string
	Prop string
	Op   AggrOp
}

// ListAggregate applies an aggregate to a list-typed column reached by Path.
type ListAggregate struct {
	Path       []string
	Identifier string
	Op         AggrOp
}

func (Property) isNode()      {}
func (Constant) isNode()      {}
func (LinkAggregate) isNode() {}
func (ListAggregate) isNode() {}
