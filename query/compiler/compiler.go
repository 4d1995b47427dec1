// Package compiler implements the query compiler proper (spec.md §4.2): it
// walks a predast.Node tree produced by an external parser and lowers it to
// a query/exprtree.Node, resolving link chains via query/linkchain, binding
// $n arguments via query/argbind, and checking that aggregates target a
// numeric column. Sort/distinct/limit clauses are compiled separately by
// query/descriptor and attached to the resulting Query.
package compiler

import (
	"github.com/nexuscore/tdbcore/query/argbind"
	"github.com/nexuscore/tdbcore/query/descriptor"
	"github.com/nexuscore/tdbcore/query/exprtree"
	"github.com/nexuscore/tdbcore/query/predast"
	"github.com/nexuscore/tdbcore/query/schema"
)

// Query is the fully compiled result: a predicate expression tree plus
// optional descriptor-compiled ordering clauses, ready for the storage layer
// to evaluate.
type Query struct {
	Base     schema.Table
	Root     exprtree.Node
	Sort     *descriptor.SortDescriptor
	Distinct *descriptor.DistinctDescriptor
	Limit    *descriptor.LimitDescriptor
}

// Compiler holds everything needed to compile predicates against one base
// table: the schema group (for link/backlink resolution), the base table
// itself, and the bound argument source. base64Scratch accumulates decoded
// BASE64 constant buffers for the lifetime of one Compile call, mirroring
// the source engine's parser owning a scratch buffer list rather than
// letting each decoded literal manage its own lifetime.
type Compiler struct {
	group schema.Group
	base  schema.Table
	args  argbind.Source

	base64Scratch [][]byte
}

// New builds a Compiler for predicates rooted at base within group, with
// args as the source for ARG constants ($n).
func New(group schema.Group, base schema.Table, args argbind.Source) *Compiler {
	return &Compiler{group: group, base: base, args: args}
}

// Compile lowers a predicate AST root to a Query whose Root is the compiled
// exprtree.Node.
func (c *Compiler) Compile(root predast.Node) (*Query, error) {
	c.base64Scratch = nil
	node, err := c.compilePredicate(root)
	if err != nil {
		return nil, err
	}
	return &Query{Base: c.base, Root: node}, nil
}

// WithSort attaches a compiled SORT descriptor to q.
func (q *Query) WithSort(d descriptor.SortDescriptor) *Query {
	q.Sort = &d
	return q
}

// WithDistinct attaches a compiled DISTINCT descriptor to q.
func (q *Query) WithDistinct(d descriptor.DistinctDescriptor) *Query {
	q.Distinct = &d
	return q
}

// WithLimit attaches a compiled LIMIT descriptor to q.
func (q *Query) WithLimit(d descriptor.LimitDescriptor) *Query {
	q.Limit = &d
	return q
}
