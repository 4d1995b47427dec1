package compiler

import (
	"github.com/nexuscore/tdbcore/query/descriptor"
	"github.com/nexuscore/tdbcore/query/predast"
	"github.com/nexuscore/tdbcore/query/schema"
)

// Group returns the schema group the compiler resolves tables against.
func (c *Compiler) Group() schema.Group { return c.group }

// Base returns the table predicates are compiled relative to.
func (c *Compiler) Base() schema.Table { return c.base }

// Clauses bundles the raw, uncompiled SORT/DISTINCT/LIMIT clauses that
// accompany a predicate, mirroring how a parsed query string groups them
// (spec.md §4.2 Descriptor ordering compilation).
type Clauses struct {
	SortPaths      [][][]string
	SortAscending  []bool
	DistinctPaths  [][]string
	Limit          int64
	HasLimit       bool
}

// CompileFull compiles a predicate and its accompanying descriptor clauses
// in one call, producing a Query ready to hand to the storage layer.
func (c *Compiler) CompileFull(root predast.Node, clauses Clauses) (*Query, error) {
	q, err := c.Compile(root)
	if err != nil {
		return nil, err
	}

	if len(clauses.SortPaths) > 0 {
		sd, err := descriptor.CompileSort(c.group, c.base, clauses.SortPaths, clauses.SortAscending)
		if err != nil {
			return nil, err
		}
		q = q.WithSort(sd)
	}

	if len(clauses.DistinctPaths) > 0 {
		dd, err := descriptor.CompileDistinct(c.group, c.base, clauses.DistinctPaths)
		if err != nil {
			return nil, err
		}
		q = q.WithDistinct(dd)
	}

	if clauses.HasLimit {
		q = q.WithLimit(descriptor.CompileLimit(clauses.Limit))
	}

	return q, nil
}
