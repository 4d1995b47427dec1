// Package descriptor compiles SORT/DISTINCT/LIMIT clauses (spec.md §4.2
// Descriptor ordering compilation) into ordered lists of resolved column
// keys.
package descriptor

import (
	"fmt"

	"github.com/nexuscore/tdbcore/query/linkchain"
	"github.com/nexuscore/tdbcore/query/schema"
)

// ColumnKey names one column reached from the base table, via the link
// chain traversed to get there.
type ColumnKey struct {
	Chain  []schema.Column
	Column schema.Column
}

// SortDescriptor orders results by one or more column-key lists, each with
// its own ascending flag, merged with later SORT clauses by "prepend" per
// spec.md §4.2.
type SortDescriptor struct {
	Columns   [][]ColumnKey
	Ascending []bool
	Merge     string
}

// DistinctDescriptor deduplicates results by one or more column-key lists.
type DistinctDescriptor struct {
	Columns [][]ColumnKey
}

// LimitDescriptor caps the result set.
type LimitDescriptor struct {
	Limit int64
}

// clauseKind names SORT vs DISTINCT for error messages, matching spec.md
// §4.2's "unknown column fails 'no property … in <distinct|sort> clause'".
type clauseKind string

const (
	kindSort     clauseKind = "sort"
	kindDistinct clauseKind = "distinct"
)

func resolveColumnKey(group schema.Group, base schema.Table, path []string, kind clauseKind) (ColumnKey, error) {
	if len(path) == 0 {
		return ColumnKey{}, fmt.Errorf("descriptor: empty column path in %s clause", kind)
	}
	chain, err := linkchain.Resolve(group, base, path[:len(path)-1])
	if err != nil {
		return ColumnKey{}, err
	}
	last := path[len(path)-1]
	col, ok := chain.Current.Column(last)
	if !ok {
		return ColumnKey{}, fmt.Errorf("no property '%s' found in %s clause", last, kind)
	}
	return ColumnKey{Chain: chain.Links, Column: col}, nil
}

func resolveColumnList(group schema.Group, base schema.Table, paths [][]string, kind clauseKind) ([]ColumnKey, error) {
	keys := make([]ColumnKey, 0, len(paths))
	for _, p := range paths {
		k, err := resolveColumnKey(group, base, p, kind)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// CompileSort resolves each clause's column paths (spec.md §4.2: "each
// clause names one or more column paths"). ascending must be the same
// length as clauses.
func CompileSort(group schema.Group, base schema.Table, clauses [][][]string, ascending []bool) (SortDescriptor, error) {
	if len(clauses) != len(ascending) {
		return SortDescriptor{}, fmt.Errorf("descriptor: %d sort clauses but %d ascending flags", len(clauses), len(ascending))
	}
	d := SortDescriptor{Merge: "prepend"}
	for i, paths := range clauses {
		keys, err := resolveColumnList(group, base, paths, kindSort)
		if err != nil {
			return SortDescriptor{}, err
		}
		d.Columns = append(d.Columns, keys)
		d.Ascending = append(d.Ascending, ascending[i])
	}
	return d, nil
}

// CompileDistinct resolves a DISTINCT clause's column paths.
func CompileDistinct(group schema.Group, base schema.Table, paths [][]string) (DistinctDescriptor, error) {
	keys, err := resolveColumnList(group, base, paths, kindDistinct)
	if err != nil {
		return DistinctDescriptor{}, err
	}
	return DistinctDescriptor{Columns: [][]ColumnKey{keys}}, nil
}

// CompileLimit builds a LimitDescriptor.
func CompileLimit(n int64) LimitDescriptor {
	return LimitDescriptor{Limit: n}
}
