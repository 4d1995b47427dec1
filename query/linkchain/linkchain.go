// Package linkchain implements the link/backlink path walker shared by the
// query compiler and the descriptor (sort/distinct) compiler, so both walk
// symbolic paths through link-joined tables the same way (spec.md §4.2 Link
// chain resolution; §9 "shares one implementation instead of duplicating
// the walk").
package linkchain

import (
	"fmt"
	"strings"

	"github.com/nexuscore/tdbcore/query/schema"
)

const backlinkPrefix = "@links."

// Chain is the resolved output of walking a path from a base table: the
// base table, the ordered list of link columns traversed, and the table the
// path has arrived at.
type Chain struct {
	Base    schema.Table
	Links   []schema.Column
	Current schema.Table
}

// ErrNoProperty is returned when a segment names a table or column that
// does not exist, formatted per spec.md §8 scenario 7 (the printable,
// class-prefix-stripped table name in backlink errors).
type ErrNoProperty struct {
	Table, Column string
}

func (e *ErrNoProperty) Error() string {
	return fmt.Sprintf("no property '%s' found on table '%s'", e.Column, printableTableName(e.Table))
}

// printableTableName strips the storage layer's internal class-name prefix
// ("class_") the way the original engine's error messages do, so users see
// the name they wrote in their schema rather than the on-disk table name.
func printableTableName(name string) string {
	return strings.TrimPrefix(name, "class_")
}

// Resolve walks path from base through group, following forward links by
// column name and backlinks via "@links.TABLE.COLUMN" segments (spec.md
// §4.2). path holds only the intermediate link segments; the terminal
// identifier is resolved separately by the caller (query/compiler), since
// its handling (post-ops, aggregates, final column lookup) differs from a
// mid-path link traversal.
func Resolve(group schema.Group, base schema.Table, path []string) (Chain, error) {
	chain := Chain{Base: base, Current: base}
	for _, seg := range path {
		if strings.HasPrefix(seg, backlinkPrefix) {
			rest := seg[len(backlinkPrefix):]
			dot := strings.IndexByte(rest, '.')
			if dot < 0 {
				return Chain{}, fmt.Errorf("linkchain: malformed backlink segment %q", seg)
			}
			tableName, colName := rest[:dot], rest[dot+1:]
			srcTable, ok := group.Table(tableName)
			if !ok {
				return Chain{}, &ErrNoProperty{Table: tableName, Column: colName}
			}
			col, ok := srcTable.Column(colName)
			if !ok {
				return Chain{}, &ErrNoProperty{Table: tableName, Column: colName}
			}
			col.Kind = schema.KindBacklink
			col.LinkTarget = tableName
			col.BacklinkColumn = colName
			chain.Links = append(chain.Links, col)
			chain.Current = srcTable
			continue
		}

		col, ok := chain.Current.Column(seg)
		if !ok {
			return Chain{}, &ErrNoProperty{Table: chain.Current.Name(), Column: seg}
		}
		if col.Kind != schema.KindLink {
			return Chain{}, fmt.Errorf("linkchain: %q on table %q is not a link column", seg, printableTableName(chain.Current.Name()))
		}
		target, ok := group.Table(col.LinkTarget)
		if !ok {
			return Chain{}, &ErrNoProperty{Table: col.LinkTarget, Column: seg}
		}
		chain.Links = append(chain.Links, col)
		chain.Current = target
	}
	return chain, nil
}

// LinksExist reports whether the chain actually traversed any link (used by
// the compiler's fast-path eligibility check: "prop.links_exist() is
// false").
func (c Chain) LinksExist() bool {
	return len(c.Links) > 0
}
