package compiler

import (
	"fmt"

	"github.com/nexuscore/tdbcore/query/exprtree"
	"github.com/nexuscore/tdbcore/query/linkchain"
	"github.com/nexuscore/tdbcore/query/predast"
	"github.com/nexuscore/tdbcore/query/schema"
)

// valueResult is the outcome of compiling one side of a comparison: the
// lowered node (nil for a bare constant, filled in later once the sibling's
// type hint is known), the column type to use as a hint for the sibling
// constant, and whether any link was traversed to reach it (spec.md §4.2
// fast-path eligibility: "prop.links_exist() is false").
type valueResult struct {
	node       exprtree.Node
	constant   *predast.Constant
	colType    schema.ColType
	linksExist bool
	post       predast.PostOp
}

// compileValue dispatches on the concrete predast.Node kind for one operand
// of a comparison. Constant nodes are deferred: their textual literal is
// carried through so the caller can compile it once both sides have been
// inspected and a type hint is available (spec.md §4.2: constant compilation
// takes its type from the sibling operand).
func (c *Compiler) compileValue(n predast.Node) (valueResult, error) {
	switch v := n.(type) {
	case predast.Constant:
		cc := v
		return valueResult{constant: &cc}, nil

	case predast.Property:
		return c.compileProperty(v)

	case predast.LinkAggregate:
		return c.compileLinkAggregate(v)

	case predast.ListAggregate:
		return c.compileListAggregate(v)

	default:
		return valueResult{}, fmt.Errorf("%w: unsupported value expression %T", ErrSemantic, n)
	}
}

func (c *Compiler) compileProperty(p predast.Property) (valueResult, error) {
	chain, err := linkchain.Resolve(c.group, c.base, p.Path)
	if err != nil {
		return valueResult{}, fmt.Errorf("%w: %v", ErrSemantic, err)
	}
	col, ok := chain.Current.Column(p.Identifier)
	if !ok {
		return valueResult{}, fmt.Errorf("%w: no property '%s' found on table '%s'", ErrSemantic, p.Identifier, chain.Current.Name())
	}
	node := exprtree.ColumnValue{Column: col, Chain: chain.Links, Post: p.Post}
	colType := col.Type
	if p.Post != predast.PostOpNone {
		// .@count / .@size always yield an integer regardless of the
		// underlying element type.
		colType = schema.TypeInt
	}
	return valueResult{node: node, colType: colType, linksExist: chain.LinksExist(), post: p.Post}, nil
}

func (c *Compiler) compileLinkAggregate(a predast.LinkAggregate) (valueResult, error) {
	chain, err := linkchain.Resolve(c.group, c.base, a.Path)
	if err != nil {
		return valueResult{}, fmt.Errorf("%w: %v", ErrSemantic, err)
	}
	linkCol, ok := chain.Current.Column(a.Link)
	if !ok {
		return valueResult{}, fmt.Errorf("%w: no property '%s' found on table '%s'", ErrSemantic, a.Link, chain.Current.Name())
	}
	if linkCol.Kind != schema.KindLink {
		return valueResult{}, fmt.Errorf("%w: '%s' is not a link column, cannot apply link aggregate", ErrSemantic, a.Link)
	}
	target, ok := c.group.Table(linkCol.LinkTarget)
	if !ok {
		return valueResult{}, fmt.Errorf("%w: no property '%s' found on table '%s'", ErrSemantic, a.Link, chain.Current.Name())
	}
	subCol, ok := target.Column(a.Prop)
	if !ok {
		return valueResult{}, fmt.Errorf("%w: no property '%s' found on table '%s'", ErrSemantic, a.Prop, target.Name())
	}
	if err := validateAggregateColumnType(subCol.Type); err != nil {
		return valueResult{}, err
	}
	fullChain := append(append([]schema.Column{}, chain.Links...), linkCol)
	node := exprtree.Aggregate{Chain: fullChain, Column: subCol, Op: a.Op}
	return valueResult{node: node, colType: subCol.Type, linksExist: true}, nil
}

func (c *Compiler) compileListAggregate(a predast.ListAggregate) (valueResult, error) {
	chain, err := linkchain.Resolve(c.group, c.base, a.Path)
	if err != nil {
		return valueResult{}, fmt.Errorf("%w: %v", ErrSemantic, err)
	}
	col, ok := chain.Current.Column(a.Identifier)
	if !ok {
		return valueResult{}, fmt.Errorf("%w: no property '%s' found on table '%s'", ErrSemantic, a.Identifier, chain.Current.Name())
	}
	if !col.IsList() {
		return valueResult{}, fmt.Errorf("%w: '%s' is not a list column, cannot apply aggregate", ErrSemantic, a.Identifier)
	}
	if err := validateAggregateColumnType(col.Type); err != nil {
		return valueResult{}, err
	}
	node := exprtree.Aggregate{Chain: chain.Links, Column: col, Op: a.Op}
	return valueResult{node: node, colType: col.Type, linksExist: chain.LinksExist()}, nil
}

// validateAggregateColumnType rejects MAX/MIN/SUM/AVG over a column type the
// aggregate package cannot reduce numerically (spec.md §4.2: "the sub-column
// must be one of the numeric types").
func validateAggregateColumnType(t schema.ColType) error {
	switch t {
	case schema.TypeInt, schema.TypeFloat, schema.TypeDouble, schema.TypeDecimal:
		return nil
	default:
		return fmt.Errorf("%w: aggregate requires a numeric column, got %v", ErrSemantic, t)
	}
}
