package compiler

import (
	"fmt"

	"github.com/nexuscore/tdbcore/query/exprtree"
	"github.com/nexuscore/tdbcore/query/predast"
	"github.com/nexuscore/tdbcore/query/schema"
)

// compilePredicate lowers one predast boolean/comparison node to its
// exprtree equivalent.
func (c *Compiler) compilePredicate(n predast.Node) (exprtree.Node, error) {
	switch v := n.(type) {
	case predast.Parens:
		return c.compilePredicate(v.Child)

	case predast.Not:
		child, err := c.compilePredicate(v.Child)
		if err != nil {
			return nil, err
		}
		return exprtree.Not{Child: child}, nil

	case predast.And:
		return c.compileCombinator(v.Children, true)

	case predast.Or:
		return c.compileCombinator(v.Children, false)

	case predast.TrueOrFalse:
		return exprtree.Tautology{Value: v.Value}, nil

	case predast.Equality:
		return c.compileEquality(v)

	case predast.Relational:
		return c.compileRelational(v)

	case predast.StringOps:
		return c.compileStringOps(v)

	default:
		return nil, fmt.Errorf("%w: unsupported predicate node %T", ErrSemantic, n)
	}
}

// compileCombinator compiles an And/Or's children, collapsing a lone child
// down to itself rather than wrapping it in a one-element combinator
// (spec.md §4.2 Boolean combinators).
func (c *Compiler) compileCombinator(children []predast.Node, isAnd bool) (exprtree.Node, error) {
	compiled := make([]exprtree.Node, 0, len(children))
	for _, ch := range children {
		node, err := c.compilePredicate(ch)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, node)
	}
	if len(compiled) == 1 {
		return compiled[0], nil
	}
	if isAnd {
		return exprtree.NewAnd(compiled), nil
	}
	return exprtree.NewOr(compiled), nil
}

// operands is the result of resolving both sides of a comparison: fully
// typed, hint-resolved exprtree nodes plus the bookkeeping needed to pick
// the fast path.
type operands struct {
	left, right         exprtree.Node
	leftIsConst, rightIsConst bool
	nonConstLinksExist  bool
	fastEligible        bool
	fastNode            *exprtree.ColumnValue
	fastIsLeft          bool
	constValue          *exprtree.ConstValue
}

// cmp resolves l and r (spec.md §4.2 "cmp() performs two-operand
// coercion"): exactly one side may be a bare constant, whose literal is then
// compiled using the other side's column type as a hint; two constants on
// either side of a comparison is rejected outright, matching the source
// engine's "Cannot compare two constants" diagnostic. relational marks
// whether the caller is compiling a Relational node (<, <=, >, >=): a
// UUID-typed operand on either side then fails outright, matching
// original_source's RelationalNode::visit, which runs this check
// unconditionally regardless of which side (if any) is a constant.
func (c *Compiler) cmp(l, r predast.Node, relational bool) (operands, error) {
	lv, err := c.compileValue(l)
	if err != nil {
		return operands{}, err
	}
	rv, err := c.compileValue(r)
	if err != nil {
		return operands{}, err
	}

	if lv.constant != nil && rv.constant != nil {
		return operands{}, fmt.Errorf("%w: cannot compare two constants", ErrSemantic)
	}

	var out operands

	switch {
	case lv.constant != nil:
		cv, err := c.compileConstant(*lv.constant, rv.colType)
		if err != nil {
			return operands{}, err
		}
		if !dataTypesComparable(rv.colType, cv.Type) {
			return operands{}, fmt.Errorf("%w: cannot compare properties of incompatible types", ErrSemantic)
		}
		if err := rejectUUIDRelational(relational, rv.colType, cv.Type); err != nil {
			return operands{}, err
		}
		out.left, out.constValue = cv, &cv
		out.leftIsConst = true
		out.right = rv.node
		out.nonConstLinksExist = rv.linksExist
		if colVal, ok := rv.node.(exprtree.ColumnValue); ok && !rv.linksExist && rv.post == predast.PostOpNone {
			out.fastEligible = true
			out.fastNode = &colVal
			out.fastIsLeft = false
		}

	case rv.constant != nil:
		cv, err := c.compileConstant(*rv.constant, lv.colType)
		if err != nil {
			return operands{}, err
		}
		if !dataTypesComparable(lv.colType, cv.Type) {
			return operands{}, fmt.Errorf("%w: cannot compare properties of incompatible types", ErrSemantic)
		}
		if err := rejectUUIDRelational(relational, lv.colType, cv.Type); err != nil {
			return operands{}, err
		}
		out.right, out.constValue = cv, &cv
		out.rightIsConst = true
		out.left = lv.node
		out.nonConstLinksExist = lv.linksExist
		if colVal, ok := lv.node.(exprtree.ColumnValue); ok && !lv.linksExist && lv.post == predast.PostOpNone {
			out.fastEligible = true
			out.fastNode = &colVal
			out.fastIsLeft = true
		}

	default:
		if !dataTypesComparable(lv.colType, rv.colType) {
			return operands{}, fmt.Errorf("%w: cannot compare properties of incompatible types", ErrSemantic)
		}
		if err := rejectUUIDRelational(relational, lv.colType, rv.colType); err != nil {
			return operands{}, err
		}
		out.left, out.right = lv.node, rv.node
	}

	return out, nil
}

// rejectUUIDRelational implements spec.md §4.2's "UUID against anything but
// UUID in a relational operator fails" rule, extended (per original_source)
// to reject UUID on either side of a relational comparison outright: UUIDs
// have no ordering, so even UUID == UUID has nothing to order by <, <=, >,
// >=.
func rejectUUIDRelational(relational bool, types ...schema.ColType) error {
	if !relational {
		return nil
	}
	for _, t := range types {
		if t == schema.TypeUUID {
			return fmt.Errorf("%w: relational operators do not support UUID columns", ErrSemantic)
		}
	}
	return nil
}

// dataTypesComparable implements spec.md §4.2's data_types_are_comparable
// gate: identical types are always comparable, Mixed is comparable with
// anything (the concrete runtime type check is left to the storage layer,
// per an explicit Open Question decision recorded in DESIGN.md), and the
// numeric family cross-compares.
func dataTypesComparable(a, b schema.ColType) bool {
	if a == schema.TypeMixed || b == schema.TypeMixed {
		return true
	}
	if a == b {
		return true
	}
	return isNumeric(a) && isNumeric(b)
}

func isNumeric(t schema.ColType) bool {
	switch t {
	case schema.TypeInt, schema.TypeFloat, schema.TypeDouble, schema.TypeDecimal:
		return true
	default:
		return false
	}
}

func (c *Compiler) compileEquality(v predast.Equality) (exprtree.Node, error) {
	ops, err := c.cmp(v.L, v.R, false)
	if err != nil {
		return nil, err
	}

	if ops.constValue != nil && ops.constValue.IsNull {
		if ops.fastEligible {
			return exprtree.Specialized{
				Kind:   exprtree.SpecColumnVsNull,
				Column: ops.fastNode.Column,
				Chain:  ops.fastNode.Chain,
				EqOp:   v.Op,
			}, nil
		}
	} else if ops.fastEligible {
		return exprtree.Specialized{
			Kind:          exprtree.SpecEquality,
			Column:        ops.fastNode.Column,
			Chain:         ops.fastNode.Chain,
			EqOp:          v.Op,
			CaseSensitive: v.CaseSensitive,
			Value:         ops.constValue.Value,
		}, nil
	}

	op := exprtree.Equal
	if v.Op == predast.NEQ {
		op = exprtree.NotEqual
	}
	return exprtree.NewCompare(op, !v.CaseSensitive, ops.left, ops.right), nil
}

func (c *Compiler) compileRelational(v predast.Relational) (exprtree.Node, error) {
	ops, err := c.cmp(v.L, v.R, true)
	if err != nil {
		return nil, err
	}

	if ops.fastEligible {
		relOp := v.Op
		if !ops.fastIsLeft {
			relOp = flipRelOp(v.Op)
		}
		return exprtree.Specialized{
			Kind:   exprtree.SpecRelational,
			Column: ops.fastNode.Column,
			Chain:  ops.fastNode.Chain,
			RelOp:  relOp,
			Value:  ops.constValue.Value,
		}, nil
	}

	switch v.Op {
	case predast.GT:
		return exprtree.NewCompare(exprtree.Less, false, ops.right, ops.left), nil
	case predast.LT:
		return exprtree.NewCompare(exprtree.Less, false, ops.left, ops.right), nil
	case predast.GE:
		return exprtree.NewCompare(exprtree.LessEqual, false, ops.right, ops.left), nil
	case predast.LE:
		return exprtree.NewCompare(exprtree.LessEqual, false, ops.left, ops.right), nil
	default:
		return nil, fmt.Errorf("%w: unknown relational operator", ErrSemantic)
	}
}

// flipRelOp swaps a RelOp's sense when the constant and property operands
// were given in reverse (e.g. "5 < col" is col > 5 from the column's point
// of view), so the compiled Specialized node's RelOp is always expressed
// relative to the column.
func flipRelOp(op predast.RelOp) predast.RelOp {
	switch op {
	case predast.GT:
		return predast.LT
	case predast.LT:
		return predast.GT
	case predast.GE:
		return predast.LE
	case predast.LE:
		return predast.GE
	default:
		return op
	}
}

func (c *Compiler) compileStringOps(v predast.StringOps) (exprtree.Node, error) {
	ops, err := c.cmp(v.L, v.R, false)
	if err != nil {
		return nil, err
	}

	if ops.fastEligible && ops.fastIsLeft {
		return exprtree.Specialized{
			Kind:          exprtree.SpecStringOp,
			Column:        ops.fastNode.Column,
			Chain:         ops.fastNode.Chain,
			StrOp:         v.Op,
			CaseSensitive: v.CaseSensitive,
			Value:         ops.constValue.Value,
		}, nil
	}

	var op exprtree.CompareOp
	switch v.Op {
	case predast.BEGINS:
		op = exprtree.BeginsWith
	case predast.ENDS:
		op = exprtree.EndsWith
	case predast.CONTAINS:
		op = exprtree.Contains
	case predast.LIKE:
		op = exprtree.Like
	default:
		return nil, fmt.Errorf("%w: unknown string operator", ErrSemantic)
	}
	return exprtree.NewCompare(op, !v.CaseSensitive, ops.left, ops.right), nil
}
