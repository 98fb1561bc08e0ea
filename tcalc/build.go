// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package tcalc

import (
	"github.com/pql-engine/pql/columns"
	"github.com/pql-engine/pql/datatype"
	"github.com/pql-engine/pql/internal/assert"
	"github.com/pql-engine/pql/value"
)

// Constructors. Each builder consumes the references it is
// handed: child expressions become owned subtrees, and name,
// variable, and set arguments transfer one reference into the
// node. Callers that keep using a handle must incref before
// the call.

// relMember splits a relation type into its row type and
// collection kind (Set, Sequence, or Unit for a bare row).
func relMember(t *datatype.Type) (*datatype.Type, datatype.Kind) {
	switch t.Kind() {
	case datatype.Set, datatype.Sequence:
		return t.Member(), t.Kind()
	}
	return t, datatype.Unit
}

func rewrap(tb *datatype.Table, member *datatype.Type, wrap datatype.Kind) *datatype.Type {
	switch wrap {
	case datatype.Set:
		return tb.Set(member)
	case datatype.Sequence:
		return tb.Sequence(member)
	}
	return member
}

// rowSlots expands a row type into its slot types.
func rowSlots(member *datatype.Type) []*datatype.Type {
	n := member.Arity()
	slots := make([]*datatype.Type, n)
	for i := 0; i < n; i++ {
		slots[i] = member.Nth(i)
	}
	return slots
}

func slotsToRow(tb *datatype.Table, slots []*datatype.Type) *datatype.Type {
	return tb.TupleSpecific(slots...)
}

// NewValue wraps a literal. cols may be nil for an unnamed
// result.
func (c *Ctx) NewValue(v *value.Value, cols *columns.Tree) *Value {
	if cols == nil {
		cols = columns.Scalar(nil)
	}
	return &Value{base: base{typ: v.Type(), cols: cols}, Val: v}
}

// NewReadVar reads a variable, consuming the caller's
// reference to it.
func (c *Ctx) NewReadVar(v *Var) *ReadVar {
	var cols *columns.Tree
	if v.cols != nil {
		cols = v.cols.Clone()
	} else {
		cols = columns.Scalar(nil)
	}
	return &ReadVar{base: base{typ: v.typ, cols: cols}, Var: v}
}

// NewReadGlobal reads a storage root. The resolved type and
// column tree come from the caller (the translator knows
// what the backend publishes under the name); cols may be
// nil.
func (c *Ctx) NewReadGlobal(name string, typ *datatype.Type, cols *columns.Tree) *ReadGlobal {
	if cols == nil {
		cols = columns.Scalar(nil)
	}
	return &ReadGlobal{base: base{typ: typ, cols: cols}, Global: c.NewGlobal(name)}
}

// NewFilter keeps the rows of sub satisfying pred.
func (c *Ctx) NewFilter(sub, pred Node) *Filter {
	return &Filter{
		base: base{typ: sub.Type(), cols: sub.Columns().Clone()},
		Sub:  sub,
		Pred: pred,
	}
}

// resolve expands a to-complement set against the ambient
// tree, consuming the original set.
func resolve(cols *columns.Set, tree *columns.Tree) *columns.Set {
	if !cols.ToComplement {
		return cols
	}
	out := tree.Complement(cols)
	cols.Destroy()
	return out
}

// NewProject keeps only the columns in cols, in their order.
// A to-complement set is resolved against sub's columns.
func (c *Ctx) NewProject(sub Node, cols *columns.Set) *Project {
	member, wrap := relMember(sub.Type())
	tree := sub.Columns()
	cols = resolve(cols, tree)
	slots := make([]*datatype.Type, 0, cols.Num())
	for i := 0; i < cols.Num(); i++ {
		ix := tree.Index(cols.Get(i))
		if ix < 0 {
			assert.Failf("tcalc: project of absent column %s", cols.Get(i))
		}
		slots = append(slots, member.Nth(ix))
	}
	return &Project{
		base: base{
			typ:  rewrap(c.Types, slotsToRow(c.Types, slots), wrap),
			cols: tree.Project(cols),
		},
		Sub:  sub,
		Cols: cols,
	}
}

// NewStrip drops the columns in cols. A to-complement set is
// resolved against sub's columns.
func (c *Ctx) NewStrip(sub Node, cols *columns.Set) *Strip {
	member, wrap := relMember(sub.Type())
	tree := sub.Columns()
	cols = resolve(cols, tree)
	var slots []*datatype.Type
	for i := 0; i < tree.Arity(); i++ {
		st := tree.Sub(i)
		if st.Whole() != nil && cols.Contains(st.Whole()) {
			continue
		}
		slots = append(slots, member.Nth(i))
	}
	return &Strip{
		base: base{
			typ:  rewrap(c.Types, slotsToRow(c.Types, slots), wrap),
			cols: tree.Strip(cols),
		},
		Sub:  sub,
		Cols: cols,
	}
}

// NewRename substitutes new for old in sub's columns.
func (c *Ctx) NewRename(sub Node, old, new *columns.Name) *Rename {
	cols := sub.Columns().Clone()
	cols.Rename(old, new)
	return &Rename{
		base: base{typ: sub.Type(), cols: cols},
		Sub:  sub,
		Old:  old,
		New:  new,
	}
}

// NewJoin is the cross product of left and right, optionally
// filtered; the result's columns are the concatenation.
func (c *Ctx) NewJoin(left, right, pred Node) *Join {
	lmem, lwrap := relMember(left.Type())
	rmem, rwrap := relMember(right.Type())
	row := lmem
	for _, s := range rowSlots(rmem) {
		row = c.Types.TupleAppend(row, s)
	}
	wrap := lwrap
	if wrap == datatype.Unit {
		wrap = rwrap
	}
	return &Join{
		base: base{
			typ:  rewrap(c.Types, row, wrap),
			cols: columns.Join(left.Columns(), right.Columns()),
		},
		Left:  left,
		Right: right,
		Pred:  pred,
	}
}

// NewOrder sorts by the listed columns; the result is a
// sequence.
func (c *Ctx) NewOrder(sub Node, cols *columns.Set) *Order {
	member, _ := relMember(sub.Type())
	return &Order{
		base: base{
			typ:  c.Types.Sequence(member),
			cols: sub.Columns().Clone(),
		},
		Sub:  sub,
		Cols: cols,
	}
}

// NewUniq eliminates consecutive duplicates on the listed
// columns.
func (c *Ctx) NewUniq(sub Node, cols *columns.Set) *Uniq {
	return &Uniq{
		base: base{typ: sub.Type(), cols: sub.Columns().Clone()},
		Sub:  sub,
		Cols: cols,
	}
}

// NewNest groups the columns in cols into a set-valued
// column newcol.
func (c *Ctx) NewNest(sub Node, cols *columns.Set, newcol *columns.Name) *Nest {
	member, wrap := relMember(sub.Type())
	tree := sub.Columns()

	var rest []*datatype.Type
	var nested []*datatype.Type
	for i := 0; i < tree.Arity(); i++ {
		st := tree.Sub(i)
		if st.Whole() != nil && cols.Contains(st.Whole()) {
			continue
		}
		rest = append(rest, member.Nth(i))
	}
	for i := 0; i < cols.Num(); i++ {
		ix := tree.Index(cols.Get(i))
		if ix < 0 {
			assert.Failf("tcalc: nest of absent column %s", cols.Get(i))
		}
		nested = append(nested, member.Nth(ix))
	}
	row := slotsToRow(c.Types, rest)
	row = c.Types.TupleAppend(row, c.Types.Set(slotsToRow(c.Types, nested)))
	return &Nest{
		base: base{
			typ:  rewrap(c.Types, row, wrap),
			cols: tree.Nest(cols, newcol.Incref()),
		},
		Sub:    sub,
		Cols:   cols,
		NewCol: newcol,
	}
}

// NewUnnest flattens the collection-valued column col.
func (c *Ctx) NewUnnest(sub Node, col *columns.Name) *Unnest {
	member, wrap := relMember(sub.Type())
	tree := sub.Columns()
	ix := tree.Index(col)
	if ix < 0 {
		assert.Failf("tcalc: unnest of absent column %s", col)
	}
	inner := member.Nth(ix)
	if !inner.IsSet() && !inner.IsSequence() {
		assert.Failf("tcalc: unnest of non-collection column %s", col)
	}
	var slots []*datatype.Type
	for i := 0; i < tree.Arity(); i++ {
		if i == ix {
			continue
		}
		slots = append(slots, member.Nth(i))
	}
	slots = append(slots, rowSlots(inner.Member())...)
	return &Unnest{
		base: base{
			typ:  rewrap(c.Types, slotsToRow(c.Types, slots), wrap),
			cols: tree.Unnest(col),
		},
		Sub: sub,
		Col: col,
	}
}

// NewDistinguish appends a fresh distinguisher per row.
func (c *Ctx) NewDistinguish(sub Node, newcol *columns.Name) *Distinguish {
	member, wrap := relMember(sub.Type())
	row := c.Types.TupleAppend(member, c.Types.Distinguisher())
	return &Distinguish{
		base: base{
			typ:  rewrap(c.Types, row, wrap),
			cols: columns.Adjoin(sub.Columns().Clone(), columns.Scalar(newcol.Incref())),
		},
		Sub:    sub,
		NewCol: newcol,
	}
}

// NewAdjoin appends fn's result per row under newcol; fn
// must be a lambda over the row type.
func (c *Ctx) NewAdjoin(left, fn Node, newcol *columns.Name) *Adjoin {
	member, wrap := relMember(left.Type())
	if !fn.Type().IsLambda() {
		assert.Fail("tcalc: adjoin of non-lambda")
	}
	row := c.Types.TupleAppend(member, fn.Type().LambdaResult())
	return &Adjoin{
		base: base{
			typ:  rewrap(c.Types, row, wrap),
			cols: columns.Adjoin(left.Columns().Clone(), columns.Scalar(newcol.Incref())),
		},
		Left:   left,
		Func:   fn,
		NewCol: newcol,
	}
}

// NewStep follows edges from the object in subcol, appending
// (leftcol, edgecol, rightcol) to every row. edge may be nil
// to follow all edges; it is consumed.
func (c *Ctx) NewStep(sub Node, subcol *columns.Name, edge *value.Value, reversed bool,
	leftcol, edgecol, rightcol *columns.Name, pred Node) *Step {
	member, wrap := relMember(sub.Type())
	if wrap == datatype.Unit {
		wrap = datatype.Set
	}
	row := member
	row = c.Types.TupleAppend(row, c.Types.Struct())
	row = c.Types.TupleAppend(row, c.Types.DBEdge())
	row = c.Types.TupleAppend(row, c.Types.DBObj())
	cols := columns.Adjoin(sub.Columns().Clone(), columns.Scalar(leftcol.Incref()))
	cols = columns.Adjoin(cols, columns.Scalar(edgecol.Incref()))
	cols = columns.Adjoin(cols, columns.Scalar(rightcol.Incref()))
	return &Step{
		base:     base{typ: rewrap(c.Types, row, wrap), cols: cols},
		Sub:      sub,
		SubCol:   subcol,
		Edge:     edge,
		Reversed: reversed,
		LeftCol:  leftcol,
		EdgeCol:  edgecol,
		RightCol: rightcol,
		Pred:     pred,
	}
}

// NewRepeat builds the transitive-closure loop; see Repeat.
func (c *Ctx) NewRepeat(sub Node, subendcol *columns.Name,
	loopvar *Var, bodystartcol *columns.Name, body Node,
	bodypathcol, bodyendcol, pathcol, endcol *columns.Name) *Repeat {
	member, wrap := relMember(sub.Type())
	if wrap == datatype.Unit {
		wrap = datatype.Set
	}
	row := member
	row = c.Types.TupleAppend(row, c.Types.Sequence(c.Types.PathElement()))
	row = c.Types.TupleAppend(row, c.Types.DBObj())
	cols := columns.Adjoin(sub.Columns().Clone(), columns.Scalar(pathcol.Incref()))
	cols = columns.Adjoin(cols, columns.Scalar(endcol.Incref()))
	return &Repeat{
		base:         base{typ: rewrap(c.Types, row, wrap), cols: cols},
		Sub:          sub,
		SubEndCol:    subendcol,
		LoopVar:      loopvar,
		BodyStartCol: bodystartcol,
		Body:         body,
		BodyPathCol:  bodypathcol,
		BodyEndCol:   bodyendcol,
		PathCol:      pathcol,
		EndCol:       endcol,
	}
}

// NewScan iterates every edge in the store.
func (c *Ctx) NewScan(leftcol, edgecol, rightcol *columns.Name, pred Node) *Scan {
	row := c.Types.TupleSpecific(c.Types.Struct(), c.Types.DBEdge(), c.Types.DBObj())
	cols := columns.TupleTree(nil,
		columns.Scalar(leftcol.Incref()),
		columns.Scalar(edgecol.Incref()),
		columns.Scalar(rightcol.Incref()))
	return &Scan{
		base:     base{typ: c.Types.Set(row), cols: cols},
		LeftCol:  leftcol,
		EdgeCol:  edgecol,
		RightCol: rightcol,
		Pred:     pred,
	}
}

// NewBop applies a binary operator.
func (c *Ctx) NewBop(left Node, op Op, right Node) *Bop {
	return &Bop{
		base: base{
			typ:  op.resultType(c.Types, left.Type(), right.Type()),
			cols: columns.Scalar(nil),
		},
		Left:  left,
		Op:    op,
		Right: right,
	}
}

// NewUop applies a unary operator.
func (c *Ctx) NewUop(op Op, sub Node) *Uop {
	return &Uop{
		base: base{
			typ:  op.resultType(c.Types, sub.Type()),
			cols: columns.Scalar(nil),
		},
		Op:  op,
		Sub: sub,
	}
}

// NewFunc applies an n-ary builtin.
func (c *Ctx) NewFunc(op Op, args ...Node) *Func {
	types := make([]*datatype.Type, len(args))
	for i := range args {
		types[i] = args[i].Type()
	}
	return &Func{
		base: base{
			typ:  op.resultType(c.Types, types...),
			cols: columns.Scalar(nil),
		},
		Op:   op,
		Args: args,
	}
}

// NewMap evaluates result with v bound to each member of
// set, collecting into a set (or sequence, following the
// input).
func (c *Ctx) NewMap(v *Var, set, result Node) *Map {
	_, wrap := relMember(set.Type())
	if wrap == datatype.Unit {
		wrap = datatype.Set
	}
	return &Map{
		base: base{
			typ:  rewrap(c.Types, result.Type(), wrap),
			cols: result.Columns().Clone(),
		},
		Var:    v,
		Set:    set,
		Result: result,
	}
}

// NewLet binds v to val while evaluating body.
func (c *Ctx) NewLet(v *Var, val, body Node) *Let {
	return &Let{
		base:  base{typ: body.Type(), cols: body.Columns().Clone()},
		Var:   v,
		Value: val,
		Body:  body,
	}
}

// NewLambda abstracts body over v.
func (c *Ctx) NewLambda(v *Var, body Node) *Lambda {
	return &Lambda{
		base: base{
			typ:  c.Types.Lambda(v.typ, body.Type()),
			cols: columns.Scalar(nil),
		},
		Var:  v,
		Body: body,
	}
}

// NewApply applies a lambda to an argument.
func (c *Ctx) NewApply(lambda, arg Node) *Apply {
	typ := c.Types.Top()
	if lambda.Type().IsLambda() {
		typ = lambda.Type().LambdaResult()
	}
	return &Apply{
		base:   base{typ: typ, cols: columns.Scalar(nil)},
		Lambda: lambda,
		Arg:    arg,
	}
}

// NewCreatePathElement packages a 3-tuple into a path
// element.
func (c *Ctx) NewCreatePathElement(sub Node) *CreatePathElement {
	return &CreatePathElement{
		base: base{typ: c.Types.PathElement(), cols: columns.Scalar(nil)},
		Sub:  sub,
	}
}

// NewSplatter attaches name to val for downstream record
// construction.
func (c *Ctx) NewSplatter(val, name Node) *Splatter {
	return &Splatter{
		base:  base{typ: val.Type(), cols: val.Columns().Clone()},
		Value: val,
		Name:  name,
	}
}

// NewTupleExpr builds a fresh tuple from exprs, with one
// column name per slot.
func (c *Ctx) NewTupleExpr(exprs []Node, cols *columns.Set) *TupleExpr {
	if cols.Num() != len(exprs) {
		assert.Failf("tcalc: tuple of %d exprs with %d columns", len(exprs), cols.Num())
	}
	slots := make([]*datatype.Type, len(exprs))
	subs := make([]*columns.Tree, len(exprs))
	for i := range exprs {
		slots[i] = exprs[i].Type()
		subs[i] = columns.Scalar(cols.Get(i).Incref())
	}
	return &TupleExpr{
		base: base{
			typ:  c.Types.TupleSpecific(slots...),
			cols: columns.TupleTree(nil, subs...),
		},
		Exprs: exprs,
		Cols:  cols,
	}
}
