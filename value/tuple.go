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

package value

import (
	"github.com/pql-engine/pql/datatype"
	"github.com/pql-engine/pql/internal/assert"
)

// TupleBegin starts staged construction of a tuple with the
// given arity. Slots are filled with TupleAssign and the
// value's datatype is fixed by TupleEnd.
func TupleBegin(tb *datatype.Table, arity int) *Value {
	return &Value{
		typ: tb.Unit(),
		rep: repTuple,
		sub: make([]*Value, arity),
	}
}

// TupleAssign fills slot i of a tuple under construction,
// taking ownership of val.
func (v *Value) TupleAssign(i int, val *Value) {
	v.variant(repTuple, "TupleAssign")
	if i < 0 || i >= len(v.sub) {
		assert.Failf("value: TupleAssign slot %d of %d", i, len(v.sub))
	}
	v.sub[i] = val
}

// TupleEnd completes staged construction: every slot must be
// assigned, and the tuple's datatype is computed from the
// slot types. A one-slot tuple collapses to the slot itself.
func (v *Value) TupleEnd(tb *datatype.Table) *Value {
	v.variant(repTuple, "TupleEnd")
	for i := range v.sub {
		if v.sub[i] == nil {
			assert.Failf("value: TupleEnd with slot %d unassigned", i)
		}
	}
	if len(v.sub) == 1 {
		return v.sub[0]
	}
	slots := make([]*datatype.Type, len(v.sub))
	for i := range v.sub {
		slots[i] = v.sub[i].typ
	}
	v.typ = tb.TupleSpecific(slots...)
	return v
}

// Tuple builds a tuple value from the given members,
// taking ownership of them.
func Tuple(tb *datatype.Table, members ...*Value) *Value {
	t := TupleBegin(tb, len(members))
	for i, m := range members {
		t.TupleAssign(i, m)
	}
	return t.TupleEnd(tb)
}

// TupleArity returns the arity of v viewed as a tuple:
// 0 for unit, 1 for a monople, the slot count otherwise.
func (v *Value) TupleArity() int {
	if v.rep != repTuple {
		return 1
	}
	return len(v.sub)
}

// TupleGet returns slot i of v viewed as a tuple. Indexing a
// monople at slot 0 returns the monople itself. The returned
// value is a non-owning view.
func (v *Value) TupleGet(i int) *Value {
	if v.rep != repTuple {
		if i != 0 {
			assert.Failf("value: TupleGet slot %d of monople", i)
		}
		return v
	}
	if i < 0 || i >= len(v.sub) {
		assert.Failf("value: TupleGet slot %d of %d", i, len(v.sub))
	}
	return v.sub[i]
}

// TupleAdd appends val to tuple v, promoting a monople to a
// pair when needed, and returns the resulting tuple. Both v
// and val are consumed. Unit is the identity on either side.
func TupleAdd(tb *datatype.Table, v, val *Value) *Value {
	if v.rep == repTuple && len(v.sub) == 0 {
		return val
	}
	if val.rep == repTuple && len(val.sub) == 0 {
		return v
	}
	if v.rep != repTuple {
		// promote the monople to a pair
		return &Value{
			typ: tb.TupleAppend(v.typ, val.typ),
			rep: repTuple,
			sub: []*Value{v, val},
		}
	}
	v.typ = tb.TupleAppend(v.typ, val.typ)
	v.sub = append(v.sub, val)
	return v
}

// TupleStrip removes slot col from tuple v and returns the
// result, consuming v. Stripping a monople yields unit; a
// tuple reduced to one slot unwraps to that slot.
func TupleStrip(tb *datatype.Table, v *Value, col int) *Value {
	if v.rep != repTuple {
		if col != 0 {
			assert.Failf("value: TupleStrip slot %d of monople", col)
		}
		return Unit(tb)
	}
	if col < 0 || col >= len(v.sub) {
		assert.Failf("value: TupleStrip slot %d of %d", col, len(v.sub))
	}
	v.typ = tb.TupleStrip(v.typ, col)
	v.sub = append(v.sub[:col], v.sub[col+1:]...)
	if len(v.sub) == 1 {
		return v.sub[0]
	}
	return v
}

// Paste concatenates two tuples, consuming both. Unit is the
// identity; monoples behave as one-slot tuples.
func Paste(tb *datatype.Table, t1, t2 *Value) *Value {
	if t1.rep == repTuple && len(t1.sub) == 0 {
		return t2
	}
	if t2.rep == repTuple && len(t2.sub) == 0 {
		return t1
	}
	out := t1
	if out.rep != repTuple {
		out = &Value{typ: t1.typ, rep: repTuple, sub: []*Value{t1}}
	}
	if t2.rep != repTuple {
		out.typ = tb.TupleAppend(out.typ, t2.typ)
		out.sub = append(out.sub, t2)
		return out
	}
	for i := range t2.sub {
		out.typ = tb.TupleAppend(out.typ, t2.sub[i].typ)
		out.sub = append(out.sub, t2.sub[i])
	}
	return out
}
