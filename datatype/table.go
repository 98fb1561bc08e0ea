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

package datatype

type pairkey struct {
	left, right *Type
}

// Table interns types for one engine context.
// Types from different tables must not be mixed;
// identity comparison only works within one table.
type Table struct {
	bottom        Type
	top           Type
	number        Type
	atom          Type
	dbedge        Type
	dbobj         Type
	unit          Type
	boolean       Type
	integer       Type
	double        Type
	str           Type
	strct         Type
	pathelement   Type
	distinguisher Type

	sets    map[*Type]*Type
	seqs    map[*Type]*Type
	pairs   map[pairkey]*Type
	lambdas map[pairkey]*Type
}

// NewTable creates an empty interning table with
// the base and abstract types preallocated.
func NewTable() *Table {
	tb := &Table{
		sets:    make(map[*Type]*Type),
		seqs:    make(map[*Type]*Type),
		pairs:   make(map[pairkey]*Type),
		lambdas: make(map[pairkey]*Type),
	}
	tb.bottom.kind = Bottom
	tb.top.kind = Top
	tb.number.kind = Number
	tb.atom.kind = Atom
	tb.dbedge.kind = DBEdge
	tb.dbobj.kind = DBObj
	tb.unit.kind = Unit
	tb.boolean.kind = Bool
	tb.integer.kind = Int
	tb.double.kind = Double
	tb.str.kind = String
	tb.strct.kind = Struct
	tb.pathelement.kind = PathElement
	tb.distinguisher.kind = Distinguisher
	return tb
}

func (tb *Table) Bottom() *Type        { return &tb.bottom }
func (tb *Table) Top() *Type           { return &tb.top }
func (tb *Table) Number() *Type        { return &tb.number }
func (tb *Table) Atom() *Type          { return &tb.atom }
func (tb *Table) DBEdge() *Type        { return &tb.dbedge }
func (tb *Table) DBObj() *Type         { return &tb.dbobj }
func (tb *Table) Unit() *Type          { return &tb.unit }
func (tb *Table) Bool() *Type          { return &tb.boolean }
func (tb *Table) Int() *Type           { return &tb.integer }
func (tb *Table) Double() *Type        { return &tb.double }
func (tb *Table) StringType() *Type    { return &tb.str }
func (tb *Table) Struct() *Type        { return &tb.strct }
func (tb *Table) PathElement() *Type   { return &tb.pathelement }
func (tb *Table) Distinguisher() *Type { return &tb.distinguisher }

// Set returns the interned set type with the given member.
func (tb *Table) Set(member *Type) *Type {
	if t, ok := tb.sets[member]; ok {
		return t
	}
	t := &Type{kind: Set, member: member}
	tb.sets[member] = t
	return t
}

// Sequence returns the interned sequence type with the given member.
func (tb *Table) Sequence(member *Type) *Type {
	if t, ok := tb.seqs[member]; ok {
		return t
	}
	t := &Type{kind: Sequence, member: member}
	tb.seqs[member] = t
	return t
}

// Pair returns the interned pair of left and right.
// Tuples with more than two slots are built by pairing
// the existing tuple on the left with the new final slot
// on the right.
func (tb *Table) Pair(left, right *Type) *Type {
	k := pairkey{left, right}
	if t, ok := tb.pairs[k]; ok {
		return t
	}
	t := &Type{kind: Pair, left: left, right: right}
	tb.pairs[k] = t
	return t
}

// Lambda returns the interned lambda type arg -> res.
func (tb *Table) Lambda(arg, res *Type) *Type {
	k := pairkey{arg, res}
	if t, ok := tb.lambdas[k]; ok {
		return t
	}
	t := &Type{kind: Lambda, left: arg, right: res}
	tb.lambdas[k] = t
	return t
}

// Tuple returns the tuple type with the given slot types:
// unit for no slots, the sole slot type for one slot, and
// left-nested pairs otherwise.
func (tb *Table) Tuple(slots ...*Type) *Type {
	t := tb.Unit()
	for _, s := range slots {
		t = tb.TupleAppend(t, s)
	}
	return t
}

// TupleSpecific builds a tuple from explicit slot types,
// keeping unit slots instead of folding them away.
func (tb *Table) TupleSpecific(slots ...*Type) *Type {
	return tb.tupleSpecific(slots)
}

// tupleSpecific builds a tuple from explicit slot types,
// keeping unit slots instead of folding them away.
func (tb *Table) tupleSpecific(slots []*Type) *Type {
	switch len(slots) {
	case 0:
		return tb.Unit()
	case 1:
		return slots[0]
	}
	t := tb.Pair(slots[0], slots[1])
	for _, s := range slots[2:] {
		t = tb.Pair(t, s)
	}
	return t
}

// TupleAppend conses t1 onto the end of tuple t0,
// treating t1 as a single slot. Unit is the identity
// on either side.
func (tb *Table) TupleAppend(t0, t1 *Type) *Type {
	if t0.kind == Unit {
		return t1
	}
	if t1.kind == Unit {
		return t0
	}
	return tb.Pair(t0, t1)
}

// TupleStrip removes slot ix from tuple t. A monople
// strips to unit; a pair that loses all but one slot
// collapses to the remaining slot's type.
func (tb *Table) TupleStrip(t *Type, ix int) *Type {
	arity := t.Arity()
	if ix < 0 || ix >= arity {
		panic("datatype: TupleStrip index out of range")
	}
	if arity == 1 {
		return tb.Unit()
	}
	if ix == arity-1 {
		return t.left
	}
	left := tb.TupleStrip(t.left, ix)
	if left.Arity() == 0 {
		return t.right
	}
	return tb.Pair(left, t.right)
}

// TupleSetStrip is TupleStrip under one outer set or
// sequence wrapper, preserving the wrapper.
func (tb *Table) TupleSetStrip(t *Type, ix int) *Type {
	switch t.kind {
	case Set:
		return tb.Set(tb.TupleStrip(t.member, ix))
	case Sequence:
		return tb.Sequence(tb.TupleStrip(t.member, ix))
	}
	return tb.TupleStrip(t, ix)
}

// Generalize returns the least upper bound of t1 and t2
// in the lattice. It never fails; unrelated types
// generalize to top.
func (tb *Table) Generalize(t1, t2 *Type) *Type {
	if t1 == t2 {
		return t1
	}
	if t1.kind == Bottom {
		return t2
	}
	if t2.kind == Bottom {
		return t1
	}
	if t1.kind == Top || t2.kind == Top {
		return tb.Top()
	}

	if t1.kind == Set && t2.kind == Set {
		return tb.Set(tb.Generalize(t1.member, t2.member))
	}
	if t1.kind == Sequence && t2.kind == Sequence {
		return tb.Sequence(tb.Generalize(t1.member, t2.member))
	}

	// lambdas that are not identical do not generalize usefully
	if t1.kind == Lambda || t2.kind == Lambda {
		return tb.Top()
	}

	if t1.kind == Pair && t2.kind == Pair {
		arity := t1.Arity()
		if arity != t2.Arity() {
			return tb.Top()
		}
		slots := make([]*Type, arity)
		for i := 0; i < arity; i++ {
			slots[i] = tb.Generalize(t1.Nth(i), t2.Nth(i))
		}
		return tb.tupleSpecific(slots)
	}
	if t1.kind == Pair || t2.kind == Pair {
		return tb.Top()
	}

	// do not generate dbedge unless it is already present
	if (t1.kind == DBEdge && t2.IsAnyDBEdge()) ||
		(t1.IsAnyDBEdge() && t2.kind == DBEdge) {
		return tb.DBEdge()
	}
	if t1.IsAnyNumber() && t2.IsAnyNumber() {
		return tb.Number()
	}
	if t1.IsAnyAtom() && t2.IsAnyAtom() {
		return tb.Atom()
	}
	if t1.IsAnyDBObj() && t2.IsAnyDBObj() {
		return tb.DBObj()
	}
	return tb.Top()
}

// Specialize returns the greatest lower bound of t1 and t2,
// or nil when the types have no common refinement. Note
// that a nil result is a failure, distinct from bottom.
func (tb *Table) Specialize(t1, t2 *Type) *Type {
	if t1 == t2 {
		return t1
	}
	if t1.kind == Bottom || t2.kind == Bottom {
		return tb.Bottom()
	}
	if t1.kind == Top {
		return t2
	}
	if t2.kind == Top {
		return t1
	}

	if t1.kind == Set && t2.kind == Set {
		m := tb.Specialize(t1.member, t2.member)
		if m == nil {
			return nil
		}
		return tb.Set(m)
	}
	if t1.kind == Sequence && t2.kind == Sequence {
		m := tb.Specialize(t1.member, t2.member)
		if m == nil {
			return nil
		}
		return tb.Sequence(m)
	}

	if t1.kind == Lambda || t2.kind == Lambda {
		return nil
	}

	if t1.kind == Pair && t2.kind == Pair {
		arity := t1.Arity()
		if arity != t2.Arity() {
			return nil
		}
		slots := make([]*Type, arity)
		for i := 0; i < arity; i++ {
			m := tb.Specialize(t1.Nth(i), t2.Nth(i))
			if m == nil {
				return nil
			}
			slots[i] = m
		}
		return tb.tupleSpecific(slots)
	}
	if t1.kind == Pair || t2.kind == Pair {
		return nil
	}

	if t1.kind == DBEdge && t2.IsAnyDBEdge() {
		return t2
	}
	if t1.IsAnyDBEdge() && t2.kind == DBEdge {
		return t1
	}
	if t1.kind == Number && t2.IsAnyNumber() {
		return t2
	}
	if t1.IsAnyNumber() && t2.kind == Number {
		return t1
	}
	if t1.kind == Atom && t2.IsAnyAtom() {
		return t2
	}
	if t1.IsAnyAtom() && t2.kind == Atom {
		return t1
	}
	if t1.kind == DBObj && t2.IsAnyDBObj() {
		return t2
	}
	if t1.IsAnyDBObj() && t2.kind == DBObj {
		return t1
	}
	return nil
}
