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

import (
	"testing"
)

func TestInterning(t *testing.T) {
	tb := NewTable()
	if tb.Set(tb.Int()) != tb.Set(tb.Int()) {
		t.Error("set(int) not interned")
	}
	if tb.Pair(tb.Int(), tb.StringType()) != tb.Pair(tb.Int(), tb.StringType()) {
		t.Error("pair(int, string) not interned")
	}
	if tb.Lambda(tb.Int(), tb.Bool()) != tb.Lambda(tb.Int(), tb.Bool()) {
		t.Error("lambda not interned")
	}
	if tb.Pair(tb.Int(), tb.StringType()) == tb.Lambda(tb.Int(), tb.StringType()) {
		t.Error("pair and lambda conflated")
	}
	if tb.Tuple(tb.Int(), tb.StringType(), tb.Bool()) !=
		tb.Pair(tb.Pair(tb.Int(), tb.StringType()), tb.Bool()) {
		t.Error("tuple not left-nested pairs")
	}
}

func TestArity(t *testing.T) {
	tb := NewTable()
	tests := []struct {
		typ   *Type
		arity int
	}{
		{tb.Unit(), 0},
		{tb.Int(), 1},
		{tb.Set(tb.Int()), 1},
		{tb.Tuple(tb.Int(), tb.StringType()), 2},
		{tb.Tuple(tb.Int(), tb.StringType(), tb.Bool()), 3},
		{tb.Pair(tb.Unit(), tb.Int()), 2},
	}
	for i, tc := range tests {
		if got := tc.typ.Arity(); got != tc.arity {
			t.Errorf("case %d: arity(%s) = %d, want %d", i, tc.typ, got, tc.arity)
		}
	}

	trip := tb.Tuple(tb.Int(), tb.StringType(), tb.Bool())
	if trip.Nth(0) != tb.Int() || trip.Nth(1) != tb.StringType() || trip.Nth(2) != tb.Bool() {
		t.Error("Nth walks the wrong spine")
	}
	if tb.Int().Nth(0) != tb.Int() {
		t.Error("Nth(0) on a monople should be the monople")
	}
}

func TestTupleStrip(t *testing.T) {
	tb := NewTable()
	trip := tb.Tuple(tb.Int(), tb.StringType(), tb.Bool())

	if got := tb.TupleStrip(trip, 2); got != tb.Pair(tb.Int(), tb.StringType()) {
		t.Errorf("strip last: got %s", got)
	}
	if got := tb.TupleStrip(trip, 0); got != tb.Pair(tb.StringType(), tb.Bool()) {
		t.Errorf("strip first: got %s", got)
	}
	pair := tb.Pair(tb.Int(), tb.StringType())
	if got := tb.TupleStrip(pair, 0); got != tb.StringType() {
		t.Errorf("strip to monople: got %s, want string", got)
	}
	if got := tb.TupleStrip(tb.Int(), 0); got != tb.Unit() {
		t.Errorf("strip monople: got %s, want unit", got)
	}

	setof := tb.Set(pair)
	if got := tb.TupleSetStrip(setof, 1); got != tb.Set(tb.Int()) {
		t.Errorf("tupleset strip: got %s, want set(int)", got)
	}
	seqof := tb.Sequence(pair)
	if got := tb.TupleSetStrip(seqof, 1); got != tb.Sequence(tb.Int()) {
		t.Errorf("tupleset strip seq: got %s, want sequence(int)", got)
	}
}

func TestGeneralize(t *testing.T) {
	tb := NewTable()
	tests := []struct {
		a, b, want *Type
	}{
		{tb.Int(), tb.Int(), tb.Int()},
		{tb.Int(), tb.Double(), tb.Number()},
		{tb.Int(), tb.StringType(), tb.Atom()},
		{tb.DBEdge(), tb.Int(), tb.DBEdge()},
		{tb.DBEdge(), tb.StringType(), tb.DBEdge()},
		{tb.Double(), tb.StringType(), tb.Atom()},
		{tb.Bool(), tb.Int(), tb.Atom()},
		{tb.StringType(), tb.Struct(), tb.DBObj()},
		{tb.Atom(), tb.Struct(), tb.DBObj()},
		{tb.Struct(), tb.PathElement(), tb.Top()},
		{tb.Int(), tb.Distinguisher(), tb.Top()},
		{tb.Set(tb.Int()), tb.Set(tb.Double()), tb.Set(tb.Number())},
		{tb.Sequence(tb.Int()), tb.Sequence(tb.Int()), tb.Sequence(tb.Int())},
		{tb.Set(tb.Int()), tb.Sequence(tb.Int()), tb.Top()},
		{
			tb.Tuple(tb.Int(), tb.StringType()),
			tb.Tuple(tb.Double(), tb.StringType()),
			tb.Tuple(tb.Number(), tb.StringType()),
		},
		{tb.Tuple(tb.Int(), tb.StringType()), tb.Int(), tb.Top()},
		{tb.Lambda(tb.Int(), tb.Int()), tb.Lambda(tb.Int(), tb.Bool()), tb.Top()},
	}
	for i, tc := range tests {
		if got := tb.Generalize(tc.a, tc.b); got != tc.want {
			t.Errorf("case %d: generalize(%s, %s) = %s, want %s", i, tc.a, tc.b, got, tc.want)
		}
		// commutativity
		if got := tb.Generalize(tc.b, tc.a); got != tc.want {
			t.Errorf("case %d: generalize(%s, %s) = %s, want %s", i, tc.b, tc.a, got, tc.want)
		}
		// idempotence
		if got := tb.Generalize(tc.want, tc.want); got != tc.want {
			t.Errorf("case %d: generalize(%s, %s) = %s", i, tc.want, tc.want, got)
		}
	}
}

func TestGeneralizeLaws(t *testing.T) {
	tb := NewTable()
	all := []*Type{
		tb.Unit(), tb.Bool(), tb.Int(), tb.Double(), tb.StringType(),
		tb.Struct(), tb.PathElement(), tb.Distinguisher(),
		tb.Number(), tb.Atom(), tb.DBEdge(), tb.DBObj(),
		tb.Set(tb.Int()), tb.Sequence(tb.StringType()),
		tb.Tuple(tb.Int(), tb.Bool()),
	}
	for _, typ := range all {
		if got := tb.Generalize(typ, tb.Bottom()); got != typ {
			t.Errorf("generalize(%s, bottom) = %s", typ, got)
		}
		if got := tb.Generalize(typ, tb.Top()); got != tb.Top() {
			t.Errorf("generalize(%s, top) = %s", typ, got)
		}
		if got := tb.Specialize(typ, tb.Bottom()); got != tb.Bottom() {
			t.Errorf("specialize(%s, bottom) = %s", typ, got)
		}
		if got := tb.Specialize(typ, tb.Top()); got != typ {
			t.Errorf("specialize(%s, top) = %s", typ, got)
		}
	}
}

func TestSpecialize(t *testing.T) {
	tb := NewTable()
	tests := []struct {
		a, b, want *Type // want == nil means failure
	}{
		{tb.Int(), tb.Int(), tb.Int()},
		{tb.Number(), tb.Int(), tb.Int()},
		{tb.Atom(), tb.Number(), tb.Number()},
		{tb.Atom(), tb.StringType(), tb.StringType()},
		{tb.DBEdge(), tb.Int(), tb.Int()},
		{tb.DBObj(), tb.Struct(), tb.Struct()},
		{tb.DBObj(), tb.Atom(), tb.Atom()},
		{tb.Int(), tb.StringType(), nil},
		{tb.Int(), tb.Double(), nil},
		{tb.Struct(), tb.PathElement(), nil},
		{tb.Set(tb.Number()), tb.Set(tb.Int()), tb.Set(tb.Int())},
		{tb.Set(tb.Int()), tb.Sequence(tb.Int()), nil},
		{
			tb.Tuple(tb.Number(), tb.StringType()),
			tb.Tuple(tb.Int(), tb.Atom()),
			tb.Tuple(tb.Int(), tb.StringType()),
		},
		{tb.Tuple(tb.Int(), tb.Int()), tb.Tuple(tb.Int(), tb.Int(), tb.Int()), nil},
		{tb.Lambda(tb.Int(), tb.Int()), tb.Lambda(tb.Int(), tb.Bool()), nil},
	}
	for i, tc := range tests {
		got := tb.Specialize(tc.a, tc.b)
		if got != tc.want {
			t.Errorf("case %d: specialize(%s, %s) = %v, want %v", i, tc.a, tc.b, got, tc.want)
		}
		got = tb.Specialize(tc.b, tc.a)
		if got != tc.want {
			t.Errorf("case %d: specialize(%s, %s) = %v, want %v", i, tc.b, tc.a, got, tc.want)
		}
	}
}
