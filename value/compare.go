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
	"bytes"
	"strconv"
	"strings"
)

// Equality and ordering.
//
// Two values are "really" equal when they have the same type and
// the same structure; Identical checks this. Eq additionally
// admits promotions: int to float, string to number, and anything
// to bool when a bool is involved, applied pointwise through
// tuples and collections.
//
// Compare is the sort order. The language's comparison operator
// cannot be used for sorting because it produces inconsistent
// results when strings and numbers mix, so mixed atoms sort by
// their canonical string form, and otherwise values sort by a
// fixed datatype rank.

func cmpOrdered[T int | int32 | int64 | uint32 | uint64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return 1
	}
	return -1
}

// compareArrays orders by length first, then lexicographically.
func compareArrays(a, b []*Value, sub func(a, b *Value) int) int {
	if c := cmpOrdered(len(a), len(b)); c != 0 {
		return c
	}
	for i := range a {
		if c := sub(a[i], b[i]); c != 0 {
			return c
		}
	}
	return 0
}

// compareSameRep compares two values of the same representation.
// sub is used for members so that the caller controls whether
// promotion applies below this level.
func compareSameRep(a, b *Value, sub func(a, b *Value) int) int {
	switch a.rep {
	case repNil:
		return 0
	case repBool:
		return cmpBool(a.b, b.b)
	case repInt:
		return cmpOrdered(a.i, b.i)
	case repDouble:
		return cmpOrdered(a.f, b.f)
	case repString:
		return strings.Compare(a.s, b.s)
	case repDBObj:
		if c := cmpOrdered(a.obj.DBNum, b.obj.DBNum); c != 0 {
			return c
		}
		if c := cmpOrdered(a.obj.OID, b.obj.OID); c != 0 {
			return c
		}
		return cmpOrdered(a.obj.SubID, b.obj.SubID)
	case repPathElement:
		if c := sub(a.sub[1], b.sub[1]); c != 0 {
			return c
		}
		if c := sub(a.sub[0], b.sub[0]); c != 0 {
			return c
		}
		return sub(a.sub[2], b.sub[2])
	case repDistinguisher:
		return bytes.Compare(a.dist[:], b.dist[:])
	case repTuple, repSet, repSequence:
		return compareArrays(a.sub, b.sub, sub)
	}
	return 0
}

// compareSameTypes compares values whose datatypes are equal,
// plus the one deliberate lie: sets and sequences of differing
// member types still compare structurally, since their members
// are flat arrays either way.
func compareSameTypes(a, b *Value, sub func(a, b *Value) int) int {
	if (a.rep == repSet || a.rep == repSequence) &&
		(b.rep == repSet || b.rep == repSequence) {
		return compareArrays(a.sub, b.sub, sub)
	}
	if a.rep != b.rep {
		return -1
	}
	return compareSameRep(a, b, sub)
}

func compareIdentical(a, b *Value) int {
	if a.typ != b.typ {
		return -1
	}
	return compareSameTypes(a, b, compareIdentical)
}

// Identical reports whether a and b have the same type and the
// same structure, with no promotions.
func Identical(a, b *Value) bool {
	return compareIdentical(a, b) == 0
}

// AsNumber converts a value to a number under the promotion
// rules: integers stay exact, strings convert when they parse
// completely.
func AsNumber(v *Value) (i int32, f float64, isFloat, ok bool) {
	return toNumber(v)
}

// AsBool converts a value to a bool under the promotion
// rules.
func AsBool(v *Value) (b, ok bool) {
	return toBool(v)
}

// toNumber converts a value to a number if possible. Integers
// stay exact; strings convert when they parse completely.
func toNumber(v *Value) (i int32, f float64, isFloat, ok bool) {
	switch v.rep {
	case repInt:
		return v.i, 0, false, true
	case repDouble:
		return 0, v.f, true, true
	case repString:
		if n, err := strconv.ParseInt(v.s, 10, 32); err == nil {
			return int32(n), 0, false, true
		}
		if g, err := strconv.ParseFloat(v.s, 64); err == nil {
			return 0, g, true, true
		}
	}
	return 0, 0, false, false
}

// toBool converts a value to a bool if possible: bools convert
// to themselves, numbers by zeroness, and the literal strings
// "true" and "false".
func toBool(v *Value) (b, ok bool) {
	switch v.rep {
	case repBool:
		return v.b, true
	case repInt:
		return v.i != 0, true
	case repDouble:
		return v.f != 0, true
	case repString:
		switch v.s {
		case "true":
			return true, true
		case "false":
			return false, true
		}
	}
	return false, false
}

func compareConvertible(a, b *Value) int {
	if a.rep == repNil && b.rep == repNil {
		return 0
	}
	if a.rep == repNil {
		return -1
	}
	if b.rep == repNil {
		return 1
	}

	if a.typ == b.typ {
		return compareSameTypes(a, b, compareConvertible)
	}

	if a.typ.IsAnyNumber() || b.typ.IsAnyNumber() ||
		a.typ.IsString() || b.typ.IsString() {
		ai, af, afloat, aok := toNumber(a)
		bi, bf, bfloat, bok := toNumber(b)
		if aok && bok {
			if !afloat && !bfloat {
				return cmpOrdered(ai, bi)
			}
			if !afloat {
				af = float64(ai)
			}
			if !bfloat {
				bf = float64(bi)
			}
			return cmpOrdered(af, bf)
		}
	}

	// '6 == "yes"' should not be true, so only promote to bool
	// when at least one bool is involved
	if a.rep == repBool || b.rep == repBool {
		ab, aok := toBool(a)
		bb, bok := toBool(b)
		if aok && bok {
			return cmpBool(ab, bb)
		}
	}

	if a.typ.IsTuple() && b.typ.IsTuple() && a.rep == repTuple && b.rep == repTuple {
		if c := cmpOrdered(a.TupleArity(), b.TupleArity()); c != 0 {
			return c
		}
		for i := 0; i < a.TupleArity(); i++ {
			if c := compareConvertible(a.TupleGet(i), b.TupleGet(i)); c != 0 {
				return c
			}
		}
		return 0
	}

	if (a.rep == repSet || a.rep == repSequence) &&
		(b.rep == repSet || b.rep == repSequence) {
		return compareSameTypes(a, b, compareConvertible)
	}

	return -1
}

// Eq is the language-level equality: structural equality up to
// the promotions described above.
func Eq(a, b *Value) bool {
	return compareConvertible(a, b) == 0
}

// datatypeRank is the fixed ordering of values whose types
// neither match nor promote: atoms, then structs, then path
// elements, distinguishers, tuples, and finally collections.
func datatypeRank(v *Value) int {
	switch {
	case v.typ.IsAnyAtom():
		return 0
	case v.typ.IsStruct():
		return 1
	case v.typ.IsPathElement():
		return 2
	case v.typ.IsDistinguisher():
		return 3
	case v.rep == repTuple:
		return 4
	}
	return 5
}

// canonicalAtom renders an atom for mixed-atom ordering.
func canonicalAtom(v *Value) string {
	if v.rep == repString {
		return v.s
	}
	return v.String()
}

// Compare is a total-ish order over values, used for sorting.
// Nil sorts first; same-type values compare structurally;
// mixed atoms compare by canonical string form; tuples by
// arity then lexicographically; everything else by rank.
func Compare(a, b *Value) int {
	if a.rep == repNil && b.rep == repNil {
		return 0
	}
	if a.rep == repNil {
		return -1
	}
	if b.rep == repNil {
		return 1
	}

	if a.typ == b.typ {
		return compareSameTypes(a, b, Compare)
	}

	if a.typ.IsAnyAtom() && b.typ.IsAnyAtom() {
		return strings.Compare(canonicalAtom(a), canonicalAtom(b))
	}

	if a.rep == repTuple && b.rep == repTuple {
		if c := cmpOrdered(len(a.sub), len(b.sub)); c != 0 {
			return c
		}
		for i := range a.sub {
			if c := Compare(a.sub[i], b.sub[i]); c != 0 {
				return c
			}
		}
		return 0
	}

	if (a.rep == repSet || a.rep == repSequence) &&
		(b.rep == repSet || b.rep == repSequence) {
		return compareSameTypes(a, b, Compare)
	}

	return cmpOrdered(datatypeRank(a), datatypeRank(b))
}
