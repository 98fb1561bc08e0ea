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

// Package value implements the engine's runtime values.
//
// A Value is dynamically typed; every value carries its datatype.
// Tuples are finite ordered sequences of values; a non-tuple value
// (a monople) behaves as a tuple of arity 1 for indexing purposes,
// and the unit value is the tuple of arity 0. Sets are unordered
// and duplicate-free; sequences are ordered and may hold duplicates.
//
// Accessing a value through the wrong variant's accessor is a
// contract violation and goes through assert.Fail.
package value

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/pql-engine/pql/datatype"
	"github.com/pql-engine/pql/internal/assert"
)

type rep uint8

const (
	repNil rep = iota
	repBool
	repInt
	repDouble
	repString
	repDBObj
	repPathElement
	repDistinguisher
	repTuple
	repSet
	repSequence
)

// DBObj is a reference to a database object: a storage
// region number plus the object and subobject identifiers.
type DBObj struct {
	DBNum uint32
	OID   uint64
	SubID uint64
}

// Value is a single runtime value. Values are created by the
// package-level constructors and are mutated only through the
// staged tuple-construction and collection-add operations.
type Value struct {
	typ *datatype.Type
	rep rep

	b    bool
	i    int32
	f    float64
	s    string
	obj  DBObj
	dist uuid.UUID

	// tuple members, set/sequence members, or the
	// (left, edge, right) triple of a path element
	sub []*Value
}

// Type returns the value's datatype.
func (v *Value) Type() *datatype.Type { return v.typ }

// Nil returns the nil value.
func Nil(tb *datatype.Table) *Value {
	return &Value{typ: tb.Bottom(), rep: repNil}
}

// Bool returns a boolean value.
func Bool(tb *datatype.Table, b bool) *Value {
	return &Value{typ: tb.Bool(), rep: repBool, b: b}
}

// Int returns an integer value.
func Int(tb *datatype.Table, i int32) *Value {
	return &Value{typ: tb.Int(), rep: repInt, i: i}
}

// Double returns a floating-point value.
func Double(tb *datatype.Table, f float64) *Value {
	return &Value{typ: tb.Double(), rep: repDouble, f: f}
}

// String returns a string value.
func String(tb *datatype.Table, s string) *Value {
	return &Value{typ: tb.StringType(), rep: repString, s: s}
}

// Struct returns a database-object reference value.
func Struct(tb *datatype.Table, obj DBObj) *Value {
	return &Value{typ: tb.Struct(), rep: repDBObj, obj: obj}
}

// PathElement packages a (left, edge, right) triple into a
// path-element value, taking ownership of the three values.
func PathElement(tb *datatype.Table, left, edge, right *Value) *Value {
	return &Value{
		typ: tb.PathElement(),
		rep: repPathElement,
		sub: []*Value{left, edge, right},
	}
}

// NewDistinguisher returns a fresh distinguisher value,
// unequal to every previously created distinguisher.
func NewDistinguisher(tb *datatype.Table) *Value {
	return &Value{typ: tb.Distinguisher(), rep: repDistinguisher, dist: uuid.New()}
}

// Unit returns the tuple of arity 0.
func Unit(tb *datatype.Table) *Value {
	return &Value{typ: tb.Unit(), rep: repTuple}
}

// EmptySet returns a set with member type bottom; the member
// type widens as values are added.
func EmptySet(tb *datatype.Table) *Value {
	return &Value{typ: tb.Set(tb.Bottom()), rep: repSet}
}

// EmptySequence returns a sequence with member type bottom.
func EmptySequence(tb *datatype.Table) *Value {
	return &Value{typ: tb.Sequence(tb.Bottom()), rep: repSequence}
}

// Clone returns a deep copy of v. The copy is identical to v
// and fully independent of it.
func (v *Value) Clone() *Value {
	nv := new(Value)
	*nv = *v
	if v.sub != nil {
		nv.sub = make([]*Value, len(v.sub))
		for i := range v.sub {
			nv.sub[i] = v.sub[i].Clone()
		}
	}
	return nv
}

func (v *Value) IsNil() bool           { return v.rep == repNil }
func (v *Value) IsBool() bool          { return v.rep == repBool }
func (v *Value) IsInt() bool           { return v.rep == repInt }
func (v *Value) IsDouble() bool        { return v.rep == repDouble }
func (v *Value) IsString() bool        { return v.rep == repString }
func (v *Value) IsStruct() bool        { return v.rep == repDBObj }
func (v *Value) IsPathElement() bool   { return v.rep == repPathElement }
func (v *Value) IsDistinguisher() bool { return v.rep == repDistinguisher }
func (v *Value) IsTuple() bool         { return v.rep == repTuple }
func (v *Value) IsSet() bool           { return v.rep == repSet }
func (v *Value) IsSequence() bool      { return v.rep == repSequence }

func (v *Value) variant(want rep, op string) {
	if v.rep != want {
		assert.Failf("value: %s on %s value", op, v.repname())
	}
}

func (v *Value) repname() string {
	switch v.rep {
	case repNil:
		return "nil"
	case repBool:
		return "bool"
	case repInt:
		return "int"
	case repDouble:
		return "double"
	case repString:
		return "string"
	case repDBObj:
		return "struct"
	case repPathElement:
		return "pathelement"
	case repDistinguisher:
		return "distinguisher"
	case repTuple:
		return "tuple"
	case repSet:
		return "set"
	case repSequence:
		return "sequence"
	}
	return "?"
}

// BoolValue returns the payload of a bool value.
func (v *Value) BoolValue() bool {
	v.variant(repBool, "BoolValue")
	return v.b
}

// IntValue returns the payload of an int value.
func (v *Value) IntValue() int32 {
	v.variant(repInt, "IntValue")
	return v.i
}

// DoubleValue returns the payload of a double value.
func (v *Value) DoubleValue() float64 {
	v.variant(repDouble, "DoubleValue")
	return v.f
}

// StringValue returns the payload of a string value.
func (v *Value) StringValue() string {
	v.variant(repString, "StringValue")
	return v.s
}

// StructValue returns the payload of a struct value.
func (v *Value) StructValue() DBObj {
	v.variant(repDBObj, "StructValue")
	return v.obj
}

// PathLeft returns the left object of a path element.
// The returned value is a non-owning view.
func (v *Value) PathLeft() *Value {
	v.variant(repPathElement, "PathLeft")
	return v.sub[0]
}

// PathEdge returns the edge name of a path element.
func (v *Value) PathEdge() *Value {
	v.variant(repPathElement, "PathEdge")
	return v.sub[1]
}

// PathRight returns the right object of a path element.
func (v *Value) PathRight() *Value {
	v.variant(repPathElement, "PathRight")
	return v.sub[2]
}

// Len returns the number of members of a set or sequence.
func (v *Value) Len() int {
	if v.rep != repSet && v.rep != repSequence {
		assert.Failf("value: Len on %s value", v.repname())
	}
	return len(v.sub)
}

// Member returns the ith member of a set or sequence
// as a non-owning view.
func (v *Value) Member(i int) *Value {
	if v.rep != repSet && v.rep != repSequence {
		assert.Failf("value: Member on %s value", v.repname())
	}
	return v.sub[i]
}

// Add appends a member to a set or sequence, taking ownership.
// The collection's member type widens from bottom on the first
// insert; inserting a value that does not generalize with a
// non-bottom member type is a contract violation.
func (v *Value) Add(tb *datatype.Table, m *Value) {
	var member *datatype.Type
	switch v.rep {
	case repSet:
		member = v.typ.Member()
	case repSequence:
		member = v.typ.Member()
	default:
		assert.Failf("value: Add on %s value", v.repname())
		return
	}
	if member.IsBottom() {
		if v.rep == repSet {
			v.typ = tb.Set(m.typ)
		} else {
			v.typ = tb.Sequence(m.typ)
		}
	} else if member != m.typ {
		gen := tb.Generalize(member, m.typ)
		if gen.IsTop() && !member.IsTop() && !m.typ.IsTop() {
			assert.Failf("value: adding %s member to collection of %s", m.typ, member)
			return
		}
		if v.rep == repSet {
			v.typ = tb.Set(gen)
		} else {
			v.typ = tb.Sequence(gen)
		}
	}
	v.sub = append(v.sub, m)
}

// Truth returns the value's logical truth: everything is true
// except nil, false, zero numbers, the empty string, and empty
// collections.
func (v *Value) Truth() bool {
	switch v.rep {
	case repNil:
		return false
	case repBool:
		return v.b
	case repInt:
		return v.i != 0
	case repDouble:
		return v.f != 0
	case repString:
		return v.s != ""
	case repSet, repSequence:
		return len(v.sub) > 0
	}
	return true
}

// String renders the value in its canonical textual form.
func (v *Value) String() string {
	var sb strings.Builder
	v.tostring(&sb)
	return sb.String()
}

func (v *Value) tostring(sb *strings.Builder) {
	switch v.rep {
	case repNil:
		sb.WriteString("nil")
	case repBool:
		if v.b {
			sb.WriteString("true")
		} else {
			sb.WriteString("false")
		}
	case repInt:
		sb.WriteString(strconv.FormatInt(int64(v.i), 10))
	case repDouble:
		sb.WriteString(strconv.FormatFloat(v.f, 'g', -1, 64))
	case repString:
		sb.WriteString(v.s)
	case repDBObj:
		sb.WriteByte('{')
		sb.WriteString(strconv.FormatUint(uint64(v.obj.DBNum), 10))
		sb.WriteByte('.')
		sb.WriteString(strconv.FormatUint(v.obj.OID, 10))
		if v.obj.SubID != 0 {
			sb.WriteByte('.')
			sb.WriteString(strconv.FormatUint(v.obj.SubID, 10))
		}
		sb.WriteByte('}')
	case repPathElement:
		v.sub[0].tostring(sb)
		sb.WriteByte('.')
		v.sub[1].tostring(sb)
		sb.WriteByte('.')
		v.sub[2].tostring(sb)
	case repDistinguisher:
		sb.WriteByte('!')
		sb.WriteString(v.dist.String())
	case repTuple:
		sb.WriteByte('(')
		for i, m := range v.sub {
			if i > 0 {
				sb.WriteString(", ")
			}
			m.tostring(sb)
		}
		sb.WriteByte(')')
	case repSet, repSequence:
		sb.WriteByte('{')
		for i, m := range v.sub {
			if i > 0 {
				sb.WriteString(", ")
			}
			m.tostring(sb)
		}
		sb.WriteByte('}')
	}
}
