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

// Package pickle implements the engine's binary wire format
// for values.
//
// A pickle is a six-byte header followed by one value encoded
// tag-then-payload. Multi-byte quantities are big-endian on the
// wire regardless of the host; integers and lengths use a
// variable-width encoding. Decoders accept any well-formed blob
// produced by a compatible writer and reject malformed input
// without crashing.
package pickle

import (
	"errors"
	"math"

	"github.com/pql-engine/pql/datatype"
	"github.com/pql-engine/pql/value"
)

// Version is the current wire version.
const Version = 0

var magic = [4]byte{'P', 'Q', 'L', 0}

const (
	tcNil         = 0x00
	tcBool        = 0x01
	tcPosInt      = 0x02
	tcNegInt      = 0x03
	tcFloat       = 0x04
	tcString      = 0x05
	tcStruct      = 0x06
	tcPathElement = 0x07
	tcTuple       = 0x08
	tcSet         = 0x09
	tcSequence    = 0x0a
)

var (
	// ErrBadFormat indicates a bad magic number or an
	// unknown type tag.
	ErrBadFormat = errors.New("pickle: not a pickled value")
	// ErrVersion indicates a wire-version mismatch.
	ErrVersion = errors.New("pickle: version mismatch")
	// ErrFloatFormat indicates the blob was written with an
	// unsupported floating-point representation.
	ErrFloatFormat = errors.New("pickle: unsupported float format")
	// ErrNaN indicates a NaN float on the wire.
	ErrNaN = errors.New("pickle: float is NaN")
	// ErrTruncated indicates the blob ended mid-value.
	ErrTruncated = errors.New("pickle: truncated input")
	// ErrCantPickle indicates a value whose type has no
	// wire representation (lambdas, distinguishers).
	ErrCantPickle = errors.New("pickle: value cannot be pickled")
)

// putUint appends the variable-width encoding of u:
// one byte when u < 0xff, otherwise 0xff plus four bytes
// when u < 0xffffffff, otherwise 0xff 0xffffffff plus
// eight bytes.
func putUint(dst []byte, u uint64) []byte {
	if u < 0xff {
		return append(dst, byte(u))
	}
	dst = append(dst, 0xff)
	if u < 0xffffffff {
		return put32(dst, uint32(u))
	}
	dst = put32(dst, 0xffffffff)
	return put64(dst, u)
}

func put32(dst []byte, u uint32) []byte {
	return append(dst, byte(u>>24), byte(u>>16), byte(u>>8), byte(u))
}

func put64(dst []byte, u uint64) []byte {
	return append(dst,
		byte(u>>56), byte(u>>48), byte(u>>40), byte(u>>32),
		byte(u>>24), byte(u>>16), byte(u>>8), byte(u))
}

// Pickle encodes v with the standard header.
func Pickle(v *value.Value) ([]byte, error) {
	return Append(nil, v)
}

// Append encodes v with the standard header, appending
// to dst.
func Append(dst []byte, v *value.Value) ([]byte, error) {
	dst = append(dst, magic[:]...)
	dst = append(dst, Version)
	dst = append(dst, 0) // machine floats are not VAX-format
	return appendValue(dst, v)
}

func appendValue(dst []byte, v *value.Value) ([]byte, error) {
	switch {
	case v.IsNil():
		return append(dst, tcNil), nil
	case v.IsBool():
		b := byte(0)
		if v.BoolValue() {
			b = 1
		}
		return append(dst, tcBool, b), nil
	case v.IsInt():
		i := v.IntValue()
		if i >= 0 {
			return putUint(append(dst, tcPosInt), uint64(i)), nil
		}
		return putUint(append(dst, tcNegInt), uint64(-int64(i))), nil
	case v.IsDouble():
		// the wire is canonically big-endian for all 8 bytes
		return put64(append(dst, tcFloat), math.Float64bits(v.DoubleValue())), nil
	case v.IsString():
		s := v.StringValue()
		dst = putUint(append(dst, tcString), uint64(len(s)))
		return append(dst, s...), nil
	case v.IsStruct():
		obj := v.StructValue()
		dst = putUint(append(dst, tcStruct), uint64(obj.DBNum))
		dst = putUint(dst, obj.OID)
		return putUint(dst, obj.SubID), nil
	case v.IsPathElement():
		var err error
		dst = append(dst, tcPathElement)
		if dst, err = appendValue(dst, v.PathLeft()); err != nil {
			return nil, err
		}
		if dst, err = appendValue(dst, v.PathEdge()); err != nil {
			return nil, err
		}
		return appendValue(dst, v.PathRight())
	case v.IsTuple():
		arity := v.TupleArity()
		dst = putUint(append(dst, tcTuple), uint64(arity))
		var err error
		for i := 0; i < arity; i++ {
			if dst, err = appendValue(dst, v.TupleGet(i)); err != nil {
				return nil, err
			}
		}
		return dst, nil
	case v.IsSet(), v.IsSequence():
		tag := byte(tcSet)
		if v.IsSequence() {
			tag = tcSequence
		}
		dst = putUint(append(dst, tag), uint64(v.Len()))
		var err error
		for i := 0; i < v.Len(); i++ {
			if dst, err = appendValue(dst, v.Member(i)); err != nil {
				return nil, err
			}
		}
		return dst, nil
	}
	return nil, ErrCantPickle
}

type decoder struct {
	buf []byte
	pos int
	tb  *datatype.Table
}

func (d *decoder) get8() (byte, error) {
	if d.pos >= len(d.buf) {
		return 0, ErrTruncated
	}
	b := d.buf[d.pos]
	d.pos++
	return b, nil
}

func (d *decoder) get32() (uint32, error) {
	if d.pos+4 > len(d.buf) {
		return 0, ErrTruncated
	}
	b := d.buf[d.pos:]
	d.pos += 4
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), nil
}

func (d *decoder) get64() (uint64, error) {
	if d.pos+8 > len(d.buf) {
		return 0, ErrTruncated
	}
	b := d.buf[d.pos:]
	d.pos += 8
	return uint64(b[0])<<56 | uint64(b[1])<<48 | uint64(b[2])<<40 | uint64(b[3])<<32 |
		uint64(b[4])<<24 | uint64(b[5])<<16 | uint64(b[6])<<8 | uint64(b[7]), nil
}

func (d *decoder) getUint() (uint64, error) {
	b, err := d.get8()
	if err != nil {
		return 0, err
	}
	if b < 0xff {
		return uint64(b), nil
	}
	u32, err := d.get32()
	if err != nil {
		return 0, err
	}
	if u32 < 0xffffffff {
		return uint64(u32), nil
	}
	return d.get64()
}

// Unpickle decodes a pickled value. The decoded value's
// datatypes are interned in tb.
func Unpickle(tb *datatype.Table, buf []byte) (*value.Value, error) {
	d := &decoder{buf: buf, tb: tb}
	if len(buf) < 6 {
		return nil, ErrTruncated
	}
	if buf[0] != magic[0] || buf[1] != magic[1] || buf[2] != magic[2] || buf[3] != magic[3] {
		return nil, ErrBadFormat
	}
	if buf[4] != Version {
		return nil, ErrVersion
	}
	if buf[5] != 0 {
		return nil, ErrFloatFormat
	}
	d.pos = 6
	v, err := d.decodeValue(0)
	if err != nil {
		return nil, err
	}
	if d.pos != len(d.buf) {
		return nil, ErrBadFormat
	}
	return v, nil
}

// maxDepth bounds recursion so that adversarial blobs cannot
// exhaust the stack.
const maxDepth = 1000

func (d *decoder) decodeValue(depth int) (*value.Value, error) {
	if depth > maxDepth {
		return nil, ErrBadFormat
	}
	tag, err := d.get8()
	if err != nil {
		return nil, err
	}
	switch tag {
	case tcNil:
		return value.Nil(d.tb), nil
	case tcBool:
		b, err := d.get8()
		if err != nil {
			return nil, err
		}
		return value.Bool(d.tb, b != 0), nil
	case tcPosInt:
		u, err := d.getUint()
		if err != nil {
			return nil, err
		}
		if u > math.MaxInt32 {
			return nil, ErrBadFormat
		}
		return value.Int(d.tb, int32(u)), nil
	case tcNegInt:
		u, err := d.getUint()
		if err != nil {
			return nil, err
		}
		if u > -math.MinInt32 {
			return nil, ErrBadFormat
		}
		return value.Int(d.tb, int32(-int64(u))), nil
	case tcFloat:
		u, err := d.get64()
		if err != nil {
			return nil, err
		}
		f := math.Float64frombits(u)
		if math.IsNaN(f) {
			return nil, ErrNaN
		}
		return value.Double(d.tb, f), nil
	case tcString:
		n, err := d.getUint()
		if err != nil {
			return nil, err
		}
		if n > uint64(len(d.buf)-d.pos) {
			return nil, ErrTruncated
		}
		s := string(d.buf[d.pos : d.pos+int(n)])
		d.pos += int(n)
		return value.String(d.tb, s), nil
	case tcStruct:
		dbnum, err := d.getUint()
		if err != nil {
			return nil, err
		}
		if dbnum > math.MaxUint32 {
			return nil, ErrBadFormat
		}
		oid, err := d.getUint()
		if err != nil {
			return nil, err
		}
		subid, err := d.getUint()
		if err != nil {
			return nil, err
		}
		return value.Struct(d.tb, value.DBObj{DBNum: uint32(dbnum), OID: oid, SubID: subid}), nil
	case tcPathElement:
		left, err := d.decodeValue(depth + 1)
		if err != nil {
			return nil, err
		}
		edge, err := d.decodeValue(depth + 1)
		if err != nil {
			return nil, err
		}
		right, err := d.decodeValue(depth + 1)
		if err != nil {
			return nil, err
		}
		return value.PathElement(d.tb, left, edge, right), nil
	case tcTuple:
		arity, err := d.getUint()
		if err != nil {
			return nil, err
		}
		if arity > uint64(len(d.buf)-d.pos) {
			return nil, ErrTruncated
		}
		t := value.TupleBegin(d.tb, int(arity))
		for i := 0; i < int(arity); i++ {
			m, err := d.decodeValue(depth + 1)
			if err != nil {
				return nil, err
			}
			t.TupleAssign(i, m)
		}
		return t.TupleEnd(d.tb), nil
	case tcSet, tcSequence:
		n, err := d.getUint()
		if err != nil {
			return nil, err
		}
		if n > uint64(len(d.buf)-d.pos) {
			return nil, ErrTruncated
		}
		var coll *value.Value
		if tag == tcSet {
			coll = value.EmptySet(d.tb)
		} else {
			coll = value.EmptySequence(d.tb)
		}
		for i := 0; i < int(n); i++ {
			m, err := d.decodeValue(depth + 1)
			if err != nil {
				return nil, err
			}
			// reject member types the value layer would trap on
			if mem := coll.Type().Member(); !mem.IsBottom() && !mem.IsTop() && !m.Type().IsTop() {
				if d.tb.Generalize(mem, m.Type()).IsTop() {
					return nil, ErrBadFormat
				}
			}
			coll.Add(d.tb, m)
		}
		return coll, nil
	}
	return nil, ErrBadFormat
}
