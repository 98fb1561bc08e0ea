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

package eval

import (
	"encoding/binary"
	"math"

	"github.com/dchest/siphash"

	"github.com/pql-engine/pql/value"
)

// Value hashing for grouping, dedup, and visited sets.
// Equal-by-Identical values hash equally; collisions are
// resolved by the callers with value.Identical.

const (
	hashK0 = 0x706b6c71756572ff // arbitrary fixed keys
	hashK1 = 0x079a6b2c3d4e5f60
)

// hashValue returns a 64-bit hash of v's structure.
func hashValue(v *value.Value) uint64 {
	h, _ := siphash.Hash128(hashK0, hashK1, appendHash(nil, v))
	return h
}

func appendHash(dst []byte, v *value.Value) []byte {
	var tmp [8]byte
	switch {
	case v.IsNil():
		dst = append(dst, 0x00)
	case v.IsBool():
		if v.BoolValue() {
			dst = append(dst, 0x01, 1)
		} else {
			dst = append(dst, 0x01, 0)
		}
	case v.IsInt():
		dst = append(dst, 0x02)
		binary.BigEndian.PutUint64(tmp[:], uint64(int64(v.IntValue())))
		dst = append(dst, tmp[:]...)
	case v.IsDouble():
		dst = append(dst, 0x03)
		binary.BigEndian.PutUint64(tmp[:], math.Float64bits(v.DoubleValue()))
		dst = append(dst, tmp[:]...)
	case v.IsString():
		s := v.StringValue()
		dst = append(dst, 0x04)
		binary.BigEndian.PutUint64(tmp[:], uint64(len(s)))
		dst = append(dst, tmp[:]...)
		dst = append(dst, s...)
	case v.IsStruct():
		obj := v.StructValue()
		dst = append(dst, 0x05)
		binary.BigEndian.PutUint64(tmp[:], uint64(obj.DBNum))
		dst = append(dst, tmp[:]...)
		binary.BigEndian.PutUint64(tmp[:], obj.OID)
		dst = append(dst, tmp[:]...)
		binary.BigEndian.PutUint64(tmp[:], obj.SubID)
		dst = append(dst, tmp[:]...)
	case v.IsPathElement():
		dst = append(dst, 0x06)
		dst = appendHash(dst, v.PathLeft())
		dst = appendHash(dst, v.PathEdge())
		dst = appendHash(dst, v.PathRight())
	case v.IsDistinguisher():
		dst = append(dst, 0x07)
		dst = append(dst, v.String()...)
	case v.IsTuple():
		dst = append(dst, 0x08)
		binary.BigEndian.PutUint64(tmp[:], uint64(v.TupleArity()))
		dst = append(dst, tmp[:]...)
		for i := 0; i < v.TupleArity(); i++ {
			dst = appendHash(dst, v.TupleGet(i))
		}
	case v.IsSet(), v.IsSequence():
		dst = append(dst, 0x09)
		binary.BigEndian.PutUint64(tmp[:], uint64(v.Len()))
		dst = append(dst, tmp[:]...)
		for i := 0; i < v.Len(); i++ {
			dst = appendHash(dst, v.Member(i))
		}
	}
	return dst
}

// valueSet is a hash set of values keyed on Identical.
type valueSet struct {
	m map[uint64][]*value.Value
}

func newValueSet() *valueSet {
	return &valueSet{m: make(map[uint64][]*value.Value)}
}

// insert adds v and reports whether it was absent.
func (s *valueSet) insert(v *value.Value) bool {
	h := hashValue(v)
	for _, have := range s.m[h] {
		if value.Identical(have, v) {
			return false
		}
	}
	s.m[h] = append(s.m[h], v)
	return true
}

// contains reports whether v is present.
func (s *valueSet) contains(v *value.Value) bool {
	for _, have := range s.m[hashValue(v)] {
		if value.Identical(have, v) {
			return true
		}
	}
	return false
}
