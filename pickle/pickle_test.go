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

package pickle

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"golang.org/x/exp/slices"

	"github.com/pql-engine/pql/datatype"
	"github.com/pql-engine/pql/value"
)

func roundTrip(t *testing.T, tb *datatype.Table, v *value.Value) *value.Value {
	t.Helper()
	blob, err := Pickle(v)
	if err != nil {
		t.Fatalf("pickle %s: %s", v, err)
	}
	out, err := Unpickle(tb, blob)
	if err != nil {
		t.Fatalf("unpickle %s: %s", v, err)
	}
	if !value.Identical(v, out) {
		t.Fatalf("round trip of %s gave %s", v, out)
	}
	return out
}

func TestRoundTrip(t *testing.T) {
	tb := datatype.NewTable()
	set := value.EmptySet(tb)
	set.Add(tb, value.Double(tb, 5.42))
	seq := value.EmptySequence(tb)
	seq.Add(tb, value.Int(tb, 1))
	seq.Add(tb, value.Int(tb, 1))
	vals := []*value.Value{
		value.Nil(tb),
		value.Bool(tb, true),
		value.Bool(tb, false),
		value.Int(tb, 0),
		value.Int(tb, 300), // exercises the 0xff escape
		value.Int(tb, -7),
		value.Int(tb, math.MaxInt32),
		value.Int(tb, math.MinInt32),
		value.Double(tb, 2.75),
		value.Double(tb, 0.0),
		value.String(tb, ""),
		value.String(tb, "hello world"),
		value.Struct(tb, value.DBObj{DBNum: 2, OID: 99, SubID: 3}),
		value.PathElement(tb,
			value.Struct(tb, value.DBObj{OID: 1}),
			value.String(tb, "input"),
			value.Struct(tb, value.DBObj{OID: 2})),
		value.Unit(tb),
		value.Tuple(tb, value.Int(tb, 1), value.String(tb, "x"), set.Clone()),
		set,
		seq,
		value.EmptySet(tb),
	}
	for _, v := range vals {
		roundTrip(t, tb, v)
	}
}

func TestScenarioTuple(t *testing.T) {
	tb := datatype.NewTable()
	set := value.EmptySet(tb)
	set.Add(tb, value.Double(tb, 5.42))
	v := value.Tuple(tb, value.Int(tb, 1), value.String(tb, "x"), set)
	blob, err := Pickle(v)
	if err != nil {
		t.Fatal(err)
	}
	if len(blob) < 14 {
		t.Fatalf("blob too short: %d bytes", len(blob))
	}
	out, err := Unpickle(tb, blob)
	if err != nil {
		t.Fatal(err)
	}
	if !value.Identical(v, out) {
		t.Fatalf("got %s", out)
	}
	if out.String() != "(1, x, {5.42})" {
		t.Fatalf("textual form %q", out.String())
	}
}

func TestZeroFloat(t *testing.T) {
	tb := datatype.NewTable()
	out := roundTrip(t, tb, value.Double(tb, 0.0))
	f := out.DoubleValue()
	if f != 0.0 || math.Signbit(f) {
		t.Fatalf("0.0 did not round trip cleanly: %v", f)
	}
}

func TestHeaderErrors(t *testing.T) {
	tb := datatype.NewTable()
	blob, err := Pickle(value.Int(tb, 1))
	if err != nil {
		t.Fatal(err)
	}

	bad := slices.Clone(blob)
	bad[0] = 'X'
	if _, err := Unpickle(tb, bad); !errors.Is(err, ErrBadFormat) {
		t.Errorf("bad magic: %v", err)
	}

	bad = slices.Clone(blob)
	bad[4] = 1
	if _, err := Unpickle(tb, bad); !errors.Is(err, ErrVersion) {
		t.Errorf("version 1: %v", err)
	}

	bad = slices.Clone(blob)
	bad[5] = 1
	if _, err := Unpickle(tb, bad); !errors.Is(err, ErrFloatFormat) {
		t.Errorf("vax flag: %v", err)
	}

	if _, err := Unpickle(tb, blob[:3]); !errors.Is(err, ErrTruncated) {
		t.Errorf("short header: %v", err)
	}
}

func TestDecodeGarbage(t *testing.T) {
	tb := datatype.NewTable()
	hdr := []byte{'P', 'Q', 'L', 0, 0, 0}

	// unknown tag
	if _, err := Unpickle(tb, append(slices.Clone(hdr), 0x7f)); !errors.Is(err, ErrBadFormat) {
		t.Errorf("unknown tag: %v", err)
	}

	// NaN float
	nan := append(slices.Clone(hdr), tcFloat)
	nan = put64(nan, math.Float64bits(math.NaN()))
	if _, err := Unpickle(tb, nan); !errors.Is(err, ErrNaN) {
		t.Errorf("NaN: %v", err)
	}

	// truncated string
	short := append(slices.Clone(hdr), tcString, 10, 'a', 'b')
	if _, err := Unpickle(tb, short); !errors.Is(err, ErrTruncated) {
		t.Errorf("truncated string: %v", err)
	}

	// truncated float
	if _, err := Unpickle(tb, append(slices.Clone(hdr), tcFloat, 1, 2)); !errors.Is(err, ErrTruncated) {
		t.Errorf("truncated float: %v", err)
	}

	// declared arity larger than the remaining buffer
	if _, err := Unpickle(tb, append(slices.Clone(hdr), tcTuple, 200)); !errors.Is(err, ErrTruncated) {
		t.Errorf("oversized tuple: %v", err)
	}

	// trailing garbage after a complete value
	tail := append(slices.Clone(hdr), tcNil, 0x00)
	if _, err := Unpickle(tb, tail); !errors.Is(err, ErrBadFormat) {
		t.Errorf("trailing bytes: %v", err)
	}

	// empty input
	if _, err := Unpickle(tb, nil); !errors.Is(err, ErrTruncated) {
		t.Errorf("empty: %v", err)
	}
}

func TestCantPickle(t *testing.T) {
	tb := datatype.NewTable()
	if _, err := Pickle(value.NewDistinguisher(tb)); !errors.Is(err, ErrCantPickle) {
		t.Errorf("distinguisher: %v", err)
	}
}

func TestCompressedFrame(t *testing.T) {
	tb := datatype.NewTable()
	seq := value.EmptySequence(tb)
	for i := int32(0); i < 1000; i++ {
		seq.Add(tb, value.Int(tb, i%10))
	}
	blob, err := Pickle(seq)
	if err != nil {
		t.Fatal(err)
	}
	frame := CompressFrame(blob)
	if len(frame) >= len(blob) {
		t.Logf("frame did not shrink: %d >= %d", len(frame), len(blob))
	}
	raw, err := DecompressFrame(frame)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(raw, blob) {
		t.Fatal("frame corrupted the blob")
	}

	// corrupt the compressed payload checksum
	bad := slices.Clone(frame)
	bad[8] ^= 0xff
	if _, err := DecompressFrame(bad); err == nil {
		t.Fatal("corrupt checksum accepted")
	}

	if _, err := DecompressFrame(frame[:10]); !errors.Is(err, ErrTruncated) {
		t.Errorf("short frame: %v", err)
	}
	bad = slices.Clone(frame)
	bad[3] = 'X'
	if _, err := DecompressFrame(bad); !errors.Is(err, ErrBadFormat) {
		t.Errorf("bad frame magic: %v", err)
	}
}

func FuzzUnpickle(f *testing.F) {
	tb := datatype.NewTable()
	seed := value.Tuple(tb,
		value.Int(tb, 1),
		value.String(tb, "x"),
		value.Struct(tb, value.DBObj{DBNum: 1, OID: 2, SubID: 3}))
	blob, err := Pickle(seed)
	if err != nil {
		f.Fatal(err)
	}
	f.Add(blob)
	f.Add([]byte{'P', 'Q', 'L', 0, 0, 0, tcNil})
	f.Fuzz(func(t *testing.T, data []byte) {
		tb := datatype.NewTable()
		v, err := Unpickle(tb, data)
		if err != nil {
			return
		}
		// anything that decodes must re-encode and round trip
		blob, err := Pickle(v)
		if err != nil {
			t.Fatalf("re-encode of %s: %s", v, err)
		}
		v2, err := Unpickle(tb, blob)
		if err != nil {
			t.Fatalf("re-decode: %s", err)
		}
		if !value.Identical(v, v2) {
			t.Fatalf("unstable round trip: %s vs %s", v, v2)
		}
	})
}
