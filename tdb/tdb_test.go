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

package tdb

import (
	"errors"
	"testing"

	"github.com/pql-engine/pql/backend"
	"github.com/pql-engine/pql/datatype"
	"github.com/pql-engine/pql/value"
)

func TestTempGraph(t *testing.T) {
	tb := datatype.NewTable()
	db := New(tb, 7)

	a, err := db.NewObject()
	if err != nil {
		t.Fatal(err)
	}
	b, err := db.NewObject()
	if err != nil {
		t.Fatal(err)
	}
	if a.StructValue().DBNum != 7 || a.StructValue().OID != 0 {
		t.Fatalf("first object is %s", a)
	}

	edge := value.String(tb, "next")
	if err := db.Assign(a, edge, b); err != nil {
		t.Fatal(err)
	}
	if err := db.Assign(a, edge, value.Int(tb, 5)); err != nil {
		t.Fatal(err)
	}

	// forward follow matches by eq
	set, err := db.Follow(a, edge, false)
	if err != nil {
		t.Fatal(err)
	}
	if set.Len() != 2 {
		t.Fatalf("follow found %d values", set.Len())
	}

	// a nil edge matches every edge
	all, err := db.FollowAll(a, false)
	if err != nil {
		t.Fatal(err)
	}
	if all.Len() != 2 {
		t.Fatalf("followall found %d pairs", all.Len())
	}
	pair := all.Member(0)
	if pair.TupleArity() != 2 || !value.Eq(pair.TupleGet(0), edge) {
		t.Fatalf("followall pair %s", pair)
	}

	// reverse follow finds a from b
	back, err := db.Follow(b, edge, true)
	if err != nil {
		t.Fatal(err)
	}
	if back.Len() != 1 || !value.Eq(back.Member(0), a) {
		t.Fatalf("reverse follow %s", back)
	}

	// empty result sets carry the bottom member type
	none, err := db.Follow(b, value.String(tb, "missing"), false)
	if err != nil {
		t.Fatal(err)
	}
	if none.Len() != 0 || none.Type() != tb.Set(tb.Bottom()) {
		t.Fatalf("empty follow: %s of %s", none, none.Type())
	}

	// values are cloned on insertion
	edge2 := value.String(tb, "mut")
	target := value.EmptySet(tb)
	db.Assign(a, edge2, target)
	target.Add(tb, value.Int(tb, 1))
	got, _ := db.Follow(a, edge2, false)
	if got.Member(0).Len() != 0 {
		t.Fatal("assign did not clone the value")
	}

	// following on a non-object fails
	if _, err := db.Follow(value.Int(tb, 3), edge, false); !errors.Is(err, backend.ErrNotObject) {
		t.Fatalf("follow on int: %v", err)
	}
}

func TestGlobals(t *testing.T) {
	tb := datatype.NewTable()
	db := Seed(tb)

	prov, err := db.ReadGlobal(backend.GlobalProvenance)
	if err != nil {
		t.Fatal(err)
	}
	if prov == nil || !prov.IsStruct() {
		t.Fatalf("Provenance = %v", prov)
	}

	vers, err := db.ReadGlobal(backend.GlobalVersions)
	if err != nil {
		t.Fatal(err)
	}
	if vers.Len() != db.NumObjects() {
		t.Fatalf("VERSIONS has %d members, store has %d", vers.Len(), db.NumObjects())
	}

	unbound, err := db.ReadGlobal("NoSuchRoot")
	if err != nil {
		t.Fatal(err)
	}
	if unbound != nil {
		t.Fatalf("unbound global = %s", unbound)
	}
}

func TestReadOnly(t *testing.T) {
	tb := datatype.NewTable()
	db := Seed(tb)
	ro := ReadOnly{Backend: db}

	if _, err := ro.NewObject(); !errors.Is(err, backend.ErrReadOnly) {
		t.Fatalf("NewObject: %v", err)
	}
	obj, _ := db.ReadGlobal(backend.GlobalProvenance)
	if err := ro.Assign(obj, value.String(tb, "x"), value.Int(tb, 1)); !errors.Is(err, backend.ErrReadOnly) {
		t.Fatalf("Assign: %v", err)
	}
	// reads pass through
	set, err := ro.Follow(obj, value.String(tb, "obj"), false)
	if err != nil {
		t.Fatal(err)
	}
	if set.Len() != 3 {
		t.Fatalf("follow through wrapper: %d", set.Len())
	}
}

func TestLoadYAML(t *testing.T) {
	tb := datatype.NewTable()
	db, err := LoadYAML(tb, []byte(`
dbnum: 3
globals:
  Provenance: {object: 0}
objects:
  - edges:
      - {name: name, string: foo}
      - {name: input, object: 1}
  - edges:
      - {name: name, string: bar}
      - {name: pid, int: 42}
      - {name: score, double: 1.5}
      - {name: live, bool: true}
`))
	if err != nil {
		t.Fatal(err)
	}
	if db.NumObjects() != 2 {
		t.Fatalf("loaded %d objects", db.NumObjects())
	}
	prov, err := db.ReadGlobal(backend.GlobalProvenance)
	if err != nil {
		t.Fatal(err)
	}
	names, err := db.Follow(prov, value.String(tb, "name"), false)
	if err != nil {
		t.Fatal(err)
	}
	if names.Len() != 1 || names.Member(0).StringValue() != "foo" {
		t.Fatalf("names = %s", names)
	}
	inputs, err := db.Follow(prov, value.String(tb, "input"), false)
	if err != nil {
		t.Fatal(err)
	}
	if inputs.Len() != 1 {
		t.Fatalf("inputs = %s", inputs)
	}
	pids, err := db.Follow(inputs.Member(0), value.String(tb, "pid"), false)
	if err != nil {
		t.Fatal(err)
	}
	if pids.Len() != 1 || pids.Member(0).IntValue() != 42 {
		t.Fatalf("pids = %s", pids)
	}

	// malformed yaml errors out
	if _, err := LoadYAML(tb, []byte("objects: {not: a list}")); err == nil {
		t.Fatal("malformed fixture accepted")
	}
}
