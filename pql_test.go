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

package pql

import (
	"errors"
	"strings"
	"testing"

	"github.com/pql-engine/pql/backend"
	"github.com/pql-engine/pql/columns"
	"github.com/pql-engine/pql/eval"
	"github.com/pql-engine/pql/tcalc"
	"github.com/pql-engine/pql/tdb"
	"github.com/pql-engine/pql/value"
)

// scenarioGraph builds the two-file graph: a seed object
// with one "obj" edge to a file named foo whose input is a
// file named bar.
func scenarioGraph(c *Context) *tdb.DB {
	tb := c.Types()
	db := tdb.New(tb, 1)
	seed, _ := db.NewObject()
	foo, _ := db.NewObject()
	bar, _ := db.NewObject()
	str := func(s string) *value.Value { return value.String(tb, s) }
	db.Assign(seed, str("obj"), foo)
	db.Assign(foo, str("name"), str("foo"))
	db.Assign(foo, str("input"), bar)
	db.Assign(bar, str("name"), str("bar"))
	db.SetGlobal(backend.GlobalProvenance, seed)
	return db
}

func TestTwoHopAncestry(t *testing.T) {
	c := New(nil)
	c.Bind(scenarioGraph(c))
	tb := c.Types()
	g := c.TC()

	seed := g.Names.NewName("seed")
	src := g.NewReadGlobal(backend.GlobalProvenance, tb.Struct(), columns.Scalar(seed.Incref()))

	l1 := g.Names.NewName("l1")
	e1 := g.Names.NewName("e1")
	r1 := g.Names.NewName("r1")
	hop1 := g.NewStep(src, seed, value.String(tb, "obj"), false, l1, e1, r1, nil)

	l2 := g.Names.NewName("l2")
	e2 := g.Names.NewName("e2")
	r2 := g.Names.NewName("r2")
	hop2 := g.NewStep(hop1, r1.Incref(), value.String(tb, "input"), false, l2, e2, r2, nil)

	l3 := g.Names.NewName("l3")
	e3 := g.Names.NewName("e3")
	name := g.Names.NewName("name")
	hop3 := g.NewStep(hop2, r2.Incref(), value.String(tb, "name"), false, l3, e3, name, nil)

	q, err := c.Query(hop3)
	if err != nil {
		t.Fatal(err)
	}
	out, err := q.Run()
	if err != nil {
		t.Fatal(err)
	}
	if out.Len() != 1 {
		t.Fatalf("rows: %d", out.Len())
	}
	row := out.Member(0)
	rightIx := q.Plan().Columns().Index(r2)
	if row.TupleGet(rightIx).StructValue().OID != 2 {
		t.Fatalf("two-hop target is %s", row.TupleGet(rightIx))
	}
	nameIx := q.Plan().Columns().Index(name)
	if got := row.TupleGet(nameIx).String(); got != "bar" {
		t.Fatalf("name column is %q", got)
	}

	q.Destroy()
	if leaked := c.Close(); leaked != 0 {
		t.Fatalf("leaked %d references", leaked)
	}
}

func TestOptimizePreservesResults(t *testing.T) {
	c := New(nil)
	c.Bind(scenarioGraph(c))
	tb := c.Types()
	g := c.TC()

	// step over every edge, filtered to edge == "obj":
	// indexify should turn the followall into a follow
	seed := g.Names.NewName("seed")
	src := g.NewReadGlobal(backend.GlobalProvenance, tb.Struct(), columns.Scalar(seed.Incref()))
	l1 := g.Names.NewName("l1")
	e1 := g.Names.NewName("e1")
	r1 := g.Names.NewName("r1")
	step := g.NewStep(src, seed, nil, false, l1, e1, r1, nil)

	member := step.Type().Member()
	v := g.NewVar(member, step.Columns().Clone())
	pred := g.NewLambda(v.Incref(),
		g.NewBop(
			g.NewProject(g.NewReadVar(v.Incref()), columns.NewSet(e1)),
			tcalc.OpEq,
			g.NewValue(value.String(tb, "obj"), nil)))
	v.Decref()
	step.Pred = pred

	// and a constant subexpression for baseopt to fold
	plus := g.NewBop(
		g.NewValue(value.Int(tb, 1), nil),
		tcalc.OpAdd,
		g.NewValue(value.Int(tb, 2), nil))
	let := g.NewVar(tb.Int(), nil)
	root := g.NewLet(let, plus, step)

	q, err := c.Query(root)
	if err != nil {
		t.Fatal(err)
	}
	before, err := q.Run()
	if err != nil {
		t.Fatal(err)
	}
	wantType := q.Plan().Type()

	if err := q.Optimize(); err != nil {
		t.Fatal(err)
	}
	if q.Plan().Type() != wantType {
		t.Fatalf("optimize changed root type to %s", q.Plan().Type())
	}
	// the unused let is gone and the edge is in the step
	st, ok := q.Plan().(*tcalc.Step)
	if !ok {
		t.Fatalf("optimized plan is %T", q.Plan())
	}
	if st.Edge == nil || st.Edge.StringValue() != "obj" {
		t.Fatal("edge filter not indexified")
	}

	after, err := q.Run()
	if err != nil {
		t.Fatal(err)
	}
	if before.Len() != after.Len() {
		t.Fatalf("optimize changed result: %d vs %d rows", before.Len(), after.Len())
	}
	for i := 0; i < before.Len(); i++ {
		found := false
		for j := 0; j < after.Len(); j++ {
			if value.Eq(before.Member(i), after.Member(j)) {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("row %s lost by optimization", before.Member(i))
		}
	}

	q.Destroy()
	if leaked := c.Close(); leaked != 0 {
		t.Fatalf("leaked %d references", leaked)
	}
}

func TestCompileErrors(t *testing.T) {
	c := New(nil)
	c.Bind(tdb.New(c.Types(), 1))
	g := c.TC()

	c.CompileErrorf("parse error near %q", "select")
	root := g.NewValue(value.Int(c.Types(), 1), nil)
	if _, err := c.Query(root); !errors.Is(err, ErrCompile) {
		t.Fatalf("query with pending errors: %v", err)
	}

	errs := c.CompileErrors()
	if len(errs) != 1 || !strings.Contains(errs[0], "select") {
		t.Fatalf("errors: %v", errs)
	}

	// after draining the list, queries work again
	root2 := g.NewValue(value.Int(c.Types(), 2), nil)
	q, err := c.Query(root2)
	if err != nil {
		t.Fatal(err)
	}
	out, err := q.Run()
	if err != nil {
		t.Fatal(err)
	}
	if out.IntValue() != 2 {
		t.Fatalf("result %s", out)
	}
	q.Destroy()
	if leaked := c.Close(); leaked != 0 {
		t.Fatalf("leaked %d references", leaked)
	}
}

func TestTypeErrorLeavesContextUsable(t *testing.T) {
	c := New(nil)
	c.Bind(tdb.New(c.Types(), 1))
	tb := c.Types()
	g := c.TC()

	bad := g.NewBop(
		g.NewValue(value.String(tb, "x"), nil),
		tcalc.OpAdd,
		g.NewValue(value.Int(tb, 1), nil))
	q, err := c.Query(bad)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := q.Run(); !errors.Is(err, eval.ErrType) {
		t.Fatalf("expected type error, got %v", err)
	}
	q.Destroy()

	good := g.NewValue(value.Int(tb, 7), nil)
	q2, err := c.Query(good)
	if err != nil {
		t.Fatal(err)
	}
	out, err := q2.Run()
	if err != nil {
		t.Fatal(err)
	}
	if out.IntValue() != 7 {
		t.Fatalf("result %s", out)
	}
	q2.Destroy()
	if leaked := c.Close(); leaked != 0 {
		t.Fatalf("leaked %d references", leaked)
	}
}

func TestAssertHandler(t *testing.T) {
	c := New(nil)
	c.Bind(tdb.New(c.Types(), 1))
	tb := c.Types()
	g := c.TC()

	var seen string
	c.OnAssert = func(msg string) { seen = msg }

	// each side is well-typed on its own; merging them
	// trips the value layer's member-type contract check
	// during execution
	ints := value.EmptySet(tb)
	ints.Add(tb, value.Int(tb, 1))
	dists := value.EmptySet(tb)
	dists.Add(tb, value.NewDistinguisher(tb))
	bad := g.NewBop(g.NewValue(ints, nil), tcalc.OpUnion, g.NewValue(dists, nil))

	q, err := c.Query(bad)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := q.Run(); err == nil {
		t.Fatal("expected assertion failure")
	}
	if seen == "" {
		t.Fatal("assert handler never ran")
	}

	// the context stays usable afterwards
	q.Destroy()
	q2, err := c.Query(g.NewValue(value.Int(tb, 3), nil))
	if err != nil {
		t.Fatal(err)
	}
	if out, err := q2.Run(); err != nil || out.IntValue() != 3 {
		t.Fatalf("follow-up query: %v %v", out, err)
	}
	q2.Destroy()
	if leaked := c.Close(); leaked != 0 {
		t.Fatalf("leaked %d references", leaked)
	}
}
