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

package tcalc

import (
	"errors"
	"strings"
	"testing"

	"github.com/pql-engine/pql/columns"
	"github.com/pql-engine/pql/value"
)

// mkrel builds a literal one-row relation with the given
// column names, plus the handles (still owned by the caller).
func mkrel(ctx *Ctx, names ...string) (Node, []*columns.Name) {
	tb := ctx.Types
	ns := make([]*columns.Name, len(names))
	subs := make([]*columns.Tree, len(names))
	rowvals := make([]*value.Value, len(names))
	for i, s := range names {
		ns[i] = ctx.Names.NewName(s)
		subs[i] = columns.Scalar(ns[i].Incref())
		rowvals[i] = value.Int(tb, int32(i))
	}
	set := value.EmptySet(tb)
	set.Add(tb, value.Tuple(tb, rowvals...))
	return ctx.NewValue(set, columns.TupleTree(nil, subs...)), ns
}

func decrefAll(ns []*columns.Name) {
	for _, n := range ns {
		n.Decref()
	}
}

func TestCloneTypesAndColumns(t *testing.T) {
	ctx := NewCtx()
	rel, ns := mkrel(ctx, "a", "b", "c")
	keep := columns.NewSet(ns[0], ns[2])
	proj := ctx.NewProject(rel, keep)
	ord := ctx.NewOrder(proj, columns.NewSet(ns[0]))

	cl := Clone(ord)

	// same types and column trees at every node
	var origs, clones []Node
	Walk(visitorFunc(func(n Node) bool { origs = append(origs, n); return true }), ord)
	Walk(visitorFunc(func(n Node) bool { clones = append(clones, n); return true }), cl)
	if len(origs) != len(clones) {
		t.Fatalf("clone has %d nodes, original %d", len(clones), len(origs))
	}
	for i := range origs {
		if origs[i].Type() != clones[i].Type() {
			t.Errorf("node %d: type %s vs %s", i, origs[i].Type(), clones[i].Type())
		}
		if !origs[i].Columns().Eq(clones[i].Columns()) {
			t.Errorf("node %d: column trees differ", i)
		}
	}

	// destroying original then clone leaves no references
	Destroy(ord)
	Destroy(cl)
	decrefAll(ns)
	if live := ctx.Names.Live() + ctx.LiveVars(); live != 0 {
		t.Fatalf("leaked %d references", live)
	}
}

func TestDestroyEitherOrder(t *testing.T) {
	for _, cloneFirst := range []bool{false, true} {
		ctx := NewCtx()
		rel, ns := mkrel(ctx, "a", "b")
		g := ctx.Names.NewName("g")
		nested := ctx.NewNest(rel, columns.NewSet(ns[1]), g)
		cl := Clone(nested)
		if cloneFirst {
			Destroy(cl)
			Destroy(nested)
		} else {
			Destroy(nested)
			Destroy(cl)
		}
		decrefAll(ns)
		if live := ctx.Names.Live() + ctx.LiveVars(); live != 0 {
			t.Fatalf("cloneFirst=%v: leaked %d references", cloneFirst, live)
		}
	}
}

func TestCountRefsAudit(t *testing.T) {
	ctx := NewCtx()
	rel, ns := mkrel(ctx, "a", "b")
	a := ns[0]

	proj := ctx.NewProject(rel, columns.NewSet(a))
	// the audit finds every reference the tree holds; the
	// only one it cannot see is our own handle
	audit := CountRefs(proj, a)
	if int32(audit) != a.Refs()-1 {
		t.Fatalf("audit found %d refs, refcount is %d", audit, a.Refs())
	}
	cl := Clone(proj)
	if got := CountRefs(cl, a); got != audit {
		t.Fatalf("clone audit %d, original %d", got, audit)
	}
	Destroy(proj)
	Destroy(cl)
	if a.Refs() != 1 {
		t.Fatalf("refcount %d after destroy, want 1", a.Refs())
	}
	decrefAll(ns)
}

func TestVarRefcounts(t *testing.T) {
	ctx := NewCtx()
	tb := ctx.Types
	v := ctx.NewVar(tb.Int(), nil)
	body := ctx.NewBop(ctx.NewReadVar(v.Incref()), OpAdd, ctx.NewValue(value.Int(tb, 1), nil))
	lam := ctx.NewLambda(v.Incref(), body)
	v.Decref() // our handle
	cl := Clone(lam)
	Destroy(lam)
	Destroy(cl)
	if live := ctx.LiveVars(); live != 0 {
		t.Fatalf("leaked %d variable references", live)
	}
}

func TestDump(t *testing.T) {
	ctx := NewCtx()
	rel, ns := mkrel(ctx, "a", "b")
	f := ctx.NewFilter(rel, ctx.NewValue(value.Bool(ctx.Types, true), nil))
	out := Dump(f, 72)
	if !strings.Contains(out, "filter") || !strings.Contains(out, "where") {
		t.Fatalf("dump output %q", out)
	}
	wide := Dump(f, 200)
	for _, line := range strings.Split(wide, "\n") {
		if len(line) > 200 {
			t.Fatalf("dump line too long: %q", line)
		}
	}
	Destroy(f)
	decrefAll(ns)
}

func TestBaseoptDropProject(t *testing.T) {
	ctx := NewCtx()
	rel, ns := mkrel(ctx, "a", "b")
	// identity projection: same columns, same order
	proj := ctx.NewProject(rel, columns.NewSet(ns[0], ns[1]))
	wantType := proj.Type()
	out := Baseopt(ctx, proj, nil)
	if _, still := out.(*Project); still {
		t.Fatal("identity projection not dropped")
	}
	if out.Type() != wantType {
		t.Fatalf("type changed: %s", out.Type())
	}
	// reordering projection survives
	proj2 := ctx.NewProject(Clone(out), columns.NewSet(ns[1], ns[0]))
	out2 := Baseopt(ctx, proj2, nil)
	if _, ok := out2.(*Project); !ok {
		t.Fatal("reordering projection should survive")
	}
	Destroy(out)
	Destroy(out2)
	decrefAll(ns)
	if live := ctx.Names.Live() + ctx.LiveVars(); live != 0 {
		t.Fatalf("leaked %d references", live)
	}
}

func TestBaseoptLet(t *testing.T) {
	ctx := NewCtx()
	tb := ctx.Types

	// unused binding vanishes
	v := ctx.NewVar(tb.Int(), nil)
	let := ctx.NewLet(v, ctx.NewValue(value.Int(tb, 5), nil),
		ctx.NewValue(value.Int(tb, 9), nil))
	out := Baseopt(ctx, let, nil)
	if lit, ok := out.(*Value); !ok || lit.Val.IntValue() != 9 {
		t.Fatalf("unused let not eliminated: %T", out)
	}
	Destroy(out)

	// literal used once is substituted
	v2 := ctx.NewVar(tb.Int(), nil)
	let2 := ctx.NewLet(v2, ctx.NewValue(value.Int(tb, 5), nil),
		ctx.NewReadVar(v2.Incref()))
	out2 := Baseopt(ctx, let2, nil)
	if lit, ok := out2.(*Value); !ok || lit.Val.IntValue() != 5 {
		t.Fatalf("single-use literal let not substituted: %T", out2)
	}
	Destroy(out2)

	if live := ctx.LiveVars(); live != 0 {
		t.Fatalf("leaked %d variable references", live)
	}
}

func TestBaseoptNestUnnestFusion(t *testing.T) {
	ctx := NewCtx()
	rel, ns := mkrel(ctx, "a", "b")
	g := ctx.Names.NewName("g")
	nested := ctx.NewNest(rel, columns.NewSet(ns[1]), g.Incref())
	flat := ctx.NewUnnest(nested, g)
	wantType := flat.Type()
	wantCols := flat.Columns().Clone()

	out := Baseopt(ctx, flat, nil)
	if _, still := out.(*Unnest); still {
		t.Fatal("nest/unnest pair not fused")
	}
	if out.Type() != wantType {
		t.Fatalf("fusion changed type to %s", out.Type())
	}
	if out.Columns().Arity() != wantCols.Arity() {
		t.Fatalf("fusion changed arity")
	}
	wantCols.Destroy()
	Destroy(out)
	decrefAll(ns)
	if live := ctx.Names.Live() + ctx.LiveVars(); live != 0 {
		t.Fatalf("leaked %d references", live)
	}
}

// addFolder folds integer additions only; enough to see the
// fold rule fire without dragging in the executor.
type addFolder struct{ ctx *Ctx }

func (f *addFolder) Fold(n Node) (*value.Value, error) {
	switch n := n.(type) {
	case *Value:
		return n.Val.Clone(), nil
	case *Bop:
		if n.Op == OpAdd {
			l, err := f.Fold(n.Left)
			if err != nil {
				return nil, err
			}
			r, err := f.Fold(n.Right)
			if err != nil {
				return nil, err
			}
			return value.Int(f.ctx.Types, l.IntValue()+r.IntValue()), nil
		}
	}
	return nil, errNoFold
}

var errNoFold = errors.New("not foldable")

func TestBaseoptConstantFold(t *testing.T) {
	ctx := NewCtx()
	tb := ctx.Types
	e := ctx.NewBop(
		ctx.NewValue(value.Int(tb, 2), nil),
		OpAdd,
		ctx.NewBop(ctx.NewValue(value.Int(tb, 3), nil), OpAdd, ctx.NewValue(value.Int(tb, 4), nil)))
	out := Baseopt(ctx, e, &addFolder{ctx: ctx})
	lit, ok := out.(*Value)
	if !ok {
		t.Fatalf("not folded: %T", out)
	}
	if lit.Val.IntValue() != 9 {
		t.Fatalf("folded to %s", lit.Val)
	}
	Destroy(out)
}

func TestIndexifyStep(t *testing.T) {
	ctx := NewCtx()
	tb := ctx.Types
	rel, ns := mkrel(ctx, "o")
	// NewStep does not check the object column's type, so
	// the int column serves as the step's source
	l := ctx.Names.NewName("l")
	ed := ctx.Names.NewName("e")
	r := ctx.Names.NewName("r")
	step := ctx.NewStep(rel, ns[0].Incref(), nil, false,
		l.Incref(), ed.Incref(), r.Incref(), nil)

	// lambda row: row.e == "input"
	member, _ := relMember(step.Type())
	v := ctx.NewVar(member, step.Columns().Clone())
	pred := ctx.NewLambda(v.Incref(),
		ctx.NewBop(
			ctx.NewProject(ctx.NewReadVar(v.Incref()), columns.NewSet(ed)),
			OpEq,
			ctx.NewValue(value.String(tb, "input"), nil)))
	v.Decref()
	step.Pred = pred

	out := Indexify(ctx, step)
	st, ok := out.(*Step)
	if !ok {
		t.Fatalf("indexify returned %T", out)
	}
	if st.Edge == nil || st.Edge.StringValue() != "input" {
		t.Fatal("edge filter not lifted into the step")
	}
	if st.Pred != nil {
		t.Fatal("predicate should be consumed")
	}
	Destroy(out)
	decrefAll(ns)
	l.Decref()
	ed.Decref()
	r.Decref()
	if live := ctx.Names.Live() + ctx.LiveVars(); live != 0 {
		t.Fatalf("leaked %d references", live)
	}
}

func TestComplementSet(t *testing.T) {
	ctx := NewCtx()
	rel, ns := mkrel(ctx, "a", "b", "c")
	drop := columns.NewSet(ns[1])
	drop.ToComplement = true
	// "everything but b" resolves against the input's columns
	proj := ctx.NewProject(rel, drop)
	if proj.Cols.Num() != 2 || proj.Cols.Get(0) != ns[0] || proj.Cols.Get(1) != ns[2] {
		t.Fatalf("complement resolved to %s", proj.Cols)
	}
	if proj.Columns().Arity() != 2 {
		t.Fatalf("projected tree %s", proj.Columns())
	}
	Destroy(proj)
	decrefAll(ns)
	if live := ctx.Names.Live() + ctx.LiveVars(); live != 0 {
		t.Fatalf("leaked %d references", live)
	}
}

func TestBaseoptRenameCommute(t *testing.T) {
	ctx := NewCtx()
	tb := ctx.Types
	rel, ns := mkrel(ctx, "a", "b")
	nn := ctx.Names.NewName("z")
	ren := ctx.NewRename(rel, ns[0].Incref(), nn.Incref())

	// predicate mentions only b, so the rename floats above
	member, _ := relMember(ren.Type())
	v := ctx.NewVar(member, ren.Columns().Clone())
	pred := ctx.NewLambda(v.Incref(),
		ctx.NewBop(
			ctx.NewProject(ctx.NewReadVar(v.Incref()), columns.NewSet(ns[1])),
			OpEq,
			ctx.NewValue(value.Int(tb, 1), nil)))
	v.Decref()
	f := ctx.NewFilter(ren, pred)
	wantType := f.Type()

	out := Baseopt(ctx, f, nil)
	rn, ok := out.(*Rename)
	if !ok {
		t.Fatalf("rename did not float: %T", out)
	}
	if _, ok := rn.Sub.(*Filter); !ok {
		t.Fatalf("filter not below rename: %T", rn.Sub)
	}
	if out.Type() != wantType {
		t.Fatalf("commute changed type to %s", out.Type())
	}
	Destroy(out)
	nn.Decref()
	decrefAll(ns)
	if live := ctx.Names.Live() + ctx.LiveVars(); live != 0 {
		t.Fatalf("leaked %d references", live)
	}
}

func TestIndexifyScanToStep(t *testing.T) {
	ctx := NewCtx()
	tb := ctx.Types
	l := ctx.Names.NewName("l")
	ed := ctx.Names.NewName("e")
	r := ctx.Names.NewName("r")
	scan := ctx.NewScan(l.Incref(), ed.Incref(), r.Incref(), nil)

	member, _ := relMember(scan.Type())
	v := ctx.NewVar(member, scan.Columns().Clone())
	pred := ctx.NewLambda(v.Incref(),
		ctx.NewBop(
			ctx.NewProject(ctx.NewReadVar(v.Incref()), columns.NewSet(ed)),
			OpEq,
			ctx.NewValue(value.String(tb, "input"), nil)))
	v.Decref()
	f := ctx.NewFilter(scan, pred)
	wantType := f.Type()
	wantCols := f.Columns().Clone()

	out := Indexify(ctx, f)
	proj, ok := out.(*Project)
	if !ok {
		t.Fatalf("scan not rewritten: %T", out)
	}
	st, ok := proj.Sub.(*Step)
	if !ok {
		t.Fatalf("no step under projection: %T", proj.Sub)
	}
	if st.Edge == nil || st.Edge.StringValue() != "input" {
		t.Fatal("edge constant not lifted")
	}
	if out.Type() != wantType {
		t.Fatalf("rewrite changed type to %s", out.Type())
	}
	if !out.Columns().Eq(wantCols) {
		t.Fatalf("rewrite changed columns: %s vs %s", out.Columns(), wantCols)
	}
	wantCols.Destroy()
	Destroy(out)
	l.Decref()
	ed.Decref()
	r.Decref()
	if live := ctx.Names.Live() + ctx.LiveVars(); live != 0 {
		t.Fatalf("leaked %d references", live)
	}
}

func TestCheck(t *testing.T) {
	ctx := NewCtx()
	rel, ns := mkrel(ctx, "a", "b")
	f := ctx.NewFilter(rel, ctx.NewValue(value.Bool(ctx.Types, true), nil))
	if err := Check(ctx, f); err != nil {
		t.Fatalf("valid tree rejected: %s", err)
	}
	// corrupt the type and watch the checker object
	f.typ = ctx.Types.Int()
	if err := Check(ctx, f); err == nil {
		t.Fatal("corrupted tree accepted")
	}
	f.typ = f.Sub.Type()
	Destroy(f)
	decrefAll(ns)
}
