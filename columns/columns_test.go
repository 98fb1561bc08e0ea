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

package columns

import (
	"testing"
)

func TestNameIdentity(t *testing.T) {
	p := NewPool()
	a := p.NewName("x")
	b := p.NewName("x")
	defer a.Decref()
	defer b.Decref()
	if a == b {
		t.Fatal("two names with the same string must be distinct handles")
	}
	if a.String() != "x" || b.String() != "x" {
		t.Fatal("display strings wrong")
	}
	anon := p.Fresh()
	defer anon.Decref()
	if anon.String() == "" || anon.String()[0] != '.' {
		t.Fatalf("anonymous name renders as %q, want .Cn form", anon.String())
	}
}

func TestPoolAccounting(t *testing.T) {
	p := NewPool()
	if p.Live() != 0 {
		t.Fatal("new pool should have no live refs")
	}
	a := p.NewName("a")
	b := p.NewName("b")
	tree := TupleTree(nil, Scalar(a.Incref()), Scalar(b.Incref()))
	clone := tree.Clone()
	tree.Destroy()
	clone.Destroy()
	a.Decref()
	b.Decref()
	if p.Live() != 0 {
		t.Fatalf("leaked %d references", p.Live())
	}
}

func TestDestroyEitherOrder(t *testing.T) {
	p := NewPool()
	a := p.NewName("a")
	b := p.NewName("b")
	tree := TupleTree(nil, Scalar(a), Scalar(b))
	clone := tree.Clone()
	// destroy the clone first, then the original
	clone.Destroy()
	tree.Destroy()
	if p.Live() != 0 {
		t.Fatalf("leaked %d references", p.Live())
	}
}

func rowtree(p *Pool, names ...string) (*Tree, []*Name) {
	ns := make([]*Name, len(names))
	subs := make([]*Tree, len(names))
	for i, s := range names {
		ns[i] = p.NewName(s)
		subs[i] = Scalar(ns[i].Incref())
	}
	return TupleTree(nil, subs...), ns
}

func TestProjectStrip(t *testing.T) {
	p := NewPool()
	tree, ns := rowtree(p, "a", "b", "c")
	a, b, c := ns[0], ns[1], ns[2]

	keep := NewSet(c, a)
	proj := tree.Project(keep)
	if proj.Arity() != 2 || proj.Sub(0).Whole() != c || proj.Sub(1).Whole() != a {
		t.Fatalf("project order wrong: %s", proj)
	}

	// single-column projection promotes to scalar
	keepb := NewSet(b)
	scalar := tree.Project(keepb)
	if scalar.IsTuple() || scalar.Whole() != b {
		t.Fatalf("project to one column should be scalar: %s", scalar)
	}

	drop := NewSet(a, c)
	stripped := tree.Strip(drop)
	if stripped.IsTuple() || stripped.Whole() != b {
		t.Fatalf("strip to one column should be scalar: %s", stripped)
	}

	proj.Destroy()
	scalar.Destroy()
	stripped.Destroy()
	keep.Destroy()
	keepb.Destroy()
	drop.Destroy()
	tree.Destroy()
	for _, n := range ns {
		n.Decref()
	}
	if p.Live() != 0 {
		t.Fatalf("leaked %d references", p.Live())
	}
}

func TestStripJoinProjectRoundTrip(t *testing.T) {
	p := NewPool()
	tree, ns := rowtree(p, "a", "b", "c")
	b := ns[1]

	cols := NewSet(b)
	left := tree.Strip(cols)
	right := tree.Project(cols)
	joined := Join(left, right)
	left.Destroy()
	right.Destroy()

	// same columns, possibly reordered
	if joined.Arity() != tree.Arity() {
		t.Fatalf("arity %d != %d", joined.Arity(), tree.Arity())
	}
	for _, n := range ns {
		if joined.Index(n) < 0 {
			t.Errorf("column %s missing after strip+join+project", n)
		}
	}
	joined.Destroy()
	cols.Destroy()
	tree.Destroy()
	for _, n := range ns {
		n.Decref()
	}
	if p.Live() != 0 {
		t.Fatalf("leaked %d references", p.Live())
	}
}

func TestRenameVisibleThroughAliases(t *testing.T) {
	p := NewPool()
	tree, ns := rowtree(p, "a", "b")
	a := ns[0]

	sub := tree.Sub(0) // aliased subtree
	nn := p.NewName("z")
	tree.Rename(a, nn)
	if sub.Whole() != nn {
		t.Fatal("rename not visible through alias")
	}
	tree.Destroy()
	nn.Decref()
	for _, n := range ns {
		n.Decref()
	}
	if p.Live() != 0 {
		t.Fatalf("leaked %d references", p.Live())
	}
}

func TestNestUnnest(t *testing.T) {
	p := NewPool()
	tree, ns := rowtree(p, "a", "b", "c")
	b, c := ns[1], ns[2]

	g := p.NewName("g")
	cols := NewSet(b, c)
	nested := tree.Nest(cols, g.Incref())
	if nested.Arity() != 2 {
		t.Fatalf("nest arity = %d", nested.Arity())
	}
	if nested.Index(g) != 1 {
		t.Fatalf("nested column position: %s", nested)
	}
	gsub := nested.Sub(1)
	if !gsub.IsTuple() || gsub.Arity() != 2 {
		t.Fatalf("nested subtree: %s", gsub)
	}

	flat := nested.Unnest(g)
	if flat.Arity() != 3 {
		t.Fatalf("unnest arity = %d: %s", flat.Arity(), flat)
	}
	for _, n := range ns {
		if flat.Index(n) < 0 {
			t.Errorf("column %s missing after nest+unnest", n)
		}
	}

	flat.Destroy()
	nested.Destroy()
	cols.Destroy()
	tree.Destroy()
	g.Decref()
	for _, n := range ns {
		n.Decref()
	}
	if p.Live() != 0 {
		t.Fatalf("leaked %d references", p.Live())
	}
}

func TestAdjoinAndContains(t *testing.T) {
	p := NewPool()
	a := p.NewName("a")
	d := p.NewName("d")

	// scalar promotes to a pair
	s := Scalar(a.Incref())
	joined := Adjoin(s, Scalar(d.Incref()))
	if joined.Arity() != 2 {
		t.Fatalf("adjoin on scalar: arity %d", joined.Arity())
	}
	if !joined.ContainsTopLevel(a) || !joined.ContainsTopLevel(d) {
		t.Fatal("adjoin lost a column")
	}
	joined.Destroy()

	// whole-name matching on an unnamed monople's tree
	sc := Scalar(a.Incref())
	if !sc.ContainsTopLevel(a) || sc.Index(a) != 0 {
		t.Fatal("scalar whole-name match failed")
	}
	sc.Destroy()

	a.Decref()
	d.Decref()
	if p.Live() != 0 {
		t.Fatalf("leaked %d references", p.Live())
	}
}

func TestTreeEq(t *testing.T) {
	p := NewPool()
	tree, ns := rowtree(p, "a", "b")
	clone := tree.Clone()
	if !tree.Eq(clone) {
		t.Fatal("clone should be Eq")
	}
	other, ns2 := rowtree(p, "a", "b")
	if tree.Eq(other) {
		t.Fatal("trees over distinct handles must not be Eq")
	}
	tree.Destroy()
	clone.Destroy()
	other.Destroy()
	for _, n := range append(ns, ns2...) {
		n.Decref()
	}
	if p.Live() != 0 {
		t.Fatalf("leaked %d references", p.Live())
	}
}
