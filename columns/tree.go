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
	"strings"

	"github.com/pql-engine/pql/internal/assert"
)

// Tree is the column-name tree attached to a value or a
// tuple-calculus expression. A scalar tree names a single
// column; a tuple tree has an optional whole-column name and
// one subtree per tuple slot. The arity of the tree matches
// the tuple arity of the value it describes.
type Tree struct {
	whole *Name
	tuple bool
	subs  []*Tree
}

// Scalar returns a scalar tree, consuming the caller's
// reference to name. name may be nil for an unnamed column.
func Scalar(name *Name) *Tree {
	return &Tree{whole: name}
}

// TupleTree returns a tuple tree with the given whole-column
// name (may be nil) and subtrees, consuming the references.
func TupleTree(whole *Name, subs ...*Tree) *Tree {
	return &Tree{whole: whole, tuple: true, subs: subs}
}

// IsTuple reports whether t is a tuple tree.
func (t *Tree) IsTuple() bool { return t.tuple }

// Whole returns the whole-column name as a borrowed handle,
// or nil.
func (t *Tree) Whole() *Name { return t.whole }

// SetWhole replaces the whole-column name, consuming the
// caller's reference and releasing the old one.
func (t *Tree) SetWhole(n *Name) {
	decref(t.whole)
	t.whole = n
}

// Arity returns the tuple arity the tree describes:
// the subtree count for a tuple tree, 1 for a scalar.
func (t *Tree) Arity() int {
	if t.tuple {
		return len(t.subs)
	}
	return 1
}

// Sub returns the ith subtree of a tuple tree, borrowed.
// Indexing a scalar at 0 returns the scalar itself.
func (t *Tree) Sub(i int) *Tree {
	if !t.tuple {
		if i != 0 {
			assert.Failf("columns: Sub(%d) of scalar tree", i)
		}
		return t
	}
	return t.subs[i]
}

// Index returns the slot index of the column named n: the
// position of the immediate subtree whose whole name is n,
// or 0 for a scalar (or unit-arity view) whose whole name
// is n. Returns -1 when the column is absent.
func (t *Tree) Index(n *Name) int {
	if t.tuple {
		for i, sub := range t.subs {
			if sub.whole == n {
				return i
			}
		}
		return -1
	}
	if t.whole == n {
		return 0
	}
	return -1
}

// ContainsTopLevel reports whether n is the whole-column name
// or an immediate subtree name of t.
func (t *Tree) ContainsTopLevel(n *Name) bool {
	if t.whole == n {
		return true
	}
	return t.Index(n) >= 0
}

// Clone returns an independent copy holding fresh references.
func (t *Tree) Clone() *Tree {
	nt := &Tree{whole: incref(t.whole), tuple: t.tuple}
	if t.subs != nil {
		nt.subs = make([]*Tree, len(t.subs))
		for i, sub := range t.subs {
			nt.subs[i] = sub.Clone()
		}
	}
	return nt
}

// Destroy releases every reference the tree holds.
func (t *Tree) Destroy() {
	decref(t.whole)
	t.whole = nil
	for _, sub := range t.subs {
		sub.Destroy()
	}
	t.subs = nil
}

// Eq compares two trees structurally, including whole names.
func (t *Tree) Eq(o *Tree) bool {
	if t.whole != o.whole || t.tuple != o.tuple || len(t.subs) != len(o.subs) {
		return false
	}
	for i := range t.subs {
		if !t.subs[i].Eq(o.subs[i]) {
			return false
		}
	}
	return true
}

// pick returns the borrowed subtree for column n, treating a
// scalar tree as its own single column.
func (t *Tree) pick(n *Name) *Tree {
	if !t.tuple {
		if t.whole == n {
			return t
		}
		return nil
	}
	if i := t.Index(n); i >= 0 {
		return t.subs[i]
	}
	return nil
}

// Project returns a fresh tree keeping only the columns in
// keep, in keep's order. When exactly one column remains and
// the whole-column name is null, the remaining subtree is
// promoted to the root and the result is a scalar.
func (t *Tree) Project(keep *Set) *Tree {
	picked := make([]*Tree, 0, keep.Num())
	for i := 0; i < keep.Num(); i++ {
		sub := t.pick(keep.Get(i))
		if sub == nil {
			assert.Failf("columns: project of absent column %s", keep.Get(i))
		}
		picked = append(picked, sub.Clone())
	}
	if len(picked) == 1 && (t.whole == nil || !t.tuple) {
		return picked[0]
	}
	return &Tree{whole: incref(t.whole), tuple: true, subs: picked}
}

// Strip is the dual of Project: it returns a fresh tree
// keeping the columns not in drop, with the same
// monople-promotion rule.
func (t *Tree) Strip(drop *Set) *Tree {
	var picked []*Tree
	if t.tuple {
		for _, sub := range t.subs {
			if sub.whole != nil && drop.Contains(sub.whole) {
				continue
			}
			picked = append(picked, sub.Clone())
		}
	} else if t.whole == nil || !drop.Contains(t.whole) {
		picked = append(picked, t.Clone())
	}
	if len(picked) == 1 && (t.whole == nil || !t.tuple) {
		return picked[0]
	}
	return &Tree{whole: incref(t.whole), tuple: true, subs: picked}
}

// Rename substitutes new for old everywhere in the tree, in
// place, so the change is visible through all aliases of the
// shared subtrees. Reference counts move from old to new.
func (t *Tree) Rename(old, new *Name) {
	if t.whole == old {
		old.Decref()
		t.whole = new.Incref()
	}
	for _, sub := range t.subs {
		sub.Rename(old, new)
	}
}

// subtrees returns the top-level column subtrees of t:
// the immediate subtrees of a tuple, or the tree itself
// viewed as a single column.
func (t *Tree) subtrees() []*Tree {
	if t.tuple {
		return t.subs
	}
	return []*Tree{t}
}

// Join concatenates the columns of l and r into a fresh tree
// whose whole-column name is null.
func Join(l, r *Tree) *Tree {
	var subs []*Tree
	for _, sub := range l.subtrees() {
		subs = append(subs, sub.Clone())
	}
	for _, sub := range r.subtrees() {
		subs = append(subs, sub.Clone())
	}
	return &Tree{tuple: true, subs: subs}
}

// Nest groups the columns in cols under a single new column
// named newname: join(strip(t, cols), project(t, cols) with
// the whole name newname). Consumes the caller's reference
// to newname.
func (t *Tree) Nest(cols *Set, newname *Name) *Tree {
	rest := t.Strip(cols)
	nested := t.Project(cols)
	nested.SetWhole(newname)
	// wrap the nested tree so Join keeps it as one column
	// instead of splicing its subtrees into the top level
	wrap := TupleTree(nil, nested)
	out := Join(rest, wrap)
	rest.Destroy()
	wrap.Destroy()
	return out
}

// Unnest splices the subtree of column col back into the
// top level: join(strip(t, {col}), the subtree with a null
// whole name), preserving the parent's whole name.
func (t *Tree) Unnest(col *Name) *Tree {
	sub := t.pick(col)
	if sub == nil {
		assert.Failf("columns: unnest of absent column %s", col)
	}
	drop := NewSet(col)
	rest := t.Strip(drop)
	drop.Destroy()
	inner := sub.Clone()
	inner.SetWhole(nil)
	out := Join(rest, inner)
	out.SetWhole(incref(t.whole))
	rest.Destroy()
	inner.Destroy()
	return out
}

// Adjoin appends newtree as a final subtree, consuming both
// references; a scalar is promoted to a pair.
func Adjoin(t, newtree *Tree) *Tree {
	if t.tuple {
		t.subs = append(t.subs, newtree)
		return t
	}
	return &Tree{tuple: true, subs: []*Tree{t, newtree}}
}

// Complement resolves a to-complement set against this tree:
// the result lists, in tree order, every top-level column not
// named in s.
func (t *Tree) Complement(s *Set) *Set {
	out := &Set{}
	for _, sub := range t.subtrees() {
		if sub.whole == nil || s.Contains(sub.whole) {
			continue
		}
		out.Add(sub.whole.Incref())
	}
	return out
}

// CountRefs returns the number of references to n the tree
// holds; used by the debug-only refcount audit.
func (t *Tree) CountRefs(n *Name) int {
	count := 0
	if t.whole == n {
		count++
	}
	for _, sub := range t.subs {
		count += sub.CountRefs(n)
	}
	return count
}

func (t *Tree) String() string {
	var sb strings.Builder
	t.tostring(&sb)
	return sb.String()
}

func (t *Tree) tostring(sb *strings.Builder) {
	if t.whole != nil {
		sb.WriteString(t.whole.String())
	}
	if !t.tuple {
		if t.whole == nil {
			sb.WriteByte('_')
		}
		return
	}
	sb.WriteByte('(')
	for i, sub := range t.subs {
		if i > 0 {
			sb.WriteString(", ")
		}
		sub.tostring(sb)
	}
	sb.WriteByte(')')
}
