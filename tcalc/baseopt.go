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
	"github.com/pql-engine/pql/columns"
	"github.com/pql-engine/pql/value"
)

// Baseopt is the fixed set of algebraic rewrites: filter
// pushdown below project, strip, and join; dropping no-op
// projections and renames; fusing nest/unnest pairs that
// invert each other; constant folding; and let elimination.
// Every rewrite preserves the datatype of the remaining
// nodes, the column tree at the root, and the result as a
// set, with one exception for the column tree: fusing a
// single-column nest/unnest pair returns the input's tree,
// which still names the column the unnest left unnamed.
//
// folder, when non-nil, evaluates constant subtrees; the
// engine passes its executor. Rewrites run until no rule
// fires.
func Baseopt(ctx *Ctx, n Node, folder Folder) Node {
	for {
		b := &baseoptPass{ctx: ctx, folder: folder}
		n = Rewrite(b, n)
		if !b.changed {
			return n
		}
	}
}

// Folder evaluates an expression with no free variables or
// globals to a value.
type Folder interface {
	Fold(Node) (*value.Value, error)
}

type baseoptPass struct {
	ctx     *Ctx
	folder  Folder
	changed bool
}

func (b *baseoptPass) Walk(n Node) Rewriter { return b }

func (b *baseoptPass) Rewrite(n Node) Node {
	switch n := n.(type) {
	case *Filter:
		return b.filter(n)
	case *Project:
		return b.project(n)
	case *Rename:
		if n.Old == n.New {
			return b.replaceWith(n, &n.Sub)
		}
		return n
	case *Unnest:
		return b.unnest(n)
	case *Let:
		return b.let(n)
	case *Bop, *Uop, *Func:
		return b.fold(n)
	}
	return n
}

// replaceWith detaches *subp from the shell n, destroys the
// shell, and returns the detached subtree.
func (b *baseoptPass) replaceWith(n Node, subp *Node) Node {
	sub := *subp
	*subp = nil
	Destroy(n)
	b.changed = true
	return sub
}

// freeColumns collects every column name an expression
// mentions, conservatively.
type freeColumns struct {
	names map[*columns.Name]bool
}

func (f *freeColumns) add(n *columns.Name) {
	if n != nil {
		f.names[n] = true
	}
}

func (f *freeColumns) addSet(s *columns.Set) {
	for i := 0; i < s.Num(); i++ {
		f.add(s.Get(i))
	}
}

func (f *freeColumns) Visit(n Node) Visitor {
	switch n := n.(type) {
	case nil:
		return nil
	case *Project:
		f.addSet(n.Cols)
	case *Strip:
		f.addSet(n.Cols)
	case *Rename:
		f.add(n.Old)
		f.add(n.New)
	case *Order:
		f.addSet(n.Cols)
	case *Uniq:
		f.addSet(n.Cols)
	case *Nest:
		f.addSet(n.Cols)
		f.add(n.NewCol)
	case *Unnest:
		f.add(n.Col)
	case *Step:
		f.add(n.SubCol)
	case *Repeat:
		f.add(n.SubEndCol)
		f.add(n.BodyStartCol)
		f.add(n.BodyPathCol)
		f.add(n.BodyEndCol)
	}
	return f
}

func free(n Node) map[*columns.Name]bool {
	f := &freeColumns{names: make(map[*columns.Name]bool)}
	Walk(f, n)
	return f.names
}

// containedIn reports whether every name is a top-level
// column of tree.
func containedIn(names map[*columns.Name]bool, tree *columns.Tree) bool {
	for n := range names {
		if tree.Index(n) < 0 {
			return false
		}
	}
	return true
}

// rebindPred rebuilds a row predicate over a different input
// shape: the lambda's variable is replaced with a fresh one
// carrying the new row type and column tree.
func (b *baseoptPass) rebindPred(pred Node, rowtyp Node) Node {
	lam, ok := pred.(*Lambda)
	if !ok {
		return pred
	}
	member, _ := relMember(rowtyp.Type())
	nv := b.ctx.NewVar(member, rowtyp.Columns().Clone())
	sub := &substVar{ctx: b.ctx, old: lam.Var, new: nv}
	body := Rewrite(sub, lam.Body)
	lam.Body = nil
	nl := b.ctx.NewLambda(nv.Incref(), body)
	Destroy(lam)
	nv.Decref()
	return nl
}

// substVar replaces reads of one variable with another.
type substVar struct {
	ctx *Ctx
	old *Var
	new *Var
}

func (s *substVar) Walk(n Node) Rewriter { return s }

func (s *substVar) Rewrite(n Node) Node {
	rv, ok := n.(*ReadVar)
	if !ok || rv.Var != s.old {
		return n
	}
	Destroy(rv)
	return s.ctx.NewReadVar(s.new.Incref())
}

// filter applies the pushdown rules.
func (b *baseoptPass) filter(n *Filter) Node {
	names := free(n.Pred)

	switch sub := n.Sub.(type) {
	case *Project:
		// the predicate only mentions kept columns: filter
		// the un-projected rows instead
		ok := true
		for nm := range names {
			if !sub.Cols.Contains(nm) {
				ok = false
				break
			}
		}
		if ok && containedIn(names, sub.Sub.Columns()) {
			pred := b.rebindPred(n.Pred, sub.Sub)
			inner := b.ctx.NewFilter(sub.Sub, pred)
			sub.Sub = nil
			n.Sub = nil
			n.Pred = nil
			out := b.ctx.NewProject(inner, sub.Cols.Clone())
			Destroy(sub)
			Destroy(n)
			b.changed = true
			return out
		}

	case *Strip:
		ok := true
		for nm := range names {
			if sub.Cols.Contains(nm) {
				ok = false
				break
			}
		}
		if ok && containedIn(names, sub.Sub.Columns()) {
			pred := b.rebindPred(n.Pred, sub.Sub)
			inner := b.ctx.NewFilter(sub.Sub, pred)
			sub.Sub = nil
			n.Sub = nil
			n.Pred = nil
			out := b.ctx.NewStrip(inner, sub.Cols.Clone())
			Destroy(sub)
			Destroy(n)
			b.changed = true
			return out
		}

	case *Rename:
		// a rename the predicate never mentions floats above
		// the filter; rename does not reorder slots, so the
		// predicate applies to the un-renamed rows unchanged
		if !names[sub.Old] && !names[sub.New] {
			inner := b.ctx.NewFilter(sub.Sub, n.Pred)
			old, nw := sub.Old.Incref(), sub.New.Incref()
			sub.Sub = nil
			n.Sub, n.Pred = nil, nil
			out := b.ctx.NewRename(inner, old, nw)
			Destroy(sub)
			Destroy(n)
			b.changed = true
			return out
		}

	case *Join:
		if containedIn(names, sub.Left.Columns()) {
			pred := b.rebindPred(n.Pred, sub.Left)
			left := b.ctx.NewFilter(sub.Left, pred)
			right := sub.Right
			jp := sub.Pred
			sub.Left, sub.Right, sub.Pred = nil, nil, nil
			n.Sub, n.Pred = nil, nil
			out := b.ctx.NewJoin(left, right, jp)
			Destroy(sub)
			Destroy(n)
			b.changed = true
			return out
		}
		if containedIn(names, sub.Right.Columns()) {
			pred := b.rebindPred(n.Pred, sub.Right)
			right := b.ctx.NewFilter(sub.Right, pred)
			left := sub.Left
			jp := sub.Pred
			sub.Left, sub.Right, sub.Pred = nil, nil, nil
			n.Sub, n.Pred = nil, nil
			out := b.ctx.NewJoin(left, right, jp)
			Destroy(sub)
			Destroy(n)
			b.changed = true
			return out
		}
	}
	return n
}

// project drops projections that keep every column in the
// input's order.
func (b *baseoptPass) project(n *Project) Node {
	tree := n.Sub.Columns()
	if n.Cols.Num() != tree.Arity() {
		return n
	}
	for i := 0; i < n.Cols.Num(); i++ {
		if tree.Index(n.Cols.Get(i)) != i {
			return n
		}
	}
	// a monople projection of an unnamed tree still reshapes
	if !tree.IsTuple() && tree.Whole() == nil {
		return n
	}
	return b.replaceWith(n, &n.Sub)
}

// unnest fuses unnest(nest(sub, cols, g), g) back to sub when
// the nested columns were the trailing columns of sub, so the
// column order is unchanged.
func (b *baseoptPass) unnest(n *Unnest) Node {
	nest, ok := n.Sub.(*Nest)
	if !ok || nest.NewCol != n.Col {
		return n
	}
	tree := nest.Sub.Columns()
	arity := tree.Arity()
	num := nest.Cols.Num()
	if num > arity {
		return n
	}
	for i := 0; i < num; i++ {
		if tree.Index(nest.Cols.Get(i)) != arity-num+i {
			return n
		}
	}
	out := nest.Sub
	nest.Sub = nil
	n.Sub = nil
	Destroy(n)
	Destroy(nest)
	b.changed = true
	return out
}

// let eliminates bindings that are unused, and substitutes
// literal bindings used exactly once.
func (b *baseoptPass) let(n *Let) Node {
	uses := 0
	Walk(visitorFunc(func(m Node) bool {
		if rv, ok := m.(*ReadVar); ok && rv.Var == n.Var {
			uses++
		}
		return true
	}), n.Body)

	if uses == 0 {
		return b.replaceWith(n, &n.Body)
	}
	if uses == 1 {
		if lit, ok := n.Value.(*Value); ok {
			subst := &substValue{ctx: b.ctx, v: n.Var, val: lit.Val}
			n.Body = Rewrite(subst, n.Body)
			b.changed = true
			return b.replaceWith(n, &n.Body)
		}
	}
	return n
}

// substValue replaces reads of a variable with a literal.
type substValue struct {
	ctx *Ctx
	v   *Var
	val *value.Value
}

func (s *substValue) Walk(n Node) Rewriter { return s }

func (s *substValue) Rewrite(n Node) Node {
	rv, ok := n.(*ReadVar)
	if !ok || rv.Var != s.v {
		return n
	}
	cols := rv.Columns().Clone()
	Destroy(rv)
	return s.ctx.NewValue(s.val.Clone(), cols)
}

// visitorFunc adapts a function to the Visitor interface.
type visitorFunc func(Node) bool

func (f visitorFunc) Visit(n Node) Visitor {
	if n == nil || !f(n) {
		return nil
	}
	return f
}

// constant reports whether a tree is built from literals
// only.
func constant(n Node) bool {
	ok := true
	Walk(visitorFunc(func(m Node) bool {
		switch m.(type) {
		case *Value, *Bop, *Uop, *Func:
			return true
		default:
			ok = false
			return false
		}
	}), n)
	return ok
}

// fold evaluates literal-only operator trees.
func (b *baseoptPass) fold(n Node) Node {
	if b.folder == nil || !constant(n) {
		return n
	}
	if _, isval := n.(*Value); isval {
		return n
	}
	v, err := b.folder.Fold(n)
	if err != nil {
		// leave mistyped constants for execution to report
		return n
	}
	cols := n.Columns().Clone()
	Destroy(n)
	b.changed = true
	return b.ctx.NewValue(v, cols)
}
