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

// Package tcalc implements the tuple calculus, the engine's
// intermediate representation: a named-column relational algebra
// with scalar, tuple, set, and sequence layers, extended with
// graph steps and transitive closure.
//
// Expressions are trees of Node values. Every node carries its
// datatype and column tree, computed by the constructors. A tree
// is owned by exactly one parent slot: Destroy releases it and
// every column name and variable it references, and Clone makes
// a deep, independently owned copy. The debug audit in check.go
// verifies the reference-count discipline.
package tcalc

import (
	"github.com/pql-engine/pql/columns"
	"github.com/pql-engine/pql/datatype"
	"github.com/pql-engine/pql/internal/assert"
	"github.com/pql-engine/pql/layout"
)

// Ctx carries the per-context state the tuple calculus needs:
// the interned type table, the column-name pool, and the
// accounting of live variable and global handles.
type Ctx struct {
	Types *datatype.Table
	Names *columns.Pool

	nextvar  uint32
	livevars int64
}

// NewCtx returns a fresh tuple-calculus context.
func NewCtx() *Ctx {
	return &Ctx{
		Types: datatype.NewTable(),
		Names: columns.NewPool(),
	}
}

// LiveVars returns the number of outstanding variable and
// global references; zero once every tree is destroyed.
func (c *Ctx) LiveVars() int64 { return c.livevars }

// Var is a tuple-calculus variable. It is reference-counted
// and carries its resolved datatype and column tree.
type Var struct {
	ctx  *Ctx
	id   uint32
	refs int32
	typ  *datatype.Type
	cols *columns.Tree // may be nil
}

// NewVar allocates a fresh variable with one reference,
// consuming the caller's reference to cols.
func (c *Ctx) NewVar(typ *datatype.Type, cols *columns.Tree) *Var {
	c.nextvar++
	c.livevars++
	return &Var{ctx: c, id: c.nextvar, refs: 1, typ: typ, cols: cols}
}

// ID returns the variable's process-unique id.
func (v *Var) ID() uint32 { return v.id }

// Type returns the variable's resolved datatype.
func (v *Var) Type() *datatype.Type { return v.typ }

// Columns returns the variable's column tree, borrowed.
func (v *Var) Columns() *columns.Tree { return v.cols }

// Incref takes an additional reference.
func (v *Var) Incref() *Var {
	if v.refs <= 0 {
		assert.Failf("tcalc: incref of dead var .V%d", v.id)
	}
	v.refs++
	v.ctx.livevars++
	return v
}

// Decref releases one reference; the variable's column tree
// is released when the last reference goes.
func (v *Var) Decref() {
	if v.refs <= 0 {
		assert.Failf("tcalc: refcount underflow on var .V%d", v.id)
	}
	v.refs--
	v.ctx.livevars--
	if v.refs == 0 && v.cols != nil {
		v.cols.Destroy()
		v.cols = nil
	}
}

// Global is a named placeholder resolved by the backend at
// execution time.
type Global struct {
	ctx  *Ctx
	name string
	refs int32
}

// NewGlobal allocates a global handle with one reference.
func (c *Ctx) NewGlobal(name string) *Global {
	c.livevars++
	return &Global{ctx: c, name: name, refs: 1}
}

// Name returns the global's name.
func (g *Global) Name() string { return g.name }

// Incref takes an additional reference.
func (g *Global) Incref() *Global {
	if g.refs <= 0 {
		assert.Failf("tcalc: incref of dead global %s", g.name)
	}
	g.refs++
	g.ctx.livevars++
	return g
}

// Decref releases one reference.
func (g *Global) Decref() {
	if g.refs <= 0 {
		assert.Failf("tcalc: refcount underflow on global %s", g.name)
	}
	g.refs--
	g.ctx.livevars--
}

// Node is one tuple-calculus expression node.
type Node interface {
	// Type returns the node's datatype.
	Type() *datatype.Type
	// Columns returns the node's column tree, borrowed.
	Columns() *columns.Tree

	clone() Node
	destroy()
	walk(v Visitor)
	describe() *layout.Layout
}

// nonleaf is implemented by nodes with children.
type nonleaf interface {
	rewrite(r Rewriter)
}

// Visitor is the argument to Walk; see ast.Visitor.
type Visitor interface {
	Visit(Node) Visitor
}

// Walk traverses the tree in depth-first order: it calls
// v.Visit(n), and if the returned visitor w is not nil, walks
// each child of n with w, followed by w.Visit(nil).
func Walk(v Visitor, n Node) {
	if n == nil {
		return
	}
	w := v.Visit(n)
	if w != nil {
		n.walk(w)
		w.Visit(nil)
	}
}

// Rewriter rewrites nodes in depth-first order.
type Rewriter interface {
	// Rewrite is applied to each node after its children
	// have been rewritten; the node is replaced with the
	// returned value.
	Rewrite(Node) Node
	// Walk is called before descending into a node's
	// children; returning nil stops the descent.
	Walk(Node) Rewriter
}

// Rewrite applies r to n depth-first and returns the
// replacement tree.
func Rewrite(r Rewriter, n Node) Node {
	if n == nil {
		return nil
	}
	if nl, ok := n.(nonleaf); ok {
		if rc := r.Walk(n); rc != nil {
			nl.rewrite(rc)
		}
	}
	return r.Rewrite(n)
}

// Clone returns a deep, independently owned copy of n:
// subtrees are duplicated, and names and variables gain one
// reference per retaining slot.
func Clone(n Node) Node {
	if n == nil {
		return nil
	}
	return n.clone()
}

// Destroy releases the tree in post-order, dropping one
// reference from every name and variable it retains.
func Destroy(n Node) {
	if n == nil {
		return
	}
	n.destroy()
}

// Dump pretty-prints the expression within the given width.
func Dump(n Node, width int) string {
	return layout.ToString(layout.Format(n.describe(), width))
}
