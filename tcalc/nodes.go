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
	"github.com/pql-engine/pql/datatype"
	"github.com/pql-engine/pql/layout"
	"github.com/pql-engine/pql/value"
)

// base carries the inferred datatype and column tree every
// node stores.
type base struct {
	typ  *datatype.Type
	cols *columns.Tree
}

func (b *base) Type() *datatype.Type     { return b.typ }
func (b *base) Columns() *columns.Tree   { return b.cols }
func (b *base) cloneBase() base          { return base{typ: b.typ, cols: b.cols.Clone()} }
func (b *base) destroyBase()             { b.cols.Destroy() }

// Filter keeps the rows of Sub for which Pred is true.
type Filter struct {
	base
	Sub  Node
	Pred Node
}

func (f *Filter) clone() Node {
	return &Filter{base: f.cloneBase(), Sub: Clone(f.Sub), Pred: Clone(f.Pred)}
}

func (f *Filter) destroy() {
	Destroy(f.Sub)
	Destroy(f.Pred)
	f.destroyBase()
}

func (f *Filter) walk(v Visitor) {
	Walk(v, f.Sub)
	Walk(v, f.Pred)
}

func (f *Filter) rewrite(r Rewriter) {
	f.Sub = Rewrite(r, f.Sub)
	f.Pred = Rewrite(r, f.Pred)
}

func (f *Filter) describe() *layout.Layout {
	return layout.Indent(layout.Text("filter"),
		layout.LeftAlign(f.Sub.describe(),
			layout.Pair(layout.Text("where"), f.Pred.describe())),
		nil)
}

// Project keeps only the listed columns.
type Project struct {
	base
	Sub  Node
	Cols *columns.Set
}

func (p *Project) clone() Node {
	return &Project{base: p.cloneBase(), Sub: Clone(p.Sub), Cols: p.Cols.Clone()}
}

func (p *Project) destroy() {
	Destroy(p.Sub)
	p.Cols.Destroy()
	p.destroyBase()
}

func (p *Project) walk(v Visitor)     { Walk(v, p.Sub) }
func (p *Project) rewrite(r Rewriter) { p.Sub = Rewrite(r, p.Sub) }

func (p *Project) describe() *layout.Layout {
	return layout.Triple(layout.Text("project"), layout.Text(p.Cols.String()), p.Sub.describe())
}

// Strip drops the listed columns.
type Strip struct {
	base
	Sub  Node
	Cols *columns.Set
}

func (s *Strip) clone() Node {
	return &Strip{base: s.cloneBase(), Sub: Clone(s.Sub), Cols: s.Cols.Clone()}
}

func (s *Strip) destroy() {
	Destroy(s.Sub)
	s.Cols.Destroy()
	s.destroyBase()
}

func (s *Strip) walk(v Visitor)     { Walk(v, s.Sub) }
func (s *Strip) rewrite(r Rewriter) { s.Sub = Rewrite(r, s.Sub) }

func (s *Strip) describe() *layout.Layout {
	return layout.Triple(layout.Text("strip"), layout.Text(s.Cols.String()), s.Sub.describe())
}

// Rename substitutes the column name New for Old.
type Rename struct {
	base
	Sub Node
	Old *columns.Name
	New *columns.Name
}

func (rn *Rename) clone() Node {
	return &Rename{base: rn.cloneBase(), Sub: Clone(rn.Sub),
		Old: rn.Old.Incref(), New: rn.New.Incref()}
}

func (rn *Rename) destroy() {
	Destroy(rn.Sub)
	rn.Old.Decref()
	rn.New.Decref()
	rn.destroyBase()
}

func (rn *Rename) walk(v Visitor)     { Walk(v, rn.Sub) }
func (rn *Rename) rewrite(r Rewriter) { rn.Sub = Rewrite(r, rn.Sub) }

func (rn *Rename) describe() *layout.Layout {
	return layout.Quad(layout.Text("rename"),
		layout.Text(rn.Old.String()+"->"+rn.New.String()),
		layout.Text("in"), rn.Sub.describe())
}

// Join is the cross product of Left and Right, optionally
// filtered by Pred.
type Join struct {
	base
	Left  Node
	Right Node
	Pred  Node // may be nil
}

func (j *Join) clone() Node {
	return &Join{base: j.cloneBase(), Left: Clone(j.Left), Right: Clone(j.Right), Pred: Clone(j.Pred)}
}

func (j *Join) destroy() {
	Destroy(j.Left)
	Destroy(j.Right)
	Destroy(j.Pred)
	j.destroyBase()
}

func (j *Join) walk(v Visitor) {
	Walk(v, j.Left)
	Walk(v, j.Right)
	if j.Pred != nil {
		Walk(v, j.Pred)
	}
}

func (j *Join) rewrite(r Rewriter) {
	j.Left = Rewrite(r, j.Left)
	j.Right = Rewrite(r, j.Right)
	if j.Pred != nil {
		j.Pred = Rewrite(r, j.Pred)
	}
}

func (j *Join) describe() *layout.Layout {
	kids := []*layout.Layout{j.Left.describe(), j.Right.describe()}
	if j.Pred != nil {
		kids = append(kids, layout.Pair(layout.Text("on"), j.Pred.describe()))
	}
	return layout.Indent(layout.Text("join"), layout.LeftAlign(kids...), nil)
}

// Order sorts rows by the listed columns.
type Order struct {
	base
	Sub  Node
	Cols *columns.Set
}

func (o *Order) clone() Node {
	return &Order{base: o.cloneBase(), Sub: Clone(o.Sub), Cols: o.Cols.Clone()}
}

func (o *Order) destroy() {
	Destroy(o.Sub)
	o.Cols.Destroy()
	o.destroyBase()
}

func (o *Order) walk(v Visitor)     { Walk(v, o.Sub) }
func (o *Order) rewrite(r Rewriter) { o.Sub = Rewrite(r, o.Sub) }

func (o *Order) describe() *layout.Layout {
	return layout.Triple(layout.Text("order"), layout.Text(o.Cols.String()), o.Sub.describe())
}

// Uniq drops consecutive rows that repeat the listed columns.
type Uniq struct {
	base
	Sub  Node
	Cols *columns.Set
}

func (u *Uniq) clone() Node {
	return &Uniq{base: u.cloneBase(), Sub: Clone(u.Sub), Cols: u.Cols.Clone()}
}

func (u *Uniq) destroy() {
	Destroy(u.Sub)
	u.Cols.Destroy()
	u.destroyBase()
}

func (u *Uniq) walk(v Visitor)     { Walk(v, u.Sub) }
func (u *Uniq) rewrite(r Rewriter) { u.Sub = Rewrite(r, u.Sub) }

func (u *Uniq) describe() *layout.Layout {
	return layout.Triple(layout.Text("uniq"), layout.Text(u.Cols.String()), u.Sub.describe())
}

// Nest groups the listed columns into a set-valued column
// named NewCol.
type Nest struct {
	base
	Sub    Node
	Cols   *columns.Set
	NewCol *columns.Name
}

func (n *Nest) clone() Node {
	return &Nest{base: n.cloneBase(), Sub: Clone(n.Sub),
		Cols: n.Cols.Clone(), NewCol: n.NewCol.Incref()}
}

func (n *Nest) destroy() {
	Destroy(n.Sub)
	n.Cols.Destroy()
	n.NewCol.Decref()
	n.destroyBase()
}

func (n *Nest) walk(v Visitor)     { Walk(v, n.Sub) }
func (n *Nest) rewrite(r Rewriter) { n.Sub = Rewrite(r, n.Sub) }

func (n *Nest) describe() *layout.Layout {
	return layout.Quad(layout.Text("nest"), layout.Text(n.Cols.String()),
		layout.Text("as "+n.NewCol.String()), n.Sub.describe())
}

// Unnest flattens the set-valued column Col back into rows.
type Unnest struct {
	base
	Sub Node
	Col *columns.Name
}

func (u *Unnest) clone() Node {
	return &Unnest{base: u.cloneBase(), Sub: Clone(u.Sub), Col: u.Col.Incref()}
}

func (u *Unnest) destroy() {
	Destroy(u.Sub)
	u.Col.Decref()
	u.destroyBase()
}

func (u *Unnest) walk(v Visitor)     { Walk(v, u.Sub) }
func (u *Unnest) rewrite(r Rewriter) { u.Sub = Rewrite(r, u.Sub) }

func (u *Unnest) describe() *layout.Layout {
	return layout.Triple(layout.Text("unnest"), layout.Text(u.Col.String()), u.Sub.describe())
}

// Distinguish appends a fresh distinguisher value to every
// row under NewCol, preserving multiplicity under joins.
type Distinguish struct {
	base
	Sub    Node
	NewCol *columns.Name
}

func (d *Distinguish) clone() Node {
	return &Distinguish{base: d.cloneBase(), Sub: Clone(d.Sub), NewCol: d.NewCol.Incref()}
}

func (d *Distinguish) destroy() {
	Destroy(d.Sub)
	d.NewCol.Decref()
	d.destroyBase()
}

func (d *Distinguish) walk(v Visitor)     { Walk(v, d.Sub) }
func (d *Distinguish) rewrite(r Rewriter) { d.Sub = Rewrite(r, d.Sub) }

func (d *Distinguish) describe() *layout.Layout {
	return layout.Triple(layout.Text("distinguish"),
		layout.Text("as "+d.NewCol.String()), d.Sub.describe())
}

// Adjoin evaluates Func over each row of Left and appends
// the result under NewCol.
type Adjoin struct {
	base
	Left   Node
	Func   Node
	NewCol *columns.Name
}

func (a *Adjoin) clone() Node {
	return &Adjoin{base: a.cloneBase(), Left: Clone(a.Left),
		Func: Clone(a.Func), NewCol: a.NewCol.Incref()}
}

func (a *Adjoin) destroy() {
	Destroy(a.Left)
	Destroy(a.Func)
	a.NewCol.Decref()
	a.destroyBase()
}

func (a *Adjoin) walk(v Visitor) {
	Walk(v, a.Left)
	Walk(v, a.Func)
}

func (a *Adjoin) rewrite(r Rewriter) {
	a.Left = Rewrite(r, a.Left)
	a.Func = Rewrite(r, a.Func)
}

func (a *Adjoin) describe() *layout.Layout {
	return layout.Indent(layout.Text("adjoin as "+a.NewCol.String()),
		layout.LeftAlign(a.Left.describe(), a.Func.describe()),
		nil)
}

// Step follows one graph edge from the value in SubCol of
// every row, producing a path-step row per traversed edge.
// A nil Edge follows every edge.
type Step struct {
	base
	Sub      Node
	SubCol   *columns.Name
	Edge     *value.Value // nil means every edge
	Reversed bool
	LeftCol  *columns.Name
	EdgeCol  *columns.Name
	RightCol *columns.Name
	Pred     Node // may be nil
}

func (s *Step) clone() Node {
	var edge *value.Value
	if s.Edge != nil {
		edge = s.Edge.Clone()
	}
	return &Step{base: s.cloneBase(), Sub: Clone(s.Sub), SubCol: s.SubCol.Incref(),
		Edge: edge, Reversed: s.Reversed,
		LeftCol: s.LeftCol.Incref(), EdgeCol: s.EdgeCol.Incref(),
		RightCol: s.RightCol.Incref(), Pred: Clone(s.Pred)}
}

func (s *Step) destroy() {
	Destroy(s.Sub)
	Destroy(s.Pred)
	s.SubCol.Decref()
	s.LeftCol.Decref()
	s.EdgeCol.Decref()
	s.RightCol.Decref()
	s.destroyBase()
}

func (s *Step) walk(v Visitor) {
	Walk(v, s.Sub)
	if s.Pred != nil {
		Walk(v, s.Pred)
	}
}

func (s *Step) rewrite(r Rewriter) {
	s.Sub = Rewrite(r, s.Sub)
	if s.Pred != nil {
		s.Pred = Rewrite(r, s.Pred)
	}
}

func (s *Step) describe() *layout.Layout {
	head := "step"
	if s.Reversed {
		head = "step-back"
	}
	edge := "*"
	if s.Edge != nil {
		edge = s.Edge.String()
	}
	kids := []*layout.Layout{
		layout.Text("from " + s.SubCol.String()),
		layout.Text("edge " + edge),
		layout.Text("-> (" + s.LeftCol.String() + ", " + s.EdgeCol.String() + ", " + s.RightCol.String() + ")"),
		s.Sub.describe(),
	}
	if s.Pred != nil {
		kids = append(kids, layout.Pair(layout.Text("where"), s.Pred.describe()))
	}
	return layout.Indent(layout.Text(head), layout.LeftAlign(kids...), nil)
}

// Repeat is the transitive-closure loop. Starting from the
// endpoints in SubEndCol of Sub, it repeatedly evaluates Body
// with LoopVar bound to the frontier (whose current endpoint
// is BodyStartCol), accumulating the paths from BodyPathCol
// and the new endpoints from BodyEndCol, until no new
// endpoints appear. The accumulated path and final endpoint
// are joined back onto Sub as PathCol and EndCol.
type Repeat struct {
	base
	Sub          Node
	SubEndCol    *columns.Name
	LoopVar      *Var
	BodyStartCol *columns.Name
	Body         Node
	BodyPathCol  *columns.Name
	BodyEndCol   *columns.Name
	PathCol      *columns.Name
	EndCol       *columns.Name
}

func (rp *Repeat) clone() Node {
	return &Repeat{base: rp.cloneBase(), Sub: Clone(rp.Sub),
		SubEndCol: rp.SubEndCol.Incref(), LoopVar: rp.LoopVar.Incref(),
		BodyStartCol: rp.BodyStartCol.Incref(), Body: Clone(rp.Body),
		BodyPathCol: rp.BodyPathCol.Incref(), BodyEndCol: rp.BodyEndCol.Incref(),
		PathCol: rp.PathCol.Incref(), EndCol: rp.EndCol.Incref()}
}

func (rp *Repeat) destroy() {
	Destroy(rp.Sub)
	Destroy(rp.Body)
	rp.SubEndCol.Decref()
	rp.LoopVar.Decref()
	rp.BodyStartCol.Decref()
	rp.BodyPathCol.Decref()
	rp.BodyEndCol.Decref()
	rp.PathCol.Decref()
	rp.EndCol.Decref()
	rp.destroyBase()
}

func (rp *Repeat) walk(v Visitor) {
	Walk(v, rp.Sub)
	Walk(v, rp.Body)
}

func (rp *Repeat) rewrite(r Rewriter) {
	rp.Sub = Rewrite(r, rp.Sub)
	rp.Body = Rewrite(r, rp.Body)
}

func (rp *Repeat) describe() *layout.Layout {
	return layout.Indent(layout.Text("repeat"),
		layout.LeftAlign(
			layout.Pair(layout.Text("from "+rp.SubEndCol.String()+" in"), rp.Sub.describe()),
			layout.Pair(layout.Text("body"), rp.Body.describe()),
			layout.Text("-> ("+rp.PathCol.String()+", "+rp.EndCol.String()+")"),
		), nil)
}

// Scan iterates every edge of every object in the store,
// yielding (left, edge, right) triples.
type Scan struct {
	base
	LeftCol  *columns.Name
	EdgeCol  *columns.Name
	RightCol *columns.Name
	Pred     Node // may be nil
}

func (s *Scan) clone() Node {
	return &Scan{base: s.cloneBase(), LeftCol: s.LeftCol.Incref(),
		EdgeCol: s.EdgeCol.Incref(), RightCol: s.RightCol.Incref(), Pred: Clone(s.Pred)}
}

func (s *Scan) destroy() {
	Destroy(s.Pred)
	s.LeftCol.Decref()
	s.EdgeCol.Decref()
	s.RightCol.Decref()
	s.destroyBase()
}

func (s *Scan) walk(v Visitor) {
	if s.Pred != nil {
		Walk(v, s.Pred)
	}
}

func (s *Scan) rewrite(r Rewriter) {
	if s.Pred != nil {
		s.Pred = Rewrite(r, s.Pred)
	}
}

func (s *Scan) describe() *layout.Layout {
	l := layout.Pair(layout.Text("scan"),
		layout.Text("("+s.LeftCol.String()+", "+s.EdgeCol.String()+", "+s.RightCol.String()+")"))
	if s.Pred != nil {
		l = layout.Pair(l, layout.Pair(layout.Text("where"), s.Pred.describe()))
	}
	return l
}

// Bop applies a binary operator.
type Bop struct {
	base
	Left  Node
	Op    Op
	Right Node
}

func (b *Bop) clone() Node {
	return &Bop{base: b.cloneBase(), Left: Clone(b.Left), Op: b.Op, Right: Clone(b.Right)}
}

func (b *Bop) destroy() {
	Destroy(b.Left)
	Destroy(b.Right)
	b.destroyBase()
}

func (b *Bop) walk(v Visitor) {
	Walk(v, b.Left)
	Walk(v, b.Right)
}

func (b *Bop) rewrite(r Rewriter) {
	b.Left = Rewrite(r, b.Left)
	b.Right = Rewrite(r, b.Right)
}

func (b *Bop) describe() *layout.Layout {
	return layout.Triple(b.Left.describe(), layout.Text(b.Op.String()), b.Right.describe())
}

// Uop applies a unary operator.
type Uop struct {
	base
	Op  Op
	Sub Node
}

func (u *Uop) clone() Node {
	return &Uop{base: u.cloneBase(), Op: u.Op, Sub: Clone(u.Sub)}
}

func (u *Uop) destroy() {
	Destroy(u.Sub)
	u.destroyBase()
}

func (u *Uop) walk(v Visitor)     { Walk(v, u.Sub) }
func (u *Uop) rewrite(r Rewriter) { u.Sub = Rewrite(r, u.Sub) }

func (u *Uop) describe() *layout.Layout {
	return layout.Pair(layout.Text(u.Op.String()), u.Sub.describe())
}

// Func applies an n-ary builtin.
type Func struct {
	base
	Op   Op
	Args []Node
}

func (f *Func) clone() Node {
	args := make([]Node, len(f.Args))
	for i := range f.Args {
		args[i] = Clone(f.Args[i])
	}
	return &Func{base: f.cloneBase(), Op: f.Op, Args: args}
}

func (f *Func) destroy() {
	for i := range f.Args {
		Destroy(f.Args[i])
	}
	f.destroyBase()
}

func (f *Func) walk(v Visitor) {
	for i := range f.Args {
		Walk(v, f.Args[i])
	}
}

func (f *Func) rewrite(r Rewriter) {
	for i := range f.Args {
		f.Args[i] = Rewrite(r, f.Args[i])
	}
}

func (f *Func) describe() *layout.Layout {
	kids := []*layout.Layout{layout.Text(f.Op.String() + "(")}
	for i := range f.Args {
		if i > 0 {
			kids = append(kids, layout.Text(","))
		}
		kids = append(kids, f.Args[i].describe())
	}
	kids = append(kids, layout.Text(")"))
	return layout.Sequence(kids...)
}

// Map binds Var to each member of Set and collects the
// results of Result.
type Map struct {
	base
	Var    *Var
	Set    Node
	Result Node
}

func (m *Map) clone() Node {
	return &Map{base: m.cloneBase(), Var: m.Var.Incref(),
		Set: Clone(m.Set), Result: Clone(m.Result)}
}

func (m *Map) destroy() {
	Destroy(m.Set)
	Destroy(m.Result)
	m.Var.Decref()
	m.destroyBase()
}

func (m *Map) walk(v Visitor) {
	Walk(v, m.Set)
	Walk(v, m.Result)
}

func (m *Map) rewrite(r Rewriter) {
	m.Set = Rewrite(r, m.Set)
	m.Result = Rewrite(r, m.Result)
}

func (m *Map) describe() *layout.Layout {
	return layout.Indent(layout.Text("map .V"+utoa(m.Var.id)+" in"),
		layout.LeftAlign(m.Set.describe(), m.Result.describe()), nil)
}

// Let binds Var to Value while evaluating Body.
type Let struct {
	base
	Var   *Var
	Value Node
	Body  Node
}

func (l *Let) clone() Node {
	return &Let{base: l.cloneBase(), Var: l.Var.Incref(),
		Value: Clone(l.Value), Body: Clone(l.Body)}
}

func (l *Let) destroy() {
	Destroy(l.Value)
	Destroy(l.Body)
	l.Var.Decref()
	l.destroyBase()
}

func (l *Let) walk(v Visitor) {
	Walk(v, l.Value)
	Walk(v, l.Body)
}

func (l *Let) rewrite(r Rewriter) {
	l.Value = Rewrite(r, l.Value)
	l.Body = Rewrite(r, l.Body)
}

func (l *Let) describe() *layout.Layout {
	return layout.Indent(layout.Text("let .V"+utoa(l.Var.id)+" ="),
		layout.LeftAlign(l.Value.describe(), layout.Pair(layout.Text("in"), l.Body.describe())), nil)
}

// Lambda closes over the environment, binding Var when
// applied.
type Lambda struct {
	base
	Var  *Var
	Body Node
}

func (l *Lambda) clone() Node {
	return &Lambda{base: l.cloneBase(), Var: l.Var.Incref(), Body: Clone(l.Body)}
}

func (l *Lambda) destroy() {
	Destroy(l.Body)
	l.Var.Decref()
	l.destroyBase()
}

func (l *Lambda) walk(v Visitor)     { Walk(v, l.Body) }
func (l *Lambda) rewrite(r Rewriter) { l.Body = Rewrite(r, l.Body) }

func (l *Lambda) describe() *layout.Layout {
	return layout.Pair(layout.Text("lambda .V"+utoa(l.Var.id)+":"), l.Body.describe())
}

// Apply applies a lambda to an argument.
type Apply struct {
	base
	Lambda Node
	Arg    Node
}

func (a *Apply) clone() Node {
	return &Apply{base: a.cloneBase(), Lambda: Clone(a.Lambda), Arg: Clone(a.Arg)}
}

func (a *Apply) destroy() {
	Destroy(a.Lambda)
	Destroy(a.Arg)
	a.destroyBase()
}

func (a *Apply) walk(v Visitor) {
	Walk(v, a.Lambda)
	Walk(v, a.Arg)
}

func (a *Apply) rewrite(r Rewriter) {
	a.Lambda = Rewrite(r, a.Lambda)
	a.Arg = Rewrite(r, a.Arg)
}

func (a *Apply) describe() *layout.Layout {
	return layout.Triple(layout.Text("apply"), a.Lambda.describe(), a.Arg.describe())
}

// ReadVar reads the current binding of Var.
type ReadVar struct {
	base
	Var *Var
}

func (rv *ReadVar) clone() Node {
	return &ReadVar{base: rv.cloneBase(), Var: rv.Var.Incref()}
}

func (rv *ReadVar) destroy() {
	rv.Var.Decref()
	rv.destroyBase()
}

func (rv *ReadVar) walk(v Visitor) {}

func (rv *ReadVar) describe() *layout.Layout {
	return layout.Text(".V" + utoa(rv.Var.id))
}

// ReadGlobal asks the backend for the named storage root.
type ReadGlobal struct {
	base
	Global *Global
}

func (rg *ReadGlobal) clone() Node {
	return &ReadGlobal{base: rg.cloneBase(), Global: rg.Global.Incref()}
}

func (rg *ReadGlobal) destroy() {
	rg.Global.Decref()
	rg.destroyBase()
}

func (rg *ReadGlobal) walk(v Visitor) {}

func (rg *ReadGlobal) describe() *layout.Layout {
	return layout.Text("global " + rg.Global.name)
}

// CreatePathElement packages a 3-tuple into a path element.
type CreatePathElement struct {
	base
	Sub Node
}

func (c *CreatePathElement) clone() Node {
	return &CreatePathElement{base: c.cloneBase(), Sub: Clone(c.Sub)}
}

func (c *CreatePathElement) destroy() {
	Destroy(c.Sub)
	c.destroyBase()
}

func (c *CreatePathElement) walk(v Visitor)     { Walk(v, c.Sub) }
func (c *CreatePathElement) rewrite(r Rewriter) { c.Sub = Rewrite(r, c.Sub) }

func (c *CreatePathElement) describe() *layout.Layout {
	return layout.Pair(layout.Text("pathelement"), c.Sub.describe())
}

// Splatter attaches a computed name to a value for
// downstream record construction.
type Splatter struct {
	base
	Value Node
	Name  Node
}

func (s *Splatter) clone() Node {
	return &Splatter{base: s.cloneBase(), Value: Clone(s.Value), Name: Clone(s.Name)}
}

func (s *Splatter) destroy() {
	Destroy(s.Value)
	Destroy(s.Name)
	s.destroyBase()
}

func (s *Splatter) walk(v Visitor) {
	Walk(v, s.Value)
	Walk(v, s.Name)
}

func (s *Splatter) rewrite(r Rewriter) {
	s.Value = Rewrite(r, s.Value)
	s.Name = Rewrite(r, s.Name)
}

func (s *Splatter) describe() *layout.Layout {
	return layout.Quad(layout.Text("splatter"), s.Value.describe(),
		layout.Text("as"), s.Name.describe())
}

// TupleExpr builds a fresh tuple from its member
// expressions, named by Cols.
type TupleExpr struct {
	base
	Exprs []Node
	Cols  *columns.Set
}

func (t *TupleExpr) clone() Node {
	exprs := make([]Node, len(t.Exprs))
	for i := range t.Exprs {
		exprs[i] = Clone(t.Exprs[i])
	}
	return &TupleExpr{base: t.cloneBase(), Exprs: exprs, Cols: t.Cols.Clone()}
}

func (t *TupleExpr) destroy() {
	for i := range t.Exprs {
		Destroy(t.Exprs[i])
	}
	t.Cols.Destroy()
	t.destroyBase()
}

func (t *TupleExpr) walk(v Visitor) {
	for i := range t.Exprs {
		Walk(v, t.Exprs[i])
	}
}

func (t *TupleExpr) rewrite(r Rewriter) {
	for i := range t.Exprs {
		t.Exprs[i] = Rewrite(r, t.Exprs[i])
	}
}

func (t *TupleExpr) describe() *layout.Layout {
	kids := []*layout.Layout{layout.Text("(")}
	for i := range t.Exprs {
		if i > 0 {
			kids = append(kids, layout.Text(","))
		}
		kids = append(kids, t.Exprs[i].describe())
	}
	kids = append(kids, layout.Text(")"))
	return layout.Sequence(kids...)
}

// Value is a literal.
type Value struct {
	base
	Val *value.Value
}

func (v *Value) clone() Node {
	return &Value{base: v.cloneBase(), Val: v.Val.Clone()}
}

func (v *Value) destroy() {
	v.destroyBase()
}

func (v *Value) walk(vi Visitor) {}

func (v *Value) describe() *layout.Layout {
	return layout.TextWithNewlines(v.Val.String())
}

func utoa(u uint32) string {
	if u == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for u > 0 {
		i--
		buf[i] = byte('0' + u%10)
		u /= 10
	}
	return string(buf[i:])
}
