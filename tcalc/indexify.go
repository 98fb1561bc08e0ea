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
	"github.com/pql-engine/pql/backend"
	"github.com/pql-engine/pql/columns"
	"github.com/pql-engine/pql/value"
)

// Indexify rewrites graph-shaped patterns into index probes.
// A STEP with a concrete edge value is the nominal form the
// backend can serve with one lookup; a STEP over every edge
// followed by a filter on the edge column is the shape the
// translator tends to produce. Indexify moves the constant
// edge into the step, and rewrites a SCAN filtered on one
// edge value into such a step over the universe of objects,
// so the backend's Follow replaces a FollowAll-and-discard
// loop.
func Indexify(ctx *Ctx, n Node) Node {
	for {
		p := &indexifyPass{ctx: ctx}
		n = Rewrite(p, n)
		if !p.changed {
			return n
		}
	}
}

type indexifyPass struct {
	ctx     *Ctx
	changed bool
}

func (p *indexifyPass) Walk(n Node) Rewriter { return p }

func (p *indexifyPass) Rewrite(n Node) Node {
	switch n := n.(type) {
	case *Step:
		if n.Edge == nil && n.Pred != nil {
			if col, v, ok := edgeEqPattern(n.Pred); ok && col == n.EdgeCol {
				n.Edge = v.Clone()
				Destroy(n.Pred)
				n.Pred = nil
				p.changed = true
			}
		}
	case *Filter:
		return p.scanToStep(n)
	}
	return n
}

// scanToStep rewrites a scan filtered to one edge value into
// the nominal index probe: a step over the universe of
// objects with a concrete edge, projected back to the scan's
// three columns.
func (p *indexifyPass) scanToStep(n *Filter) Node {
	scan, ok := n.Sub.(*Scan)
	if !ok || scan.Pred != nil {
		return n
	}
	col, v, ok := edgeEqPattern(n.Pred)
	if !ok || col != scan.EdgeCol {
		return n
	}
	ctx := p.ctx
	u := ctx.Names.Fresh()
	universe := ctx.NewReadGlobal(backend.GlobalVersions,
		ctx.Types.Set(ctx.Types.Struct()), columns.Scalar(u.Incref()))
	step := ctx.NewStep(universe, u, v.Clone(), false,
		scan.LeftCol.Incref(), scan.EdgeCol.Incref(), scan.RightCol.Incref(), nil)
	out := ctx.NewProject(step,
		columns.NewSet(scan.LeftCol, scan.EdgeCol, scan.RightCol))
	n.Sub = nil
	Destroy(n) // the filter shell and its predicate
	Destroy(scan)
	p.changed = true
	return out
}

// edgeEqPattern matches a row predicate of the shape
// lambda r: r.col == constant (in either operand order) and
// returns the column and the constant.
func edgeEqPattern(pred Node) (*columns.Name, *value.Value, bool) {
	lam, ok := pred.(*Lambda)
	if !ok {
		return nil, nil, false
	}
	bop, ok := lam.Body.(*Bop)
	if !ok || bop.Op != OpEq {
		return nil, nil, false
	}
	if col, ok := readColumn(bop.Left, lam.Var); ok {
		if lit, ok := bop.Right.(*Value); ok {
			return col, lit.Val, true
		}
	}
	if col, ok := readColumn(bop.Right, lam.Var); ok {
		if lit, ok := bop.Left.(*Value); ok {
			return col, lit.Val, true
		}
	}
	return nil, nil, false
}

// readColumn matches PROJECT(READVAR(v), {col}).
func readColumn(n Node, v *Var) (*columns.Name, bool) {
	proj, ok := n.(*Project)
	if !ok || proj.Cols.Num() != 1 {
		return nil, false
	}
	rv, ok := proj.Sub.(*ReadVar)
	if !ok || rv.Var != v {
		return nil, false
	}
	return proj.Cols.Get(0), true
}
