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

// Package eval interprets tuple-calculus trees against a
// storage backend, producing values.
//
// Evaluation is bottom-up and synchronous. Type mismatches
// detected at the value layer abort the query with an error
// wrapping ErrType; backend failures are surfaced verbatim.
package eval

import (
	"errors"
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/pql-engine/pql/backend"
	"github.com/pql-engine/pql/columns"
	"github.com/pql-engine/pql/tcalc"
	"github.com/pql-engine/pql/value"
)

// ErrType is wrapped by every type-mismatch error.
var ErrType = errors.New("type mismatch")

// Evaluator runs tuple-calculus trees for one engine context.
type Evaluator struct {
	ctx *tcalc.Ctx
	be  backend.Backend
	env map[*tcalc.Var]*value.Value
}

// New returns an evaluator bound to a backend.
func New(ctx *tcalc.Ctx, be backend.Backend) *Evaluator {
	return &Evaluator{
		ctx: ctx,
		be:  be,
		env: make(map[*tcalc.Var]*value.Value),
	}
}

// bind sets a variable for the duration of a call and
// returns a restore function.
func (e *Evaluator) bind(v *tcalc.Var, val *value.Value) func() {
	old, had := e.env[v]
	e.env[v] = val
	return func() {
		if had {
			e.env[v] = old
		} else {
			delete(e.env, v)
		}
	}
}

// rows views a relation value as its rows: the members of a
// set or sequence, or the value itself as a single row.
func rows(v *value.Value) []*value.Value {
	if v.IsSet() || v.IsSequence() {
		out := make([]*value.Value, v.Len())
		for i := range out {
			out[i] = v.Member(i)
		}
		return out
	}
	return []*value.Value{v}
}

// collector accumulates result rows into a collection of the
// same kind as the node's result type.
func (e *Evaluator) collector(n tcalc.Node) *value.Value {
	if n.Type().IsSequence() {
		return value.EmptySequence(e.ctx.Types)
	}
	return value.EmptySet(e.ctx.Types)
}

// colIndex resolves a column to a row slot index.
func colIndex(tree *columns.Tree, col *columns.Name) (int, error) {
	ix := tree.Index(col)
	if ix < 0 {
		return 0, fmt.Errorf("%w: no column %s", ErrType, col)
	}
	return ix, nil
}

// indexSet resolves every column of a set against a tree.
func indexSet(tree *columns.Tree, cols *columns.Set) ([]int, error) {
	out := make([]int, cols.Num())
	for i := 0; i < cols.Num(); i++ {
		ix, err := colIndex(tree, cols.Get(i))
		if err != nil {
			return nil, err
		}
		out[i] = ix
	}
	return out, nil
}

// pickRow builds a fresh tuple from the given slots of row.
func (e *Evaluator) pickRow(row *value.Value, keep []int) *value.Value {
	if len(keep) == 1 {
		return row.TupleGet(keep[0]).Clone()
	}
	t := value.TupleBegin(e.ctx.Types, len(keep))
	for i, ix := range keep {
		t.TupleAssign(i, row.TupleGet(ix).Clone())
	}
	return t.TupleEnd(e.ctx.Types)
}

// apply evaluates a predicate or adjoined function over one
// row. A lambda node binds its variable to the row; any other
// expression is evaluated as-is.
func (e *Evaluator) apply(fn tcalc.Node, row *value.Value) (*value.Value, error) {
	if lam, ok := fn.(*tcalc.Lambda); ok {
		restore := e.bind(lam.Var, row)
		defer restore()
		return e.Eval(lam.Body)
	}
	return e.Eval(fn)
}

// predTrue evaluates an optional predicate over a row.
func (e *Evaluator) predTrue(pred tcalc.Node, row *value.Value) (bool, error) {
	if pred == nil {
		return true, nil
	}
	v, err := e.apply(pred, row)
	if err != nil {
		return false, err
	}
	return v.Truth(), nil
}

// Eval interprets n and returns its value.
func (e *Evaluator) Eval(n tcalc.Node) (*value.Value, error) {
	switch n := n.(type) {
	case *tcalc.Value:
		return n.Val.Clone(), nil

	case *tcalc.ReadVar:
		v, ok := e.env[n.Var]
		if !ok {
			return nil, fmt.Errorf("%w: unbound variable .V%d", ErrType, n.Var.ID())
		}
		return v.Clone(), nil

	case *tcalc.ReadGlobal:
		v, err := e.be.ReadGlobal(n.Global.Name())
		if err != nil {
			return nil, err
		}
		if v == nil {
			return value.Nil(e.ctx.Types), nil
		}
		return v, nil

	case *tcalc.Let:
		val, err := e.Eval(n.Value)
		if err != nil {
			return nil, err
		}
		restore := e.bind(n.Var, val)
		defer restore()
		return e.Eval(n.Body)

	case *tcalc.Map:
		return e.evalMap(n)

	case *tcalc.Filter:
		return e.evalFilter(n)

	case *tcalc.Project:
		return e.evalProject(n)

	case *tcalc.Strip:
		return e.evalStrip(n)

	case *tcalc.Rename:
		return e.Eval(n.Sub)

	case *tcalc.Join:
		return e.evalJoin(n)

	case *tcalc.Order:
		return e.evalOrder(n)

	case *tcalc.Uniq:
		return e.evalUniq(n)

	case *tcalc.Nest:
		return e.evalNest(n)

	case *tcalc.Unnest:
		return e.evalUnnest(n)

	case *tcalc.Distinguish:
		return e.evalDistinguish(n)

	case *tcalc.Adjoin:
		return e.evalAdjoin(n)

	case *tcalc.Step:
		return e.evalStep(n)

	case *tcalc.Repeat:
		return e.evalRepeat(n)

	case *tcalc.Scan:
		return e.evalScan(n)

	case *tcalc.Bop:
		return e.evalBop(n)

	case *tcalc.Uop:
		return e.evalUop(n)

	case *tcalc.Func:
		return e.evalFunc(n)

	case *tcalc.Lambda:
		return nil, fmt.Errorf("%w: lambda outside application", ErrType)

	case *tcalc.Apply:
		lam, ok := n.Lambda.(*tcalc.Lambda)
		if !ok {
			return nil, fmt.Errorf("%w: apply of non-lambda", ErrType)
		}
		arg, err := e.Eval(n.Arg)
		if err != nil {
			return nil, err
		}
		return e.apply(lam, arg)

	case *tcalc.CreatePathElement:
		return e.evalCreatePathElement(n)

	case *tcalc.Splatter:
		// the attached name matters to downstream record
		// construction, not to the value itself
		if _, err := e.Eval(n.Name); err != nil {
			return nil, err
		}
		return e.Eval(n.Value)

	case *tcalc.TupleExpr:
		t := value.TupleBegin(e.ctx.Types, len(n.Exprs))
		for i := range n.Exprs {
			v, err := e.Eval(n.Exprs[i])
			if err != nil {
				return nil, err
			}
			t.TupleAssign(i, v)
		}
		return t.TupleEnd(e.ctx.Types), nil
	}
	return nil, fmt.Errorf("%w: unknown node", ErrType)
}

func (e *Evaluator) evalMap(n *tcalc.Map) (*value.Value, error) {
	set, err := e.Eval(n.Set)
	if err != nil {
		return nil, err
	}
	out := e.collector(n)
	for _, m := range rows(set) {
		restore := e.bind(n.Var, m)
		v, err := e.Eval(n.Result)
		restore()
		if err != nil {
			return nil, err
		}
		out.Add(e.ctx.Types, v)
	}
	return out, nil
}

func (e *Evaluator) evalFilter(n *tcalc.Filter) (*value.Value, error) {
	sub, err := e.Eval(n.Sub)
	if err != nil {
		return nil, err
	}
	out := e.collector(n)
	for _, row := range rows(sub) {
		keep, err := e.predTrue(n.Pred, row)
		if err != nil {
			return nil, err
		}
		if keep {
			out.Add(e.ctx.Types, row.Clone())
		}
	}
	return out, nil
}

func (e *Evaluator) evalProject(n *tcalc.Project) (*value.Value, error) {
	sub, err := e.Eval(n.Sub)
	if err != nil {
		return nil, err
	}
	keep, err := indexSet(n.Sub.Columns(), n.Cols)
	if err != nil {
		return nil, err
	}
	if !sub.IsSet() && !sub.IsSequence() {
		return e.pickRow(sub, keep), nil
	}
	out := e.collector(n)
	for _, row := range rows(sub) {
		out.Add(e.ctx.Types, e.pickRow(row, keep))
	}
	return out, nil
}

func (e *Evaluator) evalStrip(n *tcalc.Strip) (*value.Value, error) {
	sub, err := e.Eval(n.Sub)
	if err != nil {
		return nil, err
	}
	tree := n.Sub.Columns()
	var keep []int
	for i := 0; i < tree.Arity(); i++ {
		st := tree.Sub(i)
		if st.Whole() != nil && n.Cols.Contains(st.Whole()) {
			continue
		}
		keep = append(keep, i)
	}
	if !sub.IsSet() && !sub.IsSequence() {
		if len(keep) == 0 {
			return value.Unit(e.ctx.Types), nil
		}
		return e.pickRow(sub, keep), nil
	}
	out := e.collector(n)
	for _, row := range rows(sub) {
		if len(keep) == 0 {
			out.Add(e.ctx.Types, value.Unit(e.ctx.Types))
			continue
		}
		out.Add(e.ctx.Types, e.pickRow(row, keep))
	}
	return out, nil
}

func (e *Evaluator) evalJoin(n *tcalc.Join) (*value.Value, error) {
	left, err := e.Eval(n.Left)
	if err != nil {
		return nil, err
	}
	right, err := e.Eval(n.Right)
	if err != nil {
		return nil, err
	}
	out := e.collector(n)
	for _, lrow := range rows(left) {
		for _, rrow := range rows(right) {
			joined := value.Paste(e.ctx.Types, lrow.Clone(), rrow.Clone())
			keep, err := e.predTrue(n.Pred, joined)
			if err != nil {
				return nil, err
			}
			if keep {
				out.Add(e.ctx.Types, joined)
			}
		}
	}
	return out, nil
}

func (e *Evaluator) evalOrder(n *tcalc.Order) (*value.Value, error) {
	sub, err := e.Eval(n.Sub)
	if err != nil {
		return nil, err
	}
	keys, err := indexSet(n.Sub.Columns(), n.Cols)
	if err != nil {
		return nil, err
	}
	sorted := slices.Clone(rows(sub))
	stableSortBy(sorted, func(a, b *value.Value) int {
		for _, ix := range keys {
			if c := value.Compare(a.TupleGet(ix), b.TupleGet(ix)); c != 0 {
				return c
			}
		}
		return 0
	})
	out := value.EmptySequence(e.ctx.Types)
	for _, row := range sorted {
		out.Add(e.ctx.Types, row.Clone())
	}
	return out, nil
}

// stableSortBy is an insertion sort: stable, and fine at the
// row counts the temp graph produces.
func stableSortBy(vals []*value.Value, cmp func(a, b *value.Value) int) {
	for i := 1; i < len(vals); i++ {
		for j := i; j > 0 && cmp(vals[j], vals[j-1]) < 0; j-- {
			vals[j], vals[j-1] = vals[j-1], vals[j]
		}
	}
}

func (e *Evaluator) evalUniq(n *tcalc.Uniq) (*value.Value, error) {
	sub, err := e.Eval(n.Sub)
	if err != nil {
		return nil, err
	}
	keys, err := indexSet(n.Sub.Columns(), n.Cols)
	if err != nil {
		return nil, err
	}
	out := e.collector(n)
	var prev *value.Value
	for _, row := range rows(sub) {
		if prev != nil {
			same := true
			for _, ix := range keys {
				if !value.Eq(prev.TupleGet(ix), row.TupleGet(ix)) {
					same = false
					break
				}
			}
			if same {
				continue
			}
		}
		out.Add(e.ctx.Types, row.Clone())
		prev = row
	}
	return out, nil
}

func (e *Evaluator) evalNest(n *tcalc.Nest) (*value.Value, error) {
	sub, err := e.Eval(n.Sub)
	if err != nil {
		return nil, err
	}
	tree := n.Sub.Columns()
	nested, err := indexSet(tree, n.Cols)
	if err != nil {
		return nil, err
	}
	var rest []int
	for i := 0; i < tree.Arity(); i++ {
		st := tree.Sub(i)
		if st.Whole() != nil && n.Cols.Contains(st.Whole()) {
			continue
		}
		rest = append(rest, i)
	}

	type group struct {
		key    *value.Value
		restof *value.Value
		coll   *value.Value
	}
	var order []*group
	byhash := make(map[uint64][]*group)

	for _, row := range rows(sub) {
		key := e.pickRow(row, rest)
		h := hashValue(key)
		var g *group
		for _, have := range byhash[h] {
			if value.Identical(have.key, key) {
				g = have
				break
			}
		}
		if g == nil {
			g = &group{key: key, restof: key.Clone(), coll: value.EmptySet(e.ctx.Types)}
			byhash[h] = append(byhash[h], g)
			order = append(order, g)
		}
		g.coll.Add(e.ctx.Types, e.pickRow(row, nested))
	}

	out := e.collector(n)
	for _, g := range order {
		out.Add(e.ctx.Types, value.TupleAdd(e.ctx.Types, g.restof, g.coll))
	}
	return out, nil
}

func (e *Evaluator) evalUnnest(n *tcalc.Unnest) (*value.Value, error) {
	sub, err := e.Eval(n.Sub)
	if err != nil {
		return nil, err
	}
	tree := n.Sub.Columns()
	ix, err := colIndex(tree, n.Col)
	if err != nil {
		return nil, err
	}
	var rest []int
	for i := 0; i < tree.Arity(); i++ {
		if i != ix {
			rest = append(rest, i)
		}
	}
	out := e.collector(n)
	for _, row := range rows(sub) {
		inner := row.TupleGet(ix)
		if !inner.IsSet() && !inner.IsSequence() {
			return nil, fmt.Errorf("%w: unnest of non-collection value", ErrType)
		}
		for i := 0; i < inner.Len(); i++ {
			var nr *value.Value
			if len(rest) == 0 {
				nr = value.Unit(e.ctx.Types)
			} else {
				nr = e.pickRow(row, rest)
			}
			nr = value.Paste(e.ctx.Types, nr, inner.Member(i).Clone())
			out.Add(e.ctx.Types, nr)
		}
	}
	return out, nil
}

func (e *Evaluator) evalDistinguish(n *tcalc.Distinguish) (*value.Value, error) {
	sub, err := e.Eval(n.Sub)
	if err != nil {
		return nil, err
	}
	out := e.collector(n)
	for _, row := range rows(sub) {
		out.Add(e.ctx.Types, value.TupleAdd(e.ctx.Types, row.Clone(),
			value.NewDistinguisher(e.ctx.Types)))
	}
	return out, nil
}

func (e *Evaluator) evalAdjoin(n *tcalc.Adjoin) (*value.Value, error) {
	left, err := e.Eval(n.Left)
	if err != nil {
		return nil, err
	}
	out := e.collector(n)
	for _, row := range rows(left) {
		v, err := e.apply(n.Func, row)
		if err != nil {
			return nil, err
		}
		out.Add(e.ctx.Types, value.TupleAdd(e.ctx.Types, row.Clone(), v))
	}
	return out, nil
}

func (e *Evaluator) evalStep(n *tcalc.Step) (*value.Value, error) {
	sub, err := e.Eval(n.Sub)
	if err != nil {
		return nil, err
	}
	ix, err := colIndex(n.Sub.Columns(), n.SubCol)
	if err != nil {
		return nil, err
	}
	out := e.collector(n)
	for _, row := range rows(sub) {
		obj := row.TupleGet(ix)
		if !obj.IsStruct() {
			return nil, fmt.Errorf("%w: following an edge on a non-struct", ErrType)
		}
		var steps []*value.Value // (edge, target) pairs
		if n.Edge != nil {
			targets, err := e.be.Follow(obj, n.Edge, n.Reversed)
			if err != nil {
				return nil, err
			}
			for i := 0; i < targets.Len(); i++ {
				steps = append(steps, value.Tuple(e.ctx.Types,
					n.Edge.Clone(), targets.Member(i).Clone()))
			}
		} else {
			pairs, err := e.be.FollowAll(obj, n.Reversed)
			if err != nil {
				return nil, err
			}
			for i := 0; i < pairs.Len(); i++ {
				steps = append(steps, pairs.Member(i).Clone())
			}
		}
		for _, st := range steps {
			nr := row.Clone()
			nr = value.TupleAdd(e.ctx.Types, nr, obj.Clone())
			nr = value.TupleAdd(e.ctx.Types, nr, st.TupleGet(0).Clone())
			nr = value.TupleAdd(e.ctx.Types, nr, st.TupleGet(1).Clone())
			keep, err := e.predTrue(n.Pred, nr)
			if err != nil {
				return nil, err
			}
			if keep {
				out.Add(e.ctx.Types, nr)
			}
		}
	}
	return out, nil
}

func (e *Evaluator) evalScan(n *tcalc.Scan) (*value.Value, error) {
	universe, err := e.be.ReadGlobal(backend.GlobalVersions)
	if err != nil {
		return nil, err
	}
	out := e.collector(n)
	if universe == nil {
		return out, nil
	}
	for _, obj := range rows(universe) {
		if !obj.IsStruct() {
			continue
		}
		pairs, err := e.be.FollowAll(obj, false)
		if err != nil {
			return nil, err
		}
		for i := 0; i < pairs.Len(); i++ {
			pair := pairs.Member(i)
			row := value.Tuple(e.ctx.Types,
				obj.Clone(), pair.TupleGet(0).Clone(), pair.TupleGet(1).Clone())
			keep, err := e.predTrue(n.Pred, row)
			if err != nil {
				return nil, err
			}
			if keep {
				out.Add(e.ctx.Types, row)
			}
		}
	}
	return out, nil
}

func (e *Evaluator) evalCreatePathElement(n *tcalc.CreatePathElement) (*value.Value, error) {
	sub, err := e.Eval(n.Sub)
	if err != nil {
		return nil, err
	}
	if sub.TupleArity() != 3 {
		return nil, fmt.Errorf("%w: pathelement of arity-%d tuple", ErrType, sub.TupleArity())
	}
	return value.PathElement(e.ctx.Types,
		sub.TupleGet(0).Clone(),
		sub.TupleGet(1).Clone(),
		sub.TupleGet(2).Clone()), nil
}
