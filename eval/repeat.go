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

package eval

import (
	"fmt"

	"github.com/pql-engine/pql/tcalc"
	"github.com/pql-engine/pql/value"
)

// reached associates an endpoint with the path that led
// to it.
type reached struct {
	end  *value.Value
	path *value.Value // sequence of path elements
}

// pathTable maps endpoints to their paths, keyed on
// Identical.
type pathTable struct {
	m map[uint64][]*reached
}

func newPathTable() *pathTable {
	return &pathTable{m: make(map[uint64][]*reached)}
}

func (p *pathTable) put(end, path *value.Value) {
	h := hashValue(end)
	p.m[h] = append(p.m[h], &reached{end: end, path: path})
}

func (p *pathTable) get(end *value.Value) *value.Value {
	for _, r := range p.m[hashValue(end)] {
		if value.Identical(r.end, end) {
			return r.path
		}
	}
	return nil
}

// evalRepeat runs the transitive-closure loop. The object
// graph is finite and each iteration only adds endpoints the
// visited set has not seen, so the loop terminates.
func (e *Evaluator) evalRepeat(n *tcalc.Repeat) (*value.Value, error) {
	sub, err := e.Eval(n.Sub)
	if err != nil {
		return nil, err
	}
	subIx, err := colIndex(n.Sub.Columns(), n.SubEndCol)
	if err != nil {
		return nil, err
	}
	bodyTree := n.Body.Columns()
	startIx, err := colIndex(bodyTree, n.BodyStartCol)
	if err != nil {
		return nil, err
	}
	pathIx, err := colIndex(bodyTree, n.BodyPathCol)
	if err != nil {
		return nil, err
	}
	endIx, err := colIndex(bodyTree, n.BodyEndCol)
	if err != nil {
		return nil, err
	}

	out := e.collector(n)
	for _, subrow := range rows(sub) {
		start := subrow.TupleGet(subIx)
		if !start.IsStruct() {
			return nil, fmt.Errorf("%w: repeat from a non-struct", ErrType)
		}

		visited := newValueSet()
		visited.insert(start)
		paths := newPathTable()
		paths.put(start.Clone(), value.EmptySequence(e.ctx.Types))

		var results []*reached
		frontier := []*value.Value{start.Clone()}

		for len(frontier) > 0 {
			loopset := value.EmptySet(e.ctx.Types)
			for _, f := range frontier {
				loopset.Add(e.ctx.Types, f.Clone())
			}
			restore := e.bind(n.LoopVar, loopset)
			body, err := e.Eval(n.Body)
			restore()
			if err != nil {
				return nil, err
			}

			var next []*value.Value
			for _, brow := range rows(body) {
				bstart := brow.TupleGet(startIx)
				piece := brow.TupleGet(pathIx)
				bend := brow.TupleGet(endIx)

				parent := paths.get(bstart)
				if parent == nil {
					// a body row not anchored at the frontier
					return nil, fmt.Errorf("%w: repeat body detached from frontier", ErrType)
				}
				path := parent.Clone()
				if piece.IsSequence() || piece.IsSet() {
					for i := 0; i < piece.Len(); i++ {
						path.Add(e.ctx.Types, piece.Member(i).Clone())
					}
				} else {
					path.Add(e.ctx.Types, piece.Clone())
				}

				if !visited.insert(bend.Clone()) {
					continue
				}
				endc := bend.Clone()
				paths.put(endc, path)
				results = append(results, &reached{end: endc, path: path})
				next = append(next, bend.Clone())
			}
			frontier = next
		}

		for _, r := range results {
			nr := subrow.Clone()
			nr = value.TupleAdd(e.ctx.Types, nr, r.path.Clone())
			nr = value.TupleAdd(e.ctx.Types, nr, r.end.Clone())
			out.Add(e.ctx.Types, nr)
		}
	}
	return out, nil
}
