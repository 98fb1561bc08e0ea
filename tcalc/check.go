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
	"fmt"

	"github.com/pql-engine/pql/columns"
	"github.com/pql-engine/pql/datatype"
)

// Debug-only checkers. Check verifies the type and
// column-tree invariants the optimizer passes must preserve;
// CountRefs audits the reference-count discipline for one
// name.

// CountRefs walks the whole tree counting the references it
// holds to name: occurrences in column trees, column sets,
// and scalar name fields.
func CountRefs(n Node, name *columns.Name) int {
	count := 0
	Walk(visitorFunc(func(m Node) bool {
		count += m.Columns().CountRefs(name)
		switch m := m.(type) {
		case *Project:
			count += m.Cols.CountRefs(name)
		case *Strip:
			count += m.Cols.CountRefs(name)
		case *Rename:
			count += refIf(m.Old == name) + refIf(m.New == name)
		case *Order:
			count += m.Cols.CountRefs(name)
		case *Uniq:
			count += m.Cols.CountRefs(name)
		case *Nest:
			count += m.Cols.CountRefs(name) + refIf(m.NewCol == name)
		case *Unnest:
			count += refIf(m.Col == name)
		case *Distinguish:
			count += refIf(m.NewCol == name)
		case *Adjoin:
			count += refIf(m.NewCol == name)
		case *Step:
			count += refIf(m.SubCol == name) + refIf(m.LeftCol == name) +
				refIf(m.EdgeCol == name) + refIf(m.RightCol == name)
		case *Repeat:
			count += refIf(m.SubEndCol == name) + refIf(m.BodyStartCol == name) +
				refIf(m.BodyPathCol == name) + refIf(m.BodyEndCol == name) +
				refIf(m.PathCol == name) + refIf(m.EndCol == name)
		case *Scan:
			count += refIf(m.LeftCol == name) + refIf(m.EdgeCol == name) +
				refIf(m.RightCol == name)
		case *TupleExpr:
			count += m.Cols.CountRefs(name)
		}
		return true
	}), n)
	return count
}

func refIf(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Check walks the tree verifying the invariants every node
// must satisfy: the column tree's arity matches the row
// type's arity, and the derived types of the relational
// nodes agree with their inputs.
func Check(ctx *Ctx, n Node) error {
	var err error
	Walk(visitorFunc(func(m Node) bool {
		if e := checkNode(ctx, m); e != nil && err == nil {
			err = e
		}
		return err == nil
	}), n)
	return err
}

func checkNode(ctx *Ctx, n Node) error {
	typ := n.Type()
	tree := n.Columns()
	if typ == nil {
		return fmt.Errorf("tcalc: node with no type")
	}
	if tree == nil {
		return fmt.Errorf("tcalc: node with no column tree")
	}

	// relation nodes: tree arity must match row arity
	member, wrap := relMember(typ)
	if wrap != datatype.Unit && member.Arity() > 0 {
		if got, want := tree.Arity(), member.Arity(); got != want {
			return fmt.Errorf("tcalc: column tree arity %d, row arity %d at %T", got, want, n)
		}
	}

	switch n := n.(type) {
	case *Filter:
		if n.Sub.Type() != typ {
			return fmt.Errorf("tcalc: filter changes type %s -> %s", n.Sub.Type(), typ)
		}
		if !n.Sub.Columns().Eq(tree) {
			return fmt.Errorf("tcalc: filter changes columns")
		}
	case *Rename:
		if n.Sub.Type() != typ {
			return fmt.Errorf("tcalc: rename changes type")
		}
	case *Order:
		if !typ.IsSequence() {
			return fmt.Errorf("tcalc: order produces %s, want sequence", typ)
		}
	case *Uniq:
		if n.Sub.Type() != typ {
			return fmt.Errorf("tcalc: uniq changes type")
		}
	case *Lambda:
		if !typ.IsLambda() {
			return fmt.Errorf("tcalc: lambda node of type %s", typ)
		}
	case *Unnest:
		if tree.Index(n.Col) >= 0 {
			return fmt.Errorf("tcalc: unnested column %s still present", n.Col)
		}
	case *Nest:
		if tree.Index(n.NewCol) < 0 {
			return fmt.Errorf("tcalc: nested column %s missing", n.NewCol)
		}
	}
	return nil
}
