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

package value

import (
	"github.com/pql-engine/pql/layout"
)

// Layout returns a pretty-layout rendering of v. Scalars
// become single text tokens; tuples and collections become
// bracketed blocks that break across lines when a result is
// too wide for the caller's budget.
func (v *Value) Layout() *layout.Layout {
	switch v.rep {
	case repTuple:
		return bracketed("(", v.sub, ")")
	case repSet, repSequence:
		return bracketed("{", v.sub, "}")
	}
	return layout.Text(v.String())
}

func bracketed(open string, members []*Value, shut string) *layout.Layout {
	if len(members) == 0 {
		return layout.Text(open + shut)
	}
	kids := make([]*layout.Layout, len(members))
	for i, m := range members {
		l := m.Layout()
		if i < len(members)-1 {
			l = layout.Pair(l, layout.Text(","))
		}
		kids[i] = l
	}
	return layout.Indent(layout.Text(open), layout.LeftAlign(kids...), layout.Text(shut))
}

// Render formats v within the given width.
func Render(v *Value, width int) string {
	return layout.ToString(layout.Format(v.Layout(), width))
}
