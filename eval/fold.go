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
	"github.com/pql-engine/pql/tcalc"
	"github.com/pql-engine/pql/value"
)

// Fold evaluates a constant subtree for the optimizer's
// constant folding; it satisfies tcalc.Folder.
func (e *Evaluator) Fold(n tcalc.Node) (*value.Value, error) {
	return e.Eval(n)
}
