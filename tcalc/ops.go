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

import "github.com/pql-engine/pql/datatype"

// Op is a scalar, string, logical, or set-theoretic builtin
// used by Bop, Uop, and Func nodes.
type Op int

const (
	OpNone Op = iota

	// logical
	OpAnd
	OpOr
	OpNot

	// comparison
	OpEq
	OpNotEq
	OpLt
	OpLtEq
	OpGt
	OpGtEq

	// arithmetic
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpNeg
	OpAbs

	// string
	OpConcat
	OpStringLen

	// set-theoretic
	OpUnion
	OpIntersect
	OpExcept
	OpIn
	OpNonempty

	// collection
	OpCount
	OpSum
	OpMin
	OpMax
	OpChoose
)

func (op Op) String() string {
	switch op {
	case OpAnd:
		return "and"
	case OpOr:
		return "or"
	case OpNot:
		return "not"
	case OpEq:
		return "=="
	case OpNotEq:
		return "!="
	case OpLt:
		return "<"
	case OpLtEq:
		return "<="
	case OpGt:
		return ">"
	case OpGtEq:
		return ">="
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpMod:
		return "%"
	case OpNeg:
		return "neg"
	case OpAbs:
		return "abs"
	case OpConcat:
		return "++"
	case OpStringLen:
		return "strlen"
	case OpUnion:
		return "union"
	case OpIntersect:
		return "intersect"
	case OpExcept:
		return "except"
	case OpIn:
		return "in"
	case OpNonempty:
		return "nonempty"
	case OpCount:
		return "count"
	case OpSum:
		return "sum"
	case OpMin:
		return "min"
	case OpMax:
		return "max"
	case OpChoose:
		return "choose"
	}
	return "none"
}

// resultType computes the datatype of an operator application
// given its operand types.
func (op Op) resultType(tb *datatype.Table, args ...*datatype.Type) *datatype.Type {
	switch op {
	case OpAnd, OpOr, OpNot,
		OpEq, OpNotEq, OpLt, OpLtEq, OpGt, OpGtEq,
		OpIn, OpNonempty:
		return tb.Bool()
	case OpAdd, OpSub, OpMul, OpDiv, OpMod:
		if len(args) == 2 {
			if args[0].IsInt() && args[1].IsInt() && op != OpDiv {
				return tb.Int()
			}
			if args[0].IsAnyNumber() && args[1].IsAnyNumber() {
				if args[0].IsDouble() || args[1].IsDouble() || op == OpDiv {
					return tb.Double()
				}
				return tb.Number()
			}
		}
		return tb.Number()
	case OpNeg, OpAbs:
		if len(args) == 1 && args[0].IsAnyNumber() {
			return args[0]
		}
		return tb.Number()
	case OpConcat:
		return tb.StringType()
	case OpStringLen, OpCount:
		return tb.Int()
	case OpUnion, OpIntersect, OpExcept:
		if len(args) == 2 {
			return tb.Generalize(args[0], args[1])
		}
		return tb.Top()
	case OpSum:
		return tb.Number()
	case OpMin, OpMax:
		if len(args) == 1 && (args[0].IsSet() || args[0].IsSequence()) {
			return args[0].Member()
		}
		return tb.Top()
	case OpChoose:
		if len(args) == 1 && (args[0].IsSet() || args[0].IsSequence()) {
			return args[0].Member()
		}
		return tb.Top()
	}
	return tb.Top()
}
