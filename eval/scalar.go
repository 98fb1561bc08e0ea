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
	"math"

	"github.com/pql-engine/pql/tcalc"
	"github.com/pql-engine/pql/value"
)

// Scalar primitives. Operand coercion follows the value
// model's equality promotions: ints promote to floats,
// numeric strings to numbers, and anything to bool where a
// bool is involved.

func (e *Evaluator) evalBop(n *tcalc.Bop) (*value.Value, error) {
	left, err := e.Eval(n.Left)
	if err != nil {
		return nil, err
	}
	right, err := e.Eval(n.Right)
	if err != nil {
		return nil, err
	}
	return e.binop(n.Op, left, right)
}

func (e *Evaluator) evalUop(n *tcalc.Uop) (*value.Value, error) {
	sub, err := e.Eval(n.Sub)
	if err != nil {
		return nil, err
	}
	return e.unop(n.Op, sub)
}

func (e *Evaluator) evalFunc(n *tcalc.Func) (*value.Value, error) {
	args := make([]*value.Value, len(n.Args))
	for i := range n.Args {
		v, err := e.Eval(n.Args[i])
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	switch len(args) {
	case 1:
		return e.unop(n.Op, args[0])
	case 2:
		return e.binop(n.Op, args[0], args[1])
	}
	return nil, fmt.Errorf("%w: %s of %d arguments", ErrType, n.Op, len(args))
}

func (e *Evaluator) binop(op tcalc.Op, left, right *value.Value) (*value.Value, error) {
	tb := e.ctx.Types
	switch op {
	case tcalc.OpAnd:
		return value.Bool(tb, left.Truth() && right.Truth()), nil
	case tcalc.OpOr:
		return value.Bool(tb, left.Truth() || right.Truth()), nil

	case tcalc.OpEq:
		return value.Bool(tb, value.Eq(left, right)), nil
	case tcalc.OpNotEq:
		return value.Bool(tb, !value.Eq(left, right)), nil
	case tcalc.OpLt:
		return value.Bool(tb, value.Compare(left, right) < 0), nil
	case tcalc.OpLtEq:
		return value.Bool(tb, value.Compare(left, right) <= 0), nil
	case tcalc.OpGt:
		return value.Bool(tb, value.Compare(left, right) > 0), nil
	case tcalc.OpGtEq:
		return value.Bool(tb, value.Compare(left, right) >= 0), nil

	case tcalc.OpAdd, tcalc.OpSub, tcalc.OpMul, tcalc.OpDiv, tcalc.OpMod:
		return e.arith(op, left, right)

	case tcalc.OpConcat:
		if !left.IsString() || !right.IsString() {
			return nil, fmt.Errorf("%w: concat of non-strings", ErrType)
		}
		return value.String(tb, left.StringValue()+right.StringValue()), nil

	case tcalc.OpUnion, tcalc.OpIntersect, tcalc.OpExcept:
		return e.setop(op, left, right)

	case tcalc.OpIn:
		if !right.IsSet() && !right.IsSequence() {
			return nil, fmt.Errorf("%w: membership test on non-collection", ErrType)
		}
		for i := 0; i < right.Len(); i++ {
			if value.Eq(left, right.Member(i)) {
				return value.Bool(tb, true), nil
			}
		}
		return value.Bool(tb, false), nil
	}
	return nil, fmt.Errorf("%w: bad binary operator %s", ErrType, op)
}

func (e *Evaluator) arith(op tcalc.Op, left, right *value.Value) (*value.Value, error) {
	tb := e.ctx.Types
	li, lf, lfloat, lok := value.AsNumber(left)
	ri, rf, rfloat, rok := value.AsNumber(right)
	if !lok || !rok {
		return nil, fmt.Errorf("%w: arithmetic on non-numbers", ErrType)
	}
	if !lfloat && !rfloat {
		switch op {
		case tcalc.OpAdd:
			return value.Int(tb, li+ri), nil
		case tcalc.OpSub:
			return value.Int(tb, li-ri), nil
		case tcalc.OpMul:
			return value.Int(tb, li*ri), nil
		case tcalc.OpDiv:
			if ri == 0 {
				return nil, fmt.Errorf("%w: division by zero", ErrType)
			}
			return value.Int(tb, li/ri), nil
		case tcalc.OpMod:
			if ri == 0 {
				return nil, fmt.Errorf("%w: division by zero", ErrType)
			}
			return value.Int(tb, li%ri), nil
		}
	}
	if !lfloat {
		lf = float64(li)
	}
	if !rfloat {
		rf = float64(ri)
	}
	switch op {
	case tcalc.OpAdd:
		return value.Double(tb, lf+rf), nil
	case tcalc.OpSub:
		return value.Double(tb, lf-rf), nil
	case tcalc.OpMul:
		return value.Double(tb, lf*rf), nil
	case tcalc.OpDiv:
		if rf == 0 {
			return nil, fmt.Errorf("%w: division by zero", ErrType)
		}
		return value.Double(tb, lf/rf), nil
	case tcalc.OpMod:
		return nil, fmt.Errorf("%w: modulus of floats", ErrType)
	}
	return nil, fmt.Errorf("%w: bad arithmetic operator %s", ErrType, op)
}

func (e *Evaluator) setop(op tcalc.Op, left, right *value.Value) (*value.Value, error) {
	tb := e.ctx.Types
	if (!left.IsSet() && !left.IsSequence()) || (!right.IsSet() && !right.IsSequence()) {
		return nil, fmt.Errorf("%w: set operation on non-collections", ErrType)
	}
	out := value.EmptySet(tb)
	seen := newValueSet()
	switch op {
	case tcalc.OpUnion:
		for _, src := range []*value.Value{left, right} {
			for i := 0; i < src.Len(); i++ {
				m := src.Member(i)
				if seen.insert(m.Clone()) {
					out.Add(tb, m.Clone())
				}
			}
		}
	case tcalc.OpIntersect:
		for i := 0; i < right.Len(); i++ {
			seen.insert(right.Member(i).Clone())
		}
		dedup := newValueSet()
		for i := 0; i < left.Len(); i++ {
			m := left.Member(i)
			if seen.contains(m) && dedup.insert(m.Clone()) {
				out.Add(tb, m.Clone())
			}
		}
	case tcalc.OpExcept:
		for i := 0; i < right.Len(); i++ {
			seen.insert(right.Member(i).Clone())
		}
		dedup := newValueSet()
		for i := 0; i < left.Len(); i++ {
			m := left.Member(i)
			if !seen.contains(m) && dedup.insert(m.Clone()) {
				out.Add(tb, m.Clone())
			}
		}
	}
	return out, nil
}

func (e *Evaluator) unop(op tcalc.Op, sub *value.Value) (*value.Value, error) {
	tb := e.ctx.Types
	switch op {
	case tcalc.OpNot:
		return value.Bool(tb, !sub.Truth()), nil

	case tcalc.OpNonempty:
		return value.Bool(tb, sub.Truth()), nil

	case tcalc.OpNeg, tcalc.OpAbs:
		i, f, isfloat, ok := value.AsNumber(sub)
		if !ok {
			return nil, fmt.Errorf("%w: %s of a non-number", ErrType, op)
		}
		if isfloat {
			if op == tcalc.OpNeg {
				return value.Double(tb, -f), nil
			}
			return value.Double(tb, math.Abs(f)), nil
		}
		if op == tcalc.OpNeg {
			return value.Int(tb, -i), nil
		}
		if i < 0 {
			i = -i
		}
		return value.Int(tb, i), nil

	case tcalc.OpStringLen:
		if !sub.IsString() {
			return nil, fmt.Errorf("%w: strlen of a non-string", ErrType)
		}
		return value.Int(tb, int32(len(sub.StringValue()))), nil

	case tcalc.OpCount:
		if !sub.IsSet() && !sub.IsSequence() {
			return nil, fmt.Errorf("%w: count of a non-collection", ErrType)
		}
		return value.Int(tb, int32(sub.Len())), nil

	case tcalc.OpSum:
		if !sub.IsSet() && !sub.IsSequence() {
			return nil, fmt.Errorf("%w: sum of a non-collection", ErrType)
		}
		var fsum float64
		var isum int32
		anyfloat := false
		for i := 0; i < sub.Len(); i++ {
			mi, mf, mfloat, ok := value.AsNumber(sub.Member(i))
			if !ok {
				return nil, fmt.Errorf("%w: sum of non-numbers", ErrType)
			}
			if mfloat {
				anyfloat = true
				fsum += mf
			} else {
				isum += mi
				fsum += float64(mi)
			}
		}
		if anyfloat {
			return value.Double(tb, fsum), nil
		}
		return value.Int(tb, isum), nil

	case tcalc.OpMin, tcalc.OpMax:
		if !sub.IsSet() && !sub.IsSequence() {
			return nil, fmt.Errorf("%w: %s of a non-collection", ErrType, op)
		}
		if sub.Len() == 0 {
			return value.Nil(tb), nil
		}
		best := sub.Member(0)
		for i := 1; i < sub.Len(); i++ {
			c := value.Compare(sub.Member(i), best)
			if (op == tcalc.OpMin && c < 0) || (op == tcalc.OpMax && c > 0) {
				best = sub.Member(i)
			}
		}
		return best.Clone(), nil

	case tcalc.OpChoose:
		if !sub.IsSet() && !sub.IsSequence() {
			return nil, fmt.Errorf("%w: choose of a non-collection", ErrType)
		}
		if sub.Len() == 0 {
			return value.Nil(tb), nil
		}
		return sub.Member(0).Clone(), nil
	}
	return nil, fmt.Errorf("%w: bad unary operator %s", ErrType, op)
}
