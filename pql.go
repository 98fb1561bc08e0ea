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

// Package pql is the provenance query engine: it compiles
// tuple-calculus plans, optimizes them, and executes them
// against a pluggable storage backend.
//
// A Context owns everything a query touches: the interned
// datatype table, the column-name pool, the backend handle,
// and the per-context error list. Contexts are single
// threaded: one compile-and-execute cycle runs to completion
// before the next begins, and values and trees must never
// cross contexts.
package pql

import (
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/pql-engine/pql/backend"
	"github.com/pql-engine/pql/datatype"
	"github.com/pql-engine/pql/eval"
	"github.com/pql-engine/pql/internal/assert"
	"github.com/pql-engine/pql/tcalc"
	"github.com/pql-engine/pql/value"
)

// ErrCompile is returned by Query when the context has
// pending compile errors.
var ErrCompile = errors.New("pql: compile errors pending")

// Context is one engine instance.
type Context struct {
	tc *tcalc.Ctx
	be backend.Backend

	compileErrs []string

	// OnAssert, when set, observes engine assertion
	// failures before the query is aborted.
	OnAssert func(msg string)
}

// New returns a context bound to a backend. be may be nil
// when the backend itself needs the context's type table;
// bind it with Bind before running queries.
func New(be backend.Backend) *Context {
	return &Context{tc: tcalc.NewCtx(), be: be}
}

// Bind attaches the storage backend.
func (c *Context) Bind(be backend.Backend) {
	c.be = be
}

// TC returns the tuple-calculus context used to build plans.
func (c *Context) TC() *tcalc.Ctx { return c.tc }

// Types returns the context's interned type table.
func (c *Context) Types() *datatype.Table { return c.tc.Types }

// Backend returns the bound storage backend.
func (c *Context) Backend() backend.Backend { return c.be }

// CompileErrorf records a compile error. The external
// translator calls this for syntactic and static-semantic
// failures; while any are pending, Query refuses to return
// a handle.
func (c *Context) CompileErrorf(format string, args ...any) {
	c.compileErrs = append(c.compileErrs, fmt.Sprintf(format, args...))
}

// CompileErrors returns and clears the pending compile
// errors.
func (c *Context) CompileErrors() []string {
	errs := c.compileErrs
	c.compileErrs = nil
	return errs
}

// Live returns the number of live column-name, variable, and
// global references; zero when every query has been
// destroyed.
func (c *Context) Live() int64 {
	return c.tc.Names.Live() + c.tc.LiveVars()
}

// Close tears down the context and returns the number of
// leaked references, which is zero on a correct run.
func (c *Context) Close() int64 {
	leaked := c.Live()
	if leaked != 0 {
		log.Printf("pql: context closed with %d live references", leaked)
	}
	return leaked
}

// Query wraps a compiled plan. The query owns its tree;
// Destroy releases it.
type Query struct {
	ctx  *Context
	id   uuid.UUID
	root tcalc.Node
	dead bool
}

// Query returns a handle for an assembled plan, taking
// ownership of root. It fails if compile errors are pending.
func (c *Context) Query(root tcalc.Node) (*Query, error) {
	if len(c.compileErrs) > 0 {
		tcalc.Destroy(root)
		return nil, fmt.Errorf("%w: %s", ErrCompile, c.compileErrs[0])
	}
	return &Query{ctx: c, id: uuid.New(), root: root}, nil
}

// ID returns the query's unique id.
func (q *Query) ID() uuid.UUID { return q.id }

// Plan returns the current plan tree, borrowed.
func (q *Query) Plan() tcalc.Node { return q.root }

// Dump pretty-prints the current plan.
func (q *Query) Dump(width int) string {
	return tcalc.Dump(q.root, width)
}

// Optimize runs the rewrite passes: baseopt's algebraic
// rules (with constant folding through the executor), then
// indexify's graph-probe rules. The rewritten plan keeps the
// root's type and column tree; the debug checker verifies
// the invariants after each pass.
func (q *Query) Optimize() error {
	folder := eval.New(q.ctx.tc, q.ctx.be)
	q.root = tcalc.Baseopt(q.ctx.tc, q.root, folder)
	if err := tcalc.Check(q.ctx.tc, q.root); err != nil {
		return err
	}
	q.root = tcalc.Indexify(q.ctx.tc, q.root)
	return tcalc.Check(q.ctx.tc, q.root)
}

// Run executes the plan against the context's backend.
// Type errors abort the query and are returned; the context
// stays usable for subsequent queries. Engine assertion
// failures are routed through OnAssert and surface as
// errors rather than aborting the process.
func (q *Query) Run() (result *value.Value, err error) {
	if q.dead {
		return nil, fmt.Errorf("pql: query %s already destroyed", q.id)
	}
	defer func() {
		if r := recover(); r != nil {
			ae, ok := r.(*assert.Error)
			if !ok {
				panic(r)
			}
			result = nil
			err = ae
		}
	}()
	if q.ctx.OnAssert != nil {
		old := assert.Handler
		assert.Handler = q.ctx.OnAssert
		defer func() { assert.Handler = old }()
	}
	return eval.New(q.ctx.tc, q.ctx.be).Eval(q.root)
}

// Destroy releases the plan tree.
func (q *Query) Destroy() {
	if !q.dead {
		tcalc.Destroy(q.root)
		q.root = nil
		q.dead = true
	}
}
