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

// Package columns implements column names, column sets, and the
// column trees attached to tuple-calculus expressions.
//
// A Name is a shared handle: two names are equal iff they are the
// same handle, regardless of their display strings. Every slot
// that retains a name holds one reference; the owning Pool counts
// live references so tests can verify that destroying a tree
// releases everything it held.
package columns

import (
	"strconv"

	"github.com/pql-engine/pql/internal/assert"
)

// Pool allocates names for one engine context and tracks how
// many references to them are still live.
type Pool struct {
	nextid uint32
	live   int64
}

// NewPool returns an empty name pool.
func NewPool() *Pool {
	return &Pool{}
}

// Live returns the number of outstanding name references.
// It is zero after every tree and set has been destroyed.
func (p *Pool) Live() int64 { return p.live }

// Name is a reference-counted column-name handle.
type Name struct {
	pool *Pool
	id   uint32
	name string // "" when anonymous
	refs int32
}

// NewName returns a fresh named handle with one reference.
func (p *Pool) NewName(name string) *Name {
	p.nextid++
	p.live++
	return &Name{pool: p, id: p.nextid, name: name, refs: 1}
}

// Fresh returns a fresh anonymous handle with one reference.
// Its display string is materialized on demand as ".Cn".
func (p *Pool) Fresh() *Name {
	return p.NewName("")
}

// String returns the display string for the name.
func (n *Name) String() string {
	if n.name == "" {
		return ".C" + strconv.FormatUint(uint64(n.id), 10)
	}
	return n.name
}

// Incref takes an additional reference.
func (n *Name) Incref() *Name {
	if n.refs <= 0 {
		assert.Failf("columns: incref of dead name %s", n.String())
	}
	n.refs++
	n.pool.live++
	return n
}

// Decref releases one reference.
func (n *Name) Decref() {
	if n.refs <= 0 {
		assert.Failf("columns: refcount underflow on name %s", n.String())
	}
	n.refs--
	n.pool.live--
}

// Refs returns the current reference count, for the
// debug-only audits.
func (n *Name) Refs() int32 { return n.refs }

func incref(n *Name) *Name {
	if n == nil {
		return nil
	}
	return n.Incref()
}

func decref(n *Name) {
	if n != nil {
		n.Decref()
	}
}
