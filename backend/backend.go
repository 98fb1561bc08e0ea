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

// Package backend defines the contract between the query
// engine and its storage. The engine fetches graph data one
// edge at a time through these five operations; everything
// else (layout, indexing, caching) is the backend's business.
package backend

import (
	"errors"

	"github.com/pql-engine/pql/value"
)

// Well-known global names. Backends may define more.
const (
	// GlobalProvenance is the singleton seed object of the
	// provenance graph.
	GlobalProvenance = "Provenance"
	// GlobalVersions is the set of all versioned objects;
	// it is also the universe SCAN iterates.
	GlobalVersions = "VERSIONS"
)

var (
	// ErrReadOnly is returned by Assign on read-only
	// backends, and for objects not created by NewObject.
	ErrReadOnly = errors.New("backend: store is read-only")
	// ErrNotObject is returned when an operation expects a
	// database object and is handed something else.
	ErrNotObject = errors.New("backend: not a database object")
)

// Backend is the storage interface.
//
// Follow returns the set of values v such that an edge
// labeled edge goes from obj to v (or, reversed, from v to
// obj). FollowAll returns every outgoing (or incoming) edge
// together with its target (or source) as (edge, value)
// pairs. Returned sets are typed; empty sets have member
// type bottom.
//
// Calls are synchronous; concurrent backends must serialize
// per engine context.
type Backend interface {
	// ReadGlobal resolves a storage root by name; the
	// result is nil (not an error) when name is unbound.
	ReadGlobal(name string) (*value.Value, error)

	// NewObject creates a fresh temp object and returns
	// its struct value.
	NewObject() (*value.Value, error)

	// Assign adds an (edge, val) pair to an object created
	// by NewObject.
	Assign(obj, edge, val *value.Value) error

	// Follow returns the set of values reached from obj
	// over edges labeled edge.
	Follow(obj, edge *value.Value, reversed bool) (*value.Value, error)

	// FollowAll returns the set of (edge, value) pairs for
	// every edge incident to obj in the given direction.
	FollowAll(obj *value.Value, reversed bool) (*value.Value, error)
}
