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

// Package tdb is the in-memory graph backend: the temp-object
// store used for intermediate objects created during query
// execution, and the test database the engine's own tests run
// against.
//
// The store is an append-only array of objects; each object
// holds an ordered list of (edge, value) pairs. Objects are
// identified by their index and are never removed.
package tdb

import (
	"fmt"

	"github.com/pql-engine/pql/backend"
	"github.com/pql-engine/pql/datatype"
	"github.com/pql-engine/pql/value"
)

// DB is an in-memory object graph.
type DB struct {
	tb      *datatype.Table
	dbnum   uint32
	objs    []*object
	globals map[string]*value.Value
}

type object struct {
	edges []edgePair
}

type edgePair struct {
	edge *value.Value
	val  *value.Value
}

// New returns an empty graph whose objects live in the given
// storage region.
func New(tb *datatype.Table, dbnum uint32) *DB {
	return &DB{
		tb:      tb,
		dbnum:   dbnum,
		globals: make(map[string]*value.Value),
	}
}

// SetGlobal binds a storage root, cloning v.
func (db *DB) SetGlobal(name string, v *value.Value) {
	db.globals[name] = v.Clone()
}

// NumObjects returns the number of objects in the store.
func (db *DB) NumObjects() int { return len(db.objs) }

// ReadGlobal resolves a global. Provenance defaults to object
// zero when present, and VERSIONS is the set of every object
// in the store.
func (db *DB) ReadGlobal(name string) (*value.Value, error) {
	if v, ok := db.globals[name]; ok {
		return v.Clone(), nil
	}
	switch name {
	case backend.GlobalProvenance:
		if len(db.objs) > 0 {
			return db.objvalue(0), nil
		}
	case backend.GlobalVersions:
		set := value.EmptySet(db.tb)
		for i := range db.objs {
			set.Add(db.tb, db.objvalue(uint64(i)))
		}
		return set, nil
	}
	return nil, nil
}

// NewObject appends a fresh object and returns its struct
// value.
func (db *DB) NewObject() (*value.Value, error) {
	db.objs = append(db.objs, &object{})
	return db.objvalue(uint64(len(db.objs) - 1)), nil
}

func (db *DB) objvalue(oid uint64) *value.Value {
	return value.Struct(db.tb, value.DBObj{DBNum: db.dbnum, OID: oid})
}

// lookup resolves a struct value to one of our objects.
func (db *DB) lookup(obj *value.Value) (*object, uint64, error) {
	if !obj.IsStruct() {
		return nil, 0, backend.ErrNotObject
	}
	ref := obj.StructValue()
	if ref.DBNum != db.dbnum || ref.OID >= uint64(len(db.objs)) {
		return nil, 0, fmt.Errorf("tdb: no object {%d.%d}", ref.DBNum, ref.OID)
	}
	return db.objs[ref.OID], ref.OID, nil
}

// Assign adds an (edge, val) pair to obj, cloning both.
func (db *DB) Assign(obj, edge, val *value.Value) error {
	o, _, err := db.lookup(obj)
	if err != nil {
		return err
	}
	o.edges = append(o.edges, edgePair{edge: edge.Clone(), val: val.Clone()})
	return nil
}

// matches applies the engine's edge-matching rule: a nil edge
// matches everything, otherwise the values must be eq.
func matches(want, have *value.Value) bool {
	return want == nil || value.Eq(want, have)
}

// Follow returns the set of values reached from obj over
// edges labeled edge.
func (db *DB) Follow(obj, edge *value.Value, reversed bool) (*value.Value, error) {
	set := value.EmptySet(db.tb)
	if !reversed {
		o, _, err := db.lookup(obj)
		if err != nil {
			return nil, err
		}
		for _, p := range o.edges {
			if matches(edge, p.edge) {
				set.Add(db.tb, p.val.Clone())
			}
		}
		return set, nil
	}
	if !obj.IsStruct() {
		return nil, backend.ErrNotObject
	}
	for i, o := range db.objs {
		for _, p := range o.edges {
			if matches(edge, p.edge) && value.Eq(p.val, obj) {
				set.Add(db.tb, db.objvalue(uint64(i)))
			}
		}
	}
	return set, nil
}

// FollowAll returns every (edge, value) pair incident to obj
// in the given direction.
func (db *DB) FollowAll(obj *value.Value, reversed bool) (*value.Value, error) {
	set := value.EmptySet(db.tb)
	if !reversed {
		o, _, err := db.lookup(obj)
		if err != nil {
			return nil, err
		}
		for _, p := range o.edges {
			set.Add(db.tb, value.Tuple(db.tb, p.edge.Clone(), p.val.Clone()))
		}
		return set, nil
	}
	if !obj.IsStruct() {
		return nil, backend.ErrNotObject
	}
	for i, o := range db.objs {
		for _, p := range o.edges {
			if value.Eq(p.val, obj) {
				set.Add(db.tb, value.Tuple(db.tb, p.edge.Clone(), db.objvalue(uint64(i))))
			}
		}
	}
	return set, nil
}

// ReadOnly wraps a backend, refusing writes.
type ReadOnly struct {
	backend.Backend
}

// NewObject always fails on a read-only store.
func (ReadOnly) NewObject() (*value.Value, error) {
	return nil, backend.ErrReadOnly
}

// Assign always fails on a read-only store.
func (ReadOnly) Assign(obj, edge, val *value.Value) error {
	return backend.ErrReadOnly
}
