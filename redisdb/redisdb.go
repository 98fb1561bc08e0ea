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

// Package redisdb adapts a Redis instance holding a
// provenance graph to the engine's backend contract. The
// store is read-only: temp objects belong in a local tdb
// layered by the caller.
//
// Values on the wire are the engine's pickle format. The key
// layout, under a configurable prefix:
//
//	<p>:g:<name>          pickled value of a global
//	<p>:o:<obj>:edges     set of pickled edge names (forward)
//	<p>:o:<obj>:redges    set of pickled edge names (reverse)
//	<p>:o:<obj>:f:<edge>  list of pickled forward targets
//	<p>:o:<obj>:r:<edge>  list of pickled reverse sources
//
// where <obj> is "dbnum.oid.subid" in decimal and <edge> is
// the pickled edge value.
package redisdb

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/pql-engine/pql/backend"
	"github.com/pql-engine/pql/datatype"
	"github.com/pql-engine/pql/pickle"
	"github.com/pql-engine/pql/value"
)

// DB is a read-only backend over Redis.
type DB struct {
	ctx    context.Context
	client *redis.Client
	tb     *datatype.Table
	prefix string
}

// New returns a backend reading from client. prefix
// namespaces the keys; "pql" is conventional.
func New(ctx context.Context, client *redis.Client, tb *datatype.Table, prefix string) *DB {
	if prefix == "" {
		prefix = "pql"
	}
	return &DB{ctx: ctx, client: client, tb: tb, prefix: prefix}
}

func (db *DB) objkey(obj *value.Value) (string, error) {
	if !obj.IsStruct() {
		return "", backend.ErrNotObject
	}
	ref := obj.StructValue()
	return fmt.Sprintf("%s:o:%d.%d.%d", db.prefix, ref.DBNum, ref.OID, ref.SubID), nil
}

// ReadGlobal resolves a storage root; nil when unbound.
func (db *DB) ReadGlobal(name string) (*value.Value, error) {
	blob, err := db.client.Get(db.ctx, db.prefix+":g:"+name).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redisdb: reading global %s: %w", name, err)
	}
	return pickle.Unpickle(db.tb, blob)
}

// NewObject fails: the store is read-only.
func (db *DB) NewObject() (*value.Value, error) {
	return nil, backend.ErrReadOnly
}

// Assign fails: the store is read-only.
func (db *DB) Assign(obj, edge, val *value.Value) error {
	return backend.ErrReadOnly
}

func (db *DB) targets(set *value.Value, key string) error {
	blobs, err := db.client.LRange(db.ctx, key, 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redisdb: %s: %w", key, err)
	}
	for _, blob := range blobs {
		v, err := pickle.Unpickle(db.tb, []byte(blob))
		if err != nil {
			return fmt.Errorf("redisdb: %s: %w", key, err)
		}
		set.Add(db.tb, v)
	}
	return nil
}

// Follow returns the values reached over edges labeled edge.
func (db *DB) Follow(obj, edge *value.Value, reversed bool) (*value.Value, error) {
	key, err := db.objkey(obj)
	if err != nil {
		return nil, err
	}
	eblob, err := pickle.Pickle(edge)
	if err != nil {
		return nil, fmt.Errorf("redisdb: encoding edge: %w", err)
	}
	dir := ":f:"
	if reversed {
		dir = ":r:"
	}
	set := value.EmptySet(db.tb)
	if err := db.targets(set, key+dir+string(eblob)); err != nil {
		return nil, err
	}
	return set, nil
}

// FollowAll returns every (edge, value) pair incident to obj.
func (db *DB) FollowAll(obj *value.Value, reversed bool) (*value.Value, error) {
	key, err := db.objkey(obj)
	if err != nil {
		return nil, err
	}
	ekey, dir := key+":edges", ":f:"
	if reversed {
		ekey, dir = key+":redges", ":r:"
	}
	eblobs, err := db.client.SMembers(db.ctx, ekey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redisdb: %s: %w", ekey, err)
	}
	set := value.EmptySet(db.tb)
	for _, eblob := range eblobs {
		edge, err := pickle.Unpickle(db.tb, []byte(eblob))
		if err != nil {
			return nil, fmt.Errorf("redisdb: %s: %w", ekey, err)
		}
		sub := value.EmptySet(db.tb)
		if err := db.targets(sub, key+dir+eblob); err != nil {
			return nil, err
		}
		for i := 0; i < sub.Len(); i++ {
			set.Add(db.tb, value.Tuple(db.tb, edge.Clone(), sub.Member(i).Clone()))
		}
	}
	return set, nil
}
