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

package redisdb

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"

	"github.com/pql-engine/pql/backend"
	"github.com/pql-engine/pql/datatype"
	"github.com/pql-engine/pql/pickle"
	"github.com/pql-engine/pql/value"
)

func TestReadOnlyContract(t *testing.T) {
	tb := datatype.NewTable()
	db := New(context.Background(), redis.NewClient(&redis.Options{}), tb, "pql")

	if _, err := db.NewObject(); !errors.Is(err, backend.ErrReadOnly) {
		t.Fatalf("NewObject: %v", err)
	}
	obj := value.Struct(tb, value.DBObj{DBNum: 1, OID: 1})
	if err := db.Assign(obj, value.String(tb, "x"), value.Int(tb, 1)); !errors.Is(err, backend.ErrReadOnly) {
		t.Fatalf("Assign: %v", err)
	}
	if _, err := db.Follow(value.Int(tb, 3), value.String(tb, "x"), false); !errors.Is(err, backend.ErrNotObject) {
		t.Fatalf("Follow on non-object: %v", err)
	}
}

func TestObjKey(t *testing.T) {
	tb := datatype.NewTable()
	db := New(context.Background(), redis.NewClient(&redis.Options{}), tb, "")
	key, err := db.objkey(value.Struct(tb, value.DBObj{DBNum: 2, OID: 17, SubID: 4}))
	if err != nil {
		t.Fatal(err)
	}
	if key != "pql:o:2.17.4" {
		t.Fatalf("key = %q", key)
	}
}

// TestLive exercises the adapter against a real Redis when
// PQL_REDIS_ADDR is set; CI without one skips.
func TestLive(t *testing.T) {
	addr := os.Getenv("PQL_REDIS_ADDR")
	if addr == "" {
		t.Skip("PQL_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	tb := datatype.NewTable()
	db := New(ctx, client, tb, "pqltest")

	must := func(blob []byte, err error) []byte {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
		return blob
	}

	seed := value.Struct(tb, value.DBObj{DBNum: 1, OID: 0})
	target := value.Struct(tb, value.DBObj{DBNum: 1, OID: 1})
	edge := value.String(tb, "input")
	eblob := must(pickle.Pickle(edge))

	client.Set(ctx, "pqltest:g:Provenance", must(pickle.Pickle(seed)), 0)
	client.SAdd(ctx, "pqltest:o:1.0.0:edges", eblob)
	client.RPush(ctx, "pqltest:o:1.0.0:f:"+string(eblob), must(pickle.Pickle(target)))
	defer client.FlushDB(ctx)

	prov, err := db.ReadGlobal(backend.GlobalProvenance)
	if err != nil {
		t.Fatal(err)
	}
	if !value.Identical(prov, seed) {
		t.Fatalf("Provenance = %s", prov)
	}
	got, err := db.Follow(seed, edge, false)
	if err != nil {
		t.Fatal(err)
	}
	if got.Len() != 1 || !value.Identical(got.Member(0), target) {
		t.Fatalf("follow = %s", got)
	}
	all, err := db.FollowAll(seed, false)
	if err != nil {
		t.Fatal(err)
	}
	if all.Len() != 1 {
		t.Fatalf("followall = %s", all)
	}
}
