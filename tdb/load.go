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

package tdb

import (
	"fmt"
	"log"

	"sigs.k8s.io/yaml"

	"github.com/pql-engine/pql/datatype"
	"github.com/pql-engine/pql/value"
)

// Graph fixtures are described in YAML:
//
//	dbnum: 1
//	globals:
//	  Provenance: {object: 0}
//	objects:
//	  - edges:
//	      - {name: name, string: foo}
//	      - {name: input, object: 1}
//	  - edges:
//	      - {name: name, string: bar}
//	      - {name: pid, int: 42}
//
// Object references are indices into the objects list.

type fileGraph struct {
	DBNum   uint32               `json:"dbnum"`
	Globals map[string]fileValue `json:"globals"`
	Objects []fileObject         `json:"objects"`
}

type fileObject struct {
	Edges []fileEdge `json:"edges"`
}

type fileEdge struct {
	Name string `json:"name"`
	fileValue
}

// fileValue is one scalar; exactly one field may be set.
type fileValue struct {
	String *string  `json:"string,omitempty"`
	Int    *int32   `json:"int,omitempty"`
	Double *float64 `json:"double,omitempty"`
	Bool   *bool    `json:"bool,omitempty"`
	Object *uint64  `json:"object,omitempty"`
}

func (fv *fileValue) value(db *DB, tb *datatype.Table) (*value.Value, error) {
	switch {
	case fv.String != nil:
		return value.String(tb, *fv.String), nil
	case fv.Int != nil:
		return value.Int(tb, *fv.Int), nil
	case fv.Double != nil:
		return value.Double(tb, *fv.Double), nil
	case fv.Bool != nil:
		return value.Bool(tb, *fv.Bool), nil
	case fv.Object != nil:
		if *fv.Object >= uint64(len(db.objs)) {
			return nil, fmt.Errorf("tdb: object %d out of range", *fv.Object)
		}
		return db.objvalue(*fv.Object), nil
	}
	return nil, fmt.Errorf("tdb: edge value missing")
}

// LoadYAML builds a graph from a YAML fixture.
func LoadYAML(tb *datatype.Table, data []byte) (*DB, error) {
	var fg fileGraph
	if err := yaml.Unmarshal(data, &fg); err != nil {
		return nil, fmt.Errorf("tdb: parsing graph: %w", err)
	}
	db := New(tb, fg.DBNum)
	// create all objects up front so forward references resolve
	for range fg.Objects {
		if _, err := db.NewObject(); err != nil {
			return nil, err
		}
	}
	for i, fo := range fg.Objects {
		for _, fe := range fo.Edges {
			val, err := fe.value(db, tb)
			if err != nil {
				log.Printf("tdb: object %d: skipping edge %q: %v", i, fe.Name, err)
				continue
			}
			if err := db.Assign(db.objvalue(uint64(i)), value.String(tb, fe.Name), val); err != nil {
				return nil, err
			}
		}
	}
	for name, fv := range fg.Globals {
		v, err := fv.value(db, tb)
		if err != nil {
			return nil, fmt.Errorf("tdb: global %s: %w", name, err)
		}
		db.SetGlobal(name, v)
	}
	return db, nil
}

// Seed returns the canonical small test graph: a seed object
// with two files hanging off it, one produced from the other
// by a process.
func Seed(tb *datatype.Table) *DB {
	db := New(tb, 1)
	root, _ := db.NewObject()
	file1, _ := db.NewObject()
	file2, _ := db.NewObject()
	proc, _ := db.NewObject()

	str := func(s string) *value.Value { return value.String(tb, s) }

	db.Assign(root, str("obj"), file1)
	db.Assign(root, str("obj"), file2)
	db.Assign(root, str("obj"), proc)

	db.Assign(file1, str("name"), str("foo"))
	db.Assign(file1, str("type"), str("file"))
	db.Assign(file1, str("input"), proc)

	db.Assign(proc, str("name"), str("cc"))
	db.Assign(proc, str("type"), str("proc"))
	db.Assign(proc, str("argv"), str("cc -o foo bar.c"))
	db.Assign(proc, str("input"), file2)

	db.Assign(file2, str("name"), str("bar.c"))
	db.Assign(file2, str("type"), str("file"))

	db.SetGlobal("Provenance", root)
	return db
}
