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

package columns

import "strings"

// Set is an ordered collection of column-name handles.
// ToComplement marks a set that should be resolved later
// against the ambient column tree: it stands for every
// column except the ones listed.
type Set struct {
	names        []*Name
	ToComplement bool
}

// NewSet builds a set from the given names, taking one
// reference to each.
func NewSet(names ...*Name) *Set {
	s := &Set{names: make([]*Name, 0, len(names))}
	for _, n := range names {
		s.Add(n.Incref())
	}
	return s
}

// NewSetConsume builds a set from names whose references
// the caller transfers in.
func NewSetConsume(names ...*Name) *Set {
	return &Set{names: names}
}

// Add appends a name, consuming the caller's reference.
func (s *Set) Add(n *Name) {
	s.names = append(s.names, n)
}

// Num returns the number of names in the set.
func (s *Set) Num() int { return len(s.names) }

// Get returns the ith name as a borrowed handle.
func (s *Set) Get(i int) *Name { return s.names[i] }

// Contains reports whether the set holds the handle n.
func (s *Set) Contains(n *Name) bool {
	for _, m := range s.names {
		if m == n {
			return true
		}
	}
	return false
}

// Clone returns an independent set holding fresh references.
func (s *Set) Clone() *Set {
	ns := &Set{names: make([]*Name, len(s.names)), ToComplement: s.ToComplement}
	for i, n := range s.names {
		ns.names[i] = n.Incref()
	}
	return ns
}

// Destroy releases every reference the set holds.
func (s *Set) Destroy() {
	for _, n := range s.names {
		n.Decref()
	}
	s.names = nil
}

// CountRefs returns the number of references to n the set
// holds; used by the debug-only refcount audit.
func (s *Set) CountRefs(n *Name) int {
	count := 0
	for _, m := range s.names {
		if m == n {
			count++
		}
	}
	return count
}

func (s *Set) String() string {
	var sb strings.Builder
	if s.ToComplement {
		sb.WriteByte('~')
	}
	sb.WriteByte('[')
	for i, n := range s.names {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(n.String())
	}
	sb.WriteByte(']')
	return sb.String()
}
