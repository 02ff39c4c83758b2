// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package linkedhash

// Iterator is a cursor over the entries of a Map in iteration order. The
// zero Iterator is invalid.
//
//	for it := m.First(); it.Valid(); it.Next() {
//	  fmt.Printf("%v: %v\n", it.Key(), it.Value())
//	}
//
// An Iterator positioned at an entry remains usable while other entries are
// inserted or deleted, unless an insertion grows the map. Deleting the entry
// an Iterator is positioned at, clearing the map or growing it invalidates
// the Iterator. Accessing the key or value of an invalid Iterator panics or
// returns unspecified results.
type Iterator[K comparable, V any] struct {
	m *Map[K, V]
	i int32
}

// First returns an iterator positioned at the first entry of the map. The
// iterator is invalid if the map is empty.
func (m *Map[K, V]) First() Iterator[K, V] {
	return Iterator[K, V]{m: m, i: m.first}
}

// Last returns an iterator positioned at the last entry of the map. The
// iterator is invalid if the map is empty.
func (m *Map[K, V]) Last() Iterator[K, V] {
	return Iterator[K, V]{m: m, i: m.last}
}

// Valid returns true if the iterator is positioned at an entry.
func (it *Iterator[K, V]) Valid() bool {
	return it.m != nil && it.m.entries.valid(it.i)
}

// Next advances the iterator to the next entry. Advancing past the last
// entry leaves the iterator invalid.
func (it *Iterator[K, V]) Next() {
	if it.Valid() {
		it.i = it.m.entries.at(it.i).next
	}
}

// Prev moves the iterator to the previous entry. Moving before the first
// entry leaves the iterator invalid.
func (it *Iterator[K, V]) Prev() {
	if it.Valid() {
		it.i = it.m.entries.at(it.i).prev
	}
}

// Key returns the key of the current entry.
func (it *Iterator[K, V]) Key() K {
	return it.m.entries.at(it.i).key
}

// Value returns the value of the current entry.
func (it *Iterator[K, V]) Value() V {
	return it.m.entries.at(it.i).value
}

// ValuePtr returns a pointer to the value of the current entry which can be
// used to modify the value in place.
func (it *Iterator[K, V]) ValuePtr() *V {
	return &it.m.entries.at(it.i).value
}

// All calls yield sequentially for each key and value present in the map, in
// iteration order. If yield returns false, All stops the iteration. The
// entry being visited may be deleted from within yield. Any other mutation
// of the map during iteration has unspecified effects on the iteration.
//
//	for k, v := range m.All {
//	  fmt.Printf("%v: %v\n", k, v)
//	}
func (m *Map[K, V]) All(yield func(key K, value V) bool) {
	for i := m.first; i != nilIndex; {
		e := m.entries.at(i)
		next := e.next
		if !yield(e.key, e.value) {
			return
		}
		i = next
	}
}

// Keys calls yield sequentially for each key in the map, in iteration order.
func (m *Map[K, V]) Keys(yield func(key K) bool) {
	m.All(func(k K, _ V) bool {
		return yield(k)
	})
}

// Values calls yield sequentially for each value in the map, in iteration
// order.
func (m *Map[K, V]) Values(yield func(value V) bool) {
	m.All(func(_ K, v V) bool {
		return yield(v)
	})
}

// Backward calls yield sequentially for each key and value present in the
// map, in reverse iteration order.
func (m *Map[K, V]) Backward(yield func(key K, value V) bool) {
	for i := m.last; i != nilIndex; {
		e := m.entries.at(i)
		prev := e.prev
		if !yield(e.key, e.value) {
			return
		}
		i = prev
	}
}
