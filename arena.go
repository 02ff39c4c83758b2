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

import "math"

const (
	pageShift = 6
	pageSize  = 1 << pageShift
	pageMask  = pageSize - 1

	// nilIndex terminates the entry list, the free list and marks an empty
	// bucket.
	nilIndex int32 = -1
)

// entry holds a key and value along with the bucket the key hashed to when
// the entry was created. While the entry is live, next and prev thread it
// into the map's entry list. Once freed, next threads the arena free list.
type entry[K comparable, V any] struct {
	key    K
	value  V
	bucket uint32
	next   int32
	prev   int32
	used   bool
}

// arena owns the entries of a Map and addresses them by index. Entries are
// stored in fixed size pages which are never reallocated, so a pointer to an
// entry's value remains valid until that entry is freed or the arena is
// reset.
type arena[K comparable, V any] struct {
	pages [][]entry[K, V]
	// The number of slots handed out so far, including freed slots.
	n int32
	// Head of the free list.
	freeList int32
	// The number of live entries.
	live int
}

func makeArena[K comparable, V any]() arena[K, V] {
	return arena[K, V]{freeList: nilIndex}
}

// alloc returns the index of a new, unlinked entry.
func (a *arena[K, V]) alloc(key K, value V, bucket uint32) int32 {
	var i int32
	if a.freeList != nilIndex {
		i = a.freeList
		a.freeList = a.at(i).next
	} else {
		if a.n == math.MaxInt32 {
			panic("linkedhash: too many entries")
		}
		i = a.n
		if int(i>>pageShift) == len(a.pages) {
			a.pages = append(a.pages, make([]entry[K, V], pageSize))
		}
		a.n++
	}
	*a.at(i) = entry[K, V]{
		key:    key,
		value:  value,
		bucket: bucket,
		next:   nilIndex,
		prev:   nilIndex,
		used:   true,
	}
	a.live++
	return i
}

// free releases the entry at index i. The entry must already be unlinked
// from the map's entry list.
func (a *arena[K, V]) free(i int32) {
	*a.at(i) = entry[K, V]{next: a.freeList, prev: nilIndex}
	a.freeList = i
	a.live--
}

// at returns a pointer to the entry at index i.
func (a *arena[K, V]) at(i int32) *entry[K, V] {
	return &a.pages[i>>pageShift][i&pageMask]
}

// valid returns true if i addresses a live entry.
func (a *arena[K, V]) valid(i int32) bool {
	return i >= 0 && i < a.n && a.at(i).used
}

// reset frees every entry while retaining the allocated pages.
func (a *arena[K, V]) reset() {
	for _, p := range a.pages {
		clear(p)
	}
	a.n = 0
	a.freeList = nilIndex
	a.live = 0
}
