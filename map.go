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

// package linkedhash is a Go implementation of a chained hash table in which
// the collision chains and the iteration order are one and the same list.
//
// # Design
//
// A Map keeps every entry on a single doubly linked list. The list defines
// the iteration order of the map and doubles as the collision chain of every
// bucket: all entries whose keys hash to the same bucket form one contiguous
// run of the list. The bucket table stores, for each bucket, the first entry
// of its run (the run head) or nothing if the bucket is empty.
//
//	 table (bucketCount=5)
//	+---+
//	| 0 | --> a
//	+---+
//	| 1 | --> nil
//	+---+
//	| 2 | --> d
//	+---+      list: a -> b -> c -> d -> e
//	| 3 | --> e
//	+---+
//	| 4 | --> nil
//	+---+
//
// In the diagram above a, b and c hash to bucket 0, d hashes to bucket 2 and
// e to bucket 3. A lookup hashes the key, jumps to the run head and walks
// forward until it finds the key or reaches an entry of another bucket. No
// per-bucket list is needed because a run is never interrupted by an entry
// of a different bucket.
//
// Inserting into an empty bucket appends the entry at the tail of the list.
// Inserting into a non-empty bucket splices the entry in front of the run
// head and makes it the new run head. Consequently the iteration order is
// the order in which buckets first received an entry, and within a bucket
// the most recently inserted key comes first. Deleting a run head hands the
// head over to the next entry of the run, or empties the bucket.
//
// The bucket count is always prime and the map grows when 4*len exceeds the
// bucket count. Growing picks the next prime >= 2*bucketCount, allocates a
// new table and re-inserts every entry in list order with the regular
// insertion algorithm. Growth therefore recreates every entry, invalidating
// iterators and value pointers obtained earlier, and may reorder entries
// which shared a bucket. The map never shrinks.
//
// Entries are owned by an arena and linked by index rather than by pointer.
// The arena stores entries in pages which never move so that a pointer
// returned by GetOrInsertDefault stays valid across insertions which do not
// grow the map.
package linkedhash

import (
	"fmt"
	"iter"
	"math"
	"math/rand/v2"
	"strings"

	"github.com/cockroachdb/errors"
)

const (
	debug = false

	// minBucketCount is the bucket count of a map created without an initial
	// capacity.
	minBucketCount = 2
	// The map grows when maxLoadFactor*len > bucketCount.
	maxLoadFactor = 4
)

// ErrKeyNotFound is returned by Map.At when the key is not present.
var ErrKeyNotFound = errors.New("linkedhash: key not found")

// Pair holds a key and value. It is used to build a Map from a literal list.
type Pair[K comparable, V any] struct {
	Key   K
	Value V
}

// Map is a hash map from keys to values with a stable, deterministic
// iteration order. Insert never overwrites the value of an existing key;
// values are modified through GetOrInsertDefault or Iterator.ValuePtr. By
// default, a Map[K,V] uses the same hash function as Go's builtin map[K]V,
// though a different hash function can be specified using the WithHash
// option.
//
// A Map is NOT goroutine-safe.
type Map[K comparable, V any] struct {
	// The hash function to each keys of type K.
	hash func(key *K, seed uintptr) uintptr
	seed uintptr
	// The arena owning all of the entries.
	entries arena[K, V]
	// table[b] is the index of the head of bucket b's run, or nilIndex if no
	// key hashes to b. The length of table is the bucket count and is always
	// prime.
	table []int32
	// The head and tail of the entry list.
	first int32
	last  int32
	// The number of entries in the map.
	used int
}

// New constructs a new Map sized to hold initialCapacity entries without
// growing. If initialCapacity is 0 the map starts out with the minimum
// bucket count of 2.
func New[K comparable, V any](initialCapacity int, options ...option[K, V]) *Map[K, V] {
	m := &Map[K, V]{}
	m.Init(initialCapacity, options...)
	return m
}

// Init initializes a Map with the specified initial capacity, discarding any
// previous contents. Init is useful for reusing a Map value, as in
//
//	var m linkedhash.Map[string, int]
//	m.Init(0)
//
// The zero value of a Map is not usable until Init has been called.
func (m *Map[K, V]) Init(initialCapacity int, options ...option[K, V]) {
	*m = Map[K, V]{
		hash:    defaultHash[K](),
		seed:    uintptr(rand.Uint64()),
		entries: makeArena[K, V](),
		first:   nilIndex,
		last:    nilIndex,
	}

	for _, op := range options {
		op.apply(m)
	}

	m.table = newTable(bucketCountFor(initialCapacity))
	m.checkInvariants()
}

// FromPairs constructs a new Map holding the supplied pairs. The map is
// sized so that inserting the pairs does not grow it. When a key appears
// more than once the first pair wins.
func FromPairs[K comparable, V any](pairs []Pair[K, V], options ...option[K, V]) *Map[K, V] {
	m := New[K, V](len(pairs), options...)
	for _, p := range pairs {
		m.Insert(p.Key, p.Value)
	}
	return m
}

// Collect constructs a new Map from the key/value pairs produced by seq, for
// example the All method of another map or maps.All of a builtin map. When
// a key is produced more than once the first pair wins.
func Collect[K comparable, V any](seq iter.Seq2[K, V], options ...option[K, V]) *Map[K, V] {
	m := New[K, V](0, options...)
	seq(func(k K, v V) bool {
		m.Insert(k, v)
		return true
	})
	return m
}

// Clone returns a copy of the map. The copy uses the same hash function and
// starts with the same bucket count; the entries of m are inserted into it
// in iteration order. Values are copied with ordinary Go assignment.
//
// The copy is independent of m, but its iteration order is the result of
// re-inserting the entries and can differ from m's order for keys which
// share a bucket.
func (m *Map[K, V]) Clone() *Map[K, V] {
	c := &Map[K, V]{
		hash:    m.hash,
		seed:    m.seed,
		entries: makeArena[K, V](),
		table:   newTable(uint64(len(m.table))),
		first:   nilIndex,
		last:    nilIndex,
	}
	for i := m.first; i != nilIndex; {
		e := m.entries.at(i)
		c.Insert(e.key, e.value)
		i = e.next
	}
	c.checkInvariants()
	return c
}

// Assign replaces the contents of m with the entries of src, inserted in
// src's iteration order. The bucket count of m becomes the larger of the two
// bucket counts. m keeps its own hash function. Assigning a map to itself is
// a noop.
func (m *Map[K, V]) Assign(src *Map[K, V]) {
	if m == src {
		return
	}
	bucketCount := max(len(m.table), len(src.table))
	m.entries = makeArena[K, V]()
	m.table = newTable(uint64(bucketCount))
	m.first, m.last, m.used = nilIndex, nilIndex, 0
	for i := src.first; i != nilIndex; {
		e := src.entries.at(i)
		m.Insert(e.key, e.value)
		i = e.next
	}
	m.checkInvariants()
}

// Insert inserts an entry into the map if no entry with the same key exists
// and returns true. If the key is already present Insert is a noop which
// returns false; the existing value is never overwritten.
func (m *Map[K, V]) Insert(key K, value V) bool {
	b := m.bucketIndex(&key)
	if m.find(b, key) != nilIndex {
		if debug {
			fmt.Printf("insert(%v): exists\n", key)
		}
		return false
	}
	m.insert(b, key, value)
	m.checkInvariants()
	return true
}

// Get retrieves the value from the map for the specified key, return ok=false
// if the key is not present.
func (m *Map[K, V]) Get(key K) (value V, ok bool) {
	if i := m.lookup(key); i != nilIndex {
		return m.entries.at(i).value, true
	}
	return value, false
}

// Contains returns true if the key is present in the map.
func (m *Map[K, V]) Contains(key K) bool {
	return m.lookup(key) != nilIndex
}

// At retrieves the value for a key which must be present. If it is not, At
// returns an error for which errors.Is(err, ErrKeyNotFound) is true.
func (m *Map[K, V]) At(key K) (V, error) {
	if i := m.lookup(key); i != nilIndex {
		return m.entries.at(i).value, nil
	}
	var zero V
	return zero, errors.Wrapf(ErrKeyNotFound, "key %v", key)
}

// GetOrInsertDefault returns a pointer to the value for the specified key,
// first inserting the zero value of V if the key is not present. The pointer
// remains valid until the entry is deleted, the map is cleared, or an
// insertion grows the map.
func (m *Map[K, V]) GetOrInsertDefault(key K) *V {
	b := m.bucketIndex(&key)
	i := m.find(b, key)
	if i == nilIndex {
		var zero V
		i = m.insert(b, key, zero)
		m.checkInvariants()
	}
	return &m.entries.at(i).value
}

// Find returns an iterator positioned at the entry for the specified key and
// ok=true, or an invalid iterator and ok=false if the key is not present.
func (m *Map[K, V]) Find(key K) (it Iterator[K, V], ok bool) {
	i := m.lookup(key)
	return Iterator[K, V]{m: m, i: i}, i != nilIndex
}

// Delete deletes the entry corresponding to the specified key from the map
// and returns true. It is a noop to delete a non-existent key, in which case
// false is returned. Deleting an entry invalidates only the iterators
// positioned at that entry.
func (m *Map[K, V]) Delete(key K) bool {
	b := m.bucketIndex(&key)
	i := m.find(b, key)
	if i == nilIndex {
		return false
	}
	m.remove(i)
	if debug {
		fmt.Printf("delete(%v): bucket=%d used=%d\n", key, b, m.used)
	}
	m.checkInvariants()
	return true
}

// Clear deletes all entries from the map. The bucket count is unchanged.
// Clear invalidates all iterators and value pointers.
func (m *Map[K, V]) Clear() {
	for i := range m.table {
		m.table[i] = nilIndex
	}
	m.entries.reset()
	m.first, m.last, m.used = nilIndex, nilIndex, 0
	m.checkInvariants()
}

// Len returns the number of entries in the map.
func (m *Map[K, V]) Len() int {
	return m.used
}

// Empty returns true if the map holds no entries.
func (m *Map[K, V]) Empty() bool {
	return m.used == 0
}

// String returns the entries of the map in iteration order, formatted like
// a builtin map: map[k1:v1 k2:v2].
func (m *Map[K, V]) String() string {
	var buf strings.Builder
	buf.WriteString("map[")
	for i := m.first; i != nilIndex; {
		e := m.entries.at(i)
		if i != m.first {
			buf.WriteByte(' ')
		}
		fmt.Fprintf(&buf, "%v:%v", e.key, e.value)
		i = e.next
	}
	buf.WriteByte(']')
	return buf.String()
}

// EqualFunc reports whether two maps contain the same keys in the same
// iteration order, with values compared using eq. Maps holding the same
// pairs in a different order are not equal.
func EqualFunc[K comparable, V1, V2 any](a *Map[K, V1], b *Map[K, V2], eq func(V1, V2) bool) bool {
	if a.used != b.used {
		return false
	}
	for i, j := a.first, b.first; i != nilIndex; {
		x, y := a.entries.at(i), b.entries.at(j)
		if x.key != y.key || !eq(x.value, y.value) {
			return false
		}
		i, j = x.next, y.next
	}
	return true
}

// Equal reports whether two maps contain the same key/value pairs in the
// same iteration order.
func Equal[K, V comparable](a, b *Map[K, V]) bool {
	return EqualFunc(a, b, func(x, y V) bool {
		return x == y
	})
}

// bucketCount returns the number of buckets in the table.
func (m *Map[K, V]) bucketCount() int {
	return len(m.table)
}

// bucketIndex returns the bucket the specified key hashes to.
func (m *Map[K, V]) bucketIndex(key *K) uint32 {
	return uint32(m.hash(key, m.seed) % uintptr(len(m.table)))
}

// lookup returns the index of the entry for key, or nilIndex.
func (m *Map[K, V]) lookup(key K) int32 {
	return m.find(m.bucketIndex(&key), key)
}

// find walks the run of bucket b looking for key. The walk ends at the first
// entry belonging to another bucket.
func (m *Map[K, V]) find(b uint32, key K) int32 {
	for i := m.table[b]; i != nilIndex; {
		e := m.entries.at(i)
		if e.bucket != b {
			break
		}
		if e.key == key {
			return i
		}
		i = e.next
	}
	return nilIndex
}

// insert inserts an entry known not to be in the map into bucket b and grows
// the map if it became overloaded. It returns the index of the new entry,
// which is looked up again if the map grew.
func (m *Map[K, V]) insert(b uint32, key K, value V) int32 {
	i := m.uncheckedInsert(b, key, value)
	if debug {
		fmt.Printf("insert(%v): bucket=%d index=%d used=%d\n", key, b, i, m.used)
	}
	if maxLoadFactor*m.used > len(m.table) {
		m.rehash()
		i = m.lookup(key)
	}
	return i
}

// uncheckedInsert links a new entry for key into bucket b. The entry becomes
// the head of the bucket's run: it is placed in front of the current head,
// or at the tail of the list if the bucket is empty.
func (m *Map[K, V]) uncheckedInsert(b uint32, key K, value V) int32 {
	i := m.entries.alloc(key, value, b)
	if head := m.table[b]; head != nilIndex {
		m.linkBefore(head, i)
	} else {
		m.linkLast(i)
	}
	m.table[b] = i
	m.used++
	return i
}

// remove unlinks and frees the entry at index i.
func (m *Map[K, V]) remove(i int32) {
	e := m.entries.at(i)
	if m.table[e.bucket] == i {
		if e.next != nilIndex && m.entries.at(e.next).bucket == e.bucket {
			m.table[e.bucket] = e.next
		} else {
			m.table[e.bucket] = nilIndex
		}
	}
	m.unlink(i)
	m.entries.free(i)
	m.used--
}

// rehash grows the table to the next prime >= 2*bucketCount.
func (m *Map[K, V]) rehash() {
	m.resize(nextPrime(2 * uint64(len(m.table))))
}

// resize rebuilds the map with the specified bucket count. Every entry is
// recreated by re-inserting it in list order into a fresh arena and table.
// No insertion here can find an existing key, so uncheckedInsert is used.
func (m *Map[K, V]) resize(bucketCount uint64) {
	if debug {
		fmt.Printf("resize: buckets=%d->%d used=%d\n", len(m.table), bucketCount, m.used)
	}

	old, i := m.entries, m.first
	m.entries = makeArena[K, V]()
	m.table = newTable(bucketCount)
	m.first, m.last, m.used = nilIndex, nilIndex, 0
	for i != nilIndex {
		e := old.at(i)
		m.uncheckedInsert(m.bucketIndex(&e.key), e.key, e.value)
		i = e.next
	}
}

func (m *Map[K, V]) linkLast(i int32) {
	e := m.entries.at(i)
	e.prev, e.next = m.last, nilIndex
	if m.last != nilIndex {
		m.entries.at(m.last).next = i
	} else {
		m.first = i
	}
	m.last = i
}

// linkBefore links the entry at index i in front of the entry at index at.
func (m *Map[K, V]) linkBefore(at, i int32) {
	e, a := m.entries.at(i), m.entries.at(at)
	e.prev, e.next = a.prev, at
	if a.prev != nilIndex {
		m.entries.at(a.prev).next = i
	} else {
		m.first = i
	}
	a.prev = i
}

func (m *Map[K, V]) unlink(i int32) {
	e := m.entries.at(i)
	if e.prev != nilIndex {
		m.entries.at(e.prev).next = e.next
	} else {
		m.first = e.next
	}
	if e.next != nilIndex {
		m.entries.at(e.next).prev = e.prev
	} else {
		m.last = e.prev
	}
	e.prev, e.next = nilIndex, nilIndex
}

// bucketCountFor returns the bucket count needed to hold capacity entries
// without growing.
func bucketCountFor(capacity int) uint64 {
	if capacity <= 0 {
		return minBucketCount
	}
	return nextPrime(maxLoadFactor * uint64(capacity))
}

func newTable(bucketCount uint64) []int32 {
	if bucketCount > math.MaxUint32 {
		panic(fmt.Sprintf("linkedhash: bucket count %d overflows uint32", bucketCount))
	}
	t := make([]int32, bucketCount)
	for i := range t {
		t[i] = nilIndex
	}
	return t
}

func (m *Map[K, V]) checkInvariants() {
	if invariants {
		if err := m.validate(); err != nil {
			panic(fmt.Sprintf("%v\n%s", err, m.debugString()))
		}
	}
}

// validate verifies the structural invariants of the map: the entry list is
// consistent in both directions, every bucket's entries form a single run
// whose head is referenced by the table, keys are unique and hash to their
// recorded bucket, the bucket count is prime and the load is within bounds.
func (m *Map[K, V]) validate() error {
	if !isPrime(uint64(len(m.table))) {
		return errors.AssertionFailedf("bucket count %d is not prime", len(m.table))
	}
	if maxLoadFactor*m.used > len(m.table) {
		return errors.AssertionFailedf("%d entries overload %d buckets", m.used, len(m.table))
	}
	if m.entries.live != m.used {
		return errors.AssertionFailedf("arena holds %d entries, but used count is %d",
			m.entries.live, m.used)
	}

	keys := make(map[K]struct{}, m.used)
	seen := make(map[uint32]struct{})
	var count int
	prev := nilIndex
	for i := m.first; i != nilIndex; {
		if !m.entries.valid(i) {
			return errors.AssertionFailedf("index %d: not a live entry", i)
		}
		e := m.entries.at(i)
		if e.prev != prev {
			return errors.AssertionFailedf("index %d: prev=%d, expected %d", i, e.prev, prev)
		}
		if b := m.bucketIndex(&e.key); b != e.bucket {
			return errors.AssertionFailedf("index %d: key %v in bucket %d hashes to %d", i, e.key, e.bucket, b)
		}
		if _, ok := keys[e.key]; ok {
			return errors.AssertionFailedf("index %d: duplicate key %v", i, e.key)
		}
		keys[e.key] = struct{}{}

		if prev == nilIndex || m.entries.at(prev).bucket != e.bucket {
			// Start of a run.
			if _, ok := seen[e.bucket]; ok {
				return errors.AssertionFailedf("index %d: run of bucket %d is not contiguous", i, e.bucket)
			}
			seen[e.bucket] = struct{}{}
			if h := m.table[e.bucket]; h != i {
				return errors.AssertionFailedf("bucket %d: head=%d, expected %d", e.bucket, h, i)
			}
		}

		count++
		if count > m.used {
			return errors.AssertionFailedf("entry list is longer than %d entries", m.used)
		}
		prev, i = i, e.next
	}
	if prev != m.last {
		return errors.AssertionFailedf("entry list ends at %d, but last is %d", prev, m.last)
	}
	if count != m.used {
		return errors.AssertionFailedf("found %d entries, but used count is %d", count, m.used)
	}

	count = 0
	for i := m.last; i != nilIndex; i = m.entries.at(i).prev {
		count++
		if count > m.used {
			return errors.AssertionFailedf("reverse entry list is longer than %d entries", m.used)
		}
	}
	if count != m.used {
		return errors.AssertionFailedf("found %d entries walking backward, but used count is %d", count, m.used)
	}

	for b, h := range m.table {
		if _, ok := seen[uint32(b)]; !ok && h != nilIndex {
			return errors.AssertionFailedf("bucket %d: head=%d, but bucket has no entries", b, h)
		}
	}
	return nil
}

func (m *Map[K, V]) debugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "buckets=%d  used=%d  first=%d  last=%d\n",
		len(m.table), m.used, m.first, m.last)
	for b, h := range m.table {
		if h != nilIndex {
			fmt.Fprintf(&buf, "  bucket %4d: head=%d\n", b, h)
		}
	}
	// Bound the walk in case the list is corrupt.
	for i, n := m.first, 0; i != nilIndex && n <= m.used; n++ {
		if !m.entries.valid(i) {
			fmt.Fprintf(&buf, "  %4d: invalid\n", i)
			break
		}
		e := m.entries.at(i)
		fmt.Fprintf(&buf, "  %4d: %v [bucket=%d prev=%d next=%d]\n", i, e.key, e.bucket, e.prev, e.next)
		i = e.next
	}
	return buf.String()
}
