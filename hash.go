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

import (
	"hash/maphash"

	"github.com/cespare/xxhash/v2"
)

// defaultHash returns a hash function for K with the same semantics as the
// hash used by Go's builtin map[K]V. Each call returns a function with a
// fresh random seed.
func defaultHash[K comparable]() func(key *K, seed uintptr) uintptr {
	s := maphash.MakeSeed()
	return func(key *K, _ uintptr) uintptr {
		return uintptr(maphash.Comparable(s, *key))
	}
}

// StringHash hashes a string key using xxHash64. It is suitable for use with
// WithHash when the per-map maphash seed is undesirable, for example when
// a reproducible iteration order is needed across processes.
func StringHash(key *string, seed uintptr) uintptr {
	return uintptr(xxhash.Sum64String(*key) ^ uint64(seed))
}

// Integer is the set of key types accepted by IdentityHash.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// IdentityHash returns the key itself as its hash, ignoring the seed. With
// the prime sized bucket tables used by Map this distributes sequential
// integers evenly and makes bucket placement predictable.
func IdentityHash[K Integer](key *K, _ uintptr) uintptr {
	return uintptr(*key)
}
