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

// isPrime reports whether x is prime using trial division up to sqrt(x).
func isPrime(x uint64) bool {
	if x < 2 {
		return false
	}
	for d := uint64(2); d*d <= x; d++ {
		if x%d == 0 {
			return false
		}
	}
	return true
}

// nextPrime returns the smallest prime >= x.
//
// TODO(peter): Trial division costs O(sqrt(x)) per candidate which shows up
// when growing very large maps. A precomputed table of primes roughly
// doubling in size would make growth O(1) here.
func nextPrime(x uint64) uint64 {
	if x <= 2 {
		return 2
	}
	for !isPrime(x) {
		x++
	}
	return x
}
