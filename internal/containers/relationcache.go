/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements. See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License. You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package containers

const (
	relationCacheBaseSize       = 0
	relationCacheSizeMultiplier = 1.5
)

// RelationCache is an oid indexed cache backed by a slice spanning
// the range between the smallest and the largest oid ever stored.
// Relation oids of a database tend to be clustered, which keeps the
// slice small. Oid 0 is never a valid relation and can't be stored.
type RelationCache[V any] struct {
	cache      []*V
	lowerBound uint32
	upperBound uint32
	size       int
}

func NewRelationCache[V any]() *RelationCache[V] {
	return &RelationCache[V]{
		cache: make([]*V, relationCacheBaseSize),
	}
}

func (rc *RelationCache[V]) Get(
	oid uint32,
) (value V, present bool) {

	if !rc.inBounds(oid) {
		return value, false
	}

	if v := rc.cache[rc.location(oid, rc.lowerBound)]; v != nil {
		return *v, true
	}
	return value, false
}

func (rc *RelationCache[V]) Set(
	oid uint32, value V,
) {

	if oid == 0 {
		return
	}

	oldLowerBound := rc.lowerBound

	needsResizing := false
	if rc.lowerBound == 0 || rc.lowerBound > oid {
		rc.lowerBound = oid
		needsResizing = true
	}
	if rc.upperBound < oid {
		rc.upperBound = oid
		needsResizing = true
	}

	if needsResizing {
		required := rc.upperBound - rc.lowerBound + 1
		if required > uint32(len(rc.cache)) || oldLowerBound != rc.lowerBound {
			newCacheSize := uint32(float64(required) * relationCacheSizeMultiplier)
			if newCacheSize < required {
				newCacheSize = required
			}
			newCache := make([]*V, newCacheSize)

			target := newCache
			if oldLowerBound != 0 && oldLowerBound > rc.lowerBound {
				target = target[oldLowerBound-rc.lowerBound:]
			}
			copy(target, rc.cache)

			rc.cache = newCache
		}
	}

	location := rc.location(oid, rc.lowerBound)
	if rc.cache[location] == nil {
		rc.size++
	}
	rc.cache[location] = &value
}

// Delete removes the value stored for the oid, the bounds
// are kept as is
func (rc *RelationCache[V]) Delete(
	oid uint32,
) bool {

	if !rc.inBounds(oid) {
		return false
	}

	location := rc.location(oid, rc.lowerBound)
	if rc.cache[location] == nil {
		return false
	}
	rc.cache[location] = nil
	rc.size--
	return true
}

// Len returns the number of stored values
func (rc *RelationCache[V]) Len() int {
	return rc.size
}

// ForEach calls fn for every stored value in oid order
func (rc *RelationCache[V]) ForEach(
	fn func(oid uint32, value V),
) {

	for i, v := range rc.cache {
		if v != nil {
			fn(rc.lowerBound+uint32(i), *v)
		}
	}
}

func (rc *RelationCache[V]) inBounds(
	oid uint32,
) bool {

	return rc.size > 0 && oid >= rc.lowerBound && oid <= rc.upperBound
}

func (rc *RelationCache[V]) location(
	oid, lowerBound uint32,
) uint32 {

	return oid - lowerBound
}
