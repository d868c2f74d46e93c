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

package scratch

import (
	"github.com/go-errors/errors"
)

const defaultCapacity = 4096

var ErrRegionInUse = errors.New("scratch region is already acquired")

// Region is a bump allocated byte arena scoped to a single event.
// Buffers handed out by a Region are only valid until Release,
// data which needs to survive the event must be copied out.
type Region struct {
	buf        []byte
	offset     int
	highWater  int
	acquired   bool
	generation uint64
}

func New(
	initialCapacity int,
) *Region {

	if initialCapacity <= 0 {
		initialCapacity = defaultCapacity
	}
	return &Region{
		buf: make([]byte, initialCapacity),
	}
}

// Acquire starts a new event scope. The returned release function
// must be called on every exit path, usually deferred.
func (r *Region) Acquire() (release func(), err error) {
	if r.acquired {
		return nil, ErrRegionInUse
	}
	r.acquired = true
	return r.Release, nil
}

// Buffer returns an empty buffer backed by the region's remaining
// capacity, meant to be appended to and handed back to Commit
func (r *Region) Buffer() []byte {
	return r.buf[r.offset:r.offset:len(r.buf)]
}

// Commit accounts the bytes of a buffer previously returned from
// Buffer. Appends beyond the remaining capacity reallocate outside
// the region, the region grows to fit on the next Release.
func (r *Region) Commit(
	data []byte,
) []byte {

	used := r.offset + len(data)
	if used > r.highWater {
		r.highWater = used
	}
	if used <= len(r.buf) && len(data) > 0 && &r.buf[r.offset] == &data[0] {
		r.offset = used
	}
	return data
}

// Release ends the event scope, every buffer handed out since
// Acquire is invalidated and cleared
func (r *Region) Release() {
	clear(r.buf[:r.offset])
	r.offset = 0
	if r.highWater > len(r.buf) {
		r.buf = make([]byte, r.highWater*2)
	}
	r.highWater = 0
	r.acquired = false
	r.generation++
}

// InUse returns the number of bytes handed out in the current scope
func (r *Region) InUse() int {
	return r.offset
}

// Capacity returns the size of the backing arena
func (r *Region) Capacity() int {
	return len(r.buf)
}

// IsAcquired returns true while an event scope is active
func (r *Region) IsAcquired() bool {
	return r.acquired
}

// Generation counts completed event scopes
func (r *Region) Generation() uint64 {
	return r.generation
}
