/*
 * Laser CNC motion core - segment ring buffer.
 *
 * Copyright 2026, OpenGlow CNC Contributors
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

package segment

import "sync"

// Ring is the fixed-capacity segment queue plus its StBlock pool. head is
// mutated by the generator, tail by the emitter; same single-writer
// discipline as the planner ring.
type Ring struct {
	mu sync.Mutex

	segments   []Segment
	head, tail int

	blocks    []StBlock
	blockHead int // next free StBlock slot to (re)use

	notEmpty *sync.Cond
}

// NewRing builds an empty segment ring of the given capacity (0 selects
// DefaultCapacity).
func NewRing(capacity int) *Ring {
	if capacity < 2 {
		capacity = DefaultCapacity
	}
	r := &Ring{
		segments: make([]Segment, capacity),
		blocks:   make([]StBlock, capacity-1),
	}
	r.notEmpty = sync.NewCond(&r.mu)
	return r
}

func (r *Ring) next(i int) int {
	if i++; i == len(r.segments) {
		return 0
	}
	return i
}

func (r *Ring) emptyLocked() bool { return r.head == r.tail }
func (r *Ring) fullLocked() bool  { return r.next(r.head) == r.tail }

// Len returns the number of queued segments.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.head >= r.tail {
		return r.head - r.tail
	}
	return len(r.segments) - r.tail + r.head
}

// Full reports whether the ring has no free slot.
func (r *Ring) Full() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fullLocked()
}

// PushStBlock stores a frozen stepper-block copy and returns its index,
// reusing slots round-robin through the pool (capacity-1 entries, matching
// the reference's st_block_buffer sizing).
func (r *Ring) PushStBlock(b StBlock) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.blockHead
	r.blocks[idx] = b
	r.blockHead = (r.blockHead + 1) % len(r.blocks)
	return idx
}

// StBlockAt returns the stepper block stored at idx.
func (r *Ring) StBlockAt(idx int) StBlock {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.blocks[idx]
}

// Push enqueues seg, blocking the caller (the generator) until a slot frees
// up. It never returns an error: the generator is expected to refill "to
// within one slot of full" and then stop, so in practice it never blocks
// for long.
func (r *Ring) Push(seg Segment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for r.fullLocked() {
		r.notEmpty.Wait()
	}
	r.segments[r.head] = seg
	r.head = r.next(r.head)
	r.notEmpty.Broadcast()
}

// Pop removes and returns the segment at tail, or ok=false if the ring is
// empty (the emitter self-suspends in that case; it does not block here).
func (r *Ring) Pop() (Segment, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.emptyLocked() {
		return Segment{}, false
	}
	seg := r.segments[r.tail]
	r.tail = r.next(r.tail)
	r.notEmpty.Broadcast()
	return seg, true
}

// Reset empties the ring, discarding any queued segments.
func (r *Ring) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.head, r.tail, r.blockHead = 0, 0, 0
	r.notEmpty.Broadcast()
}
