/*
 * Laser CNC motion core - planner ring buffer.
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

package planner

import (
	"errors"
	"math"
	"sync"

	"github.com/openglow-cnc/lasercore/axis"
	"github.com/openglow-cnc/lasercore/settings"
	"github.com/openglow-cnc/lasercore/util/debug"
)

// DefaultCapacity is the block ring size used absent an explicit override,
// recovered from the reference's BLOCK_BUFFER_SIZE.
const DefaultCapacity = 512

// ErrFull names the ring-full condition. BufferLine does not return it: it
// blocks until a slot is free instead; see BufferLine.
var ErrFull = errors.New("planner: ring full")

// Ring is the fixed-capacity block queue plus the planner's running
// position and direction state. The mutable region is [planned, head); the
// executing region [tail, planned] is frozen against further
// recalculation, matching the "Blocks in flight are immutable once the
// stepper has begun consuming them" invariant.
type Ring struct {
	mu sync.Mutex

	blocks             []Block
	head, tail, planned int

	position       axis.Steps // planner's own authoritative position, in steps
	previousUnit   [axis.Count]float64
	havePrevious   bool

	settings *settings.Settings

	full *sync.Cond // signaled whenever a slot is freed by DiscardCurrent
}

// NewRing builds an empty ring of the given capacity (must be >= 2) bound to
// cfg for axis kinematics limits.
func NewRing(capacity int, cfg *settings.Settings) *Ring {
	if capacity < 2 {
		capacity = DefaultCapacity
	}
	r := &Ring{
		blocks:   make([]Block, capacity),
		settings: cfg,
	}
	r.full = sync.NewCond(&r.mu)
	return r
}

func (r *Ring) next(i int) int {
	if i++; i == len(r.blocks) {
		return 0
	}
	return i
}

func (r *Ring) prev(i int) int {
	if i == 0 {
		return len(r.blocks) - 1
	}
	return i - 1
}

// emptyLocked reports whether the ring holds no blocks. Caller must hold mu.
func (r *Ring) emptyLocked() bool { return r.head == r.tail }

// fullLocked reports whether the ring has no free slot. Caller must hold mu.
func (r *Ring) fullLocked() bool { return r.next(r.head) == r.tail }

// Full reports whether the ring has no free slot for another BufferLine
// call to land in without blocking.
func (r *Ring) Full() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fullLocked()
}

// Len returns the number of queued blocks, including the one executing.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.head >= r.tail {
		return r.head - r.tail
	}
	return len(r.blocks) - r.tail + r.head
}

// SyncPosition overwrites the planner's tracked position, used after homing
// or any motion that bypasses normal block queuing.
func (r *Ring) SyncPosition(pos axis.Steps) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.position = pos
}

// Position returns the planner's tracked position in steps.
func (r *Ring) Position() axis.Steps {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.position
}

// Reset empties the ring and clears direction-continuity state, without
// touching position. Used on alarm/reset per the controller's recovery
// path.
func (r *Ring) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.head, r.tail, r.planned = 0, 0, 0
	r.havePrevious = false
	r.full.Broadcast()
}

// BufferLine appends a line segment targeting targetMM, blocking
// cooperatively via cond until a slot is free (mirrors the reference's
// busy-wait backoff in mc_line, but parked on a condition variable instead
// of a spin loop). It returns false if the requested target collapses to a
// zero-length move once quantized to steps, matching plan_buffer_line's
// empty-block return used by the caller to still apply laser-condition
// synchronization without queuing a block.
func (r *Ring) BufferLine(targetMM axis.Vector, data LineData) (bool, error) {
	r.mu.Lock()
	for r.fullLocked() {
		r.full.Wait()
	}
	defer r.mu.Unlock()

	target := axis.Steps{}
	for a := 0; a < axis.Count; a++ {
		target[a] = r.settings.MMToSteps(axis.Index(a), targetMM[a])
	}

	var deltaMM axis.Vector
	var deltaSteps axis.Steps
	var dirBits uint8
	var stepEventCount int64
	for a := 0; a < axis.Count; a++ {
		deltaSteps[a] = target[a] - r.position[a]
		if deltaSteps[a] < 0 {
			dirBits |= 1 << uint(a)
			deltaSteps[a] = -deltaSteps[a]
		}
		if deltaSteps[a] > stepEventCount {
			stepEventCount = deltaSteps[a]
		}
		deltaMM[a] = float64(target[a]-r.position[a]) / r.settings.Axis[a].StepsPerMM
	}
	if stepEventCount == 0 {
		return false, nil
	}

	millimeters := math.Sqrt(deltaMM[0]*deltaMM[0] + deltaMM[1]*deltaMM[1] + deltaMM[2]*deltaMM[2])
	var unit [axis.Count]float64
	if millimeters > 0 {
		for a := 0; a < axis.Count; a++ {
			unit[a] = deltaMM[a] / millimeters
		}
	}

	// Settings hold acceleration in mm/sec^2; blocks carry it in mm/min^2
	// to match the mm/min speeds and minute-based segment timing.
	accel := limitByAxisMaximum(unit, func(a int) float64 { return r.settings.Axis[a].Acceleration * 3600 })
	rapidRate := limitByAxisMaximum(unit, func(a int) float64 { return r.settings.Axis[a].MaxRate })

	b := Block{
		Steps:          axis.Steps{deltaSteps[0], deltaSteps[1], deltaSteps[2]},
		StepEventCount: stepEventCount,
		DirectionBits:  dirBits,
		Condition:      data.Condition,
		Millimeters:    millimeters,
		Acceleration:   accel,
		RapidRate:      rapidRate,
		SpindleSpeed:   data.SpindleSpeed,
	}
	if data.Condition&Rapid != 0 {
		b.ProgrammedRate = rapidRate
	} else {
		b.ProgrammedRate = data.FeedRate
	}

	b.MaxJunctionSpeedSqr = r.junctionSpeedSqr(unit, accel)

	var prevEntrySqr float64
	if !r.emptyLocked() {
		prevEntrySqr = r.blocks[r.prev(r.head)].EntrySpeedSqr
	}
	b.MaxEntrySpeedSqr = math.Min(b.MaxJunctionSpeedSqr,
		math.Min(b.ProgrammedRate*b.ProgrammedRate, 2*accel*millimeters+prevEntrySqr))
	b.EntrySpeedSqr = b.MaxEntrySpeedSqr

	r.blocks[r.head] = b
	r.head = r.next(r.head)
	r.position = target
	r.previousUnit = unit
	r.havePrevious = true

	r.recalculateLocked()

	debug.Tracef(debug.Planner, "buffered block mm=%.4f entry_sqr=%.2f max_entry_sqr=%.2f", b.Millimeters, b.EntrySpeedSqr, b.MaxEntrySpeedSqr)
	return true, nil
}

// junctionSpeedSqr implements the classic cornering-deviation junction
// speed bound: the angle between the reversed previous direction and this
// one determines how much the tool must slow for the corner, floored at
// MinimumJunctionSpeed^2 and otherwise unbounded for a dead-straight
// continuation.
func (r *Ring) junctionSpeedSqr(unit [axis.Count]float64, accel float64) float64 {
	floor := r.settings.MinimumJunctionSpeed * r.settings.MinimumJunctionSpeed
	if !r.havePrevious {
		return math.MaxFloat64
	}
	var junctionCos float64
	for a := 0; a < axis.Count; a++ {
		junctionCos -= r.previousUnit[a] * unit[a]
	}
	if junctionCos > 0.999999 {
		// Near-180-degree reversal: the sharpest possible corner.
		return floor
	}
	if junctionCos < -1 {
		junctionCos = -1
	}
	sinThetaD2 := math.Sqrt(0.5 * (1 - junctionCos))
	if sinThetaD2 > 0.999999 {
		return math.MaxFloat64
	}
	v := accel * r.settings.JunctionDeviation * sinThetaD2 / (1 - sinThetaD2)
	if v < floor {
		return floor
	}
	return v
}

func limitByAxisMaximum(unit [axis.Count]float64, maxOf func(int) float64) float64 {
	limit := math.MaxFloat64
	for a := 0; a < axis.Count; a++ {
		if unit[a] == 0 {
			continue
		}
		v := math.Abs(maxOf(a) / unit[a])
		if v < limit {
			limit = v
		}
	}
	return limit
}

// DiscardCurrent retires the block the stepper has finished executing and
// wakes any BufferLine blocked on a free slot.
func (r *Ring) DiscardCurrent() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.emptyLocked() {
		return
	}
	retired := r.tail
	r.tail = r.next(r.tail)
	if r.planned == retired {
		// planned can't trail tail; the block it pointed at just retired.
		r.planned = r.tail
	}
	r.full.Broadcast()
}

// CurrentBlock returns the block the stepper should be executing, or nil if
// the ring is empty.
func (r *Ring) CurrentBlock() *Block {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.emptyLocked() {
		return nil
	}
	return &r.blocks[r.tail]
}

// ExecBlockExitSpeedSqr returns the square of the speed the executing block
// should be at when it hands off to its successor: the successor's entry
// speed if one is queued, else zero (nothing queued to continue into).
func (r *Ring) ExecBlockExitSpeedSqr() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.emptyLocked() {
		return 0
	}
	succ := r.next(r.tail)
	if succ == r.head {
		return 0
	}
	return r.blocks[succ].EntrySpeedSqr
}

// recalculateLocked runs the reverse then forward junction-speed passes
// over the mutable region [planned, head). Caller must hold mu.
func (r *Ring) recalculateLocked() {
	if r.emptyLocked() {
		return
	}

	// Reverse pass: walk from the newest block back to planned, clamping
	// each entry speed to what the block after it (toward head) can be
	// decelerated into. The block past head (nothing queued yet) is
	// assumed to require a stop, i.e. exit speed zero.
	idx := r.prev(r.head)
	nextEntrySqr := 0.0
	for {
		b := &r.blocks[idx]
		bound := nextEntrySqr + 2*b.Acceleration*b.Millimeters
		if b.EntrySpeedSqr > bound {
			b.EntrySpeedSqr = bound
		}
		nextEntrySqr = b.EntrySpeedSqr
		if idx == r.planned {
			break
		}
		idx = r.prev(idx)
	}

	// Forward pass: walk from planned+1 up to head, clamping each entry
	// speed to what its predecessor can accelerate it to. Advance planned
	// past every block that is already pinned at its own ceiling; those
	// blocks (and everything before them) are now frozen.
	idx = r.next(r.planned)
	prevEntrySqr := r.blocks[r.planned].EntrySpeedSqr
	newPlanned := r.planned
	for idx != r.head {
		prior := &r.blocks[r.prev(idx)]
		b := &r.blocks[idx]
		bound := prevEntrySqr + 2*prior.Acceleration*prior.Millimeters
		if b.EntrySpeedSqr > bound {
			b.EntrySpeedSqr = bound
		}
		if b.EntrySpeedSqr >= b.MaxEntrySpeedSqr {
			newPlanned = idx
		}
		prevEntrySqr = b.EntrySpeedSqr
		idx = r.next(idx)
	}
	r.planned = newPlanned
}
