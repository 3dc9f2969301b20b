/*
 * Laser CNC motion core - planner block definition.
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

// Package planner maintains the ring buffer of movement blocks and runs the
// reverse/forward junction-speed recalculation under per-axis acceleration
// and velocity limits.
package planner

import (
	"math"

	"github.com/openglow-cnc/lasercore/axis"
)

// Condition is the per-block run-condition bitflag, copied from LineData at
// append time. It is the one place in this port that keeps the reference's
// bit-flag style, since it is serialized directly into the block record.
type Condition uint8

const (
	Rapid        Condition = 1 << 0 // non-cutting traverse; use rapid_rate not programmed_rate
	SystemMotion Condition = 1 << 1 // single motion that bypasses planner state (home/park)
	InverseTime  Condition = 1 << 3 // feed rate is 1/time rather than mm/min
	SpindleCW    Condition = 1 << 4 // M3
	LaserEnable  Condition = 1 << 5 // M4 - laser enable, reuses the CCW-spindle bit
	CoolantFlood Condition = 1 << 6 // M8
	CoolantMist  Condition = 1 << 7 // M7
)

// LineData is the caller-supplied description of a requested line motion,
// passed to Ring.BufferLine.
type LineData struct {
	FeedRate     float64
	SpindleSpeed float64
	Condition    Condition
}

// Block is a single linear segment of user motion after arc decomposition
// (plan_block_t in the reference). Fields tagged "bresenham" must not be
// altered once queued; the stepper machinery depends on them verbatim.
type Block struct {
	// Bresenham inputs. Do not alter after append.
	Steps          axis.Steps // |delta position| in steps, per axis
	StepEventCount int64      // max(Steps[]): the Bresenham denominator
	DirectionBits  uint8      // bit i set => axis i moves in the negative direction
	Condition      Condition

	// Kinematics, mutated by recalculate while the block is in the
	// mutable region of the ring (see Ring invariants).
	Millimeters         float64
	EntrySpeedSqr       float64
	MaxEntrySpeedSqr    float64
	MaxJunctionSpeedSqr float64
	Acceleration        float64
	RapidRate           float64
	ProgrammedRate      float64
	SpindleSpeed        float64
}

// NominalSpeed returns min(programmed_rate, sqrt(max_entry_speed_sqr)), the
// speed this block would cruise at given an unconstrained neighbor on both
// sides. Feed overrides are out of scope here; this always reflects the
// programmed rate.
func (b *Block) NominalSpeed() float64 {
	maxFromJunction := sqrtNonNeg(b.MaxEntrySpeedSqr)
	if b.ProgrammedRate < maxFromJunction {
		return b.ProgrammedRate
	}
	return maxFromJunction
}

func sqrtNonNeg(v float64) float64 {
	if v <= 0 {
		return 0
	}
	return math.Sqrt(v)
}
