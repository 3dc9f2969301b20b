/*
 * Laser CNC motion core - segment and stepper-block types.
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

// Package segment samples a trapezoidal velocity profile of the planner
// block currently at the planner ring's tail, producing fixed-duration
// segments for the step-tick emitter. Decoupling the emitter from the
// planner block itself (via a frozen StBlock copy) lets the planner retire
// a block while segments still referencing its Bresenham inputs are in
// flight.
package segment

import "github.com/openglow-cnc/lasercore/axis"

// DefaultCapacity is SEGMENT_BUFFER_SIZE from the reference; the StBlock
// pool holds one fewer slot, since a block index is shared by a run of
// segments and outlives any single one of them.
const DefaultCapacity = 256

// AccelerationTicksPerSecond sets DTSegment, the nominal duration of a
// single sampled segment.
const AccelerationTicksPerSecond = 100.0

// DTSegment is the nominal segment duration, in minutes (feed rates
// throughout this core are mm/min, so keeping time in minutes avoids a
// conversion at every ramp-phase step).
const DTSegment = 1.0 / (AccelerationTicksPerSecond * 60.0)

// StepFrequency is the step-tick emitter's fixed tick rate, in Hz.
const StepFrequency = 40000.0

// RampType classifies which phase of the trapezoidal profile a segment
// falls in.
type RampType int

const (
	RampAccel RampType = iota
	RampCruise
	RampDecel
	RampDecelOverride
)

func (r RampType) String() string {
	switch r {
	case RampAccel:
		return "accel"
	case RampCruise:
		return "cruise"
	case RampDecel:
		return "decel"
	case RampDecelOverride:
		return "decel_override"
	default:
		return "unknown"
	}
}

// StBlock is a frozen copy of a planner block's Bresenham inputs, taken
// when the segment generator first loads that block. Segments reference it
// by index rather than by pointer into the planner ring.
type StBlock struct {
	Steps             axis.Steps
	StepEventCount     int64
	DirectionBits      uint8
	IsPWMRateAdjusted  bool
}

// Segment is one fixed-duration execution slice of a block's velocity
// profile.
type Segment struct {
	NStep         uint16
	CyclesPerTick uint32
	StBlockIndex  int
	SpindlePWM    uint8
}

// Prep holds the segment generator's running state while it samples the
// velocity profile of the block currently loaded from the planner tail.
// Mirrors st_prep_t.
type Prep struct {
	StBlockIndex    int
	RecalculateFlag bool

	DtRemainder    float64
	StepsRemaining float64
	StepPerMM      float64
	ReqMMIncrement float64

	RampType        RampType
	MMComplete      float64
	CurrentSpeed    float64
	MaximumSpeed    float64
	ExitSpeed       float64
	AccelerateUntil float64
	DecelerateAfter float64

	InvRate           float64
	CurrentSpindlePWM uint8

	DecelOverridePending bool
}
