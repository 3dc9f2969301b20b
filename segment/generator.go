/*
 * Laser CNC motion core - trapezoidal segment generator.
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

import (
	"math"

	"github.com/openglow-cnc/lasercore/planner"
	"github.com/openglow-cnc/lasercore/util/debug"
)

// Generator samples the trapezoidal velocity profile of the planner block
// at the planner ring's tail, refilling the segment ring to within one slot
// of full.
type Generator struct {
	blocks *planner.Ring
	out    *Ring

	loaded      bool
	mmRemaining float64
	mmTotal     float64

	prep Prep
}

// NewGenerator builds a generator pulling blocks from blocks and pushing
// segments into out.
func NewGenerator(blocks *planner.Ring, out *Ring) *Generator {
	return &Generator{blocks: blocks, out: out}
}

// Refill samples segments until the output ring is within one slot of full
// or there is no block to load. It is safe to call repeatedly from the
// emitter's tick loop; a full ring or an empty planner is a no-op.
func (g *Generator) Refill() {
	for !g.out.Full() {
		if !g.loaded {
			if !g.loadNextBlock() {
				return
			}
		}
		if !g.sampleOneSegment() {
			g.loaded = false
		}
	}
}

func (g *Generator) loadNextBlock() bool {
	b := g.blocks.CurrentBlock()
	if b == nil {
		return false
	}

	idx := g.out.PushStBlock(StBlock{
		Steps:             b.Steps,
		StepEventCount:    b.StepEventCount,
		DirectionBits:     b.DirectionBits,
		IsPWMRateAdjusted: b.Condition&(planner.SpindleCW|planner.LaserEnable) != 0,
	})

	g.loaded = true
	g.mmTotal = b.Millimeters
	g.mmRemaining = b.Millimeters

	g.prep = Prep{
		StBlockIndex:   idx,
		StepsRemaining: float64(b.StepEventCount),
		StepPerMM:      float64(b.StepEventCount) / b.Millimeters,
	}
	g.classify(b)

	debug.Tracef(debug.Segment, "loaded block mm=%.4f ramp=%v", b.Millimeters, g.prep.RampType)
	return true
}

// classify runs the ramp classification bullets: decide whether this block
// is a forced full-block deceleration, a decel-override handing off to
// cruise, a trapezoid/triangle, or a plain acceleration to the end.
func (g *Generator) classify(b *planner.Block) {
	a := b.Acceleration
	mm := b.Millimeters
	vEntry2 := b.EntrySpeedSqr
	vExit2 := g.blocks.ExecBlockExitSpeedSqr()
	vNominal := b.NominalSpeed()
	vNominal2 := vNominal * vNominal

	p := &g.prep
	p.MMComplete = 0
	p.CurrentSpeed = sqrtNonNeg(vEntry2)
	p.ExitSpeed = sqrtNonNeg(vExit2)

	if vEntry2 > vNominal2 {
		decelDistance := (vEntry2 - vNominal2) / (2 * a)
		accelUntil := mm - decelDistance
		if accelUntil <= 0 {
			// Not enough room left in this block to decelerate all the
			// way to nominal: decelerate for the whole block and let
			// the next block inherit the override.
			p.RampType = RampDecel
			p.AccelerateUntil = mm
			p.DecelerateAfter = mm
			p.MaximumSpeed = sqrtNonNeg(vEntry2)
			p.ExitSpeed = sqrtNonNeg(vEntry2 - 2*a*mm)
			p.DecelOverridePending = true
		} else {
			p.RampType = RampDecelOverride
			p.AccelerateUntil = mm
			p.DecelerateAfter = 0
			p.MaximumSpeed = vNominal
		}
		return
	}

	intersect := 0.5 * (mm + (vEntry2-vExit2)/(2*a))
	if intersect <= 0 || intersect >= mm {
		// Acceleration-only: the block is too short to both reach
		// nominal speed and decelerate back down to the exit speed, so
		// it just accelerates for its entire length.
		p.RampType = RampAccel
		p.AccelerateUntil = 0
		p.DecelerateAfter = 0
		p.MaximumSpeed = sqrtNonNeg(vEntry2 + 2*a*mm)
		return
	}

	accelDistance := (vNominal2 - vEntry2) / (2 * a)
	decelDistance := (vNominal2 - vExit2) / (2 * a)
	if decelDistance < intersect {
		// Trapezoid: accelerate to nominal, cruise, decelerate to exit.
		p.RampType = RampAccel
		p.AccelerateUntil = mm - accelDistance
		p.DecelerateAfter = decelDistance
		p.MaximumSpeed = vNominal
	} else {
		// Triangle: peak speed below nominal, no cruise plateau.
		p.RampType = RampAccel
		p.AccelerateUntil = intersect
		p.DecelerateAfter = intersect
		p.MaximumSpeed = sqrtNonNeg(2*a*intersect + vExit2)
	}
}

// phaseAt returns the ramp phase in effect at the given remaining distance
// (measured backward from the block's end), for the threshold-driven ramp
// types. RampDecelOverride is handled explicitly by the sampling loop
// instead, since it transitions on reaching a target speed rather than a
// distance threshold.
func (g *Generator) phaseAt(mmRemaining float64) RampType {
	p := &g.prep
	if mmRemaining > p.AccelerateUntil {
		return RampAccel
	}
	if mmRemaining > p.DecelerateAfter {
		return RampCruise
	}
	return RampDecel
}

// sampleOneSegment advances the profile by up to DTSegment (extended by a
// further DTSegment if that would otherwise quantize to fewer than one
// step), emits the resulting segment, and reports whether the block is
// still in progress.
func (g *Generator) sampleOneSegment() bool {
	b := g.blocks.CurrentBlock()
	if b == nil {
		return false
	}
	p := &g.prep

	dtBudget := DTSegment
	var dmm, newSpeed float64
	endOfBlock := false

	for attempt := 0; attempt < 4; attempt++ {
		phase := p.RampType
		if phase != RampDecelOverride {
			phase = g.phaseAt(g.mmRemaining)
		}

		v := p.CurrentSpeed
		switch phase {
		case RampAccel:
			dv := b.Acceleration * dtBudget
			newSpeed = v + dv
			if newSpeed > p.MaximumSpeed {
				newSpeed = p.MaximumSpeed
			}
			dmm = (v + 0.5*(newSpeed-v)) * dtBudget
		case RampCruise:
			newSpeed = p.MaximumSpeed
			dmm = p.MaximumSpeed * dtBudget
		case RampDecel, RampDecelOverride:
			dv := b.Acceleration * dtBudget
			newSpeed = v - dv
			if newSpeed < 0 {
				newSpeed = 0
			}
			target := p.ExitSpeed
			if phase == RampDecelOverride {
				target = p.MaximumSpeed
			}
			if newSpeed < target {
				newSpeed = target
			}
			dmm = (v - 0.5*(v-newSpeed)) * dtBudget
			if phase == RampDecelOverride && newSpeed <= p.MaximumSpeed {
				p.RampType = RampCruise
			}
			if phase == RampDecel && newSpeed <= p.ExitSpeed && dmm < g.mmRemaining-p.MMComplete {
				// Down to the exit speed: the rest of the block is the
				// final segment.
				dmm = g.mmRemaining - p.MMComplete
			}
		}

		if dmm >= g.mmRemaining-p.MMComplete {
			// Final, possibly short, segment of the block: clip to the
			// exact remaining distance and emit as-is, with its time cut
			// in the same proportion.
			if dmm > 0 {
				dtBudget *= (g.mmRemaining - p.MMComplete) / dmm
			}
			dmm = g.mmRemaining - p.MMComplete
			endOfBlock = true
			break
		}

		prevStepsRemaining := p.StepsRemaining
		currentStepsRemaining := (g.mmRemaining - dmm) * p.StepPerMM
		if math.Ceil(prevStepsRemaining)-math.Ceil(currentStepsRemaining) >= 1 {
			break
		}
		// Fewer than one step's worth of distance: widen the sampling
		// window and resample from the same starting speed.
		dtBudget += DTSegment
	}

	prevStepsRemaining := p.StepsRemaining
	g.mmRemaining -= dmm
	p.CurrentSpeed = newSpeed
	currentStepsRemaining := g.mmRemaining * p.StepPerMM
	if endOfBlock {
		currentStepsRemaining = 0
	}

	nStepF := math.Ceil(prevStepsRemaining) - math.Ceil(currentStepsRemaining)
	if nStepF < 0 {
		nStepF = 0
	}
	denom := prevStepsRemaining - currentStepsRemaining
	var cyclesPerTick float64
	if denom > 0 {
		p.InvRate = dtBudget / denom
		cyclesPerTick = math.Ceil(StepFrequency * 60 * dtBudget / denom)
		p.DtRemainder = (nStepF - denom) * p.InvRate
	}
	p.StepsRemaining = currentStepsRemaining

	g.out.Push(Segment{
		NStep:         uint16(nStepF),
		CyclesPerTick: uint32(cyclesPerTick),
		StBlockIndex:  p.StBlockIndex,
		SpindlePWM:    p.CurrentSpindlePWM,
	})

	if endOfBlock {
		g.blocks.DiscardCurrent()
		return false
	}
	return true
}

func sqrtNonNeg(v float64) float64 {
	if v <= 0 {
		return 0
	}
	return math.Sqrt(v)
}
