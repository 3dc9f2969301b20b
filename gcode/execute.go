/*
 * Laser CNC motion core - RS-274/NGC line parser, validate and execute.
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

package gcode

import (
	"context"
	"math"
	"time"

	"github.com/openglow-cnc/lasercore/axis"
	"github.com/openglow-cnc/lasercore/motion"
	"github.com/openglow-cnc/lasercore/planner"
	"github.com/openglow-cnc/lasercore/status"
)

// Execute tokenizes, validates, and (if the block is clean) runs one line.
// line must already be run through Preprocess; Execute does not strip
// comments or whitespace itself, matching the reference's split between
// line intake and block execution. status.OK means the block executed (or
// was a no-op, e.g. a bare line number); any other code means the line was
// rejected without touching persistent state or the motion pipeline. err
// carries failures unrelated to line validity: context cancellation, or
// the motion pipeline refusing the call.
func (p *Parser) Execute(ctx context.Context, line string) (status.Code, error) {
	var st parseState
	if code := p.tokenize(line, &st); code != status.OK {
		return code, nil
	}
	if code := p.validate(&st); code != status.OK {
		return code, nil
	}
	return p.dispatch(ctx, &st)
}

// validate runs the error-check-and-convert pass (phase 2) in the same
// order as the reference, so the same malformed input always fails the
// same way.
func (p *Parser) validate(st *parseState) status.Code {
	blk := &st.blk

	// 0. An axis word with no explicit claimant implicitly belongs to
	// whatever motion mode is already active.
	if st.axisWords != 0 && st.axisCmd == axisCommandNone {
		st.axisCmd = axisCommandMotionMode
	}

	// 1. Line number range.
	if st.valueWords&wordN != 0 {
		if blk.values.n > maxLineNumber {
			return status.InvalidLineNumber
		}
	}

	// 2. Feed rate mode.
	if blk.modal.FeedRateMode == feedRateInverseTime {
		if st.axisCmd == axisCommandMotionMode &&
			blk.modal.Motion != motionNone && blk.modal.Motion != motionSeek {
			if st.valueWords&wordF == 0 {
				return status.UndefinedFeedRate
			}
		}
	} else if p.modal.FeedRateMode == feedRateUnitsPerMin {
		if st.valueWords&wordF != 0 {
			if blk.modal.Units == unitsInches {
				blk.values.f *= mmPerInch
			}
		} else {
			blk.values.f = p.feedRate
		}
	}

	// 3. Spindle/laser speed.
	if st.valueWords&wordS == 0 {
		blk.values.s = p.spindleSpeed
	}

	// 4. Dwell.
	if blk.nonModalCommand == nonModalDwell {
		if st.valueWords&wordP == 0 {
			return status.ValueWordMissing
		}
		st.valueWords &^= wordP
	}

	// 5. Plane select: resolve in-plane/linear axes for the arc checks
	// below.
	a0, a1, al := planeAxes(blk.modal.Plane)

	// 6. Units: convert any given axis word to millimeters.
	if blk.modal.Units == unitsInches {
		for i := axis.Index(0); i < axis.Count; i++ {
			if st.axisWords&(1<<uint(i)) != 0 {
				blk.values.xyz[i] *= mmPerInch
			}
		}
	}

	// 7. Non-modal commands that claim the axis words: G10/G28/G30/G92
	// are recognized for modal-group purposes but not executed (no WCS
	// table, no stored home/park position in this core).
	if st.axisCmd == axisCommandNonModal {
		return status.UnsupportedCommand
	}

	// 8. Motion modes.
	if blk.modal.Motion == motionNone {
		if st.axisWords != 0 {
			return status.AxisWordsExist
		}
	} else if st.axisCmd == axisCommandMotionMode {
		switch blk.modal.Motion {
		case motionSeek:
			if st.axisWords == 0 {
				st.axisCmd = axisCommandNone
			}
		default:
			if blk.values.f == 0 {
				return status.UndefinedFeedRate
			}
			switch blk.modal.Motion {
			case motionLinear:
				if st.axisWords == 0 {
					st.axisCmd = axisCommandNone
				}
			case motionCWArc, motionCCWArc:
				if code := p.validateArc(st, a0, a1, al); code != status.OK {
					return code
				}
			}
		}
	}

	// 9. Unused words: everything left unclaimed is an error, except the
	// single-meaning words consumed above and the axis words once a
	// motion claimant has taken them.
	st.valueWords &^= wordN | wordF | wordS
	if st.axisCmd != axisCommandNone {
		st.valueWords &^= wordX | wordY | wordZ
	}
	if st.valueWords != 0 {
		return status.UnusedWords
	}
	return status.OK
}

func planeAxes(plane int) (a0, a1, al axis.Index) {
	switch plane {
	case planeZX:
		return axis.Z, axis.X, axis.Y
	case planeYZ:
		return axis.Y, axis.Z, axis.X
	default:
		return axis.X, axis.Y, axis.Z
	}
}

// validateArc resolves I/J/K or R into a center offset, applying the same
// radius-mode and offset-mode checks as the reference.
func (p *Parser) validateArc(st *parseState, a0, a1, al axis.Index) status.Code {
	blk := &st.blk
	if st.axisWords&((1<<uint(a0))|(1<<uint(a1))) == 0 {
		return status.NoAxisWordsInPlane
	}

	x := blk.values.xyz[a0] - p.position[a0]
	y := blk.values.xyz[a1] - p.position[a1]

	if st.valueWords&wordR != 0 {
		st.valueWords &^= wordR
		if x == 0 && y == 0 {
			return status.InvalidTarget
		}
		r := blk.values.r
		if blk.modal.Units == unitsInches {
			r *= mmPerInch
		}
		hSqr := 4*r*r - x*x - y*y
		if hSqr < 0 {
			return status.ArcRadiusError
		}
		h := -math.Sqrt(hSqr) / math.Hypot(x, y)
		if blk.modal.Motion == motionCCWArc {
			h = -h
		}
		if r < 0 {
			h = -h
			r = -r
		}
		blk.values.ijk[a0] = 0.5 * (x - y*h)
		blk.values.ijk[a1] = 0.5 * (y + x*h)
		return status.OK
	}

	if st.ijkWords&((1<<uint(a0))|(1<<uint(a1))) == 0 {
		return status.NoOffsetsInPlane
	}
	st.valueWords &^= wordI | wordJ | wordK
	if blk.modal.Units == unitsInches {
		for _, i := range [2]axis.Index{a0, a1} {
			if st.ijkWords&(1<<uint(i)) != 0 {
				blk.values.ijk[i] *= mmPerInch
			}
		}
	}
	cx := x - blk.values.ijk[a0]
	cy := y - blk.values.ijk[a1]
	targetR := math.Hypot(cx, cy)
	r := math.Hypot(blk.values.ijk[a0], blk.values.ijk[a1])
	deltaR := math.Abs(targetR - r)
	if deltaR > 0.005 {
		if deltaR > 0.5 {
			return status.InvalidTarget
		}
		if deltaR > 0.001*r {
			return status.InvalidTarget
		}
	}
	return status.OK
}

// dispatch commits the validated block to persistent modal state and runs
// it through the motion gateway.
func (p *Parser) dispatch(ctx context.Context, st *parseState) (status.Code, error) {
	blk := &st.blk

	flags := p.laserFlags(blk, st)

	p.lineNumber = blk.values.n
	p.modal.FeedRateMode = blk.modal.FeedRateMode
	var condition planner.Condition
	if p.modal.FeedRateMode == feedRateInverseTime {
		condition |= planner.InverseTime
	}
	p.feedRate = blk.values.f

	if p.spindleSpeed != blk.values.s || flags&flagLaserForceSync != 0 {
		p.spindleSpeed = blk.values.s
	}

	p.modal.Spindle = blk.modal.Spindle
	condition |= p.modal.Spindle

	p.modal.Coolant = blk.modal.Coolant
	condition |= p.modal.Coolant

	p.modal.Plane = blk.modal.Plane
	p.modal.Distance = blk.modal.Distance
	p.modal.Units = blk.modal.Units
	p.modal.CoordSelect = blk.modal.CoordSelect

	lineData := planner.LineData{
		FeedRate:     p.feedRate,
		SpindleSpeed: p.spindleSpeed,
		Condition:    condition,
	}
	if flags&flagLaserDisable != 0 {
		lineData.SpindleSpeed = 0
	}

	if blk.nonModalCommand == nonModalDwell {
		if err := p.motion.Dwell(ctx, time.Duration(blk.values.p*float64(time.Second))); err != nil {
			return status.OK, err
		}
	}

	p.modal.Motion = blk.modal.Motion
	if p.modal.Motion != motionNone && st.axisCmd == axisCommandMotionMode {
		var err error
		switch p.modal.Motion {
		case motionSeek:
			rapid := lineData
			rapid.Condition |= planner.Rapid
			err = p.motion.Line(ctx, blk.values.xyz, rapid)
		case motionLinear:
			err = p.motion.Line(ctx, blk.values.xyz, lineData)
		case motionCWArc, motionCCWArc:
			a0, a1, al := planeAxes(p.modal.Plane)
			plane := motion.Plane{Axis0: a0, Axis1: a1, Linear: al}
			radius := math.Hypot(blk.values.ijk[a0], blk.values.ijk[a1])
			err = p.motion.Arc(ctx, p.position, blk.values.xyz, blk.values.ijk, radius, plane,
				p.modal.Motion == motionCWArc, p.settings.ArcTolerance, lineData)
		}
		if err != nil {
			return status.OK, err
		}
		p.position = blk.values.xyz
	}

	p.modal.ProgramFlow = blk.modal.ProgramFlow
	if p.modal.ProgramFlow != programFlowRunning {
		if p.sync != nil {
			if err := p.sync.Synchronize(ctx); err != nil {
				return status.OK, err
			}
		}
		if p.modal.ProgramFlow == programFlowPaused {
			if p.sysFSM != nil {
				_ = p.sysFSM.Request(status.Hold)
			}
		} else {
			p.modal = defaultModal()
			p.feedRate = 0
			p.spindleSpeed = 0
		}
		p.modal.ProgramFlow = programFlowRunning
	}

	return status.OK, nil
}

// laserFlags computes the condition-bit synchronization flags the
// reference recovers from the laser-mode parser plugin: whether the laser
// must be forced off for this block, whether this block is itself motion
// claiming the laser, and whether a spindle/laser state change with no
// intervening motion must be force-synced immediately rather than queued.
func (p *Parser) laserFlags(blk *block, st *parseState) int {
	if !p.settings.LaserPowerCorrection {
		return 0
	}
	var flags int
	if blk.modal.Motion != motionLinear && blk.modal.Motion != motionCWArc && blk.modal.Motion != motionCCWArc {
		flags |= flagLaserDisable
	}
	if st.axisWords != 0 && st.axisCmd == axisCommandMotionMode {
		flags |= flagLaserIsMotion
	} else {
		if p.modal.Spindle == planner.SpindleCW {
			if p.modal.Motion == motionLinear || p.modal.Motion == motionCWArc || p.modal.Motion == motionCCWArc {
				if flags&flagLaserDisable != 0 {
					flags |= flagLaserForceSync
				}
			} else if flags&flagLaserDisable == 0 {
				flags |= flagLaserForceSync
			}
		}
	}
	return flags
}
