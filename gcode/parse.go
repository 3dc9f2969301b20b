/*
 * Laser CNC motion core - RS-274/NGC line parser, tokenize and validate.
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
	"github.com/openglow-cnc/lasercore/axis"
	"github.com/openglow-cnc/lasercore/planner"
	"github.com/openglow-cnc/lasercore/status"
)

// parseState is the scratch bookkeeping for one line's tokenize pass: which
// words and modal groups have been claimed so far, and who (if anyone) has
// claimed the axis words.
type parseState struct {
	blk        block
	axisCmd    axisCommand
	axisWords  uint8
	ijkWords   uint8
	valueWords uint16
	groupWords uint16
}

// tokenize scans line (already Preprocess-d: upper-case, no whitespace, no
// comments) into st.blk, claiming words and modal groups as it goes. It
// never touches p's persistent state.
func (p *Parser) tokenize(line string, st *parseState) status.Code {
	st.blk.modal = p.modal
	i := 0
	for i < len(line) {
		letter := line[i]
		if letter < 'A' || letter > 'Z' {
			return status.ExpectedCommandLetter
		}
		i++
		value, next, ok := readNumber(line, i)
		if !ok {
			return status.BadNumberFormat
		}
		i = next

		var code status.Code
		switch letter {
		case 'G':
			code = p.tokenizeG(value, st)
		case 'M':
			code = p.tokenizeM(value, st)
		default:
			code = p.tokenizeWord(letter, value, st)
		}
		if code != status.OK {
			return code
		}
	}
	return status.OK
}

func claimGroup(st *parseState, group uint16) status.Code {
	if st.groupWords&group != 0 {
		return status.ModalGroupViolation
	}
	st.groupWords |= group
	return status.OK
}

func claimAxisCommand(st *parseState, claim axisCommand) status.Code {
	if st.axisCmd != axisCommandNone && st.axisCmd != claim {
		return status.AxisCommandConflict
	}
	st.axisCmd = claim
	return status.OK
}

func (p *Parser) tokenizeG(value float64, st *parseState) status.Code {
	whole, mantissa := splitMantissa(value)
	switch whole {
	case 4: // dwell
		if code := claimGroup(st, groupNonModal); code != status.OK {
			return code
		}
		st.blk.nonModalCommand = nonModalDwell
	case nonModalSetCoordData, nonModalHome1, nonModalHome2, nonModalSetOffset:
		if mantissa != 0 {
			// .1 sub-variants (G28.1, G92.1, ...) are out of scope:
			// no work-offset table or stored-position memory here.
			return status.UnsupportedCommand
		}
		if code := claimGroup(st, groupNonModal); code != status.OK {
			return code
		}
		if code := claimAxisCommand(st, axisCommandNonModal); code != status.OK {
			return code
		}
		st.blk.nonModalCommand = whole
	case 53:
		if code := claimGroup(st, groupNonModal); code != status.OK {
			return code
		}
		st.blk.nonModalCommand = nonModalMachineCoords
	case 0, 1, 2, 3:
		if code := claimGroup(st, groupMotion); code != status.OK {
			return code
		}
		if code := claimAxisCommand(st, axisCommandMotionMode); code != status.OK {
			return code
		}
		st.blk.modal.Motion = whole
	case 80:
		if code := claimGroup(st, groupMotion); code != status.OK {
			return code
		}
		st.blk.modal.Motion = motionNone
	case 17, 18, 19:
		if code := claimGroup(st, groupPlane); code != status.OK {
			return code
		}
		st.blk.modal.Plane = whole - 17
	case 90:
		if mantissa != 0 {
			// G90.1 (absolute arc distance mode) has no representation
			// here; only the incremental form (G91.1) is supported.
			return status.UnsupportedCommand
		}
		if code := claimGroup(st, groupDistance); code != status.OK {
			return code
		}
		st.blk.modal.Distance = distanceAbsolute
	case 91:
		if mantissa != 0 {
			if mantissa != 10 {
				return status.UnsupportedCommand
			}
			if code := claimGroup(st, groupArcDistance); code != status.OK {
				return code
			}
			// G91.1: arc IJK increments are already relative to the arc
			// start by default, so this is a no-op.
			st.blk.modal.ArcDistance = arcDistanceIncremental
			mantissa = 0
			break
		}
		if code := claimGroup(st, groupDistance); code != status.OK {
			return code
		}
		st.blk.modal.Distance = distanceIncremental
	case 93:
		if code := claimGroup(st, groupFeedRateMode); code != status.OK {
			return code
		}
		st.blk.modal.FeedRateMode = feedRateInverseTime
	case 94:
		if code := claimGroup(st, groupFeedRateMode); code != status.OK {
			return code
		}
		st.blk.modal.FeedRateMode = feedRateUnitsPerMin
	case 20:
		if code := claimGroup(st, groupUnits); code != status.OK {
			return code
		}
		st.blk.modal.Units = unitsInches
	case 21:
		if code := claimGroup(st, groupUnits); code != status.OK {
			return code
		}
		st.blk.modal.Units = unitsMM
	case 40:
		if code := claimGroup(st, groupCutterComp); code != status.OK {
			return code
		}
		// cutter compensation is always off in this core; G40 is accepted
		// as a no-op so programs that defensively cancel it still load.
	case 43, 49, 54, 55, 56, 57, 58, 59:
		if code := claimGroup(st, groupWCS); code != status.OK {
			return code
		}
		st.blk.modal.CoordSelect = whole - 54
	case 61:
		if mantissa != 0 {
			return status.UnsupportedCommand
		}
		if code := claimGroup(st, groupControl); code != status.OK {
			return code
		}
		// G61 exact-stop mode: accepted, not distinguished from path
		// blending since this core has no lookahead blending to disable.
	default:
		return status.UnsupportedCommand
	}
	if mantissa != 0 {
		return status.CommandValueNotInteger
	}
	return status.OK
}

func (p *Parser) tokenizeM(value float64, st *parseState) status.Code {
	whole, mantissa := splitMantissa(value)
	if mantissa != 0 {
		return status.CommandValueNotInteger
	}
	switch whole {
	case 0:
		if code := claimGroup(st, groupProgramFlow); code != status.OK {
			return code
		}
		st.blk.modal.ProgramFlow = programFlowPaused
	case 1:
		if code := claimGroup(st, groupProgramFlow); code != status.OK {
			return code
		}
		// optional stop: this core has no operator-selectable stop
		// switch, so M1 loads but leaves program flow unchanged.
	case 2:
		if code := claimGroup(st, groupProgramFlow); code != status.OK {
			return code
		}
		st.blk.modal.ProgramFlow = programFlowDone2
	case 30:
		if code := claimGroup(st, groupProgramFlow); code != status.OK {
			return code
		}
		st.blk.modal.ProgramFlow = programFlowDone30
	case 3:
		if code := claimGroup(st, groupSpindle); code != status.OK {
			return code
		}
		st.blk.modal.Spindle = planner.SpindleCW
	case 4:
		if code := claimGroup(st, groupSpindle); code != status.OK {
			return code
		}
		st.blk.modal.Spindle = planner.LaserEnable
	case 5:
		if code := claimGroup(st, groupSpindle); code != status.OK {
			return code
		}
		st.blk.modal.Spindle = 0
	case 8:
		if code := claimGroup(st, groupCoolant); code != status.OK {
			return code
		}
		st.blk.modal.Coolant |= planner.CoolantFlood
	case 9:
		if code := claimGroup(st, groupCoolant); code != status.OK {
			return code
		}
		st.blk.modal.Coolant = 0
	default:
		return status.UnsupportedCommand
	}
	return status.OK
}

func claimWord(st *parseState, bit uint16) status.Code {
	if st.valueWords&bit != 0 {
		return status.WordRepeated
	}
	st.valueWords |= bit
	return status.OK
}

func (p *Parser) tokenizeWord(letter byte, value float64, st *parseState) status.Code {
	switch letter {
	case 'F':
		if code := claimWord(st, wordF); code != status.OK {
			return code
		}
		if value < 0 {
			return status.NegativeValue
		}
		st.blk.values.f = value
	case 'I':
		if code := claimWord(st, wordI); code != status.OK {
			return code
		}
		st.blk.values.ijk[axis.X] = value
		st.ijkWords |= 1 << axis.X
	case 'J':
		if code := claimWord(st, wordJ); code != status.OK {
			return code
		}
		st.blk.values.ijk[axis.Y] = value
		st.ijkWords |= 1 << axis.Y
	case 'K':
		if code := claimWord(st, wordK); code != status.OK {
			return code
		}
		st.blk.values.ijk[axis.Z] = value
		st.ijkWords |= 1 << axis.Z
	case 'L':
		if code := claimWord(st, wordL); code != status.OK {
			return code
		}
		st.blk.values.l = int(value)
	case 'N':
		if code := claimWord(st, wordN); code != status.OK {
			return code
		}
		if value < 0 {
			return status.NegativeValue
		}
		st.blk.values.n = int32(value)
	case 'P':
		if code := claimWord(st, wordP); code != status.OK {
			return code
		}
		if value < 0 {
			return status.NegativeValue
		}
		st.blk.values.p = value
	case 'R':
		if code := claimWord(st, wordR); code != status.OK {
			return code
		}
		st.blk.values.r = value
	case 'S':
		if code := claimWord(st, wordS); code != status.OK {
			return code
		}
		if value < 0 {
			return status.NegativeValue
		}
		st.blk.values.s = value
	case 'X':
		if code := claimWord(st, wordX); code != status.OK {
			return code
		}
		st.blk.values.xyz[axis.X] = value
		st.axisWords |= 1 << axis.X
	case 'Y':
		if code := claimWord(st, wordY); code != status.OK {
			return code
		}
		st.blk.values.xyz[axis.Y] = value
		st.axisWords |= 1 << axis.Y
	case 'Z':
		if code := claimWord(st, wordZ); code != status.OK {
			return code
		}
		st.blk.values.xyz[axis.Z] = value
		st.axisWords |= 1 << axis.Z
	default:
		// T (tool select) and any other unrecognized letter: not
		// supported by this core, same as a bare unknown command.
		return status.UnsupportedCommand
	}
	return status.OK
}
