/*
 * Laser CNC motion core - RS-274/NGC line parser.
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

// Package gcode parses one RS-274/NGC line at a time into a validated block
// and dispatches it to the motion gateway. Every line goes through the same
// two phases as the reference: a tokenize-and-classify pass that never
// mutates persistent state, followed by an error-check-and-convert pass
// ordered to match the reference exactly, so the same malformed line always
// fails with the same status code. Only on a fully clean block does
// Execute touch the parser's persistent modal state or call motion.
package gcode

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/openglow-cnc/lasercore/axis"
	"github.com/openglow-cnc/lasercore/fsm"
	"github.com/openglow-cnc/lasercore/motion"
	"github.com/openglow-cnc/lasercore/planner"
	"github.com/openglow-cnc/lasercore/settings"
)

// Motion mode, G1 modal group values.
const (
	motionSeek   = 0  // G0
	motionLinear = 1  // G1
	motionCWArc  = 2  // G2
	motionCCWArc = 3  // G3
	motionNone   = 80 // G80
)

// Feed rate mode, G5 modal group.
const (
	feedRateUnitsPerMin = 0 // G94
	feedRateInverseTime = 1 // G93
)

// Units, G6 modal group.
const (
	unitsMM     = 0 // G21
	unitsInches = 1 // G20
)

// Plane select, G2 modal group.
const (
	planeXY = 0 // G17
	planeZX = 1 // G18
	planeYZ = 2 // G19
)

// Distance mode, G3 modal group.
const (
	distanceAbsolute    = 0 // G90
	distanceIncremental = 1 // G91
)

// Arc distance mode, G4 modal group. Only the incremental form (G91.1,
// the default) is supported; absolute arc distance mode (G90.1) has no
// representation here.
const (
	arcDistanceIncremental = 0 // G91.1
)

// Program flow, M4 modal group. 2 and 30 both mean "program complete"; the
// reference keeps them distinct on the wire but treats them identically.
const (
	programFlowRunning = 0
	programFlowPaused  = 1 // M0, program pause
	programFlowDone2   = 2 // M2
	programFlowDone30  = 30 // M30
)

const (
	nonModalDwell         = 4 // G4
	nonModalHome1         = 28
	nonModalHome2         = 30
	nonModalSetOffset     = 92
	nonModalMachineCoords = 53
	nonModalSetCoordData  = 10
)

const mmPerInch = 25.4

// maxLineNumber is the largest N word this parser accepts; the reference
// calls anything above it an overflow of the line-number field.
const maxLineNumber = 10000000

// Modal is the persistent modal state carried from block to block, the
// part of gc_state.modal this port actually uses.
type Modal struct {
	Motion       int
	Plane        int
	Distance     int
	ArcDistance  int
	FeedRateMode int
	Units        int
	CoordSelect  int
	ProgramFlow  int
	Coolant      planner.Condition
	Spindle      planner.Condition
}

// defaultModal is the modal state a fresh parser, or a completed program
// (M2/M30), resets to.
func defaultModal() Modal {
	return Modal{
		Motion:       motionLinear,
		Plane:        planeXY,
		Distance:     distanceAbsolute,
		ArcDistance:  arcDistanceIncremental,
		FeedRateMode: feedRateUnitsPerMin,
		Units:        unitsMM,
	}
}

// Synchronizer drains the motion pipeline, used for the buffer-synchronize
// point M0/M2/M30 force before resetting or pausing.
type Synchronizer interface {
	Synchronize(ctx context.Context) error
}

// Parser holds the persistent state an RS-274/NGC stream carries from line
// to line: modal group settings, the last commanded position, feed rate,
// and spindle/laser speed. The zero value is not usable; construct with
// NewParser.
type Parser struct {
	modal        Modal
	position     axis.Vector
	feedRate     float64
	spindleSpeed float64
	lineNumber   int32

	motion   *motion.Motion
	settings *settings.Settings
	sync     Synchronizer
	sysFSM   *fsm.FSM
}

// NewParser builds a parser in the default modal state, dispatching
// executed moves to m and reading kinematics limits from cfg.
func NewParser(m *motion.Motion, cfg *settings.Settings) *Parser {
	return &Parser{
		modal:    defaultModal(),
		motion:   m,
		settings: cfg,
	}
}

// SetSynchronizer attaches the buffer-drain hook M0/M2/M30 call before
// resetting or pausing modal state.
func (p *Parser) SetSynchronizer(s Synchronizer) { p.sync = s }

// SetFSM attaches the system FSM so M0 can request HOLD.
func (p *Parser) SetFSM(f *fsm.FSM) { p.sysFSM = f }

// SyncPosition overwrites the parser's notion of the current commanded
// position, for homing and cold-start initialization.
func (p *Parser) SyncPosition(pos axis.Vector) { p.position = pos }

// Position returns the parser's last commanded target.
func (p *Parser) Position() axis.Vector { return p.position }

// Modal returns a copy of the current persistent modal state.
func (p *Parser) Modal() Modal { return p.modal }

// LineNumber returns the last N word the parser saw (0 if the stream
// never sends them).
func (p *Parser) LineNumber() int32 { return p.lineNumber }

// axisCommand classifies what in the block is claiming the axis words,
// so two different claimants on the same line are caught as a conflict.
type axisCommand int

const (
	axisCommandNone axisCommand = iota
	axisCommandNonModal
	axisCommandMotionMode
)

// word bit positions for the repeated/unused-word bookkeeping.
const (
	wordF = 1 << iota
	wordI
	wordJ
	wordK
	wordL
	wordN
	wordP
	wordR
	wordS
	wordT
	wordX
	wordY
	wordZ
)

// modal group bit positions for the same-line modal-group-violation check.
const (
	groupNonModal = 1 << iota
	groupMotion
	groupPlane
	groupDistance
	groupArcDistance
	groupFeedRateMode
	groupUnits
	groupCutterComp
	groupWCS
	groupControl
	groupProgramFlow
	groupSpindle
	groupCoolant
)

// values holds the transient per-block word values.
type values struct {
	f   float64
	ijk axis.Vector
	l   int
	n   int32
	p   float64
	r   float64
	s   float64
	xyz axis.Vector
}

// block is the transient parse record built for one line, discarded once
// Execute returns.
type block struct {
	nonModalCommand int
	modal           Modal
	values          values
}

// laser-mode condition-bit flags, computed from modal state right before
// dispatch.
const (
	flagLaserDisable = 1 << iota
	flagLaserIsMotion
	flagLaserForceSync
)

// Preprocess strips block-delete lines, inline and trailing comments, and
// whitespace, and upper-cases the remainder, mirroring gc_process_line.
// A block-delete line ("/...") or a comment-only line reduces to "".
func Preprocess(line string) string {
	if strings.HasPrefix(line, "/") {
		return ""
	}
	var b strings.Builder
	depth := 0
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '(':
			depth++
		case c == ')':
			if depth > 0 {
				depth--
			}
		case c == ';':
			i = len(line)
		case depth == 0 && c != ' ' && c != '\t':
			if c >= 'a' && c <= 'z' {
				c -= 'a' - 'A'
			}
			b.WriteByte(c)
		}
	}
	return b.String()
}

func readNumber(line string, i int) (float64, int, bool) {
	start := i
	if i < len(line) && (line[i] == '+' || line[i] == '-') {
		i++
	}
	digits := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
		digits++
	}
	if i < len(line) && line[i] == '.' {
		i++
		for i < len(line) && line[i] >= '0' && line[i] <= '9' {
			i++
			digits++
		}
	}
	if digits == 0 {
		return 0, start, false
	}
	v, err := strconv.ParseFloat(line[start:i], 64)
	if err != nil {
		return 0, start, false
	}
	return v, i, true
}

// splitMantissa separates a G-word value into its integer code and the
// hundredths-place mantissa used to pick .1 sub-variants (e.g. G59.1).
func splitMantissa(v float64) (int, int) {
	whole := int(v)
	mantissa := int(math.Round((v - float64(whole)) * 100))
	return whole, mantissa
}
