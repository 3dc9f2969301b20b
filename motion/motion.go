/*
 * Laser CNC motion core - high-level motion commands.
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

// Package motion is the gateway every commanded move passes through before
// reaching the planner: straight lines, dwells, and arcs decomposed into a
// run of tiny straight lines. gcode never talks to planner directly.
package motion

import (
	"context"
	"math"
	"time"

	"github.com/openglow-cnc/lasercore/axis"
	"github.com/openglow-cnc/lasercore/fsm"
	"github.com/openglow-cnc/lasercore/planner"
	"github.com/openglow-cnc/lasercore/status"
	"github.com/openglow-cnc/lasercore/util/debug"
)

// arcAngularTravelEpsilon and arcCorrectionInterval are recovered from the
// reference's grbl_glue.h: the epsilon guards the direction correction on a
// near-zero angular travel, and the correction interval bounds how much
// small-angle drift the rotation-matrix approximation can accumulate before
// an exact trig recomputation.
const (
	arcAngularTravelEpsilon = 5e-7
	arcCorrectionInterval   = 12
)

// Motion is the gateway between commanded moves and the planner ring. The
// zero value is not usable; construct with New.
type Motion struct {
	ring *planner.Ring

	sysFSM    *fsm.FSM
	autoCycle bool
}

// New builds a Motion gateway over ring.
func New(ring *planner.Ring) *Motion {
	return &Motion{ring: ring}
}

// SetFSM attaches the system FSM coordinator so Line can refuse to queue
// while FAULT/ALARM is active and, when autoCycle is set, request RUN once
// the ring fills. Called once during controller wiring, before the FSM's
// own goroutine starts.
func (m *Motion) SetFSM(f *fsm.FSM, autoCycle bool) {
	m.sysFSM = f
	m.autoCycle = autoCycle
}

// Line queues a straight move to target (absolute machine coordinates, mm),
// blocking until the planner has room. ctx is checked once, before the move
// is queued; cancellation does not interrupt a wait for a free slot that
// has already begun. On FAULT or ALARM the move is dropped silently,
// matching mc_line's behavior of returning without queueing rather than
// surfacing an error.
func (m *Motion) Line(ctx context.Context, target axis.Vector, data planner.LineData) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.sysFSM != nil {
		if s := m.sysFSM.State(); s == status.Fault || s == status.Alarm {
			debug.Tracef(debug.Motion, "line dropped, system state %v", s)
			return nil
		}
	}
	queued, err := m.ring.BufferLine(target, data)
	if err != nil {
		return err
	}
	if !queued {
		debug.Tracef(debug.Motion, "zero-length line collapsed at %v", target)
	}
	if m.sysFSM != nil && m.autoCycle && m.ring.Full() {
		if s := m.sysFSM.State(); s != status.Run {
			if err := m.sysFSM.Request(status.Run); err != nil {
				debug.Tracef(debug.Motion, "auto-cycle RUN request failed: %v", err)
			}
		}
	}
	return nil
}

// dwellStep is the granularity mc_dwell naps in, so a concurrent FAULT/ALARM
// transition or context cancellation is noticed promptly instead of only at
// the end of the full duration.
const dwellStep = 50 * time.Millisecond

// Dwell pauses program execution for the given duration without feeding any
// motion blocks, mirroring mc_dwell. It sleeps in dwellStep increments,
// checking for FAULT/ALARM between naps; the reference leaves buffer
// synchronization before a dwell as an open TODO, not required for this
// port. ctx cancellation returns early with the context's error.
func (m *Motion) Dwell(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	deadline := time.Now().Add(d)
	for {
		if m.sysFSM != nil {
			if s := m.sysFSM.State(); s == status.Fault || s == status.Alarm {
				debug.Tracef(debug.Motion, "dwell aborted, system state %v", s)
				return nil
			}
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil
		}
		step := dwellStep
		if remaining < step {
			step = remaining
		}
		t := time.NewTimer(step)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
	}
}

// Plane identifies the two in-plane axes and the one linear (helical) axis
// for an arc, as selected by the active G17/G18/G19 modal plane.
type Plane struct {
	Axis0, Axis1, Linear axis.Index
}

// Arc executes a circular (or helical) move from position to target,
// decomposed into straight-line segments short enough to stay within the
// configured chordal tolerance. offset is the vector from position to the
// circle center, in the two in-plane axes; radius is the circle radius.
//
// The segmentation and vector-rotation approximation (with periodic exact
// trig correction) are ported unchanged from mc_arc: small-angle rotation
// is far cheaper per segment than repeated sin/cos, and is accurate enough
// for any arc tolerance a laser gantry would realistically use.
func (m *Motion) Arc(ctx context.Context, position, target axis.Vector, offset axis.Vector, radius float64, plane Plane, clockwise bool, arcTolerance float64, data planner.LineData) error {
	a0, a1, al := plane.Axis0, plane.Axis1, plane.Linear

	centerA0 := position[a0] + offset[a0]
	centerA1 := position[a1] + offset[a1]
	rA0 := -offset[a0]
	rA1 := -offset[a1]
	rtA0 := target[a0] - centerA0
	rtA1 := target[a1] - centerA1

	angularTravel := math.Atan2(rA0*rtA1-rA1*rtA0, rA0*rtA0+rA1*rtA1)
	if clockwise {
		if angularTravel >= -arcAngularTravelEpsilon {
			angularTravel -= 2 * math.Pi
		}
	} else {
		if angularTravel <= arcAngularTravelEpsilon {
			angularTravel += 2 * math.Pi
		}
	}

	segments := int(math.Floor(math.Abs(0.5*angularTravel*radius) / math.Sqrt(arcTolerance*(2*radius-arcTolerance))))

	if segments > 0 {
		if data.Condition&planner.InverseTime != 0 {
			data.FeedRate *= float64(segments)
			data.Condition &^= planner.InverseTime
		}

		thetaPerSegment := angularTravel / float64(segments)
		linearPerSegment := (target[al] - position[al]) / float64(segments)

		// Rotation matrix approximated to third order: cosT = 1 -
		// theta^2/2, sinT = theta - theta^3/6. Exact trig is
		// recomputed from the original radius vector every
		// arcCorrectionInterval segments to bound drift.
		cosT := 2.0 - thetaPerSegment*thetaPerSegment
		sinT := thetaPerSegment * 0.16666667 * (cosT + 4.0)
		cosT *= 0.5

		count := 0
		cur := position
		for i := 1; i < segments; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if count < arcCorrectionInterval {
				rAxisI := rA0*sinT + rA1*cosT
				rA0 = rA0*cosT - rA1*sinT
				rA1 = rAxisI
				count++
			} else {
				theta := float64(i) * thetaPerSegment
				cosTi := math.Cos(theta)
				sinTi := math.Sin(theta)
				rA0 = -offset[a0]*cosTi + offset[a1]*sinTi
				rA1 = -offset[a0]*sinTi - offset[a1]*cosTi
				count = 0
			}

			cur[a0] = centerA0 + rA0
			cur[a1] = centerA1 + rA1
			cur[al] += linearPerSegment

			if err := m.Line(ctx, cur, data); err != nil {
				return err
			}
		}
	}

	return m.Line(ctx, target, data)
}
