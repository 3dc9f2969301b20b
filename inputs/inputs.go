/*
 * Laser CNC motion core - limit/interlock input sub-FSM participants.
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

// Package inputs defines the two safety-input sub-FSM participants: travel
// limit switches and the interlock (door/e-stop) switches. Both report a
// simple tripped/safe boolean into the shared system FSM; reading the
// actual GPIO or ADC hardware behind that boolean is out of scope here,
// same as hardware.PulseSink's drivers.
package inputs

import (
	"github.com/openglow-cnc/lasercore/fsm"
	"github.com/openglow-cnc/lasercore/status"
)

// Sub-state values a limit/interlock reader reports. Only two states exist:
// the input is clear (safe) or it has tripped (alarm).
const (
	Safe = iota
	Tripped
)

// mapping is the {sub-state -> system state} table shared by both readers:
// Safe participates in every consensus state but ALARM (a reader that
// never trips has no say in the machine staying on or off), Tripped forces
// ALARM on its own.
var mapping = []fsm.Mapping{
	{State: status.Sleep, SubState: Safe},
	{State: status.Idle, SubState: Safe},
	{State: status.Homing, SubState: Safe},
	{State: status.Run, SubState: Safe},
	{State: status.Hold, SubState: Safe},
	{State: status.Alarm, SubState: Tripped},
}

// reader is the shared shape behind Switches and Limits: register once
// with the coordinator, then report a tripped/safe reading per input as it
// changes. It keeps each channel's last reading and reports the aggregate
// (any channel tripped) to the FSM.
type reader struct {
	coord *fsm.FSM
	sub   fsm.SubID

	count   int
	tripped []bool
}

func newReader(coord *fsm.FSM, sub fsm.SubID, count int) *reader {
	r := &reader{coord: coord, sub: sub, count: count, tripped: make([]bool, count)}
	coord.Register(sub, mapping, nil)
	return r
}

// Report records channel i's new tripped state and updates the
// coordinator. Indexes by the channel the caller actually names, so there
// is no cross-channel aliasing between the reported channel and whatever
// the aggregate scan happens to be looking at.
func (r *reader) Report(i int, tripped bool) error {
	r.tripped[i] = tripped
	sub := Safe
	for _, t := range r.tripped {
		if t {
			sub = Tripped
			break
		}
	}
	return r.coord.Update(r.sub, sub)
}

// Switches is the non-travel interlock reader: the enclosure door switch
// and the external e-stop line. Any one tripped forces the whole machine
// into ALARM.
type Switches struct{ reader }

// NewSwitches registers a Switches reader with coord over count
// independent interlock channels.
func NewSwitches(coord *fsm.FSM, count int) *Switches {
	return &Switches{reader: *newReader(coord, fsm.Switches, count)}
}

// Limits is the per-axis travel-limit reader (min and max switch per axis,
// so count is normally 2*axis.Count).
type Limits struct{ reader }

// NewLimits registers a Limits reader with coord over count independent
// limit-switch channels.
func NewLimits(coord *fsm.FSM, count int) *Limits {
	return &Limits{reader: *newReader(coord, fsm.Limits, count)}
}
