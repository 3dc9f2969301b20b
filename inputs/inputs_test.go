package inputs

/*
 * Laser CNC motion core - limit/interlock input tests.
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

import (
	"testing"
	"time"

	"github.com/openglow-cnc/lasercore/fsm"
	"github.com/openglow-cnc/lasercore/status"
)

// idleOnly registers a sub that always reports sub-state 0, mapped only to
// IDLE, standing in for the other coordinator participants this test isn't
// exercising.
func idleOnly(t *testing.T, coord *fsm.FSM, sub fsm.SubID) {
	t.Helper()
	if err := coord.Register(sub, []fsm.Mapping{{State: status.Idle, SubState: 0}}, nil); err != nil {
		t.Fatalf("register %v: %v", sub, err)
	}
	if err := coord.Update(sub, 0); err != nil {
		t.Fatalf("update %v: %v", sub, err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestLimitsTripForcesAlarm(t *testing.T) {
	coord := fsm.New(nil)
	idleOnly(t, coord, fsm.CLI)
	idleOnly(t, coord, fsm.OpenGlow)
	idleOnly(t, coord, fsm.Switches)
	idleOnly(t, coord, fsm.Motion)

	limits := NewLimits(coord, 4)

	go coord.Run()
	defer coord.Stop()

	waitFor(t, func() bool { return coord.State() == status.Idle })

	if err := limits.Report(2, true); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return coord.State() == status.Alarm })

	if err := limits.Report(2, false); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return coord.State() == status.Idle })
}

func TestLimitsOtherChannelUntouchedByReport(t *testing.T) {
	coord := fsm.New(nil)
	idleOnly(t, coord, fsm.CLI)
	idleOnly(t, coord, fsm.OpenGlow)
	idleOnly(t, coord, fsm.Switches)
	idleOnly(t, coord, fsm.Motion)

	limits := NewLimits(coord, 4)

	go coord.Run()
	defer coord.Stop()

	waitFor(t, func() bool { return coord.State() == status.Idle })

	if err := limits.Report(0, true); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return coord.State() == status.Alarm })

	// clearing a channel that was never tripped must not clear the one
	// that is; aggregate tripped state stays ALARM until channel 0 clears.
	if err := limits.Report(1, false); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)
	if coord.State() != status.Alarm {
		t.Fatalf("want ALARM to persist, got %v", coord.State())
	}

	if err := limits.Report(0, false); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return coord.State() == status.Idle })
}

func TestSwitchesTripForcesAlarm(t *testing.T) {
	coord := fsm.New(nil)
	idleOnly(t, coord, fsm.CLI)
	idleOnly(t, coord, fsm.OpenGlow)
	idleOnly(t, coord, fsm.Limits)
	idleOnly(t, coord, fsm.Motion)

	switches := NewSwitches(coord, 2)

	go coord.Run()
	defer coord.Stop()

	waitFor(t, func() bool { return coord.State() == status.Idle })

	if err := switches.Report(1, true); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return coord.State() == status.Alarm })
}

func TestReportRejectsOutOfRangeChannel(t *testing.T) {
	coord := fsm.New(nil)
	limits := NewLimits(coord, 2)
	defer func() {
		if recover() == nil {
			t.Fatal("want panic indexing out-of-range channel")
		}
	}()
	_ = limits.Report(5, true)
}
