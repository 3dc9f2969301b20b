package fsm

/*
 * Laser CNC motion core - FSM coordinator tests.
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
	"sync"
	"testing"
	"time"

	"github.com/openglow-cnc/lasercore/status"
)

func allIdleRegs() [numSubs]registration {
	var regs [numSubs]registration
	for i := range regs {
		regs[i] = registration{
			registered: true,
			subState:   0,
			maps: []Mapping{
				{State: status.Idle, SubState: 0},
				{State: status.Run, SubState: 1},
				{State: status.Alarm, SubState: 2},
			},
		}
	}
	return regs
}

func TestArbitrateForcesInitUntilAllRegistered(t *testing.T) {
	regs := allIdleRegs()
	regs[Limits].registered = false

	next, matched, conflict := arbitrate(regs[:], status.Idle, true)
	if !matched || conflict || next != status.Init {
		t.Fatalf("want (Init,true,false), got (%v,%v,%v)", next, matched, conflict)
	}
}

func TestArbitratePriorityWinsOverConsensus(t *testing.T) {
	regs := allIdleRegs()
	regs[Limits].subState = 2 // maps to Alarm

	next, matched, conflict := arbitrate(regs[:], status.Idle, true)
	if !matched || conflict || next != status.Alarm {
		t.Fatalf("want (Alarm,true,false), got (%v,%v,%v)", next, matched, conflict)
	}
}

func TestArbitrateHighestIndexedPriorityWins(t *testing.T) {
	regs := allIdleRegs()
	for i := range regs {
		regs[i].maps = append(regs[i].maps, Mapping{State: status.Fault, SubState: 3})
	}
	regs[Limits].subState = 2 // Alarm
	regs[Motion].subState = 3 // Fault

	next, matched, conflict := arbitrate(regs[:], status.Idle, true)
	if !matched || conflict || next != status.Fault {
		t.Fatalf("want Fault (highest-indexed priority state), got %v", next)
	}
}

func TestArbitrateConsensusOnRequest(t *testing.T) {
	regs := allIdleRegs()
	for i := range regs {
		regs[i].subState = 1 // all map to Run
	}

	next, matched, conflict := arbitrate(regs[:], status.Run, true)
	if !matched || conflict || next != status.Run {
		t.Fatalf("want (Run,true,false), got (%v,%v,%v)", next, matched, conflict)
	}
}

func TestArbitrateNoConsensusNoTransition(t *testing.T) {
	regs := allIdleRegs()
	regs[Limits].subState = 1 // Run; rest stay Idle

	next, matched, conflict := arbitrate(regs[:], status.Hold, true)
	if matched || conflict {
		t.Fatalf("want no transition, got (%v,%v,%v)", next, matched, conflict)
	}
}

func TestArbitrateConflictingConsensusLogsNoTransition(t *testing.T) {
	regs := allIdleRegs()
	for i := range regs {
		regs[i].maps = append(regs[i].maps, Mapping{State: status.Hold, SubState: 0})
	}
	// every sub is at subState 0, which now maps to BOTH Idle and Hold.
	_, matched, conflict := arbitrate(regs[:], status.Run, false)
	if matched || !conflict {
		t.Fatalf("want conflicting consensus, got matched=%v conflict=%v", matched, conflict)
	}
}

func TestFSMEndToEndAlarmWithinOneCycle(t *testing.T) {
	f := New(nil)
	var mu sync.Mutex
	var transitions []status.State
	handler := func(s status.State) {
		mu.Lock()
		transitions = append(transitions, s)
		mu.Unlock()
	}

	maps := []Mapping{
		{State: status.Idle, SubState: 0},
		{State: status.Alarm, SubState: 1},
	}
	for _, sub := range []SubID{CLI, OpenGlow, Switches, Motion, Limits} {
		if err := f.Register(sub, maps, handler); err != nil {
			t.Fatalf("register %v: %v", sub, err)
		}
	}

	go f.Run()
	defer f.Stop()

	for _, sub := range []SubID{CLI, OpenGlow, Switches, Motion} {
		if err := f.Update(sub, 0); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.Update(Limits, 0); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { return f.State() == status.Idle })

	if err := f.Update(Limits, 1); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { return f.State() == status.Alarm })
}

func TestFSMUpdateFromUnregisteredSubRejected(t *testing.T) {
	f := New(nil)
	if err := f.Update(Motion, 0); err == nil {
		t.Fatal("want error updating unregistered sub")
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
