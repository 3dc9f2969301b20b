/*
 * Laser CNC motion core - system FSM coordinator.
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

// Package fsm implements the system-wide finite state machine coordinator.
// Sub-FSMs (gcode parser, hardware I/O, limit switches, motion, the safety
// input readers) each register a table mapping their own, opaque sub-states
// onto the shared system states, then report their current sub-state as it
// changes. The coordinator arbitrates all of those reports into a single
// authoritative system state.
package fsm

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/openglow-cnc/lasercore/status"
)

// SubID names one of the fixed set of sub-FSM participants.
type SubID int

const (
	CLI SubID = iota
	OpenGlow
	Switches
	Motion
	Limits

	numSubs
)

func (s SubID) String() string {
	switch s {
	case CLI:
		return "cli"
	case OpenGlow:
		return "openglow"
	case Switches:
		return "switches"
	case Motion:
		return "motion"
	case Limits:
		return "limits"
	default:
		return "unknown"
	}
}

// Uninitialized is a sub-state value that holds the system in INIT while any
// sub reports it. Register does not set it: registering immediately gives
// the sub a concrete current sub-state of 0, matching the reference
// coordinator (which treats "registered" as "initialized").
const Uninitialized = -1

// kind classifies a system state as requiring priority or consensus
// arbitration.
type kind int

const (
	consensus kind = iota
	priority
)

var stateKind = [8]kind{
	status.Init:   priority,
	status.Sleep:  consensus,
	status.Idle:   consensus,
	status.Homing: consensus,
	status.Run:    consensus,
	status.Hold:   consensus,
	status.Alarm:  priority,
	status.Fault:  priority,
}

// Mapping declares that subState is acceptable while the system is in
// state. A sub may list several mappings for the same system state if more
// than one of its own sub-states should be accepted under it.
type Mapping struct {
	State    status.State
	SubState int
}

// Handler is invoked after every system-state transition.
type Handler func(status.State)

type registration struct {
	registered bool
	subState   int
	maps       []Mapping
	handler    Handler
}

type updateMsg struct {
	sub      SubID
	subState int
}

// FSM is the system-wide state coordinator. The zero value is not usable;
// construct with New.
type FSM struct {
	mu   sync.Mutex
	regs [numSubs]registration

	state     status.State
	requested status.State
	hasReq    bool

	updates chan updateMsg
	request chan status.State
	done    chan struct{}
	wg      sync.WaitGroup

	log *slog.Logger
}

// New builds an FSM in SYS_STATE_INIT with no sub-FSMs registered yet.
func New(log *slog.Logger) *FSM {
	if log == nil {
		log = slog.Default()
	}
	return &FSM{
		state:     status.Init,
		requested: status.Init,
		hasReq:    false,
		updates:   make(chan updateMsg, 64),
		request:   make(chan status.State, 8),
		done:      make(chan struct{}),
		log:       log,
	}
}

// Register declares sub's acceptable sub-states per system state and an
// optional transition handler. Must be called before Run for a sub whose
// updates should count toward consensus.
func (f *FSM) Register(sub SubID, maps []Mapping, handler Handler) error {
	if sub < 0 || sub >= numSubs {
		return errors.New("fsm: invalid sub id")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.regs[sub] = registration{registered: true, subState: 0, maps: maps, handler: handler}
	return nil
}

// Run processes updates and requests until Stop is called. It must run in
// its own goroutine; all arbitration happens serialized on this goroutine.
func (f *FSM) Run() {
	f.wg.Add(1)
	defer f.wg.Done()
	for {
		select {
		case <-f.done:
			return
		case u := <-f.updates:
			f.applyUpdate(u.sub, u.subState)
			f.arbitrate()
		case s := <-f.request:
			f.mu.Lock()
			f.requested = s
			f.hasReq = true
			f.mu.Unlock()
			f.arbitrate()
		}
	}
}

// Stop halts Run and waits for it to return.
func (f *FSM) Stop() {
	close(f.done)
	f.wg.Wait()
}

// Update reports sub's new sub-state. Submitting from an unregistered sub is
// rejected without any state change. Queue overflow is returned as an
// error to the caller: a full update queue means the coordinator has
// stalled, which the reference treats as reason to raise an alarm upstream.
func (f *FSM) Update(sub SubID, subState int) error {
	if sub < 0 || sub >= numSubs {
		return errors.New("fsm: update from unregistered sub " + sub.String())
	}
	f.mu.Lock()
	reg := f.regs[sub]
	f.mu.Unlock()
	if !reg.registered {
		return errors.New("fsm: update from unregistered sub " + sub.String())
	}
	select {
	case f.updates <- updateMsg{sub: sub, subState: subState}:
		return nil
	default:
		return errors.New("fsm: update queue overflow")
	}
}

// Request asks the coordinator to transition to state once consensus
// allows it.
func (f *FSM) Request(state status.State) error {
	select {
	case f.request <- state:
		return nil
	default:
		return errors.New("fsm: request queue overflow")
	}
}

// State returns the current authoritative system state.
func (f *FSM) State() status.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *FSM) applyUpdate(sub SubID, subState int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.regs[sub].subState = subState
}

// arbitrate runs the arbitration algorithm from the current snapshot of
// sub-states and transitions the system state if warranted. It holds the
// mutex only to read/write the shared state, notifying handlers and logging
// conflicts outside the lock.
func (f *FSM) arbitrate() {
	f.mu.Lock()
	var regs [numSubs]registration
	copy(regs[:], f.regs[:])
	requested := f.requested
	hasReq := f.hasReq
	f.mu.Unlock()

	next, matched, conflict := arbitrate(regs[:], requested, hasReq)
	if conflict {
		f.log.Warn("fsm: conflicting consensus, no transition")
		return
	}
	if !matched {
		return
	}

	f.mu.Lock()
	changed := f.state != next
	f.state = next
	if matched && f.hasReq && f.requested == next {
		f.hasReq = false
	}
	handlers := make([]Handler, 0, numSubs)
	if changed {
		for i := range f.regs {
			if f.regs[i].registered && f.regs[i].handler != nil {
				handlers = append(handlers, f.regs[i].handler)
			}
		}
	}
	f.mu.Unlock()

	if changed {
		for _, h := range handlers {
			h(next)
		}
	}
}

// arbitrate is the pure arbitration algorithm, factored out of FSM so it can
// be exercised directly by tests without a running goroutine. regs is a
// snapshot of every sub's registration and current sub-state; requested is
// the pending requested system state (meaningful only if hasReq is true).
//
// It returns the state to transition to, whether any transition applies,
// and whether a conflicting multi-way consensus was found (in which case no
// transition applies and the caller should log it).
func arbitrate(regs []registration, requested status.State, hasReq bool) (status.State, bool, bool) {
	for _, r := range regs {
		if !r.registered || r.subState == Uninitialized {
			return status.Init, true, false
		}
	}

	var present [8]uint32
	for sub, r := range regs {
		for _, m := range r.maps {
			if m.SubState == r.subState {
				present[m.State] |= 1 << uint(sub)
			}
		}
	}

	allOnes := uint32(1)<<uint(len(regs)) - 1

	// Priority states win as soon as any bit is set; ties go to the
	// highest-indexed state (the loop runs low to high and keeps
	// overwriting, so FAULT beats ALARM beats INIT if more than one is
	// simultaneously present).
	matchedPriority := -1
	for s := 0; s < len(stateKind); s++ {
		if stateKind[s] == priority && present[s] != 0 {
			matchedPriority = s
		}
	}
	if matchedPriority >= 0 {
		return status.State(matchedPriority), true, false
	}

	if hasReq && stateKind[requested] == consensus && present[requested] == allOnes {
		return requested, true, false
	}

	matches := 0
	found := status.State(0)
	for s := 0; s < len(stateKind); s++ {
		if stateKind[s] == consensus && present[s] == allOnes {
			matches++
			found = status.State(s)
		}
	}
	switch matches {
	case 0:
		return status.Init, false, false
	case 1:
		return found, true, false
	default:
		return status.Init, false, true
	}
}
