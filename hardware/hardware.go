/*
 * Laser CNC motion core - hardware I/O boundary.
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

// Package hardware defines the narrow boundary between the motion core and
// whatever actually drives step pulses and laser/coolant attributes. Real
// driver implementations (SPI/serial to a pulse ASIC) are out of scope;
// this package is the interface plus a NullSink test stub.
package hardware

import (
	"sync"

	"github.com/openglow-cnc/lasercore/fsm"
	"github.com/openglow-cnc/lasercore/status"
)

// PulseSink receives one step byte per tick from the step-tick emitter.
type PulseSink interface {
	WriteTick(b byte) error
	Arm() error
	Begin() error
}

// AttributeWriter pushes a named analog/boolean attribute (laser power,
// coolant valve, spindle speed) to the machine.
type AttributeWriter interface {
	WriteAttribute(name string, value float64) error
}

// NullSink is a PulseSink and AttributeWriter that records what it was
// asked to do without touching any real hardware, for tests and for a
// controller that has not yet been attached to a driver.
type NullSink struct {
	mu         sync.Mutex
	armed      bool
	begun      bool
	ticks      []byte
	attributes map[string]float64
}

// NewNullSink builds an unarmed, unstarted NullSink.
func NewNullSink() *NullSink {
	return &NullSink{attributes: make(map[string]float64)}
}

func (n *NullSink) WriteTick(b byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ticks = append(n.ticks, b)
	return nil
}

func (n *NullSink) Arm() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.armed = true
	return nil
}

func (n *NullSink) Begin() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.begun = true
	return nil
}

func (n *NullSink) WriteAttribute(name string, value float64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.attributes[name] = value
	return nil
}

// Ticks returns a copy of every byte written so far, for test assertions.
func (n *NullSink) Ticks() []byte {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]byte, len(n.ticks))
	copy(out, n.ticks)
	return out
}

// Attribute returns the last value written for name, or 0 and false if
// never written.
func (n *NullSink) Attribute(name string) (float64, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	v, ok := n.attributes[name]
	return v, ok
}

// Armed reports whether Arm has been called.
func (n *NullSink) Armed() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.armed
}

// Begun reports whether Begin has been called.
func (n *NullSink) Begun() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.begun
}

// OpenGlow sub-FSM sub-states: a driver reports these into the OPENGLOW
// participant slot, the closed ID the register/update interface names
// alongside CLI/SWITCHES/MOTION/LIMITS.
const (
	Uninitialized = iota
	Ready
	Faulted
)

var openglowMapping = []fsm.Mapping{
	{State: status.Init, SubState: Uninitialized},
	{State: status.Sleep, SubState: Ready},
	{State: status.Idle, SubState: Ready},
	{State: status.Homing, SubState: Ready},
	{State: status.Run, SubState: Ready},
	{State: status.Hold, SubState: Ready},
	{State: status.Alarm, SubState: Faulted},
}

// Reporter registers the hardware layer's own readiness with the system
// FSM: until a driver calls SetReady, the OPENGLOW slot holds the system
// in INIT the same way an unregistered sub would.
type Reporter struct {
	coord *fsm.FSM
}

// NewReporter registers a Reporter under the OPENGLOW sub-FSM slot.
func NewReporter(coord *fsm.FSM) *Reporter {
	coord.Register(fsm.OpenGlow, openglowMapping, nil)
	return &Reporter{coord: coord}
}

// SetReady reports that the driver has armed and is accepting ticks.
func (r *Reporter) SetReady() error { return r.coord.Update(fsm.OpenGlow, Ready) }

// SetFault reports a hardware fault, forcing the system into ALARM.
func (r *Reporter) SetFault() error { return r.coord.Update(fsm.OpenGlow, Faulted) }
