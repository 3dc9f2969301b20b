/*
 * Laser CNC motion core - per-subsystem debug tracing.
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

// Package debug implements a bitmask-gated trace logger: one bit per core
// subsystem, so an operator can enable "planner,stepper" tracing without
// drowning in parser noise, without touching the slog level.
package debug

import (
	"fmt"
	"io"
	"os"
)

// Subsystem bits, one per core component named in the component table.
const (
	Gcode = 1 << iota
	Planner
	Motion
	Segment
	Stepper
	FSM

	All = Gcode | Planner | Motion | Segment | Stepper | FSM
)

var names = map[int]string{
	Gcode:   "gcode",
	Planner: "planner",
	Motion:  "motion",
	Segment: "segment",
	Stepper: "stepper",
	FSM:     "fsm",
}

var (
	out  io.Writer = os.Stderr
	mask int
)

// SetOutput redirects trace output (tests may point this at a buffer).
func SetOutput(w io.Writer) {
	out = w
}

// Enable turns on tracing for the given subsystem bits.
func Enable(bits int) {
	mask |= bits
}

// Disable turns off tracing for the given subsystem bits.
func Disable(bits int) {
	mask &^= bits
}

// Enabled reports whether any of the given subsystem bits are traced.
func Enabled(bits int) bool {
	return mask&bits != 0
}

// Tracef writes a trace line for subsystem bit if it is enabled.
func Tracef(bit int, format string, a ...interface{}) {
	if mask&bit == 0 {
		return
	}
	name, ok := names[bit]
	if !ok {
		name = "debug"
	}
	fmt.Fprintf(out, name+": "+format+"\n", a...)
}
