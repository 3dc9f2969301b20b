/*
 * Laser CNC motion core - parser/system status codes.
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

// Package status holds the numeric status codes surfaced by the parser and
// the system FSM, plus a structured status report for the (out-of-scope)
// line transport to render.
package status

import "fmt"

// Code is a parser/system status code. The zero value is OK.
type Code int

const (
	OK                        Code = 0
	ExpectedCommandLetter     Code = 1
	BadNumberFormat           Code = 2
	InvalidStatement          Code = 3
	NegativeValue             Code = 4
	IdleError                 Code = 8
	Overflow                  Code = 11
	MaxStepRateExceeded       Code = 12
	LineLengthExceeded        Code = 14
	UnsupportedCommand        Code = 20
	ModalGroupViolation       Code = 21
	UndefinedFeedRate         Code = 22
	CommandValueNotInteger    Code = 23
	AxisCommandConflict       Code = 24
	WordRepeated              Code = 25
	NoAxisWords               Code = 26
	InvalidLineNumber         Code = 27
	ValueWordMissing          Code = 28
	AxisWordsExist            Code = 31
	NoAxisWordsInPlane        Code = 32
	InvalidTarget             Code = 33
	ArcRadiusError            Code = 34
	NoOffsetsInPlane          Code = 35
	UnusedWords               Code = 36
	MaxValueExceeded          Code = 38
)

var names = map[Code]string{
	OK:                     "ok",
	ExpectedCommandLetter:  "expected command letter",
	BadNumberFormat:        "bad number format",
	InvalidStatement:       "invalid statement",
	NegativeValue:          "negative value",
	IdleError:              "command not allowed while not idle",
	Overflow:               "numeric overflow",
	MaxStepRateExceeded:    "max step rate exceeded",
	LineLengthExceeded:     "line length exceeded",
	UnsupportedCommand:     "unsupported or invalid g-code command",
	ModalGroupViolation:    "gcode command in same modal group",
	UndefinedFeedRate:      "feed rate undefined",
	CommandValueNotInteger: "command value not an integer",
	AxisCommandConflict:    "two g-code commands both require axis words",
	WordRepeated:           "value word repeated",
	NoAxisWords:            "no axis words in command block",
	InvalidLineNumber:      "invalid line number",
	ValueWordMissing:       "a required value word is missing",
	AxisWordsExist:         "axis words exist, but no command to use them",
	NoAxisWordsInPlane:     "g2/g3 arcs need at least one in-plane axis word",
	InvalidTarget:          "motion target is invalid",
	ArcRadiusError:         "arc radius error",
	NoOffsetsInPlane:       "g2/g3 offset mode needs at least one offset word",
	UnusedWords:            "unused value words",
	MaxValueExceeded:       "value word exceeds max value",
}

// Error implements the error interface so a Code can be returned directly
// from parser functions and matched with errors.As.
func (c Code) Error() string {
	if n, ok := names[c]; ok {
		return n
	}
	return fmt.Sprintf("status %d", int(c))
}

// IsError reports whether the code represents anything other than OK.
func (c Code) IsError() bool {
	return c != OK
}

// State is one of the 8 system FSM states shared across subsystems.
type State int

const (
	Init State = iota
	Sleep
	Idle
	Homing
	Run
	Hold
	Alarm
	Fault
)

var stateNames = [...]string{"Init", "Sleep", "Idle", "Homing", "Run", "Hold", "Alarm", "Fault"}

func (s State) String() string {
	if int(s) < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}

// Report is the structured status snapshot: system state plus machine
// position in millimeters. The out-of-scope line transport formats this
// into its own wire form (e.g. "<State,MPos:x,y,z>"); this package only
// carries the data.
type Report struct {
	State State
	MPos  [3]float64
}
