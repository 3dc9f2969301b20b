/*
 * Laser CNC motion core - axis and kinematics settings.
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

// Package settings holds the shared axis and kinematics configuration and a
// line-oriented "$n=value" file format for loading it, in the style of the
// GRBL settings numbering recovered from the original C implementation.
package settings

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/openglow-cnc/lasercore/axis"
)

// Axis holds the per-axis kinematics limits.
type Axis struct {
	StepsPerMM   float64 // conversion factor, steps per millimeter
	MaxRate      float64 // mm/min, axis rapid rate ceiling
	Acceleration float64 // mm/sec^2, axis acceleration ceiling
	MaxTravel    float64 // mm, soft-limit travel (not enforced)
}

// Settings is the full machine configuration shared by every subsystem.
type Settings struct {
	Axis [axis.Count]Axis

	JunctionDeviation   float64 // mm, cornering deviation used by the planner
	ArcTolerance        float64 // mm, chord sag tolerance for arc decomposition
	MinimumJunctionSpeed float64 // mm/min, floor under the junction speed formula

	// LaserPowerCorrection enables the parser's dynamic laser power
	// adjustment: power is forced off between non-motion blocks and
	// resynchronized whenever the spindle/laser modal state changes
	// without an intervening motion block, so the beam never dwells at
	// full power over one spot between rapids.
	LaserPowerCorrection bool
}

// Default returns settings with reasonable defaults for a small laser
// gantry, matching the magnitudes used in the concrete scenarios in the
// specification (S1-S6).
func Default() Settings {
	return Settings{
		Axis: [axis.Count]Axis{
			axis.X: {StepsPerMM: 80, MaxRate: 6000, Acceleration: 500, MaxTravel: 500},
			axis.Y: {StepsPerMM: 80, MaxRate: 6000, Acceleration: 500, MaxTravel: 300},
			axis.Z: {StepsPerMM: 400, MaxRate: 600, Acceleration: 50, MaxTravel: 50},
		},
		JunctionDeviation:    0.01,
		ArcTolerance:         0.002,
		MinimumJunctionSpeed: 0.0,
		LaserPowerCorrection: true,
	}
}

// settingNumber maps a GRBL-style "$n" key to the field it loads.
type settingNumber int

const (
	settingJunctionDeviation  settingNumber = 11
	settingArcTolerance       settingNumber = 12
	settingLaserPowerCorrect  settingNumber = 13

	settingStepsPerMMBase   settingNumber = 100 // 100, 101, 102 -> X, Y, Z
	settingMaxRateBase      settingNumber = 110 // 110, 111, 112 -> X, Y, Z
	settingAccelerationBase settingNumber = 120 // 120, 121, 122 -> X, Y, Z
)

// line is the cursor over a single settings-file line.
type line struct {
	text string
	pos  int
}

func (l *line) skipSpace() {
	for l.pos < len(l.text) && (l.text[l.pos] == ' ' || l.text[l.pos] == '\t') {
		l.pos++
	}
}

func (l *line) isEOL() bool {
	return l.pos >= len(l.text) || l.text[l.pos] == '#'
}

// Load reads a "$n=value" settings file into s, returning the first parse
// error encountered (with its 1-based line number).
func (s *Settings) Load(name string) error {
	file, err := os.Open(name)
	if err != nil {
		return err
	}
	defer file.Close()
	return s.loadFrom(file)
}

func (s *Settings) loadFrom(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		l := &line{text: strings.TrimSpace(scanner.Text())}
		if err := s.parseLine(l); err != nil {
			return fmt.Errorf("settings line %d: %w", lineNumber, err)
		}
	}
	return scanner.Err()
}

// ApplyLine parses and applies a single "$n=value" setting, the same
// grammar Load reads one line at a time, for a console's "set" command.
func (s *Settings) ApplyLine(text string) error {
	return s.parseLine(&line{text: strings.TrimSpace(text)})
}

func (s *Settings) parseLine(l *line) error {
	l.skipSpace()
	if l.isEOL() || l.text == "" {
		return nil
	}
	if l.text[l.pos] != '$' {
		return errors.New("expected '$' setting key: " + l.text)
	}
	l.pos++

	start := l.pos
	for l.pos < len(l.text) && l.text[l.pos] >= '0' && l.text[l.pos] <= '9' {
		l.pos++
	}
	if start == l.pos {
		return errors.New("missing setting number: " + l.text)
	}
	num, err := strconv.Atoi(l.text[start:l.pos])
	if err != nil {
		return err
	}

	if l.pos >= len(l.text) || l.text[l.pos] != '=' {
		return errors.New("expected '=' after setting number: " + l.text)
	}
	l.pos++

	valStart := l.pos
	for l.pos < len(l.text) && l.text[l.pos] != '#' {
		l.pos++
	}
	valStr := strings.TrimSpace(l.text[valStart:l.pos])
	value, err := strconv.ParseFloat(valStr, 64)
	if err != nil {
		return fmt.Errorf("bad value for $%d: %w", num, err)
	}

	return s.apply(settingNumber(num), value)
}

func (s *Settings) apply(n settingNumber, value float64) error {
	switch {
	case n == settingJunctionDeviation:
		s.JunctionDeviation = value
	case n == settingArcTolerance:
		s.ArcTolerance = value
	case n == settingLaserPowerCorrect:
		s.LaserPowerCorrection = value != 0
	case n >= settingStepsPerMMBase && n < settingStepsPerMMBase+axis.Count:
		s.Axis[n-settingStepsPerMMBase].StepsPerMM = value
	case n >= settingMaxRateBase && n < settingMaxRateBase+axis.Count:
		s.Axis[n-settingMaxRateBase].MaxRate = value
	case n >= settingAccelerationBase && n < settingAccelerationBase+axis.Count:
		s.Axis[n-settingAccelerationBase].Acceleration = value
	default:
		return fmt.Errorf("unknown setting $%d", n)
	}
	return nil
}

// StepsToMM converts an integer step count to millimeters for axis a.
func (s *Settings) StepsToMM(a axis.Index, steps int64) float64 {
	return float64(steps) / s.Axis[a].StepsPerMM
}

// MMToSteps converts a millimeter position to an integer step count for
// axis a, rounding to the nearest step.
func (s *Settings) MMToSteps(a axis.Index, mm float64) int64 {
	v := mm * s.Axis[a].StepsPerMM
	if v >= 0 {
		return int64(v + 0.5)
	}
	return int64(v - 0.5)
}
