package gcode

/*
 * Laser CNC motion core - RS-274/NGC parser tests.
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
	"context"
	"testing"

	"github.com/openglow-cnc/lasercore/axis"
	"github.com/openglow-cnc/lasercore/motion"
	"github.com/openglow-cnc/lasercore/planner"
	"github.com/openglow-cnc/lasercore/settings"
	"github.com/openglow-cnc/lasercore/status"
)

func newTestParser(t *testing.T) (*Parser, *planner.Ring) {
	t.Helper()
	cfg := settings.Default()
	ring := planner.NewRing(64, &cfg)
	m := motion.New(ring)
	return NewParser(m, &cfg), ring
}

func mustExecute(t *testing.T, p *Parser, line string) status.Code {
	t.Helper()
	code, err := p.Execute(context.Background(), Preprocess(line))
	if err != nil {
		t.Fatalf("Execute(%q) error: %v", line, err)
	}
	return code
}

func TestExecuteLinearMoveQueuesBlockAndUpdatesPosition(t *testing.T) {
	p, ring := newTestParser(t)
	if code := mustExecute(t, p, "G1 X10 Y5 F500"); code != status.OK {
		t.Fatalf("code = %v, want OK", code)
	}
	if ring.Len() != 1 {
		t.Fatalf("ring.Len() = %d, want 1", ring.Len())
	}
	want := axis.Vector{10, 5, 0}
	if p.Position() != want {
		t.Fatalf("position = %v, want %v", p.Position(), want)
	}
}

func TestExecuteModalFeedRateCarriesForward(t *testing.T) {
	p, ring := newTestParser(t)
	if code := mustExecute(t, p, "G1 X1 F300"); code != status.OK {
		t.Fatalf("first line: %v", code)
	}
	if code := mustExecute(t, p, "G1 X2"); code != status.OK {
		t.Fatalf("second line: %v", code)
	}
	if ring.Len() != 2 {
		t.Fatalf("ring.Len() = %d, want 2", ring.Len())
	}
}

func TestExecuteRejectsModalGroupViolation(t *testing.T) {
	p, _ := newTestParser(t)
	if code := mustExecute(t, p, "G0 G1 X1"); code != status.ModalGroupViolation {
		t.Fatalf("code = %v, want ModalGroupViolation", code)
	}
}

func TestExecuteRejectsWordRepeated(t *testing.T) {
	p, _ := newTestParser(t)
	if code := mustExecute(t, p, "G1 X1 X2"); code != status.WordRepeated {
		t.Fatalf("code = %v, want WordRepeated", code)
	}
}

func TestExecuteRejectsNegativeFeedRate(t *testing.T) {
	p, _ := newTestParser(t)
	if code := mustExecute(t, p, "G1 X1 F-10"); code != status.NegativeValue {
		t.Fatalf("code = %v, want NegativeValue", code)
	}
}

func TestExecuteDwellRequiresP(t *testing.T) {
	p, _ := newTestParser(t)
	if code := mustExecute(t, p, "G4"); code != status.ValueWordMissing {
		t.Fatalf("code = %v, want ValueWordMissing", code)
	}
}

func TestExecuteDwellRunsAndConsumesP(t *testing.T) {
	p, _ := newTestParser(t)
	if code := mustExecute(t, p, "G4 P0.01"); code != status.OK {
		t.Fatalf("code = %v, want OK", code)
	}
}

func TestExecuteRejectsUnusedWords(t *testing.T) {
	p, _ := newTestParser(t)
	// L only makes sense alongside an (unsupported) G10 offset-table
	// command, so it is never consumed and always errors as unused.
	if code := mustExecute(t, p, "G1 X1 F100 L2"); code != status.UnusedWords {
		t.Fatalf("code = %v, want UnusedWords", code)
	}
}

func TestExecuteRejectsAxisCommandConflict(t *testing.T) {
	p, _ := newTestParser(t)
	if code := mustExecute(t, p, "G92 G1 X1"); code != status.AxisCommandConflict {
		t.Fatalf("code = %v, want AxisCommandConflict", code)
	}
}

func TestExecuteArcOffsetModeQueuesBlock(t *testing.T) {
	p, ring := newTestParser(t)
	if code := mustExecute(t, p, "G1 X0 Y0 F500"); code != status.OK {
		t.Fatalf("setup line: %v", code)
	}
	if code := mustExecute(t, p, "G2 X10 Y0 I5 J0"); code != status.OK {
		t.Fatalf("code = %v, want OK", code)
	}
	if ring.Len() == 0 {
		t.Fatal("arc produced no queued blocks")
	}
}

func TestExecuteArcRadiusModeQueuesBlock(t *testing.T) {
	p, ring := newTestParser(t)
	if code := mustExecute(t, p, "G1 X0 Y0 F500"); code != status.OK {
		t.Fatalf("setup line: %v", code)
	}
	if code := mustExecute(t, p, "G3 X10 Y0 R5"); code != status.OK {
		t.Fatalf("code = %v, want OK", code)
	}
	if ring.Len() == 0 {
		t.Fatal("arc produced no queued blocks")
	}
}

func TestExecuteArcRadiusModeRejectsCoincidentTarget(t *testing.T) {
	p, _ := newTestParser(t)
	if code := mustExecute(t, p, "G2 X0 Y0 R5 F100"); code != status.InvalidTarget {
		t.Fatalf("code = %v, want InvalidTarget", code)
	}
}

func TestExecuteArcNoOffsetsInPlaneRejected(t *testing.T) {
	p, _ := newTestParser(t)
	if code := mustExecute(t, p, "G2 X10 Y0 F100"); code != status.NoOffsetsInPlane {
		t.Fatalf("code = %v, want NoOffsetsInPlane", code)
	}
}

func TestExecuteUnitsConversionScalesAxisWords(t *testing.T) {
	p, _ := newTestParser(t)
	if code := mustExecute(t, p, "G20 G1 X1 F10"); code != status.OK {
		t.Fatalf("code = %v, want OK", code)
	}
	want := axis.Vector{mmPerInch, 0, 0}
	if p.Position() != want {
		t.Fatalf("position = %v, want %v", p.Position(), want)
	}
}

func TestExecuteLineNumberOverflowRejected(t *testing.T) {
	p, _ := newTestParser(t)
	if code := mustExecute(t, p, "N10000001 G1 X1 F10"); code != status.InvalidLineNumber {
		t.Fatalf("code = %v, want InvalidLineNumber", code)
	}
}

func TestExecuteSpindleModalUpdatesPersist(t *testing.T) {
	p, _ := newTestParser(t)
	if code := mustExecute(t, p, "M3 S500"); code != status.OK {
		t.Fatalf("code = %v, want OK", code)
	}
	if p.Modal().Spindle != planner.SpindleCW {
		t.Fatalf("modal spindle = %v, want SpindleCW", p.Modal().Spindle)
	}
	if code := mustExecute(t, p, "M5"); code != status.OK {
		t.Fatalf("code = %v, want OK", code)
	}
	if p.Modal().Spindle != 0 {
		t.Fatalf("modal spindle = %v, want 0 (disabled)", p.Modal().Spindle)
	}
}

func TestExecuteM2ResetsModalState(t *testing.T) {
	p, _ := newTestParser(t)
	if code := mustExecute(t, p, "G20 G91 M3 S100"); code != status.OK {
		t.Fatalf("code = %v, want OK", code)
	}
	if code := mustExecute(t, p, "M2"); code != status.OK {
		t.Fatalf("code = %v, want OK", code)
	}
	m := p.Modal()
	if m.Units != unitsMM || m.Distance != distanceAbsolute || m.Spindle != 0 {
		t.Fatalf("modal state not reset: %+v", m)
	}
}

func TestPreprocessStripsCommentsAndWhitespaceAndUppercases(t *testing.T) {
	got := Preprocess("  g1 x1 (move right) y2 ; trailing note")
	want := "G1X1Y2"
	if got != want {
		t.Fatalf("Preprocess = %q, want %q", got, want)
	}
}

func TestPreprocessBlockDeleteLineIsEmpty(t *testing.T) {
	if got := Preprocess("/G1 X1"); got != "" {
		t.Fatalf("Preprocess = %q, want empty", got)
	}
}

func TestExecuteUnsupportedCommandRejected(t *testing.T) {
	p, _ := newTestParser(t)
	if code := mustExecute(t, p, "G47"); code != status.UnsupportedCommand {
		t.Fatalf("code = %v, want UnsupportedCommand", code)
	}
}

func TestExecuteMantissaOnIntegerOnlyCommandsRejected(t *testing.T) {
	cases := []string{"G4.5 P1", "G1.5 X1", "G17.5"}
	for _, line := range cases {
		p, _ := newTestParser(t)
		if code := mustExecute(t, p, line); code != status.CommandValueNotInteger {
			t.Fatalf("%q: code = %v, want CommandValueNotInteger", line, code)
		}
	}
}

func TestExecuteG91Point1AcceptedAsNoOp(t *testing.T) {
	p, _ := newTestParser(t)
	if code := mustExecute(t, p, "G91.1"); code != status.OK {
		t.Fatalf("code = %v, want OK", code)
	}
	if p.modal.ArcDistance != arcDistanceIncremental {
		t.Fatalf("ArcDistance = %v, want arcDistanceIncremental", p.modal.ArcDistance)
	}
}

func TestExecuteG90Point1Rejected(t *testing.T) {
	p, _ := newTestParser(t)
	if code := mustExecute(t, p, "G90.1"); code != status.UnsupportedCommand {
		t.Fatalf("code = %v, want UnsupportedCommand", code)
	}
}
