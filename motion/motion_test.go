package motion

/*
 * Laser CNC motion core - motion gateway tests.
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
	"time"

	"github.com/openglow-cnc/lasercore/axis"
	"github.com/openglow-cnc/lasercore/planner"
	"github.com/openglow-cnc/lasercore/settings"
)

func newTestMotion(t *testing.T) (*Motion, *planner.Ring) {
	t.Helper()
	cfg := settings.Default()
	ring := planner.NewRing(planner.DefaultCapacity, &cfg)
	return New(ring), ring
}

func TestLineQueuesBlock(t *testing.T) {
	m, ring := newTestMotion(t)
	if err := m.Line(context.Background(), axis.Vector{10, 0, 0}, planner.LineData{FeedRate: 1000}); err != nil {
		t.Fatal(err)
	}
	if ring.Len() != 1 {
		t.Fatalf("want 1 queued block, got %d", ring.Len())
	}
}

func TestLineRejectsCanceledContext(t *testing.T) {
	m, _ := newTestMotion(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Line(ctx, axis.Vector{10, 0, 0}, planner.LineData{FeedRate: 1000}); err == nil {
		t.Fatal("want error for canceled context")
	}
}

func TestDwellReturnsAfterDuration(t *testing.T) {
	m, _ := newTestMotion(t)
	start := time.Now()
	if err := m.Dwell(context.Background(), 20*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Fatal("Dwell returned before its duration elapsed")
	}
}

func TestDwellCanceled(t *testing.T) {
	m, _ := newTestMotion(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Dwell(ctx, time.Second); err == nil {
		t.Fatal("want error for canceled context")
	}
}

func TestArcQuarterCircleEndsAtTarget(t *testing.T) {
	m, ring := newTestMotion(t)
	plane := Plane{Axis0: axis.X, Axis1: axis.Y, Linear: axis.Z}

	position := axis.Vector{10, 0, 0}
	offset := axis.Vector{-10, 0, 0} // center at (0,0)
	target := axis.Vector{0, 10, 0}

	err := m.Arc(context.Background(), position, target, offset, 10, plane, false, 0.002, planner.LineData{FeedRate: 2000})
	if err != nil {
		t.Fatal(err)
	}
	if ring.Len() == 0 {
		t.Fatal("want at least one queued segment for a quarter circle")
	}

	wantSteps := axis.Steps{}
	cfg := settings.Default()
	for a := 0; a < axis.Count; a++ {
		wantSteps[a] = cfg.MMToSteps(axis.Index(a), target[a])
	}
	if got := ring.Position(); got != wantSteps {
		t.Fatalf("final position = %v, want %v", got, wantSteps)
	}
}

func TestArcInverseTimeScaledBySegments(t *testing.T) {
	m, ring := newTestMotion(t)
	plane := Plane{Axis0: axis.X, Axis1: axis.Y, Linear: axis.Z}
	position := axis.Vector{10, 0, 0}
	offset := axis.Vector{-10, 0, 0}
	target := axis.Vector{-10, 0, 0} // half circle to the far side of the center

	data := planner.LineData{FeedRate: 1, Condition: planner.InverseTime}
	if err := m.Arc(context.Background(), position, target, offset, 10, plane, false, 0.002, data); err != nil {
		t.Fatal(err)
	}
	if ring.Len() == 0 {
		t.Fatal("want queued segments")
	}
	// The very first queued block should have had its inverse-time feed
	// rate multiplied up by the segment count and the flag cleared.
	first := ring.CurrentBlock()
	if first.Condition&planner.InverseTime != 0 {
		t.Fatal("want InverseTime cleared on arc segments")
	}
	if first.ProgrammedRate <= data.FeedRate {
		t.Fatalf("want scaled feed rate > %.4f, got %.4f", data.FeedRate, first.ProgrammedRate)
	}
}

func TestArcCoincidentTargetTreatedAsFullCircle(t *testing.T) {
	m, ring := newTestMotion(t)
	plane := Plane{Axis0: axis.X, Axis1: axis.Y, Linear: axis.Z}
	position := axis.Vector{10, 0, 0}
	offset := axis.Vector{-10, 0, 0}
	target := axis.Vector{10, 0, 0}

	if err := m.Arc(context.Background(), position, target, offset, 10, plane, false, 0.002, planner.LineData{FeedRate: 1000}); err != nil {
		t.Fatal(err)
	}
	if ring.Len() == 0 {
		t.Fatal("want a full circle decomposed into several segments")
	}
}
