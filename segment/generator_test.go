package segment

/*
 * Laser CNC motion core - segment generator tests.
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

	"github.com/openglow-cnc/lasercore/axis"
	"github.com/openglow-cnc/lasercore/planner"
	"github.com/openglow-cnc/lasercore/settings"
)

func newTestRings(t *testing.T) (*planner.Ring, *Ring) {
	t.Helper()
	cfg := settings.Default()
	return planner.NewRing(32, &cfg), NewRing(32)
}

func drainAllSegments(t *testing.T, blocks *planner.Ring, out *Ring, g *Generator) (totalSteps int64, segments int) {
	t.Helper()
	for i := 0; i < 10000; i++ {
		g.Refill()
		seg, ok := out.Pop()
		if !ok {
			if blocks.Len() == 0 {
				break
			}
			continue
		}
		segments++
		totalSteps += int64(seg.NStep)
	}
	return totalSteps, segments
}

func TestGeneratorStepSumMatchesStepEventCount(t *testing.T) {
	blocks, out := newTestRings(t)
	if _, err := blocks.BufferLine(axis.Vector{50, 0, 0}, planner.LineData{FeedRate: 3000}); err != nil {
		t.Fatal(err)
	}

	g := NewGenerator(blocks, out)
	cfg := settings.Default()
	wantSteps := cfg.MMToSteps(axis.X, 50)

	totalSteps, segments := drainAllSegments(t, blocks, out, g)
	if segments == 0 {
		t.Fatal("want at least one segment emitted")
	}
	if totalSteps != wantSteps {
		t.Fatalf("sum of n_step = %d, want %d", totalSteps, wantSteps)
	}
}

func TestGeneratorHandlesMultipleQueuedBlocks(t *testing.T) {
	blocks, out := newTestRings(t)
	moves := []axis.Vector{{10, 0, 0}, {20, 0, 0}, {20, 10, 0}}
	var wantSteps int64
	cfg := settings.Default()
	prev := axis.Vector{0, 0, 0}
	for _, m := range moves {
		if _, err := blocks.BufferLine(m, planner.LineData{FeedRate: 4000}); err != nil {
			t.Fatal(err)
		}
		for a := 0; a < axis.Count; a++ {
			d := cfg.MMToSteps(axis.Index(a), m[a]) - cfg.MMToSteps(axis.Index(a), prev[a])
			if d < 0 {
				d = -d
			}
			wantSteps += d
		}
		prev = m
	}

	g := NewGenerator(blocks, out)
	totalSteps, segments := drainAllSegments(t, blocks, out, g)
	if segments == 0 {
		t.Fatal("want segments emitted across multiple blocks")
	}
	if totalSteps != wantSteps {
		t.Fatalf("sum of n_step across blocks = %d, want %d", totalSteps, wantSteps)
	}
	if blocks.Len() != 0 {
		t.Fatalf("want all blocks discarded once fully sampled, got %d remaining", blocks.Len())
	}
}

func TestClassifyAccelerationOnlyForShortBlock(t *testing.T) {
	blocks, out := newTestRings(t)
	// A very short, slow move starting from rest will not have room to
	// both reach nominal and decelerate back down; it should classify as
	// acceleration-only (or straight decel-to-exit), never a trapezoid.
	if _, err := blocks.BufferLine(axis.Vector{0.05, 0, 0}, planner.LineData{FeedRate: 6000}); err != nil {
		t.Fatal(err)
	}
	g := NewGenerator(blocks, out)
	if !g.loadNextBlock() {
		t.Fatal("want a block to load")
	}
	if g.prep.RampType != RampAccel {
		t.Fatalf("want RampAccel for a short block, got %v", g.prep.RampType)
	}
	if g.prep.AccelerateUntil != 0 || g.prep.DecelerateAfter != 0 {
		t.Fatalf("want zero thresholds for acceleration-only, got accelerateUntil=%.4f decelerateAfter=%.4f",
			g.prep.AccelerateUntil, g.prep.DecelerateAfter)
	}
}

func TestClassifyTrapezoidForLongFastBlock(t *testing.T) {
	blocks, out := newTestRings(t)
	if _, err := blocks.BufferLine(axis.Vector{200, 0, 0}, planner.LineData{FeedRate: 1000}); err != nil {
		t.Fatal(err)
	}
	g := NewGenerator(blocks, out)
	if !g.loadNextBlock() {
		t.Fatal("want a block to load")
	}
	if g.prep.RampType != RampAccel {
		t.Fatalf("want RampAccel as the starting phase, got %v", g.prep.RampType)
	}
	if g.prep.AccelerateUntil <= g.prep.DecelerateAfter {
		t.Fatalf("want a cruise plateau (accelerateUntil > decelerateAfter), got %.4f <= %.4f",
			g.prep.AccelerateUntil, g.prep.DecelerateAfter)
	}
}
