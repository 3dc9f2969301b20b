/*
 * Laser CNC motion core - step-tick emitter.
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

// Package stepper is the step-tick emitter: at a fixed tick rate it pops
// segments from the segment ring, Bresenham-traces each axis, and writes
// one output byte per tick to a hardware.PulseSink.
package stepper

import (
	"sync"
	"time"

	"github.com/openglow-cnc/lasercore/axis"
	"github.com/openglow-cnc/lasercore/hardware"
	"github.com/openglow-cnc/lasercore/segment"
	"github.com/openglow-cnc/lasercore/util/debug"
)

// Bit positions within the output byte, recovered verbatim from the
// reference's step byte layout.
const (
	BitXStep         = 1 << 0
	BitXDir          = 1 << 1
	BitYStep         = 1 << 2
	BitYDir          = 1 << 3
	BitLaserOn       = 1 << 4
	BitZStep         = 1 << 5
	BitZDir          = 1 << 6
	BitLaserPwrHigh  = 1 << 7
)

var stepBit = [axis.Count]byte{axis.X: BitXStep, axis.Y: BitYStep, axis.Z: BitZStep}
var dirBit = [axis.Count]byte{axis.X: BitXDir, axis.Y: BitYDir, axis.Z: BitZDir}

// Emitter drives the pulse sink at a fixed software tick rate, sourcing
// segments from a segment.Ring (refilled on demand by a segment.Generator).
type Emitter struct {
	ring      *segment.Ring
	generator *segment.Generator
	sink      hardware.PulseSink

	mu       sync.Mutex
	position axis.Steps

	wake      chan struct{}
	done      chan struct{}
	suspended bool
	wg        sync.WaitGroup

	tickPeriod time.Duration
}

// New builds an Emitter over ring/generator, writing to sink at the given
// tick period (pass segment.StepFrequency-derived period in production;
// tests may use a much shorter one to run fast).
func New(ring *segment.Ring, gen *segment.Generator, sink hardware.PulseSink, tickPeriod time.Duration) *Emitter {
	return &Emitter{
		ring:       ring,
		generator:  gen,
		sink:       sink,
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
		tickPeriod: tickPeriod,
		suspended:  true,
	}
}

// Position returns the emitter's tracked machine position, in steps.
func (e *Emitter) Position() axis.Steps {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.position
}

// SyncPosition overwrites the tracked position (used after homing).
func (e *Emitter) SyncPosition(pos axis.Steps) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.position = pos
}

// WakeUp resumes a suspended emitter; idempotent, and safe to call whether
// or not the emitter is actually suspended.
func (e *Emitter) WakeUp() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// Run drives the tick loop until Stop is called. Must run in its own
// goroutine.
func (e *Emitter) Run() {
	e.wg.Add(1)
	defer e.wg.Done()

	counters := [axis.Count]int64{}
	var block segment.StBlock
	var seg segment.Segment
	haveSegment := false
	curStBlock := -1
	tickCounter := uint32(0)
	armed := false

	ticker := time.NewTicker(e.tickPeriod)
	defer ticker.Stop()

	for {
		// Suspended: wait for an explicit wake (new work enqueued, or a
		// RUN transition) or shutdown. A spurious wake that still finds
		// nothing to do just loops back here.
		select {
		case <-e.done:
			return
		case <-e.wake:
		}

		for {
			select {
			case <-e.done:
				return
			default:
			}

			if !haveSegment {
				if !armed {
					if err := e.sink.Arm(); err != nil {
						debug.Tracef(debug.Stepper, "arm failed: %v", err)
					}
					armed = true
				}
				e.generator.Refill()
				s, ok := e.ring.Pop()
				if !ok {
					debug.Tracef(debug.Stepper, "segment ring empty, suspending")
					e.mu.Lock()
					e.suspended = true
					e.mu.Unlock()
					break
				}
				if s.NStep == 0 {
					continue
				}
				seg = s
				haveSegment = true
				e.mu.Lock()
				e.suspended = false
				e.mu.Unlock()
				if err := e.sink.Begin(); err != nil {
					debug.Tracef(debug.Stepper, "begin failed: %v", err)
				}
				if seg.StBlockIndex != curStBlock {
					block = e.ring.StBlockAt(seg.StBlockIndex)
					curStBlock = seg.StBlockIndex
					for a := 0; a < axis.Count; a++ {
						counters[a] = block.StepEventCount / 2
					}
				}
			}

			select {
			case <-e.done:
				return
			case <-ticker.C:
			}

			// Spacer ticks (between Bresenham firings) carry the literal
			// byte 0x00, not the segment's direction bits: outBits only
			// picks up any bits at all on the tick that actually fires.
			var outBits byte
			tickCounter++
			if tickCounter >= seg.CyclesPerTick {
				tickCounter = 0
				for a := 0; a < axis.Count; a++ {
					if block.DirectionBits&(1<<uint(a)) != 0 {
						outBits |= dirBit[a]
					}
				}
				for a := 0; a < axis.Count; a++ {
					counters[a] += block.Steps[a]
					if counters[a] > block.StepEventCount {
						counters[a] -= block.StepEventCount
						outBits |= stepBit[a]
						e.mu.Lock()
						if block.DirectionBits&(1<<uint(a)) != 0 {
							e.position[a]--
						} else {
							e.position[a]++
						}
						e.mu.Unlock()
					}
				}
				seg.NStep--
			}

			if err := e.sink.WriteTick(outBits); err != nil {
				debug.Tracef(debug.Stepper, "pulse sink error: %v", err)
			}

			if seg.NStep == 0 {
				haveSegment = false
			}
		}
	}
}

// Stop halts Run and waits for it to return.
func (e *Emitter) Stop() {
	close(e.done)
	e.wg.Wait()
}

// Suspended reports whether the emitter is currently self-suspended on an
// empty segment ring.
func (e *Emitter) Suspended() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.suspended
}
