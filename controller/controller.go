/*
 * Laser CNC motion core - top-level subsystem wiring.
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

// Package controller owns every subsystem's concrete instance and wires
// them together the way a real machine's start-up sequence must: settings
// loaded first, then the rings, then the parser and motion gateway bound to
// the rings, then the emitter bound to the segment ring, then the FSM
// coordinator threaded through all of them, then the safety input readers.
// Nothing outside this package constructs more than one of these pieces.
package controller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/openglow-cnc/lasercore/fsm"
	"github.com/openglow-cnc/lasercore/gcode"
	"github.com/openglow-cnc/lasercore/hardware"
	"github.com/openglow-cnc/lasercore/inputs"
	"github.com/openglow-cnc/lasercore/motion"
	"github.com/openglow-cnc/lasercore/planner"
	"github.com/openglow-cnc/lasercore/segment"
	"github.com/openglow-cnc/lasercore/settings"
	"github.com/openglow-cnc/lasercore/status"
	"github.com/openglow-cnc/lasercore/stepper"
)

// tickPeriod is the emitter's real-hardware tick period, derived from
// segment.StepFrequency. Controllers built by New always tick at this
// period; the stepper package's own tests build an Emitter directly with a
// shorter one.
var tickPeriod = time.Second / time.Duration(segment.StepFrequency)

// motion sub-FSM sub-states: whether the pipeline has anything queued.
const (
	motionIdle = iota
	motionRun
)

var motionMapping = []fsm.Mapping{
	{State: status.Idle, SubState: motionIdle},
	{State: status.Sleep, SubState: motionIdle},
	{State: status.Homing, SubState: motionIdle},
	{State: status.Homing, SubState: motionRun},
	{State: status.Run, SubState: motionRun},
	{State: status.Hold, SubState: motionRun},
}

// cliMapping registers a single neutral sub-state accepted under every
// consensus system state, so the CLI slot never blocks the machine from
// leaving INIT before a real console attaches: a low-priority blocking
// console read has no bearing on machine state, and this is that fact
// expressed in sub-FSM form.
var cliMapping = []fsm.Mapping{
	{State: status.Sleep, SubState: 0},
	{State: status.Idle, SubState: 0},
	{State: status.Homing, SubState: 0},
	{State: status.Run, SubState: 0},
	{State: status.Hold, SubState: 0},
}

// Controller is the single owner of a machine's full subsystem graph. The
// zero value is not usable; construct with New.
type Controller struct {
	Settings *settings.Settings

	PlannerRing *planner.Ring
	SegmentRing *segment.Ring
	Generator   *segment.Generator
	Motion      *motion.Motion
	Parser      *gcode.Parser
	Emitter     *stepper.Emitter
	FSM         *fsm.FSM

	Reporter *hardware.Reporter
	Switches *inputs.Switches
	Limits   *inputs.Limits

	log *slog.Logger

	monitorDone chan struct{}
	monitorWG   sync.WaitGroup
}

// New wires a full Controller: a planner ring and segment ring sized from
// cfg, a generator and emitter connecting them, a parser bound to the
// motion gateway, and the system FSM coordinator with the hardware,
// interlock, and limit-switch participants all registered. sink and attrs
// are the (out-of-scope) hardware driver; pass hardware.NewNullSink() for a
// machine with no real pulse output. switchCount/limitCount size the
// interlock and travel-limit readers.
func New(cfg *settings.Settings, sink hardware.PulseSink, attrs hardware.AttributeWriter, switchCount, limitCount int, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}

	plannerRing := planner.NewRing(planner.DefaultCapacity, cfg)
	segmentRing := segment.NewRing(segment.DefaultCapacity)
	generator := segment.NewGenerator(plannerRing, segmentRing)
	emitter := stepper.New(segmentRing, generator, sink, tickPeriod)

	m := motion.New(plannerRing)
	parser := gcode.NewParser(m, cfg)

	coord := fsm.New(log)
	m.SetFSM(coord, true)
	parser.SetFSM(coord)

	reporter := hardware.NewReporter(coord)
	sw := inputs.NewSwitches(coord, switchCount)
	lim := inputs.NewLimits(coord, limitCount)

	coord.Register(fsm.CLI, cliMapping, nil)
	coord.Register(fsm.Motion, motionMapping, nil)

	// With the pipeline drained, SLEEP, IDLE and HOMING all have consensus;
	// a standing IDLE request settles that tie once INIT is released.
	_ = coord.Request(status.Idle)

	c := &Controller{
		Settings:    cfg,
		PlannerRing: plannerRing,
		SegmentRing: segmentRing,
		Generator:   generator,
		Motion:      m,
		Parser:      parser,
		Emitter:     emitter,
		FSM:         coord,
		Reporter:    reporter,
		Switches:    sw,
		Limits:      lim,
		log:         log,
		monitorDone: make(chan struct{}),
	}
	parser.SetSynchronizer(c)
	_ = attrs // reserved for a future attribute-push hook; unused until a driver exists
	return c
}

// Start brings the coordinator, emitter, and motion sub-state monitor
// goroutines up. Must be called once, before any Execute call.
func (c *Controller) Start() {
	go c.FSM.Run()
	go c.Emitter.Run()
	c.monitorWG.Add(1)
	go c.monitorMotion()
}

// Stop halts the emitter, then the monitor, then the coordinator goroutine,
// so the emitter stops producing pulses and the monitor stops reporting
// before the coordinator they report into goes away.
func (c *Controller) Stop() {
	c.Emitter.Stop()
	close(c.monitorDone)
	c.monitorWG.Wait()
	c.FSM.Stop()
}

// monitorMotion reports the MOTION sub-FSM's state from the actual
// pipeline: RUN while either ring holds work or the emitter is still
// executing a segment, IDLE once both have drained. Polled rather than
// event-driven since "work queued" is a property of three independent
// structures (two rings plus the emitter's own suspended flag) with no
// single call site to hook a push notification into.
func (c *Controller) monitorMotion() {
	defer c.monitorWG.Done()
	t := time.NewTicker(drainPoll)
	defer t.Stop()
	last := motionIdle
	for {
		select {
		case <-c.monitorDone:
			return
		case <-t.C:
		}
		sub := motionIdle
		if c.PlannerRing.Len() != 0 || c.SegmentRing.Len() != 0 || !c.Emitter.Suspended() {
			sub = motionRun
		}
		if sub != last {
			_ = c.FSM.Update(fsm.Motion, sub)
			last = sub
		}
	}
}

// Execute preprocesses and runs one line of input through the parser.
func (c *Controller) Execute(ctx context.Context, line string) (status.Code, error) {
	clean := gcode.Preprocess(line)
	if clean == "" {
		return status.OK, nil
	}
	code, err := c.Parser.Execute(ctx, clean)
	if err == nil && code == status.OK {
		c.Emitter.WakeUp()
	}
	return code, err
}

// drainPoll is the granularity Synchronize checks the ring/emitter state
// at, matching the planner/emitter's own cooperative-wait granularity
// rather than busy-spinning.
const drainPoll = 2 * time.Millisecond

// Synchronize implements gcode.Synchronizer: it blocks until both rings
// have drained and the emitter has self-suspended, or returns immediately
// if the system is already in FAULT/ALARM (nothing more will ever drain
// those rings).
func (c *Controller) Synchronize(ctx context.Context) error {
	t := time.NewTicker(drainPoll)
	defer t.Stop()
	for {
		if s := c.FSM.State(); s == status.Fault || s == status.Alarm {
			return nil
		}
		if c.PlannerRing.Len() == 0 && c.SegmentRing.Len() == 0 && c.Emitter.Suspended() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Reset clears both rings and requests IDLE, the recovery path from an
// ALARM condition once the operator has cleared the fault.
func (c *Controller) Reset() error {
	c.PlannerRing.Reset()
	c.SegmentRing.Reset()
	return c.FSM.Request(status.Idle)
}

// Status reports the current system state and commanded position.
func (c *Controller) Status() status.Report {
	pos := c.Parser.Position()
	return status.Report{State: c.FSM.State(), MPos: [3]float64{pos[0], pos[1], pos[2]}}
}
