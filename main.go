/*
 * Laser CNC motion core - main process.
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

package main

import (
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	getopt "github.com/pborman/getopt/v2"

	"github.com/openglow-cnc/lasercore/cli"
	"github.com/openglow-cnc/lasercore/controller"
	"github.com/openglow-cnc/lasercore/hardware"
	"github.com/openglow-cnc/lasercore/settings"
	logger "github.com/openglow-cnc/lasercore/util/logger"
)

var Logger *slog.Logger

func main() {
	optSettings := getopt.StringLong("settings", 's', "", "Settings file (\"$n=value\" lines); defaults used if absent")
	optLogFile := getopt.StringLong("log", 'l', "", "Log file")
	optSwitches := getopt.StringLong("switches", 0, "4", "Number of enclosure/interlock switch channels")
	optLimits := getopt.StringLong("limits", 0, "6", "Number of axis travel-limit channels (2 per axis)")
	optDebug := getopt.BoolLong("debug", 'd', "Mirror every log record to stderr, not just warnings")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	var file *os.File
	if *optLogFile != "" {
		file, _ = os.Create(*optLogFile)
	}
	programLevel := new(slog.LevelVar)
	programLevel.Set(slog.LevelDebug)
	Logger = slog.New(logger.New(file, &slog.HandlerOptions{Level: programLevel}, *optDebug))
	slog.SetDefault(Logger)

	Logger.Info("lasercore started")

	switchCount, err := strconv.Atoi(*optSwitches)
	if err != nil {
		Logger.Error("switches must be a number: " + *optSwitches)
		os.Exit(1)
	}
	limitCount, err := strconv.Atoi(*optLimits)
	if err != nil {
		Logger.Error("limits must be a number: " + *optLimits)
		os.Exit(1)
	}

	cfg := settings.Default()
	if *optSettings != "" {
		if err := cfg.Load(*optSettings); err != nil {
			Logger.Error("loading settings: " + err.Error())
			os.Exit(1)
		}
	}

	// A real pulse/attribute driver is out of scope; NullSink records
	// ticks without touching hardware until one is wired in.
	sink := hardware.NewNullSink()

	machine := controller.New(&cfg, sink, sink, switchCount, limitCount, Logger)
	machine.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		cli.ConsoleReader(machine)
		close(done)
	}()

	select {
	case <-sigChan:
		Logger.Info("got quit signal")
	case <-done:
		Logger.Info("console exited")
	}

	Logger.Info("shutting down controller")
	machine.Stop()
	Logger.Info("stopped")
}
