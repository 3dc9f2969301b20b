/*
 * Laser CNC motion core - console command parser.
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

// Package cli is a thin, explicitly non-authoritative operator console for
// development: reset/hold/resume/status/show/set against a running
// controller.Controller. It does not format a wire protocol; status and
// show print the Go %+v of the underlying structured values, left for a
// real transport layer to render properly.
package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/openglow-cnc/lasercore/controller"
	"github.com/openglow-cnc/lasercore/status"
)

type cmd struct {
	name    string // command name
	min     int    // minimum match length
	process func(args string, c *controller.Controller) (bool, error)
}

var cmdList = []cmd{
	{name: "reset", min: 3, process: reset},
	{name: "hold", min: 2, process: hold},
	{name: "resume", min: 2, process: resume},
	{name: "status", min: 2, process: showStatus},
	{name: "show", min: 2, process: show},
	{name: "set", min: 3, process: set},
	{name: "quit", min: 4, process: quit},
}

// ProcessCommand runs one console line against c, the same matched-prefix
// shape the quit bool and error follow: quit tells the reader loop to stop.
func ProcessCommand(commandLine string, c *controller.Controller) (bool, error) {
	name, rest, _ := strings.Cut(strings.TrimSpace(commandLine), " ")
	if name == "" {
		return false, nil
	}

	match := matchList(name)
	if len(match) == 0 {
		return false, errors.New("command not found: " + name)
	}
	if len(match) > 1 {
		return false, errors.New("unique command not found: " + name)
	}

	return match[0].process(strings.TrimSpace(rest), c)
}

// CompleteCmd returns the full names of every command name starts with,
// for liner's completer.
func CompleteCmd(name string) []string {
	match := matchList(name)
	out := make([]string, len(match))
	for i, m := range match {
		out[i] = m.name
	}
	return out
}

// matchCommand reports whether command is a prefix of match.name at least
// match.min characters long.
func matchCommand(match cmd, command string) bool {
	if len(command) > len(match.name) {
		return false
	}
	l := 0
	for l = range len(command) {
		if match.name[l] != command[l] {
			return false
		}
	}
	return (l + 1) >= match.min
}

func matchList(command string) []cmd {
	if command == "" {
		return nil
	}
	var match []cmd
	for _, m := range cmdList {
		if matchCommand(m, command) {
			match = append(match, m)
		}
	}
	return match
}

func reset(_ string, c *controller.Controller) (bool, error) {
	return false, c.Reset()
}

func hold(_ string, c *controller.Controller) (bool, error) {
	return false, c.FSM.Request(status.Hold)
}

func resume(_ string, c *controller.Controller) (bool, error) {
	return false, c.FSM.Request(status.Idle)
}

func showStatus(_ string, c *controller.Controller) (bool, error) {
	fmt.Printf("%+v\n", c.Status())
	return false, nil
}

func show(_ string, c *controller.Controller) (bool, error) {
	fmt.Printf("%+v\n", *c.Settings)
	return false, nil
}

// set parses "key value" as a GRBL-style "$key=value" setting, e.g.
// "set 110 8000" raises the X axis max rate from its default of 6000.
func set(args string, c *controller.Controller) (bool, error) {
	key, value, ok := strings.Cut(args, " ")
	if !ok || key == "" || value == "" {
		return false, errors.New("usage: set <key> <value>")
	}
	if _, err := strconv.Atoi(key); err != nil {
		return false, errors.New("set key must be a setting number: " + key)
	}
	return false, c.Settings.ApplyLine("$" + key + "=" + strings.TrimSpace(value))
}

func quit(_ string, _ *controller.Controller) (bool, error) {
	return true, nil
}
