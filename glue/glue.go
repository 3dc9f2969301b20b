/*
 * Laser CNC motion core - shared geometry helpers.
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

// Package glue holds small numeric helpers shared across the gcode, motion
// and planner packages: nothing here owns state, it just keeps the same
// vector arithmetic from growing five slightly different copies.
package glue

import "math"

// Hypot3 returns the Euclidean length of a 3-vector. math.Hypot only takes
// two arguments, hence this helper rather than a direct stdlib call.
func Hypot3(x, y, z float64) float64 {
	return math.Sqrt(x*x + y*y + z*z)
}

// UnitVector normalizes v in place and returns its original length. A
// zero-length v is left as all zeroes.
func UnitVector(v *[3]float64) float64 {
	length := Hypot3(v[0], v[1], v[2])
	if length == 0 {
		return 0
	}
	v[0] /= length
	v[1] /= length
	v[2] /= length
	return length
}

// LimitByAxisMaximum returns the largest scalar speed/accel achievable along
// unit direction vec without exceeding any per-axis maximum in max. An axis
// with zero component in vec imposes no bound.
func LimitByAxisMaximum(vec [3]float64, max [3]float64) float64 {
	limit := math.MaxFloat64
	for a := 0; a < 3; a++ {
		if vec[a] == 0 {
			continue
		}
		v := math.Abs(max[a] / vec[a])
		if v < limit {
			limit = v
		}
	}
	return limit
}

// Clamp restricts v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
