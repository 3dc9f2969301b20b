package glue

/*
 * Laser CNC motion core - shared geometry helper tests.
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
	"math"
	"testing"
)

func TestHypot3(t *testing.T) {
	got := Hypot3(3, 4, 0)
	if math.Abs(got-5) > 1e-9 {
		t.Fatalf("Hypot3(3,4,0) = %v, want 5", got)
	}
}

func TestUnitVectorNormalizesAndReturnsLength(t *testing.T) {
	v := [3]float64{3, 4, 0}
	length := UnitVector(&v)
	if math.Abs(length-5) > 1e-9 {
		t.Fatalf("length = %v, want 5", length)
	}
	want := [3]float64{0.6, 0.8, 0}
	for a := 0; a < 3; a++ {
		if math.Abs(v[a]-want[a]) > 1e-9 {
			t.Fatalf("v[%d] = %v, want %v", a, v[a], want[a])
		}
	}
}

func TestUnitVectorZeroLengthLeftAlone(t *testing.T) {
	v := [3]float64{0, 0, 0}
	if length := UnitVector(&v); length != 0 {
		t.Fatalf("length = %v, want 0", length)
	}
	if v != [3]float64{0, 0, 0} {
		t.Fatalf("v = %v, want untouched zero vector", v)
	}
}

func TestLimitByAxisMaximumPicksTightestAxis(t *testing.T) {
	vec := [3]float64{1, 0.5, 0}
	max := [3]float64{100, 20, 500}
	// X allows 100/1=100, Y allows 20/0.5=40; Y is tighter.
	got := LimitByAxisMaximum(vec, max)
	if math.Abs(got-40) > 1e-9 {
		t.Fatalf("limit = %v, want 40", got)
	}
}

func TestLimitByAxisMaximumIgnoresZeroComponents(t *testing.T) {
	vec := [3]float64{0, 1, 0}
	max := [3]float64{5, 10, 5}
	got := LimitByAxisMaximum(vec, max)
	if math.Abs(got-10) > 1e-9 {
		t.Fatalf("limit = %v, want 10 (only Y constrains)", got)
	}
}

func TestClamp(t *testing.T) {
	cases := []struct{ v, lo, hi, want float64 }{
		{5, 0, 10, 5},
		{-1, 0, 10, 0},
		{11, 0, 10, 10},
	}
	for _, c := range cases {
		if got := Clamp(c.v, c.lo, c.hi); got != c.want {
			t.Fatalf("Clamp(%v,%v,%v) = %v, want %v", c.v, c.lo, c.hi, got, c.want)
		}
	}
}
