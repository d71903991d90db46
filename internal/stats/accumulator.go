// Package stats provides running summary statistics and tie-capacity math
// for core-periphery networks.
package stats

import "math"

// Accumulator maintains running summary statistics over a stream of values
// without storing them. The zero value is ready to use.
type Accumulator struct {
	n    int
	min  float64
	max  float64
	sum  float64
	sum2 float64
}

// Add records a single value.
func (a *Accumulator) Add(v float64) {
	if a.n == 0 || v < a.min {
		a.min = v
	}
	if a.n == 0 || v > a.max {
		a.max = v
	}
	a.n++
	a.sum += v
	a.sum2 += v * v
}

// N returns the number of values recorded so far.
func (a *Accumulator) N() int { return a.n }

// Min returns the smallest recorded value, or 0 when nothing was recorded.
func (a *Accumulator) Min() float64 { return a.min }

// Max returns the largest recorded value, or 0 when nothing was recorded.
func (a *Accumulator) Max() float64 { return a.max }

// Sum returns the sum of all recorded values.
func (a *Accumulator) Sum() float64 { return a.sum }

// Mean returns the arithmetic mean, or 0 when nothing was recorded.
func (a *Accumulator) Mean() float64 {
	if a.n == 0 {
		return 0
	}
	return a.sum / float64(a.n)
}

// Variance returns the sample variance (n-1 denominator), or 0 with fewer
// than two values.
func (a *Accumulator) Variance() float64 {
	if a.n < 2 {
		return 0
	}
	mean := a.sum / float64(a.n)
	return (a.sum2 - float64(a.n)*mean*mean) / float64(a.n-1)
}

// StdDev returns the sample standard deviation.
func (a *Accumulator) StdDev() float64 {
	return math.Sqrt(a.Variance())
}
