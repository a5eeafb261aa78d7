// Package probe captures per-layer activations from an instrumented
// model capability and turns them into normalized, serialized buffers
// for streaming.
package probe

import (
	"math"
	"sort"
)

// normEpsilon guards the normalization denominator when a value set is
// (nearly) constant and its percentile span collapses to zero.
const normEpsilon = 1e-8

// Default percentile bounds for robust scaling. The extreme 2% on each
// tail is clamped instead of discarded, so outliers stay visible while
// the middle 96% gets the full [0, 1] range.
const (
	DefaultLowPercentile  = 2
	DefaultHighPercentile = 98
)

// percentile estimates the p-th percentile of sorted values using
// linear interpolation between order statistics.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[n-1]
	}
	rank := p / 100 * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// percentileBounds returns the (pLow, pHigh) percentiles of values.
func percentileBounds(values []float32, pLow, pHigh float64) (float64, float64) {
	sorted := make([]float64, len(values))
	for i, v := range values {
		sorted[i] = float64(v)
	}
	sort.Float64s(sorted)
	return percentile(sorted, pLow), percentile(sorted, pHigh)
}

// normalizeInto writes clamp((src-lo)/(hi-lo+eps), 0, 1) into dst.
// dst and src may alias.
func normalizeInto(dst, src []float32, lo, hi float64) {
	span := hi - lo + normEpsilon
	for i, v := range src {
		x := (float64(v) - lo) / span
		if x < 0 {
			x = 0
		} else if x > 1 {
			x = 1
		}
		dst[i] = float32(x)
	}
}

// PercentileNormalize rescales values to [0, 1] by clamping against
// the pLow/pHigh percentiles of the value set itself. It behaves
// sanely for concentrated, heavy-tailed, and roughly normal
// distributions, and never produces NaN or Inf.
func PercentileNormalize(values []float32, pLow, pHigh float64) []float32 {
	out := make([]float32, len(values))
	if len(values) == 0 {
		return out
	}
	lo, hi := percentileBounds(values, pLow, pHigh)
	normalizeInto(out, values, lo, hi)
	return out
}
