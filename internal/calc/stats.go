// Small statistics helpers for metric series
package calc

import "sort"

// Mean after dropping the given fraction of samples from each end of the sorted values.
// At least one sample always survives the trim.
func TrimmedMean(values []float64, trim float64) (mean float64) {
	n := len(values)
	if n == 0 {
		return
	}
	trim = min(max(trim, 0), 0.5)

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	cut := int(float64(n) * trim)
	if cut*2 >= n {
		cut = (n - 1) / 2
	}
	kept := sorted[cut : n-cut]

	var sum float64
	for _, v := range kept {
		sum += v
	}
	mean = sum / float64(len(kept))
	return
}

// Least squares line through values sampled at x = 0..n-1.
// ok is false for fewer than two samples.
func LinearFit(values []float64) (mean, slope float64, ok bool) {
	n := float64(len(values))
	if len(values) < 2 {
		return
	}

	var sx, sy, sxy, sxx float64
	for i, v := range values {
		x := float64(i)
		sx += x
		sy += v
		sxy += x * v
		sxx += x * x
	}

	denom := n*sxx - sx*sx
	if denom == 0 {
		return
	}
	mean = sy / n
	slope = (n*sxy - sx*sy) / denom
	ok = true
	return
}
