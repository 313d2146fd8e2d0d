// Package stats provides the statistical primitives shared by the validation
// gates: ranks, correlation, moments, Gaussian distribution helpers, and the
// variance inflation factor.
package stats

import (
	"fmt"
	"math"
)

// VarianceFloor is the threshold below which a variance is treated as zero.
// Ratios with a zero-variance denominator take their documented fallback
// instead of dividing.
const VarianceFloor = 1e-15

// Ranks returns the 1-based ordinal ranks of xs with average-rank tie
// breaking: equal values share the mean of the contiguous ordinal positions
// they occupy. The input is not modified.
func Ranks(xs []float64) ([]float64, error) {
	n := len(xs)
	if n == 0 {
		return nil, fmt.Errorf("ranks: empty input")
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	// Insertion sort keeps equal values in input order (stable).
	for i := 1; i < n; i++ {
		for j := i; j > 0 && xs[idx[j]] < xs[idx[j-1]]; j-- {
			idx[j], idx[j-1] = idx[j-1], idx[j]
		}
	}

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && xs[idx[j+1]] == xs[idx[i]] {
			j++
		}
		// Positions i..j hold equal values; assign the mean ordinal rank.
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avg
		}
		i = j + 1
	}
	return ranks, nil
}

// Mean returns the sample mean of xs, 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// StdDev returns the sample standard deviation (n-1 denominator) of xs.
// Variances below VarianceFloor collapse to 0.
func StdDev(xs []float64) float64 {
	n := len(xs)
	if n < 2 {
		return 0
	}
	mean := Mean(xs)
	ss := 0.0
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	variance := ss / float64(n-1)
	if variance < VarianceFloor {
		return 0
	}
	return math.Sqrt(variance)
}

// DownsideDeviation returns sqrt(mean(min(r-target, 0)^2)) over the full
// sample. The denominator is n, not the count of below-target observations.
func DownsideDeviation(xs []float64, target float64) float64 {
	n := len(xs)
	if n == 0 {
		return 0
	}
	ss := 0.0
	for _, x := range xs {
		if d := x - target; d < 0 {
			ss += d * d
		}
	}
	return math.Sqrt(ss / float64(n))
}

// Pearson returns the product-moment correlation of xs and ys.
// Returns 0 when either series has zero variance.
func Pearson(xs, ys []float64) (float64, error) {
	if len(xs) != len(ys) {
		return 0, fmt.Errorf("pearson: length mismatch %d vs %d", len(xs), len(ys))
	}
	n := len(xs)
	if n == 0 {
		return 0, fmt.Errorf("pearson: empty input")
	}

	meanX := Mean(xs)
	meanY := Mean(ys)

	var cov, varX, varY float64
	for i := 0; i < n; i++ {
		dx := xs[i] - meanX
		dy := ys[i] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX < VarianceFloor || varY < VarianceFloor {
		return 0, nil
	}

	r := cov / math.Sqrt(varX*varY)
	// Guard against float drift past the mathematical bounds.
	if r > 1 {
		r = 1
	} else if r < -1 {
		r = -1
	}
	return r, nil
}

// Spearman returns the rank correlation of xs and ys: Pearson applied to
// their average-tie ranks.
func Spearman(xs, ys []float64) (float64, error) {
	if len(xs) != len(ys) {
		return 0, fmt.Errorf("spearman: length mismatch %d vs %d", len(xs), len(ys))
	}
	rx, err := Ranks(xs)
	if err != nil {
		return 0, fmt.Errorf("spearman: %w", err)
	}
	ry, err := Ranks(ys)
	if err != nil {
		return 0, fmt.Errorf("spearman: %w", err)
	}
	return Pearson(rx, ry)
}

// AnnualizedSharpe returns (mean/std)*sqrt(periodsPerYear) of the return
// series. Zero-variance series yield 0.
func AnnualizedSharpe(returns []float64, periodsPerYear float64) float64 {
	std := StdDev(returns)
	if std == 0 {
		return 0
	}
	return Mean(returns) / std * math.Sqrt(periodsPerYear)
}

// Skewness returns the sample skewness of xs, 0 for degenerate inputs.
func Skewness(xs []float64) float64 {
	n := float64(len(xs))
	if n < 3 {
		return 0
	}
	mean := Mean(xs)
	std := StdDev(xs)
	if std == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		d := (x - mean) / std
		sum += d * d * d
	}
	return sum * n / ((n - 1) * (n - 2))
}

// ExcessKurtosis returns the sample excess kurtosis of xs, 0 for degenerate
// inputs.
func ExcessKurtosis(xs []float64) float64 {
	n := float64(len(xs))
	if n < 4 {
		return 0
	}
	mean := Mean(xs)
	std := StdDev(xs)
	if std == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		d := (x - mean) / std
		sum += d * d * d * d
	}
	k := sum * n * (n + 1) / ((n - 1) * (n - 2) * (n - 3))
	adj := 3 * (n - 1) * (n - 1) / ((n - 2) * (n - 3))
	return k - adj
}
