package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRanksSimple(t *testing.T) {
	ranks, err := Ranks([]float64{30, 10, 20})
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 1, 2}, ranks)
}

func TestRanksTiesShareAverage(t *testing.T) {
	ranks, err := Ranks([]float64{1, 2, 2, 3})
	require.NoError(t, err)
	// The two 2s occupy ordinal positions 2 and 3 -> both rank 2.5.
	assert.Equal(t, []float64{1, 2.5, 2.5, 4}, ranks)
}

func TestRanksAllEqual(t *testing.T) {
	ranks, err := Ranks([]float64{5, 5, 5})
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 2, 2}, ranks)
}

func TestRanksEmpty(t *testing.T) {
	_, err := Ranks(nil)
	assert.Error(t, err)
}

func TestRanksIdempotentOrdering(t *testing.T) {
	xs := []float64{0.3, -1.2, 4.5, 0.3, 2.2}
	r1, err := Ranks(xs)
	require.NoError(t, err)
	r2, err := Ranks(r1)
	require.NoError(t, err)

	rho, err := Spearman(r1, r2)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, rho, 1e-12)
}

func TestPearsonPerfect(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	y := []float64{2, 4, 6, 8, 10}

	r, err := Pearson(x, y)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, r, 1e-12)

	neg := []float64{-2, -4, -6, -8, -10}
	r, err = Pearson(x, neg)
	require.NoError(t, err)
	assert.InDelta(t, -1.0, r, 1e-12)
}

func TestPearsonZeroVariance(t *testing.T) {
	r, err := Pearson([]float64{3, 3, 3}, []float64{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, 0.0, r)
}

func TestPearsonLengthMismatch(t *testing.T) {
	_, err := Pearson([]float64{1, 2}, []float64{1})
	assert.Error(t, err)
}

func TestSpearmanSelfAndNegation(t *testing.T) {
	xs := []float64{0.5, -0.3, 1.7, 0.1, -2.4, 0.9}

	rho, err := Spearman(xs, xs)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, rho, 1e-12)

	neg := make([]float64, len(xs))
	for i, x := range xs {
		neg[i] = -x
	}
	rho, err = Spearman(xs, neg)
	require.NoError(t, err)
	assert.InDelta(t, -1.0, rho, 1e-12)
}

func TestSpearmanMonotonicNonlinear(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	y := []float64{1, 8, 27, 64, 125} // x^3: nonlinear but strictly monotonic

	rho, err := Spearman(x, y)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, rho, 1e-12)
}

func TestMoments(t *testing.T) {
	xs := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	assert.InDelta(t, 5.0, Mean(xs), 1e-12)
	assert.InDelta(t, 2.13809, StdDev(xs), 1e-4)
	assert.Equal(t, 0.0, StdDev([]float64{1}))
	assert.Equal(t, 0.0, StdDev([]float64{3, 3, 3}))
}

func TestDownsideDeviationFullDenominator(t *testing.T) {
	// Only -0.02 is below target 0; denominator is still n=4.
	xs := []float64{0.01, -0.02, 0.03, 0.02}
	want := math.Sqrt(0.02 * 0.02 / 4)
	assert.InDelta(t, want, DownsideDeviation(xs, 0), 1e-12)

	assert.Equal(t, 0.0, DownsideDeviation([]float64{0.1, 0.2}, 0))
}

func TestNormCDF(t *testing.T) {
	assert.InDelta(t, 0.5, NormCDF(0), 1e-9)
	assert.InDelta(t, 0.975, NormCDF(1.96), 1e-4)
	assert.InDelta(t, 0.025, NormCDF(-1.96), 1e-4)
	assert.InDelta(t, 0.0, NormCDF(-40), 1e-9)
	assert.InDelta(t, 1.0, NormCDF(40), 1e-9)
}

func TestNormInvRoundTrip(t *testing.T) {
	for _, p := range []float64{0.01, 0.025, 0.1, 0.5, 0.9, 0.975, 0.99} {
		x := NormInv(p)
		assert.InDelta(t, p, NormCDF(x), 1e-6, "p=%v", p)
	}
	assert.InDelta(t, 0.0, NormInv(0.5), 1e-9)
	assert.InDelta(t, 1.6449, NormInv(0.95), 1e-3)
}

func TestNormInvClampedTails(t *testing.T) {
	// Inputs at or beyond the clamp stay finite.
	assert.False(t, math.IsInf(NormInv(0), 0))
	assert.False(t, math.IsInf(NormInv(1), 0))
	assert.True(t, NormInv(1) > 6)
	assert.True(t, NormInv(0) < -6)
}

func TestAnnualizedSharpe(t *testing.T) {
	returns := []float64{0.01, 0.02, -0.01, 0.015, 0.005}
	sr := AnnualizedSharpe(returns, 252)
	expected := Mean(returns) / StdDev(returns) * math.Sqrt(252)
	assert.InDelta(t, expected, sr, 1e-12)

	assert.Equal(t, 0.0, AnnualizedSharpe([]float64{0.01, 0.01, 0.01}, 252))
}

func TestVIFNoPredictors(t *testing.T) {
	_, err := VIF([]float64{1, 2, 3}, nil)
	assert.ErrorIs(t, err, ErrNoPredictors)
}

func TestVIFIndependentPredictor(t *testing.T) {
	y := []float64{1, -1, 1, -1, 1, -1, 1, -1}
	x := []float64{1, 1, -1, -1, 1, 1, -1, -1}

	vif, err := VIF(y, [][]float64{x})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, vif, 1e-9)
}

func TestVIFPerfectCollinearity(t *testing.T) {
	y := []float64{0.1, 0.4, -0.2, 0.3, -0.1, 0.25}
	twin := make([]float64, len(y))
	copy(twin, y)

	vif, err := VIF(y, [][]float64{twin})
	require.NoError(t, err)
	assert.True(t, math.IsInf(vif, 1))
}

func TestVIFScaledCopyIsCollinear(t *testing.T) {
	y := []float64{0.1, 0.4, -0.2, 0.3, -0.1, 0.25}
	scaled := make([]float64, len(y))
	for i, v := range y {
		scaled[i] = 3*v + 0.5
	}

	vif, err := VIF(y, [][]float64{scaled})
	require.NoError(t, err)
	assert.True(t, math.IsInf(vif, 1))
}

func TestVIFDuplicatePredictorsDoNotPanic(t *testing.T) {
	y := []float64{0.1, 0.4, -0.2, 0.3, -0.1, 0.25, 0.05, -0.3}
	x := []float64{1, 2, 3, 4, 5, 6, 7, 8}

	// Identical predictors make the normal matrix singular; the solver
	// must still return a finite fit.
	vif, err := VIF(y, [][]float64{x, x})
	require.NoError(t, err)
	assert.False(t, math.IsNaN(vif))
}

func TestSkewnessAndKurtosisSymmetric(t *testing.T) {
	xs := []float64{-2, -1, 0, 1, 2}
	assert.InDelta(t, 0.0, Skewness(xs), 1e-12)
	assert.Equal(t, 0.0, Skewness([]float64{1, 1, 1}))
	assert.Equal(t, 0.0, ExcessKurtosis([]float64{1, 1, 1, 1}))
}
