package walkforward

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// steadySeries builds a drifting return series the signal predicts in every
// window.
func steadySeries(n int) (returns, signals []float64) {
	returns = make([]float64, n)
	signals = make([]float64, n)
	for i := 0; i < n; i++ {
		returns[i] = 0.002 + 0.001*float64(i%5-2)
		signals[i] = 1
	}
	return returns, signals
}

func TestValidateStableStrategy(t *testing.T) {
	returns, signals := steadySeries(252)

	res, err := Validate(returns, signals, DefaultConfig())
	require.NoError(t, err)
	require.NotEmpty(t, res.Windows)
	// Train and test draw from the same stationary process: efficiency
	// stays near 1 and every window tests positive.
	assert.InDelta(t, 1.0, res.Efficiency, 0.25)
	assert.Equal(t, 1.0, res.Consistency)
	assert.True(t, res.Passed)
}

func TestValidateAnchoredMode(t *testing.T) {
	returns, signals := steadySeries(300)

	cfg := DefaultConfig()
	cfg.Method = Anchored
	res, err := Validate(returns, signals, cfg)
	require.NoError(t, err)
	require.NotEmpty(t, res.Windows)
	for _, w := range res.Windows {
		assert.Equal(t, 0, w.TrainStart)
		assert.Equal(t, w.TrainEnd, w.TestStart)
	}
	assert.True(t, res.Passed)
}

func TestValidateDegradedStrategyFails(t *testing.T) {
	// Signal works in the first three fifths, then inverts.
	n := 250
	returns := make([]float64, n)
	signals := make([]float64, n)
	for i := 0; i < n; i++ {
		returns[i] = 0.002 + 0.0015*float64(i%7-3)
		if i < 150 {
			signals[i] = 1
		} else {
			signals[i] = -1
		}
	}

	res, err := Validate(returns, signals, DefaultConfig())
	require.NoError(t, err)
	assert.Less(t, res.Efficiency, 0.5)
	assert.False(t, res.Passed)
	assert.Contains(t, res.Reason, "efficiency")
	assert.InDelta(t, 1-res.Efficiency, res.Degradation, 1e-12)
}

func TestValidateInsufficientDataSkips(t *testing.T) {
	returns := []float64{0.01, -0.02, 0.005}
	signals := []float64{1, -1, 1}

	res, err := Validate(returns, signals, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Efficiency)
	assert.True(t, res.Passed)
	assert.Contains(t, res.Reason, "insufficient data")
}

func TestValidateZeroReturnsFallback(t *testing.T) {
	n := 100
	returns := make([]float64, n)
	signals := make([]float64, n)
	for i := range signals {
		signals[i] = 1
	}

	res, err := Validate(returns, signals, DefaultConfig())
	require.NoError(t, err)
	// Zero train and test Sharpe: the non-positive numerator fallback is 0.
	assert.Equal(t, 0.0, res.Efficiency)
	assert.False(t, res.Passed)
	assert.Equal(t, 0.0, res.Consistency)
}

func TestValidateInvalidInputs(t *testing.T) {
	_, err := Validate(nil, nil, DefaultConfig())
	assert.Error(t, err)

	_, err = Validate([]float64{1, 2}, []float64{1}, DefaultConfig())
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.TrainFraction = 1.2
	_, err = Validate([]float64{1, 2, 3}, []float64{1, 2, 3}, cfg)
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.Method = Method("expanding")
	_, err = Validate([]float64{1, 2, 3}, []float64{1, 2, 3}, cfg)
	assert.Error(t, err)
}

func TestValidateWindowBoundsCoverSeries(t *testing.T) {
	returns, signals := steadySeries(257) // not divisible by 5

	res, err := Validate(returns, signals, DefaultConfig())
	require.NoError(t, err)
	last := res.Windows[len(res.Windows)-1]
	// The last window absorbs the remainder rows.
	assert.Equal(t, 257, last.TestEnd)
	for _, w := range res.Windows {
		assert.Less(t, w.TestStart, w.TestEnd)
		assert.LessOrEqual(t, w.TrainEnd, w.TestStart)
	}
}
