// Package dsr implements the deflated Sharpe ratio gate: the observed
// Sharpe is measured against the maximum Sharpe expected by chance from the
// number of trials the candidate was selected from.
package dsr

import (
	"fmt"
	"math"

	"github.com/cream-quant/synthcore/internal/stats"
)

// eulerMascheroni is the γ constant used by the expected-maximum formula.
const eulerMascheroni = 0.5772156649015329

// seFloor replaces a non-positive standard-error radicand.
const seFloor = 1e-8

// Config holds the DSR gate settings.
type Config struct {
	PValueThreshold     float64 `yaml:"p_value_threshold"`    // minimum DSR probability, default 0.95
	AnnualizationFactor float64 `yaml:"annualization_factor"` // periods per year, default 252
}

// DefaultConfig returns the production DSR gate configuration.
func DefaultConfig() Config {
	return Config{
		PValueThreshold:     0.95,
		AnnualizationFactor: 252,
	}
}

// Result contains the deflation inputs, the deflated Sharpe probability,
// and the gate decision.
type Result struct {
	Sharpe           float64 `json:"sharpe"`             // observed annualised Sharpe
	ExpectedMaxShape float64 `json:"expected_max_sharpe"`
	StandardError    float64 `json:"standard_error"`
	PValue           float64 `json:"p_value"` // DSR probability in [0, 1]
	NTrials          int     `json:"n_trials"`
	NObservations    int     `json:"n_observations"`
	Passed           bool    `json:"passed"`
	Reason           string  `json:"reason,omitempty"`
}

// ExpectedMaxSharpe returns the expected maximum Sharpe ratio among nTrials
// independent zero-skill strategies. Monotonically non-decreasing in
// nTrials; 0 for a single trial.
func ExpectedMaxSharpe(nTrials int) float64 {
	if nTrials <= 1 {
		return 0
	}
	t := float64(nTrials)
	return math.Sqrt2 * ((1-eulerMascheroni)*stats.NormInv(1-1/t) +
		eulerMascheroni*stats.NormInv(1-1/(t*math.E)))
}

// EvaluateSharpe deflates a pre-computed annualised Sharpe ratio given the
// trial count, the observation count, and the return distribution's skew
// and excess kurtosis.
func EvaluateSharpe(sharpe float64, nTrials, nObs int, skew, kurtosis float64, cfg Config) (*Result, error) {
	if nTrials < 1 {
		return nil, fmt.Errorf("dsr: trial count %d must be >= 1", nTrials)
	}
	if nObs < 2 {
		return nil, fmt.Errorf("dsr: observation count %d must be >= 2", nObs)
	}

	res := &Result{
		Sharpe:           sharpe,
		ExpectedMaxShape: ExpectedMaxSharpe(nTrials),
		NTrials:          nTrials,
		NObservations:    nObs,
	}

	radicand := (1 - skew*sharpe + (kurtosis-1)/4*sharpe*sharpe) / float64(nObs-1)
	warn := ""
	if radicand <= 0 {
		radicand = seFloor
		warn = "standard-error radicand non-positive, clamped to floor; "
	}
	res.StandardError = math.Sqrt(radicand)

	res.PValue = stats.NormCDF((sharpe - res.ExpectedMaxShape) / res.StandardError)
	res.Passed = res.PValue >= cfg.PValueThreshold
	if !res.Passed {
		res.Reason = fmt.Sprintf("%sdeflated Sharpe probability %.4f below threshold %.2f (expected max Sharpe %.3f from %d trials)",
			warn, res.PValue, cfg.PValueThreshold, res.ExpectedMaxShape, nTrials)
	} else if warn != "" {
		res.Reason = warn + "gate passed"
	}
	return res, nil
}

// Evaluate computes the annualised Sharpe of the return series, its skew
// and excess kurtosis, and deflates it. A zero-variance series scores
// Sharpe 0.
func Evaluate(returns []float64, nTrials int, cfg Config) (*Result, error) {
	if len(returns) < 2 {
		return nil, fmt.Errorf("dsr: need at least 2 returns, got %d", len(returns))
	}
	sharpe := stats.AnnualizedSharpe(returns, cfg.AnnualizationFactor)
	skew := stats.Skewness(returns)
	kurt := stats.ExcessKurtosis(returns)
	return EvaluateSharpe(sharpe, nTrials, len(returns), skew, kurt, cfg)
}
