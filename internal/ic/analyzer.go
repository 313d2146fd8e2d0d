// Package ic computes rolling information-coefficient series and the IC
// admission gate: rank correlation between a signal and forward returns,
// evaluated over a sliding window.
package ic

import (
	"fmt"
	"math"

	"github.com/cream-quant/synthcore/internal/stats"
)

// Config holds the rolling-window and threshold settings for the IC gate.
type Config struct {
	Window        int     `yaml:"window"`         // rolling window size, default 20
	MeanThreshold float64 `yaml:"mean_threshold"` // minimum mean IC, default 0.02
	StdThreshold  float64 `yaml:"std_threshold"`  // maximum IC std, default 0.03
}

// DefaultConfig returns the production IC gate configuration.
func DefaultConfig() Config {
	return Config{
		Window:        20,
		MeanThreshold: 0.02,
		StdThreshold:  0.03,
	}
}

// Observation is a single rolling-window IC value. Period is the index of
// the last row in the window.
type Observation struct {
	Period int     `json:"period"`
	IC     float64 `json:"ic"`
}

// Result contains the IC series, its summary statistics, and the gate
// decision.
type Result struct {
	Series        []Observation `json:"series"`
	Mean          float64       `json:"mean"`
	Std           float64       `json:"std"`
	ICIR          float64       `json:"icir"`     // mean/std, 0 when std is 0
	HitRate       float64       `json:"hit_rate"` // fraction of windows with IC > 0
	Decay         float64       `json:"decay"`    // first-lag autocorrelation of the IC series
	NObservations int           `json:"n_observations"`
	Significant   bool          `json:"significant"` // |mean|/(std/sqrt(n)) > 1.96
	Passed        bool          `json:"passed"`
	Reason        string        `json:"reason,omitempty"`
}

// Analyze computes the rolling IC of signals against forward returns and
// applies the gate thresholds. Windows with zero variance contribute IC = 0;
// they are not dropped. When the series is shorter than the window the gate
// is skipped as insufficient data and passes with a warning.
func Analyze(signals, forward []float64, cfg Config) (*Result, error) {
	n := len(signals)
	if n == 0 {
		return nil, fmt.Errorf("ic: empty signal series")
	}
	if len(forward) != n {
		return nil, fmt.Errorf("ic: forward length %d != signal length %d", len(forward), n)
	}
	if cfg.Window < 2 {
		return nil, fmt.Errorf("ic: window %d must be >= 2", cfg.Window)
	}

	if cfg.Window > n {
		return &Result{
			Series: []Observation{},
			Passed: true,
			Reason: fmt.Sprintf("insufficient data: %d rows < window %d, IC gate skipped", n, cfg.Window),
		}, nil
	}

	w := cfg.Window
	series := make([]Observation, 0, n-w+1)
	values := make([]float64, 0, n-w+1)
	for i := w - 1; i < n; i++ {
		rho, err := stats.Spearman(signals[i-w+1:i+1], forward[i-w+1:i+1])
		if err != nil {
			return nil, fmt.Errorf("ic: window ending at %d: %w", i, err)
		}
		series = append(series, Observation{Period: i, IC: rho})
		values = append(values, rho)
	}

	mean := stats.Mean(values)
	std := stats.StdDev(values)

	res := &Result{
		Series:        series,
		Mean:          mean,
		Std:           std,
		NObservations: len(values),
	}
	if std > 0 {
		res.ICIR = mean / std
		res.Significant = math.Abs(mean)/(std/math.Sqrt(float64(len(values)))) > 1.96
	}

	hits := 0
	for _, v := range values {
		if v > 0 {
			hits++
		}
	}
	res.HitRate = float64(hits) / float64(len(values))
	res.Decay = firstLagAutocorr(values)

	res.Passed = mean >= cfg.MeanThreshold && std <= cfg.StdThreshold
	if !res.Passed {
		if mean < cfg.MeanThreshold {
			res.Reason = fmt.Sprintf("mean IC %.4f below threshold %.4f", mean, cfg.MeanThreshold)
		} else {
			res.Reason = fmt.Sprintf("IC std %.4f exceeds threshold %.4f", std, cfg.StdThreshold)
		}
	}
	return res, nil
}

// firstLagAutocorr returns the lag-1 autocorrelation of xs, 0 for fewer
// than three observations or a flat series.
func firstLagAutocorr(xs []float64) float64 {
	if len(xs) < 3 {
		return 0
	}
	r, err := stats.Pearson(xs[:len(xs)-1], xs[1:])
	if err != nil {
		return 0
	}
	return r
}
