// Package walkforward measures in-sample to out-of-sample degradation: the
// row range is cut into successive evaluation windows, each scored on a
// training span and a held-out test span, and the efficiency ratio of mean
// test Sharpe to mean train Sharpe decides the gate.
package walkforward

import (
	"fmt"

	"github.com/cream-quant/synthcore/internal/stats"
)

// Method selects how training rows are chosen for each window.
type Method string

const (
	// Rolling trains on a fixed-size span immediately before each window.
	Rolling Method = "rolling"
	// Anchored trains on everything from row zero up to each window.
	Anchored Method = "anchored"
)

// Config holds the walk-forward settings.
type Config struct {
	Periods             int     `yaml:"periods"`              // evaluation windows, default 5
	TrainFraction       float64 `yaml:"train_fraction"`       // τ in (0,1), default 0.7
	Method              Method  `yaml:"method"`               // rolling or anchored, default rolling
	EfficiencyThreshold float64 `yaml:"efficiency_threshold"` // minimum efficiency, default 0.5
	MinRowsPerPeriod    int     `yaml:"min_rows_per_period"`  // default 2
	AnnualizationFactor float64 `yaml:"annualization_factor"` // periods per year, default 252
}

// DefaultConfig returns the production walk-forward configuration.
func DefaultConfig() Config {
	return Config{
		Periods:             5,
		TrainFraction:       0.7,
		Method:              Rolling,
		EfficiencyThreshold: 0.5,
		MinRowsPerPeriod:    2,
		AnnualizationFactor: 252,
	}
}

// WindowResult holds the per-window train/test performance.
type WindowResult struct {
	Index        int     `json:"index"`
	TrainStart   int     `json:"train_start"`
	TrainEnd     int     `json:"train_end"` // exclusive
	TestStart    int     `json:"test_start"`
	TestEnd      int     `json:"test_end"` // exclusive
	TrainSharpe  float64 `json:"train_sharpe"`
	TestSharpe   float64 `json:"test_sharpe"`
	TestSortino  float64 `json:"test_sortino"`
}

// Result aggregates window performance into the gate decision.
type Result struct {
	Windows     []WindowResult `json:"windows"`
	Efficiency  float64        `json:"efficiency"`  // mean test Sharpe / mean train Sharpe
	Consistency float64        `json:"consistency"` // fraction of windows with positive test Sharpe
	Degradation float64        `json:"degradation"` // 1 - efficiency
	Method      Method         `json:"method"`
	Passed      bool           `json:"passed"`
	Reason      string         `json:"reason,omitempty"`
}

// Validate runs the walk-forward analysis of the signal against the return
// series. The strategy return per row is sign(signal) x return. Windows
// whose training span holds fewer than two rows are skipped.
func Validate(returns, signals []float64, cfg Config) (*Result, error) {
	n := len(returns)
	if n == 0 {
		return nil, fmt.Errorf("walkforward: empty return series")
	}
	if len(signals) != n {
		return nil, fmt.Errorf("walkforward: signal length %d != return length %d", len(signals), n)
	}
	if cfg.Periods < 1 {
		return nil, fmt.Errorf("walkforward: period count %d must be >= 1", cfg.Periods)
	}
	if cfg.TrainFraction <= 0 || cfg.TrainFraction >= 1 {
		return nil, fmt.Errorf("walkforward: train fraction %.3f must be in (0,1)", cfg.TrainFraction)
	}
	switch cfg.Method {
	case Rolling, Anchored:
	default:
		return nil, fmt.Errorf("walkforward: unknown method %q", cfg.Method)
	}

	if n < cfg.Periods*cfg.MinRowsPerPeriod {
		return &Result{
			Windows:     []WindowResult{},
			Efficiency:  1,
			Degradation: 0,
			Method:      cfg.Method,
			Passed:      true,
			Reason: fmt.Sprintf("insufficient data: %d rows < %d required (%d periods x %d), walk-forward gate skipped",
				n, cfg.Periods*cfg.MinRowsPerPeriod, cfg.Periods, cfg.MinRowsPerPeriod),
		}, nil
	}

	strat := make([]float64, n)
	for i := 0; i < n; i++ {
		strat[i] = sign(signals[i]) * returns[i]
	}

	windowSize := n / cfg.Periods
	trainSpan := int(cfg.TrainFraction * float64(windowSize) / (1 - cfg.TrainFraction))

	res := &Result{Method: cfg.Method}
	var sumTrain, sumTest float64
	positive := 0
	for w := 0; w < cfg.Periods; w++ {
		testStart := w * windowSize
		testEnd := testStart + windowSize
		if w == cfg.Periods-1 {
			testEnd = n
		}

		trainStart := 0
		if cfg.Method == Rolling {
			trainStart = testStart - trainSpan
			if trainStart < 0 {
				trainStart = 0
			}
		}
		if testStart-trainStart < 2 {
			continue
		}

		wr := WindowResult{
			Index:       w,
			TrainStart:  trainStart,
			TrainEnd:    testStart,
			TestStart:   testStart,
			TestEnd:     testEnd,
			TrainSharpe: stats.AnnualizedSharpe(strat[trainStart:testStart], cfg.AnnualizationFactor),
			TestSharpe:  stats.AnnualizedSharpe(strat[testStart:testEnd], cfg.AnnualizationFactor),
		}
		if dd := stats.DownsideDeviation(strat[testStart:testEnd], 0); dd > 0 {
			wr.TestSortino = stats.Mean(strat[testStart:testEnd]) / dd
		}
		res.Windows = append(res.Windows, wr)

		sumTrain += wr.TrainSharpe
		sumTest += wr.TestSharpe
		if wr.TestSharpe > 0 {
			positive++
		}
	}

	if len(res.Windows) == 0 {
		res.Windows = []WindowResult{}
		res.Efficiency = 1
		res.Passed = true
		res.Reason = "no window had enough training rows, walk-forward gate skipped"
		return res, nil
	}

	meanTrain := sumTrain / float64(len(res.Windows))
	meanTest := sumTest / float64(len(res.Windows))
	switch {
	case meanTrain > 0:
		res.Efficiency = meanTest / meanTrain
	case meanTest <= 0:
		res.Efficiency = 0
	default:
		res.Efficiency = 1
	}
	res.Consistency = float64(positive) / float64(len(res.Windows))
	res.Degradation = 1 - res.Efficiency

	res.Passed = res.Efficiency >= cfg.EfficiencyThreshold
	if !res.Passed {
		res.Reason = fmt.Sprintf("walk-forward efficiency %.3f below threshold %.2f (mean train Sharpe %.3f, mean test Sharpe %.3f)",
			res.Efficiency, cfg.EfficiencyThreshold, meanTrain, meanTest)
	}
	return res, nil
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}
