package pipeline

import (
	"math"

	"github.com/cream-quant/synthcore/internal/dsr"
	"github.com/cream-quant/synthcore/internal/ic"
	"github.com/cream-quant/synthcore/internal/orthogonality"
	"github.com/cream-quant/synthcore/internal/pbo"
	"github.com/cream-quant/synthcore/internal/walkforward"
)

// ValidationRequest carries a candidate indicator into the pipeline. All
// series are read-only inputs; the pipeline retains nothing after the
// report is emitted.
type ValidationRequest struct {
	IndicatorID        string               `json:"indicator_id"`
	Signals            []float64            `json:"signals"`
	Returns            []float64            `json:"returns"`
	ForwardReturns     []float64            `json:"forward_returns,omitempty"` // derived from Returns when absent
	NTrials            int                  `json:"n_trials"`                  // candidates considered before this one, default 1
	ExistingIndicators map[string][]float64 `json:"existing_indicators,omitempty"`
	Thresholds         *Thresholds          `json:"thresholds,omitempty"`
	Seed               uint64               `json:"seed,omitempty"` // PBO permutation seed, default 42
}

// Thresholds are optional per-request overrides of the gate defaults. Nil
// fields keep the default.
type Thresholds struct {
	DSRPValue      *float64 `json:"dsr_p_value,omitempty"`     // [0,1], default 0.95
	PBO            *float64 `json:"pbo,omitempty"`             // [0,1], default 0.5
	ICMean         *float64 `json:"ic_mean,omitempty"`         // default 0.02
	ICStd          *float64 `json:"ic_std,omitempty"`          // >= 0, default 0.03
	WFEfficiency   *float64 `json:"wf_efficiency,omitempty"`   // default 0.5
	MaxCorrelation *float64 `json:"max_correlation,omitempty"` // [0,1], default 0.7
	MaxVIF         *float64 `json:"max_vif,omitempty"`         // > 0, default 5.0
}

// gateConfigs holds the resolved per-gate configurations after threshold
// overrides are applied.
type gateConfigs struct {
	ic  ic.Config
	dsr dsr.Config
	pbo pbo.Config
	wf  walkforward.Config
	ort orthogonality.Config
}

// validate checks the request against the input contract and returns the
// resolved gate configurations. Every violation surfaces as an
// InvalidInputError.
func (req *ValidationRequest) validate() (*gateConfigs, error) {
	if req.IndicatorID == "" {
		return nil, invalidInput("indicatorId", "must be non-empty")
	}

	n := len(req.Signals)
	if n < 2 {
		return nil, invalidInput("signals", "need at least 2 observations, got %d", n)
	}
	if err := checkFinite("signals", req.Signals); err != nil {
		return nil, err
	}
	if len(req.Returns) != n {
		return nil, invalidInput("returns", "length %d != signals length %d", len(req.Returns), n)
	}
	if err := checkFinite("returns", req.Returns); err != nil {
		return nil, err
	}
	if req.ForwardReturns != nil {
		if len(req.ForwardReturns) != n {
			return nil, invalidInput("forwardReturns", "length %d != signals length %d", len(req.ForwardReturns), n)
		}
		if err := checkFinite("forwardReturns", req.ForwardReturns); err != nil {
			return nil, err
		}
	}
	if req.NTrials < 0 {
		return nil, invalidInput("nTrials", "must be >= 1, got %d", req.NTrials)
	}
	for name, series := range req.ExistingIndicators {
		if len(series) != n {
			return nil, invalidInput("existingIndicators", "series %q length %d != signals length %d", name, len(series), n)
		}
		if err := checkFinite("existingIndicators."+name, series); err != nil {
			return nil, err
		}
	}

	cfgs := &gateConfigs{
		ic:  ic.DefaultConfig(),
		dsr: dsr.DefaultConfig(),
		pbo: pbo.DefaultConfig(),
		wf:  walkforward.DefaultConfig(),
		ort: orthogonality.DefaultConfig(),
	}
	if req.Seed != 0 {
		cfgs.pbo.Seed = req.Seed
	}

	t := req.Thresholds
	if t == nil {
		return cfgs, nil
	}
	if t.DSRPValue != nil {
		if *t.DSRPValue < 0 || *t.DSRPValue > 1 {
			return nil, invalidInput("thresholds.dsrPValue", "%.4f outside [0,1]", *t.DSRPValue)
		}
		cfgs.dsr.PValueThreshold = *t.DSRPValue
	}
	if t.PBO != nil {
		if *t.PBO < 0 || *t.PBO > 1 {
			return nil, invalidInput("thresholds.pbo", "%.4f outside [0,1]", *t.PBO)
		}
		cfgs.pbo.Threshold = *t.PBO
	}
	if t.ICMean != nil {
		cfgs.ic.MeanThreshold = *t.ICMean
	}
	if t.ICStd != nil {
		if *t.ICStd < 0 {
			return nil, invalidInput("thresholds.icStd", "%.4f must be >= 0", *t.ICStd)
		}
		cfgs.ic.StdThreshold = *t.ICStd
	}
	if t.WFEfficiency != nil {
		cfgs.wf.EfficiencyThreshold = *t.WFEfficiency
	}
	if t.MaxCorrelation != nil {
		if *t.MaxCorrelation < 0 || *t.MaxCorrelation > 1 {
			return nil, invalidInput("thresholds.maxCorrelation", "%.4f outside [0,1]", *t.MaxCorrelation)
		}
		cfgs.ort.MaxCorrelation = *t.MaxCorrelation
	}
	if t.MaxVIF != nil {
		if *t.MaxVIF <= 0 {
			return nil, invalidInput("thresholds.maxVIF", "%.4f must be > 0", *t.MaxVIF)
		}
		cfgs.ort.MaxVIF = *t.MaxVIF
	}
	return cfgs, nil
}

// forward returns the forward-return series: the caller's when supplied,
// otherwise the return series shifted left by one with a trailing zero.
func (req *ValidationRequest) forward() []float64 {
	if req.ForwardReturns != nil {
		return req.ForwardReturns
	}
	n := len(req.Returns)
	f := make([]float64, n)
	copy(f, req.Returns[1:])
	return f
}

func checkFinite(field string, xs []float64) error {
	for i, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return invalidInput(field, "non-finite value at index %d", i)
		}
	}
	return nil
}
