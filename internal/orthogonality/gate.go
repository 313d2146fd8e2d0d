// Package orthogonality filters candidates that duplicate the existing
// indicator registry, combining a pairwise-correlation cap with a variance
// inflation factor cap over the full registry.
package orthogonality

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/cream-quant/synthcore/internal/stats"
)

// Config holds the orthogonality gate settings.
type Config struct {
	MaxCorrelation float64 `yaml:"max_correlation"` // maximum |pairwise correlation|, default 0.7
	MaxVIF         float64 `yaml:"max_vif"`         // maximum variance inflation factor, default 5.0
}

// DefaultConfig returns the production orthogonality configuration.
func DefaultConfig() Config {
	return Config{
		MaxCorrelation: 0.7,
		MaxVIF:         5.0,
	}
}

// Result contains the overlap measurements and the gate decision. VIF is
// nil when the registry is empty; an infinite VIF (perfect collinearity)
// serialises as the JSON string "inf".
type Result struct {
	MaxCorrelation      float64  `json:"max_correlation"`
	CorrelatedWith      string   `json:"correlated_with,omitempty"`
	VIF                 *float64 `json:"vif,omitempty"`
	NExistingIndicators int      `json:"n_existing_indicators"`
	Passed              bool     `json:"passed"`
	Reason              string   `json:"reason,omitempty"`
}

// MarshalJSON keeps an infinite VIF encodable: encoding/json rejects
// non-finite floats.
func (r Result) MarshalJSON() ([]byte, error) {
	type alias Result
	out := struct {
		alias
		VIF interface{} `json:"vif,omitempty"`
	}{alias: alias(r)}
	if r.VIF != nil {
		if math.IsInf(*r.VIF, 1) {
			out.VIF = "inf"
		} else {
			out.VIF = *r.VIF
		}
	}
	out.alias.VIF = nil
	return json.Marshal(out)
}

// Evaluate measures the candidate signal against every registered
// indicator series. Iteration follows the sorted indicator names so the
// most-correlated tie-break is deterministic (first alphabetically wins).
func Evaluate(signal []float64, existing map[string][]float64, cfg Config) (*Result, error) {
	n := len(signal)
	if n == 0 {
		return nil, fmt.Errorf("orthogonality: empty signal series")
	}

	if len(existing) == 0 {
		return &Result{Passed: true}, nil
	}

	names := make([]string, 0, len(existing))
	for name := range existing {
		names = append(names, name)
	}
	sort.Strings(names)

	res := &Result{NExistingIndicators: len(existing)}
	predictors := make([][]float64, 0, len(names))
	for _, name := range names {
		series := existing[name]
		if len(series) != n {
			return nil, fmt.Errorf("orthogonality: indicator %q length %d != signal length %d", name, len(series), n)
		}
		predictors = append(predictors, series)

		r, err := stats.Pearson(signal, series)
		if err != nil {
			return nil, fmt.Errorf("orthogonality: correlating against %q: %w", name, err)
		}
		if math.Abs(r) > math.Abs(res.MaxCorrelation) {
			res.MaxCorrelation = r
			res.CorrelatedWith = name
		}
	}

	vif, err := stats.VIF(signal, predictors)
	if err != nil {
		return nil, fmt.Errorf("orthogonality: %w", err)
	}
	res.VIF = &vif

	corrOK := math.Abs(res.MaxCorrelation) <= cfg.MaxCorrelation
	vifOK := vif <= cfg.MaxVIF
	res.Passed = corrOK && vifOK

	switch {
	case !corrOK:
		res.Reason = fmt.Sprintf("correlation %.3f with %q exceeds limit %.2f",
			res.MaxCorrelation, res.CorrelatedWith, cfg.MaxCorrelation)
	case !vifOK && math.IsInf(vif, 1):
		res.Reason = fmt.Sprintf("VIF is infinite: candidate is collinear with the existing set (limit %.1f)", cfg.MaxVIF)
	case !vifOK:
		res.Reason = fmt.Sprintf("VIF %.2f exceeds limit %.1f", vif, cfg.MaxVIF)
	}
	return res, nil
}
