package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cream-quant/synthcore/internal/dsr"
	"github.com/cream-quant/synthcore/internal/ic"
	"github.com/cream-quant/synthcore/internal/orthogonality"
	"github.com/cream-quant/synthcore/internal/pbo"
	"github.com/cream-quant/synthcore/internal/walkforward"
)

// TotalGates is the number of admission gates every validation runs.
const TotalGates = 5

// TrialInfo records the multiple-testing accounting for a validation.
type TrialInfo struct {
	Attempted              int     `json:"attempted"`
	Selected               int     `json:"selected"` // always 1: the submitted indicator
	MultipleTestingPenalty float64 `json:"multiple_testing_penalty"`
}

// ValidationReport is the pipeline output: the five gate results, the
// trial accounting, and the aggregate decision. Immutable once emitted.
type ValidationReport struct {
	IndicatorID string    `json:"indicator_id"`
	RunID       string    `json:"run_id"`
	Timestamp   time.Time `json:"timestamp"` // ISO-8601 UTC

	DSR           *dsr.Result           `json:"dsr"`
	PBO           *pbo.Result           `json:"pbo"`
	IC            *ic.Result            `json:"ic"`
	WalkForward   *walkforward.Result   `json:"walk_forward"`
	Orthogonality *orthogonality.Result `json:"orthogonality"`

	Trials TrialInfo `json:"trials"`

	OverallPassed   bool     `json:"overall_passed"`
	GatesPassed     int      `json:"gates_passed"`
	TotalGates      int      `json:"total_gates"`
	PassRate        float64  `json:"pass_rate"`
	Summary         string   `json:"summary"`
	Recommendations []string `json:"recommendations"`
}

// aggregate fills the pass counts, summary, and recommendations from the
// five gate results.
func (r *ValidationReport) aggregate() {
	passed := 0
	for _, ok := range []bool{
		r.DSR.Passed, r.PBO.Passed, r.IC.Passed, r.WalkForward.Passed, r.Orthogonality.Passed,
	} {
		if ok {
			passed++
		}
	}
	r.GatesPassed = passed
	r.TotalGates = TotalGates
	r.PassRate = float64(passed) / float64(TotalGates)
	r.OverallPassed = passed == TotalGates

	if r.OverallPassed {
		r.Summary = fmt.Sprintf("%s cleared all %d validation gates (IC mean %.4f, DSR %.3f, PBO %.3f, WF efficiency %.3f)",
			r.IndicatorID, TotalGates, r.IC.Mean, r.DSR.PValue, r.PBO.PBO, r.WalkForward.Efficiency)
	} else {
		r.Summary = fmt.Sprintf("%s failed %d of %d validation gates", r.IndicatorID, TotalGates-passed, TotalGates)
	}

	r.Recommendations = r.deriveRecommendations()
}

// deriveRecommendations maps failure severity to actions.
func (r *ValidationReport) deriveRecommendations() []string {
	recs := []string{}
	if r.DSR.PValue < 0.5 {
		recs = append(recs, "Deflated Sharpe indicates the result is likely chance-driven; redesign the indicator.")
	}
	if r.PBO.PBO > 0.7 {
		recs = append(recs, "High probability of backtest overfitting; simplify the indicator's parameters.")
	}
	if r.IC.Mean < 0 {
		recs = append(recs, "Negative mean IC: the signal is counterproductive; reverse it or rethink the hypothesis.")
	}
	if r.WalkForward.Efficiency < 0.3 {
		recs = append(recs, "Severe in-sample to out-of-sample degradation; the indicator is overfit.")
	}
	if corr := r.Orthogonality.MaxCorrelation; corr > 0.8 || corr < -0.8 {
		recs = append(recs, fmt.Sprintf("Highly correlated with existing indicator %q; remove one or orthogonalise the candidate.",
			r.Orthogonality.CorrelatedWith))
	}
	if r.OverallPassed && len(recs) == 0 {
		recs = append(recs, "All gates passed; proceed with the indicator.")
	} else if !r.OverallPassed && len(recs) == 0 {
		recs = append(recs, "Review the failing gates; thresholds were narrowly missed.")
	}
	return recs
}

// MarshalCanonical encodes the report as JSON with lexicographically
// ordered keys and round-trip floating-point values, the wire format for
// persisted and RPC-crossing reports.
func (r *ValidationReport) MarshalCanonical() ([]byte, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("report: marshal: %w", err)
	}

	// Decode into generic maps with json.Number so numbers keep their
	// shortest round-trip form, then re-encode: encoding/json writes map
	// keys in sorted order.
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic interface{}
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("report: canonicalize: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(generic); err != nil {
		return nil, fmt.Errorf("report: canonical encode: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
