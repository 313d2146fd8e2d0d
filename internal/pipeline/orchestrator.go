// Package pipeline composes the five admission gates into the validation
// contract: one request in, one immutable report out. The pipeline is a
// pure function of its inputs; identical requests produce identical
// reports up to the timestamp.
package pipeline

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cream-quant/synthcore/internal/dsr"
	"github.com/cream-quant/synthcore/internal/ic"
	"github.com/cream-quant/synthcore/internal/orthogonality"
	"github.com/cream-quant/synthcore/internal/pbo"
	"github.com/cream-quant/synthcore/internal/walkforward"
)

// runIDNamespace scopes the deterministic run-id UUIDs.
var runIDNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8") // RFC 4122 DNS namespace

// Run validates the candidate indicator against all five gates and emits
// the report. The gates share no state and run concurrently; the report's
// field order never depends on completion order. The context is consulted
// only between the validation and aggregation phases — the gates
// themselves are non-blocking computation.
func Run(ctx context.Context, req *ValidationRequest) (*ValidationReport, error) {
	cfgs, err := req.validate()
	if err != nil {
		return nil, err
	}

	nTrials := req.NTrials
	if nTrials == 0 {
		nTrials = 1
	}

	forward := req.forward()

	// Strategy return per period: trade the signal's direction, earn the
	// forward return.
	strat := make([]float64, len(req.Signals))
	for i, s := range req.Signals {
		switch {
		case s > 0:
			strat[i] = forward[i]
		case s < 0:
			strat[i] = -forward[i]
		}
	}

	var (
		wg      sync.WaitGroup
		icRes   *ic.Result
		dsrRes  *dsr.Result
		pboRes  *pbo.Result
		wfRes   *walkforward.Result
		ortRes  *orthogonality.Result
		icErr   error
		dsrErr  error
		pboErr  error
		wfErr   error
		ortErr  error
	)

	wg.Add(5)
	go func() {
		defer wg.Done()
		icRes, icErr = ic.Analyze(req.Signals, forward, cfgs.ic)
	}()
	go func() {
		defer wg.Done()
		dsrRes, dsrErr = dsr.Evaluate(strat, nTrials, cfgs.dsr)
	}()
	go func() {
		defer wg.Done()
		pboRes, pboErr = pbo.EvaluateSignal(req.Signals, forward, cfgs.pbo)
	}()
	go func() {
		defer wg.Done()
		wfRes, wfErr = walkforward.Validate(forward, req.Signals, cfgs.wf)
	}()
	go func() {
		defer wg.Done()
		ortRes, ortErr = orthogonality.Evaluate(req.Signals, req.ExistingIndicators, cfgs.ort)
	}()
	wg.Wait()

	// The request is pre-validated, so gate errors indicate a contract
	// violation the validation missed; surface the first in gate order.
	for _, gateErr := range []error{icErr, dsrErr, pboErr, wfErr, ortErr} {
		if gateErr != nil {
			return nil, gateErr
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &ValidationReport{
		IndicatorID:   req.IndicatorID,
		RunID:         deterministicRunID(req),
		Timestamp:     time.Now().UTC(),
		DSR:           dsrRes,
		PBO:           pboRes,
		IC:            icRes,
		WalkForward:   wfRes,
		Orthogonality: ortRes,
		Trials: TrialInfo{
			Attempted:              nTrials,
			Selected:               1,
			MultipleTestingPenalty: dsr.ExpectedMaxSharpe(nTrials),
		},
	}
	report.aggregate()
	return report, nil
}

// deterministicRunID derives a v5 UUID from the request content so
// identical inputs always produce the same run id. Map keys sort during
// JSON encoding, keeping the digest stable.
func deterministicRunID(req *ValidationRequest) string {
	raw, err := json.Marshal(req)
	if err != nil {
		return uuid.NewSHA1(runIDNamespace, []byte(req.IndicatorID)).String()
	}
	return uuid.NewSHA1(runIDNamespace, raw).String()
}
