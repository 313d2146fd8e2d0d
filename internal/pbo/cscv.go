// Package pbo estimates the probability of backtest overfitting via
// combinatorially symmetric cross-validation: the time axis is cut into
// contiguous chunks, every balanced in-sample/out-of-sample split is
// enumerated, and the in-sample winner's out-of-sample rank is aggregated
// through the logit transform.
package pbo

import (
	"fmt"
	"math"

	"github.com/cream-quant/synthcore/internal/stats"
)

// Scheme identifies how dummy candidates are synthesised when the caller
// supplies a single strategy. Recorded in every result so reports stay
// reproducible.
const Scheme = "seeded-permutation/xorshift64"

// Config holds the CSCV settings.
type Config struct {
	Splits              int     `yaml:"splits"`                 // contiguous chunks, must be even, default 8
	Threshold           float64 `yaml:"threshold"`              // maximum PBO, default 0.5
	MinRowsPerSplit     int     `yaml:"min_rows_per_split"`     // default 2
	DummyCandidates     int     `yaml:"dummy_candidates"`       // permutations added to a single strategy, default 9
	Seed                uint64  `yaml:"seed"`                   // permutation seed, default 42
	AnnualizationFactor float64 `yaml:"annualization_factor"`   // periods per year, default 252
}

// DefaultConfig returns the production CSCV configuration.
func DefaultConfig() Config {
	return Config{
		Splits:              8,
		Threshold:           0.5,
		MinRowsPerSplit:     2,
		DummyCandidates:     9,
		Seed:                42,
		AnnualizationFactor: 252,
	}
}

// Result contains the overfitting probability and the gate decision.
type Result struct {
	PBO           float64 `json:"pbo"`
	NCombinations int     `json:"n_combinations"`
	NStrategies   int     `json:"n_strategies"`
	NSplits       int     `json:"n_splits"`
	MeanLogit     float64 `json:"mean_logit"`
	Scheme        string  `json:"scheme"`
	Passed        bool    `json:"passed"`
	Reason        string  `json:"reason,omitempty"`
}

// EvaluateMatrix runs CSCV over a pre-built candidate matrix: rows are
// periods, columns are strategies. Rows beyond an even multiple of the
// split count are dropped (at most splits-1 of them).
func EvaluateMatrix(matrix [][]float64, cfg Config) (*Result, error) {
	n := len(matrix)
	if n == 0 {
		return nil, fmt.Errorf("pbo: empty return matrix")
	}
	k := len(matrix[0])
	if k == 0 {
		return nil, fmt.Errorf("pbo: matrix has no strategies")
	}
	for i, row := range matrix {
		if len(row) != k {
			return nil, fmt.Errorf("pbo: row %d has %d columns, want %d", i, len(row), k)
		}
	}
	if cfg.Splits < 2 || cfg.Splits%2 != 0 {
		return nil, fmt.Errorf("pbo: split count %d must be even and >= 2", cfg.Splits)
	}

	if n < cfg.Splits*cfg.MinRowsPerSplit {
		return &Result{
			PBO:         0,
			NStrategies: k,
			NSplits:     cfg.Splits,
			Scheme:      Scheme,
			Passed:      true,
			Reason: fmt.Sprintf("insufficient data: %d rows < %d required (%d splits x %d), PBO gate skipped",
				n, cfg.Splits*cfg.MinRowsPerSplit, cfg.Splits, cfg.MinRowsPerSplit),
		}, nil
	}

	// Trailing rows past an even chunk multiple are dropped.
	chunkSize := n / cfg.Splits
	chunks := make([][]int, cfg.Splits)
	for c := 0; c < cfg.Splits; c++ {
		rows := make([]int, chunkSize)
		for i := range rows {
			rows[i] = c*chunkSize + i
		}
		chunks[c] = rows
	}

	combos := combinations(cfg.Splits, cfg.Splits/2)

	belowMedian := 0
	sumLogit := 0.0
	for _, isChunks := range combos {
		isRows, oosRows := splitRows(chunks, isChunks)

		isSharpe := columnSharpes(matrix, isRows, k, cfg.AnnualizationFactor)
		best := argmax(isSharpe)

		oosSharpe := columnSharpes(matrix, oosRows, k, cfg.AnnualizationFactor)
		ranks, err := stats.Ranks(oosSharpe)
		if err != nil {
			return nil, fmt.Errorf("pbo: ranking OOS sharpes: %w", err)
		}

		omega := ranks[best] / float64(k+1)
		lambda := math.Log(omega / (1 - omega))
		sumLogit += lambda
		if lambda <= 0 {
			belowMedian++
		}
	}

	res := &Result{
		PBO:           float64(belowMedian) / float64(len(combos)),
		NCombinations: len(combos),
		NStrategies:   k,
		NSplits:       cfg.Splits,
		MeanLogit:     sumLogit / float64(len(combos)),
		Scheme:        Scheme,
	}
	res.Passed = res.PBO < cfg.Threshold
	if !res.Passed {
		res.Reason = fmt.Sprintf("PBO %.3f at or above threshold %.2f: in-sample winner underperforms OOS median in %d of %d splits",
			res.PBO, cfg.Threshold, belowMedian, len(combos))
	}
	return res, nil
}

// EvaluateSignal runs CSCV for a single candidate. The strategy return is
// sign(signal) x return per period; dummy competitors are built from
// seeded permutations of the signal so the candidate is ranked against
// skill-free rearrangements of itself.
func EvaluateSignal(signals, returns []float64, cfg Config) (*Result, error) {
	n := len(signals)
	if n == 0 {
		return nil, fmt.Errorf("pbo: empty signal series")
	}
	if len(returns) != n {
		return nil, fmt.Errorf("pbo: returns length %d != signal length %d", len(returns), n)
	}

	k := cfg.DummyCandidates + 1
	matrix := make([][]float64, n)
	for i := range matrix {
		matrix[i] = make([]float64, k)
		matrix[i][0] = sign(signals[i]) * returns[i]
	}

	rng := xorshift64{state: cfg.Seed}
	perm := make([]float64, n)
	copy(perm, signals)
	for d := 1; d < k; d++ {
		rng.shuffle(perm)
		for i := 0; i < n; i++ {
			matrix[i][d] = sign(perm[i]) * returns[i]
		}
	}

	return EvaluateMatrix(matrix, cfg)
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

// columnSharpes computes the annualised Sharpe of each strategy column over
// the given rows.
func columnSharpes(matrix [][]float64, rows []int, k int, annualization float64) []float64 {
	out := make([]float64, k)
	col := make([]float64, len(rows))
	for j := 0; j < k; j++ {
		for i, r := range rows {
			col[i] = matrix[r][j]
		}
		out[j] = stats.AnnualizedSharpe(col, annualization)
	}
	return out
}

// splitRows partitions chunk row indices into IS and OOS row sets for one
// combination. isChunks is sorted ascending.
func splitRows(chunks [][]int, isChunks []int) (isRows, oosRows []int) {
	inIS := make(map[int]bool, len(isChunks))
	for _, c := range isChunks {
		inIS[c] = true
	}
	for c, rows := range chunks {
		if inIS[c] {
			isRows = append(isRows, rows...)
		} else {
			oosRows = append(oosRows, rows...)
		}
	}
	return isRows, oosRows
}

// combinations enumerates all size-r subsets of {0..n-1} in lexicographic
// order.
func combinations(n, r int) [][]int {
	var out [][]int
	combo := make([]int, r)
	var walk func(start, depth int)
	walk = func(start, depth int) {
		if depth == r {
			c := make([]int, r)
			copy(c, combo)
			out = append(out, c)
			return
		}
		for i := start; i <= n-(r-depth); i++ {
			combo[depth] = i
			walk(i+1, depth+1)
		}
	}
	walk(0, 0)
	return out
}

func argmax(xs []float64) int {
	best := 0
	for i, x := range xs {
		if x > xs[best] {
			best = i
		}
	}
	return best
}

// xorshift64 is a tiny deterministic generator for dummy-candidate
// permutations. A request-scoped seed keeps reports reproducible without
// touching a global RNG.
type xorshift64 struct {
	state uint64
}

func (x *xorshift64) next() uint64 {
	if x.state == 0 {
		x.state = 0x9e3779b97f4a7c15
	}
	x.state ^= x.state << 13
	x.state ^= x.state >> 7
	x.state ^= x.state << 17
	return x.state
}

// shuffle applies a Fisher-Yates pass in place.
func (x *xorshift64) shuffle(xs []float64) {
	for i := len(xs) - 1; i > 0; i-- {
		j := int(x.next() % uint64(i+1))
		xs[i], xs[j] = xs[j], xs[i]
	}
}
