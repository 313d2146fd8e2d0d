package stats

import (
	"errors"
	"fmt"
	"math"
)

// ErrNoPredictors is returned by VIF when the predictor set is empty; the
// factor is undefined in that case.
var ErrNoPredictors = errors.New("vif: no predictors")

// collinearityEps is the R² band treated as perfect collinearity.
const collinearityEps = 1e-12

// VIF computes the variance inflation factor of target regressed on the
// predictor series: 1 / (1 - R²) of a centred ordinary least-squares fit.
// Perfect collinearity (R² ≥ 1-1e-12) reports +Inf. A singular normal
// matrix is handled by skipping the degenerate pivot columns.
func VIF(target []float64, predictors [][]float64) (float64, error) {
	if len(predictors) == 0 {
		return 0, ErrNoPredictors
	}
	n := len(target)
	if n == 0 {
		return 0, fmt.Errorf("vif: empty target")
	}
	for i, p := range predictors {
		if len(p) != n {
			return 0, fmt.Errorf("vif: predictor %d length %d != target length %d", i, len(p), n)
		}
	}

	rsq := rSquared(target, predictors)
	if rsq >= 1-collinearityEps {
		return math.Inf(1), nil
	}
	if rsq < 0 {
		rsq = 0
	}
	return 1 / (1 - rsq), nil
}

// rSquared fits centred OLS of y on xs and returns the coefficient of
// determination. A zero-variance target yields 0.
func rSquared(y []float64, xs [][]float64) float64 {
	n := len(y)
	k := len(xs)

	meanY := Mean(y)
	cy := make([]float64, n)
	sst := 0.0
	for i := range y {
		cy[i] = y[i] - meanY
		sst += cy[i] * cy[i]
	}
	if sst < VarianceFloor {
		return 0
	}

	cx := make([][]float64, k)
	for j, col := range xs {
		m := Mean(col)
		cx[j] = make([]float64, n)
		for i := range col {
			cx[j][i] = col[i] - m
		}
	}

	// Normal equations: (X'X) b = X'y.
	xtx := make([][]float64, k)
	xty := make([]float64, k)
	for a := 0; a < k; a++ {
		xtx[a] = make([]float64, k)
		for b := 0; b < k; b++ {
			dot := 0.0
			for i := 0; i < n; i++ {
				dot += cx[a][i] * cx[b][i]
			}
			xtx[a][b] = dot
		}
		dot := 0.0
		for i := 0; i < n; i++ {
			dot += cx[a][i] * cy[i]
		}
		xty[a] = dot
	}

	beta := solveSymmetric(xtx, xty)

	ssr := 0.0
	for i := 0; i < n; i++ {
		fit := 0.0
		for j := 0; j < k; j++ {
			fit += beta[j] * cx[j][i]
		}
		resid := cy[i] - fit
		ssr += resid * resid
	}

	rsq := 1 - ssr/sst
	if rsq > 1 {
		rsq = 1
	}
	return rsq
}

// solveSymmetric solves A b = v by Gaussian elimination with partial
// pivoting. Near-zero pivots (collinear predictors) get a zero coefficient
// instead of failing the whole regression.
func solveSymmetric(a [][]float64, v []float64) []float64 {
	k := len(v)
	m := make([][]float64, k)
	for i := range m {
		m[i] = make([]float64, k+1)
		copy(m[i], a[i])
		m[i][k] = v[i]
	}

	for col := 0; col < k; col++ {
		pivot := col
		for row := col + 1; row < k; row++ {
			if math.Abs(m[row][col]) > math.Abs(m[pivot][col]) {
				pivot = row
			}
		}
		m[col], m[pivot] = m[pivot], m[col]

		if math.Abs(m[col][col]) < 1e-12 {
			continue
		}
		for row := col + 1; row < k; row++ {
			f := m[row][col] / m[col][col]
			for c := col; c <= k; c++ {
				m[row][c] -= f * m[col][c]
			}
		}
	}

	beta := make([]float64, k)
	for col := k - 1; col >= 0; col-- {
		if math.Abs(m[col][col]) < 1e-12 {
			beta[col] = 0
			continue
		}
		sum := m[col][k]
		for c := col + 1; c < k; c++ {
			sum -= m[col][c] * beta[c]
		}
		beta[col] = sum / m[col][col]
	}
	return beta
}
