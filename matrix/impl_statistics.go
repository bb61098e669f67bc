// SPDX-License-Identifier: MIT

// Package matrix - statistics and reductions.
//
// Purpose:
//   - Row-oriented statistics: variables live in rows, samples in columns
//     (d×n), matching the layout used for latent batches.
//   - Cheap reductions (sum, mean |x|, Frobenius norm) on top of gonum/floats.
//   - AllClose for numeric comparisons in tests and invariance checks.

package matrix

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	opCenterRows     = "CenterRows"
	opRowCorrelation = "RowCorrelation"
	opAllClose       = "AllClose"
)

// Sum returns Σ m[i,j].
func Sum(m *Dense) float64 { return floats.Sum(m.data) }

// MeanAbs returns mean |m[i,j]|.
func MeanAbs(m *Dense) float64 {
	return floats.Norm(m.data, 1) / float64(len(m.data))
}

// FrobeniusNorm returns ‖m‖_F.
func FrobeniusNorm(m *Dense) float64 { return floats.Norm(m.data, 2) }

// MaxAbs returns max |m[i,j]|.
func MaxAbs(m *Dense) float64 { return floats.Norm(m.data, math.Inf(1)) }

// CenterRows returns Xc[i,*] = X[i,*] − mean(X[i,*]) and the row means.
// Complexity: O(r*c).
func CenterRows(X *Dense) (*Dense, []float64, error) {
	if err := ValidateNotNil(X); err != nil {
		return nil, nil, matrixErrorf(opCenterRows, err)
	}
	out := X.Clone()
	means := make([]float64, X.r)
	for i := 0; i < X.r; i++ {
		row := out.data[i*X.c : (i+1)*X.c]
		means[i] = floats.Sum(row) / float64(X.c)
		floats.AddConst(-means[i], row)
	}

	return out, means, nil
}

// RowCorrelation computes Pearson correlations between the rows of X (p×n)
// and the rows of Y (q×n): C[i,j] = corr(X[i,*], Y[j,*]).
// Implementation:
//   - Stage 1: center both operands row-wise.
//   - Stage 2: scale every row to unit L2 norm (degenerate rows stay zero).
//   - Stage 3: C = Xn·Ynᵀ.
//
// Errors:
//   - ErrNilMatrix; ErrDimensionMismatch when sample counts differ or n < 2.
//
// Complexity:
//   - Time O((p+q)*n + p*q*n), Space O((p+q)*n).
//
// AI-Hints:
//   - Scale-invariant: RowCorrelation(αX, Y) == RowCorrelation(X, Y) for α>0.
func RowCorrelation(X, Y *Dense) (*Dense, error) {
	if X == nil || Y == nil {
		return nil, matrixErrorf(opRowCorrelation, ErrNilMatrix)
	}
	if X.c != Y.c || X.c < 2 {
		return nil, matrixErrorf(opRowCorrelation, ErrDimensionMismatch)
	}
	xn, err := unitRows(X)
	if err != nil {
		return nil, matrixErrorf(opRowCorrelation, err)
	}
	yn, err := unitRows(Y)
	if err != nil {
		return nil, matrixErrorf(opRowCorrelation, err)
	}
	yt, err := Transpose(yn)
	if err != nil {
		return nil, matrixErrorf(opRowCorrelation, err)
	}

	return Mul(xn, yt)
}

// unitRows centers and L2-normalizes each row.
func unitRows(X *Dense) (*Dense, error) {
	xc, _, err := CenterRows(X)
	if err != nil {
		return nil, err
	}
	for i := 0; i < xc.r; i++ {
		row := xc.data[i*xc.c : (i+1)*xc.c]
		norm := floats.Norm(row, 2)
		if norm > 0 {
			floats.Scale(1/norm, row)
		}
	}

	return xc, nil
}

// AllClose checks element-wise |a-b| ≤ atol + rtol*|b| for identical shapes.
// Returns (true,nil) if all elements satisfy the relation; (false,nil) otherwise.
// NaN != anything.
//
// AI-Hints:
//   - AllClose with small atol/rtol is ideal for invariance tests in unit tests.
func AllClose(a, b *Dense, rtol, atol float64) (bool, error) {
	if err := ValidateSameShape(a, b); err != nil {
		return false, matrixErrorf(opAllClose, err)
	}
	rtol, atol = math.Abs(rtol), math.Abs(atol)
	for k := range a.data {
		x, y := a.data[k], b.data[k]
		if math.IsNaN(x) || math.IsNaN(y) {
			return false, nil
		}
		if math.Abs(x-y) > atol+rtol*math.Abs(y) {
			return false, nil
		}
	}

	return true, nil
}
