// SPDX-License-Identifier: MIT

// Package matrix - numerical fallbacks backed by gonum.
//
// Purpose:
//   - PseudoInverse via SVD for singular or ill-conditioned inputs.
//   - InverseOrPinv: the deterministic LU inverse first, the SVD
//     pseudo-inverse when LU meets a zero pivot or produces non-finite values.
//   - Cholesky of symmetric positive-definite matrices.
//
// Notes:
//   - Conversions copy; gonum never aliases a Dense buffer.

package matrix

import (
	"errors"

	"gonum.org/v1/gonum/mat"
)

const (
	opPinv     = "PseudoInverse"
	opCholesky = "Cholesky"
)

// DefaultPinvRcond is the relative singular-value cut-off used by PseudoInverse.
const DefaultPinvRcond = 1e-12

// ToGonum copies m into a fresh *mat.Dense.
func ToGonum(m *Dense) *mat.Dense {
	buf := make([]float64, len(m.data))
	copy(buf, m.data)

	return mat.NewDense(m.r, m.c, buf)
}

// FromGonum copies any gonum matrix into a fresh *Dense.
func FromGonum(g mat.Matrix) *Dense {
	r, c := g.Dims()
	out := &Dense{r: r, c: c, data: make([]float64, r*c)}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.data[i*c+j] = g.At(i, j)
		}
	}

	return out
}

// PseudoInverse returns the Moore–Penrose inverse A⁺ = V·Σ⁺·Uᵀ.
// Singular values below rcond·σ_max are treated as zero.
// Errors: ErrNilMatrix, ErrSingular when the SVD does not converge.
// Complexity: O(n^3).
func PseudoInverse(m *Dense, rcond float64) (*Dense, error) {
	if err := ValidateNotNil(m); err != nil {
		return nil, matrixErrorf(opPinv, err)
	}
	var svd mat.SVD
	if ok := svd.Factorize(ToGonum(m), mat.SVDThin); !ok {
		return nil, matrixErrorf(opPinv, ErrSingular)
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	values := svd.Values(nil)

	cut := 0.0
	if len(values) > 0 {
		cut = rcond * values[0]
	}
	k := len(values)
	sigmaInv := mat.NewDense(k, k, nil)
	for i, s := range values {
		if s > cut {
			sigmaInv.Set(i, i, 1/s)
		}
	}
	var vs, pinv mat.Dense
	vs.Mul(&v, sigmaInv)
	pinv.Mul(&vs, u.T())

	return FromGonum(&pinv), nil
}

// InverseOrPinv inverts m with the LU kernel and falls back to the SVD
// pseudo-inverse when LU reports ErrSingular or yields non-finite values.
// The boolean result reports whether the fallback was taken.
//
// AI-Hints:
//   - Callers log a warning when usedPinv is true; the result is still usable.
func InverseOrPinv(m *Dense) (inv *Dense, usedPinv bool, err error) {
	inv, err = Inverse(m)
	if err == nil && inv.IsFinite() {
		return inv, false, nil
	}
	if err != nil && !errors.Is(err, ErrSingular) {
		return nil, false, err
	}
	inv, err = PseudoInverse(m, DefaultPinvRcond)
	if err != nil {
		return nil, true, err
	}

	return inv, true, nil
}

// Cholesky returns the lower-triangular L with m = L·Lᵀ.
// m must be square and symmetric positive definite; only the lower triangle is read.
// Errors: ErrNonSquare, ErrNotPositiveDefinite.
func Cholesky(m *Dense) (*Dense, error) {
	if err := ValidateSquare(m); err != nil {
		return nil, matrixErrorf(opCholesky, err)
	}
	n := m.r
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			sym.SetSym(i, j, m.data[i*n+j])
		}
	}
	var ch mat.Cholesky
	if ok := ch.Factorize(sym); !ok {
		return nil, matrixErrorf(opCholesky, ErrNotPositiveDefinite)
	}
	var L mat.TriDense
	ch.LTo(&L)

	return FromGonum(&L), nil
}
