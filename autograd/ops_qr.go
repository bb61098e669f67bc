// SPDX-License-Identifier: MIT

package autograd

import (
	"github.com/katalvlaran/causalid/matrix"
)

// Factorization selects how OrthogonalFactor computes A = Q·R.
type Factorization int

const (
	// Householder uses matrix.QR; signs of diag(R) follow the reflectors.
	Householder Factorization = iota
	// Canonical uses matrix.CanonicalQR, so diag(R) ≥ 0.
	Canonical
	// CholeskyGram computes R = chol(AᵀA)ᵀ and Q = A·R⁻¹. It agrees with
	// Canonical for full-rank A and fails with matrix.ErrNotPositiveDefinite
	// otherwise.
	CholeskyGram
)

// String implements fmt.Stringer.
func (f Factorization) String() string {
	switch f {
	case Householder:
		return "householder"
	case Canonical:
		return "canonical"
	case CholeskyGram:
		return "cholesky"
	default:
		return "unknown"
	}
}

// OrthogonalFactor returns the orthogonal factor Q of a square a = Q·R as a
// differentiable node. Only Q is exposed, so R̄ = 0 in the backward pass:
//
//	M  = -Q̄ᵀ·Q
//	Ā  = (Q̄ + Q·copyltu(M))·R⁻ᵀ,  copyltu(M) = tril(M) + tril(M,-1)ᵀ
//
// R⁻¹ falls back to the pseudo-inverse when R is singular.
//
// Complexity: O(n³) forward and backward.
func OrthogonalFactor(a *Var, method Factorization) (*Var, error) {
	const op = "OrthogonalFactor"
	if err := validateVar(op, a); err != nil {
		return nil, err
	}
	if err := matrix.ValidateSquare(a.Value); err != nil {
		return nil, opErrorf(op, err)
	}

	Q, R, err := factorize(a.Value, method)
	if err != nil {
		return nil, opErrorf(op, err)
	}
	n := a.Rows()

	return node(Q, func(g []float64) {
		gQ, _ := matrix.NewFromData(n, n, g)
		gQt, _ := matrix.Transpose(gQ)
		M, _ := matrix.Mul(gQt, Q)
		C, _ := matrix.NewDense(n, n)
		md, cd := M.Data(), C.Data()
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				lo, hi := j, i
				if j > i {
					lo, hi = i, j
				}
				cd[i*n+j] = -md[hi*n+lo]
			}
		}
		QC, _ := matrix.Mul(Q, C)
		Y, _ := matrix.Add(gQ, QC)
		Rinv, _, err := matrix.InverseOrPinv(R)
		if err != nil {
			return
		}
		RinvT, _ := matrix.Transpose(Rinv)
		gA, _ := matrix.Mul(Y, RinvT)
		accumulate(a, gA.Data())
	}, a), nil
}

func factorize(A *matrix.Dense, method Factorization) (Q, R *matrix.Dense, err error) {
	switch method {
	case Householder:
		return matrix.QR(A)
	case Canonical:
		return matrix.CanonicalQR(A)
	case CholeskyGram:
		At, err := matrix.Transpose(A)
		if err != nil {
			return nil, nil, err
		}
		G, err := matrix.Mul(At, A)
		if err != nil {
			return nil, nil, err
		}
		L, err := matrix.Cholesky(G)
		if err != nil {
			return nil, nil, err
		}
		if R, err = matrix.Transpose(L); err != nil {
			return nil, nil, err
		}
		if Q, err = matrix.SolveUpperRight(A, R); err != nil {
			return nil, nil, err
		}

		return Q, R, nil
	default:
		return nil, nil, ErrUnknownFactorization
	}
}
