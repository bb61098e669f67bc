// SPDX-License-Identifier: MIT
// Package matrix provides the canonical linear-algebra kernels: element-wise
// addition, subtraction and products, matrix multiplication, transpose,
// scaling, LU/Inverse and Householder QR. All kernels perform fail-fast
// validation and return wrapped sentinels on mismatches.
//
// Notes:
//   - Operands are never mutated; every kernel allocates its result.
//   - Loop orders are fixed so results are reproducible bit-for-bit.

package matrix

import (
	"fmt"
	"math"
)

// NormZero is the additive identity for norm and accumulation operations.
const NormZero = 0.0

// ZeroSum is the initial sum value for forward/backward substitution and similar.
const ZeroSum = 0.0

// ZeroPivot is the sentinel for detecting a zero pivot in LU/Inverse routines.
const ZeroPivot = 0.0

// Operation name constants for unified error wrapping.
const (
	opAdd       = "Add"
	opSub       = "Sub"
	opMul       = "Mul"
	opTranspose = "Transpose"
	opScale     = "Scale"
	opHadamard  = "Hadamard"
	opDivide    = "Divide"
	opMatVec    = "MatVec"
	opInverse   = "Inverse"
	opLU        = "LU"
	opQR        = "QR"
	opSolve     = "SolveUpper"
)

// matrixErrorf wraps err with an operation tag, preserving the original error via %w.
// Use only when err != nil.
func matrixErrorf(tag string, err error) error {
	return fmt.Errorf("%s: %w", tag, err)
}

// zip applies f element-wise to two same-shaped operands into a fresh Dense.
func zip(a, b *Dense, tag string, f func(x, y float64) float64) (*Dense, error) {
	if err := ValidateSameShape(a, b); err != nil {
		return nil, matrixErrorf(tag, err)
	}
	out := &Dense{r: a.r, c: a.c, data: make([]float64, len(a.data))}
	for k := range a.data {
		out.data[k] = f(a.data[k], b.data[k])
	}

	return out, nil
}

// Add returns a + b for identical shapes.
// Complexity: O(r*c).
func Add(a, b *Dense) (*Dense, error) {
	return zip(a, b, opAdd, func(x, y float64) float64 { return x + y })
}

// Sub returns a − b for identical shapes.
// Complexity: O(r*c).
func Sub(a, b *Dense) (*Dense, error) {
	return zip(a, b, opSub, func(x, y float64) float64 { return x - y })
}

// Hadamard returns the element-wise product a ⊙ b.
// Complexity: O(r*c).
func Hadamard(a, b *Dense) (*Dense, error) {
	return zip(a, b, opHadamard, func(x, y float64) float64 { return x * y })
}

// Divide returns the element-wise quotient a ⊘ b. Division by zero follows
// IEEE-754; callers that need finite output must guard the denominator.
func Divide(a, b *Dense) (*Dense, error) {
	return zip(a, b, opDivide, func(x, y float64) float64 { return x / y })
}

// Scale returns alpha*m.
// Complexity: O(r*c).
func Scale(m *Dense, alpha float64) (*Dense, error) {
	if err := ValidateNotNil(m); err != nil {
		return nil, matrixErrorf(opScale, err)
	}
	out := &Dense{r: m.r, c: m.c, data: make([]float64, len(m.data))}
	for k, v := range m.data {
		out.data[k] = alpha * v
	}

	return out, nil
}

// Mul computes the matrix product a·b.
// Implementation:
//   - Stage 1: ValidateMulCompatible(a, b); allocate r×c result.
//   - Stage 2: i→k→j loop so the innermost loop walks both b and out rows
//     contiguously.
//
// Errors:
//   - ErrNilMatrix, ErrDimensionMismatch.
//
// Complexity:
//   - Time O(r*n*c), Space O(r*c).
//
// AI-Hints:
//   - The i→k→j order keeps the inner loop cache-friendly on row-major data.
func Mul(a, b *Dense) (*Dense, error) {
	if err := ValidateMulCompatible(a, b); err != nil {
		return nil, matrixErrorf(opMul, err)
	}
	r, n, c := a.r, a.c, b.c
	out := &Dense{r: r, c: c, data: make([]float64, r*c)}

	var i, k, j int
	var aik float64
	for i = 0; i < r; i++ {
		rowOut := out.data[i*c : (i+1)*c]
		for k = 0; k < n; k++ {
			aik = a.data[i*n+k]
			if aik == 0 {
				continue
			}
			rowB := b.data[k*c : (k+1)*c]
			for j = 0; j < c; j++ {
				rowOut[j] += aik * rowB[j]
			}
		}
	}

	return out, nil
}

// Transpose returns mᵀ.
// Complexity: O(r*c).
func Transpose(m *Dense) (*Dense, error) {
	if err := ValidateNotNil(m); err != nil {
		return nil, matrixErrorf(opTranspose, err)
	}
	out := &Dense{r: m.c, c: m.r, data: make([]float64, len(m.data))}
	for i := 0; i < m.r; i++ {
		for j := 0; j < m.c; j++ {
			out.data[j*m.r+i] = m.data[i*m.c+j]
		}
	}

	return out, nil
}

// MatVec computes y = m·x.
// Complexity: O(r*c).
func MatVec(m *Dense, x []float64) ([]float64, error) {
	if err := ValidateNotNil(m); err != nil {
		return nil, matrixErrorf(opMatVec, err)
	}
	if err := ValidateVecLen(x, m.c); err != nil {
		return nil, matrixErrorf(opMatVec, err)
	}
	y := make([]float64, m.r)
	for i := 0; i < m.r; i++ {
		sum := ZeroSum
		base := i * m.c
		for j := 0; j < m.c; j++ {
			sum += m.data[base+j] * x[j]
		}
		y[i] = sum
	}

	return y, nil
}

// LU computes the Doolittle factorization A = L*U with unit diagonal on L (no pivoting).
// Implementation:
//   - Stage 1: Validate m (not nil, square); allocate L,U; set diag(L)=1.
//   - Stage 2: For i=0..n-1, build row i of U and column i of L in fixed order.
//
// Errors:
//   - ErrNilMatrix, ErrNonSquare, ErrSingular (if U[i,i]==0 during factorization).
//
// Complexity:
//   - Time O(n^3), Space O(n^2).
//
// Notes:
//   - Numerical stability requires pivoting upstream; this kernel is deterministic by design.
//     InverseOrPinv offers the SVD fallback for ill-conditioned inputs.
func LU(m *Dense) (*Dense, *Dense, error) {
	if err := ValidateSquare(m); err != nil {
		return nil, nil, matrixErrorf(opLU, err)
	}
	n := m.r
	L := &Dense{r: n, c: n, data: make([]float64, n*n)}
	U := &Dense{r: n, c: n, data: make([]float64, n*n)}
	for i := 0; i < n; i++ {
		L.data[i*n+i] = 1.0
	}

	var i, j, k int
	var sum, pivot float64
	for i = 0; i < n; i++ {
		// Row i of U.
		for j = i; j < n; j++ {
			sum = ZeroSum
			for k = 0; k < i; k++ {
				sum += L.data[i*n+k] * U.data[k*n+j]
			}
			U.data[i*n+j] = m.data[i*n+j] - sum
		}
		pivot = U.data[i*n+i]
		if pivot == ZeroPivot {
			return nil, nil, matrixErrorf(opLU, ErrSingular)
		}
		// Column i of L.
		for j = i + 1; j < n; j++ {
			sum = ZeroSum
			for k = 0; k < i; k++ {
				sum += L.data[j*n+k] * U.data[k*n+i]
			}
			L.data[j*n+i] = (m.data[j*n+i] - sum) / pivot
		}
	}

	return L, U, nil
}

// Inverse returns A^{-1} via Doolittle LU and n triangular solves (no pivoting).
// Implementation:
//   - Stage 1: LU(m).
//   - Stage 2: For each column e_col solve L*y = e_col, then U*x = y.
//
// Errors:
//   - ErrNilMatrix, ErrNonSquare, ErrSingular.
//
// Complexity:
//   - Time O(n^3), Space O(n^2).
//
// AI-Hints:
//   - Use InverseOrPinv when the input may be singular (ground-truth Jacobians).
func Inverse(m *Dense) (*Dense, error) {
	L, U, err := LU(m)
	if err != nil {
		return nil, matrixErrorf(opInverse, err)
	}
	n := m.r
	inv := &Dense{r: n, c: n, data: make([]float64, n*n)}

	var (
		col, i, k  int
		sum, pivot float64
		y          = make([]float64, n) // forward substitution workspace
		x          = make([]float64, n) // backward substitution workspace
	)
	for col = 0; col < n; col++ {
		// Forward substitution: L*y = e_col
		for i = 0; i < n; i++ {
			sum = ZeroSum
			for k = 0; k < i; k++ {
				sum += L.data[i*n+k] * y[k]
			}
			if i == col {
				y[i] = 1.0 - sum
			} else {
				y[i] = -sum
			}
		}
		// Backward substitution: U*x = y
		for i = n - 1; i >= 0; i-- {
			sum = ZeroSum
			for k = i + 1; k < n; k++ {
				sum += U.data[i*n+k] * x[k]
			}
			pivot = U.data[i*n+i]
			if pivot == ZeroPivot {
				return nil, matrixErrorf(opInverse, ErrSingular)
			}
			x[i] = (y[i] - sum) / pivot
		}
		for i = 0; i < n; i++ {
			inv.data[i*n+col] = x[i]
		}
	}

	return inv, nil
}

// SolveUpperRight solves X·R = B for X, where R is square upper-triangular.
// Used to apply R^{-1} from the right without forming the inverse.
// Errors: ErrNilMatrix, ErrNonSquare, ErrDimensionMismatch, ErrSingular.
// Complexity: O(r*n^2).
func SolveUpperRight(B, R *Dense) (*Dense, error) {
	if err := ValidateSquare(R); err != nil {
		return nil, matrixErrorf(opSolve, err)
	}
	if err := ValidateNotNil(B); err != nil {
		return nil, matrixErrorf(opSolve, err)
	}
	if B.c != R.r {
		return nil, matrixErrorf(opSolve, ErrDimensionMismatch)
	}
	n := R.r
	X := &Dense{r: B.r, c: n, data: make([]float64, B.r*n)}
	for row := 0; row < B.r; row++ {
		// X[row,:]·R = B[row,:]  ⇒ column-by-column forward substitution.
		for j := 0; j < n; j++ {
			sum := ZeroSum
			for k := 0; k < j; k++ {
				sum += X.data[row*n+k] * R.data[k*n+j]
			}
			pivot := R.data[j*n+j]
			if pivot == ZeroPivot {
				return nil, matrixErrorf(opSolve, ErrSingular)
			}
			X.data[row*n+j] = (B.data[row*B.c+j] - sum) / pivot
		}
	}

	return X, nil
}

// QR computes a Householder factorization A = Q·R of a square matrix.
// Implementation:
//   - Stage 1: Validate m (not nil, square); clone A; init H to identity.
//   - Stage 2: For k=0..n-1, build a column reflector and apply it to A (forming R)
//     and to H (accumulating Hₙ…H₁).
//   - Stage 3: Q = Hᵀ, so that A = Q·R.
//
// Behavior highlights:
//   - Deterministic column order; no sign canonicalization inside (diag(R) may be negative).
//
// Errors:
//   - ErrNilMatrix, ErrNonSquare.
//
// Complexity:
//   - Time O(n^3), Space O(n^2).
//
// Notes:
//   - For diag(R) ≥ 0 use CanonicalQR, which flips signs via S=diag(sign(R[ii,ii])).
func QR(m *Dense) (*Dense, *Dense, error) {
	if err := ValidateSquare(m); err != nil {
		return nil, nil, matrixErrorf(opQR, err)
	}
	n := m.r
	A := m.Clone()
	H := &Dense{r: n, c: n, data: make([]float64, n*n)}
	for i := 0; i < n; i++ {
		H.data[i*n+i] = 1.0
	}

	v := make([]float64, n)
	var (
		i, j, k    int
		norm, beta float64
		alpha, tau float64
		sum, aij   float64
	)
	for k = 0; k < n; k++ {
		// ‖A[k:n, k]‖
		norm = NormZero
		for i = k; i < n; i++ {
			aij = A.data[i*n+k]
			norm += aij * aij
		}
		norm = math.Sqrt(norm)
		if norm == NormZero {
			continue // zero column
		}
		alpha = -math.Copysign(norm, A.data[k*n+k])

		for i = 0; i < n; i++ {
			v[i] = 0.0
		}
		for i = k; i < n; i++ {
			v[i] = A.data[i*n+k]
		}
		v[k] -= alpha

		beta = NormZero
		for i = k; i < n; i++ {
			beta += v[i] * v[i]
		}
		if beta == NormZero {
			continue
		}
		tau = 2.0 / beta

		// Reflect A (towards R).
		for j = k; j < n; j++ {
			sum = ZeroSum
			for i = k; i < n; i++ {
				sum += v[i] * A.data[i*n+j]
			}
			for i = k; i < n; i++ {
				A.data[i*n+j] -= tau * v[i] * sum
			}
		}
		// Accumulate H.
		for j = 0; j < n; j++ {
			sum = ZeroSum
			for i = k; i < n; i++ {
				sum += v[i] * H.data[i*n+j]
			}
			for i = k; i < n; i++ {
				H.data[i*n+j] -= tau * v[i] * sum
			}
		}
	}
	// Clean the sub-diagonal round-off so R is exactly upper-triangular.
	for i = 1; i < n; i++ {
		for j = 0; j < i; j++ {
			A.data[i*n+j] = 0
		}
	}
	Q, err := Transpose(H)
	if err != nil {
		return nil, nil, matrixErrorf(opQR, err)
	}

	return Q, A, nil
}

// CanonicalQR is QR with the sign convention diag(R) ≥ 0.
// With S = diag(sign(R[ii,ii])) it returns (Q·S, S·R); the product is unchanged.
func CanonicalQR(m *Dense) (*Dense, *Dense, error) {
	Q, R, err := QR(m)
	if err != nil {
		return nil, nil, err
	}
	n := R.r
	for i := 0; i < n; i++ {
		if R.data[i*n+i] >= 0 {
			continue
		}
		for j := 0; j < n; j++ {
			R.data[i*n+j] = -R.data[i*n+j]
			Q.data[j*n+i] = -Q.data[j*n+i]
		}
	}

	return Q, R, nil
}
