// SPDX-License-Identifier: MIT

// Package matrix - structural helpers for causal weight matrices.
//
// Purpose:
//   - Triangular masks (Tril/Triu with diagonal offset k, numpy semantics).
//   - Neutral elements (identity, ones, tril(ones)) used by weight stacks.
//   - 0/1 support masks derived from adjacency or Jacobian estimates.
//   - Permutation matrices built from, and checked against, index lists.
//
// AI-Hints:
//   - Tril(m, -1) is the strictly-lower part; Tril(m, 0) keeps the diagonal.
//   - NonZeroMask(adj, 0) reproduces mask[i,j] = 1 if |adj[i,j]| > 0.

package matrix

import (
	"fmt"
	"math"
	"sort"
)

// NewIdentity returns I_n.
// Complexity: O(n^2) zeroing + O(n) diagonal writes.
func NewIdentity(n int) (*Dense, error) {
	I, err := NewDense(n, n)
	if err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		I.data[i*n+i] = 1.0
	}

	return I, nil
}

// NewOnes returns an r×c matrix filled with 1.
func NewOnes(rows, cols int) (*Dense, error) {
	m, err := NewDense(rows, cols)
	if err != nil {
		return nil, err
	}
	m.Fill(1.0)

	return m, nil
}

// NewTrilOnes returns tril(ones(n,n)), the neutral factor of a triangular
// weight stack under the Hadamard product.
func NewTrilOnes(n int) (*Dense, error) {
	m, err := NewOnes(n, n)
	if err != nil {
		return nil, err
	}

	return Tril(m, 0), nil
}

// Tril returns a copy of m with entries above the k-th diagonal zeroed.
// Keeps (i,j) iff j−i ≤ k.
func Tril(m *Dense, k int) *Dense {
	out := m.Clone()
	for i := 0; i < m.r; i++ {
		for j := 0; j < m.c; j++ {
			if j-i > k {
				out.data[i*m.c+j] = 0
			}
		}
	}

	return out
}

// Triu returns a copy of m with entries below the k-th diagonal zeroed.
// Keeps (i,j) iff j−i ≥ k.
func Triu(m *Dense, k int) *Dense {
	out := m.Clone()
	for i := 0; i < m.r; i++ {
		for j := 0; j < m.c; j++ {
			if j-i < k {
				out.data[i*m.c+j] = 0
			}
		}
	}

	return out
}

// TrilMask returns the 0/1 indicator of Tril(·, k) for an r×c shape.
func TrilMask(rows, cols, k int) (*Dense, error) {
	m, err := NewOnes(rows, cols)
	if err != nil {
		return nil, err
	}

	return Tril(m, k), nil
}

// DiagOf extracts the main diagonal of a square matrix.
func DiagOf(m *Dense) ([]float64, error) {
	if err := ValidateSquare(m); err != nil {
		return nil, matrixErrorf("DiagOf", err)
	}
	out := make([]float64, m.r)
	for i := 0; i < m.r; i++ {
		out[i] = m.data[i*m.c+i]
	}

	return out, nil
}

// NewDiag builds diag(v).
func NewDiag(v []float64) (*Dense, error) {
	m, err := NewDense(len(v), len(v))
	if err != nil {
		return nil, err
	}
	for i, x := range v {
		m.data[i*m.c+i] = x
	}

	return m, nil
}

// NonZeroMask returns mask[i,j] = 1 if |m[i,j]| > eps, else 0.
func NonZeroMask(m *Dense, eps float64) (*Dense, error) {
	if err := ValidateNotNil(m); err != nil {
		return nil, matrixErrorf("NonZeroMask", err)
	}
	out := &Dense{r: m.r, c: m.c, data: make([]float64, len(m.data))}
	for k, v := range m.data {
		if math.Abs(v) > eps {
			out.data[k] = 1
		}
	}

	return out, nil
}

// IsLowerTriangular reports whether every strictly-upper entry is within eps of zero.
func IsLowerTriangular(m *Dense, eps float64) bool {
	for i := 0; i < m.r; i++ {
		for j := i + 1; j < m.c; j++ {
			if math.Abs(m.data[i*m.c+j]) > eps {
				return false
			}
		}
	}

	return true
}

// SamePattern reports whether a and b share the same zero/non-zero support
// (|x| > eps) and the same signs on that support.
func SamePattern(a, b *Dense, eps float64) (bool, error) {
	if err := ValidateSameShape(a, b); err != nil {
		return false, matrixErrorf("SamePattern", err)
	}
	for k := range a.data {
		za, zb := math.Abs(a.data[k]) <= eps, math.Abs(b.data[k]) <= eps
		if za != zb {
			return false, nil
		}
		if !za && math.Signbit(a.data[k]) != math.Signbit(b.data[k]) {
			return false, nil
		}
	}

	return true, nil
}

// PermutationFromIndices builds P with P[i, perm[i]] = 1, so (P·x)[i] = x[perm[i]].
// Errors: ErrBadPermutation when perm is not a permutation of 0..n-1.
func PermutationFromIndices(perm []int) (*Dense, error) {
	n := len(perm)
	seen := make([]bool, n)
	for _, p := range perm {
		if p < 0 || p >= n || seen[p] {
			return nil, fmt.Errorf("PermutationFromIndices: %v: %w", perm, ErrBadPermutation)
		}
		seen[p] = true
	}
	P, err := NewDense(n, n)
	if err != nil {
		return nil, err
	}
	for i, p := range perm {
		P.data[i*n+p] = 1
	}

	return P, nil
}

// ArgSort returns the indices that sort perm ascending (the inverse permutation
// when perm is a permutation).
func ArgSort(perm []int) []int {
	idx := make([]int, len(perm))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return perm[idx[a]] < perm[idx[b]] })

	return idx
}

// PermuteRows returns the matrix whose i-th row is m's perm[i]-th row.
func PermuteRows(m *Dense, perm []int) (*Dense, error) {
	if err := ValidateNotNil(m); err != nil {
		return nil, matrixErrorf("PermuteRows", err)
	}
	if len(perm) != m.r {
		return nil, matrixErrorf("PermuteRows", ErrDimensionMismatch)
	}
	out := &Dense{r: m.r, c: m.c, data: make([]float64, len(m.data))}
	for i, p := range perm {
		if p < 0 || p >= m.r {
			return nil, matrixErrorf("PermuteRows", ErrBadPermutation)
		}
		copy(out.data[i*m.c:(i+1)*m.c], m.data[p*m.c:(p+1)*m.c])
	}

	return out, nil
}

// IsPermutation reports whether m is a 0/1 permutation matrix within eps.
func IsPermutation(m *Dense, eps float64) bool {
	if m == nil || m.r != m.c {
		return false
	}
	n := m.r
	for i := 0; i < n; i++ {
		ones := 0
		for j := 0; j < n; j++ {
			v := m.data[i*n+j]
			switch {
			case math.Abs(v-1) <= eps:
				ones++
			case math.Abs(v) > eps:
				return false
			}
		}
		if ones != 1 {
			return false
		}
	}
	for j := 0; j < n; j++ {
		sum := ZeroSum
		for i := 0; i < n; i++ {
			sum += m.data[i*n+j]
		}
		if math.Abs(sum-1) > eps {
			return false
		}
	}

	return true
}
