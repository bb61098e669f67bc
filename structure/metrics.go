// SPDX-License-Identifier: MIT

package structure

import (
	"fmt"

	"github.com/katalvlaran/causalid/autograd"
	"github.com/katalvlaran/causalid/matrix"
)

// normFloor keeps FrobeniusDiagonality finite on an all-zero matrix.
const normFloor = 1e-12

// FrobeniusDiagonality returns (‖M‖_F − ‖diag M‖₂) / ‖M‖_F, which is 0 for a
// diagonal matrix and approaches 1 as the mass moves off the diagonal.
func FrobeniusDiagonality(m *autograd.Var) (*autograd.Var, error) {
	if m == nil {
		return nil, fmt.Errorf("structure.FrobeniusDiagonality: %w", autograd.ErrNilVar)
	}
	if m.Rows() != m.Cols() {
		return nil, fmt.Errorf("structure.FrobeniusDiagonality: %dx%d: %w", m.Rows(), m.Cols(), ErrNonSquare)
	}
	diag, err := autograd.DiagPart(m)
	if err != nil {
		return nil, fmt.Errorf("structure.FrobeniusDiagonality: %w", err)
	}
	full := autograd.AddScalar(autograd.Norm(m), normFloor)
	gap, err := autograd.Sub(full, autograd.Norm(diag))
	if err != nil {
		return nil, fmt.Errorf("structure.FrobeniusDiagonality: %w", err)
	}

	return autograd.Div(gap, full)
}

// CorrMatrix returns the Pearson correlation between the rows of observed
// (variables × samples) and the rows of reconstructed.
func CorrMatrix(observed, reconstructed *autograd.Var) (*autograd.Var, error) {
	c, err := autograd.RowCorrelation(observed, reconstructed)
	if err != nil {
		return nil, fmt.Errorf("structure.CorrMatrix: %w", err)
	}

	return c, nil
}

// ExtractPermutation returns the orthogonal factor of Jᵀ. For a matrix that
// is a row permutation of a lower-triangular one, that factor is (up to
// signs) the permutation itself.
//
// method selects the factorisation: Householder for the QR route,
// CholeskyGram for the Cholesky route (requires J·Jᵀ positive definite).
func ExtractPermutation(J *autograd.Var, method autograd.Factorization) (*autograd.Var, error) {
	if J == nil {
		return nil, fmt.Errorf("structure.ExtractPermutation: %w", autograd.ErrNilVar)
	}
	if J.Rows() != J.Cols() {
		return nil, fmt.Errorf("structure.ExtractPermutation: %w", ErrNonSquare)
	}
	q, err := autograd.OrthogonalFactor(autograd.Transpose(J), method)
	if err != nil {
		return nil, fmt.Errorf("structure.ExtractPermutation: %w", err)
	}

	return q, nil
}

// PermutationLoss measures how far |Q| is from a permutation:
// ‖|Q|·1 − 1‖₂ + ‖|Q|ᵀ·1 − 1‖₂, plus ‖|Q| − I‖_F when towardIdentity.
func PermutationLoss(Q *autograd.Var, towardIdentity bool) (*autograd.Var, error) {
	if Q == nil {
		return nil, fmt.Errorf("structure.PermutationLoss: %w", autograd.ErrNilVar)
	}
	if Q.Rows() != Q.Cols() {
		return nil, fmt.Errorf("structure.PermutationLoss: %w", ErrNonSquare)
	}
	abs := autograd.Abs(Q)
	rows := autograd.Norm(autograd.AddScalar(autograd.RowSums(abs), -1))
	cols := autograd.Norm(autograd.AddScalar(autograd.ColSums(abs), -1))
	loss, err := autograd.Add(rows, cols)
	if err != nil {
		return nil, fmt.Errorf("structure.PermutationLoss: %w", err)
	}
	if !towardIdentity {
		return loss, nil
	}

	eye, err := matrix.NewIdentity(Q.Rows())
	if err != nil {
		return nil, fmt.Errorf("structure.PermutationLoss: %w", err)
	}
	off, err := autograd.Sub(abs, autograd.Const(eye))
	if err != nil {
		return nil, fmt.Errorf("structure.PermutationLoss: %w", err)
	}

	return autograd.Add(loss, autograd.Norm(off))
}
