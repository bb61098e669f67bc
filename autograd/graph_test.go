// SPDX-License-Identifier: MIT

package autograd_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/causalid/autograd"
	"github.com/katalvlaran/causalid/matrix"
)

func TestBackward_RequiresScalarRoot(t *testing.T) {
	x := autograd.Param(randDense(t, 2, 2, -1, 1, 1))
	require.ErrorIs(t, autograd.Backward(autograd.Square(x)), autograd.ErrNotScalar)
	require.ErrorIs(t, autograd.Backward(nil), autograd.ErrNilVar)
}

func TestBackward_AccumulatesUntilZeroGrad(t *testing.T) {
	x := autograd.Param(matrix.MustFromRows([][]float64{{1, 2}}))
	for i := 0; i < 2; i++ {
		require.NoError(t, autograd.Backward(autograd.Sum(autograd.Square(x))))
	}
	require.Equal(t, []float64{4, 8}, x.Grad.Data())

	x.ZeroGrad()
	require.Equal(t, []float64{0, 0}, x.Grad.Data())
}

func TestBackward_SharedSubexpression(t *testing.T) {
	// f = sum(x⊙x + x) uses x along two paths.
	x := autograd.Param(matrix.MustFromRows([][]float64{{3, -1}}))
	sq, err := autograd.Mul(x, x)
	require.NoError(t, err)
	s, err := autograd.Add(sq, x)
	require.NoError(t, err)
	require.NoError(t, autograd.Backward(autograd.Sum(s)))
	require.Equal(t, []float64{7, -1}, x.Grad.Data())
}

func TestConstReceivesNoGradient(t *testing.T) {
	c := autograd.Const(matrix.MustFromRows([][]float64{{1, 2}}))
	out := autograd.Sum(autograd.Square(c))
	require.False(t, out.RequiresGrad())
	require.NoError(t, autograd.Backward(out))
	require.Nil(t, c.Grad)
}

func TestNoGrad_DisablesGraphAndRestores(t *testing.T) {
	x := autograd.Param(matrix.MustFromRows([][]float64{{1}}))
	sentinel := errors.New("boom")

	err := autograd.NoGrad(func() error {
		require.False(t, autograd.GradEnabled())
		y := autograd.Exp(x)
		require.False(t, y.RequiresGrad())
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)
	require.True(t, autograd.GradEnabled())
	require.True(t, autograd.Exp(x).RequiresGrad())
}

func TestOrthogonalFactor_Gradients(t *testing.T) {
	for _, method := range []autograd.Factorization{autograd.Canonical, autograd.Householder, autograd.CholeskyGram} {
		t.Run(method.String(), func(t *testing.T) {
			a := autograd.Param(randDense(t, 4, 4, -1, 1, 21))
			checkGradients(t, []*autograd.Var{a}, func() (*autograd.Var, error) {
				q, err := autograd.OrthogonalFactor(a, method)
				if err != nil {
					return nil, err
				}
				return weighted(t, q, 22), nil
			})
		})
	}
}

func TestOrthogonalFactor_CholeskyMatchesCanonical(t *testing.T) {
	a := autograd.Const(randDense(t, 5, 5, -1, 1, 31))
	qc, err := autograd.OrthogonalFactor(a, autograd.Canonical)
	require.NoError(t, err)
	qg, err := autograd.OrthogonalFactor(a, autograd.CholeskyGram)
	require.NoError(t, err)

	ok, err := matrix.AllClose(qc.Value, qg.Value, 0, 1e-8)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = autograd.OrthogonalFactor(a, autograd.Factorization(42))
	require.ErrorIs(t, err, autograd.ErrUnknownFactorization)
}
