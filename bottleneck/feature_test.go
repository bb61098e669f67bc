// SPDX-License-Identifier: MIT

package bottleneck_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/causalid/autograd"
	"github.com/katalvlaran/causalid/bottleneck"
	"github.com/katalvlaran/causalid/rng"
)

func TestFeatureMLP_VariablesStayIndependent(t *testing.T) {
	f, err := bottleneck.NewFeatureMLP(3, 1, 4, true, false, rng.New(1))
	require.NoError(t, err)
	x := randomMatrix(t, 3, 5, 2)

	base, err := f.Forward([]*autograd.Var{autograd.Const(x)})
	require.NoError(t, err)
	require.Len(t, base, 4)

	perturbed := x.Clone()
	for j := 0; j < 5; j++ {
		require.NoError(t, perturbed.Set(0, j, 10))
	}
	moved, err := f.Forward([]*autograd.Var{autograd.Const(perturbed)})
	require.NoError(t, err)
	for k := range base {
		a, b := base[k].Value.ToRows(), moved[k].Value.ToRows()
		require.Equal(t, a[1:], b[1:], "rows 1.. must not see variable 0")
		require.NotEqual(t, a[0], b[0])
	}
}

func TestFeatureMLP_IdentityActivationIsAffine(t *testing.T) {
	f, err := bottleneck.NewFeatureMLP(2, 1, 1, false, true, rng.New(3))
	require.NoError(t, err)
	x := randomMatrix(t, 2, 3, 4)
	neg := x.Clone()
	neg.Apply(func(_, _ int, v float64) float64 { return -v })

	a, err := f.Forward([]*autograd.Var{autograd.Const(x)})
	require.NoError(t, err)
	b, err := f.Forward([]*autograd.Var{autograd.Const(neg)})
	require.NoError(t, err)
	for k, v := range a[0].Value.Data() {
		require.InDelta(t, -v, b[0].Value.Data()[k], 1e-15)
	}
}

func TestFeatureMLP_ShapeErrors(t *testing.T) {
	f, err := bottleneck.NewFeatureMLP(2, 2, 1, true, false, rng.New(1))
	require.NoError(t, err)
	_, err = f.Forward([]*autograd.Var{autograd.Const(randomMatrix(t, 2, 3, 1))})
	require.ErrorIs(t, err, bottleneck.ErrShape)
	_, err = f.Forward([]*autograd.Var{
		autograd.Const(randomMatrix(t, 2, 3, 1)),
		autograd.Const(randomMatrix(t, 3, 3, 1)),
	})
	require.ErrorIs(t, err, bottleneck.ErrShape)

	_, err = bottleneck.NewFeatureMLP(2, 0, 1, true, false, rng.New(1))
	require.ErrorIs(t, err, bottleneck.ErrFeatureWidth)
}
