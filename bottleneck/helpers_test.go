// SPDX-License-Identifier: MIT

package bottleneck_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/causalid/autograd"
	"github.com/katalvlaran/causalid/bottleneck"
	"github.com/katalvlaran/causalid/matrix"
	"github.com/katalvlaran/causalid/rng"
)

func newARMLP(t *testing.T, d int, seed uint64, opts ...bottleneck.Option) *bottleneck.ARMLP {
	t.Helper()
	a, err := bottleneck.NewARMLP(d, rng.New(seed), opts...)
	require.NoError(t, err)

	return a
}

func assembled(t *testing.T, a *bottleneck.ARMLP) *matrix.Dense {
	t.Helper()
	w, err := a.AssembledWeight()
	require.NoError(t, err)

	return w.Value
}

func randomMatrix(t *testing.T, r, c int, seed uint64) *matrix.Dense {
	t.Helper()
	m, err := matrix.NewDense(r, c)
	require.NoError(t, err)
	rng.New(seed).FillUniform(m, -1, 1)

	return m
}

func requireStrictlyUpperZero(t *testing.T, m *matrix.Dense) {
	t.Helper()
	require.True(t, matrix.IsLowerTriangular(m, 0), "strictly-upper entries must be 0:\n%v", m)
}

func forward(t *testing.T, a *bottleneck.ARMLP, x *matrix.Dense) *matrix.Dense {
	t.Helper()
	y, err := a.Forward(autograd.Const(x))
	require.NoError(t, err)

	return y.Value
}
