// SPDX-License-Identifier: MIT
package matrix_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/causalid/matrix"
)

func TestShortestHops_Chain(t *testing.T) {
	inf := math.Inf(1)
	// 0→1→2→3 with a shortcut 0→2 and a negligible 3→0.
	a := MustRows(t, [][]float64{
		{0, 0.7, -2, 0},
		{0, 0, 1, 0},
		{0, 0, 0, 3},
		{1e-9, 0, 0, 0},
	})
	d, err := matrix.ShortestHops(a, 1e-6)
	require.NoError(t, err)
	require.Equal(t, [][]float64{
		{0, 1, 1, 2},
		{inf, 0, 1, 2},
		{inf, inf, 0, 1},
		{inf, inf, inf, 0},
	}, d.ToRows())

	// Input untouched.
	v, _ := a.At(0, 2)
	require.Equal(t, -2.0, v)
}

func TestShortestHops_CycleAndIdempotence(t *testing.T) {
	a := MustRows(t, [][]float64{
		{0, 1, 0},
		{0, 0, 1},
		{1, 0, 0},
	})
	d, err := matrix.ShortestHops(a, 0)
	require.NoError(t, err)
	require.Equal(t, [][]float64{{0, 1, 2}, {2, 0, 1}, {1, 2, 0}}, d.ToRows())

	// Every pair is reachable, so the support of d is complete and running
	// again on it yields one hop everywhere off the diagonal.
	again, err := matrix.ShortestHops(d, 0)
	require.NoError(t, err)
	require.Equal(t, [][]float64{{0, 1, 1}, {1, 0, 1}, {1, 1, 0}}, again.ToRows())
}

func TestShortestHops_Errors(t *testing.T) {
	_, err := matrix.ShortestHops(nil, 0)
	require.ErrorIs(t, err, matrix.ErrNilMatrix)
	_, err = matrix.ShortestHops(MustDense(t, 2, 3), 0)
	require.ErrorIs(t, err, matrix.ErrNonSquare)
	_, err = matrix.ShortestHops(MustDense(t, 2, 2), -1)
	require.ErrorIs(t, err, matrix.ErrNaNInf)
}
