// SPDX-License-Identifier: MIT
package matrix_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/causalid/matrix"
)

func TestTrilTriu_Offsets(t *testing.T) {
	m := MustRows(t, [][]float64{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}})

	require.Equal(t, [][]float64{{1, 0, 0}, {4, 5, 0}, {7, 8, 9}}, matrix.Tril(m, 0).ToRows())
	require.Equal(t, [][]float64{{0, 0, 0}, {4, 0, 0}, {7, 8, 0}}, matrix.Tril(m, -1).ToRows())
	require.Equal(t, [][]float64{{1, 2, 3}, {0, 5, 6}, {0, 0, 9}}, matrix.Triu(m, 0).ToRows())
	require.True(t, matrix.IsLowerTriangular(matrix.Tril(m, 0), 0))
	require.False(t, matrix.IsLowerTriangular(m, 0))
}

func TestNeutralConstructors(t *testing.T) {
	tri, err := matrix.NewTrilOnes(3)
	require.NoError(t, err)
	require.Equal(t, [][]float64{{1, 0, 0}, {1, 1, 0}, {1, 1, 1}}, tri.ToRows())

	d, err := matrix.NewDiag([]float64{2, 3})
	require.NoError(t, err)
	diag, err := matrix.DiagOf(d)
	require.NoError(t, err)
	require.Equal(t, []float64{2, 3}, diag)
}

func TestNonZeroMask(t *testing.T) {
	adj := MustRows(t, [][]float64{{0, 0}, {-0.3, 1e-12}})
	mask, err := matrix.NonZeroMask(adj, 0)
	require.NoError(t, err)
	require.Equal(t, [][]float64{{0, 0}, {1, 1}}, mask.ToRows())

	mask, err = matrix.NonZeroMask(adj, 1e-9)
	require.NoError(t, err)
	require.Equal(t, [][]float64{{0, 0}, {1, 0}}, mask.ToRows())
}

func TestPermutation_RoundTrip(t *testing.T) {
	perm := []int{2, 0, 1}
	P, err := matrix.PermutationFromIndices(perm)
	require.NoError(t, err)
	require.True(t, matrix.IsPermutation(P, 0))

	x := MustRows(t, [][]float64{{10}, {20}, {30}})
	px, err := matrix.Mul(P, x)
	require.NoError(t, err)
	require.Equal(t, [][]float64{{30}, {10}, {20}}, px.ToRows())

	back, err := matrix.PermuteRows(px, matrix.ArgSort(perm))
	require.NoError(t, err)
	require.Equal(t, x.ToRows(), back.ToRows())

	_, err = matrix.PermutationFromIndices([]int{0, 0, 1})
	require.ErrorIs(t, err, matrix.ErrBadPermutation)
	require.False(t, matrix.IsPermutation(MustRows(t, [][]float64{{0.5, 0.5}, {0.5, 0.5}}), 1e-9))
}

func TestSamePattern(t *testing.T) {
	a := MustRows(t, [][]float64{{1, 0}, {-2, 3}})
	b := MustRows(t, [][]float64{{5, 0}, {-0.1, 9}})
	ok, err := matrix.SamePattern(a, b, 0)
	require.NoError(t, err)
	require.True(t, ok)

	c := MustRows(t, [][]float64{{5, 0}, {0.1, 9}})
	ok, err = matrix.SamePattern(a, c, 0)
	require.NoError(t, err)
	require.False(t, ok)
}
