// SPDX-License-Identifier: MIT
package matrix_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/causalid/matrix"
)

func TestCenterRows(t *testing.T) {
	X := MustRows(t, [][]float64{{1, 2, 3}, {10, 10, 10}})
	Xc, means, err := matrix.CenterRows(X)
	require.NoError(t, err)
	require.Equal(t, []float64{2, 10}, means)
	require.Equal(t, [][]float64{{-1, 0, 1}, {0, 0, 0}}, Xc.ToRows())
}

func TestRowCorrelation_ScaleInvariantAndSigned(t *testing.T) {
	X := MustRows(t, [][]float64{{1, 2, 3, 4}, {4, 1, 3, 2}})
	Y := MustRows(t, [][]float64{{2, 4, 6, 8}, {-1, -2, -3, -4}})

	C, err := matrix.RowCorrelation(X, Y)
	require.NoError(t, err)
	require.InDelta(t, 1.0, mustAt(t, C, 0, 0), 1e-12)
	require.InDelta(t, -1.0, mustAt(t, C, 0, 1), 1e-12)

	// Degenerate rows produce zero correlations rather than NaN.
	Z := MustRows(t, [][]float64{{5, 5, 5, 5}})
	C, err = matrix.RowCorrelation(Z, Y)
	require.NoError(t, err)
	require.Equal(t, [][]float64{{0, 0}}, C.ToRows())

	_, err = matrix.RowCorrelation(X, MustDense(t, 2, 3))
	require.ErrorIs(t, err, matrix.ErrDimensionMismatch)
}

func TestReductions(t *testing.T) {
	m := MustRows(t, [][]float64{{3, -4}, {0, 0}})
	require.Equal(t, -1.0, matrix.Sum(m))
	require.Equal(t, 7.0/4.0, matrix.MeanAbs(m))
	require.Equal(t, 5.0, matrix.FrobeniusNorm(m))
	require.Equal(t, 4.0, matrix.MaxAbs(m))
}

func TestAllClose(t *testing.T) {
	a := MustRows(t, [][]float64{{1, 2}})
	b := MustRows(t, [][]float64{{1, 2 + 1e-9}})
	ok, err := matrix.AllClose(a, b, 0, 1e-8)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = matrix.AllClose(a, b, 0, 1e-10)
	require.NoError(t, err)
	require.False(t, ok)
}
