// SPDX-License-Identifier: MIT

package metrics_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/causalid/matrix"
	"github.com/katalvlaran/causalid/metrics"
	"github.com/katalvlaran/causalid/rng"
)

func normal(t *testing.T, d, n int, seed uint64) *matrix.Dense {
	t.Helper()
	m, err := matrix.NewDense(d, n)
	require.NoError(t, err)
	rng.New(seed).FillNormal(m, 0, 1)

	return m
}

func TestEdgeMetrics(t *testing.T) {
	var e metrics.EdgeMetrics
	truth := matrix.MustFromRows([][]float64{{1, 0}, {1, 1}})
	pred := matrix.MustFromRows([][]float64{{1, 1}, {0, 1}})
	require.NoError(t, e.Update(pred, truth, 0.5))

	s := e.Compute()
	assert.InDelta(t, 0.5, s.Accuracy, 1e-12)
	assert.InDelta(t, 2.0/3, s.Precision, 1e-12)
	assert.InDelta(t, 2.0/3, s.Recall, 1e-12)
	assert.InDelta(t, 2.0/3, s.F1, 1e-12)
	assert.Len(t, s.Map(), 4)

	// Counts accumulate across updates.
	require.NoError(t, e.Update(truth, truth, 0.5))
	assert.InDelta(t, 0.75, e.Compute().Accuracy, 1e-12)

	e.Reset()
	assert.Equal(t, metrics.EdgeScores{}, e.Compute())
	assert.ErrorIs(t, e.Update(pred, matrix.MustFromRows([][]float64{{1}}), 0), matrix.ErrDimensionMismatch)
}

func TestLinearScore(t *testing.T) {
	z := normal(t, 3, 200, 1)
	mix := matrix.MustFromRows([][]float64{
		{1, 0.5, 0},
		{-2, 1, 0.3},
		{0, 0, 3},
	})
	hz, err := matrix.Mul(mix, z)
	require.NoError(t, err)
	score, err := metrics.LinearScore(z, hz)
	require.NoError(t, err)
	assert.InDelta(t, 1, score, 1e-9)

	noise := normal(t, 3, 200, 2)
	score, err = metrics.LinearScore(z, noise)
	require.NoError(t, err)
	assert.Less(t, score, 0.2)

	_, err = metrics.LinearScore(normal(t, 3, 3, 1), normal(t, 3, 3, 2))
	assert.ErrorIs(t, err, metrics.ErrTooFewSamples)
}

func TestPermutationScore(t *testing.T) {
	z := normal(t, 3, 200, 3)
	perm, err := matrix.PermuteRows(z, []int{2, 0, 1})
	require.NoError(t, err)
	perm.Apply(func(i, _ int, v float64) float64 { return float64(i+1) * 2 * v })
	lin, score, err := metrics.DisentanglementScores(z, perm)
	require.NoError(t, err)
	assert.InDelta(t, 1, score, 1e-9)
	assert.InDelta(t, 1, lin, 1e-9)

	flipped, err := matrix.PermuteRows(z, []int{1, 2, 0})
	require.NoError(t, err)
	flipped.Apply(func(_, _ int, v float64) float64 { return -v })
	score, err = metrics.PermutationScore(z, flipped)
	require.NoError(t, err)
	assert.InDelta(t, 1, score, 1e-12)
}

func TestScores_CollapsedLatents(t *testing.T) {
	z := normal(t, 2, 50, 4)
	flat, err := matrix.NewDense(2, 50)
	require.NoError(t, err)

	lin, perm, err := metrics.DisentanglementScores(z, flat)
	require.NoError(t, err)
	assert.InDelta(t, 0, lin, 1e-9)
	assert.Zero(t, perm)
}

func TestBestAssignment(t *testing.T) {
	C := [][]float64{
		{0.1, 0.9, 0.2},
		{0.8, 0.7, 0.1},
		{0.3, 0.2, 0.6},
	}
	perm, total := metrics.BestAssignment(C)
	assert.Equal(t, []int{1, 0, 2}, perm)
	assert.InDelta(t, 2.3, total, 1e-12)

	// Greedy beyond the exhaustive limit on a diagonal-dominant matrix.
	big := make([][]float64, 10)
	for i := range big {
		big[i] = make([]float64, 10)
		big[i][(i+3)%10] = 1
	}
	perm, total = metrics.BestAssignment(big)
	assert.InDelta(t, 10, total, 1e-12)
	for i, j := range perm {
		assert.Equal(t, (i+3)%10, j)
	}
}
