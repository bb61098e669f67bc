// SPDX-License-Identifier: MIT

package dag_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/causalid/dag"
	"github.com/katalvlaran/causalid/matrix"
)

// chain is the encoder Jacobian of 0 → 1 → 2 plus an isolated 3.
func chain(t *testing.T) *dag.Graph {
	t.Helper()
	J := matrix.MustFromRows([][]float64{
		{1, 0, 0, 0},
		{0.5, 1, 0, 0},
		{0, -2, 1, 0},
		{0, 0, 0, 1},
	})
	g, err := dag.FromAdjacency(J, dag.DefaultEdgeEps)
	require.NoError(t, err)

	return g
}

func position(order []int, v int) int {
	for i, x := range order {
		if x == v {
			return i
		}
	}

	return -1
}

func TestFromAdjacency_Edges(t *testing.T) {
	g := chain(t)
	assert.Equal(t, 4, g.NumNodes())
	assert.Equal(t, []dag.Edge{{From: 0, To: 1}, {From: 1, To: 2}}, g.Edges())
	assert.True(t, g.HasEdge(0, 1))
	assert.False(t, g.HasEdge(1, 0))
	assert.False(t, g.HasEdge(0, 9))
	assert.Equal(t, []int{1}, g.Parents(2))
	assert.Equal(t, "0->1", dag.Edge{From: 0, To: 1}.String())

	_, err := dag.FromAdjacency(matrix.MustFromRows([][]float64{{1, 2}}), 0)
	require.ErrorIs(t, err, matrix.ErrNonSquare)
}

func TestTopologicalSort(t *testing.T) {
	order, err := chain(t).TopologicalSort()
	require.NoError(t, err)
	require.Len(t, order, 4)
	assert.Less(t, position(order, 0), position(order, 1))
	assert.Less(t, position(order, 1), position(order, 2))

	empty, err := dag.FromAdjacency(matrix.MustFromRows([][]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}), 0)
	require.NoError(t, err)
	order, err = empty.TopologicalSort()
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestTopologicalSort_Cycle(t *testing.T) {
	g, err := dag.FromAdjacency(matrix.MustFromRows([][]float64{{0, 1}, {1, 0}}), 0)
	require.NoError(t, err)
	_, err = g.TopologicalSort()
	assert.ErrorIs(t, err, dag.ErrCycleDetected)
	_, err = g.CausalOrderings()
	assert.ErrorIs(t, err, dag.ErrCycleDetected)
	_, err = g.IndirectCauses()
	assert.ErrorIs(t, err, dag.ErrCycleDetected)
}

func TestTopologicalSort_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := chain(t).TopologicalSort(dag.WithCancelContext(ctx))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCausalOrderings(t *testing.T) {
	orders, err := chain(t).CausalOrderings()
	require.NoError(t, err)
	// 3 can sit in any of the 4 slots around the fixed chain 0,1,2.
	assert.Equal(t, [][]int{
		{0, 1, 2, 3},
		{0, 1, 3, 2},
		{0, 3, 1, 2},
		{3, 0, 1, 2},
	}, orders)

	capped, err := chain(t).CausalOrderings(dag.WithMaxOrderings(2))
	require.NoError(t, err)
	assert.Len(t, capped, 2)
}

func TestIndirectCauses(t *testing.T) {
	// Diamond 0 → 1 → 3, 0 → 2 → 3, plus the shortcut 1 → 2.
	J := matrix.MustFromRows([][]float64{
		{1, 0, 0, 0},
		{1, 1, 0, 0},
		{1, 1, 1, 0},
		{0, 1, 1, 1},
	})
	g, err := dag.FromAdjacency(J, 0)
	require.NoError(t, err)
	causes, err := g.IndirectCauses()
	require.NoError(t, err)
	require.Len(t, causes, 1)
	assert.Equal(t, dag.Edge{From: 0, To: 3}, causes[0].Edge)
	assert.ElementsMatch(t, [][]int{{0, 1, 3}, {0, 1, 2, 3}, {0, 2, 3}}, causes[0].Paths)
	assert.True(t, dag.IsIndirect(causes, dag.Edge{From: 0, To: 3}))
	assert.False(t, dag.IsIndirect(causes, dag.Edge{From: 0, To: 1}))

	assert.Nil(t, g.Paths(3, 0))
}

func TestHops(t *testing.T) {
	hops, err := chain(t).Hops()
	require.NoError(t, err)
	want := [][]float64{
		{0, 1, 2, math.Inf(1)},
		{math.Inf(1), 0, 1, math.Inf(1)},
		{math.Inf(1), math.Inf(1), 0, math.Inf(1)},
		{math.Inf(1), math.Inf(1), math.Inf(1), 0},
	}
	assert.Equal(t, want, hops.ToRows())

	causes, err := chain(t).IndirectCauses()
	require.NoError(t, err)
	require.Len(t, causes, 1)
	assert.Equal(t, [][]int{{0, 1, 2}}, causes[0].Paths)
}
