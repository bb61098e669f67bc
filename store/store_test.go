// SPDX-License-Identifier: MIT

package store_test

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/causalid/matrix"
	"github.com/katalvlaran/causalid/store"
)

func open(t *testing.T, path string, opts ...store.Option) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), path, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func TestStore_Scalars(t *testing.T) {
	ctx := context.Background()
	s := open(t, store.Memory)
	_, err := uuid.Parse(s.RunID())
	require.NoError(t, err)

	require.NoError(t, s.LogScalars(ctx, 1, map[string]float64{"total_loss": 2.5, "dep_loss": 0.1}))
	require.NoError(t, s.LogScalars(ctx, 2, map[string]float64{"total_loss": 1.5}))

	got, err := s.Scalars(ctx, "total_loss")
	require.NoError(t, err)
	require.Equal(t, []store.Point{{Step: 1, Value: 2.5}, {Step: 2, Value: 1.5}}, got)

	none, err := s.Scalars(ctx, "missing")
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestStore_MatricesAndSummary(t *testing.T) {
	ctx := context.Background()
	s := open(t, store.Memory)

	_, _, err := s.LatestMatrix(ctx, "w")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.LogMatrix(ctx, 1, "w", matrix.MustFromRows([][]float64{{1, 0}, {2, 3}})))
	require.NoError(t, s.LogMatrix(ctx, 5, "w", matrix.MustFromRows([][]float64{{4, 0}, {5, 6}})))
	m, step, err := s.LatestMatrix(ctx, "w")
	require.NoError(t, err)
	require.Equal(t, 5, step)
	require.Equal(t, [][]float64{{4, 0}, {5, 6}}, m.ToRows())

	require.NoError(t, s.LogSummary(ctx, "causal_orderings", [][]int{{0, 1, 2}}))
	require.NoError(t, s.LogSummary(ctx, "causal_orderings", [][]int{{0, 2, 1}}))
	var orders [][]int
	require.NoError(t, s.Summary(ctx, "causal_orderings", &orders))
	require.Equal(t, [][]int{{0, 2, 1}}, orders)
	require.ErrorIs(t, s.Summary(ctx, "nope", &orders), store.ErrNotFound)
}

func TestStore_Checkpoints(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "runs.db")
	s := open(t, path)

	state := store.State{
		matrix.MustFromRows([][]float64{{1, 2, 3}}),
		matrix.MustFromRows([][]float64{{-1}, {0.5}}),
	}
	require.NoError(t, s.Save(ctx, state, "sup_f"))
	_, err := s.Load(ctx, "unsup_f")
	require.ErrorIs(t, err, store.ErrNotFound)

	// A second handle on the same run sees the checkpoint; a new run does not.
	same := open(t, path, store.WithRunID(s.RunID()))
	got, err := same.Load(ctx, "sup_f")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, state[0].ToRows(), got[0].ToRows())
	require.Equal(t, state[1].ToRows(), got[1].ToRows())

	other := open(t, path)
	require.NotEqual(t, s.RunID(), other.RunID())
	_, err = other.Load(ctx, "sup_f")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.ErrorIs(t, s.Save(ctx, store.State{nil}, "bad"), matrix.ErrNilMatrix)
}

func TestStore_NonFiniteValues(t *testing.T) {
	ctx := context.Background()
	s := open(t, store.Memory)
	nan, inf := math.NaN(), math.Inf(1)

	require.NoError(t, s.LogScalars(ctx, 1, map[string]float64{"total_loss": nan}))
	pts, err := s.Scalars(ctx, "total_loss")
	require.NoError(t, err)
	require.Len(t, pts, 1)
	require.True(t, math.IsNaN(pts[0].Value))

	diverged := matrix.MustFromRows([][]float64{{nan, 1}, {-inf, inf}})
	require.NoError(t, s.LogMatrix(ctx, 3, "w", diverged))
	m, _, err := s.LatestMatrix(ctx, "w")
	require.NoError(t, err)
	require.True(t, math.IsNaN(m.Data()[0]))
	require.Equal(t, []float64{1, math.Inf(-1), math.Inf(1)}, m.Data()[1:])

	require.NoError(t, s.Save(ctx, store.State{diverged}, "unsup_f"))
	state, err := s.Load(ctx, "unsup_f")
	require.NoError(t, err)
	require.True(t, math.IsNaN(state[0].Data()[0]))
	require.Equal(t, []float64{1, math.Inf(-1), math.Inf(1)}, state[0].Data()[1:])
}

func TestStore_Closed(t *testing.T) {
	s, err := store.Open(context.Background(), store.Memory)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.ErrorIs(t, s.Close(), store.ErrClosed)
	require.ErrorIs(t, s.LogScalars(context.Background(), 1, nil), store.ErrClosed)
}
