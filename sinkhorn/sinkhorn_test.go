// SPDX-License-Identifier: MIT

package sinkhorn_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/causalid/autograd"
	"github.com/katalvlaran/causalid/device"
	"github.com/katalvlaran/causalid/matrix"
	"github.com/katalvlaran/causalid/rng"
	"github.com/katalvlaran/causalid/sinkhorn"
)

func randomSquare(t *testing.T, n int, scale float64, seed uint64) *matrix.Dense {
	t.Helper()
	m, err := matrix.NewDense(n, n)
	require.NoError(t, err)
	rng.New(seed).FillUniform(m, -scale, scale)

	return m
}

func requireDoublyStochastic(t *testing.T, S *matrix.Dense, tol float64) {
	t.Helper()
	n := S.Rows()
	d := S.Data()
	for i := 0; i < n; i++ {
		var row, col float64
		for j := 0; j < n; j++ {
			require.Greater(t, d[i*n+j], 0.0)
			row += d[i*n+j]
			col += d[j*n+i]
		}
		require.InDelta(t, 1.0, row, tol, "row %d", i)
		require.InDelta(t, 1.0, col, tol, "col %d", i)
	}
}

func TestNewOperator_RejectsNonPositiveSteps(t *testing.T) {
	for _, k := range []int{0, -3} {
		_, err := sinkhorn.NewOperator(k)
		require.ErrorIs(t, err, sinkhorn.ErrInvalidSteps)
		require.ErrorIs(t, err, sinkhorn.ErrConfiguration)
	}
}

func TestApply_ConvergesToDoublyStochastic(t *testing.T) {
	for _, stable := range []bool{true, false} {
		op, err := sinkhorn.NewOperator(50, sinkhorn.WithStableExp(stable))
		require.NoError(t, err)
		for seed := uint64(1); seed <= 5; seed++ {
			S, err := op.Apply(autograd.Const(randomSquare(t, 5, 3, seed)))
			require.NoError(t, err)
			requireDoublyStochastic(t, S.Value, 1e-4)
		}
	}
}

func TestApply_StableMatchesPlain(t *testing.T) {
	M := autograd.Const(randomSquare(t, 4, 2, 11))
	stable, err := sinkhorn.NewOperator(7)
	require.NoError(t, err)
	plain, err := sinkhorn.NewOperator(7, sinkhorn.WithStableExp(false))
	require.NoError(t, err)

	a, err := stable.Apply(M)
	require.NoError(t, err)
	b, err := plain.Apply(M)
	require.NoError(t, err)
	ok, err := matrix.AllClose(a.Value, b.Value, 0, 1e-10)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestApply_LargeEntries(t *testing.T) {
	M := autograd.Const(randomSquare(t, 4, 2000, 3))

	plain, err := sinkhorn.NewOperator(5, sinkhorn.WithStableExp(false))
	require.NoError(t, err)
	S, err := plain.Apply(M)
	require.NoError(t, err)
	require.False(t, S.Value.IsFinite(), "plain exp overflows")

	stable, err := sinkhorn.NewOperator(5)
	require.NoError(t, err)
	S, err = stable.Apply(M)
	require.NoError(t, err)
	require.True(t, S.Value.IsFinite())
}

func TestApply_RejectsNonSquare(t *testing.T) {
	op, err := sinkhorn.NewOperator(1)
	require.NoError(t, err)
	m, err := matrix.NewDense(2, 3)
	require.NoError(t, err)
	_, err = op.Apply(autograd.Const(m))
	require.ErrorIs(t, err, matrix.ErrNonSquare)
}

func TestApply_GradientMatchesFiniteDifference(t *testing.T) {
	weights := randomSquare(t, 3, 1, 77)
	for _, stable := range []bool{true, false} {
		op, err := sinkhorn.NewOperator(3, sinkhorn.WithStableExp(stable))
		require.NoError(t, err)
		W := autograd.Param(randomSquare(t, 3, 1, 5))

		loss := func() *autograd.Var {
			S, err := op.Apply(W)
			require.NoError(t, err)
			p, err := autograd.Mul(S, autograd.Const(weights))
			require.NoError(t, err)
			return autograd.Sum(p)
		}
		require.NoError(t, autograd.Backward(loss()))

		const h = 1e-6
		data := W.Value.Data()
		for k := range data {
			orig := data[k]
			var up, down float64
			require.NoError(t, autograd.NoGrad(func() error {
				data[k] = orig + h
				up = loss().Item()
				data[k] = orig - h
				down = loss().Item()
				data[k] = orig
				return nil
			}))
			require.InDelta(t, (up-down)/(2*h), W.Grad.Data()[k], 1e-6)
		}
	}
}

func TestNet_EntropyAndTemperature(t *testing.T) {
	net, err := sinkhorn.NewNet(4, 20, 1, rng.New(9))
	require.NoError(t, err)

	S, err := net.DoublyStochasticMatrix()
	require.NoError(t, err)
	requireDoublyStochastic(t, S.Value, 1e-3)

	warm, err := net.Entropy()
	require.NoError(t, err)
	require.GreaterOrEqual(t, warm.Item(), 0.0)
	require.LessOrEqual(t, warm.Item(), math.Log(4)+1e-9)

	require.NoError(t, net.SetTemperature(1e-3))
	cold, err := net.Entropy()
	require.NoError(t, err)
	require.Less(t, cold.Item(), warm.Item())

	require.ErrorIs(t, net.SetTemperature(0), sinkhorn.ErrInvalidTemperature)
	require.Len(t, net.Params(), 1)
}

func TestNet_GradientReachesWeight(t *testing.T) {
	net, err := sinkhorn.NewNet(3, 5, 0.5, rng.New(2))
	require.NoError(t, err)
	e, err := net.Entropy()
	require.NoError(t, err)
	require.NoError(t, autograd.Backward(e))
	require.NotZero(t, matrix.MaxAbs(net.Weight().Grad))
}

func TestNet_DevicePlacement(t *testing.T) {
	net, err := sinkhorn.NewNet(2, 1, 1, rng.New(1))
	require.NoError(t, err)
	require.NoError(t, net.To("cpu"))
	require.ErrorIs(t, net.To("cuda:0"), device.ErrUnsupported)
	require.Equal(t, device.CPU, net.Device())

	_, err = sinkhorn.NewNet(2, 1, -1, rng.New(1))
	require.ErrorIs(t, err, sinkhorn.ErrConfiguration)
}
