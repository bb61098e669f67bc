// SPDX-License-Identifier: MIT

package train_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/causalid/autograd"
	"github.com/katalvlaran/causalid/matrix"
	"github.com/katalvlaran/causalid/rng"
	"github.com/katalvlaran/causalid/train"
)

func TestLpSimCLR_HandComputed(t *testing.T) {
	a := autograd.Const(matrix.MustFromRows([][]float64{{0, 1}}))
	p := autograd.Const(matrix.MustFromRows([][]float64{{0, 1}}))
	n := autograd.Const(matrix.MustFromRows([][]float64{{0, 1}}))

	// pos = 0; each row of neg is {0, -1}: lse = log(2 + 1/e).
	total, parts, err := train.LpSimCLR{Tau: 1}.Loss(a, p, n)
	require.NoError(t, err)
	want := math.Log(2 + 1/math.E)
	require.InDelta(t, want, total.Item(), 1e-12)
	require.Len(t, parts, 2)
	require.InDelta(t, 0, parts[0], 1e-12)
	require.InDelta(t, want, parts[1], 1e-12)
}

func TestLpSimCLR_TemperatureScalesLogits(t *testing.T) {
	a := autograd.Const(matrix.MustFromRows([][]float64{{0, 2}}))
	p := autograd.Const(matrix.MustFromRows([][]float64{{1, 2}}))
	n := autograd.Const(matrix.MustFromRows([][]float64{{3, 0}}))

	// tau = 2: pos = {-1/2, 0}, neg = {{-9/2, 0}, {-1/2, -2}}.
	total, _, err := train.LpSimCLR{Tau: 2}.Loss(a, p, n)
	require.NoError(t, err)
	lse0 := math.Log(math.Exp(-0.5) + math.Exp(-4.5) + 1)
	lse1 := math.Log(1 + math.Exp(-0.5) + math.Exp(-2))
	want := 0.25 + (lse0+lse1)/2
	require.InDelta(t, want, total.Item(), 1e-12)
}

func TestLpSimCLR_GradientMatchesFiniteDifferences(t *testing.T) {
	rs := rng.New(3)
	views := make([]*autograd.Var, 3)
	for i := range views {
		m, err := matrix.NewDense(2, 4)
		require.NoError(t, err)
		rs.FillNormal(m, 0, 1)
		views[i] = autograd.Param(m)
	}
	loss := func() float64 {
		var out float64
		require.NoError(t, autograd.NoGrad(func() error {
			v, _, err := train.LpSimCLR{Tau: 0.5}.Loss(views[0], views[1], views[2])
			if err != nil {
				return err
			}
			out = v.Item()
			return nil
		}))
		return out
	}

	total, _, err := train.LpSimCLR{Tau: 0.5}.Loss(views[0], views[1], views[2])
	require.NoError(t, err)
	require.NoError(t, autograd.Backward(total))

	const h = 1e-6
	for vi, v := range views {
		data := v.Value.Data()
		for k := range data {
			orig := data[k]
			data[k] = orig + h
			up := loss()
			data[k] = orig - h
			down := loss()
			data[k] = orig
			require.InDeltaf(t, (up-down)/(2*h), v.Grad.Data()[k], 1e-5, "view %d entry %d", vi, k)
		}
	}
}

func TestLpSimCLR_NilInput(t *testing.T) {
	_, _, err := train.LpSimCLR{}.Loss(nil, nil, nil)
	require.ErrorIs(t, err, autograd.ErrNilVar)
}

func TestMSE(t *testing.T) {
	rec := autograd.Param(matrix.MustFromRows([][]float64{{1, 2}, {3, 4}}))
	target := matrix.MustFromRows([][]float64{{1, 0}, {3, 2}})
	loss, err := train.MSE(rec, target)
	require.NoError(t, err)
	require.InDelta(t, 2.0, loss.Item(), 1e-12)

	require.NoError(t, autograd.Backward(loss))
	require.Equal(t, []float64{0, 1, 0, 1}, rec.Grad.Data())

	_, err = train.MSE(rec, matrix.MustFromRows([][]float64{{1}}))
	require.ErrorIs(t, err, matrix.ErrDimensionMismatch)
}
