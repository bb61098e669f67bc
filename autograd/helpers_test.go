// SPDX-License-Identifier: MIT

package autograd_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/causalid/autograd"
	"github.com/katalvlaran/causalid/matrix"
)

const (
	fdStep = 1e-6
	fdTol  = 1e-5
)

// randDense returns an r×c matrix with entries uniform in [lo, hi).
func randDense(t testing.TB, r, c int, lo, hi float64, seed int64) *matrix.Dense {
	t.Helper()
	m, err := matrix.NewDense(r, c)
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(seed))
	for k := range m.Data() {
		m.Data()[k] = lo + (hi-lo)*rng.Float64()
	}

	return m
}

// weighted reduces v to a scalar with fixed random weights so that every
// output entry receives a distinct upstream gradient.
func weighted(t testing.TB, v *autograd.Var, seed int64) *autograd.Var {
	t.Helper()
	w := autograd.Const(randDense(t, v.Rows(), v.Cols(), -1, 1, seed))
	p, err := autograd.Mul(v, w)
	require.NoError(t, err)

	return autograd.Sum(p)
}

// checkGradients compares Backward against central finite differences of f
// for every entry of every param.
func checkGradients(t *testing.T, params []*autograd.Var, f func() (*autograd.Var, error)) {
	t.Helper()
	for _, p := range params {
		p.ZeroGrad()
	}
	loss, err := f()
	require.NoError(t, err)
	require.NoError(t, autograd.Backward(loss))

	eval := func() float64 {
		var out float64
		require.NoError(t, autograd.NoGrad(func() error {
			v, err := f()
			if err != nil {
				return err
			}
			out = v.Item()
			return nil
		}))
		return out
	}

	for pi, p := range params {
		data := p.Value.Data()
		for k := range data {
			orig := data[k]
			data[k] = orig + fdStep
			up := eval()
			data[k] = orig - fdStep
			down := eval()
			data[k] = orig

			numeric := (up - down) / (2 * fdStep)
			require.InDeltaf(t, numeric, p.Grad.Data()[k], fdTol,
				"param %d entry %d: numeric %g analytic %g", pi, k, numeric, p.Grad.Data()[k])
		}
	}
}
