// SPDX-License-Identifier: MIT

// Package optim holds first-order optimizers over autograd parameters.
package optim

import (
	"errors"
	"math"

	"github.com/katalvlaran/causalid/autograd"
)

// Default Adam hyper-parameters.
const (
	DefaultBeta1   = 0.9
	DefaultBeta2   = 0.999
	DefaultEpsilon = 1e-8
)

// ErrInvalidHyperParam reports a β outside [0,1) or a non-positive ε.
var ErrInvalidHyperParam = errors.New("optim: invalid hyper-parameter")

// Option configures an Adam optimizer.
type Option func(*Adam)

// WithBetas overrides the moment decay rates. Panics outside [0,1).
func WithBetas(beta1, beta2 float64) Option {
	if beta1 < 0 || beta1 >= 1 || beta2 < 0 || beta2 >= 1 {
		panic(ErrInvalidHyperParam)
	}

	return func(a *Adam) { a.beta1, a.beta2 = beta1, beta2 }
}

// WithEpsilon overrides the denominator guard. Panics if eps <= 0.
func WithEpsilon(eps float64) Option {
	if eps <= 0 {
		panic(ErrInvalidHyperParam)
	}

	return func(a *Adam) { a.eps = eps }
}

// Adam implements the bias-corrected Adam update. A new Adam starts with
// zero moments, so replacing the optimizer discards all momentum.
type Adam struct {
	params []*autograd.Var
	lr     float64
	beta1  float64
	beta2  float64
	eps    float64

	m, v [][]float64
	t    int
}

// NewAdam allocates moment buffers for params.
func NewAdam(params []*autograd.Var, lr float64, opts ...Option) *Adam {
	a := &Adam{
		params: params,
		lr:     lr,
		beta1:  DefaultBeta1,
		beta2:  DefaultBeta2,
		eps:    DefaultEpsilon,
		m:      make([][]float64, len(params)),
		v:      make([][]float64, len(params)),
	}
	for _, opt := range opts {
		opt(a)
	}
	for i, p := range params {
		a.m[i] = make([]float64, p.Value.Len())
		a.v[i] = make([]float64, p.Value.Len())
	}

	return a
}

// Params returns the optimized parameters.
func (a *Adam) Params() []*autograd.Var { return a.params }

// Steps returns the number of updates applied so far.
func (a *Adam) Steps() int { return a.t }

// LearningRate returns the step size.
func (a *Adam) LearningRate() float64 { return a.lr }

// ZeroGrad clears every parameter gradient.
func (a *Adam) ZeroGrad() {
	for _, p := range a.params {
		p.ZeroGrad()
	}
}

// Step applies one update using the gradients accumulated by Backward.
// Parameters without a gradient buffer are skipped.
func (a *Adam) Step() {
	a.t++
	b1Corr := 1.0 - math.Pow(a.beta1, float64(a.t))
	b2Corr := 1.0 - math.Pow(a.beta2, float64(a.t))

	for i, p := range a.params {
		if p.Grad == nil {
			continue
		}
		data, grad := p.Value.Data(), p.Grad.Data()
		mi, vi := a.m[i], a.v[i]
		for j := range data {
			g := grad[j]
			mi[j] = a.beta1*mi[j] + (1-a.beta1)*g
			vi[j] = a.beta2*vi[j] + (1-a.beta2)*(g*g)
			mhat := mi[j] / b1Corr
			vhat := vi[j] / b2Corr
			data[j] -= a.lr * mhat / (math.Sqrt(vhat) + a.eps)
		}
	}
}
