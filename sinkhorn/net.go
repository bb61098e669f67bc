// SPDX-License-Identifier: MIT

package sinkhorn

import (
	"fmt"
	"math"

	"github.com/katalvlaran/causalid/autograd"
	"github.com/katalvlaran/causalid/device"
	"github.com/katalvlaran/causalid/matrix"
	"github.com/katalvlaran/causalid/rng"
)

// entropyEps keeps S·log S finite where S underflows to zero.
const entropyEps = 1e-12

// Net is the permutation learner: a learnable dim×dim weight W relaxed into
// Sinkhorn(W/τ).
type Net struct {
	weight      *autograd.Var
	operator    *Operator
	temperature float64
	device      string
}

// NewNet initialises W ~ U(-1/√dim, 1/√dim) from rs.
// Errors: ErrInvalidSteps, ErrInvalidTemperature, matrix.ErrInvalidDimensions.
func NewNet(dim, numSteps int, temperature float64, rs *rng.RandomState, opts ...Option) (*Net, error) {
	op, err := NewOperator(numSteps, opts...)
	if err != nil {
		return nil, err
	}
	if !(temperature > 0) {
		return nil, fmt.Errorf("temperature=%g: %w", temperature, ErrInvalidTemperature)
	}
	w, err := matrix.NewDense(dim, dim)
	if err != nil {
		return nil, fmt.Errorf("sinkhorn: %w", err)
	}
	bound := 1 / math.Sqrt(float64(dim))
	rs.FillUniform(w, -bound, bound)

	return &Net{weight: autograd.Param(w), operator: op, temperature: temperature, device: device.CPU}, nil
}

// DoublyStochasticMatrix returns Sinkhorn(W/τ), recomputed on every call.
func (n *Net) DoublyStochasticMatrix() (*autograd.Var, error) {
	return n.operator.Apply(autograd.Scale(n.weight, 1/n.temperature))
}

// Entropy returns -(1/d)·Σ S log S of the current doubly-stochastic matrix.
func (n *Net) Entropy() (*autograd.Var, error) {
	S, err := n.DoublyStochasticMatrix()
	if err != nil {
		return nil, err
	}
	plogp, err := autograd.Mul(S, autograd.Log(autograd.AddScalar(S, entropyEps)))
	if err != nil {
		return nil, fmt.Errorf("sinkhorn: %w", err)
	}

	return autograd.Scale(autograd.Sum(plogp), -1/float64(S.Rows())), nil
}

// Temperature returns τ.
func (n *Net) Temperature() float64 { return n.temperature }

// SetTemperature changes τ for subsequent calls.
func (n *Net) SetTemperature(tau float64) error {
	if !(tau > 0) {
		return fmt.Errorf("temperature=%g: %w", tau, ErrInvalidTemperature)
	}
	n.temperature = tau

	return nil
}

// Weight returns the learnable matrix W.
func (n *Net) Weight() *autograd.Var { return n.weight }

// Params lists the trainable parameters.
func (n *Net) Params() []*autograd.Var { return []*autograd.Var{n.weight} }

// Device returns the current placement.
func (n *Net) Device() string { return n.device }

// To moves the net to dev. Only the CPU is supported.
func (n *Net) To(dev string) error {
	if err := device.Validate(dev); err != nil {
		return fmt.Errorf("sinkhorn: %w", err)
	}
	n.device = device.CPU

	return nil
}
