// SPDX-License-Identifier: MIT

package bottleneck

import (
	"fmt"
	"math"

	"github.com/katalvlaran/causalid/autograd"
	"github.com/katalvlaran/causalid/device"
	"github.com/katalvlaran/causalid/matrix"
	"github.com/katalvlaran/causalid/rng"
)

// LeakySlope is the negative slope of the feature activation.
const LeakySlope = 0.25

// FeatureMLP applies an independent linear map (+ bias, + activation) to
// each variable's feature vector. Weight w[k][j] is a d×1 column holding
// the k←j coefficient of every variable.
type FeatureMLP struct {
	numVars       int
	in, out       int
	weights       [][]*autograd.Var
	biases        []*autograd.Var
	forceIdentity bool
	device        string
}

// NewFeatureMLP draws weights and biases from U(±1/√in).
// Errors: ErrFeatureWidth for non-positive widths.
func NewFeatureMLP(numVars, in, out int, bias, forceIdentity bool, rs *rng.RandomState) (*FeatureMLP, error) {
	if in < 1 || out < 1 {
		return nil, bottleneckErrorf("NewFeatureMLP", fmt.Errorf("in=%d out=%d: %w", in, out, ErrFeatureWidth))
	}
	bound := 1 / math.Sqrt(float64(in))
	draw := func() (*autograd.Var, error) {
		m, err := matrix.NewDense(numVars, 1)
		if err != nil {
			return nil, bottleneckErrorf("NewFeatureMLP", err)
		}
		rs.FillUniform(m, -bound, bound)
		return autograd.Param(m), nil
	}

	f := &FeatureMLP{numVars: numVars, in: in, out: out, forceIdentity: forceIdentity, device: device.CPU}
	f.weights = make([][]*autograd.Var, out)
	for k := range f.weights {
		f.weights[k] = make([]*autograd.Var, in)
		for j := range f.weights[k] {
			w, err := draw()
			if err != nil {
				return nil, err
			}
			f.weights[k][j] = w
		}
	}
	if bias {
		f.biases = make([]*autograd.Var, out)
		for k := range f.biases {
			b, err := draw()
			if err != nil {
				return nil, err
			}
			f.biases[k] = b
		}
	}

	return f, nil
}

// In returns the input feature width.
func (f *FeatureMLP) In() int { return f.in }

// Out returns the output feature width.
func (f *FeatureMLP) Out() int { return f.out }

// Device returns the placement of the layer's weights and biases.
func (f *FeatureMLP) Device() string { return f.device }

// To moves the weights and biases. An unsupported target moves nothing.
func (f *FeatureMLP) To(dev string) error {
	if err := device.Validate(dev); err != nil {
		return bottleneckErrorf("FeatureMLP.To", err)
	}
	f.device = device.CPU

	return nil
}

// Forward maps in channels of shape d×n to out channels.
// Errors: ErrShape when the channel count or any channel shape is wrong.
func (f *FeatureMLP) Forward(channels []*autograd.Var) ([]*autograd.Var, error) {
	if len(channels) != f.in {
		return nil, bottleneckErrorf("FeatureMLP.Forward", fmt.Errorf("got %d channels want %d: %w", len(channels), f.in, ErrShape))
	}
	n := channels[0].Cols()
	for _, ch := range channels {
		if ch.Rows() != f.numVars || ch.Cols() != n {
			return nil, bottleneckErrorf("FeatureMLP.Forward", ErrShape)
		}
	}

	outs := make([]*autograd.Var, f.out)
	for k := 0; k < f.out; k++ {
		var acc *autograd.Var
		for j, ch := range channels {
			term, err := f.scaleRows(f.weights[k][j], ch)
			if err != nil {
				return nil, err
			}
			if acc == nil {
				acc = term
				continue
			}
			if acc, err = autograd.Add(acc, term); err != nil {
				return nil, bottleneckErrorf("FeatureMLP.Forward", err)
			}
		}
		if f.biases != nil {
			b, err := autograd.BroadcastTo(f.biases[k], f.numVars, n)
			if err != nil {
				return nil, bottleneckErrorf("FeatureMLP.Forward", err)
			}
			if acc, err = autograd.Add(acc, b); err != nil {
				return nil, bottleneckErrorf("FeatureMLP.Forward", err)
			}
		}
		if !f.forceIdentity {
			acc = autograd.LeakyReLU(acc, LeakySlope)
		}
		outs[k] = acc
	}

	return outs, nil
}

// scaleRows multiplies row i of x by w[i].
func (f *FeatureMLP) scaleRows(w, x *autograd.Var) (*autograd.Var, error) {
	b, err := autograd.BroadcastTo(w, x.Rows(), x.Cols())
	if err != nil {
		return nil, bottleneckErrorf("FeatureMLP.Forward", err)
	}
	out, err := autograd.Mul(b, x)
	if err != nil {
		return nil, bottleneckErrorf("FeatureMLP.Forward", err)
	}

	return out, nil
}

// Params lists weights then biases.
func (f *FeatureMLP) Params() []*autograd.Var {
	ps := make([]*autograd.Var, 0, f.in*f.out+len(f.biases))
	for _, row := range f.weights {
		ps = append(ps, row...)
	}

	return append(ps, f.biases...)
}
