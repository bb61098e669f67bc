// SPDX-License-Identifier: MIT

// Package jacobian estimates the encoder's dependency structure by central
// finite differences and turns it into the dependency loss.
//
// The encoder Jacobian is taken through Forward, so the dependency loss is
// a differentiable function of the encoder's parameters. The
// encoder∘decoder Jacobian is a plain numerical diagnostic.
package jacobian

import (
	"errors"
	"fmt"

	"github.com/katalvlaran/causalid/autograd"
	"github.com/katalvlaran/causalid/matrix"
)

// Defaults.
const (
	DefaultStep    = 1e-3
	DefaultSamples = 100
)

// ErrInvalidOption is returned for a non-positive step or sample count.
var ErrInvalidOption = errors.New("jacobian: step and samples must be positive")

// Encoder is the differentiable map observations → latents.
type Encoder interface {
	Forward(x *autograd.Var) (*autograd.Var, error)
}

// Decoder maps latents to observations.
type Decoder interface {
	Decode(z *matrix.Dense) (*matrix.Dense, error)
}

// Sampler draws latents, d×n.
type Sampler interface {
	SampleMarginal(n int) (*matrix.Dense, error)
}

// Result bundles one Jacobian evaluation.
type Result struct {
	// DepLoss is mean |strictly-upper entries| of the dependency matrix.
	DepLoss *autograd.Var
	// DepMat[i][j] is the sample mean of |∂enc_i/∂x_j|; it carries the graph
	// behind DepLoss.
	DepMat *autograd.Var
	// NumericalJacobian is the signed sample mean of ∂enc/∂x.
	NumericalJacobian *matrix.Dense
	// EncDecJacobian is the signed sample mean of ∂enc(dec(z))/∂z.
	EncDecJacobian *matrix.Dense
}

// Option configures Calc.
type Option func(*config)

type config struct {
	step    float64
	samples int
}

// WithStep sets the finite-difference step h.
func WithStep(h float64) Option { return func(c *config) { c.step = h } }

// WithSamples sets the number of latent draws the Jacobians average over.
func WithSamples(n int) Option { return func(c *config) { c.samples = n } }

// Calc draws latents from s, decodes them and differentiates enc at the
// observations.
//
// Implementation:
//   - Stage 1: z ~ s, x = dec(z).
//   - Stage 2: for every input j, run enc on x ± h·e_j; column j of the
//     per-sample Jacobian is the central difference.
//   - Stage 3: DepMat averages |·| over samples, NumericalJacobian averages
//     the signed values; DepLoss reads DepMat's strictly-upper triangle.
//   - Stage 4: the same differences of enc∘dec at z, without a graph.
//
// Errors: ErrInvalidOption and any encoder, decoder or sampler error.
func Calc(enc Encoder, dec Decoder, s Sampler, opts ...Option) (Result, error) {
	cfg := config{step: DefaultStep, samples: DefaultSamples}
	for _, opt := range opts {
		opt(&cfg)
	}
	if !(cfg.step > 0) || cfg.samples < 1 {
		return Result{}, fmt.Errorf("jacobian.Calc: step=%g samples=%d: %w", cfg.step, cfg.samples, ErrInvalidOption)
	}

	z, err := s.SampleMarginal(cfg.samples)
	if err != nil {
		return Result{}, fmt.Errorf("jacobian.Calc: %w", err)
	}
	x, err := dec.Decode(z)
	if err != nil {
		return Result{}, fmt.Errorf("jacobian.Calc: %w", err)
	}

	depMat, signed, err := encoderJacobian(enc, x, cfg.step)
	if err != nil {
		return Result{}, fmt.Errorf("jacobian.Calc: %w", err)
	}
	encDec, err := encDecJacobian(enc, dec, z, cfg.step)
	if err != nil {
		return Result{}, fmt.Errorf("jacobian.Calc: %w", err)
	}

	return Result{
		DepLoss:           DepLoss(depMat),
		DepMat:            depMat,
		NumericalJacobian: signed,
		EncDecJacobian:    encDec,
	}, nil
}

// DepLoss returns the mean absolute strictly-upper entry of m (over all d²
// entries), which is zero exactly when m is lower-triangular.
func DepLoss(m *autograd.Var) *autograd.Var {
	return autograd.Mean(autograd.Abs(autograd.Transpose(autograd.Tril(autograd.Transpose(m), -1))))
}

// shifted returns x with row j moved by delta.
func shifted(x *matrix.Dense, j int, delta float64) *matrix.Dense {
	out := x.Clone()
	out.Apply(func(i, _ int, v float64) float64 {
		if i == j {
			return v + delta
		}
		return v
	})

	return out
}

// unitRow returns the 1×d row vector e_j.
func unitRow(d, j int) *matrix.Dense {
	e, _ := matrix.NewDense(1, d)
	_ = e.Set(0, j, 1)

	return e
}

func encoderJacobian(enc Encoder, x *matrix.Dense, h float64) (*autograd.Var, *matrix.Dense, error) {
	d, n := x.Shape()
	signed, err := matrix.NewDense(d, d)
	if err != nil {
		return nil, nil, err
	}
	var dep *autograd.Var
	for j := 0; j < d; j++ {
		up, err := enc.Forward(autograd.Const(shifted(x, j, h)))
		if err != nil {
			return nil, nil, err
		}
		down, err := enc.Forward(autograd.Const(shifted(x, j, -h)))
		if err != nil {
			return nil, nil, err
		}
		diff, err := autograd.Sub(up, down)
		if err != nil {
			return nil, nil, err
		}
		// d×n per-sample derivatives of every output w.r.t. input j.
		grad := autograd.Scale(diff, 1/(2*h))
		for i := 0; i < d; i++ {
			var sum float64
			row, _ := grad.Value.RawRow(i)
			for _, v := range row {
				sum += v
			}
			_ = signed.Set(i, j, sum/float64(n))
		}

		col := autograd.Scale(autograd.RowSums(autograd.Abs(grad)), 1/float64(n))
		placed, err := autograd.MatMul(col, autograd.Const(unitRow(d, j)))
		if err != nil {
			return nil, nil, err
		}
		if dep == nil {
			dep = placed
			continue
		}
		if dep, err = autograd.Add(dep, placed); err != nil {
			return nil, nil, err
		}
	}

	return dep, signed, nil
}

func encDecJacobian(enc Encoder, dec Decoder, z *matrix.Dense, h float64) (*matrix.Dense, error) {
	d, n := z.Shape()
	out, err := matrix.NewDense(d, d)
	if err != nil {
		return nil, err
	}
	eval := func(zz *matrix.Dense) (*matrix.Dense, error) {
		xx, err := dec.Decode(zz)
		if err != nil {
			return nil, err
		}
		var y *matrix.Dense
		err = autograd.NoGrad(func() error {
			v, err := enc.Forward(autograd.Const(xx))
			if err != nil {
				return err
			}
			y = v.Value
			return nil
		})
		return y, err
	}
	for j := 0; j < d; j++ {
		up, err := eval(shifted(z, j, h))
		if err != nil {
			return nil, err
		}
		down, err := eval(shifted(z, j, -h))
		if err != nil {
			return nil, err
		}
		diff, err := matrix.Sub(up, down)
		if err != nil {
			return nil, err
		}
		for i := 0; i < d; i++ {
			row, _ := diff.RawRow(i)
			var sum float64
			for _, v := range row {
				sum += v
			}
			_ = out.Set(i, j, sum/(2*h*float64(n)))
		}
	}

	return out, nil
}
