// SPDX-License-Identifier: MIT

package latent

import (
	"errors"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/katalvlaran/causalid/matrix"
	"github.com/katalvlaran/causalid/rng"
)

// Marginal names the marginal distribution on a Real space.
type Marginal string

const (
	// Normal draws N(0, 1) per coordinate.
	Normal Marginal = "normal"
	// Laplace draws Laplace(0, 1) per coordinate.
	Laplace Marginal = "laplace"
)

// Sampler defaults.
const (
	DefaultConditionalSigma = 0.05
	maxRejects              = 64
)

var (
	// ErrUnknownMarginal is returned for an unrecognised marginal name.
	ErrUnknownMarginal = errors.New("latent: unknown marginal")

	// ErrBatchSize is returned for a non-positive batch size.
	ErrBatchSize = errors.New("latent: batch size must be positive")
)

// ParseMarginal maps a name (any case) to a Marginal.
func ParseMarginal(name string) (Marginal, error) {
	switch m := Marginal(strings.ToLower(strings.TrimSpace(name))); m {
	case Normal, Laplace:
		return m, nil
	}

	return "", fmt.Errorf("%q: %w", name, ErrUnknownMarginal)
}

// Triple is one contrastive sample: Positive is drawn conditionally on
// Anchor, Negative independently of both.
type Triple struct {
	Anchor, Positive, Negative *matrix.Dense
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithConditionalSigma sets the standard deviation of the positive's
// perturbation. Panics if not positive.
func WithConditionalSigma(sigma float64) Option {
	if !(sigma > 0) {
		panic(fmt.Sprintf("latent: conditional sigma must be positive, got %g", sigma))
	}

	return func(s *Sampler) { s.sigma = sigma }
}

// WithMarginal selects the Real-space marginal.
func WithMarginal(m Marginal) Option { return func(s *Sampler) { s.marginal = m } }

// Sampler draws marginal samples and contrastive triples from a Space.
type Sampler struct {
	space    Space
	rs       *rng.RandomState
	sigma    float64
	marginal Marginal
}

// NewSampler binds space to rs.
// Errors: ErrInvalidSpace, ErrUnknownMarginal.
func NewSampler(space Space, rs *rng.RandomState, opts ...Option) (*Sampler, error) {
	if space.Dim < 1 {
		return nil, fmt.Errorf("latent.NewSampler: %w", ErrInvalidSpace)
	}
	s := &Sampler{space: space, rs: rs, sigma: DefaultConditionalSigma, marginal: Normal}
	for _, opt := range opts {
		opt(s)
	}
	m, err := ParseMarginal(string(s.marginal))
	if err != nil {
		return nil, fmt.Errorf("latent.NewSampler: %w", err)
	}
	s.marginal = m

	return s, nil
}

// Space returns the sampled space.
func (s *Sampler) Space() Space { return s.space }

// Dim returns the latent dimension.
func (s *Sampler) Dim() int { return s.space.Dim }

// SampleMarginal draws n independent points.
//
// Box draws uniformly. Sphere normalises standard-normal draws, which is
// uniform on the sphere. Real uses the configured marginal.
func (s *Sampler) SampleMarginal(n int) (*matrix.Dense, error) {
	if n < 1 {
		return nil, fmt.Errorf("latent.SampleMarginal: n=%d: %w", n, ErrBatchSize)
	}
	x, err := matrix.NewDense(s.space.Dim, n)
	if err != nil {
		return nil, fmt.Errorf("latent.SampleMarginal: %w", err)
	}
	switch s.space.Kind {
	case Box:
		s.rs.FillUniform(x, s.space.Min, s.space.Max)
	case Sphere:
		s.rs.FillNormal(x, 0, 1)
		s.space.project(x)
	default:
		if s.marginal == Laplace {
			l := distuv.Laplace{Mu: 0, Scale: 1, Src: s.rs.Source()}
			data := x.Data()
			for k := range data {
				data[k] = l.Rand()
			}
		} else {
			s.rs.FillNormal(x, 0, 1)
		}
	}

	return x, nil
}

// SampleConditional perturbs every column of anchor with N(0, σ²) noise and
// maps the result back into the space. In a Box, out-of-range coordinates
// are redrawn (a truncated normal) and clamped if that keeps failing.
func (s *Sampler) SampleConditional(anchor *matrix.Dense) (*matrix.Dense, error) {
	if anchor == nil {
		return nil, fmt.Errorf("latent.SampleConditional: %w", matrix.ErrNilMatrix)
	}
	if anchor.Rows() != s.space.Dim {
		return nil, fmt.Errorf("latent.SampleConditional: rows=%d want %d: %w",
			anchor.Rows(), s.space.Dim, matrix.ErrDimensionMismatch)
	}
	noise := s.rs.Normal(0, s.sigma)
	out := anchor.Clone()
	data := out.Data()
	for k, a := range data {
		v := a + noise.Rand()
		if s.space.Kind == Box {
			for try := 0; try < maxRejects && (v < s.space.Min || v > s.space.Max); try++ {
				v = a + noise.Rand()
			}
		}
		data[k] = v
	}
	s.space.project(out)

	return out, nil
}

// Sample draws a contrastive triple of batch size n.
func (s *Sampler) Sample(n int) (Triple, error) {
	anchor, err := s.SampleMarginal(n)
	if err != nil {
		return Triple{}, err
	}
	pos, err := s.SampleConditional(anchor)
	if err != nil {
		return Triple{}, err
	}
	neg, err := s.SampleMarginal(n)
	if err != nil {
		return Triple{}, err
	}

	return Triple{Anchor: anchor, Positive: pos, Negative: neg}, nil
}

// Distance returns the mean Euclidean distance between matching columns of
// a and b.
func Distance(a, b *matrix.Dense) (float64, error) {
	diff, err := matrix.Sub(a, b)
	if err != nil {
		return 0, fmt.Errorf("latent.Distance: %w", err)
	}
	var total float64
	for j := 0; j < diff.Cols(); j++ {
		total += columnNorm(diff, j)
	}

	return total / float64(diff.Cols()), nil
}
