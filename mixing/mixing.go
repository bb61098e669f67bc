// SPDX-License-Identifier: MIT

// Package mixing provides the ground-truth decoder: a linear structural
// equation model x = P·A·z with A unit lower-triangular and P an optional
// row permutation of the observations.
//
// Because the model is linear its Jacobian is the mixing matrix itself, so
// GroundTruth is exact rather than estimated.
package mixing

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/katalvlaran/causalid/matrix"
	"github.com/katalvlaran/causalid/rng"
)

// Decoder defaults.
const (
	DefaultEdgeDensity = 1.0
	DefaultWeightScale = 1.0
	// triEps is the tolerance for treating an entry as structurally zero.
	triEps = 1e-12
)

var (
	// ErrNotTriangular is returned when a supplied mixing matrix has a
	// nonzero strictly-upper entry.
	ErrNotTriangular = errors.New("mixing: mixing matrix must be lower-triangular")

	// ErrInvalidDensity is returned for an edge density outside [0, 1].
	ErrInvalidDensity = errors.New("mixing: edge density must be in [0, 1]")
)

// Option configures NewRandom.
type Option func(*config)

type config struct {
	permute bool
	density float64
	scale   float64
	logger  *slog.Logger
}

// WithPermute shuffles the observation order with a random permutation.
func WithPermute(on bool) Option { return func(c *config) { c.permute = on } }

// WithEdgeDensity keeps each strictly-lower entry with probability p.
func WithEdgeDensity(p float64) Option { return func(c *config) { c.density = p } }

// WithWeightScale draws strictly-lower entries from U(±scale).
func WithWeightScale(scale float64) Option { return func(c *config) { c.scale = scale } }

// WithLogger sets the logger for numerical warnings.
func WithLogger(l *slog.Logger) Option { return func(c *config) { c.logger = l } }

// Decoder is a fixed linear SEM.
type Decoder struct {
	mixing  *matrix.Dense // A
	perm    []int
	permute *matrix.Dense // P, nil when not permuted
	logger  *slog.Logger
}

// NewRandom draws A with unit diagonal and U(±scale) strictly-lower entries,
// each kept with the configured density.
// Errors: ErrInvalidDensity, matrix.ErrInvalidDimensions.
func NewRandom(dim int, rs *rng.RandomState, opts ...Option) (*Decoder, error) {
	cfg := config{density: DefaultEdgeDensity, scale: DefaultWeightScale, logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.density < 0 || cfg.density > 1 {
		return nil, fmt.Errorf("mixing.NewRandom: density=%g: %w", cfg.density, ErrInvalidDensity)
	}
	A, err := matrix.NewIdentity(dim)
	if err != nil {
		return nil, fmt.Errorf("mixing.NewRandom: %w", err)
	}
	u := rs.Uniform(-cfg.scale, cfg.scale)
	r := rs.Rand()
	for i := 1; i < dim; i++ {
		for j := 0; j < i; j++ {
			w := u.Rand()
			if r.Float64() >= cfg.density {
				w = 0
			}
			_ = A.Set(i, j, w)
		}
	}
	var perm []int
	if cfg.permute {
		perm = rs.Perm(dim)
	}

	return newDecoder(A, perm, cfg.logger)
}

// New wraps a given lower-triangular A and optional permutation.
// Errors: ErrNotTriangular, matrix.ErrNonSquare, matrix.ErrBadPermutation.
func New(A *matrix.Dense, perm []int, opts ...Option) (*Decoder, error) {
	cfg := config{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if A == nil {
		return nil, fmt.Errorf("mixing.New: %w", matrix.ErrNilMatrix)
	}
	if A.Rows() != A.Cols() {
		return nil, fmt.Errorf("mixing.New: %w", matrix.ErrNonSquare)
	}
	if !matrix.IsLowerTriangular(A, triEps) {
		return nil, fmt.Errorf("mixing.New: %w", ErrNotTriangular)
	}

	return newDecoder(A.Clone(), perm, cfg.logger)
}

func newDecoder(A *matrix.Dense, perm []int, logger *slog.Logger) (*Decoder, error) {
	d := &Decoder{mixing: A, logger: logger}
	if perm != nil {
		if len(perm) != A.Rows() {
			return nil, fmt.Errorf("mixing: permutation length %d for dim %d: %w", len(perm), A.Rows(), matrix.ErrBadPermutation)
		}
		P, err := matrix.PermutationFromIndices(perm)
		if err != nil {
			return nil, fmt.Errorf("mixing: %w", err)
		}
		d.perm = append([]int(nil), perm...)
		d.permute = P
	}

	return d, nil
}

// Dim returns the number of latent variables.
func (d *Decoder) Dim() int { return d.mixing.Rows() }

// Mixing returns a copy of A.
func (d *Decoder) Mixing() *matrix.Dense { return d.mixing.Clone() }

// Permutation returns the observation permutation, or nil.
func (d *Decoder) Permutation() []int {
	if d.perm == nil {
		return nil
	}

	return append([]int(nil), d.perm...)
}

// Decode maps latents z (d×n) to observations P·A·z.
func (d *Decoder) Decode(z *matrix.Dense) (*matrix.Dense, error) {
	x, err := matrix.Mul(d.mixing, z)
	if err != nil {
		return nil, fmt.Errorf("mixing.Decode: %w", err)
	}
	if d.permute == nil {
		return x, nil
	}

	return matrix.PermuteRows(x, d.perm)
}

// GroundTruth holds the exact Jacobians of a Decoder.
type GroundTruth struct {
	// DecoderPermuted is ∂x/∂z including the observation permutation (P·A).
	DecoderPermuted *matrix.Dense
	// Decoder is ∂x/∂z with the permutation undone (A).
	Decoder *matrix.Dense
	// Encoder is tril(A⁻¹), the Jacobian a perfect encoder must learn.
	Encoder *matrix.Dense
	// UsedPinv reports that A was singular and the pseudo-inverse was used.
	UsedPinv bool
}

// GroundTruth returns the decoder and encoder Jacobians. A singular mixing
// matrix falls back to the SVD pseudo-inverse with a warning.
func (d *Decoder) GroundTruth() (GroundTruth, error) {
	permuted := d.mixing.Clone()
	if d.permute != nil {
		var err error
		if permuted, err = matrix.PermuteRows(d.mixing, d.perm); err != nil {
			return GroundTruth{}, fmt.Errorf("mixing.GroundTruth: %w", err)
		}
	}
	unpermuted := permuted
	if d.perm != nil {
		var err error
		if unpermuted, err = matrix.PermuteRows(permuted, matrix.ArgSort(d.perm)); err != nil {
			return GroundTruth{}, fmt.Errorf("mixing.GroundTruth: %w", err)
		}
	}
	inv, usedPinv, err := matrix.InverseOrPinv(unpermuted)
	if err != nil {
		return GroundTruth{}, fmt.Errorf("mixing.GroundTruth: %w", err)
	}
	if usedPinv {
		d.logger.Warn("decoder jacobian is singular, using pseudo-inverse", "dim", d.Dim())
	}

	return GroundTruth{
		DecoderPermuted: permuted,
		Decoder:         unpermuted,
		Encoder:         matrix.Tril(inv, 0),
		UsedPinv:        usedPinv,
	}, nil
}
