// SPDX-License-Identifier: MIT

// Package latent samples contrastive triples from a latent space.
//
// Samples are d×n matrices: latent variables in rows, draws in columns.
// Every draw takes its randomness from an explicit rng.RandomState.
package latent

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/katalvlaran/causalid/matrix"
)

// Kind names a latent space geometry.
type Kind string

const (
	// Box is the axis-aligned cube [Min, Max]^d.
	Box Kind = "box"
	// Sphere is the (d-1)-sphere of radius R.
	Sphere Kind = "sphere"
	// Real is unbounded R^d.
	Real Kind = "real"
)

// Space defaults.
const (
	DefaultBoxMin       = 0.0
	DefaultBoxMax       = 1.0
	DefaultSphereRadius = 1.0
)

var (
	// ErrUnknownSpace is returned for an unrecognised space name.
	ErrUnknownSpace = errors.New("latent: unknown space")

	// ErrInvalidSpace is returned for a degenerate geometry.
	ErrInvalidSpace = errors.New("latent: invalid space parameters")
)

// ParseKind maps a name (any case) to a Kind.
func ParseKind(name string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(name))); k {
	case Box, Sphere, Real:
		return k, nil
	}

	return "", fmt.Errorf("%q: %w", name, ErrUnknownSpace)
}

// Space is a latent geometry of dimension Dim.
type Space struct {
	Kind Kind
	Dim  int
	Min  float64 // Box only
	Max  float64 // Box only
	R    float64 // Sphere only
}

// NewBox returns [lo, hi]^dim.
func NewBox(dim int, lo, hi float64) (Space, error) {
	if dim < 1 || !(hi > lo) {
		return Space{}, fmt.Errorf("box dim=%d [%g, %g]: %w", dim, lo, hi, ErrInvalidSpace)
	}

	return Space{Kind: Box, Dim: dim, Min: lo, Max: hi}, nil
}

// NewSphere returns the sphere of radius r in R^dim.
func NewSphere(dim int, r float64) (Space, error) {
	if dim < 1 || !(r > 0) {
		return Space{}, fmt.Errorf("sphere dim=%d r=%g: %w", dim, r, ErrInvalidSpace)
	}

	return Space{Kind: Sphere, Dim: dim, R: r}, nil
}

// NewReal returns R^dim.
func NewReal(dim int) (Space, error) {
	if dim < 1 {
		return Space{}, fmt.Errorf("real dim=%d: %w", dim, ErrInvalidSpace)
	}

	return Space{Kind: Real, Dim: dim}, nil
}

// Contains reports whether every column of x lies in the space, with
// tolerance eps on the sphere radius.
func (s Space) Contains(x *matrix.Dense, eps float64) bool {
	if x == nil || x.Rows() != s.Dim {
		return false
	}
	switch s.Kind {
	case Box:
		for _, v := range x.Data() {
			if v < s.Min || v > s.Max {
				return false
			}
		}
	case Sphere:
		for j := 0; j < x.Cols(); j++ {
			if math.Abs(columnNorm(x, j)-s.R) > eps {
				return false
			}
		}
	}

	return true
}

// project maps x into the space in place: clamping into the box or
// rescaling each column onto the sphere.
func (s Space) project(x *matrix.Dense) {
	switch s.Kind {
	case Box:
		x.Apply(func(_, _ int, v float64) float64 { return math.Min(s.Max, math.Max(s.Min, v)) })
	case Sphere:
		norms := make([]float64, x.Cols())
		for j := range norms {
			norms[j] = columnNorm(x, j)
		}
		x.Apply(func(_, j int, v float64) float64 {
			if norms[j] == 0 {
				return v
			}
			return v * s.R / norms[j]
		})
	}
}

func columnNorm(x *matrix.Dense, j int) float64 {
	var ss float64
	for i := 0; i < x.Rows(); i++ {
		v, _ := x.At(i, j)
		ss += v * v
	}

	return math.Sqrt(ss)
}
