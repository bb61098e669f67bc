// SPDX-License-Identifier: MIT

// Package rng provides the process-wide RandomState threaded into every
// stochastic operation (latent sampling, weight initialisation).
//
// A single PCG source backs both math/rand/v2 draws and gonum distuv
// distributions, so one seed reproduces a whole run.
package rng

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/katalvlaran/causalid/matrix"
)

// streamSalt decorrelates the PCG stream word from the seed.
const streamSalt = 0x9e3779b97f4a7c15

// RandomState is a seeded random source. Not safe for concurrent use.
type RandomState struct {
	src  *rand.PCG
	rand *rand.Rand
	seed uint64
}

// New returns a RandomState seeded with seed.
func New(seed uint64) *RandomState {
	src := rand.NewPCG(seed, seed^streamSalt)

	return &RandomState{src: src, rand: rand.New(src), seed: seed}
}

// Seed returns the seed the state was created with.
func (s *RandomState) Seed() uint64 { return s.seed }

// Rand exposes the underlying generator.
func (s *RandomState) Rand() *rand.Rand { return s.rand }

// Source exposes the shared source for gonum distributions.
func (s *RandomState) Source() rand.Source { return s.src }

// Normal returns a N(mu, sigma²) distribution drawing from this state.
func (s *RandomState) Normal(mu, sigma float64) distuv.Normal {
	return distuv.Normal{Mu: mu, Sigma: sigma, Src: s.src}
}

// Uniform returns a U[lo, hi) distribution drawing from this state.
func (s *RandomState) Uniform(lo, hi float64) distuv.Uniform {
	return distuv.Uniform{Min: lo, Max: hi, Src: s.src}
}

// FillUniform overwrites m with U[lo, hi) samples in row-major order.
func (s *RandomState) FillUniform(m *matrix.Dense, lo, hi float64) {
	u := s.Uniform(lo, hi)
	data := m.Data()
	for k := range data {
		data[k] = u.Rand()
	}
}

// FillNormal overwrites m with N(mu, sigma²) samples in row-major order.
func (s *RandomState) FillNormal(m *matrix.Dense, mu, sigma float64) {
	n := s.Normal(mu, sigma)
	data := m.Data()
	for k := range data {
		data[k] = n.Rand()
	}
}

// Perm returns a random permutation of [0, n).
func (s *RandomState) Perm(n int) []int { return s.rand.Perm(n) }
