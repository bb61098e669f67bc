// SPDX-License-Identifier: MIT

package bottleneck

import (
	"fmt"
	"math"
	"strings"

	"github.com/katalvlaran/causalid/matrix"
	"github.com/katalvlaran/causalid/rng"
)

// WeightInit names a weight initialiser for the ARMLP stack.
type WeightInit string

const (
	// InitNone keeps the linear-layer default U(±1/√d) scaled by gain.
	InitNone WeightInit = ""
	// InitOrthogonal draws a random orthogonal matrix scaled by gain.
	InitOrthogonal WeightInit = "orthogonal"
	// InitXavierNormal draws N(0, gain²·2/(fanIn+fanOut)).
	InitXavierNormal WeightInit = "xavier_normal"
	// InitXavierUniform draws U(±gain·√(6/(fanIn+fanOut))).
	InitXavierUniform WeightInit = "xavier_uniform"
	// InitSparse draws N(0, 0.01²) and zeroes a gain-sized fraction of each column.
	InitSparse WeightInit = "sparse"
)

const sparseStd = 0.01

// ParseWeightInit maps a configuration name onto a WeightInit.
// "" and "none" select InitNone.
// Errors: ErrUnknownInit.
func ParseWeightInit(name string) (WeightInit, error) {
	switch w := WeightInit(strings.ToLower(strings.TrimSpace(name))); w {
	case InitNone, InitOrthogonal, InitXavierNormal, InitXavierUniform, InitSparse:
		return w, nil
	case "none":
		return InitNone, nil
	default:
		return InitNone, fmt.Errorf("%q: %w", name, ErrUnknownInit)
	}
}

// initWeight returns a fresh d×d matrix drawn according to kind.
func initWeight(kind WeightInit, d int, gain float64, rs *rng.RandomState) (*matrix.Dense, error) {
	w, err := matrix.NewDense(d, d)
	if err != nil {
		return nil, err
	}
	fan := float64(d)
	switch kind {
	case InitNone:
		bound := 1 / math.Sqrt(fan)
		rs.FillUniform(w, -bound, bound)
		w.Apply(func(_, _ int, v float64) float64 { return v * gain })
	case InitOrthogonal:
		rs.FillNormal(w, 0, 1)
		q, _, err := matrix.CanonicalQR(w)
		if err != nil {
			return nil, err
		}
		q.Apply(func(_, _ int, v float64) float64 { return v * gain })
		w = q
	case InitXavierNormal:
		rs.FillNormal(w, 0, gain*math.Sqrt(2/(fan+fan)))
	case InitXavierUniform:
		bound := gain * math.Sqrt(6/(fan+fan))
		rs.FillUniform(w, -bound, bound)
	case InitSparse:
		rs.FillNormal(w, 0, sparseStd)
		zeros := int(math.Ceil(math.Min(math.Max(gain, 0), 1) * fan))
		data := w.Data()
		for j := 0; j < d; j++ {
			for _, i := range rs.Perm(d)[:zeros] {
				data[i*d+j] = 0
			}
		}
	default:
		return nil, fmt.Errorf("%q: %w", kind, ErrUnknownInit)
	}

	return w, nil
}
