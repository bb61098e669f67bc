// SPDX-License-Identifier: MIT

package bottleneck

import (
	"github.com/katalvlaran/causalid/autograd"
	"github.com/katalvlaran/causalid/matrix"
)

// Transform post-processes the assembled weight before it is applied.
type Transform interface {
	Apply(w *autograd.Var) (*autograd.Var, error)
	Name() string
}

// Permutation reorders the inputs before the linear map.
type Permutation interface {
	Apply(x *autograd.Var) (*autograd.Var, error)
	// Matrix returns the permutation matrix, or nil for the identity.
	Matrix() *matrix.Dense
}

// IdentityTransform leaves the weight untouched.
type IdentityTransform struct{}

func (IdentityTransform) Apply(w *autograd.Var) (*autograd.Var, error) { return w, nil }
func (IdentityTransform) Name() string                                { return "identity" }

// MaskedMultiply multiplies the weight element-wise by a frozen 0/1 mask.
type MaskedMultiply struct {
	mask *matrix.Dense
}

// NewMaskedMultiply copies mask.
func NewMaskedMultiply(mask *matrix.Dense) MaskedMultiply {
	return MaskedMultiply{mask: mask.Clone()}
}

func (t MaskedMultiply) Apply(w *autograd.Var) (*autograd.Var, error) {
	out, err := autograd.Mul(w, autograd.Const(t.mask))
	if err != nil {
		return nil, bottleneckErrorf("MaskedMultiply", err)
	}

	return out, nil
}

func (MaskedMultiply) Name() string { return "masked" }

// Mask returns a copy of the structural mask.
func (t MaskedMultiply) Mask() *matrix.Dense { return t.mask.Clone() }

// IdentityPermutation keeps the input order.
type IdentityPermutation struct{}

func (IdentityPermutation) Apply(x *autograd.Var) (*autograd.Var, error) { return x, nil }
func (IdentityPermutation) Matrix() *matrix.Dense                      { return nil }

// PermutationMultiply left-multiplies the input by a fixed matrix.
type PermutationMultiply struct {
	p *matrix.Dense
}

// NewPermutationMultiply copies p.
func NewPermutationMultiply(p *matrix.Dense) PermutationMultiply {
	return PermutationMultiply{p: p.Clone()}
}

func (t PermutationMultiply) Apply(x *autograd.Var) (*autograd.Var, error) {
	out, err := autograd.MatMul(autograd.Const(t.p), x)
	if err != nil {
		return nil, bottleneckErrorf("PermutationMultiply", err)
	}

	return out, nil
}

func (t PermutationMultiply) Matrix() *matrix.Dense { return t.p.Clone() }
