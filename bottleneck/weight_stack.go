// SPDX-License-Identifier: MIT

package bottleneck

import (
	"github.com/katalvlaran/causalid/autograd"
	"github.com/katalvlaran/causalid/matrix"
)

// WeightStack is an ordered, immutable sequence of d×d trainable factors.
// The slot values are updated in place by the optimizer; the sequence
// itself is only ever replaced as a whole.
type WeightStack struct {
	slots []*autograd.Var
}

// NewWeightStack wraps copies of ms as trainable slots.
// Errors: ErrNumWeights for an empty list, matrix errors for non-square or
// mismatched slots.
func NewWeightStack(ms ...*matrix.Dense) (WeightStack, error) {
	if len(ms) == 0 {
		return WeightStack{}, bottleneckErrorf("NewWeightStack", ErrNumWeights)
	}
	slots := make([]*autograd.Var, len(ms))
	for i, m := range ms {
		if err := matrix.ValidateSquare(m); err != nil {
			return WeightStack{}, bottleneckErrorf("NewWeightStack", err)
		}
		if err := matrix.ValidateSameShape(ms[0], m); err != nil {
			return WeightStack{}, bottleneckErrorf("NewWeightStack", err)
		}
		slots[i] = autograd.Param(m.Clone())
	}

	return WeightStack{slots: slots}, nil
}

// Len returns the number of slots.
func (s WeightStack) Len() int { return len(s.slots) }

// Slot returns the i-th factor.
func (s WeightStack) Slot(i int) *autograd.Var { return s.slots[i] }

// Params returns the slots; the returned slice is a copy.
func (s WeightStack) Params() []*autograd.Var {
	return append([]*autograd.Var(nil), s.slots...)
}

// Product returns slot₀ ⊙ slot₁ ⊙ … as a differentiable node.
func (s WeightStack) Product() (*autograd.Var, error) {
	if len(s.slots) == 0 {
		return nil, bottleneckErrorf("Product", ErrNumWeights)
	}
	w := s.slots[0]
	for _, slot := range s.slots[1:] {
		var err error
		if w, err = autograd.Mul(w, slot); err != nil {
			return nil, bottleneckErrorf("Product", err)
		}
	}

	return w, nil
}
