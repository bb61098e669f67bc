// SPDX-License-Identifier: MIT

package sinkhorn

import (
	"fmt"
	"math"

	"github.com/katalvlaran/causalid/autograd"
	"github.com/katalvlaran/causalid/matrix"
)

// Option configures an Operator.
type Option func(*Operator)

// WithStableExp toggles the log-domain iteration. Row and column sums are
// then taken as max-shifted log-sum-exp, so exp never overflows and no
// column collapses to 0/0. The result equals the plain iteration whenever
// the latter stays finite. Enabled by default.
func WithStableExp(enabled bool) Option {
	return func(o *Operator) { o.stable = enabled }
}

// Operator is a pure function of its input; it holds no iteration state.
type Operator struct {
	numSteps int
	stable   bool
}

// NewOperator validates numSteps and applies options.
// Errors: ErrInvalidSteps when numSteps < 1.
func NewOperator(numSteps int, opts ...Option) (*Operator, error) {
	if numSteps < 1 {
		return nil, fmt.Errorf("numSteps=%d: %w", numSteps, ErrInvalidSteps)
	}
	o := &Operator{numSteps: numSteps, stable: true}
	for _, opt := range opts {
		opt(o)
	}

	return o, nil
}

// NumSteps returns the iteration count k.
func (o *Operator) NumSteps() int { return o.numSteps }

// Stable reports whether the log-domain iteration is used.
func (o *Operator) Stable() bool { return o.stable }

// Apply returns Sinkhorn(m) for a square m.
//
// Implementation:
//   - Plain: S = exp(m); repeat k times S ← S / rowsum(S), S ← S / colsum(S).
//   - Stable: L = m; repeat k times L ← L - lse_row(L), L ← L - lse_col(L);
//     S = exp(L).
//
// Complexity: O(k·n²).
func (o *Operator) Apply(m *autograd.Var) (*autograd.Var, error) {
	if m == nil || m.Value == nil {
		return nil, fmt.Errorf("sinkhorn: %w", autograd.ErrNilVar)
	}
	if err := matrix.ValidateSquare(m.Value); err != nil {
		return nil, fmt.Errorf("sinkhorn: %w", err)
	}
	if o.stable {
		return o.applyLog(m)
	}

	var err error
	S := autograd.Exp(m)
	for step := 0; step < o.numSteps; step++ {
		if S, err = combine(S, autograd.RowSums(S), autograd.Div); err != nil {
			return nil, err
		}
		if S, err = combine(S, autograd.ColSums(S), autograd.Div); err != nil {
			return nil, err
		}
	}

	return S, nil
}

func (o *Operator) applyLog(m *autograd.Var) (*autograd.Var, error) {
	L := m
	for step := 0; step < o.numSteps; step++ {
		lse, err := logSumExpRows(L)
		if err != nil {
			return nil, err
		}
		if L, err = combine(L, lse, autograd.Sub); err != nil {
			return nil, err
		}
		if lse, err = logSumExpRows(autograd.Transpose(L)); err != nil {
			return nil, err
		}
		if L, err = combine(L, autograd.Transpose(lse), autograd.Sub); err != nil {
			return nil, err
		}
	}

	return autograd.Exp(L), nil
}

// logSumExpRows returns log Σ_j exp(L[i,j]) as an r×1 vector, shifting by
// the (constant) row maximum.
func logSumExpRows(L *autograd.Var) (*autograd.Var, error) {
	r, c := L.Rows(), L.Cols()
	hi, _ := matrix.NewDense(r, 1)
	src, dst := L.Value.Data(), hi.Data()
	for i := 0; i < r; i++ {
		dst[i] = math.Inf(-1)
		for _, v := range src[i*c : (i+1)*c] {
			dst[i] = math.Max(dst[i], v)
		}
	}
	shift := autograd.Const(hi)
	shifted, err := combine(L, shift, autograd.Sub)
	if err != nil {
		return nil, err
	}
	lse, err := autograd.Add(autograd.Log(autograd.RowSums(autograd.Exp(shifted))), shift)
	if err != nil {
		return nil, fmt.Errorf("sinkhorn: %w", err)
	}

	return lse, nil
}

// combine broadcasts v to S's shape and applies op(S, v).
func combine(S, v *autograd.Var, op func(a, b *autograd.Var) (*autograd.Var, error)) (*autograd.Var, error) {
	b, err := autograd.BroadcastTo(v, S.Rows(), S.Cols())
	if err != nil {
		return nil, fmt.Errorf("sinkhorn: %w", err)
	}
	out, err := op(S, b)
	if err != nil {
		return nil, fmt.Errorf("sinkhorn: %w", err)
	}

	return out, nil
}
