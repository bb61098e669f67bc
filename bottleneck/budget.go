// SPDX-License-Identifier: MIT

package bottleneck

import (
	"fmt"
	"math"

	"github.com/katalvlaran/causalid/autograd"
	"github.com/katalvlaran/causalid/matrix"
)

// Budget-mask defaults.
const (
	DefaultBudgetFraction    = 0.5
	DefaultBudgetTemperature = 1.0
	DefaultBudgetInitLogit   = 3.0
	budgetEps                = 1e-12
)

// BudgetOption configures a BudgetNet.
type BudgetOption func(*BudgetNet)

// WithBudgetEdges sets the maximum number of active entries. Panics if negative.
func WithBudgetEdges(edges float64) BudgetOption {
	if edges < 0 {
		panic(fmt.Sprintf("bottleneck: budget edges must be non-negative, got %g", edges))
	}

	return func(b *BudgetNet) { b.edges = edges }
}

// WithBudgetTemperature sets the sigmoid temperature. Panics if not positive.
func WithBudgetTemperature(tau float64) BudgetOption {
	if !(tau > 0) {
		panic(fmt.Sprintf("bottleneck: budget temperature must be positive, got %g", tau))
	}

	return func(b *BudgetNet) { b.temperature = tau }
}

// WithHardMask makes Mask return a 0/1 mask with straight-through gradients.
func WithHardMask(hard bool) BudgetOption {
	return func(b *BudgetNet) { b.hard = hard }
}

// BudgetNet learns a soft 0/1 mask over the lower triangle (diagonal
// included) of the bottleneck weight, limited to a budget of active edges.
type BudgetNet struct {
	numVars     int
	logits      *autograd.Var
	support     *matrix.Dense
	edges       float64
	temperature float64
	hard        bool
}

// NewBudgetNet allocates logits initialised to DefaultBudgetInitLogit, so
// the mask starts almost fully on. The default budget is
// DefaultBudgetFraction of the lower-triangular entries.
func NewBudgetNet(numVars int, opts ...BudgetOption) (*BudgetNet, error) {
	logits, err := matrix.NewDense(numVars, numVars)
	if err != nil {
		return nil, bottleneckErrorf("NewBudgetNet", err)
	}
	logits.Fill(DefaultBudgetInitLogit)
	support, _ := matrix.TrilMask(numVars, numVars, 0)
	b := &BudgetNet{
		numVars:     numVars,
		logits:      autograd.Param(logits),
		support:     support,
		edges:       DefaultBudgetFraction * float64(numVars*(numVars+1)/2),
		temperature: DefaultBudgetTemperature,
	}
	for _, opt := range opts {
		opt(b)
	}

	return b, nil
}

// probabilities returns sigmoid(L/τ) restricted to the lower triangle.
func (b *BudgetNet) probabilities() (*autograd.Var, error) {
	p, err := autograd.Mul(autograd.Sigmoid(autograd.Scale(b.logits, 1/b.temperature)), autograd.Const(b.support))
	if err != nil {
		return nil, bottleneckErrorf("BudgetNet", err)
	}

	return p, nil
}

// Mask returns the current mask (soft, or hard with straight-through
// gradients).
func (b *BudgetNet) Mask() (*autograd.Var, error) {
	p, err := b.probabilities()
	if err != nil {
		return nil, err
	}
	if !b.hard {
		return p, nil
	}
	hard := p.Value.Clone()
	hard.Apply(func(_, _ int, v float64) float64 {
		if v > 0.5 {
			return 1
		}
		return 0
	})

	return autograd.StraightThrough(p, hard)
}

// BudgetLoss returns max(0, Σp − B)² / d².
func (b *BudgetNet) BudgetLoss() (*autograd.Var, error) {
	p, err := b.probabilities()
	if err != nil {
		return nil, err
	}
	total := autograd.Sum(p)
	if total.Item() <= b.edges {
		return autograd.Scalar(0), nil
	}
	d2 := float64(b.numVars * b.numVars)

	return autograd.Scale(autograd.Square(autograd.AddScalar(total, -b.edges)), 1/d2), nil
}

// Entropy returns the mean binary entropy of the mask probabilities over
// the lower triangle.
func (b *BudgetNet) Entropy() (*autograd.Var, error) {
	p, err := b.probabilities()
	if err != nil {
		return nil, err
	}
	q := autograd.AddScalar(autograd.Scale(p, -1), 1)
	pl, err := autograd.Mul(p, autograd.Log(autograd.AddScalar(p, budgetEps)))
	if err != nil {
		return nil, bottleneckErrorf("BudgetNet", err)
	}
	ql, err := autograd.Mul(q, autograd.Log(autograd.AddScalar(q, budgetEps)))
	if err != nil {
		return nil, bottleneckErrorf("BudgetNet", err)
	}
	h, err := autograd.Add(pl, ql)
	if err != nil {
		return nil, bottleneckErrorf("BudgetNet", err)
	}
	// Entries outside the support have p = 0, q = 1 and contribute 0.
	count := matrix.Sum(b.support)

	return autograd.Scale(autograd.Sum(h), -1/count), nil
}

// ActiveEdges returns the number of lower-triangular entries whose
// probability exceeds 0.5.
func (b *BudgetNet) ActiveEdges() int {
	var n int
	logits, support := b.logits.Value.Data(), b.support.Data()
	for k, l := range logits {
		if support[k] > 0 && 1/(1+math.Exp(-l/b.temperature)) > 0.5 {
			n++
		}
	}

	return n
}

// Edges returns the budget B.
func (b *BudgetNet) Edges() float64 { return b.edges }

// Params lists the trainable logits.
func (b *BudgetNet) Params() []*autograd.Var { return []*autograd.Var{b.logits} }
