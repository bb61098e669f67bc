// SPDX-License-Identifier: MIT

package structure

import (
	"fmt"
	"log/slog"

	"github.com/katalvlaran/causalid/autograd"
	"github.com/katalvlaran/causalid/matrix"
)

// Term names, in fold order.
const (
	TermL2            = "l2"
	TermL1            = "l1"
	TermEntropy       = "entropy"
	TermDep           = "dep"
	TermTriangularity = "triangularity"
	TermQR            = "qr"
	TermBudget        = "budget"
	TermBudgetEntropy = "budget_entropy"
)

// qrLogEvery is the step interval at which the extracted Q is logged.
const qrLogEvery = 250

// Model is the encoder surface the structural terms read from.
// *bottleneck.Net satisfies it.
type Model interface {
	Params() []*autograd.Var
	BottleneckL1Norm() (*autograd.Var, error)
	AssembledWeight() (*autograd.Var, error)
	DoublyStochasticMatrix() (*autograd.Var, error)
	SinkhornEntropy() (*autograd.Var, error)
	BudgetLoss() (*autograd.Var, error)
	BudgetEntropy() (*autograd.Var, error)
}

// Coefficients are the loss weights and gates. A zero weight disables its
// term.
type Coefficients struct {
	L2            float64
	L1            float64
	QR            float64
	Triangularity float64
	Entropy       float64
	Budget        float64

	// StartStep delays the triangularity and qr terms; nil means from step 1.
	StartStep *int

	ARActive            bool
	PermutationLearning bool
	Sinkhorn            bool
	CholeskyPermutation bool
	TowardIdentity      bool
}

// Started reports whether step has reached StartStep.
func (c Coefficients) Started(step int) bool {
	return c.StartStep == nil || step >= *c.StartStep
}

// View is one contrastive view: the decoded observation and the encoder's
// reconstruction of it, both variables × samples.
type View struct {
	Observed      *matrix.Dense
	Reconstructed *autograd.Var
}

// Step carries the per-step inputs of the structural terms.
type Step struct {
	Step    int
	DepLoss *autograd.Var // nil when no dependency loss is available
	DepMat  *autograd.Var // differentiable dependency matrix, used when the AR bottleneck is off
	Views   []View
}

// Term is one gated contribution Weight·Compute() to the total loss.
type Term struct {
	Name    string
	Enabled bool
	Weight  float64
	Compute func() (*autograd.Var, error)
}

// Breakdown maps term names to their weighted contribution. Disabled terms
// map to 0.
type Breakdown map[string]float64

// Option configures an Assembler.
type Option func(*Assembler)

// WithLogger sets the logger used for periodic Q dumps.
func WithLogger(l *slog.Logger) Option { return func(a *Assembler) { a.logger = l } }

// Assembler folds the structural terms for a Model.
type Assembler struct {
	model  Model
	coeffs Coefficients
	logger *slog.Logger
}

// NewAssembler binds coeffs to model.
func NewAssembler(model Model, coeffs Coefficients, opts ...Option) (*Assembler, error) {
	if model == nil {
		return nil, ErrNilModel
	}
	a := &Assembler{model: model, coeffs: coeffs, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}

	return a, nil
}

// Coefficients returns the bound weights and gates.
func (a *Assembler) Coefficients() Coefficients { return a.coeffs }

// SetModel rebinds the assembler, e.g. after an encoder reset.
func (a *Assembler) SetModel(m Model) error {
	if m == nil {
		return ErrNilModel
	}
	a.model = m

	return nil
}

// Terms lists every structural term for s with its gate resolved.
func (a *Assembler) Terms(s Step) []Term {
	c := a.coeffs
	started := c.Started(s.Step)

	return []Term{
		{Name: TermL2, Enabled: c.L2 != 0, Weight: c.L2, Compute: a.l2},
		{Name: TermL1, Enabled: c.L1 != 0 && c.ARActive, Weight: c.L1, Compute: a.model.BottleneckL1Norm},
		{Name: TermEntropy, Enabled: c.Entropy != 0 && c.PermutationLearning, Weight: c.Entropy, Compute: a.model.SinkhornEntropy},
		{Name: TermDep, Enabled: s.DepLoss != nil, Weight: 1, Compute: func() (*autograd.Var, error) { return s.DepLoss, nil }},
		{Name: TermTriangularity, Enabled: c.Triangularity != 0 && started, Weight: c.Triangularity, Compute: func() (*autograd.Var, error) {
			return a.triangularity(s.Views)
		}},
		{Name: TermQR, Enabled: c.QR != 0 && started, Weight: c.QR, Compute: func() (*autograd.Var, error) {
			return a.qr(s)
		}},
		{Name: TermBudget, Enabled: c.Budget != 0 && c.ARActive, Weight: c.Budget, Compute: a.model.BudgetLoss},
		{Name: TermBudgetEntropy, Enabled: c.Budget != 0 && c.ARActive && c.Entropy != 0, Weight: c.Entropy, Compute: a.model.BudgetEntropy},
	}
}

// Assemble returns base + Σ Weight·Compute() over the enabled terms of s,
// together with each term's weighted value.
//
// Errors: the first term failure, tagged with the term name.
func (a *Assembler) Assemble(base *autograd.Var, s Step) (*autograd.Var, Breakdown, error) {
	if base == nil {
		return nil, nil, fmt.Errorf("structure.Assemble: %w", autograd.ErrNilVar)
	}
	total := base
	terms := a.Terms(s)
	out := make(Breakdown, len(terms))
	for _, t := range terms {
		out[t.Name] = 0
		if !t.Enabled {
			continue
		}
		v, err := t.Compute()
		if err != nil {
			return nil, nil, termErrorf(t.Name, err)
		}
		weighted := autograd.Scale(v, t.Weight)
		if total, err = autograd.Add(total, weighted); err != nil {
			return nil, nil, termErrorf(t.Name, err)
		}
		out[t.Name] = weighted.Item()
	}

	return total, out, nil
}

func (a *Assembler) l2() (*autograd.Var, error) {
	acc := autograd.Scalar(0)
	for _, p := range a.model.Params() {
		var err error
		if acc, err = autograd.Add(acc, autograd.Sum(autograd.Square(p))); err != nil {
			return nil, err
		}
	}

	return acc, nil
}

func (a *Assembler) triangularity(views []View) (*autograd.Var, error) {
	acc := autograd.Scalar(0)
	for _, v := range views {
		c, err := CorrMatrix(autograd.Const(v.Observed), v.Reconstructed)
		if err != nil {
			return nil, err
		}
		fd, err := FrobeniusDiagonality(autograd.Abs(c))
		if err != nil {
			return nil, err
		}
		if acc, err = autograd.Add(acc, fd); err != nil {
			return nil, err
		}
	}

	return acc, nil
}

// structuralMatrix picks J: the assembled weight (times the doubly
// stochastic matrix under Sinkhorn) when the AR bottleneck is active, the
// dependency matrix otherwise.
func (a *Assembler) structuralMatrix(s Step) (*autograd.Var, error) {
	if !a.coeffs.ARActive {
		if s.DepMat == nil {
			return nil, ErrNoStructure
		}
		return s.DepMat, nil
	}
	w, err := a.model.AssembledWeight()
	if err != nil {
		return nil, err
	}
	if !a.coeffs.Sinkhorn {
		return w, nil
	}
	dsm, err := a.model.DoublyStochasticMatrix()
	if err != nil {
		return nil, err
	}

	return autograd.MatMul(w, dsm)
}

func (a *Assembler) qr(s Step) (*autograd.Var, error) {
	J, err := a.structuralMatrix(s)
	if err != nil {
		return nil, err
	}
	method := autograd.Householder
	if a.coeffs.CholeskyPermutation {
		method = autograd.CholeskyGram
	}
	Q, err := ExtractPermutation(J, method)
	if err != nil {
		return nil, err
	}
	if s.Step%qrLogEvery == 0 {
		a.logger.Debug("extracted permutation", "step", s.Step, "method", method.String(), "q", Q.Value.String())
	}

	return PermutationLoss(Q, a.coeffs.TowardIdentity)
}
