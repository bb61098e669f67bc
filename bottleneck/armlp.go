// SPDX-License-Identifier: MIT

package bottleneck

import (
	"fmt"
	"log/slog"

	"github.com/katalvlaran/causalid/autograd"
	"github.com/katalvlaran/causalid/device"
	"github.com/katalvlaran/causalid/matrix"
	"github.com/katalvlaran/causalid/rng"
)

// ARMLP defaults.
const (
	DefaultNumWeights = 5
	DefaultGain       = 1.0
)

// InjectPolicy selects the neutral factors Inject places after V.
type InjectPolicy int

const (
	// InjectTrilOnes fills the remaining slots with tril(ones). The product
	// equals V for lower-triangular V and tril(V) otherwise.
	InjectTrilOnes InjectPolicy = iota
	// InjectOnes fills the remaining slots with ones, so the product equals V
	// for any V.
	InjectOnes
)

// String implements fmt.Stringer.
func (p InjectPolicy) String() string {
	switch p {
	case InjectTrilOnes:
		return "tril_ones"
	case InjectOnes:
		return "ones"
	default:
		return "unknown"
	}
}

// Option configures an ARMLP.
type Option func(*ARMLP)

// WithNumWeights sets the stack length. Validated by NewARMLP.
func WithNumWeights(n int) Option { return func(a *ARMLP) { a.numWeights = n } }

// WithTriangular toggles the lower-triangular mask.
func WithTriangular(on bool) Option { return func(a *ARMLP) { a.triangular = on } }

// WithResidual toggles the learnable diagonal scaling (triangular mode only).
func WithResidual(on bool) Option { return func(a *ARMLP) { a.residual = on } }

// WithBudget enables the budget mask with the given options.
func WithBudget(on bool, opts ...BudgetOption) Option {
	return func(a *ARMLP) {
		a.budget = on
		a.budgetOpts = opts
	}
}

// WithWeightInit selects the stack initialiser.
func WithWeightInit(kind WeightInit) Option { return func(a *ARMLP) { a.init = kind } }

// WithGain sets the initialiser gain (the sparsity level for InitSparse).
func WithGain(gain float64) Option { return func(a *ARMLP) { a.gain = gain } }

// WithInjectPolicy selects the neutral factors used by Inject.
func WithInjectPolicy(p InjectPolicy) Option { return func(a *ARMLP) { a.policy = p } }

// WithLogger sets the logger for structural events.
func WithLogger(l *slog.Logger) Option { return func(a *ARMLP) { a.logger = l } }

// ARMLP is the autoregressive bottleneck: forward(x) = T(W)·P(x), where W
// is the assembled weight, T the transform strategy and P the permutation.
type ARMLP struct {
	numVars    int
	numWeights int
	triangular bool
	residual   bool
	budget     bool
	budgetOpts []BudgetOption
	init       WeightInit
	gain       float64
	policy     InjectPolicy

	stack       WeightStack
	scaling     *autograd.Var
	budgetNet   *BudgetNet
	transform   Transform
	permutation Permutation

	logger *slog.Logger
	device string
}

// NewARMLP builds the weight stack from rs.
//
// Implementation:
//   - Stage 1: apply options over defaults (5 weights, triangular, gain 1).
//   - Stage 2: draw every slot with the initialiser; in triangular mode
//     keep tril(·, 0), or tril(·, -1) when residual.
//   - Stage 3: residual+triangular adds a ones-initialised scaling vector;
//     budget adds a BudgetNet.
//
// Errors: ErrNumWeights, ErrUnknownInit, matrix.ErrInvalidDimensions.
func NewARMLP(numVars int, rs *rng.RandomState, opts ...Option) (*ARMLP, error) {
	a := &ARMLP{
		numVars:     numVars,
		numWeights:  DefaultNumWeights,
		triangular:  true,
		gain:        DefaultGain,
		transform:   IdentityTransform{},
		permutation: IdentityPermutation{},
		logger:      slog.Default(),
		device:      device.CPU,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.numWeights < 1 {
		return nil, bottleneckErrorf("NewARMLP", fmt.Errorf("numWeights=%d: %w", a.numWeights, ErrNumWeights))
	}
	kind, err := ParseWeightInit(string(a.init))
	if err != nil {
		return nil, bottleneckErrorf("NewARMLP", err)
	}
	a.init = kind

	k := 0
	if a.residual {
		k = -1
	}
	slots := make([]*matrix.Dense, a.numWeights)
	for i := range slots {
		w, err := initWeight(a.init, numVars, a.gain, rs)
		if err != nil {
			return nil, bottleneckErrorf("NewARMLP", err)
		}
		if a.triangular {
			w = matrix.Tril(w, k)
		}
		slots[i] = w
	}
	stack, err := NewWeightStack(slots...)
	if err != nil {
		return nil, err
	}
	a.stack = stack

	if a.residual && a.triangular {
		ones, _ := matrix.NewOnes(numVars, 1)
		a.scaling = autograd.Param(ones)
	}
	if a.budget {
		if a.budgetNet, err = NewBudgetNet(numVars, a.budgetOpts...); err != nil {
			return nil, err
		}
	}

	return a, nil
}

// NumVars returns d.
func (a *ARMLP) NumVars() int { return a.numVars }

// Triangular reports whether the lower-triangular mask is active.
func (a *ARMLP) Triangular() bool { return a.triangular }

// Residual reports whether the diagonal scaling is active.
func (a *ARMLP) Residual() bool { return a.residual }

// Stack returns the current weight stack.
func (a *ARMLP) Stack() WeightStack { return a.stack }

// Transform returns the active transform strategy.
func (a *ARMLP) Transform() Transform { return a.transform }

// Permutation returns the active permutation strategy.
func (a *ARMLP) Permutation() Permutation { return a.permutation }

// BudgetNet returns the budget mask, or nil when disabled.
func (a *ARMLP) BudgetNet() *BudgetNet { return a.budgetNet }

// AssembledWeight returns the current weight view, recomputed on each call:
// product of the stack, plus diag(scaling) when residual and triangular,
// then tril when triangular, then the budget mask when enabled.
func (a *ARMLP) AssembledWeight() (*autograd.Var, error) {
	w, err := a.stack.Product()
	if err != nil {
		return nil, err
	}
	if a.residual && a.triangular && a.scaling != nil {
		diag, err := autograd.Diag(a.scaling)
		if err != nil {
			return nil, bottleneckErrorf("AssembledWeight", err)
		}
		if w, err = autograd.Add(w, diag); err != nil {
			return nil, bottleneckErrorf("AssembledWeight", err)
		}
	}
	if a.triangular {
		w = autograd.Tril(w, 0)
	}
	if a.budget && a.budgetNet != nil {
		mask, err := a.budgetNet.Mask()
		if err != nil {
			return nil, err
		}
		if w, err = autograd.Mul(w, mask); err != nil {
			return nil, bottleneckErrorf("AssembledWeight", err)
		}
	}

	return w, nil
}

// Inject replaces the stack with [V, neutral, …] and returns the new stack.
// The swap happens only after the whole stack is built.
// Errors: ErrShape when V is not d×d.
func (a *ARMLP) Inject(V *matrix.Dense) (WeightStack, error) {
	if err := matrix.ValidateSquare(V); err != nil {
		return WeightStack{}, bottleneckErrorf("Inject", err)
	}
	if V.Rows() != a.numVars {
		return WeightStack{}, bottleneckErrorf("Inject", ErrShape)
	}
	neutral, err := matrix.NewOnes(a.numVars, a.numVars)
	if err != nil {
		return WeightStack{}, bottleneckErrorf("Inject", err)
	}
	if a.policy == InjectTrilOnes {
		neutral = matrix.Tril(neutral, 0)
	}
	slots := make([]*matrix.Dense, a.numWeights)
	slots[0] = V
	for i := 1; i < len(slots); i++ {
		slots[i] = neutral
	}
	stack, err := NewWeightStack(slots...)
	if err != nil {
		return WeightStack{}, err
	}
	a.stack = stack

	return stack, nil
}

// InjectStructure masks the assembled weight with |adj| > 0 when enabled.
// The mask is a constant: it adds no parameters and receives no gradient.
func (a *ARMLP) InjectStructure(adj *matrix.Dense, enabled bool) error {
	if !enabled {
		return nil
	}
	if err := matrix.ValidateSquare(adj); err != nil {
		return bottleneckErrorf("InjectStructure", err)
	}
	if adj.Rows() != a.numVars {
		return bottleneckErrorf("InjectStructure", ErrShape)
	}
	mask, err := matrix.NonZeroMask(adj, 0)
	if err != nil {
		return bottleneckErrorf("InjectStructure", err)
	}
	a.transform = NewMaskedMultiply(mask)
	a.logger.Info("injected structural mask", "mask", mask.ToRows())

	return nil
}

// MakeTriangularWithPermute switches to triangular, non-residual mode with
// the identity transform, injects tri and fixes the input permutation.
func (a *ARMLP) MakeTriangularWithPermute(tri, permute *matrix.Dense) error {
	if err := matrix.ValidateSquare(permute); err != nil {
		return bottleneckErrorf("MakeTriangularWithPermute", err)
	}
	if permute.Rows() != a.numVars {
		return bottleneckErrorf("MakeTriangularWithPermute", ErrShape)
	}
	if _, err := a.Inject(tri); err != nil {
		return err
	}
	a.triangular = true
	a.residual = false
	a.transform = IdentityTransform{}
	a.permutation = NewPermutationMultiply(permute)
	a.logger.Info("bottleneck locked to triangular structure",
		"residual", a.residual, "transform", a.transform.Name())

	return nil
}

// Forward returns T(W)·P(x) for x of shape d×n.
func (a *ARMLP) Forward(x *autograd.Var) (*autograd.Var, error) {
	if x == nil || x.Value == nil {
		return nil, bottleneckErrorf("ARMLP.Forward", autograd.ErrNilVar)
	}
	if x.Rows() != a.numVars {
		return nil, bottleneckErrorf("ARMLP.Forward", fmt.Errorf("rows=%d want %d: %w", x.Rows(), a.numVars, ErrShape))
	}
	w, err := a.AssembledWeight()
	if err != nil {
		return nil, err
	}
	if w, err = a.transform.Apply(w); err != nil {
		return nil, err
	}
	px, err := a.permutation.Apply(x)
	if err != nil {
		return nil, err
	}
	out, err := autograd.MatMul(w, px)
	if err != nil {
		return nil, bottleneckErrorf("ARMLP.Forward", err)
	}

	return out, nil
}

// Params lists stack slots, the scaling vector and budget logits when present.
func (a *ARMLP) Params() []*autograd.Var {
	ps := a.stack.Params()
	if a.residual && a.triangular && a.scaling != nil {
		ps = append(ps, a.scaling)
	}
	if a.budget && a.budgetNet != nil {
		ps = append(ps, a.budgetNet.Params()...)
	}

	return ps
}

// Device returns the current placement.
func (a *ARMLP) Device() string { return a.device }

// To moves the stack, scaling, permutation and budget mask together.
// Only the CPU is supported; an unsupported target moves nothing.
func (a *ARMLP) To(dev string) error {
	if err := device.Validate(dev); err != nil {
		return bottleneckErrorf("ARMLP.To", err)
	}
	a.device = device.CPU

	return nil
}
