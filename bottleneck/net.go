// SPDX-License-Identifier: MIT

package bottleneck

import (
	"fmt"

	"github.com/katalvlaran/causalid/autograd"
	"github.com/katalvlaran/causalid/device"
	"github.com/katalvlaran/causalid/matrix"
	"github.com/katalvlaran/causalid/rng"
	"github.com/katalvlaran/causalid/sinkhorn"
)

// Net defaults.
const (
	DefaultSinkhornSteps       = 5
	DefaultSinkhornTemperature = 1e-3
)

// NetOption configures a Net.
type NetOption func(*netConfig)

type netConfig struct {
	pre, post     []int
	bias          bool
	forceIdentity bool
	useSinkhorn   bool
	sinkSteps     int
	sinkTemp      float64
	armlp         []Option
}

// WithFeatures sets the pre- and post-layer feature widths. A list of
// length L yields L-1 FeatureMLP layers; [1] means no layer.
func WithFeatures(pre, post []int) NetOption {
	return func(c *netConfig) {
		c.pre = append([]int(nil), pre...)
		c.post = append([]int(nil), post...)
	}
}

// WithBias toggles feature-layer biases (default on).
func WithBias(on bool) NetOption { return func(c *netConfig) { c.bias = on } }

// WithForceIdentity replaces the feature activations by the identity.
func WithForceIdentity(on bool) NetOption { return func(c *netConfig) { c.forceIdentity = on } }

// WithSinkhorn routes the bottleneck input through the learned
// doubly-stochastic matrix.
func WithSinkhorn(on bool) NetOption { return func(c *netConfig) { c.useSinkhorn = on } }

// WithSinkhornSteps sets the Sinkhorn iteration count.
func WithSinkhornSteps(n int) NetOption { return func(c *netConfig) { c.sinkSteps = n } }

// WithSinkhornTemperature sets τ of the permutation learner.
func WithSinkhornTemperature(tau float64) NetOption {
	return func(c *netConfig) { c.sinkTemp = tau }
}

// WithARMLP forwards options to the bottleneck.
func WithARMLP(opts ...Option) NetOption {
	return func(c *netConfig) { c.armlp = append(c.armlp, opts...) }
}

// Net chains pre feature layers, the optional Sinkhorn permutation, the
// ARMLP and post feature layers.
type Net struct {
	numVars     int
	pre, post   []*FeatureMLP
	ar          *ARMLP
	sinkhorn    *sinkhorn.Net
	useSinkhorn bool
	device      string
}

// NewNet validates the feature contract and builds every sub-module from rs.
//
// Errors:
//   - ErrNoFeatureLayers when both lists are empty.
//   - ErrFeatureWidth when the first pre width or last post width is not 1,
//     or the two lists disagree at the bottleneck.
//   - ARMLP and Sinkhorn configuration errors.
func NewNet(numVars int, rs *rng.RandomState, opts ...NetOption) (*Net, error) {
	cfg := netConfig{
		pre:       []int{1},
		post:      []int{1},
		bias:      true,
		sinkSteps: DefaultSinkhornSteps,
		sinkTemp:  DefaultSinkhornTemperature,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := validateFeatures(cfg.pre, cfg.post); err != nil {
		return nil, bottleneckErrorf("NewNet", err)
	}

	n := &Net{numVars: numVars, useSinkhorn: cfg.useSinkhorn, device: device.CPU}
	var err error
	if n.pre, err = buildLayers(numVars, cfg.pre, cfg, rs); err != nil {
		return nil, err
	}
	if n.ar, err = NewARMLP(numVars, rs, cfg.armlp...); err != nil {
		return nil, err
	}
	if n.sinkhorn, err = sinkhorn.NewNet(numVars, cfg.sinkSteps, cfg.sinkTemp, rs); err != nil {
		return nil, bottleneckErrorf("NewNet", err)
	}
	if n.post, err = buildLayers(numVars, cfg.post, cfg, rs); err != nil {
		return nil, err
	}

	return n, nil
}

func validateFeatures(pre, post []int) error {
	if len(pre) == 0 && len(post) == 0 {
		return ErrNoFeatureLayers
	}
	if len(pre) > 0 && pre[0] != 1 {
		return fmt.Errorf("first feature size should be 1, got %d: %w", pre[0], ErrFeatureWidth)
	}
	if len(post) > 0 && post[len(post)-1] != 1 {
		return fmt.Errorf("last feature size should be 1, got %d: %w", post[len(post)-1], ErrFeatureWidth)
	}
	inner := 1
	if len(pre) > 0 {
		inner = pre[len(pre)-1]
	}
	outer := 1
	if len(post) > 0 {
		outer = post[0]
	}
	if inner != outer {
		return fmt.Errorf("bottleneck width %d vs %d: %w", inner, outer, ErrFeatureWidth)
	}

	return nil
}

func buildLayers(numVars int, feats []int, cfg netConfig, rs *rng.RandomState) ([]*FeatureMLP, error) {
	var layers []*FeatureMLP
	for i := 0; i+1 < len(feats); i++ {
		l, err := NewFeatureMLP(numVars, feats[i], feats[i+1], cfg.bias, cfg.forceIdentity, rs)
		if err != nil {
			return nil, err
		}
		layers = append(layers, l)
	}

	return layers, nil
}

// Forward maps a d×n input to its d×n reconstruction.
func (n *Net) Forward(x *autograd.Var) (*autograd.Var, error) {
	if x == nil || x.Value == nil {
		return nil, bottleneckErrorf("Net.Forward", autograd.ErrNilVar)
	}
	if x.Rows() != n.numVars {
		return nil, bottleneckErrorf("Net.Forward", fmt.Errorf("rows=%d want %d: %w", x.Rows(), n.numVars, ErrShape))
	}
	channels := []*autograd.Var{x}
	var err error
	for _, l := range n.pre {
		if channels, err = l.Forward(channels); err != nil {
			return nil, err
		}
	}

	var dsm *autograd.Var
	if n.useSinkhorn {
		if dsm, err = n.sinkhorn.DoublyStochasticMatrix(); err != nil {
			return nil, err
		}
	}
	for i, ch := range channels {
		if dsm != nil {
			if ch, err = autograd.MatMul(dsm, ch); err != nil {
				return nil, bottleneckErrorf("Net.Forward", err)
			}
		}
		if channels[i], err = n.ar.Forward(ch); err != nil {
			return nil, err
		}
	}

	for _, l := range n.post {
		if channels, err = l.Forward(channels); err != nil {
			return nil, err
		}
	}

	return channels[0], nil
}

// Predict runs Forward without recording a graph.
func (n *Net) Predict(x *matrix.Dense) (*matrix.Dense, error) {
	var out *matrix.Dense
	err := autograd.NoGrad(func() error {
		y, err := n.Forward(autograd.Const(x))
		if err != nil {
			return err
		}
		out = y.Value
		return nil
	})

	return out, err
}

// NumVars returns d.
func (n *Net) NumVars() int { return n.numVars }

// Bottleneck returns the ARMLP.
func (n *Net) Bottleneck() *ARMLP { return n.ar }

// FeatureLayers returns the pre and post feature layers in order.
func (n *Net) FeatureLayers() (pre, post []*FeatureMLP) {
	return append([]*FeatureMLP(nil), n.pre...), append([]*FeatureMLP(nil), n.post...)
}

// Sinkhorn returns the permutation learner.
func (n *Net) Sinkhorn() *sinkhorn.Net { return n.sinkhorn }

// UsesSinkhorn reports whether the learned permutation is applied in Forward.
func (n *Net) UsesSinkhorn() bool { return n.useSinkhorn }

// AssembledWeight returns the bottleneck weight view.
func (n *Net) AssembledWeight() (*autograd.Var, error) { return n.ar.AssembledWeight() }

// BottleneckL1Norm returns mean |assembled weight|.
func (n *Net) BottleneckL1Norm() (*autograd.Var, error) {
	w, err := n.ar.AssembledWeight()
	if err != nil {
		return nil, err
	}

	return autograd.Mean(autograd.Abs(w)), nil
}

// DoublyStochasticMatrix returns the permutation learner's current matrix.
func (n *Net) DoublyStochasticMatrix() (*autograd.Var, error) {
	return n.sinkhorn.DoublyStochasticMatrix()
}

// SinkhornEntropy returns the entropy of the doubly-stochastic matrix.
func (n *Net) SinkhornEntropy() (*autograd.Var, error) { return n.sinkhorn.Entropy() }

// BudgetLoss returns the budget mask's excess penalty.
// Errors: ErrBudgetDisabled.
func (n *Net) BudgetLoss() (*autograd.Var, error) {
	if n.ar.budgetNet == nil {
		return nil, bottleneckErrorf("BudgetLoss", ErrBudgetDisabled)
	}

	return n.ar.budgetNet.BudgetLoss()
}

// BudgetEntropy returns the budget mask's entropy.
// Errors: ErrBudgetDisabled.
func (n *Net) BudgetEntropy() (*autograd.Var, error) {
	if n.ar.budgetNet == nil {
		return nil, bottleneckErrorf("BudgetEntropy", ErrBudgetDisabled)
	}

	return n.ar.budgetNet.Entropy()
}

// Params lists every trainable parameter: pre layers, bottleneck,
// permutation learner, post layers.
func (n *Net) Params() []*autograd.Var {
	var ps []*autograd.Var
	for _, l := range n.pre {
		ps = append(ps, l.Params()...)
	}
	ps = append(ps, n.ar.Params()...)
	ps = append(ps, n.sinkhorn.Params()...)
	for _, l := range n.post {
		ps = append(ps, l.Params()...)
	}

	return ps
}

// Device returns the current placement.
func (n *Net) Device() string { return n.device }

// To moves every sub-module. The target is validated once up front, so a
// failure leaves all of them in place.
func (n *Net) To(dev string) error {
	if err := device.Validate(dev); err != nil {
		return bottleneckErrorf("Net.To", err)
	}
	for _, l := range n.pre {
		if err := l.To(dev); err != nil {
			return err
		}
	}
	if err := n.ar.To(dev); err != nil {
		return err
	}
	if err := n.sinkhorn.To(dev); err != nil {
		return bottleneckErrorf("Net.To", err)
	}
	for _, l := range n.post {
		if err := l.To(dev); err != nil {
			return err
		}
	}
	n.device = dev

	return nil
}
