// SPDX-License-Identifier: MIT

package train

import (
	"fmt"
	"math"
	"strings"

	"github.com/katalvlaran/causalid/bottleneck"
	"github.com/katalvlaran/causalid/device"
	"github.com/katalvlaran/causalid/jacobian"
	"github.com/katalvlaran/causalid/latent"
	"github.com/katalvlaran/causalid/structure"
)

// Mode selects which learning phases run.
type Mode string

const (
	Supervised   Mode = "supervised"
	Unsupervised Mode = "unsupervised"
	Both         Mode = "both"
)

// ParseMode maps a name (any case) onto a Mode.
func ParseMode(name string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(name))); m {
	case Supervised, Unsupervised, Both:
		return m, nil
	}

	return "", fmt.Errorf("train: mode %q: %w", name, ErrUnknownMode)
}

// ---------- Defaults ----------

// Model defaults.
const (
	DefaultNumVars    = 3
	DefaultNumWeights = bottleneck.DefaultNumWeights
	DefaultGain       = bottleneck.DefaultGain
	DefaultTriangular = true
	DefaultResidual   = false
	DefaultBias       = true
)

// Loss defaults. Every structural coefficient starts disabled.
const (
	DefaultL1                = 0.0
	DefaultL2                = 0.0
	DefaultQRLoss            = 0.0
	DefaultTriangularityLoss = 0.0
	DefaultEntropyCoeff      = 0.0
	DefaultBudgetCoeff       = 0.0
	DefaultTau               = 1.0
)

// Schedule defaults.
const (
	DefaultMode             = Unsupervised
	DefaultNSteps           = 5000
	DefaultMoreUnsupervised = 1.0
	DefaultLR               = 1e-4
	DefaultBatchSize        = 6144
	DefaultSeed             = 0
)

// Data defaults.
const (
	DefaultSpace            = latent.Box
	DefaultMarginal         = latent.Normal
	DefaultConditionalSigma = latent.DefaultConditionalSigma
	DefaultEdgeDensity      = 1.0
)

// Logging defaults.
const (
	DefaultNLogSteps       = 250
	DefaultNEvalSamples    = 512
	DefaultNumEvalBatches  = 10
	DefaultJacobianSamples = jacobian.DefaultSamples
	DefaultDepMatThreshold = jacobian.DefaultThreshold
)

// DefaultFeatures is the pre/post feature list that yields no layer.
var DefaultFeatures = []int{1}

// ---------- Config ----------

// Config holds every recognised option. Build it with NewConfig.
type Config struct {
	// model
	NumVars             int
	NumWeights          int
	Triangular          bool
	Residual            bool
	Budget              bool
	WeightInit          bottleneck.WeightInit
	Gain                float64
	InjectPolicy        bottleneck.InjectPolicy
	PreLayerFeats       []int
	PostLayerFeats      []int
	Bias                bool
	ForceIdentity       bool
	Sinkhorn            bool
	SinkhornSteps       int
	SinkhornTemperature float64
	InjectStructure     bool
	Device              string

	// losses
	L1                  float64
	L2                  float64
	QRLoss              float64
	TriangularityLoss   float64
	EntropyCoeff        float64
	BudgetCoeff         float64
	StartStep           *int
	Permute             bool
	CholeskyPermutation bool
	TowardIdentity      bool
	Tau                 float64

	// schedule
	Mode             Mode
	NSteps           int
	MoreUnsupervised float64
	LR               float64
	BatchSize        int
	Seed             uint64
	ResumeTraining   bool

	// data
	Space            latent.Kind
	BoxMin, BoxMax   float64
	SphereR          float64
	Marginal         latent.Marginal
	ConditionalSigma float64
	EdgeDensity      float64

	// logging
	NLogSteps       int
	NEvalSamples    int
	NumEvalBatches  int
	JacobianSamples int
	DepMatThreshold float64
	Verbose         bool
}

// Option mutates a Config. Validation happens once in NewConfig.
type Option func(*Config)

// NewConfig applies opts over the defaults and validates the result.
//
// Implementation:
//   - Stage 1: start from the documented defaults.
//   - Stage 2: apply every option in order (last write wins).
//   - Stage 3: Validate.
//
// Errors: anything Validate returns; all wrap ErrConfiguration.
func NewConfig(opts ...Option) (Config, error) {
	c := Config{
		NumVars:             DefaultNumVars,
		NumWeights:          DefaultNumWeights,
		Triangular:          DefaultTriangular,
		Residual:            DefaultResidual,
		Gain:                DefaultGain,
		InjectPolicy:        bottleneck.InjectTrilOnes,
		PreLayerFeats:       append([]int(nil), DefaultFeatures...),
		PostLayerFeats:      append([]int(nil), DefaultFeatures...),
		Bias:                DefaultBias,
		SinkhornSteps:       bottleneck.DefaultSinkhornSteps,
		SinkhornTemperature: bottleneck.DefaultSinkhornTemperature,
		Device:              device.CPU,
		L1:                  DefaultL1,
		L2:                  DefaultL2,
		QRLoss:              DefaultQRLoss,
		TriangularityLoss:   DefaultTriangularityLoss,
		EntropyCoeff:        DefaultEntropyCoeff,
		BudgetCoeff:         DefaultBudgetCoeff,
		Tau:                 DefaultTau,
		Mode:                DefaultMode,
		NSteps:              DefaultNSteps,
		MoreUnsupervised:    DefaultMoreUnsupervised,
		LR:                  DefaultLR,
		BatchSize:           DefaultBatchSize,
		Seed:                DefaultSeed,
		Space:               DefaultSpace,
		BoxMin:              latent.DefaultBoxMin,
		BoxMax:              latent.DefaultBoxMax,
		SphereR:             latent.DefaultSphereRadius,
		Marginal:            DefaultMarginal,
		ConditionalSigma:    DefaultConditionalSigma,
		EdgeDensity:         DefaultEdgeDensity,
		NLogSteps:           DefaultNLogSteps,
		NEvalSamples:        DefaultNEvalSamples,
		NumEvalBatches:      DefaultNumEvalBatches,
		JacobianSamples:     DefaultJacobianSamples,
		DepMatThreshold:     DefaultDepMatThreshold,
	}
	for _, opt := range opts {
		opt(&c)
	}
	if err := c.normalize(); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}

	return c, nil
}

// normalize replaces the named choices by their canonical spelling, so
// "Both" and "both" select the same phases.
func (c *Config) normalize() error {
	mode, err := ParseMode(string(c.Mode))
	if err != nil {
		return configErrorf("mode", "%v", err)
	}
	weightInit, err := bottleneck.ParseWeightInit(string(c.WeightInit))
	if err != nil {
		return fmt.Errorf("train: weight_init_fn: %w", err)
	}
	space, err := latent.ParseKind(string(c.Space))
	if err != nil {
		return configErrorf("space", "%v", err)
	}
	marginal, err := latent.ParseMarginal(string(c.Marginal))
	if err != nil {
		return configErrorf("marginal", "%v", err)
	}
	c.Mode, c.WeightInit, c.Space, c.Marginal = mode, weightInit, space, marginal

	return nil
}

// Validate checks the construction-time invariants.
func (c Config) Validate() error {
	switch {
	case c.NumVars < 1:
		return configErrorf("num_vars", "%d < 1", c.NumVars)
	case c.NumWeights < 1:
		return configErrorf("num_weights", "%d < 1", c.NumWeights)
	case c.NSteps < 1:
		return configErrorf("n_steps", "%d < 1", c.NSteps)
	case !(c.MoreUnsupervised > 0):
		return configErrorf("more_unsupervised", "%g must be positive", c.MoreUnsupervised)
	case c.LR < 0 || math.IsNaN(c.LR):
		return configErrorf("lr", "%g must be non-negative", c.LR)
	case c.BatchSize < 2:
		return configErrorf("batch_size", "%d < 2", c.BatchSize)
	case c.NLogSteps < 1:
		return configErrorf("n_log_steps", "%d < 1", c.NLogSteps)
	case c.NEvalSamples < c.NumVars+2:
		return configErrorf("n_eval_samples", "%d too small for %d variables", c.NEvalSamples, c.NumVars)
	case c.NumEvalBatches < 1:
		return configErrorf("num_eval_batches", "%d < 1", c.NumEvalBatches)
	case c.JacobianSamples < 1:
		return configErrorf("jacobian_samples", "%d < 1", c.JacobianSamples)
	case c.SinkhornSteps < 1:
		return configErrorf("sinkhorn_steps", "%d < 1", c.SinkhornSteps)
	case !(c.Tau > 0):
		return configErrorf("tau", "%g must be positive", c.Tau)
	case c.StartStep != nil && *c.StartStep < 0:
		return configErrorf("start_step", "%d < 0", *c.StartStep)
	case c.BudgetCoeff != 0 && !c.Budget:
		return configErrorf("budget", "coefficient %g set without the budget mask", c.BudgetCoeff)
	case !(c.ConditionalSigma > 0):
		return configErrorf("conditional_sigma", "%g must be positive", c.ConditionalSigma)
	case c.EdgeDensity < 0 || c.EdgeDensity > 1:
		return configErrorf("edge_density", "%g outside [0,1]", c.EdgeDensity)
	}
	if err := c.normalize(); err != nil {
		return err
	}
	if err := device.Validate(c.Device); err != nil {
		return configErrorf("device", "%v", err)
	}

	return nil
}

// LearningModes lists the phases in order; true means supervised.
func (c Config) LearningModes() []bool {
	switch c.Mode {
	case Supervised:
		return []bool{true}
	case Both:
		return []bool{true, false}
	default:
		return []bool{false}
	}
}

// PhaseBudget is the last global step of a phase.
func (c Config) PhaseBudget(supervised bool) int {
	if supervised {
		return c.NSteps
	}

	return int(float64(c.NSteps) * c.MoreUnsupervised)
}

// StartStepReached reports whether the delayed structural terms are active.
func (c Config) StartStepReached(step int) bool {
	return c.StartStep == nil || step >= *c.StartStep
}

// ARActive reports whether the encoder routes through the ARMLP
// bottleneck. The encoder always does, triangular or not, so the l1,
// budget and qr terms read the assembled weight.
func (c Config) ARActive() bool { return true }

// Coefficients maps the loss settings onto the structural assembler.
func (c Config) Coefficients() structure.Coefficients {
	return structure.Coefficients{
		L2:                  c.L2,
		L1:                  c.L1,
		QR:                  c.QRLoss,
		Triangularity:       c.TriangularityLoss,
		Entropy:             c.EntropyCoeff,
		Budget:              c.BudgetCoeff,
		StartStep:           c.StartStep,
		ARActive:            c.ARActive(),
		PermutationLearning: c.Permute,
		Sinkhorn:            c.Sinkhorn,
		CholeskyPermutation: c.CholeskyPermutation,
		TowardIdentity:      c.TowardIdentity,
	}
}

// ---------- Options ----------

// WithNumVars sets the latent dimension d.
func WithNumVars(d int) Option { return func(c *Config) { c.NumVars = d } }

// WithNumWeights sets the bottleneck stack length.
func WithNumWeights(n int) Option { return func(c *Config) { c.NumWeights = n } }

// WithTriangular toggles the triangular bottleneck.
func WithTriangular(on bool) Option { return func(c *Config) { c.Triangular = on } }

// WithResidual toggles the diagonal scaling vector.
func WithResidual(on bool) Option { return func(c *Config) { c.Residual = on } }

// WithBudget enables the budget mask and sets its loss coefficient.
func WithBudget(on bool, coeff float64) Option {
	return func(c *Config) {
		c.Budget = on
		c.BudgetCoeff = coeff
	}
}

// WithWeightInit selects the stack initialiser and its gain.
func WithWeightInit(kind bottleneck.WeightInit, gain float64) Option {
	return func(c *Config) {
		c.WeightInit = kind
		c.Gain = gain
	}
}

// WithInjectPolicy selects the neutral factors used when injecting weights.
func WithInjectPolicy(p bottleneck.InjectPolicy) Option {
	return func(c *Config) { c.InjectPolicy = p }
}

// WithFeatures sets the pre/post feature-width lists.
func WithFeatures(pre, post []int) Option {
	return func(c *Config) {
		c.PreLayerFeats = append([]int(nil), pre...)
		c.PostLayerFeats = append([]int(nil), post...)
	}
}

// WithBias toggles feature-layer biases.
func WithBias(on bool) Option { return func(c *Config) { c.Bias = on } }

// WithForceIdentity replaces feature activations by the identity.
func WithForceIdentity(on bool) Option { return func(c *Config) { c.ForceIdentity = on } }

// WithSinkhorn routes the bottleneck input through the learned permutation.
func WithSinkhorn(on bool, steps int, tau float64) Option {
	return func(c *Config) {
		c.Sinkhorn = on
		c.SinkhornSteps = steps
		c.SinkhornTemperature = tau
	}
}

// WithInjectStructure injects the ground-truth encoder support after every
// encoder construction.
func WithInjectStructure(on bool) Option { return func(c *Config) { c.InjectStructure = on } }

// WithDevice sets the placement target.
func WithDevice(dev string) Option { return func(c *Config) { c.Device = dev } }

// WithRegularization sets the l1 and l2 coefficients.
func WithRegularization(l1, l2 float64) Option {
	return func(c *Config) {
		c.L1 = l1
		c.L2 = l2
	}
}

// WithQRLoss sets the permutation-extraction coefficient.
func WithQRLoss(coeff float64) Option { return func(c *Config) { c.QRLoss = coeff } }

// WithTriangularityLoss sets the triangularity coefficient.
func WithTriangularityLoss(coeff float64) Option {
	return func(c *Config) { c.TriangularityLoss = coeff }
}

// WithEntropyCoeff sets the Sinkhorn entropy coefficient.
func WithEntropyCoeff(coeff float64) Option { return func(c *Config) { c.EntropyCoeff = coeff } }

// WithStartStep delays the triangularity and qr terms until step.
func WithStartStep(step int) Option {
	return func(c *Config) {
		s := step
		c.StartStep = &s
	}
}

// WithPermute permutes the observations and enables permutation learning.
func WithPermute(on bool) Option { return func(c *Config) { c.Permute = on } }

// WithCholeskyPermutation extracts Q through the Cholesky route.
func WithCholeskyPermutation(on bool) Option {
	return func(c *Config) { c.CholeskyPermutation = on }
}

// WithTowardIdentity also pulls the extracted Q toward the identity.
func WithTowardIdentity(on bool) Option { return func(c *Config) { c.TowardIdentity = on } }

// WithTau sets the contrastive temperature.
func WithTau(tau float64) Option { return func(c *Config) { c.Tau = tau } }

// WithMode selects the learning phases.
func WithMode(m Mode) Option { return func(c *Config) { c.Mode = m } }

// WithSteps sets n_steps and the unsupervised multiplier.
func WithSteps(n int, moreUnsupervised float64) Option {
	return func(c *Config) {
		c.NSteps = n
		c.MoreUnsupervised = moreUnsupervised
	}
}

// WithLR sets the Adam learning rate; 0 disables learning.
func WithLR(lr float64) Option { return func(c *Config) { c.LR = lr } }

// WithBatchSize sets the number of samples per view.
func WithBatchSize(n int) Option { return func(c *Config) { c.BatchSize = n } }

// WithSeed sets the process-wide random seed.
func WithSeed(seed uint64) Option { return func(c *Config) { c.Seed = seed } }

// WithResumeTraining keeps the loss lists and global step across phases.
func WithResumeTraining(on bool) Option { return func(c *Config) { c.ResumeTraining = on } }

// WithSpace selects the latent geometry. lo/hi bound a box, r is a sphere radius.
func WithSpace(kind latent.Kind, lo, hi, r float64) Option {
	return func(c *Config) {
		c.Space = kind
		c.BoxMin, c.BoxMax, c.SphereR = lo, hi, r
	}
}

// WithMarginal selects the real-space marginal.
func WithMarginal(m latent.Marginal) Option { return func(c *Config) { c.Marginal = m } }

// WithConditionalSigma sets the positive-sample noise scale.
func WithConditionalSigma(sigma float64) Option {
	return func(c *Config) { c.ConditionalSigma = sigma }
}

// WithEdgeDensity sets the probability of each strictly-lower mixing edge.
func WithEdgeDensity(p float64) Option { return func(c *Config) { c.EdgeDensity = p } }

// WithLogging sets the log interval and the disentanglement evaluation size.
func WithLogging(nLogSteps, nEvalSamples, numEvalBatches int) Option {
	return func(c *Config) {
		c.NLogSteps = nLogSteps
		c.NEvalSamples = nEvalSamples
		c.NumEvalBatches = numEvalBatches
	}
}

// WithJacobian sets the Jacobian sample count and the edge threshold.
func WithJacobian(samples int, threshold float64) Option {
	return func(c *Config) {
		c.JacobianSamples = samples
		c.DepMatThreshold = threshold
	}
}

// WithVerbose prints a step line at every log step.
func WithVerbose(on bool) Option { return func(c *Config) { c.Verbose = on } }
