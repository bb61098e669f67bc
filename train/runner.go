// SPDX-License-Identifier: MIT

package train

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/katalvlaran/causalid/autograd"
	"github.com/katalvlaran/causalid/bottleneck"
	"github.com/katalvlaran/causalid/dag"
	"github.com/katalvlaran/causalid/jacobian"
	"github.com/katalvlaran/causalid/latent"
	"github.com/katalvlaran/causalid/matrix"
	"github.com/katalvlaran/causalid/metrics"
	"github.com/katalvlaran/causalid/mixing"
	"github.com/katalvlaran/causalid/optim"
	"github.com/katalvlaran/causalid/rng"
	"github.com/katalvlaran/causalid/store"
	"github.com/katalvlaran/causalid/structure"
)

// maxCausalOrderings caps the orderings stored in the run summary.
const maxCausalOrderings = 1024

// Checkpoint names per phase.
const (
	CheckpointSupervised   = "sup_f"
	CheckpointUnsupervised = "unsup_f"
)

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger sets the structured logger (default slog.Default()).
func WithLogger(l *slog.Logger) RunnerOption { return func(r *Runner) { r.log = l } }

// WithSink sets the metrics and checkpoint sink. Without one nothing is
// persisted.
func WithSink(s Sink) RunnerOption { return func(r *Runner) { r.sink = s } }

// WithContrastiveLoss replaces the LpSimCLR objective.
func WithContrastiveLoss(c ContrastiveLoss) RunnerOption { return func(r *Runner) { r.loss = c } }

// Runner owns one training run: the data collaborators, the ground truth,
// the encoder with its optimiser and the structural loss assembler.
type Runner struct {
	cfg Config
	rs  *rng.RandomState

	sampler  *latent.Sampler
	decoder  *mixing.Decoder
	truth    mixing.GroundTruth
	graph    *dag.Graph
	indirect []dag.IndirectCause

	net       *bottleneck.Net
	opt       *optim.Adam
	assembler *structure.Assembler
	loss      ContrastiveLoss

	edges  metrics.EdgeMetrics
	last   *matrix.Dense
	report Report

	logger *Logger
	sink   Sink
	log    *slog.Logger
}

// NewRunner builds every collaborator from cfg.
//
// Implementation:
//   - Stage 1: validate cfg and seed the shared RandomState.
//   - Stage 2: latent space, sampler and random mixing decoder.
//   - Stage 3: ground truth, indirect causes and causal orderings, written
//     to the run summary.
//   - Stage 4: encoder (with structure injection when configured), Adam and
//     the structural assembler.
//
// Errors: configuration errors wrap ErrConfiguration; sink errors pass through.
func NewRunner(ctx context.Context, cfg Config, opts ...RunnerOption) (*Runner, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Runner{cfg: cfg, rs: rng.New(cfg.Seed), log: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	if r.sink == nil {
		r.sink = nopSink{}
	}
	if r.loss == nil {
		r.loss = LpSimCLR{Tau: cfg.Tau}
	}
	r.logger = NewLogger(cfg, r.sink, r.log)

	space, err := newSpace(cfg)
	if err != nil {
		return nil, err
	}
	if r.sampler, err = latent.NewSampler(space, r.rs,
		latent.WithConditionalSigma(cfg.ConditionalSigma),
		latent.WithMarginal(cfg.Marginal),
	); err != nil {
		return nil, err
	}
	if r.decoder, err = mixing.NewRandom(cfg.NumVars, r.rs,
		mixing.WithPermute(cfg.Permute),
		mixing.WithEdgeDensity(cfg.EdgeDensity),
		mixing.WithLogger(r.log),
	); err != nil {
		return nil, err
	}

	if err = r.setupGroundTruth(ctx); err != nil {
		return nil, err
	}

	if r.net, err = r.newEncoder(); err != nil {
		return nil, err
	}
	r.opt = optim.NewAdam(r.net.Params(), cfg.LR)
	if r.assembler, err = structure.NewAssembler(r.net, cfg.Coefficients(), structure.WithLogger(r.log)); err != nil {
		return nil, err
	}

	return r, nil
}

func newSpace(cfg Config) (latent.Space, error) {
	switch cfg.Space {
	case latent.Sphere:
		return latent.NewSphere(cfg.NumVars, cfg.SphereR)
	case latent.Real:
		return latent.NewReal(cfg.NumVars)
	default:
		return latent.NewBox(cfg.NumVars, cfg.BoxMin, cfg.BoxMax)
	}
}

func (r *Runner) setupGroundTruth(ctx context.Context) error {
	var err error
	if r.truth, err = r.decoder.GroundTruth(); err != nil {
		return err
	}
	if r.graph, err = dag.FromAdjacency(r.truth.Encoder, dag.DefaultEdgeEps); err != nil {
		return err
	}
	if r.indirect, err = r.graph.IndirectCauses(); err != nil {
		return err
	}
	orderings, err := r.graph.CausalOrderings(
		dag.WithCancelContext(ctx),
		dag.WithMaxOrderings(maxCausalOrderings),
	)
	if err != nil {
		return err
	}

	indirect := make([]string, len(r.indirect))
	for i, c := range r.indirect {
		indirect[i] = c.Edge.String()
	}
	r.log.Info("ground truth ready",
		"edges", len(r.graph.Edges()),
		"indirect_causes", len(indirect),
		"orderings", len(orderings),
		"pinv", r.truth.UsedPinv,
	)

	if err = r.logger.LogSummary(ctx, map[string]any{
		"causal_orderings": orderings,
		"indirect_causes":  indirect,
		"permute_indices":  r.decoder.Permutation(),
		"gt_used_pinv":     r.truth.UsedPinv,
	}); err != nil {
		return err
	}
	for name, m := range map[string]*matrix.Dense{
		"gt_decoder":          r.truth.Decoder,
		"gt_decoder_permuted": r.truth.DecoderPermuted,
		"gt_encoder":          r.truth.Encoder,
	} {
		if err = r.sink.LogMatrix(ctx, 0, name, m); err != nil {
			return err
		}
	}

	return nil
}

// newEncoder draws a fresh Net from the shared RandomState and injects the
// ground-truth structure when configured.
func (r *Runner) newEncoder() (*bottleneck.Net, error) {
	c := r.cfg
	arOpts := []bottleneck.Option{
		bottleneck.WithNumWeights(c.NumWeights),
		bottleneck.WithTriangular(c.Triangular),
		bottleneck.WithResidual(c.Residual),
		bottleneck.WithWeightInit(c.WeightInit),
		bottleneck.WithGain(c.Gain),
		bottleneck.WithInjectPolicy(c.InjectPolicy),
		bottleneck.WithLogger(r.log),
	}
	if c.Budget {
		arOpts = append(arOpts, bottleneck.WithBudget(true))
	}
	net, err := bottleneck.NewNet(c.NumVars, r.rs,
		bottleneck.WithFeatures(c.PreLayerFeats, c.PostLayerFeats),
		bottleneck.WithBias(c.Bias),
		bottleneck.WithForceIdentity(c.ForceIdentity),
		bottleneck.WithSinkhorn(c.Sinkhorn),
		bottleneck.WithSinkhornSteps(c.SinkhornSteps),
		bottleneck.WithSinkhornTemperature(c.SinkhornTemperature),
		bottleneck.WithARMLP(arOpts...),
	)
	if err != nil {
		return nil, err
	}
	if err = net.To(c.Device); err != nil {
		return nil, err
	}
	if c.InjectStructure {
		if err = net.Bottleneck().InjectStructure(r.truth.Encoder, true); err != nil {
			return nil, err
		}
	}

	return net, nil
}

// ResetEncoder replaces the encoder by a freshly initialised one and
// starts a new optimiser, so no parameter or moment is shared with the
// previous phase.
func (r *Runner) ResetEncoder() error {
	net, err := r.newEncoder()
	if err != nil {
		return fmt.Errorf("train: reset encoder: %w", err)
	}
	if err = r.assembler.SetModel(net); err != nil {
		return err
	}
	r.net = net
	r.opt = optim.NewAdam(net.Params(), r.cfg.LR)
	r.log.Debug("encoder reset", "params", len(net.Params()))

	return nil
}

// TrainingLoop runs every phase to its step budget. Between phases the
// encoder parameters are checkpointed and the encoder is reset; after the
// last phase the trained encoder is checkpointed and scored.
func (r *Runner) TrainingLoop(ctx context.Context) error {
	modes := r.cfg.LearningModes()
	for i, supervised := range modes {
		r.log.Info("phase started", "supervised", supervised, "steps", r.cfg.PhaseBudget(supervised))
		r.logger.InitLogLists()

		for budget := r.cfg.PhaseBudget(supervised); r.logger.GlobalStep() <= budget; {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := r.Step(ctx, supervised); err != nil {
				return err
			}
		}

		if err := r.sink.Save(ctx, r.State(), checkpointName(supervised)); err != nil {
			return fmt.Errorf("train: checkpoint: %w", err)
		}
		if i < len(modes)-1 {
			if err := r.ResetEncoder(); err != nil {
				return err
			}
		}
	}

	if r.last != nil {
		if err := r.logger.LogMatrix(ctx, "learned_last", r.last); err != nil {
			return err
		}
	}
	report, err := r.logger.ReportFinal(ctx, r.batchScorer(), r.cfg.NumEvalBatches)
	if err != nil {
		return err
	}
	r.report = report

	return nil
}

func checkpointName(supervised bool) string {
	if supervised {
		return CheckpointSupervised
	}

	return CheckpointUnsupervised
}

// Step runs one training step at the logger's global step.
//
// Implementation:
//   - Stage 1: draw a triple and evaluate the Jacobian routine.
//   - Stage 2: update the edge and dependency-matrix metrics.
//   - Stage 3: forward the three views, compute the primary loss and add
//     the structural terms.
//   - Stage 4: with a nonzero learning rate backpropagate and step Adam;
//     otherwise run Stage 3 without recording a graph.
//   - Stage 5: log.
func (r *Runner) Step(ctx context.Context, supervised bool) error {
	gs := r.logger.GlobalStep()
	triple, err := r.sampler.Sample(r.cfg.BatchSize)
	if err != nil {
		return err
	}
	jac, err := jacobian.Calc(r.net, r.decoder, r.sampler, jacobian.WithSamples(r.cfg.JacobianSamples))
	if err != nil {
		return err
	}
	depMat := jac.DepMat.Value
	r.last = depMat
	if err = r.edges.Update(depMat, r.truth.Encoder, r.cfg.DepMatThreshold); err != nil {
		return err
	}
	depMetrics, err := jacobian.ComputeDepMatMetrics(depMat, r.truth.Encoder, r.indirect, r.cfg.DepMatThreshold)
	if err != nil {
		return err
	}

	var (
		total     float64
		parts     []float64
		breakdown structure.Breakdown
	)
	run := func() error {
		loss, p, b, err := r.trainStep(triple, jac, gs, supervised)
		if err != nil {
			return err
		}
		if r.cfg.LR != 0 {
			r.opt.ZeroGrad()
			if err = autograd.Backward(loss); err != nil {
				return err
			}
			r.opt.Step()
		}
		total, parts, breakdown = loss.Item(), p, b
		return nil
	}
	if r.cfg.LR != 0 {
		err = run()
	} else {
		err = autograd.NoGrad(run)
	}
	if err != nil {
		return fmt.Errorf("train: step %d: %w", gs, err)
	}

	rec := Record{
		Loss:       total,
		Parts:      parts,
		Breakdown:  breakdown,
		DepLoss:    jac.DepLoss.Item(),
		DepMat:     depMat,
		Numerical:  jac.NumericalJacobian,
		EncDec:     jac.EncDecJacobian,
		Edges:      r.edges.Compute(),
		DepMetrics: depMetrics,
	}
	if w, err := r.net.AssembledWeight(); err == nil {
		rec.Weight = w.Value.Clone()
	}
	if r.cfg.Permute && r.cfg.Sinkhorn {
		if dsm, err := r.net.DoublyStochasticMatrix(); err == nil {
			rec.DSM = dsm.Value.Clone()
		}
	}

	return r.logger.Log(ctx, rec, r.evalScorer())
}

// trainStep forwards the triple and folds every enabled loss term.
func (r *Runner) trainStep(triple latent.Triple, jac jacobian.Result, step int, supervised bool) (*autograd.Var, []float64, structure.Breakdown, error) {
	zs := []*matrix.Dense{triple.Anchor, triple.Positive, triple.Negative}
	views := make([]structure.View, len(zs))
	recs := make([]*autograd.Var, len(zs))
	for i, z := range zs {
		x, err := r.decoder.Decode(z)
		if err != nil {
			return nil, nil, nil, err
		}
		rec, err := r.net.Forward(autograd.Const(x))
		if err != nil {
			return nil, nil, nil, err
		}
		views[i] = structure.View{Observed: x, Reconstructed: rec}
		recs[i] = rec
	}

	var (
		base  *autograd.Var
		parts []float64
		err   error
	)
	if supervised {
		if base, err = MSE(recs[0], triple.Anchor); err != nil {
			return nil, nil, nil, err
		}
		parts = []float64{base.Item()}
	} else if base, parts, err = r.loss.Loss(recs[0], recs[1], recs[2]); err != nil {
		return nil, nil, nil, err
	}

	total, breakdown, err := r.assembler.Assemble(base, structure.Step{
		Step:    step,
		DepLoss: jac.DepLoss,
		DepMat:  jac.DepMat,
		Views:   views,
	})
	if err != nil {
		return nil, nil, nil, err
	}

	return total, parts, breakdown, nil
}

// encode maps latents through the decoder and the current encoder.
func (r *Runner) encode(z *matrix.Dense) (*matrix.Dense, error) {
	x, err := r.decoder.Decode(z)
	if err != nil {
		return nil, err
	}

	return r.net.Predict(x)
}

// evalScorer scores NEvalSamples marginal latents.
func (r *Runner) evalScorer() Scorer {
	return func() (float64, float64, error) {
		z, err := r.sampler.SampleMarginal(r.cfg.NEvalSamples)
		if err != nil {
			return 0, 0, err
		}
		hz, err := r.encode(z)
		if err != nil {
			return 0, 0, err
		}

		return metrics.DisentanglementScores(z, hz)
	}
}

// batchScorer scores the anchors of one training-sized batch.
func (r *Runner) batchScorer() Scorer {
	return func() (float64, float64, error) {
		t, err := r.sampler.Sample(r.cfg.BatchSize)
		if err != nil {
			return 0, 0, err
		}
		hz, err := r.encode(t.Anchor)
		if err != nil {
			return 0, 0, err
		}

		return metrics.DisentanglementScores(t.Anchor, hz)
	}
}

// State snapshots the encoder parameters in Params order.
func (r *Runner) State() store.State {
	ps := r.net.Params()
	state := make(store.State, len(ps))
	for i, p := range ps {
		state[i] = p.Value.Clone()
	}

	return state
}

// Config returns the validated configuration.
func (r *Runner) Config() Config { return r.cfg }

// Net returns the current encoder.
func (r *Runner) Net() *bottleneck.Net { return r.net }

// Optimizer returns the current optimiser.
func (r *Runner) Optimizer() *optim.Adam { return r.opt }

// Logger returns the run logger.
func (r *Runner) Logger() *Logger { return r.logger }

// GroundTruth returns the decoder and encoder Jacobians of the mixing.
func (r *Runner) GroundTruth() mixing.GroundTruth { return r.truth }

// IndirectCauses lists the ground-truth pairs linked only through a path.
func (r *Runner) IndirectCauses() []dag.IndirectCause { return r.indirect }

// FinalReport returns the disentanglement summary of the last TrainingLoop.
func (r *Runner) FinalReport() Report { return r.report }
