// SPDX-License-Identifier: MIT

package train_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/katalvlaran/causalid/autograd"
	"github.com/katalvlaran/causalid/matrix"
	"github.com/katalvlaran/causalid/store"
	"github.com/katalvlaran/causalid/structure"
	"github.com/katalvlaran/causalid/train"
)

// RunnerSuite drives small end-to-end runs against an in-memory store.
type RunnerSuite struct {
	suite.Suite
	ctx   context.Context
	store *store.Store
}

func (s *RunnerSuite) SetupTest() {
	s.ctx = context.Background()
	st, err := store.Open(s.ctx, store.Memory)
	require.NoError(s.T(), err)
	s.store = st
}

func (s *RunnerSuite) TearDownTest() {
	require.NoError(s.T(), s.store.Close())
}

// config is a tiny three-variable run; opts override it.
func (s *RunnerSuite) config(opts ...train.Option) train.Config {
	base := []train.Option{
		train.WithNumVars(3),
		train.WithSeed(7),
		train.WithBatchSize(16),
		train.WithSteps(3, 1),
		train.WithLR(1e-2),
		train.WithLogging(2, 32, 2),
		train.WithJacobian(8, train.DefaultDepMatThreshold),
	}
	cfg, err := train.NewConfig(append(base, opts...)...)
	require.NoError(s.T(), err)

	return cfg
}

func (s *RunnerSuite) runner(cfg train.Config) *train.Runner {
	r, err := train.NewRunner(s.ctx, cfg, train.WithSink(s.store), train.WithLogger(quiet()))
	require.NoError(s.T(), err)

	return r
}

// TestBothPhases runs a supervised and an unsupervised phase with every
// structural term enabled.
func (s *RunnerSuite) TestBothPhases() {
	t := s.T()
	r := s.runner(s.config(
		train.WithMode(train.Both),
		train.WithPermute(true),
		train.WithSinkhorn(true, 5, 0.5),
		train.WithEntropyCoeff(0.01),
		train.WithBudget(true, 0.1),
		train.WithQRLoss(0.1),
		train.WithTriangularityLoss(0.1),
		train.WithRegularization(0.01, 1e-3),
	))
	first := r.Net()
	require.Equal(t, []bool{true, false}, r.Config().LearningModes())

	require.NoError(t, r.TrainingLoop(s.ctx))
	require.NotSame(t, first, r.Net())

	for _, name := range []string{train.CheckpointSupervised, train.CheckpointUnsupervised} {
		state, err := s.store.Load(s.ctx, name)
		require.NoError(t, err, name)
		require.Len(t, state, len(r.Net().Params()), name)
	}

	// Both phases restart at step 1.
	pts, err := s.store.Scalars(s.ctx, "total_loss")
	require.NoError(t, err)
	require.Len(t, pts, 6)
	for _, p := range pts {
		require.False(t, math.IsNaN(p.Value))
	}
	qr, err := s.store.Scalars(s.ctx, "loss_qr")
	require.NoError(t, err)
	require.NotZero(t, qr[len(qr)-1].Value)

	var orderings [][]int
	require.NoError(t, s.store.Summary(s.ctx, "causal_orderings", &orderings))
	require.NotEmpty(t, orderings)

	last, _, err := s.store.LatestMatrix(s.ctx, "learned_last")
	require.NoError(t, err)
	require.Equal(t, 3, last.Rows())

	report := r.FinalReport()
	require.LessOrEqual(t, report.LinearMean, 1+1e-9)
	require.LessOrEqual(t, report.PermutationMean, 1+1e-9)
	require.GreaterOrEqual(t, report.PermutationMean, 0.0)
}

// TestResetEncoder checks that a reset yields new parameter objects and an
// optimiser without history.
func (s *RunnerSuite) TestResetEncoder() {
	t := s.T()
	r := s.runner(s.config(train.WithMode(train.Both)))
	r.Logger().InitLogLists()
	require.NoError(t, r.Step(s.ctx, true))
	require.NoError(t, r.Step(s.ctx, true))

	oldOpt := r.Optimizer()
	oldParams := r.Net().Params()
	require.Equal(t, 2, oldOpt.Steps())

	require.NoError(t, r.ResetEncoder())
	require.Equal(t, 0, r.Optimizer().Steps())
	require.NotSame(t, oldOpt, r.Optimizer())

	newParams := r.Net().Params()
	require.Len(t, newParams, len(oldParams))
	for _, np := range newParams {
		for _, op := range oldParams {
			require.NotSame(t, op, np)
		}
	}
	for i, p := range r.Optimizer().Params() {
		require.Same(t, newParams[i], p)
	}

	// The new encoder trains; the old parameters stay where they were.
	before := oldParams[0].Value.Clone()
	require.NoError(t, r.Step(s.ctx, false))
	require.Equal(t, before.Data(), oldParams[0].Value.Data())
	require.Equal(t, 1, r.Optimizer().Steps())
}

// TestZeroLearningRate runs steps without touching the parameters.
func (s *RunnerSuite) TestZeroLearningRate() {
	t := s.T()
	r := s.runner(s.config(train.WithLR(0), train.WithTriangularityLoss(1)))
	before := r.State()

	r.Logger().InitLogLists()
	require.NoError(t, r.Step(s.ctx, false))
	require.NoError(t, r.Step(s.ctx, false))
	require.True(t, autograd.GradEnabled())

	after := r.State()
	for i := range before {
		require.Equal(t, before[i].Data(), after[i].Data())
	}
	require.Equal(t, 0, r.Optimizer().Steps())
	require.Equal(t, 3, r.Logger().GlobalStep())
}

// TestInjectStructure masks every weight the ground truth lacks.
func (s *RunnerSuite) TestInjectStructure() {
	t := s.T()
	r := s.runner(s.config(train.WithInjectStructure(true), train.WithEdgeDensity(0.5)))

	eye, err := matrix.NewIdentity(3)
	require.NoError(t, err)
	w, err := r.Net().Predict(eye)
	require.NoError(t, err)

	gt := r.GroundTruth().Encoder
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			g, _ := gt.At(i, j)
			v, _ := w.At(i, j)
			if g == 0 {
				require.Zero(t, v, "(%d,%d)", i, j)
			}
		}
	}
}

// TestBottleneckTermsWithoutTriangularMask keeps the l1, budget and qr
// terms live on a dense bottleneck.
func (s *RunnerSuite) TestBottleneckTermsWithoutTriangularMask() {
	t := s.T()
	cfg := s.config(
		train.WithTriangular(false),
		train.WithRegularization(1, 0),
		train.WithQRLoss(1),
		train.WithBudget(true, 1),
	)
	r := s.runner(cfg)

	a, err := structure.NewAssembler(r.Net(), cfg.Coefficients(), structure.WithLogger(quiet()))
	require.NoError(t, err)
	total, parts, err := a.Assemble(autograd.Scalar(0), structure.Step{Step: 1})
	require.NoError(t, err)
	for _, name := range []string{structure.TermL1, structure.TermBudget, structure.TermQR} {
		require.Greater(t, parts[name], 1e-9, name)
	}
	require.NoError(t, autograd.Backward(total))
	require.NotZero(t, matrix.MaxAbs(r.Net().Bottleneck().Stack().Slot(0).Grad))

	r.Logger().InitLogLists()
	require.NoError(t, r.Step(s.ctx, false))
	for _, name := range []string{"loss_l1", "loss_budget", "loss_qr"} {
		pts, err := s.store.Scalars(s.ctx, name)
		require.NoError(t, err)
		require.Len(t, pts, 1, name)
		require.Greater(t, pts[0].Value, 0.0, name)
	}
}

// TestMixedCaseMode runs both phases for a mode spelled in any case.
func (s *RunnerSuite) TestMixedCaseMode() {
	cfg := s.config()
	cfg.Mode = "Both"
	r := s.runner(cfg)
	require.Equal(s.T(), []bool{true, false}, r.Config().LearningModes())
}

// TestCancelledContext stops before the first step.
func (s *RunnerSuite) TestCancelledContext() {
	r := s.runner(s.config())
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	require.ErrorIs(s.T(), r.TrainingLoop(ctx), context.Canceled)
}

func TestRunnerSuite(t *testing.T) {
	suite.Run(t, new(RunnerSuite))
}

func TestNewRunner_InvalidConfig(t *testing.T) {
	cfg, err := train.NewConfig()
	require.NoError(t, err)
	cfg.NSteps = 0
	_, err = train.NewRunner(context.Background(), cfg)
	require.ErrorIs(t, err, train.ErrConfiguration)
}
