// SPDX-License-Identifier: MIT

package train_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/causalid/bottleneck"
	"github.com/katalvlaran/causalid/latent"
	"github.com/katalvlaran/causalid/train"
)

func TestNewConfig_Defaults(t *testing.T) {
	c, err := train.NewConfig()
	require.NoError(t, err)
	require.Equal(t, train.DefaultNumWeights, c.NumWeights)
	require.True(t, c.Triangular)
	require.Equal(t, train.Unsupervised, c.Mode)
	require.Equal(t, []int{1}, c.PreLayerFeats)
	require.Nil(t, c.StartStep)
	require.Equal(t, "cpu", c.Device)
}

func TestConfig_LearningModes(t *testing.T) {
	cases := []struct {
		mode train.Mode
		want []bool
	}{
		{train.Supervised, []bool{true}},
		{train.Unsupervised, []bool{false}},
		{train.Both, []bool{true, false}},
	}
	for _, tc := range cases {
		c, err := train.NewConfig(train.WithMode(tc.mode))
		require.NoError(t, err)
		require.Equal(t, tc.want, c.LearningModes(), tc.mode)
	}

	m, err := train.ParseMode(" BOTH ")
	require.NoError(t, err)
	require.Equal(t, train.Both, m)
	_, err = train.ParseMode("semi")
	require.ErrorIs(t, err, train.ErrUnknownMode)
	require.ErrorIs(t, err, train.ErrConfiguration)
}

func TestConfig_PhaseBudgetAndStartStep(t *testing.T) {
	c, err := train.NewConfig(train.WithSteps(100, 2.5), train.WithStartStep(10))
	require.NoError(t, err)
	require.Equal(t, 100, c.PhaseBudget(true))
	require.Equal(t, 250, c.PhaseBudget(false))
	require.False(t, c.StartStepReached(9))
	require.True(t, c.StartStepReached(10))

	co := c.Coefficients()
	require.Equal(t, 10, *co.StartStep)
	require.True(t, co.ARActive)
	require.False(t, co.Started(9))
}

func TestConfig_Coefficients(t *testing.T) {
	c, err := train.NewConfig(
		train.WithRegularization(0.1, 0.2),
		train.WithQRLoss(0.3),
		train.WithTriangularityLoss(0.4),
		train.WithEntropyCoeff(0.5),
		train.WithBudget(true, 0.6),
		train.WithPermute(true),
		train.WithSinkhorn(true, 10, 0.5),
		train.WithCholeskyPermutation(true),
		train.WithTowardIdentity(true),
	)
	require.NoError(t, err)
	co := c.Coefficients()
	require.Equal(t, 0.1, co.L1)
	require.Equal(t, 0.2, co.L2)
	require.Equal(t, 0.3, co.QR)
	require.Equal(t, 0.4, co.Triangularity)
	require.Equal(t, 0.5, co.Entropy)
	require.Equal(t, 0.6, co.Budget)
	require.True(t, co.PermutationLearning)
	require.True(t, co.Sinkhorn)
	require.True(t, co.CholeskyPermutation)
	require.True(t, co.TowardIdentity)
}

func TestConfig_ValidateRejects(t *testing.T) {
	cases := []struct {
		name string
		opt  train.Option
	}{
		{"NoSteps", train.WithSteps(0, 1)},
		{"NoUnsupervisedSteps", train.WithSteps(10, 0)},
		{"NoVars", train.WithNumVars(0)},
		{"NoWeights", train.WithNumWeights(0)},
		{"NegativeLR", train.WithLR(-1)},
		{"TinyBatch", train.WithBatchSize(1)},
		{"NoLogSteps", train.WithLogging(0, 512, 10)},
		{"FewEvalSamples", train.WithLogging(10, 2, 10)},
		{"NoEvalBatches", train.WithLogging(10, 512, 0)},
		{"NoJacobianSamples", train.WithJacobian(0, 1e-3)},
		{"NoSinkhornSteps", train.WithSinkhorn(true, 0, 1)},
		{"NonPositiveTau", train.WithTau(0)},
		{"NegativeStart", train.WithStartStep(-1)},
		{"BudgetWithoutMask", train.WithBudget(false, 1)},
		{"NoConditionalNoise", train.WithConditionalSigma(0)},
		{"EdgeDensity", train.WithEdgeDensity(1.5)},
		{"Mode", train.WithMode("semi")},
		{"WeightInit", train.WithWeightInit("he", 1)},
		{"Space", train.WithSpace("torus", 0, 1, 1)},
		{"Marginal", train.WithMarginal("cauchy")},
		{"Device", train.WithDevice("cuda")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := train.NewConfig(tc.opt)
			require.ErrorIs(t, err, train.ErrConfiguration)
		})
	}
}

func TestConfig_WeightInitIsAccepted(t *testing.T) {
	for _, kind := range []bottleneck.WeightInit{
		bottleneck.InitNone, bottleneck.InitOrthogonal, bottleneck.InitXavierNormal,
		bottleneck.InitXavierUniform, bottleneck.InitSparse,
	} {
		_, err := train.NewConfig(train.WithWeightInit(kind, 1))
		require.NoError(t, err, kind)
	}
}

func TestNewConfig_CanonicalNames(t *testing.T) {
	c, err := train.NewConfig(
		train.WithMode(" Both"),
		train.WithWeightInit("Orthogonal", 1),
		train.WithSpace("SPHERE", 0, 0, 2),
		train.WithMarginal("Laplace"),
	)
	require.NoError(t, err)
	require.Equal(t, train.Both, c.Mode)
	require.Equal(t, []bool{true, false}, c.LearningModes())
	require.Equal(t, bottleneck.InitOrthogonal, c.WeightInit)
	require.Equal(t, latent.Sphere, c.Space)
	require.Equal(t, latent.Laplace, c.Marginal)
}

func TestConfig_ARActiveWithoutTriangularMask(t *testing.T) {
	c, err := train.NewConfig(train.WithTriangular(false))
	require.NoError(t, err)
	require.True(t, c.ARActive())
	require.True(t, c.Coefficients().ARActive)
}
