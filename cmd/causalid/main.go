// SPDX-License-Identifier: MIT

// Command causalid trains an encoder to identify the causal structure of a
// random triangular mixing and records the run in a SQLite database.
//
// Usage:
//
//	causalid -n 3 -mode both -n-steps 5000 -qr-loss 0.1 -db runs.db
//
// Every scalar, matrix, summary value and checkpoint of the run lands in
// the database under one run id, printed at start.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/lmittmann/tint"

	"github.com/katalvlaran/causalid/bottleneck"
	"github.com/katalvlaran/causalid/latent"
	"github.com/katalvlaran/causalid/store"
	"github.com/katalvlaran/causalid/train"
)

// intList parses a comma-separated list of ints.
type intList []int

func (l *intList) String() string { return fmt.Sprint(*l) }

func (l *intList) Set(s string) error {
	*l = nil
	for _, part := range strings.Split(s, ",") {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return fmt.Errorf("invalid int list %q: %w", s, err)
		}
		*l = append(*l, v)
	}

	return nil
}

func main() {
	if err := run(); err != nil {
		slog.Error("causalid failed", "err", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		n                = flag.Int("n", train.DefaultNumVars, "number of latent variables")
		numWeights       = flag.Int("num-weights", train.DefaultNumWeights, "bottleneck stack length")
		triangular       = flag.Bool("triangular", train.DefaultTriangular, "lower-triangular bottleneck")
		residual         = flag.Bool("residual", train.DefaultResidual, "learnable diagonal scaling")
		budget           = flag.Bool("budget", false, "learn a budget mask over the bottleneck")
		budgetCoeff      = flag.Float64("budget-coeff", train.DefaultBudgetCoeff, "budget loss coefficient")
		weightInit       = flag.String("weight-init-fn", "", "orthogonal|xavier_normal|xavier_uniform|sparse")
		gain             = flag.Float64("gain", train.DefaultGain, "initialiser gain")
		injectOnes       = flag.Bool("inject-ones", false, "inject with ones instead of tril(ones) factors")
		bias             = flag.Bool("bias", train.DefaultBias, "feature-layer biases")
		forceIdentity    = flag.Bool("force-identity", false, "identity feature activations")
		sinkhorn         = flag.Bool("sinkhorn", false, "learn the input permutation")
		sinkSteps        = flag.Int("sinkhorn-steps", bottleneck.DefaultSinkhornSteps, "Sinkhorn iterations")
		sinkTemp         = flag.Float64("sinkhorn-temp", bottleneck.DefaultSinkhornTemperature, "Sinkhorn temperature")
		injectStructure  = flag.Bool("inject-structure", false, "mask the bottleneck with the true structure")
		l1               = flag.Float64("l1", train.DefaultL1, "l1 coefficient")
		l2               = flag.Float64("l2", train.DefaultL2, "l2 coefficient")
		qrLoss           = flag.Float64("qr-loss", train.DefaultQRLoss, "permutation extraction coefficient")
		triLoss          = flag.Float64("triangularity-loss", train.DefaultTriangularityLoss, "triangularity coefficient")
		entropy          = flag.Float64("entropy-coeff", train.DefaultEntropyCoeff, "Sinkhorn entropy coefficient")
		startStep        = flag.Int("start-step", -1, "first step of the triangularity and qr terms (-1: from the start)")
		permute          = flag.Bool("permute", false, "permute the observations")
		cholesky         = flag.Bool("cholesky-permutation", false, "extract the permutation via Cholesky")
		towardIdentity   = flag.Bool("toward-identity", false, "pull the extracted permutation toward the identity")
		tau              = flag.Float64("tau", train.DefaultTau, "contrastive temperature")
		mode             = flag.String("mode", string(train.DefaultMode), "supervised|unsupervised|both")
		nSteps           = flag.Int("n-steps", train.DefaultNSteps, "steps per phase")
		moreUnsupervised = flag.Float64("more-unsupervised", train.DefaultMoreUnsupervised, "unsupervised step multiplier")
		lr               = flag.Float64("lr", train.DefaultLR, "learning rate; 0 disables learning")
		batchSize        = flag.Int("batch-size", train.DefaultBatchSize, "samples per view")
		seed             = flag.Uint64("seed", train.DefaultSeed, "random seed")
		resume           = flag.Bool("resume-training", false, "keep loss lists across phases")
		space            = flag.String("space", string(train.DefaultSpace), "box|sphere|real")
		boxMin           = flag.Float64("box-min", latent.DefaultBoxMin, "box lower bound")
		boxMax           = flag.Float64("box-max", latent.DefaultBoxMax, "box upper bound")
		sphereR          = flag.Float64("sphere-r", latent.DefaultSphereRadius, "sphere radius")
		marginal         = flag.String("marginal", string(train.DefaultMarginal), "normal|laplace (real space)")
		sigma            = flag.Float64("conditional-sigma", train.DefaultConditionalSigma, "positive-sample noise")
		density          = flag.Float64("edge-density", train.DefaultEdgeDensity, "mixing edge probability")
		nLogSteps        = flag.Int("n-log-steps", train.DefaultNLogSteps, "log interval")
		nEvalSamples     = flag.Int("n-eval-samples", train.DefaultNEvalSamples, "disentanglement samples")
		numEvalBatches   = flag.Int("num-eval-batches", train.DefaultNumEvalBatches, "final report batches")
		jacSamples       = flag.Int("jacobian-samples", train.DefaultJacobianSamples, "Jacobian samples")
		threshold        = flag.Float64("dep-threshold", train.DefaultDepMatThreshold, "edge threshold")
		dev              = flag.String("device", "cpu", "compute device")
		saveDir          = flag.String("save-dir", ".", "directory of the run database")
		dbName           = flag.String("db", "causalid.db", "run database file name")
		verbose          = flag.Bool("verbose", false, "print a line at every log step")
	)
	var pre, post intList = []int{1}, []int{1}
	flag.Var(&pre, "pre-layer-feats", "comma-separated pre feature widths")
	flag.Var(&post, "post-layer-feats", "comma-separated post feature widths")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05",
	}))
	slog.SetDefault(logger)

	policy := bottleneck.InjectTrilOnes
	if *injectOnes {
		policy = bottleneck.InjectOnes
	}
	opts := []train.Option{
		train.WithNumVars(*n),
		train.WithNumWeights(*numWeights),
		train.WithTriangular(*triangular),
		train.WithResidual(*residual),
		train.WithBudget(*budget, *budgetCoeff),
		train.WithWeightInit(bottleneck.WeightInit(*weightInit), *gain),
		train.WithInjectPolicy(policy),
		train.WithFeatures(pre, post),
		train.WithBias(*bias),
		train.WithForceIdentity(*forceIdentity),
		train.WithSinkhorn(*sinkhorn, *sinkSteps, *sinkTemp),
		train.WithInjectStructure(*injectStructure),
		train.WithDevice(*dev),
		train.WithRegularization(*l1, *l2),
		train.WithQRLoss(*qrLoss),
		train.WithTriangularityLoss(*triLoss),
		train.WithEntropyCoeff(*entropy),
		train.WithPermute(*permute),
		train.WithCholeskyPermutation(*cholesky),
		train.WithTowardIdentity(*towardIdentity),
		train.WithTau(*tau),
		train.WithMode(train.Mode(*mode)),
		train.WithSteps(*nSteps, *moreUnsupervised),
		train.WithLR(*lr),
		train.WithBatchSize(*batchSize),
		train.WithSeed(*seed),
		train.WithResumeTraining(*resume),
		train.WithSpace(latent.Kind(*space), *boxMin, *boxMax, *sphereR),
		train.WithMarginal(latent.Marginal(*marginal)),
		train.WithConditionalSigma(*sigma),
		train.WithEdgeDensity(*density),
		train.WithLogging(*nLogSteps, *nEvalSamples, *numEvalBatches),
		train.WithJacobian(*jacSamples, *threshold),
		train.WithVerbose(*verbose),
	}
	if *startStep >= 0 {
		opts = append(opts, train.WithStartStep(*startStep))
	}
	cfg, err := train.NewConfig(opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err = os.MkdirAll(*saveDir, 0o755); err != nil {
		return err
	}
	st, err := store.Open(ctx, filepath.Join(*saveDir, *dbName))
	if err != nil {
		return err
	}
	defer st.Close()
	logger.Info("run started", "run_id", st.RunID(), "db", filepath.Join(*saveDir, *dbName))

	r, err := train.NewRunner(ctx, cfg, train.WithSink(st), train.WithLogger(logger))
	if err != nil {
		return err
	}
	if err = r.TrainingLoop(ctx); err != nil {
		return err
	}
	rep := r.FinalReport()
	logger.Info("run finished",
		"run_id", st.RunID(),
		"linear", rep.LinearMean,
		"permutation", rep.PermutationMean,
	)

	return nil
}
