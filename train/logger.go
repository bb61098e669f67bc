// SPDX-License-Identifier: MIT

package train

import (
	"context"
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/katalvlaran/causalid/jacobian"
	"github.com/katalvlaran/causalid/matrix"
	"github.com/katalvlaran/causalid/metrics"
	"github.com/katalvlaran/causalid/store"
	"github.com/katalvlaran/causalid/structure"
)

// Sink receives everything the run emits. *store.Store satisfies it.
type Sink interface {
	LogScalars(ctx context.Context, step int, values map[string]float64) error
	LogMatrix(ctx context.Context, step int, name string, m *matrix.Dense) error
	LogSummary(ctx context.Context, key string, value any) error
	Save(ctx context.Context, state store.State, filename string) error
}

// Scorer evaluates the current encoder on fresh latents.
type Scorer func() (linear, permutation float64, err error)

// Record is one step's worth of loggable values.
type Record struct {
	Loss       float64
	Parts      []float64
	Breakdown  structure.Breakdown
	DepLoss    float64
	DepMat     *matrix.Dense
	Numerical  *matrix.Dense
	EncDec     *matrix.Dense
	Weight     *matrix.Dense // nil without a structured bottleneck
	DSM        *matrix.Dense // nil without a learned permutation
	Edges      metrics.EdgeScores
	DepMetrics jacobian.DepMatMetrics
}

// Report is the final disentanglement summary.
type Report struct {
	LinearMean      float64 `json:"linear_mean"`
	LinearStd       float64 `json:"linear_std"`
	PermutationMean float64 `json:"perm_mean"`
	PermutationStd  float64 `json:"perm_std"`
}

// Logger tracks the global step and the per-phase loss lists.
type Logger struct {
	nLogSteps int
	nSteps    int
	resume    bool
	verbose   bool

	globalStep int
	totalLoss  []float64
	partLoss   [][]float64
	linear     []float64
	perm       []float64
	started    bool

	sink Sink
	log  *slog.Logger
}

// NewLogger binds the logging settings of cfg.
func NewLogger(cfg Config, sink Sink, log *slog.Logger) *Logger {
	if sink == nil {
		sink = nopSink{}
	}
	if log == nil {
		log = slog.Default()
	}

	return &Logger{
		nLogSteps: cfg.NLogSteps,
		nSteps:    cfg.NSteps,
		resume:    cfg.ResumeTraining,
		verbose:   cfg.Verbose,
		sink:      sink,
		log:       log,
	}
}

// InitLogLists starts a phase. The lists are cleared unless training
// resumes, and the global step continues after the last recorded loss.
func (l *Logger) InitLogLists() {
	if !l.started || !l.resume {
		l.totalLoss = nil
		l.partLoss = nil
		l.linear = nil
		l.perm = nil
	}
	l.started = true
	l.globalStep = len(l.totalLoss) + 1
}

// GlobalStep is the step the next Log call records.
func (l *Logger) GlobalStep() int { return l.globalStep }

// TotalLoss returns the recorded totals of the current phase.
func (l *Logger) TotalLoss() []float64 { return append([]float64(nil), l.totalLoss...) }

// Scores returns the per-step linear and permutation scores. Between
// evaluations the last value repeats.
func (l *Logger) Scores() (linear, permutation []float64) {
	return append([]float64(nil), l.linear...), append([]float64(nil), l.perm...)
}

// evaluating reports whether the current step is a log step.
func (l *Logger) evaluating() bool {
	gs := l.globalStep
	return l.nLogSteps == 1 || gs%l.nLogSteps == 1 || gs == l.nSteps || len(l.linear) == 0
}

// Log records rec at the current global step and advances it.
//
// Implementation:
//   - Stage 1: append the losses.
//   - Stage 2: on log steps, score the encoder; otherwise repeat the
//     cached scores.
//   - Stage 3: forward scalars every step and matrices on log steps.
//   - Stage 4: print the step line on log steps.
func (l *Logger) Log(ctx context.Context, rec Record, score Scorer) error {
	l.totalLoss = append(l.totalLoss, rec.Loss)
	l.partLoss = append(l.partLoss, append([]float64(nil), rec.Parts...))

	eval := l.evaluating()
	if eval {
		lin, perm, err := score()
		if err != nil {
			return fmt.Errorf("train: step %d: disentanglement: %w", l.globalStep, err)
		}
		l.linear = append(l.linear, lin)
		l.perm = append(l.perm, perm)
	} else {
		l.linear = append(l.linear, l.linear[len(l.linear)-1])
		l.perm = append(l.perm, l.perm[len(l.perm)-1])
	}

	scalars := map[string]float64{
		"total_loss":     rec.Loss,
		"dep_loss":       rec.DepLoss,
		"lin_dis_score":  l.linear[len(l.linear)-1],
		"perm_dis_score": l.perm[len(l.perm)-1],
	}
	for k, v := range rec.Breakdown {
		scalars["loss_"+k] = v
	}
	for i, v := range rec.Parts {
		scalars[fmt.Sprintf("loss_part_%d", i)] = v
	}
	for k, v := range rec.Edges.Map() {
		scalars[k] = v
	}
	for k, v := range rec.DepMetrics.Map() {
		scalars[k] = v
	}
	if err := l.sink.LogScalars(ctx, l.globalStep, scalars); err != nil {
		return err
	}

	if eval {
		if err := l.logMatrices(ctx, rec); err != nil {
			return err
		}
		l.printStatistics(rec)
	}
	l.globalStep++

	return nil
}

func (l *Logger) logMatrices(ctx context.Context, rec Record) error {
	named := []struct {
		name string
		m    *matrix.Dense
	}{
		{"a", rec.DepMat},
		{"j", rec.EncDec},
		{"a_num", rec.Numerical},
		{"w", rec.Weight},
		{"dsm", rec.DSM},
	}
	for _, nm := range named {
		if nm.m == nil {
			continue
		}
		if err := l.sink.LogMatrix(ctx, l.globalStep, nm.name, nm.m); err != nil {
			return err
		}
	}

	return nil
}

// windowMean is the mean total loss over the last nLogSteps steps.
func (l *Logger) windowMean() float64 {
	w := l.totalLoss
	if len(w) > l.nLogSteps {
		w = w[len(w)-l.nLogSteps:]
	}

	return floats.Sum(w) / float64(len(w))
}

func (l *Logger) printStatistics(rec Record) {
	level := slog.LevelDebug
	if l.verbose {
		level = slog.LevelInfo
	}
	l.log.Log(context.Background(), level, "step",
		"step", l.globalStep,
		"loss", rec.Loss,
		"mean_loss", l.windowMean(),
		"lin_dis", l.linear[len(l.linear)-1],
		"perm_dis", l.perm[len(l.perm)-1],
		"dep_loss", rec.DepLoss,
		"edge_f1", rec.Edges.F1,
	)
	if rec.DepMat != nil {
		l.log.Debug("dependency matrix", "a", rec.DepMat.ToRows())
	}
}

// LogMatrix forwards one named matrix at the current step.
func (l *Logger) LogMatrix(ctx context.Context, name string, m *matrix.Dense) error {
	return l.sink.LogMatrix(ctx, l.globalStep, name, m)
}

// LogSummary forwards fixed run values.
func (l *Logger) LogSummary(ctx context.Context, kv map[string]any) error {
	for k, v := range kv {
		if err := l.sink.LogSummary(ctx, k, v); err != nil {
			return err
		}
	}

	return nil
}

// ReportFinal scores the encoder on batches fresh batches and stores the
// mean and (population) standard deviation of both scores.
func (l *Logger) ReportFinal(ctx context.Context, score Scorer, batches int) (Report, error) {
	if batches < 1 {
		return Report{}, ErrNoScores
	}
	lin := make([]float64, 0, batches)
	perm := make([]float64, 0, batches)
	for i := 0; i < batches; i++ {
		if err := ctx.Err(); err != nil {
			return Report{}, err
		}
		a, b, err := score()
		if err != nil {
			return Report{}, fmt.Errorf("train: final report: %w", err)
		}
		lin = append(lin, a)
		perm = append(perm, b)
	}

	var r Report
	r.LinearMean, r.LinearStd = stat.PopMeanStdDev(lin, nil)
	r.PermutationMean, r.PermutationStd = stat.PopMeanStdDev(perm, nil)
	l.log.Info("linear disentanglement", "mean", r.LinearMean, "std", r.LinearStd)
	l.log.Info("permutation disentanglement", "mean", r.PermutationMean, "std", r.PermutationStd)

	return r, l.sink.LogSummary(ctx, "final_disentanglement", r)
}

// nopSink drops everything.
type nopSink struct{}

func (nopSink) LogScalars(context.Context, int, map[string]float64) error { return nil }
func (nopSink) LogMatrix(context.Context, int, string, *matrix.Dense) error { return nil }
func (nopSink) LogSummary(context.Context, string, any) error { return nil }
func (nopSink) Save(context.Context, store.State, string) error { return nil }
