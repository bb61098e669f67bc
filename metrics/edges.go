// SPDX-License-Identifier: MIT

package metrics

import (
	"fmt"
	"math"

	"github.com/katalvlaran/causalid/matrix"
)

// EdgeMetrics accumulates a binary confusion matrix of predicted versus
// true edges over every entry of the matrices it is fed.
type EdgeMetrics struct {
	tp, fp, tn, fn int
}

// EdgeScores are the summary statistics of an EdgeMetrics.
type EdgeScores struct {
	Accuracy, Precision, Recall, F1 float64
}

// Map flattens s for scalar logging.
func (s EdgeScores) Map() map[string]float64 {
	return map[string]float64{
		"edge_accuracy":  s.Accuracy,
		"edge_precision": s.Precision,
		"edge_recall":    s.Recall,
		"edge_f1":        s.F1,
	}
}

// Update thresholds pred and truth at |·| > threshold and adds the
// element-wise outcomes to the running counts.
// Errors: matrix.ErrDimensionMismatch, matrix.ErrNilMatrix.
func (e *EdgeMetrics) Update(pred, truth *matrix.Dense, threshold float64) error {
	if err := matrix.ValidateSameShape(pred, truth); err != nil {
		return fmt.Errorf("metrics.EdgeMetrics.Update: %w", err)
	}
	t := truth.Data()
	for k, v := range pred.Data() {
		p, g := math.Abs(v) > threshold, math.Abs(t[k]) > threshold
		switch {
		case p && g:
			e.tp++
		case p:
			e.fp++
		case g:
			e.fn++
		default:
			e.tn++
		}
	}

	return nil
}

// Compute returns the scores over everything seen since the last Reset.
// Undefined ratios (no positives) are 0.
func (e *EdgeMetrics) Compute() EdgeScores {
	var s EdgeScores
	if total := e.tp + e.fp + e.tn + e.fn; total > 0 {
		s.Accuracy = float64(e.tp+e.tn) / float64(total)
	}
	if e.tp+e.fp > 0 {
		s.Precision = float64(e.tp) / float64(e.tp+e.fp)
	}
	if e.tp+e.fn > 0 {
		s.Recall = float64(e.tp) / float64(e.tp+e.fn)
	}
	if s.Precision+s.Recall > 0 {
		s.F1 = 2 * s.Precision * s.Recall / (s.Precision + s.Recall)
	}

	return s
}

// Reset clears the counts.
func (e *EdgeMetrics) Reset() { *e = EdgeMetrics{} }
