// SPDX-License-Identifier: MIT

package jacobian

import (
	"fmt"
	"math"

	"github.com/katalvlaran/causalid/dag"
	"github.com/katalvlaran/causalid/matrix"
)

// DefaultThreshold is the magnitude above which a Jacobian entry counts as
// an edge.
const DefaultThreshold = 3e-5

// DepMatMetrics scores a learned dependency matrix against the ground-truth
// encoder Jacobian. Only off-diagonal entries are edges.
type DepMatMetrics struct {
	Precision float64
	Recall    float64
	F1        float64
	// IndirectMistaken counts ground-truth indirect causes the dependency
	// matrix reports as direct edges.
	IndirectMistaken int
	// UpperMass is Σ|strictly-upper| / Σ|off-diagonal| of the dependency
	// matrix: 0 for a perfectly triangular estimate.
	UpperMass float64
}

// Map flattens m for scalar logging.
func (m DepMatMetrics) Map() map[string]float64 {
	return map[string]float64{
		"dep_precision":         m.Precision,
		"dep_recall":            m.Recall,
		"dep_f1":                m.F1,
		"dep_indirect_mistaken": float64(m.IndirectMistaken),
		"dep_upper_mass":        m.UpperMass,
	}
}

// ComputeDepMatMetrics thresholds depMat and gtEncoder at threshold and
// compares their off-diagonal patterns. Indirect-cause edges use the dag
// convention: J[i][j] is the edge j → i.
// Errors: matrix.ErrDimensionMismatch, matrix.ErrNonSquare.
func ComputeDepMatMetrics(depMat, gtEncoder *matrix.Dense, indirect []dag.IndirectCause, threshold float64) (DepMatMetrics, error) {
	if err := matrix.ValidateSquare(depMat); err != nil {
		return DepMatMetrics{}, fmt.Errorf("jacobian.ComputeDepMatMetrics: %w", err)
	}
	if err := matrix.ValidateSameShape(depMat, gtEncoder); err != nil {
		return DepMatMetrics{}, fmt.Errorf("jacobian.ComputeDepMatMetrics: %w", err)
	}
	d := depMat.Rows()
	pred, truth := depMat.Data(), gtEncoder.Data()
	var tp, fp, fn int
	var out DepMatMetrics
	var upper, off float64
	for i := 0; i < d; i++ {
		for j := 0; j < d; j++ {
			if i == j {
				continue
			}
			v := math.Abs(pred[i*d+j])
			off += v
			if j > i {
				upper += v
			}
			p := v > threshold
			g := math.Abs(truth[i*d+j]) > threshold
			switch {
			case p && g:
				tp++
			case p:
				fp++
				if dag.IsIndirect(indirect, dag.Edge{From: j, To: i}) {
					out.IndirectMistaken++
				}
			case g:
				fn++
			}
		}
	}
	out.Precision = ratio(tp, tp+fp)
	out.Recall = ratio(tp, tp+fn)
	if s := out.Precision + out.Recall; s > 0 {
		out.F1 = 2 * out.Precision * out.Recall / s
	}
	if off > 0 {
		out.UpperMass = upper / off
	}

	return out, nil
}

// ratio returns num/den, or 1 when den is 0 (nothing to get wrong).
func ratio(num, den int) float64 {
	if den == 0 {
		return 1
	}

	return float64(num) / float64(den)
}
