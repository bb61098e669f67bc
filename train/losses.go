// SPDX-License-Identifier: MIT

package train

import (
	"fmt"
	"math"

	"github.com/katalvlaran/causalid/autograd"
	"github.com/katalvlaran/causalid/matrix"
)

// ContrastiveLoss scores the encoder's reconstructions of a triple. All
// inputs are latents × samples. parts holds the positive and negative
// halves of the loss for logging.
type ContrastiveLoss interface {
	Loss(anchor, positive, negative *autograd.Var) (total *autograd.Var, parts []float64, err error)
}

// LpSimCLR is the SimCLR objective with similarity −‖a−b‖²/τ.
//
// For every sample k the positive logit is sim(a_k, p_k) and the negative
// logits are sim(a_k, n_l) over the whole batch. The loss is
//
//	mean_k [ −pos_k + logsumexp(pos_k, neg_k·) ]
type LpSimCLR struct {
	Tau float64
}

// Loss implements ContrastiveLoss.
func (l LpSimCLR) Loss(anchor, positive, negative *autograd.Var) (*autograd.Var, []float64, error) {
	if anchor == nil || positive == nil || negative == nil {
		return nil, nil, autograd.ErrNilVar
	}
	tau := l.Tau
	if !(tau > 0) {
		tau = DefaultTau
	}
	n := anchor.Cols()

	// pos: n×1
	diff, err := autograd.Sub(anchor, positive)
	if err != nil {
		return nil, nil, fmt.Errorf("train: LpSimCLR: %w", err)
	}
	pos := autograd.Scale(autograd.Transpose(autograd.ColSums(autograd.Square(diff))), -1/tau)

	// neg: n×n, ‖a_k‖² + ‖n_l‖² − 2·a_k·n_l
	sqA, err := autograd.BroadcastTo(autograd.Transpose(autograd.ColSums(autograd.Square(anchor))), n, negative.Cols())
	if err != nil {
		return nil, nil, fmt.Errorf("train: LpSimCLR: %w", err)
	}
	sqN, err := autograd.BroadcastTo(autograd.ColSums(autograd.Square(negative)), n, negative.Cols())
	if err != nil {
		return nil, nil, fmt.Errorf("train: LpSimCLR: %w", err)
	}
	cross, err := autograd.MatMul(autograd.Transpose(anchor), negative)
	if err != nil {
		return nil, nil, fmt.Errorf("train: LpSimCLR: %w", err)
	}
	dist, err := autograd.Add(sqA, sqN)
	if err != nil {
		return nil, nil, err
	}
	if dist, err = autograd.Sub(dist, autograd.Scale(cross, 2)); err != nil {
		return nil, nil, err
	}
	neg := autograd.Scale(dist, -1/tau)

	lse, err := rowLogSumExp(pos, neg)
	if err != nil {
		return nil, nil, fmt.Errorf("train: LpSimCLR: %w", err)
	}
	lossPos := autograd.Scale(autograd.Mean(pos), -1)
	lossNeg := autograd.Mean(lse)
	total, err := autograd.Add(lossPos, lossNeg)
	if err != nil {
		return nil, nil, err
	}

	return total, []float64{lossPos.Item(), lossNeg.Item()}, nil
}

// rowLogSumExp returns log(exp(pos_k) + Σ_l exp(neg_kl)) per row, n×1,
// shifted by the detached row maximum.
func rowLogSumExp(pos, neg *autograd.Var) (*autograd.Var, error) {
	n, m := neg.Rows(), neg.Cols()
	shift, err := matrix.NewDense(n, 1)
	if err != nil {
		return nil, err
	}
	for k := 0; k < n; k++ {
		best := pos.Value.Data()[k]
		row, _ := neg.Value.RawRow(k)
		for _, v := range row {
			best = math.Max(best, v)
		}
		shift.Data()[k] = best
	}
	shiftVar := autograd.Const(shift)
	shiftWide, err := autograd.BroadcastTo(shiftVar, n, m)
	if err != nil {
		return nil, err
	}

	p, err := autograd.Sub(pos, shiftVar)
	if err != nil {
		return nil, err
	}
	q, err := autograd.Sub(neg, shiftWide)
	if err != nil {
		return nil, err
	}
	sum, err := autograd.Add(autograd.Exp(p), autograd.RowSums(autograd.Exp(q)))
	if err != nil {
		return nil, err
	}

	return autograd.Add(autograd.Log(sum), shiftVar)
}

// MSE is mean((reconstruction − target)²), the supervised objective.
func MSE(reconstruction *autograd.Var, target *matrix.Dense) (*autograd.Var, error) {
	if reconstruction == nil {
		return nil, autograd.ErrNilVar
	}
	d, err := autograd.Sub(reconstruction, autograd.Const(target))
	if err != nil {
		return nil, fmt.Errorf("train: MSE: %w", err)
	}

	return autograd.Mean(autograd.Square(d)), nil
}
