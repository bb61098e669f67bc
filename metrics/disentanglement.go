// SPDX-License-Identifier: MIT

package metrics

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/katalvlaran/causalid/matrix"
)

const (
	// exhaustiveLimit is the largest dimension searched over all permutations.
	exhaustiveLimit = 8
	svdRcond        = 1e-12
)

// ErrTooFewSamples is returned when a score needs more samples than given.
var ErrTooFewSamples = errors.New("metrics: too few samples")

// DisentanglementScores computes the linear and permutation scores of
// latents hz against ground-truth z, both d×n.
func DisentanglementScores(z, hz *matrix.Dense) (linear, permutation float64, err error) {
	if linear, err = LinearScore(z, hz); err != nil {
		return 0, 0, err
	}
	if permutation, err = PermutationScore(z, hz); err != nil {
		return 0, 0, err
	}

	return linear, permutation, nil
}

// LinearScore fits z ≈ B·hz + c by least squares and returns the R²
// averaged uniformly over the d targets.
//
// Errors: matrix.ErrDimensionMismatch, ErrTooFewSamples (n ≤ d).
func LinearScore(z, hz *matrix.Dense) (float64, error) {
	if err := matrix.ValidateSameShape(z, hz); err != nil {
		return 0, fmt.Errorf("metrics.LinearScore: %w", err)
	}
	d, n := z.Shape()
	if n <= d {
		return 0, fmt.Errorf("metrics.LinearScore: n=%d d=%d: %w", n, d, ErrTooFewSamples)
	}

	// Design matrix [hzᵀ | 1] (n×(d+1)) and targets zᵀ (n×d).
	X := mat.NewDense(n, d+1, nil)
	Y := mat.NewDense(n, d, nil)
	for i := 0; i < d; i++ {
		zr, _ := z.RawRow(i)
		hr, _ := hz.RawRow(i)
		for k := 0; k < n; k++ {
			X.Set(k, i, hr[k])
			Y.Set(k, i, zr[k])
		}
	}
	for k := 0; k < n; k++ {
		X.Set(k, d, 1)
	}
	var B mat.Dense
	if err := B.Solve(X, Y); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return 0, fmt.Errorf("metrics.LinearScore: %w", err)
		}
		// Rank-deficient design (collapsed latents): minimum-norm solution.
		var svd mat.SVD
		if !svd.Factorize(X, mat.SVDThin) {
			return 0, fmt.Errorf("metrics.LinearScore: %w", err)
		}
		B.Reset()
		svd.SolveTo(&B, Y, svd.Rank(svdRcond))
	}
	var pred mat.Dense
	pred.Mul(X, &B)

	var total float64
	col := make([]float64, n)
	fit := make([]float64, n)
	for i := 0; i < d; i++ {
		mat.Col(col, i, Y)
		mat.Col(fit, i, &pred)
		mean := stat.Mean(col, nil)
		var ssRes, ssTot float64
		for k := range col {
			ssRes += (col[k] - fit[k]) * (col[k] - fit[k])
			ssTot += (col[k] - mean) * (col[k] - mean)
		}
		if ssTot == 0 {
			// Constant target: perfect if predicted exactly.
			if ssRes == 0 {
				total++
			}
			continue
		}
		total += 1 - ssRes/ssTot
	}

	return total / float64(d), nil
}

// PermutationScore returns the mean |Pearson correlation| between z_i and
// hz_π(i) under the assignment π that maximises it. The search is exhaustive
// up to dimension 8 and greedy beyond.
//
// Errors: matrix.ErrDimensionMismatch, ErrTooFewSamples (n < 2).
func PermutationScore(z, hz *matrix.Dense) (float64, error) {
	if err := matrix.ValidateSameShape(z, hz); err != nil {
		return 0, fmt.Errorf("metrics.PermutationScore: %w", err)
	}
	d, n := z.Shape()
	if n < 2 {
		return 0, fmt.Errorf("metrics.PermutationScore: n=%d: %w", n, ErrTooFewSamples)
	}
	C := make([][]float64, d)
	for i := range C {
		C[i] = make([]float64, d)
		zr, _ := z.RawRow(i)
		for j := range C[i] {
			hr, _ := hz.RawRow(j)
			c := stat.Correlation(zr, hr, nil)
			if math.IsNaN(c) {
				c = 0
			}
			C[i][j] = math.Abs(c)
		}
	}
	_, best := BestAssignment(C)

	return best / float64(d), nil
}

// BestAssignment returns perm maximising Σ_i C[i][perm[i]] and that sum.
func BestAssignment(C [][]float64) ([]int, float64) {
	d := len(C)
	if d <= exhaustiveLimit {
		return exhaustiveAssignment(C)
	}

	return greedyAssignment(C)
}

func exhaustiveAssignment(C [][]float64) ([]int, float64) {
	d := len(C)
	perm := make([]int, d)
	used := make([]bool, d)
	best := math.Inf(-1)
	bestPerm := make([]int, d)
	var walk func(i int, acc float64)
	walk = func(i int, acc float64) {
		if i == d {
			if acc > best {
				best = acc
				copy(bestPerm, perm)
			}
			return
		}
		for j := 0; j < d; j++ {
			if used[j] {
				continue
			}
			used[j] = true
			perm[i] = j
			walk(i+1, acc+C[i][j])
			used[j] = false
		}
	}
	walk(0, 0)
	if d == 0 {
		best = 0
	}

	return bestPerm, best
}

// greedyAssignment repeatedly takes the largest remaining entry.
func greedyAssignment(C [][]float64) ([]int, float64) {
	d := len(C)
	perm := make([]int, d)
	rowUsed := make([]bool, d)
	colUsed := make([]bool, d)
	flat := make([]float64, 0, d*d)
	for _, row := range C {
		flat = append(flat, row...)
	}
	idx := make([]int, len(flat))
	floats.Argsort(flat, idx)
	var total float64
	for k := len(idx) - 1; k >= 0; k-- {
		i, j := idx[k]/d, idx[k]%d
		if rowUsed[i] || colUsed[j] {
			continue
		}
		rowUsed[i], colUsed[j] = true, true
		perm[i] = j
		total += flat[k]
	}

	return perm, total
}
