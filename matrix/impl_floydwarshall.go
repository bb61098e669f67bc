// SPDX-License-Identifier: MIT
// Package: matrix
//
// Purpose:
//   - Dense all-pairs hop distances (Floyd–Warshall) over a directed support
//     pattern, with a deterministic loop order.
//   - Used by the causal-graph utilities to decide reachability before any
//     path enumeration.
//
// Contract:
//   - Square input; a[i][j] with |a[i][j]| > eps is the edge i→j.
//   - Output diagonal is 0; +Inf means "no path".

package matrix

import (
	"fmt"
	"math"
)

const opShortestHops = "ShortestHops"

// hopDistances builds the initial distance matrix from the support of a:
//
//	diag = 0; |a[i][j]| > eps ⇒ 1; otherwise +Inf.
//
// Complexity: O(n^2).
func hopDistances(a *Dense, eps float64) *Dense {
	n := a.r
	d := &Dense{r: n, c: n, data: make([]float64, n*n)}
	inf := math.Inf(1)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			switch {
			case i == j:
				d.data[i*n+j] = 0
			case math.Abs(a.data[i*n+j]) > eps:
				d.data[i*n+j] = 1
			default:
				d.data[i*n+j] = inf
			}
		}
	}

	return d
}

// floydWarshallInPlace relaxes d to all-pairs shortest distances.
//
// Loop order is fixed (k → i → j) for deterministic accumulation.
// Time: O(n^3); Extra space: O(1).
func floydWarshallInPlace(d *Dense) {
	n := d.r
	var (
		k, i, j      int
		baseK, baseI int
		ik, kj, cand float64
	)
	data := d.data

	for k = 0; k < n; k++ {
		baseK = k * n
		for i = 0; i < n; i++ {
			ik = data[i*n+k]
			if math.IsInf(ik, 1) {
				continue
			}
			baseI = i * n
			for j = 0; j < n; j++ {
				kj = data[baseK+j]
				if math.IsInf(kj, 1) {
					continue
				}
				cand = ik + kj
				if cand < data[baseI+j] {
					data[baseI+j] = cand
				}
			}
		}
	}
}

// ShortestHops returns the minimum number of edges on a directed path
// i→…→j for every pair, reading |a[i][j]| > eps as the edge i→j.
//
// Errors: ErrNilMatrix, ErrNonSquare, ErrNaNInf (eps).
//
// Complexity: Time O(n^3), Space O(n^2).
func ShortestHops(a *Dense, eps float64) (*Dense, error) {
	if err := ValidateSquare(a); err != nil {
		return nil, matrixErrorf(opShortestHops, err)
	}
	if math.IsNaN(eps) || math.IsInf(eps, 0) || eps < 0 {
		return nil, matrixErrorf(opShortestHops, fmt.Errorf("eps=%g: %w", eps, ErrNaNInf))
	}
	d := hopDistances(a, eps)
	floydWarshallInPlace(d)

	return d, nil
}
