// SPDX-License-Identifier: MIT

// Package matrix provides the dense linear-algebra substrate used by the
// structural-identifiability trainer.
//
// What:
//
//   - Dense: a row-major float64 matrix with bounds-checked At/Set and raw
//     access to its flat buffer for hot loops.
//   - Kernels: Mul, Add, Sub, Hadamard, Scale, Transpose, LU, Inverse, QR.
//   - Structure helpers: Tril/Triu masks, diagonal extraction, 0/1 support
//     masks, permutation matrices and triangularity checks.
//   - Reachability: ShortestHops, Floyd–Warshall hop distances over a
//     support pattern.
//   - Statistics: row centering and row-wise Pearson correlation.
//   - Numerical fallbacks backed by gonum: SVD pseudo-inverse and Cholesky.
//
// Why:
//
//	Weight stacks, Sinkhorn iterates and Jacobians are all small square
//	matrices (d×d, d = number of latent variables). A single concrete type
//	with explicit loop orders keeps every result reproducible bit-for-bit.
//
// Conventions:
//
//   - Kernels never mutate their operands; they allocate a fresh *Dense.
//   - Errors are package sentinels wrapped with an operation tag, so callers
//     match them with errors.Is.
//   - QR returns Q and R such that A = Q·R.
//
// Complexity:
//
//	At/Set O(1); element-wise kernels O(r*c); Mul O(r*n*c); LU, Inverse,
//	QR O(n^3).
package matrix
