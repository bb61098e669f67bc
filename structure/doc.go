// SPDX-License-Identifier: MIT

// Package structure assembles the structural losses that shape the
// bottleneck's causal order.
//
// An Assembler turns a Model, a set of Coefficients and the per-step
// inputs (dependency loss, dependency matrix, contrastive views) into a
// declarative list of Terms. Every term carries its own gate; disabled
// terms contribute exactly zero and are still reported in the Breakdown,
// so ablations log the same keys whatever is switched on.
//
// Terms, in fold order:
//
//	l2             Σ p² over encoder params          l2 ≠ 0
//	l1             mean |assembled weight|           l1 ≠ 0, AR active
//	entropy        Sinkhorn entropy                  entropy ≠ 0, permutation learning
//	dep            dependency loss                   supplied for the step
//	triangularity  Σ FrobeniusDiagonality(|corr|)    coefficient ≠ 0, start step reached
//	qr             PermutationLoss(Q(Jᵀ))            coefficient ≠ 0, start step reached
//	budget         budget-mask excess                budget ≠ 0, AR active
//	budget_entropy budget-mask entropy               budget and entropy ≠ 0, AR active
//
// The metrics (FrobeniusDiagonality, CorrMatrix, ExtractPermutation,
// PermutationLoss) are differentiable and usable on their own.
package structure
