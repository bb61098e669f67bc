// SPDX-License-Identifier: MIT

// Package sinkhorn relaxes permutations into doubly-stochastic matrices.
//
// Operator implements the Sinkhorn iteration S₀ = exp(M), then k rounds of
// row normalisation followed by column normalisation. Every step is an
// autograd op, so gradients reach the matrix the operator is applied to.
//
// Net owns a learnable square weight W and a temperature τ and exposes
// Sinkhorn(W/τ). Lower τ sharpens the result toward a hard permutation.
package sinkhorn
