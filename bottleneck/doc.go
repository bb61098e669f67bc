// SPDX-License-Identifier: MIT

// Package bottleneck implements the autoregressive bottleneck encoder.
//
// Purpose:
//   - ARMLP: a masked, optionally residual and budget-constrained linear map
//     whose weight is the element-wise product of an immutable WeightStack.
//     Triangular mode enforces a lower-triangular (causal-order) structure.
//   - FeatureMLP: per-variable feature expansion/contraction; variable i only
//     ever sees its own channel, so cross-variable effects arise solely in
//     the ARMLP.
//   - Net: pre-layers → optional Sinkhorn permutation → ARMLP → post-layers.
//
// Data layout: variables in rows, samples in columns (d×n). A feature
// channel list []*autograd.Var of width f carries f such d×n matrices.
//
// Structure injection:
//   - Inject(V) swaps in the stack [V, neutral, neutral, ...].
//   - InjectStructure(adj, true) masks the assembled weight with |adj| > 0.
//   - MakeTriangularWithPermute(V, P) locks a triangular order with a fixed
//     permutation of the inputs.
package bottleneck
