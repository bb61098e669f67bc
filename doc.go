// Package causalid learns the causal structure behind a nonlinear mixing of
// latent variables by training an encoder whose bottleneck is forced toward
// a triangular (autoregressive) form.
//
// What is inside?
//
//	A pure-Go training stack with reverse-mode autodiff:
//		• Bottleneck: a product of weight matrices masked to a lower triangle,
//		  with optional residual scaling, budget mask and structure injection
//		• Permutation learning: Sinkhorn-normalised doubly-stochastic matrices
//		• Structural losses: l1/l2, dependency, triangularity, QR/permutation,
//		  Sinkhorn entropy and budget, folded as gated terms
//		• Training: supervised and contrastive phases, Adam, edge metrics,
//		  disentanglement scores, SQLite-backed logging and checkpoints
//
// Packages:
//
//	matrix/     dense row-major kernels (LU, QR, pinv, statistics, structure)
//	autograd/   Var graph, Backward, NoGrad and the differentiable ops
//	optim/      Adam
//	rng/        the process-wide RandomState
//	device/     placement validation (cpu)
//	sinkhorn/   Sinkhorn normalisation and the permutation learner
//	bottleneck/ ARMLP, BudgetNet, FeatureMLP and the encoder Net
//	structure/  structural loss terms and their assembler
//	latent/     latent spaces and the contrastive triple sampler
//	mixing/     random triangular mixing and its ground-truth Jacobians
//	jacobian/   finite-difference dependency matrix and loss
//	dag/        causal graph: topological orders and indirect causes
//	metrics/    edge and disentanglement scores
//	store/      SQLite metrics sink and checkpoints
//	train/      configuration, logger and the training Runner
//
// Quick ASCII example (d = 3, chain z0 → z1 → z2):
//
//	    ┌ 1 0 0 ┐
//	W = │ a 1 0 │   strictly-upper entries stay 0
//	    └ 0 b 1 ┘
//
//	go run ./cmd/causalid -n 3 -mode both -qr-loss 0.1
package causalid
