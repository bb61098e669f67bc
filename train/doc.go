// SPDX-License-Identifier: MIT

// Package train orchestrates structure-identifiability training.
//
// A Runner owns one run: a latent sampler, a random triangular mixing
// decoder with its ground-truth Jacobians, the encoder (bottleneck.Net),
// an Adam optimiser and the structural loss assembler. TrainingLoop walks
// the phases of Config.LearningModes:
//
//	supervised   MSE(h(z), z)
//	unsupervised LpSimCLR over (anchor, positive, negative)
//
// Every step adds the structural terms, updates the edge metrics against
// the ground-truth encoder and hands a Record to the Logger, which
// forwards scalars and matrices to a Sink (normally a *store.Store).
// Phases end with a checkpoint; the encoder and optimiser are rebuilt
// before the next phase starts.
//
// With a zero learning rate every step runs under autograd.NoGrad and
// only metrics are produced.
package train
