// SPDX-License-Identifier: MIT

// Package metrics scores a training run: running edge-recovery counts
// against the ground-truth structure, and the linear and permutation
// disentanglement scores of an encoder's latents.
package metrics
