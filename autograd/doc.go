// SPDX-License-Identifier: MIT

// Package autograd implements reverse-mode automatic differentiation over
// *matrix.Dense values.
//
// Purpose:
//   - Build a computation graph on the fly: every op returns a *Var that
//     remembers its parents and a closure propagating the output gradient.
//   - Backward(root) runs the closures in reverse topological order starting
//     from a 1×1 root (a scalar loss).
//   - NoGrad(fn) disables graph construction for evaluation-only code paths.
//
// Conventions:
//   - Element-wise binary ops require equal shapes; use BroadcastTo to expand
//     r×1, 1×c or 1×1 operands explicitly.
//   - Ops that can fail on shape return (*Var, error); unary maps do not.
//   - Params accumulate gradients across Backward calls until ZeroGrad.
//
// AI-Hints:
//   - The graph is single-use: build, Backward, drop. Params survive.
//   - Const values never receive gradients; Detach turns any Var into a Const.
package autograd
