// SPDX-License-Identifier: MIT

package autograd

import (
	"errors"
	"fmt"
)

var (
	// ErrNilVar is returned when an op receives a nil *Var.
	ErrNilVar = errors.New("autograd: nil variable")

	// ErrNotScalar is returned by Backward when the root is not 1×1.
	ErrNotScalar = errors.New("autograd: backward root must be 1x1")

	// ErrBroadcast is returned when an operand cannot be expanded to the target shape.
	ErrBroadcast = errors.New("autograd: operand not broadcastable")

	// ErrUnknownFactorization is returned for an unsupported Factorization value.
	ErrUnknownFactorization = errors.New("autograd: unknown factorization")
)

// opErrorf wraps err with the op tag, keeping errors.Is intact.
func opErrorf(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}
