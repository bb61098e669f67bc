// SPDX-License-Identifier: MIT

package structure

import (
	"errors"
	"fmt"
)

var (
	// ErrNilModel is returned when an Assembler has no model to read from.
	ErrNilModel = errors.New("structure: nil model")

	// ErrNoStructure is returned when the qr term has neither an assembled
	// weight nor a dependency matrix to work on.
	ErrNoStructure = errors.New("structure: no structural matrix available")

	// ErrNonSquare is returned when a structural metric receives a non-square matrix.
	ErrNonSquare = errors.New("structure: matrix must be square")
)

func termErrorf(name string, err error) error {
	return fmt.Errorf("structure: term %q: %w", name, err)
}
