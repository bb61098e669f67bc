// SPDX-License-Identifier: MIT

// Package device names compute placements. Only host memory exists; every
// component validates the target here before moving anything.
package device

import (
	"errors"
	"fmt"
	"strings"
)

// CPU is the only supported placement.
const CPU = "cpu"

// ErrUnsupported is returned for any placement other than CPU.
var ErrUnsupported = errors.New("device: unsupported device")

// Validate accepts "cpu" in any letter case.
func Validate(name string) error {
	if strings.EqualFold(strings.TrimSpace(name), CPU) {
		return nil
	}

	return fmt.Errorf("%q: %w", name, ErrUnsupported)
}
