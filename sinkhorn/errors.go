// SPDX-License-Identifier: MIT

package sinkhorn

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks invalid construction-time settings. Higher
	// layers wrap their own configuration failures with it.
	ErrConfiguration = errors.New("configuration error")

	// ErrInvalidSteps is returned when the iteration count is below 1.
	ErrInvalidSteps = fmt.Errorf("sinkhorn: number of steps must be at least 1: %w", ErrConfiguration)

	// ErrInvalidTemperature is returned for τ <= 0.
	ErrInvalidTemperature = fmt.Errorf("sinkhorn: temperature must be positive: %w", ErrConfiguration)
)
