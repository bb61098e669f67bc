// SPDX-License-Identifier: MIT

package bottleneck

import (
	"errors"
	"fmt"

	"github.com/katalvlaran/causalid/device"
	"github.com/katalvlaran/causalid/sinkhorn"
)

var (
	// ErrConfiguration marks fatal construction-time settings; shared with sinkhorn.
	ErrConfiguration = sinkhorn.ErrConfiguration

	// ErrNoFeatureLayers is returned when both pre- and post-layer lists are empty.
	ErrNoFeatureLayers = fmt.Errorf("bottleneck: no pre- or post-layer features: %w", ErrConfiguration)

	// ErrFeatureWidth is returned when the outer feature width is not 1 or
	// adjacent layer widths disagree.
	ErrFeatureWidth = fmt.Errorf("bottleneck: invalid feature width: %w", ErrConfiguration)

	// ErrUnknownInit is returned for an unrecognised weight initialiser name.
	ErrUnknownInit = fmt.Errorf("bottleneck: unknown weight init: %w", ErrConfiguration)

	// ErrNumWeights is returned when the weight stack would be empty.
	ErrNumWeights = fmt.Errorf("bottleneck: num weights must be at least 1: %w", ErrConfiguration)

	// ErrShape is returned when an input does not match the layer contract.
	ErrShape = errors.New("bottleneck: shape mismatch")

	// ErrBudgetDisabled is returned when budget terms are requested without a budget mask.
	ErrBudgetDisabled = errors.New("bottleneck: budget mask disabled")

	// ErrUnsupportedDevice is returned by To for anything but the CPU.
	ErrUnsupportedDevice = device.ErrUnsupported
)

func bottleneckErrorf(op string, err error) error {
	return fmt.Errorf("bottleneck.%s: %w", op, err)
}
