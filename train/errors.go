// SPDX-License-Identifier: MIT

package train

import (
	"errors"
	"fmt"

	"github.com/katalvlaran/causalid/sinkhorn"
)

var (
	// ErrConfiguration marks fatal construction-time settings. Every
	// configuration error in the module wraps it.
	ErrConfiguration = sinkhorn.ErrConfiguration

	// ErrUnknownMode is returned for a mode other than supervised,
	// unsupervised or both.
	ErrUnknownMode = fmt.Errorf("train: unknown mode: %w", ErrConfiguration)

	// ErrNoScores is returned by the final report before any evaluation ran.
	ErrNoScores = errors.New("train: no disentanglement scores recorded")
)

// configErrorf reports an invalid field, wrapping ErrConfiguration.
func configErrorf(field, format string, args ...any) error {
	return fmt.Errorf("train: %s: %s: %w", field, fmt.Sprintf(format, args...), ErrConfiguration)
}
