// SPDX-License-Identifier: MIT

package device_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/causalid/device"
)

func TestValidate(t *testing.T) {
	require.NoError(t, device.Validate("cpu"))
	require.NoError(t, device.Validate(" CPU "))
	require.ErrorIs(t, device.Validate("cuda"), device.ErrUnsupported)
	require.ErrorIs(t, device.Validate(""), device.ErrUnsupported)
}
