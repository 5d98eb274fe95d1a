package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/xerrors"

	"github.com/sysdiglabs/secure-inline-scan/pkg/cmd"
)

func TestExitCode(t *testing.T) {
	testCases := []struct {
		name        string
		err         error
		interrupted bool
		expected    int
	}{
		{
			name:     "Should exit 0 on a passed scan",
			expected: exitOK,
		},
		{
			name:     "Should exit 1 on a non-pass verdict",
			err:      cmd.ErrVerdictNotPass,
			expected: exitFailure,
		},
		{
			name:     "Should exit 1 on any pipeline failure",
			err:      xerrors.New("uploading analysis archive: status 500: boom"),
			expected: exitFailure,
		},
		{
			name:        "Should exit 130 when the run was interrupted",
			err:         context.Canceled,
			interrupted: true,
			expected:    exitInterrupted,
		},
		{
			name:        "Should exit 130 even when the interrupt surfaced as another error",
			err:         xerrors.Errorf("waiting for session: %w", context.Canceled),
			interrupted: true,
			expected:    exitInterrupted,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, exitCode(tc.err, tc.interrupted))
		})
	}
}
