package docker

import (
	"context"
	"testing"

	"github.com/docker/docker/api/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
)

func TestResolver_Resolve(t *testing.T) {
	notFound := xerrors.New("no such image")

	testCases := []struct {
		name           string
		refs           []string
		pullBeforeScan bool
		local          map[string]bool
		pullErr        error

		expectedResolved []string
		expectedFailed   []string
		expectedError    string
	}{
		{
			name:             "Should resolve a locally present image",
			refs:             []string{"myapp:1.0"},
			local:            map[string]bool{"myapp:1.0": true},
			expectedResolved: []string{"myapp:1.0"},
		},
		{
			name:             "Should deduplicate identical references preserving order",
			refs:             []string{"myapp:1.0", "myapp:1.0"},
			local:            map[string]bool{"myapp:1.0": true},
			expectedResolved: []string{"myapp:1.0"},
		},
		{
			name:             "Should continue with the resolved subset when some references fail",
			refs:             []string{"myapp:1.0", "ghost:2.0"},
			local:            map[string]bool{"myapp:1.0": true, "ghost:2.0": false},
			expectedResolved: []string{"myapp:1.0"},
			expectedFailed:   []string{"ghost:2.0"},
		},
		{
			name:           "Should fail when no reference resolves",
			refs:           []string{"ghost:1.0", "ghost:2.0"},
			local:          map[string]bool{"ghost:1.0": false, "ghost:2.0": false},
			expectedFailed: []string{"ghost:1.0", "ghost:2.0"},
			expectedError:  "none of the requested images are available locally",
		},
		{
			name:             "Should treat a failed pull as non-fatal",
			refs:             []string{"myapp:1.0"},
			pullBeforeScan:   true,
			pullErr:          xerrors.New("registry unreachable"),
			local:            map[string]bool{"myapp:1.0": true},
			expectedResolved: []string{"myapp:1.0"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			runtime := NewMockRuntime()
			for ref, present := range tc.local {
				if tc.pullBeforeScan {
					runtime.On("PullImage", ref).Return(tc.pullErr)
				}
				if present {
					runtime.On("InspectImage", ref).Return(types.ImageInspect{ID: "sha256:abc"}, nil)
				} else {
					runtime.On("InspectImage", ref).Return(types.ImageInspect{}, notFound)
				}
			}

			set, err := NewResolver(runtime).Resolve(context.Background(), tc.refs, tc.pullBeforeScan)
			if tc.expectedError != "" {
				require.EqualError(t, err, tc.expectedError)
			} else {
				require.NoError(t, err)
			}

			assert.Equal(t, tc.expectedResolved, set.Resolved)
			assert.Equal(t, tc.expectedFailed, set.Failed)
			assert.ElementsMatch(t, set.Requested, append(set.Resolved, set.Failed...))
			runtime.AssertExpectations(t)
		})
	}
}
