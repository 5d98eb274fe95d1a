package docker

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/docker/docker/api/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sysdiglabs/secure-inline-scan/pkg/ext"
)

func TestNormalizeRef(t *testing.T) {
	testCases := []struct {
		name     string
		ref      string
		expected string
	}{
		{
			name:     "Should append latest to an untagged reference",
			ref:      "myapp",
			expected: "myapp:latest",
		},
		{
			name:     "Should keep an explicit tag",
			ref:      "myapp:1.0",
			expected: "myapp:1.0",
		},
		{
			name:     "Should keep a digest qualified reference",
			ref:      "myapp@sha256:e2b135bef7b2d0a2a4d5dbffba95d1a9a0171eaa30ca1e723c3e4444b0b4ecb4",
			expected: "myapp@sha256:e2b135bef7b2d0a2a4d5dbffba95d1a9a0171eaa30ca1e723c3e4444b0b4ecb4",
		},
		{
			name:     "Should keep a registry qualified reference",
			ref:      "registry.example.com/team/myapp:2.1",
			expected: "registry.example.com/team/myapp:2.1",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			normalized, err := NormalizeRef(tc.ref)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, normalized)
		})
	}
}

func TestImageDigestFallsBackToImageID(t *testing.T) {
	id := "sha256:e2b135bef7b2d0a2a4d5dbffba95d1a9a0171eaa30ca1e723c3e4444b0b4ecb4"

	d, err := imageDigest(nil, id)
	require.NoError(t, err)
	assert.Equal(t, id, d.String())
}

func TestImageDigestPrefersRepoDigest(t *testing.T) {
	repoDigest := "myapp@sha256:917f5b7f4bef1b35ee90f03033f33a81002511c1e0767fd44276d4bd9cd2fa8e"

	d, err := imageDigest([]string{repoDigest}, "sha256:other")
	require.NoError(t, err)
	assert.Equal(t, "sha256:917f5b7f4bef1b35ee90f03033f33a81002511c1e0767fd44276d4bd9cd2fa8e", d.String())
}

func TestExporter_Export(t *testing.T) {
	inspect := types.ImageInspect{
		ID: "sha256:e2b135bef7b2d0a2a4d5dbffba95d1a9a0171eaa30ca1e723c3e4444b0b4ecb4",
	}

	t.Run("Should export an archive and default the tag", func(t *testing.T) {
		stagingDir := t.TempDir()
		runtime := NewMockRuntime()
		runtime.On("InspectImage", "myapp:latest").Return(inspect, nil)
		runtime.On("SaveImage", "myapp:latest").
			Return(io.NopCloser(strings.NewReader("layer data")), nil)

		artifact, err := NewExporter(runtime, ext.DefaultAmbassador, stagingDir).
			Export(context.Background(), "myapp")
		require.NoError(t, err)

		assert.Equal(t, "myapp:latest", artifact.Ref)
		assert.Equal(t, inspect.ID, artifact.Digest.String())
		assert.Equal(t, filepath.Join(stagingDir, "myapp_latest.tar"), artifact.Path)

		info, err := os.Stat(artifact.Path)
		require.NoError(t, err)
		assert.Equal(t, int64(len("layer data")), info.Size())
		assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())

		runtime.AssertExpectations(t)
	})

	t.Run("Should fail when the exported archive is empty", func(t *testing.T) {
		stagingDir := t.TempDir()
		runtime := NewMockRuntime()
		runtime.On("InspectImage", "myapp:latest").Return(inspect, nil)
		runtime.On("SaveImage", "myapp:latest").
			Return(io.NopCloser(strings.NewReader("")), nil)

		artifact, err := NewExporter(runtime, ext.DefaultAmbassador, stagingDir).
			Export(context.Background(), "myapp")
		require.ErrorContains(t, err, "is missing or empty")

		// The zero-byte file is on disk and its path is reported so the
		// caller can release it.
		assert.Equal(t, filepath.Join(stagingDir, "myapp_latest.tar"), artifact.Path)
		_, statErr := os.Stat(artifact.Path)
		assert.NoError(t, statErr)
	})
}
