package etc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAnnotations(t *testing.T) {
	testCases := []struct {
		name          string
		value         string
		expected      map[string]string
		expectedError string
	}{
		{
			name:     "Should accept empty value",
			value:    "",
			expected: nil,
		},
		{
			name:     "Should parse a single pair",
			value:    "owner=security",
			expected: map[string]string{"owner": "security"},
		},
		{
			name:  "Should parse multiple pairs",
			value: "owner=security,env=prod,team=platform",
			expected: map[string]string{
				"owner": "security",
				"env":   "prod",
				"team":  "platform",
			},
		},
		{
			name:          "Should reject a bare key",
			value:         "owner=security,prod",
			expectedError: `malformed annotation "prod": expected key=value`,
		},
		{
			name:          "Should reject a blank value",
			value:         "owner=",
			expectedError: `malformed annotation "owner=": key and value must not be blank`,
		},
		{
			name:          "Should reject a blank key",
			value:         "=security",
			expectedError: `malformed annotation "=security": key and value must not be blank`,
		},
		{
			name:          "Should reject a stray equals sign",
			value:         "owner=a=b",
			expectedError: `malformed annotations "owner=a=b": 2 values for 1 pairs`,
		},
		{
			name:          "Should reject a trailing comma",
			value:         "owner=security,",
			expectedError: `malformed annotation "": expected key=value`,
		},
		{
			name:          "Should reject a leading comma",
			value:         ",owner=security",
			expectedError: `malformed annotation "": expected key=value`,
		},
		{
			name:          "Should reject duplicate keys",
			value:         "owner=a,owner=b",
			expectedError: `duplicate annotation key "owner"`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			annotations, err := ParseAnnotations(tc.value)
			if tc.expectedError != "" {
				require.EqualError(t, err, tc.expectedError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, annotations)
		})
	}
}

func TestGetDefaults(t *testing.T) {
	t.Run("Should fall back to built-in defaults", func(t *testing.T) {
		defaults, err := GetDefaults()
		require.NoError(t, err)
		assert.Equal(t, "/tmp/sysdig", defaults.StagingDir)
		assert.Equal(t, "anchore/inline-scan:latest", defaults.HelperImage)
	})

	t.Run("Should honor environment overrides", func(t *testing.T) {
		t.Setenv("INLINE_SCAN_STAGING_DIR", "/var/lib/inline-scan")
		t.Setenv("INLINE_SCAN_HELPER_IMAGE", "example.com/helper:v2")

		defaults, err := GetDefaults()
		require.NoError(t, err)
		assert.Equal(t, "/var/lib/inline-scan", defaults.StagingDir)
		assert.Equal(t, "example.com/helper:v2", defaults.HelperImage)
	})
}
