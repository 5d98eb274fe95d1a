package etc

import (
	"strings"

	"github.com/caarlos0/env/v6"
	"golang.org/x/xerrors"
)

type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// Defaults holds the environment driven knobs that are not exposed as flags.
type Defaults struct {
	StagingDir  string `env:"INLINE_SCAN_STAGING_DIR" envDefault:"/tmp/sysdig"`
	HelperImage string `env:"INLINE_SCAN_HELPER_IMAGE" envDefault:"anchore/inline-scan:latest"`
}

const (
	DefaultPostRetries = 3
	MaxPostRetries     = 10

	DefaultGetRetries = 100
	MaxGetRetries     = 300
)

// ScanRequest is the validated, immutable input of a single analyze run.
// It is built once by the CLI layer and threaded through every stage.
type ScanRequest struct {
	BaseURL        string
	Token          string
	Image          string
	DockerfilePath string
	ManifestPath   string
	ImageID        string
	Annotations    map[string]string
	TimeoutSeconds int
	PostRetries    int
	GetRetries     int
	Verbose        bool
	PullBeforeScan bool
	InsecureTLS    bool

	StagingDir  string
	HelperImage string
}

func GetDefaults() (cfg Defaults, err error) {
	err = env.Parse(&cfg)
	return
}

// ParseAnnotations parses a comma separated list of key=value pairs.
// The number of "=" occurrences must match the number of parsed pairs,
// so values containing "=" or bare keys are rejected rather than silently
// producing a wrong annotation set.
func ParseAnnotations(value string) (map[string]string, error) {
	if value == "" {
		return nil, nil
	}

	annotations := make(map[string]string)
	pairs := strings.Split(value, ",")
	for _, pair := range pairs {
		key, val, found := strings.Cut(pair, "=")
		if !found {
			return nil, xerrors.Errorf("malformed annotation %q: expected key=value", pair)
		}
		if key == "" || val == "" {
			return nil, xerrors.Errorf("malformed annotation %q: key and value must not be blank", pair)
		}
		if _, ok := annotations[key]; ok {
			return nil, xerrors.Errorf("duplicate annotation key %q", key)
		}
		annotations[key] = val
	}

	if eq := strings.Count(value, "="); eq != len(pairs) {
		return nil, xerrors.Errorf("malformed annotations %q: %d values for %d pairs", value, eq, len(pairs))
	}

	return annotations, nil
}
