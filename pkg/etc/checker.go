package etc

import (
	"errors"
	"fmt"
	"net/url"
	"os"

	log "github.com/sirupsen/logrus"
)

// Check checks request values to fail fast in case of any problems
// that we might have due to invalid invocation parameters.
func Check(req ScanRequest) (err error) {
	log.WithFields(log.Fields{
		"pid": os.Getpid(),
		"uid": os.Getuid(),
	}).Debug("Current process")

	if req.BaseURL == "" {
		return errors.New("backend URL must not be blank")
	}
	if _, err = url.ParseRequestURI(req.BaseURL); err != nil {
		return fmt.Errorf("invalid backend URL: %w", err)
	}

	if req.Token == "" {
		return errors.New("API token must not be blank")
	}

	if req.Image == "" {
		return errors.New("exactly one image reference is required")
	}

	if req.TimeoutSeconds <= 0 {
		return fmt.Errorf("timeout must be a positive number of seconds, got %d", req.TimeoutSeconds)
	}

	if req.PostRetries < 1 || req.PostRetries > MaxPostRetries {
		return fmt.Errorf("post retries must be between 1 and %d, got %d", MaxPostRetries, req.PostRetries)
	}

	if req.GetRetries < 1 || req.GetRetries > MaxGetRetries {
		return fmt.Errorf("get retries must be between 1 and %d, got %d", MaxGetRetries, req.GetRetries)
	}

	if req.DockerfilePath != "" && !fileExists(req.DockerfilePath) {
		return fmt.Errorf("dockerfile does not exist: %s", req.DockerfilePath)
	}

	if req.ManifestPath != "" && !fileExists(req.ManifestPath) {
		return fmt.Errorf("manifest does not exist: %s", req.ManifestPath)
	}

	if req.StagingDir == "" {
		return errors.New("staging dir must not be blank")
	}

	return nil
}

// fileExists checks if a file exists and is not a directory before we
// try using it to prevent further errors.
func fileExists(name string) bool {
	info, err := os.Stat(name)
	return err == nil && !info.IsDir()
}
