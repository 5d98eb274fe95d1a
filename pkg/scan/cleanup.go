package scan

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/xerrors"

	"github.com/sysdiglabs/secure-inline-scan/pkg/backend"
	"github.com/sysdiglabs/secure-inline-scan/pkg/docker"
	"github.com/sysdiglabs/secure-inline-scan/pkg/ext"
	"github.com/sysdiglabs/secure-inline-scan/pkg/session"
)

const (
	removeAttempts = 12
	removeBackoff  = 5 * time.Second
)

// Cleaner guarantees that the helper session and the staging area are
// released exactly once regardless of the exit path. It is safe to invoke
// repeatedly from the error, signal and normal paths; absence of a session
// is not an error.
type Cleaner struct {
	runtime    docker.Runtime
	ambassador ext.Ambassador
	stagingDir string

	attempts int
	backoff  time.Duration

	mu        sync.Mutex
	sessions  []string
	artifacts []string
}

func NewCleaner(runtime docker.Runtime, ambassador ext.Ambassador, stagingDir string) *Cleaner {
	return &Cleaner{
		runtime:    runtime,
		ambassador: ambassador,
		stagingDir: stagingDir,
		attempts:   removeAttempts,
		backoff:    removeBackoff,
	}
}

// TrackSession records a created helper session for teardown.
func (c *Cleaner) TrackSession(containerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions = append(c.sessions, containerID)
}

// TrackArtifact records a file produced on the staging area.
func (c *Cleaner) TrackArtifact(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.artifacts = append(c.artifacts, path)
}

// Cleanup tears down every tracked (or discovered) helper session and then
// removes the staging area if any artifacts or the diagnostics log exist.
func (c *Cleaner) Cleanup(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := c.sessions
	if len(ids) == 0 {
		// Failure may have happened before the session ID was recorded.
		discovered, err := c.runtime.ListContainers(ctx, session.NamePrefix)
		if err != nil {
			log.WithError(err).Warn("Could not scan for leftover helper sessions")
		}
		ids = discovered
	}

	for _, id := range ids {
		if err := c.removeSession(ctx, id); err != nil {
			return err
		}
	}
	c.sessions = nil

	if c.stagingDirty() {
		log.WithField("path", c.stagingDir).Debug("Removing staging dir")
		if err := c.ambassador.RemoveAll(c.stagingDir); err != nil {
			return xerrors.Errorf("removing staging dir: %w", err)
		}
	}
	c.artifacts = nil

	return nil
}

func (c *Cleaner) removeSession(ctx context.Context, containerID string) error {
	for attempt := 1; attempt <= c.attempts; attempt++ {
		exists, err := c.runtime.ContainerExists(ctx, containerID)
		if err == nil && !exists {
			return nil
		}

		// Kill may fail on an already stopped session, removal decides.
		_ = c.runtime.KillContainer(ctx, containerID)
		if err := c.runtime.RemoveContainer(ctx, containerID); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"session": containerID,
				"attempt": attempt,
			}).Debug("Session removal attempt failed")
		}

		exists, err = c.runtime.ContainerExists(ctx, containerID)
		if err == nil && !exists {
			return nil
		}

		if attempt < c.attempts {
			timer := time.NewTimer(c.backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
			case <-timer.C:
			}
		}
	}

	return xerrors.Errorf("helper session %s could not be removed after %d attempts", containerID, c.attempts)
}

func (c *Cleaner) stagingDirty() bool {
	if len(c.artifacts) > 0 {
		return true
	}
	_, err := c.ambassador.Stat(filepath.Join(c.stagingDir, backend.ResponseLog))
	return err == nil
}
