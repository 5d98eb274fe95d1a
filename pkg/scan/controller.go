package scan

import (
	"context"

	"github.com/opencontainers/go-digest"
	log "github.com/sirupsen/logrus"
	"golang.org/x/xerrors"

	"github.com/sysdiglabs/secure-inline-scan/pkg/backend"
	"github.com/sysdiglabs/secure-inline-scan/pkg/docker"
	"github.com/sysdiglabs/secure-inline-scan/pkg/etc"
	"github.com/sysdiglabs/secure-inline-scan/pkg/ext"
	"github.com/sysdiglabs/secure-inline-scan/pkg/session"
)

// Backend is the remote scanning backend surface the pipeline consumes.
type Backend interface {
	ImportImage(ctx context.Context, archivePath string) error
	PollVerdict(ctx context.Context, d digest.Digest, tag string) (backend.ScanVerdict, error)
}

// SessionManager drives the lifecycle of the ephemeral helper session.
type SessionManager interface {
	Create(ctx context.Context, req etc.ScanRequest, d digest.Digest, tag string) (*session.Session, error)
	CopyArtifacts(ctx context.Context, s *session.Session, paths ...string) error
	Run(ctx context.Context, s *session.Session) error
	ExtractArchive(ctx context.Context, s *session.Session, destDir string) (string, error)
}

type Controller interface {
	Scan(ctx context.Context, req etc.ScanRequest) (backend.ScanVerdict, error)
}

type controller struct {
	runtime    docker.Runtime
	backend    Backend
	sessions   SessionManager
	cleaner    *Cleaner
	ambassador ext.Ambassador
}

func NewController(runtime docker.Runtime, b Backend, sessions SessionManager, cleaner *Cleaner, ambassador ext.Ambassador) Controller {
	return &controller{
		runtime:    runtime,
		backend:    b,
		sessions:   sessions,
		cleaner:    cleaner,
		ambassador: ambassador,
	}
}

// Scan runs the strictly sequential pipeline: resolve the image, create and
// populate the helper session, export and copy in the archive, run the
// helper to completion, ship the produced analysis archive and poll the
// verdict. Teardown is owned by the Cleaner, not by this method.
func (c *controller) Scan(ctx context.Context, req etc.ScanRequest) (verdict backend.ScanVerdict, err error) {
	if err = c.ambassador.MkdirAll(req.StagingDir, 0o755); err != nil {
		return verdict, xerrors.Errorf("creating staging dir: %w", err)
	}

	set, err := docker.NewResolver(c.runtime).Resolve(ctx, []string{req.Image}, req.PullBeforeScan)
	if err != nil {
		return verdict, err
	}
	ref := set.Resolved[0]

	tag, err := docker.NormalizeRef(ref)
	if err != nil {
		return verdict, err
	}
	d, err := docker.ImageDigest(ctx, c.runtime, ref)
	if err != nil {
		return verdict, err
	}

	sess, err := c.sessions.Create(ctx, req, d, tag)
	if sess != nil {
		c.cleaner.TrackSession(sess.ID)
	}
	if err != nil {
		return verdict, err
	}

	artifact, err := docker.NewExporter(c.runtime, c.ambassador, req.StagingDir).Export(ctx, ref)
	if artifact.Path != "" {
		// Track the archive even when the export failed halfway so the
		// partial file does not outlive the run.
		c.cleaner.TrackArtifact(artifact.Path)
	}
	if err != nil {
		return verdict, err
	}

	if err = c.sessions.CopyArtifacts(ctx, sess, artifact.Path); err != nil {
		return verdict, err
	}

	if err = c.sessions.Run(ctx, sess); err != nil {
		return verdict, err
	}

	archive, err := c.sessions.ExtractArchive(ctx, sess, req.StagingDir)
	if err != nil {
		return verdict, err
	}
	c.cleaner.TrackArtifact(archive)

	if err = c.backend.ImportImage(ctx, archive); err != nil {
		return verdict, err
	}

	verdict, err = c.backend.PollVerdict(ctx, artifact.Digest, tag)
	if err != nil {
		return verdict, err
	}

	log.WithFields(log.Fields{
		"image":  tag,
		"status": verdict.Status,
	}).Debug("Scan finished")
	return verdict, nil
}
