package docker

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/go-containerregistry/pkg/name"
	"github.com/opencontainers/go-digest"
	log "github.com/sirupsen/logrus"
	"golang.org/x/xerrors"

	"github.com/sysdiglabs/secure-inline-scan/pkg/ext"
)

type Exporter struct {
	runtime    Runtime
	ambassador ext.Ambassador
	stagingDir string
}

func NewExporter(runtime Runtime, ambassador ext.Ambassador, stagingDir string) *Exporter {
	return &Exporter{
		runtime:    runtime,
		ambassador: ambassador,
		stagingDir: stagingDir,
	}
}

// Export serializes the image to a tar archive on the staging area.
// Serialization failures are fatal and never retried; they indicate a
// problem with the local engine, not with this tool. Once the archive file
// has been created the returned artifact carries its path even on failure,
// so callers can release the partial file.
func (e *Exporter) Export(ctx context.Context, ref string) (artifact ArchiveArtifact, err error) {
	normalized, err := NormalizeRef(ref)
	if err != nil {
		return artifact, err
	}

	inspect, err := e.runtime.InspectImage(ctx, normalized)
	if err != nil {
		return artifact, xerrors.Errorf("inspecting image %s: %w", normalized, err)
	}

	d, err := imageDigest(inspect.RepoDigests, inspect.ID)
	if err != nil {
		return artifact, xerrors.Errorf("determining digest of %s: %w", normalized, err)
	}

	path := filepath.Join(e.stagingDir, archiveFileName(normalized))
	log.WithFields(log.Fields{
		"image": normalized,
		"path":  path,
	}).Debug("Exporting image archive")

	out, err := e.runtime.SaveImage(ctx, normalized)
	if err != nil {
		return artifact, xerrors.Errorf("saving image %s: %w", normalized, err)
	}
	defer func() {
		_ = out.Close()
	}()

	file, err := e.ambassador.Create(path)
	if err != nil {
		return artifact, xerrors.Errorf("creating archive file: %w", err)
	}
	// The file exists from this point on, even if writing it fails halfway.
	artifact = ArchiveArtifact{Ref: normalized, Path: path, Digest: d}

	_, err = io.Copy(file, out)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return artifact, xerrors.Errorf("writing archive file: %w", err)
	}

	info, err := e.ambassador.Stat(path)
	if err != nil || info.Size() == 0 {
		return artifact, xerrors.Errorf("exported archive %s is missing or empty", path)
	}

	// The archive is consumed by the helper process which may run under a
	// different UID.
	if err = e.ambassador.Chmod(path, 0o644); err != nil {
		return artifact, xerrors.Errorf("adjusting archive permissions: %w", err)
	}

	return artifact, nil
}

// NormalizeRef appends the default "latest" qualifier to references without
// an explicit tag so that downstream manifest generation is unambiguous.
func NormalizeRef(ref string) (string, error) {
	if strings.Contains(ref, "@") {
		return ref, nil
	}
	tag, err := name.NewTag(ref, name.WithDefaultRegistry(""), name.WithDefaultTag("latest"))
	if err != nil {
		return "", xerrors.Errorf("parsing image reference %q: %w", ref, err)
	}
	return tag.Name(), nil
}

// ImageDigest returns the content-addressed identity of a locally present
// image, preferring its repo digest over the engine-assigned image ID.
func ImageDigest(ctx context.Context, r Runtime, ref string) (digest.Digest, error) {
	inspect, err := r.InspectImage(ctx, ref)
	if err != nil {
		return "", xerrors.Errorf("inspecting image %s: %w", ref, err)
	}
	return imageDigest(inspect.RepoDigests, inspect.ID)
}

func imageDigest(repoDigests []string, imageID string) (digest.Digest, error) {
	for _, rd := range repoDigests {
		if _, d, found := strings.Cut(rd, "@"); found {
			if parsed, err := digest.Parse(d); err == nil {
				return parsed, nil
			}
		}
	}
	// Locally built images carry no repo digest, fall back to the image ID.
	return digest.Parse(imageID)
}

func archiveFileName(ref string) string {
	sanitized := strings.NewReplacer("/", "_", ":", "_", "@", "_").Replace(ref)
	return sanitized + ".tar"
}
