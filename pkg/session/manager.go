package session

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/opencontainers/go-digest"
	log "github.com/sirupsen/logrus"
	"golang.org/x/xerrors"

	"github.com/sysdiglabs/secure-inline-scan/pkg/docker"
	"github.com/sysdiglabs/secure-inline-scan/pkg/etc"
	"github.com/sysdiglabs/secure-inline-scan/pkg/ext"
)

const (
	// NamePrefix is used both to name helper sessions and to discover
	// leftover ones when a failure happened before the ID was recorded.
	NamePrefix = "inline-scan-"

	// OutputArchive is the fixed-path artifact the helper leaves behind on
	// success. Its presence, not the helper exit code, is the success signal.
	OutputArchive = "image-analysis-archive.tgz"

	workdir = "/anchore-engine"
)

// AccountResolver resolves the caller's account name from the bearer token.
type AccountResolver interface {
	AccountName(ctx context.Context) (string, error)
}

// Session is the ephemeral helper execution environment. It is created once
// per scan and torn down on every exit path.
type Session struct {
	ID        string
	Name      string
	Artifacts []string
}

type Manager struct {
	runtime    docker.Runtime
	accounts   AccountResolver
	ambassador ext.Ambassador
}

func NewManager(runtime docker.Runtime, accounts AccountResolver, ambassador ext.Ambassador) *Manager {
	return &Manager{
		runtime:    runtime,
		accounts:   accounts,
		ambassador: ambassador,
	}
}

// Create resolves the account bound to the token and creates the helper
// container configured for the given digest and tag. The account call is not
// retried: without a valid account binding no later step can succeed.
func (m *Manager) Create(ctx context.Context, req etc.ScanRequest, d digest.Digest, tag string) (*Session, error) {
	account, err := m.accounts.AccountName(ctx)
	if err != nil {
		return nil, err
	}

	name := NamePrefix + uuid.NewString()[:8]
	log.WithFields(log.Fields{
		"session": name,
		"account": account,
		"digest":  d.String(),
	}).Debug("Creating helper session")

	id, err := m.runtime.CreateContainer(ctx, docker.ContainerSpec{
		Image: req.HelperImage,
		Name:  name,
		Env:   buildEnv(req, d, tag, account),
	})
	if err != nil {
		return nil, xerrors.Errorf("creating helper session: %w", err)
	}

	session := &Session{ID: id, Name: name}

	var files []string
	if req.ManifestPath != "" {
		files = append(files, req.ManifestPath)
	}
	if req.DockerfilePath != "" {
		files = append(files, req.DockerfilePath)
	}
	if len(files) > 0 {
		if err := m.CopyArtifacts(ctx, session, files...); err != nil {
			return session, err
		}
	}

	return session, nil
}

// CopyArtifacts streams the given host files into the session staging area.
func (m *Manager) CopyArtifacts(ctx context.Context, s *Session, paths ...string) error {
	reader, writer := io.Pipe()
	go func() {
		tw := tar.NewWriter(writer)
		var err error
		for _, p := range paths {
			if err = addFile(tw, p); err != nil {
				break
			}
		}
		if closeErr := tw.Close(); err == nil {
			err = closeErr
		}
		_ = writer.CloseWithError(err)
	}()

	if err := m.runtime.CopyToContainer(ctx, s.ID, workdir, reader); err != nil {
		return xerrors.Errorf("copying artifacts into session %s: %w", s.Name, err)
	}

	for _, p := range paths {
		s.Artifacts = append(s.Artifacts, filepath.Base(p))
	}
	return nil
}

// Run starts the session and blocks until the helper exits. The exit code is
// logged but not interpreted; whether the expected output archive exists is
// the actual success signal.
func (m *Manager) Run(ctx context.Context, s *Session) error {
	if err := m.runtime.StartContainer(ctx, s.ID); err != nil {
		return xerrors.Errorf("starting session %s: %w", s.Name, err)
	}

	code, err := m.runtime.WaitContainer(ctx, s.ID)
	if err != nil {
		return xerrors.Errorf("waiting for session %s: %w", s.Name, err)
	}

	log.WithFields(log.Fields{
		"session":   s.Name,
		"exit_code": code,
	}).Debug("Helper session finished")
	return nil
}

// ExtractArchive copies the produced analysis archive out of the session
// into destDir. A missing archive means the analysis failed.
func (m *Manager) ExtractArchive(ctx context.Context, s *Session, destDir string) (string, error) {
	src := path.Join(workdir, OutputArchive)
	reader, err := m.runtime.CopyFromContainer(ctx, s.ID, src)
	if err != nil {
		return "", xerrors.Errorf("session %s did not produce an analysis archive: %w", s.Name, err)
	}
	defer func() {
		_ = reader.Close()
	}()

	tr := tar.NewReader(reader)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", xerrors.Errorf("reading analysis archive stream: %w", err)
		}
		if header.Typeflag == tar.TypeDir || filepath.Base(header.Name) != OutputArchive {
			continue
		}

		dest := filepath.Join(destDir, OutputArchive)
		file, err := m.ambassador.Create(dest)
		if err != nil {
			return "", xerrors.Errorf("creating %s: %w", dest, err)
		}
		_, err = io.Copy(file, tr)
		if closeErr := file.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			return "", xerrors.Errorf("writing %s: %w", dest, err)
		}
		return dest, nil
	}

	return "", xerrors.Errorf("session %s did not produce an analysis archive", s.Name)
}

func buildEnv(req etc.ScanRequest, d digest.Digest, tag, account string) []string {
	env := []string{
		"SYSDIG_API_TOKEN=" + req.Token,
		"SYSDIG_SECURE_URL=" + req.BaseURL,
		"SYSDIG_ACCOUNT=" + account,
		"SYSDIG_DIGEST=" + d.String(),
		"SYSDIG_IMAGE_TAG=" + tag,
		fmt.Sprintf("SCAN_TIMEOUT=%d", req.TimeoutSeconds),
	}
	if req.ImageID != "" {
		env = append(env, "SYSDIG_IMAGE_ID="+req.ImageID)
	}
	if len(req.Annotations) > 0 {
		env = append(env, "SYSDIG_ANNOTATIONS="+formatAnnotations(req.Annotations))
	}
	if req.ManifestPath != "" {
		env = append(env, "SYSDIG_MANIFEST="+filepath.Base(req.ManifestPath))
	}
	if req.DockerfilePath != "" {
		env = append(env, "SYSDIG_DOCKERFILE="+filepath.Base(req.DockerfilePath))
	}
	if req.Verbose {
		env = append(env, "VERBOSE=true")
	}
	return env
}

func formatAnnotations(annotations map[string]string) string {
	keys := make([]string, 0, len(annotations))
	for k := range annotations {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+annotations[k])
	}
	return strings.Join(pairs, ",")
}

func addFile(tw *tar.Writer, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = file.Close()
	}()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	header.Name = filepath.Base(path)

	if err = tw.WriteHeader(header); err != nil {
		return err
	}
	_, err = io.Copy(tw, file)
	return err
}
