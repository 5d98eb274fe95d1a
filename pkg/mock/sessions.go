package mock

import (
	"context"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/mock"

	"github.com/sysdiglabs/secure-inline-scan/pkg/etc"
	"github.com/sysdiglabs/secure-inline-scan/pkg/session"
)

type SessionManager struct {
	mock.Mock
}

func NewSessionManager() *SessionManager {
	return &SessionManager{}
}

func (m *SessionManager) Create(ctx context.Context, req etc.ScanRequest, d digest.Digest, tag string) (*session.Session, error) {
	args := m.Called(req, d, tag)
	s, _ := args.Get(0).(*session.Session)
	return s, args.Error(1)
}

func (m *SessionManager) CopyArtifacts(ctx context.Context, s *session.Session, paths ...string) error {
	args := m.Called(s, paths)
	return args.Error(0)
}

func (m *SessionManager) Run(ctx context.Context, s *session.Session) error {
	args := m.Called(s)
	return args.Error(0)
}

func (m *SessionManager) ExtractArchive(ctx context.Context, s *session.Session, destDir string) (string, error) {
	args := m.Called(s, destDir)
	return args.String(0), args.Error(1)
}
