package mock

import (
	"context"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/mock"

	"github.com/sysdiglabs/secure-inline-scan/pkg/backend"
)

type Backend struct {
	mock.Mock
}

func NewBackend() *Backend {
	return &Backend{}
}

func (b *Backend) ImportImage(ctx context.Context, archivePath string) error {
	args := b.Called(archivePath)
	return args.Error(0)
}

func (b *Backend) PollVerdict(ctx context.Context, d digest.Digest, tag string) (backend.ScanVerdict, error) {
	args := b.Called(d, tag)
	return args.Get(0).(backend.ScanVerdict), args.Error(1)
}
