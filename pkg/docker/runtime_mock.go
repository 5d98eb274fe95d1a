package docker

import (
	"context"
	"io"

	"github.com/docker/docker/api/types"
	"github.com/stretchr/testify/mock"
)

type MockRuntime struct {
	mock.Mock
}

func NewMockRuntime() *MockRuntime {
	return &MockRuntime{}
}

func (m *MockRuntime) InspectImage(ctx context.Context, ref string) (types.ImageInspect, error) {
	args := m.Called(ref)
	return args.Get(0).(types.ImageInspect), args.Error(1)
}

func (m *MockRuntime) PullImage(ctx context.Context, ref string) error {
	args := m.Called(ref)
	return args.Error(0)
}

func (m *MockRuntime) SaveImage(ctx context.Context, ref string) (io.ReadCloser, error) {
	args := m.Called(ref)
	rc, _ := args.Get(0).(io.ReadCloser)
	return rc, args.Error(1)
}

func (m *MockRuntime) CreateContainer(ctx context.Context, spec ContainerSpec) (string, error) {
	args := m.Called(spec)
	return args.String(0), args.Error(1)
}

func (m *MockRuntime) CopyToContainer(ctx context.Context, containerID, destPath string, content io.Reader) error {
	args := m.Called(containerID, destPath, content)
	return args.Error(0)
}

func (m *MockRuntime) CopyFromContainer(ctx context.Context, containerID, srcPath string) (io.ReadCloser, error) {
	args := m.Called(containerID, srcPath)
	rc, _ := args.Get(0).(io.ReadCloser)
	return rc, args.Error(1)
}

func (m *MockRuntime) StartContainer(ctx context.Context, containerID string) error {
	args := m.Called(containerID)
	return args.Error(0)
}

func (m *MockRuntime) WaitContainer(ctx context.Context, containerID string) (int64, error) {
	args := m.Called(containerID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRuntime) KillContainer(ctx context.Context, containerID string) error {
	args := m.Called(containerID)
	return args.Error(0)
}

func (m *MockRuntime) RemoveContainer(ctx context.Context, containerID string) error {
	args := m.Called(containerID)
	return args.Error(0)
}

func (m *MockRuntime) ContainerExists(ctx context.Context, containerID string) (bool, error) {
	args := m.Called(containerID)
	return args.Bool(0), args.Error(1)
}

func (m *MockRuntime) ListContainers(ctx context.Context, namePrefix string) ([]string, error) {
	args := m.Called(namePrefix)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}
