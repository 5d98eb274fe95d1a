package ext

import (
	"io/fs"
	"os"

	"github.com/stretchr/testify/mock"
)

type MockAmbassador struct {
	mock.Mock
}

func NewMockAmbassador() *MockAmbassador {
	return &MockAmbassador{}
}

func (m *MockAmbassador) Stat(name string) (fs.FileInfo, error) {
	args := m.Called(name)
	info, _ := args.Get(0).(fs.FileInfo)
	return info, args.Error(1)
}

func (m *MockAmbassador) MkdirAll(path string, perm fs.FileMode) error {
	args := m.Called(path, perm)
	return args.Error(0)
}

func (m *MockAmbassador) RemoveAll(path string) error {
	args := m.Called(path)
	return args.Error(0)
}

func (m *MockAmbassador) Chmod(name string, mode fs.FileMode) error {
	args := m.Called(name, mode)
	return args.Error(0)
}

func (m *MockAmbassador) Create(name string) (*os.File, error) {
	args := m.Called(name)
	f, _ := args.Get(0).(*os.File)
	return f, args.Error(1)
}

func (m *MockAmbassador) WriteFile(name string, data []byte, perm fs.FileMode) error {
	args := m.Called(name, data, perm)
	return args.Error(0)
}
