package ext

import (
	"io/fs"
	"os"
)

var (
	DefaultAmbassador = &ambassador{}
)

// Ambassador the ambassador to the outside "world". Wraps methods that modify global state and hence make the code that
// use them very hard to test.
type Ambassador interface {
	Stat(name string) (fs.FileInfo, error)
	MkdirAll(path string, perm fs.FileMode) error
	RemoveAll(path string) error
	Chmod(name string, mode fs.FileMode) error
	Create(name string) (*os.File, error)
	WriteFile(name string, data []byte, perm fs.FileMode) error
}

type ambassador struct {
}

func (a *ambassador) Stat(name string) (fs.FileInfo, error) {
	return os.Stat(name)
}

func (a *ambassador) MkdirAll(path string, perm fs.FileMode) error {
	return os.MkdirAll(path, perm)
}

func (a *ambassador) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

func (a *ambassador) Chmod(name string, mode fs.FileMode) error {
	return os.Chmod(name, mode)
}

func (a *ambassador) Create(name string) (*os.File, error) {
	return os.Create(name)
}

func (a *ambassador) WriteFile(name string, data []byte, perm fs.FileMode) error {
	return os.WriteFile(name, data, perm)
}
