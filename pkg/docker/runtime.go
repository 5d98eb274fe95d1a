package docker

import (
	"context"
	"io"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"golang.org/x/xerrors"
)

// ContainerSpec describes the helper container to create.
type ContainerSpec struct {
	Image string
	Name  string
	Env   []string
}

// Runtime wraps the local container engine operations the scan pipeline
// requires. It is intentionally narrow so tests can mock it.
type Runtime interface {
	InspectImage(ctx context.Context, ref string) (types.ImageInspect, error)
	PullImage(ctx context.Context, ref string) error
	SaveImage(ctx context.Context, ref string) (io.ReadCloser, error)
	CreateContainer(ctx context.Context, spec ContainerSpec) (string, error)
	CopyToContainer(ctx context.Context, containerID, destPath string, content io.Reader) error
	CopyFromContainer(ctx context.Context, containerID, srcPath string) (io.ReadCloser, error)
	StartContainer(ctx context.Context, containerID string) error
	WaitContainer(ctx context.Context, containerID string) (int64, error)
	KillContainer(ctx context.Context, containerID string) error
	RemoveContainer(ctx context.Context, containerID string) error
	ContainerExists(ctx context.Context, containerID string) (bool, error)
	ListContainers(ctx context.Context, namePrefix string) ([]string, error)
}

type runtime struct {
	cli *client.Client
}

func NewRuntime() (Runtime, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, xerrors.Errorf("creating docker client: %w", err)
	}
	return &runtime{cli: cli}, nil
}

func (r *runtime) InspectImage(ctx context.Context, ref string) (types.ImageInspect, error) {
	inspect, _, err := r.cli.ImageInspectWithRaw(ctx, ref)
	return inspect, err
}

func (r *runtime) PullImage(ctx context.Context, ref string) error {
	out, err := r.cli.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = out.Close()
	}()
	_, err = io.Copy(io.Discard, out)
	return err
}

func (r *runtime) SaveImage(ctx context.Context, ref string) (io.ReadCloser, error) {
	return r.cli.ImageSave(ctx, []string{ref})
}

func (r *runtime) CreateContainer(ctx context.Context, spec ContainerSpec) (string, error) {
	created, err := r.cli.ContainerCreate(ctx,
		&container.Config{
			Image: spec.Image,
			Env:   spec.Env,
		},
		nil, nil, nil, spec.Name)
	if err != nil {
		return "", err
	}
	return created.ID, nil
}

func (r *runtime) CopyToContainer(ctx context.Context, containerID, destPath string, content io.Reader) error {
	return r.cli.CopyToContainer(ctx, containerID, destPath, content, types.CopyToContainerOptions{})
}

func (r *runtime) CopyFromContainer(ctx context.Context, containerID, srcPath string) (io.ReadCloser, error) {
	reader, _, err := r.cli.CopyFromContainer(ctx, containerID, srcPath)
	return reader, err
}

func (r *runtime) StartContainer(ctx context.Context, containerID string) error {
	return r.cli.ContainerStart(ctx, containerID, container.StartOptions{})
}

func (r *runtime) WaitContainer(ctx context.Context, containerID string) (int64, error) {
	statusCh, errCh := r.cli.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)
	select {
	case status := <-statusCh:
		return status.StatusCode, nil
	case err := <-errCh:
		return 0, err
	}
}

func (r *runtime) KillContainer(ctx context.Context, containerID string) error {
	return r.cli.ContainerKill(ctx, containerID, "KILL")
}

func (r *runtime) RemoveContainer(ctx context.Context, containerID string) error {
	return r.cli.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true})
}

func (r *runtime) ContainerExists(ctx context.Context, containerID string) (bool, error) {
	_, err := r.cli.ContainerInspect(ctx, containerID)
	if client.IsErrNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *runtime) ListContainers(ctx context.Context, namePrefix string) ([]string, error) {
	containers, err := r.cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("name", namePrefix)),
	})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(containers))
	for _, c := range containers {
		ids = append(ids, c.ID)
	}
	return ids, nil
}
