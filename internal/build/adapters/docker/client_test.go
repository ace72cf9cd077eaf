package docker

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/cochaviz/quern/internal/daemon"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/pkg/stdcopy"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// fakeClient records the calls of a driver and replays canned answers.
type fakeClient struct {
	calls []string

	config     *container.Config
	hostConfig *container.HostConfig
	name       string
	removed    container.RemoveOptions

	stdout   string
	stderr   string
	exitCode int64

	failCreate bool
	failStart  bool
	failRemove bool
}

var _ daemon.Client = (*fakeClient)(nil)

func (c *fakeClient) dialer() daemon.Dialer {
	return func(string) (daemon.Client, error) {
		c.calls = append(c.calls, "dial")
		return c, nil
	}
}

func (c *fakeClient) ContainerCreate(_ context.Context, config *container.Config, hostConfig *container.HostConfig, _ *network.NetworkingConfig, _ *ocispec.Platform, name string) (container.CreateResponse, error) {
	c.calls = append(c.calls, "create")
	c.config, c.hostConfig, c.name = config, hostConfig, name
	if c.failCreate {
		return container.CreateResponse{}, errors.New("no such image")
	}
	return container.CreateResponse{ID: "c0ffee"}, nil
}

func (c *fakeClient) ContainerStart(context.Context, string, container.StartOptions) error {
	c.calls = append(c.calls, "start")
	if c.failStart {
		return errors.New("cannot start")
	}
	return nil
}

func (c *fakeClient) ContainerLogs(context.Context, string, container.LogsOptions) (io.ReadCloser, error) {
	c.calls = append(c.calls, "logs")
	var buf bytes.Buffer
	if c.stdout != "" {
		_, _ = stdcopy.NewStdWriter(&buf, stdcopy.Stdout).Write([]byte(c.stdout))
	}
	if c.stderr != "" {
		_, _ = stdcopy.NewStdWriter(&buf, stdcopy.Stderr).Write([]byte(c.stderr))
	}
	return io.NopCloser(&buf), nil
}

func (c *fakeClient) ContainerWait(context.Context, string, container.WaitCondition) (<-chan container.WaitResponse, <-chan error) {
	c.calls = append(c.calls, "wait")
	statusCh := make(chan container.WaitResponse, 1)
	statusCh <- container.WaitResponse{StatusCode: c.exitCode}
	return statusCh, make(chan error)
}

func (c *fakeClient) ContainerRemove(_ context.Context, _ string, options container.RemoveOptions) error {
	c.calls = append(c.calls, "remove")
	c.removed = options
	if c.failRemove {
		return errors.New("busy")
	}
	return nil
}

func (c *fakeClient) ImageImport(context.Context, types.ImageImportSource, string, types.ImageImportOptions) (io.ReadCloser, error) {
	return nil, errors.New("not implemented")
}

func (c *fakeClient) ImageBuild(context.Context, io.Reader, types.ImageBuildOptions) (types.ImageBuildResponse, error) {
	return types.ImageBuildResponse{}, errors.New("not implemented")
}

func (c *fakeClient) Close() error {
	c.calls = append(c.calls, "close")
	return nil
}
