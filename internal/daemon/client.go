package daemon

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	docker "github.com/docker/docker/client"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

const DefaultAddress = "unix:///var/run/docker.sock"

// Client is the subset of the docker engine API used to run builds and
// produce images. *docker.Client satisfies it.
type Client interface {
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)
	ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error

	ImageImport(ctx context.Context, source types.ImageImportSource, ref string, options types.ImageImportOptions) (io.ReadCloser, error)
	ImageBuild(ctx context.Context, buildContext io.Reader, options types.ImageBuildOptions) (types.ImageBuildResponse, error)

	Close() error
}

var _ Client = (*docker.Client)(nil)

// Dialer opens a client for the daemon at address.
type Dialer func(address string) (Client, error)

// Dial connects to the docker daemon at address, negotiating the API version.
// An empty address selects DefaultAddress.
func Dial(address string) (Client, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		address = DefaultAddress
	}

	client, err := docker.NewClientWithOpts(
		docker.WithHost(address),
		docker.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to docker daemon %s: %w", address, err)
	}
	return client, nil
}
