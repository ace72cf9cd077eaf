package build

import (
	"context"

	"github.com/cochaviz/quern/internal/artifacts"
)

// Driver runs a build in two phases. Setup prepares configuration and state,
// Build produces the archive at BuildConfig.ImagePath.
type Driver interface {
	Setup(ctx context.Context) error
	Build(ctx context.Context) error
}

// DriverFactory constructs a driver from shared state.
type DriverFactory func(base *Base) (Driver, error)

// PostBuilder consumes the artifact of a successful build.
type PostBuilder interface {
	Run(ctx context.Context, artifact artifacts.Artifact) error
}

// PostBuilderFactory constructs a post-build engine from shared state.
type PostBuilderFactory func(base *Base) (PostBuilder, error)
