package simple

import (
	"context"
	"log/slog"

	"github.com/cochaviz/quern/internal/artifacts"
	"github.com/cochaviz/quern/internal/build"
	"github.com/cochaviz/quern/internal/build/adapters/docker"
	"github.com/cochaviz/quern/internal/build/adapters/raw"
	"github.com/cochaviz/quern/internal/build/postbuild/dockerimage"
	"github.com/cochaviz/quern/internal/config"
	"github.com/cochaviz/quern/internal/daemon"
	"github.com/cochaviz/quern/internal/logging"
)

// Options tunes the composition of a build service.
type Options struct {
	Logger *slog.Logger
	// Level is lowered while the raw driver inspects the host package
	// manager. May be nil.
	Level *slog.LevelVar
	// Dial defaults to daemon.Dial.
	Dial daemon.Dialer
}

// NewBuildService registers the built-in drivers and post-build engines.
func NewBuildService(opts Options) *build.BuildService {
	logger := logging.Ensure(opts.Logger)
	dial := opts.Dial
	if dial == nil {
		dial = daemon.Dial
	}

	drivers := build.NewDriverRegistry()
	drivers.Register(config.DriverRaw, raw.Factory(opts.Level))
	drivers.Register(config.DriverDocker, docker.Factory(dial))

	engines := build.NewPostBuildRegistry()
	engines.Register(config.EngineDocker, dockerimage.Factory(dial))

	return &build.BuildService{
		Logger:       logger.With("service", "build"),
		Drivers:      drivers,
		PostBuilders: engines,
	}
}

// Build loads the configuration from files and environ, then runs the build
// it describes.
func Build(ctx context.Context, files, environ []string, opts Options) (artifacts.Artifact, error) {
	logger := logging.Ensure(opts.Logger).With("component", "config.simple")

	src, err := config.NewSource(config.DefaultNamespace, files, environ)
	if err != nil {
		return artifacts.Artifact{}, err
	}
	cfg, err := config.Load(src)
	if err != nil {
		return artifacts.Artifact{}, err
	}
	logger.Debug("configuration loaded",
		"files", files,
		"driver", cfg.Driver,
		"image", cfg.ImagePath(),
	)

	opts.Logger = logger
	return NewBuildService(opts).Run(ctx, cfg)
}
