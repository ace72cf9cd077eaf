package build

import (
	"context"
	"errors"
	"log/slog"

	"github.com/cochaviz/quern/internal/artifacts"
	"github.com/cochaviz/quern/internal/config"

	"github.com/google/uuid"
)

type BuildService struct {
	Logger       *slog.Logger
	Drivers      *DriverRegistry
	PostBuilders *PostBuildRegistry

	// NewRunID defaults to a random UUID.
	NewRunID func() string
}

// Run builds the image described by cfg and hands it to every configured
// post-build engine, in order. Driver and engine names are resolved before
// anything touches the host.
func (s *BuildService) Run(ctx context.Context, cfg *config.BuildConfig) (artifacts.Artifact, error) {
	if s.Drivers == nil {
		return artifacts.Artifact{}, errors.New("driver registry is not configured")
	}

	runID := s.runID()
	logger := s.logger().With(
		"run_id", runID,
		"driver", cfg.Driver,
		"profile", cfg.Profile,
	)

	driverFactory, err := s.Drivers.Lookup(cfg.Driver)
	if err != nil {
		return artifacts.Artifact{}, err
	}

	engineFactories := make([]PostBuilderFactory, 0, len(cfg.PostbuildEngines))
	for _, name := range cfg.PostbuildEngines {
		if s.PostBuilders == nil {
			return artifacts.Artifact{}, errors.New("post-build registry is not configured")
		}
		factory, err := s.PostBuilders.Lookup(name)
		if err != nil {
			return artifacts.Artifact{}, err
		}
		engineFactories = append(engineFactories, factory)
	}

	base, err := NewBase(cfg, logger)
	if err != nil {
		return artifacts.Artifact{}, err
	}
	base.RunID = runID

	driver, err := driverFactory(base)
	if err != nil {
		return artifacts.Artifact{}, err
	}
	engines := make([]PostBuilder, 0, len(engineFactories))
	for _, factory := range engineFactories {
		engine, err := factory(base)
		if err != nil {
			return artifacts.Artifact{}, err
		}
		engines = append(engines, engine)
	}

	logger.Info("starting build", "image", cfg.ImagePath())

	phased := NewPhasedDriver(driver)
	if err := phased.Setup(ctx); err != nil {
		return artifacts.Artifact{}, err
	}
	logger.Info("build environment prepared")

	if err := phased.Build(ctx); err != nil {
		return artifacts.Artifact{}, err
	}

	image, err := artifacts.FromFile(cfg.ImagePath(), artifacts.ImageArtifact, map[string]any{
		"run_id":  runID,
		"profile": cfg.Profile,
		"driver":  cfg.Driver,
	})
	if err != nil {
		return artifacts.Artifact{}, &BuildError{Phase: "record", Message: "build produced no artifact", Err: err}
	}
	logger.Info("build driver completed", "image_uri", image.URI, "checksum", image.Checksum)

	if record, err := artifacts.WriteRecord(image); err != nil {
		logger.Warn("could not write artifact record", "error", err)
	} else {
		logger.Debug("artifact record written", "path", record)
	}

	for i, engine := range engines {
		name := cfg.PostbuildEngines[i]
		logger.Info("running post-build engine", "engine", name)
		if err := engine.Run(ctx, image); err != nil {
			return image, err
		}
	}

	return image, nil
}

func (s *BuildService) runID() string {
	if s.NewRunID != nil {
		return s.NewRunID()
	}
	return uuid.NewString()
}

func (s *BuildService) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
