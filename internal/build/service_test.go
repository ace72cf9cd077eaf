package build

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/cochaviz/quern/internal/artifacts"
	"github.com/cochaviz/quern/internal/config"
)

type stubDriver struct {
	calls    *[]string
	setupErr error
	buildErr error
	write    string
}

func (d *stubDriver) Setup(context.Context) error {
	*d.calls = append(*d.calls, "setup")
	return d.setupErr
}

func (d *stubDriver) Build(context.Context) error {
	*d.calls = append(*d.calls, "build")
	if d.buildErr != nil {
		return d.buildErr
	}
	if d.write != "" {
		return os.WriteFile(d.write, []byte("image"), 0o644)
	}
	return nil
}

type stubEngine struct {
	name  string
	calls *[]string
	seen  *artifacts.Artifact
	err   error
}

func (e *stubEngine) Run(_ context.Context, artifact artifacts.Artifact) error {
	*e.calls = append(*e.calls, e.name)
	if e.seen != nil {
		*e.seen = artifact
	}
	return e.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestConfig(t *testing.T) *config.BuildConfig {
	t.Helper()
	return &config.BuildConfig{
		Profile:         "default/linux/amd64",
		Outdir:          t.TempDir(),
		ForcedImageName: "image.tar.gz",
		Driver:          "stub",
		Repositories:    []config.RepositoryConfig{{Name: "gentoo", Location: "/usr/portage"}},
	}
}

func TestBuildServiceRunsPhasesThenEngines(t *testing.T) {
	t.Parallel()

	cfg := newTestConfig(t)
	cfg.PostbuildEngines = []string{"first", "second"}

	var calls []string
	var seen artifacts.Artifact
	var gotBase *Base

	drivers := NewDriverRegistry()
	drivers.Register("stub", func(base *Base) (Driver, error) {
		gotBase = base
		return &stubDriver{calls: &calls, write: base.Config.ImagePath()}, nil
	})
	engines := NewPostBuildRegistry()
	engines.Register("first", func(*Base) (PostBuilder, error) {
		return &stubEngine{name: "first", calls: &calls, seen: &seen}, nil
	})
	engines.Register("second", func(*Base) (PostBuilder, error) {
		return &stubEngine{name: "second", calls: &calls}, nil
	})

	service := &BuildService{
		Logger:       discardLogger(),
		Drivers:      drivers,
		PostBuilders: engines,
		NewRunID:     func() string { return "run-1" },
	}

	image, err := service.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if want := []string{"setup", "build", "first", "second"}; !reflect.DeepEqual(calls, want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	if gotBase.RunID != "run-1" {
		t.Fatalf("RunID = %q, want run-1", gotBase.RunID)
	}
	if seen.URI != artifacts.FileURI(cfg.ImagePath()) || seen.Checksum == "" {
		t.Fatalf("engine saw artifact %+v", seen)
	}
	if image.URI != seen.URI {
		t.Fatalf("Run() artifact = %q, want %q", image.URI, seen.URI)
	}
	if _, err := os.Stat(filepath.Join(cfg.Outdir, "image.tar.gz.json")); err != nil {
		t.Fatalf("artifact record missing: %v", err)
	}
}

func TestBuildServiceUnknownEngineBeforeSideEffects(t *testing.T) {
	t.Parallel()

	cfg := newTestConfig(t)
	cfg.PostbuildEngines = []string{"missing"}

	var calls []string
	drivers := NewDriverRegistry()
	drivers.Register("stub", func(*Base) (Driver, error) {
		return &stubDriver{calls: &calls}, nil
	})

	service := &BuildService{Logger: discardLogger(), Drivers: drivers, PostBuilders: NewPostBuildRegistry()}
	_, err := service.Run(context.Background(), cfg)
	if !errors.Is(err, ErrUnknownEngine) {
		t.Fatalf("Run() error = %v, want ErrUnknownEngine", err)
	}
	var cfgErr *config.ConfigurationError
	if !errors.As(err, &cfgErr) || cfgErr.Option != "postbuild.engines" {
		t.Fatalf("Run() error = %v, want postbuild.engines configuration error", err)
	}
	if len(calls) != 0 {
		t.Fatalf("driver was called: %v", calls)
	}
}

func TestBuildServiceUnknownDriver(t *testing.T) {
	t.Parallel()

	cfg := newTestConfig(t)
	service := &BuildService{Logger: discardLogger(), Drivers: NewDriverRegistry()}
	_, err := service.Run(context.Background(), cfg)
	if !errors.Is(err, ErrUnknownDriver) {
		t.Fatalf("Run() error = %v, want ErrUnknownDriver", err)
	}
	var cfgErr *config.ConfigurationError
	if !errors.As(err, &cfgErr) || cfgErr.Option != "build.driver" {
		t.Fatalf("Run() error = %v, want build.driver configuration error", err)
	}
}

func TestBuildServiceStopsOnSetupFailure(t *testing.T) {
	t.Parallel()

	cfg := newTestConfig(t)
	cfg.PostbuildEngines = []string{"engine"}
	setupErr := &ExternalCommandFailure{Args: []string{"eselect"}, ExitCode: 1}

	var calls []string
	drivers := NewDriverRegistry()
	drivers.Register("stub", func(*Base) (Driver, error) {
		return &stubDriver{calls: &calls, setupErr: setupErr}, nil
	})
	engines := NewPostBuildRegistry()
	engines.Register("engine", func(*Base) (PostBuilder, error) {
		return &stubEngine{name: "engine", calls: &calls}, nil
	})

	service := &BuildService{Logger: discardLogger(), Drivers: drivers, PostBuilders: engines}
	_, err := service.Run(context.Background(), cfg)

	var failure *ExternalCommandFailure
	if !errors.As(err, &failure) || failure.ExitCode != 1 {
		t.Fatalf("Run() error = %v, want ExternalCommandFailure", err)
	}
	if want := []string{"setup"}; !reflect.DeepEqual(calls, want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
}

func TestBuildServiceMissingArtifact(t *testing.T) {
	t.Parallel()

	cfg := newTestConfig(t)
	var calls []string
	drivers := NewDriverRegistry()
	drivers.Register("stub", func(*Base) (Driver, error) {
		return &stubDriver{calls: &calls}, nil
	})

	service := &BuildService{Logger: discardLogger(), Drivers: drivers}
	_, err := service.Run(context.Background(), cfg)
	var buildErr *BuildError
	if !errors.As(err, &buildErr) || buildErr.Phase != "record" {
		t.Fatalf("Run() error = %v, want record BuildError", err)
	}
}
