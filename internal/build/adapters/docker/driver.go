package docker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/cochaviz/quern/internal/build"
	"github.com/cochaviz/quern/internal/config"
	"github.com/cochaviz/quern/internal/daemon"
	"github.com/cochaviz/quern/internal/logging"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/strslice"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/google/uuid"
)

// Entrypoint of the build container: the raw driver reading its
// configuration from the projected environment.
var Entrypoint = []string{"/usr/bin/quern-builder", "/etc/quern.conf"}

// Labels set on every build container.
const (
	LabelRunID   = "quern.run-id"
	LabelProfile = "quern.profile"
)

var _ build.Driver = (*Driver)(nil)

// Driver runs the build in a docker container started from
// docker.image.
type Driver struct {
	*build.Base

	Dial daemon.Dialer
	// Pid is part of the container name; defaults to os.Getpid.
	Pid func() int
}

// Run is the record of one build container.
type Run struct {
	ID       string
	Name     string
	Env      map[string]string
	Mounts   []mount.Mount
	ExitCode int64
}

// NewDriver returns a driver connecting through dial, or daemon.Dial when
// dial is nil.
func NewDriver(base *build.Base, dial daemon.Dialer) *Driver {
	if dial == nil {
		dial = daemon.Dial
	}
	return &Driver{Base: base, Dial: dial, Pid: os.Getpid}
}

// Factory returns a build.DriverFactory for the docker driver.
func Factory(dial daemon.Dialer) build.DriverFactory {
	return func(base *build.Base) (build.Driver, error) {
		return NewDriver(base, dial), nil
	}
}

// ContainerName derives the build container name from the profile.
func ContainerName(profile string, pid int) string {
	safe := strings.NewReplacer(":", "-", "/", "-").Replace(profile)
	return fmt.Sprintf("quern-%s-%d", safe, pid)
}

// Setup checks that every repository exists on the host. The daemon is not
// contacted.
func (d *Driver) Setup(context.Context) error {
	for _, repo := range d.Config.Repositories {
		info, err := os.Stat(repo.Location)
		if err != nil || !info.IsDir() {
			return &config.ConfigurationError{
				Option: config.RepositorySection(repo.Name) + ".location",
				Reason: "missing repository at " + repo.Location,
			}
		}
	}
	return nil
}

// Build runs the containerized build and waits for it to finish. With
// build.keep_failed, a container that exits non-zero is left in place.
func (d *Driver) Build(ctx context.Context) error {
	cfg := d.Config

	storage, err := cfg.WorkdirStorage()
	if err != nil {
		return err
	}
	run := &Run{
		Name:   ContainerName(cfg.Profile, d.pid()),
		Mounts: Mounts(cfg, d.Repositories, storage),
	}
	if run.Env, err = Projection(cfg, d.Repositories); err != nil {
		return &build.BuildError{Phase: "build", Message: "project configuration", Err: err}
	}

	for _, dir := range writableSources(run.Mounts) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &build.BuildError{Phase: "build", Message: "create volume " + dir, Err: err}
		}
	}

	d.Logger.Info("connecting to docker", "address", cfg.Docker.Address)
	client, err := d.Dial(cfg.Docker.Address)
	if err != nil {
		return &build.DaemonError{Op: "connect", Err: err}
	}
	defer client.Close()

	logger := d.Logger.With("container", run.Name)
	logger.Info("creating container", "image", cfg.Docker.Image)
	logger.Debug("container environment", "env", formatEnv(run.Env))

	created, err := client.ContainerCreate(ctx, d.containerConfig(run), hostConfig(run), nil, nil, run.Name)
	if err != nil {
		logger.Error("could not create container", "error", err)
		return &build.DaemonError{Op: "create container " + run.Name, Err: err}
	}
	run.ID = created.ID
	for _, warning := range created.Warnings {
		logger.Warn("docker warning", "warning", warning)
	}
	logger = logger.With("id", run.ID)

	logger.Info("starting container")
	if err := client.ContainerStart(ctx, run.ID, container.StartOptions{}); err != nil {
		logger.Error("could not start container", "error", err)
		return d.cleanup(ctx, client, run, logger, &build.DaemonError{Op: "start container " + run.Name, Err: err})
	}

	if err := streamLogs(ctx, client, run.ID, logger); err != nil {
		return d.cleanup(ctx, client, run, logger, &build.DaemonError{Op: "stream logs of " + run.Name, Err: err})
	}

	logger.Info("waiting for container to stop")
	if run.ExitCode, err = wait(ctx, client, run.ID); err != nil {
		return d.cleanup(ctx, client, run, logger, &build.DaemonError{Op: "wait for " + run.Name, Err: err})
	}

	if run.ExitCode != 0 {
		logger.Error("container exited with an error", "exit_code", run.ExitCode)
		failure := &build.ContainerExitFailure{
			ID:       run.ID,
			Name:     run.Name,
			ExitCode: run.ExitCode,
			Kept:     cfg.KeepFailed,
		}
		return d.cleanup(ctx, client, run, logger, failure)
	}

	if err := remove(ctx, client, run, logger); err != nil {
		return err
	}
	logger.Info("build complete", "image", cfg.ImagePath())
	return nil
}

func (d *Driver) containerConfig(run *Run) *container.Config {
	runID := d.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	return &container.Config{
		Image:      d.Config.Docker.Image,
		Entrypoint: strslice.StrSlice(Entrypoint),
		Env:        EnvList(run.Env),
		Labels: map[string]string{
			LabelRunID:   runID,
			LabelProfile: d.Config.Profile,
		},
	}
}

func hostConfig(run *Run) *container.HostConfig {
	return &container.HostConfig{
		Mounts: run.Mounts,
		// portage's sandbox relies on ptrace.
		CapAdd:      strslice.StrSlice{"SYS_PTRACE"},
		SecurityOpt: []string{"apparmor=unconfined", "seccomp=unconfined"},
	}
}

// cleanup applies build.keep_failed to a container whose build failed with
// cause, and returns cause joined with any removal error.
func (d *Driver) cleanup(ctx context.Context, client daemon.Client, run *Run, logger *slog.Logger, cause error) error {
	if d.Config.KeepFailed {
		logger.Info("failed container kept", "name", run.Name)
		logger.Info("container environment", "env", formatEnv(run.Env))
		return cause
	}
	if err := remove(ctx, client, run, logger); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

func remove(ctx context.Context, client daemon.Client, run *Run, logger *slog.Logger) error {
	logger.Info("removing container")
	err := client.ContainerRemove(ctx, run.ID, container.RemoveOptions{RemoveVolumes: true, Force: true})
	if err != nil {
		return &build.DaemonError{Op: "remove container " + run.Name, Err: err}
	}
	return nil
}

// streamLogs copies the container output into the log, one record per line,
// until the stream closes.
func streamLogs(ctx context.Context, client daemon.Client, id string, logger *slog.Logger) error {
	logs, err := client.ContainerLogs(ctx, id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
	})
	if err != nil {
		return err
	}
	defer logs.Close()

	stdout := logging.NewLineWriter(logger, slog.LevelInfo, "stream", "stdout")
	stderr := logging.NewLineWriter(logger, slog.LevelInfo, "stream", "stderr")
	defer stdout.Flush()
	defer stderr.Flush()

	_, err = stdcopy.StdCopy(stdout, stderr, logs)
	return err
}

func wait(ctx context.Context, client daemon.Client, id string) (int64, error) {
	statusCh, errCh := client.ContainerWait(ctx, id, container.WaitConditionNotRunning)
	select {
	case status := <-statusCh:
		if status.Error != nil && status.Error.Message != "" {
			return 0, errors.New(status.Error.Message)
		}
		return status.StatusCode, nil
	case err := <-errCh:
		return 0, err
	}
}

func (d *Driver) pid() int {
	if d.Pid != nil {
		return d.Pid()
	}
	return os.Getpid()
}
