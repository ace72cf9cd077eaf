package dockerimage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/cochaviz/quern/internal/artifacts"
	"github.com/cochaviz/quern/internal/build"
	"github.com/cochaviz/quern/internal/daemon"
	"github.com/cochaviz/quern/internal/version"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/docker/pkg/jsonmessage"
)

var _ build.PostBuilder = (*Engine)(nil)

// Engine imports the build tarball as a raw docker image and builds the
// dockergen image on top of it.
type Engine struct {
	*build.Base

	Dial    daemon.Dialer
	Version string
}

func NewEngine(base *build.Base, dial daemon.Dialer) *Engine {
	if dial == nil {
		dial = daemon.Dial
	}
	return &Engine{Base: base, Dial: dial, Version: version.Version()}
}

// Factory returns a build.PostBuilderFactory for the docker image engine.
func Factory(dial daemon.Dialer) build.PostBuilderFactory {
	return func(base *build.Base) (build.PostBuilder, error) {
		return NewEngine(base, dial), nil
	}
}

func (e *Engine) Run(ctx context.Context, artifact artifacts.Artifact) error {
	cfg := e.Config
	path, err := artifact.Path()
	if err != nil {
		return &build.BuildError{Phase: "postbuild", Message: "locate artifact", Err: err}
	}

	rawName, rawTag := RawImage(cfg)
	rawImage := rawName + ":" + rawTag
	target := TargetImage(cfg)
	logger := e.Logger.With("engine", "docker", "image", target)

	logger.Info("connecting to docker", "address", cfg.Docker.Address)
	client, err := e.Dial(cfg.Docker.Address)
	if err != nil {
		return &build.DaemonError{Op: "connect", Err: err}
	}
	defer client.Close()

	logger.Info("importing raw image", "raw_image", rawImage, "source", path)
	if err := importImage(ctx, client, path, rawImage, logger); err != nil {
		return err
	}

	logger.Info("building image", "raw_image", rawImage)
	dockerfile := strings.Join(DockerfileLines(cfg, rawImage, e.Version), "\n") + "\n"
	logger.Debug("generated dockerfile", "dockerfile", dockerfile)
	if err := buildImage(ctx, client, dockerfile, target, logger); err != nil {
		return err
	}

	logger.Info("image built")
	return nil
}

func importImage(ctx context.Context, client daemon.Client, path, ref string, logger *slog.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return &build.BuildError{Phase: "postbuild", Message: "open artifact", Err: err}
	}
	defer f.Close()

	body, err := client.ImageImport(ctx, types.ImageImportSource{Source: f, SourceName: "-"}, ref, types.ImageImportOptions{})
	if err != nil {
		return &build.DaemonError{Op: "import " + ref, Err: err}
	}
	defer body.Close()

	return eachMessage(body, func(msg jsonmessage.JSONMessage) error {
		if msg.Error != nil {
			return &build.DaemonError{Op: "import " + ref, Err: msg.Error}
		}
		if status := strings.TrimSpace(msg.Status); status != "" {
			logger.Info("raw image imported", "status", status)
		}
		return nil
	})
}

func buildImage(ctx context.Context, client daemon.Client, dockerfile, target string, logger *slog.Logger) error {
	buildContext, err := archive.Generate("Dockerfile", dockerfile)
	if err != nil {
		return &build.BuildError{Phase: "postbuild", Message: "create build context", Err: err}
	}

	resp, err := client.ImageBuild(ctx, buildContext, types.ImageBuildOptions{
		Tags:       []string{target},
		Dockerfile: "Dockerfile",
		Remove:     true,
	})
	if err != nil {
		return &build.DaemonError{Op: "build " + target, Err: err}
	}
	defer resp.Body.Close()

	// Messages without a stream are reported by the daemon and only logged.
	return eachMessage(resp.Body, func(msg jsonmessage.JSONMessage) error {
		if msg.Stream != "" {
			if line := strings.TrimRight(msg.Stream, "\r\n"); line != "" {
				logger.Info(line, "stream", "build")
			}
			return nil
		}
		logger.Warn("build error reported by docker", "message", describe(msg))
		return nil
	})
}

func eachMessage(r io.Reader, handle func(jsonmessage.JSONMessage) error) error {
	decoder := json.NewDecoder(r)
	for {
		var msg jsonmessage.JSONMessage
		if err := decoder.Decode(&msg); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return &build.DaemonError{Op: "read response", Err: err}
		}
		if err := handle(msg); err != nil {
			return err
		}
	}
}

func describe(msg jsonmessage.JSONMessage) string {
	switch {
	case msg.Error != nil:
		return msg.Error.Message
	case msg.ErrorMessage != "":
		return msg.ErrorMessage
	case msg.Status != "":
		return msg.Status
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Sprint(msg)
	}
	return string(data)
}
