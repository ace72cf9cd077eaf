package config

import (
	"errors"
	"io/fs"
	"os"
	"regexp"
	"strings"

	"github.com/docker/go-connections/nat"
)

var workdirStoragePattern = regexp.MustCompile(`^(tmpfs:\d+[MG]|file:/.*)$`)

// Check validates the configuration. The first violation is returned.
func (c *BuildConfig) Check() error {
	if c.Outdir == "" {
		return improperlyConfigured("build.outdir", "no output directory set")
	}
	info, err := os.Stat(c.Outdir)
	switch {
	case err == nil && !info.IsDir():
		return improperlyConfigured("build.outdir", "%s is not a directory", c.Outdir)
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return improperlyConfigured("build.outdir", "cannot stat %s: %v", c.Outdir, err)
	}

	if c.ForcedImageName != "" && !strings.HasSuffix(c.ForcedImageName, ImageSuffix) {
		return improperlyConfigured("build.image_name", "%q must end with %s", c.ForcedImageName, ImageSuffix)
	}

	if c.Profile == "" {
		return improperlyConfigured("build.profile", "no portage profile set")
	}

	if c.Driver == DriverDocker {
		if c.Docker.Image == "" {
			return improperlyConfigured("docker.image", "no base image set for the docker driver")
		}
		if !workdirStoragePattern.MatchString(c.Docker.WorkdirStorage) {
			return improperlyConfigured("docker.workdir_storage", "%q is neither tmpfs:<size>[MG] nor file:/<path>", c.Docker.WorkdirStorage)
		}
	}

	if c.HasEngine(EngineDocker) && c.DockerGen.Name == "" {
		return improperlyConfigured("dockergen.name", "no image name set for the docker post-build engine")
	}

	for _, repo := range c.Repositories {
		if repo.Location == "" {
			return improperlyConfigured(RepositorySection(repo.Name)+".location", "no location set")
		}
	}

	for _, port := range c.DockerGen.Ports {
		proto, number := nat.SplitProtoPort(port)
		if number == "" {
			return improperlyConfigured("dockergen.ports", "invalid port %q", port)
		}
		if _, err := nat.NewPort(proto, number); err != nil {
			return improperlyConfigured("dockergen.ports", "invalid port %q: %v", port, err)
		}
	}

	return nil
}
