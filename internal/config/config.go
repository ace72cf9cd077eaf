package config

import (
	"path/filepath"
	"time"

	"github.com/google/shlex"
)

const (
	// PortageConfigRoot is the host location of the portage configuration.
	PortageConfigRoot = "/etc/portage"

	// ImageSuffix is the suffix of every generated image archive.
	ImageSuffix = ".tar.gz"

	// DriverRaw and DriverDocker name the built-in build drivers.
	DriverRaw    = "raw"
	DriverDocker = "docker"

	// EngineDocker names the built-in docker image post-build engine.
	EngineDocker = "docker"

	defaultRepositoryName     = "gentoo"
	defaultRepositoryLocation = "/usr/portage"
)

// RepositoryConfig describes one portage repository on the host.
type RepositoryConfig struct {
	Name            string
	Location        string
	EclassOverrides string
	Masters         string
	Priority        string
}

// DockerConfig holds the docker driver parameters.
type DockerConfig struct {
	Image          string
	Address        string
	WorkdirStorage string
}

// DockerGenConfig holds the docker image post-build parameters.
type DockerGenConfig struct {
	Name       string
	Tag        string
	Maintainer string
	Entrypoint []string
	Command    []string
	Ports      []string
	Volumes    []string
	Workdir    string
	User       string
}

// BuildConfig is the validated snapshot of every build parameter. It is built
// once per run and must not be modified afterwards.
type BuildConfig struct {
	Namespace string
	Now       time.Time // UTC time captured at load; the base of every dated name.

	Repositories   []RepositoryConfig
	Binhost        string
	DistfilesDir   string
	BinpkgDir      string
	AutofixPortage bool
	DebugWorkdir   string

	UnblockerProfile string
	Profile          string
	BaselayoutAtoms  []string
	Outdir           string
	ForcedImageName  string
	KeepFailed       bool
	Workdir          string
	Driver           string

	EmergeJobs int
	EmergeAsk  bool

	Strip        bool
	StripFolders []string

	Docker           DockerConfig
	PostbuildEngines []string
	DockerGen        DockerGenConfig
}

// Load builds and validates a BuildConfig from src.
func Load(src *Source) (*BuildConfig, error) {
	return LoadAt(src, time.Now())
}

// LoadAt is like Load with an explicit reference time.
func LoadAt(src *Source, now time.Time) (*BuildConfig, error) {
	var (
		portage   portageSection
		build     buildSection
		emerge    emergeSection
		strip     stripSection
		docker    dockerSection
		postbuild postbuildSection
		dockergen dockergenSection
	)

	sections := []struct {
		name string
		out  any
	}{
		{"portage", &portage},
		{"build", &build},
		{"emerge", &emerge},
		{"strip", &strip},
		{"docker", &docker},
		{"postbuild", &postbuild},
		{"dockergen", &dockergen},
	}
	for _, s := range sections {
		if err := src.Decode(s.name, s.out); err != nil {
			return nil, err
		}
	}

	repositories, err := loadRepositories(src, portage.Repositories)
	if err != nil {
		return nil, err
	}

	entrypoint, err := parseShell("dockergen.entrypoint", dockergen.Entrypoint)
	if err != nil {
		return nil, err
	}
	command, err := parseShell("dockergen.command", dockergen.Command)
	if err != nil {
		return nil, err
	}

	cfg := &BuildConfig{
		Namespace: src.Namespace(),
		Now:       now.UTC(),

		Repositories:   repositories,
		Binhost:        portage.Binhost,
		DistfilesDir:   portage.Distfiles,
		BinpkgDir:      portage.Binpkg,
		AutofixPortage: portage.Autofix,
		DebugWorkdir:   portage.DebugWorkdir,

		UnblockerProfile: build.UnblockerProfile,
		Profile:          build.Profile,
		BaselayoutAtoms:  build.BaselayoutAtoms,
		Outdir:           build.Outdir,
		ForcedImageName:  build.ImageName,
		KeepFailed:       build.KeepFailed,
		Workdir:          build.Workdir,
		Driver:           build.Driver,

		EmergeJobs: emerge.Jobs,
		EmergeAsk:  emerge.Ask,

		Strip:        strip.Doc,
		StripFolders: strip.Paths,

		Docker: DockerConfig{
			Image:          docker.Image,
			Address:        docker.Daemon,
			WorkdirStorage: docker.WorkdirStorage,
		},
		PostbuildEngines: postbuild.Engines,
		DockerGen: DockerGenConfig{
			Name:       dockergen.Name,
			Tag:        dockergen.Tag,
			Maintainer: dockergen.Maintainer,
			Entrypoint: entrypoint,
			Command:    command,
			Ports:      dockergen.Ports,
			Volumes:    dockergen.Volumes,
			Workdir:    dockergen.Workdir,
			User:       dockergen.User,
		},
	}

	if err := cfg.absolutePaths(); err != nil {
		return nil, err
	}
	if err := cfg.Check(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// absolutePaths resolves every host path against the working directory, so
// bind mounts and flattened repository paths never depend on it later.
func (c *BuildConfig) absolutePaths() error {
	type hostPath struct {
		option string
		path   *string
	}
	paths := []hostPath{
		{"build.outdir", &c.Outdir},
		{"build.workdir", &c.Workdir},
		{"portage.binpkg", &c.BinpkgDir},
		{"portage.distfiles", &c.DistfilesDir},
		{"portage.debug_workdir", &c.DebugWorkdir},
	}
	for i := range c.Repositories {
		repo := &c.Repositories[i]
		paths = append(paths, hostPath{RepositorySection(repo.Name) + ".location", &repo.Location})
	}

	for _, p := range paths {
		if *p.path == "" {
			continue
		}
		abs, err := filepath.Abs(*p.path)
		if err != nil {
			return improperlyConfigured(p.option, "cannot resolve %s: %v", *p.path, err)
		}
		*p.path = abs
	}
	return nil
}

func loadRepositories(src *Source, names []string) ([]RepositoryConfig, error) {
	if len(names) == 0 {
		return []RepositoryConfig{{
			Name:     defaultRepositoryName,
			Location: defaultRepositoryLocation,
		}}, nil
	}

	repositories := make([]RepositoryConfig, 0, len(names))
	for _, name := range names {
		var section repositorySection
		if err := src.Decode(RepositorySection(name), &section); err != nil {
			return nil, err
		}
		repositories = append(repositories, RepositoryConfig{
			Name:            name,
			Location:        section.Location,
			EclassOverrides: section.EclassOverrides,
			Masters:         section.Masters,
			Priority:        section.Priority,
		})
	}
	return repositories, nil
}

func parseShell(option, text string) ([]string, error) {
	if text == "" {
		return nil, nil
	}
	parts, err := shlex.Split(text)
	if err != nil {
		return nil, improperlyConfigured(option, "cannot split %q: %v", text, err)
	}
	return parts, nil
}

// HasEngine reports whether the post-build engine name is selected.
func (c *BuildConfig) HasEngine(name string) bool {
	for _, engine := range c.PostbuildEngines {
		if engine == name {
			return true
		}
	}
	return false
}
