package config

// Sections as they appear in configuration files. Field order is the order
// used by Template.

type portageSection struct {
	Repositories []string `mapstructure:"repositories" doc:"Comma-separated list of repository:xxx sections to load"`
	Binhost      string   `mapstructure:"binhost" doc:"Space-separated list of binary package hosts"`
	Distfiles    string   `mapstructure:"distfiles" doc:"Path to distfiles"`
	Binpkg       string   `mapstructure:"binpkg" doc:"Path where binpkgs should be written"`
	Autofix      bool     `mapstructure:"autofix" default:"false" doc:"Point the system main repository path at the configured main repository"`
	DebugWorkdir string   `mapstructure:"debug_workdir" doc:"Store failed build workspaces"`
}

type buildSection struct {
	UnblockerProfile string   `mapstructure:"unblocker_profile" doc:"Portage profile to break blockers (merged to host)"`
	Profile          string   `mapstructure:"profile" doc:"Portage profile to use"`
	BaselayoutAtoms  []string `mapstructure:"baselayout_atoms" default:"sys-apps/baselayout" doc:"Atoms to install to the image before any other package"`
	Outdir           string   `mapstructure:"outdir" doc:"Folder where the generated image will be written"`
	ImageName        string   `mapstructure:"image_name" doc:"Force generated image name (with .tar.gz suffix)"`
	KeepFailed       bool     `mapstructure:"keep_failed" default:"true" doc:"Keep build environment of failed builds"`
	Workdir          string   `mapstructure:"workdir" default:"/tmp/quern" doc:"Working directory for the build process"`
	Driver           string   `mapstructure:"driver" default:"raw" doc:"Build driver (raw, docker)"`
}

type emergeSection struct {
	Jobs int  `mapstructure:"jobs" default:"0" doc:"Parallel portage builds"`
	Ask  bool `mapstructure:"ask" default:"false" doc:"Require questions from emerge"`
}

type stripSection struct {
	Doc   bool     `mapstructure:"doc" default:"false" doc:"Strip simple files (man/info/doc) from the image"`
	Paths []string `mapstructure:"paths" doc:"Comma-separated list of folders to strip from the image"`
}

type dockerSection struct {
	Image          string `mapstructure:"image" doc:"Docker base image for building"`
	Daemon         string `mapstructure:"daemon" default:"unix:///var/run/docker.sock" doc:"Address of docker daemon"`
	WorkdirStorage string `mapstructure:"workdir_storage" default:"tmpfs:200M" doc:"Backing storage for the working dir; tmpfs:xxM or file:/path/to/folder"`
}

type postbuildSection struct {
	Engines []string `mapstructure:"engines" doc:"Engines for post-generation tasks (docker)"`
}

type dockergenSection struct {
	Name       string   `mapstructure:"name" doc:"Generated image name"`
	Tag        string   `mapstructure:"tag" doc:"Generated image tag; use $$DATE$$ for %Y%m%d format"`
	Maintainer string   `mapstructure:"maintainer" doc:"Dockerfile MAINTAINER"`
	Entrypoint string   `mapstructure:"entrypoint" doc:"Dockerfile ENTRYPOINT"`
	Command    string   `mapstructure:"command" doc:"Dockerfile CMD"`
	Ports      []string `mapstructure:"ports" doc:"Dockerfile EXPOSE"`
	Volumes    []string `mapstructure:"volumes" doc:"Dockerfile VOLUME"`
	Workdir    string   `mapstructure:"workdir" doc:"Dockerfile WORKDIR"`
	User       string   `mapstructure:"user" doc:"Dockerfile USER"`
}

type repositorySection struct {
	Location        string `mapstructure:"location" doc:"Path to the repository on the host"`
	EclassOverrides string `mapstructure:"eclass-overrides" doc:"repos.conf eclass-overrides"`
	Masters         string `mapstructure:"masters" doc:"repos.conf masters"`
	Priority        string `mapstructure:"priority" doc:"repos.conf priority"`
}

// RepositorySection returns the section name holding repository name.
func RepositorySection(name string) string {
	return "repository:" + name
}

var templateSections = []struct {
	name    string
	section any
}{
	{"portage", portageSection{}},
	{"build", buildSection{}},
	{"emerge", emergeSection{}},
	{"strip", stripSection{}},
	{"docker", dockerSection{}},
	{"postbuild", postbuildSection{}},
	{"dockergen", dockergenSection{}},
	{RepositorySection("gentoo"), repositorySection{}},
}
