package config

import (
	"fmt"
	"path/filepath"
	"strconv"
)

// ReposConfLines renders the content of repos.conf. The first repository is
// the main one.
func (c *BuildConfig) ReposConfLines() []string {
	var lines []string
	for i, repo := range c.Repositories {
		if i == 0 {
			lines = append(lines, "[DEFAULT]", "main-repo = "+repo.Name)
		}
		lines = append(lines, "")
		lines = append(lines, repo.reposConfLines()...)
	}
	return lines
}

func (r RepositoryConfig) reposConfLines() []string {
	options := []struct{ name, value string }{
		{"location", r.Location},
		{"eclass-overrides", r.EclassOverrides},
		{"masters", r.Masters},
		{"priority", r.Priority},
	}

	lines := []string{"[" + r.Name + "]"}
	for _, opt := range options {
		if opt.value == "" {
			lines = append(lines, "# "+opt.name+" =")
			continue
		}
		lines = append(lines, opt.name+" = "+opt.value)
	}
	return lines
}

// MakeConfLines renders the content of make.conf.
func (c *BuildConfig) MakeConfLines() []string {
	var lines []string
	set := func(key, value string) {
		lines = append(lines, fmt.Sprintf(`%s="%s"`, key, value))
	}
	extend := func(key, value string) {
		lines = append(lines, fmt.Sprintf(`%s="$%s %s"`, key, key, value))
	}

	set("ROOT", c.WorkdirImage())
	if c.DistfilesDir != "" {
		set("DISTDIR", c.DistfilesDir)
	}
	if c.BinpkgDir != "" {
		set("PKGDIR", c.BinpkgDir)
	}
	if c.Binhost != "" {
		set("BINHOST", c.Binhost)
	}
	if c.DebugWorkdir != "" {
		set("PORTAGE_TMPDIR", c.DebugWorkdir)
	}

	if c.EmergeJobs != 0 {
		extend("EMERGE_DEFAULT_OPTS", "--jobs="+strconv.Itoa(c.EmergeJobs))
	}
	if c.EmergeAsk {
		extend("EMERGE_DEFAULT_OPTS", "--ask")
	}
	extend("EMERGE_DEFAULT_OPTS", "--tree")
	extend("EMERGE_DEFAULT_OPTS", "--verbose-conflicts")

	if c.Strip {
		extend("FEATURES", "nodoc noinfo noman")
	}
	if c.Binhost != "" {
		extend("FEATURES", "getbinpkg")
	}
	if c.BinpkgDir != "" {
		extend("FEATURES", "buildpkg")
		extend("FEATURES", "binpkg-multi-instance")
		extend("EMERGE_DEFAULT_OPTS", "--usepkg")
		extend("EMERGE_DEFAULT_OPTS", "--binpkg-respect-use=y")
		extend("EMERGE_DEFAULT_OPTS", "--binpkg-changed-deps=y")
	}

	// Build-time dependencies are updated as well.
	extend("EMERGE_DEFAULT_OPTS", "--changed-deps=y")
	extend("EMERGE_DEFAULT_OPTS", "--with-bdeps=y")

	return lines
}

// MakeConfPath and ReposConfPath locate the generated files under root.
func MakeConfPath(root string) string  { return filepath.Join(root, "make.conf") }
func ReposConfPath(root string) string { return filepath.Join(root, "repos.conf") }
