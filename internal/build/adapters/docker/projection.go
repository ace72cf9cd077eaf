package docker

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cochaviz/quern/internal/build"
	"github.com/cochaviz/quern/internal/config"
)

// Projection flattens the configuration of the build running inside the
// container into environment variables. The inner run is forced onto the raw
// driver and sees every host path through its mount point. Nothing else from
// the host environment reaches the container, and every key is set so the
// inner run never falls back to defaults or to a configuration file shipped
// in the base image.
func Projection(cfg *config.BuildConfig, repositories *build.RepositoryMap) (map[string]string, error) {
	values := map[string]string{
		"portage.binhost":         cfg.Binhost,
		"build.unblocker_profile": cfg.UnblockerProfile,
		"build.profile":           cfg.Profile,
		"build.baselayout_atoms":  strings.Join(cfg.BaselayoutAtoms, ","),
		"emerge.jobs":             strconv.Itoa(cfg.EmergeJobs),
		"strip.doc":               strconv.FormatBool(cfg.Strip),
		"strip.paths":             strings.Join(cfg.StripFolders, ","),

		"build.driver":      config.DriverRaw,
		"build.outdir":      build.InnerImagePath,
		"build.image_name":  cfg.ImageName(),
		"build.workdir":     InnerWorkdir,
		"build.keep_failed": strconv.FormatBool(cfg.KeepFailed),
		"emerge.ask":        "false",
		// Post-build engines run on the host once the container is done.
		"postbuild.engines": "",

		"portage.binpkg":        innerIfSet(cfg.BinpkgDir, build.InnerBinpkgPath),
		"portage.distfiles":     innerIfSet(cfg.DistfilesDir, build.InnerDistfilesPath),
		"portage.debug_workdir": innerIfSet(cfg.DebugWorkdir, build.InnerDebugWorkdirPath),
		"portage.autofix":       "true",
	}

	names := make([]string, 0, len(cfg.Repositories))
	for _, repo := range cfg.Repositories {
		names = append(names, repo.Name)

		location, ok := repositories.MountPath(repo.Location)
		if !ok {
			return nil, fmt.Errorf("repository %s at %s has no mount path", repo.Name, repo.Location)
		}
		section := config.RepositorySection(repo.Name)
		fields := []struct{ key, value string }{
			{"location", location},
			{"eclass-overrides", repo.EclassOverrides},
			{"masters", repo.Masters},
			{"priority", repo.Priority},
		}
		for _, field := range fields {
			if field.value == "" {
				continue
			}
			values[section+"."+field.key] = field.value
		}
	}
	values["portage.repositories"] = strings.Join(names, ",")

	namespace := cfg.Namespace
	if namespace == "" {
		namespace = config.DefaultNamespace
	}
	env := make(map[string]string, len(values))
	for option, value := range values {
		section, key := splitOption(option)
		env[config.EnvName(namespace, section, key)] = value
	}
	return env, nil
}

func innerIfSet(hostPath, innerPath string) string {
	if hostPath == "" {
		return ""
	}
	return innerPath
}

// splitOption splits "section.key" at its last dot; repository names may
// contain dots themselves.
func splitOption(option string) (string, string) {
	idx := strings.LastIndexByte(option, '.')
	return option[:idx], option[idx+1:]
}

// EnvList renders env as sorted KEY=value entries.
func EnvList(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for key := range env {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	list := make([]string, 0, len(keys))
	for _, key := range keys {
		list = append(list, key+"="+env[key])
	}
	return list
}

func formatEnv(env map[string]string) string {
	entries := EnvList(env)
	for i, entry := range entries {
		key, value, _ := strings.Cut(entry, "=")
		entries[i] = key + "=" + strconv.Quote(value)
	}
	return strings.Join(entries, "  ")
}
