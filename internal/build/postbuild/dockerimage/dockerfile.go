package dockerimage

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cochaviz/quern/internal/config"
)

// DateTag is replaced by the build date (YYYYMMDD) in dockergen.tag.
const DateTag = "$$DATE$$"

// RawImage returns the repository and tag the build tarball is imported as.
func RawImage(cfg *config.BuildConfig) (string, string) {
	return "quern-" + cfg.ProfileSafe(), cfg.Now.Format("20060102150405")
}

// TargetImage returns the reference of the generated image.
func TargetImage(cfg *config.BuildConfig) string {
	tag := cfg.DockerGen.Tag
	if tag == DateTag {
		tag = cfg.Now.Local().Format("20060102")
	}
	if tag == "" {
		return cfg.DockerGen.Name
	}
	return cfg.DockerGen.Name + ":" + tag
}

// DockerfileLines renders the Dockerfile turning the raw image into the
// target one.
func DockerfileLines(cfg *config.BuildConfig, rawImage, version string) []string {
	gen := cfg.DockerGen
	lines := []string{"FROM " + rawImage}

	if gen.Maintainer != "" {
		lines = append(lines, "MAINTAINER "+gen.Maintainer)
	}
	if len(gen.Entrypoint) > 0 {
		lines = append(lines, "ENTRYPOINT "+execForm(gen.Entrypoint))
	}
	if len(gen.Command) > 0 {
		lines = append(lines, "CMD "+execForm(gen.Command))
	}
	for _, port := range gen.Ports {
		lines = append(lines, "EXPOSE "+port)
	}
	for _, volume := range gen.Volumes {
		lines = append(lines, "VOLUME "+volume)
	}
	if gen.Workdir != "" {
		lines = append(lines, "WORKDIR "+gen.Workdir)
	}
	if gen.User != "" {
		lines = append(lines, "USER "+gen.User)
	}

	lines = append(lines, fmt.Sprintf("LABEL quern-version=%s quern-profile=%s",
		quote(version), quote(cfg.Profile)))
	return lines
}

// execForm renders args as a JSON array, the exec form of ENTRYPOINT and CMD.
func execForm(args []string) string {
	data, err := json.Marshal(args)
	if err != nil {
		// A []string always marshals.
		panic(err)
	}
	return string(data)
}

func quote(value string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(value) + `"`
}
