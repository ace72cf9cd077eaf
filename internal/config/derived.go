package config

import (
	"path/filepath"
	"strings"
)

const backupTimeFormat = "2006-01-02T15:04:05.000000"

// ProfileSafe returns the profile without its repository prefix, with slashes
// turned into dashes: "xelnor:path/to/profile" becomes "path-to-profile".
func (c *BuildConfig) ProfileSafe() string {
	basename := c.Profile
	if _, rest, ok := strings.Cut(basename, ":"); ok {
		basename = rest
	}
	return strings.ReplaceAll(basename, "/", "-")
}

// ImageName is the file name of the generated archive.
func (c *BuildConfig) ImageName() string {
	if c.ForcedImageName != "" {
		return c.ForcedImageName
	}
	return "image-" + c.ProfileSafe() + "-" + c.Now.Format("2006-01-02") + ImageSuffix
}

// ImagePath is the host path of the generated archive.
func (c *BuildConfig) ImagePath() string {
	return filepath.Join(c.Outdir, c.ImageName())
}

// WorkdirImage is the build root emerge installs into.
func (c *BuildConfig) WorkdirImage() string {
	return filepath.Join(c.Workdir, "image")
}

// PortageConfigRootBackup is the path an existing config root is moved to.
func (c *BuildConfig) PortageConfigRootBackup(root string) string {
	return root + ".quern-backup-" + c.Now.Format(backupTimeFormat)
}
