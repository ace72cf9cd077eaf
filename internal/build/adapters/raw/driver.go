package raw

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/cochaviz/quern/internal/build"
	"github.com/cochaviz/quern/internal/config"

	securejoin "github.com/cyphar/filepath-securejoin"
)

var _ build.Driver = (*Driver)(nil)

// Driver builds the image on the host, driving emerge against the work
// directory.
type Driver struct {
	*build.Base

	Runner   Runner
	Resolver RepositoryResolver

	// Level is raised to error while the host package manager is inspected.
	Level *slog.LevelVar

	// ConfigRoot defaults to config.PortageConfigRoot.
	ConfigRoot string
}

// NewDriver returns a driver running real commands.
func NewDriver(base *build.Base) *Driver {
	return &Driver{
		Base:       base,
		Runner:     &ExecRunner{Logger: base.Logger},
		Resolver:   &PortageqResolver{},
		ConfigRoot: config.PortageConfigRoot,
	}
}

// Factory returns a build.DriverFactory for the raw driver.
func Factory(level *slog.LevelVar) build.DriverFactory {
	return func(base *build.Base) (build.Driver, error) {
		driver := NewDriver(base)
		driver.Level = level
		return driver, nil
	}
}

func (d *Driver) configRoot() string {
	if d.ConfigRoot != "" {
		return d.ConfigRoot
	}
	return config.PortageConfigRoot
}

// Setup writes the portage configuration used by the build. An existing
// configuration root is moved aside first and never restored.
func (d *Driver) Setup(ctx context.Context) error {
	cfg := d.Config
	root := d.configRoot()

	if _, err := os.Lstat(root); err == nil {
		backup := cfg.PortageConfigRootBackup(root)
		d.Logger.Info("existing portage configuration found, moving it aside",
			"path", root,
			"backup", backup,
		)
		if err := moveAside(root, backup); err != nil {
			return &build.BuildError{Phase: "setup", Message: "back up portage configuration", Err: err}
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return &build.BuildError{Phase: "setup", Message: "inspect portage configuration", Err: err}
	}

	d.Logger.Info("configuring build portage", "path", root)
	for _, dir := range []string{root, cfg.WorkdirImage()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &build.BuildError{Phase: "setup", Message: "create " + dir, Err: err}
		}
	}

	makeConf := strings.Join(cfg.MakeConfLines(), "\n") + "\n"
	if err := os.WriteFile(config.MakeConfPath(root), []byte(makeConf), 0o644); err != nil {
		return &build.BuildError{Phase: "setup", Message: "write make.conf", Err: err}
	}

	d.Logger.Info("configuring build repositories", "count", len(cfg.Repositories))
	reposConf := strings.Join(cfg.ReposConfLines(), "\n") + "\n"
	if err := os.WriteFile(config.ReposConfPath(root), []byte(reposConf), 0o644); err != nil {
		return &build.BuildError{Phase: "setup", Message: "write repos.conf", Err: err}
	}

	if cfg.AutofixPortage && len(cfg.Repositories) > 0 {
		return d.fixMainRepository(ctx, cfg.Repositories[0])
	}
	return nil
}

// fixMainRepository links the path portage expects for the main repository
// to its configured location when that path is missing.
func (d *Driver) fixMainRepository(ctx context.Context, main config.RepositoryConfig) error {
	expected, ok, err := d.resolveQuietly(ctx, main.Name)
	if err != nil {
		d.Logger.Warn("main repository repair skipped", "repository", main.Name, "error", err)
		return nil
	}
	if !ok || expected == "" {
		d.Logger.Debug("main repository unknown to portage, repair skipped", "repository", main.Name)
		return nil
	}
	if info, err := os.Stat(expected); err == nil && info.IsDir() {
		return nil
	}

	d.Logger.Info("fixing main portage repository", "path", expected, "target", main.Location)
	if err := os.MkdirAll(filepath.Dir(expected), 0o755); err != nil {
		return &build.BuildError{Phase: "setup", Message: "create parent of " + expected, Err: err}
	}
	if err := os.Symlink(main.Location, expected); err != nil {
		return &build.BuildError{Phase: "setup", Message: "link main repository", Err: err}
	}
	return nil
}

func (d *Driver) resolveQuietly(ctx context.Context, name string) (string, bool, error) {
	if d.Resolver == nil {
		return "", false, errors.New("no repository resolver configured")
	}
	if d.Level != nil {
		previous := d.Level.Level()
		d.Level.Set(slog.LevelError)
		defer d.Level.Set(previous)
	}
	return d.Resolver.ResolveDefaultRepositoryPath(ctx, name)
}

// Build runs emerge into the work directory, strips it and archives it.
func (d *Driver) Build(ctx context.Context) error {
	cfg := d.Config
	d.Logger.Info("starting compilation")

	if cfg.UnblockerProfile != "" {
		d.Logger.Info("breaking host blocks", "profile", cfg.UnblockerProfile)
		if err := d.run(ctx, nil, "eselect", "profile", "set", cfg.UnblockerProfile); err != nil {
			return err
		}
		d.Logger.Info("merging unblocking packages to main system")
		if err := d.run(ctx, map[string]string{"ROOT": "/"}, "emerge", "--oneshot", "--newuse", "@world"); err != nil {
			return err
		}
	}

	d.Logger.Info("enabling profile", "profile", cfg.Profile)
	if err := d.run(ctx, nil, "eselect", "profile", "set", cfg.Profile); err != nil {
		return err
	}

	if len(cfg.BaselayoutAtoms) > 0 {
		d.Logger.Info("building baselayout atoms", "atoms", strings.Join(cfg.BaselayoutAtoms, ", "))
		args := append([]string{"emerge", "--jobs=1"}, cfg.BaselayoutAtoms...)
		if err := d.run(ctx, nil, args...); err != nil {
			return err
		}
	}

	d.Logger.Info("building @profile packages")
	if err := d.run(ctx, nil, "emerge", "@profile"); err != nil {
		return err
	}

	if err := d.strip(); err != nil {
		return err
	}

	d.Logger.Info("collecting image", "path", cfg.ImagePath())
	if err := writeTarball(d.Logger, cfg.WorkdirImage(), cfg.ImagePath()); err != nil {
		return &build.BuildError{Phase: "build", Message: "write image", Err: err}
	}

	d.Logger.Info("done")
	return nil
}

func (d *Driver) run(ctx context.Context, env map[string]string, args ...string) error {
	if d.Runner == nil {
		return &build.BuildError{Phase: "build", Message: "no command runner configured"}
	}
	return d.Runner.Run(ctx, env, args...)
}

// strip removes every strip.paths entry from the image root. Entries are
// resolved inside the root, so "../" or absolute links cannot escape it.
func (d *Driver) strip() error {
	root := d.Config.WorkdirImage()
	for _, folder := range d.Config.StripFolders {
		target, err := securejoin.SecureJoin(root, folder)
		if err != nil {
			return &build.BuildError{Phase: "build", Message: fmt.Sprintf("resolve strip path %q", folder), Err: err}
		}
		if target == filepath.Clean(root) {
			return &build.BuildError{Phase: "build", Message: fmt.Sprintf("strip path %q is the image root", folder)}
		}
		d.Logger.Info("pruning", "path", target)
		if err := os.RemoveAll(target); err != nil {
			return &build.BuildError{Phase: "build", Message: "prune " + target, Err: err}
		}
	}
	return nil
}
