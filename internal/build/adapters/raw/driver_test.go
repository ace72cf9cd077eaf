package raw

import (
	"archive/tar"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/cochaviz/quern/internal/build"
	"github.com/cochaviz/quern/internal/config"

	"github.com/klauspost/compress/gzip"
)

type recordedCall struct {
	env  map[string]string
	args []string
}

type stubRunner struct {
	calls  []recordedCall
	failOn string
}

func (r *stubRunner) Run(_ context.Context, env map[string]string, args ...string) error {
	r.calls = append(r.calls, recordedCall{env: env, args: args})
	if r.failOn != "" && strings.Join(args, " ") == r.failOn {
		return &build.ExternalCommandFailure{Args: args, ExitCode: 1}
	}
	return nil
}

type stubResolver struct {
	path  string
	ok    bool
	err   error
	level *slog.LevelVar
	seen  slog.Level
}

func (r *stubResolver) ResolveDefaultRepositoryPath(context.Context, string) (string, bool, error) {
	if r.level != nil {
		r.seen = r.level.Level()
	}
	return r.path, r.ok, r.err
}

func newTestDriver(t *testing.T, mutate func(*config.BuildConfig)) (*Driver, *stubRunner) {
	t.Helper()

	dir := t.TempDir()
	cfg := &config.BuildConfig{
		Now:          time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Profile:      "default/linux/amd64",
		Outdir:       filepath.Join(dir, "out"),
		Workdir:      filepath.Join(dir, "work"),
		Repositories: []config.RepositoryConfig{{Name: "gentoo", Location: filepath.Join(dir, "repos", "gentoo")}},
	}
	if mutate != nil {
		mutate(cfg)
	}

	base, err := build.NewBase(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewBase() error = %v", err)
	}

	runner := &stubRunner{}
	driver := NewDriver(base)
	driver.Runner = runner
	driver.Resolver = &stubResolver{}
	driver.ConfigRoot = filepath.Join(dir, "etc", "portage")
	return driver, runner
}

func TestSetupWritesPortageConfiguration(t *testing.T) {
	t.Parallel()

	driver, _ := newTestDriver(t, nil)
	if err := driver.Setup(context.Background()); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	makeConf, err := os.ReadFile(filepath.Join(driver.ConfigRoot, "make.conf"))
	if err != nil {
		t.Fatalf("read make.conf: %v", err)
	}
	if want := strings.Join(driver.Config.MakeConfLines(), "\n") + "\n"; string(makeConf) != want {
		t.Fatalf("make.conf = %q, want %q", makeConf, want)
	}

	reposConf, err := os.ReadFile(filepath.Join(driver.ConfigRoot, "repos.conf"))
	if err != nil {
		t.Fatalf("read repos.conf: %v", err)
	}
	if !strings.HasPrefix(string(reposConf), "[DEFAULT]\nmain-repo = gentoo\n\n[gentoo]\n") {
		t.Fatalf("repos.conf = %q", reposConf)
	}

	if info, err := os.Stat(driver.Config.WorkdirImage()); err != nil || !info.IsDir() {
		t.Fatalf("image root not created: %v", err)
	}
}

func TestSetupMovesExistingConfigurationAside(t *testing.T) {
	t.Parallel()

	driver, _ := newTestDriver(t, nil)
	root := driver.ConfigRoot
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "make.conf"), []byte("OLD=1\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := driver.Setup(context.Background()); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	backup := driver.Config.PortageConfigRootBackup(root)
	old, err := os.ReadFile(filepath.Join(backup, "make.conf"))
	if err != nil {
		t.Fatalf("backup missing: %v", err)
	}
	if string(old) != "OLD=1\n" {
		t.Fatalf("backup make.conf = %q", old)
	}

	// A second setup within the same run must not overwrite the backup.
	if err := driver.Setup(context.Background()); err == nil {
		t.Fatal("second Setup() error = nil, want existing backup error")
	}
	if old, _ := os.ReadFile(filepath.Join(backup, "make.conf")); string(old) != "OLD=1\n" {
		t.Fatalf("backup was overwritten: %q", old)
	}
}

func TestAutofixLinksMissingMainRepository(t *testing.T) {
	t.Parallel()

	driver, _ := newTestDriver(t, func(c *config.BuildConfig) { c.AutofixPortage = true })
	expected := filepath.Join(t.TempDir(), "usr", "portage")
	level := &slog.LevelVar{}
	level.Set(slog.LevelDebug)
	resolver := &stubResolver{path: expected, ok: true, level: level}
	driver.Resolver = resolver
	driver.Level = level

	if err := driver.Setup(context.Background()); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	target, err := os.Readlink(expected)
	if err != nil {
		t.Fatalf("Readlink() error = %v", err)
	}
	if target != driver.Config.Repositories[0].Location {
		t.Fatalf("link target = %q, want %q", target, driver.Config.Repositories[0].Location)
	}
	if resolver.seen != slog.LevelError {
		t.Fatalf("level during resolve = %v, want %v", resolver.seen, slog.LevelError)
	}
	if level.Level() != slog.LevelDebug {
		t.Fatalf("level after resolve = %v, want restored %v", level.Level(), slog.LevelDebug)
	}
}

func TestAutofixResolverFailureIsSkipped(t *testing.T) {
	t.Parallel()

	driver, _ := newTestDriver(t, func(c *config.BuildConfig) { c.AutofixPortage = true })
	level := &slog.LevelVar{}
	driver.Level = level
	driver.Resolver = &stubResolver{err: errors.New("portageq exploded")}

	if err := driver.Setup(context.Background()); err != nil {
		t.Fatalf("Setup() error = %v, want repair skipped", err)
	}
	if level.Level() != slog.LevelInfo {
		t.Fatalf("level = %v, want restored info", level.Level())
	}
}

func TestAutofixKeepsExistingPath(t *testing.T) {
	t.Parallel()

	driver, _ := newTestDriver(t, func(c *config.BuildConfig) { c.AutofixPortage = true })
	existing := t.TempDir()
	driver.Resolver = &stubResolver{path: existing, ok: true}

	if err := driver.Setup(context.Background()); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if info, err := os.Lstat(existing); err != nil || info.Mode()&os.ModeSymlink != 0 {
		t.Fatalf("existing path replaced: %v", err)
	}
}

func TestBuildRunsCommandsInOrder(t *testing.T) {
	t.Parallel()

	driver, runner := newTestDriver(t, func(c *config.BuildConfig) {
		c.UnblockerProfile = "unblock/profile"
		c.BaselayoutAtoms = []string{"sys-apps/baselayout", "sys-libs/glibc"}
	})
	if err := os.MkdirAll(driver.Config.WorkdirImage(), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	if err := driver.Build(context.Background()); err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	want := [][]string{
		{"eselect", "profile", "set", "unblock/profile"},
		{"emerge", "--oneshot", "--newuse", "@world"},
		{"eselect", "profile", "set", "default/linux/amd64"},
		{"emerge", "--jobs=1", "sys-apps/baselayout", "sys-libs/glibc"},
		{"emerge", "@profile"},
	}
	if len(runner.calls) != len(want) {
		t.Fatalf("calls = %+v, want %v", runner.calls, want)
	}
	for i, call := range runner.calls {
		if !reflect.DeepEqual(call.args, want[i]) {
			t.Fatalf("call %d = %v, want %v", i, call.args, want[i])
		}
	}
	if got := runner.calls[1].env["ROOT"]; got != "/" {
		t.Fatalf("world merge ROOT = %q, want /", got)
	}

	if _, err := os.Stat(driver.Config.ImagePath()); err != nil {
		t.Fatalf("image not written: %v", err)
	}
}

func TestBuildStopsOnCommandFailure(t *testing.T) {
	t.Parallel()

	driver, runner := newTestDriver(t, nil)
	runner.failOn = "eselect profile set default/linux/amd64"

	err := driver.Build(context.Background())
	var failure *build.ExternalCommandFailure
	if !errors.As(err, &failure) {
		t.Fatalf("Build() error = %v, want ExternalCommandFailure", err)
	}
	if len(runner.calls) != 1 {
		t.Fatalf("calls after failure = %d, want 1", len(runner.calls))
	}
	if _, err := os.Stat(driver.Config.ImagePath()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("image exists after failure: %v", err)
	}
}

func TestBuildStripsAndArchives(t *testing.T) {
	t.Parallel()

	driver, _ := newTestDriver(t, func(c *config.BuildConfig) {
		c.BaselayoutAtoms = nil
		c.StripFolders = []string{"/usr/share/doc", "../../escape", "var/missing"}
	})
	root := driver.Config.WorkdirImage()
	mustWrite(t, filepath.Join(root, "usr", "share", "doc", "README"), "doc")
	mustWrite(t, filepath.Join(root, "etc", "os-release"), "NAME=Gentoo\n")
	if err := os.Symlink("os-release", filepath.Join(root, "etc", "release")); err != nil {
		t.Fatalf("symlink: %v", err)
	}
	if err := os.Link(filepath.Join(root, "etc", "os-release"), filepath.Join(root, "etc", "os-release.hard")); err != nil {
		t.Fatalf("link: %v", err)
	}
	outside := filepath.Join(filepath.Dir(filepath.Dir(root)), "escape")
	mustWrite(t, filepath.Join(outside, "keep"), "keep")

	if err := driver.Build(context.Background()); err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(root, "usr", "share", "doc")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("doc folder not stripped: %v", err)
	}
	if _, err := os.Stat(filepath.Join(outside, "keep")); err != nil {
		t.Fatalf("strip escaped the image root: %v", err)
	}

	entries := readTarball(t, driver.Config.ImagePath())
	if hdr := entries["./etc/release"]; hdr == nil || hdr.Typeflag != tar.TypeSymlink || hdr.Linkname != "os-release" {
		t.Fatalf("symlink entry = %+v", hdr)
	}
	regular, hard := entries["./etc/os-release"], entries["./etc/os-release.hard"]
	if regular == nil || hard == nil {
		t.Fatalf("missing entries: %v", keys(entries))
	}
	if regular.Typeflag == tar.TypeLink {
		regular, hard = hard, regular
	}
	if hard.Typeflag != tar.TypeLink || hard.Linkname != regular.Name {
		t.Fatalf("hard link entry = %+v", hard)
	}
	if _, ok := entries["./usr/share/doc/README"]; ok {
		t.Fatal("stripped file archived")
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func readTarball(t *testing.T, path string) map[string]*tar.Header {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open image: %v", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	tr := tar.NewReader(gz)

	entries := map[string]*tar.Header{}
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return entries
		}
		if err != nil {
			t.Fatalf("read tar: %v", err)
		}
		entries[hdr.Name] = hdr
	}
}

func keys(m map[string]*tar.Header) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
