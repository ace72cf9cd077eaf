package raw

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/cochaviz/quern/internal/build"
)

// Runner runs external commands. env entries are added to the process
// environment.
type Runner interface {
	Run(ctx context.Context, env map[string]string, args ...string) error
}

// ExecRunner runs commands with os/exec, streaming their output.
type ExecRunner struct {
	Logger *slog.Logger
	Stdout io.Writer // defaults to os.Stdout
	Stderr io.Writer // defaults to os.Stderr
}

var _ Runner = (*ExecRunner)(nil)

func (r *ExecRunner) Run(ctx context.Context, env map[string]string, args ...string) error {
	if len(args) == 0 {
		return &build.BuildError{Message: "no command provided"}
	}

	r.logger().Info("calling command",
		"command", strings.Join(args, " "),
		"env", formatEnv(env),
	)

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdout = writerOr(r.Stdout, os.Stdout)
	cmd.Stderr = writerOr(r.Stderr, os.Stderr)
	cmd.Env = os.Environ()
	for _, key := range sortedKeys(env) {
		cmd.Env = append(cmd.Env, key+"="+env[key])
	}

	if err := cmd.Run(); err != nil {
		failure := &build.ExternalCommandFailure{Args: append([]string(nil), args...), ExitCode: -1, Err: err}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			failure.ExitCode = exitErr.ExitCode()
		}
		return failure
	}
	return nil
}

func (r *ExecRunner) logger() *slog.Logger {
	if r != nil && r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func writerOr(w, fallback io.Writer) io.Writer {
	if w != nil {
		return w
	}
	return fallback
}

func formatEnv(env map[string]string) string {
	parts := make([]string, 0, len(env))
	for _, key := range sortedKeys(env) {
		parts = append(parts, key+`="`+env[key]+`"`)
	}
	return strings.Join(parts, " ")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
