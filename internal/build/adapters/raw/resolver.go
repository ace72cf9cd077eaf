package raw

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// RepositoryResolver reports where the host package manager expects a
// repository to live. ok is false when the repository is unknown to it.
type RepositoryResolver interface {
	ResolveDefaultRepositoryPath(ctx context.Context, name string) (path string, ok bool, err error)
}

// PortageqResolver asks portageq for the repository path of the host root.
type PortageqResolver struct {
	Binary string // defaults to portageq
}

var _ RepositoryResolver = (*PortageqResolver)(nil)

func (r *PortageqResolver) ResolveDefaultRepositoryPath(ctx context.Context, name string) (string, bool, error) {
	binary := r.Binary
	if binary == "" {
		binary = "portageq"
	}

	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, "get_repo_path", "/", name)
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 && stdout.Len() == 0 {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%s get_repo_path %s: %w", binary, name, err)
	}

	path := strings.TrimSpace(stdout.String())
	if path == "" {
		return "", false, nil
	}
	return path, true, nil
}
