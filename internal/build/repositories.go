package build

import (
	"path"
	"strings"

	"github.com/cochaviz/quern/internal/config"
)

// RepositoryMount binds the host location of a repository to its path inside
// the build container.
type RepositoryMount struct {
	Repository config.RepositoryConfig
	HostPath   string
	MountPath  string
}

// RepositoryMap maps host repository locations to container paths, in
// configuration order.
type RepositoryMap struct {
	mounts []RepositoryMount
	byHost map[string]string
}

// FlattenPath trims leading and trailing slashes and replaces the remaining
// ones with dashes: /usr/portage becomes usr-portage.
func FlattenPath(p string) string {
	return strings.ReplaceAll(strings.Trim(p, "/"), "/", "-")
}

// NewRepositoryMap maps every repository under InnerRepositoriesPath.
// Distinct locations flattening to the same path are a configuration error.
func NewRepositoryMap(repositories []config.RepositoryConfig) (*RepositoryMap, error) {
	m := &RepositoryMap{byHost: make(map[string]string, len(repositories))}
	owners := make(map[string]string, len(repositories))

	for _, repo := range repositories {
		mountPath := path.Join(InnerRepositoriesPath, FlattenPath(repo.Location))
		if owner, ok := owners[mountPath]; ok && owner != repo.Location {
			return nil, &config.ConfigurationError{
				Option: config.RepositorySection(repo.Name) + ".location",
				Reason: "location " + repo.Location + " and " + owner + " both map to " + mountPath,
			}
		}
		owners[mountPath] = repo.Location
		m.byHost[repo.Location] = mountPath
		m.mounts = append(m.mounts, RepositoryMount{
			Repository: repo,
			HostPath:   repo.Location,
			MountPath:  mountPath,
		})
	}
	return m, nil
}

// MountPath returns the container path of a host location.
func (m *RepositoryMap) MountPath(location string) (string, bool) {
	p, ok := m.byHost[location]
	return p, ok
}

// Mounts returns one entry per repository, in configuration order.
func (m *RepositoryMap) Mounts() []RepositoryMount {
	return append([]RepositoryMount(nil), m.mounts...)
}

// UniqueMounts returns one entry per distinct host location.
func (m *RepositoryMap) UniqueMounts() []RepositoryMount {
	seen := make(map[string]bool, len(m.mounts))
	mounts := make([]RepositoryMount, 0, len(m.mounts))
	for _, mount := range m.mounts {
		if seen[mount.HostPath] {
			continue
		}
		seen[mount.HostPath] = true
		mounts = append(mounts, mount)
	}
	return mounts
}
