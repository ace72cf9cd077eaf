package config

import (
	"strings"

	units "github.com/docker/go-units"
)

// StorageKind tells how the container scratch area is backed.
type StorageKind string

const (
	StorageTmpfs StorageKind = "tmpfs"
	StorageFile  StorageKind = "file"
)

// WorkdirStorage is the parsed form of docker.workdir_storage.
type WorkdirStorage struct {
	Kind      StorageKind
	SizeBytes int64  // tmpfs only
	HostPath  string // file only
}

// WorkdirStorage parses docker.workdir_storage. Sizes use binary units, so
// tmpfs:200M is 200 MiB.
func (c *BuildConfig) WorkdirStorage() (WorkdirStorage, error) {
	spec := c.Docker.WorkdirStorage
	kind, value, _ := strings.Cut(spec, ":")
	if !workdirStoragePattern.MatchString(spec) {
		return WorkdirStorage{}, improperlyConfigured("docker.workdir_storage", "invalid storage %q", spec)
	}

	switch StorageKind(kind) {
	case StorageTmpfs:
		size, err := units.RAMInBytes(value)
		if err != nil {
			return WorkdirStorage{}, improperlyConfigured("docker.workdir_storage", "invalid size %q: %v", value, err)
		}
		return WorkdirStorage{Kind: StorageTmpfs, SizeBytes: size}, nil
	default:
		return WorkdirStorage{Kind: StorageFile, HostPath: value}, nil
	}
}
