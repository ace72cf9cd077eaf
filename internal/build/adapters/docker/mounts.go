package docker

import (
	"github.com/cochaviz/quern/internal/build"
	"github.com/cochaviz/quern/internal/config"

	"github.com/docker/docker/api/types/mount"
)

// ScratchPath is the container path backed by docker.workdir_storage.
const ScratchPath = "/tmp"

// InnerWorkdir is build.workdir of the inner run; it lives on the scratch
// storage.
const InnerWorkdir = ScratchPath + "/quern"

// Mounts returns the volume plan of the build container: repositories
// read-only, then output, binpkg, distfiles and debug workdir read-write, then
// the scratch area.
func Mounts(cfg *config.BuildConfig, repositories *build.RepositoryMap, storage config.WorkdirStorage) []mount.Mount {
	var mounts []mount.Mount
	for _, repo := range repositories.UniqueMounts() {
		mounts = append(mounts, mount.Mount{
			Type:     mount.TypeBind,
			Source:   repo.HostPath,
			Target:   repo.MountPath,
			ReadOnly: true,
		})
	}

	rw := []struct{ host, inner string }{
		{cfg.Outdir, build.InnerImagePath},
		{cfg.BinpkgDir, build.InnerBinpkgPath},
		{cfg.DistfilesDir, build.InnerDistfilesPath},
		{cfg.DebugWorkdir, build.InnerDebugWorkdirPath},
	}
	for _, volume := range rw {
		if volume.host == "" {
			continue
		}
		mounts = append(mounts, bind(volume.host, volume.inner))
	}

	switch storage.Kind {
	case config.StorageTmpfs:
		mounts = append(mounts, mount.Mount{
			Type:         mount.TypeTmpfs,
			Target:       ScratchPath,
			TmpfsOptions: &mount.TmpfsOptions{SizeBytes: storage.SizeBytes},
		})
	case config.StorageFile:
		mounts = append(mounts, bind(storage.HostPath, ScratchPath))
	}
	return mounts
}

func bind(host, inner string) mount.Mount {
	return mount.Mount{
		Type:   mount.TypeBind,
		Source: host,
		Target: inner,
	}
}

// writableSources lists the host directories bound read-write. Unlike legacy
// binds, mounts fail on a missing source, so they are created beforehand.
func writableSources(mounts []mount.Mount) []string {
	var sources []string
	for _, m := range mounts {
		if m.Type == mount.TypeBind && !m.ReadOnly {
			sources = append(sources, m.Source)
		}
	}
	return sources
}
