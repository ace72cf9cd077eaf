package build

import (
	"log/slog"

	"github.com/cochaviz/quern/internal/config"
)

// Well-known paths inside the build container.
const (
	InnerRoot             = "/quern"
	InnerImagePath        = InnerRoot + "/image"
	InnerBinpkgPath       = InnerRoot + "/binpkg"
	InnerDistfilesPath    = InnerRoot + "/distfiles"
	InnerRepositoriesPath = InnerRoot + "/repositories"
	InnerDebugWorkdirPath = InnerRoot + "/portage-workdir"
)

// Base is the state shared by every driver and post-build engine of a run.
type Base struct {
	Config       *config.BuildConfig
	Repositories *RepositoryMap
	Logger       *slog.Logger
	RunID        string
}

// NewBase derives the repository map of cfg.
func NewBase(cfg *config.BuildConfig, logger *slog.Logger) (*Base, error) {
	repositories, err := NewRepositoryMap(cfg.Repositories)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Base{
		Config:       cfg,
		Repositories: repositories,
		Logger:       logger,
	}, nil
}
