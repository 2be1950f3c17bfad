package cmd

import (
	"context"
	"path/filepath"

	"github.com/caedis/babylonia-terminal/internal/assets"
	"github.com/caedis/babylonia-terminal/internal/compat"
	"github.com/caedis/babylonia-terminal/internal/component"
	"github.com/caedis/babylonia-terminal/internal/config"
	"github.com/caedis/babylonia-terminal/internal/downloader"
	"github.com/caedis/babylonia-terminal/internal/github"
	"github.com/caedis/babylonia-terminal/internal/logging"
	"github.com/caedis/babylonia-terminal/internal/manifest"
	"github.com/caedis/babylonia-terminal/internal/patcher"
	"github.com/caedis/babylonia-terminal/internal/progress"
	"github.com/caedis/babylonia-terminal/internal/proton"
	"github.com/caedis/babylonia-terminal/internal/setup"
)

// app wires the clients every command shares.
type app struct {
	configDir string
	store     *config.Store
	manifest  *manifest.Client
	releases  *github.Client
	download  *downloader.Client
}

func newApp(ctx context.Context) (*app, error) {
	dir, err := resolveConfigDir()
	if err != nil {
		return nil, err
	}
	logging.Debugf("Verbose: config dir %s\n", dir)

	return &app{
		configDir: dir,
		store:     config.NewStore(dir),
		manifest:  manifest.New(dir),
		releases:  github.NewClient(ctx, getGithubToken()),
		download:  downloader.New(),
	}, nil
}

func resolveConfigDir() (string, error) {
	if configDir != "" {
		return filepath.Abs(configDir)
	}
	return config.DefaultDir()
}

func getGithubToken() string {
	if githubToken != "" {
		return githubToken
	}
	return github.TokenFromEnv()
}

func (a *app) pipeline() *setup.Pipeline {
	graphics := component.DXVK(a.configDir, graphicsVersion, a.releases, a.download)
	var fallback string
	if gameDir != "" {
		fallback, _ = filepath.Abs(gameDir)
	}

	return &setup.Pipeline{
		Store:   a.store,
		Checker: a.manifest,
		NewRuntime: func() (compat.Runtime, error) {
			p, err := proton.New(a.configDir)
			if err != nil {
				return nil, err
			}
			return p, nil
		},
		RuntimeInstaller:  component.Proton(a.configDir, runtimeVersion, a.releases, a.download),
		GraphicsInstaller: graphics,
		GraphicsDir:       graphics.Target,
		Game: &assets.Engine{
			Manifest:   a.manifest,
			Downloader: a.download,
			Workers:    concurrency,
		},
		Patcher:  patcher.New(),
		Reporter: progress.NewBar(logging.Writer()),
		GameDir:  fallback,
	}
}
