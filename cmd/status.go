package cmd

import (
	"context"

	"github.com/caedis/babylonia-terminal/internal/config"
	"github.com/caedis/babylonia-terminal/internal/logging"
	"github.com/caedis/babylonia-terminal/internal/manifest"
	"github.com/caedis/babylonia-terminal/internal/state"
	"github.com/spf13/cobra"
)

var statusOffline bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show install progress and whether a game update is available",
	Args:  usageArgs(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		dir, err := resolveConfigDir()
		if err != nil {
			return err
		}
		store := config.NewStore(dir)
		cfg, err := store.Load()
		if err != nil {
			return err
		}

		logging.Infof("Config:  %s\n", store.Path())
		logging.Infof("Game:    %s\n", orNone(cfg.GameDirOr("")))
		logging.Infof("Options: %s\n", orNone(cfg.LaunchTemplate()))
		logging.Infoln()
		logging.Infof("  runtime        %s\n", done(cfg.RuntimeInstalled))
		logging.Infof("  graphics layer %s\n", done(cfg.GraphicsLayerInstalled))
		logging.Infof("  fonts          %s\n", done(cfg.FontsInstalled))
		logging.Infof("  dependencies   %s\n", done(cfg.DependenciesInstalled))
		logging.Infof("  game           %s\n", done(cfg.GameInstalled))
		logging.Infof("  patch          %s\n", done(cfg.GamePatched))
		logging.Infoln()

		var checker state.UpdateChecker
		if !statusOffline {
			checker = &versionCheck{manifest: manifest.New(dir)}
		}
		st, err := state.Evaluate(ctx, cfg, checker)
		if err != nil {
			return err
		}
		logging.Infof("State: %s\n", st)

		if vc, ok := checker.(*versionCheck); ok && vc.latest != "" {
			if vc.cached != "" && vc.cached != vc.latest {
				logging.Infof("Game update available: %s -> %s\n", vc.cached, vc.latest)
			} else {
				logging.Infof("Game version: %s\n", vc.latest)
			}
		}
		return nil
	},
}

// versionCheck compares the cached game version with the live one without
// writing the cache, so status never consumes a pending update.
type versionCheck struct {
	manifest *manifest.Client
	cached   string
	latest   string
}

func (v *versionCheck) NeedUpdate(ctx context.Context) (bool, error) {
	cached, err := v.manifest.Cached()
	if err != nil {
		logging.Debugf("Verbose: %v\n", err)
	}
	latest, err := v.manifest.Latest(ctx)
	if err != nil {
		return false, err
	}

	v.latest = latest.Version
	if cached == nil {
		return false, nil
	}
	v.cached = cached.Version
	return v.cached != v.latest, nil
}

func done(ok bool) string {
	if ok {
		return "done"
	}
	return "pending"
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func init() {
	statusCmd.Flags().BoolVar(&statusOffline, "offline", false, "Skip the game version check")
	rootCmd.AddCommand(statusCmd)
}
