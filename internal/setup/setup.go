// Package setup drives the install pipeline one stage at a time until the
// game is installed and patched.
package setup

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/caedis/babylonia-terminal/internal/compat"
	"github.com/caedis/babylonia-terminal/internal/config"
	"github.com/caedis/babylonia-terminal/internal/logging"
	"github.com/caedis/babylonia-terminal/internal/progress"
	"github.com/caedis/babylonia-terminal/internal/state"
)

// Fonts are installed into the prefix in this order.
var Fonts = []string{
	"arial", "andale", "courier", "comicsans", "georgia",
	"impact", "times", "trebuchet", "verdana", "webdings",
}

// Dependencies are the winetricks verbs the game needs.
var Dependencies = []string{"vcrun2022"}

// maxSteps bounds the loop. Each stage runs at most once per Run, except that
// an update sends the game back through download and patch.
const maxSteps = 16

type Installer interface {
	Install(ctx context.Context, r progress.Reporter) error
}

type GameDownloader interface {
	Download(ctx context.Context, outputDir string, r progress.Reporter) (string, error)
}

type Patcher interface {
	Patch(gameDir string) error
}

// prefixInitializer is implemented by runtimes that create their prefix
// lazily.
type prefixInitializer interface {
	InitPrefix(ctx context.Context) error
}

// Pipeline holds everything the stages need.
type Pipeline struct {
	Store   *config.Store
	Checker state.UpdateChecker

	// NewRuntime builds the runtime once its files are installed.
	NewRuntime        func() (compat.Runtime, error)
	RuntimeInstaller  Installer
	GraphicsInstaller Installer
	// GraphicsDir is where GraphicsInstaller unpacks. It is removed once the
	// layer has been copied into the prefix.
	GraphicsDir string

	Game    GameDownloader
	Patcher Patcher

	Reporter progress.Reporter
	// GameDir is used and persisted when the config has no game dir yet.
	GameDir string

	rt compat.Runtime
}

// Runtime returns the runtime, building it and initializing its prefix on
// first use.
func (p *Pipeline) Runtime(ctx context.Context) (compat.Runtime, error) {
	if p.rt != nil {
		return p.rt, nil
	}
	if p.NewRuntime == nil {
		return nil, fmt.Errorf("no runtime configured")
	}
	rt, err := p.NewRuntime()
	if err != nil {
		return nil, err
	}
	if pi, ok := rt.(prefixInitializer); ok {
		if err := pi.InitPrefix(ctx); err != nil {
			return nil, err
		}
	}
	p.rt = rt
	return rt, nil
}

// Run executes pending stages until the game is installed. It stops at the
// first failing stage; completed stages stay recorded so a later Run resumes
// from there.
func (p *Pipeline) Run(ctx context.Context) (state.GameState, error) {
	machine := &state.Machine{Store: p.Store, Checker: p.Checker}

	for step := 0; step < maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		current, err := machine.Current(ctx)
		if err != nil {
			return 0, err
		}
		logging.L().Debug("pipeline state", zap.Int("step", step), zap.Stringer("state", current))
		if current == state.GameInstalled {
			return current, nil
		}

		if err := p.runStage(ctx, machine, current); err != nil {
			return current, err
		}
	}
	return 0, fmt.Errorf("install pipeline did not finish after %d steps", maxSteps)
}

func (p *Pipeline) runStage(ctx context.Context, machine *state.Machine, current state.GameState) error {
	switch current {
	case state.RuntimeNotInstalled:
		logging.Infoln("Installing compatibility runtime...")
		if err := p.RuntimeInstaller.Install(ctx, p.Reporter); err != nil {
			return fmt.Errorf("installing runtime: %w", err)
		}
		return p.mark(func(cfg *config.GameConfig) { cfg.RuntimeInstalled = true })

	case state.GraphicsLayerNotInstalled:
		return p.installGraphicsLayer(ctx)

	case state.FontNotInstalled:
		return p.installFonts(ctx)

	case state.DependencyNotInstalled:
		rt, err := p.Runtime(ctx)
		if err != nil {
			return err
		}
		logging.Infoln("Installing dependencies...")
		for _, dep := range Dependencies {
			if err := rt.InstallPackage(ctx, dep); err != nil {
				return err
			}
		}
		return p.mark(func(cfg *config.GameConfig) { cfg.DependenciesInstalled = true })

	case state.GameNotInstalled:
		gameDir, err := p.gameDir()
		if err != nil {
			return err
		}
		logging.Infof("Installing game into %s\n", config.GameRoot(gameDir))
		if _, err := p.Game.Download(ctx, config.GameRoot(gameDir), p.Reporter); err != nil {
			return fmt.Errorf("downloading game: %w", err)
		}
		return p.mark(func(cfg *config.GameConfig) { cfg.GameInstalled = true })

	case state.GameNeedsUpdate:
		logging.Infoln("A game update is available")
		return machine.UpdateGame()

	case state.GameNotPatched:
		gameDir, err := p.gameDir()
		if err != nil {
			return err
		}
		logging.Infoln("Patching game...")
		if err := p.Patcher.Patch(gameDir); err != nil {
			return fmt.Errorf("patching game: %w", err)
		}
		return p.mark(func(cfg *config.GameConfig) { cfg.GamePatched = true })
	}
	return fmt.Errorf("unexpected state %s", current)
}

func (p *Pipeline) installGraphicsLayer(ctx context.Context) error {
	rt, err := p.Runtime(ctx)
	if err != nil {
		return err
	}

	logging.Infoln("Installing graphics layer...")
	if err := p.GraphicsInstaller.Install(ctx, p.Reporter); err != nil {
		return fmt.Errorf("installing graphics layer: %w", err)
	}
	if gi, ok := rt.(compat.GraphicsLayerInstaller); ok {
		if err := gi.InstallGraphicsLayer(ctx, p.GraphicsDir); err != nil {
			return fmt.Errorf("installing graphics layer: %w", err)
		}
		if p.GraphicsDir != "" {
			if err := os.RemoveAll(p.GraphicsDir); err != nil {
				return fmt.Errorf("cleaning graphics layer files: %w", err)
			}
		}
	}
	return p.mark(func(cfg *config.GameConfig) { cfg.GraphicsLayerInstalled = true })
}

func (p *Pipeline) installFonts(ctx context.Context) error {
	rt, err := p.Runtime(ctx)
	if err != nil {
		return err
	}

	logging.Infof("0/%d font installed\n", len(Fonts))
	for i, font := range Fonts {
		if err := rt.InstallFont(ctx, font); err != nil {
			return err
		}
		logging.Infof("%d/%d font installed\n", i+1, len(Fonts))
	}
	return p.mark(func(cfg *config.GameConfig) { cfg.FontsInstalled = true })
}

// gameDir returns the configured game directory, persisting the fallback the
// first time it is used.
func (p *Pipeline) gameDir() (string, error) {
	cfg, err := p.Store.Load()
	if err != nil {
		return "", err
	}
	if dir := cfg.GameDirOr(""); dir != "" {
		return dir, nil
	}
	if p.GameDir == "" {
		return "", fmt.Errorf("no game directory configured, pass --game-dir or run set-game-path")
	}
	if err := p.Store.SetGameDir(p.GameDir); err != nil {
		return "", err
	}
	return p.GameDir, nil
}

func (p *Pipeline) mark(fn func(cfg *config.GameConfig)) error {
	return p.Store.Update(fn)
}
