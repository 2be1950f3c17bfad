// Package state derives where the install pipeline stands from the persisted
// config.
package state

import (
	"context"
	"fmt"

	"github.com/caedis/babylonia-terminal/internal/config"
)

type GameState int

const (
	RuntimeNotInstalled GameState = iota + 1
	GraphicsLayerNotInstalled
	FontNotInstalled
	DependencyNotInstalled
	GameNotInstalled
	GameNeedsUpdate
	GameNotPatched
	GameInstalled
)

var names = map[GameState]string{
	RuntimeNotInstalled:       "runtime not installed",
	GraphicsLayerNotInstalled: "graphics layer not installed",
	FontNotInstalled:          "fonts not installed",
	DependencyNotInstalled:    "dependencies not installed",
	GameNotInstalled:          "game not installed",
	GameNeedsUpdate:           "game needs update",
	GameNotPatched:            "game not patched",
	GameInstalled:             "game installed",
}

func (s GameState) String() string {
	if n, ok := names[s]; ok {
		return n
	}
	return fmt.Sprintf("GameState(%d)", int(s))
}

// UpdateChecker reports whether a newer game version is available.
type UpdateChecker interface {
	NeedUpdate(ctx context.Context) (bool, error)
}

// Evaluate returns the first pipeline stage cfg has not completed. checker is
// only consulted once the game is installed.
func Evaluate(ctx context.Context, cfg *config.GameConfig, checker UpdateChecker) (GameState, error) {
	switch {
	case !cfg.RuntimeInstalled:
		return RuntimeNotInstalled, nil
	case !cfg.GraphicsLayerInstalled:
		return GraphicsLayerNotInstalled, nil
	case !cfg.FontsInstalled:
		return FontNotInstalled, nil
	case !cfg.DependenciesInstalled:
		return DependencyNotInstalled, nil
	case !cfg.GameInstalled:
		return GameNotInstalled, nil
	}

	if checker != nil {
		need, err := checker.NeedUpdate(ctx)
		if err != nil {
			return 0, fmt.Errorf("checking for game update: %w", err)
		}
		if need {
			return GameNeedsUpdate, nil
		}
	}

	if !cfg.GamePatched {
		return GameNotPatched, nil
	}
	return GameInstalled, nil
}

// Machine evaluates the state of one config directory.
type Machine struct {
	Store   *config.Store
	Checker UpdateChecker
}

// Current loads the config and evaluates it.
func (m *Machine) Current(ctx context.Context) (GameState, error) {
	cfg, err := m.Store.Load()
	if err != nil {
		return 0, err
	}
	return Evaluate(ctx, cfg, m.Checker)
}

// UpdateGame moves an installed game back to GameNotInstalled.
func (m *Machine) UpdateGame() error {
	return m.Store.UpdateGame()
}
