package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caedis/babylonia-terminal/internal/logging"
)

const (
	// ConfigFile is the name of the pipeline state file inside the config directory.
	ConfigFile = "babylonia-terminal-config"

	// DirEnv overrides the default config directory.
	DirEnv = "BT_CONFIG_DIR"

	defaultDirName = ".babylonia-terminal"
)

const (
	// GameName is the directory the game is installed into under the game dir.
	GameName = "PGR"
	// GameExecutable is the game binary inside GameName.
	GameExecutable = GameName + ".exe"
)

// GameRoot returns the directory holding the game files for gameDir.
func GameRoot(gameDir string) string {
	return filepath.Join(gameDir, GameName)
}

// GameBinary returns the path of the game executable for gameDir.
func GameBinary(gameDir string) string {
	return filepath.Join(gameDir, GameName, GameExecutable)
}

// GameConfig is the persisted pipeline state. Each *Installed flag is set by
// the stage that completes it and only UpdateGame clears any of them.
type GameConfig struct {
	ConfigDir              string  `json:"config_dir"`
	RuntimeInstalled       bool    `json:"runtime_installed"`
	GraphicsLayerInstalled bool    `json:"graphics_layer_installed"`
	FontsInstalled         bool    `json:"fonts_installed"`
	DependenciesInstalled  bool    `json:"dependencies_installed"`
	GameDir                *string `json:"game_dir"`
	GameInstalled          bool    `json:"game_installed"`
	GamePatched            bool    `json:"game_patched"`
	LaunchOptions          *string `json:"launch_options"`
}

// Default returns a config with every stage pending.
func Default(configDir string) *GameConfig {
	return &GameConfig{ConfigDir: configDir}
}

// DefaultDir returns the config directory: $BT_CONFIG_DIR when set, else
// ~/.babylonia-terminal.
func DefaultDir() (string, error) {
	if dir := strings.TrimSpace(os.Getenv(DirEnv)); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, defaultDirName), nil
}

// Store reads and writes the GameConfig of one config directory. Writes are
// read-modify-write with no locking; callers run one stage at a time.
type Store struct {
	Dir string
}

// NewStore returns a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{Dir: dir}
}

// Path returns the config file location.
func (s *Store) Path() string {
	return filepath.Join(s.Dir, ConfigFile)
}

// Load reads the config. A missing file yields defaults. An unparsable file is
// moved aside to <file>.bak and defaults are returned.
func (s *Store) Load() (*GameConfig, error) {
	path := s.Path()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(s.Dir), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg GameConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		backup := path + ".bak"
		if renameErr := os.Rename(path, backup); renameErr != nil {
			logging.Warnf("config %s is unreadable (%v) and could not be backed up: %v\n", path, err, renameErr)
		} else {
			logging.Warnf("config %s is unreadable (%v), previous content saved to %s\n", path, err, backup)
		}
		return Default(s.Dir), nil
	}
	if cfg.ConfigDir == "" {
		cfg.ConfigDir = s.Dir
	}

	return &cfg, nil
}

// Save writes the config, creating the config directory when needed.
func (s *Store) Save(cfg *GameConfig) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	path := s.Path()
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// Update loads the config, applies fn and saves the result.
func (s *Store) Update(fn func(cfg *GameConfig)) error {
	cfg, err := s.Load()
	if err != nil {
		return err
	}
	fn(cfg)
	return s.Save(cfg)
}

// SetGameDir persists the game directory. An empty dir clears it.
func (s *Store) SetGameDir(dir string) error {
	return s.Update(func(cfg *GameConfig) {
		if dir == "" {
			cfg.GameDir = nil
			return
		}
		cfg.GameDir = &dir
	})
}

// SetLaunchOptions persists the launch template. An empty template clears it.
func (s *Store) SetLaunchOptions(template string) error {
	return s.Update(func(cfg *GameConfig) {
		if strings.TrimSpace(template) == "" {
			cfg.LaunchOptions = nil
			return
		}
		cfg.LaunchOptions = &template
	})
}

// UpdateGame clears the game flags so the pipeline reinstalls and repatches
// against the new manifest.
func (s *Store) UpdateGame() error {
	return s.Update(func(cfg *GameConfig) {
		cfg.GameInstalled = false
		cfg.GamePatched = false
	})
}

// GameDirOr returns the persisted game directory, or fallback when unset.
func (c *GameConfig) GameDirOr(fallback string) string {
	if c.GameDir == nil || *c.GameDir == "" {
		return fallback
	}
	return *c.GameDir
}

// LaunchTemplate returns the persisted launch template or "".
func (c *GameConfig) LaunchTemplate() string {
	if c.LaunchOptions == nil {
		return ""
	}
	return *c.LaunchOptions
}
