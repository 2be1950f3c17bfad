package profile

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Profile holds saveable CLI options. All fields are pointers so we can
// distinguish "not set" from zero values.
type Profile struct {
	ConfigDir       *string  `toml:"config-dir,omitempty"`
	GameDir         *string  `toml:"game-dir,omitempty"`
	LaunchOptions   *string  `toml:"options,omitempty"`
	Env             []string `toml:"env,omitempty"`
	ShowLogs        *bool    `toml:"logs,omitempty"`
	Concurrency     *int     `toml:"concurrency,omitempty"`
	RuntimeVersion  *string  `toml:"runtime-version,omitempty"`
	GraphicsVersion *string  `toml:"graphics-version,omitempty"`
	Verbose         *bool    `toml:"verbose,omitempty"`
	LogFile         *string  `toml:"log-file,omitempty"`
}

// Dir returns the profiles directory, using XDG_CONFIG_HOME with a fallback
// to ~/.config.
func Dir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, _ := os.UserHomeDir()
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "babylonia-terminal", "profiles")
}

func path(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid profile name %q", name)
	}
	return filepath.Join(Dir(), name+".toml"), nil
}

// Load reads a named profile from the profiles directory.
func Load(name string) (*Profile, error) {
	p, err := path(name)
	if err != nil {
		return nil, err
	}
	var prof Profile
	if _, err := toml.DecodeFile(p, &prof); err != nil {
		return nil, fmt.Errorf("loading profile %q: %w", name, err)
	}
	return &prof, nil
}

// Save writes a profile to the profiles directory, creating it if needed.
func Save(name string, prof *Profile) error {
	p, err := path(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("creating profiles directory: %w", err)
	}
	f, err := os.Create(p)
	if err != nil {
		return fmt.Errorf("creating profile file: %w", err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(prof); err != nil {
		return fmt.Errorf("encoding profile: %w", err)
	}
	return nil
}

// List returns the names of all saved profiles.
func List() ([]string, error) {
	dir := Dir()

	var names []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if path == dir {
			return nil
		}
		if d.IsDir() {
			return filepath.SkipDir
		}
		if strings.HasSuffix(d.Name(), ".toml") {
			names = append(names, strings.TrimSuffix(d.Name(), ".toml"))
		}
		return nil
	})
	if err != nil && os.IsNotExist(err) {
		return nil, nil
	}
	return names, err
}

// Delete removes a named profile.
func Delete(name string) error {
	p, err := path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		return fmt.Errorf("deleting profile %q: %w", name, err)
	}
	return nil
}
