// Package patcher applies the fixes the game needs to start under Proton.
package patcher

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/caedis/babylonia-terminal/internal/config"
	"github.com/caedis/babylonia-terminal/internal/logging"
)

// PatchedExecutable is the name of the replacement executable in the
// embedded assets.
const PatchedExecutable = "patched.exe"

var (
	ErrExecutableNotEmbedded = errors.New("patched executable not embedded in this build")
	ErrResourcesMissing      = errors.New("unity default resources missing, run the game install again to repair it")
)

//go:embed assets
var embedded embed.FS

// Patcher patches an installed game. Assets holds PatchedExecutable at its
// root.
type Patcher struct {
	Assets fs.FS
}

// New returns a patcher using the assets embedded in the binary.
func New() *Patcher {
	sub, err := fs.Sub(embedded, "assets")
	if err != nil {
		panic(err)
	}
	return &Patcher{Assets: sub}
}

// Embedded reports whether the patched executable is available.
func (p *Patcher) Embedded() bool {
	_, err := fs.Stat(p.Assets, PatchedExecutable)
	return err == nil
}

// Patch fixes the game installed under gameDir.
func (p *Patcher) Patch(gameDir string) error {
	root := config.GameRoot(gameDir)
	data := filepath.Join(root, config.GameName+"_Data")

	if err := fixUnityResources(filepath.Join(data, "Resources")); err != nil {
		return err
	}

	sdk := filepath.Join(data, "Plugins", "KRSDKExternal.exe")
	logging.Debugf("Verbose: emptying %s\n", sdk)
	if err := os.MkdirAll(filepath.Dir(sdk), 0755); err != nil {
		return fmt.Errorf("creating plugins dir: %w", err)
	}
	if err := os.WriteFile(sdk, nil, 0644); err != nil {
		return fmt.Errorf("replacing KRSDKExternal.exe: %w", err)
	}

	exe, err := fs.ReadFile(p.Assets, PatchedExecutable)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrExecutableNotEmbedded
		}
		return fmt.Errorf("reading patched executable: %w", err)
	}

	target := config.GameBinary(gameDir)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, exe, 0755); err != nil {
		return fmt.Errorf("writing %s: %w", config.GameExecutable, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing %s: %w", config.GameExecutable, err)
	}
	logging.Debugf("Verbose: replaced %s (%d bytes)\n", target, len(exe))

	return nil
}

// fixUnityResources renames the URL-encoded resources file the CDN ships.
func fixUnityResources(dir string) error {
	encoded := filepath.Join(dir, "unity%20default%20resources")
	fixed := filepath.Join(dir, "unity default resources")

	if _, err := os.Stat(encoded); err == nil {
		if err := os.Rename(encoded, fixed); err != nil {
			return fmt.Errorf("renaming unity default resources: %w", err)
		}
		return nil
	}
	if _, err := os.Stat(fixed); err != nil {
		return fmt.Errorf("%s: %w", encoded, ErrResourcesMissing)
	}
	return nil
}
