package patcher

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/caedis/babylonia-terminal/internal/config"
)

func setupGame(t *testing.T, resourcesName string) string {
	t.Helper()
	gameDir := t.TempDir()
	data := filepath.Join(config.GameRoot(gameDir), "PGR_Data")

	files := map[string]string{
		filepath.Join(data, "Plugins", "KRSDKExternal.exe"): "sdk binary",
		config.GameBinary(gameDir):                          "stock exe",
	}
	if resourcesName != "" {
		files[filepath.Join(data, "Resources", resourcesName)] = "resources"
	}
	for path, body := range files {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("MkdirAll failed: %v", err)
		}
		if err := os.WriteFile(path, []byte(body), 0644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
	}
	return gameDir
}

func assetsWithExe() fstest.MapFS {
	return fstest.MapFS{PatchedExecutable: &fstest.MapFile{Data: []byte("patched exe")}}
}

func TestPatch(t *testing.T) {
	t.Parallel()

	gameDir := setupGame(t, "unity%20default%20resources")
	p := &Patcher{Assets: assetsWithExe()}

	if err := p.Patch(gameDir); err != nil {
		t.Fatalf("Patch failed: %v", err)
	}

	resources := filepath.Join(config.GameRoot(gameDir), "PGR_Data", "Resources")
	if _, err := os.Stat(filepath.Join(resources, "unity default resources")); err != nil {
		t.Fatalf("renamed resources missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(resources, "unity%20default%20resources")); !os.IsNotExist(err) {
		t.Fatalf("encoded resources should be gone, stat err=%v", err)
	}

	info, err := os.Stat(filepath.Join(config.GameRoot(gameDir), "PGR_Data", "Plugins", "KRSDKExternal.exe"))
	if err != nil || info.Size() != 0 {
		t.Fatalf("KRSDKExternal.exe should be empty, info=%v err=%v", info, err)
	}

	exe, err := os.ReadFile(config.GameBinary(gameDir))
	if err != nil || string(exe) != "patched exe" {
		t.Fatalf("exe=%q err=%v want=%q", exe, err, "patched exe")
	}
}

func TestPatchIsRepeatable(t *testing.T) {
	t.Parallel()

	gameDir := setupGame(t, "unity%20default%20resources")
	p := &Patcher{Assets: assetsWithExe()}

	for i := 0; i < 2; i++ {
		if err := p.Patch(gameDir); err != nil {
			t.Fatalf("Patch #%d failed: %v", i+1, err)
		}
	}
}

func TestPatchMissingResources(t *testing.T) {
	t.Parallel()

	gameDir := setupGame(t, "")
	err := (&Patcher{Assets: assetsWithExe()}).Patch(gameDir)
	if !errors.Is(err, ErrResourcesMissing) {
		t.Fatalf("Patch err=%v want ErrResourcesMissing", err)
	}
}

func TestPatchWithoutEmbeddedExecutable(t *testing.T) {
	t.Parallel()

	gameDir := setupGame(t, "unity default resources")
	p := &Patcher{Assets: fstest.MapFS{}}

	if p.Embedded() {
		t.Fatalf("Embedded()=true for empty assets")
	}
	if err := p.Patch(gameDir); !errors.Is(err, ErrExecutableNotEmbedded) {
		t.Fatalf("Patch err=%v want ErrExecutableNotEmbedded", err)
	}
}

func TestNewUsesEmbeddedAssets(t *testing.T) {
	t.Parallel()

	p := New()
	if p.Assets == nil {
		t.Fatalf("New() returned nil assets")
	}
	if _, err := fs.Stat(p.Assets, "README.md"); err != nil {
		t.Fatalf("embedded README.md missing: %v", err)
	}
}
