// Package component installs compatibility runtime and graphics layer
// releases published on GitHub.
package component

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/caedis/babylonia-terminal/internal/archive"
	"github.com/caedis/babylonia-terminal/internal/downloader"
	"github.com/caedis/babylonia-terminal/internal/github"
	"github.com/caedis/babylonia-terminal/internal/logging"
	"github.com/caedis/babylonia-terminal/internal/progress"
)

// Resolver selects a release and its archive asset.
type Resolver interface {
	Resolve(ctx context.Context, owner, repo, version string, exclude ...string) (*github.Release, *github.ReleaseAsset, error)
}

// Installer downloads one release archive and unpacks it to Target.
type Installer struct {
	Name  string
	Owner string
	Repo  string
	// Version is a release index ("0" is the latest) or a tag name.
	Version string
	// Exclude skips assets whose name contains any of these substrings.
	Exclude []string
	Target  string

	Releases   Resolver
	Downloader *downloader.Client
}

// Proton returns the installer for Proton GE into <configDir>/proton.
func Proton(configDir, version string, releases Resolver, dl *downloader.Client) *Installer {
	return &Installer{
		Name:       "proton",
		Owner:      "GloriousEggroll",
		Repo:       "proton-ge-custom",
		Version:    version,
		Target:     filepath.Join(configDir, "proton"),
		Releases:   releases,
		Downloader: dl,
	}
}

// DXVK returns the installer for DXVK into <configDir>/dxvk.
func DXVK(configDir, version string, releases Resolver, dl *downloader.Client) *Installer {
	return &Installer{
		Name:       "dxvk",
		Owner:      "doitsujin",
		Repo:       "dxvk",
		Version:    version,
		Exclude:    []string{"native"},
		Target:     filepath.Join(configDir, "dxvk"),
		Releases:   releases,
		Downloader: dl,
	}
}

// Install fetches the selected release and leaves its contents at Target,
// replacing anything already there. A failed unpack is not rolled back.
func (i *Installer) Install(ctx context.Context, r progress.Reporter) error {
	rel, asset, err := i.Releases.Resolve(ctx, i.Owner, i.Repo, i.Version, i.Exclude...)
	if err != nil {
		return err
	}
	logging.Infof("Installing %s %s\n", i.Name, rel.TagName)

	parent := filepath.Dir(i.Target)
	if err := os.MkdirAll(parent, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", parent, err)
	}

	archivePath := filepath.Join(parent, filepath.Base(asset.Name))
	client := i.Downloader
	if client == nil {
		client = downloader.New()
	}
	dl := downloader.Download{URL: asset.BrowserDownloadURL, Path: archivePath, Size: asset.Size}
	if err := client.DownloadToFile(ctx, dl, fmt.Sprintf("Downloading %s %s", i.Name, rel.TagName), r); err != nil {
		return err
	}

	roots, err := archive.Extract(archivePath, parent)
	if err != nil {
		return fmt.Errorf("unpacking %s: %w", asset.Name, err)
	}
	root, err := pickRoot(roots, github.ArchiveBase(asset.Name))
	if err != nil {
		return fmt.Errorf("unpacking %s: %w", asset.Name, err)
	}

	extracted := filepath.Join(parent, root)
	if extracted != filepath.Clean(i.Target) {
		if err := os.RemoveAll(i.Target); err != nil {
			return fmt.Errorf("removing previous %s: %w", i.Name, err)
		}
		if err := os.Rename(extracted, i.Target); err != nil {
			return fmt.Errorf("moving %s into place: %w", i.Name, err)
		}
	}

	if err := os.Remove(archivePath); err != nil {
		return fmt.Errorf("removing %s: %w", asset.Name, err)
	}
	logging.Debugf("Verbose: %s %s installed at %s\n", i.Name, rel.TagName, i.Target)
	return nil
}

func pickRoot(roots []string, want string) (string, error) {
	if slices.Contains(roots, want) {
		return want, nil
	}
	if len(roots) == 1 {
		return roots[0], nil
	}
	return "", fmt.Errorf("expected a single top-level directory, found %v", roots)
}
