// Package proton runs Windows programs through a Proton GE install and
// manages the Wine prefix it creates.
package proton

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/caedis/babylonia-terminal/internal/logging"
)

// ErrSteamNotFound is returned when no Steam client install can be found.
// Proton refuses to start without one.
var ErrSteamNotFound = errors.New("can't find your steam installation, please install steam in '~/.steam/steam' or set " + SteamDirEnv)

// SteamDirEnv overrides the Steam client location.
const SteamDirEnv = "BT_STEAM_DIR"

const (
	// Dir is the Proton install directory inside the config dir.
	Dir = "proton"
	// DataDir is the compat data directory inside the config dir.
	DataDir = "data"
)

// Exec runs a prepared command.
type Exec func(cmd *exec.Cmd) error

// Proton is a compat.Runtime backed by a Proton GE install.
type Proton struct {
	// Path is the Proton install directory holding the proton script.
	Path string
	// DataPath is STEAM_COMPAT_DATA_PATH. The Wine prefix lives in its pfx dir.
	DataPath string
	// SteamPath is STEAM_COMPAT_CLIENT_INSTALL_PATH.
	SteamPath string

	Python     string
	Winetricks string

	// Exec runs helper commands such as wineboot and winetricks.
	Exec Exec
}

// New returns the runtime for the Proton install under configDir. The Steam
// client is looked up in $BT_STEAM_DIR, then ~/.steam/steam.
func New(configDir string) (*Proton, error) {
	steam, err := findSteam()
	if err != nil {
		return nil, err
	}
	return &Proton{
		Path:       filepath.Join(configDir, Dir),
		DataPath:   filepath.Join(configDir, DataDir),
		SteamPath:  steam,
		Python:     "python3",
		Winetricks: "winetricks",
		Exec:       runLogged,
	}, nil
}

func findSteam() (string, error) {
	if dir := os.Getenv(SteamDirEnv); dir != "" {
		if _, err := os.Stat(dir); err == nil {
			return dir, nil
		}
		return "", ErrSteamNotFound
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home dir: %w", err)
	}
	dir := filepath.Join(home, ".steam", "steam")
	if _, err := os.Stat(dir); err != nil {
		logging.Debugf("Verbose: steam not found at %s\n", dir)
		return "", ErrSteamNotFound
	}
	return dir, nil
}

// Prefix returns the Wine prefix Proton manages.
func (p *Proton) Prefix() string {
	return filepath.Join(p.DataPath, "pfx")
}

func (p *Proton) wineBin(name string) string {
	return filepath.Join(p.Path, "files", "bin", name)
}

// Env returns the process environment extended with the variables Proton and
// winetricks need.
func (p *Proton) Env() []string {
	return append(os.Environ(),
		"STEAM_COMPAT_DATA_PATH="+p.DataPath,
		"STEAM_COMPAT_CLIENT_INSTALL_PATH="+p.SteamPath,
		"WINEPREFIX="+p.Prefix(),
		"WINE="+p.wineBin("wine"),
		"WINESERVER="+p.wineBin("wineserver"),
	)
}

// Command returns `python3 <proton>/proton run binary args...`.
func (p *Proton) Command(ctx context.Context, binary string, args ...string) *exec.Cmd {
	argv := append([]string{filepath.Join(p.Path, "proton"), "run", binary}, args...)
	cmd := exec.CommandContext(ctx, p.python(), argv...)
	cmd.Env = p.Env()
	return cmd
}

func (p *Proton) python() string {
	if p.Python == "" {
		return "python3"
	}
	return p.Python
}

func (p *Proton) exec(cmd *exec.Cmd) error {
	logging.L().Debug("exec", zap.Strings("argv", cmd.Args))
	if p.Exec == nil {
		return runLogged(cmd)
	}
	return p.Exec(cmd)
}

// InitPrefix creates the Wine prefix if it does not exist yet.
func (p *Proton) InitPrefix(ctx context.Context) error {
	if _, err := os.Stat(p.Prefix()); err == nil {
		return nil
	}
	if err := os.MkdirAll(p.DataPath, 0755); err != nil {
		return fmt.Errorf("creating compat data dir: %w", err)
	}

	logging.Infoln("Initializing wine prefix...")
	if err := p.exec(p.Command(ctx, "wineboot", "-u")); err != nil {
		return fmt.Errorf("initializing prefix: %w", err)
	}
	return nil
}

func (p *Proton) winetricks(ctx context.Context, verb string) error {
	bin := p.Winetricks
	if bin == "" {
		bin = "winetricks"
	}
	cmd := exec.CommandContext(ctx, bin, "-q", verb)
	cmd.Env = p.Env()
	return p.exec(cmd)
}

// InstallFont installs a core font such as "arial" with winetricks.
func (p *Proton) InstallFont(ctx context.Context, font string) error {
	if err := p.winetricks(ctx, font); err != nil {
		return fmt.Errorf("installing font %s: %w", font, err)
	}
	return nil
}

// InstallPackage installs a winetricks verb such as "vcrun2022".
func (p *Proton) InstallPackage(ctx context.Context, name string) error {
	if err := p.winetricks(ctx, name); err != nil {
		return fmt.Errorf("installing %s: %w", name, err)
	}
	return nil
}

// InstallGraphicsLayer copies the DLLs of an extracted DXVK release into the
// prefix and marks them as native overrides.
func (p *Proton) InstallGraphicsLayer(ctx context.Context, dir string) error {
	windows := filepath.Join(p.Prefix(), "drive_c", "windows")
	targets := map[string]string{
		"x64": filepath.Join(windows, "system32"),
		"x32": filepath.Join(windows, "syswow64"),
	}

	overrides := map[string]struct{}{}
	for arch, dest := range targets {
		dlls, err := filepath.Glob(filepath.Join(dir, arch, "*.dll"))
		if err != nil {
			return err
		}
		if len(dlls) == 0 {
			continue
		}
		if err := os.MkdirAll(dest, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dest, err)
		}
		for _, dll := range dlls {
			if err := copyFile(dll, filepath.Join(dest, filepath.Base(dll))); err != nil {
				return fmt.Errorf("copying %s: %w", filepath.Base(dll), err)
			}
			overrides[strings.TrimSuffix(filepath.Base(dll), ".dll")] = struct{}{}
		}
	}
	if len(overrides) == 0 {
		return fmt.Errorf("no dlls found in %s", dir)
	}

	names := make([]string, 0, len(overrides))
	for name := range overrides {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		cmd := exec.CommandContext(ctx, p.wineBin("wine"), "reg", "add",
			`HKEY_CURRENT_USER\Software\Wine\DllOverrides`, "/v", name, "/d", "native", "/f")
		cmd.Env = p.Env()
		if err := p.exec(cmd); err != nil {
			return fmt.Errorf("registering override for %s: %w", name, err)
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// runLogged runs cmd, echoing its output in verbose mode and attaching the
// tail of it to any error.
func runLogged(cmd *exec.Cmd) error {
	var buf bytes.Buffer
	var w io.Writer = &buf
	if logging.Verbose() {
		w = io.MultiWriter(&buf, logging.Writer())
	}
	cmd.Stdout = w
	cmd.Stderr = w

	if err := cmd.Run(); err != nil {
		out := strings.TrimSpace(buf.String())
		if len(out) > 2000 {
			out = "..." + out[len(out)-2000:]
		}
		if out == "" {
			return fmt.Errorf("%s: %w", filepath.Base(cmd.Path), err)
		}
		return fmt.Errorf("%s: %w\n%s", filepath.Base(cmd.Path), err, out)
	}
	return nil
}
