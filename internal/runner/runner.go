// Package runner starts the game through a compatibility runtime.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/shlex"
	"go.uber.org/zap"

	"github.com/caedis/babylonia-terminal/internal/compat"
	"github.com/caedis/babylonia-terminal/internal/config"
	"github.com/caedis/babylonia-terminal/internal/logging"
)

// CommandToken marks where the runtime command goes in a launch template.
const CommandToken = "%command%"

// LogFile is the name of the game output log inside the config dir.
const LogFile = "game.log"

var ErrMissingCommandToken = errors.New("launch options must contain " + CommandToken)

// Options configures one game launch.
type Options struct {
	GameDir string
	// Template is a launch template such as "gamemoderun %command% -skip-intro".
	// Empty runs the runtime command as is.
	Template string
	// Env holds extra KEY=VALUE variables for the game process.
	Env []string
	// ShowLogs copies the game output to Stdout and Stderr while it runs.
	ShowLogs bool
	// LogPath receives the captured output. Empty disables the log file.
	LogPath string

	Stdout io.Writer
	Stderr io.Writer
}

// LogPath returns the game log location for configDir.
func LogPath(configDir string) string {
	return filepath.Join(configDir, LogFile)
}

// Splice places command at the CommandToken of template. Tokens before the
// placeholder wrap the runtime and tokens after it become game arguments.
func Splice(template string, command []string) ([]string, error) {
	tokens, err := shlex.Split(template)
	if err != nil {
		return nil, fmt.Errorf("parsing launch options: %w", err)
	}

	idx := -1
	for i, tok := range tokens {
		if tok == CommandToken {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrMissingCommandToken
	}

	argv := make([]string, 0, len(tokens)-1+len(command))
	argv = append(argv, tokens[:idx]...)
	argv = append(argv, command...)
	argv = append(argv, tokens[idx+1:]...)
	return argv, nil
}

// ParseEnv validates KEY=VALUE pairs.
func ParseEnv(pairs []string) ([]string, error) {
	out := make([]string, 0, len(pairs))
	for _, p := range pairs {
		key, _, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid environment variable %q, expected KEY=VALUE", p)
		}
		out = append(out, p)
	}
	return out, nil
}

// Command builds the game process without starting it.
func Command(ctx context.Context, rt compat.Runtime, opts Options) (*exec.Cmd, error) {
	base := rt.Command(ctx, config.GameBinary(opts.GameDir))
	if base == nil {
		return nil, errors.New("runtime returned no command")
	}

	cmd := base
	if strings.TrimSpace(opts.Template) != "" {
		argv, err := Splice(opts.Template, base.Args)
		if err != nil {
			return nil, err
		}
		cmd = exec.CommandContext(ctx, argv[0], argv[1:]...)
		cmd.Env = base.Env
	}
	if cmd.Env == nil {
		cmd.Env = rt.Env()
	}
	cmd.Env = append(cmd.Env, opts.Env...)
	cmd.Dir = config.GameRoot(opts.GameDir)
	return cmd, nil
}

// Start runs the game and waits for it to exit. Its output is written to
// LogPath, replacing the log of the previous run.
func Start(ctx context.Context, rt compat.Runtime, opts Options) error {
	cmd, err := Command(ctx, rt, opts)
	if err != nil {
		return err
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if opts.ShowLogs {
		// exec copies each stream on its own goroutine, and the live writers
		// are often the same terminal.
		var mu sync.Mutex
		cmd.Stdout = io.MultiWriter(&stdout, &lockedWriter{mu: &mu, w: orDefault(opts.Stdout, os.Stdout)})
		cmd.Stderr = io.MultiWriter(&stderr, &lockedWriter{mu: &mu, w: orDefault(opts.Stderr, os.Stderr)})
	}

	logging.L().Debug("starting game", zap.Strings("argv", cmd.Args), zap.String("dir", cmd.Dir))
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting game: %w", err)
	}
	runErr := cmd.Wait()

	if opts.LogPath != "" {
		if err := writeLog(opts.LogPath, stdout.Bytes(), stderr.Bytes()); err != nil {
			logging.Warnf("could not write game log: %v\n", err)
		}
	}
	if runErr != nil {
		return fmt.Errorf("game exited: %w", runErr)
	}
	return nil
}

type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func orDefault(w, def io.Writer) io.Writer {
	if w == nil {
		return def
	}
	return w
}

func writeLog(path string, stdout, stderr []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	var buf bytes.Buffer
	buf.WriteString("--- stdout ---\n")
	buf.Write(stdout)
	buf.WriteString("\n--- stderr ---\n")
	buf.Write(stderr)
	return os.WriteFile(path, buf.Bytes(), 0644)
}
