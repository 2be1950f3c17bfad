package runner

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/caedis/babylonia-terminal/internal/compat/mock"
	"github.com/caedis/babylonia-terminal/internal/config"
)

func TestSplice(t *testing.T) {
	t.Parallel()

	command := []string{"python3", "/cfg/proton/proton", "run", "/g/game.exe"}
	tests := []struct {
		name     string
		template string
		want     []string
		wantErr  error
	}{
		{
			name:     "wrapper and game args",
			template: "gamemoderun %command% -skip-intro",
			want:     []string{"gamemoderun", "python3", "/cfg/proton/proton", "run", "/g/game.exe", "-skip-intro"},
		},
		{
			name:     "placeholder only",
			template: "%command%",
			want:     command,
		},
		{
			name:     "quoted tokens",
			template: `env "DXVK_HUD=fps,memory" %command% --lang 'en us'`,
			want:     []string{"env", "DXVK_HUD=fps,memory", "python3", "/cfg/proton/proton", "run", "/g/game.exe", "--lang", "en us"},
		},
		{
			name:     "missing placeholder",
			template: "gamemoderun -skip-intro",
			wantErr:  ErrMissingCommandToken,
		},
		{
			name:     "placeholder inside a token",
			template: "run=%command%",
			wantErr:  ErrMissingCommandToken,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Splice(tt.template, command)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Splice(%q) err=%v want=%v", tt.template, err, tt.wantErr)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseEnv(t *testing.T) {
	t.Parallel()

	got, err := ParseEnv([]string{"DXVK_HUD=1", "EMPTY="})
	require.NoError(t, err)
	assert.Equal(t, []string{"DXVK_HUD=1", "EMPTY="}, got)

	_, err = ParseEnv([]string{"NOVALUE"})
	assert.ErrorContains(t, err, "KEY=VALUE")

	_, err = ParseEnv([]string{"=x"})
	assert.Error(t, err)
}

func gameDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(config.GameRoot(dir), 0755))
	return dir
}

func TestStartWritesLog(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	rt := mock.NewMockRuntime(ctrl)
	dir := gameDir(t)
	logPath := filepath.Join(t.TempDir(), LogFile)

	rt.EXPECT().
		Command(gomock.Any(), config.GameBinary(dir)).
		Return(exec.Command("sh", "-c", `echo "hello $GAME_VAR"; echo oops >&2`))
	rt.EXPECT().Env().Return(os.Environ())

	var live bytes.Buffer
	err := Start(context.Background(), rt, Options{
		GameDir:  dir,
		Env:      []string{"GAME_VAR=world"},
		ShowLogs: true,
		LogPath:  logPath,
		Stdout:   &live,
		Stderr:   &live,
	})
	require.NoError(t, err)

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Equal(t, "--- stdout ---\nhello world\n\n--- stderr ---\noops\n", string(data))
	assert.Contains(t, live.String(), "hello world")
}

func TestStartTruncatesPreviousLog(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	rt := mock.NewMockRuntime(ctrl)
	dir := gameDir(t)
	logPath := filepath.Join(t.TempDir(), LogFile)
	require.NoError(t, os.WriteFile(logPath, []byte(strings.Repeat("old run\n", 100)), 0644))

	rt.EXPECT().Command(gomock.Any(), gomock.Any()).Return(exec.Command("true"))
	rt.EXPECT().Env().Return(nil)

	require.NoError(t, Start(context.Background(), rt, Options{GameDir: dir, LogPath: logPath}))

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "old run")
}

func TestStartSharedLiveWriter(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	rt := mock.NewMockRuntime(ctrl)
	dir := gameDir(t)

	rt.EXPECT().
		Command(gomock.Any(), gomock.Any()).
		Return(exec.Command("sh", "-c", `for i in $(seq 200); do echo out$i; echo err$i >&2; done`))
	rt.EXPECT().Env().Return(os.Environ())

	var live bytes.Buffer
	err := Start(context.Background(), rt, Options{
		GameDir:  dir,
		ShowLogs: true,
		Stdout:   &live,
		Stderr:   &live,
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(live.String()), "\n")
	if len(lines) != 400 {
		t.Fatalf("live lines=%d want=%d", len(lines), 400)
	}
	assert.Contains(t, lines, "out200")
	assert.Contains(t, lines, "err200")
}

func TestStartWithTemplate(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	rt := mock.NewMockRuntime(ctrl)
	dir := gameDir(t)
	logPath := filepath.Join(t.TempDir(), LogFile)

	// Trailing template tokens become arguments of the runtime command; sh
	// exposes the first one as $0.
	rt.EXPECT().
		Command(gomock.Any(), config.GameBinary(dir)).
		Return(exec.Command("sh", "-c", `echo "$WRAPPED:$0"`))
	rt.EXPECT().Env().Return(os.Environ())

	err := Start(context.Background(), rt, Options{
		GameDir:  dir,
		Template: "env WRAPPED=yes %command% -skip-intro",
		LogPath:  logPath,
	})
	require.NoError(t, err)

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "yes:-skip-intro")
}

func TestStartRejectsTemplateWithoutPlaceholder(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	rt := mock.NewMockRuntime(ctrl)
	rt.EXPECT().Command(gomock.Any(), gomock.Any()).Return(exec.Command("true"))

	err := Start(context.Background(), rt, Options{GameDir: gameDir(t), Template: "gamemoderun"})
	assert.ErrorIs(t, err, ErrMissingCommandToken)
}

func TestStartReportsExitFailure(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	rt := mock.NewMockRuntime(ctrl)
	logPath := filepath.Join(t.TempDir(), LogFile)

	rt.EXPECT().Command(gomock.Any(), gomock.Any()).Return(exec.Command("sh", "-c", "echo crashed >&2; exit 3"))
	rt.EXPECT().Env().Return(nil)

	err := Start(context.Background(), rt, Options{GameDir: gameDir(t), LogPath: logPath})
	assert.ErrorContains(t, err, "game exited")

	data, readErr := os.ReadFile(logPath)
	require.NoError(t, readErr)
	assert.Contains(t, string(data), "crashed")
}
