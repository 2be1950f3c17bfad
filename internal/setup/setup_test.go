package setup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/caedis/babylonia-terminal/internal/compat"
	"github.com/caedis/babylonia-terminal/internal/compat/mock"
	"github.com/caedis/babylonia-terminal/internal/config"
	"github.com/caedis/babylonia-terminal/internal/progress"
	"github.com/caedis/babylonia-terminal/internal/state"
)

type countingInstaller struct {
	calls int
	err   error
	// dir is created on install, like an unpacked release.
	dir string
}

func (i *countingInstaller) Install(context.Context, progress.Reporter) error {
	i.calls++
	if i.err != nil {
		return i.err
	}
	if i.dir != "" {
		return os.MkdirAll(i.dir, 0755)
	}
	return nil
}

type fakeGame struct {
	dirs []string
}

func (g *fakeGame) Download(_ context.Context, outputDir string, _ progress.Reporter) (string, error) {
	g.dirs = append(g.dirs, outputDir)
	return outputDir, nil
}

type fakePatcher struct {
	dirs []string
}

func (p *fakePatcher) Patch(gameDir string) error {
	p.dirs = append(p.dirs, gameDir)
	return nil
}

// countingChecker reports an update for the first updates calls.
type countingChecker struct {
	calls   int
	updates int
}

func (c *countingChecker) NeedUpdate(context.Context) (bool, error) {
	c.calls++
	return c.calls <= c.updates, nil
}

type protonLike struct {
	*mock.MockRuntime
	*mock.MockGraphicsLayerInstaller
}

type harness struct {
	pipeline *Pipeline
	store    *config.Store
	runtime  *mock.MockRuntime
	graphics *mock.MockGraphicsLayerInstaller
	rtInst   *countingInstaller
	gfxInst  *countingInstaller
	game     *fakeGame
	patcher  *fakePatcher
	checker  *countingChecker
	gameDir  string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctrl := gomock.NewController(t)
	configDir := t.TempDir()

	h := &harness{
		store:    config.NewStore(configDir),
		runtime:  mock.NewMockRuntime(ctrl),
		graphics: mock.NewMockGraphicsLayerInstaller(ctrl),
		rtInst:   &countingInstaller{},
		gfxInst:  &countingInstaller{dir: filepath.Join(configDir, "dxvk")},
		game:     &fakeGame{},
		patcher:  &fakePatcher{},
		checker:  &countingChecker{},
		gameDir:  filepath.Join(t.TempDir(), "games"),
	}
	rt := protonLike{MockRuntime: h.runtime, MockGraphicsLayerInstaller: h.graphics}
	h.pipeline = &Pipeline{
		Store:             h.store,
		Checker:           h.checker,
		NewRuntime:        func() (compat.Runtime, error) { return rt, nil },
		RuntimeInstaller:  h.rtInst,
		GraphicsInstaller: h.gfxInst,
		GraphicsDir:       filepath.Join(configDir, "dxvk"),
		Game:              h.game,
		Patcher:           h.patcher,
		GameDir:           h.gameDir,
	}
	return h
}

func (h *harness) expectFonts() {
	calls := make([]any, 0, len(Fonts))
	for _, f := range Fonts {
		calls = append(calls, h.runtime.EXPECT().InstallFont(gomock.Any(), f).Return(nil))
	}
	gomock.InOrder(calls...)
}

func TestRunFromScratch(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.graphics.EXPECT().InstallGraphicsLayer(gomock.Any(), h.pipeline.GraphicsDir).Return(nil)
	h.expectFonts()
	h.runtime.EXPECT().InstallPackage(gomock.Any(), "vcrun2022").Return(nil)

	got, err := h.pipeline.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, state.GameInstalled, got)

	assert.Equal(t, 1, h.rtInst.calls)
	assert.Equal(t, 1, h.gfxInst.calls)
	assert.Equal(t, []string{config.GameRoot(h.gameDir)}, h.game.dirs)
	assert.Equal(t, []string{h.gameDir}, h.patcher.dirs)
	assert.NoDirExists(t, h.pipeline.GraphicsDir)

	cfg, err := h.store.Load()
	require.NoError(t, err)
	assert.True(t, cfg.RuntimeInstalled && cfg.GraphicsLayerInstalled && cfg.FontsInstalled &&
		cfg.DependenciesInstalled && cfg.GameInstalled && cfg.GamePatched, "cfg=%+v", cfg)
	require.NotNil(t, cfg.GameDir)
	assert.Equal(t, h.gameDir, *cfg.GameDir)

	// Seven stages and the final evaluation: the update check runs on the
	// last two evaluations only.
	assert.Equal(t, 2, h.checker.calls)
}

func TestRunResumesAfterGraphicsLayer(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	require.NoError(t, h.store.Update(func(cfg *config.GameConfig) {
		cfg.RuntimeInstalled = true
		cfg.GraphicsLayerInstalled = true
	}))
	h.expectFonts()
	h.runtime.EXPECT().InstallPackage(gomock.Any(), "vcrun2022").Return(nil)

	got, err := h.pipeline.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, state.GameInstalled, got)
	assert.Zero(t, h.rtInst.calls)
	assert.Zero(t, h.gfxInst.calls)
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	require.NoError(t, h.store.Update(func(cfg *config.GameConfig) {
		cfg.RuntimeInstalled = true
		cfg.GraphicsLayerInstalled = true
		cfg.FontsInstalled = true
	}))
	boom := errors.New("winetricks failed")
	h.runtime.EXPECT().InstallPackage(gomock.Any(), "vcrun2022").Return(boom)

	got, err := h.pipeline.Run(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, state.DependencyNotInstalled, got)
	assert.Empty(t, h.game.dirs)

	cfg, err := h.store.Load()
	require.NoError(t, err)
	assert.True(t, cfg.FontsInstalled)
	assert.False(t, cfg.DependenciesInstalled)
}

func TestRunReinstallsOnUpdate(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	require.NoError(t, h.store.SetGameDir(h.gameDir))
	require.NoError(t, h.store.Update(func(cfg *config.GameConfig) {
		cfg.RuntimeInstalled = true
		cfg.GraphicsLayerInstalled = true
		cfg.FontsInstalled = true
		cfg.DependenciesInstalled = true
		cfg.GameInstalled = true
		cfg.GamePatched = true
	}))
	h.checker.updates = 1

	got, err := h.pipeline.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, state.GameInstalled, got)
	assert.Len(t, h.game.dirs, 1)
	assert.Len(t, h.patcher.dirs, 1)
}

func TestRunWithoutGameDir(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.pipeline.GameDir = ""
	require.NoError(t, h.store.Update(func(cfg *config.GameConfig) {
		cfg.RuntimeInstalled = true
		cfg.GraphicsLayerInstalled = true
		cfg.FontsInstalled = true
		cfg.DependenciesInstalled = true
	}))

	_, err := h.pipeline.Run(context.Background())
	assert.ErrorContains(t, err, "no game directory configured")
}

func TestRunHonoursCancellation(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.pipeline.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, h.rtInst.calls)
}
