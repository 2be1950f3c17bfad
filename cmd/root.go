package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/caedis/babylonia-terminal/internal/config"
	"github.com/caedis/babylonia-terminal/internal/logging"
	"github.com/caedis/babylonia-terminal/internal/profile"
	"github.com/caedis/babylonia-terminal/internal/runner"
)

var (
	configDir   string
	githubToken string
	profileName string
	verbose     bool
	logFile     string

	launchOptions   string
	showLogs        bool
	envVars         []string
	gameDir         string
	runtimeVersion  string
	graphicsVersion string
	concurrency     int
)

var rootCmd = &cobra.Command{
	Use:   "babylonia-terminal",
	Short: "Install and launch PGR on Linux through Proton",
	Long: `Installs Proton GE, DXVK, the fonts and runtime dependencies the game needs,
downloads and patches the game, then starts it. Progress is saved after every
step, so an interrupted run picks up where it stopped.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          usageArgs(cobra.NoArgs),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := applyProfile(cmd); err != nil {
			return err
		}

		logging.SetVerbose(verbose)
		if err := logging.SetOutputFile(logFile); err != nil {
			return fmt.Errorf("opening log file %q: %w", logFile, err)
		}
		return nil
	},
	RunE: runLauncher,
}

// applyProfile fills flags the user did not set from the selected profile.
func applyProfile(cmd *cobra.Command) error {
	if profileName == "" {
		return nil
	}
	p, err := profile.Load(profileName)
	if err != nil {
		return err
	}

	changed := cmd.Flags().Changed
	setString := func(flag string, dst *string, v *string) {
		if v != nil && !changed(flag) {
			*dst = *v
		}
	}
	setBool := func(flag string, dst *bool, v *bool) {
		if v != nil && !changed(flag) {
			*dst = *v
		}
	}

	setString("config-dir", &configDir, p.ConfigDir)
	setString("game-dir", &gameDir, p.GameDir)
	setString("options", &launchOptions, p.LaunchOptions)
	setString("runtime-version", &runtimeVersion, p.RuntimeVersion)
	setString("graphics-version", &graphicsVersion, p.GraphicsVersion)
	setString("log-file", &logFile, p.LogFile)
	setBool("logs", &showLogs, p.ShowLogs)
	setBool("verbose", &verbose, p.Verbose)
	if p.Concurrency != nil && !changed("concurrency") {
		concurrency = *p.Concurrency
	}
	if len(p.Env) > 0 && !changed("env") {
		envVars = p.Env
	}
	return nil
}

func runLauncher(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}

	pipeline := a.pipeline()
	if _, err := pipeline.Run(ctx); err != nil {
		return err
	}

	rt, err := pipeline.Runtime(ctx)
	if err != nil {
		return err
	}
	cfg, err := a.store.Load()
	if err != nil {
		return err
	}
	env, err := runner.ParseEnv(envVars)
	if err != nil {
		return wrapUsageError(err)
	}

	logging.Infoln("Starting game...")
	return runner.Start(ctx, rt, runner.Options{
		GameDir:  cfg.GameDirOr(gameDir),
		Template: resolveTemplate(launchOptions, cfg),
		Env:      env,
		ShowLogs: showLogs,
		LogPath:  runner.LogPath(a.configDir),
	})
}

// resolveTemplate returns the launch template for this run. A non-empty
// override wins over the persisted one.
func resolveTemplate(override string, cfg *config.GameConfig) string {
	if strings.TrimSpace(override) != "" {
		return override
	}
	return cfg.LaunchTemplate()
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	closeErr := logging.Close()
	if closeErr != nil {
		fmt.Fprintf(os.Stderr, "Error closing log file: %v\n", closeErr)
		if err == nil {
			os.Exit(1)
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if isUsageError(err) {
			if cmd, _, findErr := rootCmd.Find(os.Args[1:]); findErr == nil && cmd != nil {
				_ = cmd.Usage()
			} else {
				_ = rootCmd.Usage()
			}
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return wrapUsageError(err)
	})

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configDir, "config-dir", "", "Config directory (default $"+config.DirEnv+" or ~/.babylonia-terminal)")
	pf.StringVar(&githubToken, "github-token", "", "GitHub token for release lookups (also reads BT_GITHUB_TOKEN and GITHUB_TOKEN env)")
	pf.StringVar(&profileName, "profile", "", "Load a saved option profile by name")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	pf.StringVar(&logFile, "log-file", "", "Write command output to a log file")

	f := rootCmd.Flags()
	f.StringVar(&launchOptions, "options", "", `Launch template for this run, e.g. "gamemoderun %command%"`)
	f.BoolVar(&showLogs, "logs", false, "Show the game output while it runs")
	f.StringArrayVar(&envVars, "env", nil, "Extra environment variable for the game as KEY=VALUE (repeatable)")
	f.StringVarP(&gameDir, "game-dir", "d", "", "Game directory to use when none is saved yet")
	f.StringVar(&runtimeVersion, "runtime-version", "0", "Proton GE release to install: index (0 is latest) or tag")
	f.StringVar(&graphicsVersion, "graphics-version", "0", "DXVK release to install: index (0 is latest) or tag")
	f.IntVar(&concurrency, "concurrency", 0, "Parallel file checks and downloads (0 uses the CPU count)")
}

type usageError struct {
	err error
}

func (e *usageError) Error() string {
	return e.err.Error()
}

func (e *usageError) Unwrap() error {
	return e.err
}

func wrapUsageError(err error) error {
	if err == nil {
		return nil
	}
	return &usageError{err: err}
}

func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if validate == nil {
			return nil
		}
		if err := validate(cmd, args); err != nil {
			return wrapUsageError(err)
		}
		return nil
	}
}

func isUsageError(err error) bool {
	var ue *usageError
	if errors.As(err, &ue) {
		return true
	}

	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command ")
}
