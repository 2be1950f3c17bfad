package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/caedis/babylonia-terminal/internal/config"
	"github.com/caedis/babylonia-terminal/internal/logging"
	"github.com/caedis/babylonia-terminal/internal/runner"
)

var setLaunchOptionsCmd = &cobra.Command{
	Use:   "set-launch-options <template>",
	Short: "Save the launch template used to start the game",
	Long: `Save a launch template such as "gamemoderun %command% -skip-intro".
%command% is replaced by the Proton command; tokens after it are passed to
the game. An empty template clears the saved one.`,
	Args: usageArgs(cobra.ExactArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		template := args[0]
		if template != "" {
			// Validate before saving so a bad template never reaches a launch.
			if _, err := runner.Splice(template, []string{"game"}); err != nil {
				return wrapUsageError(err)
			}
		}

		dir, err := resolveConfigDir()
		if err != nil {
			return err
		}
		if err := config.NewStore(dir).SetLaunchOptions(template); err != nil {
			return err
		}
		if template == "" {
			logging.Infoln("Launch options cleared.")
		} else {
			logging.Infof("Launch options set to %q\n", template)
		}
		return nil
	},
}

var setGamePathCmd = &cobra.Command{
	Use:   "set-game-path <dir>",
	Short: "Change the game directory, moving an existing install",
	Args:  usageArgs(cobra.ExactArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		newDir, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}

		dir, err := resolveConfigDir()
		if err != nil {
			return err
		}
		store := config.NewStore(dir)
		cfg, err := store.Load()
		if err != nil {
			return err
		}

		if old := cfg.GameDirOr(""); old != "" {
			if err := moveGameTree(old, newDir); err != nil {
				return err
			}
		}
		if err := store.SetGameDir(newDir); err != nil {
			return err
		}
		logging.Infof("Game directory set to %s\n", newDir)
		return nil
	},
}

// moveGameTree moves the game files installed under oldDir to newDir. Nothing
// happens when oldDir holds no game.
func moveGameTree(oldDir, newDir string) error {
	src := config.GameRoot(oldDir)
	dst := config.GameRoot(newDir)
	if filepath.Clean(src) == filepath.Clean(dst) {
		return nil
	}

	if _, err := os.Stat(src); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("checking %s: %w", src, err)
	}
	if _, err := os.Stat(dst); err == nil {
		return fmt.Errorf("moving game files: %s already exists", dst)
	}

	if err := os.MkdirAll(newDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", newDir, err)
	}
	logging.Infof("Moving game files from %s to %s\n", src, dst)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("moving game files: %w", err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(setLaunchOptionsCmd, setGamePathCmd)
}
