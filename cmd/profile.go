package cmd

import (
	"bytes"

	"github.com/BurntSushi/toml"
	"github.com/caedis/babylonia-terminal/internal/logging"
	"github.com/caedis/babylonia-terminal/internal/profile"
	"github.com/spf13/cobra"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage saved option profiles",
}

// Flags for profile create
var (
	profConfigDir       *string
	profGameDir         *string
	profOptions         *string
	profEnv             *[]string
	profLogs            *bool
	profConcurrency     *int
	profRuntimeVersion  *string
	profGraphicsVersion *string
	profVerbose         *bool
)

var profileCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new profile",
	Args:  usageArgs(cobra.ExactArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		p := profileFromFlags(cmd)
		if err := profile.Save(args[0], p); err != nil {
			return err
		}
		logging.Infof("Profile %q saved to %s\n", args[0], profile.Dir())
		return nil
	},
}

// profileFromFlags copies only the create flags the user set.
func profileFromFlags(cmd *cobra.Command) *profile.Profile {
	p := &profile.Profile{}
	changed := cmd.Flags().Changed

	if changed("config-dir") {
		p.ConfigDir = profConfigDir
	}
	if changed("game-dir") {
		p.GameDir = profGameDir
	}
	if changed("options") {
		p.LaunchOptions = profOptions
	}
	if changed("env") {
		p.Env = *profEnv
	}
	if changed("logs") {
		p.ShowLogs = profLogs
	}
	if changed("concurrency") {
		p.Concurrency = profConcurrency
	}
	if changed("runtime-version") {
		p.RuntimeVersion = profRuntimeVersion
	}
	if changed("graphics-version") {
		p.GraphicsVersion = profGraphicsVersion
	}
	if changed("verbose") {
		p.Verbose = profVerbose
	}
	if changed("log-file") {
		p.LogFile = &logFile
	}
	return p
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved profiles",
	Args:  usageArgs(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := profile.List()
		if err != nil {
			return err
		}
		if len(names) == 0 {
			logging.Infoln("No profiles saved.")
			return nil
		}
		for _, n := range names {
			logging.Infoln(n)
		}
		return nil
	},
}

var profileShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a profile's contents",
	Args:  usageArgs(cobra.ExactArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := profile.Load(args[0])
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(p); err != nil {
			return err
		}
		logging.Infof("%s", buf.String())
		return nil
	},
}

var profileDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a saved profile",
	Args:  usageArgs(cobra.ExactArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := profile.Delete(args[0]); err != nil {
			return err
		}
		logging.Infof("Profile %q deleted.\n", args[0])
		return nil
	},
}

func init() {
	// Local variables so these only apply to create and don't collide with
	// the root launcher flags.
	f := profileCreateCmd.Flags()
	profConfigDir = f.String("config-dir", "", "Config directory")
	profGameDir = f.StringP("game-dir", "d", "", "Game directory to use when none is saved yet")
	profOptions = f.String("options", "", `Launch template, e.g. "gamemoderun %command%"`)
	profEnv = f.StringArray("env", nil, "Extra environment variable for the game as KEY=VALUE (repeatable)")
	profLogs = f.Bool("logs", false, "Show the game output while it runs")
	profConcurrency = f.Int("concurrency", 0, "Parallel file checks and downloads")
	profRuntimeVersion = f.String("runtime-version", "", "Proton GE release: index or tag")
	profGraphicsVersion = f.String("graphics-version", "", "DXVK release: index or tag")
	profVerbose = f.Bool("verbose", false, "Enable verbose logging")

	profileCmd.AddCommand(profileCreateCmd, profileListCmd, profileShowCmd, profileDeleteCmd)
	rootCmd.AddCommand(profileCmd)
}
