package cmd

import (
	"encoding/json"

	"github.com/caedis/babylonia-terminal/internal/config"
	"github.com/caedis/babylonia-terminal/internal/logging"
	"github.com/caedis/babylonia-terminal/internal/state"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or reset the saved install state",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the saved install state as JSON",
	Args:  usageArgs(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := resolveConfigDir()
		if err != nil {
			return err
		}
		cfg, err := config.NewStore(dir).Load()
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return err
		}
		logging.Infoln(string(data))
		return nil
	},
}

var configResetCmd = &cobra.Command{
	Use:   "reset-game",
	Short: "Mark the game for reinstall and repatch on the next launch",
	Long: `Clear the game installed and patched flags. The next launch verifies
every game file against the manifest, downloads what is missing or damaged,
then patches again. Runtime, graphics layer, fonts and dependencies are kept.`,
	Args: usageArgs(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := resolveConfigDir()
		if err != nil {
			return err
		}
		m := &state.Machine{Store: config.NewStore(dir)}
		if err := m.UpdateGame(); err != nil {
			return err
		}
		logging.Infoln("Game marked for reinstall.")
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configResetCmd)
	rootCmd.AddCommand(configCmd)
}
