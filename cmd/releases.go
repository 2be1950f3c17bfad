package cmd

import (
	"fmt"

	"github.com/caedis/babylonia-terminal/internal/component"
	"github.com/caedis/babylonia-terminal/internal/github"
	"github.com/caedis/babylonia-terminal/internal/logging"
	"github.com/spf13/cobra"
)

var releasesAll bool

var releasesCmd = &cobra.Command{
	Use:   "releases <runtime|graphics>",
	Short: "List the releases --runtime-version or --graphics-version can select",
	Long: `List the published releases of Proton GE (runtime) or DXVK (graphics).
The index in the first column can be passed to --runtime-version or
--graphics-version, as can the tag.`,
	Args:      usageArgs(cobra.ExactArgs(1)),
	ValidArgs: []string{"runtime", "graphics"},
	RunE: func(cmd *cobra.Command, args []string) error {
		var inst *component.Installer
		switch args[0] {
		case "runtime":
			inst = component.Proton("", "", nil, nil)
		case "graphics":
			inst = component.DXVK("", "", nil, nil)
		default:
			return wrapUsageError(fmt.Errorf("unknown component %q, want runtime or graphics", args[0]))
		}

		client := github.NewClient(cmd.Context(), getGithubToken())
		releases, err := client.ListReleases(cmd.Context(), inst.Owner, inst.Repo)
		if err != nil {
			return err
		}

		logging.Infof("%s/%s:\n", inst.Owner, inst.Repo)
		shown := 0
		for i, rel := range releases {
			asset := github.PickArchive(rel.Assets, inst.Exclude...)
			if asset == nil && !releasesAll {
				continue
			}
			line := fmt.Sprintf("  %3d  %s", i, rel.TagName)
			if rel.Prerelease {
				line += " (pre-release)"
			}
			if asset == nil {
				line += " (no archive)"
			}
			logging.Infoln(line)
			shown++
		}
		if shown == 0 {
			logging.Infoln("  No installable releases found.")
		}
		return nil
	},
}

func init() {
	releasesCmd.Flags().BoolVar(&releasesAll, "all", false, "Include releases without an installable archive")
	rootCmd.AddCommand(releasesCmd)
}
