package cmd

import (
	"fmt"

	"github.com/BioHazard786/Warpcast/internal/ui"
	"github.com/BioHazard786/Warpcast/internal/version"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(ui.TitleStyle.Render("warpcast " + version.Version))
		fmt.Println(ui.SubtitleStyle.Render(version.UserAgent()))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
