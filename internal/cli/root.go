// Package cli implements the lorekeeper command line.
package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/lorekeeper/lorekeeper/internal/cli.version=1.2.3"
	version = "0.4.0"
	logo    = "\n" +
		"  _                _\n" +
		" | | ___  _ __ ___| | _____  ___ _ __   ___ _ __\n" +
		" | |/ _ \\| '__/ _ \\ |/ / _ \\/ _ \\ '_ \\ / _ \\ '__|\n" +
		" | | (_) | | |  __/   <  __/  __/ |_) |  __/ |\n" +
		" |_|\\___/|_|  \\___|_|\\_\\___|\\___| .__/ \\___|_|\n" +
		"                                |_|\n"
)

var rootCmd = &cobra.Command{
	Use:   "lorekeeper",
	Short: "lorekeeper - AI game master for chat channels",
	Long:  color.CyanString(logo) + "\nAn AI game master that runs tabletop campaigns over Slack and WhatsApp.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(exportCmd)
}
