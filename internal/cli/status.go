package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lorekeeper/lorekeeper/internal/config"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("Version")
		fmt.Printf("Version: %s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration status",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("Status")
		fmt.Printf("Version: %s\n", version)

		configPath, err := config.ConfigPath()
		if err == nil {
			if _, statErr := os.Stat(configPath); statErr == nil {
				fmt.Println("Config:    found (" + configPath + ")")
			} else {
				fmt.Println("Config:    not found, defaults in effect (" + configPath + ")")
			}
		}

		cfg, err := config.Load()
		if err != nil {
			fmt.Printf("Config:    load error: %v\n", err)
			return
		}
		if cfg.Providers.OpenAI.APIKey != "" {
			fmt.Println("API key:   set")
		} else {
			fmt.Println("API key:   missing (set OPENAI_API_KEY)")
		}
		fmt.Printf("Models:    %s / %s\n", cfg.Model.Narration, cfg.Model.Analysis)
		fmt.Printf("Data dir:  %s\n", cfg.Paths.DataDir)
		fmt.Printf("Slack:     enabled=%v\n", cfg.Channels.Slack.Enabled)
		fmt.Printf("WhatsApp:  enabled=%v\n", cfg.Channels.WhatsApp.Enabled)
		fmt.Printf("Relay:     enabled=%v brokers=%s\n", cfg.Relay.Enabled, cfg.Relay.Brokers)
	},
}
