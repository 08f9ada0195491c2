package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentdesk/agentdesk/internal/config"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("AgentDesk Version")
		fmt.Printf("Version: %s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("AgentDesk Status")
		fmt.Printf("Version: %s\n", version)

		path, err := config.ConfigPath()
		if err == nil {
			if _, statErr := os.Stat(path); statErr == nil {
				fmt.Println("Config:  ✓ Found (" + path + ")")
			} else {
				fmt.Println("Config:  ✗ Not found (run 'agentdesk config init' first)")
			}
		}

		cfg, err := config.Load()
		if err != nil {
			fmt.Println("API Key: ? Unable to load config")
			return
		}
		if cfg.AI.APIKey != "" {
			fmt.Println("API Key: ✓ Found")
		} else {
			fmt.Println("API Key: ✗ Not found")
		}

		if _, err := os.Stat(cfg.Paths.DBPath()); err == nil {
			fmt.Println("Store:   ✓ Found (" + cfg.Paths.DBPath() + ")")
		} else {
			fmt.Println("Store:   ✗ Not created yet (run 'agentdesk serve')")
		}

		if cfg.Search.Enabled && cfg.Search.APIKey != "" {
			fmt.Println("Search:  ✓ Enabled")
		} else {
			fmt.Println("Search:  ✗ Disabled")
		}
		if cfg.Kafka.Enabled && cfg.Kafka.Bootstrap != "" {
			fmt.Println("Kafka:   ✓ Enabled (" + cfg.Kafka.Bootstrap + ")")
		} else {
			fmt.Println("Kafka:   ✗ Disabled")
		}

		fmt.Println("Status:  Ready")
	},
}
