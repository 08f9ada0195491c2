package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentdesk/agentdesk/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Run:   runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Run:   runConfigInit,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Config error: %v\n", err)
		os.Exit(1)
	}

	// Secrets are masked on output only; the file keeps full values.
	cfg.AI.APIKey = maskSecret(cfg.AI.APIKey)
	cfg.Search.APIKey = maskSecret(cfg.Search.APIKey)
	cfg.Gateway.AuthToken = maskSecret(cfg.Gateway.AuthToken)

	out, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		fmt.Printf("Encode error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}

func runConfigInit(cmd *cobra.Command, args []string) {
	path, err := config.ConfigPath()
	if err != nil {
		fmt.Printf("Config error: %v\n", err)
		os.Exit(1)
	}
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("Config already exists at %s\n", path)
		return
	}

	if err := config.Save(config.DefaultConfig()); err != nil {
		fmt.Printf("Save error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote default config to %s\n", path)
}
