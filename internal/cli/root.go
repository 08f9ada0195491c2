package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/agentdesk/agentdesk/internal/cli.version=1.2.3"
	version = "0.4.1"
	logo    = "\n" +
		"    _                 _   ___          _   \n" +
		"   /_\\  __ _ ___ _ _ | |_|   \\ ___ ___| |__\n" +
		"  / _ \\/ _` / -_) ' \\|  _| |) / -_|_-<| / /\n" +
		" /_/ \\_\\__, \\___|_||_|\\__|___/\\___/__/|_\\_\\\n" +
		"       |___/\n"
)

var rootCmd = &cobra.Command{
	Use:   "agentdesk",
	Short: "AgentDesk - AI agent chat backend",
	Long:  color.CyanString(logo) + "\nA chat backend that matches questions to specialized AI agents,\ncreating and evolving them as conversations demand.",
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
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(agentsCmd)
	rootCmd.AddCommand(usageCmd)
	rootCmd.AddCommand(configCmd)
}

func printHeader(title string) {
	fmt.Println(color.CyanString(logo))
	if title != "" {
		fmt.Println(title)
		fmt.Println("─────────────────────")
	}
}

func maskSecret(s string) string {
	if len(s) <= 8 {
		if s == "" {
			return ""
		}
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}
