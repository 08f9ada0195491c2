// Package main is the entry point for the agentdesk CLI.
package main

import (
	"os"

	"github.com/agentdesk/agentdesk/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
