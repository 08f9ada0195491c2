package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/agentdesk/agentdesk/internal/config"
	"github.com/agentdesk/agentdesk/internal/store"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "Inspect stored agents",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var agentsListCmd = &cobra.Command{
	Use:   "list <user-id>",
	Short: "List a user's agents",
	Args:  cobra.ExactArgs(1),
	Run:   runAgentsList,
}

var agentsShowCmd = &cobra.Command{
	Use:   "show <user-id> <agent-id>",
	Short: "Show one agent in detail",
	Args:  cobra.ExactArgs(2),
	Run:   runAgentsShow,
}

func init() {
	agentsCmd.AddCommand(agentsListCmd)
	agentsCmd.AddCommand(agentsShowCmd)
}

func openStore() *store.Store {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Config error: %v\n", err)
		os.Exit(1)
	}
	st, err := store.Open(cfg.Paths.DBPath())
	if err != nil {
		fmt.Printf("Store error: %v\n", err)
		os.Exit(1)
	}
	return st
}

func runAgentsList(cmd *cobra.Command, args []string) {
	st := openStore()
	defer st.Close()

	roster, err := st.ListAgents(args[0])
	if err != nil {
		fmt.Printf("List error: %v\n", err)
		os.Exit(1)
	}
	if len(roster) == 0 {
		fmt.Println("No agents yet.")
		return
	}

	for _, a := range roster {
		fmt.Printf("%s  %s\n", color.GreenString(a.Name), a.ID)
		fmt.Printf("  Expertise: %s\n", strings.Join(a.Expertise, ", "))
		fmt.Printf("  Handled:   %d questions, %.0f%% success, v%d\n",
			a.Metrics.QuestionsHandled, a.Metrics.SuccessRate*100, a.Version)
	}
}

func runAgentsShow(cmd *cobra.Command, args []string) {
	st := openStore()
	defer st.Close()

	agent, err := st.GetAgent(args[0], args[1])
	if err != nil {
		fmt.Printf("Load error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(color.GreenString(agent.Name))
	fmt.Printf("ID:          %s\n", agent.ID)
	fmt.Printf("Description: %s\n", agent.Description)
	fmt.Printf("Expertise:   %s\n", strings.Join(agent.Expertise, ", "))
	fmt.Printf("Version:     %d\n", agent.Version)
	fmt.Printf("Handled:     %d questions, %.0f%% success\n",
		agent.Metrics.QuestionsHandled, agent.Metrics.SuccessRate*100)
	if !agent.Metrics.LastUsed.IsZero() {
		fmt.Printf("Last used:   %s\n", agent.Metrics.LastUsed.Format("2006-01-02 15:04"))
	}
	if len(agent.EvolutionHistory) > 0 {
		fmt.Println("Evolution history:")
		for _, e := range agent.EvolutionHistory {
			fmt.Printf("  %s  %s\n", e.Timestamp.Format("2006-01-02"), e.Reason)
		}
	}
}
