package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/agentdesk/agentdesk/internal/pricing"
	"github.com/agentdesk/agentdesk/internal/usage"
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Inspect usage and cost records",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var usageSummaryCmd = &cobra.Command{
	Use:   "summary <user-id>",
	Short: "Print a user's 30-day usage summary",
	Args:  cobra.ExactArgs(1),
	Run:   runUsageSummary,
}

var usageRecalculateCmd = &cobra.Command{
	Use:   "recalculate",
	Short: "Reprice every stored usage record with the current pricing table",
	Run:   runUsageRecalculate,
}

func init() {
	usageCmd.AddCommand(usageSummaryCmd)
	usageCmd.AddCommand(usageRecalculateCmd)
}

func runUsageSummary(cmd *cobra.Command, args []string) {
	st := openStore()
	defer st.Close()
	ledger := usage.NewLedger(st, pricing.DefaultTable())

	summary, err := ledger.Summary(args[0])
	if err != nil {
		fmt.Printf("Summary error: %v\n", err)
		os.Exit(1)
	}
	budget, err := ledger.BudgetStatus(args[0])
	if err != nil {
		fmt.Printf("Budget error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Usage for %s (%s to %s)\n", args[0],
		summary.Start.Format("2006-01-02"), summary.End.Format("2006-01-02"))
	for service, su := range summary.Services {
		fmt.Printf("  %-14s %5d requests  %8d in / %8d out tokens  $%.4f\n",
			service, su.Requests, su.InputTokens, su.OutputTokens, su.Cost)
	}
	fmt.Printf("Total: %d requests, $%.4f\n", summary.Requests, summary.TotalCost)

	if budget.Budget > 0 {
		line := fmt.Sprintf("Budget: $%.2f spent of $%.2f", budget.Spent, budget.Budget)
		if budget.OverBudget {
			fmt.Println(color.RedString(line + " (over budget)"))
		} else {
			fmt.Println(line)
		}
	}
}

func runUsageRecalculate(cmd *cobra.Command, args []string) {
	st := openStore()
	defer st.Close()
	ledger := usage.NewLedger(st, pricing.DefaultTable())

	changed, err := ledger.RecalculateCosts(pricing.DefaultTable())
	if err != nil {
		fmt.Printf("Recalculate error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Repriced %d record(s)\n", changed)
}
