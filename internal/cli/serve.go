package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentdesk/agentdesk/internal/agents"
	"github.com/agentdesk/agentdesk/internal/chat"
	"github.com/agentdesk/agentdesk/internal/config"
	"github.com/agentdesk/agentdesk/internal/correction"
	"github.com/agentdesk/agentdesk/internal/gateway"
	"github.com/agentdesk/agentdesk/internal/pricing"
	"github.com/agentdesk/agentdesk/internal/provider"
	"github.com/agentdesk/agentdesk/internal/ratelimit"
	"github.com/agentdesk/agentdesk/internal/scheduler"
	"github.com/agentdesk/agentdesk/internal/store"
	"github.com/agentdesk/agentdesk/internal/usage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the chat gateway and background jobs",
	Run:   runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	printHeader("AgentDesk Gateway")

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Config error: %v\n", err)
		os.Exit(1)
	}
	setupLogging(cfg.Log.Level)

	st, err := store.Open(cfg.Paths.DBPath())
	if err != nil {
		fmt.Printf("Store error: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	fast := provider.NewOpenAIProvider(cfg.AI.APIKey, cfg.AI.APIBase, cfg.AI.FastModel)
	smart := provider.NewOpenAIProvider(cfg.AI.APIKey, cfg.AI.APIBase, cfg.AI.SmartModel)

	var searcher provider.Searcher
	if cfg.Search.Enabled && cfg.Search.APIKey != "" {
		searcher = provider.NewSearchClient(cfg.Search.APIKey, "")
		fmt.Println("Web search enabled")
	}

	corrector, err := correction.NewDefault()
	if err != nil {
		fmt.Printf("Correction rules error: %v\n", err)
		os.Exit(1)
	}

	ledger := usage.NewLedger(st, pricing.DefaultTable())
	var exporter *usage.Exporter
	if cfg.Kafka.Enabled && cfg.Kafka.Bootstrap != "" {
		exporter = usage.NewExporter(cfg.Kafka.Bootstrap, cfg.Kafka.Topic)
		defer exporter.Close()
		fmt.Printf("Kafka usage export enabled: %s -> %s\n", cfg.Kafka.Bootstrap, cfg.Kafka.Topic)
	}
	recorder := usage.NewRecorder(ledger, exporter, 256)
	defer recorder.Close()

	limits := &chat.Limits{
		User:  ratelimit.New(cfg.Limits.UserPerMinute, time.Minute),
		Fast:  ratelimit.New(cfg.Limits.FastPerMinute, time.Minute),
		Smart: ratelimit.New(cfg.Limits.SmartPerMinute, time.Minute),
	}

	svc := chat.New(chat.Config{
		Store:     st,
		Fast:      fast,
		Smart:     smart,
		Searcher:  searcher,
		Corrector: corrector,
		Limits:    limits,
		Recorder:  recorder,
	})

	if cfg.Scheduler.Enabled {
		sched := scheduler.New(cfg.Scheduler, st, agents.NewEvolver(smart), limits)
		if err := sched.Start(); err != nil {
			fmt.Printf("Scheduler error: %v\n", err)
			os.Exit(1)
		}
		defer sched.Stop()
		fmt.Println("Scheduler started")
	}

	srv := gateway.New(gateway.Opts{
		Chat:      svc,
		Store:     st,
		Ledger:    ledger,
		AuthToken: cfg.Gateway.AuthToken,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("API server listening on http://%s\n", cfg.Gateway.Addr)
	if err := srv.Start(ctx, cfg.Gateway.Addr); err != nil {
		fmt.Printf("Server error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Shutdown complete")
}

func setupLogging(level string) {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(level),
	})))
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
