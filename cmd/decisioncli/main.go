// Command decisioncli is a thin harness around the orchestrator library:
// it loads the system config, rule file, and pattern lists once, then
// exposes decide/reload/stats as subcommands. It is not the transport
// collaborator the core assumes (§6) — just enough wiring to exercise
// the library from a shell.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/riskcore/decisioncore/internal/config"
	"github.com/riskcore/decisioncore/internal/decision"
	"github.com/riskcore/decisioncore/internal/orchestrator"
	"github.com/riskcore/decisioncore/internal/pattern"
	"github.com/riskcore/decisioncore/internal/rules"
	"github.com/riskcore/decisioncore/internal/telemetry"
)

var (
	configPath    string
	rulesPath     string
	blacklistPath string
	whitelistPath string
	inputPath     string
)

type app struct {
	cfgStore *config.Store
	engine   *rules.Engine
	matcher  *pattern.Matcher
	orch     *orchestrator.Orchestrator
	logger   *slog.Logger
	closeLog func() error
}

func buildApp() (*app, error) {
	cfgStore, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg := cfgStore.Get()

	logger, closeFn := telemetry.NewLogger(telemetry.LoggingOptions{
		Level:         cfg.Logging.Level,
		FilePath:      cfg.Logging.FilePath,
		MaxSizeMB:     cfg.Logging.MaxSizeMB,
		MaxFiles:      cfg.Logging.MaxFiles,
		EnableConsole: cfg.Logging.EnableConsole,
		EnableFile:    cfg.Logging.EnableFile,
		JSON:          true,
	})

	engine := rules.NewEngine(logger)
	if err := engine.LoadRules(rulesPath); err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}

	matcher := pattern.New()
	if err := matcher.LoadFiles(blacklistPath, whitelistPath); err != nil {
		return nil, fmt.Errorf("load patterns: %w", err)
	}

	features := decision.NewFeatureCache(cfg.Features.CacheTTLSec)
	metrics := telemetry.NewCollector(prometheus.DefaultRegisterer)

	orch := orchestrator.New(cfgStore, engine, matcher, features, metrics, logger, cfg.Performance.TargetQPS)

	return &app{cfgStore: cfgStore, engine: engine, matcher: matcher, orch: orch, logger: logger, closeLog: closeFn}, nil
}

func (a *app) shutdown() {
	if a.closeLog != nil {
		_ = a.closeLog()
	}
}

func main() {
	root := &cobra.Command{
		Use:   "decisioncli",
		Short: "Run and inspect the transaction risk decision core",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "server.toml", "system config file")
	root.PersistentFlags().StringVar(&rulesPath, "rules", "rules.json", "rule document")
	root.PersistentFlags().StringVar(&blacklistPath, "blacklist", "blacklist.txt", "blacklist pattern file")
	root.PersistentFlags().StringVar(&whitelistPath, "whitelist", "whitelist.txt", "whitelist pattern file")

	root.AddCommand(decideCmd(), reloadCmd(), statsCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func decideCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decide",
		Short: "Process one decision request document and print the response",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.shutdown()

			var body []byte
			if inputPath != "" {
				body, err = os.ReadFile(inputPath)
			} else {
				body, err = io.ReadAll(os.Stdin)
			}
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}

			resp, err := a.orch.ProcessDecision(context.Background(), body)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		},
	}
	cmd.Flags().StringVar(&inputPath, "input", "", "request document path (defaults to stdin)")
	return cmd
}

func reloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Re-parse and validate config and rules, swapping on success",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.shutdown()

			if err := a.cfgStore.Reload(); err != nil {
				return fmt.Errorf("config reload: %w", err)
			}
			if err := a.engine.LoadRules(rulesPath); err != nil {
				return fmt.Errorf("rule reload: %w", err)
			}
			if err := a.matcher.LoadFiles(blacklistPath, whitelistPath); err != nil {
				return fmt.Errorf("pattern reload: %w", err)
			}
			fmt.Println("reload ok")
			return nil
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print per-rule evaluation statistics as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.shutdown()

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(a.engine.GetRuleStatistics())
		},
	}
}
