package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/Thisisily/glp-monitor/internal/control"
	"github.com/Thisisily/glp-monitor/internal/core/config"
)

var (
	cfgPath   string
	isDebug   bool
	addresses []string
)

var rootCmd = &cobra.Command{
	Use:   "glpmonitor",
	Short: "GLP valuation and exposure monitor",
	Long:  `glpmonitor tracks GLP balances on Arbitrum and Avalanche and reports mint price, redemption value, fees and per-asset exposure.`,
	Run:   runMonitor,
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringSliceVar(&addresses, "address", nil, "GLP holder address to monitor (repeatable, added to configured users)")
}

// loadConfig reads the config, applies flags, sets up logging and validates.
func loadConfig() (*config.AppConfig, error) {
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		stylelog.InitDefault()
		return nil, err
	}
	setupLogging(cfg.Logging.Level)

	cfg.Users = mergeUsers(cfg.Users, addresses)
	if len(cfg.Users) == 0 && isTerminal(os.Stdin) {
		addr, err := promptAddress(os.Stdin, os.Stderr)
		if err != nil {
			return nil, err
		}
		cfg.Users = []string{addr}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupLogging(level string) {
	slogLevel := slog.LevelInfo
	if level != "" {
		if err := slogLevel.UnmarshalText([]byte(level)); err != nil {
			slogLevel = slog.LevelInfo
		}
	}
	if isDebug {
		slogLevel = slog.LevelDebug
	}

	stylelog.InitDefault(&tint.Options{
		Level:      slogLevel,
		TimeFormat: time.RFC3339,
	})
}

// mergeUsers appends extra addresses that are not already configured.
func mergeUsers(users, extra []string) []string {
	seen := make(map[string]bool, len(users))
	for _, u := range users {
		seen[strings.ToLower(u)] = true
	}
	for _, a := range extra {
		a = strings.TrimSpace(a)
		if a == "" || seen[strings.ToLower(a)] {
			continue
		}
		seen[strings.ToLower(a)] = true
		users = append(users, a)
	}
	return users
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

func promptAddress(in io.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, "GLP holder address: ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read address: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func runMonitor(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := cmd.Context()
	app, err := control.New(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize monitor", "error", err)
		os.Exit(1)
	}

	if err := app.Start(ctx); err != nil {
		slog.Error("Failed to start monitor", "error", err)
		os.Exit(1)
	}
	slog.Info("Monitor started", "config", cfgPath, "users", len(cfg.Users), "interval", cfg.PollInterval)

	<-ctx.Done()
	slog.Info("Received signal, shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := app.Stop(shutdownCtx); err != nil {
		slog.Error("Error during shutdown", "error", err)
		os.Exit(1)
	}
	slog.Info("Monitor stopped gracefully")
}
