package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	// Automatically set GOMEMLIMIT based on cgroup memory limits (container
	// or systemd MemoryMax=). If no cgroup limit is detected, GOMEMLIMIT is
	// left at the Go default.
	"github.com/KimMachineGun/automemlimit/memlimit"

	"github.com/relaycore/vlessrelay/internal/config"
	"github.com/relaycore/vlessrelay/internal/httpserver"
	"github.com/relaycore/vlessrelay/internal/pages"
	"github.com/relaycore/vlessrelay/internal/wsrelay"
	"github.com/spf13/cobra"
)

var version = "dev"

func init() {
	_, _ = memlimit.SetGoMemLimitWithOpts(memlimit.WithLogger(nil))
}

func main() {
	rootCmd := &cobra.Command{
		Use:          "vlessrelay",
		Short:        "VLESS-over-WebSocket relay",
		Long:         "Relay VLESS connections tunneled over WebSocket to arbitrary TCP upstreams, and DNS queries over HTTPS.",
		SilenceUsage: true,
		RunE:         runServe,
	}

	addServeFlags(rootCmd)
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}
}

// addServeFlags registers the flags governing the (implicit) serve action.
// --log-level defaults to the LOG_LEVEL env var, falling back to "info".
func addServeFlags(cmd *cobra.Command) {
	defaultLevel := os.Getenv("LOG_LEVEL")
	if defaultLevel == "" {
		defaultLevel = "info"
	}
	cmd.PersistentFlags().String("log-level", defaultLevel, "log level (debug, info, warn, error)")
	cmd.Flags().String("listen", "", "listen address (e.g. :8000); overrides PORT")
	cmd.Flags().Duration("dial-timeout", config.DefaultDialTimeout, "upstream TCP dial timeout")
}

func runServe(cmd *cobra.Command, args []string) error {
	logLevel, _ := cmd.Flags().GetString("log-level")
	logger := newLogger(logLevel)

	cfg, err := config.Load(logger)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		cfg.ListenAddr = listen
	}
	if dialTimeout, _ := cmd.Flags().GetDuration("dial-timeout"); dialTimeout > 0 {
		cfg.DialTimeout = dialTimeout
	}

	relayCfg := wsrelay.Config{
		Codec:        cfg.Codec,
		FallbackHost: cfg.FallbackUpstream,
		DialTimeout:  cfg.DialTimeout,
		DoHEndpoint:  cfg.DoHEndpoint,
	}
	pagesHandler := pages.NewHandler(cfg, version)
	handler := httpserver.New(pagesHandler, relayCfg, logger)

	logger.Info("starting vlessrelay", "addr", cfg.ListenAddr, "uuid", cfg.Codec.String(), "version", version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return httpserver.ListenAndServe(ctx, cfg.ListenAddr, handler, logger)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
