package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/streamchat-server/internal/app"
	"github.com/vovakirdan/streamchat-server/internal/config"
	"github.com/vovakirdan/streamchat-server/internal/log"
	"github.com/vovakirdan/streamchat-server/internal/store/sqlite"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		overrides  config.Config
	)

	cmd := &cobra.Command{
		Use:           "streamchat-server",
		Short:         "TCP broadcast chat server speaking length-prefixed frames",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath, overrides)
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&overrides.Addr, "addr", "", "TCP listen address")
	cmd.Flags().DurationVar(&overrides.IOTimeout, "io-timeout", 0, "bound on a stalled read or write")
	cmd.Flags().DurationVar(&overrides.ShutdownTimeout, "shutdown-timeout", 0, "graceful shutdown timeout")
	cmd.Flags().StringVar(&overrides.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&overrides.LogFormat, "log-format", "", "log format (console, json)")
	cmd.Flags().StringVar(&overrides.DatabasePath, "db", "", "session database path")

	cmd.AddCommand(newSessionsCmd(&configPath))
	return cmd
}

func runServe(configPath string, overrides config.Config) error {
	bootLog := log.New("info", "console")
	cfg, cfgPath, err := config.Load(bootLog, configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.UpdateFrom(overrides)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	logger := log.New(cfg.LogLevel, cfg.LogFormat)
	logger.Info().Str("config", cfgPath).Str("addr", cfg.Addr).Msg("starting streamchat server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(cfg, logger)
	if err != nil {
		return err
	}
	if err := application.Run(ctx); err != nil {
		return fmt.Errorf("server exited: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

func newSessionsCmd(configPath *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List recent connection sessions from the session store",
		RunE: func(cmd *cobra.Command, args []string) error {
			bootLog := log.New("warn", "console")
			cfg, _, err := config.Load(bootLog, *configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.DatabasePath == "" {
				return fmt.Errorf("session store is disabled (database_path is empty)")
			}

			st, err := sqlite.New(cfg.DatabasePath)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			sessions, err := st.RecentSessions(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list sessions: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tREMOTE\tCONNECTED\tDISCONNECTED\tCLIENT ID")
			for _, s := range sessions {
				disconnected := "-"
				if s.DisconnectedAt != nil {
					disconnected = s.DisconnectedAt.Local().Format(time.RFC3339)
				}
				name := s.DisplayName
				if name == "" {
					name = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					name,
					s.RemoteAddr,
					s.ConnectedAt.Local().Format(time.RFC3339),
					disconnected,
					s.ClientID,
				)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of sessions to list")
	return cmd
}
