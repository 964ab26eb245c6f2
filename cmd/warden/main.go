package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"warden/internal/bot"
	"warden/internal/config"
	"warden/internal/metrics"
	"warden/internal/modules/audit"
	"warden/internal/modules/expressions"
	"warden/internal/storage"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var rootCmd = &cobra.Command{
	Use:          "warden",
	Short:        "Discord moderation bot with message filtering and anti-spam",
	SilenceUsage: true,
	RunE:         runBot,
}

var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Manage filtered expressions",
}

var filterAddCmd = &cobra.Command{
	Use:   "add <regex>",
	Short: "Add a filtered expression",
	Args:  cobra.ExactArgs(1),
	RunE:  runFilterAdd,
}

var filterDelCmd = &cobra.Command{
	Use:   "del <regex>",
	Short: "Remove a filtered expression",
	Args:  cobra.ExactArgs(1),
	RunE:  runFilterDel,
}

var filterLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List filtered expressions",
	Args:  cobra.NoArgs,
	RunE:  runFilterLs,
}

func init() {
	filterCmd.AddCommand(filterAddCmd, filterDelCmd, filterLsCmd)
	rootCmd.AddCommand(filterCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runBot(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.DiscordToken == "" {
		return errors.New("DISCORD_TOKEN is required")
	}

	logger, err := config.BuildLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	store, err := openStore(cfg)
	if err != nil {
		logger.Error("storage init failed", zap.Error(err))
		return err
	}
	defer store.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	auditLogger := audit.NewLogger(logger)
	botSvc, err := bot.New(cfg, logger, store, auditLogger, m)
	if err != nil {
		logger.Error("bot init failed", zap.Error(err))
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := botSvc.Start(ctx); err != nil {
		logger.Error("bot start failed", zap.Error(err))
		return err
	}
	logger.Info("bot started")

	group, groupCtx := errgroup.WithContext(ctx)
	if cfg.Health.Enabled {
		server := healthServer(cfg.Health.Addr, store, registry)
		group.Go(func() error {
			logger.Info("health endpoint enabled", zap.String("addr", cfg.Health.Addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("health server: %w", err)
			}
			return nil
		})
		group.Go(func() error {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutdown requested")
		return nil
	})

	runErr := group.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	botSvc.Close(shutdownCtx)

	if runErr != nil {
		logger.Error("stopped with error", zap.Error(runErr))
	}
	return runErr
}

func healthServer(addr string, store *storage.Store, registry *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := store.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("storage unavailable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}

func openStore(cfg config.Config) (*storage.Store, error) {
	store, err := storage.New(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		return nil, fmt.Errorf("migrations failed: %w", err)
	}
	return store, nil
}

// withExpressions opens the configured database for the offline filter
// commands.
func withExpressions(cmd *cobra.Command, fn func(ctx context.Context, store *expressions.Store) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	exprs := expressions.New(store, zap.NewNop())
	if err := exprs.Seed(ctx, cfg.Spam.DefaultExpressions); err != nil {
		return err
	}
	return fn(ctx, exprs)
}

func runFilterAdd(cmd *cobra.Command, args []string) error {
	return withExpressions(cmd, func(ctx context.Context, store *expressions.Store) error {
		if err := store.Add(ctx, args[0]); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Successfully added filter `%s`\n", args[0])
		if err := expressions.Validate(args[0]); err != nil {
			fmt.Fprintf(out, "Warning: it does not compile and will not match anything (%v)\n", err)
		}
		return nil
	})
}

func runFilterDel(cmd *cobra.Command, args []string) error {
	return withExpressions(cmd, func(ctx context.Context, store *expressions.Store) error {
		if err := store.Remove(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Successfully removed filter `%s`\n", args[0])
		return nil
	})
}

func runFilterLs(cmd *cobra.Command, args []string) error {
	return withExpressions(cmd, func(ctx context.Context, store *expressions.Store) error {
		patterns, err := store.List(ctx)
		if err != nil {
			return err
		}
		return printPatterns(cmd.OutOrStdout(), patterns)
	})
}

func printPatterns(out io.Writer, patterns []string) error {
	if len(patterns) == 0 {
		_, err := fmt.Fprintln(out, "No filters.")
		return err
	}
	for _, pattern := range patterns {
		if _, err := fmt.Fprintln(out, pattern); err != nil {
			return err
		}
	}
	return nil
}
