package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"smartcollections/internal/api"
	"smartcollections/internal/catalog"
	"smartcollections/internal/config"
	"smartcollections/internal/expr"
	"smartcollections/internal/runner"
	"smartcollections/internal/server"
	"smartcollections/internal/storage"
)

var (
	configPath string

	rootCmd = &cobra.Command{
		Use:           "smartcollections",
		Short:         "Maintain rule-based media collections",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the periodic refresh",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Reconcile every collection once and print the report",
		Args:  cobra.NoArgs,
		RunE:  runOnce,
	}

	importCmd = &cobra.Command{
		Use:   "import <snapshot.yaml>",
		Short: "Load a catalog snapshot into the database",
		Args:  cobra.ExactArgs(1),
		RunE:  runImport,
	}

	checkCmd = &cobra.Command{
		Use:   "check <expression>",
		Short: "Parse an expression and print its canonical form",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runCheck,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")
	rootCmd.AddCommand(serveCmd, runCmd, importCmd, checkCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	store  *storage.SQLiteStorage
}

func openApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	store, err := storage.NewSQLiteStorage(cfg.Database.Path, cfg.Collections.MarkerTag)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	return &app{cfg: cfg, logger: logger, store: store}, nil
}

func (a *app) newRunner() *runner.Runner {
	return runner.New(a.store, a.store, a.logger, runner.Options{
		Definitions:      runner.DefinitionsFromConfig(a.cfg.Collections.Definitions),
		Discovery:        runner.DiscoveryFromConfig(a.cfg.Collections.Discovery),
		UserData:         a.store,
		EpisodeCacheSize: a.cfg.Collections.EpisodeCacheSize,
	})
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(logger zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-sigCh:
			logger.Info().Msg("received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.store.Close()

	a.logger.Info().
		Str("version", api.Version).
		Int("definitions", len(a.cfg.Collections.Definitions)).
		Bool("discovery", a.cfg.Collections.Discovery.Enabled).
		Msg("starting smartcollections server")

	ctx, cancel := signalContext(a.logger)
	defer cancel()

	r := a.newRunner()
	srv := server.New(ctx, a.cfg, a.logger, r, a.store)

	if interval := a.cfg.Collections.RefreshInterval; interval > 0 {
		go refreshLoop(ctx, r, interval, a.logger)
	}

	go func() {
		<-ctx.Done()
		if err := srv.Shutdown(context.Background()); err != nil {
			a.logger.Error().Err(err).Msg("shutdown error")
		}
	}()

	if err := srv.Start(); err != nil {
		cancel()
		return err
	}

	a.logger.Info().Msg("server stopped")
	return nil
}

// refreshLoop runs immediately and then every interval until ctx ends.
func refreshLoop(ctx context.Context, r *runner.Runner, interval time.Duration, logger zerolog.Logger) {
	logger.Info().Dur("interval", interval).Msg("periodic refresh enabled")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := r.Run(ctx); err != nil {
			logger.Warn().Err(err).Msg("scheduled run skipped")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func runOnce(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.store.Close()

	ctx, cancel := signalContext(a.logger)
	defer cancel()

	rep, err := a.newRunner().Run(ctx)
	if err != nil {
		return err
	}

	if err := printJSON(cmd, rep); err != nil {
		return err
	}
	if n := rep.Failed(); n > 0 {
		return fmt.Errorf("%d collection(s) failed", n)
	}
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.store.Close()

	ctx, cancel := signalContext(a.logger)
	defer cancel()

	importer := catalog.NewImporter(a.store, a.logger.With().Str("component", "importer").Logger())
	if a.cfg.Probe.Enabled {
		prober := catalog.NewProber(a.cfg.Probe.FFprobePath, a.logger)
		if prober.IsAvailable() {
			a.logger.Info().Msg("ffprobe available - language probing enabled")
			importer.WithProber(prober)
		} else {
			a.logger.Warn().Msg("ffprobe not found - language probing disabled")
		}
	}

	res, err := importer.ImportFile(ctx, args[0])
	if err != nil {
		return err
	}
	return printJSON(cmd, res)
}

func runCheck(cmd *cobra.Command, args []string) error {
	input := strings.Join(args, " ")
	node, errs := expr.Parse(input)
	if len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintln(cmd.ErrOrStderr(), e.Error())
		}
		return fmt.Errorf("%d error(s) in expression", len(errs))
	}
	fmt.Fprintln(cmd.OutOrStdout(), node.String())
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
