package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/celerix-dev/wardledger/internal/api"
	"github.com/celerix-dev/wardledger/internal/auth"
	"github.com/celerix-dev/wardledger/internal/config"
	"github.com/celerix-dev/wardledger/internal/engine"
	"github.com/celerix-dev/wardledger/internal/logging"
	"github.com/celerix-dev/wardledger/internal/server"
	"github.com/celerix-dev/wardledger/internal/vault"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var opts config.Options

	cmd := &cobra.Command{
		Use:           "wardledgerd",
		Short:         "Ward ledger daemon",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts)
		},
	}
	cmd.Flags().StringVar(&opts.ConfigFile, "config", "", "config file (default wardledger.{yaml,toml,json} in the working directory)")
	cmd.Flags().StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file loaded before the environment is read")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "wardledgerd: %v\n", err)
		os.Exit(1)
	}
}

func run(opts config.Options) error {
	// 1. Configuration and logging
	cfg, err := config.Load(opts)
	if err != nil {
		return err
	}
	log := logging.New(os.Stderr, cfg.LogLevel)
	log.Info("starting ward ledger daemon", "admin", cfg.Admin.Hex(), "data_dir", cfg.DataDir)

	// 2. Initialize metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := engine.NewMetrics(reg)

	// 3. Open the journal, replay it and start the engine
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ledger, journal, err := openEngine(ctx, cfg, log, metrics)
	if err != nil {
		return err
	}
	// Runs after router.Stop has drained the connection handlers.
	defer journal.Close()

	// 4. Initialize the TCP router
	challenges := auth.NewChallenges(cfg.ChallengeTTL)
	router := server.NewRouter(ledger, challenges)
	router.SetLogger(log)
	router.SetMaxConns(cfg.MaxConns)

	// 5. Setup TLS
	if cfg.DisableTLS {
		log.Warn("TLS encryption disabled", "env", config.EnvPrefix+"_DISABLE_TLS")
	} else {
		cert, err := vault.GenerateSelfSignedCert()
		if err != nil {
			return fmt.Errorf("generate TLS certificate: %w", err)
		}
		router.SetCertificate(cert)
	}

	// 6. Initialize the HTTP API
	h := &api.Handler{Ledger: ledger, Challenges: challenges}
	httpServer := &http.Server{
		Addr:              net.JoinHostPort("", cfg.HTTPPort),
		Handler:           api.NewEngine(h, reg, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 7. Start servers
	errc := make(chan error, 2)
	go func() {
		log.Info("HTTP API listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		if err := router.Listen(cfg.TCPPort); err != nil {
			errc <- fmt.Errorf("tcp server: %w", err)
		}
	}()

	// 8. Handle graceful shutdown
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err = <-errc:
		log.Error("server failed", "error", err)
	}

	router.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if serr := httpServer.Shutdown(shutdownCtx); serr != nil {
		log.Warn("http shutdown", "error", serr)
	}
	log.Info("servers stopped")
	return err
}

// openEngine opens the journal under cfg.DataDir and replays it into a ledger guarded by the
// journal's administrator. A configured admin that disagrees with the journal is refused.
func openEngine(ctx context.Context, cfg *config.Config, log *slog.Logger, metrics *engine.Metrics) (*engine.Ledger, *engine.SQLiteJournal, error) {
	journal, err := engine.OpenJournal(cfg.DataDir)
	if err != nil {
		return nil, nil, err
	}
	admin, err := engine.BindAdmin(ctx, journal, cfg.Admin, cfg.Admin)
	if err != nil {
		journal.Close()
		return nil, nil, fmt.Errorf("bind administrator: %w", err)
	}
	ledger, err := engine.Restore(ctx, engine.NewAdminGuard(admin),
		engine.WithJournal(journal),
		engine.WithLogger(log),
		engine.WithMetrics(metrics),
	)
	if err != nil {
		journal.Close()
		return nil, nil, err
	}
	count, err := ledger.Count(ctx)
	if err != nil {
		journal.Close()
		return nil, nil, fmt.Errorf("count records: %w", err)
	}
	log.Info("engine started", "admin", admin.Hex(), "records", count)
	return ledger, journal, nil
}
