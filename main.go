package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/elmanelman/sql-judge/config"
	"github.com/elmanelman/sql-judge/judge"
	"github.com/elmanelman/sql-judge/sandbox"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

var configPath string

var rootCmd = &cobra.Command{
	Use:          "sql-judge",
	Short:        "Review SQL submissions in throwaway Oracle users",
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Poll the main database and review pending submissions",
	Long: `Poll the main database for pending submissions, run each one in a fresh
sandbox user and write the verdict back. Stops on SIGINT or SIGTERM after the
reviews in progress are written.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultFile, "configuration file (.json, .yaml or .yml)")
	rootCmd.AddCommand(serveCmd, checkCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (config.JudgesConfig, *zap.Logger, error) {
	cfg := config.Default()
	if err := cfg.LoadFromFile(configPath); err != nil {
		return cfg, nil, err
	}
	logger, err := cfg.LoggerConfig.Build()
	if err != nil {
		return cfg, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return cfg, logger, nil
}

func newExecutor(ctx context.Context, cfg config.SandboxConfig, logger *zap.Logger) (*sandbox.Executor, *sandbox.Pool, error) {
	pool, err := sandbox.OpenPool(ctx, cfg.Admin.ConnectionString(), cfg.PoolMin, cfg.PoolMax, cfg.PoolWait())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open admin pool: %w", err)
	}
	settings := sandbox.Settings{
		Tablespace:       cfg.Tablespace,
		UserPrefix:       cfg.UserPrefix,
		StatementTimeout: cfg.CallTimeout(),
		Limits: sandbox.Limits{
			MaxRows:   cfg.MaxRows,
			MaxCols:   cfg.MaxCols,
			MaxTables: cfg.MaxTables,
		},
	}
	connect := sandbox.EasyConnect(cfg.Admin.Host, cfg.Admin.Port, cfg.Admin.SID)
	return sandbox.NewExecutor(settings, pool, connect, logger), pool, nil
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	mainDB, err := judge.ConnectDB(ctx, cfg.MainDBConfig.ConnectionString())
	if err != nil {
		return fmt.Errorf("failed to connect to main database: %w", err)
	}
	defer mainDB.Close()

	executor, pool, err := newExecutor(ctx, cfg.Sandbox, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	sandbox.RegisterMetrics(reg)
	judge.RegisterMetrics(reg)

	wg := new(sync.WaitGroup)
	j := judge.NewJudges(wg, logger, mainDB, executor)
	setupSigtermHandler(j)
	j.Start(ctx, cfg.Judge)

	done := make(chan struct{})
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		wg.Wait()
		close(done)
		return nil
	})
	if cfg.MetricsAddress != "" {
		serveMetrics(egCtx, eg, j, done, cfg.MetricsAddress, reg, logger)
	}
	return eg.Wait()
}

// serveMetrics exposes reg until the judges are done. A failing listener
// stops the judges.
func serveMetrics(
	ctx context.Context,
	eg *errgroup.Group,
	j *judge.Judges,
	done <-chan struct{},
	addr string,
	reg *prometheus.Registry,
	logger *zap.Logger,
) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: shutdownTimeout,
	}

	eg.Go(func() error {
		logger.Info("serving metrics", zap.String("address", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		select {
		case <-done:
		case <-ctx.Done():
			j.Stop()
			<-done
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

func setupSigtermHandler(judges *judge.Judges) {
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		fmt.Print("\n")
		judges.Stop()
	}()
}
