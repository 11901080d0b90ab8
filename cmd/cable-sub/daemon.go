package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cablehq/actioncable-go/pkg/actioncable"
	"github.com/cablehq/actioncable-go/pkg/config"
	"github.com/cablehq/actioncable-go/pkg/configcache"
	"github.com/cablehq/actioncable-go/pkg/healthprobe"
	"github.com/cablehq/actioncable-go/pkg/httpserver"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon <channel> [key=value ...]",
	Short: "Run a sharded consumer pool and serve /metrics, /health, /ready",
	Long: `Starts a Pool of cable consumers sharded by subscription identifier,
subscribes once to <channel>, and serves Prometheus metrics and health
probes over HTTP until interrupted.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)
	daemonCmd.Flags().Int("pool-size", 0, "number of pooled consumers (overrides ACTION_CABLE_POOL_SIZE)")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	cableURL, _ := cmd.Flags().GetString("url")

	cache, err := configcache.New(configcache.Config{NumCounters: 1000, MaxCost: 1 << 16, Logger: logger})
	if err != nil {
		return fmt.Errorf("create config cache: %w", err)
	}
	defer cache.Close()

	if cableURL == "" {
		if v, ok := cache.GetConfig("url", 30*time.Second); ok {
			cableURL = v
		} else {
			cableURL = cfg.URL
		}
	}

	poolSize, _ := cmd.Flags().GetInt("pool-size")
	if poolSize <= 0 {
		poolSize = cfg.PoolSize
	}

	channel := args[0]
	params := parseParams(args[1:])

	pool := actioncable.NewPool(actioncable.PoolConfig{
		Size:              poolSize,
		Resolver:          withAuthToken(actioncable.StaticURL(cableURL), cfg, channel, logger),
		DialTimeout:       cfg.DialTimeout,
		MessageBufferSize: cfg.PoolMessageBufferSize,
		Logger:            logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := pool.Start(ctx); err != nil {
		return fmt.Errorf("start pool: %w", err)
	}
	defer pool.Close()

	if _, err := pool.Subscribe(channel, params, actioncable.Callbacks{}); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	health := healthprobe.New()
	health.SetReady(true)

	srv := httpserver.New(&httpserver.Config{
		Port:          cfg.HTTPPort,
		Logger:        logger,
		HealthChecker: health,
	})

	serverErrCh := make(chan error, 1)
	go func() { serverErrCh <- srv.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case msg, ok := <-pool.Messages():
			if !ok {
				return nil
			}
			fmt.Printf("[%s] %s\n", msg.Identifier, string(msg.Message))
		case err := <-serverErrCh:
			if err != nil {
				logger.Error("http-server-failed", zap.Error(err))
			}
			return err
		case <-sigCh:
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("http-server-shutdown-failed", zap.Error(err))
			}
			return nil
		}
	}
}
