package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cablehq/actioncable-go/pkg/actioncable"
	"github.com/cablehq/actioncable-go/pkg/config"
	"github.com/cablehq/actioncable-go/pkg/configcache"
	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var subscribeCmd = &cobra.Command{
	Use:   "subscribe <channel> [key=value ...]",
	Short: "Subscribe to a channel and print inbound messages",
	Long: `Connects to the configured cable server, subscribes to <channel>
with the given params, and prints every received message as JSON until
interrupted.

Example:
  cable-sub subscribe ChatChannel room=lobby`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSubscribe,
}

func init() {
	rootCmd.AddCommand(subscribeCmd)
}

func runSubscribe(cmd *cobra.Command, args []string) error {
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

	channel := args[0]
	params := parseParams(args[1:])

	resolver := withAuthToken(actioncable.StaticURL(cableURL), cfg, channel, logger)
	consumer := actioncable.NewConsumer(resolver, actioncable.WithLogger(logger), actioncable.WithDialTimeout(cfg.DialTimeout))

	if !consumer.Connect() {
		return errors.New("connect to cable server failed")
	}
	defer consumer.Disconnect()

	connected := make(chan struct{}, 1)
	sub, err := consumer.Subscriptions().Create(channel, params, actioncable.Callbacks{
		Connected: func() {
			logger.Info("subscription-confirmed", zap.String("channel", channel))
			select {
			case connected <- struct{}{}:
			default:
			}
		},
		Rejected: func() {
			logger.Error("subscription-rejected", zap.String("channel", channel))
		},
		Disconnected: func(willAttemptReconnect bool) {
			logger.Warn("connection-lost", zap.Bool("will-reconnect", willAttemptReconnect))
		},
		Received: func(message json.RawMessage) {
			fmt.Println(string(message))
		},
	})
	if err != nil {
		return fmt.Errorf("create subscription: %w", err)
	}
	defer sub.Unsubscribe()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-connected:
	case <-time.After(cfg.DialTimeout):
		logger.Warn("subscription-confirm-timeout", zap.String("channel", channel))
	case <-sigCh:
		return nil
	}

	<-sigCh
	fmt.Fprintln(os.Stderr, "shutting down...")
	return nil
}

// parseParams converts "key=value" CLI args into a params map. Args that
// lack an "=" are ignored.
func parseParams(args []string) map[string]any {
	params := make(map[string]any, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			continue
		}
		params[key] = value
	}
	return params
}
