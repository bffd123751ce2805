package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/dispatchmux/dispatchmux/broker"
	"github.com/dispatchmux/dispatchmux/config"
	"github.com/dispatchmux/dispatchmux/core"
	"github.com/dispatchmux/dispatchmux/core/kv"
	"github.com/dispatchmux/dispatchmux/core/middleware"
	_ "github.com/dispatchmux/dispatchmux/core/routers"

	// Import broker plugins to trigger self-registration via init().
	_ "github.com/dispatchmux/dispatchmux/plugins/kafka"
	_ "github.com/dispatchmux/dispatchmux/plugins/nats"
	_ "github.com/dispatchmux/dispatchmux/plugins/rabbitmq"
)

func newRunCommand() *cobra.Command {
	var configPath string
	var envPrefix string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a dispatcher worker from a config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDispatcher(cmd, configPath, envPrefix)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "dispatchmux.yaml", "path to the dispatcher config file")
	cmd.Flags().StringVar(&envPrefix, "env-prefix", "DISPATCHMUX_", "environment variable prefix for config overrides")
	return cmd
}

func runDispatcher(cmd *cobra.Command, configPath, envPrefix string) error {
	cfg, err := config.New(
		config.WithFile(configPath),
		config.WithEnvPrefix(envPrefix),
		config.WithEnvExpansion(),
		config.WithFlags(cmd.Flags()),
	)
	if err != nil {
		return fmt.Errorf("dispatchmux: load config: %w", err)
	}

	b, err := broker.Create(cfg.Broker.Kind, broker.Config{
		Brokers: cfg.Broker.Brokers,
		Group:   cfg.Broker.Group,
	})
	if err != nil {
		return fmt.Errorf("dispatchmux: create broker: %w", err)
	}

	store := kv.NewRedisStore(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer store.Close()

	d := core.NewDispatcher(b)
	d.Use(middleware.Recovery())
	d.Use(middleware.Logging())

	routerCfg := cfg.RouterSubtree()
	routerCfg["store"] = kv.Store(store)

	mws, err := core.NewMiddlewareChain(cfg.Middleware, core.Config{"store": kv.Store(store)})
	if err != nil {
		return fmt.Errorf("dispatchmux: configure middleware: %w", err)
	}

	if err := d.Configure(cfg.DispatcherConfig(), mws, cfg.RouterClass, routerCfg); err != nil {
		return fmt.Errorf("dispatchmux: configure dispatcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Printf("[dispatchmux] shutting down...")
		cancel()
	}()

	log.Printf("[dispatchmux] starting dispatcher %q", cfg.DispatcherName)
	return d.Start(ctx)
}
