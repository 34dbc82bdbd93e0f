// streamtest connects to the broker, subscribes to one topic, and prints
// every order snapshot to the console.
// Usage: go run ./cmd/streamtest --config configs/sync.local.yaml --topic /topic/dashboard/cocina
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mesafina/ordersync/internal/config"
	"github.com/mesafina/ordersync/internal/connection"
	"github.com/mesafina/ordersync/internal/model"
	"github.com/mesafina/ordersync/internal/mux"
)

func main() {
	configPath := flag.String("config", "configs/sync.local.yaml", "path to config file")
	topic := flag.String("topic", "/topic/dashboard/cocina", "topic to subscribe")
	verbose := flag.Bool("verbose", false, "print full snapshot payloads")
	flag.Parse()

	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Load config
	cfg, err := config.LoadWithDefaults(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	conn := connection.New(connection.Config{
		URL:               cfg.Broker.URL,
		HeartbeatInterval: cfg.Broker.HeartbeatInterval,
		ReconnectDelay:    cfg.Broker.ReconnectDelay,
		DialTimeout:       cfg.Broker.DialTimeout,
		WriteTimeout:      cfg.Broker.WriteTimeout,
		BufferSize:        cfg.Broker.BufferSize,
	}, logger)

	m := mux.New(conn, logger)

	sub := m.Subscribe(*topic, func(o model.Order) {
		if *verbose {
			fmt.Printf("%s order=%d state=%s eta=%q customer=%q items=%d total=%.2f\n",
				*topic, o.ID, o.StateID, o.EstimatedTime, o.Customer.Name, len(o.Items), o.Total)
			return
		}
		fmt.Printf("%s order=%d state=%s\n", *topic, o.ID, o.StateID)
	})
	defer sub.Cancel()

	conn.Connect(ctx)
	defer conn.Disconnect()

	logger.Info("streaming", "topic", *topic, "broker", cfg.Broker.URL)
	m.Run(ctx)
}
