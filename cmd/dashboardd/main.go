// dashboardd runs the live order-state synchronization daemon: one broker
// connection shared by every configured dashboard view, seeded and healed
// through the backend REST API.
// Usage: go run ./cmd/dashboardd --config configs/sync.local.yaml
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mesafina/ordersync/internal/api"
	"github.com/mesafina/ordersync/internal/command"
	"github.com/mesafina/ordersync/internal/config"
	"github.com/mesafina/ordersync/internal/connection"
	"github.com/mesafina/ordersync/internal/model"
	"github.com/mesafina/ordersync/internal/mux"
	"github.com/mesafina/ordersync/internal/poller"
	"github.com/mesafina/ordersync/internal/version"
	"github.com/mesafina/ordersync/internal/view"
)

func main() {
	configPath := flag.String("config", "configs/sync.local.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting dashboardd",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"broker_url", cfg.Broker.URL,
		"views", len(cfg.Views),
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Create REST API client
	apiClient := api.NewClient(
		cfg.API.BaseURL,
		cfg.API.Token,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, time.Second),
	)

	// Create the shared broker connection
	conn := connection.New(connection.Config{
		URL:               cfg.Broker.URL,
		HeartbeatInterval: cfg.Broker.HeartbeatInterval,
		ReconnectDelay:    cfg.Broker.ReconnectDelay,
		DialTimeout:       cfg.Broker.DialTimeout,
		WriteTimeout:      cfg.Broker.WriteTimeout,
		BufferSize:        cfg.Broker.BufferSize,
	}, logger)

	// Multiplexer over the shared connection
	m := mux.New(conn, logger)

	// One reconciler per configured view
	views := make([]*view.Reconciler, 0, len(cfg.Views))
	sinks := make([]poller.ViewSink, 0, len(cfg.Views))
	for _, vc := range cfg.Views {
		states, err := vc.RelevantStates()
		if err != nil {
			logger.Error("invalid view config", "error", err)
			os.Exit(1)
		}
		r := view.New(vc.Name, vc.Topic, states, logger)
		r.Attach(m)
		views = append(views, r)
		sinks = append(sinks, r)
		logger.Info("view registered", "view", vc.Name, "topic", vc.Topic, "states", vc.States)
	}

	// Secondary push write path, only when explicitly enabled. REST is the
	// write path of record.
	var sender *command.Sender
	if cfg.Command.Enabled {
		sender = command.New(conn, cfg.Command.Destination, logger)
		logger.Warn("push command path enabled; REST remains authoritative",
			"destination", cfg.Command.Destination,
		)
	}

	// Periodic reseeder, kicked on every reconnect
	reseeder := poller.New(poller.Config{
		Interval: cfg.Reseed.Interval,
		Timeout:  cfg.Reseed.Timeout,
	}, apiClient, sinks, logger)

	conn.OnConnect(reseeder.Kick)
	conn.Connect(ctx)

	if err := reseeder.Start(ctx); err != nil {
		logger.Error("failed to start reseeder", "error", err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		m.Run(gctx)
		return nil
	})

	healthSrv := newHealthServer(cfg, conn, m, views, apiClient, sender, logger)
	g.Go(func() error {
		err := healthSrv.ListenAndServe()
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return healthSrv.Shutdown(shutdownCtx)
	})

	logger.Info("dashboardd running", "health_port", cfg.Health.Port)

	if err := g.Wait(); err != nil {
		logger.Error("daemon error", "error", err)
	}

	// Orderly teardown: stop reseeding, detach views, drop the connection.
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if err := reseeder.Stop(stopCtx); err != nil {
		logger.Warn("reseeder stop", "error", err)
	}
	for _, r := range views {
		r.Close()
	}
	conn.Disconnect()

	logger.Info("dashboardd stopped")
}

// newHealthServer serves liveness, stats, and the operator state-change hook.
func newHealthServer(
	cfg *config.SyncConfig,
	conn *connection.Conn,
	m *mux.Mux,
	views []*view.Reconciler,
	apiClient *api.Client,
	sender *command.Sender,
	logger *slog.Logger,
) *http.Server {
	muxer := http.NewServeMux()

	muxer.HandleFunc(cfg.Health.Path, func(w http.ResponseWriter, r *http.Request) {
		type viewStats struct {
			Name   string `json:"name"`
			Topic  string `json:"topic"`
			Orders int    `json:"orders"`
		}

		vs := make([]viewStats, 0, len(views))
		for _, v := range views {
			vs = append(vs, viewStats{Name: v.Name(), Topic: v.Topic(), Orders: v.Len()})
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"version":    version.String(),
			"connection": conn.State().String(),
			"dispatch":   m.Stats(),
			"views":      vs,
		})
	})

	// Operator hook to advance an order. Commits through REST unless the
	// deprecated push command path was explicitly enabled in config.
	muxer.HandleFunc("POST /orders/{id}/state", func(w http.ResponseWriter, r *http.Request) {
		orderID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil {
			http.Error(w, "bad order id", http.StatusBadRequest)
			return
		}

		var req struct {
			NewStateID    model.OrderState `json:"newStateId"`
			EstimatedTime string           `json:"estimatedTime"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request body", http.StatusBadRequest)
			return
		}
		if !req.NewStateID.Valid() {
			http.Error(w, "unknown state id", http.StatusBadRequest)
			return
		}

		if sender != nil {
			sender.SendStateChange(orderID, req.NewStateID, req.EstimatedTime)
			w.WriteHeader(http.StatusAccepted)
			return
		}

		if err := apiClient.UpdateOrderState(r.Context(), orderID, req.NewStateID, req.EstimatedTime); err != nil {
			logger.Warn("state change commit failed", "order_id", orderID, "error", err)
			http.Error(w, "state change failed", http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Health.Port),
		Handler: muxer,
	}
}
