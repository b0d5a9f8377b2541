package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"wearlog/internal/agent"
	"wearlog/internal/client"
	"wearlog/internal/config"
	"wearlog/internal/connectivity"
	"wearlog/internal/events"
	"wearlog/internal/logging"
	"wearlog/internal/metrics"
	"wearlog/internal/queue"
	"wearlog/internal/repository"
	wlsignal "wearlog/internal/signal"
	wsync "wearlog/internal/sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	if cfg.Agent.ServerURL == "" {
		logger.Error().Msg("agent.server_url is required")
		return os.ErrInvalid
	}

	store, err := initQueueStore(cfg, &logger)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	remote := client.New(cfg.Agent.ServerURL, cfg.Agent.APIKey, cfg.Agent.APIExtra)
	monitor := connectivity.NewMonitor(cfg.Agent.ServerURL, cfg.Agent.ProbeInterval(), &logger)

	bus := events.NewEventBus()
	subscribeSyncEvents(bus, &logger)
	state := agent.NewState()

	session := wsync.NewSession(store, remote, monitor, retryPolicy(cfg.Agent.Retry), bus, &logger)
	session.OnResult(state.Apply)
	defer session.Close()

	redisClient := initRedis(cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}
	bridge := wlsignal.NewBridge(redisClient, &logger)

	wireWakeups(ctx, monitor, bridge, session, state, remote, &logger)

	metrics.Register()
	metrics.SetQueueDepth(store.Len(ctx))

	// Первая проверка соединения выполняется синхронно внутри Start.
	monitor.Start(ctx)

	srv := agent.NewServer(cfg.Agent, store, session, remote, monitor, bridge, state, bus, &logger)
	return startServer(ctx, srv, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "agent-main").Logger()

	return cfg, logger, closer, nil
}

func initQueueStore(cfg *config.Config, logger *zerolog.Logger) (*queue.Store, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Agent.QueuePath), 0o755); err != nil {
		logger.Error().Err(err).Msg("create queue directory")
		return nil, err
	}

	store, err := queue.NewStore(cfg.Agent.QueuePath, logger)
	if err != nil {
		logger.Error().Err(err).Str("queue_path", cfg.Agent.QueuePath).Msg("init queue store")
		return nil, err
	}
	return store, nil
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if !cfg.Redis.Enabled || cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, sync wakeups disabled")
		return nil
	}
	return redisClient
}

func retryPolicy(cfg config.AgentRetryConfig) wsync.RetryPolicy {
	policy := wsync.DefaultRetryPolicy()
	if cfg.InitialDelaySeconds > 0 {
		policy.InitialDelay = time.Duration(cfg.InitialDelaySeconds) * time.Second
	}
	if cfg.MaxDelaySeconds > 0 {
		policy.MaxDelay = time.Duration(cfg.MaxDelaySeconds) * time.Second
	}
	if cfg.BackoffFactor > 0 {
		policy.BackoffFactor = cfg.BackoffFactor
	}
	return policy
}

// subscribeSyncEvents attaches the UI-facing consumers of the event
// bus: sync outcomes surface as structured log lines and the queue
// depth gauge tracks every transition.
func subscribeSyncEvents(bus *events.EventBus, logger *zerolog.Logger) {
	decode := func(ev *events.Event, target any) bool {
		if err := json.Unmarshal(ev.Payload, target); err != nil {
			logger.Error().Err(err).Str("event", ev.Type).Msg("event bus: decode payload")
			return false
		}
		return true
	}

	bus.Subscribe(events.EventActionQueued, func(ev *events.Event) error {
		var payload struct {
			Type    string `json:"type"`
			Pending int    `json:"pending"`
		}
		if !decode(ev, &payload) {
			return nil
		}
		metrics.SetQueueDepth(payload.Pending)
		logger.Info().Str("kind", payload.Type).Int("pending", payload.Pending).Msg("action queued")
		return nil
	})

	bus.Subscribe(events.EventQueueFlushed, func(ev *events.Event) error {
		var payload struct {
			Replayed int `json:"replayed"`
		}
		if !decode(ev, &payload) {
			return nil
		}
		logger.Info().Int("replayed", payload.Replayed).Msg("queue flushed")
		return nil
	})

	bus.Subscribe(events.EventSyncFailed, func(ev *events.Event) error {
		var payload events.SyncFailurePayload
		if !decode(ev, &payload) {
			return nil
		}
		metrics.SetQueueDepth(payload.Pending)
		logger.Warn().
			Str("error", payload.Error).
			Int("pending", payload.Pending).
			Int("attempt", payload.Attempt).
			Msg("sync failed, retry scheduled")
		return nil
	})

	bus.Subscribe(events.EventStateApplied, func(ev *events.Event) error {
		var payload events.StatePayload
		if !decode(ev, &payload) {
			return nil
		}
		logger.Debug().
			Int("items", payload.Items).
			Int("wear_events", payload.WearEvents).
			Int("wash_events", payload.WashEvents).
			Msg("canonical state applied")
		return nil
	})
}

// wireWakeups funnels every wake-up source into the session flush and
// refreshes the state mirror whenever the server becomes reachable.
func wireWakeups(ctx context.Context, monitor *connectivity.Monitor, bridge *wlsignal.Bridge, session *wsync.Session, state *agent.State, remote *client.Client, logger *zerolog.Logger) {
	monitor.OnOnline(func() {
		logger.Info().Msg("server reachable, flushing queue")
		go func() {
			if items, err := remote.ListItems(ctx); err == nil {
				state.SetCatalog(items)
			}
			if err := session.Flush(ctx); err != nil {
				logger.Debug().Err(err).Msg("flush after online transition failed")
			}
		}()
	})
	monitor.OnOffline(func() {
		logger.Warn().Msg("server unreachable, queueing locally")
	})

	if bridge.Supported() {
		bridge.Listen(ctx, func() {
			logger.Info().Msg("sync wakeup received")
			go func() {
				if err := session.Flush(ctx); err != nil {
					logger.Debug().Err(err).Msg("flush after wakeup failed")
				}
			}()
		})
	}
}

func startServer(ctx context.Context, srv *agent.Server, logger *zerolog.Logger) error {
	go func() {
		if err := srv.Start(); err != nil {
			logger.Error().Err(err).Msg("agent http server stopped")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_ = srv.Shutdown(shutdownCtx)
	logger.Info().Msg("agent stopped")
	return nil
}
