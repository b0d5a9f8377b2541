package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"wearlog/internal/api"
	"wearlog/internal/config"
	"wearlog/internal/database"
	"wearlog/internal/domain"
	"wearlog/internal/events"
	"wearlog/internal/logging"
	"wearlog/internal/metrics"
	"wearlog/internal/models"
	"wearlog/internal/repository"
	wlsignal "wearlog/internal/signal"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
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

	items, err := loadItems(cfg, &logger)
	if err != nil {
		return err
	}

	db, err := initDatabase(cfg, items, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if !cfg.API.Enabled {
		logger.Warn().Msg("API is disabled in config, but starting server application. Check your config.")
	}

	redisClient := initRedis(cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	cache := initItemCache(redisClient, &logger)
	bus := events.NewEventBus()
	subscribeRecordEvents(bus, &logger)
	bridge := wlsignal.NewBridge(redisClient, &logger)

	httpServer := api.NewHTTPServer(cfg.API, db, cache, bus, &logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Backup.Enabled {
		backupService := database.NewBackupService(cfg.Database.Path, cfg.Backup, &logger)
		go backupService.Start(ctx)
	}

	startMetrics(ctx, cfg, &logger)

	// Агенты, оставившие регистрацию, ждут сигнала о том что сервер
	// снова жив.
	if bridge.Supported() && bridge.HasRegistrations(ctx) {
		if err := bridge.Broadcast(ctx); err != nil {
			logger.Warn().Err(err).Msg("sync wakeup broadcast failed")
		}
	}

	return startServer(ctx, httpServer, cfg, &logger)
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
	logger := baseLogger.With().Str("component", "server-main").Logger()

	return cfg, logger, closer, nil
}

// loadItems prefers the standalone wardrobe file and falls back to the
// items embedded in the main config.
func loadItems(cfg *config.Config, logger *zerolog.Logger) ([]models.Item, error) {
	itemsPath := os.Getenv("ITEMS_PATH")
	if itemsPath == "" {
		itemsPath = "configs/items.yaml"
	}

	itemsData, err := os.ReadFile(itemsPath)
	if err != nil {
		if len(cfg.Items) > 0 {
			return cfg.Items, nil
		}
		logger.Error().Err(err).Str("items_path", itemsPath).Msg("read items")
		return nil, err
	}

	var itemsConfig struct {
		Items []models.Item `yaml:"items"`
	}
	if err := yaml.Unmarshal(itemsData, &itemsConfig); err != nil {
		logger.Error().Err(err).Str("items_path", itemsPath).Msg("parse items")
		return nil, err
	}

	if err := config.ValidateItems(itemsConfig.Items); err != nil {
		logger.Error().Err(err).Msg("items validation failed")
		return nil, err
	}

	return itemsConfig.Items, nil
}

func initDatabase(cfg *config.Config, items []models.Item, logger *zerolog.Logger) (*database.DB, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		logger.Error().Err(err).Msg("create database directory")
		return nil, err
	}

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, err
	}

	if err := db.SeedItems(context.Background(), items); err != nil {
		logger.Error().Err(err).Msg("seed items")
	}
	return db, nil
}

// subscribeRecordEvents logs every recorded batch, the server-side
// counterpart of the agent's sync notifications.
func subscribeRecordEvents(bus *events.EventBus, logger *zerolog.Logger) {
	handler := func(kind string) events.EventHandler {
		return func(ev *events.Event) error {
			var payload struct {
				ClothesIDs []string `json:"clothes_ids"`
				Date       string   `json:"date"`
			}
			if err := json.Unmarshal(ev.Payload, &payload); err != nil {
				logger.Error().Err(err).Str("event", ev.Type).Msg("event bus: decode payload")
				return nil
			}
			logger.Info().
				Str("kind", kind).
				Int("items", len(payload.ClothesIDs)).
				Str("date", payload.Date).
				Msg("batch recorded")
			return nil
		}
	}

	bus.Subscribe(events.EventWearRecorded, handler("wear"))
	bus.Subscribe(events.EventWashRecorded, handler("wash"))
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if !cfg.Redis.Enabled || cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

func initItemCache(redisClient *redis.Client, logger *zerolog.Logger) domain.ItemCache {
	ttl := time.Duration(models.ItemsCacheTTL) * time.Second
	memory := repository.NewMemoryItemCache(ttl)
	if redisClient == nil {
		return memory
	}
	return repository.NewFailoverItemCache(repository.NewRedisItemCache(redisClient, ttl), memory, logger)
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startServer(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	go func() {
		if !cfg.API.HTTP.Enabled {
			return
		}
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Msg("server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
