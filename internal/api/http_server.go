package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"wearlog/internal/config"
	"wearlog/internal/database"
	"wearlog/internal/domain"
	"wearlog/internal/events"
	"wearlog/internal/metrics"
	"wearlog/internal/models"

	"github.com/rs/zerolog"
)

// HTTPServer exposes the wardrobe CRUD API plus the wear/wash batch
// endpoints the offline sync engine replays against.
type HTTPServer struct {
	cfg    config.APIConfig
	db     *database.DB
	cache  domain.ItemCache
	bus    domain.EventPublisher
	server *http.Server
	auth   *HTTPAuth
	log    zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, db *database.DB, cache domain.ItemCache, bus domain.EventPublisher, logger *zerolog.Logger) *HTTPServer {
	log := zerolog.Nop()
	if logger != nil {
		log = logger.With().Str("component", "http-api").Logger()
	}

	mux := http.NewServeMux()
	srv := &HTTPServer{cfg: cfg, db: db, cache: cache, bus: bus, log: log}
	srv.auth = NewHTTPAuth(cfg)

	mux.HandleFunc("/healthz", srv.handleHealth)
	mux.HandleFunc("/api/v1/items", srv.handleItems)
	mux.HandleFunc("/api/v1/items/", srv.handleItem)
	mux.HandleFunc("/api/v1/wear", srv.handleWear)
	mux.HandleFunc("/api/v1/wash", srv.handleWash)
	mux.HandleFunc("/api/v1/history", srv.handleHistory)
	mux.HandleFunc("/api/v1/export", srv.handleExport)

	handler := srv.loggingMiddleware(srv.auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

// Handler returns the full middleware chain, for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type recordRequest struct {
	ClothesIDs []string `json:"clothesIds"`
	Date       string   `json:"date,omitempty"`
}

func (s *HTTPServer) handleWear(w http.ResponseWriter, r *http.Request) {
	s.handleRecord(w, r, "wear")
}

func (s *HTTPServer) handleWash(w http.ResponseWriter, r *http.Request) {
	s.handleRecord(w, r, "wash")
}

func (s *HTTPServer) handleRecord(w http.ResponseWriter, r *http.Request, kind string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("/api/v1/" + kind)

	var body recordRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(body.ClothesIDs) == 0 {
		writeError(w, http.StatusBadRequest, "clothesIds is required")
		return
	}
	if body.Date != "" {
		if _, err := time.Parse(models.DateLayout, body.Date); err != nil {
			writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
			return
		}
	}

	var (
		result *models.SyncResult
		err    error
	)
	if kind == "wear" {
		result, err = s.db.RecordWear(r.Context(), body.ClothesIDs, body.Date)
	} else {
		result, err = s.db.RecordWash(r.Context(), body.ClothesIDs, body.Date)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Counters changed; cached catalog is stale.
	if s.cache != nil {
		_ = s.cache.Invalidate(r.Context())
	}

	metrics.IncRecords(kind, len(body.ClothesIDs))
	eventType := events.EventWearRecorded
	if kind == "wash" {
		eventType = events.EventWashRecorded
	}
	if s.bus != nil {
		_ = s.bus.PublishJSON(eventType, map[string]any{
			"clothes_ids": body.ClothesIDs,
			"date":        body.Date,
		})
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleItems(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listItems(w, r)
	case http.MethodPost:
		s.createItem(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) listItems(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("/api/v1/items")

	if s.cache != nil {
		if items, err := s.cache.GetItems(r.Context()); err == nil && items != nil {
			writeJSON(w, http.StatusOK, map[string]any{"items": items})
			return
		}
	}

	items, err := s.db.GetActiveItems(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load items")
		return
	}
	if items == nil {
		items = []models.Item{}
	}
	if s.cache != nil {
		_ = s.cache.SetItems(r.Context(), items)
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *HTTPServer) createItem(w http.ResponseWriter, r *http.Request) {
	var item models.Item
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(&item); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if item.Name == "" || item.Category == "" {
		writeError(w, http.StatusBadRequest, "name and category are required")
		return
	}
	item.IsActive = true

	if err := s.db.CreateItem(r.Context(), &item); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if s.cache != nil {
		_ = s.cache.Invalidate(r.Context())
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *HTTPServer) handleItem(w http.ResponseWriter, r *http.Request) {
	const prefix = "/api/v1/items/"
	id := r.URL.Path[len(prefix):]
	if id == "" {
		writeError(w, http.StatusBadRequest, "item id is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		item, err := s.db.GetItemByID(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusNotFound, "item not found")
			return
		}
		writeJSON(w, http.StatusOK, item)

	case http.MethodPatch:
		item, err := s.db.GetItemByID(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusNotFound, "item not found")
			return
		}
		if err := json.NewDecoder(r.Body).Decode(item); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		item.ID = id
		if err := s.db.UpdateItem(r.Context(), item); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if s.cache != nil {
			_ = s.cache.Invalidate(r.Context())
		}
		writeJSON(w, http.StatusOK, item)

	case http.MethodDelete:
		if err := s.db.DeactivateItem(r.Context(), id); err != nil {
			writeError(w, http.StatusNotFound, "item not found")
			return
		}
		if s.cache != nil {
			_ = s.cache.Invalidate(r.Context())
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("/api/v1/history")

	from, to, err := parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	wearEvents, err := s.db.GetWearEvents(r.Context(), from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	washEvents, err := s.db.GetWashEvents(r.Context(), from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"wearEvents": wearEvents,
		"washEvents": washEvents,
	})
}

func parseRange(r *http.Request) (string, string, error) {
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if to == "" {
		to = time.Now().Format(models.DateLayout)
	}
	if from == "" {
		from = time.Now().AddDate(0, -1, 0).Format(models.DateLayout)
	}
	for _, d := range []string{from, to} {
		if _, err := time.Parse(models.DateLayout, d); err != nil {
			return "", "", fmt.Errorf("invalid date format: %s", d)
		}
	}
	return from, to, nil
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("dur", time.Since(start)).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
