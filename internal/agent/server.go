package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"wearlog/internal/config"
	"wearlog/internal/events"
	"wearlog/internal/metrics"
	"wearlog/internal/models"
	"wearlog/internal/queue"
	"wearlog/internal/signal"
	wsync "wearlog/internal/sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Remote is everything the agent needs from the server API.
type Remote interface {
	wsync.Submitter
	ListItems(ctx context.Context) ([]models.Item, error)
}

// Server is the loopback HTTP surface a local UI talks to. Records
// taken while the server is reachable are submitted directly; anything
// else lands in the durable queue and rides the next flush.
type Server struct {
	cfg     config.AgentConfig
	store   *queue.Store
	session *wsync.Session
	remote  Remote
	conn    wsync.Connectivity
	bridge  *signal.Bridge
	state   *State
	bus     *events.EventBus
	server  *http.Server
	log     zerolog.Logger
}

func NewServer(cfg config.AgentConfig, store *queue.Store, session *wsync.Session, remote Remote, conn wsync.Connectivity, bridge *signal.Bridge, state *State, bus *events.EventBus, logger *zerolog.Logger) *Server {
	log := zerolog.Nop()
	if logger != nil {
		log = logger.With().Str("component", "agent-http").Logger()
	}

	srv := &Server{
		cfg:     cfg,
		store:   store,
		session: session,
		remote:  remote,
		conn:    conn,
		bridge:  bridge,
		state:   state,
		bus:     bus,
		log:     log,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", srv.handleHealth)
	mux.HandleFunc("/wear", srv.handleWear)
	mux.HandleFunc("/wash", srv.handleWash)
	mux.HandleFunc("/flush", srv.handleFlush)
	mux.HandleFunc("/queue", srv.handleQueue)
	mux.HandleFunc("/state", srv.handleState)
	mux.Handle("/metrics", promhttp.Handler())

	srv.server = &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", cfg.ListenPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv
}

// Handler returns the route table, for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("agent HTTP listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"online":  s.conn.Online(),
		"pending": s.store.Len(r.Context()),
	})
}

type recordRequest struct {
	ClothesIDs []string `json:"clothesIds"`
	Date       string   `json:"date,omitempty"`
}

func (s *Server) handleWear(w http.ResponseWriter, r *http.Request) {
	s.handleRecord(w, r, queue.KindRecordWear)
}

func (s *Server) handleWash(w http.ResponseWriter, r *http.Request) {
	s.handleRecord(w, r, queue.KindRecordWash)
}

func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request, kind string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body recordRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
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

	// The direct path is only safe when nothing is queued ahead of this
	// record; otherwise it would overtake older actions.
	if s.conn.Online() && s.store.Len(r.Context()) == 0 {
		res, err := s.submit(r.Context(), kind, body)
		if err == nil {
			s.state.Apply(res)
			writeJSON(w, http.StatusOK, map[string]any{
				"status": "synced",
				"result": res,
			})
			return
		}
		s.log.Warn().Err(err).Str("kind", kind).Msg("direct submit failed, queueing")
	}

	s.enqueue(w, r, kind, body)
}

func (s *Server) submit(ctx context.Context, kind string, body recordRequest) (*models.SyncResult, error) {
	if kind == queue.KindRecordWear {
		return s.remote.SubmitWear(ctx, body.ClothesIDs, body.Date)
	}
	return s.remote.SubmitWash(ctx, body.ClothesIDs, body.Date)
}

func (s *Server) enqueue(w http.ResponseWriter, r *http.Request, kind string, body recordRequest) {
	action := queue.NewAction(kind, body.ClothesIDs, body.Date)
	pending, err := s.store.Enqueue(r.Context(), action)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to queue action")
		return
	}
	metrics.SetQueueDepth(len(pending))
	_ = s.bus.PublishJSON(events.EventActionQueued, map[string]any{
		"type":    kind,
		"pending": len(pending),
	})

	// Best effort: ask anyone listening to wake us once the server is
	// back, and try a flush right away in case we only just came back.
	if s.bridge.Supported() {
		s.bridge.RequestWakeup(r.Context())
	}
	if s.conn.Online() {
		go func() {
			if err := s.session.Flush(context.Background()); err != nil {
				s.log.Debug().Err(err).Msg("post-enqueue flush failed")
			}
		}()
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":  "queued",
		"pending": len(pending),
	})
}

func (s *Server) handleFlush(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	flushErr := s.session.FlushNow(r.Context())
	attempt, nextAt := s.session.RetryState()

	resp := map[string]any{
		"pending": s.store.Len(r.Context()),
		"attempt": attempt,
	}
	if !nextAt.IsZero() {
		resp["next_retry_at"] = nextAt.UnixMilli()
	}
	if flushErr != nil {
		resp["error"] = flushErr.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	actions := s.store.Peek(r.Context())
	attempt, nextAt := s.session.RetryState()

	resp := map[string]any{
		"pending": len(actions),
		"actions": actions,
		"attempt": attempt,
		"online":  s.conn.Online(),
	}
	if !nextAt.IsZero() {
		resp["next_retry_at"] = nextAt.UnixMilli()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	resp := map[string]any{"items": s.state.Items()}
	if at := s.state.UpdatedAt(); !at.IsZero() {
		resp["updated_at"] = at.UnixMilli()
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}
