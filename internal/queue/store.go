package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// queueKey is the fixed storage key the whole pending-action list
// lives under. The queue is always written as one value, never
// appended row by row.
const queueKey = "pending-actions"

// Store persists the pending-action queue in a local SQLite database.
// All mutations go through a load-modify-save cycle under a single
// mutex, so DequeueAll has exactly one claimant even with concurrent
// flush triggers.
type Store struct {
	db  *sql.DB
	mu  sync.Mutex
	log zerolog.Logger
}

// NewStore opens (or creates) the queue database at path.
func NewStore(path string, logger *zerolog.Logger) (*Store, error) {
	// Создаем директорию для БД, если её нет
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create queue directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open queue database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to queue database: %w", err)
	}

	query := `CREATE TABLE IF NOT EXISTS queue_state (
        key TEXT PRIMARY KEY,
        value TEXT NOT NULL
    )`
	if _, err := db.Exec(query); err != nil {
		return nil, fmt.Errorf("failed to create queue table: %w", err)
	}

	log := zerolog.Nop()
	if logger != nil {
		log = logger.With().Str("component", "queue-store").Logger()
	}

	return &Store{db: db, log: log}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns the persisted queue. It never fails: a missing or
// unparseable value is an empty queue. Losing a corrupt queue is
// acceptable; refusing to start the agent is not.
func (s *Store) Load(ctx context.Context) []Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

func (s *Store) load(ctx context.Context) []Action {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM queue_state WHERE key = ?`, queueKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		s.log.Warn().Err(err).Msg("read queue state, treating as empty")
		return nil
	}

	var actions []Action
	if err := json.Unmarshal([]byte(raw), &actions); err != nil {
		s.log.Warn().Err(err).Msg("corrupt queue state discarded")
		return nil
	}
	return actions
}

// Save overwrites the persisted queue with the given actions.
func (s *Store) Save(ctx context.Context, actions []Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, actions)
}

func (s *Store) save(ctx context.Context, actions []Action) error {
	if actions == nil {
		actions = []Action{}
	}
	data, err := json.Marshal(actions)
	if err != nil {
		return fmt.Errorf("encode queue: %w", err)
	}
	query := `INSERT INTO queue_state (key, value) VALUES (?, ?)
              ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	if _, err := s.db.ExecContext(ctx, query, queueKey, string(data)); err != nil {
		return fmt.Errorf("persist queue: %w", err)
	}
	return nil
}

// Enqueue appends the action, dropping any older entry with the same
// Key first, and returns the resulting queue for display.
func (s *Store) Enqueue(ctx context.Context, action Action) ([]Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.load(ctx)
	next := make([]Action, 0, len(current)+1)
	for _, a := range current {
		if a.Key() != action.Key() {
			next = append(next, a)
		}
	}
	next = append(next, action)

	if err := s.save(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}

// DequeueAll atomically claims the whole queue: it returns what was
// persisted and leaves an empty queue behind. The replayer is the sole
// caller; a second concurrent claim always observes an empty queue.
func (s *Store) DequeueAll(ctx context.Context) ([]Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	claimed := s.load(ctx)
	if len(claimed) == 0 {
		return nil, nil
	}
	if err := s.save(ctx, nil); err != nil {
		return nil, err
	}
	return claimed, nil
}

// Requeue puts back actions that could not be replayed. Anything
// enqueued while the flush was in flight stays, appended after the
// returned suffix, and the whole list is re-deduped.
func (s *Store) Requeue(ctx context.Context, actions []Action) ([]Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := Dedupe(append(append([]Action{}, actions...), s.load(ctx)...))
	if err := s.save(ctx, merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// Peek returns the queue without clearing it.
func (s *Store) Peek(ctx context.Context) []Action {
	return s.Load(ctx)
}

// Len returns the number of pending actions, for UI badges.
func (s *Store) Len(ctx context.Context) int {
	return len(s.Load(ctx))
}
