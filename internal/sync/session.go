package sync

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"wearlog/internal/events"
	"wearlog/internal/metrics"
	"wearlog/internal/models"
	"wearlog/internal/queue"

	"github.com/rs/zerolog"
)

// Submitter is the remote API surface the replayer drives. Both calls
// must tolerate at-least-once delivery: an action whose submission
// failed with ambiguous status is requeued and resubmitted later.
type Submitter interface {
	SubmitWear(ctx context.Context, clothesIDs []string, date string) (*models.SyncResult, error)
	SubmitWash(ctx context.Context, clothesIDs []string, date string) (*models.SyncResult, error)
}

// Connectivity reports whether the server is currently reachable.
type Connectivity interface {
	Online() bool
}

// Queue is the durable action store the session drains. *queue.Store
// is the production implementation.
type Queue interface {
	DequeueAll(ctx context.Context) ([]queue.Action, error)
	Requeue(ctx context.Context, actions []queue.Action) ([]queue.Action, error)
	Len(ctx context.Context) int
}

// Session owns the replay of the offline queue for one agent process:
// the flush guard, the attempt counter and the single retry timer.
// Every wake-up source (connectivity transition, sync-wakeup message,
// manual retry, timer fire) funnels into Flush.
type Session struct {
	store  Queue
	remote Submitter
	conn   Connectivity
	policy RetryPolicy
	bus    *events.EventBus
	log    zerolog.Logger

	flushing atomic.Bool

	mu          sync.Mutex
	attempt     int
	timer       *time.Timer
	nextRetryAt time.Time
	stranded    []queue.Action
	onResult    func(*models.SyncResult)
}

// NewSession wires a session. bus may be nil when no one listens.
func NewSession(store Queue, remote Submitter, conn Connectivity, policy RetryPolicy, bus *events.EventBus, logger *zerolog.Logger) *Session {
	if policy.InitialDelay == 0 {
		policy = DefaultRetryPolicy()
	}

	log := zerolog.Nop()
	if logger != nil {
		log = logger.With().Str("component", "sync-session").Logger()
	}

	return &Session{
		store:  store,
		remote: remote,
		conn:   conn,
		policy: policy,
		bus:    bus,
		log:    log,
	}
}

// OnResult registers a callback invoked with the canonical state
// returned by each successful submission. Set it before the first
// flush; replacing it mid-flight is not synchronized.
func (s *Session) OnResult(fn func(*models.SyncResult)) {
	s.onResult = fn
}

// Flush claims the whole queue and replays it strictly in order.
// Re-entrant calls while a flush is running are a no-op. On the first
// failed action the unexecuted suffix is requeued and a retry timer is
// armed; the already-replayed prefix is gone for good.
func (s *Session) Flush(ctx context.Context) error {
	if !s.flushing.CompareAndSwap(false, true) {
		s.log.Debug().Msg("flush already in progress, skipping")
		return nil
	}
	defer s.flushing.Store(false)

	if !s.conn.Online() {
		s.log.Debug().Msg("offline, flush skipped")
		return nil
	}

	claimed, err := s.store.DequeueAll(ctx)
	if err != nil {
		s.scheduleRetry()
		metrics.IncFlush("error")
		return fmt.Errorf("claim queue: %w", err)
	}

	// A suffix that could not be requeued last time is only held in
	// memory; it replays ahead of whatever was claimed now.
	s.mu.Lock()
	if len(s.stranded) > 0 {
		claimed = queue.Dedupe(append(append([]queue.Action{}, s.stranded...), claimed...))
		s.stranded = nil
	}
	s.mu.Unlock()

	if len(claimed) == 0 {
		s.clearRetry()
		return nil
	}

	for i := range claimed {
		action := claimed[i]
		if !action.Valid() {
			// A kind this build does not know would wedge the queue
			// head forever. Drop it, same policy as corrupt state.
			s.log.Error().Str("type", action.Type).Msg("dropping unknown action kind")
			continue
		}

		if err := s.submit(ctx, action); err != nil {
			remaining, rqErr := s.store.Requeue(ctx, claimed[i:])
			if rqErr != nil {
				// Persisting the suffix failed too. Keep it on the
				// session so the next flush still replays it.
				remaining = claimed[i:]
				s.mu.Lock()
				s.stranded = append([]queue.Action{}, claimed[i:]...)
				s.mu.Unlock()
				s.log.Error().Err(rqErr).Int("held", len(remaining)).Msg("requeue after failed submit, holding suffix in memory")
			}
			s.scheduleRetry()
			metrics.IncFlush("failure")
			metrics.SetQueueDepth(len(remaining))

			attempt, nextAt := s.RetryState()
			_ = s.bus.PublishJSON(events.EventSyncFailed, events.SyncFailurePayload{
				Error:       err.Error(),
				Pending:     len(remaining),
				Attempt:     attempt,
				NextRetryAt: nextAt.UnixMilli(),
			})
			s.log.Warn().Err(err).
				Int("replayed", i).
				Int("pending", len(remaining)).
				Int("attempt", attempt).
				Time("next_retry_at", nextAt).
				Msg("flush stopped on failed action")
			return fmt.Errorf("replay %s: %w", action.Type, err)
		}
		metrics.IncReplayed(action.Type)
	}

	s.clearRetry()
	metrics.IncFlush("success")
	metrics.SetQueueDepth(s.store.Len(ctx))
	_ = s.bus.PublishJSON(events.EventQueueFlushed, map[string]int{"replayed": len(claimed)})
	s.log.Info().Int("replayed", len(claimed)).Msg("queue flushed")
	return nil
}

// FlushNow is the manual "retry now" path: it bypasses any scheduled
// delay but does not reset the attempt counter, so hammering the
// button cannot defeat backoff.
func (s *Session) FlushNow(ctx context.Context) error {
	return s.Flush(ctx)
}

// submit dispatches one action to the remote API and broadcasts the
// returned canonical state so UI consumers see incremental progress.
func (s *Session) submit(ctx context.Context, action queue.Action) error {
	var (
		res *models.SyncResult
		err error
	)
	switch action.Type {
	case queue.KindRecordWear:
		res, err = s.remote.SubmitWear(ctx, action.Payload.ClothesIDs, action.Payload.Date)
	case queue.KindRecordWash:
		res, err = s.remote.SubmitWash(ctx, action.Payload.ClothesIDs, action.Payload.Date)
	default:
		return fmt.Errorf("unknown action kind: %s", action.Type)
	}
	if err != nil {
		return err
	}

	if res != nil {
		if s.onResult != nil {
			s.onResult(res)
		}
		_ = s.bus.PublishJSON(events.EventStateApplied, events.StatePayload{
			Items:      len(res.Items),
			WearEvents: len(res.WearEvents),
			WashEvents: len(res.WashEvents),
			AppliedAt:  time.Now().UnixMilli(),
		})
	}
	return nil
}

// scheduleRetry arms the single backoff timer. A pre-existing timer is
// cancelled first; there is never more than one outstanding.
func (s *Session) scheduleRetry() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attempt++
	delay := s.policy.NextDelay(s.attempt)

	if s.timer != nil {
		s.timer.Stop()
	}
	s.nextRetryAt = time.Now().Add(delay)
	s.timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		s.timer = nil
		s.nextRetryAt = time.Time{}
		s.mu.Unlock()
		if err := s.Flush(context.Background()); err != nil {
			s.log.Debug().Err(err).Msg("scheduled retry failed")
		}
	})
}

// clearRetry resets the attempt counter and cancels any pending timer.
func (s *Session) clearRetry() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attempt = 0
	s.nextRetryAt = time.Time{}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// RetryState returns the current attempt counter and the absolute time
// of the next scheduled retry (zero when none). The UI derives its
// countdown from this; the value is read-only, never authoritative.
func (s *Session) RetryState() (int, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempt, s.nextRetryAt
}

// NextRetryAt returns the next scheduled retry time, zero when none.
func (s *Session) NextRetryAt() time.Time {
	_, at := s.RetryState()
	return at
}

// Close cancels the retry timer. An in-flight flush finishes its
// current action; it is not interrupted mid-submission.
func (s *Session) Close() {
	s.clearRetry()
}
