// Package signal carries the two-way wake-up contract between agent
// instances and the background sync broker: an agent registers a
// wake-up request after enqueueing offline work, and the broker
// broadcasts "now is a good time to flush" to every listening
// instance. The whole channel is best-effort; without a broker the
// connectivity monitor's online transition is the fallback path.
package signal

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// SyncTag identifies the single background-sync registration kind.
const SyncTag = "wearlog-sync"

const (
	wakeupChannel    = "wearlog:sync-wakeup"
	registrationsKey = "wearlog:sync-registrations"
)

// MessageSyncWakeup is the broker-to-instance broadcast type.
const MessageSyncWakeup = "sync-wakeup"

// Message is the wire format on the wakeup channel.
type Message struct {
	Type string `json:"type"`
}

// Bridge connects an agent (or the broker side) to the wake-up
// channel. A nil redis client means the capability is absent and every
// method is a silent no-op.
type Bridge struct {
	client *redis.Client
	log    zerolog.Logger
}

func NewBridge(client *redis.Client, logger *zerolog.Logger) *Bridge {
	log := zerolog.Nop()
	if logger != nil {
		log = logger.With().Str("component", "sync-signal").Logger()
	}
	return &Bridge{client: client, log: log}
}

// Supported reports whether a broker is configured.
func (b *Bridge) Supported() bool {
	return b != nil && b.client != nil
}

// RequestWakeup registers interest in a wake-up once the broker
// considers sync worthwhile. Best-effort: failures are logged, never
// surfaced, since the online-event path still covers the agent.
func (b *Bridge) RequestWakeup(ctx context.Context) {
	if !b.Supported() {
		return
	}
	if err := b.client.SAdd(ctx, registrationsKey, SyncTag).Err(); err != nil {
		b.log.Debug().Err(err).Msg("wakeup registration failed")
	}
}

// HasRegistrations reports whether any instance asked to be woken.
func (b *Bridge) HasRegistrations(ctx context.Context) bool {
	if !b.Supported() {
		return false
	}
	n, err := b.client.SCard(ctx, registrationsKey).Result()
	if err != nil {
		b.log.Debug().Err(err).Msg("read wakeup registrations")
		return false
	}
	return n > 0
}

// Broadcast publishes a sync-wakeup to every listening instance and
// consumes the outstanding registrations (a wake-up is one-shot; the
// next enqueue registers again).
func (b *Bridge) Broadcast(ctx context.Context) error {
	if !b.Supported() {
		return nil
	}
	payload, err := json.Marshal(Message{Type: MessageSyncWakeup})
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, wakeupChannel, payload).Err(); err != nil {
		return err
	}
	if err := b.client.Del(ctx, registrationsKey).Err(); err != nil {
		b.log.Debug().Err(err).Msg("clear wakeup registrations")
	}
	return nil
}

// Listen subscribes to the wakeup channel and invokes onWakeup for
// each sync-wakeup message until ctx is cancelled. Returns immediately
// when no broker is configured.
func (b *Bridge) Listen(ctx context.Context, onWakeup func()) {
	if !b.Supported() {
		return
	}

	sub := b.client.Subscribe(ctx, wakeupChannel)
	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var m Message
				if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
					b.log.Debug().Str("payload", msg.Payload).Msg("ignoring malformed wakeup message")
					continue
				}
				if m.Type != MessageSyncWakeup {
					continue
				}
				b.log.Info().Msg("sync wakeup received")
				onWakeup()
			}
		}
	}()
}
