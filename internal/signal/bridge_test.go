package signal

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBridge(t *testing.T) (*Bridge, *miniredis.Miniredis) {
	t.Helper()
	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewBridge(client, nil), s
}

func TestWakeupRoundTrip(t *testing.T) {
	bridge, _ := newTestBridge(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bridge.RequestWakeup(ctx)
	assert.True(t, bridge.HasRegistrations(ctx))

	woken := make(chan struct{}, 1)
	bridge.Listen(ctx, func() { woken <- struct{}{} })

	// Give the subscriber a moment to attach before broadcasting.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, bridge.Broadcast(ctx))

	select {
	case <-woken:
	case <-time.After(2 * time.Second):
		t.Fatal("expected wakeup to reach the listener")
	}

	// A wake-up is one-shot: registrations are consumed.
	assert.False(t, bridge.HasRegistrations(ctx))
}

func TestListenerIgnoresOtherMessages(t *testing.T) {
	bridge, s := newTestBridge(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	woken := make(chan struct{}, 2)
	bridge.Listen(ctx, func() { woken <- struct{}{} })
	time.Sleep(50 * time.Millisecond)

	s.Publish(wakeupChannel, `{"type":"something-else"}`)
	s.Publish(wakeupChannel, `not json`)
	s.Publish(wakeupChannel, `{"type":"sync-wakeup"}`)

	select {
	case <-woken:
	case <-time.After(2 * time.Second):
		t.Fatal("expected the valid wakeup to get through")
	}
	select {
	case <-woken:
		t.Fatal("malformed messages must not trigger a flush")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestNoBrokerIsSilentNoop(t *testing.T) {
	bridge := NewBridge(nil, nil)
	ctx := context.Background()

	assert.False(t, bridge.Supported())
	bridge.RequestWakeup(ctx)
	bridge.Listen(ctx, func() { t.Fatal("listener must not fire without a broker") })
	assert.NoError(t, bridge.Broadcast(ctx))
	assert.False(t, bridge.HasRegistrations(ctx))
}
