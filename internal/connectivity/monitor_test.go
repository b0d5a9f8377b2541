package connectivity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialCheckOffline(t *testing.T) {
	probe := func(ctx context.Context) bool { return false }
	m := NewMonitorWithProbe(probe, time.Hour, nil)

	var flushes atomic.Int32
	m.OnOnline(func() { flushes.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	assert.False(t, m.Online())
	assert.Zero(t, flushes.Load(), "starting offline must not trigger a flush")
}

func TestInitialCheckOnlineTriggersFlush(t *testing.T) {
	probe := func(ctx context.Context) bool { return true }
	m := NewMonitorWithProbe(probe, time.Hour, nil)

	var flushes atomic.Int32
	m.OnOnline(func() { flushes.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	assert.True(t, m.Online())
	assert.Equal(t, int32(1), flushes.Load())
}

func TestTransitionsFireEdgeTriggered(t *testing.T) {
	var up atomic.Bool
	probe := func(ctx context.Context) bool { return up.Load() }
	m := NewMonitorWithProbe(probe, 10*time.Millisecond, nil)

	var online, offline atomic.Int32
	m.OnOnline(func() { online.Add(1) })
	m.OnOffline(func() { offline.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)
	require.False(t, m.Online())

	up.Store(true)
	require.Eventually(t, m.Online, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return online.Load() == 1 }, time.Second, 5*time.Millisecond)

	// Staying online fires nothing further.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), online.Load())

	up.Store(false)
	require.Eventually(t, func() bool { return !m.Online() }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return offline.Load() >= 1 }, time.Second, 5*time.Millisecond)
}

func TestHTTPProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := NewMonitor(srv.URL, time.Hour, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)
	assert.True(t, m.Online())

	srv.Close()
	m.check(ctx, false)
	assert.False(t, m.Online())
}
