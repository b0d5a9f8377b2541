// Package connectivity watches reachability of the wearlog server and
// fires edge-triggered callbacks on online/offline transitions.
package connectivity

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Probe reports whether the server is reachable right now.
type Probe func(ctx context.Context) bool

// Monitor polls a probe on an interval and keeps the latest verdict.
// Callbacks fire only on transitions; flush triggers hang off OnOnline.
type Monitor struct {
	probe    Probe
	interval time.Duration
	log      zerolog.Logger

	online  atomic.Bool
	started atomic.Bool

	mu        sync.Mutex
	onOnline  []func()
	onOffline []func()
}

// NewMonitor builds a monitor probing GET <serverURL>/healthz.
func NewMonitor(serverURL string, interval time.Duration, logger *zerolog.Logger) *Monitor {
	client := &http.Client{Timeout: 3 * time.Second}
	url := strings.TrimRight(serverURL, "/") + "/healthz"

	probe := func(ctx context.Context) bool {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return false
		}
		resp, err := client.Do(req)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode < 500
	}

	return NewMonitorWithProbe(probe, interval, logger)
}

// NewMonitorWithProbe builds a monitor with a custom probe.
func NewMonitorWithProbe(probe Probe, interval time.Duration, logger *zerolog.Logger) *Monitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	log := zerolog.Nop()
	if logger != nil {
		log = logger.With().Str("component", "connectivity").Logger()
	}
	return &Monitor{probe: probe, interval: interval, log: log}
}

// Online returns the last observed verdict.
func (m *Monitor) Online() bool {
	return m.online.Load()
}

// OnOnline registers a callback for offline-to-online transitions.
// The initial startup check counts as a transition when it lands online.
func (m *Monitor) OnOnline(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onOnline = append(m.onOnline, fn)
}

// OnOffline registers a callback for online-to-offline transitions.
func (m *Monitor) OnOffline(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onOffline = append(m.onOffline, fn)
}

// Start performs the initial check synchronously, so an agent started
// while offline never attempts a flush, then polls until ctx is done.
func (m *Monitor) Start(ctx context.Context) {
	if !m.started.CompareAndSwap(false, true) {
		return
	}

	m.check(ctx, true)

	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.check(ctx, false)
			}
		}
	}()
}

func (m *Monitor) check(ctx context.Context, initial bool) {
	now := m.probe(ctx)
	was := m.online.Swap(now)
	if now == was && !initial {
		return
	}

	if now {
		// Treat a first check that lands online as a transition too:
		// pending work from a previous run should flush right away.
		m.log.Info().Msg("server reachable")
		for _, fn := range m.callbacks(true) {
			fn()
		}
	} else if was || initial {
		m.log.Warn().Msg("server unreachable, going offline")
		for _, fn := range m.callbacks(false) {
			fn()
		}
	}
}

func (m *Monitor) callbacks(online bool) []func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if online {
		return append([]func(){}, m.onOnline...)
	}
	return append([]func(){}, m.onOffline...)
}
