// Package tools monitors the availability of configured MCP tool servers.
package tools

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/modelops/cardflow/internal/core"
	"github.com/modelops/cardflow/internal/events"
	"github.com/modelops/cardflow/internal/logging"
)

const (
	defaultProbeTimeout = 10 * time.Second
	defaultPollInterval = 30 * time.Second
)

// ProbeFunc checks one tool server and returns its advertised tool count.
type ProbeFunc func(ctx context.Context, cfg core.ToolServerConfig) (int, error)

// Monitor polls tool servers in the background and caches the last observed
// status per server. It implements core.ToolServerMonitor.
type Monitor struct {
	servers []core.ToolServerConfig
	probe   ProbeFunc
	bus     *events.Bus
	logger  *logging.Logger
	timeout time.Duration

	mu       sync.RWMutex
	statuses map[string]core.ToolServerStatus
}

// Option customizes a Monitor.
type Option func(*Monitor)

// WithProbe replaces the MCP probe, mainly for tests.
func WithProbe(probe ProbeFunc) Option {
	return func(m *Monitor) { m.probe = probe }
}

// WithProbeTimeout bounds each individual server check.
func WithProbeTimeout(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// NewMonitor creates a monitor over the configured servers.
func NewMonitor(servers []core.ToolServerConfig, bus *events.Bus, logger *logging.Logger, opts ...Option) *Monitor {
	m := &Monitor{
		servers:  servers,
		probe:    mcpProbe,
		bus:      bus,
		logger:   logger,
		timeout:  defaultProbeTimeout,
		statuses: make(map[string]core.ToolServerStatus, len(servers)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Statuses implements core.ToolServerMonitor. Servers are returned in
// configuration order; servers never polled yet are reported offline.
func (m *Monitor) Statuses() []core.ToolServerStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]core.ToolServerStatus, 0, len(m.servers))
	for _, srv := range m.servers {
		if status, ok := m.statuses[srv.ID]; ok {
			out = append(out, status)
			continue
		}
		out = append(out, core.ToolServerStatus{
			ID:   srv.ID,
			Name: srv.Name,
			URL:  srv.URL,
		})
	}
	return out
}

// Poll implements core.ToolServerMonitor. All servers are probed
// concurrently; a status change is published on the event bus.
func (m *Monitor) Poll(ctx context.Context) []core.ToolServerStatus {
	results := make([]core.ToolServerStatus, len(m.servers))

	g, gctx := errgroup.WithContext(ctx)
	for i, srv := range m.servers {
		g.Go(func() error {
			results[i] = m.check(gctx, srv)
			return nil
		})
	}
	_ = g.Wait() // check never returns an error; failures land in the status

	for _, status := range results {
		m.record(status)
	}
	return results
}

// Run polls on the interval until the context is cancelled. The first poll
// happens immediately so statuses are available as soon as the server is up.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	if len(m.servers) == 0 {
		return
	}
	if interval <= 0 {
		interval = defaultPollInterval
	}

	m.Poll(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Poll(ctx)
		}
	}
}

func (m *Monitor) check(ctx context.Context, srv core.ToolServerConfig) core.ToolServerStatus {
	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	status := core.ToolServerStatus{
		ID:        srv.ID,
		Name:      srv.Name,
		URL:       srv.URL,
		CheckedAt: time.Now(),
	}

	count, err := m.probe(probeCtx, srv)
	if err != nil {
		status.Error = err.Error()
		m.logger.Debug("tool server check failed",
			"server_id", srv.ID,
			"url", srv.URL,
			"error", err)
		return status
	}

	status.Online = true
	status.ToolCount = count
	return status
}

func (m *Monitor) record(status core.ToolServerStatus) {
	m.mu.Lock()
	prev, seen := m.statuses[status.ID]
	m.statuses[status.ID] = status
	m.mu.Unlock()

	changed := !seen || prev.Online != status.Online || prev.ToolCount != status.ToolCount
	if !changed {
		return
	}

	m.logger.Info("tool server status changed",
		"server_id", status.ID,
		"online", status.Online,
		"tool_count", status.ToolCount)
	if m.bus != nil {
		m.bus.Publish(events.NewToolServerStatus(status))
	}
}

var _ core.ToolServerMonitor = (*Monitor)(nil)
