package perf

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lotwatch/lotsync/internal/metrics"
	"github.com/lotwatch/lotsync/internal/model"
)

// Prober measures round-trip latency on a live push channel.
type Prober interface {
	ProbeLatency(ctx context.Context) (time.Duration, error)
	AnyConnected() bool
}

// MonitorConfig configures the Performance Monitor.
type MonitorConfig struct {
	ProbeInterval time.Duration    // Time between latency probes
	ProbeTimeout  time.Duration    // Per-probe deadline
	Metrics       *metrics.Metrics // Optional
}

// DefaultMonitorConfig returns sensible defaults.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		ProbeInterval: 30 * time.Second,
		ProbeTimeout:  5 * time.Second,
	}
}

// Monitor maintains the performance snapshot.
type Monitor struct {
	cfg    MonitorConfig
	prober Prober
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// now is replaceable in tests.
	now func() time.Time

	mu           sync.Mutex
	snapshot     model.PerformanceSnapshot
	probeCount   int64
	latencySumMs float64
	lastTick     time.Time
	wasConnected bool
}

// NewMonitor creates a new Performance Monitor.
func NewMonitor(cfg MonitorConfig, prober Prober, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = DefaultMonitorConfig().ProbeInterval
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultMonitorConfig().ProbeTimeout
	}

	return &Monitor{
		cfg:    cfg,
		prober: prober,
		logger: logger,
		now:    time.Now,
	}
}

// Start begins the probe loop.
func (m *Monitor) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	m.mu.Lock()
	m.lastTick = m.now()
	m.wasConnected = m.prober.AnyConnected()
	m.mu.Unlock()

	m.wg.Add(1)
	go m.probeLoop()

	m.logger.Info("performance monitor started", "interval", m.cfg.ProbeInterval)
	return nil
}

// Stop shuts the probe loop down.
func (m *Monitor) Stop(ctx context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("performance monitor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Monitor) probeLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.tick(m.ctx)
		}
	}
}

// tick accounts uptime since the previous tick and, when a channel is
// live, probes its latency.
func (m *Monitor) tick(ctx context.Context) {
	now := m.now()
	connected := m.prober.AnyConnected()

	m.mu.Lock()
	// Uptime accrues for intervals that began connected.
	if m.wasConnected && !m.lastTick.IsZero() {
		m.snapshot.ConnectionUptimeSeconds += now.Sub(m.lastTick).Seconds()
	}
	m.lastTick = now
	m.wasConnected = connected
	uptime := m.snapshot.ConnectionUptimeSeconds
	m.mu.Unlock()

	if mm := m.cfg.Metrics; mm != nil {
		mm.UptimeSeconds.Set(uptime)
	}

	if !connected {
		m.logger.Debug("latency probe skipped, no live channel")
		return
	}

	probeCtx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	rtt, err := m.prober.ProbeLatency(probeCtx)
	cancel()
	if err != nil {
		m.logger.Warn("latency probe failed", "error", err)
		return
	}

	ms := float64(rtt) / float64(time.Millisecond)

	m.mu.Lock()
	m.probeCount++
	m.latencySumMs += ms
	m.snapshot.AverageLatencyMs = m.latencySumMs / float64(m.probeCount)
	m.snapshot.LastLatencyCheck = now
	avg := m.snapshot.AverageLatencyMs
	m.mu.Unlock()

	if mm := m.cfg.Metrics; mm != nil {
		mm.LatencyMs.Set(ms)
	}

	m.logger.Debug("latency probed", "rtt_ms", ms, "avg_ms", avg)
}

// SetMessageRate records the dispatcher's latest rate sample.
func (m *Monitor) SetMessageRate(perSecond float64) {
	m.mu.Lock()
	m.snapshot.MessageRate = perSecond
	m.mu.Unlock()
}

// Snapshot returns a copy of the current performance record.
func (m *Monitor) Snapshot() model.PerformanceSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot
}
