package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/lotwatch/lotsync/internal/alert"
	"github.com/lotwatch/lotsync/internal/api"
	"github.com/lotwatch/lotsync/internal/config"
	"github.com/lotwatch/lotsync/internal/connection"
	"github.com/lotwatch/lotsync/internal/dispatch"
	"github.com/lotwatch/lotsync/internal/metrics"
	"github.com/lotwatch/lotsync/internal/model"
	"github.com/lotwatch/lotsync/internal/perf"
	"github.com/lotwatch/lotsync/internal/state"
)

// Engine is the top-level sync engine handle.
type Engine struct {
	cfg    *config.EngineConfig
	logger *slog.Logger

	metrics    *metrics.Metrics
	rest       *api.Client
	manager    connection.Manager
	dispatcher dispatch.Dispatcher
	reconciler state.Reconciler
	alerts     *alert.Center
	monitor    *perf.Monitor
	analytics  *analyticsStore

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Stats aggregates component statistics for inspection endpoints.
type Stats struct {
	Connection connection.ManagerStats
	Dispatch   dispatch.DispatcherStats
	State      state.Stats
}

// analyticsStore retains the most recent analytics payload.
type analyticsStore struct {
	mu      sync.Mutex
	last    json.RawMessage
	records int64
}

func (s *analyticsStore) Record(payload json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = append(json.RawMessage(nil), payload...)
	s.records++
}

func (s *analyticsStore) Last() (json.RawMessage, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.records
}

// New assembles an engine from configuration. registry may be nil to
// disable metrics.
func New(cfg *config.EngineConfig, registry prometheus.Registerer, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	var m *metrics.Metrics
	if registry != nil {
		m = metrics.New(registry)
	}

	e := &Engine{
		cfg:       cfg,
		logger:    logger,
		metrics:   m,
		analytics: &analyticsStore{},
	}

	e.rest = api.NewClient(
		cfg.API.BaseURL,
		cfg.API.AuthToken,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, time.Second),
	)

	e.alerts = alert.NewCenter(alert.CenterConfig{
		RetainLimit: cfg.Alerts.RetainLimit,
		Metrics:     m,
	}, logger)

	e.reconciler = state.NewReconciler(state.ReconcilerConfig{
		ChangeBufferSize: state.ChangeBufferSize,
		Metrics:          m,
	}, logger)

	mgrCfg := connection.ManagerConfig{
		MaxReconnectAttempts: cfg.Connections.MaxReconnectAttempts,
		ReconnectBaseDelay:   cfg.Connections.ReconnectBaseDelay,
		ReconnectMaxDelay:    cfg.Connections.ReconnectMaxDelay,
		PingTimeout:          cfg.Connections.PingTimeout,
		WriteTimeout:         cfg.Connections.WriteTimeout,
		ClientBufferSize:     cfg.Connections.ClientBufferSize,
		InboundBufferSize:    cfg.Connections.InboundBufferSize,
		OnTransition: func(channelID string, from, to connection.State) {
			if m != nil && e.manager != nil {
				m.ConnectedChannels.Set(float64(e.manager.Stats().ConnectedCount))
			}
		},
		OnRetryScheduled: func(channelID string, attempt int, delay time.Duration) {
			if m != nil {
				m.ReconnectsTotal.WithLabelValues(channelID).Inc()
			}
		},
	}
	e.manager = connection.NewManager(mgrCfg, e.alerts, logger)

	e.monitor = perf.NewMonitor(perf.MonitorConfig{
		ProbeInterval: cfg.Monitor.ProbeInterval,
		ProbeTimeout:  cfg.Monitor.ProbeTimeout,
		Metrics:       m,
	}, e.manager, logger)

	e.dispatcher = dispatch.NewDispatcher(dispatch.DispatcherConfig{
		RetainLimit: cfg.Dispatch.RetainLimit,
		RateWindow:  cfg.Dispatch.RateWindow,
		Metrics:     m,
	}, e.reconciler, e.alerts, e.analytics, e.monitor, logger)

	return e
}

// Start loads the initial snapshot, opens the configured channels, and
// begins dispatching.
func (e *Engine) Start(ctx context.Context) error {
	e.ctx, e.cancel = context.WithCancel(ctx)

	if err := e.loadSnapshot(e.ctx); err != nil {
		e.cancel()
		return fmt.Errorf("initial snapshot: %w", err)
	}

	if err := e.manager.Start(e.ctx); err != nil {
		e.cancel()
		return fmt.Errorf("start connection manager: %w", err)
	}

	if err := e.dispatcher.Start(e.ctx); err != nil {
		e.cancel()
		return fmt.Errorf("start dispatcher: %w", err)
	}

	// Pump before opening channels so no inbound event waits.
	e.wg.Add(1)
	go e.pump()

	for _, ch := range e.cfg.Channels {
		subs := make([]model.EventType, 0, len(ch.Subscriptions))
		for _, s := range ch.Subscriptions {
			subs = append(subs, model.EventType(s))
		}
		opts := connection.OpenOptions{
			AuthToken:            ch.AuthToken,
			MaxReconnectAttempts: ch.MaxReconnectAttempts,
			Subscriptions:        subs,
		}
		if err := e.manager.Open(ch.ID, ch.URL, opts); err != nil {
			e.cancel()
			return fmt.Errorf("open channel %s: %w", ch.ID, err)
		}
	}

	if err := e.monitor.Start(e.ctx); err != nil {
		e.cancel()
		return fmt.Errorf("start performance monitor: %w", err)
	}

	e.logger.Info("engine started",
		"instance", e.cfg.Instance.ID,
		"channels", len(e.cfg.Channels),
	)
	return nil
}

// Stop tears the engine down: monitor first, then channels, then the
// pump drains.
func (e *Engine) Stop(ctx context.Context) error {
	e.logger.Info("stopping engine")

	if err := e.monitor.Stop(ctx); err != nil {
		e.logger.Warn("monitor stop", "error", err)
	}
	if err := e.manager.Stop(ctx); err != nil {
		e.logger.Warn("manager stop", "error", err)
	}
	if err := e.dispatcher.Stop(ctx); err != nil {
		e.logger.Warn("dispatcher stop", "error", err)
	}

	if e.cancel != nil {
		e.cancel()
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	e.logger.Info("engine stopped")
	return nil
}

// loadSnapshot fetches lots and spots concurrently and replaces the
// working set.
func (e *Engine) loadSnapshot(ctx context.Context) error {
	start := time.Now()

	var (
		apiLots  []api.APILot
		apiSpots []api.APISpot
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		apiLots, err = e.rest.GetAllLots(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		apiSpots, err = e.rest.GetAllSpots(gctx, "")
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	lots := make([]model.LotAggregate, 0, len(apiLots))
	for _, l := range apiLots {
		lots = append(lots, l.ToModel())
	}
	spots := make([]model.Spot, 0, len(apiSpots))
	for _, s := range apiSpots {
		spots = append(spots, s.ToModel())
	}

	e.reconciler.LoadSnapshot(lots, spots)

	e.logger.Info("snapshot loaded",
		"lots", len(lots),
		"spots", len(spots),
		"duration", time.Since(start),
	)
	return nil
}

// pump moves inbound events into the dispatcher, one at a time.
func (e *Engine) pump() {
	defer e.wg.Done()

	for {
		select {
		case <-e.ctx.Done():
			return
		case msg, ok := <-e.manager.Inbound():
			if !ok {
				return
			}
			e.dispatcher.Ingest(msg)
		}
	}
}

// ChannelStatuses returns the lifecycle state of every channel.
func (e *Engine) ChannelStatuses() map[string]connection.State {
	return e.manager.StatusAll()
}

// Channels returns a read-only view of every channel.
func (e *Engine) Channels() []connection.ChannelInfo {
	return e.manager.Channels()
}

// Subscribe adds an event subscription on a channel.
func (e *Engine) Subscribe(channelID string, event model.EventType) error {
	return e.manager.Subscribe(channelID, event)
}

// Unsubscribe removes an event subscription from a channel.
func (e *Engine) Unsubscribe(channelID string, event model.EventType) error {
	return e.manager.Unsubscribe(channelID, event)
}

// Lots returns every lot aggregate.
func (e *Engine) Lots() []model.LotAggregate {
	return e.reconciler.Lots()
}

// Lot returns one lot aggregate by ID.
func (e *Engine) Lot(id string) (model.LotAggregate, bool) {
	return e.reconciler.Lot(id)
}

// Spots returns every tracked spot.
func (e *Engine) Spots() []model.Spot {
	return e.reconciler.Spots()
}

// Spot returns one spot by ID.
func (e *Engine) Spot(id string) (model.Spot, bool) {
	return e.reconciler.Spot(id)
}

// SubscribeChanges returns the working-set change feed.
func (e *Engine) SubscribeChanges() <-chan state.Change {
	return e.reconciler.SubscribeChanges()
}

// Alerts returns the alert list, newest first.
func (e *Engine) Alerts() []model.Alert {
	return e.alerts.Alerts()
}

// UnreadCount returns the number of unread alerts.
func (e *Engine) UnreadCount() int {
	return e.alerts.UnreadCount()
}

// Acknowledge marks one alert read.
func (e *Engine) Acknowledge(id uuid.UUID) {
	e.alerts.Acknowledge(id)
}

// RemoveAlert deletes one alert.
func (e *Engine) RemoveAlert(id uuid.UUID) {
	e.alerts.Remove(id)
}

// ClearAlerts removes every alert.
func (e *Engine) ClearAlerts() {
	e.alerts.Clear()
}

// Performance returns the current performance snapshot.
func (e *Engine) Performance() model.PerformanceSnapshot {
	return e.monitor.Snapshot()
}

// Messages returns the most recent retained messages.
func (e *Engine) Messages(limit int) []dispatch.InboundMessage {
	return e.dispatcher.Messages(limit)
}

// ClearProcessed drops routed messages from the retained log.
func (e *Engine) ClearProcessed() {
	e.dispatcher.ClearProcessed()
}

// Analytics returns the last analytics payload and the record count.
func (e *Engine) Analytics() (json.RawMessage, int64) {
	return e.analytics.Last()
}

// Stats returns aggregated component statistics.
func (e *Engine) Stats() Stats {
	return Stats{
		Connection: e.manager.Stats(),
		Dispatch:   e.dispatcher.Stats(),
		State:      e.reconciler.Stats(),
	}
}
