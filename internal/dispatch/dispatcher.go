package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lotwatch/lotsync/internal/connection"
	"github.com/lotwatch/lotsync/internal/model"
)

// Dispatcher classifies inbound events and routes them by type.
type Dispatcher interface {
	// Start launches the rate-window ticker so the published message
	// rate decays to zero when traffic stops.
	Start(ctx context.Context) error

	// Stop shuts the rate-window ticker down.
	Stop(ctx context.Context) error

	// Ingest retains and routes one inbound event. Never fails: bad
	// payloads are absorbed, logged, and counted.
	Ingest(msg connection.Inbound)

	// Messages returns the most recent retained messages in arrival
	// order. limit <= 0 returns all.
	Messages(limit int) []InboundMessage

	// UnprocessedCount returns the number of retained messages not yet
	// routed.
	UnprocessedCount() int

	// ClearProcessed drops routed messages from the retained log.
	ClearProcessed()

	// Stats returns current dispatcher statistics.
	Stats() DispatcherStats
}

// dispatcher is the internal implementation.
type dispatcher struct {
	cfg        DispatcherConfig
	logger     *slog.Logger
	reconciler Reconciler
	alerter    Alerter
	analytics  AnalyticsSink
	rateSink   RateSink

	log *messageLog

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// now is replaceable in tests.
	now func() time.Time

	mu          sync.Mutex
	ingested    int64
	routed      int64
	parseErrors int64
	unknown     int64
	windowStart time.Time
	windowCount int64
}

// NewDispatcher creates a new Message Dispatcher. analytics and rateSink
// may be nil.
func NewDispatcher(cfg DispatcherConfig, reconciler Reconciler, alerter Alerter, analytics AnalyticsSink, rateSink RateSink, logger *slog.Logger) Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RetainLimit <= 0 {
		cfg.RetainLimit = DefaultDispatcherConfig().RetainLimit
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = DefaultDispatcherConfig().RateWindow
	}

	return &dispatcher{
		cfg:        cfg,
		logger:     logger,
		reconciler: reconciler,
		alerter:    alerter,
		analytics:  analytics,
		rateSink:   rateSink,
		log:        newMessageLog(cfg.RetainLimit),
		now:        time.Now,
	}
}

// Start launches the rate-window ticker.
func (d *dispatcher) Start(ctx context.Context) error {
	d.ctx, d.cancel = context.WithCancel(ctx)

	d.mu.Lock()
	d.windowStart = d.now()
	d.mu.Unlock()

	d.wg.Add(1)
	go d.windowLoop()

	d.logger.Info("message dispatcher started", "rate_window", d.cfg.RateWindow)
	return nil
}

// Stop shuts the rate-window ticker down.
func (d *dispatcher) Stop(ctx context.Context) error {
	if d.cancel != nil {
		d.cancel()
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("message dispatcher stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *dispatcher) windowLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.cfg.RateWindow)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			d.rollWindow()
		}
	}
}

// Ingest retains and routes one inbound event.
func (d *dispatcher) Ingest(inbound connection.Inbound) {
	arrivedAt := inbound.ReceivedAt
	if arrivedAt.IsZero() {
		arrivedAt = d.now()
	}

	msg := &InboundMessage{
		ID:        uuid.New(),
		ChannelID: inbound.ChannelID,
		EventType: model.EventType(inbound.EventType),
		Payload:   inbound.Payload,
		ArrivedAt: arrivedAt,
	}

	evicted := d.log.append(msg)

	d.mu.Lock()
	d.ingested++
	if d.windowStart.IsZero() {
		d.windowStart = d.now()
	}
	d.windowCount++
	d.mu.Unlock()

	if m := d.cfg.Metrics; m != nil {
		m.MessagesIngested.WithLabelValues(string(msg.EventType)).Inc()
		m.RetainedMessages.Set(float64(d.log.len()))
	}
	if evicted {
		d.logger.Debug("retained log full, oldest message evicted")
	}

	if d.route(msg) {
		d.log.markProcessed(msg)
		d.mu.Lock()
		d.routed++
		d.mu.Unlock()
	}

	d.rollWindow()
}

// route delivers the message to its consumer. Returns true when the
// message was handled and should be marked processed.
func (d *dispatcher) route(msg *InboundMessage) bool {
	switch msg.EventType {
	case model.EventSpotStatusUpdate:
		var ev model.SpotUpdateEvent
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			d.countParseError(msg, err)
			return false
		}
		d.reconciler.ApplySpotUpdate(ev)
		return true

	case model.EventBulkSpotUpdates:
		var bulk bulkPayload
		if err := json.Unmarshal(msg.Payload, &bulk); err != nil {
			d.countParseError(msg, err)
			return false
		}
		d.reconciler.ApplyBulkSpotUpdates(bulk.Updates)
		return true

	case model.EventLotCapacityUpdate:
		var capacity lotCapacityPayload
		if err := json.Unmarshal(msg.Payload, &capacity); err != nil {
			d.countParseError(msg, err)
			return false
		}
		d.reconciler.ApplyLotCapacityUpdate(capacity.toModel())
		return true

	case model.EventSystemAlert:
		var alert alertPayload
		if err := json.Unmarshal(msg.Payload, &alert); err != nil {
			d.countParseError(msg, err)
			return false
		}
		d.alerter.Raise(alert.toModel(msg.ArrivedAt))
		return true

	case model.EventAnalyticsUpdate:
		if d.analytics != nil {
			d.analytics.Record(msg.Payload)
		}
		return true

	default:
		d.mu.Lock()
		d.unknown++
		d.mu.Unlock()
		d.logger.Debug("skipping event type", "type", msg.EventType, "channel", msg.ChannelID)
		return false
	}
}

func (d *dispatcher) countParseError(msg *InboundMessage, err error) {
	d.logger.Warn("failed to parse payload",
		"type", msg.EventType, "channel", msg.ChannelID, "error", err)

	d.mu.Lock()
	d.parseErrors++
	d.mu.Unlock()

	if m := d.cfg.Metrics; m != nil {
		m.ParseErrorsTotal.Inc()
	}
}

// rollWindow closes the rate window once enough wall clock has elapsed
// and publishes the derived rate. An empty window publishes zero, so an
// idle engine decays instead of reporting its last busy rate forever.
func (d *dispatcher) rollWindow() {
	d.mu.Lock()
	if d.windowStart.IsZero() {
		d.windowStart = d.now()
		d.mu.Unlock()
		return
	}
	elapsed := d.now().Sub(d.windowStart)
	if elapsed < d.cfg.RateWindow {
		d.mu.Unlock()
		return
	}
	rate := float64(d.windowCount) / elapsed.Seconds()
	d.windowStart = d.now()
	d.windowCount = 0
	d.mu.Unlock()

	if d.rateSink != nil {
		d.rateSink.SetMessageRate(rate)
	}
	if m := d.cfg.Metrics; m != nil {
		m.MessageRate.Set(rate)
	}
	d.logger.Debug("message rate sampled", "per_second", rate)
}

// Messages returns the most recent retained messages.
func (d *dispatcher) Messages(limit int) []InboundMessage {
	return d.log.recent(limit)
}

// UnprocessedCount returns retained messages not yet routed.
func (d *dispatcher) UnprocessedCount() int {
	return d.log.unprocessedCount()
}

// ClearProcessed drops routed messages from the retained log.
func (d *dispatcher) ClearProcessed() {
	removed := d.log.clearProcessed()
	if m := d.cfg.Metrics; m != nil {
		m.RetainedMessages.Set(float64(d.log.len()))
	}
	d.logger.Debug("processed messages cleared", "removed", removed)
}

// Stats returns current statistics.
func (d *dispatcher) Stats() DispatcherStats {
	d.mu.Lock()
	defer d.mu.Unlock()

	return DispatcherStats{
		Ingested:    d.ingested,
		Routed:      d.routed,
		ParseErrors: d.parseErrors,
		Unknown:     d.unknown,
		Evicted:     d.log.evictedCount(),
	}
}
