package connection

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"

	"github.com/lotwatch/lotsync/internal/model"
	"github.com/lotwatch/lotsync/internal/transport"
)

// Manager orchestrates push channels and their subscriptions.
type Manager interface {
	// Start begins managing channels. Must be called before Open.
	Start(ctx context.Context) error

	// Stop gracefully shuts down all channels.
	Stop(ctx context.Context) error

	// Open creates or replaces a channel and begins connecting it.
	Open(id, endpointURL string, opts OpenOptions) error

	// CloseChannel disconnects a channel and releases its transport.
	CloseChannel(id string) error

	// Status returns the lifecycle state of one channel.
	Status(id string) (State, bool)

	// StatusAll returns the lifecycle state of every channel.
	StatusAll() map[string]State

	// Subscribe adds an event type to a channel's subscription set.
	// Idempotent; flushed to the wire on the next successful connect if the
	// channel is not currently connected.
	Subscribe(id string, event model.EventType) error

	// Unsubscribe removes an event type from a channel's subscription set.
	Unsubscribe(id string, event model.EventType) error

	// Channels returns a read-only view of every channel.
	Channels() []ChannelInfo

	// Inbound returns the merged stream of events from all channels.
	Inbound() <-chan Inbound

	// ProbeLatency measures ping round-trip on any connected channel.
	ProbeLatency(ctx context.Context) (time.Duration, error)

	// AnyConnected reports whether at least one channel is connected.
	AnyConnected() bool

	// Stats returns current connection and subscription statistics.
	Stats() ManagerStats
}

// channelState holds the state for a single channel.
type channelState struct {
	id       string
	endpoint string
	opts     OpenOptions

	machine *fsm.FSM

	ctx    context.Context
	cancel context.CancelFunc

	mu              sync.Mutex
	client          transport.Client
	attempts        int
	maxAttempts     int
	lastConnectedAt time.Time
	subs            map[model.EventType]struct{}
}

// manager implements the Manager interface.
type manager struct {
	cfg     ManagerConfig
	alerter Alerter
	logger  *slog.Logger

	inbound chan Inbound

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.RWMutex
	channels map[string]*channelState

	// newClient builds transport clients. Replaceable in tests.
	newClient func(transport.ClientConfig, *slog.Logger) transport.Client
}

// NewManager creates a new Connection Manager.
func NewManager(cfg ManagerConfig, alerter Alerter, logger *slog.Logger) Manager {
	if logger == nil {
		logger = slog.Default()
	}

	return &manager{
		cfg:       cfg,
		alerter:   alerter,
		logger:    logger,
		inbound:   make(chan Inbound, cfg.InboundBufferSize),
		channels:  make(map[string]*channelState),
		newClient: transport.NewClient,
	}
}

// Start begins the connection manager.
func (m *manager) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.logger.Info("connection manager started")
	return nil
}

// Stop gracefully shuts down.
func (m *manager) Stop(ctx context.Context) error {
	m.logger.Info("stopping connection manager")

	if m.cancel != nil {
		m.cancel()
	}

	// Wait for channel goroutines with timeout
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	drained := false
	select {
	case <-done:
		drained = true
	case <-ctx.Done():
		m.logger.Warn("shutdown timeout, forcing close")
	}

	m.mu.Lock()
	for _, cs := range m.channels {
		if c := cs.currentClient(); c != nil {
			c.Close()
		}
	}
	m.mu.Unlock()

	// Only close inbound once every channel goroutine has exited;
	// a straggler could otherwise send on a closed channel.
	if drained {
		close(m.inbound)
	}

	m.logger.Info("connection manager stopped")
	return nil
}

// Open creates or replaces a channel.
func (m *manager) Open(id, endpointURL string, opts OpenOptions) error {
	if m.ctx == nil {
		return ErrNotStarted
	}

	maxAttempts := opts.MaxReconnectAttempts
	if maxAttempts <= 0 {
		maxAttempts = m.cfg.MaxReconnectAttempts
	}

	cs := &channelState{
		id:          id,
		endpoint:    endpointURL,
		opts:        opts,
		maxAttempts: maxAttempts,
		subs:        make(map[model.EventType]struct{}),
	}
	for _, ev := range opts.Subscriptions {
		cs.subs[ev] = struct{}{}
	}
	cs.machine = newChannelFSM(cs)
	cs.ctx, cs.cancel = context.WithCancel(m.ctx)

	m.mu.Lock()
	if old, ok := m.channels[id]; ok {
		old.cancel()
		if c := old.currentClient(); c != nil {
			c.Close()
		}
	}
	m.channels[id] = cs
	m.mu.Unlock()

	m.wg.Add(1)
	go m.runChannel(cs)

	m.logger.Info("channel opened", "channel", id, "endpoint", endpointURL)
	return nil
}

// CloseChannel disconnects a channel. The channel record remains registered
// in the disconnected state until a manual Open replaces it.
func (m *manager) CloseChannel(id string) error {
	m.mu.RLock()
	cs, ok := m.channels[id]
	m.mu.RUnlock()

	if !ok {
		return ErrUnknownChannel
	}

	cs.cancel()
	return nil
}

// Status returns the state of one channel.
func (m *manager) Status(id string) (State, bool) {
	m.mu.RLock()
	cs, ok := m.channels[id]
	m.mu.RUnlock()

	if !ok {
		return "", false
	}
	return cs.state(), true
}

// StatusAll returns every channel's state.
func (m *manager) StatusAll() map[string]State {
	m.mu.RLock()
	defer m.mu.RUnlock()

	statuses := make(map[string]State, len(m.channels))
	for id, cs := range m.channels {
		statuses[id] = cs.state()
	}
	return statuses
}

// Subscribe adds an event type to a channel's subscription set.
func (m *manager) Subscribe(id string, event model.EventType) error {
	m.mu.RLock()
	cs, ok := m.channels[id]
	m.mu.RUnlock()

	if !ok {
		return ErrUnknownChannel
	}

	cs.mu.Lock()
	if _, exists := cs.subs[event]; exists {
		cs.mu.Unlock()
		return nil
	}
	cs.subs[event] = struct{}{}
	client := cs.client
	cs.mu.Unlock()

	m.logger.Info("subscription added", "channel", id, "event", event)

	// Only a connected channel emits immediately; otherwise the set is
	// flushed on the next successful connect.
	if cs.state() == StateConnected && client != nil {
		if err := client.Emit("subscribe", transport.SubscribePayload{Events: []string{string(event)}}); err != nil {
			m.logger.Warn("subscribe emit failed, will retry on reconnect",
				"channel", id, "event", event, "error", err)
		}
	}
	return nil
}

// Unsubscribe removes an event type from a channel's subscription set.
func (m *manager) Unsubscribe(id string, event model.EventType) error {
	m.mu.RLock()
	cs, ok := m.channels[id]
	m.mu.RUnlock()

	if !ok {
		return ErrUnknownChannel
	}

	cs.mu.Lock()
	if _, exists := cs.subs[event]; !exists {
		cs.mu.Unlock()
		return nil
	}
	delete(cs.subs, event)
	client := cs.client
	cs.mu.Unlock()

	m.logger.Info("subscription removed", "channel", id, "event", event)

	if cs.state() == StateConnected && client != nil {
		if err := client.Emit("unsubscribe", transport.SubscribePayload{Events: []string{string(event)}}); err != nil {
			m.logger.Warn("unsubscribe emit failed", "channel", id, "event", event, "error", err)
		}
	}
	return nil
}

// Channels returns a read-only view of every channel.
func (m *manager) Channels() []ChannelInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]ChannelInfo, 0, len(m.channels))
	for _, cs := range m.channels {
		infos = append(infos, cs.info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// Inbound returns the merged event stream.
func (m *manager) Inbound() <-chan Inbound {
	return m.inbound
}

// ProbeLatency measures ping round-trip on the first connected channel.
func (m *manager) ProbeLatency(ctx context.Context) (time.Duration, error) {
	m.mu.RLock()
	var client transport.Client
	for _, cs := range m.channels {
		if c := cs.currentClient(); c != nil && c.IsConnected() {
			client = c
			break
		}
	}
	m.mu.RUnlock()

	if client == nil {
		return 0, ErrNoLiveChannel
	}
	return client.MeasureLatency(ctx)
}

// AnyConnected reports whether at least one channel is connected.
func (m *manager) AnyConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, cs := range m.channels {
		if cs.state() == StateConnected {
			return true
		}
	}
	return false
}

// Stats returns current statistics.
func (m *manager) Stats() ManagerStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := ManagerStats{TotalChannels: len(m.channels)}
	for _, cs := range m.channels {
		if cs.state() == StateConnected {
			stats.ConnectedCount++
		}
		cs.mu.Lock()
		stats.TotalSubscriptions += len(cs.subs)
		cs.mu.Unlock()
	}
	return stats
}

// runChannel drives one channel's connect/reconnect lifecycle.
func (m *manager) runChannel(cs *channelState) {
	defer m.wg.Done()

	for {
		select {
		case <-cs.ctx.Done():
			m.transition(cs, eventShutdown)
			return
		default:
		}

		m.transition(cs, eventDial)

		client := m.newClient(transport.ClientConfig{
			URL:          cs.endpoint,
			AuthToken:    cs.opts.AuthToken,
			PingTimeout:  m.cfg.PingTimeout,
			WriteTimeout: m.cfg.WriteTimeout,
			BufferSize:   m.cfg.ClientBufferSize,
		}, m.logger.With("channel", cs.id))

		cs.mu.Lock()
		cs.client = client
		cs.mu.Unlock()

		err := client.Connect(cs.ctx)
		if err == nil {
			m.transition(cs, eventEstablished)
			m.resubscribe(cs, client)
			err = m.pump(cs, client)
		}

		client.Close()

		select {
		case <-cs.ctx.Done():
			m.transition(cs, eventShutdown)
			return
		default:
		}

		// Transport fault path: enter error, then retry or give up.
		m.transition(cs, eventFault)

		cs.mu.Lock()
		attempts := cs.attempts
		maxAttempts := cs.maxAttempts
		cs.mu.Unlock()

		if attempts >= maxAttempts {
			m.transition(cs, eventShutdown)
			m.raiseExhausted(cs, attempts, err)
			return
		}

		delay := retryDelay(m.cfg.ReconnectBaseDelay, m.cfg.ReconnectMaxDelay, attempts)
		if m.cfg.OnRetryScheduled != nil {
			m.cfg.OnRetryScheduled(cs.id, attempts, delay)
		}
		m.logger.Info("reconnect scheduled",
			"channel", cs.id,
			"attempt", attempts,
			"max_attempts", maxAttempts,
			"delay", delay,
			"error", err,
		)

		select {
		case <-cs.ctx.Done():
			m.transition(cs, eventShutdown)
			return
		case <-time.After(delay):
		}
	}
}

// pump forwards a connected channel's events to the merged inbound stream.
// Returns the transport error that ended the connection, or nil on shutdown.
func (m *manager) pump(cs *channelState, client transport.Client) error {
	for {
		select {
		case <-cs.ctx.Done():
			return nil

		case err := <-client.Errors():
			return err

		case ev, ok := <-client.Events():
			if !ok {
				return transport.ErrNotConnected
			}

			msg := Inbound{
				ChannelID:  cs.id,
				EventType:  ev.Type,
				Payload:    ev.Data,
				ReceivedAt: ev.ReceivedAt,
			}

			select {
			case m.inbound <- msg:
			case <-cs.ctx.Done():
				return nil
			default:
				m.logger.Warn("inbound buffer full, dropping event",
					"channel", cs.id, "type", ev.Type)
			}
		}
	}
}

// resubscribe re-issues the channel's active subscriptions after connect.
func (m *manager) resubscribe(cs *channelState, client transport.Client) {
	cs.mu.Lock()
	events := make([]string, 0, len(cs.subs))
	for ev := range cs.subs {
		events = append(events, string(ev))
	}
	cs.mu.Unlock()

	if len(events) == 0 {
		return
	}
	sort.Strings(events)

	if err := client.Emit("subscribe", transport.SubscribePayload{Events: events}); err != nil {
		m.logger.Warn("resubscribe failed", "channel", cs.id, "error", err)
		return
	}
	m.logger.Debug("subscriptions re-issued", "channel", cs.id, "events", events)
}

// transition fires a lifecycle event on the channel's state machine.
// Transition failures never propagate; they only mean the machine is already
// where the event would take it.
func (m *manager) transition(cs *channelState, event string) {
	from := State(cs.machine.Current())
	if err := cs.machine.Event(context.Background(), event); err != nil {
		m.logger.Debug("state transition skipped",
			"channel", cs.id, "event", event, "state", from, "error", err)
		return
	}
	to := State(cs.machine.Current())

	m.logger.Info("channel state changed", "channel", cs.id, "from", from, "to", to)
	if m.cfg.OnTransition != nil {
		m.cfg.OnTransition(cs.id, from, to)
	}
}

// raiseExhausted surfaces a terminal channel failure as a persistent alert.
func (m *manager) raiseExhausted(cs *channelState, attempts int, cause error) {
	m.logger.Error("channel retry budget exhausted",
		"channel", cs.id, "attempts", attempts, "error", cause)

	if m.alerter == nil {
		return
	}
	m.alerter.Raise(model.Alert{
		ID:        uuid.New(),
		Severity:  model.SeverityError,
		Title:     "Channel connection lost",
		Message:   fmt.Sprintf("channel %q gave up after %d reconnect attempts: %v", cs.id, attempts, cause),
		Timestamp: time.Now(),
		AutoHide:  false,
	})
}

// retryDelay returns the jittered backoff delay for the given attempt (1-based).
// The raw interval doubles per attempt from base; jitter picks uniformly from
// [interval/2, interval], which keeps consecutive delays non-decreasing. Once
// the interval reaches max the delay is pinned to exactly max, so the sequence
// stays monotone at the cap too.
func retryDelay(base, max time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	if max < base {
		max = base
	}

	interval := base
	for i := 1; i < attempt && interval < max; i++ {
		interval *= 2
	}
	if interval >= max {
		return max
	}

	half := interval / 2
	if half <= 0 {
		return interval
	}
	return half + time.Duration(rand.Int63n(int64(half)+1))
}

// state returns the channel's current lifecycle state.
func (cs *channelState) state() State {
	return State(cs.machine.Current())
}

// currentClient returns the channel's transport client, if any.
func (cs *channelState) currentClient() transport.Client {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.client
}

// info builds a read-only view of the channel.
func (cs *channelState) info() ChannelInfo {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	subs := make([]model.EventType, 0, len(cs.subs))
	for ev := range cs.subs {
		subs = append(subs, ev)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i] < subs[j] })

	return ChannelInfo{
		ID:                   cs.id,
		EndpointURL:          cs.endpoint,
		State:                State(cs.machine.Current()),
		LastConnectedAt:      cs.lastConnectedAt,
		ReconnectAttempts:    cs.attempts,
		MaxReconnectAttempts: cs.maxAttempts,
		Subscriptions:        subs,
	}
}
