package engine

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lotwatch/lotsync/internal/config"
	"github.com/lotwatch/lotsync/internal/connection"
	"github.com/lotwatch/lotsync/internal/model"
)

// snapshotServer serves a fixed lot/spot snapshot over REST.
func snapshotServer(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/lots", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"lots":[
			{"lot_id":"l1","available":2,"occupied":0,"total":2}
		],"cursor":""}`)
	})
	mux.HandleFunc("/spots", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"spots":[
			{"spot_id":"s1","lot_id":"l1","status":"available"},
			{"spot_id":"s2","lot_id":"l1","status":"available"}
		],"cursor":""}`)
	})
	return httptest.NewServer(mux)
}

// pushServer upgrades connections and writes the given frames.
func pushServer(t *testing.T, frames []string) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		// Keep the connection up until the client leaves.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func testConfig(restURL, wsURL string) *config.EngineConfig {
	return &config.EngineConfig{
		Instance: config.InstanceConfig{ID: "test"},
		API:      config.APIConfig{BaseURL: restURL, Timeout: 5 * time.Second, MaxRetries: 1},
		Channels: []config.ChannelConfig{
			{ID: "main", URL: wsURL, Subscriptions: []string{"spot_status_update"}},
		},
		Connections: config.ConnectionsConfig{
			MaxReconnectAttempts: 3,
			ReconnectBaseDelay:   10 * time.Millisecond,
			ReconnectMaxDelay:    50 * time.Millisecond,
			PingTimeout:          30 * time.Second,
			WriteTimeout:         5 * time.Second,
			ClientBufferSize:     100,
			InboundBufferSize:    1000,
		},
		Dispatch: config.DispatchConfig{RetainLimit: 100, RateWindow: 5 * time.Second},
		Alerts:   config.AlertsConfig{RetainLimit: 50},
		Monitor:  config.MonitorConfig{ProbeInterval: time.Minute, ProbeTimeout: time.Second},
		Metrics:  config.MetricsConfig{Port: 9090, Path: "/metrics"},
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v: %s", timeout, msg)
}

func TestEngine_EndToEnd(t *testing.T) {
	rest := snapshotServer(t)
	defer rest.Close()

	push := pushServer(t, []string{
		`{"type":"spot_status_update","data":{"spot_id":"s1","lot_id":"l1","previous_status":"available","new_status":"occupied"}}`,
		`{"type":"system_alert","data":{"severity":"warning","title":"Lot filling up","message":"l1 above 80%"}}`,
	})
	defer push.Close()

	cfg := testConfig(rest.URL, "ws"+strings.TrimPrefix(push.URL, "http"))
	e := New(cfg, prometheus.NewRegistry(), nil)

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.Stop(ctx); err != nil {
			t.Errorf("Stop failed: %v", err)
		}
	}()

	// Snapshot loaded.
	if got := len(e.Spots()); got != 2 {
		t.Fatalf("len(Spots) = %d, want 2", got)
	}

	// The pushed spot update lands in the lot aggregate.
	waitFor(t, 2*time.Second, func() bool {
		lot, ok := e.Lot("l1")
		return ok && lot.Occupied == 1
	}, "spot update never applied")

	lot, _ := e.Lot("l1")
	if lot.Available != 1 || lot.Total != 2 {
		t.Errorf("lot = %+v, want Available=1 Total=2", lot)
	}

	spot, ok := e.Spot("s1")
	if !ok || spot.Status != model.StatusOccupied {
		t.Errorf("spot s1 = %+v, want occupied", spot)
	}

	// The pushed system alert reaches the alert center.
	waitFor(t, 2*time.Second, func() bool {
		return e.UnreadCount() == 1
	}, "system alert never raised")

	alerts := e.Alerts()
	if len(alerts) != 1 || alerts[0].Title != "Lot filling up" {
		t.Errorf("alerts = %+v, want one warning", alerts)
	}

	// Acknowledge is idempotent through the engine surface too.
	e.Acknowledge(alerts[0].ID)
	e.Acknowledge(alerts[0].ID)
	if got := e.UnreadCount(); got != 0 {
		t.Errorf("UnreadCount = %d, want 0", got)
	}

	// Channel is connected and retained messages are inspectable.
	statuses := e.ChannelStatuses()
	if statuses["main"] != connection.StateConnected {
		t.Errorf("channel state = %q, want connected", statuses["main"])
	}
	if got := len(e.Messages(0)); got < 2 {
		t.Errorf("len(Messages) = %d, want >= 2", got)
	}

	stats := e.Stats()
	if stats.Dispatch.Ingested < 2 {
		t.Errorf("Ingested = %d, want >= 2", stats.Dispatch.Ingested)
	}
	if stats.State.Applied != 1 {
		t.Errorf("Applied = %d, want 1", stats.State.Applied)
	}
}

func TestEngine_SnapshotFailure(t *testing.T) {
	rest := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer rest.Close()

	cfg := testConfig(rest.URL, "ws://127.0.0.1:1")
	e := New(cfg, nil, nil)

	if err := e.Start(context.Background()); err == nil {
		t.Fatal("Start should fail when the snapshot cannot load")
	}
}

func TestEngine_ChangeFeed(t *testing.T) {
	rest := snapshotServer(t)
	defer rest.Close()

	push := pushServer(t, []string{
		`{"type":"spot_status_update","data":{"spot_id":"s2","lot_id":"l1","new_status":"reserved"}}`,
	})
	defer push.Close()

	cfg := testConfig(rest.URL, "ws"+strings.TrimPrefix(push.URL, "http"))
	e := New(cfg, nil, nil)

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		e.Stop(ctx)
	}()

	changes := e.SubscribeChanges()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case c := <-changes:
			if c.Kind == "spot_updated" && c.SpotID == "s2" {
				return
			}
		case <-timeout:
			t.Fatal("spot_updated change never delivered")
		}
	}
}
