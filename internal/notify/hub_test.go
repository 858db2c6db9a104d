package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"coopquality/internal/core"
	"coopquality/pkg/domain"

	"github.com/gorilla/websocket"
)

var _ core.AlertDispatcher = (*Hub)(nil)

func startHub(t *testing.T) (*Hub, *httptest.Server, context.CancelFunc) {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return hub, srv, cancel
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, have %d", n, hub.Clients())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return msg
}

func TestDispatchReachesSubscribers(t *testing.T) {
	hub, srv, _ := startHub(t)
	all := dial(t, srv, "")
	critical := dial(t, srv, "?min_severity=critical")
	waitClients(t, hub, 2)

	alerts := []domain.Alert{
		{Base: domain.Base{ID: "a1"}, Type: domain.AlertInspectionConditional, Severity: domain.CriticalityMedium},
		{Base: domain.Base{ID: "a2"}, Type: domain.AlertCriticalParameter, Severity: domain.CriticalityCritical},
	}
	if err := hub.Dispatch(context.Background(), alerts); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	if msg := readMessage(t, all); msg.Type != "alerts" || len(msg.Alerts) != 2 {
		t.Fatalf("unfiltered subscriber got %+v", msg)
	}
	msg := readMessage(t, critical)
	if len(msg.Alerts) != 1 || msg.Alerts[0].ID != "a2" {
		t.Fatalf("filtered subscriber got %+v", msg)
	}
}

func TestDispatchEmptyIsNoop(t *testing.T) {
	hub := NewHub()
	if err := hub.Dispatch(context.Background(), nil); err != nil {
		t.Fatalf("empty dispatch must not block or fail: %v", err)
	}
}

func TestDispatchAfterStop(t *testing.T) {
	hub, _, cancel := startHub(t)
	cancel()
	deadline := time.Now().Add(2 * time.Second)
	for {
		err := hub.Dispatch(context.Background(), []domain.Alert{{Base: domain.Base{ID: "x"}}})
		if errors.Is(err, ErrClosed) {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected ErrClosed, got %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDispatchHonoursContext(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := hub.Dispatch(ctx, []domain.Alert{{Base: domain.Base{ID: "x"}}}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error without a running hub, got %v", err)
	}
}

func TestRejectsUnknownSeverity(t *testing.T) {
	_, srv, _ := startHub(t)
	resp, err := http.Get(srv.URL + "/?min_severity=urgent")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestDisconnectUnregisters(t *testing.T) {
	hub, srv, _ := startHub(t)
	conn := dial(t, srv, "")
	waitClients(t, hub, 1)
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	_ = conn.Close()
	waitClients(t, hub, 0)
}

func TestServiceDispatchesThroughHub(t *testing.T) {
	hub, srv, _ := startHub(t)
	conn := dial(t, srv, "")
	waitClients(t, hub, 1)

	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	svc, err := core.NewInMemoryService(
		core.WithClock(core.ClockFunc(func() time.Time { return now })),
		core.WithAlertDispatcher(hub),
	)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	ctx := context.Background()
	if _, _, err := svc.CreateCertification(ctx, domain.Certification{Name: "GAP", IssuedOn: now.AddDate(-1, 0, 0), ExpiresOn: now.AddDate(0, 0, -2)}); err != nil {
		t.Fatalf("certification: %v", err)
	}
	if _, _, err := svc.SweepCertifications(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	msg := readMessage(t, conn)
	if len(msg.Alerts) != 1 || msg.Alerts[0].Type != domain.AlertCertificationExpired {
		t.Fatalf("unexpected pushed alerts %+v", msg.Alerts)
	}
}
