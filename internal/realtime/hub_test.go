package realtime

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/loommail/backend/internal/models"
)

// startHubServer upgrades every request and binds it to the hub under the
// subject passed in the query string.
func startHubServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		subject := r.URL.Query().Get("subject")
		hub.Bind(models.Identity{Subject: subject, Email: subject + "@example.com"}, conn)
	}))
	t.Cleanup(server.Close)
	return server
}

func dial(t *testing.T, server *httptest.Server, subject string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/?subject=" + subject
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitForConnections(t *testing.T, hub *Hub, subject string, want int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.ActiveConnections(subject) == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("user %s has %d connections, want %d", subject, hub.ActiveConnections(subject), want)
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	return event
}

func TestHubEmitReachesEveryConnectionOfOneUser(t *testing.T) {
	hub := NewHub(10)
	server := startHubServer(t, hub)

	tab1 := dial(t, server, "user-a")
	tab2 := dial(t, server, "user-a")
	other := dial(t, server, "user-b")
	waitForConnections(t, hub, "user-a", 2)
	waitForConnections(t, hub, "user-b", 1)

	hub.Emit("user-a", NewMailUpdate("m1", []string{"INBOX"}))

	for _, conn := range []*websocket.Conn{tab1, tab2} {
		event := readEvent(t, conn)
		if event.Name != EventMailUpdate {
			t.Errorf("event name = %q, want %q", event.Name, EventMailUpdate)
		}
	}

	// The other user's connection must stay silent.
	_ = other.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := other.ReadMessage(); err == nil {
		t.Error("user-b received an event addressed to user-a")
	}
}

func TestHubEnforcesPerUserLimit(t *testing.T) {
	hub := NewHub(1)
	server := startHubServer(t, hub)

	dial(t, server, "user-a")
	waitForConnections(t, hub, "user-a", 1)

	rejected := dial(t, server, "user-a")
	_ = rejected.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := rejected.ReadMessage(); err == nil {
		t.Error("second connection was not closed despite the limit")
	}

	if got := hub.ActiveConnections("user-a"); got != 1 {
		t.Errorf("ActiveConnections = %d, want 1", got)
	}
}

func TestHubUnbindReleasesMembership(t *testing.T) {
	hub := NewHub(10)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := hub.Bind(models.Identity{Subject: "user-a"}, conn)
		hub.Unbind(client)
	}))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && hub.ActiveConnections("user-a") != 0 {
		time.Sleep(10 * time.Millisecond)
	}
	if got := hub.ActiveConnections("user-a"); got != 0 {
		t.Errorf("ActiveConnections = %d, want 0 after unbind", got)
	}
}

func TestEventPayloadShapes(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		want  string
	}{
		{"mail update", NewMailUpdate("m1", []string{"INBOX"}), `{"event":"mail_update","payload":{"_id":"m1","labelIds":["INBOX"]}}`},
		{"removal", NewThreadRemoved("t1", false), `{"event":"mail_delete_thread","payload":{"_id":"t1"}}`},
		{"important removal", NewThreadRemoved("t1", true), `{"event":"mail_delete_thread_important","payload":{"_id":"t1"}}`},
		{"thread update", NewThreadUpdate("t1", "Work"), `{"event":"thread_update","payload":{"_id":"t1","category":"Work"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.event)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNewThreadAddedVariants(t *testing.T) {
	view := &models.ThreadView{ThreadID: "t1"}

	if got := NewThreadAdded(view, false).Name; got != EventMailAddThread {
		t.Errorf("normal variant = %q", got)
	}
	if got := NewThreadAdded(view, true).Name; got != EventMailAddThreadImportant {
		t.Errorf("important variant = %q", got)
	}
}
