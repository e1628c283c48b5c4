package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func newHubServer(t *testing.T, hub *Hub, userID string) (*httptest.Server, string) {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(userID, w, r)
	}))
	t.Cleanup(server.Close)

	return server, "ws" + strings.TrimPrefix(server.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestHubPushDeliversToConnectedUser(t *testing.T) {
	hub := NewHub()
	_, url := newHubServer(t, hub, "user-1")

	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.Connected("user-1") }, time.Second, 10*time.Millisecond)

	hub.Push("user-1", Message{Stream: StreamNotifications, Event: EventNotificationCreated, Data: map[string]any{"id": "n-1"}})

	var received Message
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&received))
	require.Equal(t, StreamNotifications, received.Stream)
	require.Equal(t, EventNotificationCreated, received.Event)
}

func TestHubPushToAbsentUserIsNoop(t *testing.T) {
	hub := NewHub()

	// Must not panic or error; absence only means the recipient polls later.
	hub.Push("ghost", Message{Stream: StreamChat, Event: EventChatMessage})
	require.False(t, hub.Connected("ghost"))
}

func TestHubDisconnectRemovesOnlyClosingConnection(t *testing.T) {
	hub := NewHub()
	_, url := newHubServer(t, hub, "user-1")

	first := dial(t, url)
	second := dial(t, url)
	_ = second

	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return len(hub.clients["user-1"]) == 2
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, first.Close())

	// The newer connection must survive the older one's disconnect.
	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return len(hub.clients["user-1"]) == 1
	}, time.Second, 10*time.Millisecond)
	require.True(t, hub.Connected("user-1"))
}

func TestHubPushSurvivesStalledClient(t *testing.T) {
	hub := NewHub()
	_, url := newHubServer(t, hub, "user-1")

	// Connect and then never read; the socket and the send buffer fill up.
	dial(t, url)
	require.Eventually(t, func() bool { return hub.Connected("user-1") }, time.Second, 10*time.Millisecond)

	payload := strings.Repeat("x", 256<<10)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			hub.Push("user-1", Message{Stream: StreamNotifications, Event: EventNotificationCreated, Data: payload})
		}
	}()

	// Every push must return; a stalled consumer can never wedge the hub.
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("push blocked on a client that stopped reading")
	}

	// The stalled connection gets dropped instead of held.
	require.Eventually(t, func() bool { return !hub.Connected("user-1") }, 2*time.Second, 10*time.Millisecond)
}

func TestHubUnsubscribeStopsStreamDelivery(t *testing.T) {
	hub := NewHub()
	_, url := newHubServer(t, hub, "user-1")

	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.Connected("user-1") }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "unsubscribe", "streams": []string{StreamChat}}))

	// Wait until the control message took effect before pushing.
	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		for client := range hub.clients["user-1"] {
			return !client.subscribed(StreamChat)
		}
		return false
	}, time.Second, 10*time.Millisecond)

	hub.Push("user-1", Message{Stream: StreamChat, Event: EventChatMessage})
	hub.Push("user-1", Message{Stream: StreamNotifications, Event: EventNotificationCreated})

	var received Message
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&received))
	require.Equal(t, StreamNotifications, received.Stream)
}
