package relay

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub(zerolog.Nop())
	server := httptest.NewServer(hub.Handler())
	t.Cleanup(server.Close)
	t.Cleanup(hub.Close)
	return hub, "ws" + strings.TrimPrefix(server.URL, "http")
}

func dialObserver(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial hub: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read from hub: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Hub delivered invalid JSON: %v", err)
	}
	return msg
}

func waitForObservers(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.ObserverCount() == n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Expected %d observers, have %d", n, hub.ObserverCount())
}

func TestHub_BroadcastReachesAllObservers(t *testing.T) {
	hub, url := startHub(t)

	a := dialObserver(t, url)
	b := dialObserver(t, url)
	c := dialObserver(t, url)
	waitForObservers(t, hub, 3)

	hub.Broadcast(NewAudioMessage([]int16{1, -2, 3}))

	for i, conn := range []*websocket.Conn{a, b, c} {
		msg := readMessage(t, conn)
		if msg.Type != TypeAudio {
			t.Errorf("Observer %d got type %q, want audio", i, msg.Type)
		}
		var pcm []int16
		if err := json.Unmarshal(msg.Data, &pcm); err != nil {
			t.Fatalf("Observer %d: bad audio payload: %v", i, err)
		}
		if len(pcm) != 3 || pcm[1] != -2 {
			t.Errorf("Observer %d got payload %v", i, pcm)
		}
	}
}

func TestHub_ObserverPublishExcludesOriginator(t *testing.T) {
	hub, url := startHub(t)

	origin := dialObserver(t, url)
	other := dialObserver(t, url)
	waitForObservers(t, hub, 2)

	note := `{"type":"annotation","data":{"note":"check this"}}`
	if err := origin.WriteMessage(websocket.TextMessage, []byte(note)); err != nil {
		t.Fatalf("Failed to publish from observer: %v", err)
	}

	other.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := other.ReadMessage()
	if err != nil {
		t.Fatalf("Other observer should receive the publish: %v", err)
	}
	if string(data) != note {
		t.Errorf("Rebroadcast altered the message: %s", data)
	}

	// The originator must not hear its own message back.
	origin.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := origin.ReadMessage(); err == nil {
		t.Error("Originator received its own message")
	}
}

func TestHub_MalformedObserverMessageDropped(t *testing.T) {
	hub, url := startHub(t)

	origin := dialObserver(t, url)
	other := dialObserver(t, url)
	waitForObservers(t, hub, 2)

	if err := origin.WriteMessage(websocket.TextMessage, []byte("not json{")); err != nil {
		t.Fatalf("Failed to send malformed message: %v", err)
	}

	other.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := other.ReadMessage(); err == nil {
		t.Error("Malformed message should not be rebroadcast")
	}

	// The connection survives the bad message.
	hub.Broadcast(NewCallEndedMessage())
	if msg := readMessage(t, origin); msg.Type != TypeCallEnded {
		t.Errorf("Got type %q after malformed send, want call_ended", msg.Type)
	}
}

func TestHub_DisconnectedObserverRemoved(t *testing.T) {
	hub, url := startHub(t)

	conn := dialObserver(t, url)
	waitForObservers(t, hub, 1)

	conn.Close()
	waitForObservers(t, hub, 0)

	// Broadcasting into an empty hub is fine.
	hub.Broadcast(NewCallEndedMessage())
}

func TestHub_NoHistoryForLateJoiners(t *testing.T) {
	hub, url := startHub(t)

	early := dialObserver(t, url)
	waitForObservers(t, hub, 1)
	hub.Broadcast(NewAudioMessage([]int16{1}))
	readMessage(t, early)

	late := dialObserver(t, url)
	waitForObservers(t, hub, 2)

	late.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := late.ReadMessage(); err == nil {
		t.Error("Late joiner should not receive earlier traffic")
	}
}
