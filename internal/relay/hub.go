package relay

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/evercall/voicebridge/internal/observability"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Observers connect from arbitrary dashboards; auth, if any, sits in
		// front of this server.
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// observerSendBuffer bounds per-observer queueing. An observer that cannot
// keep up with live audio is disconnected rather than allowed to stall the
// broadcast.
const observerSendBuffer = 256

type observer struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Hub fans call traffic out to any number of downstream observers. There is
// no history: a late joiner sees only what happens after it connects.
// Observers may also publish JSON messages of their own, which are
// rebroadcast to every other observer.
type Hub struct {
	logger zerolog.Logger

	mu        sync.Mutex
	observers map[*observer]bool
}

// NewHub creates an empty hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		logger:    logger,
		observers: make(map[*observer]bool),
	}
}

// Handler upgrades an HTTP request into an observer connection and serves it
// until the peer disconnects.
func (h *Hub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Error().Err(err).Msg("Failed to upgrade observer connection")
			return
		}

		obs := &observer{
			id:   uuid.New().String(),
			conn: conn,
			send: make(chan []byte, observerSendBuffer),
		}
		h.add(obs)
		h.logger.Info().Str("observer_id", obs.id).Msg("Observer connected")

		go h.writePump(obs)
		h.readPump(obs)
	}
}

func (h *Hub) add(obs *observer) {
	h.mu.Lock()
	h.observers[obs] = true
	n := len(h.observers)
	h.mu.Unlock()
	observability.SetRelayObservers(n)
}

func (h *Hub) remove(obs *observer) {
	h.mu.Lock()
	if _, ok := h.observers[obs]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.observers, obs)
	n := len(h.observers)
	h.mu.Unlock()

	close(obs.send)
	obs.conn.Close()
	observability.SetRelayObservers(n)
	h.logger.Info().Str("observer_id", obs.id).Msg("Observer disconnected")
}

// writePump drains one observer's queue onto its socket. Exits when the
// queue closes or a write fails.
func (h *Hub) writePump(obs *observer) {
	for data := range obs.send {
		if err := obs.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Debug().
				Err(err).
				Str("observer_id", obs.id).
				Msg("Observer write failed")
			h.remove(obs)
			return
		}
	}
}

// readPump receives messages published by the observer itself and
// rebroadcasts the well-formed ones to everyone else.
func (h *Hub) readPump(obs *observer) {
	defer h.remove(obs)
	for {
		_, data, err := obs.conn.ReadMessage()
		if err != nil {
			return
		}
		if !json.Valid(data) {
			observability.RecordRelayMalformed()
			h.logger.Warn().
				Str("observer_id", obs.id).
				Msg("Dropping malformed observer message")
			continue
		}
		h.broadcastRaw(data, obs, "observer")
	}
}

// Broadcast sends a message to every connected observer.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Str("type", msg.Type).Msg("Failed to marshal relay message")
		return
	}
	h.broadcastRaw(data, nil, msg.Type)
}

// broadcastRaw delivers pre-encoded JSON to all observers except the
// originator. A full send queue drops the observer, not the message.
func (h *Hub) broadcastRaw(data []byte, exclude *observer, msgType string) {
	// Sends happen under the lock so no queue can be closed out from under
	// us; they never block because the queues are buffered.
	h.mu.Lock()
	var slow []*observer
	for obs := range h.observers {
		if obs == exclude {
			continue
		}
		select {
		case obs.send <- data:
		default:
			slow = append(slow, obs)
		}
	}
	h.mu.Unlock()

	for _, obs := range slow {
		h.logger.Warn().
			Str("observer_id", obs.id).
			Msg("Observer too slow, disconnecting")
		h.remove(obs)
	}
	observability.RecordRelayMessage(msgType)
}

// ObserverCount reports the number of connected observers.
func (h *Hub) ObserverCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.observers)
}

// Close disconnects every observer.
func (h *Hub) Close() {
	h.mu.Lock()
	targets := make([]*observer, 0, len(h.observers))
	for obs := range h.observers {
		targets = append(targets, obs)
	}
	h.mu.Unlock()

	for _, obs := range targets {
		h.remove(obs)
	}
}
