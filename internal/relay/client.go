package relay

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/evercall/voicebridge/internal/transcript"
)

// Client is the producer side of the relay: the call process publishes its
// audio and transcript stream through one of these. Messages sent before the
// socket finishes opening are queued and flushed in order on open; once the
// connection has opened and later drops, messages are discarded instead.
type Client struct {
	url    string
	logger zerolog.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	pending   [][]byte
	connected bool
	closed    bool
}

// NewClient starts connecting to the relay endpoint in the background and
// returns immediately. Publishing is valid right away.
func NewClient(url string, logger zerolog.Logger) *Client {
	c := &Client{url: url, logger: logger}
	go c.connect()
	return c
}

func (c *Client) connect() {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.Dial(c.url, nil)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.logger.Warn().Err(err).Str("url", c.url).Msg("Relay connection failed, discarding queued messages")
		c.pending = nil
		c.closed = true
		return
	}
	if c.closed {
		conn.Close()
		return
	}

	c.conn = conn
	c.connected = true
	for _, data := range c.pending {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to flush queued relay message")
			break
		}
	}
	c.pending = nil
	c.logger.Info().Str("url", c.url).Msg("Relay connected")
}

// Send publishes one message. Never blocks on the network being slow to
// open; errors after that are logged, not returned, because the relay is a
// best-effort tap on the call.
func (c *Client) Send(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error().Err(err).Str("type", msg.Type).Msg("Failed to marshal relay message")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	if !c.connected {
		c.pending = append(c.pending, data)
		return
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.logger.Warn().Err(err).Str("type", msg.Type).Msg("Relay write failed")
		c.conn.Close()
		c.closed = true
	}
}

// SendAudio publishes a chunk of call audio.
func (c *Client) SendAudio(pcm []int16) {
	c.Send(NewAudioMessage(pcm))
}

// SendTranscript publishes a promoted transcript fragment.
func (c *Client) SendTranscript(f transcript.Fragment) {
	c.Send(NewTranscriptMessage(f))
}

// SendCallEnded publishes the end-of-call marker.
func (c *Client) SendCallEnded() {
	c.Send(NewCallEndedMessage())
}

// Close tears the connection down. Idempotent.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.pending = nil
	if c.conn != nil {
		c.conn.Close()
	}
}
