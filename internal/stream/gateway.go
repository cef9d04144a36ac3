package stream

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kc-vaultik/shapex-studio/internal/protocol"
)

// ErrChannelTaken is returned when a session already has a live stream
// attached. One socket per session; later dials are refused.
var ErrChannelTaken = errors.New("session already has an active stream")

const defaultWriteTimeout = 10 * time.Second

type Option func(*Gateway)

// Gateway owns the per-session streaming channels. It is a pure
// observability tap: a missing or broken channel drops events instead of
// disturbing the workflow that produced them.
type Gateway struct {
	logger       *log.Logger
	writeTimeout time.Duration

	mu       sync.Mutex
	channels map[string]*Channel
}

func NewGateway(logger *log.Logger, opts ...Option) *Gateway {
	g := &Gateway{
		logger:       logger,
		writeTimeout: defaultWriteTimeout,
		channels:     make(map[string]*Channel),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

func WithWriteTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.writeTimeout = d
		}
	}
}

// Attach binds conn as the session's stream. The returned channel stays
// valid until Detach or a terminal event closes it.
func (g *Gateway) Attach(sessionID string, conn *websocket.Conn) (*Channel, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.channels[sessionID]; ok {
		return nil, ErrChannelTaken
	}
	ch := &Channel{
		sessionID: sessionID,
		conn:      conn,
		done:      make(chan struct{}),
	}
	g.channels[sessionID] = ch
	return ch, nil
}

// Detach removes the channel and closes its socket. Only the currently
// attached channel is removed; a stale handle from a replaced connection
// is a no-op.
func (g *Gateway) Detach(sessionID string, ch *Channel) {
	g.mu.Lock()
	if current, ok := g.channels[sessionID]; !ok || current != ch {
		g.mu.Unlock()
		return
	}
	delete(g.channels, sessionID)
	g.mu.Unlock()
	ch.close()
}

// Publish delivers an event to the session's channel, if one is attached.
// Writes are serialized per channel so events arrive in emission order.
// Delivery failures and absent clients are logged and swallowed: the
// workflow result lives in the stores, not on the socket.
func (g *Gateway) Publish(ctx context.Context, event protocol.Event) {
	g.mu.Lock()
	ch, ok := g.channels[event.SessionID]
	g.mu.Unlock()
	if !ok {
		return
	}

	if err := ch.send(event, g.writeTimeout); err != nil {
		g.logger.Printf("stream write failed session_id=%s event_type=%s err=%v", event.SessionID, event.Type, err)
		g.Detach(event.SessionID, ch)
		return
	}

	if event.Terminal() {
		ch.sendClose(websocket.CloseNormalClosure, string(event.Type))
		g.Detach(event.SessionID, ch)
	}
}

func (g *Gateway) ActiveChannels() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.channels)
}

// Channel is one session's attached socket with serialized writes.
type Channel struct {
	sessionID string
	conn      *websocket.Conn

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// Done is closed when the channel is detached, either by the client
// dropping or by a terminal event.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

func (c *Channel) send(event protocol.Event, timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("channel closed")
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	return c.conn.WriteJSON(event)
}

func (c *Channel) sendClose(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	deadline := time.Now().Add(time.Second)
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
}

func (c *Channel) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
	_ = c.conn.Close()
}
