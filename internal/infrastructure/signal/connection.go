package signal

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"signalbroker/internal/core/domain"
)

// outboundQueueSize bounds how many frames can be queued for a single
// connection before Send starts dropping. 64 is generous for a
// signalling connection, whose traffic is SDP/ICE bursts rather than
// sustained throughput.
const outboundQueueSize = 64

// criticalFrameTypes are the frame types Send still enqueues when the
// outbound queue is full, by evicting the oldest queued frame.
var criticalFrameTypes = map[string]bool{
	domain.TypeError:             true,
	domain.TypeStreamerIDChanged: true,
	domain.TypeDisconnectPlayer:  true,
}

// WSConnection is the Connection Primitive (§4.B): one bounded outbound
// queue drained by a single writer goroutine, one reader goroutine
// decoding frames, a keepalive ticker, and an idle-read deadline. It
// implements domain.Sender so the core services never import gorilla's
// websocket package.
type WSConnection struct {
	id   domain.ConnectionID
	conn *websocket.Conn

	send chan domain.Frame

	closeOnce sync.Once
	closed    chan struct{}

	idleTimeout  time.Duration
	pingInterval time.Duration
	writeTimeout time.Duration
	maxFrameSize int64

	logger *zap.SugaredLogger
}

// NewWSConnection wraps an already-upgraded websocket connection.
func NewWSConnection(id domain.ConnectionID, conn *websocket.Conn, idleTimeout, pingInterval, writeTimeout time.Duration, maxFrameSize int64, logger *zap.SugaredLogger) *WSConnection {
	conn.SetReadLimit(maxFrameSize)
	return &WSConnection{
		id:           id,
		conn:         conn,
		send:         make(chan domain.Frame, outboundQueueSize),
		closed:       make(chan struct{}),
		idleTimeout:  idleTimeout,
		pingInterval: pingInterval,
		writeTimeout: writeTimeout,
		maxFrameSize: maxFrameSize,
		logger:       logger,
	}
}

// ID implements domain.Sender.
func (c *WSConnection) ID() domain.ConnectionID { return c.id }

// Send enqueues a frame for the writer goroutine. It never blocks. When
// the queue is full, an incoming non-critical frame is rejected with
// ErrQueueFull and the queued frames stay as they are; an incoming
// critical frame (error, streamerIdChanged, playerDisconnected) evicts
// the oldest queued frame, whatever its type, to make room. Older
// non-critical frames are not singled out for dropping, and a queued
// critical frame can be the one evicted.
func (c *WSConnection) Send(f domain.Frame) error {
	select {
	case <-c.closed:
		return domain.ErrSocketClosed
	default:
	}

	select {
	case c.send <- f:
		return nil
	default:
	}

	if !criticalFrameTypes[f.Type()] {
		return domain.ErrQueueFull
	}

	select {
	case <-c.send:
	default:
	}
	select {
	case c.send <- f:
		return nil
	default:
		return domain.ErrQueueFull
	}
}

// Close is idempotent: it sends a graceful WebSocket close frame, gives
// the peer up to 500ms to finish its own close handshake, then closes the
// underlying TCP connection.
func (c *WSConnection) Close(code int, reason string) error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		deadline := time.Now().Add(c.writeTimeout)
		msg := websocket.FormatCloseMessage(code, reason)
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, deadline)
		time.AfterFunc(500*time.Millisecond, func() {
			_ = c.conn.Close()
		})
	})
	return err
}

// ReadPump runs the reader goroutine: decode frames off the wire and hand
// them to onFrame until the socket closes or sits idle past idleTimeout.
// onTeardown is invoked exactly once, whatever the reason the pump exits.
func (c *WSConnection) ReadPump(onFrame func(domain.Frame), onTeardown func()) {
	defer onTeardown()
	defer c.Close(websocket.CloseNormalClosure, "read pump exit")

	c.conn.SetReadDeadline(time.Now().Add(c.idleTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.idleTimeout))
		return nil
	})

	for {
		msgType, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				if c.logger != nil {
					c.logger.Debugw("connection read error", "connection_id", c.id, "error", err)
				}
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(c.idleTimeout))

		if msgType != websocket.TextMessage {
			if c.logger != nil {
				c.logger.Debugw("discarding non-text frame", "connection_id", c.id, "message_type", msgType)
			}
			continue
		}

		frame, err := domain.DecodeFrame(raw)
		if err != nil {
			_ = c.Send(domain.ErrorMessage(err.Error()))
			continue
		}
		onFrame(frame)
	}
}

// WritePump is the single writer goroutine: it drains the outbound queue
// and sends a ping whenever the connection has been otherwise idle for
// pingInterval.
func (c *WSConnection) WritePump() {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.closed:
			return
		case frame, ok := <-c.send:
			if !ok {
				return
			}
			raw, err := frame.Encode()
			if err != nil {
				continue
			}
			c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
			ticker.Reset(c.pingInterval)
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
