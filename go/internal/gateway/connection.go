package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/casino/go/internal/game"
)

// ConnectionConfig holds WebSocket settings.
type ConnectionConfig struct {
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	PingInterval    time.Duration `yaml:"ping_interval" env:"PING_INTERVAL"`
	MaxMessageSize  int64         `yaml:"max_message_size" env:"MAX_MESSAGE_SIZE"`
	ReadBufferSize  int           `yaml:"read_buffer_size" env:"READ_BUFFER_SIZE"`
	WriteBufferSize int           `yaml:"write_buffer_size" env:"WRITE_BUFFER_SIZE"`
	SendBufferSize  int           `yaml:"send_buffer_size" env:"SEND_BUFFER_SIZE"`
	AllowedOrigins  []string      `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:","`
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     45 * time.Second,
		PingInterval:    15 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  256,
		AllowedOrigins:  []string{"*"},
	}
}

// Connection is a client WebSocket. It implements Sink.
type Connection struct {
	ID          string
	Origin      game.Origin
	ConnectedAt time.Time

	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	config ConnectionConfig
}

func newConnection(ws *websocket.Conn, origin game.Origin, cfg ConnectionConfig) *Connection {
	return &Connection{
		ID:          origin.ConnectionID,
		Origin:      origin,
		ConnectedAt: time.Now(),
		conn:        ws,
		send:        make(chan []byte, cfg.SendBufferSize),
		done:        make(chan struct{}),
		config:      cfg,
	}
}

// Send queues data for the write pump. A full buffer means the client is
// not keeping up.
func (c *Connection) Send(data []byte) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close shuts the socket. Safe to call more than once.
func (c *Connection) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.Close()
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debug().Err(err).Str("connection_id", c.ID).Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().Err(err).Str("connection_id", c.ID).Msg("failed to send ping")
				return
			}

		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// readPump reads client actions until the socket closes, then disconnects
// the client from the hub.
func (c *Connection) readPump(ctx context.Context, hub *Hub) {
	defer func() {
		hub.Disconnect(c.Origin)
		_ = c.Close()
	}()

	c.conn.SetReadLimit(c.config.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("connection_id", c.ID).Msg("unexpected WebSocket close error")
			}
			return
		}

		if err := hub.Handle(ctx, c.Origin, message); err != nil {
			hub.Reject(c.Origin, err)
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	}
}
