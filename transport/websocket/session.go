package websocket

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/gomoku-backend/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 4096
	sendBufferSize = 256
)

// Session is one client connection. Its room and token are only touched by the read loop;
// Send may be called from any goroutine.
type Session struct {
	conn   *websocket.Conn
	logger *slog.Logger

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	roomID string
	token  string
}

func newSession(conn *websocket.Conn, logger *slog.Logger) *Session {
	return &Session{
		conn:   conn,
		logger: logger.With("remote_addr", conn.RemoteAddr().String()),
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
	}
}

// Send queues msg for the write pump. A client too slow to drain its queue is dropped.
func (that *Session) Send(msg protocol.ServerMessage) {
	data, err := protocol.Encode(msg)
	if err != nil {
		that.logger.Error("failed to encode message", "type", msg.MessageType(), "error", err)
		return
	}

	select {
	case <-that.done:
		return
	default:
	}

	select {
	case that.send <- data:
	default:
		that.logger.Warn("send buffer full, closing connection")
		that.Close()
	}
}

// Close is idempotent and safe to call from any goroutine.
func (that *Session) Close() {
	that.closeOnce.Do(func() {
		close(that.done)
		_ = that.conn.Close()
	})
}

func (that *Session) inRoom() bool {
	return that.roomID != ""
}

func (that *Session) seat(roomID, token string) {
	that.roomID = roomID
	that.token = token
}

func (that *Session) vacate() {
	that.roomID = ""
	that.token = ""
}

func (that *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		that.Close()
	}()

	for {
		select {
		case <-that.done:
			_ = that.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			return

		case data := <-that.send:
			if err := that.write(websocket.TextMessage, data); err != nil {
				return
			}

			for range len(that.send) {
				if err := that.write(websocket.TextMessage, <-that.send); err != nil {
					return
				}
			}

		case <-ticker.C:
			if err := that.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (that *Session) write(messageType int, data []byte) error {
	if err := that.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}

	return that.conn.WriteMessage(messageType, data)
}

// readPump hands every text frame to handle until the connection fails.
func (that *Session) readPump(handle func(data []byte)) {
	that.conn.SetReadLimit(maxMessageSize)
	_ = that.conn.SetReadDeadline(time.Now().Add(pongWait))
	that.conn.SetPongHandler(func(string) error {
		return that.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := that.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				that.logger.Warn("websocket read error", "room_id", that.roomID, "error", err)
			}

			return
		}

		if messageType != websocket.TextMessage {
			that.Send(protocol.Error{Message: "only text frames are supported"})
			continue
		}

		handle(data)
	}
}
