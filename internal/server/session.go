package server

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 64
)

// WebSocketCallbacks are invoked for events on the WebSocket route. Any of
// them may be nil. They run on the connection's own goroutine.
type WebSocketCallbacks struct {
	OnConnect    func(s *Session)
	OnDisconnect func(s *Session)
	OnText       func(s *Session, text string)
	OnBinary     func(s *Session, data []byte)
}

type outbound struct {
	kind int
	data []byte
}

// Session is the server side of one connected WebSocket peer.
type Session struct {
	id      string
	conn    *websocket.Conn
	addr    string
	send    chan outbound
	done    chan struct{}
	once    sync.Once
	limiter *rateLimiter
	logger  *log.Logger
}

type sessionOptions struct {
	maxMessageSize int64
	rateLimit      RateLimitConfig
	logger         *log.Logger
}

func newSession(conn *websocket.Conn, addr string, opts sessionOptions) *Session {
	id := uuid.NewString()
	logger := opts.logger
	if logger == nil {
		logger = log.Default()
	}
	if conn != nil && opts.maxMessageSize > 0 {
		conn.SetReadLimit(opts.maxMessageSize)
	}

	return &Session{
		id:      id,
		conn:    conn,
		addr:    addr,
		send:    make(chan outbound, sendBufferSize),
		done:    make(chan struct{}),
		limiter: newRateLimiter(opts.rateLimit),
		logger:  logger.With("session", id, "remote", addr),
	}
}

// ID returns the unique identifier assigned at connect time.
func (s *Session) ID() string {
	return s.id
}

// RemoteAddr returns the peer address as reported by the HTTP request.
func (s *Session) RemoteAddr() string {
	return s.addr
}

// Done is closed once the session has been closed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// WriteText queues a UTF-8 text frame.
func (s *Session) WriteText(text string) error {
	return s.enqueue(websocket.TextMessage, []byte(text))
}

// WriteBinary queues a binary frame. The slice is copied.
func (s *Session) WriteBinary(data []byte) error {
	return s.enqueue(websocket.BinaryMessage, append([]byte(nil), data...))
}

func (s *Session) enqueue(kind int, data []byte) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}

	select {
	case s.send <- outbound{kind: kind, data: data}:
		return nil
	case <-s.done:
		return ErrSessionClosed
	default:
		s.logger.Warn("send buffer full; dropping frame")
		return ErrSendBufferFull
	}
}

// Close forcibly closes the underlying connection after a best-effort
// going-away close frame. It is safe to call more than once.
func (s *Session) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		if s.conn == nil {
			return
		}
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server closing")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		if cerr := s.conn.Close(); !isExpectedCloseError(cerr) {
			err = cerr
		}
	})
	return err
}

// run pumps frames until the peer goes away or Close is called.
func (s *Session) run(cb WebSocketCallbacks) {
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writePump()
	}()

	s.readPump(cb)
	if err := s.Close(); err != nil {
		s.logger.Error("closing connection", "err", err)
	}
	<-writerDone
}

func (s *Session) setupReadConnection() {
	if err := s.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		s.logger.Error("setting initial read deadline", "err", err)
	}
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
}

func (s *Session) readPump(cb WebSocketCallbacks) {
	s.setupReadConnection()

	for {
		kind, data, err := s.conn.ReadMessage()
		if err != nil {
			s.logReadError(err)
			return
		}

		if !s.limiter.allow() {
			s.logger.Warn("rate limit exceeded; discarding frame")
			continue
		}

		switch kind {
		case websocket.TextMessage:
			if cb.OnText != nil {
				cb.OnText(s, string(data))
			}
		case websocket.BinaryMessage:
			if cb.OnBinary != nil {
				cb.OnBinary(s, data)
			}
		}
	}
}

func (s *Session) logReadError(err error) {
	select {
	case <-s.done:
		s.logger.Debug("read stopped after close", "err", err)
		return
	default:
	}

	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		s.logger.Warn("frame exceeded maximum size", "err", err)
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		s.logger.Info("peer disconnected", "err", err)
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), isExpectedCloseError(err):
		s.logger.Info("connection closed", "err", err)
	default:
		s.logger.Error("websocket read error", "err", err)
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case msg := <-s.send:
			if !s.write(msg.kind, msg.data) {
				_ = s.Close()
				return
			}
		case <-ticker.C:
			if !s.write(websocket.PingMessage, nil) {
				_ = s.Close()
				return
			}
		}
	}
}

func (s *Session) write(kind int, data []byte) bool {
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		s.logger.Error("setting write deadline", "err", err)
		return false
	}
	if err := s.conn.WriteMessage(kind, data); err != nil {
		if !isExpectedCloseError(err) {
			s.logger.Error("websocket write error", "err", err)
		}
		return false
	}
	return true
}
