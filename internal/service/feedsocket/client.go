// Package feedsocket is the push-channel client of the desk: a gorilla WebSocket connection that
// yields raw JSON frames.
package feedsocket

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	drepo "ChartDesk/internal/domain/repository"
	"ChartDesk/pkg/logger"
)

// Dialer opens feed sockets.
type Dialer struct {
	dialer       *websocket.Dialer
	header       http.Header
	pingInterval time.Duration
	log          *logger.Logger
}

// Option configures a Dialer.
type Option func(*Dialer)

// WithPingInterval sets the keepalive ping cadence. Zero disables pings.
func WithPingInterval(d time.Duration) Option { return func(x *Dialer) { x.pingInterval = d } }

// WithHeader adds handshake headers.
func WithHeader(h http.Header) Option { return func(x *Dialer) { x.header = h } }

// WithHandshakeTimeout bounds the opening handshake.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(x *Dialer) { x.dialer.HandshakeTimeout = d }
}

// NewDialer creates a Dialer with a 30s ping interval.
func NewDialer(log *logger.Logger, opts ...Option) *Dialer {
	if log == nil {
		log = logger.Nop()
	}
	base := *websocket.DefaultDialer
	d := &Dialer{dialer: &base, pingInterval: 30 * time.Second, log: log}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dial implements drepo.FeedDialer.
func (d *Dialer) Dial(ctx context.Context, url string) (drepo.FeedSocket, error) {
	conn, _, err := d.dialer.DialContext(ctx, url, d.header)
	if err != nil {
		return nil, fmt.Errorf("feed socket dial: %w", err)
	}
	s := &Socket{conn: conn, done: make(chan struct{})}
	if d.pingInterval > 0 {
		go s.pingLoop(d.pingInterval)
	}
	d.log.Debug("feed socket connected", logger.String("url", url))
	return s, nil
}

// Socket is one open connection.
type Socket struct {
	conn      *websocket.Conn
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// ReadMessage blocks for the next data frame. Cancelling ctx closes the socket.
func (s *Socket) ReadMessage(ctx context.Context) ([]byte, error) {
	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()
	_, b, err := s.conn.ReadMessage()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("feed socket read: %w", err)
	}
	return b, nil
}

func (s *Socket) pingLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}

// Close sends a close frame and releases the connection. Safe to call more than once.
func (s *Socket) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}
