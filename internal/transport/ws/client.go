package ws

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/lounge/internal/realtime"
	"golang.org/x/sync/errgroup"
	"nhooyr.io/websocket"
)

type sessionState int32

const (
	stateConnecting sessionState = iota
	stateRegistered
	stateDisconnected
)

func (s sessionState) String() string {
	switch s {
	case stateConnecting:
		return "connecting"
	case stateRegistered:
		return "registered"
	case stateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

var (
	errSessionClosed = errors.New("session closed")
	errPeerClosed    = errors.New("peer closed the connection")
)

// Session is one live WebSocket connection. It implements realtime.Conn.
type Session struct {
	id     string
	userID uuid.UUID
	conn   *websocket.Conn

	send chan []byte
	done chan struct{}

	closeOnce  sync.Once
	closeMsg   atomic.Value
	finishOnce sync.Once
	state      atomic.Int32
}

func newSession(conn *websocket.Conn, userID uuid.UUID, bufSize int) *Session {
	return &Session{
		id:     uuid.NewString(),
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, bufSize),
		done:   make(chan struct{}),
	}
}

func (s *Session) ID() string        { return s.id }
func (s *Session) UserID() uuid.UUID { return s.userID }

// Send queues payload for the write loop. It never blocks.
func (s *Session) Send(payload []byte) error {
	select {
	case <-s.done:
		return fmt.Errorf("%w: %w", realtime.ErrTransport, errSessionClosed)
	default:
	}

	select {
	case s.send <- payload:
		return nil
	default:
		return fmt.Errorf("%w: send queue full", realtime.ErrTransport)
	}
}

// Close asks the write loop to send a close frame and stop. Safe to call
// more than once and from any goroutine.
func (s *Session) Close(reason string) {
	s.closeOnce.Do(func() {
		s.closeMsg.Store(reason)
		close(s.done)
	})
}

func (s *Session) closeReason() string {
	if v, ok := s.closeMsg.Load().(string); ok {
		return v
	}
	return ""
}

func (s *Session) State() sessionState {
	return sessionState(s.state.Load())
}

func (s *Session) setState(st sessionState) {
	s.state.Store(int32(st))
}

// finish runs fn once for the lifetime of the session.
func (s *Session) finish(fn func()) {
	s.finishOnce.Do(func() {
		fn()
		s.setState(stateDisconnected)
	})
}

// run drives the read and write loops until either of them stops. The
// returned error is nil for ordinary disconnects.
func (s *Session) run(ctx context.Context, opts Options, handle func(ctx context.Context, data []byte)) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.readLoop(ctx, handle) })
	g.Go(func() error { return s.writeLoop(ctx, opts.WriteTimeout, opts.PingInterval) })

	err := g.Wait()
	switch {
	case errors.Is(err, errPeerClosed), errors.Is(err, errSessionClosed), errors.Is(err, context.Canceled):
		return nil
	default:
		return err
	}
}

func (s *Session) readLoop(ctx context.Context, handle func(ctx context.Context, data []byte)) error {
	for {
		typ, data, err := s.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				return errPeerClosed
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: read: %w", realtime.ErrTransport, err)
		}
		if typ != websocket.MessageText {
			handle(ctx, nil)
			continue
		}
		handle(ctx, data)
	}
}

func (s *Session) writeLoop(ctx context.Context, writeTimeout, pingInterval time.Duration) error {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case frame := <-s.send:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := s.conn.Write(wctx, websocket.MessageText, frame)
			cancel()
			if err != nil {
				return fmt.Errorf("%w: write: %w", realtime.ErrTransport, err)
			}

		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := s.conn.Ping(pctx)
			cancel()
			if err != nil {
				return fmt.Errorf("%w: ping: %w", realtime.ErrTransport, err)
			}

		case <-s.done:
			_ = s.conn.Close(websocket.StatusGoingAway, s.closeReason())
			return errSessionClosed

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
