package ws

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/lounge/internal/realtime"
	"github.com/vedran77/lounge/internal/service"
	"nhooyr.io/websocket"
)

type Options struct {
	SendBufferSize int
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	// ReadLimit caps a single inbound frame in bytes.
	ReadLimit int64
}

func (o Options) withDefaults() Options {
	if o.SendBufferSize <= 0 {
		o.SendBufferSize = 256
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = 64 << 10
	}
	return o
}

const shutdownReason = "server shutting down"

// TokenParser turns an access token into a user id.
type TokenParser interface {
	ParseToken(token string) (uuid.UUID, error)
}

// Gateway accepts WebSocket connections and dispatches their events to the
// services. It holds no business state of its own.
type Gateway struct {
	auth       TokenParser
	registry   *realtime.Registry
	presence   *service.PresenceService
	membership *service.MembershipService
	messages   *service.MessageService
	typing     *service.TypingService
	opts       Options
	log        *slog.Logger

	// mu orders session registration against Shutdown.
	mu       sync.Mutex
	closing  bool
	sessions sync.WaitGroup
}

func NewGateway(
	auth TokenParser,
	registry *realtime.Registry,
	presence *service.PresenceService,
	membership *service.MembershipService,
	messages *service.MessageService,
	typing *service.TypingService,
	opts Options,
	logger *slog.Logger,
) *Gateway {
	return &Gateway{
		auth:       auth,
		registry:   registry,
		presence:   presence,
		membership: membership,
		messages:   messages,
		typing:     typing,
		opts:       opts.withDefaults(),
		log:        logger.With("component", "gateway"),
	}
}

// ServeWS returns an HTTP handler that upgrades to WebSocket.
// Auth is done via ?token=xxx query param (WebSocket can't send headers).
func ServeWS(gw *Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenStr := r.URL.Query().Get("token")
		if tokenStr == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}

		userID, err := gw.auth.ParseToken(tokenStr)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true, // Allow any origin (dev mode)
		})
		if err != nil {
			gw.log.Warn("websocket accept failed", "user_id", userID, "error", err)
			return
		}

		gw.serve(r.Context(), conn, userID)
	}
}

// serve owns the connection until it ends.
func (g *Gateway) serve(ctx context.Context, conn *websocket.Conn, userID uuid.UUID) {
	conn.SetReadLimit(g.opts.ReadLimit)
	s := newSession(conn, userID, g.opts.SendBufferSize)
	log := g.log.With("conn_id", s.id, "user_id", userID)

	g.mu.Lock()
	if g.closing {
		g.mu.Unlock()
		log.Debug("rejecting connection during shutdown")
		_ = conn.Close(websocket.StatusGoingAway, shutdownReason)
		return
	}
	g.sessions.Add(1)
	n := g.registry.Register(s)
	g.mu.Unlock()
	defer g.sessions.Done()

	s.setState(stateRegistered)
	defer g.disconnect(ctx, s, log)

	if err := g.presence.Connected(ctx, userID); err != nil {
		log.Warn("marking user online", "error", err)
	}
	rooms, err := g.membership.Reconcile(ctx, userID, s.id)
	if err != nil {
		log.Warn("restoring room subscriptions", "error", err)
	}
	log.Info("websocket connected", "user_conns", n, "rooms", rooms)

	err = s.run(ctx, g.opts, func(ctx context.Context, data []byte) {
		g.dispatch(ctx, s, data)
	})
	if err != nil {
		log.Warn("websocket session ended", "error", err)
	}
	_ = conn.Close(websocket.StatusNormalClosure, "")
}

// disconnect unregisters s and, if it was the user's last connection, marks
// the user offline. The request context is usually cancelled by now.
func (g *Gateway) disconnect(ctx context.Context, s *Session, log *slog.Logger) {
	s.finish(func() {
		remaining, _ := g.registry.Unregister(s.id)
		if err := g.presence.Disconnected(context.WithoutCancel(ctx), s.userID); err != nil {
			log.Warn("marking user offline", "error", err)
		}
		log.Info("websocket disconnected", "user_conns", remaining)
	})
}

// Shutdown closes every live session and waits for their cleanup to finish.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	g.closing = true
	g.mu.Unlock()

	g.registry.CloseAll(shutdownReason)

	done := make(chan struct{})
	go func() {
		g.sessions.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
