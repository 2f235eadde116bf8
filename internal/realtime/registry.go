// Package realtime holds the in-memory connection registry and the wire
// vocabulary shared by the gateway and the services that publish through it.
package realtime

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// ErrTransport is wrapped by Conn implementations when a frame cannot be
// handed to the client.
var ErrTransport = errors.New("transport error")

const defaultMaxSendFailures = 3

// Conn is one live client session as seen by the Registry.
type Conn interface {
	ID() string
	UserID() uuid.UUID
	// Send must not block; slow clients are expected to fail fast.
	Send(payload []byte) error
	Close(reason string)
}

type Options struct {
	// MaxSendFailures is the number of consecutive failed sends after which a
	// connection is evicted and closed.
	MaxSendFailures int
}

type entry struct {
	conn     Conn
	channels map[ChannelKey]struct{}
	failures atomic.Int32
}

// Registry maps channel keys to the live connections subscribed to them.
// Mutations and publish snapshots share one RWMutex; sends happen outside it.
type Registry struct {
	mu       sync.RWMutex
	conns    map[string]*entry
	byUser   map[uuid.UUID]map[string]*entry
	channels map[ChannelKey]map[string]*entry

	maxFailures int32
	log         *slog.Logger
}

func NewRegistry(logger *slog.Logger, opts Options) *Registry {
	if opts.MaxSendFailures <= 0 {
		opts.MaxSendFailures = defaultMaxSendFailures
	}
	return &Registry{
		conns:       make(map[string]*entry),
		byUser:      make(map[uuid.UUID]map[string]*entry),
		channels:    make(map[ChannelKey]map[string]*entry),
		maxFailures: int32(opts.MaxSendFailures),
		log:         logger.With("component", "registry"),
	}
}

// Register subscribes conn to its user channel and the presence channel and
// returns how many live connections the user now has. Registering the same
// connection twice is a no-op.
func (r *Registry) Register(conn Conn) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID := conn.UserID()
	if _, ok := r.conns[conn.ID()]; !ok {
		e := &entry{conn: conn, channels: make(map[ChannelKey]struct{})}
		r.conns[conn.ID()] = e

		userConns := r.byUser[userID]
		if userConns == nil {
			userConns = make(map[string]*entry)
			r.byUser[userID] = userConns
		}
		userConns[conn.ID()] = e

		r.subscribeLocked(e, UserChannel(userID))
		r.subscribeLocked(e, PresenceChannel)
	}

	n := len(r.byUser[userID])
	r.log.Debug("connection registered", "conn_id", conn.ID(), "user_id", userID, "user_conns", n, "total", len(r.conns))
	return n
}

// Subscribe reports false when the connection is unknown, which happens when
// a subscribe races the connection's own disconnect.
func (r *Registry) Subscribe(connID string, key ChannelKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.conns[connID]
	if !ok {
		r.log.Debug("subscribe for unknown connection", "conn_id", connID, "channel", key)
		return false
	}
	r.subscribeLocked(e, key)
	return true
}

func (r *Registry) Unsubscribe(connID string, key ChannelKey) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.conns[connID]; ok {
		r.unsubscribeLocked(e, key)
	}
}

// SubscribeUser subscribes every live connection of userID to key.
func (r *Registry) SubscribeUser(userID uuid.UUID, key ChannelKey) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.byUser[userID] {
		r.subscribeLocked(e, key)
	}
	return len(r.byUser[userID])
}

// UnsubscribeUser removes key from every live connection of userID.
func (r *Registry) UnsubscribeUser(userID uuid.UUID, key ChannelKey) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.byUser[userID] {
		r.unsubscribeLocked(e, key)
	}
	return len(r.byUser[userID])
}

// Unregister drops the connection from every channel. It returns the user's
// remaining connection count and false if the connection was already gone.
func (r *Registry) Unregister(connID string) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.conns[connID]
	if !ok {
		return 0, false
	}

	for key := range e.channels {
		r.unsubscribeLocked(e, key)
	}
	delete(r.conns, connID)

	userID := e.conn.UserID()
	userConns := r.byUser[userID]
	delete(userConns, connID)
	if len(userConns) == 0 {
		delete(r.byUser, userID)
	}

	remaining := len(userConns)
	r.log.Debug("connection unregistered", "conn_id", connID, "user_id", userID, "user_conns", remaining, "total", len(r.conns))
	return remaining, true
}

// Publish sends payload to every connection subscribed to key and returns the
// number of successful deliveries.
func (r *Registry) Publish(key ChannelKey, payload []byte) int {
	return r.publish(key, payload, "")
}

// PublishExcept is Publish without the connection exceptConnID.
func (r *Registry) PublishExcept(key ChannelKey, payload []byte, exceptConnID string) int {
	return r.publish(key, payload, exceptConnID)
}

func (r *Registry) publish(key ChannelKey, payload []byte, except string) int {
	r.mu.RLock()
	targets := lo.Filter(lo.Values(r.channels[key]), func(e *entry, _ int) bool {
		return e.conn.ID() != except
	})
	r.mu.RUnlock()

	delivered := 0
	for _, e := range targets {
		if err := e.conn.Send(payload); err != nil {
			failures := e.failures.Add(1)
			r.log.Warn("delivery failed",
				"conn_id", e.conn.ID(),
				"user_id", e.conn.UserID(),
				"channel", key,
				"failures", failures,
				"error", err,
			)
			if failures >= r.maxFailures {
				r.evict(e)
			}
			continue
		}
		e.failures.Store(0)
		delivered++
	}
	return delivered
}

func (r *Registry) evict(e *entry) {
	if _, ok := r.Unregister(e.conn.ID()); !ok {
		return
	}
	r.log.Info("evicting stale connection", "conn_id", e.conn.ID(), "user_id", e.conn.UserID())
	e.conn.Close("too many failed deliveries")
}

// CloseAll closes every registered connection. Used on shutdown.
func (r *Registry) CloseAll(reason string) {
	r.mu.RLock()
	conns := lo.MapToSlice(r.conns, func(_ string, e *entry) Conn { return e.conn })
	r.mu.RUnlock()

	for _, c := range conns {
		c.Close(reason)
	}
}

func (r *Registry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

func (r *Registry) UserConnections(userID uuid.UUID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID])
}

func (r *Registry) Subscribers(key ChannelKey) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels[key])
}

func (r *Registry) IsSubscribed(connID string, key ChannelKey) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[connID]
	if !ok {
		return false
	}
	_, ok = e.channels[key]
	return ok
}

func (r *Registry) subscribeLocked(e *entry, key ChannelKey) {
	if _, ok := e.channels[key]; ok {
		return
	}
	e.channels[key] = struct{}{}

	subs := r.channels[key]
	if subs == nil {
		subs = make(map[string]*entry)
		r.channels[key] = subs
	}
	subs[e.conn.ID()] = e
}

func (r *Registry) unsubscribeLocked(e *entry, key ChannelKey) {
	if _, ok := e.channels[key]; !ok {
		return
	}
	delete(e.channels, key)

	subs := r.channels[key]
	delete(subs, e.conn.ID())
	if len(subs) == 0 {
		delete(r.channels, key)
	}
}
