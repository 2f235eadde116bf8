package service

import (
	"sync"

	"github.com/google/uuid"
	"github.com/vedran77/lounge/internal/realtime"
)

// Publisher fans frames out to live connections. *realtime.Registry
// implements it.
type Publisher interface {
	Publish(key realtime.ChannelKey, payload []byte) int
	PublishExcept(key realtime.ChannelKey, payload []byte, exceptConnID string) int
}

// Subscriptions mirrors room membership into live connections.
// *realtime.Registry implements it.
type Subscriptions interface {
	Subscribe(connID string, key realtime.ChannelKey) bool
	SubscribeUser(userID uuid.UUID, key realtime.ChannelKey) int
	UnsubscribeUser(userID uuid.UUID, key realtime.ChannelKey) int
}

// keyedMutex serializes work per key. Entries are dropped once no caller
// holds or waits on them.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refLock)}
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &refLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
