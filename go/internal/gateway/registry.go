package gateway

import (
	"errors"
	"sync"
)

var (
	ErrSendBufferFull   = errors.New("send buffer full")
	ErrConnectionClosed = errors.New("connection closed")
)

// Sink is the outbound half of a client connection.
type Sink interface {
	// Send queues data without blocking. An error means the peer is gone or
	// too slow and should be dropped.
	Send(data []byte) error
	Close() error
}

type entry struct {
	id   string
	sink Sink
}

// Registry maps connection ids to sinks.
type Registry struct {
	mu    sync.RWMutex
	sinks map[string]Sink
}

func NewRegistry() *Registry {
	return &Registry{sinks: make(map[string]Sink)}
}

// Register adds a sink, replacing any sink already under id.
func (r *Registry) Register(id string, sink Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[id] = sink
}

// Unregister removes id. Unknown ids are ignored.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sinks[id]; !ok {
		return false
	}
	delete(r.sinks, id)
	return true
}

// unregisterSink removes id only while it still maps to sink, so a failed send
// cannot evict a connection that re-registered under the same id.
func (r *Registry) unregisterSink(id string, sink Sink) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.sinks[id]; !ok || cur != sink {
		return false
	}
	delete(r.sinks, id)
	return true
}

func (r *Registry) Get(id string) (Sink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sinks[id]
	return s, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sinks)
}

// snapshot copies the registry so callers can send without holding the lock.
func (r *Registry) snapshot() []entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]entry, 0, len(r.sinks))
	for id, s := range r.sinks {
		out = append(out, entry{id: id, sink: s})
	}
	return out
}
