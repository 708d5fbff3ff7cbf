// Package metrics holds the relay's in-process event counters.
package metrics

import "sync"

// Event names counted by the relay.
const (
	ConnectionsOpened = "connections_opened"
	ConnectionsClosed = "connections_closed"
	JoinsAccepted     = "joins_accepted"
	JoinsRejected     = "joins_rejected"
	Departures        = "departures"
	SignalsRelayed    = "signals_relayed"
	SignalsDropped    = "signals_dropped"
	Broadcasts        = "broadcasts"
	SendQueueOverflow = "send_queue_overflow"
	MalformedMessages = "malformed_messages"
)

// Metrics is a concurrency-safe counter registry.
type Metrics struct {
	mu sync.Mutex
	m  map[string]uint64
}

func New() *Metrics {
	return &Metrics{
		m: make(map[string]uint64),
	}
}

func (m *Metrics) Inc(name string) {
	m.Add(name, 1)
}

func (m *Metrics) Add(name string, n uint64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.m[name] += n
	m.mu.Unlock()
}

func (m *Metrics) Get(name string) uint64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.m[name]
}

// Snapshot copies every counter.
func (m *Metrics) Snapshot() map[string]uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]uint64, len(m.m))
	for k, v := range m.m {
		out[k] = v
	}
	return out
}
