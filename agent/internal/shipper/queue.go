package shipper

import (
	"sync"

	"github.com/rs/zerolog"
)

// Queue holds envelopes awaiting delivery in FIFO order.
// Implementations must be safe for concurrent use.
type Queue interface {
	// Push appends env. It must not block on delivery.
	Push(env Envelope) error
	// Peek returns the oldest envelope without removing it.
	Peek() (Envelope, bool, error)
	// Ack removes the envelope with id. Unknown ids are ignored.
	Ack(id string) error
	// Len returns the number of queued envelopes.
	Len() (int, error)
}

// MemQueue is a bounded in-memory Queue. When full, Push evicts the oldest
// envelope so the newest data is always kept.
type MemQueue struct {
	mu    sync.Mutex
	items []Envelope
	size  int
	log   zerolog.Logger
}

// NewMemQueue returns a MemQueue holding at most size envelopes.
func NewMemQueue(size int, log zerolog.Logger) *MemQueue {
	if size <= 0 {
		size = 1
	}
	return &MemQueue{size: size, log: log}
}

func (q *MemQueue) Push(env Envelope) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) >= q.size {
		evicted := q.items[0]
		q.items = q.items[1:]
		q.log.Warn().Str("kind", string(evicted.Kind)).Int("buffer_cap", q.size).
			Msg("shipper: buffer full, evicted oldest envelope")
	}
	q.items = append(q.items, env)
	return nil
}

func (q *MemQueue) Peek() (Envelope, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return Envelope{}, false, nil
	}
	return q.items[0], true, nil
}

func (q *MemQueue) Ack(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, env := range q.items {
		if env.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return nil
		}
	}
	return nil
}

func (q *MemQueue) Len() (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items), nil
}
