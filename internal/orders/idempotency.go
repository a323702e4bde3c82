package orders

import (
	"context"
	"sync"
)

// IdempotencyStore maps a caller-supplied idempotency key to an order id.
// Entries are created at most once per key and read-only thereafter.
type IdempotencyStore interface {
	// Lookup returns the order id recorded for key, if any.
	Lookup(ctx context.Context, key string) (string, bool, error)
	// Record associates key with orderID. The first writer wins: concurrent
	// calls for the same key all return the single winning order id, and
	// won reports whether this call was the winner.
	Record(ctx context.Context, key, orderID string) (winnerID string, won bool, err error)
}

// InMemoryIdempotencyStore keeps idempotency keys for the lifetime of the
// process. Entries are never evicted, so the map grows with every distinct
// key; acceptable for the design, but a capacity risk for long-lived
// processes (the redis store is the durable alternative).
type InMemoryIdempotencyStore struct {
	mu   sync.Mutex
	keys map[string]string
}

// NewInMemoryIdempotencyStore constructs an empty in-memory store.
func NewInMemoryIdempotencyStore() *InMemoryIdempotencyStore {
	return &InMemoryIdempotencyStore{keys: make(map[string]string)}
}

func (s *InMemoryIdempotencyStore) Lookup(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.keys[key]
	return id, ok, nil
}

func (s *InMemoryIdempotencyStore) Record(ctx context.Context, key, orderID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if winner, ok := s.keys[key]; ok {
		return winner, false, nil
	}
	s.keys[key] = orderID
	return orderID, true, nil
}
