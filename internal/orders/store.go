package orders

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"orderflow/internal/downstream"
)

// ErrOrderNotFound signals the record store has no order for the id.
var ErrOrderNotFound = errors.New("order not found")

// OrderStore is the remote order record store, the source of truth for
// status and progress markers.
type OrderStore interface {
	Create(ctx context.Context, order Order) error
	Update(ctx context.Context, order Order) error
	Get(ctx context.Context, id string) (Order, error)
}

// HTTPOrderStore talks to the order record service over HTTP.
type HTTPOrderStore struct {
	caller  downstream.Caller
	baseURL string
}

// NewHTTPOrderStore constructs an order store client rooted at baseURL.
func NewHTTPOrderStore(caller downstream.Caller, baseURL string) *HTTPOrderStore {
	return &HTTPOrderStore{caller: caller, baseURL: baseURL}
}

func (s *HTTPOrderStore) Create(ctx context.Context, order Order) error {
	_, err := s.caller.Call(ctx, ServiceOrders, http.MethodPost, s.baseURL+"/orders", order)
	return err
}

func (s *HTTPOrderStore) Update(ctx context.Context, order Order) error {
	_, err := s.caller.Call(ctx, ServiceOrders, http.MethodPut, s.baseURL+"/orders/"+order.ID, order)
	return err
}

func (s *HTTPOrderStore) Get(ctx context.Context, id string) (Order, error) {
	data, err := s.caller.Call(ctx, ServiceOrders, http.MethodGet, s.baseURL+"/orders/"+id, nil)
	if err != nil {
		if fault, ok := downstream.AsFault(err); ok && fault.Status == http.StatusNotFound {
			return Order{}, ErrOrderNotFound
		}
		return Order{}, err
	}
	var order Order
	if err := downstream.DecodeJSON(ServiceOrders, data, &order); err != nil {
		return Order{}, err
	}
	return order, nil
}

// InMemoryOrderStore keeps orders in a process-local map. Used for local
// runs and tests.
type InMemoryOrderStore struct {
	mu     sync.Mutex
	orders map[string]Order
}

// NewInMemoryOrderStore constructs an empty in-memory store.
func NewInMemoryOrderStore() *InMemoryOrderStore {
	return &InMemoryOrderStore{orders: make(map[string]Order)}
}

func (s *InMemoryOrderStore) Create(ctx context.Context, order Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.ID] = order
	return nil
}

func (s *InMemoryOrderStore) Update(ctx context.Context, order Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[order.ID]; !ok {
		return ErrOrderNotFound
	}
	s.orders[order.ID] = order
	return nil
}

func (s *InMemoryOrderStore) Get(ctx context.Context, id string) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	return order, nil
}
