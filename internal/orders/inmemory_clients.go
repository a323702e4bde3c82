package orders

import (
	"context"
	"fmt"
	"sync"
)

// NewInMemoryInventoryClient constructs an in-memory inventory client.
func NewInMemoryInventoryClient() *InMemoryInventoryClient {
	return &InMemoryInventoryClient{
		reservations: make(map[string]string),
		released:     make(map[string]bool),
		committed:    make(map[string]bool),
	}
}

// InMemoryInventoryClient tracks reservations in memory. Used for local runs
// and tests.
type InMemoryInventoryClient struct {
	mu           sync.Mutex
	seq          int
	reservations map[string]string // reservation id -> order id
	released     map[string]bool
	committed    map[string]bool
}

func (c *InMemoryInventoryClient) Reserve(ctx context.Context, orderID string, items []Item) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	id := fmt.Sprintf("resv-%d", c.seq)
	c.reservations[id] = orderID
	return id, nil
}

func (c *InMemoryInventoryClient) Release(ctx context.Context, reservationID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.released[reservationID] = true
	return nil
}

func (c *InMemoryInventoryClient) Commit(ctx context.Context, reservationID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.committed[reservationID] = true
	return nil
}

// WasReleased reports whether a reservation was released (for testing/inspection).
func (c *InMemoryInventoryClient) WasReleased(reservationID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.released[reservationID]
}

// WasCommitted reports whether a reservation was committed (for testing/inspection).
func (c *InMemoryInventoryClient) WasCommitted(reservationID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.committed[reservationID]
}

// NewInMemoryPaymentClient constructs an in-memory payment client that
// reports every authorization as completed.
func NewInMemoryPaymentClient() *InMemoryPaymentClient {
	return &InMemoryPaymentClient{
		charges: make(map[string]float64),
		refunds: make(map[string]bool),
		status:  PaymentStatusCompleted,
	}
}

// InMemoryPaymentClient tracks charges and refunds in memory.
type InMemoryPaymentClient struct {
	mu      sync.Mutex
	seq     int
	status  string
	charges map[string]float64 // payment id -> amount
	refunds map[string]bool
}

// SetBusinessStatus overrides the business status returned by Authorize
// (e.g. "declined").
func (c *InMemoryPaymentClient) SetBusinessStatus(status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = status
}

func (c *InMemoryPaymentClient) Authorize(ctx context.Context, orderID string, amount float64, currency string) (PaymentResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	id := fmt.Sprintf("pay-%d", c.seq)
	c.charges[id] = amount
	return PaymentResult{ID: id, Status: c.status}, nil
}

func (c *InMemoryPaymentClient) Refund(ctx context.Context, paymentID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.charges[paymentID]; !ok {
		return fmt.Errorf("refund without charge: %s", paymentID)
	}
	c.refunds[paymentID] = true
	return nil
}

// WasRefunded reports whether a payment was refunded (for testing/inspection).
func (c *InMemoryPaymentClient) WasRefunded(paymentID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refunds[paymentID]
}

// NewInMemoryShippingClient constructs an in-memory shipping client.
func NewInMemoryShippingClient() *InMemoryShippingClient {
	return &InMemoryShippingClient{shipments: make(map[string]string)}
}

// InMemoryShippingClient tracks shipments in memory.
type InMemoryShippingClient struct {
	mu        sync.Mutex
	seq       int
	shipments map[string]string // shipment id -> order id
}

func (c *InMemoryShippingClient) CreateShipment(ctx context.Context, orderID string, address Address, items []Item) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	id := fmt.Sprintf("ship-%d", c.seq)
	c.shipments[id] = orderID
	return id, nil
}
