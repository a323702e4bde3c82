package orders

// Status is the caller-visible lifecycle state of an order. Once a terminal
// status is persisted it is never re-entered.
type Status string

const (
	StatusCreated        Status = "created"
	StatusCompleted      Status = "completed"
	StatusCancelled      Status = "cancelled"
	StatusFailedShipping Status = "failed_shipping"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusFailedShipping:
		return true
	}
	return false
}

// AnonymousUser is recorded when a request carries no user id.
const AnonymousUser = "anonymous"

// Address is a shipping destination.
type Address struct {
	Line1      string `json:"line1"`
	City       string `json:"city"`
	Country    string `json:"country"`
	PostalCode string `json:"postalCode"`
}

// Item is a single order line.
type Item struct {
	SKU   string  `json:"sku"`
	Qty   int     `json:"qty"`
	Price float64 `json:"price"`
}

// RefundAttempt records the outcome of the refund issued while compensating
// a shipping failure, so operators can tell automatically resolved failures
// from ones needing manual reconciliation.
type RefundAttempt struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Order is the transactional record. The copy held by the coordinator during
// a saga run is a draft; the external order store is the source of truth.
type Order struct {
	ID       string  `json:"id"`
	UserID   string  `json:"userId"`
	Address  Address `json:"address"`
	Currency string  `json:"currency"`
	Items    []Item  `json:"items"`
	Total    float64 `json:"total"`
	Status   Status  `json:"status"`

	// Progress markers, set only once the corresponding step succeeded.
	ReservationID string `json:"reservationId,omitempty"`
	PaymentID     string `json:"paymentId,omitempty"`
	ShipmentID    string `json:"shipmentId,omitempty"`

	RefundAttempt *RefundAttempt `json:"refundAttempt,omitempty"`
}

// CreateOrderRequest is the coordinator-facing input for a new order.
type CreateOrderRequest struct {
	UserID   string  `json:"userId"`
	Address  Address `json:"address"`
	Currency string  `json:"currency"`
	Items    []Item  `json:"items"`
}

// Total sums quantity*unitPrice over the items. The caller never supplies a
// total; it is always recomputed here.
func Total(items []Item) float64 {
	var sum float64
	for _, it := range items {
		sum += float64(it.Qty) * it.Price
	}
	return sum
}
