package orders

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"orderflow/internal/downstream"
	"orderflow/internal/observability"
)

// sagaState tags the coordinator's position in the fixed step sequence.
// Every transition out of a state is handled exhaustively in run; an
// unknown state panics into the catch-all.
type sagaState int

const (
	sagaCreated sagaState = iota
	sagaReserved
	sagaAuthorized
	sagaShipped
	sagaCompleted
)

// EventSink receives an order snapshot after every persisted transition.
type EventSink interface {
	OrderUpdated(order Order)
}

// Options carries the optional collaborators of an OrderService.
type Options struct {
	CompensationLog CompensationLog
	Metrics         *observability.Metrics
	Events          EventSink
	Logger          *slog.Logger
	NewID           func() string
}

// OrderService drives the order-fulfillment saga: reserve inventory,
// authorize payment, create shipment, finalize. Each run is a linear
// sequence of blocking calls; concurrent runs share nothing but the
// idempotency store. Once started, a run always reaches a terminal status
// (there is no crash recovery: a process restart strands non-terminal
// orders in the record store).
type OrderService struct {
	store       OrderStore
	inventory   InventoryClient
	payments    PaymentClient
	shipping    ShippingClient
	idempotency IdempotencyStore
	compensator *Compensator
	metrics     *observability.Metrics
	events      EventSink
	logger      *slog.Logger
	newID       func() string
}

// NewOrderService constructs the saga coordinator.
func NewOrderService(store OrderStore, inventory InventoryClient, payments PaymentClient, shipping ShippingClient, idempotency IdempotencyStore, opts Options) *OrderService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	if idempotency == nil {
		idempotency = NewInMemoryIdempotencyStore()
	}
	return &OrderService{
		store:       store,
		inventory:   inventory,
		payments:    payments,
		shipping:    shipping,
		idempotency: idempotency,
		compensator: NewCompensator(inventory, payments, opts.CompensationLog, opts.Metrics, logger),
		metrics:     opts.Metrics,
		events:      opts.Events,
		logger:      logger,
		newID:       newID,
	}
}

// CreateOrder runs one saga instance for the request. A repeated
// idempotency key returns the previously created order without issuing any
// downstream calls. Failures come back as *Error.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest, idempotencyKey string) (Order, error) {
	if idempotencyKey != "" {
		if id, ok, err := s.idempotency.Lookup(ctx, idempotencyKey); err != nil {
			s.logger.Warn("idempotency lookup failed", "error", err)
		} else if ok {
			return s.GetOrder(ctx, id)
		}
	}

	userID := req.UserID
	if userID == "" {
		userID = AnonymousUser
	}
	order := Order{
		ID:       s.newID(),
		UserID:   userID,
		Address:  req.Address,
		Currency: req.Currency,
		Items:    append([]Item(nil), req.Items...),
		Total:    Total(req.Items),
		Status:   StatusCreated,
	}

	span := s.metrics.Start(StepPersist)
	err := s.store.Create(ctx, order)
	span.End(err)
	if err != nil {
		// Nothing has been reserved yet: fatal to the request, no
		// compensation needed.
		return Order{}, Classify(StepPersist, err)
	}
	s.publish(order)

	if idempotencyKey != "" {
		winnerID, won, recErr := s.idempotency.Record(ctx, idempotencyKey, order.ID)
		if recErr != nil {
			s.logger.Warn("idempotency record failed", "order_id", order.ID, "error", recErr)
		} else if !won {
			// Lost a concurrent race for the key: discard this order and
			// serve the winner's.
			order.Status = StatusCancelled
			s.flush(ctx, order)
			return s.GetOrder(ctx, winnerID)
		}
	}

	return s.run(ctx, order)
}

// GetOrder reads an order from the record store.
func (s *OrderService) GetOrder(ctx context.Context, id string) (Order, error) {
	return s.store.Get(ctx, id)
}

// run drives the state machine from created to a terminal status. Any
// panic out of the step logic lands in the catch-all: cancel, compensate
// everything the markers say happened, and return a generic finalization
// error.
func (s *OrderService) run(ctx context.Context, order Order) (out Order, err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		s.logger.Error("saga run panicked", "order_id", order.ID, "panic", r)
		outcome := s.compensator.Run(ctx, order.ID, "", order.ReservationID, order.PaymentID)
		order.Status = StatusCancelled
		if outcome.Refund != nil {
			order.RefundAttempt = outcome.Refund
		}
		s.flush(ctx, order)
		out = Order{}
		err = &Error{
			Kind:   KindFinalization,
			Status: http.StatusInternalServerError,
			Step:   StepFinalize,
			Detail: "order processing failed",
		}
	}()

	state := sagaCreated
	for {
		switch state {
		case sagaCreated:
			span := s.metrics.Start(StepReserve)
			reservationID, stepErr := s.inventory.Reserve(ctx, order.ID, order.Items)
			span.End(stepErr)
			if stepErr != nil {
				return s.fail(ctx, order, StepReserve, stepErr)
			}
			order.ReservationID = reservationID
			state = sagaReserved

		case sagaReserved:
			span := s.metrics.Start(StepPayment)
			result, stepErr := s.payments.Authorize(ctx, order.ID, order.Total, order.Currency)
			if stepErr == nil && result.Status != PaymentStatusCompleted {
				// Transport-successful but declined at the business level:
				// a step failure like any other, cancel with no retry.
				stepErr = &downstream.Fault{
					Service: ServicePayment,
					Class:   downstream.ClientFault,
					Status:  http.StatusPaymentRequired,
					Detail:  fmt.Sprintf("payment not completed (status %q)", result.Status),
				}
			}
			span.End(stepErr)
			if stepErr != nil {
				return s.fail(ctx, order, StepPayment, stepErr)
			}
			order.PaymentID = result.ID
			state = sagaAuthorized

		case sagaAuthorized:
			span := s.metrics.Start(StepShip)
			shipmentID, stepErr := s.shipping.CreateShipment(ctx, order.ID, order.Address, order.Items)
			span.End(stepErr)
			if stepErr != nil {
				return s.fail(ctx, order, StepShip, stepErr)
			}
			order.ShipmentID = shipmentID
			state = sagaShipped

		case sagaShipped:
			order.Status = StatusCompleted
			span := s.metrics.Start(StepFinalize)
			stepErr := s.store.Update(ctx, order)
			span.End(stepErr)
			if stepErr != nil {
				return s.fail(ctx, order, StepFinalize, stepErr)
			}
			s.publish(order)

			// Inventory was decremented at reservation time, so a failed
			// commit never rolls back a completed order.
			if commitErr := s.inventory.Commit(ctx, order.ReservationID); commitErr != nil {
				s.logger.Warn("reservation commit failed after completion",
					"order_id", order.ID,
					"reservation_id", order.ReservationID,
					"error", commitErr,
				)
			}
			state = sagaCompleted

		case sagaCompleted:
			return order, nil

		default:
			panic(fmt.Sprintf("unhandled saga state %d", state))
		}
	}
}

// fail classifies the primary error, runs the compensation plan for the
// failed step, persists the terminal status best effort, and returns the
// classified error. Compensation and flush failures never change the
// caller-visible outcome.
func (s *OrderService) fail(ctx context.Context, order Order, step string, cause error) (Order, error) {
	classified := Classify(step, cause)
	s.logger.Error("saga step failed",
		"order_id", order.ID,
		"step", step,
		"kind", string(classified.Kind),
		"error", cause,
	)

	outcome := s.compensator.Run(ctx, order.ID, step, order.ReservationID, order.PaymentID)

	if step == StepShip {
		order.Status = StatusFailedShipping
		order.RefundAttempt = outcome.Refund
		switch {
		case outcome.Refund == nil:
			// No payment marker, nothing was refunded.
		case outcome.Refund.Success:
			classified.Detail += "; payment refund succeeded"
		default:
			classified.Detail += "; payment refund failed (needs manual reconciliation): " + outcome.Refund.Error
		}
	} else {
		order.Status = StatusCancelled
		if outcome.Refund != nil {
			order.RefundAttempt = outcome.Refund
		}
	}

	s.flush(ctx, order)
	return Order{}, classified
}

// flush writes a status-changing event to the record store best effort: a
// failed write is logged and never masks the primary outcome.
func (s *OrderService) flush(ctx context.Context, order Order) {
	if err := s.store.Update(ctx, order); err != nil {
		s.logger.Error("order store update failed",
			"order_id", order.ID,
			"status", string(order.Status),
			"error", err,
		)
		return
	}
	s.publish(order)
}

func (s *OrderService) publish(order Order) {
	if s.events != nil {
		s.events.OrderUpdated(order)
	}
}
