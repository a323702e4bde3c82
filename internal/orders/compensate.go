package orders

import (
	"context"
	"log/slog"

	"orderflow/internal/observability"
)

// Compensation action names, recorded in the compensation log.
const (
	ActionRefundPayment      = "refund_payment"
	ActionReleaseReservation = "release_reservation"
)

// CompensationLog records the outcome of every compensating action for
// operator visibility. Implementations must tolerate being called on the
// failure path; their own errors are swallowed by the engine.
type CompensationLog interface {
	Record(ctx context.Context, orderID, action string, succeeded bool, detail string) error
}

// NoopCompensationLog discards compensation records.
type NoopCompensationLog struct{}

func (NoopCompensationLog) Record(ctx context.Context, orderID, action string, succeeded bool, detail string) error {
	return nil
}

// compensationPlan is a pure function of the failed step and the progress
// markers accumulated so far: it returns the ordered undo actions to issue.
// Actions are guarded by marker presence, so nothing is ever undone that was
// not done.
func compensationPlan(failedStep, reservationID, paymentID string) []string {
	var plan []string
	switch failedStep {
	case StepPersist, StepReserve:
		// Nothing succeeded yet; nothing to undo.
	case StepPayment:
		if reservationID != "" {
			plan = append(plan, ActionReleaseReservation)
		}
	default:
		// Shipping, finalization, and the catch-all path: refund first,
		// then release.
		if paymentID != "" {
			plan = append(plan, ActionRefundPayment)
		}
		if reservationID != "" {
			plan = append(plan, ActionReleaseReservation)
		}
	}
	return plan
}

// CompensationOutcome reports what the engine did. Refund is non-nil iff a
// refund was attempted.
type CompensationOutcome struct {
	Refund *RefundAttempt
}

// Compensator executes best-effort undo sequences. Failures of individual
// actions are recorded and logged, never propagated: a secondary failure
// during cleanup must not mask the primary error.
type Compensator struct {
	inventory InventoryClient
	payments  PaymentClient
	log       CompensationLog
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// NewCompensator constructs a compensation engine. log, metrics, and logger
// may be nil.
func NewCompensator(inventory InventoryClient, payments PaymentClient, log CompensationLog, metrics *observability.Metrics, logger *slog.Logger) *Compensator {
	if log == nil {
		log = NoopCompensationLog{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Compensator{
		inventory: inventory,
		payments:  payments,
		log:       log,
		metrics:   metrics,
		logger:    logger,
	}
}

// Run executes the undo sequence for the given failure point.
func (c *Compensator) Run(ctx context.Context, orderID, failedStep, reservationID, paymentID string) CompensationOutcome {
	var outcome CompensationOutcome

	for _, action := range compensationPlan(failedStep, reservationID, paymentID) {
		var err error
		switch action {
		case ActionRefundPayment:
			err = c.payments.Refund(ctx, paymentID)
			attempt := &RefundAttempt{Success: err == nil}
			if err != nil {
				attempt.Error = err.Error()
			}
			outcome.Refund = attempt
		case ActionReleaseReservation:
			err = c.inventory.Release(ctx, reservationID)
		}

		c.record(ctx, orderID, action, err)
	}

	return outcome
}

func (c *Compensator) record(ctx context.Context, orderID, action string, err error) {
	detail := ""
	if err != nil {
		detail = err.Error()
		c.logger.Warn("compensation action failed",
			"order_id", orderID,
			"action", action,
			"error", err,
		)
	}
	c.metrics.AddCompensation(action, err != nil)

	if logErr := c.log.Record(ctx, orderID, action, err == nil, detail); logErr != nil {
		c.logger.Warn("compensation log write failed",
			"order_id", orderID,
			"action", action,
			"error", logErr,
		)
	}
}
