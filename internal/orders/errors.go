package orders

import (
	"net/http"

	"orderflow/internal/downstream"
)

// Saga step names, used for classification, metrics, and the compensation log.
const (
	StepPersist  = "persist"
	StepReserve  = "reserve"
	StepPayment  = "payment"
	StepShip     = "ship"
	StepFinalize = "finalize"
)

// ErrorKind is the caller-facing error taxonomy.
type ErrorKind string

const (
	// KindClient passes the upstream's own rejection through: the caller's
	// request was substantively invalid (out of stock, payment declined).
	KindClient ErrorKind = "client"
	// KindUpstream is a gateway-style error: the upstream failed or never
	// answered.
	KindUpstream ErrorKind = "upstream"
	// KindFinalization signals a failure after at least one irreversible
	// side effect, with best-effort compensation already run. Needs
	// reconciliation when a compensating action itself failed.
	KindFinalization ErrorKind = "finalization"
)

// Error is the classified, caller-visible failure of a saga run.
type Error struct {
	Kind   ErrorKind
	Status int
	Step   string
	Detail string
}

func (e *Error) Error() string {
	return e.Detail
}

var stepLabels = map[string]string{
	StepPersist:  "order persistence failed",
	StepReserve:  "inventory reservation failed",
	StepPayment:  "payment authorization failed",
	StepShip:     "shipment creation failed",
	StepFinalize: "order finalization failed",
}

// Classify maps a downstream failure plus the step it originated from to a
// caller-visible error. Client faults keep the upstream status and detail;
// server and transport faults collapse into a 502 naming the failing
// service; payment-step failures always surface on the 402 band; persist and
// finalize failures escalate to fatal finalization errors.
func Classify(step string, err error) *Error {
	label := stepLabels[step]
	if label == "" {
		label = "order processing failed"
	}

	if step == StepPersist || step == StepFinalize {
		return &Error{
			Kind:   KindFinalization,
			Status: http.StatusInternalServerError,
			Step:   step,
			Detail: label + ": " + err.Error(),
		}
	}

	fault, ok := downstream.AsFault(err)
	if !ok {
		return &Error{
			Kind:   KindFinalization,
			Status: http.StatusInternalServerError,
			Step:   step,
			Detail: label + ": " + err.Error(),
		}
	}

	out := &Error{Step: step, Detail: label + ": " + fault.Detail}
	switch fault.Class {
	case downstream.ClientFault:
		out.Kind = KindClient
		out.Status = fault.Status
	default:
		out.Kind = KindUpstream
		out.Status = http.StatusBadGateway
		out.Detail = label + ": " + fault.Service + " service unavailable: " + fault.Detail
	}

	// Payment failures get their own status band regardless of fault class.
	if step == StepPayment {
		out.Status = http.StatusPaymentRequired
	}
	return out
}
