package order

import "fmt"

// statuses is the closed set of order statuses.
var statuses = map[Status]struct{}{
	StatusPending:        {},
	StatusWaitingPayment: {},
	StatusConfirmed:      {},
	StatusShipped:        {},
	StatusDelivered:      {},
	StatusCancelled:      {},
}

// paymentStatuses is the closed set of payment statuses.
var paymentStatuses = map[PaymentStatus]struct{}{
	PaymentPending:   {},
	PaymentCompleted: {},
	PaymentFailed:    {},
}

// transitions is the forward-only order lifecycle. pending and
// waiting_payment are alternate initial states depending on the payment
// method; neither is reachable from the other. cancelled is reachable
// from every non-terminal state; delivered and cancelled are terminal.
var transitions = map[Status][]Status{
	StatusPending:        {StatusConfirmed, StatusCancelled},
	StatusWaitingPayment: {StatusConfirmed, StatusCancelled},
	StatusConfirmed:      {StatusShipped, StatusCancelled},
	StatusShipped:        {StatusDelivered, StatusCancelled},
	StatusDelivered:      {},
	StatusCancelled:      {},
}

// Valid reports whether s is one of the enumerated order statuses.
func (s Status) Valid() bool {
	_, ok := statuses[s]
	return ok
}

// Terminal reports whether no further transitions leave s.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0 && s.Valid()
}

// CanTransition reports whether moving from s to next is allowed.
func (s Status) CanTransition(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Valid reports whether p is one of the enumerated payment statuses.
func (p PaymentStatus) Valid() bool {
	_, ok := paymentStatuses[p]
	return ok
}

// Valid reports whether m is a supported payment method.
func (m PaymentMethod) Valid() bool {
	return m == PaymentCOD || m == PaymentBankTransfer
}

// InvalidStatusError reports a status value outside the enumerated set.
type InvalidStatusError struct {
	Value string
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("invalid status %q", e.Value)
}

// IllegalTransitionError reports a transition between two valid statuses
// that the lifecycle graph forbids.
type IllegalTransitionError struct {
	From Status
	To   Status
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal status transition %s -> %s", e.From, e.To)
}
