package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus_Valid(t *testing.T) {
	for _, s := range []Status{
		StatusPending, StatusWaitingPayment, StatusConfirmed,
		StatusShipped, StatusDelivered, StatusCancelled,
	} {
		assert.True(t, s.Valid(), "status %s", s)
	}
	assert.False(t, Status("returned").Valid())
	assert.False(t, Status("").Valid())
}

func TestStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from    Status
		to      Status
		allowed bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusShipped, false},
		{StatusPending, StatusDelivered, false},
		{StatusPending, StatusWaitingPayment, false},
		{StatusWaitingPayment, StatusConfirmed, true},
		{StatusWaitingPayment, StatusCancelled, true},
		{StatusWaitingPayment, StatusPending, false},
		{StatusConfirmed, StatusShipped, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusConfirmed, StatusPending, false},
		{StatusConfirmed, StatusDelivered, false},
		{StatusShipped, StatusDelivered, true},
		{StatusShipped, StatusCancelled, true},
		{StatusShipped, StatusConfirmed, false},
		{StatusDelivered, StatusCancelled, false},
		{StatusDelivered, StatusShipped, false},
		{StatusCancelled, StatusPending, false},
		{StatusCancelled, StatusConfirmed, false},
	}
	for _, tt := range tests {
		got := tt.from.CanTransition(tt.to)
		assert.Equal(t, tt.allowed, got, "%s -> %s", tt.from, tt.to)
	}
}

func TestStatus_NoSelfTransitions(t *testing.T) {
	for s := range statuses {
		assert.False(t, s.CanTransition(s), "status %s", s)
	}
}

func TestStatus_Terminal(t *testing.T) {
	assert.True(t, StatusDelivered.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusWaitingPayment.Terminal())
	assert.False(t, StatusConfirmed.Terminal())
	assert.False(t, StatusShipped.Terminal())
	assert.False(t, Status("returned").Terminal(), "unknown statuses are not terminal")
}

func TestPaymentStatus_Valid(t *testing.T) {
	for _, p := range []PaymentStatus{PaymentPending, PaymentCompleted, PaymentFailed} {
		assert.True(t, p.Valid(), "payment status %s", p)
	}
	assert.False(t, PaymentStatus("refunded").Valid())
	assert.False(t, PaymentStatus("").Valid())
}

func TestPaymentMethod_Valid(t *testing.T) {
	assert.True(t, PaymentCOD.Valid())
	assert.True(t, PaymentBankTransfer.Valid())
	assert.False(t, PaymentMethod("paypal").Valid())
	assert.False(t, PaymentMethod("").Valid())
}
