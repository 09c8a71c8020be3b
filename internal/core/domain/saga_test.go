package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func order(status OrderStatus, payment PaymentStatus) Order {
	o := NewOrder("o-1", "alice", "laptop", time.Unix(0, 0))
	o.Status = status
	o.PaymentStatus = payment
	return o
}

func TestNext_Advance(t *testing.T) {
	tests := []struct {
		name        string
		in          Order
		wantStatus  OrderStatus
		wantOutcome Outcome
		wantDelete  bool
		wantEffects []Effect
		wantErr     error
	}{
		{
			name:        "placed and unpaid stays placed",
			in:          order(OrderStatusPlaced, PaymentStatusUnpaid),
			wantStatus:  OrderStatusPlaced,
			wantOutcome: OutcomeUnchanged,
			wantErr:     ErrPaymentRequired,
		},
		{
			name:        "placed and paid ships",
			in:          order(OrderStatusPlaced, PaymentStatusPaid),
			wantStatus:  OrderStatusShipped,
			wantOutcome: OutcomeShipped,
		},
		{
			name:        "shipped is delivered",
			in:          order(OrderStatusShipped, PaymentStatusPaid),
			wantStatus:  OrderStatusDelivered,
			wantOutcome: OutcomeDelivered,
		},
		{
			name:        "delivered is deleted with removal",
			in:          order(OrderStatusDelivered, PaymentStatusPaid),
			wantStatus:  OrderStatusDelivered,
			wantOutcome: OutcomeCompleted,
			wantDelete:  true,
			wantEffects: []Effect{EffectOrderRemoved},
		},
		{
			name:        "waiting order cannot advance",
			in:          order(OrderStatusWaitingToPlace, PaymentStatusUnpaid),
			wantStatus:  OrderStatusWaitingToPlace,
			wantOutcome: OutcomeUnchanged,
			wantErr:     ErrInvalidState,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := Next(tt.in, ActionAdvance)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantStatus, tr.Order.Status)
			assert.Equal(t, tt.wantOutcome, tr.Outcome)
			assert.Equal(t, tt.wantDelete, tr.Delete)
			assert.Equal(t, tt.wantEffects, tr.Effects)
		})
	}
}

func TestNext_PaymentDueMessage(t *testing.T) {
	_, err := Next(order(OrderStatusPlaced, PaymentStatusUnpaid), ActionAdvance)

	assert.Equal(t, 402, StatusOf(err))
	assert.Equal(t, "Payment is due !", MessageOf(err))
}

func TestNext_Cancel(t *testing.T) {
	tr, err := Next(order(OrderStatusPlaced, PaymentStatusUnpaid), ActionCancel)
	require.NoError(t, err)
	assert.True(t, tr.Delete)
	assert.Equal(t, []Effect{EffectOrderRemoved, EffectStockRelease}, tr.Effects)

	for _, s := range []OrderStatus{OrderStatusWaitingToPlace, OrderStatusShipped, OrderStatusDelivered} {
		tr, err := Next(order(s, PaymentStatusPaid), ActionCancel)
		require.ErrorIs(t, err, ErrInvalidState, s)
		assert.Equal(t, MsgOrderAlreadyProcessed, MessageOf(err))
		assert.False(t, tr.Delete)
		assert.Empty(t, tr.Effects)
	}
}

func TestNext_Confirm(t *testing.T) {
	tr, err := Next(order(OrderStatusWaitingToPlace, PaymentStatusUnpaid), ActionConfirm)
	require.NoError(t, err)
	assert.Equal(t, OrderStatusPlaced, tr.Order.Status)
	assert.Equal(t, OutcomePlaced, tr.Outcome)

	// redelivered confirmation must not move a shipped order back
	tr, err = Next(order(OrderStatusShipped, PaymentStatusPaid), ActionConfirm)
	require.NoError(t, err)
	assert.Equal(t, OrderStatusShipped, tr.Order.Status)
	assert.Equal(t, OutcomeUnchanged, tr.Outcome)
}

func TestNext_UnknownAction(t *testing.T) {
	_, err := Next(order(OrderStatusPlaced, PaymentStatusPaid), Action("refund"))
	assert.True(t, errors.Is(err, ErrValidation))
}
