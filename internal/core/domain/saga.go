package domain

// Action is a request to move an order through its lifecycle.
type Action string

const (
	ActionConfirm Action = "confirm"
	ActionAdvance Action = "advance"
	ActionCancel  Action = "cancel"
)

// Effect is a side effect the coordinator must perform after a transition.
type Effect string

const (
	EffectOrderRemoved Effect = ChannelOrderRemoved
	EffectStockRelease Effect = ChannelStockRelease
)

// Outcome names what a transition did, so callers can pick a reply.
type Outcome string

const (
	OutcomeUnchanged Outcome = "unchanged"
	OutcomePlaced    Outcome = "placed"
	OutcomeShipped   Outcome = "shipped"
	OutcomeDelivered Outcome = "delivered"
	OutcomeCompleted Outcome = "completed"
	OutcomeCancelled Outcome = "cancelled"
)

const (
	MsgPaymentDue            = "Payment is due !"
	MsgOrderAlreadyProcessed = "Order already processed"
	MsgOrderNotPlaced        = "Order is not placed yet"
)

// Transition is the result of applying an Action to an Order. When Delete is
// set, Order holds the record as it was before removal.
type Transition struct {
	Order   Order
	Outcome Outcome
	Delete  bool
	Effects []Effect
}

// Next computes the state change for action without touching any store.
func Next(o Order, action Action) (Transition, error) {
	switch action {
	case ActionConfirm:
		return confirm(o), nil
	case ActionAdvance:
		return advance(o)
	case ActionCancel:
		return cancel(o)
	}
	return Transition{}, NewError(ErrValidation, "unknown action "+string(action))
}

func confirm(o Order) Transition {
	if o.Status != OrderStatusWaitingToPlace {
		return Transition{Order: o, Outcome: OutcomeUnchanged}
	}
	o.Status = OrderStatusPlaced
	return Transition{Order: o, Outcome: OutcomePlaced}
}

func advance(o Order) (Transition, error) {
	switch o.Status {
	case OrderStatusPlaced:
		if !o.IsPaid() {
			return Transition{Order: o, Outcome: OutcomeUnchanged}, NewError(ErrPaymentRequired, MsgPaymentDue)
		}
		o.Status = OrderStatusShipped
		return Transition{Order: o, Outcome: OutcomeShipped}, nil
	case OrderStatusShipped:
		o.Status = OrderStatusDelivered
		return Transition{Order: o, Outcome: OutcomeDelivered}, nil
	case OrderStatusDelivered:
		return Transition{
			Order:   o,
			Outcome: OutcomeCompleted,
			Delete:  true,
			Effects: []Effect{EffectOrderRemoved},
		}, nil
	}
	return Transition{Order: o, Outcome: OutcomeUnchanged}, InvalidState(MsgOrderNotPlaced)
}

func cancel(o Order) (Transition, error) {
	if o.Status != OrderStatusPlaced {
		return Transition{Order: o, Outcome: OutcomeUnchanged}, InvalidState(MsgOrderAlreadyProcessed)
	}
	return Transition{
		Order:   o,
		Outcome: OutcomeCancelled,
		Delete:  true,
		Effects: []Effect{EffectOrderRemoved, EffectStockRelease},
	}, nil
}
