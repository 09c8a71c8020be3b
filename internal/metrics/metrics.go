package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReservationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ordersaga_reservations_total",
		Help: "Stock reservation attempts by result.",
	},
		[]string{"result"},
	)

	OrdersPlacedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ordersaga_orders_placed_total",
		Help: "Orders accepted in Waiting_to_Place.",
	})

	OrderTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ordersaga_order_transitions_total",
		Help: "Order state machine transitions.",
	},
		[]string{"from", "outcome"},
	)

	EventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ordersaga_events_published_total",
		Help: "Events published by channel and result.",
	},
		[]string{"channel", "result"},
	)

	EventsConsumedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ordersaga_events_consumed_total",
		Help: "Events handled by channel and result.",
	},
		[]string{"channel", "result"},
	)

	OperationErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ordersaga_operation_errors_total",
		Help: "Errors encountered during specific operations.",
	},
		[]string{"operation"},
	)
)
