package domain

import "time"

type OrderStatus string

const (
	OrderStatusWaitingToPlace OrderStatus = "Waiting_to_Place"
	OrderStatusPlaced         OrderStatus = "Placed"
	OrderStatusShipped        OrderStatus = "Shipped"
	OrderStatusDelivered      OrderStatus = "Delivered"
)

type PaymentStatus string

const (
	PaymentStatusUnpaid PaymentStatus = "Unpaid"
	PaymentStatusPaid   PaymentStatus = "Paid"
)

// Order is one unit of one product ordered by one user.
type Order struct {
	ID            string        `json:"orderId"`
	UserName      string        `json:"userName"`
	ProductName   string        `json:"productName"`
	Status        OrderStatus   `json:"orderStatus"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// NewOrder returns a pending, unpaid order.
func NewOrder(id, userName, productName string, now time.Time) Order {
	return Order{
		ID:            id,
		UserName:      userName,
		ProductName:   productName,
		Status:        OrderStatusWaitingToPlace,
		PaymentStatus: PaymentStatusUnpaid,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (o Order) IsPaid() bool {
	return o.PaymentStatus == PaymentStatusPaid
}
