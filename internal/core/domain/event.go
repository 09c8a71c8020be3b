package domain

import "time"

const (
	ChannelOrderPending   = "order-pending"
	ChannelOrderConfirmed = "order-confirmed"
	ChannelOrderRemoved   = "order-removed"
	ChannelStockRelease   = "stock-release"
)

// Event is the payload carried on every saga channel. ID identifies one logical
// event so redeliveries can be recognised by consumers.
type Event struct {
	ID          string    `json:"eventId"`
	OrderID     string    `json:"orderId"`
	UserName    string    `json:"userName"`
	ProductName string    `json:"productName"`
	OccurredAt  time.Time `json:"occurredAt"`
}

func EventFor(id string, o Order, now time.Time) Event {
	return Event{
		ID:          id,
		OrderID:     o.ID,
		UserName:    o.UserName,
		ProductName: o.ProductName,
		OccurredAt:  now,
	}
}
