package handler

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/order-saga/internal/core/domain"
)

const (
	msgOrderReceived       = "Order received"
	msgDetailsRetrieved    = "Details retrieved successfully"
	msgOrderDeleted        = "Order details successfully deleted"
	msgOrderShipped        = "Order Status Updated Successfully !"
	msgOrderDelivered      = "Successfully updated the order Status"
	msgOrderCompleted      = "Order processes successfully"
	msgPaymentStatusUpdate = "Successfully updated Product payment status"
	msgPaymentSettled      = "Payment settled"
	msgPaymentSuccessful   = "Payment Successful"
)

// Orders is the coordinator surface served over HTTP.
type Orders interface {
	PlaceOrder(ctx context.Context, userName, productName string) (domain.Order, error)
	ListOrders(ctx context.Context, userName string) ([]domain.Order, error)
	CancelOrder(ctx context.Context, orderID, userName, productName string) error
	AdvanceStatus(ctx context.Context, orderID string) (domain.Transition, error)
	FirstUnpaidOrder(ctx context.Context, userName, productName string) (domain.Order, error)
	MarkOneOrderPaid(ctx context.Context, userName, productName string) (*domain.Order, error)
	TotalOutstandingValue(ctx context.Context, userName string) (decimal.Decimal, error)
	SettleAll(ctx context.Context, userName string) (decimal.Decimal, error)
}

type Payments interface {
	SingleProductPayment(ctx context.Context, userName, productName string) error
}

type OrderHTTPHandler struct {
	orders   Orders
	payments Payments
	logger   *zap.Logger
}

func NewOrderHTTPHandler(orders Orders, payments Payments, logger *zap.Logger) *OrderHTTPHandler {
	return &OrderHTTPHandler{orders: orders, payments: payments, logger: logger}
}

func (h *OrderHTTPHandler) Register(r *mux.Router) {
	r.HandleFunc("/orders", h.PlaceOrder).Methods(http.MethodPost)
	r.HandleFunc("/orders/unpaid", h.FirstUnpaidOrder).Methods(http.MethodGet)
	r.HandleFunc("/orders/paid", h.MarkOneOrderPaid).Methods(http.MethodPost)
	r.HandleFunc("/orders/users/{userName}", h.ListOrders).Methods(http.MethodGet)
	r.HandleFunc("/orders/{orderId}", h.CancelOrder).Methods(http.MethodDelete)
	r.HandleFunc("/orders/{orderId}/advance", h.AdvanceStatus).Methods(http.MethodPost)

	r.HandleFunc("/payments/users/{userName}/total", h.TotalOutstandingValue).Methods(http.MethodGet)
	r.HandleFunc("/payments/users/{userName}/settle", h.SettleAll).Methods(http.MethodPost)
	r.HandleFunc("/payments/single", h.SingleProductPayment).Methods(http.MethodPost)
}

func (h *OrderHTTPHandler) decodeUserProduct(w http.ResponseWriter, r *http.Request) (userProductRequest, bool) {
	var req userProductRequest
	if !decodeBody(w, r, &req) {
		return req, false
	}
	if !req.valid() {
		badRequest(w, msgMissingFields)
		return req, false
	}
	return req, true
}

func (h *OrderHTTPHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeUserProduct(w, r)
	if !ok {
		return
	}

	order, err := h.orders.PlaceOrder(r.Context(), req.UserName, req.ProductName)
	respond(w, r, h.logger, order, err, msgOrderReceived)
}

func (h *OrderHTTPHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListOrders(r.Context(), mux.Vars(r)["userName"])
	respond(w, r, h.logger, orders, err, msgDetailsRetrieved)
}

func (h *OrderHTTPHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeUserProduct(w, r)
	if !ok {
		return
	}

	err := h.orders.CancelOrder(r.Context(), mux.Vars(r)["orderId"], req.UserName, req.ProductName)
	respond[any](w, r, h.logger, nil, err, msgOrderDeleted)
}

func (h *OrderHTTPHandler) AdvanceStatus(w http.ResponseWriter, r *http.Request) {
	tr, err := h.orders.AdvanceStatus(r.Context(), mux.Vars(r)["orderId"])
	respond(w, r, h.logger, tr.Order, err, advanceMessage(tr.Outcome))
}

func advanceMessage(outcome domain.Outcome) string {
	switch outcome {
	case domain.OutcomeShipped:
		return msgOrderShipped
	case domain.OutcomeDelivered:
		return msgOrderDelivered
	case domain.OutcomeCompleted:
		return msgOrderCompleted
	}
	return msgSuccess
}

func (h *OrderHTTPHandler) FirstUnpaidOrder(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := userProductRequest{UserName: q.Get("userName"), ProductName: q.Get("productName")}
	if !req.valid() {
		badRequest(w, msgMissingFields)
		return
	}

	order, err := h.orders.FirstUnpaidOrder(r.Context(), req.UserName, req.ProductName)
	respond(w, r, h.logger, order, err, msgUserProductDetails)
}

func (h *OrderHTTPHandler) MarkOneOrderPaid(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeUserProduct(w, r)
	if !ok {
		return
	}

	order, err := h.orders.MarkOneOrderPaid(r.Context(), req.UserName, req.ProductName)
	respond(w, r, h.logger, order, err, msgPaymentStatusUpdate)
}

func (h *OrderHTTPHandler) TotalOutstandingValue(w http.ResponseWriter, r *http.Request) {
	total, err := h.orders.TotalOutstandingValue(r.Context(), mux.Vars(r)["userName"])
	respond(w, r, h.logger, total, err, msgSuccess)
}

func (h *OrderHTTPHandler) SettleAll(w http.ResponseWriter, r *http.Request) {
	total, err := h.orders.SettleAll(r.Context(), mux.Vars(r)["userName"])
	respond(w, r, h.logger, total, err, msgPaymentSettled)
}

func (h *OrderHTTPHandler) SingleProductPayment(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeUserProduct(w, r)
	if !ok {
		return
	}

	err := h.payments.SingleProductPayment(r.Context(), req.UserName, req.ProductName)
	respond[any](w, r, h.logger, nil, err, msgPaymentSuccessful)
}
