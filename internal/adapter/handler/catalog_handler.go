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
	msgSuccess           = "Success"
	msgReturningProduct  = "Returning the Product"
	msgReturningValue    = "Returning the Product value"
	msgAddedToProductQty = "Added to existing Product quantity"
)

// Catalog is the catalog role's service surface.
type Catalog interface {
	Reserve(ctx context.Context, productName string) (domain.Product, error)
	Release(ctx context.Context, productName string) (domain.Product, error)
	PriceOf(ctx context.Context, productName string) (decimal.Decimal, error)
	ValidateAvailability(ctx context.Context, productName string) (domain.Product, error)
	GetProduct(ctx context.Context, productName string) (domain.Product, error)
	Restock(ctx context.Context, productName string, quantity int) (domain.Product, error)
}

type CatalogHTTPHandler struct {
	catalog Catalog
	logger  *zap.Logger
}

type restockRequest struct {
	Quantity int `json:"quantity"`
}

func NewCatalogHTTPHandler(catalog Catalog, logger *zap.Logger) *CatalogHTTPHandler {
	return &CatalogHTTPHandler{catalog: catalog, logger: logger}
}

func (h *CatalogHTTPHandler) Register(r *mux.Router) {
	r.HandleFunc("/products/{productName}", h.GetProduct).Methods(http.MethodGet)
	r.HandleFunc("/products/{productName}/restock", h.Restock).Methods(http.MethodPost)
}

func (h *CatalogHTTPHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.GetProduct(r.Context(), mux.Vars(r)["productName"])
	respond(w, r, h.logger, p, err, msgReturningProduct)
}

func (h *CatalogHTTPHandler) Restock(w http.ResponseWriter, r *http.Request) {
	var req restockRequest
	if !decodeBody(w, r, &req) {
		return
	}

	p, err := h.catalog.Restock(r.Context(), mux.Vars(r)["productName"], req.Quantity)
	respond(w, r, h.logger, p, err, msgAddedToProductQty)
}
