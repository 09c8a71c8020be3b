package handler

import (
	"context"
	"net/http"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/rl1809/order-saga/internal/adapter/rpc"
	"github.com/rl1809/order-saga/internal/core/domain"
)

// CatalogGRPCHandler serves the catalog to the order coordinator. Domain
// failures travel in the envelope; the call itself only fails on transport
// problems.
type CatalogGRPCHandler struct {
	catalog Catalog
	logger  *zap.Logger
}

func NewCatalogGRPCHandler(catalog Catalog, logger *zap.Logger) *CatalogGRPCHandler {
	return &CatalogGRPCHandler{catalog: catalog, logger: logger}
}

func (h *CatalogGRPCHandler) Reserve(ctx context.Context, req *rpc.ProductRequest) (*rpc.ProductReply, error) {
	p, err := h.catalog.Reserve(ctx, req.ProductName)
	return h.productReply(ctx, p, err, msgSuccess, "reserve", req.ProductName), nil
}

func (h *CatalogGRPCHandler) Release(ctx context.Context, req *rpc.ProductRequest) (*rpc.ProductReply, error) {
	p, err := h.catalog.Release(ctx, req.ProductName)
	return h.productReply(ctx, p, err, msgSuccess, "release", req.ProductName), nil
}

func (h *CatalogGRPCHandler) ValidateAvailability(ctx context.Context, req *rpc.ProductRequest) (*rpc.ProductReply, error) {
	p, err := h.catalog.ValidateAvailability(ctx, req.ProductName)
	return h.productReply(ctx, p, err, msgReturningProduct, "validate_availability", req.ProductName), nil
}

func (h *CatalogGRPCHandler) PriceOf(ctx context.Context, req *rpc.ProductRequest) (*rpc.PriceReply, error) {
	price, err := h.catalog.PriceOf(ctx, req.ProductName)
	if err != nil {
		h.fail(ctx, "price_of", req.ProductName, err)
		reply := domain.Failure(price, err)
		return &reply, nil
	}
	reply := domain.OK(price, msgReturningValue)
	return &reply, nil
}

func (h *CatalogGRPCHandler) productReply(ctx context.Context, p domain.Product, err error, message, op, productName string) *rpc.ProductReply {
	if err != nil {
		h.fail(ctx, op, productName, err)
		reply := domain.Failure(p, err)
		return &reply
	}
	reply := domain.OK(p, message)
	return &reply
}

// fail logs a rejected call and sends its error kind in the trailer.
func (h *CatalogGRPCHandler) fail(ctx context.Context, op, productName string, err error) {
	if reason := domain.ReasonOf(err); reason != "" {
		if terr := grpc.SetTrailer(ctx, metadata.Pairs(rpc.ReasonKey, reason)); terr != nil {
			h.logger.Debug("trailer not set", zap.Error(terr))
		}
	}

	if domain.StatusOf(err) == http.StatusInternalServerError {
		h.logger.Error("catalog call failed", zap.String("op", op),
			zap.String("product", productName), zap.Error(err))
		return
	}
	h.logger.Debug("catalog call rejected", zap.String("op", op),
		zap.String("product", productName), zap.Error(err))
}
