package rpc

import (
	"context"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc"

	"github.com/rl1809/order-saga/internal/core/domain"
)

const CatalogServiceName = "catalog.Catalog"

const (
	MethodReserve              = "/" + CatalogServiceName + "/Reserve"
	MethodRelease              = "/" + CatalogServiceName + "/Release"
	MethodPriceOf              = "/" + CatalogServiceName + "/PriceOf"
	MethodValidateAvailability = "/" + CatalogServiceName + "/ValidateAvailability"

	// ReasonKey is the trailer carrying the error kind of a failed reply.
	ReasonKey = "error-reason"
)

type ProductRequest struct {
	ProductName string `json:"productName"`
}

type ProductReply = domain.Envelope[domain.Product]

type PriceReply = domain.Envelope[decimal.Decimal]

// CatalogServer is implemented by the catalog role. Failures are reported
// inside the reply envelope; a returned error means the call itself broke.
type CatalogServer interface {
	Reserve(ctx context.Context, req *ProductRequest) (*ProductReply, error)
	Release(ctx context.Context, req *ProductRequest) (*ProductReply, error)
	PriceOf(ctx context.Context, req *ProductRequest) (*PriceReply, error)
	ValidateAvailability(ctx context.Context, req *ProductRequest) (*ProductReply, error)
}

func RegisterCatalogServer(s grpc.ServiceRegistrar, srv CatalogServer) {
	s.RegisterService(&CatalogServiceDesc, srv)
}

var CatalogServiceDesc = grpc.ServiceDesc{
	ServiceName: CatalogServiceName,
	HandlerType: (*CatalogServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Reserve", Handler: unaryHandler(MethodReserve, CatalogServer.Reserve)},
		{MethodName: "Release", Handler: unaryHandler(MethodRelease, CatalogServer.Release)},
		{MethodName: "PriceOf", Handler: unaryHandler(MethodPriceOf, CatalogServer.PriceOf)},
		{MethodName: "ValidateAvailability", Handler: unaryHandler(MethodValidateAvailability, CatalogServer.ValidateAvailability)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "catalog",
}

func unaryHandler[R any](fullMethod string, call func(CatalogServer, context.Context, *ProductRequest) (R, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(ProductRequest)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CatalogServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(CatalogServer), ctx, req.(*ProductRequest))
		}
		return interceptor(ctx, in, info, handler)
	}
}
