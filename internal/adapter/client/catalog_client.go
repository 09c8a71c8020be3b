package client

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/rl1809/order-saga/internal/adapter/rpc"
	"github.com/rl1809/order-saga/internal/core/domain"
	"github.com/rl1809/order-saga/internal/tracing"
)

// CatalogClient calls the catalog role over gRPC with the JSON codec.
type CatalogClient struct {
	conn    grpc.ClientConnInterface
	timeout time.Duration
}

// DialCatalog opens a connection to target. The connection is lazy; the first
// call establishes it.
func DialCatalog(target string, timeout time.Duration, opts ...grpc.DialOption) (*CatalogClient, *grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(rpc.CodecName)),
	}, opts...)

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("dial catalog %s: %w", target, err)
	}
	return NewCatalogClient(conn, timeout), conn, nil
}

func NewCatalogClient(conn grpc.ClientConnInterface, timeout time.Duration) *CatalogClient {
	return &CatalogClient{conn: conn, timeout: timeout}
}

func (c *CatalogClient) Reserve(ctx context.Context, productName string) (domain.Product, error) {
	return c.product(ctx, rpc.MethodReserve, productName)
}

func (c *CatalogClient) Release(ctx context.Context, productName string) (domain.Product, error) {
	return c.product(ctx, rpc.MethodRelease, productName)
}

func (c *CatalogClient) ValidateAvailability(ctx context.Context, productName string) (domain.Product, error) {
	return c.product(ctx, rpc.MethodValidateAvailability, productName)
}

func (c *CatalogClient) PriceOf(ctx context.Context, productName string) (decimal.Decimal, error) {
	var reply rpc.PriceReply
	trailer, err := c.invoke(ctx, rpc.MethodPriceOf, productName, &reply)
	if err != nil {
		return decimal.Zero, err
	}
	if !reply.Succeeded() {
		return decimal.Zero, replyError(trailer, reply.Status, reply.Message)
	}
	return reply.Data, nil
}

func (c *CatalogClient) product(ctx context.Context, method, productName string) (domain.Product, error) {
	var reply rpc.ProductReply
	trailer, err := c.invoke(ctx, method, productName, &reply)
	if err != nil {
		return domain.Product{}, err
	}
	if !reply.Succeeded() {
		return domain.Product{}, replyError(trailer, reply.Status, reply.Message)
	}
	return reply.Data, nil
}

func (c *CatalogClient) invoke(ctx context.Context, method, productName string, reply any) (metadata.MD, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	ctx, span := tracing.Tracer().Start(ctx, method, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	ctx = tracing.InjectGRPC(ctx)

	var trailer metadata.MD
	req := &rpc.ProductRequest{ProductName: productName}
	if err := c.conn.Invoke(ctx, method, req, reply, grpc.CallContentSubtype(rpc.CodecName), grpc.Trailer(&trailer)); err != nil {
		span.RecordError(err)
		return nil, unavailable(method, err)
	}
	return trailer, nil
}

// replyError rebuilds a failed envelope as a domain error, keeping the kind
// named in the trailer when the server sent one.
func replyError(trailer metadata.MD, status int, message string) error {
	var reason string
	if v := trailer.Get(rpc.ReasonKey); len(v) > 0 {
		reason = v[0]
	}
	return domain.NewError(domain.KindOfReply(reason, status), message)
}

// unavailable keeps the transport cause for logs while callers see the
// generic upstream error.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %v: %w", op, err, domain.Upstream(domain.MsgSomethingWentWrong))
}
