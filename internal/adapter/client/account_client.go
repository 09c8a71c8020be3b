package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/rl1809/order-saga/internal/core/domain"
	"github.com/rl1809/order-saga/internal/tracing"
)

// AccountClient calls the account role's HTTP API.
type AccountClient struct {
	baseURL string
	http    *http.Client
}

func NewAccountClient(baseURL string, timeout time.Duration) *AccountClient {
	return &AccountClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *AccountClient) ValidateUserOnly(ctx context.Context, userName string) (domain.Account, error) {
	var env domain.Envelope[domain.Account]
	if err := c.call(ctx, http.MethodGet, accountPath(userName), nil, &env); err != nil {
		return domain.Account{}, err
	}
	return env.Data, nil
}

func (c *AccountClient) ValidateMembership(ctx context.Context, userName, productName string) error {
	var env domain.Envelope[json.RawMessage]
	return c.call(ctx, http.MethodGet, accountPath(userName, "products", productName), nil, &env)
}

func (c *AccountClient) ListActiveProducts(ctx context.Context, userName string) ([]string, error) {
	var env domain.Envelope[[]string]
	if err := c.call(ctx, http.MethodGet, accountPath(userName, "products"), nil, &env); err != nil {
		return nil, err
	}
	if env.Data == nil {
		return []string{}, nil
	}
	return env.Data, nil
}

func (c *AccountClient) AppendProduct(ctx context.Context, userName, productName string) error {
	var env domain.Envelope[json.RawMessage]
	body := map[string]string{"productName": productName}
	return c.call(ctx, http.MethodPost, accountPath(userName, "products"), body, &env)
}

func (c *AccountClient) RemoveProduct(ctx context.Context, userName, productName string) error {
	var env domain.Envelope[json.RawMessage]
	return c.call(ctx, http.MethodDelete, accountPath(userName, "products", productName), nil, &env)
}

func accountPath(userName string, rest ...string) string {
	parts := []string{"accounts", url.PathEscape(userName)}
	for _, p := range rest {
		parts = append(parts, url.PathEscape(p))
	}
	return "/" + strings.Join(parts, "/")
}

// call performs one request and decodes the envelope into out. Transport
// failures and undecodable replies become upstream errors; a non-200
// envelope becomes a domain error carrying the forwarded message.
func (c *AccountClient) call(ctx context.Context, method, path string, body any, out any) error {
	ctx, span := tracing.Tracer().Start(ctx, method+" "+path, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return unavailable(path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	tracing.InjectHTTP(ctx, req.Header)

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		return unavailable(path, err)
	}
	defer resp.Body.Close()

	var head struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return unavailable(path, err)
	}
	if err := json.Unmarshal(raw, &head); err != nil || head.Status == 0 {
		return unavailable(path, fmt.Errorf("undecodable reply with HTTP %d", resp.StatusCode))
	}
	if head.Status != http.StatusOK {
		return domain.NewError(domain.KindOfReply(resp.Header.Get(domain.ReasonHeader), head.Status), head.Message)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return unavailable(path, err)
	}
	return nil
}
