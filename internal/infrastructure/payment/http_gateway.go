// Package payment holds the payment gateway adapters.
package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	domainpayment "github.com/printmarket/backend/internal/domain/payment"
	"github.com/printmarket/backend/internal/infrastructure/config"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	capturePath = "/v1/captures"
	refundPath  = "/v1/refunds"
)

// Gateway errors
var (
	ErrGatewayUnavailable   = errors.New("payment: gateway unavailable")
	ErrGatewayRequestFailed = errors.New("payment: gateway request failed")
	ErrMissingURL           = errors.New("payment: missing gateway URL")
	ErrMissingAPIKey        = errors.New("payment: missing API key")
)

type captureBody struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number,omitempty"`
	CustomerID  uuid.UUID `json:"customer_id"`
	Amount      string    `json:"amount"`
	Currency    string    `json:"currency"`
}

type captureResponse struct {
	Reference     string `json:"reference"`
	Status        string `json:"status"` // succeeded, declined
	FailureReason string `json:"failure_reason,omitempty"`
}

type refundBody struct {
	OrderID          uuid.UUID `json:"order_id"`
	CaptureReference string    `json:"capture_reference"`
	Amount           string    `json:"amount"`
	Currency         string    `json:"currency"`
	Reason           string    `json:"reason,omitempty"`
}

// HTTPGateway captures and refunds payments through a JSON payment provider API.
// Requests carry a bearer key, an Idempotency-Key header, and an HMAC-SHA256
// signature over "<timestamp>.<body>".
type HTTPGateway struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	now        func() time.Time
}

// NewHTTPGateway creates an HTTP gateway from configuration
func NewHTTPGateway(cfg config.PaymentConfig) (*HTTPGateway, error) {
	if cfg.URL == "" {
		return nil, ErrMissingURL
	}
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPGateway{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		now: time.Now,
	}, nil
}

// Name returns the gateway name
func (g *HTTPGateway) Name() string {
	return "http"
}

// Capture charges the order amount. A 402 or a "declined" status is returned as
// an unsuccessful result rather than an error.
func (g *HTTPGateway) Capture(ctx context.Context, req domainpayment.CaptureRequest) (*domainpayment.CaptureResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(captureBody{
		OrderID:     req.OrderID,
		OrderNumber: req.OrderNumber,
		CustomerID:  req.CustomerID,
		Amount:      req.Amount.StringFixed(2),
		Currency:    strings.ToUpper(req.Currency),
	})
	if err != nil {
		return nil, fmt.Errorf("payment: failed to encode request: %w", err)
	}

	idempotencyKey := req.IdempotencyKey
	if idempotencyKey == "" {
		idempotencyKey = "capture-" + req.OrderID.String()
	}
	status, respBody, err := g.post(ctx, capturePath, idempotencyKey, body)
	if err != nil {
		return nil, err
	}
	if status == http.StatusPaymentRequired {
		var declined captureResponse
		_ = json.Unmarshal(respBody, &declined)
		return &domainpayment.CaptureResult{Reference: declined.Reference, FailureReason: declinedReason(declined)}, nil
	}

	var out captureResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("%w: invalid response: %v", ErrGatewayRequestFailed, err)
	}
	if out.Status != "succeeded" {
		return &domainpayment.CaptureResult{Reference: out.Reference, FailureReason: declinedReason(out)}, nil
	}
	if out.Reference == "" {
		return nil, fmt.Errorf("%w: response has no reference", ErrGatewayRequestFailed)
	}
	return &domainpayment.CaptureResult{Reference: out.Reference, Success: true}, nil
}

// Refund returns a captured amount. A 402 or a non-"succeeded" status is
// returned as an unsuccessful result.
func (g *HTTPGateway) Refund(ctx context.Context, req domainpayment.RefundRequest) (*domainpayment.RefundResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(refundBody{
		OrderID:          req.OrderID,
		CaptureReference: req.CaptureReference,
		Amount:           req.Amount.StringFixed(2),
		Currency:         strings.ToUpper(req.Currency),
		Reason:           req.Reason,
	})
	if err != nil {
		return nil, fmt.Errorf("payment: failed to encode request: %w", err)
	}
	idempotencyKey := req.IdempotencyKey
	if idempotencyKey == "" {
		idempotencyKey = "refund-" + req.CaptureReference
	}
	status, respBody, err := g.post(ctx, refundPath, idempotencyKey, body)
	if err != nil {
		return nil, err
	}

	var out captureResponse
	if err := json.Unmarshal(respBody, &out); err != nil && status != http.StatusPaymentRequired {
		return nil, fmt.Errorf("%w: invalid response: %v", ErrGatewayRequestFailed, err)
	}
	if status == http.StatusPaymentRequired || out.Status != "succeeded" {
		reason := out.FailureReason
		if reason == "" {
			reason = "refund declined"
		}
		return &domainpayment.RefundResult{Reference: out.Reference, FailureReason: reason}, nil
	}
	return &domainpayment.RefundResult{Reference: out.Reference, Success: true}, nil
}

// post sends a signed JSON request. Transport failures and 5xx answers wrap
// ErrGatewayUnavailable, other 4xx answers except 402 wrap ErrGatewayRequestFailed.
func (g *HTTPGateway) post(ctx context.Context, path, idempotencyKey string, body []byte) (int, []byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("payment: failed to create request: %w", err)
	}
	ts := strconv.FormatInt(g.now().Unix(), 10)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	httpReq.Header.Set("Idempotency-Key", idempotencyKey)
	httpReq.Header.Set("X-Timestamp", ts)
	httpReq.Header.Set("X-Signature", Sign(g.apiKey, ts, body))

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, fmt.Errorf("payment: failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusPaymentRequired:
	case resp.StatusCode >= 500:
		return 0, nil, fmt.Errorf("%w: HTTP %d", ErrGatewayUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		return 0, nil, fmt.Errorf("%w: HTTP %d", ErrGatewayRequestFailed, resp.StatusCode)
	}
	return resp.StatusCode, respBody, nil
}

func declinedReason(r captureResponse) string {
	if r.FailureReason != "" {
		return r.FailureReason
	}
	return "payment declined"
}

// Sign computes the request signature the provider verifies
func Sign(key, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

var _ domainpayment.Gateway = (*HTTPGateway)(nil)
