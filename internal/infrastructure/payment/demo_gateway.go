package payment

import (
	"context"
	"fmt"
	"strings"
	"sync"

	domainpayment "github.com/printmarket/backend/internal/domain/payment"
	"github.com/printmarket/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// DemoGateway approves every valid capture and refund. It is meant for
// development and is rejected by configuration validation in production.
type DemoGateway struct {
	mu       sync.Mutex
	captures map[string]string // idempotency key -> reference
	refunds  map[string]string
}

// NewDemoGateway creates a demo gateway
func NewDemoGateway() *DemoGateway {
	return &DemoGateway{captures: make(map[string]string), refunds: make(map[string]string)}
}

// Name returns the gateway name
func (g *DemoGateway) Name() string {
	return "demo"
}

// Capture returns a deterministic reference; repeating a capture for the same
// order returns the first reference.
func (g *DemoGateway) Capture(_ context.Context, req domainpayment.CaptureRequest) (*domainpayment.CaptureResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	key := req.IdempotencyKey
	if key == "" {
		key = req.OrderID.String()
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	ref, ok := g.captures[key]
	if !ok {
		ref = fmt.Sprintf("demo_%s", strings.ReplaceAll(req.OrderID.String(), "-", "")[:16])
		g.captures[key] = ref
	}
	return &domainpayment.CaptureResult{Reference: ref, Success: true}, nil
}

// Refund approves the refund of a capture this gateway issued
func (g *DemoGateway) Refund(_ context.Context, req domainpayment.RefundRequest) (*domainpayment.RefundResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	key := req.IdempotencyKey
	if key == "" {
		key = "refund-" + req.CaptureReference
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.issued(req.CaptureReference) {
		return &domainpayment.RefundResult{FailureReason: "unknown capture"}, nil
	}
	ref, ok := g.refunds[key]
	if !ok {
		ref = "demo_refund_" + strings.TrimPrefix(req.CaptureReference, "demo_")
		g.refunds[key] = ref
	}
	return &domainpayment.RefundResult{Reference: ref, Success: true}, nil
}

func (g *DemoGateway) issued(reference string) bool {
	for _, ref := range g.captures {
		if ref == reference {
			return true
		}
	}
	return false
}

var _ domainpayment.Gateway = (*DemoGateway)(nil)

// NewGateway builds the gateway selected by cfg.Provider
func NewGateway(cfg config.PaymentConfig, logger *zap.Logger) (domainpayment.Gateway, error) {
	switch cfg.Provider {
	case "http":
		return NewHTTPGateway(cfg)
	case "", "demo":
		if logger != nil {
			logger.Warn("Using demo payment gateway; every capture and refund succeeds")
		}
		return NewDemoGateway(), nil
	}
	return nil, fmt.Errorf("payment: unknown provider %q", cfg.Provider)
}
