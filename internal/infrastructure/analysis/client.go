// Package analysis calls the external model analysis service that turns an
// uploaded STL/OBJ file into print geometry estimates.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	catalogapp "github.com/printmarket/backend/internal/application/catalog"
	"github.com/printmarket/backend/internal/domain/catalog"
	"github.com/printmarket/backend/internal/domain/shared"
	"github.com/printmarket/backend/internal/infrastructure/config"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const analyzePath = "/analyze"

// ErrServiceFailure wraps transport and server errors from the analysis service
var ErrServiceFailure = errors.New("analysis: service failure")

// DefaultDensity is used when the service reports only a volume (g/cm3, PLA)
var DefaultDensity = decimal.RequireFromString("1.24")

type analyzeRequest struct {
	StorageKey string `json:"storage_key"`
}

// analyzeResponse accepts either ready estimates or raw mesh figures
type analyzeResponse struct {
	MassGrams        *decimal.Decimal   `json:"mass_grams"`
	PrintTimeMinutes *decimal.Decimal   `json:"print_time_minutes"`
	VolumeCm3        *decimal.Decimal   `json:"volume_cm3"`
	VolumeMm3        *decimal.Decimal   `json:"volume_mm3"`
	TriangleCount    int64              `json:"triangle_count"`
	Dimensions       catalog.Dimensions `json:"dimensions_mm"`
	SupportRequired  bool               `json:"support_required"`
	Error            string             `json:"error,omitempty"`
}

// Client is an HTTP ModelAnalyzer
type Client struct {
	baseURL string
	client  *http.Client
	now     func() time.Time
}

// NewClient creates a client for cfg.URL
func NewClient(cfg config.AnalysisConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		now: time.Now,
	}
}

var _ catalogapp.ModelAnalyzer = (*Client)(nil)

// Analyze asks the service to analyze the object at storageKey
func (c *Client) Analyze(ctx context.Context, storageKey string) (*catalog.Analysis, error) {
	body, err := json.Marshal(analyzeRequest{StorageKey: storageKey})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+analyzePath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build analyze request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceFailure, err)
	}
	defer resp.Body.Close()

	var out analyzeResponse
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out)

	switch {
	case resp.StatusCode == http.StatusUnprocessableEntity || resp.StatusCode == http.StatusBadRequest:
		msg := out.Error
		if msg == "" {
			msg = "model file could not be analyzed"
		}
		return nil, catalogInvalid(msg)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%w: status %d", ErrServiceFailure, resp.StatusCode)
	case decodeErr != nil:
		return nil, fmt.Errorf("%w: decode response: %v", ErrServiceFailure, decodeErr)
	}

	return out.toAnalysis(c.now()), nil
}

func (r analyzeResponse) toAnalysis(now time.Time) *catalog.Analysis {
	volumeCm3 := decimal.Zero
	switch {
	case r.VolumeCm3 != nil:
		volumeCm3 = *r.VolumeCm3
	case r.VolumeMm3 != nil:
		volumeCm3 = r.VolumeMm3.Div(decimal.NewFromInt(1000))
	}

	a := &catalog.Analysis{
		VolumeCm3:       volumeCm3,
		Dimensions:      r.Dimensions,
		SupportRequired: r.SupportRequired,
		AnalyzedAt:      now,
	}
	if r.MassGrams != nil {
		a.MassGrams = *r.MassGrams
	} else {
		a.MassGrams = EstimateMass(volumeCm3, DefaultDensity)
	}
	if r.PrintTimeMinutes != nil {
		a.PrintTimeMinutes = *r.PrintTimeMinutes
	} else {
		a.PrintTimeMinutes = EstimatePrintMinutes(volumeCm3, r.TriangleCount)
	}
	return a
}

// EstimateMass converts a solid volume to grams
func EstimateMass(volumeCm3, density decimal.Decimal) decimal.Decimal {
	return volumeCm3.Mul(density).Round(2)
}

// EstimatePrintMinutes gives a rough print time: two minutes per cm3, plus up to
// 150% extra for dense meshes (complexity = triangles/1000, capped at 3).
func EstimatePrintMinutes(volumeCm3 decimal.Decimal, triangles int64) decimal.Decimal {
	complexity := decimal.NewFromInt(triangles).Div(decimal.NewFromInt(1000))
	if limit := decimal.NewFromInt(3); complexity.GreaterThan(limit) {
		complexity = limit
	}
	base := volumeCm3.Mul(decimal.NewFromInt(2))
	extra := base.Mul(decimal.RequireFromString("0.5")).Mul(complexity)
	return base.Add(extra).Round(1)
}

func catalogInvalid(msg string) error {
	return shared.NewDomainError(shared.CodeInvalidInput, msg)
}
