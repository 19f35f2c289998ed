package analysis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/printmarket/backend/internal/domain/shared"
	"github.com/printmarket/backend/internal/infrastructure/config"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAnalysisService(t *testing.T, status int, body any) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/analyze", r.URL.Path)
		var req analyzeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "models/u/p.stl", req.StorageKey)

		w.WriteHeader(status)
		if body != nil {
			_ = json.NewEncoder(w).Encode(body)
		}
	}))
	t.Cleanup(srv.Close)
	return NewClient(config.AnalysisConfig{URL: srv.URL + "/", Timeout: time.Second})
}

func TestClient_Analyze_Estimates(t *testing.T) {
	c := newAnalysisService(t, http.StatusOK, map[string]any{
		"mass_grams":         "300",
		"print_time_minutes": "540",
		"volume_cm3":         "241.94",
		"dimensions_mm":      map[string]string{"x": "120", "y": "80", "z": "45"},
		"support_required":   true,
	})

	a, err := c.Analyze(context.Background(), "models/u/p.stl")
	require.NoError(t, err)
	assert.True(t, a.MassGrams.Equal(decimal.NewFromInt(300)))
	assert.True(t, a.PrintTimeMinutes.Equal(decimal.NewFromInt(540)))
	assert.True(t, a.Dimensions.Z.Equal(decimal.NewFromInt(45)))
	assert.True(t, a.SupportRequired)
	assert.False(t, a.AnalyzedAt.IsZero())
	assert.NoError(t, a.Validate())
}

func TestClient_Analyze_RawMesh(t *testing.T) {
	c := newAnalysisService(t, http.StatusOK, map[string]any{
		"volume_mm3":     "10000",
		"triangle_count": 2000,
	})

	a, err := c.Analyze(context.Background(), "models/u/p.stl")
	require.NoError(t, err)
	assert.Equal(t, "10", a.VolumeCm3.String())
	assert.Equal(t, "12.4", a.MassGrams.String())
	// base 20 min, complexity 2 -> +20 min
	assert.Equal(t, "40", a.PrintTimeMinutes.String())
}

func TestClient_Analyze_Errors(t *testing.T) {
	t.Run("unprocessable model", func(t *testing.T) {
		c := newAnalysisService(t, http.StatusUnprocessableEntity, map[string]string{"error": "ASCII STL is not supported"})
		_, err := c.Analyze(context.Background(), "models/u/p.stl")
		require.ErrorIs(t, err, shared.ErrInvalidInput)
		assert.Contains(t, err.Error(), "ASCII STL")
	})

	t.Run("server error", func(t *testing.T) {
		c := newAnalysisService(t, http.StatusInternalServerError, nil)
		_, err := c.Analyze(context.Background(), "models/u/p.stl")
		assert.ErrorIs(t, err, ErrServiceFailure)
	})

	t.Run("unreachable", func(t *testing.T) {
		c := NewClient(config.AnalysisConfig{URL: "http://127.0.0.1:1", Timeout: 200 * time.Millisecond})
		_, err := c.Analyze(context.Background(), "models/u/p.stl")
		assert.ErrorIs(t, err, ErrServiceFailure)
	})
}

func TestEstimatePrintMinutes_CapsComplexity(t *testing.T) {
	got := EstimatePrintMinutes(decimal.NewFromInt(10), 1_000_000)
	// 20 + 20*0.5*3
	assert.Equal(t, "50", got.String())
}
