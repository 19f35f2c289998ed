package dto

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/printmarket/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{shared.CodeInvalidTransition, http.StatusUnprocessableEntity},
		{shared.CodeInvalidState, http.StatusUnprocessableEntity},
		{shared.CodeInvalidPricingInput, http.StatusBadRequest},
		{shared.CodeMaterialNotFound, http.StatusNotFound},
		{shared.CodeBelowMinimumOrder, http.StatusUnprocessableEntity},
		{shared.CodeForbidden, http.StatusForbidden},
		{shared.CodeNotFound, http.StatusNotFound},
		{shared.CodeConcurrencyConflict, http.StatusConflict},
		{shared.CodePricingLocked, http.StatusUnprocessableEntity},
		{shared.CodeUnauthorized, http.StatusUnauthorized},
		{shared.CodePaymentFailed, http.StatusPaymentRequired},
		{shared.CodeDisputeWindow, http.StatusUnprocessableEntity},
		{ErrCodeValidation, http.StatusBadRequest},
		{ErrCodeRequestTooLarge, http.StatusRequestEntityTooLarge},
		{ErrCodeRateLimited, http.StatusTooManyRequests},
		{ErrCodeAnalysisUnavailable, http.StatusServiceUnavailable},
		{ErrCodeUploadURLFailed, http.StatusBadGateway},
		{ErrCodeInternal, http.StatusInternalServerError},
		{"INVALID_QUANTITY", http.StatusBadRequest},
		{"INVALID_NOTES", http.StatusBadRequest},
		{"PRODUCT_NOT_READY", http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetHTTPStatus(tt.code))
		})
	}
}

func TestNewPageResponse(t *testing.T) {
	resp := NewPageResponse(shared.NewPaginated([]string{"a", "b"}, 5, 1, 2))

	assert.True(t, resp.Success)
	assert.Equal(t, []string{"a", "b"}, resp.Data)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, Meta{Total: 5, Page: 1, PageSize: 2, TotalPages: 3}, *resp.Meta)
}

func TestNewPageResponse_EmptyPageIsArray(t *testing.T) {
	resp := NewPageResponse(shared.NewPaginated[int](nil, 0, 1, 20))

	body, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"data":[],"meta":{"total":0,"page":1,"page_size":20,"total_pages":0}}`, string(body))
}

func TestNewErrorResponse(t *testing.T) {
	body, err := json.Marshal(NewErrorResponse(shared.CodeInvalidTransition, "Cannot start production of a pending order", "req-1"))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"success": false,
		"error": {"code": "INVALID_TRANSITION", "message": "Cannot start production of a pending order", "request_id": "req-1"}
	}`, string(body))
}

func TestNewValidationErrorResponse(t *testing.T) {
	resp := NewValidationErrorResponse("Request validation failed", "", []ValidationDetail{{Field: "content", Message: "This field is required"}})

	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeValidation, resp.Error.Code)
	assert.Len(t, resp.Error.Details, 1)
}
