package dto

import (
	"net/http"
	"strings"

	"github.com/printmarket/backend/internal/domain/shared"
)

// Codes raised by the transport layer itself
const (
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeBadRequest      = "BAD_REQUEST"
	ErrCodeInternal        = "INTERNAL_ERROR"
	ErrCodeRequestTooLarge = "REQUEST_TOO_LARGE"
	ErrCodeRateLimited     = "RATE_LIMITED"
	ErrCodeRouteNotFound   = "ROUTE_NOT_FOUND"
)

// Codes raised by infrastructure adapters behind the application services
const (
	ErrCodeAnalysisUnavailable = "ANALYSIS_UNAVAILABLE"
	ErrCodeUploadURLFailed     = "UPLOAD_URL_FAILED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP statuses
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInternal:        http.StatusInternalServerError,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
	ErrCodeRateLimited:     http.StatusTooManyRequests,
	ErrCodeRouteNotFound:   http.StatusNotFound,

	shared.CodeUnauthorized: http.StatusUnauthorized,
	shared.CodeForbidden:    http.StatusForbidden,

	shared.CodeNotFound:         http.StatusNotFound,
	shared.CodeMaterialNotFound: http.StatusNotFound,

	shared.CodeConcurrencyConflict: http.StatusConflict,

	shared.CodeInvalidInput:        http.StatusBadRequest,
	shared.CodeInvalidPricingInput: http.StatusBadRequest,

	shared.CodeInvalidState:      http.StatusUnprocessableEntity,
	shared.CodeInvalidTransition: http.StatusUnprocessableEntity,
	shared.CodeBelowMinimumOrder: http.StatusUnprocessableEntity,
	shared.CodePricingLocked:     http.StatusUnprocessableEntity,
	shared.CodeDisputeWindow:     http.StatusUnprocessableEntity,

	shared.CodePaymentFailed: http.StatusPaymentRequired,

	ErrCodeAnalysisUnavailable: http.StatusServiceUnavailable,
	ErrCodeUploadURLFailed:     http.StatusBadGateway,
}

// GetHTTPStatus returns the status for a domain or transport error code.
// Unlisted INVALID_* codes are field validation failures (400); any other
// unlisted domain code is a business rule rejection (422).
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	if strings.HasPrefix(code, "INVALID_") {
		return http.StatusBadRequest
	}
	return http.StatusUnprocessableEntity
}
