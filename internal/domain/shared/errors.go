package shared

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target is a DomainError with the same code, so callers can
// use errors.Is against the predefined errors below regardless of message.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Error codes shared across bounded contexts
const (
	CodeNotFound            = "NOT_FOUND"
	CodeInvalidInput        = "INVALID_INPUT"
	CodeConcurrencyConflict = "CONCURRENCY_CONFLICT"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeForbidden           = "FORBIDDEN"
	CodeInvalidState        = "INVALID_STATE"
	CodeInvalidTransition   = "INVALID_TRANSITION"
	CodeInvalidPricingInput = "INVALID_PRICING_INPUT"
	CodeMaterialNotFound    = "MATERIAL_NOT_FOUND"
	CodeBelowMinimumOrder   = "BELOW_MINIMUM_ORDER"
	CodePricingLocked       = "PRICING_LOCKED"
	CodePaymentFailed       = "PAYMENT_FAILED"
	CodeDisputeWindow       = "DISPUTE_WINDOW_EXPIRED"
)

// Common domain errors
var (
	ErrNotFound            = NewDomainError(CodeNotFound, "Resource not found")
	ErrInvalidInput        = NewDomainError(CodeInvalidInput, "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError(CodeConcurrencyConflict, "Resource was modified by another process")
	ErrUnauthorized        = NewDomainError(CodeUnauthorized, "Not authorized to perform this action")
	ErrForbidden           = NewDomainError(CodeForbidden, "Access to this resource is forbidden")
	ErrInvalidState        = NewDomainError(CodeInvalidState, "Operation not allowed in current state")
	ErrInvalidTransition   = NewDomainError(CodeInvalidTransition, "Transition not allowed from current status")
	ErrInvalidPricingInput = NewDomainError(CodeInvalidPricingInput, "Invalid pricing input")
	ErrMaterialNotFound    = NewDomainError(CodeMaterialNotFound, "Material not found")
	ErrBelowMinimumOrder   = NewDomainError(CodeBelowMinimumOrder, "Quote is below the minimum order amount")
	ErrPricingLocked       = NewDomainError(CodePricingLocked, "Pricing is locked once the order is paid")
	ErrPaymentFailed       = NewDomainError(CodePaymentFailed, "Payment capture failed")
)
