package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *AppError with the same code, so callers can
// write errors.Is(err, apperror.ErrInvalidSignature()).
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Configuration (CFG) ----

func ErrMissingWebhookSecret(partner string) *AppError {
	return New("CFG_001", fmt.Sprintf("Webhook secret not configured for %s", partner), http.StatusInternalServerError)
}

// ---- Inbound verification (SEC) ----

func ErrMissingSignatureHeaders() *AppError {
	return New("SEC_001", "Missing signature headers", http.StatusUnauthorized)
}

func ErrInvalidSignature() *AppError {
	return New("SEC_002", "Invalid signature", http.StatusUnauthorized)
}

func ErrTimestampExpired() *AppError {
	return New("SEC_003", "Request timestamp expired", http.StatusUnauthorized)
}

// ---- Webhook management (WHK) ----

func ErrEndpointNotOwned() *AppError {
	return New("WHK_001", "Webhook endpoint does not belong to caller", http.StatusForbidden)
}

func ErrNotFound(entity string) *AppError {
	return New("WHK_002", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrDeliveryAlreadySucceeded() *AppError {
	return New("WHK_003", "Cannot retry a successful delivery", http.StatusConflict)
}

// Validation returns a WHK_004 request validation error.
func Validation(message string) *AppError {
	return New("WHK_004", message, http.StatusBadRequest)
}

func ErrMalformedEvent(err error) *AppError {
	return Wrap("WHK_005", "Malformed webhook event", http.StatusBadRequest, err)
}

func ErrPayloadTooLarge() *AppError {
	return New("WHK_006", "Request body too large", http.StatusRequestEntityTooLarge)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

func ErrEncryptionFailure(err error) *AppError {
	return Wrap("SYS_003", "Encryption service failure", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}
