package domain

import (
	"errors"
	"fmt"
)

// Application error codes. These map to HTTP status codes at the transport
// boundary and determine which messages are safe to show to callers.
const (
	ECONFLICT     = "conflict"        // 409 - resource conflict (duplicate slug, replayed payment)
	EINTERNAL     = "internal"        // 500 - internal error (details hidden from callers)
	EINVALID      = "invalid"         // 400 - validation error
	ENOTFOUND     = "not_found"       // 404 - resource not found
	EUNAUTHORIZED = "unauthorized"    // 401 - authentication required
	EFORBIDDEN    = "forbidden"       // 403 - authenticated but not permitted
	EPAYMENT      = "payment_gateway" // 502 - payment gateway call failed
)

// Error represents an application error with a code and message.
// It implements the error interface and supports error wrapping.
type Error struct {
	// Code is a machine-readable error code (e.g. EINVALID, ENOTFOUND).
	Code string

	// Message is a human-readable message safe to show to callers.
	Message string

	// Op is the operation where the error occurred (e.g. "order.create").
	// Used for logging, not shown to callers.
	Op string

	// Err is the underlying error, if any.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Op != "" {
			return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap implements error unwrapping for errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorCode extracts the error code from an error.
// Returns EINTERNAL for non-domain errors.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return EINTERNAL
}

// ErrorMessage extracts a caller-facing message from an error.
// Internal errors get a generic message to avoid leaking details.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Code != EINTERNAL {
		return e.Message
	}
	return "An internal error occurred. Please try again later."
}

// Errorf creates a new domain error with a formatted message.
func Errorf(code, op, format string, args ...interface{}) error {
	return &Error{
		Code:    code,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}

// NotFound creates a not found error for a resource.
func NotFound(op, resource, identifier string) error {
	return &Error{
		Code:    ENOTFOUND,
		Op:      op,
		Message: fmt.Sprintf("%s not found: %s", resource, identifier),
	}
}

// Invalid creates a validation error.
func Invalid(op, message string) error {
	return &Error{Code: EINVALID, Op: op, Message: message}
}

// Conflict creates a conflict error.
func Conflict(op, message string) error {
	return &Error{Code: ECONFLICT, Op: op, Message: message}
}

// Internal creates an internal error wrapping the underlying cause.
// Callers see a generic message; the cause is preserved for logging.
func Internal(err error, op, message string) error {
	return &Error{Code: EINTERNAL, Op: op, Message: message, Err: err}
}

// IsCode returns true if err carries the given error code.
func IsCode(err error, code string) bool {
	return ErrorCode(err) == code
}

// Sentinel errors shared across services. The order-creation errors occur
// before any durable write, so returning one means nothing was persisted.
var (
	ErrProductNotFound   = &Error{Code: ENOTFOUND, Message: "Product not found"}
	ErrProductInactive   = &Error{Code: EINVALID, Message: "Product is not available for purchase"}
	ErrInsufficientStock = &Error{Code: ECONFLICT, Message: "Insufficient stock for requested quantity"}
	ErrOrderNotFound     = &Error{Code: ENOTFOUND, Message: "Order not found"}
	ErrSlugTaken         = &Error{Code: ECONFLICT, Message: "A product with this slug already exists"}
)

// PaymentGatewayError reports a failed checkout-session creation. The order
// referenced by the identifiers was already persisted and remains in
// PENDING_PAYMENT, so callers can surface a retry path instead of losing
// the customer's order.
type PaymentGatewayError struct {
	OrderID     string // internal order id
	OrderNumber string // human-readable order number
	Err         error
}

func (e *PaymentGatewayError) Error() string {
	return fmt.Sprintf("payment gateway error for order %s: %v", e.OrderNumber, e.Err)
}

func (e *PaymentGatewayError) Unwrap() error {
	return e.Err
}
