package order

import "errors"

var (
	ErrOrderNotFound           = errors.New("order not found")
	ErrAccessDenied            = errors.New("access denied")
	ErrInvalidStatus           = errors.New("invalid order status")
	ErrInvalidStatusTransition = errors.New("invalid order status transition")
	ErrTrackingRequired        = errors.New("shipping partner, tracking number or tracking url is required to mark an order shipped")
	ErrNoStatusChange          = errors.New("status is already set to the desired value and no tracking fields were supplied")
	ErrInvalidPartner          = errors.New("invalid fulfillment partner")
)

// ValidationError is a client mistake in an order request. Its message names the offending field or value
// and is safe to return to the caller.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err is a client-side validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return true
	}
	return errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrInvalidStatusTransition) ||
		errors.Is(err, ErrTrackingRequired) ||
		errors.Is(err, ErrNoStatusChange) ||
		errors.Is(err, ErrInvalidPartner)
}
