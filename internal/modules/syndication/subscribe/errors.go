package subscribe

import "errors"

// Lifecycle errors. Handlers map them onto HTTP statuses with statusFor.
var (
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrMissingToken       = errors.New("missing token")
	ErrTokenNotFound      = errors.New("confirmation token not found")
	ErrTokenExpired       = errors.New("confirmation token expired")
	ErrInvalidManageToken = errors.New("invalid management token")
	ErrSubscriberNotFound = errors.New("subscriber not found")
	ErrDeliveryFailed     = errors.New("confirmation email could not be sent")
	ErrUnavailable        = errors.New("subscriber store unavailable")
	ErrMissingID          = errors.New("missing subscriber id")
)

// Store errors. Backends translate driver errors into these.
var (
	ErrNotFound  = errors.New("subscribe: record not found")
	ErrDuplicate = errors.New("subscribe: email already exists")
)
