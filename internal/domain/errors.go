package domain

import "errors"

var (
	// ErrDataUnavailable is returned when price or fundamentals data is missing.
	// Callers drop the instrument for the current cycle.
	ErrDataUnavailable = errors.New("data unavailable")

	// ErrOrderRejected is returned by gateways that refuse an order
	ErrOrderRejected = errors.New("order rejected")

	// ErrInsufficientCash is returned when a buy cannot be funded
	ErrInsufficientCash = errors.New("insufficient cash")

	// ErrInvalidConfig marks an inconsistent configuration value
	ErrInvalidConfig = errors.New("invalid configuration")
)
