package contracts

import "errors"

var (
	// ErrInvalidRequest marks malformed scan parameters; no work is started
	ErrInvalidRequest = errors.New("invalid scan request")

	// ErrUnknownStrategy marks a strategy key outside the fixed five
	ErrUnknownStrategy = errors.New("unknown strategy")

	// ErrNoResult is returned when no scan has completed yet
	ErrNoResult = errors.New("no scan result available")
)
