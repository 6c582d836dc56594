package rules

import "errors"

var (
	// ErrInvalidConfig is returned when a rule configuration fails validation.
	ErrInvalidConfig = errors.New("invalid rule config")
)
