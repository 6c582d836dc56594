package repository

import "errors"

// Sentinel kinds for graph errors.
var (
	ErrNotFound     = errors.New("visitor not found")
	ErrInvalidLimit = errors.New("invalid limit")
	ErrNoDriver     = errors.New("graph driver not configured")
)
