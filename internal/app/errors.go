package service

import "errors"

var (
	// ErrNoStore is returned by New when no store is supplied.
	ErrNoStore = errors.New("service requires a store")
	// ErrNoBadgeID is reported when a request names no visitor.
	ErrNoBadgeID = errors.New("badge id is required")
)
