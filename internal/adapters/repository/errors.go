package repository

import "errors"

// Sentinel kinds for ranking store errors.
var (
	ErrNotFound = errors.New("player not found")
)
