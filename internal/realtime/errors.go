package realtime

import "errors"

// Sentinel kinds for registry errors.
var (
	ErrUserLimit     = errors.New("connection limit reached for user")
	ErrRegistryFull  = errors.New("total connection limit reached")
	ErrNotRegistered = errors.New("connection not registered")
)
