package cache

import "errors"

// Sentinel kinds for cache errors.
var (
	ErrCacheMiss     = errors.New("cache: key not found")
	ErrConnection    = errors.New("cache: connection failed")
	ErrSerialization = errors.New("cache: serialization failed")
	ErrEmptyKey      = errors.New("cache: key cannot be empty")
)
