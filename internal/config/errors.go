package config

import (
	"errors"
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	// ErrInvalidConfig marks a configuration that failed validation.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrLoadConfig marks a failure assembling the layered sources.
	ErrLoadConfig = errors.New("load config failed")
)
