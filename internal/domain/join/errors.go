package join

import (
	"errors"
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrInvalidKey = errors.New("invalid join key")
	ErrKeyColumn  = errors.New("join key column missing")
)
