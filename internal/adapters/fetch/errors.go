package fetch

import (
	"errors"
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrStatus = errors.New("unexpected origin status")
)
