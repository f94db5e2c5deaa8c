package table

import (
	"errors"
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrInvalidColumn   = errors.New("invalid column")
	ErrDuplicateColumn = errors.New("duplicate column")
	ErrColumnLength    = errors.New("column length mismatch")
)
