package xpt

import (
	"errors"
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrHeader    = errors.New("malformed transport header")
	ErrVariable  = errors.New("bad variable descriptor")
	ErrTruncated = errors.New("truncated transport file")
)
