package store

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrNoArtifact = errors.New("artifact not found")
)
