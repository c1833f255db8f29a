package offline

import "errors"

var (
	ErrNotCached      = errors.New("offline: not cached")
	ErrNoGeneration   = errors.New("offline: no generation installed")
	ErrUnknownMessage = errors.New("offline: unknown message type")
)
