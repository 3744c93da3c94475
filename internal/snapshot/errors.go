package snapshot

import "errors"

var (
	ErrInvalidPath    = errors.New("invalid path")
	ErrInvalidPattern = errors.New("invalid exclude pattern")
)
