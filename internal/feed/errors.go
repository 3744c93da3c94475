package feed

import "errors"

var (
	ErrEmptyEvent     = errors.New("event has no changes")
	ErrCorruptStorage = errors.New("corrupt storage")
)
