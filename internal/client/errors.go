package client

import "errors"

var (
	ErrUnsupportedScheme = errors.New("unsupported scheme")
	ErrMissingFileName   = errors.New("missing file name")
	ErrClientIsNil       = errors.New("client is nil")
)
