package config

import "errors"

var (
	ErrValidationFailed = errors.New("validation failed")
	ErrMissingPath      = errors.New("path is required")
)
