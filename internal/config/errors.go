package config

import "errors"

var (
	// ErrInvalidConfig wraps field-level validation failures.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrTimeoutOrder is returned when the fetch, task and session timeouts
	// are not strictly increasing.
	ErrTimeoutOrder = errors.New("timeouts out of order")

	// ErrConfigExists is returned by WriteDefault when the target file exists
	// and overwriting was not requested.
	ErrConfigExists = errors.New("configuration file already exists")
)
