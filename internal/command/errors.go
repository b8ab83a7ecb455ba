package command

import "errors"

var (
	// ErrAlreadyLoaded is returned when a module type is loaded twice on one registry
	ErrAlreadyLoaded = errors.New("module already loaded")

	// ErrInvalidDescriptor is returned for handlers with malformed metadata
	ErrInvalidDescriptor = errors.New("invalid handler descriptor")

	// ErrReservedControlToken is returned when a handler claims the clientinfo control token
	ErrReservedControlToken = errors.New("control token is reserved")

	// ErrInvalidContext is returned when a request context is built from invalid arguments
	ErrInvalidContext = errors.New("invalid request context")
)
