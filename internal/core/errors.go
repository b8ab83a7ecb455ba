package core

import "errors"

var (
	ErrInstanceExists        = errors.New("instance already exists")
	ErrInstanceNotFound      = errors.New("instance not found")
	ErrUnknownInstanceConfig = errors.New("no such instance in configuration")
	ErrInvalidInstance       = errors.New("invalid instance")
	ErrInvalidConfig         = errors.New("invalid configuration")
)

func isNotFound(err error) bool {
	return errors.Is(err, ErrInstanceNotFound)
}
