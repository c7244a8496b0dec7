package repo

import "errors"

var (
	ErrFilterNotFound = errors.New("saved filter not found")
	ErrInvalidField   = errors.New("field does not hold string values")
)
