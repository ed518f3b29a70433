package repository

import "errors"

// ErrInvalidRecord is returned when a record is missing its identifier.
var ErrInvalidRecord = errors.New("invalid record")
