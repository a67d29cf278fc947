package database

import "errors"

// ErrNotFound is returned when a record does not exist. Callers should test
// with errors.Is since repositories wrap it with context.
var ErrNotFound = errors.New("record not found")
