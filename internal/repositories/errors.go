package repositories

import "errors"

// ErrNotFound is returned when a lookup or scoped mutation matches no row.
var ErrNotFound = errors.New("record not found")
