package eventtype

import "errors"

// ErrInvalidOperation is returned when Add is called after Freeze.
var ErrInvalidOperation = errors.New("invalid operation")
