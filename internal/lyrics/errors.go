package lyrics

import "errors"

var (
	ErrNetwork  = errors.New("lyrics service unreachable")
	ErrParse    = errors.New("malformed lyrics data")
	ErrNotFound = errors.New("no lyrics found")
)
