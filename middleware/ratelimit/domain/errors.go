package domain

import "errors"

var (
	ErrInvalidPolicy = errors.New("policy must have positive window and max")
	ErrNoSlot        = errors.New("no forwarding slot available")
)
