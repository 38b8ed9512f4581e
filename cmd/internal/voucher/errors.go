package voucher

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("voucher not found")
	ErrNotActive    = errors.New("voucher not active")
)
