package payment

import "errors"

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrUnknownPack    = errors.New("unknown credit pack")
	ErrCheckoutFailed = errors.New("checkout creation failed")
)
