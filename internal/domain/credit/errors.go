package credit

import "errors"

var (
	ErrInvalidAmount       = errors.New("credit amount must be positive")
	ErrInvalidScene        = errors.New("invalid transaction scene")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrNotFound            = errors.New("transaction not found")
	ErrDuplicateOrderNo    = errors.New("order already processed")
	ErrTransient           = errors.New("transient storage error")
)
