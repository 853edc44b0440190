package player

import "errors"

var (
	ErrNegativeAmount       = errors.New("amount must not be negative")
	ErrInsufficientCurrency = errors.New("insufficient currency")
	ErrCosmeticLocked       = errors.New("cosmetic not unlocked")
)
