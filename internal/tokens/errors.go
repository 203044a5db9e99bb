package tokens

import "errors"

var (
	ErrNotFound         = errors.New("verification request not found")
	ErrExpired          = errors.New("verification link expired")
	ErrAlreadyCompleted = errors.New("verification already completed")
	ErrInvalidInput     = errors.New("invalid input")
)
