package payment

import "errors"

var (
	// ErrInvalidAmount indicates a requested charge amount of zero or less,
	// or one carrying more precision than the currency supports.
	ErrInvalidAmount = errors.New("payment: invalid amount")

	// ErrIntentNotFound indicates no intent matches the given identifier.
	ErrIntentNotFound = errors.New("payment: intent not found")

	// ErrVerificationFailed indicates the callback signature did not match.
	ErrVerificationFailed = errors.New("payment: signature verification failed")

	// ErrReplay indicates a callback for a payment that was already settled.
	ErrReplay = errors.New("payment: callback already processed")

	// ErrAlreadySettled indicates an attempt to mutate a completed intent.
	ErrAlreadySettled = errors.New("payment: intent already completed")
)
