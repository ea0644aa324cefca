package wsv

import "errors"

var (
	// ErrNotFound is returned when a referenced domain, account, asset
	// definition or role does not exist.
	ErrNotFound = errors.New("wsv: not found")
	// ErrAlreadyExists is returned when registering an id that is already in use.
	ErrAlreadyExists = errors.New("wsv: already exists")
	// ErrInsufficientFunds is returned when a transfer exceeds an account's
	// asset balance (a burn saturates at zero instead).
	ErrInsufficientFunds = errors.New("wsv: insufficient funds")
)
