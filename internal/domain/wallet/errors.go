package wallet

import "errors"

var (
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrAmountPrecision     = errors.New("amount must have at most two decimal places")
	ErrSelfTransfer        = errors.New("cannot transfer to yourself")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrRecipientNotFound   = errors.New("recipient not found")
	ErrAccountNotFound     = errors.New("account not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrTransferConflict    = errors.New("transfer conflicted with a concurrent operation")
)
