package usecase

import "errors"

var (
	// ErrAssetSyncFailed is the one fatal startup condition: the watched
	// wallet's holdings could not be read after the configured retries.
	ErrAssetSyncFailed = errors.New("asset sync failed")

	ErrDepositDisabled     = errors.New("deposits are disabled")
	ErrWithdrawalDisabled  = errors.New("withdrawals are disabled")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrUncleanShutdown     = errors.New("workers did not stop within the join timeout")
	ErrAlreadyRunning      = errors.New("engine already running")
	ErrBatchIncomplete     = errors.New("batch incomplete")
)
