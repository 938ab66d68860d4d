package domain

import "errors"

var (
	// ErrAccountNotFound 找不到帳戶 (或無法從輸入推導出任何身分)
	ErrAccountNotFound = errors.New("account not found")

	// ErrAuthorizationRequired 共用帳戶需要授權，但找不到可記錄的授權人
	ErrAuthorizationRequired = errors.New("authorization required")

	// ErrInsufficientFunds 餘額不足
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrTransientFailure 網路或帳本內部錯誤
	ErrTransientFailure = errors.New("transient ledger failure")

	// ErrConfigurationMissing 帳本 client 尚未註冊
	ErrConfigurationMissing = errors.New("ledger provider is not configured")

	// ErrInvalidAmount 金額不可為負數
	ErrInvalidAmount = errors.New("amount must not be negative")

	// ErrSameAccount 來源與目的帳戶相同
	ErrSameAccount = errors.New("source and destination account are the same")

	// ErrInvalidAccountRef 帳戶 ID 不合法
	ErrInvalidAccountRef = errors.New("invalid account reference")

	// ErrInvalidToken 冪等 token 格式錯誤
	ErrInvalidToken = errors.New("invalid idempotency token")
)
