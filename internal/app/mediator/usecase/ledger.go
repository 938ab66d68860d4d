package usecase

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-treasury-mediator/internal/app/mediator/domain"
)

// Ledger 是外部帳本服務的介面
//
// 轉帳失敗時回傳的 error 需 wrap domain.ErrAccountNotFound, domain.ErrAuthorizationRequired
// 或 domain.ErrInsufficientFunds 其中之一；其餘錯誤一律視為暫時性失敗。
type Ledger interface {
	// GetBalance 取得玩家個人帳戶餘額
	GetBalance(ctx context.Context, owner uuid.UUID) (decimal.Decimal, error)
	// HasFunds 帳戶餘額是否足夠
	HasFunds(ctx context.Context, ref domain.AccountRef, amount decimal.Decimal) (bool, error)
	// HasAccount 玩家是否已有個人帳戶
	HasAccount(ctx context.Context, owner uuid.UUID) (bool, error)
	// HasAccountByID 帳戶 ID 是否存在
	HasAccountByID(ctx context.Context, ref domain.AccountRef) (bool, error)
	// GetAccountByOwner 取得玩家個人帳戶，沒有時回傳 nil, nil
	GetAccountByOwner(ctx context.Context, owner uuid.UUID) (*domain.AccountMetadata, error)
	// ResolveOrCreatePersonal 取得玩家個人帳戶，沒有就建立
	ResolveOrCreatePersonal(ctx context.Context, owner uuid.UUID) (*domain.AccountMetadata, error)
	// GetAccountByID 取得帳戶資料，沒有時回傳 nil, nil
	GetAccountByID(ctx context.Context, ref domain.AccountRef) (*domain.AccountMetadata, error)
	// GetApprovers 取得共用帳戶的授權人清單 (有序)
	GetApprovers(ctx context.Context, ref domain.AccountRef) ([]uuid.UUID, error)
	// CanAccess 玩家是否可以使用該帳戶
	CanAccess(ctx context.Context, who uuid.UUID, ref domain.AccountRef) (bool, error)
	// Transfer 執行轉帳，同一個 token 最多套用一次
	Transfer(ctx context.Context, ins *domain.TransferInstruction) error
	// FormatAmount 金額顯示字串
	FormatAmount(ctx context.Context, amount decimal.Decimal) (string, error)
}
