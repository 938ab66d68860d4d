package usecase

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-treasury-mediator/internal/app/mediator/domain"
)

const (
	memoCurrencyAdd      = "ChestShop currency add"
	memoCurrencySubtract = "ChestShop currency subtract"

	contextTagAdd      = "add"
	contextTagSubtract = "sub"
)

// Economy 交易以外的經濟操作: 查餘額、檢查資金、格式化、加減款
type Economy struct {
	handle        *LedgerHandle
	identities    *IdentityResolver
	keys          *KeyBuilder
	submitter     *Submitter
	serverAccount uuid.NullUUID
	origin        string
	logger        *zap.Logger
}

// NewEconomy 建立 Economy
//
// 參數:
//
//	serverAccount: 伺服器經濟帳戶，加減款的對手方；未設定時加減款不做帳本異動
func NewEconomy(handle *LedgerHandle, identities *IdentityResolver, keys *KeyBuilder, submitter *Submitter,
	serverAccount uuid.NullUUID, origin string, logger *zap.Logger) *Economy {
	if logger == nil {
		logger = zap.NewNop()
	}
	if origin == "" {
		origin = DefaultOrigin
	}
	return &Economy{
		handle:        handle,
		identities:    identities,
		keys:          keys,
		submitter:     submitter,
		serverAccount: serverAccount,
		origin:        origin,
		logger:        logger,
	}
}

// Balance 取得玩家餘額
func (e *Economy) Balance(ctx context.Context, owner uuid.UUID) (decimal.Decimal, error) {
	ledger, err := e.handle.Current()
	if err != nil {
		return decimal.Zero, err
	}
	return ledger.GetBalance(ctx, owner)
}

// HasFunds 玩家個人帳戶是否有足夠餘額，沒有帳戶視為不足
func (e *Economy) HasFunds(ctx context.Context, owner uuid.UUID, amount decimal.Decimal) (bool, error) {
	ledger, err := e.handle.Current()
	if err != nil {
		return false, err
	}
	account, err := ledger.GetAccountByOwner(ctx, owner)
	if err != nil {
		return false, err
	}
	if account == nil {
		return false, nil
	}
	return ledger.HasFunds(ctx, account.ID, amount)
}

// HasAccount 玩家是否已有個人帳戶
func (e *Economy) HasAccount(ctx context.Context, owner uuid.UUID) (bool, error) {
	ledger, err := e.handle.Current()
	if err != nil {
		return false, err
	}
	return ledger.HasAccount(ctx, owner)
}

// Format 金額顯示字串
func (e *Economy) Format(ctx context.Context, amount decimal.Decimal) (string, error) {
	ledger, err := e.handle.Current()
	if err != nil {
		return "", err
	}
	return ledger.FormatAmount(ctx, amount)
}

// CanHold 帳本沒有餘額上限，永遠可以收款
func (e *Economy) CanHold(_ context.Context, _ uuid.UUID, _ decimal.Decimal) bool {
	return true
}

// Add 由伺服器帳戶轉入玩家帳戶 (稅金、退款...)
func (e *Economy) Add(ctx context.Context, target uuid.UUID, amount decimal.Decimal) domain.Outcome {
	return e.moveWithServer(ctx, target, amount, false)
}

// Subtract 由玩家帳戶轉回伺服器帳戶
func (e *Economy) Subtract(ctx context.Context, target uuid.UUID, amount decimal.Decimal) domain.Outcome {
	return e.moveWithServer(ctx, target, amount, true)
}

func (e *Economy) moveWithServer(ctx context.Context, target uuid.UUID, amount decimal.Decimal, subtract bool) domain.Outcome {
	logger := e.logger.With(zap.Stringer("target", target), zap.Stringer("amount", amount), zap.Bool("subtract", subtract))

	if amount.IsNegative() {
		logger.Warn("negative amount", zap.Error(domain.ErrInvalidAmount))
		return domain.OutcomeTransientFailure
	}
	ledger, err := e.handle.Current()
	if err != nil {
		logger.Error("ledger unavailable", zap.Error(err))
		return domain.OutcomeTransientFailure
	}

	targetRef, err := e.identities.Resolve(ctx, ledger, target)
	if err != nil {
		logger.Warn("could not resolve target account", zap.Error(err))
		return domain.OutcomeAccountNotFound
	}

	// 沒有伺服器帳戶時餘額由帳本自行管理，直接視為已處理
	if !e.serverAccount.Valid {
		return domain.OutcomeHandledNoOp
	}
	serverRef, err := e.identities.Resolve(ctx, ledger, e.serverAccount.UUID)
	if err != nil {
		logger.Warn("could not resolve server account", zap.Error(err))
		return domain.OutcomeTransientFailure
	}
	if serverRef == targetRef {
		return domain.OutcomeHandledNoOp
	}

	ins := &domain.TransferInstruction{
		Amount:    amount,
		Initiator: target,
		Origin:    e.origin,
	}
	tag := contextTagAdd
	if subtract {
		tag = contextTagSubtract
		ins.Source, ins.Destination, ins.Memo = targetRef, serverRef, memoCurrencySubtract
	} else {
		ins.Source, ins.Destination, ins.Memo = serverRef, targetRef, memoCurrencyAdd
	}
	nonce := e.keys.Nonce(domain.TransactionContext{})
	ins.Token = e.keys.BuildKey(ins.Source.String(), target.String(), tag, nonce)

	return e.submitter.Submit(ctx, ledger, ins)
}
