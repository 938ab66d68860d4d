// Package event 是 host 事件系統的入口。host 將事件交給 Listener，
// Listener 呼叫 usecase 後回填 handled 與結果欄位。
package event

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-treasury-mediator/internal/app/mediator/domain"
)

// TransferEvent 一筆買賣交易的資金移轉請求
type TransferEvent struct {
	// Transaction 為 nil 代表事件沒有附帶交易，Listener 不處理
	Transaction *domain.TransactionContext
	// Cancelled 上游已取消，不得呼叫帳本
	Cancelled bool

	Handled bool
	Outcome domain.Outcome
	Message string
}

// AmountEvent 查詢餘額；Amount 非零代表已有其他來源回答
type AmountEvent struct {
	Account uuid.UUID
	Amount  decimal.Decimal
	Handled bool
}

// CheckEvent 檢查是否有足夠資金
type CheckEvent struct {
	Account   uuid.UUID
	Amount    decimal.Decimal
	HasEnough bool
	Handled   bool
}

// AccountCheckEvent 檢查玩家是否已有帳戶
type AccountCheckEvent struct {
	Account    uuid.UUID
	HasAccount bool
	Handled    bool
}

// FormatEvent 金額格式化
type FormatEvent struct {
	Amount    decimal.Decimal
	Formatted string
	Handled   bool
}

// AddEvent 由伺服器帳戶轉入玩家
type AddEvent struct {
	Target  uuid.UUID
	Amount  decimal.Decimal
	Handled bool
	Outcome domain.Outcome
}

// SubtractEvent 由玩家轉回伺服器帳戶
type SubtractEvent struct {
	Target  uuid.UUID
	Amount  decimal.Decimal
	Handled bool
	Outcome domain.Outcome
}

// HoldEvent 檢查帳戶能否再收款
type HoldEvent struct {
	Account uuid.NullUUID
	Amount  decimal.Decimal
	CanHold bool
	Handled bool
}

// outcomeMessages 回報給玩家的訊息
var outcomeMessages = map[domain.Outcome]string{
	domain.OutcomeHandledMoved:          "transfer completed",
	domain.OutcomeHandledNoOp:           "no ledger movement required",
	domain.OutcomeAuthorizationRequired: "shared account requires an authorized approver",
	domain.OutcomeInsufficientFunds:     "insufficient funds",
	domain.OutcomeAccountNotFound:       "account not found",
	domain.OutcomeTransientFailure:      "ledger unavailable, please try again",
}

// Message 結果對應的訊息
func Message(o domain.Outcome) string {
	if msg, ok := outcomeMessages[o]; ok {
		return msg
	}
	return o.String()
}
