package domain

import (
	"encoding/hex"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SharedAccountRef 交易附帶的共用帳戶，以及它位於交易的哪一方
type SharedAccountRef struct {
	Ref  AccountRef
	Side Side
}

// TransactionContext 單次交易嘗試的輸入，建立後不再修改 (以值傳遞)
type TransactionContext struct {
	// Sender, Receiver: 付款方與收款方
	Sender   uuid.UUID
	Receiver uuid.UUID
	// Amount: 金額，不可為負數
	Amount decimal.Decimal
	// SharedAccount: 可選的共用帳戶
	SharedAccount *SharedAccountRef
	// Initiator: 觸發這筆交易的玩家
	Initiator uuid.UUID
	// Memo: 轉帳備註，空字串時使用設定檔預設值
	Memo string
	// ContextTag: 穩定的來源標記 (例如商店告示牌的座標)，用於冪等 key
	ContextTag string
	// AttemptID: 可選的嘗試 ID。重送同一筆交易時帶相同的值，會得到相同的冪等 token
	AttemptID uuid.NullUUID
}

// SharedOn 回傳共用帳戶是否位於指定的一方
func (t TransactionContext) SharedOn(side Side) (AccountRef, bool) {
	if t.SharedAccount == nil || t.SharedAccount.Side != side || !t.SharedAccount.Ref.Valid() {
		return 0, false
	}
	return t.SharedAccount.Ref, true
}

// Validate 檢查交易輸入
func (t TransactionContext) Validate() error {
	if t.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	if t.SharedAccount != nil && !t.SharedAccount.Ref.Valid() {
		return ErrInvalidAccountRef
	}
	return nil
}

// IdempotencyTokenSize token 固定長度 (SHA-256)
const IdempotencyTokenSize = 32

// IdempotencyToken 冪等 token，帳本保證同一個 token 最多只套用一次
type IdempotencyToken [IdempotencyTokenSize]byte

func (t IdempotencyToken) String() string {
	return hex.EncodeToString(t[:])
}

// IsZero 回傳 token 是否尚未設定
func (t IdempotencyToken) IsZero() bool {
	return t == IdempotencyToken{}
}

func (t IdempotencyToken) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *IdempotencyToken) UnmarshalText(text []byte) error {
	if hex.DecodedLen(len(text)) != IdempotencyTokenSize {
		return ErrInvalidToken
	}
	if _, err := hex.Decode(t[:], text); err != nil {
		return ErrInvalidToken
	}
	return nil
}

// TransferInstruction 解析完成、準備送給帳本的轉帳指令
type TransferInstruction struct {
	Source      AccountRef       `json:"source"`
	Destination AccountRef       `json:"destination"`
	Amount      decimal.Decimal  `json:"amount"`
	Memo        string           `json:"memo"`
	Initiator   uuid.UUID        `json:"initiator"`
	Approver    uuid.NullUUID    `json:"approver"`
	Origin      string           `json:"origin"`
	Token       IdempotencyToken `json:"token"`
}

// Validate 檢查指令是否可以送出
func (t *TransferInstruction) Validate() error {
	if !t.Source.Valid() || !t.Destination.Valid() {
		return ErrInvalidAccountRef
	}
	if t.Source == t.Destination {
		return ErrSameAccount
	}
	if t.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	if t.Token.IsZero() {
		return ErrInvalidToken
	}
	return nil
}
