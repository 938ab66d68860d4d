package usecase

import (
	"sync/atomic"

	"github.com/JoeShih716/go-treasury-mediator/internal/app/mediator/domain"
)

type ledgerBox struct {
	ledger Ledger
}

// LedgerHandle 全程序共用的帳本 client 參照
//
// 註冊 / 重新載入 / 移除都透過 atomic 發布，進行中的調解只會看到舊的或新的 Ledger。
type LedgerHandle struct {
	current atomic.Pointer[ledgerBox]
}

// NewLedgerHandle 建立 handle，ledger 可為 nil (尚未註冊)
func NewLedgerHandle(ledger Ledger) *LedgerHandle {
	h := &LedgerHandle{}
	h.Publish(ledger)
	return h
}

// Publish 發布新的帳本 client，nil 等同 Withdraw
func (h *LedgerHandle) Publish(ledger Ledger) {
	if ledger == nil {
		h.current.Store(nil)
		return
	}
	h.current.Store(&ledgerBox{ledger: ledger})
}

// Withdraw 帳本服務取消註冊
func (h *LedgerHandle) Withdraw() {
	h.current.Store(nil)
}

// Current 取得目前的帳本 client
func (h *LedgerHandle) Current() (Ledger, error) {
	box := h.current.Load()
	if box == nil {
		return nil, domain.ErrConfigurationMissing
	}
	return box.ledger, nil
}
