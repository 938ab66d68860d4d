package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-treasury-mediator/internal/app/mediator/domain"
	"github.com/JoeShih716/go-treasury-mediator/internal/app/mediator/usecase"
	"github.com/JoeShih716/go-treasury-mediator/pkg/money"
	"github.com/JoeShih716/go-treasury-mediator/pkg/wal"
)

// walOp WAL 紀錄的種類
type walOp string

const (
	opOpen     walOp = "open"
	opDeposit  walOp = "deposit"
	opTransfer walOp = "transfer"
)

// walRecord 一筆 WAL 紀錄
type walRecord struct {
	Op        walOp                       `json:"op"`
	Account   *domain.AccountMetadata     `json:"account,omitempty"`
	Approvers []uuid.UUID                 `json:"approvers,omitempty"`
	Members   []uuid.UUID                 `json:"members,omitempty"`
	Ref       domain.AccountRef           `json:"ref,omitempty"`
	Amount    decimal.Decimal             `json:"amount"`
	Transfer  *domain.TransferInstruction `json:"transfer,omitempty"`
	CreatedAt int64                       `json:"created_at"`
}

// account 帳本內部的帳戶狀態
type account struct {
	meta      domain.AccountMetadata
	balance   decimal.Decimal
	approvers []uuid.UUID
	members   []uuid.UUID
}

// Ledger 是一個使用 Mutex 實現的參考帳本
//
// 結構:
//
//	accounts: 帳戶資料 Map
//	owners: 玩家身分對應個人帳戶
//	processed: 已套用過的冪等 token
//	wal: Write-Ahead Log 實例 (可為 nil，僅存在記憶體)
type Ledger struct {
	mu        sync.RWMutex
	nextID    domain.AccountRef
	accounts  map[domain.AccountRef]*account
	owners    map[uuid.UUID]domain.AccountRef
	processed map[domain.IdempotencyToken]time.Time
	wal       *wal.WAL
	formatter *money.Formatter
}

// NewLedger 建立一個新的 Ledger 實例，並從 WAL 恢復狀態
//
// 參數:
//
//	w: Write-Ahead Log 實例，nil 代表不落地
//	formatter: 金額格式，nil 時使用預設符號
//
// 回傳:
//
//	*Ledger: Ledger 實例
//	error: 初始化錯誤 (如 WAL 恢復失敗)
func NewLedger(w *wal.WAL, formatter *money.Formatter) (*Ledger, error) {
	if formatter == nil {
		formatter = money.NewFormatter("")
	}
	ledger := &Ledger{
		accounts:  make(map[domain.AccountRef]*account),
		owners:    make(map[uuid.UUID]domain.AccountRef),
		processed: make(map[domain.IdempotencyToken]time.Time),
		wal:       w,
		formatter: formatter,
	}
	if w != nil {
		if err := ledger.recoverFromWAL(); err != nil {
			return nil, err
		}
	}
	return ledger, nil
}

// recoverFromWAL 從 WAL 檔案恢復帳本狀態
// 只有 NewLedger 呼叫，無需 Lock (單執行緒)
func (l *Ledger) recoverFromWAL() error {
	return l.wal.ReadAll(func(jsonRaw []byte) error {
		var rec walRecord
		if err := json.Unmarshal(jsonRaw, &rec); err != nil {
			return err
		}
		return l.apply(&rec)
	})
}

// apply 套用一筆已通過檢查的紀錄至記憶體 (不寫入 WAL)
func (l *Ledger) apply(rec *walRecord) error {
	switch rec.Op {
	case opOpen:
		if rec.Account == nil {
			return fmt.Errorf("wal open record without account")
		}
		acc := &account{
			meta:      *rec.Account,
			balance:   decimal.Zero,
			approvers: rec.Approvers,
			members:   rec.Members,
		}
		l.accounts[acc.meta.ID] = acc
		if acc.meta.Kind == domain.AccountKindPersonal && acc.meta.Owner.Valid {
			l.owners[acc.meta.Owner.UUID] = acc.meta.ID
		}
		if acc.meta.ID >= l.nextID {
			l.nextID = acc.meta.ID + 1
		}
	case opDeposit:
		acc, ok := l.accounts[rec.Ref]
		if !ok {
			return domain.ErrAccountNotFound
		}
		acc.balance = acc.balance.Add(rec.Amount)
	case opTransfer:
		ins := rec.Transfer
		if ins == nil {
			return fmt.Errorf("wal transfer record without instruction")
		}
		from, okFrom := l.accounts[ins.Source]
		to, okTo := l.accounts[ins.Destination]
		if !okFrom || !okTo {
			return domain.ErrAccountNotFound
		}
		from.balance = from.balance.Sub(ins.Amount)
		to.balance = to.balance.Add(ins.Amount)
		l.processed[ins.Token] = time.UnixMilli(rec.CreatedAt)
	default:
		return fmt.Errorf("unknown wal op %q", rec.Op)
	}
	return nil
}

// commit 先寫 WAL 再更新記憶體，呼叫端需持有寫鎖
func (l *Ledger) commit(rec *walRecord) error {
	rec.CreatedAt = time.Now().UnixMilli()
	if l.wal != nil {
		if err := l.wal.Write(rec); err != nil {
			return fmt.Errorf("write wal: %w", err)
		}
	}
	return l.apply(rec)
}

// OpenShared 開立共用帳戶
//
// 參數:
//
//	name: 顯示名稱
//	owner: 擁有者，可為空
//	requiresAuthorization: 轉出時是否需要授權人
//	approvers: 授權人清單 (有序)
//	members: 可使用帳戶的成員 (擁有者與授權人不必重複列出)
func (l *Ledger) OpenShared(_ context.Context, name string, owner uuid.NullUUID, requiresAuthorization bool,
	approvers, members []uuid.UUID) (domain.AccountRef, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec := &walRecord{
		Op: opOpen,
		Account: &domain.AccountMetadata{
			ID:                    l.nextID,
			Kind:                  domain.AccountKindShared,
			Owner:                 owner,
			Name:                  name,
			RequiresAuthorization: requiresAuthorization,
		},
		Approvers: slices.Clone(approvers),
		Members:   slices.Clone(members),
	}
	if err := l.commit(rec); err != nil {
		return 0, err
	}
	return rec.Account.ID, nil
}

// Deposit 直接存入帳戶 (初始資金、管理用途)
func (l *Ledger) Deposit(_ context.Context, ref domain.AccountRef, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return domain.ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.accounts[ref]; !ok {
		return domain.ErrAccountNotFound
	}
	return l.commit(&walRecord{Op: opDeposit, Ref: ref, Amount: amount})
}

// GetBalance 取得玩家個人帳戶餘額
func (l *Ledger) GetBalance(_ context.Context, owner uuid.UUID) (decimal.Decimal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ref, ok := l.owners[owner]
	if !ok {
		return decimal.Zero, domain.ErrAccountNotFound
	}
	return l.accounts[ref].balance, nil
}

// HasFunds 帳戶餘額是否足夠
func (l *Ledger) HasFunds(_ context.Context, ref domain.AccountRef, amount decimal.Decimal) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acc, ok := l.accounts[ref]
	if !ok {
		return false, domain.ErrAccountNotFound
	}
	return acc.balance.GreaterThanOrEqual(amount), nil
}

// HasAccount 玩家是否已有個人帳戶
func (l *Ledger) HasAccount(_ context.Context, owner uuid.UUID) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.owners[owner]
	return ok, nil
}

// HasAccountByID 帳戶是否存在
func (l *Ledger) HasAccountByID(_ context.Context, ref domain.AccountRef) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.accounts[ref]
	return ok, nil
}

// GetAccountByOwner 取得玩家個人帳戶
func (l *Ledger) GetAccountByOwner(_ context.Context, owner uuid.UUID) (*domain.AccountMetadata, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ref, ok := l.owners[owner]
	if !ok {
		return nil, nil
	}
	meta := l.accounts[ref].meta
	return &meta, nil
}

// ResolveOrCreatePersonal 取得玩家個人帳戶，沒有就建立
func (l *Ledger) ResolveOrCreatePersonal(ctx context.Context, owner uuid.UUID) (*domain.AccountMetadata, error) {
	if owner == uuid.Nil {
		return nil, domain.ErrAccountNotFound
	}
	if meta, err := l.GetAccountByOwner(ctx, owner); meta != nil || err != nil {
		return meta, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	// double check: 取得寫鎖期間可能已被其他 goroutine 建立
	if ref, ok := l.owners[owner]; ok {
		meta := l.accounts[ref].meta
		return &meta, nil
	}
	rec := &walRecord{
		Op: opOpen,
		Account: &domain.AccountMetadata{
			ID:    l.nextID,
			Kind:  domain.AccountKindPersonal,
			Owner: uuid.NullUUID{UUID: owner, Valid: true},
		},
	}
	if err := l.commit(rec); err != nil {
		return nil, err
	}
	meta := *rec.Account
	return &meta, nil
}

// GetAccountByID 取得帳戶資料
func (l *Ledger) GetAccountByID(_ context.Context, ref domain.AccountRef) (*domain.AccountMetadata, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acc, ok := l.accounts[ref]
	if !ok {
		return nil, nil
	}
	meta := acc.meta
	return &meta, nil
}

// GetApprovers 取得授權人清單
func (l *Ledger) GetApprovers(_ context.Context, ref domain.AccountRef) ([]uuid.UUID, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acc, ok := l.accounts[ref]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return slices.Clone(acc.approvers), nil
}

// CanAccess 擁有者、授權人與成員都可以使用帳戶
func (l *Ledger) CanAccess(_ context.Context, who uuid.UUID, ref domain.AccountRef) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acc, ok := l.accounts[ref]
	if !ok {
		return false, domain.ErrAccountNotFound
	}
	return acc.canAccess(who), nil
}

func (a *account) canAccess(who uuid.UUID) bool {
	if a.meta.Owner.Valid && a.meta.Owner.UUID == who {
		return true
	}
	return slices.Contains(a.approvers, who) || slices.Contains(a.members, who)
}

// Transfer 處理轉帳請求
//
// 同一個 token 已套用過時直接回傳成功。需要授權的帳戶轉出時，
// 指令上的授權人必須在該帳戶的授權人清單中。
func (l *Ledger) Transfer(_ context.Context, ins *domain.TransferInstruction) error {
	if err := ins.Validate(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.processed[ins.Token]; ok {
		return nil
	}

	from, ok := l.accounts[ins.Source]
	if !ok {
		return fmt.Errorf("source %s: %w", ins.Source, domain.ErrAccountNotFound)
	}
	if _, ok := l.accounts[ins.Destination]; !ok {
		return fmt.Errorf("destination %s: %w", ins.Destination, domain.ErrAccountNotFound)
	}
	if from.meta.RequiresAuthorization {
		if !ins.Approver.Valid || !slices.Contains(from.approvers, ins.Approver.UUID) {
			return fmt.Errorf("withdraw from %s: %w", ins.Source, domain.ErrAuthorizationRequired)
		}
	}
	if from.balance.LessThan(ins.Amount) {
		return fmt.Errorf("withdraw %s from %s: %w", ins.Amount, ins.Source, domain.ErrInsufficientFunds)
	}

	return l.commit(&walRecord{Op: opTransfer, Transfer: ins, Amount: ins.Amount})
}

// FormatAmount 金額顯示字串
func (l *Ledger) FormatAmount(_ context.Context, amount decimal.Decimal) (string, error) {
	return l.formatter.Format(amount), nil
}

var _ usecase.Ledger = (*Ledger)(nil)
