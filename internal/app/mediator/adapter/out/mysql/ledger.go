package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/JoeShih716/go-treasury-mediator/internal/app/mediator/domain"
	"github.com/JoeShih716/go-treasury-mediator/internal/app/mediator/usecase"
	"github.com/JoeShih716/go-treasury-mediator/pkg/money"
	"github.com/JoeShih716/go-treasury-mediator/pkg/mysql"
)

// memberRole account_members 的角色
type memberRole uint8

const (
	roleMember   memberRole = 1
	roleApprover memberRole = 2
)

// sqlAccount 對應 accounts 表
type sqlAccount struct {
	ID    int64          `gorm:"primaryKey;autoIncrement"`
	Kind  uint8          `gorm:"not null"`
	Owner sql.NullString `gorm:"type:char(36);index"`
	// PersonalOwner 只有個人帳戶才有值，保證一人一個個人帳戶
	PersonalOwner         sql.NullString  `gorm:"type:char(36);uniqueIndex"`
	Name                  string          `gorm:"size:64"`
	RequiresAuthorization bool            `gorm:"not null;default:false"`
	Balance               decimal.Decimal `gorm:"type:decimal(24,4);not null"`
	CreatedAt             int64           `gorm:"autoCreateTime:milli"`
	UpdatedAt             int64           `gorm:"autoUpdateTime:milli"`
}

func (*sqlAccount) TableName() string {
	return "accounts"
}

func (a *sqlAccount) metadata() (*domain.AccountMetadata, error) {
	meta := &domain.AccountMetadata{
		ID:                    domain.AccountRef(a.ID),
		Kind:                  domain.AccountKind(a.Kind),
		Name:                  a.Name,
		RequiresAuthorization: a.RequiresAuthorization,
	}
	if a.Owner.Valid {
		owner, err := uuid.Parse(a.Owner.String)
		if err != nil {
			return nil, fmt.Errorf("account %d owner: %w", a.ID, err)
		}
		meta.Owner = uuid.NullUUID{UUID: owner, Valid: true}
	}
	return meta, nil
}

// sqlAccountMember 對應 account_members 表
type sqlAccountMember struct {
	AccountID int64  `gorm:"primaryKey"`
	Member    string `gorm:"primaryKey;type:char(36)"`
	Role      uint8  `gorm:"not null"`
	// Position 授權人的順序
	Position int `gorm:"not null;default:0"`
}

func (*sqlAccountMember) TableName() string {
	return "account_members"
}

// sqlTransfer 對應 transfers 表，Token 唯一
type sqlTransfer struct {
	ID          int64           `gorm:"primaryKey;autoIncrement"`
	Token       string          `gorm:"type:char(64);uniqueIndex"`
	Source      int64           `gorm:"not null"`
	Destination int64           `gorm:"not null"`
	Amount      decimal.Decimal `gorm:"type:decimal(24,4);not null"`
	Memo        string          `gorm:"size:128"`
	Initiator   string          `gorm:"type:char(36)"`
	Approver    sql.NullString  `gorm:"type:char(36)"`
	Origin      string          `gorm:"size:64"`
	CreatedAt   int64           `gorm:"autoCreateTime:milli"`
}

func (*sqlTransfer) TableName() string {
	return "transfers"
}

// Ledger 以 MySQL 為儲存的參考帳本
type Ledger struct {
	client    *mysql.Client
	formatter *money.Formatter
}

func NewLedger(client *mysql.Client, formatter *money.Formatter) *Ledger {
	if formatter == nil {
		formatter = money.NewFormatter("")
	}
	return &Ledger{client: client, formatter: formatter}
}

// Migrate 建立或更新資料表
func (l *Ledger) Migrate(ctx context.Context) error {
	return l.client.DB().WithContext(ctx).AutoMigrate(&sqlAccount{}, &sqlAccountMember{}, &sqlTransfer{})
}

func (l *Ledger) db(ctx context.Context) *gorm.DB {
	return l.client.DB().WithContext(ctx)
}

// personal 取得玩家個人帳戶，沒有時回傳 nil, nil
func (l *Ledger) personal(ctx context.Context, owner uuid.UUID) (*sqlAccount, error) {
	var row sqlAccount
	err := l.db(ctx).Where("personal_owner = ?", owner.String()).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (l *Ledger) byID(ctx context.Context, ref domain.AccountRef) (*sqlAccount, error) {
	var row sqlAccount
	err := l.db(ctx).Where("id = ?", int64(ref)).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// GetBalance 取得玩家個人帳戶餘額
func (l *Ledger) GetBalance(ctx context.Context, owner uuid.UUID) (decimal.Decimal, error) {
	row, err := l.personal(ctx, owner)
	if err != nil {
		return decimal.Zero, err
	}
	if row == nil {
		return decimal.Zero, domain.ErrAccountNotFound
	}
	return row.Balance, nil
}

// HasFunds 帳戶餘額是否足夠
func (l *Ledger) HasFunds(ctx context.Context, ref domain.AccountRef, amount decimal.Decimal) (bool, error) {
	row, err := l.byID(ctx, ref)
	if err != nil {
		return false, err
	}
	if row == nil {
		return false, domain.ErrAccountNotFound
	}
	return row.Balance.GreaterThanOrEqual(amount), nil
}

// HasAccount 玩家是否已有個人帳戶
func (l *Ledger) HasAccount(ctx context.Context, owner uuid.UUID) (bool, error) {
	var n int64
	err := l.db(ctx).Model(&sqlAccount{}).Where("personal_owner = ?", owner.String()).Count(&n).Error
	return n > 0, err
}

// HasAccountByID 帳戶是否存在
func (l *Ledger) HasAccountByID(ctx context.Context, ref domain.AccountRef) (bool, error) {
	var n int64
	err := l.db(ctx).Model(&sqlAccount{}).Where("id = ?", int64(ref)).Count(&n).Error
	return n > 0, err
}

// GetAccountByOwner 取得玩家個人帳戶
func (l *Ledger) GetAccountByOwner(ctx context.Context, owner uuid.UUID) (*domain.AccountMetadata, error) {
	row, err := l.personal(ctx, owner)
	if err != nil || row == nil {
		return nil, err
	}
	return row.metadata()
}

// ResolveOrCreatePersonal 取得玩家個人帳戶，沒有就建立。
// 併發建立時 personal_owner 的唯一索引會擋下後到者，後到者改為重新讀取。
func (l *Ledger) ResolveOrCreatePersonal(ctx context.Context, owner uuid.UUID) (*domain.AccountMetadata, error) {
	if owner == uuid.Nil {
		return nil, domain.ErrAccountNotFound
	}
	row, err := l.personal(ctx, owner)
	if err != nil {
		return nil, err
	}
	if row != nil {
		return row.metadata()
	}

	key := sql.NullString{String: owner.String(), Valid: true}
	row = &sqlAccount{
		Kind:          uint8(domain.AccountKindPersonal),
		Owner:         key,
		PersonalOwner: key,
		Balance:       decimal.Zero,
	}
	err = l.db(ctx).Create(row).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		if row, err = l.personal(ctx, owner); err == nil && row == nil {
			err = domain.ErrAccountNotFound
		}
	}
	if err != nil {
		return nil, err
	}
	return row.metadata()
}

// GetAccountByID 取得帳戶資料
func (l *Ledger) GetAccountByID(ctx context.Context, ref domain.AccountRef) (*domain.AccountMetadata, error) {
	row, err := l.byID(ctx, ref)
	if err != nil || row == nil {
		return nil, err
	}
	return row.metadata()
}

// GetApprovers 依 position 排序的授權人清單
func (l *Ledger) GetApprovers(ctx context.Context, ref domain.AccountRef) ([]uuid.UUID, error) {
	var rows []sqlAccountMember
	err := l.db(ctx).
		Where("account_id = ? AND role = ?", int64(ref), uint8(roleApprover)).
		Order("position").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	approvers := make([]uuid.UUID, 0, len(rows))
	for _, r := range rows {
		id, err := uuid.Parse(r.Member)
		if err != nil {
			return nil, fmt.Errorf("account %d approver: %w", ref, err)
		}
		approvers = append(approvers, id)
	}
	return approvers, nil
}

// CanAccess 擁有者與 account_members 中的成員、授權人都可以使用帳戶
func (l *Ledger) CanAccess(ctx context.Context, who uuid.UUID, ref domain.AccountRef) (bool, error) {
	row, err := l.byID(ctx, ref)
	if err != nil {
		return false, err
	}
	if row == nil {
		return false, domain.ErrAccountNotFound
	}
	if row.Owner.Valid && row.Owner.String == who.String() {
		return true, nil
	}
	var n int64
	err = l.db(ctx).Model(&sqlAccountMember{}).
		Where("account_id = ? AND member = ?", int64(ref), who.String()).
		Count(&n).Error
	return n > 0, err
}

// Transfer 在單一 Transaction 內完成轉帳
//
// 步驟:
//  1. token 已存在則直接成功
//  2. 依 id 順序以 FOR UPDATE 鎖定兩個帳戶，避免死結
//  3. 檢查授權人與餘額
//  4. 更新餘額並寫入 transfers
func (l *Ledger) Transfer(ctx context.Context, ins *domain.TransferInstruction) error {
	if err := ins.Validate(); err != nil {
		return err
	}
	token := ins.Token.String()

	err := l.db(ctx).Transaction(func(tx *gorm.DB) error {
		var seen int64
		if err := tx.Model(&sqlTransfer{}).Where("token = ?", token).Count(&seen).Error; err != nil {
			return err
		}
		if seen > 0 {
			return nil
		}

		ids := []int64{int64(ins.Source), int64(ins.Destination)}
		if ids[0] > ids[1] {
			ids[0], ids[1] = ids[1], ids[0]
		}
		var rows []sqlAccount
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id IN ?", ids).
			Order("id").
			Find(&rows).Error; err != nil {
			return err
		}
		accounts := make(map[domain.AccountRef]*sqlAccount, len(rows))
		for i := range rows {
			accounts[domain.AccountRef(rows[i].ID)] = &rows[i]
		}
		from, ok := accounts[ins.Source]
		if !ok {
			return fmt.Errorf("source %s: %w", ins.Source, domain.ErrAccountNotFound)
		}
		to, ok := accounts[ins.Destination]
		if !ok {
			return fmt.Errorf("destination %s: %w", ins.Destination, domain.ErrAccountNotFound)
		}

		if from.RequiresAuthorization {
			if !ins.Approver.Valid {
				return fmt.Errorf("withdraw from %s: %w", ins.Source, domain.ErrAuthorizationRequired)
			}
			var n int64
			if err := tx.Model(&sqlAccountMember{}).
				Where("account_id = ? AND member = ? AND role = ?", from.ID, ins.Approver.UUID.String(), uint8(roleApprover)).
				Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return fmt.Errorf("withdraw from %s: %w", ins.Source, domain.ErrAuthorizationRequired)
			}
		}
		if from.Balance.LessThan(ins.Amount) {
			return fmt.Errorf("withdraw %s from %s: %w", ins.Amount, ins.Source, domain.ErrInsufficientFunds)
		}

		if err := tx.Model(&sqlAccount{}).Where("id = ?", from.ID).
			Update("balance", from.Balance.Sub(ins.Amount)).Error; err != nil {
			return err
		}
		if err := tx.Model(&sqlAccount{}).Where("id = ?", to.ID).
			Update("balance", to.Balance.Add(ins.Amount)).Error; err != nil {
			return err
		}

		record := &sqlTransfer{
			Token:       token,
			Source:      from.ID,
			Destination: to.ID,
			Amount:      ins.Amount,
			Memo:        ins.Memo,
			Initiator:   ins.Initiator.String(),
			Origin:      ins.Origin,
		}
		if ins.Approver.Valid {
			record.Approver = sql.NullString{String: ins.Approver.UUID.String(), Valid: true}
		}
		return tx.Create(record).Error
	})
	// 同 token 併發時後到者在插入時撞到唯一索引，代表已被套用
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil
	}
	return err
}

// FormatAmount 金額顯示字串
func (l *Ledger) FormatAmount(_ context.Context, amount decimal.Decimal) (string, error) {
	return l.formatter.Format(amount), nil
}

var _ usecase.Ledger = (*Ledger)(nil)
