package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-treasury-mediator/internal/app/mediator/domain"
)

// NameSource 以玩家名稱查詢身分 (線上玩家、離線玩家紀錄...)
type NameSource interface {
	// LookupName 找不到時回傳 ok = false
	LookupName(ctx context.Context, name string) (id uuid.UUID, ok bool, err error)
}

// IdentityResolver 把玩家身分 (或名稱) 對應到帳本帳戶
type IdentityResolver struct {
	sources []NameSource
	logger  *zap.Logger
}

// NewIdentityResolver 建立 IdentityResolver
//
// 參數:
//
//	logger: 可為 nil
//	sources: 依序查詢的名稱來源，通常是線上玩家在前、離線紀錄在後
func NewIdentityResolver(logger *zap.Logger, sources ...NameSource) *IdentityResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdentityResolver{
		sources: sources,
		logger:  logger,
	}
}

// Resolve 取得玩家個人帳戶 ID，第一次使用時由帳本建立
func (r *IdentityResolver) Resolve(ctx context.Context, ledger Ledger, owner uuid.UUID) (domain.AccountRef, error) {
	account, err := ledger.ResolveOrCreatePersonal(ctx, owner)
	if err != nil {
		return 0, fmt.Errorf("resolve personal account of %s: %w", owner, err)
	}
	if account == nil {
		return 0, fmt.Errorf("resolve personal account of %s: %w", owner, domain.ErrAccountNotFound)
	}
	return account.ID, nil
}

// LookupName 以名稱查詢玩家身分，依序嘗試每個來源
//
// 回傳:
//
//	uuid.UUID: 玩家身分
//	error: 全部來源都找不到時 wrap domain.ErrAccountNotFound；
//	       有來源查詢失敗且沒有其他來源找到時 wrap domain.ErrTransientFailure
func (r *IdentityResolver) LookupName(ctx context.Context, name string) (uuid.UUID, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return uuid.Nil, fmt.Errorf("empty name: %w", domain.ErrAccountNotFound)
	}

	var lookupErr error
	for _, source := range r.sources {
		id, ok, err := source.LookupName(ctx, name)
		if err != nil {
			r.logger.Warn("name lookup failed", zap.String("name", name), zap.Error(err))
			lookupErr = errors.Join(lookupErr, err)
			continue
		}
		if ok {
			return id, nil
		}
	}
	if lookupErr != nil {
		return uuid.Nil, fmt.Errorf("lookup %q: %w: %w", name, domain.ErrTransientFailure, lookupErr)
	}
	return uuid.Nil, fmt.Errorf("lookup %q: %w", name, domain.ErrAccountNotFound)
}

// ResolveName 以名稱取得玩家身分與個人帳戶
func (r *IdentityResolver) ResolveName(ctx context.Context, ledger Ledger, name string) (uuid.UUID, domain.AccountRef, error) {
	id, err := r.LookupName(ctx, name)
	if err != nil {
		return uuid.Nil, 0, err
	}
	ref, err := r.Resolve(ctx, ledger, id)
	if err != nil {
		return uuid.Nil, 0, err
	}
	return id, ref, nil
}
