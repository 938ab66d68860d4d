package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/JoeShih716/go-treasury-mediator/internal/app/mediator/domain"
)

// ShopBinding 商店綁定的帳戶
type ShopBinding struct {
	// Owner: 商店擁有者 (共用帳戶時為帳戶擁有者)
	Owner uuid.UUID
	// SharedAccount: 綁定的共用帳戶，個人商店時為 nil
	SharedAccount *domain.AccountRef
}

// ShopBinder 建立商店時決定收付款的帳戶
type ShopBinder struct {
	handle     *LedgerHandle
	identities *IdentityResolver
}

func NewShopBinder(handle *LedgerHandle, identities *IdentityResolver) *ShopBinder {
	return &ShopBinder{
		handle:     handle,
		identities: identities,
	}
}

// BindShared 綁定共用帳戶: 帳戶必須存在、玩家必須可以使用、且帳戶有擁有者
func (b *ShopBinder) BindShared(ctx context.Context, player uuid.UUID, ref domain.AccountRef) (ShopBinding, error) {
	if !ref.Valid() {
		return ShopBinding{}, domain.ErrInvalidAccountRef
	}
	ledger, err := b.handle.Current()
	if err != nil {
		return ShopBinding{}, err
	}

	exists, err := ledger.HasAccountByID(ctx, ref)
	if err != nil {
		return ShopBinding{}, fmt.Errorf("check account %s: %w", ref, err)
	}
	if !exists {
		return ShopBinding{}, fmt.Errorf("shared account %s: %w", ref, domain.ErrAccountNotFound)
	}

	allowed, err := ledger.CanAccess(ctx, player, ref)
	if err != nil {
		return ShopBinding{}, fmt.Errorf("check access to %s: %w", ref, err)
	}
	if !allowed {
		return ShopBinding{}, fmt.Errorf("player %s on %s: %w", player, ref, domain.ErrAuthorizationRequired)
	}

	account, err := ledger.GetAccountByID(ctx, ref)
	if err != nil {
		return ShopBinding{}, fmt.Errorf("get account %s: %w", ref, err)
	}
	if account == nil || !account.Owner.Valid {
		return ShopBinding{}, fmt.Errorf("shared account %s has no owner: %w", ref, domain.ErrAccountNotFound)
	}
	return ShopBinding{Owner: account.Owner.UUID, SharedAccount: &ref}, nil
}

// BindPersonal 綁定個人商店，name 為空時使用建立者本人
func (b *ShopBinder) BindPersonal(ctx context.Context, player uuid.UUID, name string) (ShopBinding, error) {
	if name == "" {
		return ShopBinding{Owner: player}, nil
	}
	owner, err := b.identities.LookupName(ctx, name)
	if err != nil {
		return ShopBinding{}, err
	}
	return ShopBinding{Owner: owner}, nil
}
