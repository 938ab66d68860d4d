package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/JoeShih716/go-treasury-mediator/internal/app/mediator/domain"
)

// Classifier 把交易雙方分類成個人、共用或特權帳戶
type Classifier struct {
	identities *IdentityResolver
	privileged map[uuid.UUID]struct{}
}

// NewClassifier 建立 Classifier，privileged 為設定檔中的管理員商店身分
func NewClassifier(identities *IdentityResolver, privileged ...uuid.UUID) *Classifier {
	set := make(map[uuid.UUID]struct{}, len(privileged))
	for _, id := range privileged {
		set[id] = struct{}{}
	}
	return &Classifier{
		identities: identities,
		privileged: set,
	}
}

// IsPrivileged 是否為特權 (無餘額) 身分
func (c *Classifier) IsPrivileged(id uuid.UUID) bool {
	_, ok := c.privileged[id]
	return ok
}

// Classify 分類交易雙方，不會呼叫帳本
//
// 共用帳戶的位置只看交易附帶的方向，不做推測。
func (c *Classifier) Classify(tc domain.TransactionContext) (sender, receiver domain.AccountClass) {
	return c.classifySide(tc, domain.SideSender, tc.Sender), c.classifySide(tc, domain.SideReceiver, tc.Receiver)
}

func (c *Classifier) classifySide(tc domain.TransactionContext, side domain.Side, id uuid.UUID) domain.AccountClass {
	if ref, ok := tc.SharedOn(side); ok {
		return domain.SharedClass{Ref: ref}
	}
	if c.IsPrivileged(id) {
		return domain.PrivilegedClass{Identity: id}
	}
	return domain.PersonalClass{Owner: id}
}

// MovementRequired 任一方為特權身分時不需要帳本異動
func MovementRequired(sender, receiver domain.AccountClass) bool {
	return !domain.IsPrivileged(sender) && !domain.IsPrivileged(receiver)
}

// Resolve 把分類解析成帳本帳戶 ID，個人帳戶可能因此被建立
func (c *Classifier) Resolve(ctx context.Context, ledger Ledger, class domain.AccountClass) (domain.AccountRef, error) {
	switch v := class.(type) {
	case domain.SharedClass:
		return v.Ref, nil
	case domain.PersonalClass:
		return c.identities.Resolve(ctx, ledger, v.Owner)
	case domain.PrivilegedClass:
		return 0, fmt.Errorf("privileged identity %s has no ledger account: %w", v.Identity, domain.ErrAccountNotFound)
	default:
		return 0, fmt.Errorf("unknown account class %T: %w", class, domain.ErrAccountNotFound)
	}
}
