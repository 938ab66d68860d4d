package usecase

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/JoeShih716/go-treasury-mediator/internal/app/mediator/domain"
)

// Approval 共用帳戶的授權結果
type Approval struct {
	// Required: 共用帳戶是否要求授權
	Required bool
	// Approver: 要記錄在轉帳上的授權人
	Approver uuid.NullUUID
}

// Satisfied 不需要授權，或已找到授權人
func (a Approval) Satisfied() bool {
	return !a.Required || a.Approver.Valid
}

func (a Approval) String() string {
	if !a.Approver.Valid {
		return fmt.Sprintf("approval(required=%t)", a.Required)
	}
	return fmt.Sprintf("approval(required=%t, approver=%s)", a.Required, a.Approver.UUID)
}

// AuthorizationResolver 決定共用帳戶轉帳要記錄哪位授權人，只讀不寫
type AuthorizationResolver struct{}

func NewAuthorizationResolver() *AuthorizationResolver {
	return &AuthorizationResolver{}
}

// ResolveApprover 查詢交易附帶的共用帳戶是否需要授權，以及授權人是誰
//
// 發起交易的玩家本身在授權人清單中時記錄該玩家；否則若帳戶擁有者在清單中，
// 以擁有者作為授權人 (例如擁有者不在線上時的自動商店交易)。兩者皆否時
// 回傳 Required = true 且沒有 Approver，呼叫端必須拒絕送出轉帳。
func (r *AuthorizationResolver) ResolveApprover(ctx context.Context, ledger Ledger, tc domain.TransactionContext) (Approval, error) {
	if tc.SharedAccount == nil || !tc.SharedAccount.Ref.Valid() {
		return Approval{}, nil
	}
	ref := tc.SharedAccount.Ref

	account, err := ledger.GetAccountByID(ctx, ref)
	if err != nil {
		return Approval{}, fmt.Errorf("get shared account %s: %w", ref, err)
	}
	if account == nil || !account.RequiresAuthorization {
		return Approval{}, nil
	}

	approvers, err := ledger.GetApprovers(ctx, ref)
	if err != nil {
		return Approval{}, fmt.Errorf("get approvers of %s: %w", ref, err)
	}

	if slices.Contains(approvers, tc.Initiator) {
		return Approval{Required: true, Approver: uuid.NullUUID{UUID: tc.Initiator, Valid: true}}, nil
	}
	if account.Owner.Valid && slices.Contains(approvers, account.Owner.UUID) {
		return Approval{Required: true, Approver: account.Owner}, nil
	}
	return Approval{Required: true}, nil
}
