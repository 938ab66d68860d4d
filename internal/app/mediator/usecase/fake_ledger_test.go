package usecase_test

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-treasury-mediator/internal/app/mediator/domain"
	"github.com/JoeShih716/go-treasury-mediator/internal/app/mediator/usecase"
)

// fakeLedger 記錄每次呼叫的帳本
type fakeLedger struct {
	mu        sync.Mutex
	next      domain.AccountRef
	personal  map[uuid.UUID]domain.AccountRef
	accounts  map[domain.AccountRef]*domain.AccountMetadata
	approvers map[domain.AccountRef][]uuid.UUID
	members   map[domain.AccountRef][]uuid.UUID
	balances  map[domain.AccountRef]decimal.Decimal

	resolveErr  map[uuid.UUID]error
	metadataErr error
	transferErr error

	calls     int
	transfers []domain.TransferInstruction
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		next:       100,
		personal:   make(map[uuid.UUID]domain.AccountRef),
		accounts:   make(map[domain.AccountRef]*domain.AccountMetadata),
		approvers:  make(map[domain.AccountRef][]uuid.UUID),
		members:    make(map[domain.AccountRef][]uuid.UUID),
		balances:   make(map[domain.AccountRef]decimal.Decimal),
		resolveErr: make(map[uuid.UUID]error),
	}
}

func (f *fakeLedger) addShared(ref domain.AccountRef, owner uuid.NullUUID, requiresAuth bool, approvers ...uuid.UUID) {
	f.accounts[ref] = &domain.AccountMetadata{
		ID:                    ref,
		Kind:                  domain.AccountKindShared,
		Owner:                 owner,
		RequiresAuthorization: requiresAuth,
	}
	f.approvers[ref] = approvers
}

func (f *fakeLedger) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeLedger) hit() {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
}

func (f *fakeLedger) GetBalance(_ context.Context, owner uuid.UUID) (decimal.Decimal, error) {
	f.hit()
	ref, ok := f.personal[owner]
	if !ok {
		return decimal.Zero, domain.ErrAccountNotFound
	}
	return f.balances[ref], nil
}

func (f *fakeLedger) HasFunds(_ context.Context, ref domain.AccountRef, amount decimal.Decimal) (bool, error) {
	f.hit()
	return f.balances[ref].GreaterThanOrEqual(amount), nil
}

func (f *fakeLedger) HasAccount(_ context.Context, owner uuid.UUID) (bool, error) {
	f.hit()
	_, ok := f.personal[owner]
	return ok, nil
}

func (f *fakeLedger) HasAccountByID(_ context.Context, ref domain.AccountRef) (bool, error) {
	f.hit()
	_, ok := f.accounts[ref]
	return ok, nil
}

func (f *fakeLedger) GetAccountByOwner(_ context.Context, owner uuid.UUID) (*domain.AccountMetadata, error) {
	f.hit()
	ref, ok := f.personal[owner]
	if !ok {
		return nil, nil
	}
	return f.accounts[ref], nil
}

func (f *fakeLedger) ResolveOrCreatePersonal(_ context.Context, owner uuid.UUID) (*domain.AccountMetadata, error) {
	f.hit()
	if err := f.resolveErr[owner]; err != nil {
		return nil, err
	}
	ref, ok := f.personal[owner]
	if !ok {
		ref = f.next
		f.next++
		f.personal[owner] = ref
		f.accounts[ref] = &domain.AccountMetadata{
			ID:    ref,
			Kind:  domain.AccountKindPersonal,
			Owner: uuid.NullUUID{UUID: owner, Valid: true},
		}
	}
	return f.accounts[ref], nil
}

func (f *fakeLedger) GetAccountByID(_ context.Context, ref domain.AccountRef) (*domain.AccountMetadata, error) {
	f.hit()
	if f.metadataErr != nil {
		return nil, f.metadataErr
	}
	return f.accounts[ref], nil
}

func (f *fakeLedger) GetApprovers(_ context.Context, ref domain.AccountRef) ([]uuid.UUID, error) {
	f.hit()
	return f.approvers[ref], nil
}

func (f *fakeLedger) CanAccess(_ context.Context, who uuid.UUID, ref domain.AccountRef) (bool, error) {
	f.hit()
	if acc, ok := f.accounts[ref]; ok && acc.Owner.Valid && acc.Owner.UUID == who {
		return true, nil
	}
	for _, m := range f.members[ref] {
		if m == who {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLedger) Transfer(_ context.Context, ins *domain.TransferInstruction) error {
	f.hit()
	if f.transferErr != nil {
		return f.transferErr
	}
	f.mu.Lock()
	f.transfers = append(f.transfers, *ins)
	f.mu.Unlock()
	return nil
}

func (f *fakeLedger) FormatAmount(_ context.Context, amount decimal.Decimal) (string, error) {
	f.hit()
	return "$" + amount.StringFixed(2), nil
}

var _ usecase.Ledger = (*fakeLedger)(nil)
