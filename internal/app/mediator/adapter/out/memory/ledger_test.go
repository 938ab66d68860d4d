package memory

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoeShih716/go-treasury-mediator/internal/app/mediator/domain"
	"github.com/JoeShih716/go-treasury-mediator/pkg/wal"
)

func token(b byte) domain.IdempotencyToken {
	return domain.IdempotencyToken{b}
}

func newLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := NewLedger(nil, nil)
	require.NoError(t, err)
	return l
}

func TestLedgerTransferIsIdempotent(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	alice, bob := uuid.New(), uuid.New()

	a, err := l.ResolveOrCreatePersonal(ctx, alice)
	require.NoError(t, err)
	b, err := l.ResolveOrCreatePersonal(ctx, bob)
	require.NoError(t, err)
	require.NoError(t, l.Deposit(ctx, a.ID, decimal.NewFromInt(20)))

	ins := &domain.TransferInstruction{
		Source:      a.ID,
		Destination: b.ID,
		Amount:      decimal.RequireFromString("7.5"),
		Initiator:   alice,
		Token:       token(1),
	}
	require.NoError(t, l.Transfer(ctx, ins))
	require.NoError(t, l.Transfer(ctx, ins))

	balance, err := l.GetBalance(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, "12.5", balance.String())
	balance, err = l.GetBalance(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, "7.5", balance.String())
}

func TestLedgerTransferFaults(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	owner, approver, stranger := uuid.New(), uuid.New(), uuid.New()

	p, err := l.ResolveOrCreatePersonal(ctx, stranger)
	require.NoError(t, err)
	shop, err := l.OpenShared(ctx, "Guild Bank", uuid.NullUUID{UUID: owner, Valid: true}, true, []uuid.UUID{approver}, nil)
	require.NoError(t, err)
	require.NoError(t, l.Deposit(ctx, shop, decimal.NewFromInt(100)))

	err = l.Transfer(ctx, &domain.TransferInstruction{Source: p.ID, Destination: shop, Amount: decimal.NewFromInt(1), Token: token(1)})
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	err = l.Transfer(ctx, &domain.TransferInstruction{Source: shop, Destination: p.ID, Amount: decimal.NewFromInt(1), Token: token(2)})
	assert.ErrorIs(t, err, domain.ErrAuthorizationRequired)

	err = l.Transfer(ctx, &domain.TransferInstruction{
		Source: shop, Destination: p.ID, Amount: decimal.NewFromInt(1), Token: token(3),
		Approver: uuid.NullUUID{UUID: approver, Valid: true},
	})
	assert.NoError(t, err)

	err = l.Transfer(ctx, &domain.TransferInstruction{Source: shop, Destination: 999, Amount: decimal.NewFromInt(1), Token: token(4)})
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	err = l.Transfer(ctx, &domain.TransferInstruction{Source: shop, Destination: shop, Amount: decimal.NewFromInt(1), Token: token(5)})
	assert.ErrorIs(t, err, domain.ErrSameAccount)
}

func TestLedgerSharedAccountQueries(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	owner, approver, member, stranger := uuid.New(), uuid.New(), uuid.New(), uuid.New()

	shop, err := l.OpenShared(ctx, "Market", uuid.NullUUID{UUID: owner, Valid: true}, true,
		[]uuid.UUID{approver, owner}, []uuid.UUID{member})
	require.NoError(t, err)

	meta, err := l.GetAccountByID(ctx, shop)
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, domain.AccountKindShared, meta.Kind)
	assert.True(t, meta.RequiresAuthorization)
	assert.Equal(t, "Market", meta.Name)

	approvers, err := l.GetApprovers(ctx, shop)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{approver, owner}, approvers)

	for _, who := range []uuid.UUID{owner, approver, member} {
		ok, err := l.CanAccess(ctx, who, shop)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := l.CanAccess(ctx, stranger, shop)
	require.NoError(t, err)
	assert.False(t, ok)

	missing, err := l.GetAccountByID(ctx, 12345)
	require.NoError(t, err)
	assert.Nil(t, missing)

	has, err := l.HasAccount(ctx, owner)
	require.NoError(t, err)
	assert.False(t, has, "shared accounts are not personal accounts")
}

func TestLedgerResolveOrCreatePersonalConcurrent(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	player := uuid.New()

	var wg sync.WaitGroup
	refs := make([]domain.AccountRef, 32)
	for i := range refs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			meta, err := l.ResolveOrCreatePersonal(ctx, player)
			if err == nil {
				refs[i] = meta.ID
			}
		}(i)
	}
	wg.Wait()

	for _, ref := range refs {
		assert.Equal(t, refs[0], ref)
	}
}

func TestLedgerRecoversFromWAL(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.wal")
	alice, bob := uuid.New(), uuid.New()

	w, err := wal.NewWAL(path)
	require.NoError(t, err)
	l, err := NewLedger(w, nil)
	require.NoError(t, err)

	a, err := l.ResolveOrCreatePersonal(ctx, alice)
	require.NoError(t, err)
	b, err := l.ResolveOrCreatePersonal(ctx, bob)
	require.NoError(t, err)
	require.NoError(t, l.Deposit(ctx, a.ID, decimal.NewFromInt(50)))
	ins := &domain.TransferInstruction{Source: a.ID, Destination: b.ID, Amount: decimal.NewFromInt(20), Token: token(9)}
	require.NoError(t, l.Transfer(ctx, ins))
	require.NoError(t, w.Close())

	w, err = wal.NewWAL(path)
	require.NoError(t, err)
	defer w.Close()
	recovered, err := NewLedger(w, nil)
	require.NoError(t, err)

	balance, err := recovered.GetBalance(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, "30", balance.String())
	balance, err = recovered.GetBalance(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, "20", balance.String())

	// 重放後 token 仍視為已處理
	require.NoError(t, recovered.Transfer(ctx, ins))
	balance, err = recovered.GetBalance(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, "20", balance.String())

	// 新帳戶 ID 不會與重放的帳戶重複
	c, err := recovered.ResolveOrCreatePersonal(ctx, uuid.New())
	require.NoError(t, err)
	assert.Greater(t, c.ID, b.ID)
}

func TestLedgerFormatAmount(t *testing.T) {
	s, err := newLedger(t).FormatAmount(context.Background(), decimal.RequireFromString("1500.5"))
	require.NoError(t, err)
	assert.Equal(t, "$1,500.50", s)
}

func TestPresence(t *testing.T) {
	p := NewPresence()
	id := uuid.New()
	p.Join("Notch", id)

	got, ok, err := p.LookupName(context.Background(), "notch")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, id, got)

	p.Leave("NOTCH")
	_, ok, err = p.LookupName(context.Background(), "Notch")
	require.NoError(t, err)
	assert.False(t, ok)
}
