package usecase_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoeShih716/go-treasury-mediator/internal/app/mediator/domain"
	"github.com/JoeShih716/go-treasury-mediator/internal/app/mediator/usecase"
)

var server = uuid.MustParse("00000000-0000-0000-0000-000000005e4e")

func newTestEconomy(ledger usecase.Ledger, serverAccount uuid.NullUUID) *usecase.Economy {
	return usecase.NewEconomy(
		usecase.NewLedgerHandle(ledger),
		usecase.NewIdentityResolver(nil),
		usecase.NewKeyBuilder(""),
		usecase.NewSubmitter(nil),
		serverAccount,
		"",
		nil,
	)
}

func TestEconomyAddAndSubtract(t *testing.T) {
	ledger := newFakeLedger()
	e := newTestEconomy(ledger, uuid.NullUUID{UUID: server, Valid: true})

	require.Equal(t, domain.OutcomeHandledMoved, e.Add(context.Background(), alice, amount("5")))
	require.Equal(t, domain.OutcomeHandledMoved, e.Subtract(context.Background(), alice, amount("2")))

	require.Len(t, ledger.transfers, 2)
	add, sub := ledger.transfers[0], ledger.transfers[1]
	assert.Equal(t, ledger.personal[server], add.Source)
	assert.Equal(t, ledger.personal[alice], add.Destination)
	assert.Equal(t, "ChestShop currency add", add.Memo)
	assert.Equal(t, ledger.personal[alice], sub.Source)
	assert.Equal(t, ledger.personal[server], sub.Destination)
	assert.Equal(t, "ChestShop currency subtract", sub.Memo)
	assert.NotEqual(t, add.Token, sub.Token)
}

func TestEconomyAddWithoutServerAccount(t *testing.T) {
	ledger := newFakeLedger()
	e := newTestEconomy(ledger, uuid.NullUUID{})

	assert.Equal(t, domain.OutcomeHandledNoOp, e.Add(context.Background(), alice, amount("5")))
	assert.Empty(t, ledger.transfers)
	_, created := ledger.personal[alice]
	assert.True(t, created, "target account is still provisioned")
}

func TestEconomySubtractInsufficientFunds(t *testing.T) {
	ledger := newFakeLedger()
	ledger.transferErr = domain.ErrInsufficientFunds
	e := newTestEconomy(ledger, uuid.NullUUID{UUID: server, Valid: true})

	assert.Equal(t, domain.OutcomeInsufficientFunds, e.Subtract(context.Background(), alice, amount("5")))
}

func TestEconomyQueries(t *testing.T) {
	ledger := newFakeLedger()
	e := newTestEconomy(ledger, uuid.NullUUID{})
	ctx := context.Background()

	ok, err := e.HasFunds(ctx, alice, amount("1"))
	require.NoError(t, err)
	assert.False(t, ok, "no account means no funds")

	has, err := e.HasAccount(ctx, alice)
	require.NoError(t, err)
	assert.False(t, has)

	acc, err := ledger.ResolveOrCreatePersonal(ctx, alice)
	require.NoError(t, err)
	ledger.balances[acc.ID] = amount("12.5")

	balance, err := e.Balance(ctx, alice)
	require.NoError(t, err)
	assert.True(t, amount("12.5").Equal(balance))

	ok, err = e.HasFunds(ctx, alice, amount("12.5"))
	require.NoError(t, err)
	assert.True(t, ok)

	formatted, err := e.Format(ctx, amount("3"))
	require.NoError(t, err)
	assert.Equal(t, "$3.00", formatted)

	assert.True(t, e.CanHold(ctx, alice, amount("1000000")))
}

func TestEconomyWithoutLedger(t *testing.T) {
	e := newTestEconomy(nil, uuid.NullUUID{})

	_, err := e.Balance(context.Background(), alice)
	assert.ErrorIs(t, err, domain.ErrConfigurationMissing)
	assert.Equal(t, domain.OutcomeTransientFailure, e.Add(context.Background(), alice, amount("1")))
}

func TestShopBinderBindShared(t *testing.T) {
	const shop domain.AccountRef = 12
	ledger := newFakeLedger()
	ledger.addShared(shop, uuid.NullUUID{UUID: bob, Valid: true}, true, bob)
	ledger.members[shop] = []uuid.UUID{carol}
	ledger.addShared(13, uuid.NullUUID{}, false)
	ledger.members[13] = []uuid.UUID{carol}
	b := usecase.NewShopBinder(usecase.NewLedgerHandle(ledger), usecase.NewIdentityResolver(nil))
	ctx := context.Background()

	binding, err := b.BindShared(ctx, carol, shop)
	require.NoError(t, err)
	assert.Equal(t, bob, binding.Owner)
	require.NotNil(t, binding.SharedAccount)
	assert.Equal(t, shop, *binding.SharedAccount)

	_, err = b.BindShared(ctx, alice, shop)
	assert.ErrorIs(t, err, domain.ErrAuthorizationRequired)

	_, err = b.BindShared(ctx, carol, 99)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	_, err = b.BindShared(ctx, carol, 13)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound, "ownerless account")
}

func TestShopBinderBindPersonal(t *testing.T) {
	b := usecase.NewShopBinder(usecase.NewLedgerHandle(nil), usecase.NewIdentityResolver(nil, mapSource{"Bob": bob}))

	binding, err := b.BindPersonal(context.Background(), alice, "")
	require.NoError(t, err)
	assert.Equal(t, alice, binding.Owner)
	assert.Nil(t, binding.SharedAccount)

	binding, err = b.BindPersonal(context.Background(), alice, "Bob")
	require.NoError(t, err)
	assert.Equal(t, bob, binding.Owner)

	_, err = b.BindPersonal(context.Background(), alice, "Ghost")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}
