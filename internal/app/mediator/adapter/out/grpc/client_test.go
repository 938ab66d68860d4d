package grpc_test

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	ggrpc "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	ingrpc "github.com/JoeShih716/go-treasury-mediator/internal/app/mediator/adapter/in/grpc"
	ledgerclient "github.com/JoeShih716/go-treasury-mediator/internal/app/mediator/adapter/out/grpc"
	"github.com/JoeShih716/go-treasury-mediator/internal/app/mediator/adapter/out/memory"
	"github.com/JoeShih716/go-treasury-mediator/internal/app/mediator/adapter/wire"
	"github.com/JoeShih716/go-treasury-mediator/internal/app/mediator/domain"
	"github.com/JoeShih716/go-treasury-mediator/internal/app/mediator/usecase"
	pkggrpc "github.com/JoeShih716/go-treasury-mediator/pkg/grpc"
)

// dial 以 bufconn 啟動帳本服務並回傳連到它的連線
func dial(t *testing.T, ledger usecase.Ledger, poolOpts ...pkggrpc.PoolOption) *ggrpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := ggrpc.NewServer(ggrpc.ForceServerCodec(pkggrpc.ProtoCodec{}))
	ingrpc.Register(srv, ledger)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	poolOpts = append(poolOpts, pkggrpc.WithDialOptions(
		ggrpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	))
	pool := pkggrpc.NewPool(poolOpts...)
	t.Cleanup(func() { _ = pool.Close() })
	conn, err := pool.GetConnection("passthrough:///bufnet")
	require.NoError(t, err)
	return conn
}

// serve 以 bufconn 啟動帳本服務並回傳連到它的客戶端
func serve(t *testing.T, ledger usecase.Ledger, opts ...ledgerclient.ClientOption) *ledgerclient.Client {
	t.Helper()
	return ledgerclient.NewClient(dial(t, ledger), opts...)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestClientRoundTrip(t *testing.T) {
	ctx := context.Background()
	backend, err := memory.NewLedger(nil, nil)
	require.NoError(t, err)
	client := serve(t, backend)

	alice, bob := uuid.New(), uuid.New()
	a, err := client.ResolveOrCreatePersonal(ctx, alice)
	require.NoError(t, err)
	b, err := client.ResolveOrCreatePersonal(ctx, bob)
	require.NoError(t, err)
	require.NoError(t, backend.Deposit(ctx, a.ID, dec("40")))

	has, err := client.HasAccount(ctx, alice)
	require.NoError(t, err)
	assert.True(t, has)

	ok, err := client.HasFunds(ctx, a.ID, dec("40"))
	require.NoError(t, err)
	assert.True(t, ok)

	err = client.Transfer(ctx, &domain.TransferInstruction{
		Source: a.ID, Destination: b.ID, Amount: dec("12.25"), Initiator: alice,
		Memo: "ChestShop transaction", Origin: "ChestShop", Token: domain.IdempotencyToken{7},
	})
	require.NoError(t, err)

	balance, err := client.GetBalance(ctx, bob)
	require.NoError(t, err)
	assert.True(t, dec("12.25").Equal(balance))

	meta, err := client.GetAccountByOwner(ctx, bob)
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, b.ID, meta.ID)

	missing, err := client.GetAccountByID(ctx, 9999)
	require.NoError(t, err)
	assert.Nil(t, missing)

	text, err := client.FormatAmount(ctx, dec("1234.5"))
	require.NoError(t, err)
	assert.Equal(t, "$1,234.50", text)
}

func TestClientMapsBusinessErrors(t *testing.T) {
	ctx := context.Background()
	backend, err := memory.NewLedger(nil, nil)
	require.NoError(t, err)
	client := serve(t, backend)

	owner, approver := uuid.New(), uuid.New()
	p, err := client.ResolveOrCreatePersonal(ctx, owner)
	require.NoError(t, err)
	shop, err := backend.OpenShared(ctx, "Vault", uuid.NullUUID{UUID: owner, Valid: true}, true, []uuid.UUID{approver}, nil)
	require.NoError(t, err)
	require.NoError(t, backend.Deposit(ctx, shop, dec("5")))

	approvers, err := client.GetApprovers(ctx, shop)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{approver}, approvers)

	err = client.Transfer(ctx, &domain.TransferInstruction{Source: p.ID, Destination: shop, Amount: dec("1"), Token: domain.IdempotencyToken{1}})
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	err = client.Transfer(ctx, &domain.TransferInstruction{Source: shop, Destination: p.ID, Amount: dec("1"), Token: domain.IdempotencyToken{2}})
	assert.ErrorIs(t, err, domain.ErrAuthorizationRequired)

	err = client.Transfer(ctx, &domain.TransferInstruction{Source: shop, Destination: 4242, Amount: dec("1"), Token: domain.IdempotencyToken{3}})
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	_, err = client.GetBalance(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	// 格式錯誤的指令在伺服端被拒絕，客戶端視為暫時性失敗
	err = client.Transfer(ctx, &domain.TransferInstruction{Source: shop, Destination: shop, Amount: dec("1"), Token: domain.IdempotencyToken{4}})
	assert.ErrorIs(t, err, domain.ErrTransientFailure)
}

// brokenLedger 所有查詢都回傳非業務錯誤
type brokenLedger struct {
	usecase.Ledger
	calls atomic.Int32
}

func (b *brokenLedger) GetBalance(context.Context, uuid.UUID) (decimal.Decimal, error) {
	b.calls.Add(1)
	return decimal.Zero, errors.New("storage unavailable")
}

func (b *brokenLedger) HasAccount(context.Context, uuid.UUID) (bool, error) {
	b.calls.Add(1)
	return false, domain.ErrAccountNotFound
}

func TestClientBreakerOpensOnInfrastructureFailures(t *testing.T) {
	ctx := context.Background()
	backend := &brokenLedger{}
	client := serve(t, backend, ledgerclient.WithBreaker(ledgerclient.BreakerConfig{ConsecutiveFailures: 2}))

	for i := 0; i < 2; i++ {
		_, err := client.GetBalance(ctx, uuid.New())
		assert.ErrorIs(t, err, domain.ErrTransientFailure)
	}
	require.EqualValues(t, 2, backend.calls.Load())

	_, err := client.GetBalance(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrTransientFailure)
	assert.EqualValues(t, 2, backend.calls.Load(), "open breaker must not reach the ledger")
}

func TestClientBusinessErrorsDoNotTripBreaker(t *testing.T) {
	ctx := context.Background()
	backend := &brokenLedger{}
	client := serve(t, backend, ledgerclient.WithBreaker(ledgerclient.BreakerConfig{ConsecutiveFailures: 2}))

	for i := 0; i < 5; i++ {
		_, err := client.HasAccount(ctx, uuid.New())
		assert.ErrorIs(t, err, domain.ErrAccountNotFound)
	}
	assert.EqualValues(t, 5, backend.calls.Load())
}

func TestMediateOverGRPC(t *testing.T) {
	ctx := context.Background()
	backend, err := memory.NewLedger(nil, nil)
	require.NoError(t, err)
	client := serve(t, backend)

	buyer, seller := uuid.New(), uuid.New()
	b, err := backend.ResolveOrCreatePersonal(ctx, buyer)
	require.NoError(t, err)
	require.NoError(t, backend.Deposit(ctx, b.ID, dec("100")))

	identities := usecase.NewIdentityResolver(nil)
	m := usecase.NewMediator(
		usecase.NewLedgerHandle(client),
		usecase.NewClassifier(identities),
		usecase.NewAuthorizationResolver(),
		usecase.NewKeyBuilder(""),
		usecase.NewSubmitter(nil),
	)

	outcome := m.Mediate(ctx, domain.TransactionContext{
		Sender: buyer, Receiver: seller, Amount: dec("30"), Initiator: buyer, ContextTag: "world:1:2:3",
	})
	require.Equal(t, domain.OutcomeHandledMoved, outcome)

	balance, err := backend.GetBalance(ctx, seller)
	require.NoError(t, err)
	assert.True(t, dec("30").Equal(balance))

	outcome = m.Mediate(ctx, domain.TransactionContext{
		Sender: seller, Receiver: buyer, Amount: dec("31"), Initiator: seller, ContextTag: "world:1:2:3",
	})
	assert.Equal(t, domain.OutcomeInsufficientFunds, outcome)
}

func TestClientRoundTripsSharedAccount(t *testing.T) {
	ctx := context.Background()
	backend, err := memory.NewLedger(nil, nil)
	require.NoError(t, err)
	client := serve(t, backend)

	owner, approver := uuid.New(), uuid.New()
	p, err := client.ResolveOrCreatePersonal(ctx, approver)
	require.NoError(t, err)
	shop, err := backend.OpenShared(ctx, "Vault", uuid.NullUUID{UUID: owner, Valid: true}, true, []uuid.UUID{approver}, nil)
	require.NoError(t, err)
	require.NoError(t, backend.Deposit(ctx, shop, dec("9.75")))

	meta, err := client.GetAccountByID(ctx, shop)
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, domain.AccountKindShared, meta.Kind)
	assert.Equal(t, "Vault", meta.Name)
	assert.True(t, meta.RequiresAuthorization)
	assert.Equal(t, uuid.NullUUID{UUID: owner, Valid: true}, meta.Owner)

	// approver 與 token 都要原樣送到帳本
	err = client.Transfer(ctx, &domain.TransferInstruction{
		Source: shop, Destination: p.ID, Amount: dec("9.75"), Initiator: approver,
		Approver: uuid.NullUUID{UUID: approver, Valid: true}, Token: domain.IdempotencyToken{0xab, 0xcd},
	})
	require.NoError(t, err)
	ok, err := client.HasFunds(ctx, p.ID, dec("9.75"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.HasFunds(ctx, shop, dec("0.01"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestServerRejectsMalformedRequest(t *testing.T) {
	backend, err := memory.NewLedger(nil, nil)
	require.NoError(t, err)
	conn := dial(t, backend)

	req := dynamicpb.NewMessage(wire.Descriptor(&wire.OwnerRequest{}))
	req.Set(req.Descriptor().Fields().ByName("owner"), protoreflect.ValueOfString("not-a-uuid"))
	reply := wire.Empty(&wire.BalanceReply{})

	err = conn.Invoke(context.Background(), wire.FullMethod(wire.MethodGetBalance), req, reply,
		ggrpc.ForceCodec(pkggrpc.ProtoCodec{}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestLoggingInterceptorThroughPool(t *testing.T) {
	ctx := context.Background()
	backend, err := memory.NewLedger(nil, nil)
	require.NoError(t, err)

	core, logs := observer.New(zapcore.DebugLevel)
	conn := dial(t, backend, pkggrpc.WithInterceptor(ledgerclient.LoggingInterceptor(zap.New(core))))
	client := ledgerclient.NewClient(conn)

	_, err = client.HasAccount(ctx, uuid.New())
	require.NoError(t, err)
	_, err = client.GetBalance(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	entries := logs.FilterMessage("ledger call").All()
	require.Len(t, entries, 2)
	assert.Equal(t, wire.FullMethod(wire.MethodHasAccount), entries[0].ContextMap()["method"])
	assert.Equal(t, codes.OK.String(), entries[0].ContextMap()["code"])
	assert.Equal(t, codes.NotFound.String(), entries[1].ContextMap()["code"])
	assert.Zero(t, logs.FilterMessage("ledger call failed").Len())
}
