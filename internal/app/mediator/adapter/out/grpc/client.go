package grpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/JoeShih716/go-treasury-mediator/internal/app/mediator/adapter/wire"
	"github.com/JoeShih716/go-treasury-mediator/internal/app/mediator/domain"
	"github.com/JoeShih716/go-treasury-mediator/internal/app/mediator/usecase"
	pkggrpc "github.com/JoeShih716/go-treasury-mediator/pkg/grpc"
)

// DefaultTimeout 單次呼叫的預設逾時
const DefaultTimeout = 5 * time.Second

// BreakerConfig 斷路器設定，零值欄位使用 gobreaker 預設
type BreakerConfig struct {
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
}

// Client 透過 gRPC 呼叫遠端帳本服務，實作 usecase.Ledger
type Client struct {
	conn    grpc.ClientConnInterface
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

type ClientOption func(*clientOptions)

type clientOptions struct {
	timeout time.Duration
	breaker BreakerConfig
	logger  *zap.Logger
}

// WithTimeout 設定單次呼叫逾時
func WithTimeout(d time.Duration) ClientOption {
	return func(o *clientOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithBreaker 設定斷路器參數
func WithBreaker(cfg BreakerConfig) ClientOption {
	return func(o *clientOptions) {
		o.breaker = cfg
	}
}

func WithLogger(logger *zap.Logger) ClientOption {
	return func(o *clientOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewClient 建立帳本客戶端
//
// 參數:
//
//	conn: grpc.ClientConnInterface - 通常來自 pkg/grpc.Pool
//	opts: ...ClientOption - 逾時、斷路器與 logger
//
// 回傳值:
//
//	*Client: 帳本客戶端
func NewClient(conn grpc.ClientConnInterface, opts ...ClientOption) *Client {
	o := clientOptions{
		timeout: DefaultTimeout,
		breaker: BreakerConfig{ConsecutiveFailures: 5, Timeout: 30 * time.Second},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Client{conn: conn, timeout: o.timeout, logger: o.logger}
	trip := o.breaker.ConsecutiveFailures
	if trip == 0 {
		trip = 5
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        wire.ServiceName,
		MaxRequests: o.breaker.MaxRequests,
		Interval:    o.breaker.Interval,
		Timeout:     o.breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= trip
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("ledger circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		// 業務拒絕代表帳本正常運作，不計入失敗
		IsSuccessful: func(err error) bool {
			switch status.Code(err) {
			case codes.OK, codes.NotFound, codes.PermissionDenied, codes.FailedPrecondition, codes.InvalidArgument:
				return true
			}
			return false
		},
	})
	return c
}

// invoke 套用逾時與斷路器後呼叫遠端方法，並將 gRPC status 轉回業務錯誤
func (c *Client) invoke(ctx context.Context, method string, req, reply wire.Message) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out := wire.Empty(reply)
	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.conn.Invoke(ctx, wire.FullMethod(method), wire.Encode(req), out, grpc.ForceCodec(pkggrpc.ProtoCodec{}))
	})
	if err != nil {
		return FromStatus(method, err)
	}
	if err := wire.Decode(out, reply); err != nil {
		return fmt.Errorf("%w: ledger %s: %v", domain.ErrTransientFailure, method, err)
	}
	return nil
}

// LoggingInterceptor 以 zap 記錄每次帳本呼叫的方法、耗時與結果代碼，透過 pkg/grpc.WithInterceptor 掛到連線上
func LoggingInterceptor(logger *zap.Logger) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		start := time.Now()
		err := invoker(ctx, method, req, reply, cc, opts...)
		fields := []zap.Field{
			zap.String("method", method),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("code", status.Code(err).String()),
		}
		switch status.Code(err) {
		case codes.OK, codes.NotFound, codes.PermissionDenied, codes.FailedPrecondition, codes.InvalidArgument:
			logger.Debug("ledger call", fields...)
		default:
			logger.Warn("ledger call failed", append(fields, zap.Error(err))...)
		}
		return err
	}
}

// FromStatus 將 gRPC 錯誤轉回 domain 錯誤，無法辨識者一律 wrap ErrTransientFailure
func FromStatus(method string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: ledger %s: %v", domain.ErrTransientFailure, method, err)
	}
	st := status.Convert(err)
	switch st.Code() {
	case codes.NotFound:
		return fmt.Errorf("%w: %s", domain.ErrAccountNotFound, st.Message())
	case codes.PermissionDenied:
		return fmt.Errorf("%w: %s", domain.ErrAuthorizationRequired, st.Message())
	case codes.FailedPrecondition:
		return fmt.Errorf("%w: %s", domain.ErrInsufficientFunds, st.Message())
	default:
		return fmt.Errorf("%w: ledger %s: %s: %s", domain.ErrTransientFailure, method, st.Code(), st.Message())
	}
}

func (c *Client) GetBalance(ctx context.Context, owner uuid.UUID) (decimal.Decimal, error) {
	var reply wire.BalanceReply
	if err := c.invoke(ctx, wire.MethodGetBalance, &wire.OwnerRequest{Owner: owner}, &reply); err != nil {
		return decimal.Zero, err
	}
	return reply.Balance, nil
}

func (c *Client) HasFunds(ctx context.Context, ref domain.AccountRef, amount decimal.Decimal) (bool, error) {
	var reply wire.BoolReply
	err := c.invoke(ctx, wire.MethodHasFunds, &wire.FundsRequest{Ref: ref, Amount: amount}, &reply)
	return reply.Value, err
}

func (c *Client) HasAccount(ctx context.Context, owner uuid.UUID) (bool, error) {
	var reply wire.BoolReply
	err := c.invoke(ctx, wire.MethodHasAccount, &wire.OwnerRequest{Owner: owner}, &reply)
	return reply.Value, err
}

func (c *Client) HasAccountByID(ctx context.Context, ref domain.AccountRef) (bool, error) {
	var reply wire.BoolReply
	err := c.invoke(ctx, wire.MethodHasAccountByID, &wire.AccountRequest{Ref: ref}, &reply)
	return reply.Value, err
}

func (c *Client) GetAccountByOwner(ctx context.Context, owner uuid.UUID) (*domain.AccountMetadata, error) {
	var reply wire.AccountReply
	if err := c.invoke(ctx, wire.MethodGetAccountByOwner, &wire.OwnerRequest{Owner: owner}, &reply); err != nil {
		return nil, err
	}
	return reply.Account, nil
}

func (c *Client) ResolveOrCreatePersonal(ctx context.Context, owner uuid.UUID) (*domain.AccountMetadata, error) {
	var reply wire.AccountReply
	if err := c.invoke(ctx, wire.MethodResolveOrCreatePersonal, &wire.OwnerRequest{Owner: owner}, &reply); err != nil {
		return nil, err
	}
	if reply.Account == nil {
		return nil, fmt.Errorf("%w: ledger returned no account for %s", domain.ErrAccountNotFound, owner)
	}
	return reply.Account, nil
}

func (c *Client) GetAccountByID(ctx context.Context, ref domain.AccountRef) (*domain.AccountMetadata, error) {
	var reply wire.AccountReply
	if err := c.invoke(ctx, wire.MethodGetAccountByID, &wire.AccountRequest{Ref: ref}, &reply); err != nil {
		return nil, err
	}
	return reply.Account, nil
}

func (c *Client) GetApprovers(ctx context.Context, ref domain.AccountRef) ([]uuid.UUID, error) {
	var reply wire.ApproversReply
	if err := c.invoke(ctx, wire.MethodGetApprovers, &wire.AccountRequest{Ref: ref}, &reply); err != nil {
		return nil, err
	}
	return reply.Approvers, nil
}

func (c *Client) CanAccess(ctx context.Context, who uuid.UUID, ref domain.AccountRef) (bool, error) {
	var reply wire.BoolReply
	err := c.invoke(ctx, wire.MethodCanAccess, &wire.AccessRequest{Who: who, Ref: ref}, &reply)
	return reply.Value, err
}

func (c *Client) Transfer(ctx context.Context, ins *domain.TransferInstruction) error {
	return c.invoke(ctx, wire.MethodTransfer, &wire.TransferRequest{Instruction: *ins}, &wire.TransferReply{})
}

func (c *Client) FormatAmount(ctx context.Context, amount decimal.Decimal) (string, error) {
	var reply wire.FormatReply
	if err := c.invoke(ctx, wire.MethodFormatAmount, &wire.AmountRequest{Amount: amount}, &reply); err != nil {
		return "", err
	}
	return reply.Text, nil
}

var _ usecase.Ledger = (*Client)(nil)
