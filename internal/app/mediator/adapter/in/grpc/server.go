package grpc

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/JoeShih716/go-treasury-mediator/internal/app/mediator/adapter/wire"
	"github.com/JoeShih716/go-treasury-mediator/internal/app/mediator/domain"
	"github.com/JoeShih716/go-treasury-mediator/internal/app/mediator/usecase"
)

// ServiceDesc 帳本服務的 gRPC 描述，handler 接收的 srv 為 usecase.Ledger
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: wire.ServiceName,
	HandlerType: (*usecase.Ledger)(nil),
	Methods: []grpc.MethodDesc{
		unary(wire.MethodGetBalance, func(ctx context.Context, l usecase.Ledger, req *wire.OwnerRequest) (*wire.BalanceReply, error) {
			b, err := l.GetBalance(ctx, req.Owner)
			return &wire.BalanceReply{Balance: b}, err
		}),
		unary(wire.MethodHasFunds, func(ctx context.Context, l usecase.Ledger, req *wire.FundsRequest) (*wire.BoolReply, error) {
			ok, err := l.HasFunds(ctx, req.Ref, req.Amount)
			return &wire.BoolReply{Value: ok}, err
		}),
		unary(wire.MethodHasAccount, func(ctx context.Context, l usecase.Ledger, req *wire.OwnerRequest) (*wire.BoolReply, error) {
			ok, err := l.HasAccount(ctx, req.Owner)
			return &wire.BoolReply{Value: ok}, err
		}),
		unary(wire.MethodHasAccountByID, func(ctx context.Context, l usecase.Ledger, req *wire.AccountRequest) (*wire.BoolReply, error) {
			ok, err := l.HasAccountByID(ctx, req.Ref)
			return &wire.BoolReply{Value: ok}, err
		}),
		unary(wire.MethodGetAccountByOwner, func(ctx context.Context, l usecase.Ledger, req *wire.OwnerRequest) (*wire.AccountReply, error) {
			meta, err := l.GetAccountByOwner(ctx, req.Owner)
			return &wire.AccountReply{Account: meta}, err
		}),
		unary(wire.MethodResolveOrCreatePersonal, func(ctx context.Context, l usecase.Ledger, req *wire.OwnerRequest) (*wire.AccountReply, error) {
			meta, err := l.ResolveOrCreatePersonal(ctx, req.Owner)
			return &wire.AccountReply{Account: meta}, err
		}),
		unary(wire.MethodGetAccountByID, func(ctx context.Context, l usecase.Ledger, req *wire.AccountRequest) (*wire.AccountReply, error) {
			meta, err := l.GetAccountByID(ctx, req.Ref)
			return &wire.AccountReply{Account: meta}, err
		}),
		unary(wire.MethodGetApprovers, func(ctx context.Context, l usecase.Ledger, req *wire.AccountRequest) (*wire.ApproversReply, error) {
			approvers, err := l.GetApprovers(ctx, req.Ref)
			return &wire.ApproversReply{Approvers: approvers}, err
		}),
		unary(wire.MethodCanAccess, func(ctx context.Context, l usecase.Ledger, req *wire.AccessRequest) (*wire.BoolReply, error) {
			ok, err := l.CanAccess(ctx, req.Who, req.Ref)
			return &wire.BoolReply{Value: ok}, err
		}),
		unary(wire.MethodTransfer, func(ctx context.Context, l usecase.Ledger, req *wire.TransferRequest) (*wire.TransferReply, error) {
			return &wire.TransferReply{}, l.Transfer(ctx, &req.Instruction)
		}),
		unary(wire.MethodFormatAmount, func(ctx context.Context, l usecase.Ledger, req *wire.AmountRequest) (*wire.FormatReply, error) {
			text, err := l.FormatAmount(ctx, req.Amount)
			return &wire.FormatReply{Text: text}, err
		}),
	},
	Metadata: wire.FileName,
}

// Register 將 ledger 掛到 gRPC server 上
func Register(s grpc.ServiceRegistrar, ledger usecase.Ledger) {
	s.RegisterService(&ServiceDesc, ledger)
}

// unary 把型別化的 handler 包成 grpc.MethodDesc
//
// 請求以 wire 描述的 protobuf 訊息解碼後轉回領域型別，業務錯誤轉成 gRPC status。
func unary[Req any, PReq interface {
	*Req
	wire.Message
}, Resp wire.Message](method string, call func(context.Context, usecase.Ledger, PReq) (Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			req := PReq(new(Req))
			in := wire.Empty(req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if err := wire.Decode(in, req); err != nil {
				return nil, status.Error(codes.InvalidArgument, err.Error())
			}
			run := func(ctx context.Context, r any) (any, error) {
				resp, err := call(ctx, srv.(usecase.Ledger), r.(PReq))
				if err != nil {
					return nil, ToStatus(err)
				}
				return wire.Encode(resp), nil
			}
			if interceptor == nil {
				return run(ctx, req)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: wire.FullMethod(method)}
			return interceptor(ctx, req, info, run)
		},
	}
}

// ToStatus 業務錯誤對應的 gRPC status
//
//	ErrAccountNotFound       -> NotFound
//	ErrAuthorizationRequired -> PermissionDenied
//	ErrInsufficientFunds     -> FailedPrecondition
//	轉帳指令格式錯誤           -> InvalidArgument
//	其他                      -> Internal
func ToStatus(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrAuthorizationRequired):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, domain.ErrInsufficientFunds):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrSameAccount),
		errors.Is(err, domain.ErrInvalidAccountRef),
		errors.Is(err, domain.ErrInvalidToken):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// LoggingInterceptor 以 zap 記錄每次呼叫的方法、耗時與結果代碼
func LoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("code", code.String()),
		}
		switch code {
		case codes.OK, codes.NotFound, codes.PermissionDenied, codes.FailedPrecondition, codes.InvalidArgument:
			logger.Debug("ledger rpc", fields...)
		default:
			logger.Warn("ledger rpc failed", append(fields, zap.Error(err))...)
		}
		return resp, err
	}
}
