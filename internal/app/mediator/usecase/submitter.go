package usecase

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/JoeShih716/go-treasury-mediator/internal/app/mediator/domain"
)

// OutcomeOf 把帳本回傳的錯誤轉成調解結果，nil 代表轉帳成功
func OutcomeOf(err error) domain.Outcome {
	switch {
	case err == nil:
		return domain.OutcomeHandledMoved
	case errors.Is(err, domain.ErrAuthorizationRequired):
		return domain.OutcomeAuthorizationRequired
	case errors.Is(err, domain.ErrInsufficientFunds):
		return domain.OutcomeInsufficientFunds
	case errors.Is(err, domain.ErrAccountNotFound):
		return domain.OutcomeAccountNotFound
	default:
		return domain.OutcomeTransientFailure
	}
}

// Submitter 送出轉帳指令，不做重試
type Submitter struct {
	logger *zap.Logger
}

func NewSubmitter(logger *zap.Logger) *Submitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Submitter{logger: logger}
}

// Submit 送出轉帳，失敗時由呼叫端 (host) 決定後續處理
func (s *Submitter) Submit(ctx context.Context, ledger Ledger, ins *domain.TransferInstruction) domain.Outcome {
	fields := []zap.Field{
		zap.Stringer("source", ins.Source),
		zap.Stringer("destination", ins.Destination),
		zap.Stringer("amount", ins.Amount),
		zap.Stringer("token", ins.Token),
	}

	if err := ins.Validate(); err != nil {
		s.logger.Warn("malformed transfer instruction", append(fields, zap.Error(err))...)
		return domain.OutcomeTransientFailure
	}

	err := ledger.Transfer(ctx, ins)
	outcome := OutcomeOf(err)
	if err != nil {
		s.logger.Warn("ledger rejected transfer", append(fields, zap.Stringer("outcome", outcome), zap.Error(err))...)
		return outcome
	}
	s.logger.Debug("transfer applied", fields...)
	return outcome
}
