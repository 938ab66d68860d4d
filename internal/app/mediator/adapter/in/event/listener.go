package event

import (
	"context"
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"github.com/JoeShih716/go-treasury-mediator/internal/app/mediator/domain"
	"github.com/JoeShih716/go-treasury-mediator/internal/app/mediator/usecase"
)

// colorCodes 聊天顏色碼，例如 "§a"
var colorCodes = regexp.MustCompile(`(?i)§[0-9A-FK-ORX]`)

// StripColors 移除字串中的顏色碼
func StripColors(s string) string {
	return colorCodes.ReplaceAllString(s, "")
}

// Listener 接收 host 事件並交給 Mediator 與 Economy
type Listener struct {
	mediator    *usecase.Mediator
	economy     *usecase.Economy
	stripColors bool
	logger      *zap.Logger
}

type ListenerOption func(*Listener)

// WithStripColors 格式化金額時移除顏色碼
func WithStripColors(strip bool) ListenerOption {
	return func(l *Listener) {
		l.stripColors = strip
	}
}

func WithLogger(logger *zap.Logger) ListenerOption {
	return func(l *Listener) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func NewListener(mediator *usecase.Mediator, economy *usecase.Economy, opts ...ListenerOption) *Listener {
	l := &Listener{
		mediator: mediator,
		economy:  economy,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ready 帳本尚未註冊時不處理任何事件
func (l *Listener) ready() bool {
	if err := l.mediator.Ready(); err != nil {
		l.logger.Error("ledger provider is not available", zap.Error(err))
		return false
	}
	return true
}

// Dispatch 依事件型別分派，未知型別回傳錯誤
func (l *Listener) Dispatch(ctx context.Context, ev any) error {
	switch e := ev.(type) {
	case *TransferEvent:
		l.OnTransfer(ctx, e)
	case *AmountEvent:
		l.OnAmount(ctx, e)
	case *CheckEvent:
		l.OnCheck(ctx, e)
	case *AccountCheckEvent:
		l.OnAccountCheck(ctx, e)
	case *FormatEvent:
		l.OnFormat(ctx, e)
	case *AddEvent:
		l.OnAdd(ctx, e)
	case *SubtractEvent:
		l.OnSubtract(ctx, e)
	case *HoldEvent:
		l.OnHold(ctx, e)
	default:
		return fmt.Errorf("unsupported event %T", ev)
	}
	return nil
}

// OnTransfer 已處理、已取消或沒有交易的事件不會觸碰帳本
//
// 帳本尚未就緒時回報暫時性失敗，事件維持未處理。
func (l *Listener) OnTransfer(ctx context.Context, ev *TransferEvent) {
	if ev.Handled || ev.Transaction == nil || ev.Cancelled {
		return
	}
	if !l.ready() {
		ev.Outcome = domain.OutcomeTransientFailure
		ev.Message = Message(ev.Outcome)
		return
	}
	outcome := l.mediator.Mediate(ctx, *ev.Transaction)
	ev.Outcome = outcome
	ev.Handled = outcome.Handled()
	ev.Message = Message(outcome)
}

func (l *Listener) OnAmount(ctx context.Context, ev *AmountEvent) {
	if !l.ready() || ev.Handled || !ev.Amount.IsZero() {
		return
	}
	balance, err := l.economy.Balance(ctx, ev.Account)
	if err != nil {
		l.logger.Warn("could not get balance", zap.Stringer("account", ev.Account), zap.Error(err))
		return
	}
	ev.Amount = balance
	ev.Handled = true
}

func (l *Listener) OnCheck(ctx context.Context, ev *CheckEvent) {
	if !l.ready() || ev.Handled || ev.HasEnough {
		return
	}
	ok, err := l.economy.HasFunds(ctx, ev.Account, ev.Amount)
	if err != nil {
		l.logger.Warn("could not check funds", zap.Stringer("account", ev.Account), zap.Error(err))
		return
	}
	ev.HasEnough = ok
	ev.Handled = true
}

func (l *Listener) OnAccountCheck(ctx context.Context, ev *AccountCheckEvent) {
	if !l.ready() || ev.Handled || ev.HasAccount {
		return
	}
	ok, err := l.economy.HasAccount(ctx, ev.Account)
	if err != nil {
		l.logger.Warn("could not check account", zap.Stringer("account", ev.Account), zap.Error(err))
		return
	}
	ev.HasAccount = ok
	ev.Handled = true
}

func (l *Listener) OnFormat(ctx context.Context, ev *FormatEvent) {
	if !l.ready() || ev.Handled || ev.Formatted != "" {
		return
	}
	text, err := l.economy.Format(ctx, ev.Amount)
	if err != nil {
		l.logger.Warn("could not format amount", zap.Stringer("amount", ev.Amount), zap.Error(err))
		return
	}
	if l.stripColors {
		text = StripColors(text)
	}
	ev.Formatted = text
	ev.Handled = true
}

func (l *Listener) OnAdd(ctx context.Context, ev *AddEvent) {
	if !l.ready() || ev.Handled {
		return
	}
	ev.Outcome = l.economy.Add(ctx, ev.Target, ev.Amount)
	ev.Handled = ev.Outcome.Handled()
}

func (l *Listener) OnSubtract(ctx context.Context, ev *SubtractEvent) {
	if !l.ready() || ev.Handled {
		return
	}
	ev.Outcome = l.economy.Subtract(ctx, ev.Target, ev.Amount)
	ev.Handled = ev.Outcome.Handled()
}

func (l *Listener) OnHold(ctx context.Context, ev *HoldEvent) {
	if !l.ready() || ev.Handled || !ev.Account.Valid || ev.CanHold {
		return
	}
	ev.CanHold = l.economy.CanHold(ctx, ev.Account.UUID, ev.Amount)
	ev.Handled = true
}
