package usecase

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-treasury-mediator/internal/app/mediator/domain"
)

const (
	// DefaultMemo 轉帳備註預設值
	DefaultMemo = "ChestShop transaction"
	// DefaultOrigin 轉帳來源預設值
	DefaultOrigin = "ChestShop"

	tracerName = "github.com/JoeShih716/go-treasury-mediator/mediator"
)

// Mediator 單筆交易的調解入口
//
// 流程: 分類 → (特權則 NoOp) → 解析帳戶 → 授權 → 冪等 key → 送出。
// Mediator 本身不保存跨呼叫的狀態，可被多個 goroutine 同時使用。
type Mediator struct {
	handle     *LedgerHandle
	classifier *Classifier
	authorizer *AuthorizationResolver
	keys       *KeyBuilder
	submitter  *Submitter
	memo       string
	origin     string
	logger     *zap.Logger
	tracer     trace.Tracer
}

// MediatorOption 定義了 Mediator 的配置選項函數
type MediatorOption func(*Mediator)

// WithMemo 設定預設的轉帳備註
func WithMemo(memo string) MediatorOption {
	return func(m *Mediator) {
		if memo != "" {
			m.memo = memo
		}
	}
}

// WithOrigin 設定轉帳來源標記
func WithOrigin(origin string) MediatorOption {
	return func(m *Mediator) {
		if origin != "" {
			m.origin = origin
		}
	}
}

func WithLogger(logger *zap.Logger) MediatorOption {
	return func(m *Mediator) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithTracerProvider 設定 span 的輸出目標，未設定時使用 otel 全域 provider
func WithTracerProvider(tp trace.TracerProvider) MediatorOption {
	return func(m *Mediator) {
		if tp != nil {
			m.tracer = tp.Tracer(tracerName)
		}
	}
}

// NewMediator 建立 Mediator
func NewMediator(
	handle *LedgerHandle,
	classifier *Classifier,
	authorizer *AuthorizationResolver,
	keys *KeyBuilder,
	submitter *Submitter,
	opts ...MediatorOption,
) *Mediator {
	m := &Mediator{
		handle:     handle,
		classifier: classifier,
		authorizer: authorizer,
		keys:       keys,
		submitter:  submitter,
		memo:       DefaultMemo,
		origin:     DefaultOrigin,
		logger:     zap.NewNop(),
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Ready 帳本 client 尚未註冊時回傳 domain.ErrConfigurationMissing，host 應拒絕處理交易
func (m *Mediator) Ready() error {
	_, err := m.handle.Current()
	return err
}

// Mediate 調解一筆交易並回傳結果，永遠不會 panic 到呼叫端
func (m *Mediator) Mediate(ctx context.Context, tc domain.TransactionContext) (outcome domain.Outcome) {
	ctx, span := m.tracer.Start(ctx, "mediator.Mediate")
	logger := m.logger.With(
		zap.Stringer("sender", tc.Sender),
		zap.Stringer("receiver", tc.Receiver),
		zap.Stringer("amount", tc.Amount),
		zap.String("context_tag", tc.ContextTag),
	)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("mediation panicked", zap.Any("panic", r))
			outcome = domain.OutcomeTransientFailure
		}
		span.SetAttributes(
			attribute.String("mediator.outcome", outcome.String()),
			attribute.String("mediator.context_tag", tc.ContextTag),
		)
		if !outcome.Handled() {
			span.SetStatus(codes.Error, outcome.String())
		}
		span.End()
	}()

	return m.mediate(ctx, tc, logger)
}

func (m *Mediator) mediate(ctx context.Context, tc domain.TransactionContext, logger *zap.Logger) domain.Outcome {
	if err := tc.Validate(); err != nil {
		logger.Warn("invalid transaction", zap.Error(err))
		return domain.OutcomeTransientFailure
	}

	ledger, err := m.handle.Current()
	if err != nil {
		logger.Error("ledger unavailable", zap.Error(err))
		return domain.OutcomeTransientFailure
	}
	if err := ctx.Err(); err != nil {
		logger.Warn("mediation cancelled", zap.Error(err))
		return domain.OutcomeTransientFailure
	}

	// 1. 分類，特權身分不需要帳本異動
	sender, receiver := m.classifier.Classify(tc)
	if !MovementRequired(sender, receiver) {
		logger.Debug("privileged party, no ledger movement",
			zap.Stringer("sender_class", sender), zap.Stringer("receiver_class", receiver))
		return domain.OutcomeHandledNoOp
	}

	// 2. 解析雙方帳戶，失敗時尚未有任何異動
	source, err := m.classifier.Resolve(ctx, ledger, sender)
	if err != nil {
		logger.Warn("could not resolve sender account", zap.Error(err))
		return domain.OutcomeAccountNotFound
	}
	destination, err := m.classifier.Resolve(ctx, ledger, receiver)
	if err != nil {
		logger.Warn("could not resolve receiver account", zap.Error(err))
		return domain.OutcomeAccountNotFound
	}
	if source == destination {
		logger.Debug("source and destination are the same account", zap.Stringer("account", source))
		return domain.OutcomeHandledNoOp
	}

	// 3. 共用帳戶授權
	approval, err := m.authorizer.ResolveApprover(ctx, ledger, tc)
	if err != nil {
		logger.Warn("could not resolve approver", zap.Error(err))
		return domain.OutcomeTransientFailure
	}
	if !approval.Satisfied() {
		logger.Warn("shared account requires an approver", zap.Stringer("shared_account", tc.SharedAccount.Ref),
			zap.Stringer("initiator", tc.Initiator))
		return domain.OutcomeAuthorizationRequired
	}

	// 4. 冪等 key 與送出
	memo := tc.Memo
	if memo == "" {
		memo = m.memo
	}
	ins := &domain.TransferInstruction{
		Source:      source,
		Destination: destination,
		Amount:      tc.Amount,
		Memo:        memo,
		Initiator:   tc.Initiator,
		Approver:    approval.Approver,
		Origin:      m.origin,
		Token:       m.keys.BuildKey(source.String(), destination.String(), tc.ContextTag, m.keys.Nonce(tc)),
	}
	return m.submitter.Submit(ctx, ledger, ins)
}
