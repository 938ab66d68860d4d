package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"google.golang.org/grpc/keepalive"

	event_adapter "github.com/JoeShih716/go-treasury-mediator/internal/app/mediator/adapter/in/event"
	grpc_adapter "github.com/JoeShih716/go-treasury-mediator/internal/app/mediator/adapter/out/grpc"
	memory_adapter "github.com/JoeShih716/go-treasury-mediator/internal/app/mediator/adapter/out/memory"
	redis_adapter "github.com/JoeShih716/go-treasury-mediator/internal/app/mediator/adapter/out/redis"
	"github.com/JoeShih716/go-treasury-mediator/internal/app/mediator/domain"
	"github.com/JoeShih716/go-treasury-mediator/internal/app/mediator/usecase"
	"github.com/JoeShih716/go-treasury-mediator/internal/config"
	pkggrpc "github.com/JoeShih716/go-treasury-mediator/pkg/grpc"
	"github.com/JoeShih716/go-treasury-mediator/pkg/logger"
	"github.com/JoeShih716/go-treasury-mediator/pkg/tracing"
)

type options struct {
	configPath  string
	op          string
	sender      string
	receiver    string
	initiator   string
	amount      string
	shared      int64
	sharedSide  string
	tag         string
	online      string
	count       int
	concurrency int
}

func parseFlags() options {
	var o options
	flag.StringVar(&o.configPath, "config", config.Path(), "設定檔路徑")
	flag.StringVar(&o.op, "op", "transfer", "transfer | balance | funds | account | format | add | subtract")
	flag.StringVar(&o.sender, "sender", "", "付款方 UUID (add/subtract/balance 時為目標玩家)")
	flag.StringVar(&o.receiver, "receiver", "", "收款方 UUID 或玩家名稱")
	flag.StringVar(&o.initiator, "initiator", "", "發起交易的玩家，預設為 sender")
	flag.StringVar(&o.amount, "amount", "0", "金額")
	flag.Int64Var(&o.shared, "shared", -1, "商店綁定的共用帳戶 ID，-1 代表沒有")
	flag.StringVar(&o.sharedSide, "shared-side", "receiver", "共用帳戶在哪一方: sender | receiver")
	flag.StringVar(&o.tag, "tag", "", "交易位置 (例如 world:10:64:-3)")
	flag.StringVar(&o.online, "online", "", "線上玩家名單 name=uuid,name=uuid")
	flag.IntVar(&o.count, "count", 1, "送出的交易筆數")
	flag.IntVar(&o.concurrency, "concurrency", 1, "同時處理的交易數")
	flag.Parse()
	return o
}

func main() {
	opts := parseFlags()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	zl, err := logger.New(cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	// 1. 連線遠端帳本
	pool := pkggrpc.NewPool(
		pkggrpc.WithInterceptor(grpc_adapter.LoggingInterceptor(zl)),
		pkggrpc.WithKeepalive(keepalive.ClientParameters{
			Time:                cfg.Ledger.Keepalive,
			Timeout:             time.Second,
			PermitWithoutStream: true,
		}),
	)
	defer pool.Close()
	conn, err := pool.GetConnection(cfg.Ledger.Target)
	if err != nil {
		zl.Fatal("connect ledger failed", zap.String("target", cfg.Ledger.Target), zap.Error(err))
	}
	client := grpc_adapter.NewClient(conn,
		grpc_adapter.WithTimeout(cfg.Ledger.Timeout),
		grpc_adapter.WithBreaker(grpc_adapter.BreakerConfig(cfg.Ledger.Breaker)),
		grpc_adapter.WithLogger(zl),
	)
	handle := usecase.NewLedgerHandle(client)

	// 2. 名稱來源: 線上玩家，其次是 redis 離線目錄
	ctx := context.Background()
	presence := memory_adapter.NewPresence()
	sources := []usecase.NameSource{presence}
	var directory *redis_adapter.NameDirectory
	if cfg.Redis.Addr != "" {
		rdb := goredis.NewClient(&goredis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		directory = redis_adapter.NewNameDirectory(rdb, cfg.Redis.NamesKey)
		sources = append(sources, directory)
	}
	// 線上玩家同時記錄到離線目錄，之後離線也查得到
	for _, pair := range splitList(opts.online) {
		name, raw, ok := strings.Cut(pair, "=")
		id, err := uuid.Parse(raw)
		if !ok || err != nil {
			zl.Fatal("invalid -online entry", zap.String("entry", pair))
		}
		presence.Join(name, id)
		if directory != nil {
			if err := directory.Remember(ctx, name, id); err != nil {
				zl.Warn("remember name failed", zap.String("name", name), zap.Error(err))
			}
		}
	}

	// 3. 組裝 usecase
	privileged, _ := cfg.PrivilegedIdentities()
	serverAccount, _ := cfg.ServerAccount()
	identities := usecase.NewIdentityResolver(zl, sources...)
	keys := usecase.NewKeyBuilder(cfg.Mediator.KeyNamespace)
	submitter := usecase.NewSubmitter(zl)
	mediatorOpts := []usecase.MediatorOption{
		usecase.WithMemo(cfg.Mediator.Memo),
		usecase.WithOrigin(cfg.Mediator.Source),
		usecase.WithLogger(zl),
	}
	if cfg.Tracing.Enabled {
		tp := tracing.NewProvider(zl, cfg.Tracing.SampleRate)
		defer func() { _ = tp.Shutdown(context.Background()) }()
		mediatorOpts = append(mediatorOpts, usecase.WithTracerProvider(tp))
	}
	mediator := usecase.NewMediator(handle,
		usecase.NewClassifier(identities, privileged...),
		usecase.NewAuthorizationResolver(),
		keys,
		submitter,
		mediatorOpts...,
	)
	economy := usecase.NewEconomy(handle, identities, keys, submitter, serverAccount, cfg.Mediator.Source, zl)
	listener := event_adapter.NewListener(mediator, economy,
		event_adapter.WithStripColors(cfg.Mediator.StripPriceColors),
		event_adapter.WithLogger(zl),
	)
	binder := usecase.NewShopBinder(handle, identities)

	if err := mediator.Ready(); err != nil {
		zl.Fatal("mediator not ready", zap.Error(err))
	}

	sender := mustUUID(zl, "sender", opts.sender)
	amount, err := decimal.NewFromString(opts.amount)
	if err != nil {
		zl.Fatal("invalid -amount", zap.String("amount", opts.amount), zap.Error(err))
	}

	if opts.op != "transfer" {
		fmt.Println(runEconomy(ctx, listener, opts.op, sender, amount))
		return
	}

	tc, err := buildTransaction(ctx, binder, opts, sender, amount)
	if err != nil {
		zl.Fatal("invalid transaction", zap.Error(err))
	}
	runTransfers(ctx, listener, tc, opts.count, opts.concurrency)
}

// buildTransaction 依參數組出交易，收款方可以是玩家名稱
func buildTransaction(ctx context.Context, binder *usecase.ShopBinder, opts options, sender uuid.UUID,
	amount decimal.Decimal) (domain.TransactionContext, error) {
	tc := domain.TransactionContext{
		Sender:     sender,
		Amount:     amount,
		Initiator:  sender,
		ContextTag: opts.tag,
	}
	if opts.initiator != "" {
		id, err := uuid.Parse(opts.initiator)
		if err != nil {
			return tc, fmt.Errorf("-initiator: %w", err)
		}
		tc.Initiator = id
	}

	if id, err := uuid.Parse(opts.receiver); err == nil {
		tc.Receiver = id
	} else {
		binding, err := binder.BindPersonal(ctx, sender, opts.receiver)
		if err != nil {
			return tc, fmt.Errorf("-receiver %q: %w", opts.receiver, err)
		}
		tc.Receiver = binding.Owner
	}

	if opts.shared >= 0 {
		side, shopPlayer := domain.SideReceiver, tc.Receiver
		if opts.sharedSide == "sender" {
			side, shopPlayer = domain.SideSender, tc.Sender
		}
		binding, err := binder.BindShared(ctx, shopPlayer, domain.AccountRef(opts.shared))
		if err != nil {
			return tc, fmt.Errorf("-shared %d: %w", opts.shared, err)
		}
		tc.SharedAccount = &domain.SharedAccountRef{Ref: *binding.SharedAccount, Side: side}
	}
	return tc, tc.Validate()
}

// runTransfers 以 concurrency 個 goroutine 送出 count 筆交易並統計結果
func runTransfers(ctx context.Context, listener *event_adapter.Listener, tc domain.TransactionContext, count, concurrency int) {
	if concurrency < 1 {
		concurrency = 1
	}
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes = make(map[domain.Outcome]int)
	)
	sem := make(chan struct{}, concurrency)
	start := time.Now()

	for i := 0; i < count; i++ {
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			txn := tc
			ev := &event_adapter.TransferEvent{Transaction: &txn}
			listener.OnTransfer(ctx, ev)

			mu.Lock()
			outcomes[ev.Outcome]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	elapsed := time.Since(start)
	for outcome, n := range outcomes {
		fmt.Printf("%-36s %d\n", outcome, n)
	}
	fmt.Printf("Completed %d transactions in %v (%.2f/s)\n", count, elapsed, float64(count)/elapsed.Seconds())
}

func runEconomy(ctx context.Context, listener *event_adapter.Listener, op string, target uuid.UUID, amount decimal.Decimal) string {
	switch op {
	case "balance":
		ev := &event_adapter.AmountEvent{Account: target}
		listener.OnAmount(ctx, ev)
		return fmt.Sprintf("handled=%t balance=%s", ev.Handled, ev.Amount)
	case "funds":
		ev := &event_adapter.CheckEvent{Account: target, Amount: amount}
		listener.OnCheck(ctx, ev)
		return fmt.Sprintf("handled=%t has_enough=%t", ev.Handled, ev.HasEnough)
	case "account":
		ev := &event_adapter.AccountCheckEvent{Account: target}
		listener.OnAccountCheck(ctx, ev)
		return fmt.Sprintf("handled=%t has_account=%t", ev.Handled, ev.HasAccount)
	case "format":
		ev := &event_adapter.FormatEvent{Amount: amount}
		listener.OnFormat(ctx, ev)
		return fmt.Sprintf("handled=%t formatted=%s", ev.Handled, ev.Formatted)
	case "add":
		ev := &event_adapter.AddEvent{Target: target, Amount: amount}
		listener.OnAdd(ctx, ev)
		return fmt.Sprintf("handled=%t outcome=%s", ev.Handled, ev.Outcome)
	case "subtract":
		ev := &event_adapter.SubtractEvent{Target: target, Amount: amount}
		listener.OnSubtract(ctx, ev)
		return fmt.Sprintf("handled=%t outcome=%s", ev.Handled, ev.Outcome)
	default:
		return fmt.Sprintf("unknown -op %q", op)
	}
}

func mustUUID(zl *zap.Logger, name, raw string) uuid.UUID {
	id, err := uuid.Parse(raw)
	if err != nil {
		zl.Fatal("invalid -"+name, zap.String("value", raw), zap.Error(err))
	}
	return id
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
